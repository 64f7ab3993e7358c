package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWhatsAppClientRequiresCredentials(t *testing.T) {
	_, err := NewWhatsAppClient(WhatsAppConfig{BaseURL: "http://x"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestWhatsAppSendText(t *testing.T) {
	var got whatsAppText
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/123/messages", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.1"}]}`))
	}))
	defer srv.Close()

	client, err := NewWhatsAppClient(WhatsAppConfig{BaseURL: srv.URL + "/", Token: "tok", PhoneNumberID: "123"}, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, client.SendText(context.Background(), "+5491155550000", "hola"))
	assert.Equal(t, "whatsapp", got.MessagingProduct)
	assert.Equal(t, "5491155550000", got.To)
	assert.Equal(t, "hola", got.Text.Body)
}

func TestWhatsAppSendTextErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, err := NewWhatsAppClient(WhatsAppConfig{BaseURL: srv.URL, Token: "tok", PhoneNumberID: "123"}, zerolog.Nop())
	require.NoError(t, err)

	err = client.SendText(context.Background(), "+5491155550000", "hola")
	assert.ErrorContains(t, err, "429")
}

type recordingText struct {
	to, body string
}

func (r *recordingText) SendText(_ context.Context, to, body string) error {
	r.to, r.body = to, body
	return nil
}

func TestReminderSenders(t *testing.T) {
	loc := time.UTC
	r := Reminder{
		AppointmentID: uuid.New(),
		PatientName:   "Ana",
		Phone:         "+5491155550000",
		DoctorName:    "Dra. Pérez",
		RoomName:      "Consultorio 2",
		Desde:         time.Date(2024, 6, 3, 9, 30, 0, 0, loc),
		ConfirmURL:    "https://turnos.example.com/turnos/confirmar?token=abc",
		CancelURL:     "https://turnos.example.com/turnos/cancelar?token=abc",
		OfficeName:    "Centro Médico",
	}

	text := &recordingText{}
	wa := NewWhatsAppReminderSender(text, loc)
	require.NoError(t, wa.SendReminder(context.Background(), r))
	assert.Equal(t, ChannelWhatsApp, wa.Channel())
	assert.Equal(t, "+5491155550000", text.to)
	assert.Contains(t, text.body, "lunes 3 de junio a las 09:30")
	assert.Contains(t, text.body, "Confirmar: https://turnos.example.com/turnos/confirmar?token=abc")

	email := NewEmailReminderSender(NewStubEmailSender(zerolog.Nop()), loc)
	assert.ErrorIs(t, email.SendReminder(context.Background(), r), ErrNoRecipient)

	r.Email = "ana@example.com"
	assert.NoError(t, email.SendReminder(context.Background(), r))
}
