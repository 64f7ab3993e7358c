package notify

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSendGridSender_NilWithoutAPIKey(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{FromEmail: "turnos@example.com"}, zerolog.Nop())
	assert.Nil(t, sender)
}

func TestNewSendGridSender_DefaultFromName(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{APIKey: "key", FromEmail: "turnos@example.com"}, zerolog.Nop())
	require.NotNil(t, sender)
	assert.Equal(t, "Consultorio", sender.fromName)
}

func TestSendGridSender_Send_NilClient(t *testing.T) {
	sender := &SendGridSender{}
	err := sender.Send(context.Background(), EmailMessage{To: "a@example.com", Subject: "s", Body: "b"})
	assert.Error(t, err)
}

func TestStubEmailSender_ValidatesMessage(t *testing.T) {
	sender := NewStubEmailSender(zerolog.Nop())

	assert.NoError(t, sender.Send(context.Background(), EmailMessage{To: "a@example.com", Subject: "s", Body: "b"}))
	assert.Error(t, sender.Send(context.Background(), EmailMessage{Subject: "s", Body: "b"}))
	assert.Error(t, sender.Send(context.Background(), EmailMessage{To: "a@example.com", Body: "b"}))
	assert.Error(t, sender.Send(context.Background(), EmailMessage{To: "a@example.com", Subject: "s"}))
}

func TestNewEmailSenderFallsBackToStub(t *testing.T) {
	_, ok := NewEmailSender(EmailProviderConfig{Provider: "sendgrid"}, zerolog.Nop()).(*StubEmailSender)
	assert.True(t, ok)

	_, ok = NewEmailSender(EmailProviderConfig{Provider: "smtp"}, zerolog.Nop()).(*StubEmailSender)
	assert.True(t, ok)

	_, ok = NewEmailSender(EmailProviderConfig{Provider: "smtp", SMTP: SMTPConfig{Host: "mail", Port: 25, From: "a@example.com"}}, zerolog.Nop()).(*SMTPSender)
	assert.True(t, ok)
}

func TestBuildSMTPMessageHeaders(t *testing.T) {
	m := buildSMTPMessage("Consultorio <turnos@example.com>", EmailMessage{
		To:      "ana@example.com",
		ToName:  "Ana",
		Subject: "Recordatorio",
		Body:    "texto",
		HTML:    "<p>texto</p>",
	})
	assert.Equal(t, []string{"Consultorio <turnos@example.com>"}, m.GetHeader("From"))
	assert.Equal(t, []string{"Recordatorio"}, m.GetHeader("Subject"))
	require.Len(t, m.GetHeader("To"), 1)
	assert.Contains(t, m.GetHeader("To")[0], "ana@example.com")
}
