package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelEmail    Channel = "email"
)

// Reminder is everything a reminder message renders.
type Reminder struct {
	AppointmentID uuid.UUID
	PatientName   string
	Phone         string
	Email         string
	DoctorName    string
	RoomName      string
	Desde         time.Time
	OfficeName    string
	OfficePhone   string
	ConfirmURL    string
	CancelURL     string
}

// ReminderSender delivers one reminder over one channel.
type ReminderSender interface {
	Channel() Channel
	SendReminder(ctx context.Context, r Reminder) error
}

var ErrNoRecipient = errors.New("notify: patient has no contact for this channel")

var (
	weekdaysES = [...]string{"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado"}
	monthsES   = [...]string{"enero", "febrero", "marzo", "abril", "mayo", "junio", "julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre"}
)

// FormatWhen renders an instant like "lunes 3 de junio a las 09:30".
func FormatWhen(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return fmt.Sprintf("%s %d de %s a las %s", weekdaysES[t.Weekday()], t.Day(), monthsES[t.Month()-1], t.Format("15:04"))
}

// RenderReminder builds the plain text body shared by every channel.
func RenderReminder(r Reminder, loc *time.Location) string {
	var b strings.Builder
	name := strings.TrimSpace(r.PatientName)
	if name == "" {
		name = "paciente"
	}
	fmt.Fprintf(&b, "Hola %s, te recordamos tu turno", name)
	if r.DoctorName != "" {
		fmt.Fprintf(&b, " con %s", r.DoctorName)
	}
	fmt.Fprintf(&b, " el %s", FormatWhen(r.Desde, loc))
	if r.RoomName != "" {
		fmt.Fprintf(&b, " en %s", r.RoomName)
	}
	b.WriteString(".\n")
	if r.ConfirmURL != "" {
		fmt.Fprintf(&b, "Confirmar: %s\n", r.ConfirmURL)
	}
	if r.CancelURL != "" {
		fmt.Fprintf(&b, "Cancelar: %s\n", r.CancelURL)
	}
	if r.OfficeName != "" {
		b.WriteString(r.OfficeName)
		if r.OfficePhone != "" {
			fmt.Fprintf(&b, " - %s", r.OfficePhone)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// EmailReminderSender sends reminders as email.
type EmailReminderSender struct {
	sender EmailSender
	loc    *time.Location
}

func NewEmailReminderSender(sender EmailSender, loc *time.Location) *EmailReminderSender {
	return &EmailReminderSender{sender: sender, loc: loc}
}

func (s *EmailReminderSender) Channel() Channel { return ChannelEmail }

func (s *EmailReminderSender) SendReminder(ctx context.Context, r Reminder) error {
	if strings.TrimSpace(r.Email) == "" {
		return ErrNoRecipient
	}
	subject := "Recordatorio de turno"
	if r.OfficeName != "" {
		subject += " - " + r.OfficeName
	}
	return s.sender.Send(ctx, EmailMessage{
		To:      r.Email,
		ToName:  r.PatientName,
		Subject: subject,
		Body:    RenderReminder(r, s.loc),
	})
}

type textSender interface {
	SendText(ctx context.Context, to, body string) error
}

// WhatsAppReminderSender sends reminders as WhatsApp text messages.
type WhatsAppReminderSender struct {
	client textSender
	loc    *time.Location
}

func NewWhatsAppReminderSender(client textSender, loc *time.Location) *WhatsAppReminderSender {
	return &WhatsAppReminderSender{client: client, loc: loc}
}

func (s *WhatsAppReminderSender) Channel() Channel { return ChannelWhatsApp }

func (s *WhatsAppReminderSender) SendReminder(ctx context.Context, r Reminder) error {
	if strings.TrimSpace(r.Phone) == "" {
		return ErrNoRecipient
	}
	return s.client.SendText(ctx, r.Phone, RenderReminder(r, s.loc))
}
