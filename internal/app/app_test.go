package app

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/hackgods/medical-office-scheduling/internal/config"
	"github.com/hackgods/medical-office-scheduling/internal/notify"
)

func channels(senders []notify.ReminderSender) []notify.Channel {
	out := make([]notify.Channel, 0, len(senders))
	for _, s := range senders {
		out = append(out, s.Channel())
	}
	return out
}

func TestReminderSendersWithoutWhatsApp(t *testing.T) {
	cfg := config.Config{Timezone: time.UTC}
	got := reminderSenders(cfg, notify.NewStubEmailSender(zerolog.Nop()), zerolog.Nop())
	assert.Equal(t, []notify.Channel{notify.ChannelEmail}, channels(got))
}

func TestReminderSendersWithWhatsApp(t *testing.T) {
	cfg := config.Config{
		Timezone:              time.UTC,
		WhatsAppAPIURL:        "http://127.0.0.1:9",
		WhatsAppToken:         "token",
		WhatsAppPhoneNumberID: "123",
	}
	got := reminderSenders(cfg, notify.NewStubEmailSender(zerolog.Nop()), zerolog.Nop())
	assert.Equal(t, []notify.Channel{notify.ChannelEmail, notify.ChannelWhatsApp}, channels(got))
}
