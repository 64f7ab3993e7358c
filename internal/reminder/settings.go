package reminder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/hackgods/medical-office-scheduling/internal/db"
	"github.com/hackgods/medical-office-scheduling/internal/notify"
)

// ChannelSettings is the per channel part of the office configuration.
type ChannelSettings struct {
	Enabled  bool
	Time     string // HH:MM in the office timezone
	LeadDays int
}

// Settings is the reminder relevant part of the configuration row.
type Settings struct {
	OfficeName  string
	OfficePhone string
	AppURL      string
	Channels    map[notify.Channel]ChannelSettings
}

type SettingsSource interface {
	ReminderSettings(ctx context.Context) (Settings, error)
}

// PgSettings reads the configuration singleton.
type PgSettings struct {
	db db.DB
}

func NewPgSettings(pool db.DB) *PgSettings {
	return &PgSettings{db: pool}
}

func (s *PgSettings) ReminderSettings(ctx context.Context) (Settings, error) {
	var (
		out                          Settings
		officeName, officePhone, url *string
		wa, em                       ChannelSettings
		waTime, emTime               *string
	)

	err := s.db.QueryRow(ctx, `
		SELECT office_name, office_phone, app_url,
		       whatsapp_enabled, whatsapp_time, whatsapp_lead_days,
		       email_enabled, email_time, email_lead_days
		FROM configuration
		WHERE id = 1
	`).Scan(
		&officeName, &officePhone, &url,
		&wa.Enabled, &waTime, &wa.LeadDays,
		&em.Enabled, &emTime, &em.LeadDays,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Settings{Channels: map[notify.Channel]ChannelSettings{}}, nil
		}
		return Settings{}, fmt.Errorf("load reminder settings: %w", err)
	}

	out.OfficeName = deref(officeName)
	out.OfficePhone = deref(officePhone)
	out.AppURL = strings.TrimRight(deref(url), "/")
	wa.Time = deref(waTime)
	em.Time = deref(emTime)
	out.Channels = map[notify.Channel]ChannelSettings{
		notify.ChannelWhatsApp: wa,
		notify.ChannelEmail:    em,
	}
	return out, nil
}

// AppURL returns the public base URL used in links.
func (s *PgSettings) AppURL(ctx context.Context) (string, error) {
	settings, err := s.ReminderSettings(ctx)
	if err != nil {
		return "", err
	}
	return settings.AppURL, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
