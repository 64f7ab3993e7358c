// Package app wires configuration into the long-lived dependencies shared
// by the api-server and reminder-worker binaries.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/medical-office-scheduling/internal/appointment"
	"github.com/hackgods/medical-office-scheduling/internal/calendar"
	"github.com/hackgods/medical-office-scheduling/internal/config"
	"github.com/hackgods/medical-office-scheduling/internal/db"
	"github.com/hackgods/medical-office-scheduling/internal/logging"
	"github.com/hackgods/medical-office-scheduling/internal/metrics"
	"github.com/hackgods/medical-office-scheduling/internal/notify"
	redisclient "github.com/hackgods/medical-office-scheduling/internal/redis"
	"github.com/hackgods/medical-office-scheduling/internal/reminder"
)

type App struct {
	Config   config.Config
	Logger   zerolog.Logger
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Metrics  *metrics.SchedulingMetrics
	Email    notify.EmailSender
	Settings *reminder.PgSettings

	Appointments *appointment.Service
	Reminders    *reminder.Scheduler
}

// NewLogger builds the process logger for a binary.
func NewLogger(cfg config.Config, service string) zerolog.Logger {
	return logging.New(logging.Options{
		Level:   cfg.LogLevel,
		Console: cfg.Env == "dev",
		File:    cfg.LogFile,
		Service: service,
	})
}

// Open connects postgres and redis and builds the scheduling services.
// Close releases both connections.
func Open(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*App, error) {
	pgCtx, cancelPg := context.WithTimeout(ctx, 10*time.Second)
	pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		return nil, fmt.Errorf("postgres connection: %w", err)
	}
	logger.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(ctx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("redis connection: %w", err)
	}
	logger.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis")

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Pool:     pool,
		Redis:    rdb,
		Metrics:  metrics.NewSchedulingMetrics(prometheus.DefaultRegisterer),
		Settings: reminder.NewPgSettings(pool),
	}
	a.Email = notify.NewEmailSender(notify.EmailProviderConfig{
		Provider: cfg.EmailProvider,
		SendGrid: notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		},
		SMTP: notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			SSL:      cfg.SMTPSSL,
			From:     cfg.EmailFromAddress,
			FromName: cfg.EmailFromName,
		},
	}, logger)

	calendars := calendar.NewProvider(calendar.NewPgSource(pool), cfg.Timezone)
	a.Appointments = appointment.NewService(
		appointment.NewPgRepository(pool),
		calendars,
		redisclient.NewRedisLocker(rdb, cfg.LockTTL),
		appointment.Config{
			LookAheadDays: cfg.SearchLookAheadDays,
			LookBackDays:  cfg.SearchLookBackDays,
			MaxResults:    cfg.SearchMaxResults,
			MaxCandidates: cfg.SearchMaxCandidates,
			TokenBytes:    cfg.TokenBytes,
		},
		a.Metrics,
		logger.With().Str("component", "appointments").Logger(),
	)

	a.Reminders = reminder.NewScheduler(
		a.Appointments,
		a.Settings,
		redisclient.NewRunGuard(rdb),
		reminder.Config{
			Tick:      cfg.ReminderTick,
			Tolerance: cfg.ReminderTolerance,
			SendDelay: cfg.ReminderSendDelay,
			Location:  cfg.Timezone,
		},
		a.Metrics,
		logger.With().Str("component", "reminders").Logger(),
		reminderSenders(cfg, a.Email, logger)...,
	)

	return a, nil
}

// reminderSenders always registers email. WhatsApp is registered only
// when its credentials are configured.
func reminderSenders(cfg config.Config, email notify.EmailSender, logger zerolog.Logger) []notify.ReminderSender {
	senders := []notify.ReminderSender{notify.NewEmailReminderSender(email, cfg.Timezone)}

	wa, err := notify.NewWhatsAppClient(notify.WhatsAppConfig{
		BaseURL:       cfg.WhatsAppAPIURL,
		Token:         cfg.WhatsAppToken,
		PhoneNumberID: cfg.WhatsAppPhoneNumberID,
	}, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("whatsapp reminders disabled")
		return senders
	}
	return append(senders, notify.NewWhatsAppReminderSender(wa, cfg.Timezone))
}

func (a *App) Close() {
	if err := a.Redis.Close(); err != nil {
		a.Logger.Error().Err(err).Msg("error closing redis")
	}
	a.Pool.Close()
}
