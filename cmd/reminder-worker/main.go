package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/hackgods/medical-office-scheduling/internal/app"
	"github.com/hackgods/medical-office-scheduling/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger := app.NewLogger(config.Config{}, "reminder-worker")
		logger.Fatal().Err(err).Msg("config load error")
	}

	logger := app.NewLogger(cfg, "reminder-worker")
	logger.Info().Str("env", cfg.Env).Dur("tick", cfg.ReminderTick).Msg("reminder-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Open(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer deps.Close()

	if err := deps.Reminders.Start(rootCtx); err != nil {
		logger.Fatal().Err(err).Msg("reminder scheduler failed to start")
	}

	<-rootCtx.Done()
	logger.Info().Msg("shutdown signal received, stopping reminder worker")
	deps.Reminders.Stop()
}
