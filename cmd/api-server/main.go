package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackgods/medical-office-scheduling/internal/api"
	"github.com/hackgods/medical-office-scheduling/internal/app"
	"github.com/hackgods/medical-office-scheduling/internal/auth"
	"github.com/hackgods/medical-office-scheduling/internal/config"
	"github.com/hackgods/medical-office-scheduling/internal/coverage"
	"github.com/hackgods/medical-office-scheduling/internal/patient"
	"github.com/hackgods/medical-office-scheduling/internal/room"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger := app.NewLogger(config.Config{}, "api-server")
		logger.Fatal().Err(err).Msg("config load error")
	}

	logger := app.NewLogger(cfg, "api-server")
	logger.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Str("version", version).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Open(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer deps.Close()

	signer := auth.NewSigner(cfg.JWTSecret)
	emailTokens := auth.NewEmailTokenService(
		auth.NewPgEmailTokenStore(deps.Pool),
		deps.Email,
		signer,
		auth.EmailTokenConfig{
			TokenTTL:   cfg.EmailTokenTTL,
			SessionTTL: cfg.StaffTokenTTL,
			AppURL:     deps.Settings.AppURL,
		},
		logger.With().Str("component", "auth").Logger(),
	)

	router := api.NewRouter(api.RouterConfig{
		Appointments: deps.Appointments,
		Patients:     patient.NewService(patient.NewPgRepository(deps.Pool), cfg.PhoneRegion, logger),
		Rooms:        room.NewService(deps.Pool, logger),
		Coverages:    coverage.NewService(deps.Pool),
		EmailTokens:  emailTokens,
		Reminders:    deps.Reminders,
		Signer:       signer,
		Postgres:     deps.Pool,
		Redis:        api.PingFunc(func(ctx context.Context) error { return deps.Redis.Ping(ctx).Err() }),
		Logger:       logger,
		Location:     cfg.Timezone,
		Env:          cfg.Env,
		Version:      version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-rootCtx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server failed")
			deps.Close()
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("api-server stopped")
}
