package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/hackgods/medical-office-scheduling/internal/auth"
)

type RouterConfig struct {
	Appointments AppointmentService
	Patients     PatientService
	Rooms        RoomService
	Coverages    CoverageService
	EmailTokens  EmailTokenService
	Reminders    ReminderRunner

	Signer   *auth.Signer
	Postgres Pinger
	Redis    Pinger
	Gatherer prometheus.Gatherer

	Logger   zerolog.Logger
	Location *time.Location
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// Patients follow these links from reminders; the token is the credential.
	r.Get("/appointments/confirm", lookupTokenHandler(cfg.Appointments))
	r.Post("/appointments/confirm", transitionHandler(cfg.Appointments.Confirm))
	r.Get("/appointments/cancel", lookupTokenHandler(cfg.Appointments))
	r.Post("/appointments/cancel", transitionHandler(cfg.Appointments.Cancel))

	r.Post("/auth/email-token", requestEmailTokenHandler(cfg.EmailTokens))
	r.Post("/auth/email-token/redeem", redeemEmailTokenHandler(cfg.EmailTokens))

	r.Group(func(r chi.Router) {
		r.Use(RequireAudience(cfg.Signer, auth.AudienceStaff, auth.AudienceService))
		r.Get("/availability", availabilityHandler(cfg.Appointments, loc))
	})

	r.Group(func(r chi.Router) {
		r.Use(RequireAudience(cfg.Signer, auth.AudienceService))
		r.Post("/public/patients", createPatientHandler(cfg.Patients.CreatePublic))
	})

	r.Group(func(r chi.Router) {
		r.Use(RequireAudience(cfg.Signer, auth.AudienceStaff))

		r.Post("/appointments", createAppointmentHandler(cfg.Appointments, loc))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Appointments))
		r.Patch("/appointments/{id}", updateAppointmentHandler(cfg.Appointments, loc))

		r.Route("/patients", func(r chi.Router) {
			r.Get("/", listPatientsHandler(cfg.Patients))
			r.Post("/", createPatientHandler(cfg.Patients.Create))
			r.Get("/{id}", getPatientHandler(cfg.Patients))
			r.Put("/{id}", updatePatientHandler(cfg.Patients))
			r.Delete("/{id}", deleteHandler("patient", cfg.Patients.Delete))
		})

		r.Route("/rooms", func(r chi.Router) {
			r.Get("/", listRoomsHandler(cfg.Rooms))
			r.Post("/", createRoomHandler(cfg.Rooms))
			r.Get("/{id}", getRoomHandler(cfg.Rooms))
			r.Put("/{id}", updateRoomHandler(cfg.Rooms))
			r.Delete("/{id}", deleteHandler("room", cfg.Rooms.Delete))
		})

		r.Route("/coverages", func(r chi.Router) {
			r.Get("/", listCoveragesHandler(cfg.Coverages))
			r.Post("/", createCoverageHandler(cfg.Coverages))
			r.Put("/{id}", updateCoverageHandler(cfg.Coverages))
		})

		r.Post("/reminders/run", runRemindersHandler(cfg.Reminders))
	})

	return r
}
