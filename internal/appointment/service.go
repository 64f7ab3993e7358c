package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/medical-office-scheduling/internal/apperr"
	"github.com/hackgods/medical-office-scheduling/internal/auth"
	"github.com/hackgods/medical-office-scheduling/internal/calendar"
	"github.com/hackgods/medical-office-scheduling/internal/metrics"
	redisclient "github.com/hackgods/medical-office-scheduling/internal/redis"
)

var (
	ErrSlotBeingBooked  = apperr.Conflict("slot is currently being booked, please retry")
	ErrAlreadyConfirmed = apperr.State("appointment is already confirmed")
)

// Calendars loads the calendar rules of a doctor.
type Calendars interface {
	Load(ctx context.Context, doctorID uuid.UUID) (*calendar.Calendar, error)
}

type Config struct {
	LookAheadDays int
	LookBackDays  int
	MaxResults    int
	MaxCandidates int
	TokenBytes    int
}

func (c Config) withDefaults() Config {
	if c.LookAheadDays <= 0 {
		c.LookAheadDays = 14
	}
	if c.LookBackDays < 0 {
		c.LookBackDays = 0
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 5
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = 5000
	}
	if c.TokenBytes < auth.DefaultTokenBytes {
		c.TokenBytes = auth.DefaultTokenBytes
	}
	return c
}

type Service struct {
	repo      Repository
	calendars Calendars
	locker    redisclient.Locker
	cfg       Config
	metrics   *metrics.SchedulingMetrics
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(repo Repository, calendars Calendars, locker redisclient.Locker, cfg Config, m *metrics.SchedulingMetrics, logger zerolog.Logger) *Service {
	if locker == nil {
		locker = redisclient.NoopLocker{}
	}
	return &Service{
		repo:      repo,
		calendars: calendars,
		locker:    locker,
		cfg:       cfg.withDefaults(),
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// SetClock replaces the clock used for state timestamps and for dropping
// past candidates.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// BookingRequest is a staff request to create an appointment.
type BookingRequest struct {
	Desde             time.Time
	Hasta             time.Time
	PatientID         uuid.UUID
	DoctorID          uuid.UUID
	RoomID            *uuid.UUID
	CoverageID        *uuid.UUID
	AppointmentTypeID *uuid.UUID
	State             State
	Notes             *string
	CreatedBy         string
}

// Book creates an appointment. Room and coverage are filled from the
// doctor's agenda and the patient when omitted. A taken slot yields a
// *SlotConflictError carrying nearby alternatives.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	iv := Interval{Start: req.Desde, End: req.Hasta}
	if err := iv.validate(); err != nil {
		return nil, err
	}
	if req.PatientID == uuid.Nil || req.DoctorID == uuid.Nil {
		return nil, apperr.Validation("patient and doctor are required")
	}

	state := req.State
	if state == "" {
		state = StateUnconfirmed
	}
	if state != StateUnconfirmed && state != StateConfirmed {
		return nil, apperr.Validation("a new appointment must be unconfirmed or confirmed")
	}

	// Validate patient exists
	coverageID, err := s.repo.PatientCoverage(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}
	if req.CoverageID != nil {
		coverageID = req.CoverageID
	}

	roomID := req.RoomID
	if roomID == nil {
		cal, err := s.calendars.Load(ctx, req.DoctorID)
		if err != nil {
			return nil, err
		}
		if w, ok := cal.WindowAt(req.Desde, req.Hasta); ok {
			roomID = w.RoomID
		}
	}

	token, err := auth.GenerateToken(s.cfg.TokenBytes)
	if err != nil {
		return nil, apperr.Dependency("generate appointment token", err)
	}

	appt := &Appointment{
		Desde:             req.Desde,
		Hasta:             req.Hasta,
		PatientID:         req.PatientID,
		DoctorID:          req.DoctorID,
		RoomID:            roomID,
		CoverageID:        coverageID,
		AppointmentTypeID: req.AppointmentTypeID,
		State:             state,
		Token:             &token,
		Notes:             req.Notes,
	}
	if req.CreatedBy != "" {
		appt.CreatedBy = &req.CreatedBy
	}

	res := Resources{DoctorID: &appt.DoctorID, RoomID: appt.RoomID}
	var created *Appointment

	err = s.locker.WithLock(ctx, lockKeys(res), func(lockCtx context.Context) error {
		// Inside the critical section re-check for an overlapping appointment
		existing, err := s.HasConflict(lockCtx, iv, res, nil)
		if err != nil {
			return fmt.Errorf("check conflict: %w", err)
		}
		if existing != nil {
			return &SlotConflictError{Conflict: existing}
		}

		created, err = s.repo.Create(lockCtx, appt)
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, s.conflictResult(ctx, err, iv, appt.DoctorID, appt.RoomID, nil)
	}

	s.logger.Info().
		Str("appointment_id", created.ID.String()).
		Str("doctor_id", created.DoctorID.String()).
		Time("desde", created.Desde).
		Msg("appointment booked")

	return created, nil
}

// Patch is a staff update. Nil fields are left unchanged.
type Patch struct {
	Desde             *time.Time
	Hasta             *time.Time
	PatientID         *uuid.UUID
	DoctorID          *uuid.UUID
	RoomID            *uuid.UUID
	ClearRoom         bool
	CoverageID        *uuid.UUID
	AppointmentTypeID *uuid.UUID
	State             *State
	Penal             *Penal
	Notes             *string
	UpdatedBy         string
	// ExpectedUpdatedAt rejects the patch when the appointment changed
	// after the caller read it.
	ExpectedUpdatedAt *time.Time
}

// Update applies a staff patch. Any state may be set; the conflict check
// runs when time or resources change, or a cancelled appointment is
// reactivated, and the result is not cancelled.
func (s *Service) Update(ctx context.Context, id uuid.UUID, p Patch) (*Appointment, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	expected := current.UpdatedAt
	if p.ExpectedUpdatedAt != nil {
		if !p.ExpectedUpdatedAt.Equal(current.UpdatedAt) {
			return nil, ErrStaleUpdate
		}
		expected = *p.ExpectedUpdatedAt
	}

	next := *current
	moved := false
	if p.Desde != nil && !p.Desde.Equal(next.Desde) {
		next.Desde, moved = *p.Desde, true
	}
	if p.Hasta != nil && !p.Hasta.Equal(next.Hasta) {
		next.Hasta, moved = *p.Hasta, true
	}
	if p.DoctorID != nil && *p.DoctorID != next.DoctorID {
		next.DoctorID, moved = *p.DoctorID, true
	}
	if p.ClearRoom && next.RoomID != nil {
		next.RoomID, moved = nil, true
	} else if p.RoomID != nil && (next.RoomID == nil || *p.RoomID != *next.RoomID) {
		next.RoomID, moved = p.RoomID, true
	}
	if p.PatientID != nil && *p.PatientID != next.PatientID {
		next.PatientID = *p.PatientID
		if p.CoverageID == nil {
			coverageID, err := s.repo.PatientCoverage(ctx, next.PatientID)
			if err != nil {
				return nil, err
			}
			next.CoverageID = coverageID
		}
	}
	if p.CoverageID != nil {
		next.CoverageID = p.CoverageID
	}
	if p.AppointmentTypeID != nil {
		next.AppointmentTypeID = p.AppointmentTypeID
	}
	if p.State != nil {
		if !p.State.Valid() {
			return nil, apperr.Validation(fmt.Sprintf("unknown appointment state %q", *p.State))
		}
		next.State = *p.State
	}
	if p.Penal != nil {
		next.Penal = *p.Penal
	}
	if p.Notes != nil {
		next.Notes = p.Notes
	}
	if p.UpdatedBy != "" {
		next.UpdatedBy = &p.UpdatedBy
	}

	iv := next.Interval()
	if err := iv.validate(); err != nil {
		return nil, err
	}

	reactivated := current.State == StateCancelled && next.State != StateCancelled
	if next.State == StateCancelled || (!moved && !reactivated) {
		return s.repo.Update(ctx, &next, expected)
	}

	res := Resources{DoctorID: &next.DoctorID, RoomID: next.RoomID}
	var updated *Appointment

	err = s.locker.WithLock(ctx, lockKeys(res), func(lockCtx context.Context) error {
		existing, err := s.HasConflict(lockCtx, iv, res, &next.ID)
		if err != nil {
			return fmt.Errorf("check conflict: %w", err)
		}
		if existing != nil {
			return &SlotConflictError{Conflict: existing}
		}

		updated, err = s.repo.Update(lockCtx, &next, expected)
		if err != nil {
			return fmt.Errorf("update appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, s.conflictResult(ctx, err, iv, next.DoctorID, next.RoomID, &next.ID)
	}
	return updated, nil
}

// conflictResult translates lock and overlap failures and attaches
// alternatives to a detected conflict. excludeID is the appointment being
// moved, if any.
func (s *Service) conflictResult(ctx context.Context, err error, iv Interval, doctorID uuid.UUID, roomID, excludeID *uuid.UUID) error {
	var slotErr *SlotConflictError
	switch {
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		s.metrics.ObserveConflict("locked")
		return ErrSlotBeingBooked
	case errors.Is(err, ErrSlotTaken):
		s.metrics.ObserveConflict("constraint")
		return ErrSlotTaken
	case errors.As(err, &slotErr):
		s.metrics.ObserveConflict("detected")
		alternatives, searchErr := s.findNearby(ctx, iv, doctorID, roomID, excludeID)
		if searchErr != nil {
			s.logger.Warn().Err(searchErr).Msg("nearby search after conflict failed")
		}
		slotErr.Alternatives = alternatives
		return slotErr
	}
	return err
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// Lookup resolves an action token and reports what its holder may do.
func (s *Service) Lookup(ctx context.Context, token string) (*Appointment, Actions, error) {
	if token == "" {
		return nil, Actions{}, apperr.Validation("token is required")
	}
	a, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		return nil, Actions{}, err
	}
	return a, actionsFor(a.State), nil
}

// Confirm confirms an unconfirmed appointment through its token.
// Confirming a confirmed appointment is a no-op outcome, not an error.
func (s *Service) Confirm(ctx context.Context, token string) (*Outcome, error) {
	return s.confirm(ctx, token, true)
}

func (s *Service) confirm(ctx context.Context, token string, retry bool) (*Outcome, error) {
	a, _, err := s.Lookup(ctx, token)
	if err != nil {
		return nil, err
	}

	switch a.State {
	case StateConfirmed:
		return &Outcome{Appointment: a, Message: ErrAlreadyConfirmed.Msg}, nil
	case StateCancelled:
		return nil, apperr.State("a cancelled appointment cannot be confirmed")
	case StateCompleted:
		return nil, apperr.State("a completed appointment cannot be confirmed")
	}

	updated, err := s.transition(ctx, a, StateConfirmed)
	if errors.Is(err, ErrStaleUpdate) && retry {
		// lost a race with another confirm or cancel
		return s.confirm(ctx, token, false)
	}
	if err != nil {
		return nil, err
	}
	return &Outcome{Appointment: updated, Changed: true, Message: "appointment confirmed"}, nil
}

// Cancel cancels any non-cancelled appointment through its token.
func (s *Service) Cancel(ctx context.Context, token string) (*Outcome, error) {
	return s.cancel(ctx, token, true)
}

func (s *Service) cancel(ctx context.Context, token string, retry bool) (*Outcome, error) {
	a, _, err := s.Lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	if a.State == StateCancelled {
		return &Outcome{Appointment: a, Message: "appointment is already cancelled"}, nil
	}

	updated, err := s.transition(ctx, a, StateCancelled)
	if errors.Is(err, ErrStaleUpdate) && retry {
		return s.cancel(ctx, token, false)
	}
	if err != nil {
		return nil, err
	}
	return &Outcome{Appointment: updated, Changed: true, Message: "appointment cancelled"}, nil
}

func (s *Service) transition(ctx context.Context, a *Appointment, to State) (*Appointment, error) {
	updated, err := s.repo.SetState(ctx, a.ID, a.State, to, s.now())
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("appointment_id", a.ID.String()).
		Str("from", string(a.State)).
		Str("to", string(to)).
		Msg("appointment state changed")
	return updated, nil
}

// EnsureToken returns the appointment's action token, issuing one first
// when it has none.
func (s *Service) EnsureToken(ctx context.Context, a *Appointment) (string, error) {
	if a.Token != nil && *a.Token != "" {
		return *a.Token, nil
	}
	token, err := auth.GenerateToken(s.cfg.TokenBytes)
	if err != nil {
		return "", apperr.Dependency("generate appointment token", err)
	}
	if err := s.repo.SetToken(ctx, a.ID, token); err != nil {
		return "", fmt.Errorf("store appointment token: %w", err)
	}
	a.Token = &token
	return token, nil
}

// Upcoming lists the non-cancelled appointments starting in [from,to).
func (s *Service) Upcoming(ctx context.Context, from, to time.Time) ([]ReminderCandidate, error) {
	return s.repo.ListForReminders(ctx, from, to)
}
