package appointment

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/medical-office-scheduling/internal/apperr"
)

// State is the lifecycle state of an appointment. The values are the ones
// stored in the appointments.state column.
type State string

const (
	StateUnconfirmed State = "sin confirmar"
	StateConfirmed   State = "confirmado"
	StateCancelled   State = "cancelado"
	StateCompleted   State = "completo"
)

// legacy spellings still present in older rows
const legacyPending = "pendiente"

func (s State) Valid() bool {
	switch s {
	case StateUnconfirmed, StateConfirmed, StateCancelled, StateCompleted:
		return true
	}
	return false
}

// ParseState accepts a canonical state name from a request.
func ParseState(raw string) (State, error) {
	s := State(strings.TrimSpace(raw))
	if !s.Valid() {
		return "", apperr.Validation(fmt.Sprintf("unknown appointment state %q", raw))
	}
	return s, nil
}

// normalizeState maps a stored value to the closed enum. Legacy and empty
// values read as Unconfirmed.
func normalizeState(raw *string) State {
	if raw == nil {
		return StateUnconfirmed
	}
	v := strings.TrimSpace(strings.ToLower(*raw))
	switch v {
	case "", legacyPending:
		return StateUnconfirmed
	}
	s := State(v)
	if !s.Valid() {
		return StateUnconfirmed
	}
	return s
}

// Penal marks a no-show or late cancellation.
type Penal string

const (
	PenalNone Penal = ""
	PenalASA  Penal = "asa" // ausente sin aviso
	PenalCCR  Penal = "ccr" // cancelado con poco margen
)

func ParsePenal(raw string) (Penal, error) {
	p := Penal(strings.ToLower(strings.TrimSpace(raw)))
	switch p {
	case PenalNone, PenalASA, PenalCCR:
		return p, nil
	}
	return "", apperr.Validation(fmt.Sprintf("unknown penal %q", raw))
}

// Interval is a half-open [Start, End) span.
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) Duration() time.Duration { return i.End.Sub(i.Start) }

func (i Interval) validate() error {
	if i.Start.IsZero() || i.End.IsZero() {
		return apperr.Validation("desde and hasta are required")
	}
	if !i.Start.Before(i.End) {
		return apperr.Validation("desde must be before hasta")
	}
	return nil
}

type Appointment struct {
	ID                uuid.UUID
	Desde             time.Time
	Hasta             time.Time
	PatientID         uuid.UUID
	DoctorID          uuid.UUID
	RoomID            *uuid.UUID
	CoverageID        *uuid.UUID
	AppointmentTypeID *uuid.UUID
	State             State
	Token             *string
	Penal             Penal
	StateChangedAt    *time.Time
	Notes             *string
	CreatedBy         *string
	UpdatedBy         *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (a *Appointment) Interval() Interval { return Interval{Start: a.Desde, End: a.Hasta} }

// ReminderCandidate is an appointment joined with what a reminder renders.
type ReminderCandidate struct {
	Appointment
	PatientName string
	Phone       *string
	Email       *string
	DoctorName  string
	RoomName    *string
}

// Actions tells a token holder what they may still do.
type Actions struct {
	CanConfirm bool
	CanCancel  bool
}

func actionsFor(s State) Actions {
	return Actions{
		CanConfirm: s == StateUnconfirmed,
		CanCancel:  s != StateCancelled,
	}
}

// Outcome is the result of a token transition. Changed is false when the
// appointment was already in the requested state.
type Outcome struct {
	Appointment *Appointment
	Changed     bool
	Message     string
}
