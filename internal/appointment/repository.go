package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/medical-office-scheduling/internal/apperr"
)

var (
	ErrAppointmentNotFound = apperr.NotFound("appointment not found")
	ErrPatientNotFound     = apperr.NotFound("patient not found")
	ErrTokenNotFound       = apperr.NotFound("token not found")
	ErrSlotTaken           = apperr.Conflict("slot no longer available, please retry")
	ErrStaleUpdate         = apperr.Conflict("appointment was modified concurrently, reload and retry")
	ErrDuplicateToken      = apperr.Conflict("appointment token already in use")
)

// Resources selects the doctor and/or room an interval query applies to.
// At least one must be set. With both set, a doctor's room-less
// appointments also count against the room query.
type Resources struct {
	DoctorID *uuid.UUID
	RoomID   *uuid.UUID
}

func (r Resources) empty() bool { return r.DoctorID == nil && r.RoomID == nil }

// ConflictQuery looks for a non-cancelled appointment overlapping Interval.
type ConflictQuery struct {
	Interval
	Resources
	ExcludeID *uuid.UUID
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetByToken(ctx context.Context, token string) (*Appointment, error)

	// Conflict checks and availability
	FindConflict(ctx context.Context, q ConflictQuery) (*Appointment, error)
	ListBusy(ctx context.Context, res Resources, from, to time.Time, excludeID *uuid.UUID) ([]Interval, error)

	// Creation and updates
	Create(ctx context.Context, a *Appointment) (*Appointment, error)
	Update(ctx context.Context, a *Appointment, expectedUpdatedAt time.Time) (*Appointment, error)
	SetState(ctx context.Context, id uuid.UUID, from, to State, at time.Time) (*Appointment, error)
	SetToken(ctx context.Context, id uuid.UUID, token string) error

	// Denormalisation lookups
	PatientCoverage(ctx context.Context, patientID uuid.UUID) (*uuid.UUID, error)

	// Reminder scheduler
	ListForReminders(ctx context.Context, from, to time.Time) ([]ReminderCandidate, error)
}
