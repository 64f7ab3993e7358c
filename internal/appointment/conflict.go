package appointment

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hackgods/medical-office-scheduling/internal/apperr"
	redisclient "github.com/hackgods/medical-office-scheduling/internal/redis"
)

// Overlaps reports whether two half-open intervals share any instant.
// Touching endpoints do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// SlotConflictError is returned by Book and Update when the requested
// interval is taken. Alternatives holds the nearest free intervals.
type SlotConflictError struct {
	Conflict     *Appointment
	Alternatives []Interval
}

var errSlotConflict = apperr.Conflict("requested time overlaps an existing appointment")

func (e *SlotConflictError) Error() string {
	if e.Conflict == nil {
		return errSlotConflict.Msg
	}
	return fmt.Sprintf("%s (%s)", errSlotConflict.Msg, e.Conflict.ID)
}

func (e *SlotConflictError) Unwrap() error { return errSlotConflict }

// HasConflict returns the earliest non-cancelled appointment overlapping
// iv on the given resources, or nil when the interval is free.
func (s *Service) HasConflict(ctx context.Context, iv Interval, res Resources, excludeID *uuid.UUID) (*Appointment, error) {
	if err := iv.validate(); err != nil {
		return nil, err
	}
	if res.empty() {
		return nil, apperr.Validation("doctor or room is required")
	}
	return s.repo.FindConflict(ctx, ConflictQuery{Interval: iv, Resources: res, ExcludeID: excludeID})
}

func lockKeys(res Resources) []string {
	var keys []string
	if res.DoctorID != nil {
		keys = append(keys, redisclient.DoctorKey(*res.DoctorID))
	}
	if res.RoomID != nil {
		keys = append(keys, redisclient.RoomKey(*res.RoomID))
	}
	return keys
}
