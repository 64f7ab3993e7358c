package appointment

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/medical-office-scheduling/internal/calendar"
)

// Availability answers a "is this time free" request.
type Availability struct {
	Available    bool
	Conflict     *Appointment
	Alternatives []Interval
}

// CheckAvailability runs the conflict check and, when the interval is
// taken, the nearby search.
func (s *Service) CheckAvailability(ctx context.Context, iv Interval, doctorID uuid.UUID, roomID *uuid.UUID) (*Availability, error) {
	res := Resources{DoctorID: &doctorID, RoomID: roomID}

	conflict, err := s.HasConflict(ctx, iv, res, nil)
	if err != nil {
		return nil, err
	}
	if conflict == nil {
		return &Availability{Available: true}, nil
	}

	alternatives, err := s.FindNearby(ctx, iv, doctorID, roomID)
	if err != nil {
		return nil, err
	}
	return &Availability{Conflict: conflict, Alternatives: alternatives}, nil
}

// FindNearby returns up to MaxResults free intervals of the requested
// duration, ordered by distance from the requested start. Candidates sit
// on a grid of that duration anchored at each working window start.
func (s *Service) FindNearby(ctx context.Context, iv Interval, doctorID uuid.UUID, roomID *uuid.UUID) ([]Interval, error) {
	return s.findNearby(ctx, iv, doctorID, roomID, nil)
}

// findNearby ignores excludeID when collecting busy intervals, so an
// appointment being moved does not block its own slot.
func (s *Service) findNearby(ctx context.Context, iv Interval, doctorID uuid.UUID, roomID, excludeID *uuid.UUID) ([]Interval, error) {
	if err := iv.validate(); err != nil {
		return nil, err
	}
	started := time.Now()
	defer func() { s.metrics.ObserveSearch(time.Since(started)) }()

	cal, err := s.calendars.Load(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	loc := cal.Location()
	local := iv.Start.In(loc)
	anchor := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	from := anchor.AddDate(0, 0, -s.cfg.LookBackDays)
	to := anchor.AddDate(0, 0, s.cfg.LookAheadDays+1)

	busy, err := s.repo.ListBusy(ctx, Resources{DoctorID: &doctorID, RoomID: roomID}, from, to, excludeID)
	if err != nil {
		return nil, fmt.Errorf("load busy intervals: %w", err)
	}

	candidates := generateCandidates(cal, anchor, iv.Duration(), s.cfg, s.now(), busy)

	sort.SliceStable(candidates, func(i, j int) bool {
		di, dj := distance(candidates[i].Start, iv.Start), distance(candidates[j].Start, iv.Start)
		if di != dj {
			return di < dj
		}
		return candidates[i].Start.Before(candidates[j].Start)
	})

	if len(candidates) > s.cfg.MaxResults {
		candidates = candidates[:s.cfg.MaxResults]
	}
	return candidates, nil
}

// generateCandidates walks days outward from anchor (0, +1, -1, +2, ...).
// Once MaxCandidates is reached at offset k the walk still finishes offset
// k+1, whose starts can be nearer than some at offset k. Nothing at k+2 or
// beyond can be.
func generateCandidates(cal *calendar.Calendar, anchor time.Time, dur time.Duration, cfg Config, now time.Time, busy []Interval) []Interval {
	loc := cal.Location()
	out := make([]Interval, 0, cfg.MaxResults)
	limit := cfg.LookAheadDays
	if cfg.LookBackDays > limit {
		limit = cfg.LookBackDays
	}

	for off := 0; off <= limit; off++ {
		for _, sign := range []int{1, -1} {
			if off == 0 && sign < 0 {
				continue
			}
			delta := off * sign
			if delta > cfg.LookAheadDays || -delta > cfg.LookBackDays {
				continue
			}
			day := anchor.AddDate(0, 0, delta)
			for _, w := range cal.WorkingWindows(day) {
				ws, we := w.On(day, loc)
				for start := ws; !start.Add(dur).After(we); start = start.Add(dur) {
					if start.Before(now) {
						continue
					}
					c := Interval{Start: start, End: start.Add(dur)}
					if isBusy(c, busy) {
						continue
					}
					out = append(out, c)
				}
			}
		}
		if len(out) >= cfg.MaxCandidates && limit > off+1 {
			limit = off + 1
		}
	}
	return out
}

func isBusy(c Interval, busy []Interval) bool {
	for _, b := range busy {
		if Overlaps(c, b) {
			return true
		}
	}
	return false
}

func distance(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		return -d
	}
	return d
}
