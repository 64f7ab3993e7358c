// Package calendar answers when a doctor works: weekly agenda windows minus
// the doctor's and the office's holidays.
package calendar

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/medical-office-scheduling/internal/apperr"
)

const (
	dateLayout = "2006-01-02"
	// maxHolidayRangeDays bounds how many dates one range entry expands to.
	maxHolidayRangeDays = 731
)

// Window is a [Start,End) time of day, as offsets from local midnight.
type Window struct {
	Start  time.Duration
	End    time.Duration
	RoomID *uuid.UUID
}

// On materialises the window on the given day in loc.
func (w Window) On(day time.Time, loc *time.Location) (time.Time, time.Time) {
	d := day.In(loc)
	return atOffset(d, w.Start, loc), atOffset(d, w.End, loc)
}

func atOffset(d time.Time, off time.Duration, loc *time.Location) time.Time {
	minutes := int(off / time.Minute)
	return time.Date(d.Year(), d.Month(), d.Day(), minutes/60, minutes%60, 0, 0, loc)
}

// AgendaEntry is one weekly recurring working window of a doctor.
type AgendaEntry struct {
	Weekday time.Weekday
	Start   time.Duration
	End     time.Duration
	RoomID  *uuid.UUID
}

// DoctorCalendar is the raw calendar configuration of a doctor.
type DoctorCalendar struct {
	DoctorID uuid.UUID
	Agenda   []AgendaEntry
	Holidays []string
}

// Source loads raw calendar configuration.
type Source interface {
	DoctorCalendar(ctx context.Context, doctorID uuid.UUID) (DoctorCalendar, error)
	OfficeHolidays(ctx context.Context) ([]string, error)
}

// Calendar is a loaded, expanded snapshot for one doctor.
type Calendar struct {
	loc      *time.Location
	weekly   map[time.Weekday][]Window
	holidays map[string]struct{}
}

// Build validates the agenda and expands holiday ranges.
func Build(dc DoctorCalendar, officeHolidays []string, loc *time.Location) (*Calendar, error) {
	if loc == nil {
		loc = time.UTC
	}

	holidays, err := ExpandHolidays(append(append([]string{}, dc.Holidays...), officeHolidays...))
	if err != nil {
		return nil, err
	}

	weekly := make(map[time.Weekday][]Window)
	for _, e := range dc.Agenda {
		if e.Start < 0 || e.End > 24*time.Hour || e.Start >= e.End {
			return nil, apperr.Validation(fmt.Sprintf("invalid agenda window %s-%s on %s", FormatClock(e.Start), FormatClock(e.End), e.Weekday))
		}
		weekly[e.Weekday] = append(weekly[e.Weekday], Window{Start: e.Start, End: e.End, RoomID: e.RoomID})
	}
	for wd := range weekly {
		ws := weekly[wd]
		sort.SliceStable(ws, func(i, j int) bool { return ws[i].Start < ws[j].Start })
	}

	return &Calendar{loc: loc, weekly: weekly, holidays: holidays}, nil
}

func (c *Calendar) Location() *time.Location { return c.loc }

// IsHoliday reports whether the local date of day is excluded.
func (c *Calendar) IsHoliday(day time.Time) bool {
	_, ok := c.holidays[day.In(c.loc).Format(dateLayout)]
	return ok
}

// WorkingWindows returns the ordered windows of the local date of day.
// Holidays have none.
func (c *Calendar) WorkingWindows(day time.Time) []Window {
	if c.IsHoliday(day) {
		return nil
	}
	ws := c.weekly[day.In(c.loc).Weekday()]
	out := make([]Window, len(ws))
	copy(out, ws)
	return out
}

// WindowAt returns the working window containing [start,end), if any.
func (c *Calendar) WindowAt(start, end time.Time) (Window, bool) {
	for _, w := range c.WorkingWindows(start) {
		ws, we := w.On(start, c.loc)
		if !start.Before(ws) && !end.After(we) {
			return w, true
		}
	}
	return Window{}, false
}

// ExpandHolidays turns "YYYY-MM-DD" and inclusive "YYYY-MM-DD|YYYY-MM-DD"
// entries into a set of dates.
func ExpandHolidays(entries []string) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(entries))
	for _, raw := range entries {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}

		from, to, isRange := strings.Cut(entry, "|")
		start, err := time.Parse(dateLayout, strings.TrimSpace(from))
		if err != nil {
			return nil, apperr.Validation(fmt.Sprintf("invalid holiday %q", raw))
		}
		if !isRange {
			out[start.Format(dateLayout)] = struct{}{}
			continue
		}

		end, err := time.Parse(dateLayout, strings.TrimSpace(to))
		if err != nil {
			return nil, apperr.Validation(fmt.Sprintf("invalid holiday range %q", raw))
		}
		if end.Before(start) {
			return nil, apperr.Validation(fmt.Sprintf("holiday range %q ends before it starts", raw))
		}
		if end.Sub(start) > maxHolidayRangeDays*24*time.Hour {
			return nil, apperr.Validation(fmt.Sprintf("holiday range %q is too long", raw))
		}
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			out[d.Format(dateLayout)] = struct{}{}
		}
	}
	return out, nil
}

// ParseClock parses "HH:MM" into an offset from midnight. "24:00" is
// accepted as the end of the day.
func ParseClock(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "24:00" {
		return 24 * time.Hour, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, apperr.Validation(fmt.Sprintf("invalid time of day %q", s))
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func FormatClock(d time.Duration) string {
	m := int(d / time.Minute)
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// Provider loads calendars from a Source.
type Provider struct {
	src Source
	loc *time.Location
}

func NewProvider(src Source, loc *time.Location) *Provider {
	if loc == nil {
		loc = time.UTC
	}
	return &Provider{src: src, loc: loc}
}

func (p *Provider) Location() *time.Location { return p.loc }

// Load reads and expands a doctor's calendar once.
func (p *Provider) Load(ctx context.Context, doctorID uuid.UUID) (*Calendar, error) {
	dc, err := p.src.DoctorCalendar(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("load doctor calendar: %w", err)
	}
	office, err := p.src.OfficeHolidays(ctx)
	if err != nil {
		return nil, fmt.Errorf("load office holidays: %w", err)
	}
	return Build(dc, office, p.loc)
}

func (p *Provider) WorkingWindows(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]Window, error) {
	cal, err := p.Load(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	return cal.WorkingWindows(day), nil
}

func (p *Provider) IsHoliday(ctx context.Context, doctorID uuid.UUID, day time.Time) (bool, error) {
	cal, err := p.Load(ctx, doctorID)
	if err != nil {
		return false, err
	}
	return cal.IsHoliday(day), nil
}
