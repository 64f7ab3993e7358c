package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weekdays(start, end time.Duration) []AgendaEntry {
	var out []AgendaEntry
	for wd := time.Monday; wd <= time.Friday; wd++ {
		out = append(out, AgendaEntry{Weekday: wd, Start: start, End: end})
	}
	return out
}

func TestExpandHolidays(t *testing.T) {
	set, err := ExpandHolidays([]string{"2024-06-20", " 2024-07-08|2024-07-10 ", ""})
	require.NoError(t, err)

	for _, d := range []string{"2024-06-20", "2024-07-08", "2024-07-09", "2024-07-10"} {
		assert.Contains(t, set, d)
	}
	assert.Len(t, set, 4)
}

func TestExpandHolidaysRejectsMalformed(t *testing.T) {
	for _, bad := range []string{"20-06-2024", "2024-07-10|2024-07-08", "2024-07-08|x", "2020-01-01|2024-01-01"} {
		_, err := ExpandHolidays([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestWorkingWindowsAndHolidays(t *testing.T) {
	loc := time.UTC
	cal, err := Build(DoctorCalendar{
		Agenda:   append(weekdays(14*time.Hour, 18*time.Hour), weekdays(9*time.Hour, 12*time.Hour)...),
		Holidays: []string{"2024-06-04"},
	}, []string{"2024-06-05|2024-06-06"}, loc)
	require.NoError(t, err)

	monday := time.Date(2024, 6, 3, 0, 0, 0, 0, loc)
	ws := cal.WorkingWindows(monday)
	require.Len(t, ws, 2)
	assert.Equal(t, 9*time.Hour, ws[0].Start, "windows are ordered")
	assert.Equal(t, 14*time.Hour, ws[1].Start)

	// doctor holiday and office range both remove every window
	for _, d := range []int{4, 5, 6} {
		day := time.Date(2024, 6, d, 10, 0, 0, 0, loc)
		assert.True(t, cal.IsHoliday(day))
		assert.Empty(t, cal.WorkingWindows(day))
	}

	saturday := time.Date(2024, 6, 8, 0, 0, 0, 0, loc)
	assert.False(t, cal.IsHoliday(saturday))
	assert.Empty(t, cal.WorkingWindows(saturday))
}

func TestHolidayUsesOfficeLocalDate(t *testing.T) {
	loc, err := time.LoadLocation("America/Argentina/Buenos_Aires")
	require.NoError(t, err)

	cal, err := Build(DoctorCalendar{Agenda: weekdays(9*time.Hour, 12*time.Hour)}, []string{"2024-06-03"}, loc)
	require.NoError(t, err)

	// 01:00 UTC on the 4th is still the 3rd in Buenos Aires (UTC-3)
	assert.True(t, cal.IsHoliday(time.Date(2024, 6, 4, 1, 0, 0, 0, time.UTC)))
	assert.False(t, cal.IsHoliday(time.Date(2024, 6, 4, 4, 0, 0, 0, time.UTC)))
}

func TestWindowOnAndWindowAt(t *testing.T) {
	loc := time.UTC
	room := uuid.New()
	cal, err := Build(DoctorCalendar{Agenda: []AgendaEntry{{Weekday: time.Monday, Start: 9 * time.Hour, End: 12 * time.Hour, RoomID: &room}}}, nil, loc)
	require.NoError(t, err)

	day := time.Date(2024, 6, 3, 0, 0, 0, 0, loc)
	start, end := cal.WorkingWindows(day)[0].On(day, loc)
	assert.Equal(t, time.Date(2024, 6, 3, 9, 0, 0, 0, loc), start)
	assert.Equal(t, time.Date(2024, 6, 3, 12, 0, 0, 0, loc), end)

	w, ok := cal.WindowAt(time.Date(2024, 6, 3, 11, 30, 0, 0, loc), time.Date(2024, 6, 3, 12, 0, 0, 0, loc))
	require.True(t, ok)
	assert.Equal(t, &room, w.RoomID)

	_, ok = cal.WindowAt(time.Date(2024, 6, 3, 11, 45, 0, 0, loc), time.Date(2024, 6, 3, 12, 15, 0, 0, loc))
	assert.False(t, ok)
}

func TestBuildRejectsInvertedWindow(t *testing.T) {
	_, err := Build(DoctorCalendar{Agenda: []AgendaEntry{{Weekday: time.Monday, Start: 12 * time.Hour, End: 9 * time.Hour}}}, nil, time.UTC)
	assert.Error(t, err)
}

func TestParseClock(t *testing.T) {
	d, err := ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, 9*time.Hour+30*time.Minute, d)

	d, err = ParseClock("24:00")
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, d)

	_, err = ParseClock("9.30")
	assert.Error(t, err)

	assert.Equal(t, "09:05", FormatClock(9*time.Hour+5*time.Minute))
}

func TestProviderWithPgSource(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	doctorID := uuid.New()
	mock.ExpectQuery("FROM doctors").
		WithArgs(doctorID).
		WillReturnRows(pgxmock.NewRows([]string{"holidays"}).AddRow([]string{"2024-06-04"}))
	mock.ExpectQuery("FROM agenda_entries").
		WithArgs(doctorID).
		WillReturnRows(pgxmock.NewRows([]string{"weekday", "start_minute", "end_minute", "room_id"}).
			AddRow(1, 540, 720, (*uuid.UUID)(nil)))
	mock.ExpectQuery("FROM configuration").
		WillReturnRows(pgxmock.NewRows([]string{"holidays"}).AddRow([]string{"2024-06-05"}))

	p := NewProvider(NewPgSource(mock), time.UTC)
	cal, err := p.Load(context.Background(), doctorID)
	require.NoError(t, err)

	ws := cal.WorkingWindows(time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC))
	require.Len(t, ws, 1)
	assert.Equal(t, 9*time.Hour, ws[0].Start)
	assert.Equal(t, 12*time.Hour, ws[0].End)
	assert.True(t, cal.IsHoliday(time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC)))
	assert.True(t, cal.IsHoliday(time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC)))
	assert.NoError(t, mock.ExpectationsWereMet())
}
