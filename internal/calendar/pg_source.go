package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/medical-office-scheduling/internal/apperr"
	"github.com/hackgods/medical-office-scheduling/internal/db"
)

var ErrDoctorNotFound = apperr.NotFound("doctor not found")

// PgSource reads agendas and holiday lists from Postgres.
type PgSource struct {
	db db.DB
}

func NewPgSource(pool db.DB) *PgSource {
	return &PgSource{db: pool}
}

func (s *PgSource) DoctorCalendar(ctx context.Context, doctorID uuid.UUID) (DoctorCalendar, error) {
	dc := DoctorCalendar{DoctorID: doctorID}

	err := s.db.QueryRow(ctx, `
		SELECT coalesce(holidays, '{}')
		FROM doctors
		WHERE id = $1
	`, doctorID).Scan(&dc.Holidays)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DoctorCalendar{}, ErrDoctorNotFound
		}
		return DoctorCalendar{}, fmt.Errorf("load doctor holidays: %w", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT weekday, start_minute, end_minute, room_id
		FROM agenda_entries
		WHERE doctor_id = $1
		ORDER BY weekday, start_minute
	`, doctorID)
	if err != nil {
		return DoctorCalendar{}, fmt.Errorf("load agenda: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			weekday, startMin, endMin int
			roomID                    *uuid.UUID
		)
		if err := rows.Scan(&weekday, &startMin, &endMin, &roomID); err != nil {
			return DoctorCalendar{}, fmt.Errorf("scan agenda entry: %w", err)
		}
		dc.Agenda = append(dc.Agenda, AgendaEntry{
			Weekday: time.Weekday(weekday),
			Start:   time.Duration(startMin) * time.Minute,
			End:     time.Duration(endMin) * time.Minute,
			RoomID:  roomID,
		})
	}
	if err := rows.Err(); err != nil {
		return DoctorCalendar{}, fmt.Errorf("iterate agenda: %w", err)
	}

	return dc, nil
}

func (s *PgSource) OfficeHolidays(ctx context.Context) ([]string, error) {
	var holidays []string
	err := s.db.QueryRow(ctx, `
		SELECT coalesce(holidays, '{}') FROM configuration WHERE id = 1
	`).Scan(&holidays)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load office holidays: %w", err)
	}
	return holidays, nil
}
