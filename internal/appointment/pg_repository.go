package appointment

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

const appointmentColumns = `
	id, desde, hasta, patient_id, doctor_id, room_id, coverage_id,
	appointment_type_id, state, token, penal, state_changed_at, notes,
	created_by, updated_by, created_at, updated_at`

type PgRepository struct {
	db db.DB
}

func NewPgRepository(pool db.DB) *PgRepository {
	return &PgRepository{db: pool}
}

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a     Appointment
		state *string
		penal *string
	)

	err := row.Scan(
		&a.ID,
		&a.Desde,
		&a.Hasta,
		&a.PatientID,
		&a.DoctorID,
		&a.RoomID,
		&a.CoverageID,
		&a.AppointmentTypeID,
		&state,
		&a.Token,
		&penal,
		&a.StateChangedAt,
		&a.Notes,
		&a.CreatedBy,
		&a.UpdatedBy,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.State = normalizeState(state)
	if penal != nil {
		a.Penal = Penal(*penal)
	}
	return &a, nil
}

// translateWriteErr maps constraint violations of appointment writes.
func translateWriteErr(err error) error {
	switch db.SQLState(err) {
	case db.CodeExclusionViolation:
		return ErrSlotTaken
	case db.CodeUniqueViolation:
		if db.ConstraintName(err) == "appointments_token_key" {
			return ErrDuplicateToken
		}
		return apperr.Conflict("appointment already exists")
	case db.CodeForeignKey:
		return apperr.Validation("referenced patient, doctor, room, coverage or type does not exist")
	}
	return err
}

func penalValue(p Penal) *string {
	if p == PenalNone {
		return nil
	}
	v := string(p)
	return &v
}

// Interface methods

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetByToken(ctx context.Context, token string) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+appointmentColumns+`
		FROM appointments
		WHERE token = $1
	`, token)
	a, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, ErrTokenNotFound
	}
	return a, err
}

// FindConflict returns the earliest non-cancelled appointment overlapping
// q, or nil. Touching endpoints do not overlap.
func (r *PgRepository) FindConflict(ctx context.Context, q ConflictQuery) (*Appointment, error) {
	if q.Resources.empty() {
		return nil, apperr.Validation("doctor or room is required")
	}

	row := r.db.QueryRow(ctx, `SELECT `+appointmentColumns+`
		FROM appointments
		WHERE coalesce(state, '') <> 'cancelado'
		  AND ($3::uuid IS NULL OR room_id = $3 OR ($4::uuid IS NOT NULL AND room_id IS NULL))
		  AND ($4::uuid IS NULL OR doctor_id = $4)
		  AND ($5::uuid IS NULL OR id <> $5)
		  AND desde < $2
		  AND hasta > $1
		ORDER BY desde ASC
		LIMIT 1
	`, q.Start, q.End, q.RoomID, q.DoctorID, q.ExcludeID)

	a, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find conflict: %w", err)
	}
	return a, nil
}

// ListBusy loads every non-cancelled interval overlapping [from,to) that
// FindConflict would report for the same resources and exclusion.
func (r *PgRepository) ListBusy(ctx context.Context, res Resources, from, to time.Time, excludeID *uuid.UUID) ([]Interval, error) {
	if res.empty() {
		return nil, apperr.Validation("doctor or room is required")
	}

	rows, err := r.db.Query(ctx, `
		SELECT desde, hasta
		FROM appointments
		WHERE coalesce(state, '') <> 'cancelado'
		  AND ($3::uuid IS NULL OR room_id = $3 OR ($4::uuid IS NOT NULL AND room_id IS NULL))
		  AND ($4::uuid IS NULL OR doctor_id = $4)
		  AND ($5::uuid IS NULL OR id <> $5)
		  AND desde < $2
		  AND hasta > $1
		ORDER BY desde ASC
	`, from, to, res.RoomID, res.DoctorID, excludeID)
	if err != nil {
		return nil, fmt.Errorf("list busy intervals: %w", err)
	}
	defer rows.Close()

	var result []Interval
	for rows.Next() {
		var iv Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, fmt.Errorf("scan busy interval: %w", err)
		}
		result = append(result, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) Create(ctx context.Context, a *Appointment) (*Appointment, error) {
	id := a.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO appointments (
			id, desde, hasta, patient_id, doctor_id, room_id, coverage_id,
			appointment_type_id, state, token, penal, state_changed_at, notes,
			created_by, updated_by, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), $12, $13, $13, now(), now())
		RETURNING `+appointmentColumns,
		id, a.Desde, a.Hasta, a.PatientID, a.DoctorID, a.RoomID, a.CoverageID,
		a.AppointmentTypeID, string(a.State), a.Token, penalValue(a.Penal), a.Notes, a.CreatedBy,
	)

	created, err := scanAppointment(row)
	if err != nil {
		return nil, translateWriteErr(err)
	}
	return created, nil
}

// Update writes every mutable field. The row must still carry
// expectedUpdatedAt, otherwise ErrStaleUpdate.
func (r *PgRepository) Update(ctx context.Context, a *Appointment, expectedUpdatedAt time.Time) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET desde = $2,
		    hasta = $3,
		    patient_id = $4,
		    doctor_id = $5,
		    room_id = $6,
		    coverage_id = $7,
		    appointment_type_id = $8,
		    state_changed_at = CASE WHEN coalesce(state, '') <> $9 THEN now() ELSE state_changed_at END,
		    state = $9,
		    penal = $10,
		    notes = $11,
		    updated_by = $12,
		    updated_at = now()
		WHERE id = $1
		  AND updated_at = $13
		RETURNING `+appointmentColumns,
		a.ID, a.Desde, a.Hasta, a.PatientID, a.DoctorID, a.RoomID, a.CoverageID,
		a.AppointmentTypeID, string(a.State), penalValue(a.Penal), a.Notes, a.UpdatedBy,
		expectedUpdatedAt,
	)

	updated, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		if _, getErr := r.GetByID(ctx, a.ID); getErr != nil {
			return nil, getErr
		}
		return nil, ErrStaleUpdate
	}
	if err != nil {
		return nil, translateWriteErr(err)
	}
	return updated, nil
}

// SetState moves an appointment from one state to another. Legacy values
// stored for Unconfirmed count as Unconfirmed. Returns ErrStaleUpdate when
// the row is no longer in from.
func (r *PgRepository) SetState(ctx context.Context, id uuid.UUID, from, to State, at time.Time) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET state = $2,
		    state_changed_at = $4,
		    updated_at = now()
		WHERE id = $1
		  AND (coalesce(state, '') = $3 OR ($3 = 'sin confirmar' AND coalesce(state, '') IN ('', 'pendiente')))
		RETURNING `+appointmentColumns,
		id, string(to), string(from), at,
	)

	updated, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, ErrStaleUpdate
	}
	if err != nil {
		return nil, translateWriteErr(err)
	}
	return updated, nil
}

func (r *PgRepository) SetToken(ctx context.Context, id uuid.UUID, token string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE appointments SET token = $2 WHERE id = $1
	`, id, token)
	if err != nil {
		return translateWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) PatientCoverage(ctx context.Context, patientID uuid.UUID) (*uuid.UUID, error) {
	var coverageID *uuid.UUID
	err := r.db.QueryRow(ctx, `
		SELECT coverage_id FROM patients WHERE id = $1
	`, patientID).Scan(&coverageID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("load patient coverage: %w", err)
	}
	return coverageID, nil
}

// ListForReminders returns the non-cancelled appointments starting in
// [from,to) joined with patient, doctor and room names.
func (r *PgRepository) ListForReminders(ctx context.Context, from, to time.Time) ([]ReminderCandidate, error) {
	rows, err := r.db.Query(ctx, `
		SELECT a.id, a.desde, a.hasta, a.patient_id, a.doctor_id, a.room_id, a.state, a.token,
		       p.name || ' ' || p.surname, p.phone, p.email, d.name, rm.name
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		JOIN doctors d ON d.id = a.doctor_id
		LEFT JOIN rooms rm ON rm.id = a.room_id
		WHERE coalesce(a.state, '') <> 'cancelado'
		  AND a.desde >= $1
		  AND a.desde < $2
		ORDER BY a.desde ASC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list reminder candidates: %w", err)
	}
	defer rows.Close()

	var result []ReminderCandidate
	for rows.Next() {
		var (
			c     ReminderCandidate
			state *string
		)
		if err := rows.Scan(
			&c.ID, &c.Desde, &c.Hasta, &c.PatientID, &c.DoctorID, &c.RoomID, &state, &c.Token,
			&c.PatientName, &c.Phone, &c.Email, &c.DoctorName, &c.RoomName,
		); err != nil {
			return nil, fmt.Errorf("scan reminder candidate: %w", err)
		}
		c.State = normalizeState(state)
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
