package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/medical-office-scheduling/internal/apperr"
	"github.com/hackgods/medical-office-scheduling/internal/db"
)

var appointmentCols = []string{
	"id", "desde", "hasta", "patient_id", "doctor_id", "room_id", "coverage_id",
	"appointment_type_id", "state", "token", "penal", "state_changed_at", "notes",
	"created_by", "updated_by", "created_at", "updated_at",
}

func appointmentRow(id uuid.UUID, desde time.Time, state *string) []any {
	var none *uuid.UUID
	var noStr *string
	var noTime *time.Time
	return []any{
		id, desde, desde.Add(30 * time.Minute), uuid.New(), uuid.New(), none, none,
		none, state, noStr, noStr, noTime, noStr,
		noStr, noStr, desde, desde,
	}
}

func strPtr(s string) *string { return &s }

func TestPgFindConflictNoRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	doctorID := uuid.New()
	start := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)

	mock.ExpectQuery("FROM appointments").
		WithArgs(start, end, (*uuid.UUID)(nil), &doctorID, (*uuid.UUID)(nil)).
		WillReturnRows(pgxmock.NewRows(appointmentCols))

	repo := NewPgRepository(mock)
	got, err := repo.FindConflict(context.Background(), ConflictQuery{
		Interval:  Interval{Start: start, End: end},
		Resources: Resources{DoctorID: &doctorID},
	})
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgFindConflictNormalizesLegacyState(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	doctorID := uuid.New()
	start := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("coalesce\\(state, ''\\) <> 'cancelado'").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(appointmentCols).AddRow(appointmentRow(id, start, strPtr("pendiente"))...))

	repo := NewPgRepository(mock)
	got, err := repo.FindConflict(context.Background(), ConflictQuery{
		Interval:  Interval{Start: start, End: start.Add(time.Hour)},
		Resources: Resources{DoctorID: &doctorID},
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, StateUnconfirmed, got.State)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgFindConflictRequiresResource(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewPgRepository(mock).FindConflict(context.Background(), ConflictQuery{})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestPgCreateTranslatesExclusionViolation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO appointments").
		WillReturnError(&pgconn.PgError{Code: db.CodeExclusionViolation, ConstraintName: "appointments_no_overlap"})

	start := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	_, err = NewPgRepository(mock).Create(context.Background(), &Appointment{
		Desde: start, Hasta: start.Add(30 * time.Minute),
		PatientID: uuid.New(), DoctorID: uuid.New(), State: StateUnconfirmed,
	})
	assert.ErrorIs(t, err, ErrSlotTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCreateTranslatesDuplicateToken(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO appointments").
		WillReturnError(&pgconn.PgError{Code: db.CodeUniqueViolation, ConstraintName: "appointments_token_key"})

	start := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	_, err = NewPgRepository(mock).Create(context.Background(), &Appointment{Desde: start, Hasta: start.Add(time.Hour)})
	assert.ErrorIs(t, err, ErrDuplicateToken)
}

func TestPgGetByTokenUnknown(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("WHERE token = \\$1").
		WithArgs("nope").
		WillReturnRows(pgxmock.NewRows(appointmentCols))

	_, err = NewPgRepository(mock).GetByToken(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrTokenNotFound)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestPgSetStateLostRace(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	now := time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC)
	mock.ExpectQuery("UPDATE appointments").
		WithArgs(id, "confirmado", "sin confirmar", now).
		WillReturnRows(pgxmock.NewRows(appointmentCols))

	_, err = NewPgRepository(mock).SetState(context.Background(), id, StateUnconfirmed, StateConfirmed, now)
	assert.ErrorIs(t, err, ErrStaleUpdate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgUpdateStaleVersusMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	start := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("UPDATE appointments").WillReturnRows(pgxmock.NewRows(appointmentCols))
	mock.ExpectQuery("WHERE id = \\$1").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(appointmentCols).AddRow(appointmentRow(id, start, strPtr("confirmado"))...))

	_, err = NewPgRepository(mock).Update(context.Background(), &Appointment{ID: id, Desde: start, Hasta: start.Add(time.Hour)}, start)
	assert.ErrorIs(t, err, ErrStaleUpdate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgSetTokenMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec("UPDATE appointments SET token").
		WithArgs(id, "t0k").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = NewPgRepository(mock).SetToken(context.Background(), id, "t0k")
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestPgListBusy(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	doctorID := uuid.New()
	from := time.Date(2024, 5, 27, 3, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 22)
	s1 := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT desde, hasta").
		WithArgs(from, to, (*uuid.UUID)(nil), &doctorID, (*uuid.UUID)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"desde", "hasta"}).AddRow(s1, s1.Add(30*time.Minute)))

	got, err := NewPgRepository(mock).ListBusy(context.Background(), Resources{DoctorID: &doctorID}, from, to, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, s1, got[0].Start)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRoomQueriesIncludeDoctorRoomlessRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	doctorID, roomID := uuid.New(), uuid.New()
	start := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)
	roomless := `room_id = \$3 OR \(\$4::uuid IS NOT NULL AND room_id IS NULL\)`

	mock.ExpectQuery(roomless).
		WithArgs(start, end, &roomID, &doctorID, (*uuid.UUID)(nil)).
		WillReturnRows(pgxmock.NewRows(appointmentCols).AddRow(appointmentRow(uuid.New(), start, strPtr("confirmado"))...))
	mock.ExpectQuery(roomless).
		WithArgs(start, end, &roomID, &doctorID, (*uuid.UUID)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"desde", "hasta"}).AddRow(start, end))

	repo := NewPgRepository(mock)
	res := Resources{DoctorID: &doctorID, RoomID: &roomID}

	conflict, err := repo.FindConflict(context.Background(), ConflictQuery{Interval: Interval{Start: start, End: end}, Resources: res})
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Nil(t, conflict.RoomID)

	busy, err := repo.ListBusy(context.Background(), res, start, end, nil)
	require.NoError(t, err)
	assert.Len(t, busy, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgListBusyExcludesAppointment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	doctorID, movingID := uuid.New(), uuid.New()
	from := time.Date(2024, 5, 27, 3, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 22)

	mock.ExpectQuery(`id <> \$5`).
		WithArgs(from, to, (*uuid.UUID)(nil), &doctorID, &movingID).
		WillReturnRows(pgxmock.NewRows([]string{"desde", "hasta"}))

	got, err := NewPgRepository(mock).ListBusy(context.Background(), Resources{DoctorID: &doctorID}, from, to, &movingID)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNormalizeState(t *testing.T) {
	tests := []struct {
		raw  *string
		want State
	}{
		{nil, StateUnconfirmed},
		{strPtr(""), StateUnconfirmed},
		{strPtr("pendiente"), StateUnconfirmed},
		{strPtr("sin confirmar"), StateUnconfirmed},
		{strPtr("Confirmado"), StateConfirmed},
		{strPtr("cancelado"), StateCancelled},
		{strPtr("completo"), StateCompleted},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeState(tt.raw))
	}

	_, err := ParseState("pendiente")
	assert.Error(t, err)
	s, err := ParseState("confirmado")
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, s)
}
