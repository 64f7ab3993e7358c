package room

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/medical-office-scheduling/internal/apperr"
	"github.com/hackgods/medical-office-scheduling/internal/db"
)

func newMockService(t *testing.T) (*Service, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	svc := NewService(mock, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return svc, mock
}

func TestDeleteBlockedByUpcomingAppointments(t *testing.T) {
	svc, mock := newMockService(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM appointments").
		WithArgs(id, svc.now()).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	err := svc.Delete(context.Background(), id)
	assert.ErrorIs(t, err, ErrHasAppointments)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteDetachesAgendaInOneTransaction(t *testing.T) {
	svc, mock := newMockService(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM appointments").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("UPDATE agenda_entries SET room_id = NULL").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))
	mock.ExpectExec("UPDATE appointments SET room_id = NULL").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec("DELETE FROM rooms").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	require.NoError(t, svc.Delete(context.Background(), id))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteDetachOverlapIsConflict(t *testing.T) {
	svc, mock := newMockService(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM appointments").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("UPDATE agenda_entries").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE appointments SET room_id = NULL").
		WithArgs(id).
		WillReturnError(&pgconn.PgError{Code: db.CodeExclusionViolation, ConstraintName: "appointments_no_overlap"})
	mock.ExpectRollback()

	err := svc.Delete(context.Background(), id)
	assert.ErrorIs(t, err, ErrDetachOverlap)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUnknownRoom(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM appointments").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("UPDATE agenda_entries").WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec("UPDATE appointments").WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec("DELETE FROM rooms").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectRollback()

	err := svc.Delete(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestCreate(t *testing.T) {
	svc, mock := newMockService(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	id := uuid.New()
	color := "#3366ff"

	mock.ExpectQuery("INSERT INTO rooms").
		WithArgs(pgxmock.AnyArg(), "Consultorio 1", (*string)(nil), (*string)(nil), &color).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "phone", "email", "color", "created_at", "updated_at"}).
			AddRow(id, "Consultorio 1", (*string)(nil), (*string)(nil), &color, now, now))

	r, err := svc.Create(context.Background(), Input{Name: "  Consultorio 1 ", Color: &color})
	require.NoError(t, err)
	assert.Equal(t, id, r.ID)
	assert.Equal(t, "#3366ff", *r.Color)
}

func TestCreateValidationAndDuplicate(t *testing.T) {
	svc, mock := newMockService(t)

	_, err := svc.Create(context.Background(), Input{Name: " "})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	mock.ExpectQuery("INSERT INTO rooms").
		WillReturnError(&pgconn.PgError{Code: db.CodeUniqueViolation, ConstraintName: "rooms_name_key"})
	_, err = svc.Create(context.Background(), Input{Name: "Consultorio 1"})
	assert.ErrorIs(t, err, ErrDuplicateName)
}
