package patient

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

var patientCols = []string{
	"id", "name", "surname", "national_id", "phone", "email", "coverage_id", "notes", "source",
	"created_by", "updated_by", "created_at", "updated_at",
}

func str(s string) *string { return &s }

func patientRow(id uuid.UUID, phone *string) []any {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	var noStr *string
	var noID *uuid.UUID
	return []any{id, "Ana", "Pérez", noStr, phone, noStr, noID, noStr, str("whatsapp"), noStr, noStr, now, now}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"+54 9 11 2233-4455", "+5491122334455"},
		{"011 15-2233-4455", "+5491122334455"},
		{"+1 650-253-0000", "+16502530000"},
	}
	for _, tt := range tests {
		got, err := NormalizePhone(tt.raw, "AR")
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got)
	}

	_, err := NormalizePhone("12", "AR")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = NormalizePhone("not a phone", "AR")
	assert.Error(t, err)
}

func TestCreatePublicNormalizesAndChecksPhone(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("FROM patients WHERE phone = \\$1").
		WithArgs("+5491122334455", (*uuid.UUID)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("INSERT INTO patients").
		WillReturnRows(pgxmock.NewRows(patientCols).AddRow(patientRow(id, str("+5491122334455"))...))

	svc := NewService(NewPgRepository(mock), "AR", zerolog.Nop())
	got, err := svc.CreatePublic(context.Background(), Input{Name: " Ana ", Surname: "Pérez", Phone: str("011 15-2233-4455")})
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, SourceWhatsApp, got.Source)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePublicRequiresPhone(t *testing.T) {
	svc := NewService(nil, "AR", zerolog.Nop())
	_, err := svc.CreatePublic(context.Background(), Input{Name: "Ana", Surname: "Pérez"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestCreateRejectsDuplicatePhone(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM patients WHERE phone").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	svc := NewService(NewPgRepository(mock), "AR", zerolog.Nop())
	_, err = svc.Create(context.Background(), Input{Name: "Ana", Surname: "Pérez", Phone: str("+5491122334455")})
	assert.ErrorIs(t, err, ErrDuplicatePhone)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestUpdateExcludesSelfFromUniqueness(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("FROM patients WHERE id = \\$1").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(patientCols).AddRow(patientRow(id, nil)...))
	mock.ExpectQuery("FROM patients WHERE national_id = \\$1").
		WithArgs("30123456", &id).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	svc := NewService(NewPgRepository(mock), "AR", zerolog.Nop())
	_, err = svc.Update(context.Background(), id, Input{Name: "Ana", Surname: "Pérez", NationalID: str("30.123.456")})
	assert.ErrorIs(t, err, ErrDuplicateNational)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTranslatesUniqueViolation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO patients").
		WillReturnError(&pgconn.PgError{Code: db.CodeUniqueViolation, ConstraintName: "patients_phone_key"})

	svc := NewService(NewPgRepository(mock), "AR", zerolog.Nop())
	_, err = svc.Create(context.Background(), Input{Name: "Ana", Surname: "Pérez"})
	assert.ErrorIs(t, err, ErrDuplicatePhone)
}

func TestDeleteBlockedByUpcomingAppointments(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM patients WHERE id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(patientCols).AddRow(patientRow(id, nil)...))
	mock.ExpectQuery("FROM appointments").
		WithArgs(id, now).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	svc := NewService(NewPgRepository(mock), "AR", zerolog.Nop())
	svc.now = func() time.Time { return now }

	err = svc.Delete(context.Background(), id)
	assert.ErrorIs(t, err, ErrHasAppointments)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("FROM patients WHERE id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(patientCols).AddRow(patientRow(id, nil)...))
	mock.ExpectQuery("FROM appointments").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("DELETE FROM patients").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	svc := NewService(NewPgRepository(mock), "AR", zerolog.Nop())
	require.NoError(t, svc.Delete(context.Background(), id))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUnknown(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM patients WHERE id").WillReturnRows(pgxmock.NewRows(patientCols))

	_, err = NewService(NewPgRepository(mock), "AR", zerolog.Nop()).Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrPatientNotFound)
}
