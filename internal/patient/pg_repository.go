package patient

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

const patientColumns = `id, name, surname, national_id, phone, email, coverage_id, notes, source,
	created_by, updated_by, created_at, updated_at`

type PgRepository struct {
	db db.DB
}

func NewPgRepository(pool db.DB) *PgRepository {
	return &PgRepository{db: pool}
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var (
		p      Patient
		source *string
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Surname, &p.NationalID, &p.Phone, &p.Email, &p.CoverageID, &p.Notes, &source,
		&p.CreatedBy, &p.UpdatedBy, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	p.Source = SourceStaff
	if source != nil && *source != "" {
		p.Source = Source(*source)
	}
	return &p, nil
}

func translateWriteErr(err error) error {
	if db.SQLState(err) == db.CodeUniqueViolation {
		switch db.ConstraintName(err) {
		case "patients_phone_key":
			return ErrDuplicatePhone
		case "patients_national_id_key":
			return ErrDuplicateNational
		}
		return apperr.Conflict("patient already exists")
	}
	if db.SQLState(err) == db.CodeForeignKey {
		return apperr.Validation("coverage does not exist")
	}
	return err
}

func (r *PgRepository) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.db.QueryRow(ctx, `SELECT `+patientColumns+` FROM patients WHERE id = $1`, id)
	return scanPatient(row)
}

func (r *PgRepository) List(ctx context.Context, search string, limit, offset int) ([]Patient, error) {
	rows, err := r.db.Query(ctx, `SELECT `+patientColumns+`
		FROM patients
		WHERE $1 = ''
		   OR name ILIKE '%' || $1 || '%'
		   OR surname ILIKE '%' || $1 || '%'
		   OR phone LIKE '%' || $1 || '%'
		   OR national_id LIKE '%' || $1 || '%'
		ORDER BY surname, name
		LIMIT $2 OFFSET $3
	`, search, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	var result []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) Create(ctx context.Context, p *Patient) (*Patient, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO patients (id, name, surname, national_id, phone, email, coverage_id, notes, source,
		                      created_by, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		RETURNING `+patientColumns,
		uuid.New(), p.Name, p.Surname, p.NationalID, p.Phone, p.Email, p.CoverageID, p.Notes, string(p.Source),
		p.CreatedBy, p.UpdatedBy,
	)
	created, err := scanPatient(row)
	if err != nil {
		return nil, translateWriteErr(err)
	}
	return created, nil
}

func (r *PgRepository) Update(ctx context.Context, p *Patient) (*Patient, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE patients
		SET name = $2, surname = $3, national_id = $4, phone = $5, email = $6,
		    coverage_id = $7, notes = $8, updated_by = $9, updated_at = now()
		WHERE id = $1
		RETURNING `+patientColumns,
		p.ID, p.Name, p.Surname, p.NationalID, p.Phone, p.Email, p.CoverageID, p.Notes, p.UpdatedBy,
	)
	updated, err := scanPatient(row)
	if err != nil {
		return nil, translateWriteErr(err)
	}
	return updated, nil
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

func (r *PgRepository) PhoneTaken(ctx context.Context, phone string, exclude *uuid.UUID) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (
		SELECT 1 FROM patients WHERE phone = $1 AND ($2::uuid IS NULL OR id <> $2)
	)`, phone, exclude)
}

func (r *PgRepository) NationalIDTaken(ctx context.Context, nationalID string, exclude *uuid.UUID) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (
		SELECT 1 FROM patients WHERE national_id = $1 AND ($2::uuid IS NULL OR id <> $2)
	)`, nationalID, exclude)
}

func (r *PgRepository) HasFutureAppointments(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (
		SELECT 1 FROM appointments
		WHERE patient_id = $1 AND desde >= $2 AND coalesce(state, '') <> 'cancelado'
	)`, id, now)
}

func (r *PgRepository) exists(ctx context.Context, sql string, args ...any) (bool, error) {
	var ok bool
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}
