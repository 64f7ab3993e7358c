package coverage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/medical-office-scheduling/internal/apperr"
	"github.com/hackgods/medical-office-scheduling/internal/db"
)

var (
	ErrCoverageNotFound = apperr.NotFound("coverage not found")
	ErrDuplicateName    = apperr.Conflict("a coverage with this name already exists")
	ErrDuplicateCode    = apperr.Conflict("a coverage with this code already exists")
)

// Coverage is a medical insurance plan (cobertura médica).
type Coverage struct {
	ID        uuid.UUID
	Name      string
	Code      string
	Enabled   bool
	Color     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Input struct {
	Name    string
	Code    string
	Enabled bool
	Color   *string
}

type Service struct {
	db db.DB
}

func NewService(pool db.DB) *Service {
	return &Service{db: pool}
}

const coverageColumns = `id, name, code, enabled, color, created_at, updated_at`

func scanCoverage(row pgx.Row) (*Coverage, error) {
	var c Coverage
	err := row.Scan(&c.ID, &c.Name, &c.Code, &c.Enabled, &c.Color, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCoverageNotFound
		}
		return nil, err
	}
	return &c, nil
}

func translateWriteErr(err error) error {
	if db.SQLState(err) != db.CodeUniqueViolation {
		return err
	}
	if db.ConstraintName(err) == "coverages_code_lower_key" {
		return ErrDuplicateCode
	}
	return ErrDuplicateName
}

// checkUnique compares name and code case-insensitively against every
// coverage except exclude.
func (s *Service) checkUnique(ctx context.Context, name, code string, exclude *uuid.UUID) error {
	var nameTaken, codeTaken bool
	err := s.db.QueryRow(ctx, `
		SELECT
			EXISTS (SELECT 1 FROM coverages WHERE lower(name) = lower($1) AND ($3::uuid IS NULL OR id <> $3)),
			EXISTS (SELECT 1 FROM coverages WHERE lower(code) = lower($2) AND ($3::uuid IS NULL OR id <> $3))
	`, name, code, exclude).Scan(&nameTaken, &codeTaken)
	if err != nil {
		return fmt.Errorf("check coverage uniqueness: %w", err)
	}
	switch {
	case nameTaken:
		return ErrDuplicateName
	case codeTaken:
		return ErrDuplicateCode
	}
	return nil
}

func (in Input) normalized() (Input, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Code = strings.TrimSpace(in.Code)
	if in.Name == "" || in.Code == "" {
		return in, apperr.Validation("coverage name and code are required")
	}
	return in, nil
}

func (s *Service) Create(ctx context.Context, in Input) (*Coverage, error) {
	in, err := in.normalized()
	if err != nil {
		return nil, err
	}
	if err := s.checkUnique(ctx, in.Name, in.Code, nil); err != nil {
		return nil, err
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO coverages (id, name, code, enabled, color, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING `+coverageColumns,
		uuid.New(), in.Name, in.Code, in.Enabled, in.Color,
	)
	c, err := scanCoverage(row)
	if err != nil {
		return nil, translateWriteErr(err)
	}
	return c, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (*Coverage, error) {
	in, err := in.normalized()
	if err != nil {
		return nil, err
	}
	if err := s.checkUnique(ctx, in.Name, in.Code, &id); err != nil {
		return nil, err
	}

	row := s.db.QueryRow(ctx, `
		UPDATE coverages
		SET name = $2, code = $3, enabled = $4, color = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+coverageColumns,
		id, in.Name, in.Code, in.Enabled, in.Color,
	)
	c, err := scanCoverage(row)
	if err != nil {
		return nil, translateWriteErr(err)
	}
	return c, nil
}

func (s *Service) List(ctx context.Context, enabledOnly bool) ([]Coverage, error) {
	rows, err := s.db.Query(ctx, `SELECT `+coverageColumns+`
		FROM coverages
		WHERE NOT $1 OR enabled
		ORDER BY name
	`, enabledOnly)
	if err != nil {
		return nil, fmt.Errorf("list coverages: %w", err)
	}
	defer rows.Close()

	var result []Coverage
	for rows.Next() {
		c, err := scanCoverage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
