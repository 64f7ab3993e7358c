package room

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/hackgods/medical-office-scheduling/internal/apperr"
	"github.com/hackgods/medical-office-scheduling/internal/db"
)

var (
	ErrRoomNotFound    = apperr.NotFound("room not found")
	ErrHasAppointments = apperr.Conflict("room has upcoming appointments")
	ErrDuplicateName   = apperr.Conflict("a room with this name already exists")
	ErrDetachOverlap   = apperr.Conflict("detaching past appointments from this room would overlap other appointments of the same doctor")
)

// Room is a consultation room (consultorio).
type Room struct {
	ID        uuid.UUID
	Name      string
	Phone     *string
	Email     *string
	Color     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Input struct {
	Name  string
	Phone *string
	Email *string
	Color *string
}

type Service struct {
	db     db.DB
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(pool db.DB, logger zerolog.Logger) *Service {
	return &Service{db: pool, logger: logger, now: time.Now}
}

const roomColumns = `id, name, phone, email, color, created_at, updated_at`

func scanRoom(row pgx.Row) (*Room, error) {
	var r Room
	err := row.Scan(&r.ID, &r.Name, &r.Phone, &r.Email, &r.Color, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return &r, nil
}

func translateWriteErr(err error) error {
	if db.SQLState(err) == db.CodeUniqueViolation {
		return ErrDuplicateName
	}
	return err
}

func (in Input) validate() (string, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", apperr.Validation("room name is required")
	}
	return name, nil
}

func (s *Service) Create(ctx context.Context, in Input) (*Room, error) {
	name, err := in.validate()
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO rooms (id, name, phone, email, color, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING `+roomColumns,
		uuid.New(), name, in.Phone, in.Email, in.Color,
	)
	r, err := scanRoom(row)
	if err != nil {
		return nil, translateWriteErr(err)
	}
	return r, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (*Room, error) {
	name, err := in.validate()
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRow(ctx, `
		UPDATE rooms
		SET name = $2, phone = $3, email = $4, color = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+roomColumns,
		id, name, in.Phone, in.Email, in.Color,
	)
	r, err := scanRoom(row)
	if err != nil {
		return nil, translateWriteErr(err)
	}
	return r, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Room, error) {
	return scanRoom(s.db.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id))
}

func (s *Service) List(ctx context.Context) ([]Room, error) {
	rows, err := s.db.Query(ctx, `SELECT `+roomColumns+` FROM rooms ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var result []Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes a room with no upcoming non-cancelled appointments.
// Agenda entries and past appointments that referenced it lose the room.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		var busy bool
		err := tx.QueryRow(ctx, `SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE room_id = $1 AND desde >= $2 AND coalesce(state, '') <> 'cancelado'
		)`, id, s.now()).Scan(&busy)
		if err != nil {
			return fmt.Errorf("check upcoming appointments: %w", err)
		}
		if busy {
			return ErrHasAppointments
		}

		if _, err := tx.Exec(ctx, `UPDATE agenda_entries SET room_id = NULL WHERE room_id = $1`, id); err != nil {
			return fmt.Errorf("detach agenda entries: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE appointments SET room_id = NULL WHERE room_id = $1`, id); err != nil {
			// two past appointments of one doctor in different rooms collapse
			// onto the same room-less key
			if db.SQLState(err) == db.CodeExclusionViolation {
				return ErrDetachOverlap
			}
			return fmt.Errorf("detach past appointments: %w", err)
		}

		tag, err := tx.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete room: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrRoomNotFound
		}

		s.logger.Info().Str("room_id", id.String()).Msg("room deleted")
		return nil
	})
}
