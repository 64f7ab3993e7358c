package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/medical-office-scheduling/internal/app"
	"github.com/hackgods/medical-office-scheduling/internal/config"
	"github.com/hackgods/medical-office-scheduling/internal/db"
)

type seeder struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

func main() {
	cfg, err := config.Load()
	logger := app.NewLogger(cfg, "seed")
	if err != nil {
		logger.Fatal().Err(err).Msg("config load error")
	}
	logger.Info().Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	gofakeit.Seed(0)

	s := &seeder{pool: pool, logger: logger}
	bg := context.Background()

	if err := s.seedStaff(bg, getEnv("SEED_STAFF_EMAIL", "recepcion@consultorio.local")); err != nil {
		logger.Fatal().Err(err).Msg("seed staff")
	}
	coverages, err := s.seedCoverages(bg)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed coverages")
	}
	rooms, err := s.seedRooms(bg, getInt("SEED_ROOMS", 3))
	if err != nil {
		logger.Fatal().Err(err).Msg("seed rooms")
	}
	if err := s.seedDoctors(bg, getInt("SEED_DOCTORS", 10), rooms); err != nil {
		logger.Fatal().Err(err).Msg("seed doctors")
	}
	if err := s.seedPatients(bg, getInt("SEED_PATIENTS", 2000), coverages); err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}

	logger.Info().Msg("seed complete")
}

func (s *seeder) seedStaff(ctx context.Context, email string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO staff_users (id, email, name)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`, uuid.New(), strings.ToLower(email), gofakeit.Name())
	if err == nil {
		s.logger.Info().Str("email", email).Msg("staff user seeded")
	}
	return err
}

func (s *seeder) seedCoverages(ctx context.Context) ([]uuid.UUID, error) {
	names := map[string]string{
		"Particular":    "PART",
		"OSDE":          "OSDE",
		"Swiss Medical": "SWISS",
		"Galeno":        "GALENO",
		"IOMA":          "IOMA",
	}

	var ids []uuid.UUID
	for name, code := range names {
		id := uuid.New()
		tag, err := s.pool.Exec(ctx, `
			INSERT INTO coverages (id, name, code, color)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT DO NOTHING
		`, id, name, code, gofakeit.HexColor())
		if err != nil {
			return nil, err
		}
		if tag.RowsAffected() == 1 {
			ids = append(ids, id)
		}
	}

	s.logger.Info().Int("count", len(ids)).Msg("coverages seeded")
	return ids, nil
}

func (s *seeder) seedRooms(ctx context.Context, count int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for i := 1; i <= count; i++ {
		id := uuid.New()
		tag, err := s.pool.Exec(ctx, `
			INSERT INTO rooms (id, name, color)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING
		`, id, fmt.Sprintf("Consultorio %d", i), gofakeit.HexColor())
		if err != nil {
			return nil, err
		}
		if tag.RowsAffected() == 1 {
			ids = append(ids, id)
		}
	}

	s.logger.Info().Int("count", len(ids)).Msg("rooms seeded")
	return ids, nil
}

// seedDoctors gives each doctor a weekday agenda with a morning and an
// afternoon block, each in one of the rooms.
func (s *seeder) seedDoctors(ctx context.Context, count int, rooms []uuid.UUID) error {
	blocks := [][2]int{{9 * 60, 13 * 60}, {14 * 60, 18 * 60}}
	durations := []int{15, 20, 30, 45, 60}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for i := 0; i < count; i++ {
			id := uuid.New()
			if _, err := tx.Exec(ctx, `
				INSERT INTO doctors (id, name)
				VALUES ($1, $2)
			`, id, "Dr. "+gofakeit.Name()); err != nil {
				return err
			}

			for weekday := 1; weekday <= 5; weekday++ {
				if gofakeit.Number(0, 9) == 0 {
					continue
				}
				for _, b := range blocks {
					var roomID *uuid.UUID
					if len(rooms) > 0 {
						r := rooms[gofakeit.Number(0, len(rooms)-1)]
						roomID = &r
					}
					if _, err := tx.Exec(ctx, `
						INSERT INTO agenda_entries (id, doctor_id, weekday, start_minute, end_minute, room_id)
						VALUES ($1, $2, $3, $4, $5, $6)
					`, uuid.New(), id, weekday, b[0], b[1], roomID); err != nil {
						return err
					}
				}
			}

			minutes := durations[gofakeit.Number(0, len(durations)-1)]
			if _, err := tx.Exec(ctx, `
				INSERT INTO appointment_types (id, doctor_id, name, duration_minutes)
				VALUES ($1, $2, $3, $4)
			`, uuid.New(), id, fmt.Sprintf("Consulta %d min", minutes), minutes); err != nil {
				return err
			}
		}

		s.logger.Info().Int("count", count).Msg("doctors seeded")
		return nil
	})
}

func (s *seeder) seedPatients(ctx context.Context, count int, coverages []uuid.UUID) error {
	const batchSize = 500

	// phones and national ids are unique; derive them from the run and index
	base := time.Now().Unix() % 1_000_000

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			for i := offset; i < end; i++ {
				n := base*10_000 + int64(i)
				phone := fmt.Sprintf("+54911%08d", n%100_000_000)
				nationalID := strconv.FormatInt(20_000_000+n%70_000_000, 10)

				var coverageID *uuid.UUID
				if len(coverages) > 0 {
					c := coverages[gofakeit.Number(0, len(coverages)-1)]
					coverageID = &c
				}

				if _, err := tx.Exec(ctx, `
					INSERT INTO patients (id, name, surname, national_id, phone, email, coverage_id, source, created_by)
					VALUES ($1, $2, $3, $4, $5, $6, $7, 'staff', 'seed')
					ON CONFLICT DO NOTHING
				`, uuid.New(), gofakeit.FirstName(), gofakeit.LastName(), nationalID, phone,
					strings.ToLower(gofakeit.Email()), coverageID); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		s.logger.Info().Int("done", end).Int("total", count).Msg("patients seeded")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
