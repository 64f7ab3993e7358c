package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/medical-office-scheduling/internal/app"
	"github.com/hackgods/medical-office-scheduling/internal/auth"
	"github.com/hackgods/medical-office-scheduling/internal/calendar"
	"github.com/hackgods/medical-office-scheduling/internal/config"
	"github.com/hackgods/medical-office-scheduling/internal/db"
)

type SimConfig struct {
	APIBaseURL        string
	Duration          time.Duration
	Workers           int
	BookingRatio      float64
	ConfirmRatio      float64
	AvailabilityRatio float64
	PatientLimit      int
	DoctorLimit       int
	SlotLimit         int
	SlotLength        time.Duration
	Days              int
	PostgresDSN       string
	JWTSecret         string
	Location          *time.Location
}

type slot struct {
	DoctorID uuid.UUID
	Start    time.Time
	End      time.Time
}

type booked struct {
	ID    uuid.UUID
	Token string
}

type DataPool struct {
	Patients     []uuid.UUID
	Slots        []slot
	mu           sync.RWMutex
	appointments []booked
}

func (dp *DataPool) AddAppointment(b booked) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, b)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (booked, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return booked{}, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Booking      OperationMetrics
	Confirm      OperationMetrics
	Availability OperationMetrics
	ReadByID     OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	token   string
	metrics Metrics
	logger  zerolog.Logger
}

func main() {
	cfg, baseCfg := loadConfig()
	logger := app.NewLogger(baseCfg, "simulate")
	if err := validateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("confirm", cfg.ConfirmRatio).
		Float64("availability", cfg.AvailabilityRatio).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}
	logger.Info().Int("patients", len(dataPool.Patients)).Int("slots", len(dataPool.Slots)).Msg("data pool loaded")

	token, err := auth.NewSigner(cfg.JWTSecret).Issue("simulator", auth.AudienceStaff, "simulator@localhost", cfg.Duration+time.Hour)
	if err != nil {
		logger.Fatal().Err(err).Msg("issue staff token")
	}

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		token:  token,
		logger: logger,
	}

	sim.Run()
	sim.PrintReport()

	overlaps, err := countOverlaps(context.Background(), pgPool)
	if err != nil {
		logger.Fatal().Err(err).Msg("overlap check")
	}
	if overlaps > 0 {
		logger.Error().Int("pairs", overlaps).Msg("double bookings detected")
		os.Exit(1)
	}
	logger.Info().Msg("no double bookings detected")
}

func loadConfig() (SimConfig, config.Config) {
	baseCfg, err := config.Load()
	if err != nil {
		logger := app.NewLogger(config.Config{}, "simulate")
		logger.Fatal().Err(err).Msg("failed to load base config")
	}

	cfg := SimConfig{
		APIBaseURL:        getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:          getDuration("SIM_DURATION", 30*time.Second),
		Workers:           getInt("SIM_WORKERS", 10),
		BookingRatio:      getFloat("SIM_BOOKING_RATIO", 0.5),
		ConfirmRatio:      getFloat("SIM_CONFIRM_RATIO", 0.2),
		AvailabilityRatio: getFloat("SIM_AVAILABILITY_RATIO", 0.3),
		PatientLimit:      getInt("SIM_PATIENT_LIMIT", 4000),
		DoctorLimit:       getInt("SIM_DOCTOR_LIMIT", 10),
		SlotLimit:         getInt("SIM_SLOT_LIMIT", 400),
		SlotLength:        getDuration("SIM_SLOT_LENGTH", 30*time.Minute),
		Days:              getInt("SIM_DAYS", 7),
		PostgresDSN:       baseCfg.PostgresDSN,
		JWTSecret:         baseCfg.JWTSecret,
		Location:          baseCfg.Timezone,
	}

	total := cfg.BookingRatio + cfg.ConfirmRatio + cfg.AvailabilityRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.ConfirmRatio /= total
		cfg.AvailabilityRatio /= total
	}

	return cfg, baseCfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required to call staff endpoints")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.SlotLength <= 0 {
		return fmt.Errorf("SIM_SLOT_LENGTH must be > 0")
	}
	return nil
}

// loadDataPool cuts the doctors' working windows for the next days into
// fixed slots. Workers pick slots at random, so several race for each one.
func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `SELECT id FROM patients LIMIT $1`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		dataPool.Patients = append(dataPool.Patients, id)
	}
	rows.Close()

	rows, err = pool.Query(ctx, `SELECT id FROM doctors ORDER BY name LIMIT $1`, cfg.DoctorLimit)
	if err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	var doctors []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		doctors = append(doctors, id)
	}
	rows.Close()

	provider := calendar.NewProvider(calendar.NewPgSource(pool), cfg.Location)
	tomorrow := time.Now().In(cfg.Location).AddDate(0, 0, 1)

	for _, doctorID := range doctors {
		cal, err := provider.Load(ctx, doctorID)
		if err != nil {
			return nil, fmt.Errorf("load calendar %s: %w", doctorID, err)
		}
		for d := 0; d < cfg.Days; d++ {
			day := tomorrow.AddDate(0, 0, d)
			for _, w := range cal.WorkingWindows(day) {
				start, end := w.On(day, cfg.Location)
				for t := start; !t.Add(cfg.SlotLength).After(end); t = t.Add(cfg.SlotLength) {
					dataPool.Slots = append(dataPool.Slots, slot{DoctorID: doctorID, Start: t, End: t.Add(cfg.SlotLength)})
					if len(dataPool.Slots) >= cfg.SlotLimit {
						break
					}
				}
			}
		}
	}

	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded")
	}
	if len(dataPool.Slots) == 0 {
		return nil, fmt.Errorf("no slots loaded")
	}
	if len(dataPool.Slots) > cfg.SlotLimit {
		dataPool.Slots = dataPool.Slots[:cfg.SlotLimit]
	}

	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng)
			case r < s.config.BookingRatio+s.config.ConfirmRatio:
				s.doConfirm(ctx, rng)
			case rng.Intn(2) == 0:
				s.doAvailability(ctx, rng)
			default:
				s.doReadByID(ctx, rng)
			}
		}
	}
}

func (s *Simulator) send(ctx context.Context, method, path string, body any, authed bool) (*http.Response, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	return s.client.Do(req)
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	sl := s.pool.Slots[rng.Intn(len(s.pool.Slots))]
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	start := time.Now()
	resp, err := s.send(ctx, http.MethodPost, "/appointments", map[string]string{
		"desde":     sl.Start.Format(time.RFC3339),
		"hasta":     sl.End.Format(time.RFC3339),
		"patientId": patientID.String(),
		"doctorId":  sl.DoctorID.String(),
	}, true)
	latency := time.Since(start)

	success, conflict := false, false
	if err == nil {
		defer resp.Body.Close()
		switch resp.StatusCode {
		case http.StatusCreated:
			success = true
			var env struct {
				Turno struct {
					ID    uuid.UUID `json:"id"`
					Token *string   `json:"token"`
				} `json:"turno"`
			}
			if json.NewDecoder(resp.Body).Decode(&env) == nil && env.Turno.ID != uuid.Nil {
				b := booked{ID: env.Turno.ID}
				if env.Turno.Token != nil {
					b.Token = *env.Turno.Token
				}
				s.pool.AddAppointment(b)
			}
		case http.StatusConflict:
			conflict = true
		}
	}

	s.metrics.Booking.Record(latency, success, conflict)
}

// doConfirm answers the patient's reminder link. A second confirm of the
// same appointment is a 200 no-op, counted as a conflict.
func (s *Simulator) doConfirm(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.GetRandomAppointment(rng)
	if !ok || b.Token == "" {
		return
	}

	start := time.Now()
	resp, err := s.send(ctx, http.MethodPost, "/appointments/confirm", map[string]string{"token": b.Token}, false)
	latency := time.Since(start)

	success, conflict := false, false
	if err == nil {
		defer resp.Body.Close()
		var env struct {
			Success bool `json:"success"`
		}
		if resp.StatusCode == http.StatusOK && json.NewDecoder(resp.Body).Decode(&env) == nil {
			success = env.Success
			conflict = !env.Success
		} else if resp.StatusCode == http.StatusConflict {
			conflict = true
		}
	}

	s.metrics.Confirm.Record(latency, success, conflict)
}

func (s *Simulator) doAvailability(ctx context.Context, rng *rand.Rand) {
	sl := s.pool.Slots[rng.Intn(len(s.pool.Slots))]

	path := fmt.Sprintf("/availability?desde=%s&hasta=%s&doctorId=%s",
		urlTime(sl.Start), urlTime(sl.End), sl.DoctorID)

	start := time.Now()
	resp, err := s.send(ctx, http.MethodGet, path, nil, true)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	s.metrics.Availability.Record(latency, success, false)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	resp, err := s.send(ctx, http.MethodGet, "/appointments/"+b.ID.String(), nil, true)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	s.metrics.ReadByID.Record(latency, success, false)
}

// countOverlaps counts pairs of live appointments sharing doctor and room
// whose intervals intersect.
func countOverlaps(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	var n int
	err := pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments a
		JOIN appointments b
		  ON a.doctor_id = b.doctor_id
		 AND a.room_id IS NOT DISTINCT FROM b.room_id
		 AND a.id < b.id
		 AND a.desde < b.hasta
		 AND b.desde < a.hasta
		WHERE coalesce(a.state, '') <> 'cancelado'
		  AND coalesce(b.state, '') <> 'cancelado'
	`).Scan(&n)
	return n, err
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Slots: %d\n", len(s.pool.Slots))
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Confirm", &s.metrics.Confirm)
	printOperationReport("Availability", &s.metrics.Availability)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

func urlTime(t time.Time) string {
	return strings.ReplaceAll(t.UTC().Format(time.RFC3339), "+", "%2B")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
