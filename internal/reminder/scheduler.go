// Package reminder runs the daily reminder job: once per channel per day,
// at the configured time, every upcoming appointment gets one message.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/medical-office-scheduling/internal/appointment"
	"github.com/hackgods/medical-office-scheduling/internal/calendar"
	"github.com/hackgods/medical-office-scheduling/internal/metrics"
	"github.com/hackgods/medical-office-scheduling/internal/notify"
	redisclient "github.com/hackgods/medical-office-scheduling/internal/redis"
)

const guardTTL = 24 * time.Hour

var ErrNoSenders = errors.New("reminder: no channel senders registered")

// Appointments is what the scheduler needs from the appointment service.
type Appointments interface {
	Upcoming(ctx context.Context, from, to time.Time) ([]appointment.ReminderCandidate, error)
	EnsureToken(ctx context.Context, a *appointment.Appointment) (string, error)
}

type Config struct {
	Tick      time.Duration
	Tolerance time.Duration
	SendDelay time.Duration
	Location  *time.Location
}

// Failure is one appointment that could not be reminded.
type Failure struct {
	AppointmentID string `json:"appointmentId"`
	Error         string `json:"error"`
}

// RunReport summarises one channel run.
type RunReport struct {
	Channel notify.Channel `json:"channel"`
	Date    string         `json:"date"`
	Skipped string         `json:"skipped,omitempty"`
	Sent    int            `json:"sent"`
	Failed  []Failure      `json:"failed"`
}

type Scheduler struct {
	appts    Appointments
	settings SettingsSource
	guard    redisclient.RunGuard
	senders  map[notify.Channel]notify.ReminderSender
	cfg      Config
	metrics  *metrics.SchedulingMetrics
	logger   zerolog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewScheduler(appts Appointments, settings SettingsSource, guard redisclient.RunGuard, cfg Config, m *metrics.SchedulingMetrics, logger zerolog.Logger, senders ...notify.ReminderSender) *Scheduler {
	if cfg.Tick <= 0 {
		cfg.Tick = time.Minute
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = 5 * time.Minute
	}
	if cfg.SendDelay < 0 {
		cfg.SendDelay = 0
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	s := &Scheduler{
		appts:    appts,
		settings: settings,
		guard:    guard,
		senders:  make(map[notify.Channel]notify.ReminderSender, len(senders)),
		cfg:      cfg,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
		sleep:    sleepCtx,
	}
	for _, sender := range senders {
		if sender != nil {
			s.senders[sender.Channel()] = sender
		}
	}
	return s
}

// Registered lists the channels that have a sender, sorted.
func (s *Scheduler) Registered() []notify.Channel {
	out := make([]notify.Channel, 0, len(s.senders))
	for ch := range s.senders {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start launches the tick loop. Starting a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	if len(s.senders) == 0 {
		return ErrNoSenders
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.loop(loopCtx, s.done)

	s.logger.Info().
		Dur("tick", s.cfg.Tick).
		Interface("channels", s.Registered()).
		Msg("reminder scheduler started")
	return nil
}

// Stop cancels the loop and waits for the current run to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(done)
	}()

	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	// Run once at startup
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("reminder scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	reports, err := s.RunOnce(ctx, s.now())
	if err != nil {
		s.logger.Error().Err(err).Msg("reminder run failed")
		return
	}
	for _, r := range reports {
		s.logger.Info().
			Str("channel", string(r.Channel)).
			Str("date", r.Date).
			Int("sent", r.Sent).
			Int("failed", len(r.Failed)).
			Str("skipped", r.Skipped).
			Msg("reminder run complete")
	}
}

// RunOnce runs every enabled channel whose send time is within tolerance
// of now.
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) ([]RunReport, error) {
	return s.run(ctx, now, false)
}

// RunNow runs every enabled channel regardless of its send time. The
// daily run guard still applies.
func (s *Scheduler) RunNow(ctx context.Context) ([]RunReport, error) {
	return s.run(ctx, s.now(), true)
}

func (s *Scheduler) run(ctx context.Context, now time.Time, force bool) ([]RunReport, error) {
	settings, err := s.settings.ReminderSettings(ctx)
	if err != nil {
		return nil, err
	}

	var reports []RunReport
	for _, ch := range s.Registered() {
		cs, ok := settings.Channels[ch]
		if !ok || !cs.Enabled {
			continue
		}

		date, due, err := dueDate(now, cs.Time, s.cfg.Tolerance, s.cfg.Location)
		if err != nil {
			s.logger.Warn().Err(err).Str("channel", string(ch)).Msg("invalid reminder time")
			continue
		}
		if !due && !force {
			continue
		}

		reports = append(reports, s.runChannel(ctx, ch, cs, settings, date, now))
	}
	return reports, nil
}

func (s *Scheduler) runChannel(ctx context.Context, ch notify.Channel, cs ChannelSettings, settings Settings, date, now time.Time) RunReport {
	report := RunReport{Channel: ch, Date: date.Format("2006-01-02"), Failed: []Failure{}}

	if s.guard != nil {
		claimed, err := s.guard.Claim(ctx, fmt.Sprintf("reminder:%s:%s", ch, report.Date), guardTTL)
		if err != nil {
			report.Skipped = "run guard unavailable"
			s.logger.Error().Err(err).Str("channel", string(ch)).Msg("claim reminder run")
			return report
		}
		if !claimed {
			report.Skipped = "already ran today"
			return report
		}
	}

	// the window follows the send day the guard claimed, not the tick time
	from, to := Window(date, cs.LeadDays, s.cfg.Location)
	candidates, err := s.appts.Upcoming(ctx, from, to)
	if err != nil {
		report.Skipped = "could not load appointments"
		s.logger.Error().Err(err).Str("channel", string(ch)).Msg("load upcoming appointments")
		return report
	}

	sender := s.senders[ch]
	for i := range candidates {
		if i > 0 {
			if err := s.sleep(ctx, s.cfg.SendDelay); err != nil {
				for _, rest := range candidates[i:] {
					report.Failed = append(report.Failed, Failure{AppointmentID: rest.ID.String(), Error: err.Error()})
				}
				break
			}
		}

		c := candidates[i]
		if err := s.sendOne(ctx, sender, c, settings); err != nil {
			report.Failed = append(report.Failed, Failure{AppointmentID: c.ID.String(), Error: err.Error()})
			s.metrics.ObserveReminder(string(ch), false)
			s.logger.Warn().Err(err).
				Str("channel", string(ch)).
				Str("appointment_id", c.ID.String()).
				Msg("reminder not sent")
			continue
		}
		report.Sent++
		s.metrics.ObserveReminder(string(ch), true)
	}
	return report
}

func (s *Scheduler) sendOne(ctx context.Context, sender notify.ReminderSender, c appointment.ReminderCandidate, settings Settings) error {
	token, err := s.appts.EnsureToken(ctx, &c.Appointment)
	if err != nil {
		return err
	}

	r := notify.Reminder{
		AppointmentID: c.ID,
		PatientName:   c.PatientName,
		Phone:         strValue(c.Phone),
		Email:         strValue(c.Email),
		DoctorName:    c.DoctorName,
		RoomName:      strValue(c.RoomName),
		Desde:         c.Desde,
		OfficeName:    settings.OfficeName,
		OfficePhone:   settings.OfficePhone,
	}
	if settings.AppURL != "" {
		q := url.Values{"token": {token}}.Encode()
		r.ConfirmURL = settings.AppURL + "/appointments/confirm?" + q
		r.CancelURL = settings.AppURL + "/appointments/cancel?" + q
	}
	return sender.SendReminder(ctx, r)
}

// Window is the [from,to) range of appointment starts a run on day covers:
// from the next midnight through leadDays days. leadDays below 1 counts as 1.
func Window(day time.Time, leadDays int, loc *time.Location) (time.Time, time.Time) {
	if leadDays < 1 {
		leadDays = 1
	}
	local := day.In(loc)
	tomorrow := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
	return tomorrow, tomorrow.AddDate(0, 0, leadDays)
}

// dueDate reports whether now is within tolerance of the HH:MM send time
// and returns the local date that send time belongs to. Neighbouring days
// are checked so a tolerance spanning midnight still matches.
func dueDate(now time.Time, hhmm string, tolerance time.Duration, loc *time.Location) (time.Time, bool, error) {
	offset, err := calendar.ParseClock(hhmm)
	if err != nil {
		return time.Time{}, false, err
	}

	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	for _, d := range []int{0, -1, 1} {
		day := today.AddDate(0, 0, d)
		m := int(offset / time.Minute)
		target := time.Date(day.Year(), day.Month(), day.Day(), m/60, m%60, 0, 0, loc)
		diff := now.Sub(target)
		if diff < 0 {
			diff = -diff
		}
		if diff <= tolerance {
			return day, true, nil
		}
	}
	return today, false, nil
}

func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
