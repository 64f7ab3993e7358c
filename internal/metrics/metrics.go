package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// SchedulingMetrics exposes counters/histograms for booking and reminders.
type SchedulingMetrics struct {
	bookingConflicts *prometheus.CounterVec
	searchLatency    prometheus.Histogram
	remindersTotal   *prometheus.CounterVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		bookingConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "consultorio",
			Subsystem: "booking",
			Name:      "conflicts_total",
			Help:      "Bookings rejected because the slot was taken",
		}, []string{"reason"}),
		searchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "consultorio",
			Subsystem: "availability",
			Name:      "search_seconds",
			Help:      "Latency of nearby availability searches",
			Buckets:   prometheus.DefBuckets,
		}),
		remindersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "consultorio",
			Subsystem: "reminders",
			Name:      "sent_total",
			Help:      "Reminder sends per channel and outcome",
		}, []string{"channel", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingConflicts, m.searchLatency, m.remindersTotal)
	return m
}

// ObserveConflict counts a rejected booking. reason is "detected" when the
// conflict query found it, "constraint" when storage rejected the write.
func (m *SchedulingMetrics) ObserveConflict(reason string) {
	if m == nil {
		return
	}
	m.bookingConflicts.WithLabelValues(reason).Inc()
}

func (m *SchedulingMetrics) ObserveSearch(d time.Duration) {
	if m == nil {
		return
	}
	m.searchLatency.Observe(d.Seconds())
}

func (m *SchedulingMetrics) ObserveReminder(channel string, ok bool) {
	if m == nil {
		return
	}
	status := "sent"
	if !ok {
		status = "failed"
	}
	m.remindersTotal.WithLabelValues(channel, status).Inc()
}

// ConflictCount reads the current conflict counter for reason.
func (m *SchedulingMetrics) ConflictCount(reason string) float64 {
	if m == nil {
		return 0
	}
	return testutil.ToFloat64(m.bookingConflicts.WithLabelValues(reason))
}

// ReminderCount reads the current reminder counter.
func (m *SchedulingMetrics) ReminderCount(channel string, ok bool) float64 {
	if m == nil {
		return 0
	}
	status := "sent"
	if !ok {
		status = "failed"
	}
	return testutil.ToFloat64(m.remindersTotal.WithLabelValues(channel, status))
}
