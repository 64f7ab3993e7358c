package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestSchedulingMetricsObserve(t *testing.T) {
	m := NewSchedulingMetrics(prometheus.NewRegistry())
	m.ObserveConflict("detected")
	m.ObserveConflict("detected")
	m.ObserveConflict("constraint")
	m.ObserveSearch(15 * time.Millisecond)
	m.ObserveReminder("email", true)
	m.ObserveReminder("email", false)

	assert.Equal(t, 2.0, m.ConflictCount("detected"))
	assert.Equal(t, 1.0, m.ConflictCount("constraint"))
	assert.Equal(t, 1.0, m.ReminderCount("email", true))
	assert.Equal(t, 1.0, m.ReminderCount("email", false))
	assert.Equal(t, 0.0, m.ReminderCount("whatsapp", true))
}

func TestSchedulingMetricsNilSafe(t *testing.T) {
	var m *SchedulingMetrics
	m.ObserveConflict("detected")
	m.ObserveSearch(time.Second)
	m.ObserveReminder("whatsapp", true)
	assert.Zero(t, m.ConflictCount("detected"))
}
