package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveOperation("reserve", "ok", 3*time.Millisecond)
	m.ObserveOperation("reserve", "ok", time.Millisecond)
	m.ObserveOperation("reserve", "out_of_stock", time.Millisecond)
	m.ReaperRun("expired", 2, 7)
	m.Notification("reaper", "error")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("reserve", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("reserve", "out_of_stock")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.expired))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.releasedUnits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("reaper", "error")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveOperation("cancel", "ok", time.Second)
		m.ReaperRun("idle", 0, 0)
		m.Notification("worker", "ok")
	})
}
