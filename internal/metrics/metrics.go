// Package metrics holds the Prometheus collectors of the reservation
// engine, the reaper and the notification path. A nil *Metrics is valid
// and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "stockreserve"

type Metrics struct {
	operations    *prometheus.CounterVec
	opDuration    *prometheus.HistogramVec
	reaperRuns    *prometheus.CounterVec
	expired       prometheus.Counter
	releasedUnits prometheus.Counter
	notifications *prometheus.CounterVec
}

// New builds the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_operations_total",
			Help:      "Reservation engine operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reservation_operation_duration_seconds",
			Help:      "Latency of reservation engine operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		reaperRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reaper_runs_total",
			Help:      "Expiration sweeps by outcome (expired, idle, error).",
		}, []string{"outcome"}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reaper_expired_reservations_total",
			Help:      "Reservations moved to EXPIRED by the reaper.",
		}),
		releasedUnits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reaper_released_units_total",
			Help:      "Stock units returned to available by the reaper.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_notifications_total",
			Help:      "Expiry notifications to the order service by stage and outcome.",
		}, []string{"stage", "outcome"}),
	}
	reg.MustRegister(m.operations, m.opDuration, m.reaperRuns, m.expired, m.releasedUnits, m.notifications)
	return m
}

func (m *Metrics) ObserveOperation(op, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.opDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *Metrics) ReaperRun(outcome string, reservations, units int) {
	if m == nil {
		return
	}
	m.reaperRuns.WithLabelValues(outcome).Inc()
	m.expired.Add(float64(reservations))
	m.releasedUnits.Add(float64(units))
}

// Notification counts one delivery attempt. stage is "reaper" for the
// fire-and-forget call and "worker" for queued redelivery.
func (m *Metrics) Notification(stage, outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(stage, outcome).Inc()
}
