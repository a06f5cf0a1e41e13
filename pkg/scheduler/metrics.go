package scheduler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics is nil unless WithMetrics was given; every method is a no-op on nil.
type metrics struct {
	scheduledTotal prometheus.Counter
	firedTotal     prometheus.Counter
	cancelledTotal prometheus.Counter
	pending        prometheus.Gauge
	lateness       prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)

	return &metrics{
		scheduledTotal: factory.NewCounter(prometheus.CounterOpts{
			Subsystem: "timer",
			Name:      "scheduled_total",
			Help:      "Total number of timers scheduled",
		}),
		firedTotal: factory.NewCounter(prometheus.CounterOpts{
			Subsystem: "timer",
			Name:      "fired_total",
			Help:      "Total number of timers fired",
		}),
		cancelledTotal: factory.NewCounter(prometheus.CounterOpts{
			Subsystem: "timer",
			Name:      "cancelled_total",
			Help:      "Total number of timers cancelled before firing",
		}),
		pending: factory.NewGauge(prometheus.GaugeOpts{
			Subsystem: "timer",
			Name:      "pending",
			Help:      "Number of timers waiting to fire",
		}),
		lateness: factory.NewHistogram(prometheus.HistogramOpts{
			Subsystem: "timer",
			Name:      "fire_lateness_seconds",
			Help:      "Time between a timer's deadline and the tick that fired it",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
	}
}

func (m *metrics) scheduled(pending int) {
	if m == nil {
		return
	}
	m.scheduledTotal.Inc()
	m.pending.Set(float64(pending))
}

func (m *metrics) fired(pending int, lateness time.Duration) {
	if m == nil {
		return
	}
	m.firedTotal.Inc()
	m.pending.Set(float64(pending))
	m.lateness.Observe(lateness.Seconds())
}

func (m *metrics) cancelled(pending int) {
	if m == nil {
		return
	}
	m.cancelledTotal.Inc()
	m.pending.Set(float64(pending))
}

func (m *metrics) cleared() {
	if m == nil {
		return
	}
	m.pending.Set(0)
}
