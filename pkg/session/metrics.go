package session

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes session activity to Prometheus. A nil *Metrics records
// nothing.
type Metrics struct {
	refreshes       *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	waiters         prometheus.Counter
	replays         prometheus.Counter
	expirations     prometheus.Counter
	authenticated   prometheus.Gauge
}

// NewMetrics registers the session collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "streamit",
			Subsystem: "session",
			Name:      "refreshes_total",
			Help:      "Refresh exchanges by outcome.",
		}, []string{"outcome"}),
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "streamit",
			Subsystem: "session",
			Name:      "refresh_duration_seconds",
			Help:      "Duration of refresh exchanges.",
			Buckets:   prometheus.DefBuckets,
		}),
		waiters: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "streamit",
			Subsystem: "session",
			Name:      "refresh_waiters_total",
			Help:      "Requests that queued behind an in-flight refresh.",
		}),
		replays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "streamit",
			Subsystem: "session",
			Name:      "replays_total",
			Help:      "Requests replayed with a refreshed token.",
		}),
		expirations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "streamit",
			Subsystem: "session",
			Name:      "expirations_total",
			Help:      "Sessions ended because they could not be renewed.",
		}),
		authenticated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "streamit",
			Subsystem: "session",
			Name:      "authenticated",
			Help:      "1 while the session holds an unexpired token.",
		}),
	}

	reg.MustRegister(
		m.refreshes,
		m.refreshDuration,
		m.waiters,
		m.replays,
		m.expirations,
		m.authenticated,
	)
	return m
}

func (m *Metrics) refreshed(err error, took time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.refreshes.WithLabelValues(outcome).Inc()
	m.refreshDuration.Observe(took.Seconds())
}

func (m *Metrics) queued() {
	if m == nil {
		return
	}
	m.waiters.Inc()
}

func (m *Metrics) replayed() {
	if m == nil {
		return
	}
	m.replays.Inc()
}

func (m *Metrics) expired() {
	if m == nil {
		return
	}
	m.expirations.Inc()
}

func (m *Metrics) observe(snap Snapshot) {
	if m == nil {
		return
	}
	if snap.Authenticated {
		m.authenticated.Set(1)
	} else {
		m.authenticated.Set(0)
	}
}
