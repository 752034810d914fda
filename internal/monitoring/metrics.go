// Package monitoring exposes Prometheus metrics for the orchestrator.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	// Session metrics
	SessionsActive prometheus.Gauge
	SessionsOpened prometheus.Counter
	SessionsClosed *prometheus.CounterVec

	// Polling metrics
	PollsTotal   *prometheus.CounterVec
	PollDuration prometheus.Histogram

	// IPC metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// Automation metrics
	ClaimAttempts prometheus.Counter
	ClaimClicks   prometheus.Counter

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// New creates the metrics collectors, registered on the default registry.
func New() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pipcast_sessions_active",
			Help: "Number of currently open PIP sessions",
		}),
		SessionsOpened: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pipcast_sessions_opened_total",
			Help: "Total PIP sessions opened",
		}),
		SessionsClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pipcast_sessions_closed_total",
			Help: "Total PIP sessions closed, by reason",
		}, []string{"reason"}),

		PollsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pipcast_polls_total",
			Help: "Total liveness polls, by outcome",
		}, []string{"outcome"}),
		PollDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pipcast_poll_duration_seconds",
			Help:    "Liveness poll duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}),

		WSConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pipcast_ws_connections",
			Help: "Connected UI surfaces",
		}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pipcast_ws_messages_total",
			Help: "IPC messages handled, by type",
		}, []string{"type"}),

		ClaimAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pipcast_claim_attempts_total",
			Help: "Channel-points claim ticks executed",
		}),
		ClaimClicks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pipcast_claim_clicks_total",
			Help: "Channel-points claim controls actually clicked",
		}),

		Uptime: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pipcast_uptime_seconds",
			Help: "Process uptime in seconds",
		}),
	}
	return m
}

// UpdateUptime refreshes the uptime gauge.
func (m *Metrics) UpdateUptime() {
	m.Uptime.Set(time.Since(m.startTime).Seconds())
}
