package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginAttempts records organizer login attempts by result (success|failure).
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pretalx_login_attempts_total",
			Help: "Total number of organizer login attempts",
		},
		[]string{"result"},
	)

	// InviteAcceptances counts team invitation acceptance attempts by result
	// (accepted|rejected|not_found).
	InviteAcceptances = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pretalx_invite_acceptances_total",
			Help: "Total number of team invitation acceptance attempts",
		},
		[]string{"result"},
	)

	// ResetMailsSent counts password reset notifications dispatched.
	ResetMailsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pretalx_reset_mails_sent_total",
			Help: "Total number of password reset emails sent",
		},
	)

	// ActiveSessions tracks sessions that are neither expired nor revoked.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pretalx_active_sessions",
			Help: "Number of active organizer sessions",
		},
	)

	// HTTPLatency measures request latencies per method/path/status.
	HTTPLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pretalx_http_latency_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
