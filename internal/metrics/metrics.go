// Package metrics holds the Prometheus collectors for the USSD service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Turns counts handled USSD turns by the state they started in and
	// whether the reply continued or ended the session.
	Turns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soko_ussd_turns_total",
			Help: "Total number of USSD turns handled",
		},
		[]string{"state", "reply"},
	)

	// TurnDuration observes how long a turn takes end to end.
	TurnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "soko_ussd_turn_duration_seconds",
			Help:    "Duration of USSD turn handling",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"state"},
	)

	// TurnFailures counts turns answered with the fallback reply.
	TurnFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "soko_ussd_turn_failures_total",
			Help: "Turns that hit an unhandled error and got the generic reply",
		},
	)

	// Notifications counts SMS deliveries by outcome: sent, failed, dropped.
	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soko_ussd_notifications_total",
			Help: "SMS notifications by delivery outcome",
		},
		[]string{"outcome"},
	)

	// ActiveSessions reports the live session count at last health check.
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "soko_ussd_active_sessions",
			Help: "Number of USSD sessions currently stored",
		},
	)
)

func init() {
	prometheus.MustRegister(Turns, TurnDuration, TurnFailures, Notifications, ActiveSessions)
}
