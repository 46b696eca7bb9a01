// Package metrics holds the Prometheus collectors shared by services and
// workers, and the /metrics handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aslmatch"

var (
	NotificationsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_delivered_total",
		Help:      "Notification jobs delivered, by channel.",
	}, []string{"channel"})

	NotificationsRetried = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_retried_total",
		Help:      "Transient delivery failures that were rescheduled, by channel.",
	}, []string{"channel"})

	NotificationsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_dropped_total",
		Help:      "Notification jobs abandoned, by channel and reason.",
	}, []string{"channel", "reason"})

	NotificationsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_skipped_total",
		Help:      "Jobs skipped as already delivered or ineligible, by channel.",
	}, []string{"channel", "reason"})

	AcceptOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "accept_attempts_total",
		Help:      "Accept responses by outcome (won, already_reserved, expired, invalid_state).",
	}, []string{"outcome"})

	RequestsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_expired_total",
		Help:      "Requests moved to expired by the sweeper or lazily on access.",
	})

	SweepFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "expiry_sweep_failures_total",
		Help:      "Per-request failures skipped during an expiry sweep.",
	})

	ContactViews = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "contact_views_total",
		Help:      "Contact reveal attempts by result (charged, repeat, quota_exceeded).",
	}, []string{"result"})
)

// Drop reasons.
const (
	ReasonMaxAttempts = "max_attempts"
	ReasonPermanent   = "permanent"
	ReasonDuplicate   = "duplicate"
	ReasonIneligible  = "ineligible"
	ReasonDisabled    = "disabled"
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
