package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DraftsStarted     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carbooking", Name: "drafts_started_total", Help: "Total booking drafts started"})
	DraftsCancelled   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carbooking", Name: "drafts_cancelled_total", Help: "Total booking drafts cancelled"})
	BookingsConfirmed = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carbooking", Name: "bookings_confirmed_total", Help: "Total bookings committed"})
	PaymentFailures   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carbooking", Name: "payment_failures_total", Help: "Total recoverable payment gateway failures"})
	CommitConflicts   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carbooking", Name: "commit_conflicts_total", Help: "Confirm calls that lost the compare-and-delete race"})

	ConfirmLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "carbooking",
		Name:      "confirm_latency_seconds",
		Help:      "Latency of the confirm-payment commit path",
		Buckets:   prometheus.DefBuckets,
	})
)
