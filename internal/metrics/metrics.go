package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	reservationCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stablebook",
			Name:      "reservation_created_total",
			Help:      "Count of reservations created by initial status.",
		},
		[]string{"status"},
	)

	validationRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stablebook",
			Name:      "validation_rejected_total",
			Help:      "Count of booking validations rejected by rule.",
		},
		[]string{"rule"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stablebook",
			Name:      "http_requests_total",
			Help:      "Count of API requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	slotCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stablebook",
			Name:      "slot_cache_total",
			Help:      "Slot cache lookups by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(reservationCreated, validationRejected, httpRequests, slotCacheHits)
	})
}

func IncReservationCreated(status string) {
	reservationCreated.WithLabelValues(status).Inc()
}

func IncValidationRejected(rule string) {
	validationRejected.WithLabelValues(rule).Inc()
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncSlotCache(outcome string) {
	slotCacheHits.WithLabelValues(outcome).Inc()
}
