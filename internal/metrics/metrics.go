package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	reservationsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "facility_booking",
			Name:      "reservations_created_total",
			Help:      "Reservations created by type.",
		},
		[]string{"type"},
	)

	paymentsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "facility_booking",
			Name:      "payments_processed_total",
			Help:      "Payment transitions by outcome.",
		},
		[]string{"outcome"},
	)

	webhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "facility_booking",
			Name:      "webhook_events_total",
			Help:      "Payment-provider webhook deliveries by result.",
		},
		[]string{"result"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(reservationsCreated, paymentsProcessed, webhookEvents)
	})
}

// IncReservation counts a created reservation by type label.
func IncReservation(kind string) {
	reservationsCreated.WithLabelValues(kind).Inc()
}

// IncPayment counts a payment transition by outcome label.
func IncPayment(outcome string) {
	paymentsProcessed.WithLabelValues(outcome).Inc()
}

// IncWebhook counts a webhook delivery by result label.
func IncWebhook(result string) {
	webhookEvents.WithLabelValues(result).Inc()
}
