package obs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service collectors. The booking engine and the notification
// dispatcher report through it.
type Metrics struct {
	HTTPRequestsTotal         *prometheus.CounterVec
	HTTPRequestDuration       *prometheus.HistogramVec
	BookingsTotal             *prometheus.CounterVec
	BookingCancellationsTotal prometheus.Counter
	NotificationsTotal        *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg; nil means the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "partyspace_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "partyspace_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		BookingsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "partyspace_bookings_total",
				Help: "Booking requests by outcome",
			},
			[]string{"outcome"},
		),
		BookingCancellationsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "partyspace_booking_cancellations_total",
				Help: "Total number of booking cancellations",
			},
		),
		NotificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "partyspace_notifications_total",
				Help: "Notifications by delivery status",
			},
			[]string{"status"},
		),
	}
}

func (m *Metrics) ObserveHTTP(method, path, status string, took time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(took.Seconds())
}

func (m *Metrics) BookingOutcome(outcome string) {
	m.BookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) BookingCancelled() {
	m.BookingCancellationsTotal.Inc()
}

// NotificationOutcome matches notify.Observer.
func (m *Metrics) NotificationOutcome(status string) {
	m.NotificationsTotal.WithLabelValues(status).Inc()
}
