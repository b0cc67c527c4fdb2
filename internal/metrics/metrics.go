package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "billboard"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	bookingsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_created_total",
			Help:      "Bookings created by kind (hold, rental, mobile).",
		},
		[]string{"kind"},
	)

	bookingConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_conflicts_total",
			Help:      "Refused booking attempts by reason.",
		},
		[]string{"reason"},
	)

	dbReconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_reconnects_total",
			Help:      "Database reconnect attempts by result.",
		},
		[]string{"result"},
	)

	cacheRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_refresh_total",
			Help:      "Location cache refreshes by trigger and result.",
		},
		[]string{"trigger", "result"},
	)

	locations = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "locations",
			Help:      "Locations per derived status after the last projection.",
		},
		[]string{"status"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, bookingsCreated, bookingConflicts, dbReconnects, cacheRefreshes, locations)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncBookingCreated(kind string) {
	bookingsCreated.WithLabelValues(kind).Inc()
}

func IncConflict(reason string) {
	bookingConflicts.WithLabelValues(reason).Inc()
}

func IncReconnect(result string) {
	dbReconnects.WithLabelValues(result).Inc()
}

func IncCacheRefresh(trigger, result string) {
	cacheRefreshes.WithLabelValues(trigger, result).Inc()
}

// SetLocationStatuses replaces the per-status gauge values.
func SetLocationStatuses(counts map[string]int) {
	locations.Reset()
	for status, n := range counts {
		locations.WithLabelValues(status).Set(float64(n))
	}
}
