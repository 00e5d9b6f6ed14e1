// Package metrics exposes the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
	UsersRegistered   prometheus.Counter
	LoginsFailed      prometheus.Counter
	LoginsThrottled   prometheus.Counter
	BirthdaysImported prometheus.Counter
	UpcomingWindow    prometheus.Histogram
	CalendarsServed   prometheus.Counter
}

// New creates the metrics on a fresh registry, together with the Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rappel_http_requests_total",
			Help: "HTTP requests by method, route pattern and status code",
		}, []string{"method", "route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rappel_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route pattern",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		UsersRegistered: factory.NewCounter(prometheus.CounterOpts{
			Name: "rappel_users_registered_total",
			Help: "Total number of accounts created through registration",
		}),
		LoginsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "rappel_logins_failed_total",
			Help: "Total number of rejected login attempts",
		}),
		LoginsThrottled: factory.NewCounter(prometheus.CounterOpts{
			Name: "rappel_logins_throttled_total",
			Help: "Total number of login attempts refused by the rate limiter",
		}),
		BirthdaysImported: factory.NewCounter(prometheus.CounterOpts{
			Name: "rappel_birthdays_imported_total",
			Help: "Total number of birthdays created from vCard imports",
		}),
		UpcomingWindow: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "rappel_upcoming_window_days",
			Help:    "Lookahead window requested for upcoming birthdays",
			Buckets: []float64{0, 1, 7, 14, 30, 60, 90, 180, 366},
		}),
		CalendarsServed: factory.NewCounter(prometheus.CounterOpts{
			Name: "rappel_calendar_feeds_served_total",
			Help: "Total number of calendar feeds generated",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one completed HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
