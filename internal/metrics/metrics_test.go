package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/rappel-anniv/internal/metrics"
)

func TestMetrics_IndependentRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	a := metrics.New()
	b := metrics.New()

	a.UsersRegistered.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.UsersRegistered))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.UsersRegistered))
}

func TestMetrics_ObserveRequest(t *testing.T) {
	m := metrics.New()
	m.ObserveRequest(http.MethodGet, "/api/birthdays", http.StatusOK, 25*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "/api/birthdays", http.StatusOK, 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/api/birthdays", "200")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPDuration))
}

func TestMetrics_Handler(t *testing.T) {
	m := metrics.New()
	m.UpcomingWindow.Observe(30)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "rappel_upcoming_window_days_count 1")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
