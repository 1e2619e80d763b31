package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Observers(t *testing.T) {
	m := New()

	m.ObserveAggregation("week", 2*time.Millisecond, 4, 1)
	m.ObserveAggregation("week", time.Millisecond, 2, 0)
	m.ObserveCache(true)
	m.ObserveCache(false)
	m.ObserveCache(false)
	m.ObserveEventHandled("match.registered", time.Millisecond, nil)
	m.ObserveEventHandled("match.registered", time.Millisecond, errors.New("x"))
	m.ObserveJob("broadcast_ranking", time.Second, nil)
	m.ObserveWebhook(errors.New("timeout"))

	assert.Equal(t, 6.0, testutil.ToFloat64(m.matchesCounted.WithLabelValues("week")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.recordsSkipped.WithLabelValues("week")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsHandled.WithLabelValues("match.registered", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("broadcast_ranking", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.webhookDeliveries.WithLabelValues("error")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/rankings", http.StatusOK, 3*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `ranking_http_requests_total{code="200",method="GET",route="/api/v1/rankings"} 1`)
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveAggregation("all", 0, 0, 0)
		m.ObserveCache(true)
		m.ObserveEventHandled("x", 0, nil)
		m.ObserveHTTPRequest("GET", "/", 200, 0)
		m.ObserveJob("j", 0, nil)
		m.ObserveWebhook(nil)
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
