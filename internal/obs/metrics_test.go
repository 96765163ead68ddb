package obs_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alex-user-go/fares/internal/obs"
)

func TestMetrics_Counters(t *testing.T) {
	m := obs.NewMetrics(slog.New(slog.NewTextHandler(io.Discard, nil)))

	m.IncRequests()
	m.IncRequests()
	m.IncCacheHits()
	m.ObserveSource("India", obs.OutcomeSucceeded, 2*time.Second)
	m.ObserveSource("Mexico", obs.OutcomeFailed, time.Second)
	m.AddExtracted("India", 3)
	m.IncDiscarded("India", "missing_price")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SourceOutcomes.WithLabelValues("India", obs.OutcomeSucceeded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SourceOutcomes.WithLabelValues("Mexico", obs.OutcomeFailed)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RecordsExtracted.WithLabelValues("India")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsDiscarded.WithLabelValues("India", "missing_price")))
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := obs.NewMetrics(logger)
	b := obs.NewMetrics(logger)

	a.IncRequests()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.Requests))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Requests))
}

func TestMetrics_Handler(t *testing.T) {
	m := obs.NewMetrics(slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.IncRequests()

	w := httptest.NewRecorder()
	m.MetricsHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "fares_http_search_requests_total 1"))
}

func TestHealthHandler(t *testing.T) {
	h := obs.HealthHandler("fares", "1.0.0", slog.New(slog.NewTextHandler(io.Discard, nil)))

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var resp obs.HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "fares", resp.Service)
	assert.Equal(t, "1.0.0", resp.Version)
	assert.False(t, resp.Timestamp.IsZero())
}
