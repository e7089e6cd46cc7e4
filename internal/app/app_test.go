package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"service-schedule/internal/repository/memory"
)

func testConfig() Config {
	return Config{
		IdentityBaseURL:   "http://identity.invalid",
		EnrollmentBaseURL: "http://enrollment.invalid",
		RequestTimeout:    time.Second,
		Location:          time.UTC,
		AlertScanSchedule: "@daily",
	}
}

func TestBuildServesHealthAndMetrics(t *testing.T) {
	a, err := build(memory.New(), prometheus.NewRegistry(), testConfig(), zap.NewNop())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "timetable_http_request_duration_seconds")

	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/schedule", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	a.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	a.Stop(ctx)
}

func TestBuildRejectsBadCronSpec(t *testing.T) {
	cfg := testConfig()
	cfg.AlertScanSchedule = "every tuesday"
	_, err := build(memory.New(), prometheus.NewRegistry(), cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestScanWithEmptyLedger(t *testing.T) {
	cfg := testConfig()
	cfg.AlertScanSchedule = ""
	a, err := build(memory.New(), prometheus.NewRegistry(), cfg, zap.NewNop())
	require.NoError(t, err)

	pairs, err := a.ScanLowAttendance(context.Background())
	require.NoError(t, err)
	assert.Zero(t, pairs)
	a.Start()
	a.Stop(context.Background())
}
