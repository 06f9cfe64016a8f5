package rest_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/microcredit/internal/presentation/rest"
	"github.com/bibbank/microcredit/pkg/observability"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestRouter_Liveness(t *testing.T) {
	h := rest.NewRouter(rest.NewHealthHandler("microcredit", nil, quietLogger()), nil)

	rec, body := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "microcredit", body["service"])
}

func TestRouter_Readiness(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name     string
		checks   map[string]rest.Check
		wantCode int
		want     string
	}{
		{name: "all up", checks: map[string]rest.Check{"postgres": ok, "redis": ok}, wantCode: http.StatusOK, want: "ready"},
		{name: "redis down", checks: map[string]rest.Check{"postgres": ok, "redis": down}, wantCode: http.StatusServiceUnavailable, want: "not_ready"},
		{name: "no checks", wantCode: http.StatusOK, want: "ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := rest.NewRouter(rest.NewHealthHandler("microcredit", tt.checks, quietLogger()), nil)

			rec, body := get(t, h, "/readyz")
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.want, body["status"])
		})
	}
}

func TestRouter_ReadinessReportsFailingCheck(t *testing.T) {
	checks := map[string]rest.Check{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	}
	h := rest.NewRouter(rest.NewHealthHandler("microcredit", checks, quietLogger()), nil)

	_, body := get(t, h, "/readyz")
	results, ok := body["checks"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "connection refused", results["redis"])
}

func TestRouter_Metrics(t *testing.T) {
	observability.DuplicateEventsTotal.Inc()
	h := rest.NewRouter(rest.NewHealthHandler("microcredit", nil, quietLogger()), observability.MetricsHandler())

	rec, _ := get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "microcredit_score_history_duplicate_events_total")
}

func TestRouter_UnknownPath(t *testing.T) {
	h := rest.NewRouter(rest.NewHealthHandler("microcredit", nil, quietLogger()), nil)

	rec, _ := get(t, h, "/loans")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
