package app

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyserve/internal/config"
	"keyserve/internal/store"
	"keyserve/pkg/contracts/domain"
)

func newTestApp(t *testing.T) *Application {
	t.Helper()
	cfg := config.Default()
	cfg.Admin.Password = "test-admin-password"
	cfg.Security.RateLimit.Enabled = false

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewApplicationWithKV(cfg, logger, store.NewMemoryKV())
}

func TestFullStack_TrialThenValidate(t *testing.T) {
	a := newTestApp(t)

	body, _ := json.Marshal(domain.TrialRequest{HWID: "hw-e2e", MachineName: "ci"})
	req := httptest.NewRequest(http.MethodPost, "/api/trial", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var trial domain.TrialResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trial))
	require.True(t, trial.Success)

	body, _ = json.Marshal(domain.ValidateRequest{Key: trial.Key, HWID: "hw-e2e"})
	req = httptest.NewRequest(http.MethodPost, "/api/validate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var validated domain.ValidateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &validated))
	assert.True(t, validated.Valid)
	assert.Equal(t, "trial", validated.Tier)

	// Responses carry a request ID.
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestFullStack_AdminRequiresAuth(t *testing.T) {
	a := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
	req.Header.Set("X-Admin-Password", "test-admin-password")
	rec = httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestFullStack_HealthEndpoints(t *testing.T) {
	a := newTestApp(t)

	for _, path := range []string{"/api/health", "/api/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		a.Router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestFullStack_SecurityHeaders(t *testing.T) {
	a := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}
