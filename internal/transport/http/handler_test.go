package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyserve/internal/config"
	"keyserve/internal/license"
	"keyserve/internal/services"
	"keyserve/internal/store"
	"keyserve/pkg/contracts/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testServer struct {
	router  chi.Router
	records *store.RecordStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	records := store.NewRecordStore(store.NewMemoryKV())
	cfg := config.LicenseConfig{KeyPrefix: "IGTOOL", TrialDurationDays: 3}
	logger := testLogger()

	licenseSvc := services.NewLicenseService(records, cfg, logger, nil)
	adminSvc := services.NewAdminService(records, cfg, logger, nil)
	healthSvc := services.NewHealthService(records, logger)

	licenseHandler := NewLicenseHandler(licenseSvc, logger)

	r := chi.NewRouter()
	r.Route("/api", func(api chi.Router) {
		api.Post("/validate", licenseHandler.Validate)
		api.Post("/activate", licenseHandler.Activate)
		api.Post("/trial", licenseHandler.Trial)
		api.Mount("/health", NewHealthHandler(healthSvc, logger).Routes())
		api.Mount("/admin", NewAdminHandler(adminSvc, logger).Routes())
	})

	return &testServer{router: r, records: records}
}

func (ts *testServer) request(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (ts *testServer) seed(t *testing.T, lic *license.License) {
	t.Helper()
	lic.Normalize()
	require.NoError(t, ts.records.Save(context.Background(), lic))
}

func TestValidateEndpoint(t *testing.T) {
	ts := newTestServer(t)
	now := time.Now().Unix()
	ts.seed(t, &license.License{
		Key:       "IGTOOL-AAAA-BBBB-CCCC-DDDD",
		Tier:      "pro",
		CreatedAt: now,
		ExpiresAt: now + 10*86400,
		Machines:  []license.Machine{{HWID: "hw-1", ActivatedAt: now}},
	})

	t.Run("valid", func(t *testing.T) {
		rec := ts.request(t, http.MethodPost, "/api/validate",
			domain.ValidateRequest{Key: "IGTOOL-AAAA-BBBB-CCCC-DDDD", HWID: "hw-1"})
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decodeBody[domain.ValidateResponse](t, rec)
		assert.True(t, resp.Valid)
		assert.Equal(t, "pro", resp.Tier)
		assert.NotEmpty(t, resp.ExpiresAtHuman)
	})

	t.Run("unknown key is a 200 with valid false", func(t *testing.T) {
		rec := ts.request(t, http.MethodPost, "/api/validate",
			domain.ValidateRequest{Key: "IGTOOL-XXXX-XXXX-XXXX-XXXX", HWID: "hw-1"})
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decodeBody[domain.ValidateResponse](t, rec)
		assert.False(t, resp.Valid)
		assert.Equal(t, "Invalid license key", resp.Error)
	})

	t.Run("missing fields are a 400 problem", func(t *testing.T) {
		rec := ts.request(t, http.MethodPost, "/api/validate", map[string]string{"key": "IGTOOL-AAAA-BBBB-CCCC-DDDD"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "hwid")
	})

	t.Run("malformed JSON is a 400 problem", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/validate", bytes.NewBufferString("{not json"))
		rec := httptest.NewRecorder()
		ts.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestActivateEndpoint(t *testing.T) {
	ts := newTestServer(t)
	now := time.Now().Unix()
	ts.seed(t, &license.License{
		Key:       "IGTOOL-BASI-0000-0000-0000",
		Tier:      "basic",
		CreatedAt: now,
		ExpiresAt: now + 86400,
	})

	rec := ts.request(t, http.MethodPost, "/api/activate",
		domain.ActivateRequest{Key: "IGTOOL-BASI-0000-0000-0000", HWID: "hw-1", MachineName: "desk"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[domain.ActivateResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.MachinesUsed)
	assert.Equal(t, "basic", resp.Tier)
	assert.Equal(t, "Basic", resp.TierName)
	assert.Equal(t, []string{"home_feed_warmup", "dm_outreach"}, resp.Features)
	assert.Equal(t, now+86400, resp.ExpiresAt)

	// Capacity failure stays a 200 with the reason in the body.
	rec = ts.request(t, http.MethodPost, "/api/activate",
		domain.ActivateRequest{Key: "IGTOOL-BASI-0000-0000-0000", HWID: "hw-2"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeBody[domain.ActivateResponse](t, rec)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "Machine limit reached")
}

func TestTrialEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodPost, "/api/trial",
		domain.TrialRequest{HWID: "hw-trial", MachineName: "laptop"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[domain.TrialResponse](t, rec)
	require.True(t, resp.Success)
	assert.Regexp(t, `^IGTOOL(-[A-Z0-9]{4}){4}$`, resp.Key)

	rec = ts.request(t, http.MethodPost, "/api/trial",
		domain.TrialRequest{HWID: "hw-trial"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeBody[domain.TrialResponse](t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "Trial already used on this machine", resp.Error)
}

func TestAdminGenerateEndpoint(t *testing.T) {
	ts := newTestServer(t)

	days := 60
	rec := ts.request(t, http.MethodPost, "/api/admin/generate",
		domain.GenerateRequest{Tier: "agency", DurationDays: &days, Note: "reseller"})
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeBody[domain.GenerateResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "agency", resp.License.Tier)
	assert.Equal(t, 10, resp.License.MaxMachines)
	assert.Equal(t, "reseller", resp.License.Note)
}

func TestAdminGenerateEndpoint_ZeroMaxMachines(t *testing.T) {
	ts := newTestServer(t)

	// Zero means "use the tier default", not an invalid value.
	zero := 0
	rec := ts.request(t, http.MethodPost, "/api/admin/generate",
		domain.GenerateRequest{Tier: "pro", MaxMachines: &zero})
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeBody[domain.GenerateResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, 3, resp.License.MaxMachines)
}

func TestAdminGenerateEndpoint_BadTier(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodPost, "/api/admin/generate",
		domain.GenerateRequest{Tier: "platinum"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "keyserve.dev/problems/")
}

func TestAdminListAndStatsEndpoints(t *testing.T) {
	ts := newTestServer(t)
	now := time.Now().Unix()
	ts.seed(t, &license.License{Key: "IGTOOL-ONE1-0000-0000-0000", Tier: "pro", CreatedAt: now - 100, ExpiresAt: now + 86400})
	ts.seed(t, &license.License{Key: "IGTOOL-TWO2-0000-0000-0000", Tier: "basic", CreatedAt: now, ExpiresAt: now + 86400})

	rec := ts.request(t, http.MethodGet, "/api/admin/licenses", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[domain.ListResponse](t, rec)
	require.Equal(t, 2, list.Count)
	assert.Equal(t, "IGTOOL-TWO2-0000-0000-0000", list.Licenses[0].Key)

	rec = ts.request(t, http.MethodGet, "/api/admin/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeBody[domain.StatsResponse](t, rec)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, float64(49+29), stats.MonthlyRevenue)
}

func TestAdminRevokeAndExtendEndpoints(t *testing.T) {
	ts := newTestServer(t)
	now := time.Now().Unix()
	ts.seed(t, &license.License{Key: "IGTOOL-REVV-0000-0000-0000", Tier: "basic", CreatedAt: now, ExpiresAt: now + 86400})

	rec := ts.request(t, http.MethodPost, "/api/admin/revoke",
		domain.RevokeRequest{Key: "IGTOOL-REVV-0000-0000-0000"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[domain.OperationResponse](t, rec).Success)

	// Extend clears the revocation and reports the new state.
	rec = ts.request(t, http.MethodPost, "/api/admin/extend",
		domain.ExtendRequest{Key: "IGTOOL-REVV-0000-0000-0000", Days: 30})
	require.Equal(t, http.StatusOK, rec.Code)
	info := decodeBody[domain.LicenseInfo](t, rec)
	assert.False(t, info.Revoked)
	assert.Equal(t, "active", info.Status)

	// Operating on a missing key is a 404 problem.
	rec = ts.request(t, http.MethodPost, "/api/admin/revoke",
		domain.RevokeRequest{Key: "IGTOOL-MISS-0000-0000-0000"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminDeleteAndDeactivateEndpoints(t *testing.T) {
	ts := newTestServer(t)
	now := time.Now().Unix()
	ts.seed(t, &license.License{
		Key: "IGTOOL-DELX-0000-0000-0000", Tier: "basic", CreatedAt: now, ExpiresAt: now + 86400,
		Machines: []license.Machine{{HWID: "hw-1", ActivatedAt: now}},
	})

	rec := ts.request(t, http.MethodPost, "/api/admin/deactivate",
		domain.DeactivateRequest{Key: "IGTOOL-DELX-0000-0000-0000", HWID: "hw-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Machine deactivated", decodeBody[domain.OperationResponse](t, rec).Message)

	rec = ts.request(t, http.MethodPost, "/api/admin/delete",
		domain.DeleteRequest{Key: "IGTOOL-DELX-0000-0000-0000"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "License deleted", decodeBody[domain.OperationResponse](t, rec).Message)

	// Delete is idempotent.
	rec = ts.request(t, http.MethodPost, "/api/admin/delete",
		domain.DeleteRequest{Key: "IGTOOL-DELX-0000-0000-0000"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "License did not exist", decodeBody[domain.OperationResponse](t, rec).Message)
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody[domain.HealthResponse](t, rec).Status)

	rec = ts.request(t, http.MethodGet, "/api/health/ready", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[domain.HealthResponse](t, rec)
	assert.Equal(t, "ok", resp.Store)
}
