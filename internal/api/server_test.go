package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxkit/license-server/internal/config"
	"github.com/voxkit/license-server/internal/database"
	"github.com/voxkit/license-server/internal/repository"
	"github.com/voxkit/license-server/internal/service"
)

const testAdminKey = "test-admin-key"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := config.Config{
		DBDriver:       "sqlite",
		DBDSN:          filepath.Join(t.TempDir(), "license.db"),
		AdminKey:       testAdminKey,
		CouponSecret:   "test-coupon-secret",
		FreeDailyLimit: 10,
	}

	db, err := database.Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db, cfg.DBDriver))

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	locks := service.NewDeviceLocks()
	licenseRepo := repository.NewLicenseRepository(db)
	usageRepo := repository.NewUsageRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	couponRepo := repository.NewCouponRepository(db)

	licenseSvc := service.NewLicenseService(cfg, log, licenseRepo, usageRepo, notificationRepo, locks)
	couponSvc := service.NewCouponService(cfg, log, couponRepo, licenseRepo, locks)
	notifySvc := service.NewNotificationService(log, notificationRepo)

	srv := httptest.NewServer(NewServer(cfg, log, licenseSvc, couponSvc, notifySvc).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, srv *httptest.Server, path string, body map[string]any, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()

	buf, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, srv.URL+path, bytes.NewReader(buf))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func adminHeaders() map[string]string {
	return map[string]string{"X-Admin-Key": testAdminKey}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := srv.Client().Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatusEndpointSeedsDevice(t *testing.T) {
	srv := newTestServer(t)

	resp, body := postJSON(t, srv, "/api/status", map[string]any{"device_id": "dev-1"}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "free", body["tier"])
	assert.Equal(t, "Free", body["tier_display"])
	assert.Equal(t, float64(10), body["remaining"])
	assert.Equal(t, float64(0), body["daily_used"])
	assert.Equal(t, float64(10), body["daily_limit"])
	assert.Equal(t, false, body["suspended"])
}

func TestStatusEndpointRequiresDeviceID(t *testing.T) {
	srv := newTestServer(t)

	resp, body := postJSON(t, srv, "/api/status", map[string]any{}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
}

func TestUseEndpointDeductsAndValidates(t *testing.T) {
	srv := newTestServer(t)

	for i := 0; i < 10; i++ {
		resp, _ := postJSON(t, srv, "/api/use", map[string]any{
			"device_id": "dev-1",
			"text":      "hello world",
			"voice":     "nova",
		}, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, body := postJSON(t, srv, "/api/validate", map[string]any{"device_id": "dev-1"}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["can_generate"])
	assert.Equal(t, "Daily limit reached", body["reason"])
}

func TestAdminEndpointsRequireKey(t *testing.T) {
	srv := newTestServer(t)

	resp, body := postJSON(t, srv, "/admin/coupons", map[string]any{"type": "PRO30"}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthorized", body["error"])

	resp, _ = postJSON(t, srv, "/admin/coupons", map[string]any{"type": "PRO30"},
		map[string]string{"X-Admin-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/admin/stats", nil)
	require.NoError(t, err)
	getResp, err := srv.Client().Do(req)
	require.NoError(t, err)
	getResp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, getResp.StatusCode)
}

func TestIssueAndActivateFlow(t *testing.T) {
	srv := newTestServer(t)

	resp, body := postJSON(t, srv, "/admin/coupons", map[string]any{"type": "PRO30", "count": 1}, adminHeaders())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["batch_id"])
	codes, ok := body["codes"].([]any)
	require.True(t, ok)
	require.Len(t, codes, 1)
	code := codes[0].(string)

	resp, body = postJSON(t, srv, "/api/activate", map[string]any{"device_id": "dev-1", "code": code}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "pro", body["tier"])
	assert.Equal(t, float64(300), body["credits"])
	assert.Equal(t, false, body["unlimited"])
	assert.NotEmpty(t, body["expires"])
	assert.Equal(t, "License activated: Pro 30 Days", body["message"])

	// The code is single-use.
	resp, body = postJSON(t, srv, "/api/activate", map[string]any{"device_id": "dev-2", "code": code}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, body["error"])

	resp, body = postJSON(t, srv, "/api/status", map[string]any{"device_id": "dev-1"}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pro", body["tier"])
	assert.Equal(t, float64(300), body["remaining"])
}

func TestActivateRejectsGarbageCode(t *testing.T) {
	srv := newTestServer(t)

	resp, body := postJSON(t, srv, "/api/activate", map[string]any{"device_id": "dev-1", "code": "NOT-A-CODE"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
}

func TestUnlimitedStatusRendersSentinel(t *testing.T) {
	srv := newTestServer(t)

	_, body := postJSON(t, srv, "/admin/coupons", map[string]any{"type": "UNL7"}, adminHeaders())
	code := body["codes"].([]any)[0].(string)

	resp, _ := postJSON(t, srv, "/api/activate", map[string]any{"device_id": "dev-1", "code": code}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = postJSON(t, srv, "/api/status", map[string]any{"device_id": "dev-1"}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "unlimited", body["remaining"])
	assert.Equal(t, true, body["unlimited"])
	assert.Equal(t, "Pro-UNLIMITED", body["tier_display"])
}

func TestAdminBonusAndNotificationDelivery(t *testing.T) {
	srv := newTestServer(t)

	_, _ = postJSON(t, srv, "/api/status", map[string]any{"device_id": "dev-1"}, nil)

	resp, body := postJSON(t, srv, "/admin/bonus", map[string]any{
		"device_id": "dev-1",
		"credits":   50,
		"message":   "thanks for the report",
	}, adminHeaders())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	resp, body = postJSON(t, srv, "/api/notifications", map[string]any{"device_id": "dev-1"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	notes, ok := body["notifications"].([]any)
	require.True(t, ok)
	require.Len(t, notes, 1)
	note := notes[0].(map[string]any)
	assert.Equal(t, "bonus", note["type"])
	assert.Equal(t, "thanks for the report", note["message"])
	assert.Equal(t, float64(50), note["credits_change"])

	// Delivered at most once.
	_, body = postJSON(t, srv, "/api/notifications", map[string]any{"device_id": "dev-1"}, nil)
	assert.Empty(t, body["notifications"])
}

func TestAdminBonusUnknownDevice(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := postJSON(t, srv, "/admin/bonus", map[string]any{"device_id": "ghost", "credits": 10}, adminHeaders())
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSuspendedDeviceGetsForbidden(t *testing.T) {
	srv := newTestServer(t)

	_, _ = postJSON(t, srv, "/api/status", map[string]any{"device_id": "dev-1"}, nil)
	resp, _ := postJSON(t, srv, "/admin/suspend", map[string]any{"device_id": "dev-1", "reason": "abuse"}, adminHeaders())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := postJSON(t, srv, "/api/use", map[string]any{"device_id": "dev-1", "text": "x"}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.NotEmpty(t, body["error"])

	resp, body = postJSON(t, srv, "/api/status", map[string]any{"device_id": "dev-1"}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["suspended"])
	assert.Equal(t, float64(0), body["remaining"])
	assert.Equal(t, "abuse", body["suspend_reason"])
}

func TestAdminStatsAndDeviceViews(t *testing.T) {
	srv := newTestServer(t)

	_, _ = postJSON(t, srv, "/api/use", map[string]any{"device_id": "dev-1", "text": "hello"}, nil)
	_, _ = postJSON(t, srv, "/api/status", map[string]any{"device_id": "dev-2"}, nil)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/admin/stats", nil)
	require.NoError(t, err)
	req.Header.Set("X-Admin-Key", testAdminKey)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, float64(2), stats["total_devices"])
	assert.Equal(t, float64(1), stats["total_generations"])

	req, err = http.NewRequest(http.MethodGet, srv.URL+"/admin/devices/dev-1", nil)
	require.NoError(t, err)
	req.Header.Set("X-Admin-Key", testAdminKey)
	detailResp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer detailResp.Body.Close()
	require.Equal(t, http.StatusOK, detailResp.StatusCode)

	var detail map[string]any
	require.NoError(t, json.NewDecoder(detailResp.Body).Decode(&detail))
	license, ok := detail["license"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "dev-1", license["device_id"])
	usage, ok := detail["usage"].([]any)
	require.True(t, ok)
	assert.Len(t, usage, 1)
}
