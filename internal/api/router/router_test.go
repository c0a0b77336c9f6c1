package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrenchline/wrenchline/internal/http/handlers"
	httpmiddleware "github.com/wrenchline/wrenchline/internal/http/middleware"
	"github.com/wrenchline/wrenchline/internal/tenant"
	"github.com/wrenchline/wrenchline/pkg/logging"
)

func TestHealthEndpoint(t *testing.T) {
	h := New(&Config{Logger: logging.Default()})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestAdminRoutesAbsentWithoutSecret(t *testing.T) {
	h := New(&Config{Logger: logging.Default()})

	req := httptest.NewRequest(http.MethodGet, "/admin/tenants/tnt-1/summary", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

type staticConfigStore struct{}

func (staticConfigStore) Get(_ context.Context, tenantID string) (*tenant.Config, error) {
	return tenant.DefaultConfig(tenantID), nil
}

func (staticConfigStore) Set(_ context.Context, _ *tenant.Config) error { return nil }

func TestAdminRoutesEnforceJWT(t *testing.T) {
	const secret = "s3cret"
	h := New(&Config{
		Logger:          logging.Default(),
		AdminDashboard:  handlers.NewAdminDashboardHandler(nil, staticConfigStore{}, logging.Default()),
		AdminAuthSecret: secret,
	})

	req := httptest.NewRequest(http.MethodGet, "/admin/tenants/tnt-1/config", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "missing token must be rejected")

	req = httptest.NewRequest(http.MethodGet, "/admin/tenants/tnt-1/config", nil)
	req.Header.Set("Authorization", "Bearer "+signAdminToken(t, secret))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tnt-1")
}

func TestMetricsMountedWhenConfigured(t *testing.T) {
	h := New(&Config{
		Logger: logging.Default(),
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func signAdminToken(t *testing.T, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    httpmiddleware.AdminIssuer,
		Subject:   "owner",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}
