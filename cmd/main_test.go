package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-manager/internal/auth"
	"github.com/ukydev/fleet-manager/internal/config"
	"github.com/ukydev/fleet-manager/internal/db"
	"github.com/ukydev/fleet-manager/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func testConfig() *config.Config {
	return &config.Config{
		StoreBackend:             config.BackendMemory,
		JWTSecret:                "router-test-secret",
		JWTExpiry:                time.Hour,
		OTPTTL:                   time.Minute,
		DashboardRefreshInterval: time.Minute,
		OffRouteReloadInterval:   time.Minute,
		RateLimit:                1000,
		AdminUsername:            "admin",
		AdminPassword:            "admin-password",
		AdminPhone:               "9000000000",
	}
}

func newTestServices(t *testing.T) (*services, *db.MemoryStore, *config.Config) {
	t.Helper()
	cfg := testConfig()
	store := db.NewMemoryStore()
	s := newServices(store, db.NewMemoryUserCollection(), auth.NewMemoryOTPStore(), cfg)
	return s, store, cfg
}

func bearer(t *testing.T, s *services, role models.Role, driverID string) string {
	t.Helper()
	token, err := s.auth.GenerateToken(&models.User{
		ID:       primitive.NewObjectID(),
		Username: string(role) + "-user",
		Role:     role,
		DriverID: driverID,
	})
	require.NoError(t, err)
	return "Bearer " + token
}

func TestRouter_PublicEndpoints(t *testing.T) {
	s, _, cfg := newTestServices(t)
	router := newRouter(s, cfg)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_Guards(t *testing.T) {
	s, store, cfg := newTestServices(t)
	router := newRouter(s, cfg)
	store.Put(models.CollectionVehicles, "v1", map[string]interface{}{"plateNumber": "MH12AB1234"})

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		token  string
		want   int
	}{
		{"dashboard without token", http.MethodGet, "/api/dashboard", "", "", http.StatusUnauthorized},
		{"dashboard as manager", http.MethodGet, "/api/dashboard", "", bearer(t, s, models.RoleManager, ""), http.StatusOK},
		{"dashboard as driver", http.MethodGet, "/api/dashboard", "", bearer(t, s, models.RoleDriver, "d1"), http.StatusForbidden},
		{"bill decision as driver", http.MethodPost, "/api/bills/b1/decision", `{"outcome":"approved"}`, bearer(t, s, models.RoleDriver, "d1"), http.StatusForbidden},
		{"unknown bill as manager", http.MethodPost, "/api/bills/b1/decision", `{"outcome":"approved"}`, bearer(t, s, models.RoleManager, ""), http.StatusNotFound},
		{"vehicles as driver", http.MethodGet, "/api/vehicles", "", bearer(t, s, models.RoleDriver, "d1"), http.StatusOK},
		{"create vehicle as driver", http.MethodPost, "/api/vehicles", `{}`, bearer(t, s, models.RoleDriver, "d1"), http.StatusForbidden},
		{"inspection as driver", http.MethodPost, "/api/inspections", `{"vehicleId":"v1","checklist":{"brakes":true}}`, bearer(t, s, models.RoleDriver, "d1"), http.StatusCreated},
		{"wrong method", http.MethodDelete, "/api/vehicles", "", bearer(t, s, models.RoleAdmin, ""), http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var req *http.Request
			if tc.body != "" {
				req = httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			} else {
				req = httptest.NewRequest(tc.method, tc.path, nil)
			}
			if tc.token != "" {
				req.Header.Set("Authorization", tc.token)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestOpenStore(t *testing.T) {
	cfg := testConfig()

	store, users, closeFn, err := openStore(context.Background(), cfg)
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &db.MemoryStore{}, store)
	assert.IsType(t, &db.MemoryUserCollection{}, users)

	cfg.StoreBackend = "cassandra"
	_, _, _, err = openStore(context.Background(), cfg)
	assert.Error(t, err)
}

func TestEnsureAdmin(t *testing.T) {
	s, _, cfg := newTestServices(t)
	ctx := context.Background()

	require.NoError(t, ensureAdmin(ctx, s, cfg))
	require.NoError(t, ensureAdmin(ctx, s, cfg))

	admin, err := s.users.FindUserByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.True(t, s.auth.CheckPassword("admin-password", admin.PasswordHash))

	cfg.AdminUsername = ""
	assert.NoError(t, ensureAdmin(ctx, s, cfg))
}
