package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "STORE_BACKEND", "JWT_EXPIRY", "OTP_TTL", "DASHBOARD_REFRESH_INTERVAL"} {
		t.Setenv(k, "")
	}
	cfg := Load(filepath.Join(t.TempDir(), "missing.env"))

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, BackendMongo, cfg.StoreBackend)
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, 5*time.Minute, cfg.OTPTTL)
	assert.Equal(t, 30*time.Second, cfg.DashboardRefreshInterval)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("JWT_EXPIRY", "2h")
	t.Setenv("DASHBOARD_REFRESH_INTERVAL", "15")
	t.Setenv("OTP_TTL", "not-a-duration")
	t.Setenv("ALLOWED_ORIGINS", "https://ops.example.com, ,http://localhost:3000")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "-3")

	cfg := Load(filepath.Join(t.TempDir(), "missing.env"))

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, 2*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, 15*time.Second, cfg.DashboardRefreshInterval)
	assert.Equal(t, 5*time.Minute, cfg.OTPTTL)
	assert.Equal(t, []string{"https://ops.example.com", "http://localhost:3000"}, cfg.AllowedOrigins)
	assert.Equal(t, 100, cfg.RateLimit)
}

func TestLoad_DotEnvFile(t *testing.T) {
	t.Setenv("MONGO_DB", "")
	os.Unsetenv("MONGO_DB")
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("MONGO_DB=fleet_from_file\n"), 0o600))

	cfg := Load(path)
	assert.Equal(t, "fleet_from_file", cfg.MongoDB)
	os.Unsetenv("MONGO_DB")
}
