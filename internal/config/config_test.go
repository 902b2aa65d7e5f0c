package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, "8081", cfg.HTTPPort)
	assert.Equal(t, "postgres", cfg.StoreBackend)
	assert.Equal(t, time.Minute, cfg.TickPeriod)
	assert.Equal(t, 100.0, cfg.GeofenceRadiusM)
	assert.Equal(t, 2*time.Minute, cfg.LocationTTL)
	assert.Equal(t, 120, cfg.RateLimitPerMin)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("TICK_PERIOD", "30s")
	t.Setenv("GEOFENCE_RADIUS_M", "250")
	t.Setenv("WEBHOOK_SKIP", "false")
	t.Setenv("RATE_LIMIT_PER_MIN", "10")

	cfg := Load()
	assert.Equal(t, "9000", cfg.HTTPPort)
	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, 30*time.Second, cfg.TickPeriod)
	assert.Equal(t, 250.0, cfg.GeofenceRadiusM)
	assert.False(t, cfg.WebhookSkip)
	assert.Equal(t, 10, cfg.RateLimitPerMin)
}

func TestLoadBadValuesFallBack(t *testing.T) {
	t.Setenv("TICK_PERIOD", "soon")
	t.Setenv("GEOFENCE_RADIUS_M", "wide")
	t.Setenv("RATE_LIMIT_PER_MIN", "lots")

	cfg := Load()
	assert.Equal(t, time.Minute, cfg.TickPeriod)
	assert.Equal(t, 100.0, cfg.GeofenceRadiusM)
	assert.Equal(t, 120, cfg.RateLimitPerMin)
}
