package config

import (
	"errors"
	"fleet-routing-service/internal/domain"
	"log/slog"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/fleet")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, domain.DefaultProximityConfig(), cfg.Proximity)
	assert.Equal(t, 8*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, 10*time.Minute, cfg.OptimizeCacheTTL)
	assert.Equal(t, 5*time.Second, cfg.TripLockLease)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Empty(t, cfg.ORSAPIKey)
	assert.Empty(t, cfg.TrustedProxies)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsInvertedThresholds(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/fleet")
	t.Setenv("NOTIFY_THRESHOLD_METERS", "900")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/fleet")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOOKAHEAD_STOP_COUNT", "2")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("CORS_ORIGINS", "https://admin.example.com, https://ops.example.com")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 2, cfg.Proximity.LookaheadStopCount)
	assert.True(t, cfg.RedisEnabled)
	assert.Equal(t, []string{"https://admin.example.com", "https://ops.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("192.168.1.5/32"),
	}, cfg.TrustedProxies)
}

func TestLoadRejectsBadTrustedProxy(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/fleet")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, not-an-ip")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}
