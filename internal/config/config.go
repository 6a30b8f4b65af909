package config

import (
	"fleet-routing-service/internal/domain"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	LogLevel    slog.Level
	DatabaseURL string

	ORSAPIKey        string
	ORSBaseURL       string
	ORSProfile       string
	ProviderTimeout  time.Duration
	ProviderRetries  int
	TwoOptIterations int
	FallbackSpeedKmh float64

	Proximity domain.ProximityConfig

	RedisEnabled      bool
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	ProximityStateTTL time.Duration
	TripLockLease     time.Duration
	OptimizeCacheTTL  time.Duration

	AMQPURL           string
	AMQPExchange      string
	AMQPPositionQueue string

	RateLimitPerMinute int
	TrustedProxies     []netip.Prefix
	CORSOrigins        []string
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		return nil, fmt.Errorf("load config: DATABASE_URL is required")
	}

	trustedProxies, err := parsePrefixes(getCSV("TRUSTED_PROXIES", nil))
	if err != nil {
		return nil, fmt.Errorf("load config: TRUSTED_PROXIES: %w", err)
	}

	cfg := &Config{
		Port:        Get("PORT", "8080"),
		LogLevel:    getLogLevel("LOG_LEVEL", slog.LevelInfo),
		DatabaseURL: databaseURL,

		ORSAPIKey:        strings.TrimSpace(os.Getenv("ORS_API_KEY")),
		ORSBaseURL:       Get("ORS_BASE_URL", "https://api.openrouteservice.org"),
		ORSProfile:       Get("ORS_PROFILE", "driving-car"),
		ProviderTimeout:  getDuration("PROVIDER_TIMEOUT", 8*time.Second),
		ProviderRetries:  getInt("PROVIDER_RETRIES", 1),
		TwoOptIterations: getInt("TWO_OPT_ITERATIONS", 50),
		FallbackSpeedKmh: getFloat("FALLBACK_SPEED_KMH", 30),

		Proximity: domain.ProximityConfig{
			ApproachThresholdMeters: getFloat("APPROACH_THRESHOLD_METERS", 800),
			NotifyThresholdMeters:   getFloat("NOTIFY_THRESHOLD_METERS", 300),
			ArrivalThresholdMeters:  getFloat("ARRIVAL_THRESHOLD_METERS", 50),
			ResetThresholdMeters:    getFloat("RESET_THRESHOLD_METERS", 1000),
			LookaheadStopCount:      getInt("LOOKAHEAD_STOP_COUNT", 1),
		},

		RedisEnabled:      getBool("REDIS_ENABLED", false),
		RedisAddr:         Get("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           getInt("REDIS_DB", 0),
		ProximityStateTTL: getDuration("PROXIMITY_STATE_TTL", 12*time.Hour),
		TripLockLease:     getDuration("TRIP_LOCK_LEASE", 5*time.Second),
		OptimizeCacheTTL:  getDuration("OPTIMIZE_CACHE_TTL", 10*time.Minute),

		AMQPURL:           strings.TrimSpace(os.Getenv("AMQP_URL")),
		AMQPExchange:      Get("AMQP_EXCHANGE", "fleet_topic"),
		AMQPPositionQueue: Get("AMQP_POSITION_QUEUE", "vehicle_positions"),

		RateLimitPerMinute: getInt("RATE_LIMIT_PER_MINUTE", 10),
		TrustedProxies:     trustedProxies,
		CORSOrigins:        getCSV("CORS_ORIGINS", []string{"*"}),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the values Load cannot fix by falling back to defaults.
func (c *Config) Validate() error {
	if err := c.Proximity.Validate(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("load config: %w: PROVIDER_TIMEOUT must be positive", domain.ErrInvalidInput)
	}
	if c.ProviderRetries < 0 {
		return fmt.Errorf("load config: %w: PROVIDER_RETRIES must be >= 0", domain.ErrInvalidInput)
	}
	if c.TwoOptIterations < 0 {
		return fmt.Errorf("load config: %w: TWO_OPT_ITERATIONS must be >= 0", domain.ErrInvalidInput)
	}
	if c.TripLockLease <= 0 {
		return fmt.Errorf("load config: %w: TRIP_LOCK_LEASE must be positive", domain.ErrInvalidInput)
	}
	if c.FallbackSpeedKmh <= 0 {
		return fmt.Errorf("load config: %w: FALLBACK_SPEED_KMH must be positive", domain.ErrInvalidInput)
	}
	return nil
}

// Get returns the value of key or fallback when unset.
func Get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getLogLevel(key string, fallback slog.Level) slog.Level {
	switch strings.ToLower(os.Getenv(key)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return fallback
	}
}

func getCSV(key string, fallback []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	out := make([]string, 0)
	for _, p := range strings.Split(v, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// parsePrefixes accepts CIDRs and bare addresses.
func parsePrefixes(values []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(values))
	for _, v := range values {
		if p, err := netip.ParsePrefix(v); err == nil {
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is neither a CIDR nor an address", domain.ErrInvalidInput, v)
		}
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}
