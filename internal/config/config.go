package config

import (
	"os"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// Config holds runtime configuration values for the OpenTales server.
type Config struct {
	DatabaseURL string
	DBPath      string
	ServerPort  int
	LogLevel    string
	SentryDSN   string
	Environment string

	JWTSecret string
	TokenTTL  time.Duration

	Storage Storage

	CharacterFlushQuiet time.Duration

	RateLimit RateLimit

	ShutdownGrace time.Duration
}

// Storage configures the object storage used for image uploads. When the
// endpoint is empty uploads are disabled and the handler reports the feature
// as unavailable.
type Storage struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

// RateLimit configures the HTTP token bucket limiter.
type RateLimit struct {
	RequestsPerSecond float64
	Burst             int
	ClientTTL         time.Duration
}

const (
	defaultDBPath              = "./data/opentales.db"
	defaultServerPort          = 8080
	defaultLogLevel            = "info"
	defaultTokenTTL            = 24 * time.Hour
	defaultStorageBucket       = "opentales"
	defaultCharacterFlushQuiet = 2 * time.Second
	defaultRateLimitRPS        = 10.0
	defaultRateLimitBurst      = 20
	defaultRateLimitClientTTL  = 10 * time.Minute
	defaultShutdownGrace       = 10 * time.Second
)

// Load reads configuration values from environment variables, applying defaults
// where necessary. An empty DATABASE_URL selects the local SQLite fallback at
// DB_PATH instead of the hosted record store.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBPath:      getEnv("DB_PATH", defaultDBPath),
		LogLevel:    getEnv("LOG_LEVEL", defaultLogLevel),
		SentryDSN:   os.Getenv("SENTRY_DSN"),
		Environment: os.Getenv("ENV"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		Storage: Storage{
			Endpoint:  os.Getenv("STORAGE_ENDPOINT"),
			AccessKey: os.Getenv("STORAGE_ACCESS_KEY"),
			SecretKey: os.Getenv("STORAGE_SECRET_KEY"),
			Bucket:    getEnv("STORAGE_BUCKET", defaultStorageBucket),
			PublicURL: os.Getenv("PUBLIC_STORAGE_URL"),
		},
	}

	port, err := intEnv("SERVER_PORT", defaultServerPort)
	if err != nil {
		return nil, err
	}
	cfg.ServerPort = port

	tokenTTL, err := durationEnv("TOKEN_TTL", defaultTokenTTL)
	if err != nil {
		return nil, err
	}
	cfg.TokenTTL = tokenTTL

	useSSL, err := boolEnv("STORAGE_USE_SSL", false)
	if err != nil {
		return nil, err
	}
	cfg.Storage.UseSSL = useSSL

	quiet, err := durationEnv("CHARACTER_FLUSH_QUIET", defaultCharacterFlushQuiet)
	if err != nil {
		return nil, err
	}
	cfg.CharacterFlushQuiet = quiet

	rps, err := floatEnv("RATE_LIMIT_RPS", defaultRateLimitRPS)
	if err != nil {
		return nil, err
	}
	burst, err := intEnv("RATE_LIMIT_BURST", defaultRateLimitBurst)
	if err != nil {
		return nil, err
	}
	clientTTL, err := durationEnv("RATE_LIMIT_CLIENT_TTL", defaultRateLimitClientTTL)
	if err != nil {
		return nil, err
	}
	cfg.RateLimit = RateLimit{
		RequestsPerSecond: rps,
		Burst:             burst,
		ClientTTL:         clientTTL,
	}

	grace, err := durationEnv("SHUTDOWN_GRACE", defaultShutdownGrace)
	if err != nil {
		return nil, err
	}
	cfg.ShutdownGrace = grace

	return cfg, nil
}

// FallbackMode reports whether the server runs against the local SQLite
// fallback instead of a hosted record store.
func (c *Config) FallbackMode() bool {
	return c.DatabaseURL == ""
}

// StorageConfigured reports whether the object storage collaborator is wired.
func (c *Config) StorageConfigured() bool {
	return c.Storage.Endpoint != ""
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, eris.Wrapf(err, "invalid %s value: %s", key, raw)
	}
	return value, nil
}

func floatEnv(key string, fallback float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "invalid %s value: %s", key, raw)
	}
	return value, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, eris.Wrapf(err, "invalid %s value: %s", key, raw)
	}
	return value, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, eris.Wrapf(err, "invalid %s value: %s", key, raw)
	}
	return value, nil
}
