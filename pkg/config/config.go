package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all process-level configuration for tapewatch.
// Trading thresholds live in the funnel config file, not here; this struct
// only covers infrastructure and provider credentials.
// ⭐ SSOT: all environment variables are read in this package only.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Market data providers, ranked Tier-1 .. Tier-3
	Polygon PolygonConfig
	Tiingo  TiingoConfig
	Stooq   StooqConfig

	// Monitor loop
	Monitor MonitorConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	URL string

	// Connection pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// PolygonConfig holds the Tier-1 depth feed configuration.
type PolygonConfig struct {
	APIKey  string
	WSURL   string
	BaseURL string // REST base for reference data
	// MaxStaleness bounds how old a streamed quote may be before the tier
	// reports UNAVAILABLE for that instrument.
	MaxStaleness time.Duration
}

// TiingoConfig holds the Tier-2 intraday REST feed configuration.
type TiingoConfig struct {
	Token      string
	BaseURL    string
	RatePerSec float64
	Burst      int
}

// StooqConfig holds the Tier-3 delayed aggregate feed configuration.
type StooqConfig struct {
	BaseURL string
}

// MonitorConfig holds monitor loop wiring that is not a trading threshold.
type MonitorConfig struct {
	// FunnelConfigPath points at the YAML file with all gate thresholds,
	// risk weights, cadence and deadlines. Required; startup fails without it.
	FunnelConfigPath string

	// ArchiveEnabled controls whether each live cycle is written to the
	// replay archive.
	ArchiveEnabled bool
}

// Load reads configuration from environment variables.
// ⭐ SSOT: only this function calls os.Getenv().
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8094"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 16),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		Polygon: PolygonConfig{
			APIKey:       getEnv("POLYGON_API_KEY", ""),
			WSURL:        getEnv("POLYGON_WS_URL", "wss://socket.polygon.io/stocks"),
			BaseURL:      getEnv("POLYGON_BASE_URL", "https://api.polygon.io"),
			MaxStaleness: getEnvAsDuration("POLYGON_MAX_STALENESS", "10s"),
		},

		Tiingo: TiingoConfig{
			Token:      getEnv("TIINGO_TOKEN", ""),
			BaseURL:    getEnv("TIINGO_BASE_URL", "https://api.tiingo.com"),
			RatePerSec: getEnvAsFloat("TIINGO_RATE_PER_SEC", 5.0),
			Burst:      getEnvAsInt("TIINGO_BURST", 10),
		},

		Stooq: StooqConfig{
			BaseURL: getEnv("STOOQ_BASE_URL", "https://stooq.com"),
		},

		Monitor: MonitorConfig{
			FunnelConfigPath: getEnv("FUNNEL_CONFIG_PATH", "config/funnel.yaml"),
			ArchiveEnabled:   getEnvAsBool("ARCHIVE_ENABLED", true),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set.
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Monitor.FunnelConfigPath == "" {
		return fmt.Errorf("FUNNEL_CONFIG_PATH is required")
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations.
func loadEnvFile() {
	paths := []string{
		".env",
		"tapewatch/.env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
