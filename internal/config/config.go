package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the phishing-simulation console.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       LogConfig
	Metrics   MetricsConfig
	Geo       GeoConfig
	Report    ReportConfig
}

type ServerConfig struct {
	Addr            string
	Env             string
	BaseURL         string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxConns     int
	MinConns     int
	ConnLifetime time.Duration
	ConnIdleTime time.Duration
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
	ReadTimeout time.Duration
}

type AuthConfig struct {
	Enabled   bool
	MasterKey string
	SkipPaths []string
}

type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// GeoConfig configures GeoIP enrichment of click logs.
type GeoConfig struct {
	Enabled      bool
	DatabasePath string
}

// ReportConfig holds settings for the analytics report layer.
type ReportConfig struct {
	// CacheTTL bounds how long a fully built overview report may be
	// served from Redis before being recomputed.
	CacheTTL time.Duration
	// NoDataLabel is the sentinel returned for leaderboard slots that
	// have no events behind them.
	NoDataLabel string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnv("PHISHSIM_HTTP_ADDR", ":8080"),
			Env:             getEnv("PHISHSIM_ENV", "development"),
			BaseURL:         getEnv("PHISHSIM_BASE_URL", "http://localhost:8080"),
			ShutdownTimeout: getDurationEnv("PHISHSIM_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:         getEnv("PHISHSIM_DB_HOST", "localhost"),
			Port:         getIntEnv("PHISHSIM_DB_PORT", 5432),
			User:         getEnv("PHISHSIM_DB_USER", "phishsim"),
			Password:     getEnv("PHISHSIM_DB_PASSWORD", "phishsim_secret"),
			DBName:       getEnv("PHISHSIM_DB_NAME", "phishsim"),
			SSLMode:      getEnv("PHISHSIM_DB_SSLMODE", "disable"),
			MaxConns:     getIntEnv("PHISHSIM_DB_MAX_CONNS", 25),
			MinConns:     getIntEnv("PHISHSIM_DB_MIN_CONNS", 5),
			ConnLifetime: getDurationEnv("PHISHSIM_DB_CONN_LIFETIME", time.Hour),
			ConnIdleTime: getDurationEnv("PHISHSIM_DB_CONN_IDLE_TIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Addr:        getEnv("PHISHSIM_REDIS_ADDR", "localhost:6379"),
			Password:    getEnv("PHISHSIM_REDIS_PASSWORD", ""),
			DB:          getIntEnv("PHISHSIM_REDIS_DB", 0),
			DialTimeout: getDurationEnv("PHISHSIM_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout: getDurationEnv("PHISHSIM_REDIS_READ_TIMEOUT", 3*time.Second),
		},
		Auth: AuthConfig{
			Enabled:   getBoolEnv("PHISHSIM_AUTH_ENABLED", false),
			MasterKey: getEnv("PHISHSIM_API_KEY_MASTER", ""),
			SkipPaths: getSliceEnv("PHISHSIM_AUTH_SKIP_PATHS", []string{"/health", "/metrics", "/track/", "/capture/"}),
		},
		RateLimit: RateLimitConfig{
			Enabled: getBoolEnv("PHISHSIM_RATE_LIMIT_ENABLED", true),
			RPS:     getFloatEnv("PHISHSIM_RATE_LIMIT_RPS", 100),
			Burst:   getIntEnv("PHISHSIM_RATE_LIMIT_BURST", 50),
		},
		Log: LogConfig{
			Level:  getEnv("PHISHSIM_LOG_LEVEL", "info"),
			Format: getEnv("PHISHSIM_LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolEnv("PHISHSIM_METRICS_ENABLED", true),
			Path:    getEnv("PHISHSIM_METRICS_PATH", "/metrics"),
		},
		Geo: GeoConfig{
			Enabled:      getBoolEnv("PHISHSIM_GEO_ENABLED", false),
			DatabasePath: getEnv("PHISHSIM_GEO_DB_PATH", "/app/data/GeoLite2-Country.mmdb"),
		},
		Report: ReportConfig{
			CacheTTL:    getDurationEnv("PHISHSIM_REPORT_CACHE_TTL", 30*time.Second),
			NoDataLabel: getEnv("PHISHSIM_REPORT_NO_DATA_LABEL", "no data"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Auth.Enabled && c.Auth.MasterKey == "" {
		return fmt.Errorf("PHISHSIM_API_KEY_MASTER is required when auth is enabled")
	}
	if c.Report.CacheTTL < 0 {
		return fmt.Errorf("PHISHSIM_REPORT_CACHE_TTL must not be negative")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Helper functions for reading environment variables

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getFloatEnv(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getSliceEnv(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				result = append(result, p)
			}
		}
		return result
	}
	return def
}
