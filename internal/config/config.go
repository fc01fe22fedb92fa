package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the querydeck service.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	Log        LogConfig
	Metrics    MetricsConfig
	Dashboard  DashboardConfig
	Anomaly    AnomalyConfig
}

type ServerConfig struct {
	Addr            string
	Env             string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// ClickHouseConfig configures the OLAP store holding the pre-aggregated
// search-query metric rows.
type ClickHouseConfig struct {
	Addr     string
	Database string
	User     string
	Password string
	Dialers  int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	CacheTTL time.Duration
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

// DashboardConfig holds the presentation defaults served to clients.
type DashboardConfig struct {
	// DefaultPageSize is the table page window when the client sends none.
	DefaultPageSize int
	// DefaultTopN bounds waterfall entity bars.
	DefaultTopN int
	// CVRBasis is the conversion-rate denominator: "clicks" or "impressions".
	CVRBasis string
	// ComparisonOffset shifts the previous period relative to the current
	// one when the client does not name one explicitly.
	ComparisonOffset time.Duration
}

// AnomalyConfig holds the thresholds for period-over-period scans.
type AnomalyConfig struct {
	// WarnPct and CriticalPct are absolute percent-change thresholds
	// (0.25 = 25%) above which a metric movement is flagged.
	WarnPct     float64
	CriticalPct float64
	// MinImpressions filters out noise from thin rows.
	MinImpressions int64
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnv("QUERYDECK_HTTP_ADDR", ":8080"),
			Env:             getEnv("QUERYDECK_ENV", "development"),
			ShutdownTimeout: getDurationEnv("QUERYDECK_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("QUERYDECK_DB_HOST", "localhost"),
			Port:     getIntEnv("QUERYDECK_DB_PORT", 5432),
			User:     getEnv("QUERYDECK_DB_USER", "querydeck"),
			Password: getEnv("QUERYDECK_DB_PASSWORD", "querydeck_secret"),
			DBName:   getEnv("QUERYDECK_DB_NAME", "querydeck"),
			SSLMode:  getEnv("QUERYDECK_DB_SSLMODE", "disable"),
			MaxConns: getIntEnv("QUERYDECK_DB_MAX_CONNS", 25),
			MinConns: getIntEnv("QUERYDECK_DB_MIN_CONNS", 5),
		},
		ClickHouse: ClickHouseConfig{
			Addr:     getEnv("QUERYDECK_CLICKHOUSE_ADDR", "localhost:9000"),
			Database: getEnv("QUERYDECK_CLICKHOUSE_DB", "querydeck"),
			User:     getEnv("QUERYDECK_CLICKHOUSE_USER", "default"),
			Password: getEnv("QUERYDECK_CLICKHOUSE_PASSWORD", ""),
			Dialers:  getIntEnv("QUERYDECK_CLICKHOUSE_DIALERS", 5),
		},
		Redis: RedisConfig{
			Addr:     getEnv("QUERYDECK_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("QUERYDECK_REDIS_PASSWORD", ""),
			DB:       getIntEnv("QUERYDECK_REDIS_DB", 0),
			PoolSize: getIntEnv("QUERYDECK_REDIS_POOL_SIZE", 10),
			CacheTTL: getDurationEnv("QUERYDECK_REDIS_CACHE_TTL", 5*time.Minute),
		},
		Auth: AuthConfig{
			Enabled:   getBoolEnv("QUERYDECK_AUTH_ENABLED", true),
			MasterKey: getEnv("QUERYDECK_API_KEY_MASTER", ""),
			SkipPaths: getSliceEnv("QUERYDECK_AUTH_SKIP_PATHS", []string{"/health", "/metrics"}),
		},
		RateLimit: RateLimitConfig{
			Enabled: getBoolEnv("QUERYDECK_RATE_LIMIT_ENABLED", true),
			RPS:     getFloatEnv("QUERYDECK_RATE_LIMIT_RPS", 100),
			Burst:   getIntEnv("QUERYDECK_RATE_LIMIT_BURST", 20),
		},
		Log: LogConfig{
			Level:  getEnv("QUERYDECK_LOG_LEVEL", "info"),
			Format: getEnv("QUERYDECK_LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolEnv("QUERYDECK_METRICS_ENABLED", true),
			Path:    getEnv("QUERYDECK_METRICS_PATH", "/metrics"),
		},
		Dashboard: DashboardConfig{
			DefaultPageSize:  getIntEnv("QUERYDECK_PAGE_SIZE", 25),
			DefaultTopN:      getIntEnv("QUERYDECK_WATERFALL_TOP_N", 10),
			CVRBasis:         getEnv("QUERYDECK_CVR_BASIS", "clicks"),
			ComparisonOffset: getDurationEnv("QUERYDECK_COMPARISON_OFFSET", 7*24*time.Hour),
		},
		Anomaly: AnomalyConfig{
			WarnPct:        getFloatEnv("QUERYDECK_ANOMALY_WARN_PCT", 0.25),
			CriticalPct:    getFloatEnv("QUERYDECK_ANOMALY_CRITICAL_PCT", 0.50),
			MinImpressions: int64(getIntEnv("QUERYDECK_ANOMALY_MIN_IMPRESSIONS", 100)),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present and coherent.
func (c *Config) Validate() error {
	if c.Auth.Enabled && c.Auth.MasterKey == "" {
		return fmt.Errorf("QUERYDECK_API_KEY_MASTER is required when auth is enabled")
	}
	if basis := c.Dashboard.CVRBasis; basis != "clicks" && basis != "impressions" {
		return fmt.Errorf("QUERYDECK_CVR_BASIS must be \"clicks\" or \"impressions\", got %q", basis)
	}
	if c.Anomaly.WarnPct <= 0 || c.Anomaly.CriticalPct < c.Anomaly.WarnPct {
		return fmt.Errorf("anomaly thresholds must satisfy 0 < warn <= critical")
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
