package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// SSOT: every environment variable is read here and nowhere else
type Config struct {
	Env string // development, staging, production

	// Paths
	Paths PathsConfig

	// Input source for validate/diagnose
	Source string // csv, sqlite, postgres

	// Rule manifest (empty = embedded defaults)
	RulesFile string

	// Database (run history, optional postgres source)
	Database DatabaseConfig

	// Redis (report cache)
	Redis RedisConfig

	// Dataset fetcher
	Fetch FetchConfig

	// Loader
	LoadWorkers int

	// Logging
	LogLevel  string
	LogFormat string
}

// PathsConfig holds filesystem locations
type PathsConfig struct {
	RawDir    string
	DataDir   string
	DBPath    string
	ReportDir string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
	TTL      time.Duration
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL    string
	Schema string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// FetchConfig holds dataset download configuration
type FetchConfig struct {
	BaseURL    string
	RatePerSec float64
	Burst      int
	Timeout    time.Duration
	MaxRetries int
}

// Enabled reports whether a Postgres URL is configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// Load reads configuration from environment variables
// SSOT: the only function that calls os.Getenv()
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Env: getEnv("ENV", "development"),

		Paths: PathsConfig{
			RawDir:    getEnv("RAW_DIR", filepath.Join("data", "raw")),
			DataDir:   getEnv("DATA_DIR", filepath.Join("data", "interim")),
			DBPath:    getEnv("DB_PATH", filepath.Join("data", "processed", "f1_database.db")),
			ReportDir: getEnv("REPORT_DIR", "reports"),
		},

		Source:    getEnv("SOURCE", "csv"),
		RulesFile: getEnv("RULES_FILE", ""),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			Schema:          getEnv("DB_SCHEMA", "public"),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			TTL:      getEnvAsDuration("REDIS_TTL", "24h"),
		},

		Fetch: FetchConfig{
			BaseURL:    getEnv("DATASET_BASE_URL", "https://raw.githubusercontent.com/f1db/f1-csv/main"),
			RatePerSec: getEnvAsFloat("FETCH_RATE_PER_SEC", 2),
			Burst:      getEnvAsInt("FETCH_BURST", 1),
			Timeout:    getEnvAsDuration("FETCH_TIMEOUT", "60s"),
			MaxRetries: getEnvAsInt("FETCH_MAX_RETRIES", 3),
		},

		LoadWorkers: getEnvAsInt("LOAD_WORKERS", 4),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if configuration values are consistent
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.Source {
	case "csv", "sqlite":
	case "postgres":
		if !c.Database.Enabled() {
			return fmt.Errorf("DATABASE_URL is required when SOURCE=postgres")
		}
	default:
		return fmt.Errorf("SOURCE must be one of: csv, sqlite, postgres")
	}

	if c.LoadWorkers < 1 {
		return fmt.Errorf("LOAD_WORKERS must be >= 1")
	}

	if c.Fetch.RatePerSec <= 0 {
		return fmt.Errorf("FETCH_RATE_PER_SEC must be > 0")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
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

// LoadFile loads an explicit env file before Load is called
func LoadFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Overload(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
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
