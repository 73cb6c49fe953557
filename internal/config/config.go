// Package config loads server and client configuration from the environment.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the reference API configuration.
type Config struct {
	// Server
	Env      string
	Port     string
	LogLevel string

	// Database
	DBDriver   string // "sqlite" or "postgres"
	DBPath     string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	MigrationsDir string

	// JWT
	JWTSecret        string
	JWTExpirationDur time.Duration

	// Receipt recognition
	GeminiAPIKey  string
	GeminiModel   string
	MaxImageBytes int64

	// Expense events; empty URL disables publishing.
	AMQPURL      string
	AMQPExchange string
}

// ClientConfig holds the configuration of the spendsnap client.
type ClientConfig struct {
	APIURL          string
	StateDB         string
	Demo            bool
	LogLevel        string
	Timeout         time.Duration
	UploadTimeout   time.Duration
	DownloadTimeout time.Duration
}

// Default request timeouts per call class.
const (
	DefaultTimeout         = 10 * time.Second
	DefaultUploadTimeout   = 30 * time.Second
	DefaultDownloadTimeout = 60 * time.Second
)

// DefaultMaxImageBytes is the upload limit for receipt images.
const DefaultMaxImageBytes int64 = 5 * 1024 * 1024

var appConfig *Config

// Load loads the server configuration from environment variables.
func Load() (*Config, error) {
	loadDotEnv()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnv("PORT", "3000"),
		LogLevel: getEnv("LOG_LEVEL", ""),

		DBDriver:   strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBPath:     getEnv("DB_PATH", "spendsnap.db"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "spendsnap"),
		DBPassword: getEnv("DB_PASSWORD", "spendsnap"),
		DBName:     getEnv("DB_NAME", "spendsnap"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		MigrationsDir: getEnv("MIGRATIONS_DIR", "migrations"),

		JWTSecret: getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "spendsnap.expenses"),
	}

	if cfg.DBDriver != "sqlite" && cfg.DBDriver != "postgres" {
		return nil, fmt.Errorf("invalid DB_DRIVER %q: must be sqlite or postgres", cfg.DBDriver)
	}

	expStr := getEnv("JWT_EXPIRES_IN", "24h")
	expDur, err := time.ParseDuration(expStr)
	if err != nil {
		log.Printf("Warning: invalid JWT_EXPIRES_IN value '%s', falling back to 24h\n", expStr)
		expDur = 24 * time.Hour
	}
	cfg.JWTExpirationDur = expDur

	maxBytes, err := parseInt64(os.Getenv("MAX_IMAGE_BYTES"), DefaultMaxImageBytes)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_IMAGE_BYTES: %w", err)
	}
	cfg.MaxImageBytes = maxBytes

	appConfig = cfg
	return cfg, nil
}

// Get returns the server configuration, loading it on first use.
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// PostgresDSN returns the gorm connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

// PostgresURL returns the URL form used by golang-migrate.
func (c *Config) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// LoadClient loads the client configuration from environment variables.
func LoadClient() (*ClientConfig, error) {
	loadDotEnv()

	cfg := &ClientConfig{
		APIURL:   strings.TrimRight(getEnv("SPENDSNAP_API_URL", "http://localhost:3000/api"), "/"),
		StateDB:  getEnv("SPENDSNAP_STATE_DB", defaultStateDB()),
		LogLevel: getEnv("LOG_LEVEL", ""),
	}

	demo, err := parseBool(os.Getenv("SPENDSNAP_DEMO"), false)
	if err != nil {
		return nil, fmt.Errorf("invalid SPENDSNAP_DEMO value: %w", err)
	}
	cfg.Demo = demo

	if cfg.Timeout, err = parseTimeout("SPENDSNAP_TIMEOUT", DefaultTimeout); err != nil {
		return nil, err
	}
	if cfg.UploadTimeout, err = parseTimeout("SPENDSNAP_UPLOAD_TIMEOUT", DefaultUploadTimeout); err != nil {
		return nil, err
	}
	if cfg.DownloadTimeout, err = parseTimeout("SPENDSNAP_DOWNLOAD_TIMEOUT", DefaultDownloadTimeout); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: could not read .env: %v\n", err)
	}
}

func defaultStateDB() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "spendsnap-state.db"
	}
	return dir + string(os.PathSeparator) + "spendsnap" + string(os.PathSeparator) + "state.db"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseTimeout(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %v", key, d)
	}
	return d, nil
}

func parseBool(s string, defaultVal bool) (bool, error) {
	if s == "" {
		return defaultVal, nil
	}
	switch strings.ToLower(s) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("must be true, false, 1, or 0, got %q", s)
	}
}

func parseInt64(s string, def int64) (int64, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be positive, got %d", n)
	}
	return n, nil
}
