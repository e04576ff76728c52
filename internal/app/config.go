package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/aussiebroadwan/streamit/pkg/httpx"
	"github.com/aussiebroadwan/streamit/pkg/session"
	"github.com/aussiebroadwan/streamit/pkg/tokenstore"
)

// Token store backends.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

type Config struct {
	APIBaseURL        string        // StreamIt API base URL (default: http://localhost:8080)
	TokenStore        string        // Token persistence backend (file, sqlite, memory) (default: file)
	TokenFile         string        // Path of the file store (default: ./.streamit-session.json)
	TokenDatabaseFile string        // Path of the SQLite store (default: ./streamit.db)
	LoginPath         string        // Where expired sessions are sent (default: /login)
	RefreshLead       time.Duration // How long before exp to renew (default: 30s)
	RefreshTimeout    time.Duration // Bound on one refresh exchange (default: 30s)
	HTTPTimeout       time.Duration // Overall per-request timeout (default: 60s)
	RateLimit         httpx.RateLimitConfig

	Env       string // Environment (dev, staging, prod) (default: dev)
	LogLevel  string // Log level (debug, info, warn, error) (default: info)
	LogFormat string // Log format (json, text) (default: text)

	MetricsAddr string // Listen address for `serve` (default: :9464)

	DevAPIPort     int           // Port of `streamit devapi` (default: 8080)
	DevAPITokenTTL time.Duration // Access token lifetime minted by the dev API (default: 15m)
	DevAPISecret   string        // HS256 secret of the dev API (default: random)
}

// LoadConfig reads the configuration from the environment, loading a
// .env file from the working directory first when one exists.
func LoadConfig() Config {
	_ = godotenv.Load()

	return Config{
		APIBaseURL:        strings.TrimSuffix(getEnvOrDefault("API_BASE_URL", "http://localhost:8080"), "/"),
		TokenStore:        strings.ToLower(getEnvOrDefault("TOKEN_STORE", StoreFile)),
		TokenFile:         getEnvOrDefault("TOKEN_FILE", tokenstore.DefaultFile),
		TokenDatabaseFile: getEnvOrDefault("TOKEN_DATABASE_FILE", "streamit.db"),
		LoginPath:         getEnvOrDefault("LOGIN_PATH", session.DefaultLoginPath),
		RefreshLead:       getEnvDurationOrDefault("REFRESH_LEAD", session.DefaultRefreshLead),
		RefreshTimeout:    getEnvDurationOrDefault("REFRESH_TIMEOUT", session.DefaultRefreshTimeout),
		HTTPTimeout:       getEnvDurationOrDefault("HTTP_TIMEOUT", 60*time.Second),
		RateLimit:         httpx.ParseRateLimitFromEnv(httpx.DefaultRateLimit),
		Env:               getEnvOrDefault("ENV", "dev"),
		LogLevel:          getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:         getEnvOrDefault("LOG_FORMAT", "text"),
		MetricsAddr:       getEnvOrDefault("METRICS_ADDR", ":9464"),
		DevAPIPort:        getEnvIntOrDefault("DEVAPI_PORT", 8080),
		DevAPITokenTTL:    getEnvDurationOrDefault("DEVAPI_TOKEN_TTL", 15*time.Minute),
		DevAPISecret:      os.Getenv("DEVAPI_SECRET"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
