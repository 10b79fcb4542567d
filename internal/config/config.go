package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Data backends
const (
	BackendPostgREST = "postgrest"
	BackendPostgres  = "postgres"
	BackendSQLite    = "sqlite"
	BackendMemory    = "memory"
)

// Cache backends
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

var (
	validBackends      = []string{BackendPostgREST, BackendPostgres, BackendSQLite, BackendMemory}
	validCacheBackends = []string{CacheNone, CacheMemory, CacheRedis}
)

type Config struct {
	// HTTP Server
	Port               string
	Locale             string
	Currency           string
	SessionTTL         time.Duration
	RequestTimeout     time.Duration
	RateLimitPerMinute int
	CORSAllowOrigins   []string

	// Backend selection
	DataBackend string

	// Hosted PostgREST backend
	SupabaseURL string
	SupabaseKey string

	// SQL backends
	DatabaseURL  string
	SQLiteDBPath string

	// Memory backend seed directory
	DataDir string

	// Read cache
	CacheBackend string
	CacheTTL     time.Duration
	RedisURL     string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets export
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Worker fallback polling when AMQP is not configured
	SyncInterval time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Locale:             getEnv("LOCALE", "en"),
		Currency:           getEnv("CURRENCY", "SAR"),
		SessionTTL:         getEnvDuration("SESSION_TTL", 30*time.Minute),
		RequestTimeout:     getEnvDuration("REQUEST_TIMEOUT", 10*time.Second),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		CORSAllowOrigins:   getEnvList("CORS_ALLOW_ORIGINS", []string{"*"}),

		DataBackend: getEnv("DATA_BACKEND", BackendMemory),

		SupabaseURL: getEnv("SUPABASE_URL", ""),
		SupabaseKey: getEnv("SUPABASE_KEY", ""),

		DatabaseURL:  getEnv("DATABASE_URL", ""),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/expenses.db"),

		DataDir: getEnv("DATA_DIR", "data"),

		CacheBackend: getEnv("CACHE_BACKEND", CacheNone),
		CacheTTL:     getEnvDuration("CACHE_TTL", time.Minute),
		RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379/0"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "expenses"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "expenses_sheets_export"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Expenses"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		SyncInterval: getEnvDuration("SYNC_INTERVAL", 5*time.Minute),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// Validate reports every problem in one error.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case BackendPostgREST:
		if c.SupabaseURL == "" {
			errors = append(errors, "SUPABASE_URL is required when using postgrest backend")
		} else if u, err := url.Parse(c.SupabaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid SUPABASE_URL '%s': must be an http(s) URL", c.SupabaseURL))
		}
		if c.SupabaseKey == "" {
			errors = append(errors, "SUPABASE_KEY is required when using postgrest backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		}
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if !slices.Contains(validCacheBackends, c.CacheBackend) {
		errors = append(errors, fmt.Sprintf("invalid cache backend '%s': must be one of %v", c.CacheBackend, validCacheBackends))
	}
	if c.CacheBackend != CacheNone && c.CacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be positive", c.CacheTTL))
	}
	if c.CacheBackend == CacheRedis {
		if u, err := url.Parse(c.RedisURL); err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
			errors = append(errors, fmt.Sprintf("invalid REDIS_URL '%s': scheme must be 'redis' or 'rediss'", c.RedisURL))
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	if l := strings.ToLower(c.Locale); l != "" && !strings.HasPrefix(l, "en") && !strings.HasPrefix(l, "ar") {
		errors = append(errors, fmt.Sprintf("unsupported locale '%s': must be 'en' or 'ar'", c.Locale))
	}
	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}
	if c.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid request timeout %v: must be positive", c.RequestTimeout))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 per minute", c.RateLimitPerMinute))
	}
	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ValidateSheets checks the settings the Google Sheets export needs.
func (c *Config) ValidateSheets() error {
	if c.GoogleSpreadsheetID == "" {
		return fmt.Errorf("GOOGLE_SPREADSHEET_ID is required for the sheets export")
	}
	if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		return fmt.Errorf("either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for the sheets export")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping empty items.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
