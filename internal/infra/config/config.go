package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverMemory   = "memory"
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env                string
	HTTPAddr           string
	LogLevel           string
	StoreDriver        string
	DirectoryDriver    string
	MongoURI           string
	MongoDB            string
	PostgresURL        string
	RedisAddr          string
	LockTTL            time.Duration
	KafkaBrokers       []string
	NotificationsTopic string
	StoreTimeout       time.Duration
	NotifyWorkers      int
	NotifyQueue        int
	NotifyTimeout      time.Duration
	IdempotencyTTL     time.Duration
	ListingsFixtures   string
	UsersFixtures      string
	CORSOrigins        []string
}

// Load parses configuration from the current environment. A .env file in the
// working directory is applied first when present; real environment variables win.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Env:                getEnv("APP_ENV", "dev"),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		StoreDriver:        strings.ToLower(getEnv("STORE_DRIVER", DriverMemory)),
		DirectoryDriver:    strings.ToLower(getEnv("DIRECTORY_DRIVER", DriverMemory)),
		MongoURI:           os.Getenv("MONGO_URI"),
		MongoDB:            getEnv("MONGO_DB", "partyspace"),
		PostgresURL:        os.Getenv("POSTGRES_URL"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		NotificationsTopic: getEnv("KAFKA_NOTIFICATIONS_TOPIC", "notifications.v1"),
		ListingsFixtures:   getEnv("LISTINGS_FIXTURES", "data/listings.json"),
		UsersFixtures:      getEnv("USERS_FIXTURES", "data/users.json"),
		KafkaBrokers:       splitList(os.Getenv("KAFKA_BROKERS")),
		CORSOrigins:        splitList(getEnv("CORS_ORIGINS", "*")),
	}

	var err error
	if cfg.LockTTL, err = parseDurationEnv("LOCK_TTL", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.StoreTimeout, err = parseDurationEnv("STORE_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.NotifyTimeout, err = parseDurationEnv("NOTIFY_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = parseDurationEnv("IDEMP_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.NotifyWorkers, err = parseIntEnv("NOTIFY_WORKERS", 2); err != nil {
		return Config{}, err
	}
	if cfg.NotifyQueue, err = parseIntEnv("NOTIFY_QUEUE", 256); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks driver names and the settings each driver needs.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverMemory:
	case DriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for STORE_DRIVER=%s", c.StoreDriver)
		}
	case DriverPostgres:
		if c.PostgresURL == "" {
			return fmt.Errorf("POSTGRES_URL is required for STORE_DRIVER=%s", c.StoreDriver)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.DirectoryDriver {
	case DriverMemory:
	case DriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for DIRECTORY_DRIVER=%s", c.DirectoryDriver)
		}
	default:
		return fmt.Errorf("unknown DIRECTORY_DRIVER %q", c.DirectoryDriver)
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive")
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("LOCK_TTL must be positive")
	}
	if c.NotifyWorkers <= 0 || c.NotifyQueue <= 0 {
		return fmt.Errorf("NOTIFY_WORKERS and NOTIFY_QUEUE must be positive")
	}
	return nil
}

// UsesMongo reports whether any component needs a mongo client.
func (c Config) UsesMongo() bool {
	return c.StoreDriver == DriverMongo || c.DirectoryDriver == DriverMongo
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseIntEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s integer: %w", key, err)
	}
	return n, nil
}
