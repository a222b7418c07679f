package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/xraph/leadledger"
	"github.com/xraph/leadledger/api"
	"github.com/xraph/leadledger/credit"
	"github.com/xraph/leadledger/store/backend"
)

const devJWTSecret = "leadledger-dev-secret"

// config holds the server settings read from the environment.
type config struct {
	Port  string
	Store backend.Config

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AMQPURL      string
	AMQPExchange string
	AMQPAttempts int

	JWTSecret string
	JWTTTL    time.Duration

	SuperadminEmail    string
	SuperadminPassword string

	ViewCost        int64
	RemoveDeltaMode credit.DeltaMode

	MetricsEnabled bool
	LogLevel       slog.Level
}

// loadConfig reads the environment. It uses defaults suited to local
// development.
func loadConfig() (*config, error) {
	driver, err := backend.ParseDriver(getEnv("STORE", "memory"))
	if err != nil {
		return nil, err
	}
	mode, err := credit.ParseDeltaMode(getEnv("REMOVE_DELTA_MODE", ""))
	if err != nil {
		return nil, err
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	cfg := &config{
		Port:               getEnv("PORT", "5000"),
		Store:              backend.Config{Driver: driver},
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		AMQPURL:            os.Getenv("AMQP_URL"),
		AMQPExchange:       getEnv("AMQP_EXCHANGE", "leadledger.events"),
		AMQPAttempts:       getEnvInt("AMQP_ATTEMPTS", 5),
		JWTSecret:          getEnv("JWT_SECRET", getEnv("SESSION_SECRET", "")),
		JWTTTL:             getEnvDuration("JWT_TTL", api.DefaultTokenTTL),
		SuperadminEmail:    os.Getenv("SUPERADMIN_EMAIL"),
		SuperadminPassword: os.Getenv("SUPERADMIN_PASSWORD"),
		ViewCost:           int64(getEnvInt("VIEW_COST", int(leadledger.DefaultViewCost))),
		RemoveDeltaMode:    mode,
		MetricsEnabled:     getEnvBool("METRICS_ENABLED", false),
		LogLevel:           level,
	}

	switch driver {
	case backend.DriverPostgres:
		cfg.Store.DSN = os.Getenv("DATABASE_URL")
	case backend.DriverSQLite:
		cfg.Store.DSN = getEnv("SQLITE_PATH", "leadledger.db")
	case backend.DriverMongo:
		cfg.Store.DSN = getEnv("MONGO_URI", "mongodb://localhost:27017")
		cfg.Store.Database = getEnv("MONGO_DATABASE", backend.DefaultMongoDatabase)
	}
	return cfg, nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("168h") or a whole number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default.
// Accepts "1", "true", "yes" as true; everything else is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}
