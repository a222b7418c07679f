package main

import (
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/leadledger/credit"
	"github.com/xraph/leadledger/store/backend"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"STORE", "PORT", "JWT_SECRET", "SESSION_SECRET", "JWT_TTL", "LOG_LEVEL", "REMOVE_DELTA_MODE", "METRICS_ENABLED", "VIEW_COST"} {
		t.Setenv(key, "")
	}

	cfg, err := loadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "5000" || cfg.Store.Driver != backend.DriverMemory || cfg.Store.DSN != "" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.JWTTTL != 7*24*time.Hour || cfg.ViewCost != 1 || cfg.RemoveDeltaMode != credit.RecordApplied {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.MetricsEnabled || cfg.LogLevel != slog.LevelInfo {
		t.Errorf("metrics=%v level=%v", cfg.MetricsEnabled, cfg.LogLevel)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("STORE", "mongodb")
	t.Setenv("MONGO_URI", "mongodb://db:27017")
	t.Setenv("MONGO_DATABASE", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("SESSION_SECRET", "legacy")
	t.Setenv("JWT_TTL", "3600")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REMOVE_DELTA_MODE", "requested")
	t.Setenv("METRICS_ENABLED", "yes")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store.Driver != backend.DriverMongo || cfg.Store.DSN != "mongodb://db:27017" || cfg.Store.Database != "leadledger" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.JWTSecret != "legacy" || cfg.JWTTTL != time.Hour {
		t.Errorf("jwt = %q %v", cfg.JWTSecret, cfg.JWTTTL)
	}
	if cfg.LogLevel != slog.LevelDebug || cfg.RemoveDeltaMode != credit.RecordRequested || !cfg.MetricsEnabled {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadConfigRejects(t *testing.T) {
	tests := []struct{ key, value string }{
		{"STORE", "cassandra"},
		{"REMOVE_DELTA_MODE", "sometimes"},
		{"LOG_LEVEL", "loud"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := loadConfig(); err == nil {
				t.Errorf("%s=%s accepted", tt.key, tt.value)
			}
		})
	}
}
