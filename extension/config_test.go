package extension

import (
	"testing"
	"time"

	"github.com/xraph/leadledger/store/backend"
)

func TestMergeWithDefaults(t *testing.T) {
	cfg := mergeWithDefaults(Config{ViewCost: 3})
	if cfg.ViewCost != 3 {
		t.Errorf("view cost = %d, want 3", cfg.ViewCost)
	}
	if cfg.AdminCredits != 50 || cfg.SuperadminCredits != 1000 || cfg.SignupCredits != 0 {
		t.Errorf("credits = %d/%d/%d", cfg.SignupCredits, cfg.AdminCredits, cfg.SuperadminCredits)
	}
	if cfg.Store.Driver != backend.DriverMemory || cfg.RemoveDeltaMode != "applied" || cfg.TokenTTL != 7*24*time.Hour {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestMergeConfigurations(t *testing.T) {
	file := Config{
		Store:    backend.Config{Driver: backend.DriverPostgres, DSN: "postgres://file"},
		ViewCost: 2,
	}
	programmatic := Config{
		DisableMigrate: true,
		Store:          backend.Config{DSN: "postgres://code", Database: "leads"},
		JWTSecret:      "s3cret",
		ViewCost:       5,
		AdminCredits:   10,
	}

	got := mergeConfigurations(file, programmatic)
	if !got.DisableMigrate || got.DisableRoutes {
		t.Errorf("flags = migrate:%v routes:%v", got.DisableMigrate, got.DisableRoutes)
	}
	if got.Store.DSN != "postgres://file" || got.Store.Database != "leads" || got.Store.Driver != backend.DriverPostgres {
		t.Errorf("store = %+v", got.Store)
	}
	if got.ViewCost != 2 || got.AdminCredits != 10 || got.JWTSecret != "s3cret" {
		t.Errorf("merged = %+v", got)
	}
	if got.SuperadminCredits != 1000 {
		t.Errorf("superadmin credits = %d", got.SuperadminCredits)
	}
}

func TestBuildLedgerOpts(t *testing.T) {
	e := New(WithConfig(Config{RemoveDeltaMode: "bogus"}))
	if _, err := e.buildLedgerOpts(); err == nil {
		t.Error("expected error for unknown delta mode")
	}

	e = New(WithViewCost(2), WithLedgerOption(nil))
	e.config = mergeWithDefaults(e.config)
	opts, err := e.buildLedgerOpts()
	if err != nil {
		t.Fatal(err)
	}
	if len(opts) != 6 {
		t.Errorf("opts = %d, want 6", len(opts))
	}
}
