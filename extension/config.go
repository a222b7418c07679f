package extension

import (
	"time"

	"github.com/xraph/leadledger"
	"github.com/xraph/leadledger/api"
	"github.com/xraph/leadledger/credit"
	"github.com/xraph/leadledger/store/backend"
)

// Config holds the LeadLedger extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.leadledger" or "leadledger" keys).
type Config struct {
	// DisableRoutes skips building the HTTP API.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// BasePath is the URL prefix the API is mounted under (default: none,
	// routes start at /api).
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// Store selects the backend when no store is passed with WithStore.
	Store backend.Config `json:"store" mapstructure:"store" yaml:"store"`

	// ViewCost is the price of unlocking a lead (default: 1).
	ViewCost int64 `json:"view_cost" mapstructure:"view_cost" yaml:"view_cost"`

	// SignupCredits is granted on self-registration (default: 0).
	SignupCredits int64 `json:"signup_credits" mapstructure:"signup_credits" yaml:"signup_credits"`

	// AdminCredits is granted to admins created by a superadmin (default: 50).
	AdminCredits int64 `json:"admin_credits" mapstructure:"admin_credits" yaml:"admin_credits"`

	// SuperadminCredits is the balance of the seeded superadmin (default: 1000).
	SuperadminCredits int64 `json:"superadmin_credits" mapstructure:"superadmin_credits" yaml:"superadmin_credits"`

	// RemoveDeltaMode is "applied" (default) or "requested" and selects what
	// a remove clamped at zero records in the credit log.
	RemoveDeltaMode string `json:"remove_delta_mode" mapstructure:"remove_delta_mode" yaml:"remove_delta_mode"`

	// JWTSecret signs bearer tokens. Required unless routes are disabled.
	JWTSecret string `json:"jwt_secret" mapstructure:"jwt_secret" yaml:"jwt_secret"`

	// TokenTTL is the lifetime of issued tokens (default: 7 days).
	TokenTTL time.Duration `json:"token_ttl" mapstructure:"token_ttl" yaml:"token_ttl"`

	// SuperadminEmail and SuperadminPassword seed the superadmin account on
	// start when both are set.
	SuperadminEmail    string `json:"superadmin_email" mapstructure:"superadmin_email" yaml:"superadmin_email"`
	SuperadminPassword string `json:"superadmin_password" mapstructure:"superadmin_password" yaml:"superadmin_password"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Store:             backend.Config{Driver: backend.DriverMemory},
		ViewCost:          leadledger.DefaultViewCost,
		SignupCredits:     leadledger.DefaultSignupCredits,
		AdminCredits:      leadledger.DefaultAdminCredits,
		SuperadminCredits: leadledger.DefaultSuperadminCredits,
		RemoveDeltaMode:   credit.RecordApplied.String(),
		TokenTTL:          api.DefaultTokenTTL,
	}
}
