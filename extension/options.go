package extension

import (
	"time"

	"github.com/xraph/leadledger"
	"github.com/xraph/leadledger/plugin"
	"github.com/xraph/leadledger/store"
	"github.com/xraph/leadledger/store/backend"
)

// Option configures the LeadLedger Forge extension.
type Option func(*Extension)

// WithStore sets the store for the engine. It takes precedence over
// Config.Store.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithLedgerOption passes a leadledger.Option through to the underlying engine.
func WithLedgerOption(opt leadledger.Option) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, opt)
	}
}

// WithPlugin registers an engine plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, leadledger.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableRoutes skips building the HTTP API.
func WithDisableRoutes() Option {
	return func(e *Extension) { e.config.DisableRoutes = true }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithBasePath sets the URL prefix the API is mounted under.
func WithBasePath(path string) Option {
	return func(e *Extension) { e.config.BasePath = path }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithBackend selects the store backend by driver and DSN.
func WithBackend(driver backend.Driver, dsn string) Option {
	return func(e *Extension) {
		e.config.Store.Driver = driver
		e.config.Store.DSN = dsn
	}
}

// WithViewCost sets the price of unlocking a lead.
func WithViewCost(n int64) Option {
	return func(e *Extension) { e.config.ViewCost = n }
}

// WithJWT sets the token signing secret and lifetime.
func WithJWT(secret string, ttl time.Duration) Option {
	return func(e *Extension) {
		e.config.JWTSecret = secret
		e.config.TokenTTL = ttl
	}
}

// WithSuperadmin seeds a superadmin account on start.
func WithSuperadmin(email, password string) Option {
	return func(e *Extension) {
		e.config.SuperadminEmail = email
		e.config.SuperadminPassword = password
	}
}
