package leadledger

import (
	"context"
	"log/slog"

	"github.com/xraph/leadledger/cache"
	"github.com/xraph/leadledger/credit"
	"github.com/xraph/leadledger/plugin"
	"github.com/xraph/leadledger/policy"
	"github.com/xraph/leadledger/store"
	"github.com/xraph/leadledger/types"
	"github.com/xraph/leadledger/user"
)

// Default starting balances.
const (
	DefaultSignupCredits     int64 = 0
	DefaultAdminCredits      int64 = 50
	DefaultSuperadminCredits int64 = 1000
	DefaultViewCost          int64 = 1
)

// Ledger is the marketplace engine. It owns every write to a user's
// balance and gates all operations through the role policy.
type Ledger struct {
	store   store.Store
	plugins *plugin.Registry
	gate    *policy.Gate[*user.User]
	views   cache.ViewCache
	logger  *slog.Logger
	now     types.Clock

	// Configuration
	signupCredits     int64
	adminCredits      int64
	superadminCredits int64
	viewCost          int64
	deltaMode         credit.DeltaMode
}

// New creates a new Ledger instance.
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:             s,
		plugins:           plugin.NewRegistry(),
		gate:              policy.NewDefaultGate(),
		logger:            slog.Default(),
		now:               types.SystemClock,
		signupCredits:     DefaultSignupCredits,
		adminCredits:      DefaultAdminCredits,
		superadminCredits: DefaultSuperadminCredits,
		viewCost:          DefaultViewCost,
		deltaMode:         credit.RecordApplied,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		_ = l.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithClock replaces the time source.
func WithClock(clock types.Clock) Option {
	return func(l *Ledger) {
		l.now = clock
	}
}

// WithGate replaces the role policy.
func WithGate(g *policy.Gate[*user.User]) Option {
	return func(l *Ledger) {
		l.gate = g
	}
}

// WithViewCache puts a cache of unlocked leads in front of the store.
func WithViewCache(c cache.ViewCache) Option {
	return func(l *Ledger) {
		l.views = c
	}
}

// WithSignupCredits sets the balance granted on self-registration.
func WithSignupCredits(n int64) Option {
	return func(l *Ledger) {
		l.signupCredits = n
	}
}

// WithAdminCredits sets the balance granted to admins created by a superadmin.
func WithAdminCredits(n int64) Option {
	return func(l *Ledger) {
		l.adminCredits = n
	}
}

// WithSuperadminCredits sets the balance of a seeded superadmin.
func WithSuperadminCredits(n int64) Option {
	return func(l *Ledger) {
		l.superadminCredits = n
	}
}

// WithViewCost sets the price of unlocking a lead. Values below 1 are ignored.
func WithViewCost(n int64) Option {
	return func(l *Ledger) {
		if n >= 1 {
			l.viewCost = n
		}
	}
}

// WithRemoveDeltaMode selects what a clamped remove records in the log.
func WithRemoveDeltaMode(mode credit.DeltaMode) Option {
	return func(l *Ledger) {
		l.deltaMode = mode
	}
}

// Start migrates the store and initializes plugins.
func (l *Ledger) Start(ctx context.Context) error {
	if err := l.store.Migrate(ctx); err != nil {
		return err
	}

	l.plugins.EmitInit(ctx, l)

	l.logger.Info("leadledger started",
		"plugins", l.plugins.Count(),
		"view_cost", l.viewCost,
		"view_cache", l.views != nil,
	)

	return nil
}

// Stop shuts down plugins and closes the store.
func (l *Ledger) Stop() error {
	ctx := context.Background()
	l.plugins.EmitShutdown(ctx)

	return l.store.Close()
}

// Store returns the underlying store.
func (l *Ledger) Store() store.Store { return l.store }

// Gate returns the role policy.
func (l *Ledger) Gate() *policy.Gate[*user.User] { return l.gate }

// Plugins returns the plugin registry.
func (l *Ledger) Plugins() *plugin.Registry { return l.plugins }

// Ping checks the store.
func (l *Ledger) Ping(ctx context.Context) error { return l.store.Ping(ctx) }
