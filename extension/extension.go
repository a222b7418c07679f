// Package extension provides the Forge extension adapter for LeadLedger.
//
// It implements the forge.Extension interface to integrate the marketplace
// engine into a Forge application with store selection, DI registration,
// superadmin seeding and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.leadledger" or
// "leadledger" keys.
package extension

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/leadledger"
	"github.com/xraph/leadledger/api"
	"github.com/xraph/leadledger/credit"
	"github.com/xraph/leadledger/store"
	"github.com/xraph/leadledger/store/backend"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "leadledger"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Credit-gated lead marketplace"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts LeadLedger as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *leadledger.Ledger
	server     *api.Server
	store      store.Store
	ledgerOpts []leadledger.Option
}

// New creates a new LeadLedger Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Ledger instance.
// This is nil until Register is called.
func (e *Extension) Engine() *leadledger.Ledger { return e.engine }

// Handler returns the HTTP API mounted under the configured base path, or
// nil when routes are disabled or Register has not run.
func (e *Extension) Handler() http.Handler {
	if e.server == nil {
		return nil
	}
	return mount(e.config.BasePath, e.server.Handler())
}

// Register implements [forge.Extension]. It loads configuration, opens the
// store, builds the engine and API, and registers them in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil {
		s, err := backend.Open(context.Background(), e.config.Store)
		if err != nil {
			return fmt.Errorf("leadledger: open store: %w", err)
		}
		e.store = s
	}

	opts, err := e.buildLedgerOpts()
	if err != nil {
		return err
	}
	e.engine = leadledger.New(e.store, opts...)

	if err := vessel.Provide(fapp.Container(), func() (*leadledger.Ledger, error) {
		return e.engine, nil
	}); err != nil {
		return err
	}

	if e.config.DisableRoutes {
		return nil
	}
	if e.config.JWTSecret == "" {
		return errors.New("leadledger: jwt_secret is required unless routes are disabled")
	}
	tokens := api.NewTokenService([]byte(e.config.JWTSecret), e.config.TokenTTL, nil)
	e.server = api.New(e.engine, tokens)

	return vessel.Provide(fapp.Container(), func() (*api.Server, error) {
		return e.server, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("leadledger: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	if e.config.SuperadminEmail != "" && e.config.SuperadminPassword != "" {
		if _, created, err := e.engine.SeedSuperadmin(ctx, e.config.SuperadminEmail, e.config.SuperadminPassword); err != nil {
			return fmt.Errorf("leadledger: seed superadmin: %w", err)
		} else if created {
			e.Logger().Info("leadledger: superadmin created",
				forge.F("email", e.config.SuperadminEmail),
			)
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("leadledger: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildLedgerOpts constructs leadledger.Option values from the resolved config.
func (e *Extension) buildLedgerOpts() ([]leadledger.Option, error) {
	mode, err := credit.ParseDeltaMode(e.config.RemoveDeltaMode)
	if err != nil {
		return nil, err
	}

	opts := make([]leadledger.Option, 0, len(e.ledgerOpts)+5)
	opts = append(opts,
		leadledger.WithViewCost(e.config.ViewCost),
		leadledger.WithSignupCredits(e.config.SignupCredits),
		leadledger.WithAdminCredits(e.config.AdminCredits),
		leadledger.WithSuperadminCredits(e.config.SuperadminCredits),
		leadledger.WithRemoveDeltaMode(mode),
	)

	// Append any pass-through options so they win over config.
	opts = append(opts, e.ledgerOpts...)

	return opts, nil
}

func mount(base string, h http.Handler) http.Handler {
	base = strings.TrimRight(base, "/")
	if base == "" {
		return h
	}
	r := chi.NewRouter()
	r.Mount(base, h)
	return r
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("leadledger: configuration is required but not found in config files; " +
				"ensure 'extensions.leadledger' or 'leadledger' key exists in your config")
		}

		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("leadledger: configuration loaded",
		forge.F("disable_routes", e.config.DisableRoutes),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("base_path", e.config.BasePath),
		forge.F("store", string(e.config.Store.Driver)),
		forge.F("view_cost", e.config.ViewCost),
		forge.F("remove_delta_mode", e.config.RemoveDeltaMode),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.leadledger", "leadledger"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("leadledger: loaded config from file",
				forge.F("key", key),
			)
			return cfg, true
		}
		e.Logger().Warn("leadledger: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults. A zero
// SignupCredits is already the default.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = defaults.Store.Driver
	}
	if cfg.ViewCost == 0 {
		cfg.ViewCost = defaults.ViewCost
	}
	if cfg.AdminCredits == 0 {
		cfg.AdminCredits = defaults.AdminCredits
	}
	if cfg.SuperadminCredits == 0 {
		cfg.SuperadminCredits = defaults.SuperadminCredits
	}
	if cfg.RemoveDeltaMode == "" {
		cfg.RemoveDeltaMode = defaults.RemoveDeltaMode
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = defaults.TokenTTL
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableRoutes {
		yamlConfig.DisableRoutes = true
	}
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&yamlConfig.BasePath, programmaticConfig.BasePath)
	fill((*string)(&yamlConfig.Store.Driver), string(programmaticConfig.Store.Driver))
	fill(&yamlConfig.Store.DSN, programmaticConfig.Store.DSN)
	fill(&yamlConfig.Store.Database, programmaticConfig.Store.Database)
	fill(&yamlConfig.RemoveDeltaMode, programmaticConfig.RemoveDeltaMode)
	fill(&yamlConfig.JWTSecret, programmaticConfig.JWTSecret)
	fill(&yamlConfig.SuperadminEmail, programmaticConfig.SuperadminEmail)
	fill(&yamlConfig.SuperadminPassword, programmaticConfig.SuperadminPassword)

	fillInt := func(dst *int64, src int64) {
		if *dst == 0 {
			*dst = src
		}
	}
	fillInt(&yamlConfig.ViewCost, programmaticConfig.ViewCost)
	fillInt(&yamlConfig.SignupCredits, programmaticConfig.SignupCredits)
	fillInt(&yamlConfig.AdminCredits, programmaticConfig.AdminCredits)
	fillInt(&yamlConfig.SuperadminCredits, programmaticConfig.SuperadminCredits)

	if yamlConfig.TokenTTL == 0 && programmaticConfig.TokenTTL != 0 {
		yamlConfig.TokenTTL = programmaticConfig.TokenTTL
	}

	// Fill remaining zeros with defaults.
	return mergeWithDefaults(yamlConfig)
}
