package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/leadledger/credit"
	"github.com/xraph/leadledger/id"
	"github.com/xraph/leadledger/lead"
	"github.com/xraph/leadledger/user"
)

// DefaultTimeout bounds a single hook call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// Hook interfaces are discovered once at registration.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for dispatch
	onInit              []OnInit
	onShutdown          []OnShutdown
	onUserCreated       []OnUserCreated
	onLeadSubmitted     []OnLeadSubmitted
	onLeadStatusChanged []OnLeadStatusChanged
	onLeadAccessed      []OnLeadAccessed
	onAccessDenied      []OnAccessDenied
	onCreditsSpent      []OnCreditsSpent
	onCreditsAdjusted   []OnCreditsAdjusted
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its hooks.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	var hooks []string
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
		hooks = append(hooks, "OnInit")
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
		hooks = append(hooks, "OnShutdown")
	}
	if v, ok := p.(OnUserCreated); ok {
		r.onUserCreated = append(r.onUserCreated, v)
		hooks = append(hooks, "OnUserCreated")
	}
	if v, ok := p.(OnLeadSubmitted); ok {
		r.onLeadSubmitted = append(r.onLeadSubmitted, v)
		hooks = append(hooks, "OnLeadSubmitted")
	}
	if v, ok := p.(OnLeadStatusChanged); ok {
		r.onLeadStatusChanged = append(r.onLeadStatusChanged, v)
		hooks = append(hooks, "OnLeadStatusChanged")
	}
	if v, ok := p.(OnLeadAccessed); ok {
		r.onLeadAccessed = append(r.onLeadAccessed, v)
		hooks = append(hooks, "OnLeadAccessed")
	}
	if v, ok := p.(OnAccessDenied); ok {
		r.onAccessDenied = append(r.onAccessDenied, v)
		hooks = append(hooks, "OnAccessDenied")
	}
	if v, ok := p.(OnCreditsSpent); ok {
		r.onCreditsSpent = append(r.onCreditsSpent, v)
		hooks = append(hooks, "OnCreditsSpent")
	}
	if v, ok := p.(OnCreditsAdjusted); ok {
		r.onCreditsAdjusted = append(r.onCreditsAdjusted, v)
		hooks = append(hooks, "OnCreditsAdjusted")
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"hooks", hooks,
	)

	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, l any) {
	emit(ctx, r, "OnInit", snapshot(r, &r.onInit), func(p OnInit) error {
		return p.OnInit(ctx, l)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(ctx, r, "OnShutdown", snapshot(r, &r.onShutdown), func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

// EmitUserCreated emits a user created event.
func (r *Registry) EmitUserCreated(ctx context.Context, u *user.User) {
	emit(ctx, r, "OnUserCreated", snapshot(r, &r.onUserCreated), func(p OnUserCreated) error {
		return p.OnUserCreated(ctx, u)
	})
}

// EmitLeadSubmitted emits a lead submitted event.
func (r *Registry) EmitLeadSubmitted(ctx context.Context, l *lead.Lead) {
	emit(ctx, r, "OnLeadSubmitted", snapshot(r, &r.onLeadSubmitted), func(p OnLeadSubmitted) error {
		return p.OnLeadSubmitted(ctx, l)
	})
}

// EmitLeadStatusChanged emits a moderation event.
func (r *Registry) EmitLeadStatusChanged(ctx context.Context, l *lead.Lead, from lead.Status, moderator id.UserID) {
	emit(ctx, r, "OnLeadStatusChanged", snapshot(r, &r.onLeadStatusChanged), func(p OnLeadStatusChanged) error {
		return p.OnLeadStatusChanged(ctx, l, from, moderator)
	})
}

// EmitLeadAccessed emits a granted access event.
func (r *Registry) EmitLeadAccessed(ctx context.Context, ev *AccessEvent) {
	emit(ctx, r, "OnLeadAccessed", snapshot(r, &r.onLeadAccessed), func(p OnLeadAccessed) error {
		return p.OnLeadAccessed(ctx, ev)
	})
}

// EmitAccessDenied emits a denied access event.
func (r *Registry) EmitAccessDenied(ctx context.Context, leadID id.LeadID, viewerID id.UserID, reason error) {
	emit(ctx, r, "OnAccessDenied", snapshot(r, &r.onAccessDenied), func(p OnAccessDenied) error {
		return p.OnAccessDenied(ctx, leadID, viewerID, reason)
	})
}

// EmitCreditsSpent emits a spend event.
func (r *Registry) EmitCreditsSpent(ctx context.Context, txn *credit.Transaction, balance int64) {
	emit(ctx, r, "OnCreditsSpent", snapshot(r, &r.onCreditsSpent), func(p OnCreditsSpent) error {
		return p.OnCreditsSpent(ctx, txn, balance)
	})
}

// EmitCreditsAdjusted emits an administrative adjustment event.
func (r *Registry) EmitCreditsAdjusted(ctx context.Context, txn *credit.Transaction, u *user.User) {
	emit(ctx, r, "OnCreditsAdjusted", snapshot(r, &r.onCreditsAdjusted), func(p OnCreditsAdjusted) error {
		return p.OnCreditsAdjusted(ctx, txn, u)
	})
}

func snapshot[T any](r *Registry, list *[]T) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return *list
}

// emit calls fn for each plugin. Failures are logged and never returned;
// hooks run after the state change they describe has committed.
func emit[T Plugin](ctx context.Context, r *Registry, hook string, plugins []T, fn func(T) error) {
	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return fn(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(r.timeout):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
