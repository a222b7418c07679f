// Package plugin provides lifecycle hooks into the marketplace engine.
// A plugin implements Plugin plus any subset of the hook interfaces below;
// the registry discovers them once at registration.
package plugin

import (
	"context"

	"github.com/xraph/leadledger/credit"
	"github.com/xraph/leadledger/id"
	"github.com/xraph/leadledger/lead"
	"github.com/xraph/leadledger/user"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts. l is the *leadledger.Ledger.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, l any) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Account hooks
// ──────────────────────────────────────────────────

// OnUserCreated is called after registration, admin creation or seeding.
type OnUserCreated interface {
	Plugin
	OnUserCreated(ctx context.Context, u *user.User) error
}

// ──────────────────────────────────────────────────
// Lead hooks
// ──────────────────────────────────────────────────

// OnLeadSubmitted is called when a lead enters moderation.
type OnLeadSubmitted interface {
	Plugin
	OnLeadSubmitted(ctx context.Context, l *lead.Lead) error
}

// OnLeadStatusChanged is called after a moderation write, including
// re-applying the current status.
type OnLeadStatusChanged interface {
	Plugin
	OnLeadStatusChanged(ctx context.Context, l *lead.Lead, from lead.Status, moderator id.UserID) error
}

// AccessEvent describes a granted lead access.
type AccessEvent struct {
	LeadID   id.LeadID
	ViewerID id.UserID
	Reason   string
	Cost     int64
	Balance  int64
}

// OnLeadAccessed is called for every granted access, free or charged.
type OnLeadAccessed interface {
	Plugin
	OnLeadAccessed(ctx context.Context, ev *AccessEvent) error
}

// OnAccessDenied is called when access fails with a domain error.
type OnAccessDenied interface {
	Plugin
	OnAccessDenied(ctx context.Context, leadID id.LeadID, viewerID id.UserID, reason error) error
}

// ──────────────────────────────────────────────────
// Credit hooks
// ──────────────────────────────────────────────────

// OnCreditsSpent is called after a view was charged.
type OnCreditsSpent interface {
	Plugin
	OnCreditsSpent(ctx context.Context, txn *credit.Transaction, balance int64) error
}

// OnCreditsAdjusted is called after an administrative adjustment.
type OnCreditsAdjusted interface {
	Plugin
	OnCreditsAdjusted(ctx context.Context, txn *credit.Transaction, u *user.User) error
}
