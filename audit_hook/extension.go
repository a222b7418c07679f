// Package audithook bridges marketplace lifecycle events to an audit trail
// backend.
//
// It defines a local Recorder interface so the package does not depend on
// any particular audit store. Callers inject a RecorderFunc adapter at
// wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/leadledger/credit"
	"github.com/xraph/leadledger/id"
	"github.com/xraph/leadledger/lead"
	"github.com/xraph/leadledger/plugin"
	"github.com/xraph/leadledger/user"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin              = (*Extension)(nil)
	_ plugin.OnUserCreated       = (*Extension)(nil)
	_ plugin.OnLeadSubmitted     = (*Extension)(nil)
	_ plugin.OnLeadStatusChanged = (*Extension)(nil)
	_ plugin.OnLeadAccessed      = (*Extension)(nil)
	_ plugin.OnAccessDenied      = (*Extension)(nil)
	_ plugin.OnCreditsSpent      = (*Extension)(nil)
	_ plugin.OnCreditsAdjusted   = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a single audit trail entry.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges marketplace lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Account hooks
// ──────────────────────────────────────────────────

// OnUserCreated implements plugin.OnUserCreated.
func (e *Extension) OnUserCreated(ctx context.Context, u *user.User) error {
	return e.record(ctx, ActionUserCreated, SeverityInfo, OutcomeSuccess,
		ResourceUser, u.ID.String(), CategoryAccount, nil,
		"email", u.Email,
		"role", string(u.Role),
		"credits", u.Credits,
	)
}

// ──────────────────────────────────────────────────
// Lead hooks
// ──────────────────────────────────────────────────

// OnLeadSubmitted implements plugin.OnLeadSubmitted.
func (e *Extension) OnLeadSubmitted(ctx context.Context, l *lead.Lead) error {
	return e.record(ctx, ActionLeadSubmitted, SeverityInfo, OutcomeSuccess,
		ResourceLead, l.ID.String(), CategoryModeration, nil,
		"submitted_by", l.SubmittedBy.String(),
		"category", string(l.Category),
	)
}

// OnLeadStatusChanged implements plugin.OnLeadStatusChanged. Moves to
// pending are not audited.
func (e *Extension) OnLeadStatusChanged(ctx context.Context, l *lead.Lead, from lead.Status, moderator id.UserID) error {
	var action string
	switch l.Status {
	case lead.StatusApproved:
		action = ActionLeadApproved
	case lead.StatusRejected:
		action = ActionLeadRejected
	default:
		return nil
	}
	return e.record(ctx, action, SeverityInfo, OutcomeSuccess,
		ResourceLead, l.ID.String(), CategoryModeration, nil,
		"from", string(from),
		"to", string(l.Status),
		"moderator", moderator.String(),
	)
}

// ──────────────────────────────────────────────────
// Access hooks
// ──────────────────────────────────────────────────

// OnLeadAccessed implements plugin.OnLeadAccessed.
func (e *Extension) OnLeadAccessed(ctx context.Context, ev *plugin.AccessEvent) error {
	return e.record(ctx, ActionLeadAccessed, SeverityInfo, OutcomeSuccess,
		ResourceLead, ev.LeadID.String(), CategoryAccess, nil,
		"viewer", ev.ViewerID.String(),
		"reason", ev.Reason,
		"cost", ev.Cost,
	)
}

// OnAccessDenied implements plugin.OnAccessDenied.
func (e *Extension) OnAccessDenied(ctx context.Context, leadID id.LeadID, viewerID id.UserID, reason error) error {
	return e.record(ctx, ActionLeadAccessDenied, SeverityWarning, OutcomeFailure,
		ResourceLead, leadID.String(), CategoryAccess, reason,
		"viewer", viewerID.String(),
	)
}

// ──────────────────────────────────────────────────
// Credit hooks
// ──────────────────────────────────────────────────

// OnCreditsSpent implements plugin.OnCreditsSpent.
func (e *Extension) OnCreditsSpent(ctx context.Context, txn *credit.Transaction, balance int64) error {
	return e.record(ctx, ActionCreditsSpent, SeverityInfo, OutcomeSuccess,
		ResourceCredit, txn.ID.String(), CategoryCredits, nil,
		"user_id", txn.UserID.String(),
		"amount", txn.Amount,
		"balance", balance,
	)
}

// OnCreditsAdjusted implements plugin.OnCreditsAdjusted. Adjustments are
// privileged writes and are recorded at warning severity.
func (e *Extension) OnCreditsAdjusted(ctx context.Context, txn *credit.Transaction, u *user.User) error {
	kv := []any{
		"user_id", txn.UserID.String(),
		"type", string(txn.Type),
		"amount", txn.Amount,
		"balance", u.Credits,
		"reason", txn.Reason,
	}
	if txn.AdminID != nil {
		kv = append(kv, "admin_id", txn.AdminID.String())
	}
	return e.record(ctx, ActionCreditsAdjusted, SeverityWarning, OutcomeSuccess,
		ResourceCredit, txn.ID.String(), CategoryCredits, nil, kv...)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
