// Package amqphook publishes marketplace lifecycle events to a RabbitMQ
// topic exchange. Routing keys follow "leadledger.<resource>.<event>" so
// consumers can bind on patterns such as "leadledger.lead.*".
package amqphook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/xraph/leadledger/credit"
	"github.com/xraph/leadledger/id"
	"github.com/xraph/leadledger/lead"
	"github.com/xraph/leadledger/plugin"
	"github.com/xraph/leadledger/types"
	"github.com/xraph/leadledger/user"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin              = (*Extension)(nil)
	_ plugin.OnUserCreated       = (*Extension)(nil)
	_ plugin.OnLeadSubmitted     = (*Extension)(nil)
	_ plugin.OnLeadStatusChanged = (*Extension)(nil)
	_ plugin.OnLeadAccessed      = (*Extension)(nil)
	_ plugin.OnCreditsSpent      = (*Extension)(nil)
	_ plugin.OnCreditsAdjusted   = (*Extension)(nil)
)

// Routing keys.
const (
	KeyUserCreated       = "leadledger.user.created"
	KeyLeadSubmitted     = "leadledger.lead.submitted"
	KeyLeadStatusChanged = "leadledger.lead.status_changed"
	KeyLeadAccessed      = "leadledger.lead.accessed"
	KeyCreditsSpent      = "leadledger.credits.spent"
	KeyCreditsAdjusted   = "leadledger.credits.adjusted"
)

// DefaultPublishTimeout bounds a single publish.
const DefaultPublishTimeout = 5 * time.Second

// Publisher is the subset of *amqp.Channel the extension needs.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Event is the JSON envelope of every published message.
type Event struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data"`
}

// Extension is a plugin that mirrors hooks onto an exchange.
type Extension struct {
	pub      Publisher
	exchange string
	timeout  time.Duration
	now      types.Clock
	logger   *slog.Logger
}

// Option configures an Extension.
type Option func(*Extension)

// WithLogger sets the logger for the extension.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extension) { e.logger = logger }
}

// WithClock sets the clock used for OccurredAt.
func WithClock(now types.Clock) Option {
	return func(e *Extension) { e.now = now }
}

// WithPublishTimeout overrides DefaultPublishTimeout.
func WithPublishTimeout(d time.Duration) Option {
	return func(e *Extension) { e.timeout = d }
}

// New creates an Extension publishing to exchange through pub.
func New(pub Publisher, exchange string, opts ...Option) *Extension {
	e := &Extension{
		pub:      pub,
		exchange: exchange,
		timeout:  DefaultPublishTimeout,
		now:      types.SystemClock,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "amqp-hook" }

type userPayload struct {
	ID      id.UserID `json:"id"`
	Email   string    `json:"email"`
	Role    user.Role `json:"role"`
	Credits int64     `json:"credits"`
}

// OnUserCreated implements plugin.OnUserCreated.
func (e *Extension) OnUserCreated(ctx context.Context, u *user.User) error {
	return e.publish(ctx, KeyUserCreated, userPayload{ID: u.ID, Email: u.Email, Role: u.Role, Credits: u.Credits})
}

type leadPayload struct {
	ID          id.LeadID     `json:"id"`
	Title       string        `json:"title"`
	Category    lead.Category `json:"category"`
	Status      lead.Status   `json:"status"`
	SubmittedBy id.UserID     `json:"submittedBy"`
	From        lead.Status   `json:"from,omitempty"`
	Moderator   *id.UserID    `json:"moderator,omitempty"`
}

// OnLeadSubmitted implements plugin.OnLeadSubmitted. Contact details are
// never published.
func (e *Extension) OnLeadSubmitted(ctx context.Context, l *lead.Lead) error {
	return e.publish(ctx, KeyLeadSubmitted, leadPayload{
		ID: l.ID, Title: l.Title, Category: l.Category, Status: l.Status, SubmittedBy: l.SubmittedBy,
	})
}

// OnLeadStatusChanged implements plugin.OnLeadStatusChanged.
func (e *Extension) OnLeadStatusChanged(ctx context.Context, l *lead.Lead, from lead.Status, moderator id.UserID) error {
	return e.publish(ctx, KeyLeadStatusChanged, leadPayload{
		ID: l.ID, Title: l.Title, Category: l.Category, Status: l.Status, SubmittedBy: l.SubmittedBy,
		From: from, Moderator: moderator.Ptr(),
	})
}

type accessPayload struct {
	LeadID   id.LeadID `json:"leadId"`
	ViewerID id.UserID `json:"viewerId"`
	Reason   string    `json:"reason"`
	Cost     int64     `json:"cost"`
}

// OnLeadAccessed implements plugin.OnLeadAccessed.
func (e *Extension) OnLeadAccessed(ctx context.Context, ev *plugin.AccessEvent) error {
	return e.publish(ctx, KeyLeadAccessed, accessPayload{
		LeadID: ev.LeadID, ViewerID: ev.ViewerID, Reason: ev.Reason, Cost: ev.Cost,
	})
}

type creditPayload struct {
	Transaction *credit.Transaction `json:"transaction"`
	Balance     int64               `json:"balance"`
}

// OnCreditsSpent implements plugin.OnCreditsSpent.
func (e *Extension) OnCreditsSpent(ctx context.Context, txn *credit.Transaction, balance int64) error {
	return e.publish(ctx, KeyCreditsSpent, creditPayload{Transaction: txn, Balance: balance})
}

// OnCreditsAdjusted implements plugin.OnCreditsAdjusted.
func (e *Extension) OnCreditsAdjusted(ctx context.Context, txn *credit.Transaction, u *user.User) error {
	return e.publish(ctx, KeyCreditsAdjusted, creditPayload{Transaction: txn, Balance: u.Credits})
}

func (e *Extension) publish(ctx context.Context, key string, data any) error {
	now := e.now()
	body, err := json.Marshal(Event{Type: key, OccurredAt: now, Data: data})
	if err != nil {
		return fmt.Errorf("amqp_hook: encode %s: %w", key, err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	err = e.pub.PublishWithContext(publishCtx, e.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    now,
		Type:         key,
	})
	if err != nil {
		e.logger.Warn("amqp_hook: publish failed", "routing_key", key, "error", err)
		return fmt.Errorf("amqp_hook: publish %s: %w", key, err)
	}
	return nil
}
