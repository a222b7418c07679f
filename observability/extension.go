// Package observability provides a metrics extension that counts marketplace
// lifecycle events through a MetricFactory.
package observability

import (
	"context"
	"errors"

	"github.com/xraph/leadledger"
	"github.com/xraph/leadledger/credit"
	"github.com/xraph/leadledger/id"
	"github.com/xraph/leadledger/lead"
	"github.com/xraph/leadledger/plugin"
	"github.com/xraph/leadledger/user"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin              = (*MetricsExtension)(nil)
	_ plugin.OnInit              = (*MetricsExtension)(nil)
	_ plugin.OnUserCreated       = (*MetricsExtension)(nil)
	_ plugin.OnLeadSubmitted     = (*MetricsExtension)(nil)
	_ plugin.OnLeadStatusChanged = (*MetricsExtension)(nil)
	_ plugin.OnLeadAccessed      = (*MetricsExtension)(nil)
	_ plugin.OnAccessDenied      = (*MetricsExtension)(nil)
	_ plugin.OnCreditsSpent      = (*MetricsExtension)(nil)
	_ plugin.OnCreditsAdjusted   = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a plugin to track marketplace activity.
type MetricsExtension struct {
	factory MetricFactory

	// Account metrics
	UserCreated Counter

	// Moderation metrics
	LeadSubmitted Counter
	LeadApproved  Counter
	LeadRejected  Counter

	// Access metrics
	AccessOwner         Counter
	AccessAlreadyViewed Counter
	AccessCharged       Counter
	DeniedInsufficient  Counter
	DeniedNotApproved   Counter
	DeniedOther         Counter

	// Credit metrics
	CreditsSpent     Counter
	CreditsAdded     Counter
	CreditsRemoved   Counter
	BalanceAfterView Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		UserCreated: factory.Counter("leadledger.user.created"),

		LeadSubmitted: factory.Counter("leadledger.lead.submitted"),
		LeadApproved:  factory.Counter("leadledger.lead.approved"),
		LeadRejected:  factory.Counter("leadledger.lead.rejected"),

		AccessOwner:         factory.Counter("leadledger.access.owner"),
		AccessAlreadyViewed: factory.Counter("leadledger.access.already_viewed"),
		AccessCharged:       factory.Counter("leadledger.access.charged"),
		DeniedInsufficient:  factory.Counter("leadledger.access.denied.insufficient_credits"),
		DeniedNotApproved:   factory.Counter("leadledger.access.denied.not_approved"),
		DeniedOther:         factory.Counter("leadledger.access.denied.other"),

		CreditsSpent:     factory.Counter("leadledger.credits.spent"),
		CreditsAdded:     factory.Counter("leadledger.credits.added"),
		CreditsRemoved:   factory.Counter("leadledger.credits.removed"),
		BalanceAfterView: factory.Histogram("leadledger.credits.balance_after_view"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// OnUserCreated implements plugin.OnUserCreated.
func (m *MetricsExtension) OnUserCreated(_ context.Context, _ *user.User) error {
	m.UserCreated.Inc()
	return nil
}

// OnLeadSubmitted implements plugin.OnLeadSubmitted.
func (m *MetricsExtension) OnLeadSubmitted(_ context.Context, _ *lead.Lead) error {
	m.LeadSubmitted.Inc()
	return nil
}

// OnLeadStatusChanged implements plugin.OnLeadStatusChanged.
func (m *MetricsExtension) OnLeadStatusChanged(_ context.Context, l *lead.Lead, _ lead.Status, _ id.UserID) error {
	switch l.Status {
	case lead.StatusApproved:
		m.LeadApproved.Inc()
	case lead.StatusRejected:
		m.LeadRejected.Inc()
	}
	return nil
}

// OnLeadAccessed implements plugin.OnLeadAccessed.
func (m *MetricsExtension) OnLeadAccessed(_ context.Context, ev *plugin.AccessEvent) error {
	switch leadledger.AccessReason(ev.Reason) {
	case leadledger.AccessOwner:
		m.AccessOwner.Inc()
	case leadledger.AccessAlreadyViewed:
		m.AccessAlreadyViewed.Inc()
	case leadledger.AccessCharged:
		m.AccessCharged.Inc()
		m.BalanceAfterView.Observe(float64(ev.Balance))
	}
	return nil
}

// OnAccessDenied implements plugin.OnAccessDenied.
func (m *MetricsExtension) OnAccessDenied(_ context.Context, _ id.LeadID, _ id.UserID, reason error) error {
	switch {
	case errors.Is(reason, leadledger.ErrInsufficientCredits):
		m.DeniedInsufficient.Inc()
	case errors.Is(reason, leadledger.ErrNotApproved):
		m.DeniedNotApproved.Inc()
	default:
		m.DeniedOther.Inc()
	}
	return nil
}

// OnCreditsSpent implements plugin.OnCreditsSpent.
func (m *MetricsExtension) OnCreditsSpent(_ context.Context, txn *credit.Transaction, _ int64) error {
	m.CreditsSpent.Add(float64(-txn.Amount))
	return nil
}

// OnCreditsAdjusted implements plugin.OnCreditsAdjusted.
func (m *MetricsExtension) OnCreditsAdjusted(_ context.Context, txn *credit.Transaction, _ *user.User) error {
	switch {
	case txn.Amount > 0:
		m.CreditsAdded.Add(float64(txn.Amount))
	case txn.Amount < 0:
		m.CreditsRemoved.Add(float64(-txn.Amount))
	}
	return nil
}
