package leadledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/leadledger/credit"
	"github.com/xraph/leadledger/id"
	"github.com/xraph/leadledger/lead"
	"github.com/xraph/leadledger/leadview"
	"github.com/xraph/leadledger/plugin"
	"github.com/xraph/leadledger/policy"
	"github.com/xraph/leadledger/user"
)

// AccessReason says why an access was granted.
type AccessReason string

const (
	// AccessOwner: the viewer submitted the lead. Free in any status.
	AccessOwner AccessReason = "owner"
	// AccessAlreadyViewed: the viewer paid for the lead before.
	AccessAlreadyViewed AccessReason = "already_viewed"
	// AccessCharged: this request paid for the lead.
	AccessCharged AccessReason = "charged"
)

// AccessResult is a granted lead access.
type AccessResult struct {
	Lead *lead.Lead `json:"lead"`
	Cost int64      `json:"cost"`
	// NewCredits is set only when this request charged the viewer.
	NewCredits *int64 `json:"newCredits,omitempty"`

	Reason      AccessReason        `json:"-"`
	Balance     int64               `json:"-"`
	Transaction *credit.Transaction `json:"-"`
}

// ViewLead fetches a lead and requests access to it.
func (l *Ledger) ViewLead(ctx context.Context, viewer *user.User, leadID id.LeadID) (*AccessResult, error) {
	if err := l.gate.Authorize(ctx, viewer, policy.ActionView, policy.ResourceLead, nil); err != nil {
		return nil, err
	}
	ld, err := l.store.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	return l.RequestLeadAccess(ctx, viewer, ld)
}

// RequestLeadAccess decides whether viewer may read ld and charges for it
// when needed. In order:
//
//  1. the owner reads for free, whatever the status
//  2. a lead that is not approved fails with ErrNotApproved
//  3. a viewer who already paid reads for free
//  4. a balance below the view cost fails with ErrInsufficientCredits
//  5. otherwise the view is recorded, the balance debited and a spend
//     transaction appended as one unit
//
// A concurrent request that loses the race on recording the view is
// reported as already viewed and is not charged.
func (l *Ledger) RequestLeadAccess(ctx context.Context, viewer *user.User, ld *lead.Lead) (*AccessResult, error) {
	if err := l.gate.Authorize(ctx, viewer, policy.ActionView, policy.ResourceLead, ld); err != nil {
		return nil, err
	}
	viewer, err := l.refresh(ctx, viewer)
	if err != nil {
		return nil, err
	}

	res, err := l.evaluate(ctx, viewer, ld)
	if err != nil {
		return nil, l.deny(ctx, ld, viewer, err)
	}
	if res.Reason != AccessCharged {
		l.granted(ctx, res, viewer)
		return res, nil
	}

	now := l.now()
	view := &leadview.View{
		ID:        id.NewLeadViewID(),
		LeadID:    ld.ID,
		ViewedBy:  viewer.ID,
		CreatedAt: now,
	}
	txn := &credit.Transaction{
		ID:        id.NewTransactionID(),
		UserID:    viewer.ID,
		Amount:    -l.viewCost,
		Type:      credit.TypeSpend,
		Reason:    credit.SpendReason(ld.Title),
		CreatedAt: now,
	}

	balance, err := l.store.ChargeView(ctx, view, txn)
	switch {
	case errors.Is(err, ErrAlreadyViewed):
		l.remember(ctx, ld.ID, viewer.ID)
		res = &AccessResult{Lead: ld, Reason: AccessAlreadyViewed, Balance: balance}
		l.granted(ctx, res, viewer)
		return res, nil
	case errors.Is(err, ErrInsufficientCredits):
		return nil, l.deny(ctx, ld, viewer, err)
	case err != nil:
		return nil, fmt.Errorf("leadledger: charge view: %w", err)
	}

	l.remember(ctx, ld.ID, viewer.ID)
	res.Balance = balance
	res.NewCredits = &balance
	res.Transaction = txn

	l.plugins.EmitCreditsSpent(ctx, txn, balance)
	l.granted(ctx, res, viewer)
	return res, nil
}

// PreviewAccess runs the access decision without charging. A chargeable
// access is returned with Reason AccessCharged and the cost it would incur.
func (l *Ledger) PreviewAccess(ctx context.Context, viewer *user.User, ld *lead.Lead) (*AccessResult, error) {
	if err := l.gate.Authorize(ctx, viewer, policy.ActionView, policy.ResourceLead, ld); err != nil {
		return nil, err
	}
	viewer, err := l.refresh(ctx, viewer)
	if err != nil {
		return nil, err
	}
	return l.evaluate(ctx, viewer, ld)
}

// evaluate applies steps 1 to 4 of the access decision. It has no side
// effects beyond warming the view cache.
func (l *Ledger) evaluate(ctx context.Context, viewer *user.User, ld *lead.Lead) (*AccessResult, error) {
	if ld.IsOwnedBy(viewer.ID) {
		return &AccessResult{Lead: ld, Reason: AccessOwner, Balance: viewer.Credits}, nil
	}
	if ld.Status != lead.StatusApproved {
		return nil, ErrNotApproved
	}

	seen, err := l.hasViewed(ctx, ld.ID, viewer.ID)
	if err != nil {
		return nil, err
	}
	if seen {
		return &AccessResult{Lead: ld, Reason: AccessAlreadyViewed, Balance: viewer.Credits}, nil
	}

	if viewer.Credits < l.viewCost {
		return nil, ErrInsufficientCredits
	}
	return &AccessResult{Lead: ld, Reason: AccessCharged, Cost: l.viewCost, Balance: viewer.Credits}, nil
}

func (l *Ledger) hasViewed(ctx context.Context, leadID id.LeadID, viewer id.UserID) (bool, error) {
	if l.views != nil {
		seen, err := l.views.Seen(ctx, leadID, viewer)
		if err != nil {
			l.logger.Warn("view cache lookup failed", "lead_id", leadID.String(), "error", err)
		} else if seen {
			return true, nil
		}
	}

	seen, err := l.store.HasViewed(ctx, leadID, viewer)
	if err != nil {
		return false, err
	}
	if seen {
		l.remember(ctx, leadID, viewer)
	}
	return seen, nil
}

func (l *Ledger) remember(ctx context.Context, leadID id.LeadID, viewer id.UserID) {
	if l.views == nil {
		return
	}
	if err := l.views.Remember(ctx, leadID, viewer); err != nil {
		l.logger.Warn("view cache write failed", "lead_id", leadID.String(), "error", err)
	}
}

func (l *Ledger) granted(ctx context.Context, res *AccessResult, viewer *user.User) {
	l.logger.Debug("lead access granted",
		"lead_id", res.Lead.ID.String(),
		"viewer_id", viewer.ID.String(),
		"reason", res.Reason,
		"cost", res.Cost,
	)
	l.plugins.EmitLeadAccessed(ctx, &plugin.AccessEvent{
		LeadID:   res.Lead.ID,
		ViewerID: viewer.ID,
		Reason:   string(res.Reason),
		Cost:     res.Cost,
		Balance:  res.Balance,
	})
}

func (l *Ledger) deny(ctx context.Context, ld *lead.Lead, viewer *user.User, err error) error {
	if IsDomainError(err) {
		l.logger.Warn("lead access denied",
			"lead_id", ld.ID.String(),
			"viewer_id", viewer.ID.String(),
			"error", err,
		)
		l.plugins.EmitAccessDenied(ctx, ld.ID, viewer.ID, err)
	}
	return err
}
