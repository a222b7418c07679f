package leadledger

import (
	"context"
	"fmt"

	"github.com/xraph/leadledger/id"
	"github.com/xraph/leadledger/lead"
	"github.com/xraph/leadledger/policy"
	"github.com/xraph/leadledger/user"
)

// SetLeadStatus moves a lead through moderation. Pending leads may become
// approved or rejected; re-applying the current status rewrites it and
// bumps UpdatedAt. Anything else fails with ErrInvalidTransition.
func (l *Ledger) SetLeadStatus(ctx context.Context, actor *user.User, leadID id.LeadID, to lead.Status) (*lead.Lead, error) {
	if err := l.gate.Authorize(ctx, actor, policy.ActionModerate, policy.ResourceLead, nil); err != nil {
		return nil, err
	}
	if !to.Valid() {
		return nil, ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", to)}
	}

	current, err := l.store.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if !lead.CanTransition(current.Status, to) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.Status, to)
	}

	updated, err := l.store.TransitionLead(ctx, leadID, to, l.now())
	if err != nil {
		return nil, err
	}

	l.logger.Info("lead moderated",
		"lead_id", leadID.String(),
		"from", current.Status,
		"to", to,
		"moderator", actor.ID.String(),
	)
	l.plugins.EmitLeadStatusChanged(ctx, updated, current.Status, actor.ID)
	return updated, nil
}

// ApproveLead is SetLeadStatus with StatusApproved.
func (l *Ledger) ApproveLead(ctx context.Context, actor *user.User, leadID id.LeadID) (*lead.Lead, error) {
	return l.SetLeadStatus(ctx, actor, leadID, lead.StatusApproved)
}

// RejectLead is SetLeadStatus with StatusRejected.
func (l *Ledger) RejectLead(ctx context.Context, actor *user.User, leadID id.LeadID) (*lead.Lead, error) {
	return l.SetLeadStatus(ctx, actor, leadID, lead.StatusRejected)
}
