package leadledger

import (
	"context"

	"github.com/xraph/leadledger/id"
	"github.com/xraph/leadledger/lead"
	"github.com/xraph/leadledger/policy"
	"github.com/xraph/leadledger/types"
	"github.com/xraph/leadledger/user"
)

// ──────────────────────────────────────────────────
// Lead submission and listings
// ──────────────────────────────────────────────────

// SubmitLead stores a new pending lead owned by actor.
func (l *Ledger) SubmitLead(ctx context.Context, actor *user.User, in lead.Input) (*lead.Lead, error) {
	if err := l.gate.Authorize(ctx, actor, policy.ActionCreate, policy.ResourceLead, nil); err != nil {
		return nil, err
	}
	in = normalizeLead(in)
	if err := Validate(in); err != nil {
		return nil, err
	}

	ld := &lead.Lead{
		Entity:      types.NewEntity(l.now()),
		ID:          id.NewLeadID(),
		Title:       in.Title,
		Description: in.Description,
		Contact:     in.Contact,
		Category:    in.Category,
		Status:      lead.StatusPending,
		SubmittedBy: actor.ID,
	}
	if err := l.store.CreateLead(ctx, ld); err != nil {
		return nil, err
	}
	ld.Submitter = actor.Ref()

	l.logger.Info("lead submitted",
		"lead_id", ld.ID.String(),
		"submitted_by", actor.ID.String(),
		"category", ld.Category,
	)
	l.plugins.EmitLeadSubmitted(ctx, ld)
	return ld, nil
}

// GetLead retrieves a lead without any access decision.
func (l *Ledger) GetLead(ctx context.Context, leadID id.LeadID) (*lead.Lead, error) {
	return l.store.GetLead(ctx, leadID)
}

// ListMyLeads lists the leads actor submitted, in every status.
func (l *Ledger) ListMyLeads(ctx context.Context, actor *user.User, opts lead.ListOpts) ([]*lead.Lead, error) {
	if err := l.gate.Authorize(ctx, actor, policy.ActionList, policy.ResourceLead, nil); err != nil {
		return nil, err
	}
	opts.SubmittedBy = actor.ID
	opts.ExcludeSubmitter = id.Nil
	return l.store.ListLeads(ctx, opts)
}

// BrowseLeads lists approved leads submitted by others. Contact details are
// redacted on leads actor has not unlocked.
func (l *Ledger) BrowseLeads(ctx context.Context, actor *user.User, opts lead.ListOpts) ([]*lead.Lead, error) {
	if err := l.gate.Authorize(ctx, actor, policy.ActionList, policy.ResourceLead, nil); err != nil {
		return nil, err
	}
	opts.Status = lead.StatusApproved
	opts.SubmittedBy = id.Nil
	opts.ExcludeSubmitter = actor.ID

	leads, err := l.store.ListLeads(ctx, opts)
	if err != nil {
		return nil, err
	}
	views, err := l.store.ListViewsByUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	unlocked := make(map[id.LeadID]bool, len(views))
	for _, v := range views {
		unlocked[v.LeadID] = true
	}

	for i, ld := range leads {
		if !unlocked[ld.ID] {
			leads[i] = ld.Redacted()
		}
	}
	return leads, nil
}

// ListPendingLeads lists leads awaiting moderation. Staff only.
func (l *Ledger) ListPendingLeads(ctx context.Context, actor *user.User, opts lead.ListOpts) ([]*lead.Lead, error) {
	if err := l.gate.Authorize(ctx, actor, policy.ActionModerate, policy.ResourceLead, nil); err != nil {
		return nil, err
	}
	opts.Status = lead.StatusPending
	return l.store.ListLeads(ctx, opts)
}
