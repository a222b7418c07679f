package lead

import (
	"context"
	"time"

	"github.com/xraph/leadledger/id"
)

// Store persists leads. Listings join the submitter identity.
type Store interface {
	CreateLead(ctx context.Context, l *Lead) error
	GetLead(ctx context.Context, leadID id.LeadID) (*Lead, error)
	ListLeads(ctx context.Context, opts ListOpts) ([]*Lead, error)
	// TransitionLead writes a new status and UpdatedAt, refusing moves that
	// CanTransition rejects.
	TransitionLead(ctx context.Context, leadID id.LeadID, to Status, at time.Time) (*Lead, error)
}

// ListOpts filters lead listings. Results are ordered newest first.
type ListOpts struct {
	Status           Status
	SubmittedBy      id.UserID
	ExcludeSubmitter id.UserID
	Limit            int
	Offset           int
}
