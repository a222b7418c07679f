// Package leadview records which users have unlocked which leads.
package leadview

import (
	"context"
	"time"

	"github.com/xraph/leadledger/id"
)

// View is the fact that ViewedBy has paid for LeadID. At most one exists per
// (LeadID, ViewedBy) pair and views are never deleted.
type View struct {
	ID        id.LeadViewID `json:"id"`
	LeadID    id.LeadID     `json:"leadId"`
	ViewedBy  id.UserID     `json:"viewedBy"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Key is the uniqueness key of a view.
func Key(leadID id.LeadID, viewer id.UserID) string {
	return leadID.String() + ":" + viewer.String()
}

// Store reads views. Views are written only by store.Store.ChargeView.
type Store interface {
	HasViewed(ctx context.Context, leadID id.LeadID, viewer id.UserID) (bool, error)
	ListViewsByUser(ctx context.Context, viewer id.UserID) ([]*View, error)
}
