// Package lead defines submitted sales leads and their moderation lifecycle.
package lead

import (
	"github.com/xraph/leadledger/id"
	"github.com/xraph/leadledger/types"
	"github.com/xraph/leadledger/user"
)

// Status is the moderation state of a lead.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Statuses lists every moderation state.
var Statuses = []Status{StatusPending, StatusApproved, StatusRejected}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// CanTransition reports whether a lead in from may be moved to to.
// Pending leads may be approved or rejected. Re-applying the current status
// is allowed and rewrites it. Approved and rejected are terminal.
func CanTransition(from, to Status) bool {
	if !to.Valid() || (to == StatusPending && from != StatusPending) {
		return false
	}
	if from == to {
		return true
	}
	return from == StatusPending
}

// Category is the closed set of lead categories.
type Category string

const (
	CategoryTechnology Category = "technology"
	CategoryMarketing  Category = "marketing"
	CategoryFinance    Category = "finance"
	CategoryHealthcare Category = "healthcare"
	CategoryEducation  Category = "education"
	CategoryRetail     Category = "retail"
	CategoryOther      Category = "other"
)

// Categories lists every accepted category.
var Categories = []Category{
	CategoryTechnology,
	CategoryMarketing,
	CategoryFinance,
	CategoryHealthcare,
	CategoryEducation,
	CategoryRetail,
	CategoryOther,
}

// Valid reports whether c is one of Categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Lead is a sales opportunity. SubmittedBy never changes after creation.
type Lead struct {
	types.Entity
	ID          id.LeadID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Contact     string    `json:"contact,omitempty"`
	Category    Category  `json:"category"`
	Status      Status    `json:"status"`
	SubmittedBy id.UserID `json:"submittedBy"`

	// Submitter is filled by listings that join the owning user.
	Submitter *user.Ref `json:"submitter,omitempty"`
}

// IsOwnedBy reports whether userID submitted the lead.
func (l *Lead) IsOwnedBy(userID id.UserID) bool {
	return l.SubmittedBy == userID
}

// Redacted returns a copy of l without its contact details. Browse listings
// show redacted leads until the viewer has unlocked them.
func (l *Lead) Redacted() *Lead {
	cp := *l
	cp.Contact = ""
	return &cp
}

// Input is the user-supplied part of a new lead.
type Input struct {
	Title       string   `json:"title" validate:"required,max=200"`
	Description string   `json:"description" validate:"required,max=5000"`
	Contact     string   `json:"contact" validate:"required,max=500"`
	Category    Category `json:"category" validate:"required,category"`
}
