// Package credit defines the append-only credit transaction log and the
// arithmetic of administrative balance adjustments.
package credit

import (
	"fmt"
	"time"

	"github.com/xraph/leadledger/id"
	"github.com/xraph/leadledger/user"
)

// Type classifies a transaction.
type Type string

const (
	TypeAdd    Type = "add"
	TypeRemove Type = "remove"
	TypeSpend  Type = "spend"
)

// Transaction is one signed change to a user's balance. For every user the
// sum of Amount over their transactions equals their balance.
type Transaction struct {
	ID        id.TransactionID `json:"id"`
	UserID    id.UserID        `json:"userId"`
	Amount    int64            `json:"amount"`
	Type      Type             `json:"type"`
	Reason    string           `json:"reason"`
	AdminID   *id.UserID       `json:"adminId"`
	CreatedAt time.Time        `json:"createdAt"`
}

// IsSystem reports whether no admin acted, as for spends and grants.
func (t *Transaction) IsSystem() bool {
	return t.AdminID == nil
}

// Entry is a transaction joined with the identities it references, as shown
// in the audit listing.
type Entry struct {
	Transaction
	User  *user.Ref `json:"user"`
	Admin *user.Ref `json:"admin"`
}

// NewEntry joins t with its subject and optional admin.
func NewEntry(t *Transaction, subject, admin *user.Ref) *Entry {
	return &Entry{Transaction: *t, User: subject, Admin: admin}
}

// SpendReason is the reason recorded when a lead is unlocked.
func SpendReason(title string) string {
	return "Viewed lead: " + title
}

// GrantReason is the reason recorded for an opening balance.
func GrantReason(role user.Role) string {
	return fmt.Sprintf("Initial credits for %s account", role)
}
