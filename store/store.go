// Package store defines the persistence contract of the marketplace.
//
// Besides plain reads, the interface exposes the atomic primitives the
// ledger engine builds on. Every backend applies each primitive as one unit:
// either all of its writes land or none do.
package store

import (
	"context"

	"github.com/xraph/leadledger/credit"
	"github.com/xraph/leadledger/id"
	"github.com/xraph/leadledger/lead"
	"github.com/xraph/leadledger/leadview"
	"github.com/xraph/leadledger/user"
)

// Store is the unified storage interface for all entities.
type Store interface {
	user.Store
	lead.Store
	leadview.Store
	credit.Store

	// CreateUser inserts u. When grant is non-nil it is appended in the same
	// unit so the opening balance is backed by the log. Returns
	// leadledger.ErrEmailTaken when the email is in use.
	CreateUser(ctx context.Context, u *user.User, grant *credit.Transaction) error

	// ChargeView unlocks a lead for view.ViewedBy. Under the viewer's lock it
	// inserts view, failing with leadledger.ErrAlreadyViewed on a duplicate,
	// then debits -txn.Amount only if the balance covers it, failing with
	// leadledger.ErrInsufficientCredits otherwise, then appends txn. Returns
	// the balance after the debit.
	ChargeView(ctx context.Context, view *leadview.View, txn *credit.Transaction) (int64, error)

	// AdjustCredits reads the balance of userID under lock, calls fn and
	// writes the resulting balance and transaction. txn carries the ID,
	// AdminID and CreatedAt; Amount, Type and Reason come from fn.
	AdjustCredits(ctx context.Context, userID id.UserID, txn *credit.Transaction, fn credit.AdjustFunc) (*user.User, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
