package credit

import (
	"context"

	"github.com/xraph/leadledger/id"
)

// Store reads the transaction log. Appends happen only inside the atomic
// primitives of store.Store.
type Store interface {
	ListTransactions(ctx context.Context, opts ListOpts) ([]*Entry, error)
	SumTransactions(ctx context.Context, userID id.UserID) (int64, error)
}

// ListOpts filters the log. Results are ordered newest first.
type ListOpts struct {
	UserID id.UserID
	Type   Type
	Limit  int
	Offset int
}
