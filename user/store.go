package user

import (
	"context"

	"github.com/xraph/leadledger/id"
)

// Store persists users. Balance changes are not part of this interface;
// they go through the credit-aware primitives of store.Store.
type Store interface {
	GetUser(ctx context.Context, userID id.UserID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context, opts ListOpts) ([]*User, error)
}

// ListOpts filters user listings. Results are ordered newest first.
type ListOpts struct {
	Role   Role
	Limit  int
	Offset int
}
