package policy

import (
	"context"

	"github.com/xraph/leadledger/user"
)

// Resource types known to the default gate.
const (
	ResourceLead   = "lead"
	ResourceUser   = "user"
	ResourceCredit = "credit"
)

// NewDefaultGate returns the marketplace gate over users:
//
//	lead   view, create, list: any authenticated user
//	lead   moderate:           admin, superadmin
//	user   list, create:       superadmin
//	credit adjust, audit:      superadmin
func NewDefaultGate() *Gate[*user.User] {
	g := NewGate[*user.User]()
	g.Register(ResourceLead, PolicyFunc[*user.User](leadPolicy))
	g.Register(ResourceUser, PolicyFunc[*user.User](superadminOnly))
	g.Register(ResourceCredit, PolicyFunc[*user.User](superadminOnly))
	return g
}

func leadPolicy(_ context.Context, u *user.User, action Action, _ any) bool {
	switch action {
	case ActionView, ActionCreate, ActionList:
		return u.Role.Valid()
	case ActionModerate:
		return u.Role.IsStaff()
	}
	return false
}

func superadminOnly(_ context.Context, u *user.User, action Action, _ any) bool {
	switch action {
	case ActionList, ActionCreate, ActionAdjust, ActionAudit, ActionView:
		return u.Role.IsSuperadmin()
	}
	return false
}
