package policy_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/leadledger/policy"
	"github.com/xraph/leadledger/user"
)

func TestDefaultGate(t *testing.T) {
	ctx := context.Background()
	g := policy.NewDefaultGate()

	member := &user.User{Role: user.RoleUser}
	admin := &user.User{Role: user.RoleAdmin}
	super := &user.User{Role: user.RoleSuperadmin}

	tests := []struct {
		name     string
		subject  *user.User
		action   policy.Action
		resource string
		want     error
	}{
		{"user views lead", member, policy.ActionView, policy.ResourceLead, nil},
		{"user submits lead", member, policy.ActionCreate, policy.ResourceLead, nil},
		{"user cannot moderate", member, policy.ActionModerate, policy.ResourceLead, policy.ErrForbidden},
		{"admin moderates", admin, policy.ActionModerate, policy.ResourceLead, nil},
		{"superadmin moderates", super, policy.ActionModerate, policy.ResourceLead, nil},
		{"admin cannot adjust credits", admin, policy.ActionAdjust, policy.ResourceCredit, policy.ErrForbidden},
		{"admin cannot audit", admin, policy.ActionAudit, policy.ResourceCredit, policy.ErrForbidden},
		{"superadmin adjusts credits", super, policy.ActionAdjust, policy.ResourceCredit, nil},
		{"superadmin audits", super, policy.ActionAudit, policy.ResourceCredit, nil},
		{"admin cannot list users", admin, policy.ActionList, policy.ResourceUser, policy.ErrForbidden},
		{"superadmin creates admin", super, policy.ActionCreate, policy.ResourceUser, nil},
		{"anonymous", nil, policy.ActionView, policy.ResourceLead, policy.ErrUnauthorized},
		{"unknown resource", super, policy.ActionView, "report", policy.ErrNoPolicyDefined},
		{"unknown action", super, policy.Action("delete"), policy.ResourceLead, policy.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.Authorize(ctx, tt.subject, tt.action, tt.resource, nil)
			if !errors.Is(err, tt.want) {
				t.Errorf("Authorize = %v, want %v", err, tt.want)
			}
			if got := g.Can(ctx, tt.subject, tt.action, tt.resource, nil); got != (tt.want == nil) {
				t.Errorf("Can = %v", got)
			}
		})
	}
}

func TestRegisterOverrides(t *testing.T) {
	g := policy.NewGate[string]()
	g.Register("doc", policy.PolicyFunc[string](func(_ context.Context, s string, _ policy.Action, _ any) bool {
		return s == "alice"
	}))

	ctx := context.Background()
	if !g.Can(ctx, "alice", policy.ActionView, "doc", nil) {
		t.Error("alice should pass")
	}
	if g.Can(ctx, "bob", policy.ActionView, "doc", nil) {
		t.Error("bob should fail")
	}
	if err := g.Authorize(ctx, "", policy.ActionView, "doc", nil); !errors.Is(err, policy.ErrUnauthorized) {
		t.Errorf("empty subject: %v", err)
	}
}
