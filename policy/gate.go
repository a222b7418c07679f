// Package policy is the role-based authorization gate in front of the
// ledger operations.
//
// A Gate is a registry of policies keyed by resource type. Each Policy
// decides whether a subject may perform an Action on a resource. The gate
// is generic over the subject so the HTTP layer and the engine can share it.
package policy

import (
	"context"
	"errors"
)

// Sentinel errors returned by Gate.Authorize.
var (
	ErrUnauthorized    = errors.New("leadledger: unauthorized")
	ErrForbidden       = errors.New("leadledger: forbidden")
	ErrNoPolicyDefined = errors.New("leadledger: no policy defined for resource")
)

// Action describes the kind of operation a subject wants to perform.
type Action string

const (
	ActionView     Action = "view"
	ActionCreate   Action = "create"
	ActionList     Action = "list"
	ActionModerate Action = "moderate"
	ActionAdjust   Action = "adjust"
	ActionAudit    Action = "audit"
)

// Policy defines authorization rules for a resource type.
type Policy[U any] interface {
	Can(ctx context.Context, subject U, action Action, resource any) bool
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc[U any] func(ctx context.Context, subject U, action Action, resource any) bool

// Can implements Policy.
func (f PolicyFunc[U]) Can(ctx context.Context, subject U, action Action, resource any) bool {
	return f(ctx, subject, action, resource)
}

// Gate is the central authorization checkpoint.
type Gate[U comparable] struct {
	policies map[string]Policy[U]
}

// NewGate creates an empty Gate.
func NewGate[U comparable]() *Gate[U] {
	return &Gate[U]{policies: make(map[string]Policy[U])}
}

// Register adds or replaces the policy for resourceType.
func (g *Gate[U]) Register(resourceType string, p Policy[U]) {
	g.policies[resourceType] = p
}

// Authorize returns ErrUnauthorized for a zero subject, ErrNoPolicyDefined
// for an unknown resource type and ErrForbidden when the policy denies.
func (g *Gate[U]) Authorize(ctx context.Context, subject U, action Action, resourceType string, resource any) error {
	var zero U
	if subject == zero {
		return ErrUnauthorized
	}
	p, ok := g.policies[resourceType]
	if !ok {
		return ErrNoPolicyDefined
	}
	if !p.Can(ctx, subject, action, resource) {
		return ErrForbidden
	}
	return nil
}

// Can is Authorize as a boolean.
func (g *Gate[U]) Can(ctx context.Context, subject U, action Action, resourceType string, resource any) bool {
	return g.Authorize(ctx, subject, action, resourceType, resource) == nil
}
