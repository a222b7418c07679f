// Package cache holds lead-view facts in front of the store.
//
// Only positive facts are cached. A view is never deleted, so a cached
// "seen" stays true forever; a miss always falls through to the store.
package cache

import (
	"context"
	"sync"

	"github.com/xraph/leadledger/id"
	"github.com/xraph/leadledger/leadview"
)

// ViewCache remembers which users have unlocked which leads.
type ViewCache interface {
	Seen(ctx context.Context, leadID id.LeadID, viewer id.UserID) (bool, error)
	Remember(ctx context.Context, leadID id.LeadID, viewer id.UserID) error
}

// Memory is a process-local ViewCache.
type Memory struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

var _ ViewCache = (*Memory)(nil)

// NewMemory returns an empty Memory cache.
func NewMemory() *Memory {
	return &Memory{seen: make(map[string]struct{})}
}

func (m *Memory) Seen(_ context.Context, leadID id.LeadID, viewer id.UserID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.seen[leadview.Key(leadID, viewer)]
	return ok, nil
}

func (m *Memory) Remember(_ context.Context, leadID id.LeadID, viewer id.UserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[leadview.Key(leadID, viewer)] = struct{}{}
	return nil
}

// Len returns the number of cached facts.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.seen)
}
