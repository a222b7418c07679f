// Package memory is an in-process Store used by tests and single-node
// deployments. One mutex guards all state, which serializes every balance
// mutation.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/xraph/leadledger"
	"github.com/xraph/leadledger/credit"
	"github.com/xraph/leadledger/id"
	"github.com/xraph/leadledger/lead"
	"github.com/xraph/leadledger/leadview"
	"github.com/xraph/leadledger/store"
	"github.com/xraph/leadledger/user"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu     sync.RWMutex
	closed bool

	users   map[string]*user.User
	byEmail map[string]string

	leads map[string]*lead.Lead

	// Views keyed by leadview.Key
	views map[string]*leadview.View

	// Append-only transaction log in insertion order
	txns []*credit.Transaction
}

func New() *Store {
	return &Store{
		users:   make(map[string]*user.User),
		byEmail: make(map[string]string),
		leads:   make(map[string]*lead.Lead),
		views:   make(map[string]*leadview.View),
		txns:    make([]*credit.Transaction, 0),
	}
}

// ──────────────────────────────────────────────────
// Users
// ──────────────────────────────────────────────────

func (s *Store) CreateUser(_ context.Context, u *user.User, grant *credit.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return leadledger.ErrStoreClosed
	}
	if _, exists := s.byEmail[u.Email]; exists {
		return leadledger.ErrEmailTaken
	}
	if _, exists := s.users[u.ID.String()]; exists {
		return leadledger.ErrAlreadyExists
	}

	cp := *u
	s.users[u.ID.String()] = &cp
	s.byEmail[u.Email] = u.ID.String()
	if grant != nil {
		g := *grant
		s.txns = append(s.txns, &g)
	}
	return nil
}

func (s *Store) GetUser(_ context.Context, userID id.UserID) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if u, ok := s.users[userID.String()]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, leadledger.ErrUserNotFound
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if key, ok := s.byEmail[email]; ok {
		cp := *s.users[key]
		return &cp, nil
	}
	return nil, leadledger.ErrUserNotFound
}

func (s *Store) ListUsers(_ context.Context, opts user.ListOpts) ([]*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*user.User, 0, len(s.users))
	for _, u := range s.users {
		if opts.Role != "" && u.Role != opts.Role {
			continue
		}
		cp := *u
		result = append(result, &cp)
	}
	slices.SortFunc(result, func(a, b *user.User) int {
		return newestFirst(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano(), a.ID, b.ID)
	})
	return page(result, opts.Limit, opts.Offset), nil
}

// ──────────────────────────────────────────────────
// Leads
// ──────────────────────────────────────────────────

func (s *Store) CreateLead(_ context.Context, l *lead.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return leadledger.ErrStoreClosed
	}
	if _, exists := s.leads[l.ID.String()]; exists {
		return leadledger.ErrAlreadyExists
	}
	if _, ok := s.users[l.SubmittedBy.String()]; !ok {
		return leadledger.ErrUserNotFound
	}
	cp := *l
	cp.Submitter = nil
	s.leads[l.ID.String()] = &cp
	return nil
}

func (s *Store) GetLead(_ context.Context, leadID id.LeadID) (*lead.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if l, ok := s.leads[leadID.String()]; ok {
		return s.joinLead(l), nil
	}
	return nil, leadledger.ErrLeadNotFound
}

func (s *Store) ListLeads(_ context.Context, opts lead.ListOpts) ([]*lead.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*lead.Lead, 0)
	for _, l := range s.leads {
		if opts.Status != "" && l.Status != opts.Status {
			continue
		}
		if !opts.SubmittedBy.IsNil() && l.SubmittedBy != opts.SubmittedBy {
			continue
		}
		if !opts.ExcludeSubmitter.IsNil() && l.SubmittedBy == opts.ExcludeSubmitter {
			continue
		}
		result = append(result, s.joinLead(l))
	}
	slices.SortFunc(result, func(a, b *lead.Lead) int {
		return newestFirst(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano(), a.ID, b.ID)
	})
	return page(result, opts.Limit, opts.Offset), nil
}

func (s *Store) TransitionLead(_ context.Context, leadID id.LeadID, to lead.Status, at time.Time) (*lead.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, leadledger.ErrStoreClosed
	}
	l, ok := s.leads[leadID.String()]
	if !ok {
		return nil, leadledger.ErrLeadNotFound
	}
	if !lead.CanTransition(l.Status, to) {
		return nil, fmt.Errorf("%w: %s to %s", leadledger.ErrInvalidTransition, l.Status, to)
	}
	l.Status = to
	l.Touch(at)
	return s.joinLead(l), nil
}

// joinLead copies l and attaches the submitter. Caller holds the lock.
func (s *Store) joinLead(l *lead.Lead) *lead.Lead {
	cp := *l
	if u, ok := s.users[l.SubmittedBy.String()]; ok {
		cp.Submitter = u.Ref()
	}
	return &cp
}

// ──────────────────────────────────────────────────
// Views and credits
// ──────────────────────────────────────────────────

func (s *Store) HasViewed(_ context.Context, leadID id.LeadID, viewer id.UserID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.views[leadview.Key(leadID, viewer)]
	return ok, nil
}

func (s *Store) ListViewsByUser(_ context.Context, viewer id.UserID) ([]*leadview.View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*leadview.View, 0)
	for _, v := range s.views {
		if v.ViewedBy == viewer {
			cp := *v
			result = append(result, &cp)
		}
	}
	slices.SortFunc(result, func(a, b *leadview.View) int {
		return newestFirst(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano(), a.ID, b.ID)
	})
	return result, nil
}

func (s *Store) ChargeView(_ context.Context, view *leadview.View, txn *credit.Transaction) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, leadledger.ErrStoreClosed
	}
	u, ok := s.users[view.ViewedBy.String()]
	if !ok {
		return 0, leadledger.ErrUserNotFound
	}
	key := leadview.Key(view.LeadID, view.ViewedBy)
	if _, dup := s.views[key]; dup {
		return u.Credits, leadledger.ErrAlreadyViewed
	}
	cost := -txn.Amount
	if u.Credits < cost {
		return u.Credits, leadledger.ErrInsufficientCredits
	}

	v := *view
	t := *txn
	s.views[key] = &v
	u.Credits -= cost
	u.Touch(txn.CreatedAt)
	s.txns = append(s.txns, &t)
	return u.Credits, nil
}

func (s *Store) AdjustCredits(_ context.Context, userID id.UserID, txn *credit.Transaction, fn credit.AdjustFunc) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, leadledger.ErrStoreClosed
	}
	u, ok := s.users[userID.String()]
	if !ok {
		return nil, leadledger.ErrUserNotFound
	}
	adj, err := fn(u.Credits)
	if err != nil {
		return nil, err
	}

	t := *txn
	t.UserID = userID
	t.Amount = adj.Amount
	t.Type = adj.Type
	t.Reason = adj.Reason
	*txn = t

	u.Credits = adj.Balance
	u.Touch(txn.CreatedAt)
	s.txns = append(s.txns, &t)

	cp := *u
	return &cp, nil
}

func (s *Store) ListTransactions(_ context.Context, opts credit.ListOpts) ([]*credit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*credit.Entry, 0)
	for i := len(s.txns) - 1; i >= 0; i-- {
		t := s.txns[i]
		if !opts.UserID.IsNil() && t.UserID != opts.UserID {
			continue
		}
		if opts.Type != "" && t.Type != opts.Type {
			continue
		}
		var admin *user.Ref
		if t.AdminID != nil {
			admin = s.users[t.AdminID.String()].Ref()
		}
		result = append(result, credit.NewEntry(t, s.users[t.UserID.String()].Ref(), admin))
	}
	slices.SortStableFunc(result, func(a, b *credit.Entry) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return page(result, opts.Limit, opts.Offset), nil
}

func (s *Store) SumTransactions(_ context.Context, userID id.UserID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum int64
	for _, t := range s.txns {
		if t.UserID == userID {
			sum += t.Amount
		}
	}
	return sum, nil
}

// ──────────────────────────────────────────────────
// Core
// ──────────────────────────────────────────────────

func (s *Store) Migrate(_ context.Context) error {
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return leadledger.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

// Helper functions

func newestFirst(aNanos, bNanos int64, aID, bID id.ID) int {
	if c := cmp.Compare(bNanos, aNanos); c != 0 {
		return c
	}
	return cmp.Compare(bID.String(), aID.String())
}

func page[T any](items []T, limit, offset int) []T {
	start := min(offset, len(items))
	end := len(items)
	if limit > 0 && limit < end-start {
		end = start + limit
	}
	return items[start:end]
}
