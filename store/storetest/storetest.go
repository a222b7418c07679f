// Package storetest is a conformance suite every store.Store backend runs.
package storetest

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/xraph/leadledger"
	"github.com/xraph/leadledger/credit"
	"github.com/xraph/leadledger/id"
	"github.com/xraph/leadledger/lead"
	"github.com/xraph/leadledger/leadview"
	"github.com/xraph/leadledger/store"
	"github.com/xraph/leadledger/types"
	"github.com/xraph/leadledger/user"
)

// Factory returns an empty, migrated store. The suite closes it.
type Factory func(t *testing.T) store.Store

var epoch = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

// Run executes the suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"Users", testUsers},
		{"Leads", testLeads},
		{"TransitionLead", testTransitionLead},
		{"ChargeView", testChargeView},
		{"ChargeViewConcurrent", testChargeViewConcurrent},
		{"AdjustCredits", testAdjustCredits},
		{"ListTransactions", testListTransactions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func at(sec int) time.Time { return epoch.Add(time.Duration(sec) * time.Second) }

// NewUser returns an unsaved user with the given balance.
func NewUser(name string, credits int64, created time.Time) *user.User {
	return &user.User{
		Entity:       types.NewEntity(created),
		ID:           id.NewUserID(),
		Name:         name,
		Email:        name + "@example.com",
		PasswordHash: "hash",
		Role:         user.RoleUser,
		Credits:      credits,
	}
}

func grantFor(u *user.User) *credit.Transaction {
	if u.Credits == 0 {
		return nil
	}
	return &credit.Transaction{
		ID:        id.NewTransactionID(),
		UserID:    u.ID,
		Amount:    u.Credits,
		Type:      credit.TypeAdd,
		Reason:    credit.GrantReason(u.Role),
		CreatedAt: u.CreatedAt,
	}
}

func mustUser(t *testing.T, s store.Store, name string, credits int64, created time.Time) *user.User {
	t.Helper()
	u := NewUser(name, credits, created)
	if err := s.CreateUser(context.Background(), u, grantFor(u)); err != nil {
		t.Fatalf("CreateUser(%s): %v", name, err)
	}
	return u
}

func mustLead(t *testing.T, s store.Store, owner *user.User, title string, status lead.Status, created time.Time) *lead.Lead {
	t.Helper()
	l := &lead.Lead{
		Entity:      types.NewEntity(created),
		ID:          id.NewLeadID(),
		Title:       title,
		Description: "desc",
		Contact:     "contact@" + owner.Name + ".test",
		Category:    lead.CategoryFinance,
		Status:      status,
		SubmittedBy: owner.ID,
	}
	if err := s.CreateLead(context.Background(), l); err != nil {
		t.Fatalf("CreateLead(%s): %v", title, err)
	}
	return l
}

func spend(viewer *user.User, l *lead.Lead, when time.Time) (*leadview.View, *credit.Transaction) {
	return &leadview.View{
			ID:        id.NewLeadViewID(),
			LeadID:    l.ID,
			ViewedBy:  viewer.ID,
			CreatedAt: when,
		}, &credit.Transaction{
			ID:        id.NewTransactionID(),
			UserID:    viewer.ID,
			Amount:    -1,
			Type:      credit.TypeSpend,
			Reason:    credit.SpendReason(l.Title),
			CreatedAt: when,
		}
}

func assertReconciled(t *testing.T, s store.Store, u *user.User) {
	t.Helper()
	ctx := context.Background()
	fresh, err := s.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	sum, err := s.SumTransactions(ctx, u.ID)
	if err != nil {
		t.Fatalf("SumTransactions: %v", err)
	}
	if fresh.Credits != sum {
		t.Errorf("%s: balance %d, ledger %d", u.Name, fresh.Credits, sum)
	}
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()
	ann := mustUser(t, s, "ann", 3, at(1))
	bob := mustUser(t, s, "bob", 0, at(2))

	got, err := s.GetUser(ctx, ann.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Email != ann.Email || got.Credits != 3 || got.Role != user.RoleUser || got.PasswordHash != "hash" {
		t.Errorf("GetUser = %+v", got)
	}
	if !got.CreatedAt.Equal(ann.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, ann.CreatedAt)
	}

	byEmail, err := s.GetUserByEmail(ctx, "bob@example.com")
	if err != nil || byEmail.ID != bob.ID {
		t.Errorf("GetUserByEmail = %+v, %v", byEmail, err)
	}

	dup := NewUser("ann", 0, at(3))
	if err := s.CreateUser(ctx, dup, nil); !errors.Is(err, leadledger.ErrEmailTaken) {
		t.Errorf("duplicate email: %v", err)
	}
	if _, err := s.GetUser(ctx, id.NewUserID()); !errors.Is(err, leadledger.ErrUserNotFound) {
		t.Errorf("missing user: %v", err)
	}
	if _, err := s.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, leadledger.ErrUserNotFound) {
		t.Errorf("missing email: %v", err)
	}

	users, err := s.ListUsers(ctx, user.ListOpts{})
	if err != nil || len(users) != 2 || users[0].ID != bob.ID {
		t.Errorf("ListUsers = %d users, %v", len(users), err)
	}
	assertReconciled(t, s, ann)
	assertReconciled(t, s, bob)
}

func testLeads(t *testing.T, s store.Store) {
	ctx := context.Background()
	owner := mustUser(t, s, "owen", 0, at(1))
	other := mustUser(t, s, "olga", 0, at(2))

	l1 := mustLead(t, s, owner, "one", lead.StatusApproved, at(10))
	l2 := mustLead(t, s, owner, "two", lead.StatusPending, at(11))
	l3 := mustLead(t, s, other, "three", lead.StatusApproved, at(12))

	got, err := s.GetLead(ctx, l1.ID)
	if err != nil {
		t.Fatalf("GetLead: %v", err)
	}
	if got.Title != "one" || got.Contact != l1.Contact || got.SubmittedBy != owner.ID || got.Category != lead.CategoryFinance {
		t.Errorf("GetLead = %+v", got)
	}
	if got.Submitter == nil || got.Submitter.Email != owner.Email {
		t.Errorf("submitter not joined: %+v", got.Submitter)
	}
	if _, err := s.GetLead(ctx, id.NewLeadID()); !errors.Is(err, leadledger.ErrLeadNotFound) {
		t.Errorf("missing lead: %v", err)
	}

	cases := []struct {
		name string
		opts lead.ListOpts
		want []id.LeadID
	}{
		{"all", lead.ListOpts{}, []id.LeadID{l3.ID, l2.ID, l1.ID}},
		{"approved", lead.ListOpts{Status: lead.StatusApproved}, []id.LeadID{l3.ID, l1.ID}},
		{"mine", lead.ListOpts{SubmittedBy: owner.ID}, []id.LeadID{l2.ID, l1.ID}},
		{"browse", lead.ListOpts{Status: lead.StatusApproved, ExcludeSubmitter: owner.ID}, []id.LeadID{l3.ID}},
		{"paged", lead.ListOpts{Limit: 1, Offset: 1}, []id.LeadID{l2.ID}},
		{"unbounded limit", lead.ListOpts{Limit: math.MaxInt, Offset: 1}, []id.LeadID{l2.ID, l1.ID}},
		{"offset past end", lead.ListOpts{Limit: 2, Offset: 5}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			leads, err := s.ListLeads(ctx, tc.opts)
			if err != nil {
				t.Fatal(err)
			}
			if len(leads) != len(tc.want) {
				t.Fatalf("got %d leads, want %d", len(leads), len(tc.want))
			}
			for i := range leads {
				if leads[i].ID != tc.want[i] {
					t.Errorf("lead %d = %s, want %s", i, leads[i].Title, tc.want[i])
				}
			}
		})
	}
}

func testTransitionLead(t *testing.T, s store.Store) {
	ctx := context.Background()
	owner := mustUser(t, s, "owen", 0, at(1))
	l := mustLead(t, s, owner, "deal", lead.StatusPending, at(2))

	updated, err := s.TransitionLead(ctx, l.ID, lead.StatusApproved, at(3))
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if updated.Status != lead.StatusApproved || !updated.UpdatedAt.Equal(at(3)) {
		t.Errorf("approve = %+v", updated)
	}

	again, err := s.TransitionLead(ctx, l.ID, lead.StatusApproved, at(4))
	if err != nil || !again.UpdatedAt.Equal(at(4)) {
		t.Errorf("re-approve = %+v, %v", again, err)
	}

	if _, err := s.TransitionLead(ctx, l.ID, lead.StatusRejected, at(5)); !errors.Is(err, leadledger.ErrInvalidTransition) {
		t.Errorf("approved -> rejected: %v", err)
	}
	if _, err := s.TransitionLead(ctx, id.NewLeadID(), lead.StatusApproved, at(5)); !errors.Is(err, leadledger.ErrLeadNotFound) {
		t.Errorf("missing lead: %v", err)
	}

	got, err := s.GetLead(ctx, l.ID)
	if err != nil || got.Status != lead.StatusApproved || !got.UpdatedAt.Equal(at(4)) {
		t.Errorf("stored lead = %+v, %v", got, err)
	}
}

func testChargeView(t *testing.T, s store.Store) {
	ctx := context.Background()
	owner := mustUser(t, s, "owen", 0, at(1))
	viewer := mustUser(t, s, "vera", 1, at(2))
	l1 := mustLead(t, s, owner, "one", lead.StatusApproved, at(3))
	l2 := mustLead(t, s, owner, "two", lead.StatusApproved, at(4))

	view, txn := spend(viewer, l1, at(5))
	balance, err := s.ChargeView(ctx, view, txn)
	if err != nil || balance != 0 {
		t.Fatalf("ChargeView = %d, %v", balance, err)
	}
	if seen, err := s.HasViewed(ctx, l1.ID, viewer.ID); err != nil || !seen {
		t.Errorf("HasViewed = %v, %v", seen, err)
	}

	view, txn = spend(viewer, l1, at(6))
	if _, err := s.ChargeView(ctx, view, txn); !errors.Is(err, leadledger.ErrAlreadyViewed) {
		t.Errorf("duplicate: %v", err)
	}

	view, txn = spend(viewer, l2, at(7))
	if _, err := s.ChargeView(ctx, view, txn); !errors.Is(err, leadledger.ErrInsufficientCredits) {
		t.Errorf("broke: %v", err)
	}
	if seen, _ := s.HasViewed(ctx, l2.ID, viewer.ID); seen {
		t.Error("view recorded without a charge")
	}

	ghost := NewUser("ghost", 5, at(8))
	view, txn = spend(ghost, l2, at(8))
	if _, err := s.ChargeView(ctx, view, txn); !errors.Is(err, leadledger.ErrUserNotFound) {
		t.Errorf("missing viewer: %v", err)
	}

	views, err := s.ListViewsByUser(ctx, viewer.ID)
	if err != nil || len(views) != 1 || views[0].LeadID != l1.ID {
		t.Errorf("ListViewsByUser = %v, %v", views, err)
	}
	assertReconciled(t, s, viewer)
}

func testChargeViewConcurrent(t *testing.T, s store.Store) {
	ctx := context.Background()
	owner := mustUser(t, s, "owen", 0, at(1))
	viewer := mustUser(t, s, "vera", 2, at(2))
	hot := mustLead(t, s, owner, "hot", lead.StatusApproved, at(3))

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		charged int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			view, txn := spend(viewer, hot, at(4))
			_, err := s.ChargeView(ctx, view, txn)
			switch {
			case err == nil:
				mu.Lock()
				charged++
				mu.Unlock()
			case errors.Is(err, leadledger.ErrAlreadyViewed):
			default:
				t.Errorf("ChargeView: %v", err)
			}
		}()
	}
	wg.Wait()

	if charged != 1 {
		t.Errorf("charged %d times, want 1", charged)
	}
	fresh, _ := s.GetUser(ctx, viewer.ID)
	if fresh.Credits != 1 {
		t.Errorf("balance = %d, want 1", fresh.Credits)
	}
	assertReconciled(t, s, viewer)
}

func testAdjustCredits(t *testing.T, s store.Store) {
	ctx := context.Background()
	admin := mustUser(t, s, "ada", 0, at(1))
	target := mustUser(t, s, "tom", 4, at(2))

	txn := &credit.Transaction{ID: id.NewTransactionID(), AdminID: admin.ID.Ptr(), CreatedAt: at(3)}
	u, err := s.AdjustCredits(ctx, target.ID, txn, func(current int64) (credit.Adjustment, error) {
		return credit.Plan(credit.ActionSet, current, 10, credit.RecordRequested)
	})
	if err != nil {
		t.Fatalf("AdjustCredits: %v", err)
	}
	if u.Credits != 10 || txn.Amount != 6 || txn.Type != credit.TypeAdd || txn.UserID != target.ID {
		t.Errorf("set: user %d, txn %+v", u.Credits, txn)
	}

	failed := &credit.Transaction{ID: id.NewTransactionID(), AdminID: admin.ID.Ptr(), CreatedAt: at(4)}
	boom := errors.New("boom")
	_, err = s.AdjustCredits(ctx, target.ID, failed, func(int64) (credit.Adjustment, error) {
		return credit.Adjustment{}, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("fn error: %v", err)
	}

	_, err = s.AdjustCredits(ctx, id.NewUserID(), failed, func(current int64) (credit.Adjustment, error) {
		return credit.Plan(credit.ActionAdd, current, 1, credit.RecordRequested)
	})
	if !errors.Is(err, leadledger.ErrUserNotFound) {
		t.Errorf("missing user: %v", err)
	}

	fresh, _ := s.GetUser(ctx, target.ID)
	if fresh.Credits != 10 {
		t.Errorf("balance = %d, want 10", fresh.Credits)
	}
	assertReconciled(t, s, target)
}

func testListTransactions(t *testing.T, s store.Store) {
	ctx := context.Background()
	admin := mustUser(t, s, "ada", 0, at(1))
	ann := mustUser(t, s, "ann", 2, at(2))
	owner := mustUser(t, s, "owen", 0, at(3))
	l := mustLead(t, s, owner, "deal", lead.StatusApproved, at(4))

	view, txn := spend(ann, l, at(5))
	if _, err := s.ChargeView(ctx, view, txn); err != nil {
		t.Fatal(err)
	}
	adj := &credit.Transaction{ID: id.NewTransactionID(), AdminID: admin.ID.Ptr(), CreatedAt: at(6)}
	if _, err := s.AdjustCredits(ctx, ann.ID, adj, func(current int64) (credit.Adjustment, error) {
		return credit.Plan(credit.ActionAdd, current, 5, credit.RecordRequested)
	}); err != nil {
		t.Fatal(err)
	}

	entries, err := s.ListTransactions(ctx, credit.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}

	top := entries[0]
	if top.ID != adj.ID || top.Amount != 5 || top.Admin == nil || top.Admin.ID != admin.ID || top.User == nil || top.User.ID != ann.ID {
		t.Errorf("newest entry = %+v admin=%+v user=%+v", top.Transaction, top.Admin, top.User)
	}
	if top.AdminID == nil || *top.AdminID != admin.ID {
		t.Errorf("adminId = %v", top.AdminID)
	}

	mid := entries[1]
	if mid.Type != credit.TypeSpend || mid.Amount != -1 || mid.AdminID != nil || mid.Admin != nil || mid.Reason != "Viewed lead: deal" {
		t.Errorf("spend entry = %+v", mid.Transaction)
	}

	spends, err := s.ListTransactions(ctx, credit.ListOpts{UserID: ann.ID, Type: credit.TypeSpend})
	if err != nil || len(spends) != 1 {
		t.Errorf("filtered = %d, %v", len(spends), err)
	}
	assertReconciled(t, s, ann)
}
