package leadledger_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/xraph/leadledger"
	"github.com/xraph/leadledger/credit"
	"github.com/xraph/leadledger/lead"
	"github.com/xraph/leadledger/store/memory"
	"github.com/xraph/leadledger/user"
)

type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	l     *leadledger.Ledger
	store *memory.Store
	super *user.User
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, opts ...leadledger.Option) *fixture {
	t.Helper()

	s := memory.New()
	base := []leadledger.Option{
		leadledger.WithLogger(quietLogger()),
		leadledger.WithClock(newStepClock().Now),
	}
	l := leadledger.New(s, append(base, opts...)...)

	ctx := context.Background()
	if err := l.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = l.Stop() })

	super, created, err := l.SeedSuperadmin(ctx, "root@example.com", "rootpass")
	if err != nil || !created {
		t.Fatalf("SeedSuperadmin: created=%v err=%v", created, err)
	}

	return &fixture{t: t, ctx: ctx, l: l, store: s, super: super}
}

// member registers a user and tops the balance up to credits.
func (f *fixture) member(name string, credits int64) *user.User {
	f.t.Helper()

	u, err := f.l.Register(f.ctx, leadledger.AccountInput{
		Name:     name,
		Email:    name + "@example.com",
		Password: "password1",
	})
	if err != nil {
		f.t.Fatalf("Register(%s): %v", name, err)
	}
	if credits > 0 {
		u, err = f.l.AdjustCredits(f.ctx, f.super, u.ID, credit.ActionAdd, credits)
		if err != nil {
			f.t.Fatalf("AdjustCredits(%s): %v", name, err)
		}
	}
	return u
}

func (f *fixture) submit(owner *user.User, title string) *lead.Lead {
	f.t.Helper()

	ld, err := f.l.SubmitLead(f.ctx, owner, lead.Input{
		Title:       title,
		Description: "Needs a new CRM rollout",
		Contact:     "buyer@" + owner.Name + ".test",
		Category:    lead.CategoryTechnology,
	})
	if err != nil {
		f.t.Fatalf("SubmitLead: %v", err)
	}
	return ld
}

func (f *fixture) approved(owner *user.User, title string) *lead.Lead {
	f.t.Helper()

	ld, err := f.l.ApproveLead(f.ctx, f.super, f.submit(owner, title).ID)
	if err != nil {
		f.t.Fatalf("ApproveLead: %v", err)
	}
	return ld
}

func (f *fixture) balance(u *user.User) int64 {
	f.t.Helper()

	fresh, err := f.l.GetUser(f.ctx, u.ID)
	if err != nil {
		f.t.Fatalf("GetUser: %v", err)
	}
	return fresh.Credits
}

func (f *fixture) transactions(u *user.User) []*credit.Entry {
	f.t.Helper()

	entries, err := f.l.ListCreditTransactions(f.ctx, f.super, credit.ListOpts{UserID: u.ID})
	if err != nil {
		f.t.Fatalf("ListCreditTransactions: %v", err)
	}
	return entries
}

func (f *fixture) assertReconciled(users ...*user.User) {
	f.t.Helper()

	for _, u := range users {
		rec, err := f.l.Reconcile(f.ctx, f.super, u.ID)
		if err != nil {
			f.t.Fatalf("Reconcile: %v", err)
		}
		if !rec.Balanced() {
			f.t.Errorf("%s: balance %d, ledger %d", u.Name, rec.Balance, rec.Ledger)
		}
	}
}
