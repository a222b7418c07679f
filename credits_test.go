package leadledger_test

import (
	"errors"
	"testing"

	"github.com/xraph/leadledger"
	"github.com/xraph/leadledger/credit"
	"github.com/xraph/leadledger/id"
)

func TestAdjustCredits(t *testing.T) {
	tests := []struct {
		name        string
		start       int64
		action      credit.Action
		amount      int64
		wantBalance int64
		wantAmount  int64
		wantType    credit.Type
	}{
		{"add", 5, credit.ActionAdd, 7, 12, 7, credit.TypeAdd},
		{"remove", 5, credit.ActionRemove, 2, 3, -2, credit.TypeRemove},
		{"remove floors at zero", 5, credit.ActionRemove, 9, 0, -5, credit.TypeRemove},
		{"set up", 5, credit.ActionSet, 10, 10, 5, credit.TypeAdd},
		{"set down", 5, credit.ActionSet, 1, 1, -4, credit.TypeRemove},
		{"set same", 5, credit.ActionSet, 5, 5, 0, credit.TypeAdd},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			target := f.member("tina", tt.start)

			u, err := f.l.AdjustCredits(f.ctx, f.super, target.ID, tt.action, tt.amount)
			if err != nil {
				t.Fatalf("AdjustCredits: %v", err)
			}
			if u.Credits != tt.wantBalance {
				t.Errorf("credits = %d, want %d", u.Credits, tt.wantBalance)
			}

			latest := f.transactions(target)[0]
			if latest.Amount != tt.wantAmount || latest.Type != tt.wantType {
				t.Errorf("recorded %d/%s, want %d/%s", latest.Amount, latest.Type, tt.wantAmount, tt.wantType)
			}
			if latest.AdminID == nil || *latest.AdminID != f.super.ID {
				t.Errorf("adminId = %v, want %s", latest.AdminID, f.super.ID)
			}
		})
	}
}

func TestAdjustCreditsRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	target := f.member("tina", 4)

	_, err := f.l.AdjustCredits(f.ctx, f.super, target.ID, credit.ActionAdd, -1)
	var ve leadledger.ValidationError
	if !errors.As(err, &ve) || ve.Field != "amount" {
		t.Fatalf("expected amount ValidationError, got %v", err)
	}
	if !errors.Is(err, leadledger.ErrInvalidInput) {
		t.Error("validation error should match ErrInvalidInput")
	}

	_, err = f.l.AdjustCredits(f.ctx, f.super, target.ID, credit.Action("double"), -3)
	var multi *leadledger.ViolationsError
	if !errors.As(err, &multi) {
		t.Fatalf("expected ViolationsError, got %v", err)
	}
	if fields := multi.Fields(); len(fields) != 2 || fields["action"] == "" || fields["amount"] == "" {
		t.Errorf("fields = %v", fields)
	}

	if got := f.balance(target); got != 4 {
		t.Errorf("balance changed to %d", got)
	}
	if _, err := f.l.AdjustCredits(f.ctx, f.super, id.NewUserID(), credit.ActionAdd, 1); !errors.Is(err, leadledger.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestAdjustCreditsRequiresSuperadmin(t *testing.T) {
	f := newFixture(t)
	target := f.member("tina", 0)

	admin, err := f.l.CreateAdmin(f.ctx, f.super, leadledger.AccountInput{Name: "Ada", Email: "ada@example.com", Password: "adminpass"})
	if err != nil {
		t.Fatal(err)
	}

	for _, actor := range []*leadledger.User{target, admin} {
		if _, err := f.l.AdjustCredits(f.ctx, actor, target.ID, credit.ActionAdd, 5); !errors.Is(err, leadledger.ErrForbidden) {
			t.Errorf("%s: expected ErrForbidden, got %v", actor.Role, err)
		}
		if _, err := f.l.ListCreditTransactions(f.ctx, actor, credit.ListOpts{}); !errors.Is(err, leadledger.ErrForbidden) {
			t.Errorf("%s: expected ErrForbidden listing transactions, got %v", actor.Role, err)
		}
		if _, err := f.l.Reconcile(f.ctx, actor, target.ID); !errors.Is(err, leadledger.ErrForbidden) {
			t.Errorf("%s: expected ErrForbidden reconciling, got %v", actor.Role, err)
		}
	}

	if _, err := f.l.Reconcile(f.ctx, nil, target.ID); !errors.Is(err, leadledger.ErrUnauthorized) {
		t.Errorf("anonymous reconcile: expected ErrUnauthorized, got %v", err)
	}
}

func TestClampedRemoveDrift(t *testing.T) {
	t.Run("applied delta", func(t *testing.T) {
		f := newFixture(t)
		u := f.member("dora", 3)
		if _, err := f.l.AdjustCredits(f.ctx, f.super, u.ID, credit.ActionRemove, 10); err != nil {
			t.Fatal(err)
		}
		if latest := f.transactions(u)[0]; latest.Amount != -3 {
			t.Errorf("recorded %d, want -3", latest.Amount)
		}
		f.assertReconciled(u)
	})

	t.Run("requested delta", func(t *testing.T) {
		f := newFixture(t, leadledger.WithRemoveDeltaMode(credit.RecordRequested))
		u := f.member("dora", 3)
		if _, err := f.l.AdjustCredits(f.ctx, f.super, u.ID, credit.ActionRemove, 10); err != nil {
			t.Fatal(err)
		}
		rec, err := f.l.Reconcile(f.ctx, f.super, u.ID)
		if err != nil {
			t.Fatal(err)
		}
		if rec.Balance != 0 || rec.Ledger != -7 || rec.Drift() != 7 {
			t.Errorf("reconciliation = %+v", rec)
		}
	})
}

func TestLedgerStaysReconciled(t *testing.T) {
	f := newFixture(t)
	owner := f.member("bob", 2)
	viewers := []*leadledger.User{f.member("ann", 4), f.member("cid", 1), f.member("dee", 0)}

	leads := []*leadledger.Lead{f.approved(owner, "One"), f.approved(owner, "Two"), f.approved(owner, "Three")}
	for _, v := range viewers {
		for _, ld := range leads {
			_, _ = f.l.ViewLead(f.ctx, v, ld.ID)
			_, _ = f.l.ViewLead(f.ctx, v, ld.ID)
		}
	}
	if _, err := f.l.AdjustCredits(f.ctx, f.super, viewers[0].ID, credit.ActionSet, 7); err != nil {
		t.Fatal(err)
	}
	if _, err := f.l.AdjustCredits(f.ctx, f.super, viewers[1].ID, credit.ActionRemove, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := f.l.AdjustCredits(f.ctx, f.super, viewers[2].ID, credit.ActionAdd, 2); err != nil {
		t.Fatal(err)
	}

	f.assertReconciled(append(viewers, owner, f.super)...)

	entries, err := f.l.ListCreditTransactions(f.ctx, f.super, credit.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].CreatedAt.After(entries[i-1].CreatedAt) {
			t.Fatalf("entries not newest first at %d", i)
		}
	}
}
