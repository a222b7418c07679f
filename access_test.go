package leadledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/xraph/leadledger"
	"github.com/xraph/leadledger/credit"
	"github.com/xraph/leadledger/id"
	"github.com/xraph/leadledger/lead"
)

func TestOwnerReadsFreeInAnyStatus(t *testing.T) {
	f := newFixture(t)
	owner := f.member("owen", 0)

	pending := f.submit(owner, "Pending deal")
	rejected, err := f.l.RejectLead(f.ctx, f.super, f.submit(owner, "Rejected deal").ID)
	if err != nil {
		t.Fatal(err)
	}
	approved := f.approved(owner, "Approved deal")

	for _, ld := range []*lead.Lead{pending, rejected, approved} {
		t.Run(string(ld.Status), func(t *testing.T) {
			res, err := f.l.ViewLead(f.ctx, owner, ld.ID)
			if err != nil {
				t.Fatalf("ViewLead: %v", err)
			}
			if res.Cost != 0 || res.Reason != leadledger.AccessOwner || res.NewCredits != nil {
				t.Errorf("unexpected result %+v", res)
			}
			if res.Lead.Contact == "" {
				t.Error("owner must see contact details")
			}
		})
	}

	if n := len(f.transactions(owner)); n != 0 {
		t.Errorf("owner has %d transactions, want 0", n)
	}
}

func TestNonOwnerNeedsApproval(t *testing.T) {
	f := newFixture(t)
	owner := f.member("owen", 0)
	viewer := f.member("vera", 5)

	ld := f.submit(owner, "Pending deal")
	_, err := f.l.ViewLead(f.ctx, viewer, ld.ID)
	if !errors.Is(err, leadledger.ErrNotApproved) {
		t.Fatalf("expected ErrNotApproved, got %v", err)
	}
	if got := f.balance(viewer); got != 5 {
		t.Errorf("balance = %d, want 5", got)
	}

	rejected, err := f.l.RejectLead(f.ctx, f.super, ld.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.l.RequestLeadAccess(f.ctx, viewer, rejected); !errors.Is(err, leadledger.ErrNotApproved) {
		t.Fatalf("expected ErrNotApproved for rejected lead, got %v", err)
	}
}

func TestFirstViewChargesOnce(t *testing.T) {
	f := newFixture(t)
	owner := f.member("bob", 0)
	viewer := f.member("ann", 3)
	ld := f.approved(owner, "ACME expansion")

	res, err := f.l.ViewLead(f.ctx, viewer, ld.ID)
	if err != nil {
		t.Fatalf("first view: %v", err)
	}
	if res.Cost != 1 || res.Reason != leadledger.AccessCharged {
		t.Fatalf("unexpected first result %+v", res)
	}
	if res.NewCredits == nil || *res.NewCredits != 2 {
		t.Fatalf("NewCredits = %v, want 2", res.NewCredits)
	}
	if res.Transaction == nil || res.Transaction.Amount != -1 || res.Transaction.Type != credit.TypeSpend ||
		res.Transaction.Reason != "Viewed lead: ACME expansion" || res.Transaction.AdminID != nil {
		t.Errorf("unexpected spend transaction %+v", res.Transaction)
	}

	views, err := f.store.ListViewsByUser(f.ctx, viewer.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 1 || views[0].LeadID != ld.ID {
		t.Fatalf("views = %+v", views)
	}

	for i := 0; i < 3; i++ {
		again, err := f.l.ViewLead(f.ctx, viewer, ld.ID)
		if err != nil {
			t.Fatalf("repeat view %d: %v", i, err)
		}
		if again.Cost != 0 || again.Reason != leadledger.AccessAlreadyViewed || again.NewCredits != nil {
			t.Errorf("repeat view %d: %+v", i, again)
		}
	}

	if got := f.balance(viewer); got != 2 {
		t.Errorf("balance = %d, want 2", got)
	}
	spends, err := f.l.ListCreditTransactions(f.ctx, f.super, credit.ListOpts{UserID: viewer.ID, Type: credit.TypeSpend})
	if err != nil {
		t.Fatal(err)
	}
	if len(spends) != 1 {
		t.Errorf("spend transactions = %d, want 1", len(spends))
	}
	f.assertReconciled(viewer, owner)
}

func TestInsufficientCreditsHasNoSideEffects(t *testing.T) {
	f := newFixture(t)
	owner := f.member("bob", 0)
	broke := f.member("carl", 0)
	ld := f.approved(owner, "ACME expansion")

	_, err := f.l.ViewLead(f.ctx, broke, ld.ID)
	if !errors.Is(err, leadledger.ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	if !leadledger.IsDomainError(err) {
		t.Error("insufficient credits should be a domain error")
	}

	if got := f.balance(broke); got != 0 {
		t.Errorf("balance = %d", got)
	}
	if seen, _ := f.store.HasViewed(f.ctx, ld.ID, broke.ID); seen {
		t.Error("view recorded without a charge")
	}
	if n := len(f.transactions(broke)); n != 0 {
		t.Errorf("transactions = %d, want 0", n)
	}
}

func TestStaleViewerBalanceIsRefreshed(t *testing.T) {
	f := newFixture(t)
	owner := f.member("bob", 0)
	viewer := f.member("ann", 1)
	ld := f.approved(owner, "ACME expansion")

	if _, err := f.l.AdjustCredits(f.ctx, f.super, viewer.ID, credit.ActionSet, 0); err != nil {
		t.Fatal(err)
	}
	// viewer still claims one credit
	if _, err := f.l.ViewLead(f.ctx, viewer, ld.ID); !errors.Is(err, leadledger.ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
}

func TestWorkedExample(t *testing.T) {
	f := newFixture(t)
	b := f.member("bob", 0)
	a := f.member("ann", 3)
	ld := f.approved(b, "L")

	res, err := f.l.ViewLead(f.ctx, a, ld.ID)
	if err != nil || res.Cost != 1 || *res.NewCredits != 2 {
		t.Fatalf("first view: %+v, %v", res, err)
	}

	res, err = f.l.ViewLead(f.ctx, a, ld.ID)
	if err != nil || res.Cost != 0 {
		t.Fatalf("second view: %+v, %v", res, err)
	}
	if got := f.balance(a); got != 2 {
		t.Fatalf("balance = %d, want 2", got)
	}

	updated, err := f.l.AdjustCredits(f.ctx, f.super, a.ID, credit.ActionSet, 10)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Credits != 10 {
		t.Errorf("credits = %d, want 10", updated.Credits)
	}

	entries := f.transactions(a)
	latest := entries[0]
	if latest.Amount != 8 || latest.Type != credit.TypeAdd || latest.Reason != "Credits set to 10 by admin" {
		t.Errorf("unexpected latest entry %+v", latest.Transaction)
	}
	if latest.Admin == nil || latest.Admin.ID != f.super.ID {
		t.Errorf("admin not joined: %+v", latest.Admin)
	}
	if latest.User == nil || latest.User.ID != a.ID {
		t.Errorf("user not joined: %+v", latest.User)
	}
	f.assertReconciled(a, b, f.super)
}

func TestConcurrentDuplicateViewsChargeOnce(t *testing.T) {
	f := newFixture(t)
	owner := f.member("bob", 0)
	viewer := f.member("ann", 10)
	ld := f.approved(owner, "Hot lead")

	const workers = 32
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		charged int
		free    int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.l.ViewLead(context.Background(), viewer, ld.ID)
			if err != nil {
				t.Errorf("ViewLead: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if res.Cost == 1 {
				charged++
			} else {
				free++
			}
		}()
	}
	wg.Wait()

	if charged != 1 || free != workers-1 {
		t.Errorf("charged=%d free=%d", charged, free)
	}
	if got := f.balance(viewer); got != 9 {
		t.Errorf("balance = %d, want 9", got)
	}
	views, _ := f.store.ListViewsByUser(f.ctx, viewer.ID)
	if len(views) != 1 {
		t.Errorf("views = %d, want 1", len(views))
	}
	f.assertReconciled(viewer)
}

func TestConcurrentViewsNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	owner := f.member("bob", 0)
	viewer := f.member("ann", 3)

	leads := make([]*lead.Lead, 8)
	for i := range leads {
		leads[i] = f.approved(owner, "Lead "+string(rune('A'+i)))
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(leads))
	for _, ld := range leads {
		wg.Add(1)
		go func(leadID id.LeadID) {
			defer wg.Done()
			_, err := f.l.ViewLead(context.Background(), viewer, leadID)
			errs <- err
		}(ld.ID)
	}
	wg.Wait()
	close(errs)

	var ok, short int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, leadledger.ErrInsufficientCredits):
			short++
		default:
			t.Errorf("unexpected error %v", err)
		}
	}
	if ok != 3 || short != len(leads)-3 {
		t.Errorf("ok=%d short=%d", ok, short)
	}
	if got := f.balance(viewer); got != 0 {
		t.Errorf("balance = %d, want 0", got)
	}
	f.assertReconciled(viewer)
}

func TestPreviewAccessDoesNotCharge(t *testing.T) {
	f := newFixture(t)
	owner := f.member("bob", 0)
	viewer := f.member("ann", 1)
	ld := f.approved(owner, "ACME expansion")

	res, err := f.l.PreviewAccess(f.ctx, viewer, ld)
	if err != nil {
		t.Fatal(err)
	}
	if res.Reason != leadledger.AccessCharged || res.Cost != 1 {
		t.Errorf("preview = %+v", res)
	}
	if got := f.balance(viewer); got != 1 {
		t.Errorf("preview charged: balance %d", got)
	}
	if seen, _ := f.store.HasViewed(f.ctx, ld.ID, viewer.ID); seen {
		t.Error("preview recorded a view")
	}
}

func TestAccessRequiresAuthenticatedViewer(t *testing.T) {
	f := newFixture(t)
	owner := f.member("bob", 0)
	ld := f.approved(owner, "ACME expansion")

	if _, err := f.l.RequestLeadAccess(f.ctx, nil, ld); !errors.Is(err, leadledger.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := f.l.ViewLead(f.ctx, owner, id.NewLeadID()); !leadledger.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}
