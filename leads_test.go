package leadledger_test

import (
	"errors"
	"math"
	"testing"

	"github.com/xraph/leadledger"
	"github.com/xraph/leadledger/lead"
)

func TestSubmitLeadValidation(t *testing.T) {
	f := newFixture(t)
	owner := f.member("owen", 0)

	_, err := f.l.SubmitLead(f.ctx, owner, lead.Input{Title: "Deal", Description: "x", Contact: "c", Category: "sports"})
	var ve leadledger.ValidationError
	if !errors.As(err, &ve) || ve.Field != "category" {
		t.Fatalf("expected category ValidationError, got %v", err)
	}

	if _, err := f.l.SubmitLead(f.ctx, nil, lead.Input{}); !errors.Is(err, leadledger.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestListings(t *testing.T) {
	f := newFixture(t)
	owner := f.member("owen", 0)
	viewer := f.member("vera", 2)

	mine := f.submit(viewer, "Vera's own")
	first := f.approved(owner, "First")
	second := f.approved(owner, "Second")
	_ = f.submit(owner, "Still pending")

	my, err := f.l.ListMyLeads(f.ctx, viewer, lead.ListOpts{})
	if err != nil || len(my) != 1 || my[0].ID != mine.ID {
		t.Fatalf("ListMyLeads = %v, %v", my, err)
	}

	if _, err := f.l.ViewLead(f.ctx, viewer, first.ID); err != nil {
		t.Fatal(err)
	}

	browse, err := f.l.BrowseLeads(f.ctx, viewer, lead.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(browse) != 2 {
		t.Fatalf("browse = %d leads, want 2", len(browse))
	}
	if browse[0].ID != second.ID || browse[1].ID != first.ID {
		t.Errorf("browse should be newest first")
	}
	if browse[0].Contact != "" {
		t.Error("locked lead leaked contact")
	}
	if browse[1].Contact == "" {
		t.Error("unlocked lead should show contact")
	}
	for _, ld := range browse {
		if ld.Submitter == nil || ld.Submitter.ID != owner.ID {
			t.Errorf("submitter not joined on %s", ld.Title)
		}
	}

	paged, err := f.l.BrowseLeads(f.ctx, viewer, lead.ListOpts{Limit: 1, Offset: 1})
	if err != nil || len(paged) != 1 || paged[0].ID != first.ID {
		t.Errorf("paged browse = %v, %v", paged, err)
	}

	wide, err := f.l.BrowseLeads(f.ctx, viewer, lead.ListOpts{Limit: math.MaxInt, Offset: 1})
	if err != nil || len(wide) != 1 || wide[0].ID != first.ID {
		t.Errorf("max limit browse = %v, %v", wide, err)
	}
}
