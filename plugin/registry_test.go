package plugin_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/xraph/leadledger/credit"
	"github.com/xraph/leadledger/id"
	"github.com/xraph/leadledger/lead"
	"github.com/xraph/leadledger/plugin"
)

type recorder struct {
	name string

	mu     sync.Mutex
	events []string
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) add(ev string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) OnLeadSubmitted(_ context.Context, l *lead.Lead) error {
	r.add("submitted:" + l.Title)
	return nil
}

func (r *recorder) OnCreditsSpent(_ context.Context, _ *credit.Transaction, _ int64) error {
	r.add("spent")
	return errors.New("downstream unavailable")
}

type slowPlugin struct{}

func (slowPlugin) Name() string { return "slow" }

func (slowPlugin) OnAccessDenied(ctx context.Context, _ id.LeadID, _ id.UserID, _ error) error {
	select {
	case <-time.After(time.Second):
	case <-ctx.Done():
	}
	return nil
}

func quietRegistry() *plugin.Registry {
	return plugin.NewRegistry().WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := quietRegistry()
	if err := r.Register(&recorder{name: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(&recorder{name: "a"}); err == nil {
		t.Fatal("expected duplicate registration error")
	}
	if r.Count() != 1 {
		t.Errorf("Count = %d", r.Count())
	}
	if r.Get("a") == nil || r.Get("missing") != nil {
		t.Error("Get lookup mismatch")
	}
}

func TestEmitDispatchesOnlyImplementedHooks(t *testing.T) {
	r := quietRegistry()
	rec := &recorder{name: "rec"}
	if err := r.Register(rec); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	r.EmitLeadSubmitted(ctx, &lead.Lead{Title: "ACME"})
	r.EmitCreditsSpent(ctx, &credit.Transaction{Amount: -1}, 2)
	r.EmitUserCreated(ctx, nil)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	want := []string{"submitted:ACME", "spent"}
	if len(rec.events) != len(want) {
		t.Fatalf("events = %v, want %v", rec.events, want)
	}
	for i := range want {
		if rec.events[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, rec.events[i], want[i])
		}
	}
}

func TestEmitTimesOut(t *testing.T) {
	r := quietRegistry().WithTimeout(20 * time.Millisecond)
	if err := r.Register(slowPlugin{}); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	r.EmitAccessDenied(context.Background(), id.NewLeadID(), id.NewUserID(), errors.New("denied"))
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("emit blocked for %v", elapsed)
	}
}
