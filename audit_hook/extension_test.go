package audithook_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/xraph/leadledger"
	audithook "github.com/xraph/leadledger/audit_hook"
	"github.com/xraph/leadledger/credit"
	"github.com/xraph/leadledger/id"
	"github.com/xraph/leadledger/lead"
	"github.com/xraph/leadledger/plugin"
	"github.com/xraph/leadledger/user"
)

type captured struct {
	events []*audithook.AuditEvent
}

func (c *captured) Record(_ context.Context, ev *audithook.AuditEvent) error {
	c.events = append(c.events, ev)
	return nil
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestHooksRecordEvents(t *testing.T) {
	ctx := context.Background()
	admin := id.NewUserID()
	u := &user.User{ID: id.NewUserID(), Email: "ann@example.com", Role: user.RoleUser, Credits: 4}
	l := &lead.Lead{ID: id.NewLeadID(), Status: lead.StatusApproved, Category: lead.CategoryRetail, SubmittedBy: u.ID}
	txn := &credit.Transaction{
		ID:        id.NewTransactionID(),
		UserID:    u.ID,
		Amount:    3,
		Type:      credit.TypeAdd,
		Reason:    "Credits added by admin",
		AdminID:   admin.Ptr(),
		CreatedAt: time.Now(),
	}

	tests := []struct {
		name     string
		fire     func(e *audithook.Extension) error
		action   string
		severity string
		outcome  string
	}{
		{"user created", func(e *audithook.Extension) error { return e.OnUserCreated(ctx, u) },
			audithook.ActionUserCreated, audithook.SeverityInfo, audithook.OutcomeSuccess},
		{"lead submitted", func(e *audithook.Extension) error { return e.OnLeadSubmitted(ctx, l) },
			audithook.ActionLeadSubmitted, audithook.SeverityInfo, audithook.OutcomeSuccess},
		{"lead approved", func(e *audithook.Extension) error {
			return e.OnLeadStatusChanged(ctx, l, lead.StatusPending, admin)
		}, audithook.ActionLeadApproved, audithook.SeverityInfo, audithook.OutcomeSuccess},
		{"lead accessed", func(e *audithook.Extension) error {
			return e.OnLeadAccessed(ctx, &plugin.AccessEvent{LeadID: l.ID, ViewerID: u.ID, Reason: "charged", Cost: 1})
		}, audithook.ActionLeadAccessed, audithook.SeverityInfo, audithook.OutcomeSuccess},
		{"access denied", func(e *audithook.Extension) error {
			return e.OnAccessDenied(ctx, l.ID, u.ID, leadledger.ErrInsufficientCredits)
		}, audithook.ActionLeadAccessDenied, audithook.SeverityWarning, audithook.OutcomeFailure},
		{"credits spent", func(e *audithook.Extension) error { return e.OnCreditsSpent(ctx, txn, 3) },
			audithook.ActionCreditsSpent, audithook.SeverityInfo, audithook.OutcomeSuccess},
		{"credits adjusted", func(e *audithook.Extension) error { return e.OnCreditsAdjusted(ctx, txn, u) },
			audithook.ActionCreditsAdjusted, audithook.SeverityWarning, audithook.OutcomeSuccess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &captured{}
			e := audithook.New(rec, audithook.WithLogger(quiet()))
			if err := tt.fire(e); err != nil {
				t.Fatalf("hook returned %v", err)
			}
			if len(rec.events) != 1 {
				t.Fatalf("got %d events, want 1", len(rec.events))
			}
			ev := rec.events[0]
			if ev.Action != tt.action || ev.Severity != tt.severity || ev.Outcome != tt.outcome {
				t.Errorf("event = %s/%s/%s, want %s/%s/%s",
					ev.Action, ev.Severity, ev.Outcome, tt.action, tt.severity, tt.outcome)
			}
		})
	}
}

func TestAccessDeniedCarriesReason(t *testing.T) {
	rec := &captured{}
	e := audithook.New(rec)
	_ = e.OnAccessDenied(context.Background(), id.NewLeadID(), id.NewUserID(), leadledger.ErrNotApproved)

	ev := rec.events[0]
	if ev.Reason != leadledger.ErrNotApproved.Error() {
		t.Errorf("Reason = %q", ev.Reason)
	}
	if ev.Metadata["error"] != leadledger.ErrNotApproved.Error() {
		t.Errorf("metadata error = %v", ev.Metadata["error"])
	}
}

func TestAdjustmentMetadata(t *testing.T) {
	rec := &captured{}
	e := audithook.New(rec)
	admin := id.NewUserID()
	txn := &credit.Transaction{ID: id.NewTransactionID(), UserID: id.NewUserID(), Amount: -2,
		Type: credit.TypeRemove, Reason: "Credits removed by admin", AdminID: admin.Ptr()}
	_ = e.OnCreditsAdjusted(context.Background(), txn, &user.User{Credits: 0})

	meta := rec.events[0].Metadata
	if meta["admin_id"] != admin.String() || meta["amount"] != int64(-2) || meta["type"] != "remove" {
		t.Errorf("metadata = %v", meta)
	}
}

func TestPendingTransitionIgnored(t *testing.T) {
	rec := &captured{}
	e := audithook.New(rec)
	l := &lead.Lead{ID: id.NewLeadID(), Status: lead.StatusPending}
	_ = e.OnLeadStatusChanged(context.Background(), l, lead.StatusPending, id.NewUserID())
	if len(rec.events) != 0 {
		t.Errorf("got %d events, want 0", len(rec.events))
	}
}

func TestActionFilters(t *testing.T) {
	ctx := context.Background()
	u := &user.User{ID: id.NewUserID()}
	l := &lead.Lead{ID: id.NewLeadID()}

	t.Run("enabled", func(t *testing.T) {
		rec := &captured{}
		e := audithook.New(rec, audithook.WithEnabledActions(audithook.ActionLeadSubmitted))
		_ = e.OnUserCreated(ctx, u)
		_ = e.OnLeadSubmitted(ctx, l)
		if len(rec.events) != 1 || rec.events[0].Action != audithook.ActionLeadSubmitted {
			t.Errorf("events = %v", rec.events)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		rec := &captured{}
		e := audithook.New(rec, audithook.WithDisabledActions(audithook.ActionUserCreated))
		_ = e.OnUserCreated(ctx, u)
		_ = e.OnLeadSubmitted(ctx, l)
		if len(rec.events) != 1 || rec.events[0].Action != audithook.ActionLeadSubmitted {
			t.Errorf("events = %v", rec.events)
		}
	})
}

func TestRecorderFailureIsSwallowed(t *testing.T) {
	var buf bytes.Buffer
	failing := audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		return errors.New("sink down")
	})
	e := audithook.New(failing, audithook.WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	if err := e.OnUserCreated(context.Background(), &user.User{ID: id.NewUserID()}); err != nil {
		t.Fatalf("hook returned %v", err)
	}
	if !strings.Contains(buf.String(), "sink down") {
		t.Errorf("failure not logged: %q", buf.String())
	}
}

func TestLogRecorder(t *testing.T) {
	var buf bytes.Buffer
	e := audithook.New(audithook.LogRecorder(slog.New(slog.NewTextHandler(&buf, nil))))
	_ = e.OnAccessDenied(context.Background(), id.NewLeadID(), id.NewUserID(), leadledger.ErrNotApproved)

	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "action=lead.access_denied") {
		t.Errorf("log output = %q", out)
	}
}
