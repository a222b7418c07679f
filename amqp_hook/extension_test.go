package amqphook_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	amqphook "github.com/xraph/leadledger/amqp_hook"
	"github.com/xraph/leadledger/credit"
	"github.com/xraph/leadledger/id"
	"github.com/xraph/leadledger/lead"
	"github.com/xraph/leadledger/plugin"
	"github.com/xraph/leadledger/user"
)

type message struct {
	exchange, key string
	msg           amqp.Publishing
}

type fakeChannel struct {
	sent []message
	err  error
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, message{exchange, key, msg})
	return nil
}

var fixed = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newExtension(ch *fakeChannel) *amqphook.Extension {
	return amqphook.New(ch, "leadledger.events",
		amqphook.WithClock(func() time.Time { return fixed }),
		amqphook.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func TestRoutingKeys(t *testing.T) {
	ctx := context.Background()
	u := &user.User{ID: id.NewUserID(), Email: "ann@example.com", Role: user.RoleUser}
	l := &lead.Lead{ID: id.NewLeadID(), Title: "Deal", Contact: "secret@acme.test", Status: lead.StatusApproved}
	txn := &credit.Transaction{ID: id.NewTransactionID(), UserID: u.ID, Amount: -1, Type: credit.TypeSpend}

	tests := []struct {
		name string
		fire func(e *amqphook.Extension) error
		key  string
	}{
		{"user", func(e *amqphook.Extension) error { return e.OnUserCreated(ctx, u) }, amqphook.KeyUserCreated},
		{"submitted", func(e *amqphook.Extension) error { return e.OnLeadSubmitted(ctx, l) }, amqphook.KeyLeadSubmitted},
		{"status", func(e *amqphook.Extension) error {
			return e.OnLeadStatusChanged(ctx, l, lead.StatusPending, u.ID)
		}, amqphook.KeyLeadStatusChanged},
		{"accessed", func(e *amqphook.Extension) error {
			return e.OnLeadAccessed(ctx, &plugin.AccessEvent{LeadID: l.ID, ViewerID: u.ID, Reason: "charged", Cost: 1})
		}, amqphook.KeyLeadAccessed},
		{"spent", func(e *amqphook.Extension) error { return e.OnCreditsSpent(ctx, txn, 4) }, amqphook.KeyCreditsSpent},
		{"adjusted", func(e *amqphook.Extension) error { return e.OnCreditsAdjusted(ctx, txn, u) }, amqphook.KeyCreditsAdjusted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := &fakeChannel{}
			if err := tt.fire(newExtension(ch)); err != nil {
				t.Fatalf("hook: %v", err)
			}
			if len(ch.sent) != 1 {
				t.Fatalf("sent %d messages, want 1", len(ch.sent))
			}
			m := ch.sent[0]
			if m.exchange != "leadledger.events" || m.key != tt.key {
				t.Errorf("published to %s/%s", m.exchange, m.key)
			}
			if m.msg.ContentType != "application/json" || m.msg.DeliveryMode != amqp.Persistent {
				t.Errorf("publishing = %+v", m.msg)
			}
			if strings.Contains(string(m.msg.Body), "secret@acme.test") {
				t.Error("contact leaked into event body")
			}
		})
	}
}

func TestEnvelope(t *testing.T) {
	ch := &fakeChannel{}
	l := &lead.Lead{ID: id.NewLeadID(), Title: "Deal", Category: lead.CategoryRetail, Status: lead.StatusRejected}
	moderator := id.NewUserID()
	if err := newExtension(ch).OnLeadStatusChanged(context.Background(), l, lead.StatusPending, moderator); err != nil {
		t.Fatal(err)
	}

	var ev struct {
		Type       string    `json:"type"`
		OccurredAt time.Time `json:"occurredAt"`
		Data       struct {
			ID        string `json:"id"`
			Status    string `json:"status"`
			From      string `json:"from"`
			Moderator string `json:"moderator"`
		} `json:"data"`
	}
	if err := json.Unmarshal(ch.sent[0].msg.Body, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Type != amqphook.KeyLeadStatusChanged || !ev.OccurredAt.Equal(fixed) {
		t.Errorf("envelope = %+v", ev)
	}
	if ev.Data.ID != l.ID.String() || ev.Data.Status != "rejected" || ev.Data.From != "pending" || ev.Data.Moderator != moderator.String() {
		t.Errorf("data = %+v", ev.Data)
	}
}

func TestPublishError(t *testing.T) {
	ch := &fakeChannel{err: amqp.ErrClosed}
	err := newExtension(ch).OnUserCreated(context.Background(), &user.User{ID: id.NewUserID()})
	if !errors.Is(err, amqp.ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
}
