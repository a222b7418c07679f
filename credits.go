package leadledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/leadledger/credit"
	"github.com/xraph/leadledger/id"
	"github.com/xraph/leadledger/policy"
	"github.com/xraph/leadledger/user"
)

// ──────────────────────────────────────────────────
// Administrative credit adjustment
// ──────────────────────────────────────────────────

// AdjustCredits applies an administrative action to the balance of target
// and appends the matching transaction. Superadmin only.
//
//	add:    balance + amount, recorded +amount
//	remove: max(0, balance - amount), recorded as the applied change
//	        (or -amount under credit.RecordRequested)
//	set:    amount, recorded amount - balance
//
// By default a clamped remove is recorded as the change actually applied,
// so the log always sums to the balance. Build the Ledger with
// WithRemoveDeltaMode(credit.RecordRequested) to record -amount even when
// the balance hits zero; Reconcile then reports the difference as drift.
//
// A negative amount is rejected before anything is read.
func (l *Ledger) AdjustCredits(ctx context.Context, actor *user.User, target id.UserID, action credit.Action, amount int64) (*user.User, error) {
	if err := l.gate.Authorize(ctx, actor, policy.ActionAdjust, policy.ResourceCredit, nil); err != nil {
		return nil, err
	}

	v := Violations{}
	if !action.Valid() {
		v.Add("action", "must be one of add, remove, set")
	}
	if amount < 0 {
		v.Add("amount", "must not be negative")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	txn := &credit.Transaction{
		ID:        id.NewTransactionID(),
		AdminID:   actor.ID.Ptr(),
		CreatedAt: l.now(),
	}
	mode := l.deltaMode
	u, err := l.store.AdjustCredits(ctx, target, txn, func(current int64) (credit.Adjustment, error) {
		return credit.Plan(action, current, amount, mode)
	})
	if err != nil {
		if errors.Is(err, credit.ErrNegativeAmount) || errors.Is(err, credit.ErrUnknownAction) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return nil, err
	}

	l.logger.Info("credits adjusted",
		"user_id", target.String(),
		"admin_id", actor.ID.String(),
		"action", action,
		"amount", txn.Amount,
		"balance", u.Credits,
	)
	l.plugins.EmitCreditsAdjusted(ctx, txn, u)
	return u, nil
}

// ListCreditTransactions lists the log newest first, joined with the subject
// and acting admin. Superadmin only.
func (l *Ledger) ListCreditTransactions(ctx context.Context, actor *user.User, opts credit.ListOpts) ([]*credit.Entry, error) {
	if err := l.gate.Authorize(ctx, actor, policy.ActionAudit, policy.ResourceCredit, nil); err != nil {
		return nil, err
	}
	return l.store.ListTransactions(ctx, opts)
}

// Reconciliation compares a stored balance with the sum of its log.
type Reconciliation struct {
	UserID  id.UserID `json:"userId"`
	Balance int64     `json:"balance"`
	Ledger  int64     `json:"ledger"`
}

// Drift is Balance minus Ledger. Non-zero drift comes from clamped removes
// recorded with credit.RecordRequested.
func (r Reconciliation) Drift() int64 { return r.Balance - r.Ledger }

// Balanced reports whether the balance equals the log sum.
func (r Reconciliation) Balanced() bool { return r.Drift() == 0 }

// Reconcile reads the balance and log sum of userID. Superadmin only.
func (l *Ledger) Reconcile(ctx context.Context, actor *user.User, userID id.UserID) (*Reconciliation, error) {
	if err := l.gate.Authorize(ctx, actor, policy.ActionAudit, policy.ResourceCredit, nil); err != nil {
		return nil, err
	}
	u, err := l.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	sum, err := l.store.SumTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	rec := &Reconciliation{UserID: userID, Balance: u.Credits, Ledger: sum}
	if !rec.Balanced() {
		l.logger.Warn("credit ledger drift",
			"user_id", userID.String(),
			"balance", rec.Balance,
			"ledger", rec.Ledger,
		)
	}
	return rec, nil
}
