package credit

import (
	"errors"
	"fmt"
	"strings"
)

// Action is an administrative balance operation.
type Action string

const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
	ActionSet    Action = "set"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	return a == ActionAdd || a == ActionRemove || a == ActionSet
}

// DeltaMode selects what a clamped remove records.
type DeltaMode int

const (
	// RecordRequested logs -amount even when the balance floors at zero.
	// The log then overstates the real change by the clamped part.
	RecordRequested DeltaMode = iota
	// RecordApplied logs the change actually applied to the balance, which
	// keeps the log reconciled with the balance.
	RecordApplied
)

// String returns the configuration name of m.
func (m DeltaMode) String() string {
	if m == RecordApplied {
		return "applied"
	}
	return "requested"
}

// ParseDeltaMode reads "applied" or "requested". Empty selects RecordApplied.
func ParseDeltaMode(s string) (DeltaMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "applied":
		return RecordApplied, nil
	case "requested":
		return RecordRequested, nil
	}
	return 0, fmt.Errorf("credit: unknown delta mode %q", s)
}

var (
	ErrUnknownAction  = errors.New("credit: unknown action")
	ErrNegativeAmount = errors.New("credit: amount must not be negative")
)

// Adjustment is the outcome of an administrative action on one balance.
type Adjustment struct {
	Balance int64
	Amount  int64
	Type    Type
	Reason  string
}

// Plan computes the new balance and the transaction to record for action
// applied to current.
func Plan(action Action, current, amount int64, mode DeltaMode) (Adjustment, error) {
	if amount < 0 {
		return Adjustment{}, ErrNegativeAmount
	}

	switch action {
	case ActionAdd:
		return Adjustment{
			Balance: current + amount,
			Amount:  amount,
			Type:    TypeAdd,
			Reason:  "Credits added by admin",
		}, nil

	case ActionRemove:
		balance := max(current-amount, 0)
		delta := -amount
		if mode == RecordApplied {
			delta = balance - current
		}
		return Adjustment{
			Balance: balance,
			Amount:  delta,
			Type:    TypeRemove,
			Reason:  "Credits removed by admin",
		}, nil

	case ActionSet:
		delta := amount - current
		typ := TypeAdd
		if delta < 0 {
			typ = TypeRemove
		}
		return Adjustment{
			Balance: amount,
			Amount:  delta,
			Type:    typ,
			Reason:  fmt.Sprintf("Credits set to %d by admin", amount),
		}, nil
	}

	return Adjustment{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
}

// AdjustFunc computes an adjustment from the balance read under the store's
// lock. Returning an error aborts the write.
type AdjustFunc func(current int64) (Adjustment, error)
