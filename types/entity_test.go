package types_test

import (
	"testing"
	"time"

	"github.com/xraph/leadledger/types"
)

func TestEntityTouch(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	e := types.NewEntity(created)
	if !e.CreatedAt.Equal(created) || !e.UpdatedAt.Equal(created) {
		t.Fatalf("unexpected timestamps: %+v", e)
	}

	later := created.Add(time.Hour)
	e.Touch(later)
	if !e.UpdatedAt.Equal(later) {
		t.Errorf("UpdatedAt = %v, want %v", e.UpdatedAt, later)
	}
	if !e.CreatedAt.Equal(created) {
		t.Error("Touch must not move CreatedAt")
	}
	if got := e.Age(later); got != time.Hour {
		t.Errorf("Age = %v, want 1h", got)
	}
}

func TestSystemClockIsUTC(t *testing.T) {
	if loc := types.SystemClock().Location(); loc != time.UTC {
		t.Errorf("location = %v, want UTC", loc)
	}
}
