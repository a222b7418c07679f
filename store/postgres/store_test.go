package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/xraph/leadledger/store"
	"github.com/xraph/leadledger/store/postgres"
	"github.com/xraph/leadledger/store/storetest"
)

// Tests run against LEADLEDGER_TEST_POSTGRES_DSN and are skipped without it.
// Each test truncates the schema first.
func TestConformance(t *testing.T) {
	dsn := os.Getenv("LEADLEDGER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LEADLEDGER_TEST_POSTGRES_DSN not set")
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		ctx := context.Background()
		s, err := postgres.Open(ctx, dsn)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if err := s.Migrate(ctx); err != nil {
			t.Fatalf("Migrate: %v", err)
		}
		if _, err := s.Pool().Exec(ctx, `TRUNCATE leadledger_transactions, leadledger_lead_views,
			leadledger_leads, leadledger_users`); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return s
	})
}

func TestMigrateIdempotent(t *testing.T) {
	dsn := os.Getenv("LEADLEDGER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LEADLEDGER_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	s, err := postgres.Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	for i := 0; i < 2; i++ {
		if err := s.Migrate(ctx); err != nil {
			t.Fatalf("Migrate #%d: %v", i+1, err)
		}
	}
}
