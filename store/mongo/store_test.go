package mongo_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/xraph/leadledger/store"
	"github.com/xraph/leadledger/store/mongo"
	"github.com/xraph/leadledger/store/storetest"
)

// Tests run against LEADLEDGER_TEST_MONGO_URI (a replica set) and are
// skipped without it. Every test gets a fresh database.
func TestConformance(t *testing.T) {
	uri := os.Getenv("LEADLEDGER_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("LEADLEDGER_TEST_MONGO_URI not set")
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		ctx := context.Background()
		name := fmt.Sprintf("leadledger_test_%d", time.Now().UnixNano())
		s, err := mongo.Open(ctx, uri, name)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if err := s.Migrate(ctx); err != nil {
			t.Fatalf("Migrate: %v", err)
		}
		return droppingStore{s}
	})
}

// droppingStore drops its database before disconnecting.
type droppingStore struct {
	*mongo.Store
}

func (d droppingStore) Close() error {
	_ = d.DB().Drop(context.Background())
	return d.Store.Close()
}
