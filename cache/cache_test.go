package cache_test

import (
	"context"
	"strings"
	"testing"

	"github.com/go-redis/redis/v8"

	"github.com/xraph/leadledger/cache"
	"github.com/xraph/leadledger/id"
)

func TestMemoryRemembersPairs(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemory()

	l1, l2 := id.NewLeadID(), id.NewLeadID()
	viewer := id.NewUserID()

	if seen, _ := c.Seen(ctx, l1, viewer); seen {
		t.Fatal("empty cache reported seen")
	}
	if err := c.Remember(ctx, l1, viewer); err != nil {
		t.Fatal(err)
	}
	if seen, _ := c.Seen(ctx, l1, viewer); !seen {
		t.Error("expected seen after Remember")
	}
	if seen, _ := c.Seen(ctx, l2, viewer); seen {
		t.Error("other lead must not be seen")
	}
	if seen, _ := c.Seen(ctx, l1, id.NewUserID()); seen {
		t.Error("other viewer must not be seen")
	}

	_ = c.Remember(ctx, l1, viewer)
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestRedisKey(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	viewer := id.NewUserID()
	c := cache.NewRedis(client, cache.WithPrefix("test"))
	key := c.Key(viewer)
	if !strings.HasPrefix(key, "test:views:user_") || !strings.HasSuffix(key, viewer.String()) {
		t.Errorf("unexpected key %q", key)
	}
}
