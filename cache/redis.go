package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/xraph/leadledger/id"
)

// DefaultTTL is how long a viewer's set lives after its last write.
const DefaultTTL = 24 * time.Hour

// Redis keeps one set of unlocked lead ids per viewer.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ ViewCache = (*Redis)(nil)

// RedisOption configures a Redis cache.
type RedisOption func(*Redis)

// WithPrefix sets the key prefix. Default "leadledger".
func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) { r.prefix = prefix }
}

// WithTTL sets the expiry of a viewer's set.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) { r.ttl = ttl }
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	r := &Redis{client: client, prefix: "leadledger", ttl: DefaultTTL}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DialRedis connects to addr and pings it.
func DialRedis(ctx context.Context, addr, password string, db int, opts ...RedisOption) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewRedis(client, opts...), nil
}

// Key returns the set key of viewer.
func (r *Redis) Key(viewer id.UserID) string {
	return r.prefix + ":views:" + viewer.String()
}

func (r *Redis) Seen(ctx context.Context, leadID id.LeadID, viewer id.UserID) (bool, error) {
	return r.client.SIsMember(ctx, r.Key(viewer), leadID.String()).Result()
}

func (r *Redis) Remember(ctx context.Context, leadID id.LeadID, viewer id.UserID) error {
	key := r.Key(viewer)
	pipe := r.client.TxPipeline()
	pipe.SAdd(ctx, key, leadID.String())
	pipe.Expire(ctx, key, r.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
