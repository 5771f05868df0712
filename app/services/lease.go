package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lease is a cross-process mutual exclusion on a named key
type Lease interface {
	// Acquire returns a release function when the lease was obtained, or nil when another holder owns it
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

// releaseScript deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLease implements Lease with SET NX PX and a compare-and-delete release
type RedisLease struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisLease creates a lease backed by client
func NewRedisLease(client redis.UniversalClient, prefix string) *RedisLease {
	return &RedisLease{client: client, prefix: prefix}
}

func (l *RedisLease) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	fullKey := l.prefix + "lease:" + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lease %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}

	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{fullKey}, token).Err(); err != nil && err != redis.Nil {
			return fmt.Errorf("failed to release lease %s: %w", key, err)
		}
		return nil
	}, nil
}

// NoopLease always grants the lease. Used when Redis is not configured.
type NoopLease struct{}

func (NoopLease) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}
