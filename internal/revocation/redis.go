package revocation

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gomodule/redigo/redis"

	"folio/internal/folio"
)

// DefaultRedisPrefix namespaces revocation keys in a shared redis.
const DefaultRedisPrefix = "folio:revoked:"

// RedisList stores revoked token ids as redis keys that expire together with the token,
// so every server process behind the same redis sees a logout.
type RedisList struct {
	pool   *redis.Pool
	prefix string
	clock  folio.Clock
}

var _ folio.RevocationList = (*RedisList)(nil)

func NewRedisList(addr, prefix string, clock folio.Clock) *RedisList {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	pool := &redis.Pool{
		MaxIdle:     4,
		IdleTimeout: 4 * time.Minute,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialContext(ctx, "tcp", addr)
		},
	}
	return &RedisList{pool: pool, prefix: prefix, clock: clock}
}

func (r *RedisList) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := until.Sub(r.clock.Now())
	if ttl <= 0 {
		return nil
	}
	secs := int64(math.Ceil(ttl.Seconds()))

	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer conn.Close()

	if _, err := redis.DoContext(conn, ctx, "SET", r.prefix+tokenID, 1, "EX", secs); err != nil {
		return fmt.Errorf("storing revoked token: %w", err)
	}
	return nil
}

func (r *RedisList) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return false, fmt.Errorf("connecting to redis: %w", err)
	}
	defer conn.Close()

	revoked, err := redis.Bool(redis.DoContext(conn, ctx, "EXISTS", r.prefix+tokenID))
	if err != nil {
		return false, fmt.Errorf("checking revoked token: %w", err)
	}
	return revoked, nil
}

// Ping checks that redis is reachable.
func (r *RedisList) Ping(ctx context.Context) error {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer conn.Close()

	if _, err := redis.DoContext(conn, ctx, "PING"); err != nil {
		return fmt.Errorf("pinging redis: %w", err)
	}
	return nil
}

func (r *RedisList) Close() error {
	return r.pool.Close()
}
