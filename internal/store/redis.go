package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultGuardTTL is how long Redis remembers a confirmation guard.
const DefaultGuardTTL = 7 * 24 * time.Hour

// Redis shares state between relay instances, which is what a multi-instance
// deployment needs for the confirmation guard to hold.
type Redis struct {
	client   *redis.Client
	prefix   string
	guardTTL time.Duration
}

// NewRedis creates a store backed by the Redis server at addr.
func NewRedis(addr, password string, db int) *Redis {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Redis{client: rdb, prefix: "relay:", guardTTL: DefaultGuardTTL}
}

// Ping checks connectivity; used at startup.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) pendingKey(nsu string) string { return r.prefix + "pending:" + nsu }
func (r *Redis) guardKey(key string) string   { return r.prefix + "guard:" + key }

func (r *Redis) SavePending(ctx context.Context, p *PendingOrder) error {
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding pending order: %w", err)
	}
	var ttl time.Duration
	if !p.ExpiresAt.IsZero() {
		ttl = time.Until(p.ExpiresAt)
		if ttl <= 0 {
			return nil
		}
	}
	if err := r.client.Set(ctx, r.pendingKey(p.OrderNSU), b, ttl).Err(); err != nil {
		return fmt.Errorf("redis set pending: %w", err)
	}
	return nil
}

func (r *Redis) Pending(ctx context.Context, orderNSU string) (*PendingOrder, error) {
	b, err := r.client.Get(ctx, r.pendingKey(orderNSU)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get pending: %w", err)
	}
	var p PendingOrder
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("decoding pending order %s: %w", orderNSU, err)
	}
	return &p, nil
}

func (r *Redis) DeletePending(ctx context.Context, orderNSU string) error {
	return r.client.Del(ctx, r.pendingKey(orderNSU)).Err()
}

func (r *Redis) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.guardKey(key), string(GuardInFlight), r.guardTTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis claim: %w", err)
	}
	return ok, nil
}

func (r *Redis) Settle(ctx context.Context, key string, state GuardState) error {
	return r.client.Set(ctx, r.guardKey(key), string(state), r.guardTTL).Err()
}

func (r *Redis) Guard(ctx context.Context, key string) (GuardState, error) {
	s, err := r.client.Get(ctx, r.guardKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return GuardNotStarted, nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get guard: %w", err)
	}
	return GuardState(s), nil
}

func (r *Redis) Close() error { return r.client.Close() }

var _ Store = (*Redis)(nil)
