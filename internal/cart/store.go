package cart

import (
	"context"
	"time"

	"github.com/sweetdrop/storefront-api/pkg/redis"
)

// RedisSessionStore keeps session -> cart ID with a sliding TTL.
type RedisSessionStore struct {
	kv  keyValueStore
	ttl time.Duration
}

func NewRedisSessionStore(kv keyValueStore, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{kv: kv, ttl: ttl}
}

func (r *RedisSessionStore) LoadCartID(ctx context.Context, sessionID string) (string, error) {
	cartID, err := r.kv.Get(ctx, r.kv.CartSessionKey(sessionID))
	if redis.IsNil(err) {
		return "", nil
	}
	return cartID, err
}

func (r *RedisSessionStore) SaveCartID(ctx context.Context, sessionID, cartID string) error {
	return r.kv.Set(ctx, r.kv.CartSessionKey(sessionID), cartID, r.ttl)
}
