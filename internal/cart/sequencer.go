package cart

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/sweetdrop/storefront-api/pkg/redis"
)

// MemorySequencer keeps tokens in process. Fine for tests and single-instance dev.
type MemorySequencer struct {
	mu      sync.Mutex
	tokens  map[string]int64
	pending map[string]int
}

func NewMemorySequencer() *MemorySequencer {
	return &MemorySequencer{tokens: make(map[string]int64), pending: make(map[string]int)}
}

func (m *MemorySequencer) Next(_ context.Context, sessionID string, add int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[sessionID]++
	m.pending[sessionID] += add
	return m.tokens[sessionID], nil
}

func (m *MemorySequencer) Current(_ context.Context, sessionID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[sessionID], nil
}

func (m *MemorySequencer) Claim(_ context.Context, sessionID string, token int64) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens[sessionID] > token {
		return 0, false, nil
	}
	pending := m.pending[sessionID]
	delete(m.pending, sessionID)
	return pending, true, nil
}

type keyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	NextSequence(ctx context.Context, sessionID string, add int, ttl time.Duration) (int64, error)
	ClaimSequence(ctx context.Context, sessionID string, token int64) (int, bool, error)
	CartSessionKey(sessionID string) string
	CartSequenceKey(sessionID string) string
}

// RedisSequencer orders tokens across API instances. Token issue and claim
// are single scripts, so queued adds cannot slip between a check and a drain.
type RedisSequencer struct {
	kv  keyValueStore
	ttl time.Duration
}

func NewRedisSequencer(kv keyValueStore, ttl time.Duration) *RedisSequencer {
	return &RedisSequencer{kv: kv, ttl: ttl}
}

func (r *RedisSequencer) Next(ctx context.Context, sessionID string, add int) (int64, error) {
	return r.kv.NextSequence(ctx, sessionID, add, r.ttl)
}

func (r *RedisSequencer) Current(ctx context.Context, sessionID string) (int64, error) {
	raw, err := r.kv.Get(ctx, r.kv.CartSequenceKey(sessionID))
	if redis.IsNil(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

func (r *RedisSequencer) Claim(ctx context.Context, sessionID string, token int64) (int, bool, error) {
	return r.kv.ClaimSequence(ctx, sessionID, token)
}
