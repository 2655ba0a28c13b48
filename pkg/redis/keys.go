package redis

import "strings"

const defaultKeyPrefix = "sf"

const (
	idempotencyPrefix = "idempotency"
	rateLimitPrefix   = "rate_limit"
	cartSessionPrefix = "cart_session"
	cartSeqPrefix     = "cart_seq"
	cartPendingPrefix = "cart_pending"
)

// keyspace namespaces every key this service writes so several environments
// can share one Redis.
type keyspace string

func newKeyspace(prefix string) keyspace {
	prefix = strings.Trim(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return keyspace(prefix)
}

func (k keyspace) key(parts ...string) string {
	var b strings.Builder
	if k == "" {
		b.WriteString(defaultKeyPrefix)
	} else {
		b.WriteString(string(k))
	}
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}

// IdempotencyKey names the stored replay of a cart write.
func (c *Client) IdempotencyKey(scope, id string) string {
	return c.keys.key(idempotencyPrefix, scope, id)
}

// RateLimitKey names a fixed-window counter.
func (c *Client) RateLimitKey(scope string) string {
	return c.keys.key(rateLimitPrefix, scope)
}

// CartSessionKey names the key holding a session's cart ID.
func (c *Client) CartSessionKey(sessionID string) string {
	return c.keys.key(cartSessionPrefix, sessionID)
}

// CartSequenceKey names a session's mutation sequence counter.
func (c *Client) CartSequenceKey(sessionID string) string {
	return c.keys.key(cartSeqPrefix, sessionID)
}

// CartPendingKey names the bags queued by adds that have not been applied yet.
func (c *Client) CartPendingKey(sessionID string) string {
	return c.keys.key(cartPendingPrefix, sessionID)
}
