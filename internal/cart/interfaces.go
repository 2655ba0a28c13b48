package cart

import (
	"context"

	"github.com/sweetdrop/storefront-api/internal/pricing"
	"github.com/sweetdrop/storefront-api/pkg/shopify"
)

// Backend is the commerce cart API. *shopify.Client satisfies it.
type Backend interface {
	CartCreate(ctx context.Context) (*shopify.Cart, error)
	CartGet(ctx context.Context, cartID string) (*shopify.Cart, error)
	CartLinesAdd(ctx context.Context, cartID string, lines []shopify.LineInput) (*shopify.Cart, error)
	CartLinesUpdate(ctx context.Context, cartID string, lines []shopify.LineUpdate) (*shopify.Cart, error)
}

// SessionStore is the durable copy of a session's cart ID.
type SessionStore interface {
	LoadCartID(ctx context.Context, sessionID string) (string, error)
	SaveCartID(ctx context.Context, sessionID, cartID string) error
}

// CookieJar mirrors the cart ID into a script-readable cookie.
type CookieJar interface {
	CartID() string
	SetCartID(cartID string)
}

// Sequencer hands out per-session, strictly increasing mutation tokens.
// Next also queues add bags; Claim hands the queued total to the holder of
// the newest token and reports ok=false to everyone else.
type Sequencer interface {
	Next(ctx context.Context, sessionID string, add int) (int64, error)
	Current(ctx context.Context, sessionID string) (int64, error)
	Claim(ctx context.Context, sessionID string, token int64) (pending int, ok bool, err error)
}

// Pricer quotes bag counts for cart summaries.
type Pricer interface {
	PriceForQuantity(quantity int) pricing.Result
}

// Recorder receives facade outcomes. *metrics.CartMetrics satisfies it.
type Recorder interface {
	ObserveCartOperation(operation, outcome string)
	IncStale(operation string)
}
