package middleware

import (
	"context"

	"github.com/sweetdrop/storefront-api/internal/cart"
)

type contextKey string

const (
	ctxRequestID   contextKey = "request_id"
	ctxSessionID   contextKey = "session_id"
	ctxCartSession contextKey = "cart_session"
)

func stringFromContext(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxRequestID, id)
}

// RequestIDFromContext returns the ID assigned by RequestID.
func RequestIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxRequestID)
}

func SessionIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxSessionID)
}

// CartSessionFromContext returns the cart session built by CartSession.
func CartSessionFromContext(ctx context.Context) *cart.Session {
	if ctx == nil {
		return nil
	}
	sess, _ := ctx.Value(ctxCartSession).(*cart.Session)
	return sess
}

// WithCartSession injects the cart session and its ID into the context.
func WithCartSession(ctx context.Context, sess *cart.Session) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxSessionID, sess.ID())
	return context.WithValue(ctx, ctxCartSession, sess)
}
