package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sweetdrop/storefront-api/api/responses"
	pkgerrors "github.com/sweetdrop/storefront-api/pkg/errors"
	"github.com/sweetdrop/storefront-api/pkg/logger"
)

type rateLimiterStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimitPolicy defines the throttling parameters for a traffic surface.
// Each non-zero limit is counted in its own window; the request is refused
// when any of them is exceeded.
type RateLimitPolicy struct {
	name         string
	window       time.Duration
	ipLimit      int
	sessionLimit int
}

func NewRateLimitPolicy(name string, window time.Duration, ipLimit, sessionLimit int) RateLimitPolicy {
	return RateLimitPolicy{
		name:         strings.ToLower(strings.TrimSpace(name)),
		window:       window,
		ipLimit:      ipLimit,
		sessionLimit: sessionLimit,
	}
}

func (p RateLimitPolicy) enabled() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.sessionLimit > 0)
}

func (p RateLimitPolicy) normalizedName() string {
	if p.name == "" {
		return "cart"
	}
	return p.name
}

type limitScope struct {
	kind  string
	value string
	limit int
}

func (p RateLimitPolicy) scopes(r *http.Request) []limitScope {
	var scopes []limitScope
	if ip := clientIP(r); ip != "" && p.ipLimit > 0 {
		scopes = append(scopes, limitScope{kind: "ip", value: ip, limit: p.ipLimit})
	}
	if sess := CartSessionFromContext(r.Context()); sess != nil && sess.ID() != "" && p.sessionLimit > 0 {
		scopes = append(scopes, limitScope{kind: "session", value: sess.ID(), limit: p.sessionLimit})
	}
	return scopes
}

func (p RateLimitPolicy) key(s limitScope) string {
	return fmt.Sprintf("%s:%s:%s", s.kind, p.normalizedName(), s.value)
}

// RateLimit throttles mutating requests per client IP and per cart session.
// Safe methods pass. A limiter error lets the request through.
func RateLimit(policy RateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			remaining := -1
			for _, scope := range policy.scopes(r) {
				allowed, count, err := store.FixedWindowAllow(ctx, policy.key(scope), int64(scope.limit), policy.window)
				if err != nil {
					if logg != nil {
						logg.Warn(logg.WithField(ctx, "error", err.Error()), "rate_limit.unavailable")
					}
					next.ServeHTTP(w, r)
					return
				}
				if !allowed {
					respondRateLimited(ctx, logg, w, policy, scope, count)
					return
				}
				if left := scope.limit - int(count); remaining < 0 || left < remaining {
					remaining = left
				}
			}
			if remaining >= 0 {
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			}

			next.ServeHTTP(w, r)
		})
	}
}

func respondRateLimited(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, policy RateLimitPolicy, scope limitScope, count int64) {
	if logg != nil {
		logCtx := logg.WithFields(ctx, map[string]any{
			"policy":         policy.normalizedName(),
			"scope":          scope.kind,
			"attempts":       count,
			"limit":          scope.limit,
			"window_seconds": int(policy.window.Seconds()),
		})
		logg.Warn(logCtx, "rate_limit.blocked")
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(policy.window.Seconds())))
	w.Header().Set("X-RateLimit-Remaining", "0")
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "Too many cart updates. Please slow down."))
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
