package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sweetdrop/storefront-api/internal/cart"
	"github.com/sweetdrop/storefront-api/pkg/config"
	"github.com/sweetdrop/storefront-api/pkg/logger"
)

// CartSession resolves the visitor's session cookie (issuing one when absent)
// and attaches a cart.Session whose cookie jar mirrors the cart ID.
func CartSession(cfg config.CartConfig, store cart.SessionStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := readCookie(r, cfg.SessionCookie)
			if _, err := uuid.Parse(sessionID); err != nil {
				sessionID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     cfg.SessionCookie,
					Value:    sessionID,
					Path:     "/",
					MaxAge:   maxAgeSeconds(cfg.SessionTTL),
					HttpOnly: true,
					Secure:   cfg.CookieSecure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			jar := &cookieJar{
				w:       w,
				name:    cfg.CartCookieName,
				current: readCookie(r, cfg.CartCookieName),
				secure:  cfg.CookieSecure,
				maxAge:  maxAgeSeconds(cfg.CookieMaxAge),
			}
			sess := cart.NewSession(sessionID, store, jar)

			ctx := WithCartSession(r.Context(), sess)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, sessionID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// cookieJar mirrors the cart ID into a cookie readable by storefront scripts.
type cookieJar struct {
	w       http.ResponseWriter
	name    string
	current string
	secure  bool
	maxAge  int
}

func (j *cookieJar) CartID() string {
	return j.current
}

func (j *cookieJar) SetCartID(cartID string) {
	if cartID == j.current {
		return
	}
	j.current = cartID
	http.SetCookie(j.w, &http.Cookie{
		Name:     j.name,
		Value:    cartID,
		Path:     "/",
		MaxAge:   j.maxAge,
		HttpOnly: false,
		Secure:   j.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func readCookie(r *http.Request, name string) string {
	if name == "" {
		return ""
	}
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}

func maxAgeSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / time.Second)
}
