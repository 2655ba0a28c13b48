package cart

import (
	"context"
	"strings"
	"sync"
)

// Session carries one shopper's cart ID. It is created per request, fills
// itself lazily and writes through to both the store and the cookie jar.
type Session struct {
	id    string
	store SessionStore
	jar   CookieJar

	mu     sync.Mutex
	cartID string
	loaded bool
}

func NewSession(id string, store SessionStore, jar CookieJar) *Session {
	return &Session{id: id, store: store, jar: jar}
}

func (s *Session) ID() string {
	return s.id
}

// CartID recovers the cart ID from the cookie first, then the store. An empty
// result means the session has no cart yet.
func (s *Session) CartID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return s.cartID, nil
	}
	if s.jar != nil {
		if fromCookie := strings.TrimSpace(s.jar.CartID()); fromCookie != "" {
			s.cartID, s.loaded = fromCookie, true
			return s.cartID, nil
		}
	}
	if s.store != nil && s.id != "" {
		stored, err := s.store.LoadCartID(ctx, s.id)
		if err != nil {
			return "", err
		}
		s.cartID = strings.TrimSpace(stored)
		if s.cartID != "" && s.jar != nil {
			s.jar.SetCartID(s.cartID)
		}
	}
	s.loaded = true
	return s.cartID, nil
}

// Persist records cartID in memory and the cookie, then the durable store.
// Only the store write can fail.
func (s *Session) Persist(ctx context.Context, cartID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cartID, s.loaded = cartID, true
	if s.jar != nil {
		s.jar.SetCartID(cartID)
	}
	if s.store == nil || s.id == "" {
		return nil
	}
	return s.store.SaveCartID(ctx, s.id, cartID)
}
