package controllers

import (
	"net/http"

	"github.com/sweetdrop/storefront-api/api/middleware"
	"github.com/sweetdrop/storefront-api/api/responses"
	"github.com/sweetdrop/storefront-api/api/validators"
	"github.com/sweetdrop/storefront-api/internal/cart"
	pkgerrors "github.com/sweetdrop/storefront-api/pkg/errors"
	"github.com/sweetdrop/storefront-api/pkg/logger"
)

type setBundleRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

type addToCartRequest struct {
	Quantity *int `json:"quantity"`
}

// CartFetch returns the session's cart with its bundle pricing.
func CartFetch(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return withCartSession(svc, logg, func(w http.ResponseWriter, r *http.Request, sess *cart.Session) {
		writeCartResult(w, svc.GetCart(r.Context(), sess))
	})
}

// CartFetchID returns only the cart ID, for checkout redirects.
func CartFetchID(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return withCartSession(svc, logg, func(w http.ResponseWriter, r *http.Request, sess *cart.Session) {
		writeCartResult(w, svc.GetCartID(r.Context(), sess))
	})
}

// CartSetBundle replaces the bag count with the requested quantity.
func CartSetBundle(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return withCartSession(svc, logg, func(w http.ResponseWriter, r *http.Request, sess *cart.Session) {
		var payload setBundleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeCartResult(w, svc.SetBundleQuantity(r.Context(), sess, *payload.Quantity))
	})
}

// CartAdd adds bags on top of the current count. A missing quantity adds one.
func CartAdd(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return withCartSession(svc, logg, func(w http.ResponseWriter, r *http.Request, sess *cart.Session) {
		var payload addToCartRequest
		if _, err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		quantity := 1
		if payload.Quantity != nil {
			quantity = *payload.Quantity
		}
		writeCartResult(w, svc.AddToCart(r.Context(), sess, quantity))
	})
}

// CartClear empties the bundle line but keeps the cart.
func CartClear(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return withCartSession(svc, logg, func(w http.ResponseWriter, r *http.Request, sess *cart.Session) {
		writeCartResult(w, svc.ClearCart(r.Context(), sess))
	})
}

func withCartSession(svc cart.Service, logg *logger.Logger, next func(http.ResponseWriter, *http.Request, *cart.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnavailable, "cart service unavailable"))
			return
		}
		sess := middleware.CartSessionFromContext(r.Context())
		if sess == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart session missing"))
			return
		}
		next(w, r, sess)
	}
}

// writeCartResult maps a facade result onto the envelope. Stale results are
// still successes; the client discards them by the stale flag.
func writeCartResult(w http.ResponseWriter, result cart.Result) {
	if result.OK {
		responses.WriteSuccess(w, result)
		return
	}
	responses.WriteFailure(w, result.Code, result.Message, result.Details)
}
