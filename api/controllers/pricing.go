package controllers

import (
	"net/http"

	"github.com/sweetdrop/storefront-api/api/responses"
	"github.com/sweetdrop/storefront-api/internal/pricing"
	"github.com/sweetdrop/storefront-api/pkg/logger"
	"github.com/sweetdrop/storefront-api/pkg/money"
)

// QuoteRecorder counts served price quotes.
type QuoteRecorder interface {
	IncQuote(clamped bool)
}

type pricingScheduleResponse struct {
	BasePrice             money.Cents      `json:"base_price"`
	FreeShippingThreshold int              `json:"free_shipping_threshold"`
	MinPerUnitPrice       money.Cents      `json:"min_per_unit_price"`
	Tiers                 []pricing.Result `json:"tiers"`
}

// PricingQuote prices ?quantity=N. Unparseable or out-of-range quantities are
// normalized rather than rejected so the slider never sees an error.
func PricingQuote(engine *pricing.Engine, recorder QuoteRecorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("quantity")
		quantity, normalized := pricing.NormalizeQuantity(raw)

		quote := engine.PriceForQuantity(quantity)
		quote.Clamped = quote.Clamped || normalized
		if recorder != nil {
			recorder.IncQuote(quote.Clamped)
		}
		if quote.Clamped && logg != nil {
			logg.Debug(logg.WithField(r.Context(), "raw_quantity", raw), "pricing.quantity_normalized")
		}
		responses.WriteSuccess(w, quote)
	}
}

// PricingTiers returns the priced tier cards.
func PricingTiers(engine *pricing.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		table := engine.Table()
		responses.WriteSuccess(w, pricingScheduleResponse{
			BasePrice:             table.BasePrice(),
			FreeShippingThreshold: table.FreeShippingThreshold(),
			MinPerUnitPrice:       table.MinPerUnit(),
			Tiers:                 engine.Schedule(),
		})
	}
}
