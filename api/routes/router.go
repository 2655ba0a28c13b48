package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweetdrop/storefront-api/api/controllers"
	"github.com/sweetdrop/storefront-api/api/middleware"
	"github.com/sweetdrop/storefront-api/internal/cart"
	"github.com/sweetdrop/storefront-api/internal/pricing"
	"github.com/sweetdrop/storefront-api/pkg/config"
	"github.com/sweetdrop/storefront-api/pkg/logger"
	"github.com/sweetdrop/storefront-api/pkg/redis"
)

// Deps carries everything the router hands to controllers. Optional
// collaborators may be nil.
type Deps struct {
	Config       *config.Config
	Logger       *logger.Logger
	Redis        redis.IdempotencyStore
	RateLimiter  RateLimiter
	SessionStore cart.SessionStore
	Pricing      *pricing.Engine
	Cart         cart.Service
	Quotes       controllers.QuoteRecorder
	Gatherer     prometheus.Gatherer
	Readiness    []controllers.ReadinessCheck
}

// RateLimiter is the fixed-window counter used on cart mutations.
type RateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

func NewRouter(deps Deps) http.Handler {
	cfg, logg := deps.Config, deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Recoverer(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.Origins()),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Readiness...))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/pricing", func(r chi.Router) {
			r.Get("/", controllers.PricingQuote(deps.Pricing, deps.Quotes, logg))
			r.Get("/tiers", controllers.PricingTiers(deps.Pricing))
		})

		cartPolicy := middleware.NewRateLimitPolicy("cart", cfg.RateLimit.CartWindow, cfg.RateLimit.CartIPLimit, cfg.RateLimit.CartSessionLimit)
		r.Route("/cart", func(r chi.Router) {
			r.Use(middleware.CartSession(cfg.Cart, deps.SessionStore, logg))
			r.Use(middleware.RateLimit(cartPolicy, deps.RateLimiter, logg))

			r.Get("/", controllers.CartFetch(deps.Cart, logg))
			r.Delete("/", controllers.CartClear(deps.Cart, logg))
			r.Get("/id", controllers.CartFetchID(deps.Cart, logg))
			r.Put("/bundle", controllers.CartSetBundle(deps.Cart, logg))
			r.With(middleware.Idempotency(deps.Redis, cfg.Cart.IdempotencyTTL, logg)).Post("/add", controllers.CartAdd(deps.Cart, logg))
		})
	})

	return r
}
