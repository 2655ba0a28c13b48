package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/sweetdrop/storefront-api/api/responses"
	"github.com/sweetdrop/storefront-api/pkg/config"
	pkgerrors "github.com/sweetdrop/storefront-api/pkg/errors"
	"github.com/sweetdrop/storefront-api/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// Pinger is any dependency that can report reachability.
type Pinger interface {
	Ping(context.Context) error
}

// ReadinessCheck names one dependency checked by /health/ready.
type ReadinessCheck struct {
	Name   string
	Pinger Pinger
}

type readinessResponse struct {
	Status            string            `json:"status"`
	Checks            map[string]string `json:"checks"`
	ShopifyConfigured bool              `json:"shopify_configured"`
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Storefront-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every check. An unconfigured Shopify backend is reported
// but does not fail readiness; the cart routes answer "unavailable" instead.
func HealthReady(cfg *config.Config, logg *logger.Logger, checks ...ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Storefront-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		resp := readinessResponse{
			Status:            "ready",
			Checks:            make(map[string]string, len(checks)),
			ShopifyConfigured: cfg.Shopify.Configured(),
		}
		for _, check := range checks {
			if check.Pinger == nil {
				continue
			}
			if err := check.Pinger.Ping(ctx); err != nil {
				resp.Checks[check.Name] = "down"
				resp.Status = "degraded"
				if logg != nil {
					logg.Error(logg.WithField(ctx, "dependency", check.Name), "health.ready.failed", err)
				}
				continue
			}
			resp.Checks[check.Name] = "up"
		}

		if resp.Status != "ready" {
			responses.WriteFailure(w, pkgerrors.CodeDependency, "dependency check failed", resp.Checks)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}
