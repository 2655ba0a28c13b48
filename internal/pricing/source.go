package pricing

import (
	"context"
	"fmt"

	"github.com/sweetdrop/storefront-api/pkg/config"
	"github.com/sweetdrop/storefront-api/pkg/db/models"
	"github.com/sweetdrop/storefront-api/pkg/money"
)

// TableLoader resolves the schedule from persistent storage.
type TableLoader interface {
	LoadTable(ctx context.Context, id string) (*Table, error)
}

// FromConfig builds the Table from the env-provided schedule.
func FromConfig(cfg config.PricingConfig) (*Table, error) {
	base, err := money.Parse(cfg.BasePrice)
	if err != nil {
		return nil, fmt.Errorf("pricing base price: %w", err)
	}
	floor := money.Cents(0)
	if cfg.MinPerUnitPrice != "" {
		if floor, err = money.Parse(cfg.MinPerUnitPrice); err != nil {
			return nil, fmt.Errorf("pricing min per-unit price: %w", err)
		}
	}
	tiers, err := ParseTiers(cfg.Tiers)
	if err != nil {
		return nil, fmt.Errorf("pricing tiers: %w", err)
	}
	return NewTable(TableParams{
		BasePriceCents:        base,
		FreeShippingThreshold: cfg.FreeShippingThreshold,
		MinPerUnitCents:       floor,
		Tiers:                 tiers,
	})
}

// LoadTable picks the configured source. loader may be nil when the source is env.
func LoadTable(ctx context.Context, cfg config.PricingConfig, loader TableLoader) (*Table, error) {
	if !cfg.UsesDB() {
		return FromConfig(cfg)
	}
	if loader == nil {
		return nil, fmt.Errorf("pricing source %q requires a database", cfg.Source)
	}
	return loader.LoadTable(ctx, models.DefaultPricingScheduleID)
}
