package pricing

import (
	"fmt"
	"strconv"
	"strings"

	pkgerrors "github.com/sweetdrop/storefront-api/pkg/errors"
	"github.com/sweetdrop/storefront-api/pkg/money"
)

// PriceTier is a discount breakpoint: PerUnitCents applies from Quantity bags up.
type PriceTier struct {
	Quantity     int         `json:"quantity"`
	PerUnitCents money.Cents `json:"per_unit_price"`
}

// Table is the validated, read-only discount schedule.
type Table struct {
	basePrice             money.Cents
	freeShippingThreshold int
	minPerUnit            money.Cents
	tiers                 []PriceTier
}

// TableParams captures the raw schedule before validation.
type TableParams struct {
	BasePriceCents        money.Cents
	FreeShippingThreshold int
	MinPerUnitCents       money.Cents
	Tiers                 []PriceTier
}

// NewTable validates params and freezes them into a Table.
func NewTable(params TableParams) (*Table, error) {
	if params.BasePriceCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "base price must be positive")
	}
	if params.FreeShippingThreshold < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "free shipping threshold must be at least 1")
	}
	if params.MinPerUnitCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "minimum per-unit price cannot be negative")
	}
	if len(params.Tiers) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one price tier is required")
	}

	tiers := make([]PriceTier, len(params.Tiers))
	copy(tiers, params.Tiers)

	for i, tier := range tiers {
		if tier.Quantity < 1 {
			return nil, tierError(i, "tier quantity must be at least 1")
		}
		if tier.PerUnitCents <= 0 {
			return nil, tierError(i, "tier price must be positive")
		}
		if i == 0 {
			continue
		}
		prev := tiers[i-1]
		if tier.Quantity <= prev.Quantity {
			return nil, tierError(i, "tiers must be strictly ascending by quantity")
		}
		if tier.PerUnitCents > prev.PerUnitCents {
			return nil, tierError(i, "tier prices must be non-increasing")
		}
	}

	if last := tiers[len(tiers)-1]; params.MinPerUnitCents > last.PerUnitCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "minimum per-unit price exceeds the last tier price").
			WithDetails(map[string]any{"min_per_unit_price": params.MinPerUnitCents.String(), "last_tier_price": last.PerUnitCents.String()})
	}

	return &Table{
		basePrice:             params.BasePriceCents,
		freeShippingThreshold: params.FreeShippingThreshold,
		minPerUnit:            params.MinPerUnitCents,
		tiers:                 tiers,
	}, nil
}

func tierError(index int, msg string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(map[string]any{"tier_index": index})
}

func (t *Table) BasePrice() money.Cents {
	return t.basePrice
}

func (t *Table) FreeShippingThreshold() int {
	return t.freeShippingThreshold
}

func (t *Table) MinPerUnit() money.Cents {
	return t.minPerUnit
}

// Tiers returns a copy of the schedule, ascending by quantity.
func (t *Table) Tiers() []PriceTier {
	out := make([]PriceTier, len(t.tiers))
	copy(out, t.tiers)
	return out
}

// ParseTiers reads the "qty:price,qty:price" schedule format used in config.
func ParseTiers(raw string) ([]PriceTier, error) {
	var tiers []PriceTier
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		qtyRaw, priceRaw, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("tier %q: expected qty:price", entry)
		}
		qty, err := strconv.Atoi(strings.TrimSpace(qtyRaw))
		if err != nil {
			return nil, fmt.Errorf("tier %q: invalid quantity: %w", entry, err)
		}
		price, err := money.Parse(priceRaw)
		if err != nil {
			return nil, fmt.Errorf("tier %q: %w", entry, err)
		}
		tiers = append(tiers, PriceTier{Quantity: qty, PerUnitCents: price})
	}
	if len(tiers) == 0 {
		return nil, fmt.Errorf("no tiers in %q", raw)
	}
	return tiers, nil
}
