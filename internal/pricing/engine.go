package pricing

import (
	"math"
	"strconv"
	"strings"

	"github.com/sweetdrop/storefront-api/pkg/money"
)

// MaxPricedQuantity bounds quotes so quantity × price stays far from overflow.
const MaxPricedQuantity = 100000

// Result is the price quote for a bag count. It is derived, never stored.
type Result struct {
	Quantity   int         `json:"quantity"`
	TotalCents money.Cents `json:"total_price"`
	// PerUnitCents is the applied tier's rate, not TotalCents / Quantity.
	// The two differ where the monotonic guard lifts the total: 12 bags on
	// the default schedule total 51.04 at 4.25 a bag plus 0.04 adjustment.
	PerUnitCents         money.Cents `json:"per_unit_price"`
	FreeShippingEligible bool        `json:"free_shipping_eligible"`
	SavingsCents         money.Cents `json:"savings"`
	// AdjustmentCents is what the monotonic guard added on top of
	// quantity × PerUnitCents. Zero for every well-shaped schedule.
	AdjustmentCents money.Cents `json:"adjustment"`
	TierQuantity    int         `json:"tier_quantity"`
	Clamped         bool        `json:"clamped"`
}

// Engine prices bag quantities against a Table. It holds no mutable state.
type Engine struct {
	table *Table
}

func NewEngine(table *Table) *Engine {
	return &Engine{table: table}
}

func (e *Engine) Table() *Table {
	return e.table
}

// PriceForQuantity quotes quantity bags. Out-of-range input is clamped into
// [1, MaxPricedQuantity] and flagged instead of rejected, since callers pass
// transient UI state such as an emptied input box.
func (e *Engine) PriceForQuantity(quantity int) Result {
	qty, clamped := ClampQuantity(quantity)

	idx := e.tierIndex(qty)
	rate := e.rate(idx)
	raw := rate.Times(qty)

	// Adding a bag never lowers the total: a tier boundary may not undercut
	// the last quantity priced at the previous rate.
	total := raw
	for i := 0; i <= idx; i++ {
		below := e.table.tiers[i].Quantity - 1
		if below < 1 {
			continue
		}
		total = money.Max(total, e.rate(i-1).Times(below))
	}

	tierQty := 0
	if idx >= 0 {
		tierQty = e.table.tiers[idx].Quantity
	}

	return Result{
		Quantity:             qty,
		TotalCents:           total,
		PerUnitCents:         rate,
		FreeShippingEligible: qty >= e.table.freeShippingThreshold,
		SavingsCents:         money.Max(0, e.table.basePrice.Times(qty)-total),
		AdjustmentCents:      total - raw,
		TierQuantity:         tierQty,
		Clamped:              clamped,
	}
}

// Schedule prices every tier breakpoint, ascending.
func (e *Engine) Schedule() []Result {
	out := make([]Result, 0, len(e.table.tiers))
	for _, tier := range e.table.tiers {
		out = append(out, e.PriceForQuantity(tier.Quantity))
	}
	return out
}

// tierIndex returns the highest tier whose quantity is <= qty, or -1 when qty
// sits below the first breakpoint.
func (e *Engine) tierIndex(qty int) int {
	idx := -1
	for i, tier := range e.table.tiers {
		if tier.Quantity > qty {
			break
		}
		idx = i
	}
	return idx
}

func (e *Engine) rate(idx int) money.Cents {
	rate := e.table.basePrice
	if idx >= 0 {
		rate = e.table.tiers[idx].PerUnitCents
	}
	return money.Max(rate, e.table.minPerUnit)
}

// ClampQuantity forces quantity into [1, MaxPricedQuantity].
func ClampQuantity(quantity int) (int, bool) {
	switch {
	case quantity < 1:
		return 1, true
	case quantity > MaxPricedQuantity:
		return MaxPricedQuantity, true
	default:
		return quantity, false
	}
}

// NormalizeQuantity turns raw user input into a priceable quantity. Empty or
// non-numeric input becomes 1, fractions round up.
func NormalizeQuantity(raw string) (int, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 1, true
	}
	if qty, err := strconv.Atoi(trimmed); err == nil {
		return ClampQuantity(qty)
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(f) {
		return 1, true
	}
	if f > MaxPricedQuantity {
		return MaxPricedQuantity, true
	}
	qty, _ := ClampQuantity(int(math.Ceil(f)))
	return qty, true
}
