package pricing

import (
	"testing"

	"github.com/sweetdrop/storefront-api/pkg/money"
)

func defaultTable(t *testing.T) *Table {
	t.Helper()

	tiers, err := ParseTiers("1:5.60,4:5.49,5:5.17,8:4.64,12:4.25")
	if err != nil {
		t.Fatalf("parse tiers: %v", err)
	}
	table, err := NewTable(TableParams{
		BasePriceCents:        money.MustParse("5.60"),
		FreeShippingThreshold: 5,
		MinPerUnitCents:       money.MustParse("4.25"),
		Tiers:                 tiers,
	})
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	return table
}

func TestPriceForQuantityExamples(t *testing.T) {
	engine := NewEngine(defaultTable(t))

	cases := []struct {
		qty          int
		total        string
		perUnit      string
		freeShipping bool
		savings      string
	}{
		{qty: 1, total: "5.60", perUnit: "5.60", freeShipping: false, savings: "0.00"},
		{qty: 4, total: "21.96", perUnit: "5.49", freeShipping: false, savings: "0.44"},
		{qty: 5, total: "25.85", perUnit: "5.17", freeShipping: true, savings: "2.15"},
		{qty: 8, total: "37.12", perUnit: "4.64", freeShipping: true, savings: "7.68"},
		{qty: 20, total: "85.00", perUnit: "4.25", freeShipping: true, savings: "27.00"},
	}

	for _, tc := range cases {
		got := engine.PriceForQuantity(tc.qty)
		if got.TotalCents.String() != tc.total {
			t.Fatalf("qty %d: expected total %s, got %s", tc.qty, tc.total, got.TotalCents)
		}
		if got.PerUnitCents.String() != tc.perUnit {
			t.Fatalf("qty %d: expected per unit %s, got %s", tc.qty, tc.perUnit, got.PerUnitCents)
		}
		if got.FreeShippingEligible != tc.freeShipping {
			t.Fatalf("qty %d: expected free shipping %v", tc.qty, tc.freeShipping)
		}
		if got.SavingsCents.String() != tc.savings {
			t.Fatalf("qty %d: expected savings %s, got %s", tc.qty, tc.savings, got.SavingsCents)
		}
		if got.Clamped {
			t.Fatalf("qty %d: unexpected clamp", tc.qty)
		}
	}
}

func TestPriceForQuantityClampsBelowOne(t *testing.T) {
	engine := NewEngine(defaultTable(t))

	for _, qty := range []int{0, -3} {
		got := engine.PriceForQuantity(qty)
		if !got.Clamped || got.Quantity != 1 {
			t.Fatalf("qty %d: expected clamp to 1, got %+v", qty, got)
		}
		if got.TotalCents != money.MustParse("5.60") {
			t.Fatalf("qty %d: expected single bag price, got %s", qty, got.TotalCents)
		}
	}

	got := engine.PriceForQuantity(MaxPricedQuantity + 1)
	if !got.Clamped || got.Quantity != MaxPricedQuantity {
		t.Fatalf("expected clamp to max, got %+v", got)
	}
}

func TestPriceForQuantityTotalsNeverDecrease(t *testing.T) {
	engine := NewEngine(defaultTable(t))

	prev := engine.PriceForQuantity(1)
	for qty := 2; qty <= 200; qty++ {
		cur := engine.PriceForQuantity(qty)
		if cur.TotalCents < prev.TotalCents {
			t.Fatalf("total dropped from %s at %d to %s at %d", prev.TotalCents, qty-1, cur.TotalCents, qty)
		}
		if cur.PerUnitCents > prev.PerUnitCents {
			t.Fatalf("per unit rose at %d: %s > %s", qty, cur.PerUnitCents, prev.PerUnitCents)
		}
		if cur.PerUnitCents < money.MustParse("4.25") {
			t.Fatalf("per unit below floor at %d: %s", qty, cur.PerUnitCents)
		}
		if cur.SavingsCents < 0 {
			t.Fatalf("negative savings at %d", qty)
		}
		prev = cur
	}
}

func TestPriceForQuantityBoundaryGuard(t *testing.T) {
	engine := NewEngine(defaultTable(t))

	eleven := engine.PriceForQuantity(11)
	twelve := engine.PriceForQuantity(12)
	if eleven.TotalCents.String() != "51.04" {
		t.Fatalf("expected 11 bags at 51.04, got %s", eleven.TotalCents)
	}
	if twelve.TotalCents != eleven.TotalCents {
		t.Fatalf("expected 12 bags held at %s, got %s", eleven.TotalCents, twelve.TotalCents)
	}
	if twelve.AdjustmentCents.String() != "0.04" {
		t.Fatalf("expected 0.04 adjustment, got %s", twelve.AdjustmentCents)
	}
	if twelve.PerUnitCents.String() != "4.25" || twelve.TierQuantity != 12 {
		t.Fatalf("expected tier 12 rate, got %+v", twelve)
	}
	if want := money.Cents(12)*twelve.PerUnitCents + twelve.AdjustmentCents; twelve.TotalCents != want {
		t.Fatalf("expected total to be rate times quantity plus adjustment, got %s want %s", twelve.TotalCents, want)
	}
	if thirteen := engine.PriceForQuantity(13); thirteen.AdjustmentCents != 0 {
		t.Fatalf("expected guard to lapse at 13, got %s", thirteen.AdjustmentCents)
	}
}

func TestFreeShippingThreshold(t *testing.T) {
	engine := NewEngine(defaultTable(t))

	for qty := 1; qty <= 30; qty++ {
		got := engine.PriceForQuantity(qty).FreeShippingEligible
		if got != (qty >= 5) {
			t.Fatalf("qty %d: free shipping %v", qty, got)
		}
	}
}

func TestQuantityBelowFirstTierUsesBasePrice(t *testing.T) {
	table, err := NewTable(TableParams{
		BasePriceCents:        money.MustParse("6.00"),
		FreeShippingThreshold: 3,
		Tiers:                 []PriceTier{{Quantity: 3, PerUnitCents: money.MustParse("5.00")}},
	})
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	engine := NewEngine(table)

	two := engine.PriceForQuantity(2)
	if two.TotalCents.String() != "12.00" || two.SavingsCents != 0 || two.TierQuantity != 0 {
		t.Fatalf("unexpected quote below first tier: %+v", two)
	}
	three := engine.PriceForQuantity(3)
	if three.TotalCents.String() != "15.00" || three.SavingsCents.String() != "3.00" {
		t.Fatalf("unexpected quote at first tier: %+v", three)
	}
}

func TestSchedule(t *testing.T) {
	schedule := NewEngine(defaultTable(t)).Schedule()
	if len(schedule) != 5 {
		t.Fatalf("expected 5 schedule rows, got %d", len(schedule))
	}
	if schedule[2].Quantity != 5 || schedule[2].TotalCents.String() != "25.85" {
		t.Fatalf("unexpected row %+v", schedule[2])
	}
}

func TestNormalizeQuantity(t *testing.T) {
	cases := []struct {
		raw     string
		qty     int
		clamped bool
	}{
		{raw: "3", qty: 3},
		{raw: " 12 ", qty: 12},
		{raw: "", qty: 1, clamped: true},
		{raw: "abc", qty: 1, clamped: true},
		{raw: "0", qty: 1, clamped: true},
		{raw: "-4", qty: 1, clamped: true},
		{raw: "2.2", qty: 3, clamped: true},
		{raw: "NaN", qty: 1, clamped: true},
		{raw: "1e9", qty: MaxPricedQuantity, clamped: true},
	}

	for _, tc := range cases {
		qty, clamped := NormalizeQuantity(tc.raw)
		if qty != tc.qty || clamped != tc.clamped {
			t.Fatalf("%q: expected (%d,%v), got (%d,%v)", tc.raw, tc.qty, tc.clamped, qty, clamped)
		}
	}
}
