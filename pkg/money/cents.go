// Package money keeps currency amounts as integer cents and converts to and
// from decimal strings only at the edges.
package money

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Cents is an amount in the smallest currency unit.
type Cents int64

var hundred = decimal.NewFromInt(100)

// Parse converts a decimal amount such as "5.60" into cents, rounding half-up
// to two places.
func Parse(raw string) (Cents, error) {
	trimmed := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "$"))
	if trimmed == "" {
		return 0, fmt.Errorf("empty amount")
	}
	amount, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", raw, err)
	}
	return FromDecimal(amount), nil
}

// MustParse is Parse for package-level constants and tests.
func MustParse(raw string) Cents {
	c, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return c
}

// FromDecimal rounds a decimal amount to cents (half away from zero).
func FromDecimal(amount decimal.Decimal) Cents {
	return Cents(amount.Round(2).Mul(hundred).IntPart())
}

// Decimal returns the amount as a two-place decimal.
func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

// String renders the amount with exactly two decimals, e.g. "25.85".
func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

// Times multiplies by a quantity.
func (c Cents) Times(qty int) Cents {
	return c * Cents(qty)
}

// MarshalJSON renders the amount as a decimal string so clients never see
// floating point values.
func (c Cents) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts both "5.60" and 5.60.
func (c *Cents) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Max returns the larger amount.
func Max(a, b Cents) Cents {
	if a > b {
		return a
	}
	return b
}
