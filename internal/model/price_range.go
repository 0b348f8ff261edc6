package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PriceRange is the display price window (asset1 per asset0, decimal
// adjusted). Unbounded means no upper bound.
type PriceRange struct {
	Lower     decimal.Decimal
	Upper     decimal.Decimal
	Unbounded bool
}

// FullPriceRange is the default window [0, inf).
func FullPriceRange() PriceRange {
	return PriceRange{Lower: decimal.Zero, Unbounded: true}
}

// ParsePriceRange builds a window from config strings. An empty upper
// value, "inf" or "0" leaves the window unbounded.
func ParsePriceRange(lower, upper string) (PriceRange, error) {
	r := FullPriceRange()
	if lower != "" {
		v, err := decimal.NewFromString(lower)
		if err != nil {
			return PriceRange{}, fmt.Errorf("price lower: %w", err)
		}
		r.Lower = v
	}
	switch upper {
	case "", "inf", "+inf", "Infinity":
	default:
		v, err := decimal.NewFromString(upper)
		if err != nil {
			return PriceRange{}, fmt.Errorf("price upper: %w", err)
		}
		if !v.IsZero() {
			r.Upper = v
			r.Unbounded = false
		}
	}
	return r, nil
}

func (r PriceRange) String() string {
	if r.Unbounded {
		return fmt.Sprintf("[%s, inf)", r.Lower)
	}
	return fmt.Sprintf("[%s, %s]", r.Lower, r.Upper)
}
