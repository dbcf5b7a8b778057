package commission

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CENTS - Integer minor units (single currency)
// =============================================================================

type Cents int64

// Decimal returns the amount in major units, e.g. 12345 -> 123.45.
func (c Cents) Decimal() decimal.Decimal { return decimal.New(int64(c), -2) }

// String formats the amount in major units with two decimals.
func (c Cents) String() string { return c.Decimal().StringFixed(2) }

// =============================================================================
// BASIS POINTS - Integer percentages
// =============================================================================

// BasisPoints is a percentage in hundredths of a percent: 6000 = 60.00%.
type BasisPoints int64

const (
	// FullShare is 100%.
	FullShare BasisPoints = 10000
	basisPointsPerPercent = 100
)

// Valid reports whether the value lies in 0%..100%.
func (b BasisPoints) Valid() bool { return b >= 0 && b <= FullShare }

// Percent returns the value as a decimal percentage, e.g. 6000 -> 60.
func (b BasisPoints) Percent() decimal.Decimal { return decimal.New(int64(b), -2) }

func (b BasisPoints) String() string { return b.Percent().StringFixed(2) + "%" }

// Of applies the rate to an amount, rounding toward zero.
// For the non-negative amounts the engine handles this is floor.
func (b BasisPoints) Of(amount Cents) Cents {
	return Cents(int64(amount) * int64(b) / int64(FullShare))
}

// PercentToBasisPoints converts a decimal percentage (60.0 = 60%) into
// basis points. Values finer than 0.01% are rejected rather than rounded.
func PercentToBasisPoints(pct decimal.Decimal) (BasisPoints, error) {
	bp := pct.Mul(decimal.NewFromInt(basisPointsPerPercent))
	if !bp.Equal(bp.Truncate(0)) {
		return 0, fmt.Errorf("percentage %s has more than two decimal places", pct.String())
	}
	return BasisPoints(bp.IntPart()), nil
}

// ParsePercent parses a decimal percentage string such as "60" or "12.5".
func ParsePercent(s string) (BasisPoints, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid percentage %q: %w", s, err)
	}
	return PercentToBasisPoints(d)
}
