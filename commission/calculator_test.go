package commission_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simmonsmd7/inkflow-sub000/commission"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func percentRule(bp commission.BasisPoints) commission.Rule {
	return commission.Rule{ID: "r-pct", StudioID: "studio-1", Name: "Percentage", Strategy: commission.Percentage{Rate: bp}, IsActive: true}
}

func flatRule(amount commission.Cents) commission.Rule {
	return commission.Rule{ID: "r-flat", StudioID: "studio-1", Name: "Flat", Strategy: commission.FlatFee{Amount: amount}, IsActive: true}
}

func twoTierRule() commission.Rule {
	return commission.Rule{
		ID:       "r-tier",
		StudioID: "studio-1",
		Name:     "Tiered",
		Strategy: commission.Tiered{Tiers: []commission.Tier{
			{MinRevenue: 0, MaxRevenue: commission.Bound(50000), Rate: 3000},
			{MinRevenue: 50000, Rate: 2000},
		}},
		IsActive: true,
	}
}

// =============================================================================
// EXAMPLE SCENARIOS
// =============================================================================

func TestCalculate_Percentage40(t *testing.T) {
	// GIVEN: A 40% rule and a 500.00 service
	// WHEN: Calculating
	calc := commission.Calculate(percentRule(4000), 50000)

	// THEN: Studio keeps 200.00, artist gets 300.00
	assert.Equal(t, commission.Cents(20000), calc.Commission)
	assert.Equal(t, commission.Cents(30000), calc.ArtistPayout)
	assert.Equal(t, commission.BasisPoints(4000), calc.Rate)
	assert.Equal(t, -1, calc.TierIndex)
	assert.Contains(t, calc.Trace, "50000 * 4000 / 10000 = 20000")
}

func TestCalculate_FlatFee(t *testing.T) {
	// GIVEN: A 100.00 flat fee and a 500.00 service
	calc := commission.Calculate(flatRule(10000), 50000)

	// THEN: Studio keeps the fee, artist gets the rest
	assert.Equal(t, commission.Cents(10000), calc.Commission)
	assert.Equal(t, commission.Cents(40000), calc.ArtistPayout)
	assert.False(t, calc.FeeExceedsTotal)
}

func TestCalculate_TieredUsesWholeTotal(t *testing.T) {
	// GIVEN: 30% below 500.00, 20% from 500.00, and an 800.00 service
	calc := commission.Calculate(twoTierRule(), 80000)

	// THEN: The second tier's rate applies to the whole total, not marginally
	assert.Equal(t, commission.Cents(16000), calc.Commission)
	assert.Equal(t, commission.Cents(64000), calc.ArtistPayout)
	assert.Equal(t, 1, calc.TierIndex)
	assert.Equal(t, commission.BasisPoints(2000), calc.Rate)
	assert.Contains(t, calc.Trace, "tier 2")
}

// =============================================================================
// PERCENTAGE PROPERTIES
// =============================================================================

func TestCalculate_PercentageFloorsAndReconciles(t *testing.T) {
	totals := []commission.Cents{1, 2, 3, 7, 99, 100, 101, 333, 999, 12345, 50000, 99999, 1000001}
	rates := []commission.BasisPoints{0, 1, 333, 1250, 3333, 4000, 5000, 6667, 9999, 10000}

	for _, total := range totals {
		for _, rate := range rates {
			calc := commission.Calculate(percentRule(rate), total)

			want := commission.Cents(int64(total) * int64(rate) / 10000)
			assert.Equal(t, want, calc.Commission, "total=%d rate=%d", total, rate)
			assert.Equal(t, total, calc.Commission+calc.ArtistPayout, "total=%d rate=%d", total, rate)
			assert.GreaterOrEqual(t, int64(calc.ArtistPayout), int64(0))
		}
	}
}

func TestCalculate_PercentageRoundsInArtistFavour(t *testing.T) {
	// GIVEN: 33.33% of 1.00 is 33.33 cents
	calc := commission.Calculate(percentRule(3333), 100)

	// THEN: The fraction goes to the artist
	assert.Equal(t, commission.Cents(33), calc.Commission)
	assert.Equal(t, commission.Cents(67), calc.ArtistPayout)
}

// =============================================================================
// DEGRADED PATHS
// =============================================================================

func TestCalculate_FlatFeeExceedingTotalIsFlagged(t *testing.T) {
	// GIVEN: A 100.00 fee on a 60.00 service
	calc := commission.Calculate(flatRule(10000), 6000)

	// THEN: Not clamped; payout goes negative and the trace says why
	assert.Equal(t, commission.Cents(10000), calc.Commission)
	assert.Equal(t, commission.Cents(-4000), calc.ArtistPayout)
	assert.True(t, calc.FeeExceedsTotal)
	assert.Contains(t, calc.Trace, "exceeds service total by 4000")
}

func TestCalculate_TierMissDegradesToZero(t *testing.T) {
	// GIVEN: A tier set that skipped validation and leaves a gap
	rule := commission.Rule{Name: "broken", Strategy: commission.Tiered{Tiers: []commission.Tier{
		{MinRevenue: 0, MaxRevenue: commission.Bound(50000), Rate: 3000},
		{MinRevenue: 60000, Rate: 2000},
	}}}

	// WHEN: The total falls in the gap
	calc := commission.Calculate(rule, 55000)

	// THEN: Commission is zero and the trace records it
	assert.True(t, calc.NoTier)
	assert.Equal(t, commission.Cents(0), calc.Commission)
	assert.Equal(t, commission.Cents(55000), calc.ArtistPayout)
	assert.Contains(t, calc.Trace, "no applicable tier")
}

func TestCalculate_ExactlyOneTierMatches(t *testing.T) {
	rule := twoTierRule()
	cases := []struct {
		total commission.Cents
		tier  int
	}{
		{0, 0},
		{1, 0},
		{49999, 0},
		{50000, 1},
		{50001, 1},
		{10_000_000, 1},
	}
	for _, tc := range cases {
		calc := commission.Calculate(rule, tc.total)
		require.False(t, calc.NoTier, "total=%d", tc.total)
		assert.Equal(t, tc.tier, calc.TierIndex, "total=%d", tc.total)
		assert.Equal(t, tc.total, calc.Commission+calc.ArtistPayout)
	}
}

// =============================================================================
// DESCRIPTIONS
// =============================================================================

func TestDescribe_StatesBothSides(t *testing.T) {
	assert.Equal(t, "Studio keeps 40.00%, artist receives 60.00%", commission.Describe(commission.Percentage{Rate: 4000}))
	assert.Contains(t, commission.Describe(commission.FlatFee{Amount: 2500}), "flat 25.00")
	assert.Contains(t, commission.Describe(twoTierRule().Strategy), "[500.00, ∞) @ 20.00%")
}
