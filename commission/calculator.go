/*
calculator.go - Pure commission calculation

PURPOSE:
  Calculate(rule, serviceTotal) -> studio commission, artist payout, and a
  human-readable trace of the exact arithmetic for audit.

ALGORITHM BY STRATEGY:
  Percentage: commission = total * rate / 10000          (floor)
  FlatFee:    commission = amount                        (independent of total)
  Tiered:     pick the ONE tier with min <= total < max (or unbounded max);
              commission = total * tier.rate / 10000     (whole total, floor)

  artist payout = total - commission, for every strategy.

DEGRADED PATH:
  A tier set that slipped past validation may have no matching tier. That is
  not an error: the booking still completes with commission 0 and the trace
  says "no applicable tier" so it can be found and reviewed.

  A flat fee larger than the total yields a negative artist payout. It is
  kept as-is and flagged in the trace.

PURITY:
  No I/O, no clock, no logging. Same inputs, same outputs.
*/
package commission

import "fmt"

// Calculation is the result of applying a rule to a service total.
type Calculation struct {
	Commission   Cents
	ArtistPayout Cents

	// Rate applied (0 for flat fees and tier misses).
	Rate BasisPoints

	// TierIndex is the matched tier for tiered rules, -1 otherwise.
	TierIndex int

	// NoTier is set when a tiered rule matched no bracket.
	NoTier bool

	// FeeExceedsTotal is set when a flat fee is larger than the total.
	FeeExceedsTotal bool

	Trace string
}

// Calculate applies the rule's strategy to serviceTotal.
func Calculate(rule Rule, serviceTotal Cents) Calculation {
	return rule.Strategy.calculate(serviceTotal)
}

func (p Percentage) calculate(total Cents) Calculation {
	commission := p.Rate.Of(total)
	return Calculation{
		Commission:   commission,
		ArtistPayout: total - commission,
		Rate:         p.Rate,
		TierIndex:    -1,
		Trace: fmt.Sprintf("percentage @ %s: %d * %d / 10000 = %d; %s",
			p.Rate, total, p.Rate, commission, payoutTrace(total, commission)),
	}
}

func (f FlatFee) calculate(total Cents) Calculation {
	c := Calculation{
		Commission:      f.Amount,
		ArtistPayout:    total - f.Amount,
		TierIndex:       -1,
		FeeExceedsTotal: f.Amount > total,
	}
	c.Trace = fmt.Sprintf("flat fee: %d; %s", f.Amount, payoutTrace(total, f.Amount))
	if c.FeeExceedsTotal {
		c.Trace += fmt.Sprintf(" (flat fee exceeds service total by %d)", f.Amount-total)
	}
	return c
}

func (t Tiered) calculate(total Cents) Calculation {
	for i, tier := range t.Tiers {
		if !tier.Contains(total) {
			continue
		}
		commission := tier.Rate.Of(total)
		return Calculation{
			Commission:   commission,
			ArtistPayout: total - commission,
			Rate:         tier.Rate,
			TierIndex:    i,
			Trace: fmt.Sprintf("tiered: tier %d %s matched %d: %d * %d / 10000 = %d; %s",
				i+1, tier, total, total, tier.Rate, commission, payoutTrace(total, commission)),
		}
	}
	return Calculation{
		Commission:   0,
		ArtistPayout: total,
		TierIndex:    -1,
		NoTier:       true,
		Trace: fmt.Sprintf("tiered: no applicable tier for %d among %d tiers; commission 0; %s",
			total, len(t.Tiers), payoutTrace(total, 0)),
	}
}

func payoutTrace(total, commission Cents) string {
	return fmt.Sprintf("artist payout %d - %d = %d", total, commission, total-commission)
}
