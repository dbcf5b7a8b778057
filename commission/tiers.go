package commission

import (
	"sort"
)

// ValidateTiers checks a tier set and returns it sorted by MinRevenue.
//
// A valid set starts at 0, every tier starts exactly where the previous one
// ends, and only the last tier is unbounded (and it must be). The input slice
// is never modified.
func ValidateTiers(tiers []Tier) ([]Tier, error) {
	if len(tiers) == 0 {
		return nil, invalid("tiers", "at least one tier is required")
	}

	sorted := make([]Tier, len(tiers))
	for i, t := range tiers {
		if t.MaxRevenue != nil {
			t.MaxRevenue = Bound(*t.MaxRevenue)
		}
		sorted[i] = t
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinRevenue < sorted[j].MinRevenue
	})

	if sorted[0].MinRevenue != 0 {
		return nil, invalid("tiers", "first tier must start at 0, starts at %d", sorted[0].MinRevenue)
	}

	last := len(sorted) - 1
	for i, t := range sorted {
		if !t.Rate.Valid() {
			return nil, invalid("tiers", "tier %d rate %s is outside 0%%..100%%", i, t.Rate)
		}
		if t.MaxRevenue == nil {
			if i != last {
				return nil, invalid("tiers", "tier %d is unbounded but is not the last tier", i)
			}
		} else if *t.MaxRevenue <= t.MinRevenue {
			return nil, invalid("tiers", "tier %d max %d must be greater than min %d", i, *t.MaxRevenue, t.MinRevenue)
		}
		if i == 0 {
			continue
		}
		prevMax := *sorted[i-1].MaxRevenue
		switch {
		case t.MinRevenue > prevMax:
			return nil, invalid("tiers", "gap between %d and %d", prevMax, t.MinRevenue)
		case t.MinRevenue < prevMax:
			return nil, invalid("tiers", "tier %d starting at %d overlaps previous tier ending at %d", i, t.MinRevenue, prevMax)
		}
	}

	if sorted[last].MaxRevenue != nil {
		return nil, invalid("tiers", "last tier must be unbounded, ends at %d", *sorted[last].MaxRevenue)
	}
	return sorted, nil
}
