/*
rule.go - Commission rules and their calculation strategies

PURPOSE:
  A Rule is a studio-configured policy describing how a booking's service
  total is split between the studio and the artist. The split itself is a
  Strategy, a closed sum type with exactly three variants:

    Percentage{Rate}   studio keeps Rate of the total
    FlatFee{Amount}    studio keeps a fixed amount
    Tiered{Tiers}      studio keeps the matched bracket's rate of the WHOLE total

  Strategy has unexported methods, so no other package can add a variant and
  every variant must implement the calculation. There is no "unknown kind".

OWNERSHIP OF THE RATE:
  Every rate in this package is the STUDIO's share. The artist receives the
  remainder. Describe() renders both sides so descriptions cannot drift from
  the arithmetic.

SEE ALSO:
  - tiers.go: Tier validation
  - calculator.go: Calculate()
  - rules.go: Rule administration (create/update/delete/assign)
*/
package commission

import (
	"fmt"
	"strings"
	"time"
)

// Kind names a strategy variant. It is what ledger rows snapshot and what
// storage persists.
type Kind string

const (
	KindPercentage Kind = "percentage"
	KindFlatFee    Kind = "flat_fee"
	KindTiered     Kind = "tiered"
)

// Strategy is the sealed sum type of calculation strategies.
type Strategy interface {
	Kind() Kind

	calculate(total Cents) Calculation
	normalize() (Strategy, error)
}

// Percentage keeps Rate of the service total for the studio.
type Percentage struct {
	Rate BasisPoints
}

// FlatFee keeps a fixed Amount for the studio regardless of the total.
type FlatFee struct {
	Amount Cents
}

// Tiered selects one bracket by service total and applies its rate to the
// whole total. It is a bracket lookup, not a marginal split.
type Tiered struct {
	Tiers []Tier
}

// Tier is one revenue bracket: [MinRevenue, MaxRevenue).
// A nil MaxRevenue is unbounded and only allowed on the last tier.
type Tier struct {
	MinRevenue Cents
	MaxRevenue *Cents
	Rate       BasisPoints
}

func (Percentage) Kind() Kind { return KindPercentage }
func (FlatFee) Kind() Kind    { return KindFlatFee }
func (Tiered) Kind() Kind     { return KindTiered }

// Contains reports whether total falls inside the bracket.
func (t Tier) Contains(total Cents) bool {
	return t.MinRevenue <= total && (t.MaxRevenue == nil || total < *t.MaxRevenue)
}

func (t Tier) String() string {
	upper := "∞"
	if t.MaxRevenue != nil {
		upper = t.MaxRevenue.String()
	}
	return fmt.Sprintf("[%s, %s) @ %s", t.MinRevenue.String(), upper, t.Rate)
}

// Bound is a helper for building bounded tiers.
func Bound(c Cents) *Cents { return &c }

// =============================================================================
// RULE
// =============================================================================

// Rule is a commission rule owned by a studio.
type Rule struct {
	ID        RuleID
	StudioID  StudioID
	Name      string
	Strategy  Strategy
	IsDefault bool
	IsActive  bool

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Kind returns the strategy kind, or "" for a rule without a strategy.
func (r Rule) Kind() Kind {
	if r.Strategy == nil {
		return ""
	}
	return r.Strategy.Kind()
}

// Usable reports whether the rule may be applied to new bookings.
func (r Rule) Usable() bool { return r.IsActive && r.DeletedAt == nil && r.Strategy != nil }

// Validate checks the rule's shape and returns it with tiers in canonical
// order.
func (r Rule) Validate() (Rule, error) {
	if strings.TrimSpace(r.Name) == "" {
		return r, invalid("name", "is required")
	}
	if r.StudioID == "" {
		return r, invalid("studio_id", "is required")
	}
	if r.Strategy == nil {
		return r, invalid("kind", "is required")
	}
	s, err := r.Strategy.normalize()
	if err != nil {
		return r, err
	}
	r.Strategy = s
	return r, nil
}

func (p Percentage) normalize() (Strategy, error) {
	if !p.Rate.Valid() {
		return nil, invalid("percentage", "%s is outside 0%%..100%%", p.Rate)
	}
	return p, nil
}

func (f FlatFee) normalize() (Strategy, error) {
	if f.Amount < 0 {
		return nil, invalid("flat_fee_amount_cents", "must not be negative")
	}
	return f, nil
}

func (t Tiered) normalize() (Strategy, error) {
	sorted, err := ValidateTiers(t.Tiers)
	if err != nil {
		return nil, err
	}
	return Tiered{Tiers: sorted}, nil
}

// Describe renders a human description. Rates are the studio's share.
func Describe(s Strategy) string {
	switch v := s.(type) {
	case Percentage:
		return fmt.Sprintf("Studio keeps %s, artist receives %s", v.Rate, FullShare-v.Rate)
	case FlatFee:
		return fmt.Sprintf("Studio keeps a flat %s per booking, artist receives the rest", v.Amount)
	case Tiered:
		parts := make([]string, len(v.Tiers))
		for i, t := range v.Tiers {
			parts[i] = t.String()
		}
		return "Studio keeps the matched bracket's rate of the whole total: " + strings.Join(parts, "; ")
	}
	return ""
}
