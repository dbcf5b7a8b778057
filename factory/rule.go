/*
Package factory provides JSON to Go commission rule conversion.

PURPOSE:
  Converts JSON rule definitions (as sent by the admin UI or kept in config
  files) into commission.RuleInput, and renders stored rules back to JSON.
  Percentages are decimal on the wire ("60" or 60.5 means 60.5%) and basis
  points inside the engine.

JSON SCHEMA:
  {
    "name": "Standard split",
    "kind": "tiered",
    "is_default": true,
    "tiers": [
      {"min_revenue_cents": 0,     "max_revenue_cents": 50000, "percentage": 30},
      {"min_revenue_cents": 50000, "max_revenue_cents": null,  "percentage": 20}
    ]
  }

  percentage kind: {"kind": "percentage", "percentage": 40}
  flat fee kind:   {"kind": "flat_fee", "flat_fee_amount_cents": 2500}

KEY FEATURES:
  - Kind-specific fields are required for their kind and ignored otherwise
  - Percentages finer than 0.01% are rejected, never rounded
  - is_active defaults to true
  - Shape errors are *commission.ValidationError; tier-set rules are left to
    commission.ValidateTiers when the rule is saved

SEE ALSO:
  - commission/rule.go: Rule and Strategy
  - commission/rules.go: RuleManager
*/
package factory

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/simmonsmd7/inkflow-sub000/commission"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RuleJSON is the JSON representation of a rule.
type RuleJSON struct {
	ID          string `json:"id,omitempty"`
	StudioID    string `json:"studio_id,omitempty"`
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Description string `json:"description,omitempty"`

	Percentage         *decimal.Decimal `json:"percentage,omitempty"`
	FlatFeeAmountCents *int64           `json:"flat_fee_amount_cents,omitempty"`
	Tiers              []TierJSON       `json:"tiers,omitempty"`

	IsDefault bool  `json:"is_default"`
	IsActive  *bool `json:"is_active,omitempty"`

	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// TierJSON is one revenue bracket. A null max is unbounded.
type TierJSON struct {
	MinRevenueCents int64           `json:"min_revenue_cents"`
	MaxRevenueCents *int64          `json:"max_revenue_cents"`
	Percentage      decimal.Decimal `json:"percentage"`
}

// =============================================================================
// RULE FACTORY
// =============================================================================

// RuleFactory converts JSON rules to Go structs.
type RuleFactory struct{}

// NewRuleFactory creates a new rule factory.
func NewRuleFactory() *RuleFactory {
	return &RuleFactory{}
}

// ParseRule parses a JSON string into a RuleInput for the given studio.
func (f *RuleFactory) ParseRule(studioID commission.StudioID, jsonStr string) (commission.RuleInput, error) {
	var rj RuleJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return commission.RuleInput{}, fmt.Errorf("failed to parse rule JSON: %w", err)
	}
	return f.FromJSON(studioID, rj)
}

// FromJSON converts RuleJSON into a RuleInput.
func (f *RuleFactory) FromJSON(studioID commission.StudioID, rj RuleJSON) (commission.RuleInput, error) {
	strategy, err := f.Strategy(rj)
	if err != nil {
		return commission.RuleInput{}, err
	}
	in := commission.RuleInput{
		StudioID:  studioID,
		Name:      strings.TrimSpace(rj.Name),
		Strategy:  strategy,
		IsDefault: rj.IsDefault,
		IsActive:  true,
	}
	if rj.IsActive != nil {
		in.IsActive = *rj.IsActive
	}
	return in, nil
}

// Strategy builds the calculation strategy named by rj.Kind.
func (f *RuleFactory) Strategy(rj RuleJSON) (commission.Strategy, error) {
	switch commission.Kind(strings.ToLower(strings.TrimSpace(rj.Kind))) {
	case commission.KindPercentage:
		if rj.Percentage == nil {
			return nil, invalid("percentage", "is required for percentage rules")
		}
		rate, err := parsePercent("percentage", *rj.Percentage)
		if err != nil {
			return nil, err
		}
		return commission.Percentage{Rate: rate}, nil

	case commission.KindFlatFee:
		if rj.FlatFeeAmountCents == nil {
			return nil, invalid("flat_fee_amount_cents", "is required for flat fee rules")
		}
		return commission.FlatFee{Amount: commission.Cents(*rj.FlatFeeAmountCents)}, nil

	case commission.KindTiered:
		if len(rj.Tiers) == 0 {
			return nil, invalid("tiers", "at least one tier is required")
		}
		tiers := make([]commission.Tier, len(rj.Tiers))
		for i, tj := range rj.Tiers {
			rate, err := parsePercent(fmt.Sprintf("tiers[%d].percentage", i), tj.Percentage)
			if err != nil {
				return nil, err
			}
			tiers[i] = commission.Tier{MinRevenue: commission.Cents(tj.MinRevenueCents), Rate: rate}
			if tj.MaxRevenueCents != nil {
				tiers[i].MaxRevenue = commission.Bound(commission.Cents(*tj.MaxRevenueCents))
			}
		}
		return commission.Tiered{Tiers: tiers}, nil

	case "":
		return nil, invalid("kind", "is required")
	}
	return nil, invalid("kind", "unknown kind %q (want percentage, flat_fee or tiered)", rj.Kind)
}

// ToJSON renders a stored rule.
func (f *RuleFactory) ToJSON(rule commission.Rule) RuleJSON {
	active := rule.IsActive
	created, updated := rule.CreatedAt, rule.UpdatedAt
	rj := RuleJSON{
		ID:        string(rule.ID),
		StudioID:  string(rule.StudioID),
		Name:      rule.Name,
		Kind:      string(rule.Kind()),
		IsDefault: rule.IsDefault,
		IsActive:  &active,
		CreatedAt: &created,
		UpdatedAt: &updated,
	}
	if rule.Strategy != nil {
		rj.Description = commission.Describe(rule.Strategy)
	}
	switch v := rule.Strategy.(type) {
	case commission.Percentage:
		pct := v.Rate.Percent()
		rj.Percentage = &pct
	case commission.FlatFee:
		amount := int64(v.Amount)
		rj.FlatFeeAmountCents = &amount
	case commission.Tiered:
		rj.Tiers = make([]TierJSON, len(v.Tiers))
		for i, t := range v.Tiers {
			tj := TierJSON{MinRevenueCents: int64(t.MinRevenue), Percentage: t.Rate.Percent()}
			if t.MaxRevenue != nil {
				upper := int64(*t.MaxRevenue)
				tj.MaxRevenueCents = &upper
			}
			rj.Tiers[i] = tj
		}
	}
	return rj
}

func parsePercent(field string, pct decimal.Decimal) (commission.BasisPoints, error) {
	bp, err := commission.PercentToBasisPoints(pct)
	if err != nil {
		return 0, &commission.ValidationError{Field: field, Reason: err.Error()}
	}
	return bp, nil
}

func invalid(field, format string, args ...any) error {
	return &commission.ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
