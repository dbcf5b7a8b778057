package commission

import (
	"context"
	"fmt"
)

// Resolver picks the commission rule that applies to an artist's booking.
//
// Resolution order:
//  1. The artist's assigned rule, if it still exists, is active, is not
//     deleted, and belongs to the booking's studio.
//  2. The studio's active default rule.
//  3. Otherwise *NoRuleError.
//
// The resolver only reads.
type Resolver struct {
	Rules RuleStore
}

// NewResolver creates a resolver over a rule store.
func NewResolver(rules RuleStore) *Resolver {
	return &Resolver{Rules: rules}
}

// Resolve returns the applicable rule.
func (r *Resolver) Resolve(ctx context.Context, artistID ArtistID, studioID StudioID) (Rule, error) {
	assigned, err := r.Rules.GetArtistRule(ctx, artistID, studioID)
	if err != nil {
		return Rule{}, fmt.Errorf("load artist rule: %w", err)
	}
	if assigned != nil {
		rule, err := r.Rules.GetRule(ctx, assigned.RuleID)
		switch {
		case err == nil:
			if rule.Usable() && rule.StudioID == studioID {
				return rule, nil
			}
		case !IsNotFound(err):
			return Rule{}, fmt.Errorf("load assigned rule %s: %w", assigned.RuleID, err)
		}
	}

	def, err := r.Rules.DefaultRule(ctx, studioID)
	if err != nil {
		return Rule{}, fmt.Errorf("load default rule: %w", err)
	}
	if def != nil && def.Usable() {
		return *def, nil
	}
	return Rule{}, &NoRuleError{ArtistID: artistID, StudioID: studioID}
}
