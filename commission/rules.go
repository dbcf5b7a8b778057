package commission

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// =============================================================================
// RULE ADMINISTRATION
// =============================================================================

// RuleInput is the editable part of a rule.
type RuleInput struct {
	StudioID  StudioID
	Name      string
	Strategy  Strategy
	IsDefault bool
	IsActive  bool
}

// RuleManager creates, edits, deletes and assigns commission rules.
//
// Editing a rule never touches ledger rows: each row carries its own
// snapshot of the rule that produced it.
type RuleManager struct {
	Store    TxStore
	Logger   *zap.Logger
	Defaults SettingsDefaults
	Now      func() time.Time
}

func NewRuleManager(store TxStore, logger *zap.Logger) *RuleManager {
	return &RuleManager{Store: store, Logger: orNop(logger), Now: time.Now}
}

// Create validates and stores a new rule. A new default replaces the
// studio's previous default.
func (m *RuleManager) Create(ctx context.Context, in RuleInput) (Rule, error) {
	now := m.Now().UTC()
	rule, err := Rule{
		ID:        RuleID(uuid.NewString()),
		StudioID:  in.StudioID,
		Name:      in.Name,
		Strategy:  in.Strategy,
		IsDefault: in.IsDefault,
		IsActive:  in.IsActive,
		CreatedAt: now,
		UpdatedAt: now,
	}.Validate()
	if err != nil {
		return Rule{}, err
	}

	if err := m.Store.WithTx(ctx, func(tx Store) error { return saveRule(ctx, tx, rule) }); err != nil {
		return Rule{}, err
	}
	m.Logger.Info("commission rule created",
		zap.String("rule_id", string(rule.ID)),
		zap.String("studio_id", string(rule.StudioID)),
		zap.String("kind", string(rule.Kind())),
		zap.Bool("default", rule.IsDefault))
	return rule, nil
}

// Update replaces a rule's name, strategy and flags. The studio cannot
// change.
func (m *RuleManager) Update(ctx context.Context, id RuleID, in RuleInput) (Rule, error) {
	var updated Rule
	err := m.Store.WithTx(ctx, func(tx Store) error {
		existing, err := tx.GetRule(ctx, id)
		if err != nil {
			return err
		}
		if existing.DeletedAt != nil {
			return &NotFoundError{Kind: "rule", ID: string(id)}
		}
		if in.StudioID != "" && in.StudioID != existing.StudioID {
			return invalid("studio_id", "a rule cannot move to another studio")
		}

		rule := existing
		rule.Name = in.Name
		rule.Strategy = in.Strategy
		rule.IsDefault = in.IsDefault
		rule.IsActive = in.IsActive
		rule.UpdatedAt = m.Now().UTC()
		if rule, err = rule.Validate(); err != nil {
			return err
		}
		updated = rule
		return saveRule(ctx, tx, rule)
	})
	if err != nil {
		return Rule{}, err
	}
	m.Logger.Info("commission rule updated",
		zap.String("rule_id", string(id)),
		zap.String("kind", string(updated.Kind())))
	return updated, nil
}

// Delete soft-deletes a rule. Rules still assigned to an artist are
// rejected with ErrRuleInUse.
func (m *RuleManager) Delete(ctx context.Context, id RuleID) error {
	err := m.Store.WithTx(ctx, func(tx Store) error {
		rule, err := tx.GetRule(ctx, id)
		if err != nil {
			return err
		}
		if rule.DeletedAt != nil {
			return &NotFoundError{Kind: "rule", ID: string(id)}
		}
		n, err := tx.CountArtistRules(ctx, id)
		if err != nil {
			return fmt.Errorf("count artist assignments: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("%w (%d artists)", ErrRuleInUse, n)
		}
		now := m.Now().UTC()
		rule.DeletedAt = &now
		rule.IsDefault = false
		rule.UpdatedAt = now
		return tx.SaveRule(ctx, rule)
	})
	if err != nil {
		return err
	}
	m.Logger.Info("commission rule deleted", zap.String("rule_id", string(id)))
	return nil
}

// AssignArtist points an artist at a rule of the same studio.
func (m *RuleManager) AssignArtist(ctx context.Context, artistID ArtistID, studioID StudioID, ruleID RuleID) (ArtistRule, error) {
	if artistID == "" {
		return ArtistRule{}, invalid("artist_id", "is required")
	}
	var a ArtistRule
	err := m.Store.WithTx(ctx, func(tx Store) error {
		rule, err := tx.GetRule(ctx, ruleID)
		if err != nil {
			return err
		}
		switch {
		case rule.DeletedAt != nil:
			return &NotFoundError{Kind: "rule", ID: string(ruleID)}
		case rule.StudioID != studioID:
			return invalid("rule_id", "rule belongs to studio %s", rule.StudioID)
		case !rule.IsActive:
			return invalid("rule_id", "rule is inactive")
		}
		a = ArtistRule{ArtistID: artistID, StudioID: studioID, RuleID: ruleID, AssignedAt: m.Now().UTC()}
		return tx.SaveArtistRule(ctx, a)
	})
	if err != nil {
		return ArtistRule{}, err
	}
	m.Logger.Info("commission rule assigned",
		zap.String("artist_id", string(artistID)),
		zap.String("studio_id", string(studioID)),
		zap.String("rule_id", string(ruleID)))
	return a, nil
}

// Get returns a rule that has not been deleted.
func (m *RuleManager) Get(ctx context.Context, id RuleID) (Rule, error) {
	rule, err := m.Store.GetRule(ctx, id)
	if err != nil {
		return Rule{}, err
	}
	if rule.DeletedAt != nil {
		return Rule{}, &NotFoundError{Kind: "rule", ID: string(id)}
	}
	return rule, nil
}

func (m *RuleManager) List(ctx context.Context, studioID StudioID) ([]Rule, error) {
	return m.Store.ListRules(ctx, studioID)
}

// saveRule writes the rule, first clearing the studio's other defaults if
// this one is the default.
func saveRule(ctx context.Context, tx Store, rule Rule) error {
	if rule.IsDefault {
		others, err := tx.ListRules(ctx, rule.StudioID)
		if err != nil {
			return fmt.Errorf("list studio rules: %w", err)
		}
		for _, o := range others {
			if o.ID == rule.ID || !o.IsDefault {
				continue
			}
			o.IsDefault = false
			o.UpdatedAt = rule.UpdatedAt
			if err := tx.SaveRule(ctx, o); err != nil {
				return fmt.Errorf("clear previous default %s: %w", o.ID, err)
			}
		}
	}
	if err := tx.SaveRule(ctx, rule); err != nil {
		return fmt.Errorf("save rule: %w", err)
	}
	return nil
}

// =============================================================================
// STUDIO SETTINGS
// =============================================================================

// Settings returns a studio's settings, or defaults when none were saved.
func (m *RuleManager) Settings(ctx context.Context, studioID StudioID) (StudioSettings, error) {
	return settingsOrDefault(ctx, m.Store, m.Defaults, studioID)
}

// SaveSettings validates and stores a studio's settings.
func (m *RuleManager) SaveSettings(ctx context.Context, s StudioSettings) (StudioSettings, error) {
	if s.StudioID == "" {
		return StudioSettings{}, invalid("studio_id", "is required")
	}
	if !s.TipArtistShare.Valid() {
		return StudioSettings{}, invalid("tip_artist_share", "%s is outside 0%%..100%%", s.TipArtistShare)
	}
	if s.Schedule == "" {
		s.Schedule = ScheduleBiweekly
	}
	if _, err := ParseSchedule(string(s.Schedule)); err != nil {
		return StudioSettings{}, err
	}
	if s.ScheduleAnchor.IsZero() {
		s.ScheduleAnchor = DefaultScheduleAnchor
	}
	s.ScheduleAnchor = DateOf(s.ScheduleAnchor)
	if err := m.Store.SaveStudioSettings(ctx, s); err != nil {
		return StudioSettings{}, fmt.Errorf("save studio settings: %w", err)
	}
	m.Logger.Info("studio settings saved",
		zap.String("studio_id", string(s.StudioID)),
		zap.String("tip_artist_share", s.TipArtistShare.String()),
		zap.String("schedule", string(s.Schedule)))
	return s, nil
}
