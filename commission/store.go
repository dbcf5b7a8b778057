/*
store.go - Persistence interfaces for rules, ledger rows and pay periods

PURPOSE:
  Defines the boundary between the engine and the database. Repositories
  return plain values; the engine never navigates lazy relationships.

KEY INTERFACES:
  RuleStore:     Commission rules and artist->rule assignments
  SettingsStore: Per-studio tip share and pay schedule
  LedgerStore:   EarnedCommission rows (insert-once, period assignment)
  PeriodStore:   Pay periods
  TxStore:       All of the above plus WithTx for atomic multi-row work

LEDGER CONTRACT:
  - InsertCommission fails with ErrDuplicateBooking if a row for the
    booking exists. This uniqueness is the ONLY guard against duplicate
    completion events.
  - SetCommissionPeriod is the only mutation of a ledger row.
  - There is no delete.

TRANSACTIONS:
  WithTx runs fn against a transactional view. fn returning an error rolls
  everything back. SQLite opens the transaction with BEGIN IMMEDIATE, so a
  close cannot aggregate from a snapshot that misses a concurrent assign.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - commission/store/memory.go: In-memory for tests and dev
*/
package commission

import (
	"context"
	"time"
)

// =============================================================================
// RULES
// =============================================================================

// ArtistRule assigns a specific rule to an artist within a studio.
type ArtistRule struct {
	ArtistID   ArtistID
	StudioID   StudioID
	RuleID     RuleID
	AssignedAt time.Time
}

type RuleStore interface {
	// SaveRule inserts or replaces a rule and its tiers.
	SaveRule(ctx context.Context, rule Rule) error

	// GetRule returns the rule, including soft-deleted ones.
	// Returns *NotFoundError if it never existed.
	GetRule(ctx context.Context, id RuleID) (Rule, error)

	// ListRules returns the studio's rules that are not deleted.
	ListRules(ctx context.Context, studioID StudioID) ([]Rule, error)

	// DefaultRule returns the studio's active, non-deleted default rule,
	// or nil if there is none.
	DefaultRule(ctx context.Context, studioID StudioID) (*Rule, error)

	// SaveArtistRule inserts or replaces the artist's assignment in a studio.
	SaveArtistRule(ctx context.Context, a ArtistRule) error

	// GetArtistRule returns the artist's assignment in a studio, or nil.
	GetArtistRule(ctx context.Context, artistID ArtistID, studioID StudioID) (*ArtistRule, error)

	// CountArtistRules counts assignments referencing a rule.
	CountArtistRules(ctx context.Context, ruleID RuleID) (int, error)
}

// =============================================================================
// SETTINGS
// =============================================================================

type SettingsStore interface {
	// GetStudioSettings returns saved settings, or nil if none were saved.
	GetStudioSettings(ctx context.Context, studioID StudioID) (*StudioSettings, error)
	SaveStudioSettings(ctx context.Context, s StudioSettings) error
	ListStudioSettings(ctx context.Context) ([]StudioSettings, error)
}

// =============================================================================
// LEDGER
// =============================================================================

// CommissionFilter selects ledger rows for reporting.
type CommissionFilter struct {
	StudioID StudioID
	ArtistID ArtistID
	PeriodID PeriodID

	// CompletedFrom/CompletedTo bound CompletedAt, both inclusive.
	CompletedFrom *time.Time
	CompletedTo   *time.Time

	// Paid: true = assigned to a paid period; false = anything else.
	Paid *bool

	// Unassigned restricts to rows without a period.
	Unassigned bool

	// AfterID is the keyset cursor; rows are ordered by ID ascending.
	AfterID CommissionID
	Limit   int
}

type LedgerStore interface {
	// InsertCommission writes a new row. ErrDuplicateBooking if the
	// booking already has one.
	InsertCommission(ctx context.Context, c EarnedCommission) error

	GetCommission(ctx context.Context, id CommissionID) (EarnedCommission, error)

	// GetCommissionByBooking returns the booking's row, or nil.
	GetCommissionByBooking(ctx context.Context, bookingID BookingID) (*EarnedCommission, error)

	// SetCommissionPeriod points a row at a period.
	SetCommissionPeriod(ctx context.Context, id CommissionID, periodID PeriodID) error

	// CommissionsForPeriod returns every row assigned to the period.
	CommissionsForPeriod(ctx context.Context, periodID PeriodID) ([]EarnedCommission, error)

	ListCommissions(ctx context.Context, f CommissionFilter) ([]EarnedCommission, error)
}

// =============================================================================
// PERIODS
// =============================================================================

// PeriodFilter selects pay periods for reporting.
type PeriodFilter struct {
	StudioID StudioID
	Status   PeriodStatus

	// Covering restricts to periods whose date range contains this day.
	Covering *time.Time

	AfterID PeriodID
	Limit   int
}

type PeriodStore interface {
	InsertPeriod(ctx context.Context, p PayPeriod) error
	GetPeriod(ctx context.Context, id PeriodID) (PayPeriod, error)

	// UpdatePeriod replaces status, totals and stamps.
	UpdatePeriod(ctx context.Context, p PayPeriod) error

	ListPeriods(ctx context.Context, f PeriodFilter) ([]PayPeriod, error)
}

// =============================================================================
// COMBINED
// =============================================================================

type Store interface {
	RuleStore
	SettingsStore
	LedgerStore
	PeriodStore
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// SettingsDefaults supplies settings for studios that saved none.
// A nil SettingsDefaults means DefaultStudioSettings.
type SettingsDefaults func(StudioID) StudioSettings

// settingsOrDefault loads a studio's settings, falling back to defaults.
func settingsOrDefault(ctx context.Context, s SettingsStore, defaults SettingsDefaults, studioID StudioID) (StudioSettings, error) {
	saved, err := s.GetStudioSettings(ctx, studioID)
	if err != nil {
		return StudioSettings{}, err
	}
	if saved != nil {
		return *saved, nil
	}
	if defaults == nil {
		return DefaultStudioSettings(studioID), nil
	}
	d := defaults(studioID)
	d.StudioID = studioID
	return d, nil
}
