/*
Package commission provides the commission calculation and pay-period
settlement engine for a tattoo/piercing studio.

PURPOSE:
  Turns a completed booking into exactly one ledger row (EarnedCommission)
  splitting the service total between studio and artist, and aggregates
  ledger rows into pay periods that are closed and paid out.

KEY CONCEPTS IN THIS FILE (types.go):
  - Cents: integer minor units, the only money representation
  - BasisPoints: integer percentages (6000 = 60.00%)
  - EarnedCommission: the immutable ledger row
  - PayPeriod: a date-bounded container of ledger rows with derived totals

DESIGN PRINCIPLES:
  1. Integer arithmetic: no floats anywhere in the money path
  2. Snapshot-on-write: ledger rows copy the rule they were computed with
  3. Derived totals: period totals are always recomputed from rows
  4. One row per booking: the store enforces booking_id uniqueness

SEE ALSO:
  - rule.go: Rule and the Percentage/FlatFee/Tiered strategies
  - calculator.go: Commission calculation
  - recorder.go: Ledger recorder
  - period.go: Pay period state machine
*/
package commission

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type StudioID string
type ArtistID string
type BookingID string
type RuleID string
type CommissionID string
type PeriodID string

// NewCommissionID returns a lexically time-ordered ID. Listing pages use it
// as the keyset cursor.
func NewCommissionID() CommissionID { return CommissionID(ulid.Make().String()) }

// NewPeriodID returns a lexically time-ordered period ID.
func NewPeriodID() PeriodID { return PeriodID(ulid.Make().String()) }

// =============================================================================
// LEDGER ROW
// =============================================================================

// RuleSnapshot freezes the parts of a rule that produced a ledger row.
// Later edits or deletes of the rule never change it.
type RuleSnapshot struct {
	RuleID   RuleID
	RuleName string
	Kind     Kind

	// Rate actually applied: the percentage rate, or the matched tier's rate.
	// Zero for flat fees.
	Rate BasisPoints

	// FlatFee is set for flat-fee rules only.
	FlatFee Cents

	// TierIndex is the matched tier (0-based) for tiered rules, -1 otherwise.
	TierIndex int
}

// EarnedCommission is the ledger row for one completed booking.
//
// INVARIANTS:
//   - Exactly one row per BookingID, ever.
//   - StudioCommission + ArtistPayout == ServiceTotal.
//   - TipArtistShare + TipStudioShare == Tips.
//   - Only PayPeriodID is ever mutated, and only from "" to a period.
type EarnedCommission struct {
	ID        CommissionID
	BookingID BookingID
	ArtistID  ArtistID
	StudioID  StudioID

	Snapshot RuleSnapshot

	ServiceTotal     Cents
	StudioCommission Cents
	ArtistPayout     Cents

	Tips             Cents
	TipArtistShare   Cents
	TipStudioShare   Cents
	TipPaymentMethod string

	CalculationTrace string
	CompletedAt      time.Time
	CreatedAt        time.Time

	// PayPeriodID is empty until the row is assigned to a period.
	PayPeriodID PeriodID
}

// IsAssigned reports whether the row belongs to a pay period.
func (c EarnedCommission) IsAssigned() bool { return c.PayPeriodID != "" }

// =============================================================================
// PAY PERIOD
// =============================================================================

// PeriodStatus is the pay period lifecycle state.
type PeriodStatus string

const (
	PeriodOpen   PeriodStatus = "open"
	PeriodClosed PeriodStatus = "closed"
	PeriodPaid   PeriodStatus = "paid"
)

// Totals aggregates a set of ledger rows.
type Totals struct {
	ServiceTotal     Cents
	StudioCommission Cents
	ArtistPayout     Cents
	Tips             Cents
	TipArtistShare   Cents
	TipStudioShare   Cents
	Count            int
}

// Add folds one ledger row into the totals.
func (t Totals) Add(c EarnedCommission) Totals {
	t.ServiceTotal += c.ServiceTotal
	t.StudioCommission += c.StudioCommission
	t.ArtistPayout += c.ArtistPayout
	t.Tips += c.Tips
	t.TipArtistShare += c.TipArtistShare
	t.TipStudioShare += c.TipStudioShare
	t.Count++
	return t
}

// SumTotals recomputes totals from scratch.
func SumTotals(rows []EarnedCommission) Totals {
	var t Totals
	for _, c := range rows {
		t = t.Add(c)
	}
	return t
}

// PayPeriod groups ledger rows toward one payout.
// StartDate and EndDate are calendar days, both inclusive, in UTC.
type PayPeriod struct {
	ID        PeriodID
	StudioID  StudioID
	StartDate time.Time
	EndDate   time.Time
	Status    PeriodStatus
	Totals    Totals

	CreatedAt       time.Time
	ClosedAt        *time.Time
	PaidAt          *time.Time
	PayoutReference string
}

// Covers reports whether t falls on a day inside the period.
func (p PayPeriod) Covers(t time.Time) bool {
	d := DateOf(t)
	return !d.Before(p.StartDate) && !d.After(p.EndDate)
}

// ArtistTotals is one artist's share of a period.
type ArtistTotals struct {
	ArtistID ArtistID
	Totals   Totals
}

// =============================================================================
// STUDIO SETTINGS
// =============================================================================

// StudioSettings are the per-studio knobs the engine reads.
type StudioSettings struct {
	StudioID StudioID

	// TipArtistShare is the artist's share of tips.
	TipArtistShare BasisPoints

	Schedule       PaySchedule
	ScheduleAnchor time.Time
}

// DefaultStudioSettings is used when a studio has saved nothing.
func DefaultStudioSettings(studioID StudioID) StudioSettings {
	return StudioSettings{
		StudioID:       studioID,
		TipArtistShare: FullShare,
		Schedule:       ScheduleBiweekly,
		ScheduleAnchor: DefaultScheduleAnchor,
	}
}

// DateOf truncates t to its UTC calendar day.
func DateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
