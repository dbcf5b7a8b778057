/*
period.go - Pay period manager

PURPOSE:
  Groups ledger rows into pay periods and drives each period through its
  one-way lifecycle:

    Open ──Close──► Closed ──MarkPaid──► Paid
      ▲
      └── Assign (only while Open)

TOTALS:
  A period's totals are NEVER incremented. Every Assign and Close recomputes
  them from scratch over the rows pointing at the period, inside the same
  transaction that changed the assignment. Once Closed they are frozen.

ASSIGNMENT RULES:
  - The period must be Open.
  - Each commission must exist and belong to the period's studio.
  - A commission already in THIS period is a no-op; one in ANY OTHER period
    is a conflict. A commission never moves between periods.
  - The batch is all-or-nothing.

IMPLICIT PERIODS (Settle):
  Unassigned rows are swept into the Open period covering their completion
  day, or into a new period cut by the studio's pay schedule. Rows whose
  covering period is already Closed or Paid are skipped and reported.

SEE ALSO:
  - schedule.go: PaySchedule.PeriodFor
  - store.go: TxStore.WithTx
*/
package commission

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// PeriodManager runs pay period operations.
type PeriodManager struct {
	Store    TxStore
	Logger   *zap.Logger
	Defaults SettingsDefaults
	Now      func() time.Time
}

// NewPeriodManager creates a period manager.
func NewPeriodManager(store TxStore, logger *zap.Logger) *PeriodManager {
	return &PeriodManager{Store: store, Logger: orNop(logger), Now: time.Now}
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Create opens a new period for the studio covering [start, end].
// Overlap with existing periods is not checked.
func (m *PeriodManager) Create(ctx context.Context, studioID StudioID, start, end time.Time) (PayPeriod, error) {
	if studioID == "" {
		return PayPeriod{}, invalid("studio_id", "is required")
	}
	if start.IsZero() || end.IsZero() {
		return PayPeriod{}, invalid("start_date", "start and end dates are required")
	}
	start, end = DateOf(start), DateOf(end)
	if end.Before(start) {
		return PayPeriod{}, invalid("end_date", "%s is before start date %s",
			end.Format(time.DateOnly), start.Format(time.DateOnly))
	}

	p := PayPeriod{
		ID:        NewPeriodID(),
		StudioID:  studioID,
		StartDate: start,
		EndDate:   end,
		Status:    PeriodOpen,
		CreatedAt: m.Now().UTC(),
	}
	if err := m.Store.InsertPeriod(ctx, p); err != nil {
		return PayPeriod{}, fmt.Errorf("insert pay period: %w", err)
	}
	m.log(p).Info("pay period created",
		zap.String("start_date", start.Format(time.DateOnly)),
		zap.String("end_date", end.Format(time.DateOnly)))
	return p, nil
}

// Assign adds commissions to an Open period and recomputes its totals.
func (m *PeriodManager) Assign(ctx context.Context, periodID PeriodID, ids []CommissionID) (result PayPeriod, err error) {
	ctx, span := tracer.Start(ctx, "commission.AssignPeriod")
	span.SetAttributes(attribute.String("period_id", string(periodID)), attribute.Int("commissions", len(ids)))
	defer func() { endSpan(span, err) }()

	if len(ids) == 0 {
		return PayPeriod{}, invalid("commission_ids", "at least one commission id is required")
	}

	var added int
	err = m.Store.WithTx(ctx, func(tx Store) error {
		p, err := tx.GetPeriod(ctx, periodID)
		if err != nil {
			return err
		}
		if p.Status != PeriodOpen {
			return &TransitionError{PeriodID: p.ID, Op: "assign to", From: p.Status}
		}

		seen := make(map[CommissionID]bool, len(ids))
		var pending []CommissionID
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true

			c, err := tx.GetCommission(ctx, id)
			if err != nil {
				return err
			}
			if c.StudioID != p.StudioID {
				return &AssignmentConflictError{CommissionID: id, PeriodID: p.ID,
					Reason: fmt.Sprintf("commission belongs to studio %s", c.StudioID)}
			}
			switch c.PayPeriodID {
			case "":
				pending = append(pending, id)
			case p.ID:
			default:
				return &AssignmentConflictError{CommissionID: id, PeriodID: p.ID,
					Reason: fmt.Sprintf("already assigned to period %s", c.PayPeriodID)}
			}
		}

		for _, id := range pending {
			if err := tx.SetCommissionPeriod(ctx, id, p.ID); err != nil {
				return fmt.Errorf("assign commission %s: %w", id, err)
			}
		}
		added = len(pending)

		result, err = recompute(ctx, tx, p)
		return err
	})
	if err != nil {
		return PayPeriod{}, err
	}

	m.log(result).Info("commissions assigned",
		zap.Int("added", added),
		zap.Int("count", result.Totals.Count),
		zap.Int64("service_total_cents", int64(result.Totals.ServiceTotal)))
	return result, nil
}

// Close freezes an Open period's totals. A period with no rows may be closed.
func (m *PeriodManager) Close(ctx context.Context, periodID PeriodID) (result PayPeriod, err error) {
	ctx, span := tracer.Start(ctx, "commission.ClosePeriod")
	span.SetAttributes(attribute.String("period_id", string(periodID)))
	defer func() { endSpan(span, err) }()

	err = m.Store.WithTx(ctx, func(tx Store) error {
		p, err := tx.GetPeriod(ctx, periodID)
		if err != nil {
			return err
		}
		if p.Status != PeriodOpen {
			return &TransitionError{PeriodID: p.ID, Op: "close", From: p.Status}
		}
		rows, err := tx.CommissionsForPeriod(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("load period commissions: %w", err)
		}
		now := m.Now().UTC()
		p.Totals = SumTotals(rows)
		p.Status = PeriodClosed
		p.ClosedAt = &now
		if err := tx.UpdatePeriod(ctx, p); err != nil {
			return fmt.Errorf("update pay period: %w", err)
		}
		result = p
		return nil
	})
	if err != nil {
		return PayPeriod{}, err
	}

	m.log(result).Info("pay period closed",
		zap.Int("count", result.Totals.Count),
		zap.Int64("artist_payout_cents", int64(result.Totals.ArtistPayout)))
	return result, nil
}

// MarkPaid moves a Closed period to Paid. Totals are not touched.
func (m *PeriodManager) MarkPaid(ctx context.Context, periodID PeriodID, reference string) (result PayPeriod, err error) {
	ctx, span := tracer.Start(ctx, "commission.MarkPeriodPaid")
	span.SetAttributes(attribute.String("period_id", string(periodID)))
	defer func() { endSpan(span, err) }()

	err = m.Store.WithTx(ctx, func(tx Store) error {
		p, err := tx.GetPeriod(ctx, periodID)
		if err != nil {
			return err
		}
		if p.Status != PeriodClosed {
			return &TransitionError{PeriodID: p.ID, Op: "mark paid", From: p.Status}
		}
		now := m.Now().UTC()
		p.Status = PeriodPaid
		p.PaidAt = &now
		p.PayoutReference = reference
		if err := tx.UpdatePeriod(ctx, p); err != nil {
			return fmt.Errorf("update pay period: %w", err)
		}
		result = p
		return nil
	})
	if err != nil {
		return PayPeriod{}, err
	}

	m.log(result).Info("pay period paid", zap.String("payout_reference", reference))
	return result, nil
}

// recompute replaces p's totals with a full sum over its rows.
func recompute(ctx context.Context, tx Store, p PayPeriod) (PayPeriod, error) {
	rows, err := tx.CommissionsForPeriod(ctx, p.ID)
	if err != nil {
		return PayPeriod{}, fmt.Errorf("load period commissions: %w", err)
	}
	p.Totals = SumTotals(rows)
	if err := tx.UpdatePeriod(ctx, p); err != nil {
		return PayPeriod{}, fmt.Errorf("update pay period: %w", err)
	}
	return p, nil
}

// =============================================================================
// READS
// =============================================================================

func (m *PeriodManager) Get(ctx context.Context, id PeriodID) (PayPeriod, error) {
	return m.Store.GetPeriod(ctx, id)
}

func (m *PeriodManager) List(ctx context.Context, f PeriodFilter) ([]PayPeriod, error) {
	return m.Store.ListPeriods(ctx, f)
}

// Breakdown returns per-artist totals for a period, sorted by artist.
func (m *PeriodManager) Breakdown(ctx context.Context, id PeriodID) ([]ArtistTotals, error) {
	if _, err := m.Store.GetPeriod(ctx, id); err != nil {
		return nil, err
	}
	rows, err := m.Store.CommissionsForPeriod(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load period commissions: %w", err)
	}
	return BreakdownByArtist(rows), nil
}

// BreakdownByArtist groups rows by artist.
func BreakdownByArtist(rows []EarnedCommission) []ArtistTotals {
	byArtist := make(map[ArtistID]Totals)
	for _, c := range rows {
		byArtist[c.ArtistID] = byArtist[c.ArtistID].Add(c)
	}
	out := make([]ArtistTotals, 0, len(byArtist))
	for artist, t := range byArtist {
		out = append(out, ArtistTotals{ArtistID: artist, Totals: t})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ArtistID < out[j].ArtistID })
	return out
}

// =============================================================================
// SETTLEMENT - Implicit assignment by pay schedule
// =============================================================================

// SettlementResult reports what Settle did.
type SettlementResult struct {
	StudioID StudioID
	AsOf     time.Time

	// Periods lists every period that received rows, in first-use order.
	Periods []PeriodID

	// Created lists the periods Settle had to open.
	Created []PeriodID

	Assigned int

	// Skipped rows fall in a period that is no longer Open.
	Skipped []CommissionID
}

// Settle assigns every unassigned row of the studio completed on or before
// asOf to the Open period covering its completion day, creating scheduled
// periods where none covers it.
func (m *PeriodManager) Settle(ctx context.Context, studioID StudioID, asOf time.Time) (result SettlementResult, err error) {
	ctx, span := tracer.Start(ctx, "commission.Settle")
	span.SetAttributes(attribute.String("studio_id", string(studioID)))
	defer func() {
		span.SetAttributes(attribute.Int("assigned", result.Assigned))
		endSpan(span, err)
	}()

	if studioID == "" {
		return SettlementResult{}, invalid("studio_id", "is required")
	}
	asOf = DateOf(asOf)
	result = SettlementResult{StudioID: studioID, AsOf: asOf}

	settings, err := settingsOrDefault(ctx, m.Store, m.Defaults, studioID)
	if err != nil {
		return result, fmt.Errorf("load studio settings: %w", err)
	}

	cutoff := asOf.AddDate(0, 0, 1).Add(-time.Nanosecond)
	rows, err := m.Store.ListCommissions(ctx, CommissionFilter{
		StudioID:    studioID,
		Unassigned:  true,
		CompletedTo: &cutoff,
	})
	if err != nil {
		return result, fmt.Errorf("list unassigned commissions: %w", err)
	}
	if len(rows) == 0 {
		return result, nil
	}

	// target period per completion day; "" means skip
	targets := make(map[time.Time]PeriodID)
	batches := make(map[PeriodID][]CommissionID)
	for _, c := range rows {
		day := DateOf(c.CompletedAt)
		target, ok := targets[day]
		if !ok {
			target, err = m.targetFor(ctx, settings, day, &result)
			if err != nil {
				return result, err
			}
			targets[day] = target
		}
		if target == "" {
			result.Skipped = append(result.Skipped, c.ID)
			continue
		}
		if _, ok := batches[target]; !ok {
			result.Periods = append(result.Periods, target)
		}
		batches[target] = append(batches[target], c.ID)
	}

	for _, pid := range result.Periods {
		if _, err := m.Assign(ctx, pid, batches[pid]); err != nil {
			return result, fmt.Errorf("settle into period %s: %w", pid, err)
		}
		result.Assigned += len(batches[pid])
	}

	m.Logger.Info("settlement complete",
		zap.String("studio_id", string(studioID)),
		zap.String("as_of", asOf.Format(time.DateOnly)),
		zap.Int("assigned", result.Assigned),
		zap.Int("periods", len(result.Periods)),
		zap.Int("created", len(result.Created)),
		zap.Int("skipped", len(result.Skipped)))
	return result, nil
}

// targetFor finds the Open period covering day, or creates the scheduled
// one. Returns "" when only non-Open periods cover the day.
func (m *PeriodManager) targetFor(ctx context.Context, s StudioSettings, day time.Time, result *SettlementResult) (PeriodID, error) {
	covering, err := m.Store.ListPeriods(ctx, PeriodFilter{StudioID: s.StudioID, Covering: &day})
	if err != nil {
		return "", fmt.Errorf("find covering period: %w", err)
	}
	for _, p := range covering {
		if p.Status == PeriodOpen {
			return p.ID, nil
		}
	}
	if len(covering) > 0 {
		return "", nil
	}

	w := s.Schedule.PeriodFor(day, s.ScheduleAnchor)
	p, err := m.Create(ctx, s.StudioID, w.Start, w.End)
	if err != nil {
		return "", err
	}
	m.Logger.Debug("opened scheduled pay period",
		zap.String("period_id", string(p.ID)),
		zap.String("window", s.Schedule.describe(w)))
	result.Created = append(result.Created, p.ID)
	return p.ID, nil
}

func (m *PeriodManager) log(p PayPeriod) *zap.Logger {
	return m.Logger.With(
		zap.String("period_id", string(p.ID)),
		zap.String("studio_id", string(p.StudioID)),
		zap.String("status", string(p.Status)))
}
