package commission_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simmonsmd7/inkflow-sub000/commission"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func (e *engine) openPeriod(t *testing.T, start, end time.Time) commission.PayPeriod {
	t.Helper()
	p, err := e.periods.Create(context.Background(), studio, start, end)
	require.NoError(t, err)
	return p
}

func (e *engine) seedTwoBookings(t *testing.T) (commission.EarnedCommission, commission.EarnedCommission) {
	t.Helper()
	e.createRule(t, "House", commission.Percentage{Rate: 4000}, true)
	a := e.record(t, completion("B1", 50000, day(2024, 3, 4)))
	b := e.record(t, completion("B2", 80000, day(2024, 3, 5)))
	return a, b
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestPeriod_AssignThenCloseTotalsRows(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a, b := e.seedTwoBookings(t)
	p := e.openPeriod(t, day(2024, 3, 1), day(2024, 3, 15))

	// WHEN: Assigning both and closing
	p, err := e.periods.Assign(ctx, p.ID, []commission.CommissionID{a.ID, b.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, p.Totals.Count)

	closed, err := e.periods.Close(ctx, p.ID)
	require.NoError(t, err)

	// THEN: Totals are the sums of the rows
	assert.Equal(t, commission.PeriodClosed, closed.Status)
	assert.Equal(t, commission.Cents(130000), closed.Totals.ServiceTotal)
	assert.Equal(t, commission.Cents(20000+32000), closed.Totals.StudioCommission)
	assert.Equal(t, commission.Cents(30000+48000), closed.Totals.ArtistPayout)
	assert.Equal(t, 2, closed.Totals.Count)
	require.NotNil(t, closed.ClosedAt)
	assert.Equal(t, fixedNow, *closed.ClosedAt)

	stored, err := e.store.GetCommission(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, stored.PayPeriodID)
}

func TestPeriod_StatusOnlyMovesForward(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a, _ := e.seedTwoBookings(t)
	p := e.openPeriod(t, day(2024, 3, 1), day(2024, 3, 15))

	// Open: cannot be paid
	_, err := e.periods.MarkPaid(ctx, p.ID, "ref")
	assert.ErrorIs(t, err, commission.ErrInvalidTransition)

	_, err = e.periods.Close(ctx, p.ID)
	require.NoError(t, err)

	// Closed: cannot be closed again or take rows
	_, err = e.periods.Close(ctx, p.ID)
	assert.ErrorIs(t, err, commission.ErrInvalidTransition)
	_, err = e.periods.Assign(ctx, p.ID, []commission.CommissionID{a.ID})
	assert.ErrorIs(t, err, commission.ErrInvalidTransition)
	assert.True(t, commission.IsConflict(err))

	paid, err := e.periods.MarkPaid(ctx, p.ID, "ach-123")
	require.NoError(t, err)
	assert.Equal(t, commission.PeriodPaid, paid.Status)
	assert.Equal(t, "ach-123", paid.PayoutReference)
	require.NotNil(t, paid.PaidAt)

	// Paid: terminal
	_, err = e.periods.MarkPaid(ctx, p.ID, "again")
	var te *commission.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, commission.PeriodPaid, te.From)
}

func TestPeriod_CloseEmpty(t *testing.T) {
	e := newEngine(t)
	p := e.openPeriod(t, day(2024, 3, 1), day(2024, 3, 15))

	closed, err := e.periods.Close(context.Background(), p.ID)

	require.NoError(t, err)
	assert.Equal(t, commission.Totals{}, closed.Totals)
}

func TestPeriod_CommissionBelongsToOnePeriod(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a, b := e.seedTwoBookings(t)
	first := e.openPeriod(t, day(2024, 3, 1), day(2024, 3, 15))
	second := e.openPeriod(t, day(2024, 3, 1), day(2024, 3, 15))

	_, err := e.periods.Assign(ctx, first.ID, []commission.CommissionID{a.ID})
	require.NoError(t, err)

	// WHEN: Assigning a row that already belongs to another period, with a free one
	_, err = e.periods.Assign(ctx, second.ID, []commission.CommissionID{b.ID, a.ID})

	// THEN: Rejected as a whole
	var conflict *commission.AssignmentConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, a.ID, conflict.CommissionID)

	stored, err := e.store.GetCommission(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsAssigned(), "failed batch must not assign anything")

	got, err := e.periods.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Totals.Count)
}

func TestPeriod_ReassignSamePeriodIsNoop(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a, b := e.seedTwoBookings(t)
	p := e.openPeriod(t, day(2024, 3, 1), day(2024, 3, 15))

	_, err := e.periods.Assign(ctx, p.ID, []commission.CommissionID{a.ID})
	require.NoError(t, err)
	p, err = e.periods.Assign(ctx, p.ID, []commission.CommissionID{a.ID, b.ID, b.ID})
	require.NoError(t, err)

	assert.Equal(t, 2, p.Totals.Count)
	assert.Equal(t, commission.Cents(130000), p.Totals.ServiceTotal)
}

func TestPeriod_AssignRejectsUnknownAndForeignRows(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	e.seedTwoBookings(t)
	p := e.openPeriod(t, day(2024, 3, 1), day(2024, 3, 15))

	_, err := e.periods.Assign(ctx, p.ID, []commission.CommissionID{"missing"})
	assert.ErrorIs(t, err, commission.ErrNotFound)

	_, err = e.periods.Assign(ctx, p.ID, nil)
	assert.ErrorIs(t, err, commission.ErrValidation)

	_, err = e.periods.Assign(ctx, "no-such-period", []commission.CommissionID{"x"})
	assert.ErrorIs(t, err, commission.ErrNotFound)

	// A row from another studio
	other, err := e.rules.Create(ctx, commission.RuleInput{
		StudioID: "studio-2", Name: "Other", Strategy: commission.Percentage{Rate: 1000}, IsDefault: true, IsActive: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, other.ID)
	ev := completion("B9", 1000, day(2024, 3, 2))
	ev.StudioID = "studio-2"
	foreign := e.record(t, ev)

	_, err = e.periods.Assign(ctx, p.ID, []commission.CommissionID{foreign.ID})
	var conflict *commission.AssignmentConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestPeriod_CreateValidatesDates(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	_, err := e.periods.Create(ctx, studio, day(2024, 3, 15), day(2024, 3, 1))
	assert.ErrorIs(t, err, commission.ErrValidation)

	_, err = e.periods.Create(ctx, "", day(2024, 3, 1), day(2024, 3, 15))
	assert.ErrorIs(t, err, commission.ErrValidation)

	// Single-day period, time of day dropped
	p, err := e.periods.Create(ctx, studio, day(2024, 3, 1).Add(20*time.Hour), day(2024, 3, 1))
	require.NoError(t, err)
	assert.Equal(t, day(2024, 3, 1), p.StartDate)
	assert.True(t, p.Covers(day(2024, 3, 1).Add(23*time.Hour)))
}

// =============================================================================
// REPORTS
// =============================================================================

func TestPeriod_BreakdownByArtist(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	e.createRule(t, "House", commission.Percentage{Rate: 4000}, true)

	a := e.record(t, completion("B1", 50000, day(2024, 3, 4)))
	ev := completion("B2", 10000, day(2024, 3, 4))
	ev.ArtistID = "artist-0"
	ev.Tips = 1000
	b := e.record(t, ev)
	c := e.record(t, completion("B3", 20000, day(2024, 3, 5)))

	p := e.openPeriod(t, day(2024, 3, 1), day(2024, 3, 15))
	_, err := e.periods.Assign(ctx, p.ID, []commission.CommissionID{a.ID, b.ID, c.ID})
	require.NoError(t, err)

	rows, err := e.periods.Breakdown(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, commission.ArtistID("artist-0"), rows[0].ArtistID)
	assert.Equal(t, commission.Cents(6000), rows[0].Totals.ArtistPayout)
	assert.Equal(t, commission.Cents(1000), rows[0].Totals.TipArtistShare)

	assert.Equal(t, commission.ArtistID("artist-1"), rows[1].ArtistID)
	assert.Equal(t, 2, rows[1].Totals.Count)
	assert.Equal(t, commission.Cents(70000), rows[1].Totals.ServiceTotal)

	_, err = e.periods.Breakdown(ctx, "missing")
	assert.ErrorIs(t, err, commission.ErrNotFound)
}

func TestLedger_PaidFilter(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a, _ := e.seedTwoBookings(t)
	p := e.openPeriod(t, day(2024, 3, 1), day(2024, 3, 15))
	_, err := e.periods.Assign(ctx, p.ID, []commission.CommissionID{a.ID})
	require.NoError(t, err)

	paid := true
	rows, err := e.store.ListCommissions(ctx, commission.CommissionFilter{StudioID: studio, Paid: &paid})
	require.NoError(t, err)
	assert.Empty(t, rows, "open period is not paid")

	_, err = e.periods.Close(ctx, p.ID)
	require.NoError(t, err)
	_, err = e.periods.MarkPaid(ctx, p.ID, "ref")
	require.NoError(t, err)

	rows, err = e.store.ListCommissions(ctx, commission.CommissionFilter{StudioID: studio, Paid: &paid})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, a.ID, rows[0].ID)

	unpaid := false
	rows, err = e.store.ListCommissions(ctx, commission.CommissionFilter{StudioID: studio, Paid: &unpaid})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

// =============================================================================
// SETTLEMENT
// =============================================================================

func TestSettle_CreatesScheduledPeriods(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	e.createRule(t, "House", commission.Percentage{Rate: 4000}, true)
	_, err := e.rules.SaveSettings(ctx, commission.StudioSettings{
		StudioID: studio, TipArtistShare: commission.FullShare, Schedule: commission.ScheduleSemiMonthly,
	})
	require.NoError(t, err)

	a := e.record(t, completion("B1", 50000, day(2024, 3, 4).Add(10*time.Hour)))
	b := e.record(t, completion("B2", 80000, day(2024, 3, 16)))
	late := e.record(t, completion("B3", 10000, day(2024, 3, 25)))

	// WHEN: Settling as of March 20
	res, err := e.periods.Settle(ctx, studio, day(2024, 3, 20))
	require.NoError(t, err)

	// THEN: Two semimonthly periods were opened; the later row waits
	assert.Equal(t, 2, res.Assigned)
	assert.Len(t, res.Created, 2)
	assert.Equal(t, res.Created, res.Periods)
	assert.Empty(t, res.Skipped)

	first, err := e.periods.Get(ctx, res.Periods[0])
	require.NoError(t, err)
	assert.Equal(t, day(2024, 3, 1), first.StartDate)
	assert.Equal(t, day(2024, 3, 15), first.EndDate)
	assert.Equal(t, commission.Cents(50000), first.Totals.ServiceTotal)

	second, err := e.periods.Get(ctx, res.Periods[1])
	require.NoError(t, err)
	assert.Equal(t, day(2024, 3, 31), second.EndDate)

	for id, want := range map[commission.CommissionID]bool{a.ID: true, b.ID: true, late.ID: false} {
		c, err := e.store.GetCommission(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, c.IsAssigned(), string(id))
	}

	// Settling again is a no-op
	res, err = e.periods.Settle(ctx, studio, day(2024, 3, 20))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Assigned)
}

func TestSettle_ReusesOpenPeriodAndSkipsClosed(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	e.createRule(t, "House", commission.Percentage{Rate: 4000}, true)

	// GIVEN: An explicit open period for early March and a closed one for late Feb
	open := e.openPeriod(t, day(2024, 3, 1), day(2024, 3, 10))
	closed := e.openPeriod(t, day(2024, 2, 19), day(2024, 2, 29))
	_, err := e.periods.Close(ctx, closed.ID)
	require.NoError(t, err)

	inOpen := e.record(t, completion("B1", 50000, day(2024, 3, 2)))
	inClosed := e.record(t, completion("B2", 50000, day(2024, 2, 20)))

	// WHEN: Settling
	res, err := e.periods.Settle(ctx, studio, day(2024, 3, 20))
	require.NoError(t, err)

	// THEN: The open period is reused and the closed period's row is skipped
	assert.Equal(t, []commission.PeriodID{open.ID}, res.Periods)
	assert.Empty(t, res.Created)
	assert.Equal(t, []commission.CommissionID{inClosed.ID}, res.Skipped)

	c, err := e.store.GetCommission(ctx, inOpen.ID)
	require.NoError(t, err)
	assert.Equal(t, open.ID, c.PayPeriodID)
}

func TestSettle_RequiresStudio(t *testing.T) {
	e := newEngine(t)
	_, err := e.periods.Settle(context.Background(), "", fixedNow)
	assert.ErrorIs(t, err, commission.ErrValidation)
}
