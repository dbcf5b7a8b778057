package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/simmonsmd7/inkflow-sub000/commission"
	"github.com/simmonsmd7/inkflow-sub000/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const studio commission.StudioID = "studio-1"

var now = time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func ledgerRow(booking string, artist commission.ArtistID, total commission.Cents, completedAt time.Time) commission.EarnedCommission {
	return commission.EarnedCommission{
		ID:        commission.NewCommissionID(),
		BookingID: commission.BookingID(booking),
		ArtistID:  artist,
		StudioID:  studio,
		Snapshot: commission.RuleSnapshot{
			RuleID:    "rule-1",
			RuleName:  "House",
			Kind:      commission.KindPercentage,
			Rate:      4000,
			TierIndex: -1,
		},
		ServiceTotal:     total,
		StudioCommission: total * 4 / 10,
		ArtistPayout:     total - total*4/10,
		CalculationTrace: "trace",
		CompletedAt:      completedAt,
		CreatedAt:        now,
	}
}

func insertRows(t *testing.T, s *sqlite.Store, rows ...commission.EarnedCommission) {
	t.Helper()
	for _, r := range rows {
		require.NoError(t, s.InsertCommission(context.Background(), r))
	}
}

// =============================================================================
// RULES
// =============================================================================

func TestRules_TieredRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// GIVEN: A tiered rule with an open-ended top tier
	rule := commission.Rule{
		ID:       "rule-1",
		StudioID: studio,
		Name:     "Volume",
		Strategy: commission.Tiered{Tiers: []commission.Tier{
			{MinRevenue: 0, MaxRevenue: commission.Bound(50000), Rate: 3000},
			{MinRevenue: 50000, MaxRevenue: commission.Bound(100000), Rate: 2500},
			{MinRevenue: 100000, Rate: 2000},
		}},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// WHEN: Saved and read back
	require.NoError(t, s.SaveRule(ctx, rule))
	got, err := s.GetRule(ctx, rule.ID)

	// THEN: Tiers come back in order with the same bounds
	require.NoError(t, err)
	assert.Equal(t, rule, got)
}

func TestRules_ResaveReplacesTiers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rule := commission.Rule{
		ID: "rule-1", StudioID: studio, Name: "Volume", IsActive: true, CreatedAt: now, UpdatedAt: now,
		Strategy: commission.Tiered{Tiers: []commission.Tier{
			{MinRevenue: 0, MaxRevenue: commission.Bound(50000), Rate: 3000},
			{MinRevenue: 50000, Rate: 2000},
		}},
	}
	require.NoError(t, s.SaveRule(ctx, rule))

	// WHEN: The rule becomes a percentage rule
	rule.Strategy = commission.Percentage{Rate: 4500}
	require.NoError(t, s.SaveRule(ctx, rule))

	// THEN: Only the new strategy remains
	got, err := s.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, commission.Percentage{Rate: 4500}, got.Strategy)
}

func TestRules_SoftDeleteHidesFromListAndDefault(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rule := commission.Rule{
		ID: "rule-1", StudioID: studio, Name: "House", Strategy: commission.FlatFee{Amount: 2500},
		IsDefault: true, IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.SaveRule(ctx, rule))

	def, err := s.DefaultRule(ctx, studio)
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Equal(t, rule.ID, def.ID)

	// WHEN: The rule is soft deleted
	deleted := now.Add(time.Hour)
	rule.DeletedAt = &deleted
	require.NoError(t, s.SaveRule(ctx, rule))

	// THEN: Gone from listings, still fetchable by ID
	rules, err := s.ListRules(ctx, studio)
	require.NoError(t, err)
	assert.Empty(t, rules)

	def, err = s.DefaultRule(ctx, studio)
	require.NoError(t, err)
	assert.Nil(t, def)

	got, err := s.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DeletedAt)
	assert.True(t, deleted.Equal(*got.DeletedAt))
}

func TestRules_MissingRule(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetRule(context.Background(), "nope")

	assert.ErrorIs(t, err, commission.ErrNotFound)
}

func TestArtistRules_UpsertAndCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, id := range []commission.RuleID{"rule-1", "rule-2"} {
		require.NoError(t, s.SaveRule(ctx, commission.Rule{
			ID: id, StudioID: studio, Name: string(id), Strategy: commission.Percentage{Rate: 3000},
			IsActive: true, CreatedAt: now, UpdatedAt: now,
		}))
	}

	missing, err := s.GetArtistRule(ctx, "artist-1", studio)
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, s.SaveArtistRule(ctx, commission.ArtistRule{ArtistID: "artist-1", StudioID: studio, RuleID: "rule-1", AssignedAt: now}))
	require.NoError(t, s.SaveArtistRule(ctx, commission.ArtistRule{ArtistID: "artist-2", StudioID: studio, RuleID: "rule-1", AssignedAt: now}))

	n, err := s.CountArtistRules(ctx, "rule-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// WHEN: artist-1 is moved to rule-2
	require.NoError(t, s.SaveArtistRule(ctx, commission.ArtistRule{ArtistID: "artist-1", StudioID: studio, RuleID: "rule-2", AssignedAt: now}))

	// THEN: The assignment is replaced, not duplicated
	got, err := s.GetArtistRule(ctx, "artist-1", studio)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, commission.RuleID("rule-2"), got.RuleID)
	assert.Equal(t, now, got.AssignedAt)

	n, err = s.CountArtistRules(ctx, "rule-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// =============================================================================
// SETTINGS
// =============================================================================

func TestSettings_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	none, err := s.GetStudioSettings(ctx, studio)
	require.NoError(t, err)
	assert.Nil(t, none)

	want := commission.StudioSettings{
		StudioID:       studio,
		TipArtistShare: 8000,
		Schedule:       commission.ScheduleSemiMonthly,
		ScheduleAnchor: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.SaveStudioSettings(ctx, want))
	require.NoError(t, s.SaveStudioSettings(ctx, commission.DefaultStudioSettings("studio-0")))

	got, err := s.GetStudioSettings(ctx, studio)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)

	all, err := s.ListStudioSettings(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, commission.StudioID("studio-0"), all[0].StudioID)
}

// =============================================================================
// LEDGER
// =============================================================================

func TestLedger_InsertIsOncePerBooking(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	row := ledgerRow("B1", "artist-1", 50000, now)
	row.Tips = 1001
	row.TipArtistShare = 500
	row.TipStudioShare = 501
	row.TipPaymentMethod = "cash"
	insertRows(t, s, row)

	// WHEN: A second row for the same booking is inserted
	dup := ledgerRow("B1", "artist-1", 60000, now)
	err := s.InsertCommission(ctx, dup)

	// THEN: Rejected, and the original row is intact
	assert.ErrorIs(t, err, commission.ErrDuplicateBooking)

	got, err := s.GetCommissionByBooking(ctx, "B1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, row, *got)

	byID, err := s.GetCommission(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, row, byID)

	_, err = s.GetCommission(ctx, dup.ID)
	assert.ErrorIs(t, err, commission.ErrNotFound)
}

func TestLedger_ListFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// GIVEN: Three rows across two artists and three days
	r1 := ledgerRow("B1", "artist-1", 10000, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	r2 := ledgerRow("B2", "artist-2", 20000, time.Date(2024, 3, 2, 23, 59, 0, 0, time.UTC))
	r3 := ledgerRow("B3", "artist-1", 30000, time.Date(2024, 3, 3, 9, 0, 0, 0, time.UTC))
	insertRows(t, s, r1, r2, r3)

	list := func(f commission.CommissionFilter) []commission.BookingID {
		t.Helper()
		rows, err := s.ListCommissions(ctx, f)
		require.NoError(t, err)
		var out []commission.BookingID
		for _, r := range rows {
			out = append(out, r.BookingID)
		}
		return out
	}

	from := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 2, 23, 59, 59, 0, time.UTC)

	assert.Equal(t, []commission.BookingID{"B1", "B2", "B3"}, list(commission.CommissionFilter{StudioID: studio}))
	assert.Equal(t, []commission.BookingID{"B1", "B3"}, list(commission.CommissionFilter{ArtistID: "artist-1"}))
	assert.Equal(t, []commission.BookingID{"B2"}, list(commission.CommissionFilter{CompletedFrom: &from, CompletedTo: &to}))
	assert.Equal(t, []commission.BookingID{"B1"}, list(commission.CommissionFilter{Limit: 1}))
	assert.Equal(t, []commission.BookingID{"B2", "B3"}, list(commission.CommissionFilter{AfterID: r1.ID}))
	assert.Empty(t, list(commission.CommissionFilter{StudioID: "studio-2"}))
}

func TestLedger_PeriodAndPaidFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r1 := ledgerRow("B1", "artist-1", 10000, now)
	r2 := ledgerRow("B2", "artist-1", 20000, now)
	insertRows(t, s, r1, r2)

	period := commission.PayPeriod{
		ID: commission.NewPeriodID(), StudioID: studio, Status: commission.PeriodOpen,
		StartDate: time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		CreatedAt: now,
	}
	require.NoError(t, s.InsertPeriod(ctx, period))
	require.NoError(t, s.SetCommissionPeriod(ctx, r1.ID, period.ID))

	paid, unpaid := true, false
	rows, err := s.ListCommissions(ctx, commission.CommissionFilter{Paid: &paid})
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = s.ListCommissions(ctx, commission.CommissionFilter{Unassigned: true})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, r2.ID, rows[0].ID)

	// WHEN: The period is paid
	paidAt := now.Add(time.Hour)
	period.Status = commission.PeriodPaid
	period.PaidAt = &paidAt
	period.PayoutReference = "ACH-1"
	require.NoError(t, s.UpdatePeriod(ctx, period))

	// THEN: Only r1 counts as paid
	rows, err = s.ListCommissions(ctx, commission.CommissionFilter{Paid: &paid})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, r1.ID, rows[0].ID)

	rows, err = s.ListCommissions(ctx, commission.CommissionFilter{Paid: &unpaid})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, r2.ID, rows[0].ID)

	rows, err = s.CommissionsForPeriod(ctx, period.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, period.ID, rows[0].PayPeriodID)
}

func TestLedger_SetPeriodOnMissingRow(t *testing.T) {
	s := newTestStore(t)

	err := s.SetCommissionPeriod(context.Background(), "missing", "period")

	assert.ErrorIs(t, err, commission.ErrNotFound)
}

// =============================================================================
// PERIODS
// =============================================================================

func TestPeriods_RoundTripAndFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	march := commission.PayPeriod{
		ID: commission.NewPeriodID(), StudioID: studio, Status: commission.PeriodOpen,
		StartDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		CreatedAt: now,
	}
	closedAt := now
	april := commission.PayPeriod{
		ID: commission.NewPeriodID(), StudioID: studio, Status: commission.PeriodClosed,
		StartDate: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC),
		Totals:    commission.Totals{ServiceTotal: 100, StudioCommission: 40, ArtistPayout: 60, Count: 1},
		CreatedAt: now,
		ClosedAt:  &closedAt,
	}
	require.NoError(t, s.InsertPeriod(ctx, march))
	require.NoError(t, s.InsertPeriod(ctx, april))

	got, err := s.GetPeriod(ctx, april.ID)
	require.NoError(t, err)
	assert.Equal(t, april, got)

	// Covering matches on the calendar day, whatever the time of day
	covering := time.Date(2024, 3, 15, 22, 30, 0, 0, time.UTC)
	list, err := s.ListPeriods(ctx, commission.PeriodFilter{StudioID: studio, Covering: &covering})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, march.ID, list[0].ID)

	list, err = s.ListPeriods(ctx, commission.PeriodFilter{Status: commission.PeriodClosed})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, april.ID, list[0].ID)

	list, err = s.ListPeriods(ctx, commission.PeriodFilter{StudioID: studio, Limit: 1})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, march.ID, list[0].ID)

	_, err = s.GetPeriod(ctx, "missing")
	assert.ErrorIs(t, err, commission.ErrNotFound)
	assert.ErrorIs(t, s.UpdatePeriod(ctx, commission.PayPeriod{ID: "missing", Status: commission.PeriodOpen}), commission.ErrNotFound)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	// WHEN: A transaction inserts a row, then fails
	err := s.WithTx(ctx, func(tx commission.Store) error {
		if err := tx.InsertCommission(ctx, ledgerRow("B1", "artist-1", 10000, now)); err != nil {
			return err
		}
		return boom
	})

	// THEN: The error surfaces and nothing was written
	assert.ErrorIs(t, err, boom)
	got, err := s.GetCommissionByBooking(ctx, "B1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestWithTx_Commits(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx commission.Store) error {
		return tx.InsertCommission(ctx, ledgerRow("B1", "artist-1", 10000, now))
	})

	require.NoError(t, err)
	got, err := s.GetCommissionByBooking(ctx, "B1")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}

// =============================================================================
// END TO END
// =============================================================================

func TestEngineOnSQLite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	clock := func() time.Time { return now }

	rules := commission.NewRuleManager(s, zap.NewNop())
	recorder := commission.NewRecorder(s, zap.NewNop())
	periods := commission.NewPeriodManager(s, zap.NewNop())
	rules.Now, recorder.Now, periods.Now = clock, clock, clock

	// GIVEN: A tiered default and semimonthly settlement
	_, err := rules.Create(ctx, commission.RuleInput{
		StudioID: studio, Name: "Volume", IsDefault: true, IsActive: true,
		Strategy: commission.Tiered{Tiers: []commission.Tier{
			{MinRevenue: 0, MaxRevenue: commission.Bound(50000), Rate: 3000},
			{MinRevenue: 50000, Rate: 2000},
		}},
	})
	require.NoError(t, err)
	_, err = rules.SaveSettings(ctx, commission.StudioSettings{
		StudioID: studio, TipArtistShare: 10000, Schedule: commission.ScheduleSemiMonthly,
	})
	require.NoError(t, err)

	// WHEN: Two bookings complete and the studio settles
	for i, ev := range []commission.CompletionEvent{
		{BookingID: "B1", ArtistID: "artist-1", StudioID: studio, FinalPrice: 40000, CompletedAt: time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC)},
		{BookingID: "B2", ArtistID: "artist-2", StudioID: studio, FinalPrice: 80000, Tips: 5000, CompletedAt: time.Date(2024, 3, 6, 14, 0, 0, 0, time.UTC)},
	} {
		_, created, err := recorder.Record(ctx, ev)
		require.NoError(t, err, "booking %d", i)
		require.True(t, created)
	}
	_, created, err := recorder.Record(ctx, commission.CompletionEvent{
		BookingID: "B1", ArtistID: "artist-1", StudioID: studio, FinalPrice: 40000, CompletedAt: time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.False(t, created)

	result, err := periods.Settle(ctx, studio, time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, result.Created, 1)
	assert.Equal(t, 2, result.Assigned)

	closed, err := periods.Close(ctx, result.Created[0])
	require.NoError(t, err)

	// THEN: The closed period totals both bookings
	assert.Equal(t, commission.PeriodClosed, closed.Status)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), closed.StartDate)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), closed.EndDate)
	assert.Equal(t, commission.Totals{
		ServiceTotal:     120000,
		StudioCommission: 12000 + 16000,
		ArtistPayout:     28000 + 64000,
		Tips:             5000,
		TipArtistShare:   5000,
		Count:            2,
	}, closed.Totals)

	paid, err := periods.MarkPaid(ctx, closed.ID, "ACH-42")
	require.NoError(t, err)
	assert.Equal(t, commission.PeriodPaid, paid.Status)
	assert.Equal(t, "ACH-42", paid.PayoutReference)

	breakdown, err := periods.Breakdown(ctx, closed.ID)
	require.NoError(t, err)
	assert.Len(t, breakdown, 2)
}
