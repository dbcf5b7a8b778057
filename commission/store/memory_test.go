package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simmonsmd7/inkflow-sub000/commission"
)

func row(booking string) commission.EarnedCommission {
	return commission.EarnedCommission{
		ID:          commission.NewCommissionID(),
		BookingID:   commission.BookingID(booking),
		ArtistID:    "artist-1",
		StudioID:    "studio-1",
		CompletedAt: time.Date(2024, 3, 5, 15, 0, 0, 0, time.UTC),
	}
}

func TestMemory_WithTxRollsBack(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	kept := row("B1")
	require.NoError(t, m.InsertCommission(ctx, kept))
	boom := errors.New("boom")

	// WHEN: A transaction writes a row, a period and an assignment, then fails
	err := m.WithTx(ctx, func(tx commission.Store) error {
		require.NoError(t, tx.InsertCommission(ctx, row("B2")))
		p := commission.PayPeriod{ID: commission.NewPeriodID(), StudioID: "studio-1", Status: commission.PeriodOpen}
		require.NoError(t, tx.InsertPeriod(ctx, p))
		require.NoError(t, tx.SetCommissionPeriod(ctx, kept.ID, p.ID))
		return boom
	})

	// THEN: Everything is undone
	assert.ErrorIs(t, err, boom)
	rows, err := m.ListCommissions(ctx, commission.CommissionFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, kept, rows[0])

	periods, err := m.ListPeriods(ctx, commission.PeriodFilter{})
	require.NoError(t, err)
	assert.Empty(t, periods)
}

func TestMemory_DuplicateBooking(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.InsertCommission(ctx, row("B1")))

	err := m.InsertCommission(ctx, row("B1"))

	assert.ErrorIs(t, err, commission.ErrDuplicateBooking)
}

func TestMemory_ReturnedRulesAreCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	rule := commission.Rule{
		ID: "rule-1", StudioID: "studio-1", Name: "Volume", IsActive: true,
		Strategy: commission.Tiered{Tiers: []commission.Tier{
			{MinRevenue: 0, MaxRevenue: commission.Bound(50000), Rate: 3000},
			{MinRevenue: 50000, Rate: 2000},
		}},
	}
	require.NoError(t, m.SaveRule(ctx, rule))

	got, err := m.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	got.Strategy.(commission.Tiered).Tiers[0].Rate = 9999

	again, err := m.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, commission.BasisPoints(3000), again.Strategy.(commission.Tiered).Tiers[0].Rate)
}
