package commission_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/simmonsmd7/inkflow-sub000/commission"
	memstore "github.com/simmonsmd7/inkflow-sub000/commission/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const studio commission.StudioID = "studio-1"

type engine struct {
	store    *memstore.Memory
	recorder *commission.Recorder
	periods  *commission.PeriodManager
	rules    *commission.RuleManager
	logs     *observer.ObservedLogs
}

var fixedNow = time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

func newEngine(t *testing.T) *engine {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	s := memstore.NewMemory()
	e := &engine{
		store:    s,
		recorder: commission.NewRecorder(s, logger),
		periods:  commission.NewPeriodManager(s, logger),
		rules:    commission.NewRuleManager(s, logger),
		logs:     logs,
	}
	now := func() time.Time { return fixedNow }
	e.recorder.Now = now
	e.periods.Now = now
	e.rules.Now = now
	return e
}

func (e *engine) createRule(t *testing.T, name string, s commission.Strategy, isDefault bool) commission.Rule {
	t.Helper()
	r, err := e.rules.Create(context.Background(), commission.RuleInput{
		StudioID:  studio,
		Name:      name,
		Strategy:  s,
		IsDefault: isDefault,
		IsActive:  true,
	})
	require.NoError(t, err)
	return r
}

func completion(booking string, price commission.Cents, completedAt time.Time) commission.CompletionEvent {
	return commission.CompletionEvent{
		BookingID:   commission.BookingID(booking),
		ArtistID:    "artist-1",
		StudioID:    studio,
		FinalPrice:  price,
		CompletedAt: completedAt,
	}
}

func (e *engine) record(t *testing.T, ev commission.CompletionEvent) commission.EarnedCommission {
	t.Helper()
	row, created, err := e.recorder.Record(context.Background(), ev)
	require.NoError(t, err)
	require.True(t, created)
	return row
}
