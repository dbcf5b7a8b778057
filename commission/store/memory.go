// Package store provides an in-memory commission.TxStore.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/simmonsmd7/inkflow-sub000/commission"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory is a commission.TxStore backed by maps. Every call is serialized by
// one mutex; WithTx holds it for the whole transaction.
type Memory struct {
	mu sync.Mutex
	d  *data
}

type artistKey struct {
	ArtistID commission.ArtistID
	StudioID commission.StudioID
}

// data holds the state and implements commission.Store without locking.
// It is what WithTx hands to the transaction function.
type data struct {
	rules       map[commission.RuleID]commission.Rule
	artistRules map[artistKey]commission.ArtistRule
	settings    map[commission.StudioID]commission.StudioSettings
	commissions map[commission.CommissionID]commission.EarnedCommission
	byBooking   map[commission.BookingID]commission.CommissionID
	periods     map[commission.PeriodID]commission.PayPeriod
}

func NewMemory() *Memory {
	return &Memory{d: &data{
		rules:       make(map[commission.RuleID]commission.Rule),
		artistRules: make(map[artistKey]commission.ArtistRule),
		settings:    make(map[commission.StudioID]commission.StudioSettings),
		commissions: make(map[commission.CommissionID]commission.EarnedCommission),
		byBooking:   make(map[commission.BookingID]commission.CommissionID),
		periods:     make(map[commission.PeriodID]commission.PayPeriod),
	}}
}

var (
	_ commission.TxStore = (*Memory)(nil)
	_ commission.Store   = (*data)(nil)
)

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(_ context.Context, fn func(commission.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.d.clone()
	if err := fn(m.d); err != nil {
		m.d = snapshot
		return err
	}
	return nil
}

func (d *data) clone() *data {
	c := &data{
		rules:       make(map[commission.RuleID]commission.Rule, len(d.rules)),
		artistRules: make(map[artistKey]commission.ArtistRule, len(d.artistRules)),
		settings:    make(map[commission.StudioID]commission.StudioSettings, len(d.settings)),
		commissions: make(map[commission.CommissionID]commission.EarnedCommission, len(d.commissions)),
		byBooking:   make(map[commission.BookingID]commission.CommissionID, len(d.byBooking)),
		periods:     make(map[commission.PeriodID]commission.PayPeriod, len(d.periods)),
	}
	for k, v := range d.rules {
		c.rules[k] = v
	}
	for k, v := range d.artistRules {
		c.artistRules[k] = v
	}
	for k, v := range d.settings {
		c.settings[k] = v
	}
	for k, v := range d.commissions {
		c.commissions[k] = v
	}
	for k, v := range d.byBooking {
		c.byBooking[k] = v
	}
	for k, v := range d.periods {
		c.periods[k] = v
	}
	return c
}

// cloneRule copies tier slices so callers cannot mutate stored rules.
func cloneRule(r commission.Rule) commission.Rule {
	if t, ok := r.Strategy.(commission.Tiered); ok {
		tiers := make([]commission.Tier, len(t.Tiers))
		for i, tier := range t.Tiers {
			if tier.MaxRevenue != nil {
				tier.MaxRevenue = commission.Bound(*tier.MaxRevenue)
			}
			tiers[i] = tier
		}
		r.Strategy = commission.Tiered{Tiers: tiers}
	}
	return r
}

// =============================================================================
// RULES
// =============================================================================

func (d *data) SaveRule(_ context.Context, rule commission.Rule) error {
	d.rules[rule.ID] = cloneRule(rule)
	return nil
}

func (d *data) GetRule(_ context.Context, id commission.RuleID) (commission.Rule, error) {
	r, ok := d.rules[id]
	if !ok {
		return commission.Rule{}, &commission.NotFoundError{Kind: "rule", ID: string(id)}
	}
	return cloneRule(r), nil
}

func (d *data) ListRules(_ context.Context, studioID commission.StudioID) ([]commission.Rule, error) {
	var out []commission.Rule
	for _, r := range d.rules {
		if r.StudioID == studioID && r.DeletedAt == nil {
			out = append(out, cloneRule(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (d *data) DefaultRule(_ context.Context, studioID commission.StudioID) (*commission.Rule, error) {
	for _, r := range d.rules {
		if r.StudioID == studioID && r.IsDefault && r.IsActive && r.DeletedAt == nil {
			c := cloneRule(r)
			return &c, nil
		}
	}
	return nil, nil
}

func (d *data) SaveArtistRule(_ context.Context, a commission.ArtistRule) error {
	d.artistRules[artistKey{a.ArtistID, a.StudioID}] = a
	return nil
}

func (d *data) GetArtistRule(_ context.Context, artistID commission.ArtistID, studioID commission.StudioID) (*commission.ArtistRule, error) {
	a, ok := d.artistRules[artistKey{artistID, studioID}]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (d *data) CountArtistRules(_ context.Context, ruleID commission.RuleID) (int, error) {
	n := 0
	for _, a := range d.artistRules {
		if a.RuleID == ruleID {
			n++
		}
	}
	return n, nil
}

// =============================================================================
// SETTINGS
// =============================================================================

func (d *data) GetStudioSettings(_ context.Context, studioID commission.StudioID) (*commission.StudioSettings, error) {
	s, ok := d.settings[studioID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (d *data) SaveStudioSettings(_ context.Context, s commission.StudioSettings) error {
	d.settings[s.StudioID] = s
	return nil
}

func (d *data) ListStudioSettings(_ context.Context) ([]commission.StudioSettings, error) {
	out := make([]commission.StudioSettings, 0, len(d.settings))
	for _, s := range d.settings {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudioID < out[j].StudioID })
	return out, nil
}

// =============================================================================
// LEDGER
// =============================================================================

func (d *data) InsertCommission(_ context.Context, c commission.EarnedCommission) error {
	if _, ok := d.byBooking[c.BookingID]; ok {
		return commission.ErrDuplicateBooking
	}
	d.commissions[c.ID] = c
	d.byBooking[c.BookingID] = c.ID
	return nil
}

func (d *data) GetCommission(_ context.Context, id commission.CommissionID) (commission.EarnedCommission, error) {
	c, ok := d.commissions[id]
	if !ok {
		return commission.EarnedCommission{}, &commission.NotFoundError{Kind: "commission", ID: string(id)}
	}
	return c, nil
}

func (d *data) GetCommissionByBooking(_ context.Context, bookingID commission.BookingID) (*commission.EarnedCommission, error) {
	id, ok := d.byBooking[bookingID]
	if !ok {
		return nil, nil
	}
	c := d.commissions[id]
	return &c, nil
}

func (d *data) SetCommissionPeriod(_ context.Context, id commission.CommissionID, periodID commission.PeriodID) error {
	c, ok := d.commissions[id]
	if !ok {
		return &commission.NotFoundError{Kind: "commission", ID: string(id)}
	}
	c.PayPeriodID = periodID
	d.commissions[id] = c
	return nil
}

func (d *data) CommissionsForPeriod(ctx context.Context, periodID commission.PeriodID) ([]commission.EarnedCommission, error) {
	return d.ListCommissions(ctx, commission.CommissionFilter{PeriodID: periodID})
}

func (d *data) ListCommissions(_ context.Context, f commission.CommissionFilter) ([]commission.EarnedCommission, error) {
	var out []commission.EarnedCommission
	for _, c := range d.commissions {
		if d.matches(c, f) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (d *data) matches(c commission.EarnedCommission, f commission.CommissionFilter) bool {
	switch {
	case f.StudioID != "" && c.StudioID != f.StudioID,
		f.ArtistID != "" && c.ArtistID != f.ArtistID,
		f.PeriodID != "" && c.PayPeriodID != f.PeriodID,
		f.Unassigned && c.IsAssigned(),
		f.CompletedFrom != nil && c.CompletedAt.Before(*f.CompletedFrom),
		f.CompletedTo != nil && c.CompletedAt.After(*f.CompletedTo),
		f.AfterID != "" && c.ID <= f.AfterID:
		return false
	}
	if f.Paid != nil {
		paid := c.IsAssigned() && d.periods[c.PayPeriodID].Status == commission.PeriodPaid
		if paid != *f.Paid {
			return false
		}
	}
	return true
}

// =============================================================================
// PERIODS
// =============================================================================

func (d *data) InsertPeriod(_ context.Context, p commission.PayPeriod) error {
	d.periods[p.ID] = p
	return nil
}

func (d *data) GetPeriod(_ context.Context, id commission.PeriodID) (commission.PayPeriod, error) {
	p, ok := d.periods[id]
	if !ok {
		return commission.PayPeriod{}, &commission.NotFoundError{Kind: "period", ID: string(id)}
	}
	return p, nil
}

func (d *data) UpdatePeriod(_ context.Context, p commission.PayPeriod) error {
	if _, ok := d.periods[p.ID]; !ok {
		return &commission.NotFoundError{Kind: "period", ID: string(p.ID)}
	}
	d.periods[p.ID] = p
	return nil
}

func (d *data) ListPeriods(_ context.Context, f commission.PeriodFilter) ([]commission.PayPeriod, error) {
	var out []commission.PayPeriod
	for _, p := range d.periods {
		switch {
		case f.StudioID != "" && p.StudioID != f.StudioID,
			f.Status != "" && p.Status != f.Status,
			f.Covering != nil && !p.Covers(*f.Covering),
			f.AfterID != "" && p.ID <= f.AfterID:
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// =============================================================================
// LOCKED ACCESSORS - Memory forwards to data under the mutex
// =============================================================================

func (m *Memory) SaveRule(ctx context.Context, rule commission.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.SaveRule(ctx, rule)
}

func (m *Memory) GetRule(ctx context.Context, id commission.RuleID) (commission.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.GetRule(ctx, id)
}

func (m *Memory) ListRules(ctx context.Context, studioID commission.StudioID) ([]commission.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.ListRules(ctx, studioID)
}

func (m *Memory) DefaultRule(ctx context.Context, studioID commission.StudioID) (*commission.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.DefaultRule(ctx, studioID)
}

func (m *Memory) SaveArtistRule(ctx context.Context, a commission.ArtistRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.SaveArtistRule(ctx, a)
}

func (m *Memory) GetArtistRule(ctx context.Context, artistID commission.ArtistID, studioID commission.StudioID) (*commission.ArtistRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.GetArtistRule(ctx, artistID, studioID)
}

func (m *Memory) CountArtistRules(ctx context.Context, ruleID commission.RuleID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.CountArtistRules(ctx, ruleID)
}

func (m *Memory) GetStudioSettings(ctx context.Context, studioID commission.StudioID) (*commission.StudioSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.GetStudioSettings(ctx, studioID)
}

func (m *Memory) SaveStudioSettings(ctx context.Context, s commission.StudioSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.SaveStudioSettings(ctx, s)
}

func (m *Memory) ListStudioSettings(ctx context.Context) ([]commission.StudioSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.ListStudioSettings(ctx)
}

func (m *Memory) InsertCommission(ctx context.Context, c commission.EarnedCommission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.InsertCommission(ctx, c)
}

func (m *Memory) GetCommission(ctx context.Context, id commission.CommissionID) (commission.EarnedCommission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.GetCommission(ctx, id)
}

func (m *Memory) GetCommissionByBooking(ctx context.Context, bookingID commission.BookingID) (*commission.EarnedCommission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.GetCommissionByBooking(ctx, bookingID)
}

func (m *Memory) SetCommissionPeriod(ctx context.Context, id commission.CommissionID, periodID commission.PeriodID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.SetCommissionPeriod(ctx, id, periodID)
}

func (m *Memory) CommissionsForPeriod(ctx context.Context, periodID commission.PeriodID) ([]commission.EarnedCommission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.CommissionsForPeriod(ctx, periodID)
}

func (m *Memory) ListCommissions(ctx context.Context, f commission.CommissionFilter) ([]commission.EarnedCommission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.ListCommissions(ctx, f)
}

func (m *Memory) InsertPeriod(ctx context.Context, p commission.PayPeriod) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.InsertPeriod(ctx, p)
}

func (m *Memory) GetPeriod(ctx context.Context, id commission.PeriodID) (commission.PayPeriod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.GetPeriod(ctx, id)
}

func (m *Memory) UpdatePeriod(ctx context.Context, p commission.PayPeriod) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.UpdatePeriod(ctx, p)
}

func (m *Memory) ListPeriods(ctx context.Context, f commission.PeriodFilter) ([]commission.PayPeriod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.ListPeriods(ctx, f)
}
