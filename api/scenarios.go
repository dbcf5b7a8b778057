/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built studios populated with realistic data for demos and
	manual testing. Each scenario creates rules from their JSON definitions,
	saves studio settings, records completed bookings through the recorder
	and moves some of them through the pay period lifecycle.

AVAILABLE SCENARIOS:

	house-split:  40% house percentage, 80% of tips to artists, semimonthly settlement
	volume-tiers: Tiered default with a senior artist on a personal rule, explicit period
	walk-in-flat: Flat 25.00 fee per booking, weekly settlement, first week paid

HOW SCENARIOS WORK:
 1. Refuse studios that already have rules (the ledger cannot be reset)
 2. Create rules via factory JSON
 3. Save studio settings
 4. Record completions dated in the past few weeks
 5. Settle or assign explicitly, then close/pay where the scenario says so

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "house-split", "studio_id": "demo-studio"}

USAGE VIA CLI:

	inkflow-ledger seed --scenario house-split --studio demo-studio

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description and loader
 2. Write the loader: loadXxxScenario(ctx, h, s)

SEE ALSO:
  - handlers.go: Engine wiring
  - factory/rule.go: Rule JSON definitions
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/simmonsmd7/inkflow-sub000/commission"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenarioLoader func(ctx context.Context, h *Handler, s *seeder) error

type scenario struct {
	ScenarioDTO
	load scenarioLoader
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "house-split",
			Name:        "House Split",
			Description: "40% house percentage, 80% of tips to artists, semimonthly settlement",
		},
		load: loadHouseSplitScenario,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "volume-tiers",
			Name:        "Volume Tiers",
			Description: "Tiered default rule, a senior artist on a personal rule, explicit closed period",
		},
		load: loadVolumeTiersScenario,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "walk-in-flat",
			Name:        "Walk-in Flat Fee",
			Description: "Flat 25.00 studio fee per booking, weekly settlement, first week paid",
		},
		load: loadWalkInFlatScenario,
	},
}

// ErrUnknownScenario is returned by Seed for an unlisted scenario ID.
var ErrUnknownScenario = errors.New("unknown scenario")

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	out := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		out[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, ListResponse[ScenarioDTO]{Items: out})
}

// LoadScenario seeds a studio with a predefined scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.Seed(r.Context(), req.ScenarioID, commission.StudioID(strings.TrimSpace(req.StudioID)))
	switch {
	case errors.Is(err, ErrUnknownScenario):
		writeError(w, http.StatusBadRequest, "Unknown scenario", err)
		return
	case err != nil:
		h.writeDomainError(w, "Failed to load scenario", err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// Seed loads scenario id into studioID, which defaults to "demo-<id>".
// A studio that already has rules is refused with a conflict.
func (h *Handler) Seed(ctx context.Context, id string, studioID commission.StudioID) (ScenarioResultDTO, error) {
	var sc *scenario
	for i := range scenarios {
		if scenarios[i].ID == id {
			sc = &scenarios[i]
			break
		}
	}
	if sc == nil {
		return ScenarioResultDTO{}, fmt.Errorf("%w: %q", ErrUnknownScenario, id)
	}
	if studioID == "" {
		studioID = commission.StudioID("demo-" + id)
	}

	existing, err := h.Rules.List(ctx, studioID)
	if err != nil {
		return ScenarioResultDTO{}, err
	}
	if len(existing) > 0 {
		return ScenarioResultDTO{}, fmt.Errorf("studio %s already has %d rules: %w", studioID, len(existing), commission.ErrConflict)
	}

	s := &seeder{studio: studioID, today: commission.DateOf(h.Now())}
	if err := sc.load(ctx, h, s); err != nil {
		return ScenarioResultDTO{}, fmt.Errorf("load scenario %s: %w", id, err)
	}

	h.Logger.Info("scenario loaded",
		zap.String("scenario", id),
		zap.String("studio_id", string(studioID)),
		zap.Int("commissions", s.recorded),
		zap.Int("periods", len(s.periods)))
	return ScenarioResultDTO{
		ScenarioID:  id,
		StudioID:    string(studioID),
		Rules:       s.rules,
		Commissions: s.recorded,
		Periods:     s.periods,
	}, nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func loadHouseSplitScenario(ctx context.Context, h *Handler, s *seeder) error {
	// Studio keeps 40%; the artist keeps 60% plus 80% of tips
	if _, err := s.rule(ctx, h, `{"name": "House split", "kind": "percentage", "percentage": "40", "is_default": true}`); err != nil {
		return err
	}
	if err := s.settings(ctx, h, 8000, commission.ScheduleSemiMonthly); err != nil {
		return err
	}

	bookings := []booking{
		{artist: "ava", daysAgo: 24, price: 50000, tips: 2500, method: "card"},
		{artist: "ben", daysAgo: 17, price: 32000, tips: 0},
		{artist: "ava", daysAgo: 9, price: 125000, tips: 10001, method: "cash"},
		{artist: "ben", daysAgo: 2, price: 18000, tips: 1500, method: "card"},
	}
	if err := s.record(ctx, h, bookings); err != nil {
		return err
	}
	return s.settle(ctx, h)
}

func loadVolumeTiersScenario(ctx context.Context, h *Handler, s *seeder) error {
	// Under 500.00 the studio keeps 30%, up to 1500.00 25%, above that 20%
	if _, err := s.rule(ctx, h, `{
		"name": "Volume tiers",
		"kind": "tiered",
		"is_default": true,
		"tiers": [
			{"min_revenue_cents": 0, "max_revenue_cents": 50000, "percentage": 30},
			{"min_revenue_cents": 50000, "max_revenue_cents": 150000, "percentage": 25},
			{"min_revenue_cents": 150000, "max_revenue_cents": null, "percentage": 20}
		]
	}`); err != nil {
		return err
	}
	senior, err := s.rule(ctx, h, `{"name": "Senior artist", "kind": "percentage", "percentage": "30"}`)
	if err != nil {
		return err
	}
	if _, err := h.Rules.AssignArtist(ctx, "cleo", s.studio, senior); err != nil {
		return err
	}

	bookings := []booking{
		{artist: "dev", daysAgo: 20, price: 45000},
		{artist: "cleo", daysAgo: 15, price: 80000, tips: 4000, method: "card"},
		{artist: "dev", daysAgo: 12, price: 120000, tips: 6000, method: "card"},
		{artist: "dev", daysAgo: 6, price: 200000, tips: 0},
	}
	if err := s.record(ctx, h, bookings); err != nil {
		return err
	}

	// One explicit period covering the last four weeks, then closed
	p, err := h.Periods.Create(ctx, s.studio, s.day(27), s.day(0))
	if err != nil {
		return err
	}
	s.periods = append(s.periods, string(p.ID))
	if _, err := h.Periods.Assign(ctx, p.ID, s.commissions); err != nil {
		return err
	}
	_, err = h.Periods.Close(ctx, p.ID)
	return err
}

func loadWalkInFlatScenario(ctx context.Context, h *Handler, s *seeder) error {
	if _, err := s.rule(ctx, h, `{"name": "Walk-in", "kind": "flat_fee", "flat_fee_amount_cents": 2500, "is_default": true}`); err != nil {
		return err
	}
	if err := s.settings(ctx, h, commission.FullShare, commission.ScheduleWeekly); err != nil {
		return err
	}

	bookings := []booking{
		{artist: "eli", daysAgo: 15, price: 9000, tips: 1000, method: "cash"},
		{artist: "fay", daysAgo: 15, price: 6000},
		{artist: "eli", daysAgo: 8, price: 12000},
		{artist: "fay", daysAgo: 1, price: 7500, tips: 500, method: "card"},
	}
	if err := s.record(ctx, h, bookings); err != nil {
		return err
	}
	if err := s.settle(ctx, h); err != nil {
		return err
	}

	// Pay out the oldest week
	if len(s.periods) == 0 {
		return nil
	}
	first := commission.PeriodID(s.periods[0])
	if _, err := h.Periods.Close(ctx, first); err != nil {
		return err
	}
	_, err := h.Periods.MarkPaid(ctx, first, "CASH-DRAWER-1")
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

type booking struct {
	artist  commission.ArtistID
	daysAgo int
	price   commission.Cents
	tips    commission.Cents
	method  string
}

// seeder accumulates what a scenario created.
type seeder struct {
	studio commission.StudioID
	today  time.Time

	rules       []string
	commissions []commission.CommissionID
	recorded    int
	periods     []string
}

func (s *seeder) day(daysAgo int) time.Time {
	return s.today.AddDate(0, 0, -daysAgo)
}

func (s *seeder) rule(ctx context.Context, h *Handler, ruleJSON string) (commission.RuleID, error) {
	in, err := h.RuleFactory.ParseRule(s.studio, ruleJSON)
	if err != nil {
		return "", err
	}
	rule, err := h.Rules.Create(ctx, in)
	if err != nil {
		return "", err
	}
	s.rules = append(s.rules, string(rule.ID))
	return rule.ID, nil
}

func (s *seeder) settings(ctx context.Context, h *Handler, tipShare commission.BasisPoints, schedule commission.PaySchedule) error {
	_, err := h.Rules.SaveSettings(ctx, commission.StudioSettings{
		StudioID:       s.studio,
		TipArtistShare: tipShare,
		Schedule:       schedule,
	})
	return err
}

func (s *seeder) record(ctx context.Context, h *Handler, bookings []booking) error {
	for i, b := range bookings {
		row, _, err := h.Recorder.Record(ctx, commission.CompletionEvent{
			BookingID:        commission.BookingID(fmt.Sprintf("%s-booking-%03d", s.studio, i+1)),
			ArtistID:         b.artist,
			StudioID:         s.studio,
			FinalPrice:       b.price,
			Tips:             b.tips,
			TipPaymentMethod: b.method,
			CompletedAt:      s.day(b.daysAgo).Add(15 * time.Hour),
		})
		if err != nil {
			return err
		}
		s.commissions = append(s.commissions, row.ID)
		s.recorded++
	}
	return nil
}

func (s *seeder) settle(ctx context.Context, h *Handler) error {
	result, err := h.Periods.Settle(ctx, s.studio, s.today)
	if err != nil {
		return err
	}
	for _, id := range result.Created {
		s.periods = append(s.periods, string(id))
	}
	return nil
}
