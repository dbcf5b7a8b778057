/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Money is always integer
  cents (fields end in _cents). Percentages are decimal strings ("40.00").
  Dates are YYYY-MM-DD, timestamps RFC 3339.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Completions:  CompletionRequest, CompletionResponse, CommissionDTO
  Rules:        factory.RuleJSON (request and response), AssignRuleRequest
  Settings:     SettingsDTO
  Periods:      PeriodDTO, TotalsDTO, CreatePeriodRequest, AssignRequest,
                MarkPaidRequest, SettleRequest, SettlementDTO, ArtistTotalsDTO
  Lists:        ListResponse

VALIDATION:
  Validation is done in handlers and the engine, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/rule.go: RuleJSON type
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/simmonsmd7/inkflow-sub000/commission"
)

// =============================================================================
// COMPLETIONS
// =============================================================================

// CompletionRequest is the booking-completed event.
type CompletionRequest struct {
	BookingID        string     `json:"booking_id"`
	ArtistID         string     `json:"artist_id"`
	StudioID         string     `json:"studio_id"`
	FinalPriceCents  int64      `json:"final_price_cents"`
	TipsCents        int64      `json:"tips_cents"`
	TipPaymentMethod string     `json:"tip_payment_method,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// CompletionResponse reports the ledger row and whether it was new.
type CompletionResponse struct {
	Created    bool          `json:"created"`
	Commission CommissionDTO `json:"commission"`
}

// RuleSnapshotDTO is the rule as it was when the row was computed.
type RuleSnapshotDTO struct {
	RuleID       string `json:"rule_id"`
	RuleName     string `json:"rule_name"`
	Kind         string `json:"kind"`
	Percentage   string `json:"percentage,omitempty"`
	FlatFeeCents int64  `json:"flat_fee_cents,omitempty"`
	TierIndex    *int   `json:"tier_index,omitempty"`
}

// CommissionDTO represents a ledger row in API responses.
type CommissionDTO struct {
	ID                    string          `json:"id"`
	BookingID             string          `json:"booking_id"`
	ArtistID              string          `json:"artist_id"`
	StudioID              string          `json:"studio_id"`
	Rule                  RuleSnapshotDTO `json:"rule"`
	ServiceTotalCents     int64           `json:"service_total_cents"`
	StudioCommissionCents int64           `json:"studio_commission_cents"`
	ArtistPayoutCents     int64           `json:"artist_payout_cents"`
	TipsCents             int64           `json:"tips_cents"`
	TipArtistShareCents   int64           `json:"tip_artist_share_cents"`
	TipStudioShareCents   int64           `json:"tip_studio_share_cents"`
	TipPaymentMethod      string          `json:"tip_payment_method,omitempty"`
	CalculationTrace      string          `json:"calculation_trace"`
	CompletedAt           string          `json:"completed_at"`
	CreatedAt             string          `json:"created_at"`
	PayPeriodID           string          `json:"pay_period_id,omitempty"`
}

func toCommissionDTO(c commission.EarnedCommission) CommissionDTO {
	snap := RuleSnapshotDTO{
		RuleID:       string(c.Snapshot.RuleID),
		RuleName:     c.Snapshot.RuleName,
		Kind:         string(c.Snapshot.Kind),
		FlatFeeCents: int64(c.Snapshot.FlatFee),
	}
	if c.Snapshot.Kind != commission.KindFlatFee {
		snap.Percentage = c.Snapshot.Rate.Percent().StringFixed(2)
	}
	if c.Snapshot.TierIndex >= 0 && c.Snapshot.Kind == commission.KindTiered {
		idx := c.Snapshot.TierIndex
		snap.TierIndex = &idx
	}
	return CommissionDTO{
		ID:                    string(c.ID),
		BookingID:             string(c.BookingID),
		ArtistID:              string(c.ArtistID),
		StudioID:              string(c.StudioID),
		Rule:                  snap,
		ServiceTotalCents:     int64(c.ServiceTotal),
		StudioCommissionCents: int64(c.StudioCommission),
		ArtistPayoutCents:     int64(c.ArtistPayout),
		TipsCents:             int64(c.Tips),
		TipArtistShareCents:   int64(c.TipArtistShare),
		TipStudioShareCents:   int64(c.TipStudioShare),
		TipPaymentMethod:      c.TipPaymentMethod,
		CalculationTrace:      c.CalculationTrace,
		CompletedAt:           c.CompletedAt.UTC().Format(time.RFC3339),
		CreatedAt:             c.CreatedAt.UTC().Format(time.RFC3339),
		PayPeriodID:           string(c.PayPeriodID),
	}
}

// =============================================================================
// RULES & SETTINGS
// =============================================================================

// AssignRuleRequest points an artist at a rule.
type AssignRuleRequest struct {
	RuleID string `json:"rule_id"`
}

// ArtistRuleDTO is an artist's rule assignment.
type ArtistRuleDTO struct {
	ArtistID   string `json:"artist_id"`
	StudioID   string `json:"studio_id"`
	RuleID     string `json:"rule_id"`
	AssignedAt string `json:"assigned_at"`
}

// SettingsDTO is a studio's engine settings. TipArtistShare is a percent.
type SettingsDTO struct {
	StudioID       string           `json:"studio_id"`
	TipArtistShare *decimal.Decimal `json:"tip_artist_share"`
	PaySchedule    string           `json:"pay_schedule"`
	ScheduleAnchor string           `json:"schedule_anchor"`
}

func toSettingsDTO(s commission.StudioSettings) SettingsDTO {
	share := s.TipArtistShare.Percent()
	return SettingsDTO{
		StudioID:       string(s.StudioID),
		TipArtistShare: &share,
		PaySchedule:    string(s.Schedule),
		ScheduleAnchor: s.ScheduleAnchor.Format(time.DateOnly),
	}
}

// =============================================================================
// PERIODS
// =============================================================================

// TotalsDTO aggregates ledger rows.
type TotalsDTO struct {
	Count                 int   `json:"count"`
	ServiceTotalCents     int64 `json:"service_total_cents"`
	StudioCommissionCents int64 `json:"studio_commission_cents"`
	ArtistPayoutCents     int64 `json:"artist_payout_cents"`
	TipsCents             int64 `json:"tips_cents"`
	TipArtistShareCents   int64 `json:"tip_artist_share_cents"`
	TipStudioShareCents   int64 `json:"tip_studio_share_cents"`
}

func toTotalsDTO(t commission.Totals) TotalsDTO {
	return TotalsDTO{
		Count:                 t.Count,
		ServiceTotalCents:     int64(t.ServiceTotal),
		StudioCommissionCents: int64(t.StudioCommission),
		ArtistPayoutCents:     int64(t.ArtistPayout),
		TipsCents:             int64(t.Tips),
		TipArtistShareCents:   int64(t.TipArtistShare),
		TipStudioShareCents:   int64(t.TipStudioShare),
	}
}

// PeriodDTO represents a pay period.
type PeriodDTO struct {
	ID              string    `json:"id"`
	StudioID        string    `json:"studio_id"`
	StartDate       string    `json:"start_date"`
	EndDate         string    `json:"end_date"`
	Status          string    `json:"status"`
	Totals          TotalsDTO `json:"totals"`
	CreatedAt       string    `json:"created_at"`
	ClosedAt        *string   `json:"closed_at,omitempty"`
	PaidAt          *string   `json:"paid_at,omitempty"`
	PayoutReference string    `json:"payout_reference,omitempty"`
}

func toPeriodDTO(p commission.PayPeriod) PeriodDTO {
	dto := PeriodDTO{
		ID:              string(p.ID),
		StudioID:        string(p.StudioID),
		StartDate:       p.StartDate.Format(time.DateOnly),
		EndDate:         p.EndDate.Format(time.DateOnly),
		Status:          string(p.Status),
		Totals:          toTotalsDTO(p.Totals),
		CreatedAt:       p.CreatedAt.UTC().Format(time.RFC3339),
		PayoutReference: p.PayoutReference,
	}
	if p.ClosedAt != nil {
		dto.ClosedAt = strPtr(p.ClosedAt.UTC().Format(time.RFC3339))
	}
	if p.PaidAt != nil {
		dto.PaidAt = strPtr(p.PaidAt.UTC().Format(time.RFC3339))
	}
	return dto
}

// CreatePeriodRequest opens a period. Dates are inclusive.
type CreatePeriodRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// AssignRequest adds commissions to a period.
type AssignRequest struct {
	CommissionIDs []string `json:"commission_ids"`
}

// MarkPaidRequest records the payout.
type MarkPaidRequest struct {
	PayoutReference string `json:"payout_reference"`
}

// SettleRequest runs implicit assignment. AsOf defaults to today.
type SettleRequest struct {
	AsOf string `json:"as_of,omitempty"`
}

// SettlementDTO reports a settlement run.
type SettlementDTO struct {
	StudioID string   `json:"studio_id"`
	AsOf     string   `json:"as_of"`
	Assigned int      `json:"assigned"`
	Periods  []string `json:"periods"`
	Created  []string `json:"created_periods"`
	Skipped  []string `json:"skipped_commission_ids"`
}

func toSettlementDTO(r commission.SettlementResult) SettlementDTO {
	dto := SettlementDTO{
		StudioID: string(r.StudioID),
		AsOf:     r.AsOf.Format(time.DateOnly),
		Assigned: r.Assigned,
		Periods:  make([]string, len(r.Periods)),
		Created:  make([]string, len(r.Created)),
		Skipped:  make([]string, len(r.Skipped)),
	}
	for i, id := range r.Periods {
		dto.Periods[i] = string(id)
	}
	for i, id := range r.Created {
		dto.Created[i] = string(id)
	}
	for i, id := range r.Skipped {
		dto.Skipped[i] = string(id)
	}
	return dto
}

// ArtistTotalsDTO is one artist's share of a period.
type ArtistTotalsDTO struct {
	ArtistID string    `json:"artist_id"`
	Totals   TotalsDTO `json:"totals"`
	// OwedCents is the artist payout plus the artist's share of tips.
	OwedCents int64 `json:"owed_cents"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the request body for loading a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
	StudioID   string `json:"studio_id,omitempty"`
}

// ScenarioResultDTO reports what a scenario created.
type ScenarioResultDTO struct {
	ScenarioID  string   `json:"scenario_id"`
	StudioID    string   `json:"studio_id"`
	Rules       []string `json:"rule_ids"`
	Commissions int      `json:"commissions"`
	Periods     []string `json:"period_ids"`
}

// =============================================================================
// LISTS & ERRORS
// =============================================================================

// ListResponse is a page of items.
type ListResponse[T any] struct {
	Items         []T    `json:"items"`
	NextPageToken string `json:"next_page_token,omitempty"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// ConflictResponse carries the stored row when a completion disagrees
// with it.
type ConflictResponse struct {
	ErrorResponse
	Commission CommissionDTO `json:"commission"`
}

func strPtr(s string) *string {
	return &s
}
