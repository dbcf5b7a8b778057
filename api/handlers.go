/*
handlers.go - HTTP API handlers for the commission ledger

PURPOSE:
  Exposes the commission engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the commission package.

ENDPOINTS:
  Completions:
    POST   /api/completions                                 Record a completed booking

  Rules:
    GET    /api/studios/{studioID}/rules                    List rules
    POST   /api/studios/{studioID}/rules                    Create rule from JSON
    GET    /api/rules/{id}                                  Get rule
    PUT    /api/rules/{id}                                  Update rule
    DELETE /api/rules/{id}                                  Soft delete rule
    PUT    /api/studios/{studioID}/artists/{artistID}/rule  Assign rule to artist

  Settings:
    GET    /api/studios/{studioID}/settings                 Studio settings
    PUT    /api/studios/{studioID}/settings                 Save studio settings

  Ledger:
    GET    /api/studios/{studioID}/commissions              Filtered, paginated rows
    GET    /api/commissions/{id}                            One row

  Periods:
    GET    /api/studios/{studioID}/periods                  List periods
    POST   /api/studios/{studioID}/periods                  Open a period
    POST   /api/studios/{studioID}/settle                   Implicit assignment
    GET    /api/periods/{id}                                Period details
    POST   /api/periods/{id}/assign                         Assign commissions
    POST   /api/periods/{id}/close                          Close
    POST   /api/periods/{id}/mark-paid                      Mark paid
    GET    /api/periods/{id}/artists                        Per-artist breakdown
    GET    /api/periods/{id}/export.csv                     CSV export

  Scenarios:
    GET    /api/scenarios                                   List demo scenarios
    POST   /api/scenarios/load                              Seed a studio with a scenario

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Recorder, Rules, Periods: engine components over one store
  - Store: read access for ledger listings
  - RuleFactory: JSON to rule conversion

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input shape (dates, page tokens)
  3. Call the engine
  4. Serialize response
  5. Map errors (errors.go)

SECURITY NOTE:
  No authentication or authorization. Studio scoping is by path only.

SEE ALSO:
  - dto.go: Request/response data structures
  - errors.go: Error to status mapping
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/simmonsmd7/inkflow-sub000/commission"
	"github.com/simmonsmd7/inkflow-sub000/factory"
	"github.com/simmonsmd7/inkflow-sub000/pagination"
	"github.com/simmonsmd7/inkflow-sub000/report"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Pinger reports store health for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       commission.TxStore
	Recorder    *commission.Recorder
	Rules       *commission.RuleManager
	Periods     *commission.PeriodManager
	RuleFactory *factory.RuleFactory
	Logger      *zap.Logger

	// Now supplies "today" for settle requests without as_of.
	Now func() time.Time
}

// NewHandler wires the engine components over store. defaults may be nil.
func NewHandler(store commission.TxStore, logger *zap.Logger, defaults commission.SettingsDefaults) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		Store:       store,
		Recorder:    commission.NewRecorder(store, logger),
		Rules:       commission.NewRuleManager(store, logger),
		Periods:     commission.NewPeriodManager(store, logger),
		RuleFactory: factory.NewRuleFactory(),
		Logger:      logger,
		Now:         time.Now,
	}
	h.Recorder.Defaults = defaults
	h.Rules.Defaults = defaults
	h.Periods.Defaults = defaults
	return h
}

// =============================================================================
// COMPLETIONS
// =============================================================================

// RecordCompletion records a completed booking.
// POST /api/completions
func (h *Handler) RecordCompletion(w http.ResponseWriter, r *http.Request) {
	var req CompletionRequest
	if !decode(w, r, &req) {
		return
	}

	ev := commission.CompletionEvent{
		BookingID:        commission.BookingID(strings.TrimSpace(req.BookingID)),
		ArtistID:         commission.ArtistID(strings.TrimSpace(req.ArtistID)),
		StudioID:         commission.StudioID(strings.TrimSpace(req.StudioID)),
		FinalPrice:       commission.Cents(req.FinalPriceCents),
		Tips:             commission.Cents(req.TipsCents),
		TipPaymentMethod: req.TipPaymentMethod,
	}
	if req.CompletedAt != nil {
		ev.CompletedAt = *req.CompletedAt
	}

	row, created, err := h.Recorder.Record(r.Context(), ev)
	if err != nil {
		if commission.IsConflict(err) && row.ID != "" {
			writeJSON(w, http.StatusConflict, ConflictResponse{
				ErrorResponse: ErrorResponse{Error: "Booking already recorded", Details: err.Error()},
				Commission:    toCommissionDTO(row),
			})
			return
		}
		h.writeDomainError(w, "Failed to record completion", err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, CompletionResponse{Created: created, Commission: toCommissionDTO(row)})
}

// =============================================================================
// RULES
// =============================================================================

// ListRules returns the studio's non-deleted rules.
// GET /api/studios/{studioID}/rules
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Rules.List(r.Context(), studioParam(r))
	if err != nil {
		h.writeDomainError(w, "Failed to list rules", err)
		return
	}

	dtos := make([]factory.RuleJSON, 0, len(rules))
	for _, rule := range rules {
		dtos = append(dtos, h.RuleFactory.ToJSON(rule))
	}
	writeJSON(w, http.StatusOK, ListResponse[factory.RuleJSON]{Items: dtos})
}

// CreateRule creates a rule from its JSON definition.
// POST /api/studios/{studioID}/rules
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var rj factory.RuleJSON
	if !decode(w, r, &rj) {
		return
	}

	in, err := h.RuleFactory.FromJSON(studioParam(r), rj)
	if err != nil {
		h.writeDomainError(w, "Invalid rule", err)
		return
	}
	rule, err := h.Rules.Create(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, "Failed to create rule", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.RuleFactory.ToJSON(rule))
}

// GetRule returns one rule.
// GET /api/rules/{id}
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.Rules.Get(r.Context(), commission.RuleID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, "Failed to get rule", err)
		return
	}
	writeJSON(w, http.StatusOK, h.RuleFactory.ToJSON(rule))
}

// UpdateRule replaces a rule's definition. Existing ledger rows keep
// their snapshots.
// PUT /api/rules/{id}
func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := commission.RuleID(chi.URLParam(r, "id"))

	var rj factory.RuleJSON
	if !decode(w, r, &rj) {
		return
	}

	current, err := h.Rules.Get(ctx, id)
	if err != nil {
		h.writeDomainError(w, "Failed to get rule", err)
		return
	}
	in, err := h.RuleFactory.FromJSON(current.StudioID, rj)
	if err != nil {
		h.writeDomainError(w, "Invalid rule", err)
		return
	}
	rule, err := h.Rules.Update(ctx, id, in)
	if err != nil {
		h.writeDomainError(w, "Failed to update rule", err)
		return
	}
	writeJSON(w, http.StatusOK, h.RuleFactory.ToJSON(rule))
}

// DeleteRule soft-deletes a rule no artist is assigned to.
// DELETE /api/rules/{id}
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := h.Rules.Delete(r.Context(), commission.RuleID(chi.URLParam(r, "id"))); err != nil {
		h.writeDomainError(w, "Failed to delete rule", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AssignArtistRule points an artist at a rule.
// PUT /api/studios/{studioID}/artists/{artistID}/rule
func (h *Handler) AssignArtistRule(w http.ResponseWriter, r *http.Request) {
	var req AssignRuleRequest
	if !decode(w, r, &req) {
		return
	}

	ar, err := h.Rules.AssignArtist(r.Context(),
		commission.ArtistID(chi.URLParam(r, "artistID")),
		studioParam(r),
		commission.RuleID(strings.TrimSpace(req.RuleID)))
	if err != nil {
		h.writeDomainError(w, "Failed to assign rule", err)
		return
	}
	writeJSON(w, http.StatusOK, ArtistRuleDTO{
		ArtistID:   string(ar.ArtistID),
		StudioID:   string(ar.StudioID),
		RuleID:     string(ar.RuleID),
		AssignedAt: ar.AssignedAt.UTC().Format(time.RFC3339),
	})
}

// =============================================================================
// SETTINGS
// =============================================================================

// GetSettings returns the studio's settings or the configured defaults.
// GET /api/studios/{studioID}/settings
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.Rules.Settings(r.Context(), studioParam(r))
	if err != nil {
		h.writeDomainError(w, "Failed to get settings", err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsDTO(s))
}

// PutSettings saves the studio's settings. Omitted fields keep their
// current value.
// PUT /api/studios/{studioID}/settings
func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	studioID := studioParam(r)

	var req SettingsDTO
	if !decode(w, r, &req) {
		return
	}

	s, err := h.Rules.Settings(ctx, studioID)
	if err != nil {
		h.writeDomainError(w, "Failed to get settings", err)
		return
	}
	s.StudioID = studioID
	if req.TipArtistShare != nil {
		share, err := commission.PercentToBasisPoints(*req.TipArtistShare)
		if err != nil {
			h.writeDomainError(w, "Invalid settings", &commission.ValidationError{Field: "tip_artist_share", Reason: err.Error()})
			return
		}
		s.TipArtistShare = share
	}
	if req.PaySchedule != "" {
		schedule, err := commission.ParseSchedule(req.PaySchedule)
		if err != nil {
			h.writeDomainError(w, "Invalid settings", err)
			return
		}
		s.Schedule = schedule
	}
	if req.ScheduleAnchor != "" {
		anchor, err := parseDate("schedule_anchor", req.ScheduleAnchor)
		if err != nil {
			h.writeDomainError(w, "Invalid settings", err)
			return
		}
		s.ScheduleAnchor = anchor
	}

	saved, err := h.Rules.SaveSettings(ctx, s)
	if err != nil {
		h.writeDomainError(w, "Failed to save settings", err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsDTO(saved))
}

// =============================================================================
// LEDGER
// =============================================================================

// ListCommissions returns one page of the studio's ledger rows.
// GET /api/studios/{studioID}/commissions
//
// Query: artist_id, period_id, from, to (YYYY-MM-DD, inclusive),
// paid (true|false), page_size, page_token.
func (h *Handler) ListCommissions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := pagination.Parse(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid pagination", err)
		return
	}

	filter := commission.CommissionFilter{
		StudioID: studioParam(r),
		ArtistID: commission.ArtistID(q.Get("artist_id")),
		PeriodID: commission.PeriodID(q.Get("period_id")),
		AfterID:  commission.CommissionID(page.Cursor.After),
		Limit:    page.PageSize + 1,
	}
	if raw := q.Get("from"); raw != "" {
		from, err := parseDate("from", raw)
		if err != nil {
			h.writeDomainError(w, "Invalid filter", err)
			return
		}
		filter.CompletedFrom = &from
	}
	if raw := q.Get("to"); raw != "" {
		to, err := parseDate("to", raw)
		if err != nil {
			h.writeDomainError(w, "Invalid filter", err)
			return
		}
		endOfDay := to.AddDate(0, 0, 1).Add(-time.Nanosecond)
		filter.CompletedTo = &endOfDay
	}
	if raw := q.Get("paid"); raw != "" {
		paid, err := strconv.ParseBool(raw)
		if err != nil {
			h.writeDomainError(w, "Invalid filter", &commission.ValidationError{Field: "paid", Reason: "must be true or false"})
			return
		}
		filter.Paid = &paid
	}

	rows, err := h.Store.ListCommissions(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, "Failed to list commissions", err)
		return
	}
	rows, next := pagination.Page(rows, page.PageSize, func(c commission.EarnedCommission) string { return string(c.ID) })

	dtos := make([]CommissionDTO, 0, len(rows))
	for _, c := range rows {
		dtos = append(dtos, toCommissionDTO(c))
	}
	writeJSON(w, http.StatusOK, ListResponse[CommissionDTO]{Items: dtos, NextPageToken: next})
}

// GetCommission returns one ledger row.
// GET /api/commissions/{id}
func (h *Handler) GetCommission(w http.ResponseWriter, r *http.Request) {
	row, err := h.Store.GetCommission(r.Context(), commission.CommissionID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, "Failed to get commission", err)
		return
	}
	writeJSON(w, http.StatusOK, toCommissionDTO(row))
}

// =============================================================================
// PERIODS
// =============================================================================

// ListPeriods returns one page of the studio's pay periods.
// GET /api/studios/{studioID}/periods
func (h *Handler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := pagination.Parse(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid pagination", err)
		return
	}

	filter := commission.PeriodFilter{
		StudioID: studioParam(r),
		AfterID:  commission.PeriodID(page.Cursor.After),
		Limit:    page.PageSize + 1,
	}
	if raw := q.Get("status"); raw != "" {
		status := commission.PeriodStatus(strings.ToLower(raw))
		switch status {
		case commission.PeriodOpen, commission.PeriodClosed, commission.PeriodPaid:
			filter.Status = status
		default:
			h.writeDomainError(w, "Invalid filter", &commission.ValidationError{Field: "status", Reason: "must be open, closed or paid"})
			return
		}
	}

	periods, err := h.Periods.List(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, "Failed to list periods", err)
		return
	}
	periods, next := pagination.Page(periods, page.PageSize, func(p commission.PayPeriod) string { return string(p.ID) })

	dtos := make([]PeriodDTO, 0, len(periods))
	for _, p := range periods {
		dtos = append(dtos, toPeriodDTO(p))
	}
	writeJSON(w, http.StatusOK, ListResponse[PeriodDTO]{Items: dtos, NextPageToken: next})
}

// CreatePeriod opens a period for explicit assignment.
// POST /api/studios/{studioID}/periods
func (h *Handler) CreatePeriod(w http.ResponseWriter, r *http.Request) {
	var req CreatePeriodRequest
	if !decode(w, r, &req) {
		return
	}

	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		h.writeDomainError(w, "Invalid period", err)
		return
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		h.writeDomainError(w, "Invalid period", err)
		return
	}

	p, err := h.Periods.Create(r.Context(), studioParam(r), start, end)
	if err != nil {
		h.writeDomainError(w, "Failed to create period", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPeriodDTO(p))
}

// Settle assigns the studio's unassigned rows by pay schedule.
// POST /api/studios/{studioID}/settle
func (h *Handler) Settle(w http.ResponseWriter, r *http.Request) {
	var req SettleRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}

	asOf := h.Now()
	if req.AsOf != "" {
		var err error
		if asOf, err = parseDate("as_of", req.AsOf); err != nil {
			h.writeDomainError(w, "Invalid settlement", err)
			return
		}
	}

	result, err := h.Periods.Settle(r.Context(), studioParam(r), asOf)
	if err != nil {
		h.writeDomainError(w, "Failed to settle", err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementDTO(result))
}

// GetPeriod returns one period with its derived totals.
// GET /api/periods/{id}
func (h *Handler) GetPeriod(w http.ResponseWriter, r *http.Request) {
	p, err := h.Periods.Get(r.Context(), periodParam(r))
	if err != nil {
		h.writeDomainError(w, "Failed to get period", err)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodDTO(p))
}

// AssignCommissions adds ledger rows to an open period.
// POST /api/periods/{id}/assign
func (h *Handler) AssignCommissions(w http.ResponseWriter, r *http.Request) {
	var req AssignRequest
	if !decode(w, r, &req) {
		return
	}

	ids := make([]commission.CommissionID, len(req.CommissionIDs))
	for i, id := range req.CommissionIDs {
		ids[i] = commission.CommissionID(strings.TrimSpace(id))
	}

	p, err := h.Periods.Assign(r.Context(), periodParam(r), ids)
	if err != nil {
		h.writeDomainError(w, "Failed to assign commissions", err)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodDTO(p))
}

// ClosePeriod freezes a period's totals.
// POST /api/periods/{id}/close
func (h *Handler) ClosePeriod(w http.ResponseWriter, r *http.Request) {
	p, err := h.Periods.Close(r.Context(), periodParam(r))
	if err != nil {
		h.writeDomainError(w, "Failed to close period", err)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodDTO(p))
}

// MarkPeriodPaid records the payout of a closed period.
// POST /api/periods/{id}/mark-paid
func (h *Handler) MarkPeriodPaid(w http.ResponseWriter, r *http.Request) {
	var req MarkPaidRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}

	p, err := h.Periods.MarkPaid(r.Context(), periodParam(r), strings.TrimSpace(req.PayoutReference))
	if err != nil {
		h.writeDomainError(w, "Failed to mark period paid", err)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodDTO(p))
}

// PeriodBreakdown returns per-artist totals for a period.
// GET /api/periods/{id}/artists
func (h *Handler) PeriodBreakdown(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Periods.Breakdown(r.Context(), periodParam(r))
	if err != nil {
		h.writeDomainError(w, "Failed to get breakdown", err)
		return
	}

	dtos := make([]ArtistTotalsDTO, 0, len(rows))
	for _, a := range rows {
		dtos = append(dtos, ArtistTotalsDTO{
			ArtistID:  string(a.ArtistID),
			Totals:    toTotalsDTO(a.Totals),
			OwedCents: int64(a.Totals.ArtistPayout + a.Totals.TipArtistShare),
		})
	}
	writeJSON(w, http.StatusOK, ListResponse[ArtistTotalsDTO]{Items: dtos})
}

// ExportPeriod streams a period's ledger rows as CSV.
// GET /api/periods/{id}/export.csv
func (h *Handler) ExportPeriod(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := periodParam(r)

	if _, err := h.Periods.Get(ctx, id); err != nil {
		h.writeDomainError(w, "Failed to get period", err)
		return
	}
	rows, err := h.Store.CommissionsForPeriod(ctx, id)
	if err != nil {
		h.writeDomainError(w, "Failed to export period", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "period-"+string(id)+".csv"))
	w.WriteHeader(http.StatusOK)
	if err := report.Commissions(w, rows, report.CSV); err != nil {
		h.Logger.Warn("csv export interrupted", zap.String("period_id", string(id)), zap.Error(err))
	}
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports liveness and, when the store supports it, connectivity.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Store.(Pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Store unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func studioParam(r *http.Request) commission.StudioID {
	return commission.StudioID(chi.URLParam(r, "studioID"))
}

func periodParam(r *http.Request) commission.PeriodID {
	return commission.PeriodID(chi.URLParam(r, "id"))
}

// parseDate reads a YYYY-MM-DD calendar day in UTC.
func parseDate(field, raw string) (time.Time, error) {
	d, err := time.Parse(time.DateOnly, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, &commission.ValidationError{Field: field, Reason: "must be a YYYY-MM-DD date"}
	}
	return d, nil
}
