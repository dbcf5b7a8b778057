/*
recorder.go - Ledger recorder for completed bookings

PURPOSE:
  Turns a booking completion event into exactly one EarnedCommission row.
  This is the ONLY writer of ledger rows.

FLOW:
  1. Existing row for the booking? Return it unchanged (idempotent).
     If the event disagrees with the stored row, the stored row still wins
     and a *BookingConflictError is returned with it.
  2. Eligibility: an artist and a positive final price are required.
  3. Resolve the rule (artist assignment, then studio default).
  4. Calculate the commission and split the tips.
  5. Insert the row with a frozen rule snapshot.

CONCURRENCY:
  The recorder holds no locks. Two concurrent deliveries of the same event
  both pass step 1; the store's booking_id uniqueness rejects the second
  insert with ErrDuplicateBooking, and the loser returns the winner's row.

NO RETRIES:
  Callers (the booking workflow's event delivery) own retry policy.
*/
package commission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CompletionEvent is emitted by the booking workflow when a booking completes.
type CompletionEvent struct {
	BookingID        BookingID
	ArtistID         ArtistID
	StudioID         StudioID
	FinalPrice       Cents
	Tips             Cents
	TipPaymentMethod string
	CompletedAt      time.Time
}

// Recorder writes ledger rows.
type Recorder struct {
	Store    Store
	Resolver *Resolver
	Logger   *zap.Logger
	Defaults SettingsDefaults

	// Now stamps CreatedAt. Defaults to time.Now.
	Now func() time.Time
}

// NewRecorder creates a recorder with a resolver over the same store.
func NewRecorder(store Store, logger *zap.Logger) *Recorder {
	return &Recorder{
		Store:    store,
		Resolver: NewResolver(store),
		Logger:   orNop(logger),
		Now:      time.Now,
	}
}

// Record records a completion. The bool reports whether a new row was
// written; false means the returned row already existed.
func (r *Recorder) Record(ctx context.Context, ev CompletionEvent) (_ EarnedCommission, created bool, err error) {
	ctx, span := tracer.Start(ctx, "commission.Record")
	span.SetAttributes(attribute.String("booking_id", string(ev.BookingID)))
	defer func() {
		span.SetAttributes(attribute.Bool("created", created))
		endSpan(span, err)
	}()

	if ev.BookingID == "" {
		return EarnedCommission{}, false, invalid("booking_id", "is required")
	}

	existing, err := r.Store.GetCommissionByBooking(ctx, ev.BookingID)
	if err != nil {
		return EarnedCommission{}, false, fmt.Errorf("load booking %s: %w", ev.BookingID, err)
	}
	if existing != nil {
		return r.existing(*existing, ev)
	}

	if ev.ArtistID == "" {
		return EarnedCommission{}, false, &NotEligibleError{BookingID: ev.BookingID, Reason: "booking has no artist"}
	}
	if ev.FinalPrice <= 0 {
		return EarnedCommission{}, false, &NotEligibleError{
			BookingID: ev.BookingID,
			Reason:    fmt.Sprintf("final price %s is not positive", ev.FinalPrice),
		}
	}
	if ev.StudioID == "" {
		return EarnedCommission{}, false, invalid("studio_id", "is required")
	}
	if ev.Tips < 0 {
		return EarnedCommission{}, false, invalid("tips_cents", "must not be negative")
	}

	rule, err := r.Resolver.Resolve(ctx, ev.ArtistID, ev.StudioID)
	if err != nil {
		return EarnedCommission{}, false, err
	}
	settings, err := settingsOrDefault(ctx, r.Store, r.Defaults, ev.StudioID)
	if err != nil {
		return EarnedCommission{}, false, fmt.Errorf("load studio settings: %w", err)
	}

	calc := Calculate(rule, ev.FinalPrice)
	split := SplitTips(ev.Tips, settings.TipArtistShare)

	completedAt := ev.CompletedAt
	now := r.Now().UTC()
	if completedAt.IsZero() {
		completedAt = now
	}

	row := EarnedCommission{
		ID:        NewCommissionID(),
		BookingID: ev.BookingID,
		ArtistID:  ev.ArtistID,
		StudioID:  ev.StudioID,
		Snapshot: RuleSnapshot{
			RuleID:    rule.ID,
			RuleName:  rule.Name,
			Kind:      rule.Kind(),
			Rate:      calc.Rate,
			TierIndex: calc.TierIndex,
		},
		ServiceTotal:     ev.FinalPrice,
		StudioCommission: calc.Commission,
		ArtistPayout:     calc.ArtistPayout,
		Tips:             ev.Tips,
		TipArtistShare:   split.Artist,
		TipStudioShare:   split.Studio,
		TipPaymentMethod: ev.TipPaymentMethod,
		CalculationTrace: calc.Trace,
		CompletedAt:      completedAt.UTC(),
		CreatedAt:        now,
	}
	if ff, ok := rule.Strategy.(FlatFee); ok {
		row.Snapshot.FlatFee = ff.Amount
	}

	if err := r.Store.InsertCommission(ctx, row); err != nil {
		if errors.Is(err, ErrDuplicateBooking) {
			return r.lostRace(ctx, ev.BookingID)
		}
		return EarnedCommission{}, false, fmt.Errorf("insert commission for booking %s: %w", ev.BookingID, err)
	}

	log := r.Logger.With(
		zap.String("booking_id", string(row.BookingID)),
		zap.String("commission_id", string(row.ID)),
		zap.String("studio_id", string(row.StudioID)),
	)
	switch {
	case calc.FeeExceedsTotal:
		log.Warn("flat fee exceeds service total",
			zap.Int64("flat_fee_cents", int64(row.Snapshot.FlatFee)),
			zap.Int64("service_total_cents", int64(row.ServiceTotal)))
	case calc.NoTier:
		log.Warn("no applicable tier, commission recorded as zero",
			zap.String("rule_id", string(rule.ID)),
			zap.Int64("service_total_cents", int64(row.ServiceTotal)))
	}
	log.Info("commission recorded",
		zap.String("rule_id", string(rule.ID)),
		zap.String("kind", string(row.Snapshot.Kind)),
		zap.Int64("studio_commission_cents", int64(row.StudioCommission)),
		zap.Int64("artist_payout_cents", int64(row.ArtistPayout)))

	return row, true, nil
}

// existing returns a previously recorded row, flagging disagreeing inputs.
func (r *Recorder) existing(row EarnedCommission, ev CompletionEvent) (EarnedCommission, bool, error) {
	field := ""
	switch {
	case ev.ArtistID != row.ArtistID:
		field = "artist_id"
	case ev.StudioID != row.StudioID:
		field = "studio_id"
	case ev.FinalPrice != row.ServiceTotal:
		field = "final_price_cents"
	case ev.Tips != row.Tips:
		field = "tips_cents"
	}

	log := r.Logger.With(
		zap.String("booking_id", string(row.BookingID)),
		zap.String("commission_id", string(row.ID)))
	if field != "" {
		log.Warn("completion conflicts with recorded commission", zap.String("field", field))
		return row, false, &BookingConflictError{BookingID: row.BookingID, Existing: row.ID, Field: field}
	}
	log.Debug("completion already recorded")
	return row, false, nil
}

func (r *Recorder) lostRace(ctx context.Context, bookingID BookingID) (EarnedCommission, bool, error) {
	winner, err := r.Store.GetCommissionByBooking(ctx, bookingID)
	if err != nil {
		return EarnedCommission{}, false, fmt.Errorf("reload booking %s after duplicate insert: %w", bookingID, err)
	}
	if winner == nil {
		return EarnedCommission{}, false, fmt.Errorf("booking %s: %w, but no row is readable", bookingID, ErrDuplicateBooking)
	}
	r.Logger.Debug("concurrent completion already recorded",
		zap.String("booking_id", string(bookingID)),
		zap.String("commission_id", string(winner.ID)))
	return *winner, false, nil
}
