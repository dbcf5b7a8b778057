/*
Package sqlite provides a SQLite-backed implementation of commission.TxStore.

PURPOSE:
  Durable storage for commission rules, artist assignments, studio settings,
  ledger rows and pay periods.

KEY TABLES:
  commission_rules:      Rules (soft delete via deleted_at)
  commission_rule_tiers: Tier brackets of tiered rules, ordered by position
  artist_rules:          Artist -> rule assignment per studio
  studio_settings:       Tip share and pay schedule per studio
  earned_commissions:    The ledger. booking_id is UNIQUE.
  pay_periods:           Periods with their derived totals

LEDGER ENFORCEMENT:
  - UNIQUE(booking_id) is what makes recording idempotent under concurrency.
    A violation surfaces as commission.ErrDuplicateBooking.
  - The only UPDATE on earned_commissions sets pay_period_id.
  - There is no DELETE on earned_commissions.

MONEY:
  Cents and basis points are INTEGER columns. Nothing is stored as REAL.

CONCURRENCY:
  The DSN sets _txlock=immediate so every WithTx starts with BEGIN IMMEDIATE
  and takes the write lock up front. A period close therefore cannot read a
  set of rows that a concurrent assign is about to change. The pool is
  limited to one connection, which also keeps ":memory:" databases shared.

TIME:
  Timestamps are stored as fixed-width UTC text so string comparison orders
  them correctly. Calendar dates are stored as YYYY-MM-DD.

USAGE:
  store, err := sqlite.New("./data/inkflow.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - commission/store.go: Interface definitions
  - commission/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/simmonsmd7/inkflow-sub000/commission"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const (
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
	dateLayout = time.DateOnly
)

// Store implements commission.TxStore using SQLite.
type Store struct {
	queries
	db *sql.DB
}

var _ commission.TxStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{queries: queries{q: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS commission_rules (
		id TEXT PRIMARY KEY,
		studio_id TEXT NOT NULL,
		name TEXT NOT NULL,
		kind TEXT NOT NULL CHECK (kind IN ('percentage', 'flat_fee', 'tiered')),
		rate_bp INTEGER NOT NULL DEFAULT 0,
		flat_fee_cents INTEGER NOT NULL DEFAULT 0,
		is_default INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		deleted_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_rules_studio
		ON commission_rules(studio_id) WHERE deleted_at IS NULL;

	CREATE TABLE IF NOT EXISTS commission_rule_tiers (
		rule_id TEXT NOT NULL REFERENCES commission_rules(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		min_revenue_cents INTEGER NOT NULL,
		max_revenue_cents INTEGER,
		rate_bp INTEGER NOT NULL,
		PRIMARY KEY (rule_id, position)
	);

	CREATE TABLE IF NOT EXISTS artist_rules (
		artist_id TEXT NOT NULL,
		studio_id TEXT NOT NULL,
		rule_id TEXT NOT NULL REFERENCES commission_rules(id),
		assigned_at TEXT NOT NULL,
		PRIMARY KEY (artist_id, studio_id)
	);

	CREATE INDEX IF NOT EXISTS idx_artist_rules_rule ON artist_rules(rule_id);

	CREATE TABLE IF NOT EXISTS studio_settings (
		studio_id TEXT PRIMARY KEY,
		tip_artist_share_bp INTEGER NOT NULL,
		pay_schedule TEXT NOT NULL,
		schedule_anchor TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS pay_periods (
		id TEXT PRIMARY KEY,
		studio_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('open', 'closed', 'paid')),
		service_total_cents INTEGER NOT NULL DEFAULT 0,
		studio_commission_cents INTEGER NOT NULL DEFAULT 0,
		artist_payout_cents INTEGER NOT NULL DEFAULT 0,
		tips_cents INTEGER NOT NULL DEFAULT 0,
		tip_artist_share_cents INTEGER NOT NULL DEFAULT 0,
		tip_studio_share_cents INTEGER NOT NULL DEFAULT 0,
		commission_count INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		closed_at TEXT,
		paid_at TEXT,
		payout_reference TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_periods_studio_dates
		ON pay_periods(studio_id, start_date, end_date);

	-- The ledger. One row per booking, ever.
	CREATE TABLE IF NOT EXISTS earned_commissions (
		id TEXT PRIMARY KEY,
		booking_id TEXT NOT NULL UNIQUE,
		artist_id TEXT NOT NULL,
		studio_id TEXT NOT NULL,
		rule_id TEXT NOT NULL,
		rule_name TEXT NOT NULL,
		rule_kind TEXT NOT NULL,
		rate_bp INTEGER NOT NULL,
		flat_fee_cents INTEGER NOT NULL,
		tier_index INTEGER NOT NULL,
		service_total_cents INTEGER NOT NULL,
		studio_commission_cents INTEGER NOT NULL,
		artist_payout_cents INTEGER NOT NULL,
		tips_cents INTEGER NOT NULL,
		tip_artist_share_cents INTEGER NOT NULL,
		tip_studio_share_cents INTEGER NOT NULL,
		tip_payment_method TEXT NOT NULL DEFAULT '',
		calculation_trace TEXT NOT NULL,
		completed_at TEXT NOT NULL,
		created_at TEXT NOT NULL,
		pay_period_id TEXT REFERENCES pay_periods(id)
	);

	CREATE INDEX IF NOT EXISTS idx_commissions_studio_completed
		ON earned_commissions(studio_id, completed_at);
	CREATE INDEX IF NOT EXISTS idx_commissions_artist
		ON earned_commissions(artist_id);
	CREATE INDEX IF NOT EXISTS idx_commissions_period
		ON earned_commissions(pay_period_id) WHERE pay_period_id IS NOT NULL;
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (commission.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store commission.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&queries{q: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements commission.Store on top of a querier. Store uses it
// with the pool, WithTx with the open transaction.
type queries struct {
	q querier
}

// =============================================================================
// RULE STORE
// =============================================================================

const ruleColumns = `id, studio_id, name, kind, rate_bp, flat_fee_cents, is_default, is_active,
	created_at, updated_at, deleted_at`

func (s *queries) SaveRule(ctx context.Context, rule commission.Rule) error {
	var (
		rate    commission.BasisPoints
		flatFee commission.Cents
		tiers   []commission.Tier
	)
	switch v := rule.Strategy.(type) {
	case commission.Percentage:
		rate = v.Rate
	case commission.FlatFee:
		flatFee = v.Amount
	case commission.Tiered:
		tiers = v.Tiers
	default:
		return fmt.Errorf("rule %s has no strategy", rule.ID)
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO commission_rules (`+ruleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			rate_bp = excluded.rate_bp,
			flat_fee_cents = excluded.flat_fee_cents,
			is_default = excluded.is_default,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at,
			deleted_at = excluded.deleted_at
	`,
		rule.ID, rule.StudioID, rule.Name, string(rule.Kind()), int64(rate), int64(flatFee),
		rule.IsDefault, rule.IsActive,
		formatTime(rule.CreatedAt), formatTime(rule.UpdatedAt), nullTime(rule.DeletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}

	if _, err := s.q.ExecContext(ctx, `DELETE FROM commission_rule_tiers WHERE rule_id = ?`, rule.ID); err != nil {
		return fmt.Errorf("failed to clear rule tiers: %w", err)
	}
	for i, t := range tiers {
		var upper sql.NullInt64
		if t.MaxRevenue != nil {
			upper = sql.NullInt64{Int64: int64(*t.MaxRevenue), Valid: true}
		}
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO commission_rule_tiers (rule_id, position, min_revenue_cents, max_revenue_cents, rate_bp)
			VALUES (?, ?, ?, ?, ?)
		`, rule.ID, i, int64(t.MinRevenue), upper, int64(t.Rate))
		if err != nil {
			return fmt.Errorf("failed to save rule tier %d: %w", i, err)
		}
	}
	return nil
}

func (s *queries) GetRule(ctx context.Context, id commission.RuleID) (commission.Rule, error) {
	rules, err := s.queryRules(ctx, `SELECT `+ruleColumns+` FROM commission_rules WHERE id = ?`, id)
	if err != nil {
		return commission.Rule{}, err
	}
	if len(rules) == 0 {
		return commission.Rule{}, &commission.NotFoundError{Kind: "rule", ID: string(id)}
	}
	return rules[0], nil
}

func (s *queries) ListRules(ctx context.Context, studioID commission.StudioID) ([]commission.Rule, error) {
	return s.queryRules(ctx, `
		SELECT `+ruleColumns+` FROM commission_rules
		WHERE studio_id = ? AND deleted_at IS NULL
		ORDER BY created_at ASC, id ASC
	`, studioID)
}

func (s *queries) DefaultRule(ctx context.Context, studioID commission.StudioID) (*commission.Rule, error) {
	rules, err := s.queryRules(ctx, `
		SELECT `+ruleColumns+` FROM commission_rules
		WHERE studio_id = ? AND is_default = 1 AND is_active = 1 AND deleted_at IS NULL
		ORDER BY updated_at DESC
		LIMIT 1
	`, studioID)
	if err != nil || len(rules) == 0 {
		return nil, err
	}
	return &rules[0], nil
}

// ruleRow is a scanned commission_rules row before its tiers are attached.
type ruleRow struct {
	rule    commission.Rule
	kind    string
	rate    int64
	flatFee int64
}

// queryRules loads rules, then their tiers. Rows are fully drained before
// the tier queries run since the pool has a single connection.
func (s *queries) queryRules(ctx context.Context, query string, args ...any) ([]commission.Rule, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}

	var scanned []ruleRow
	for rows.Next() {
		var (
			r                    ruleRow
			createdAt, updatedAt string
			deletedAt            sql.NullString
		)
		err := rows.Scan(&r.rule.ID, &r.rule.StudioID, &r.rule.Name, &r.kind, &r.rate, &r.flatFee,
			&r.rule.IsDefault, &r.rule.IsActive, &createdAt, &updatedAt, &deletedAt)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		r.rule.CreatedAt = parseTime(createdAt)
		r.rule.UpdatedAt = parseTime(updatedAt)
		r.rule.DeletedAt = parseNullTime(deletedAt)
		scanned = append(scanned, r)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]commission.Rule, 0, len(scanned))
	for _, r := range scanned {
		switch commission.Kind(r.kind) {
		case commission.KindPercentage:
			r.rule.Strategy = commission.Percentage{Rate: commission.BasisPoints(r.rate)}
		case commission.KindFlatFee:
			r.rule.Strategy = commission.FlatFee{Amount: commission.Cents(r.flatFee)}
		case commission.KindTiered:
			tiers, err := s.loadTiers(ctx, r.rule.ID)
			if err != nil {
				return nil, err
			}
			r.rule.Strategy = commission.Tiered{Tiers: tiers}
		default:
			return nil, fmt.Errorf("rule %s has unknown kind %q", r.rule.ID, r.kind)
		}
		out = append(out, r.rule)
	}
	return out, nil
}

func (s *queries) loadTiers(ctx context.Context, ruleID commission.RuleID) ([]commission.Tier, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT min_revenue_cents, max_revenue_cents, rate_bp
		FROM commission_rule_tiers WHERE rule_id = ? ORDER BY position ASC
	`, ruleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rule tiers: %w", err)
	}
	defer rows.Close()

	var tiers []commission.Tier
	for rows.Next() {
		var (
			lower, rate int64
			upper       sql.NullInt64
		)
		if err := rows.Scan(&lower, &upper, &rate); err != nil {
			return nil, fmt.Errorf("failed to scan rule tier: %w", err)
		}
		t := commission.Tier{MinRevenue: commission.Cents(lower), Rate: commission.BasisPoints(rate)}
		if upper.Valid {
			t.MaxRevenue = commission.Bound(commission.Cents(upper.Int64))
		}
		tiers = append(tiers, t)
	}
	return tiers, rows.Err()
}

func (s *queries) SaveArtistRule(ctx context.Context, a commission.ArtistRule) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO artist_rules (artist_id, studio_id, rule_id, assigned_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(artist_id, studio_id) DO UPDATE SET
			rule_id = excluded.rule_id,
			assigned_at = excluded.assigned_at
	`, a.ArtistID, a.StudioID, a.RuleID, formatTime(a.AssignedAt))
	if err != nil {
		return fmt.Errorf("failed to save artist rule: %w", err)
	}
	return nil
}

func (s *queries) GetArtistRule(ctx context.Context, artistID commission.ArtistID, studioID commission.StudioID) (*commission.ArtistRule, error) {
	var (
		a          commission.ArtistRule
		assignedAt string
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT artist_id, studio_id, rule_id, assigned_at
		FROM artist_rules WHERE artist_id = ? AND studio_id = ?
	`, artistID, studioID).Scan(&a.ArtistID, &a.StudioID, &a.RuleID, &assignedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get artist rule: %w", err)
	}
	a.AssignedAt = parseTime(assignedAt)
	return &a, nil
}

func (s *queries) CountArtistRules(ctx context.Context, ruleID commission.RuleID) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM artist_rules WHERE rule_id = ?`, ruleID).Scan(&n)
	return n, err
}

// =============================================================================
// SETTINGS STORE
// =============================================================================

func (s *queries) GetStudioSettings(ctx context.Context, studioID commission.StudioID) (*commission.StudioSettings, error) {
	list, err := s.querySettings(ctx, `
		SELECT studio_id, tip_artist_share_bp, pay_schedule, schedule_anchor
		FROM studio_settings WHERE studio_id = ?
	`, studioID)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

func (s *queries) SaveStudioSettings(ctx context.Context, st commission.StudioSettings) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO studio_settings (studio_id, tip_artist_share_bp, pay_schedule, schedule_anchor)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(studio_id) DO UPDATE SET
			tip_artist_share_bp = excluded.tip_artist_share_bp,
			pay_schedule = excluded.pay_schedule,
			schedule_anchor = excluded.schedule_anchor
	`, st.StudioID, int64(st.TipArtistShare), string(st.Schedule), st.ScheduleAnchor.Format(dateLayout))
	if err != nil {
		return fmt.Errorf("failed to save studio settings: %w", err)
	}
	return nil
}

func (s *queries) ListStudioSettings(ctx context.Context) ([]commission.StudioSettings, error) {
	return s.querySettings(ctx, `
		SELECT studio_id, tip_artist_share_bp, pay_schedule, schedule_anchor
		FROM studio_settings ORDER BY studio_id
	`)
}

func (s *queries) querySettings(ctx context.Context, query string, args ...any) ([]commission.StudioSettings, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query studio settings: %w", err)
	}
	defer rows.Close()

	var out []commission.StudioSettings
	for rows.Next() {
		var (
			st       commission.StudioSettings
			share    int64
			schedule string
			anchor   string
		)
		if err := rows.Scan(&st.StudioID, &share, &schedule, &anchor); err != nil {
			return nil, fmt.Errorf("failed to scan studio settings: %w", err)
		}
		st.TipArtistShare = commission.BasisPoints(share)
		st.Schedule = commission.PaySchedule(schedule)
		st.ScheduleAnchor = parseDate(anchor)
		out = append(out, st)
	}
	return out, rows.Err()
}

// =============================================================================
// LEDGER STORE
// =============================================================================

const commissionColumns = `id, booking_id, artist_id, studio_id, rule_id, rule_name, rule_kind,
	rate_bp, flat_fee_cents, tier_index, service_total_cents, studio_commission_cents,
	artist_payout_cents, tips_cents, tip_artist_share_cents, tip_studio_share_cents,
	tip_payment_method, calculation_trace, completed_at, created_at, pay_period_id`

func (s *queries) InsertCommission(ctx context.Context, c commission.EarnedCommission) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO earned_commissions (`+commissionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID, c.BookingID, c.ArtistID, c.StudioID,
		c.Snapshot.RuleID, c.Snapshot.RuleName, string(c.Snapshot.Kind),
		int64(c.Snapshot.Rate), int64(c.Snapshot.FlatFee), c.Snapshot.TierIndex,
		int64(c.ServiceTotal), int64(c.StudioCommission), int64(c.ArtistPayout),
		int64(c.Tips), int64(c.TipArtistShare), int64(c.TipStudioShare),
		c.TipPaymentMethod, c.CalculationTrace,
		formatTime(c.CompletedAt), formatTime(c.CreatedAt), nullString(string(c.PayPeriodID)),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return commission.ErrDuplicateBooking
		}
		return fmt.Errorf("failed to insert commission: %w", err)
	}
	return nil
}

func (s *queries) GetCommission(ctx context.Context, id commission.CommissionID) (commission.EarnedCommission, error) {
	list, err := s.queryCommissions(ctx, `SELECT `+commissionColumns+` FROM earned_commissions WHERE id = ?`, id)
	if err != nil {
		return commission.EarnedCommission{}, err
	}
	if len(list) == 0 {
		return commission.EarnedCommission{}, &commission.NotFoundError{Kind: "commission", ID: string(id)}
	}
	return list[0], nil
}

func (s *queries) GetCommissionByBooking(ctx context.Context, bookingID commission.BookingID) (*commission.EarnedCommission, error) {
	list, err := s.queryCommissions(ctx, `SELECT `+commissionColumns+` FROM earned_commissions WHERE booking_id = ?`, bookingID)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

func (s *queries) SetCommissionPeriod(ctx context.Context, id commission.CommissionID, periodID commission.PeriodID) error {
	res, err := s.q.ExecContext(ctx, `UPDATE earned_commissions SET pay_period_id = ? WHERE id = ?`, periodID, id)
	if err != nil {
		return fmt.Errorf("failed to set commission period: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &commission.NotFoundError{Kind: "commission", ID: string(id)}
	}
	return nil
}

func (s *queries) CommissionsForPeriod(ctx context.Context, periodID commission.PeriodID) ([]commission.EarnedCommission, error) {
	return s.queryCommissions(ctx, `
		SELECT `+commissionColumns+` FROM earned_commissions
		WHERE pay_period_id = ? ORDER BY id ASC
	`, periodID)
}

func (s *queries) ListCommissions(ctx context.Context, f commission.CommissionFilter) ([]commission.EarnedCommission, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg ...any) {
		where = append(where, clause)
		args = append(args, arg...)
	}
	if f.StudioID != "" {
		add("studio_id = ?", f.StudioID)
	}
	if f.ArtistID != "" {
		add("artist_id = ?", f.ArtistID)
	}
	if f.PeriodID != "" {
		add("pay_period_id = ?", f.PeriodID)
	}
	if f.Unassigned {
		add("pay_period_id IS NULL")
	}
	if f.CompletedFrom != nil {
		add("completed_at >= ?", formatTime(*f.CompletedFrom))
	}
	if f.CompletedTo != nil {
		add("completed_at <= ?", formatTime(*f.CompletedTo))
	}
	if f.Paid != nil {
		paidPeriods := "SELECT id FROM pay_periods WHERE status = 'paid'"
		if *f.Paid {
			add("pay_period_id IN (" + paidPeriods + ")")
		} else {
			add("(pay_period_id IS NULL OR pay_period_id NOT IN (" + paidPeriods + "))")
		}
	}
	if f.AfterID != "" {
		add("id > ?", f.AfterID)
	}

	query := `SELECT ` + commissionColumns + ` FROM earned_commissions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	return s.queryCommissions(ctx, query, args...)
}

func (s *queries) queryCommissions(ctx context.Context, query string, args ...any) ([]commission.EarnedCommission, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query commissions: %w", err)
	}
	defer rows.Close()

	var out []commission.EarnedCommission
	for rows.Next() {
		c, err := scanCommission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCommission(rows *sql.Rows) (commission.EarnedCommission, error) {
	var (
		c                              commission.EarnedCommission
		kind                           string
		rate, flatFee                  int64
		total, studioCut, artistPayout int64
		tips, tipArtist, tipStudio     int64
		completedAt, createdAt         string
		periodID                       sql.NullString
	)
	err := rows.Scan(
		&c.ID, &c.BookingID, &c.ArtistID, &c.StudioID,
		&c.Snapshot.RuleID, &c.Snapshot.RuleName, &kind,
		&rate, &flatFee, &c.Snapshot.TierIndex,
		&total, &studioCut, &artistPayout,
		&tips, &tipArtist, &tipStudio,
		&c.TipPaymentMethod, &c.CalculationTrace,
		&completedAt, &createdAt, &periodID,
	)
	if err != nil {
		return c, fmt.Errorf("failed to scan commission: %w", err)
	}
	c.Snapshot.Kind = commission.Kind(kind)
	c.Snapshot.Rate = commission.BasisPoints(rate)
	c.Snapshot.FlatFee = commission.Cents(flatFee)
	c.ServiceTotal = commission.Cents(total)
	c.StudioCommission = commission.Cents(studioCut)
	c.ArtistPayout = commission.Cents(artistPayout)
	c.Tips = commission.Cents(tips)
	c.TipArtistShare = commission.Cents(tipArtist)
	c.TipStudioShare = commission.Cents(tipStudio)
	c.CompletedAt = parseTime(completedAt)
	c.CreatedAt = parseTime(createdAt)
	c.PayPeriodID = commission.PeriodID(periodID.String)
	return c, nil
}

// =============================================================================
// PERIOD STORE
// =============================================================================

const periodColumns = `id, studio_id, start_date, end_date, status,
	service_total_cents, studio_commission_cents, artist_payout_cents,
	tips_cents, tip_artist_share_cents, tip_studio_share_cents, commission_count,
	created_at, closed_at, paid_at, payout_reference`

func (s *queries) InsertPeriod(ctx context.Context, p commission.PayPeriod) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO pay_periods (`+periodColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, periodArgs(p)...)
	if err != nil {
		return fmt.Errorf("failed to insert pay period: %w", err)
	}
	return nil
}

func (s *queries) UpdatePeriod(ctx context.Context, p commission.PayPeriod) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE pay_periods SET
			status = ?,
			service_total_cents = ?, studio_commission_cents = ?, artist_payout_cents = ?,
			tips_cents = ?, tip_artist_share_cents = ?, tip_studio_share_cents = ?,
			commission_count = ?,
			closed_at = ?, paid_at = ?, payout_reference = ?
		WHERE id = ?
	`,
		string(p.Status),
		int64(p.Totals.ServiceTotal), int64(p.Totals.StudioCommission), int64(p.Totals.ArtistPayout),
		int64(p.Totals.Tips), int64(p.Totals.TipArtistShare), int64(p.Totals.TipStudioShare),
		p.Totals.Count,
		nullTime(p.ClosedAt), nullTime(p.PaidAt), nullString(p.PayoutReference),
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update pay period: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &commission.NotFoundError{Kind: "period", ID: string(p.ID)}
	}
	return nil
}

func periodArgs(p commission.PayPeriod) []any {
	return []any{
		p.ID, p.StudioID, p.StartDate.Format(dateLayout), p.EndDate.Format(dateLayout), string(p.Status),
		int64(p.Totals.ServiceTotal), int64(p.Totals.StudioCommission), int64(p.Totals.ArtistPayout),
		int64(p.Totals.Tips), int64(p.Totals.TipArtistShare), int64(p.Totals.TipStudioShare),
		p.Totals.Count,
		formatTime(p.CreatedAt), nullTime(p.ClosedAt), nullTime(p.PaidAt), nullString(p.PayoutReference),
	}
}

func (s *queries) GetPeriod(ctx context.Context, id commission.PeriodID) (commission.PayPeriod, error) {
	list, err := s.queryPeriods(ctx, `SELECT `+periodColumns+` FROM pay_periods WHERE id = ?`, id)
	if err != nil {
		return commission.PayPeriod{}, err
	}
	if len(list) == 0 {
		return commission.PayPeriod{}, &commission.NotFoundError{Kind: "period", ID: string(id)}
	}
	return list[0], nil
}

func (s *queries) ListPeriods(ctx context.Context, f commission.PeriodFilter) ([]commission.PayPeriod, error) {
	var (
		where []string
		args  []any
	)
	if f.StudioID != "" {
		where = append(where, "studio_id = ?")
		args = append(args, f.StudioID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Covering != nil {
		day := commission.DateOf(*f.Covering).Format(dateLayout)
		where = append(where, "start_date <= ? AND end_date >= ?")
		args = append(args, day, day)
	}
	if f.AfterID != "" {
		where = append(where, "id > ?")
		args = append(args, f.AfterID)
	}

	query := `SELECT ` + periodColumns + ` FROM pay_periods`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	return s.queryPeriods(ctx, query, args...)
}

func (s *queries) queryPeriods(ctx context.Context, query string, args ...any) ([]commission.PayPeriod, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pay periods: %w", err)
	}
	defer rows.Close()

	var out []commission.PayPeriod
	for rows.Next() {
		var (
			p                              commission.PayPeriod
			start, end, status, createdAt  string
			total, studioCut, artistPayout int64
			tips, tipArtist, tipStudio     int64
			closedAt, paidAt, reference    sql.NullString
		)
		err := rows.Scan(&p.ID, &p.StudioID, &start, &end, &status,
			&total, &studioCut, &artistPayout, &tips, &tipArtist, &tipStudio, &p.Totals.Count,
			&createdAt, &closedAt, &paidAt, &reference)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pay period: %w", err)
		}
		p.StartDate = parseDate(start)
		p.EndDate = parseDate(end)
		p.Status = commission.PeriodStatus(status)
		p.Totals.ServiceTotal = commission.Cents(total)
		p.Totals.StudioCommission = commission.Cents(studioCut)
		p.Totals.ArtistPayout = commission.Cents(artistPayout)
		p.Totals.Tips = commission.Cents(tips)
		p.Totals.TipArtistShare = commission.Cents(tipArtist)
		p.Totals.TipStudioShare = commission.Cents(tipStudio)
		p.CreatedAt = parseTime(createdAt)
		p.ClosedAt = parseNullTime(closedAt)
		p.PaidAt = parseNullTime(paidAt)
		p.PayoutReference = reference.String
		out = append(out, p)
	}
	return out, rows.Err()
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func parseDate(s string) time.Time {
	t, _ := time.Parse(dateLayout, s)
	return t
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
