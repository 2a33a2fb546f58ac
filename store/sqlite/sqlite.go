/*
Package sqlite provides a SQLite-backed worklog.Store.

PURPOSE:
  Persists day entries, bulk plans and leave settings in a single SQLite
  file. This is the default backend for a single-user deployment.

WRITE SEMANTICS:
  Entries are upserted with INSERT ... ON CONFLICT(owner_id, date) DO
  UPDATE: the last write for a date wins. Bulk plans and leave settings
  are one row per owner, replaced wholesale.

KEY TABLES:
  day_entries:    one row per owner and date; month column partitions reads
  bulk_plans:     plan_json per owner
  leave_settings: annual_total and valid_until per owner

DECIMALS:
  Hour quantities are stored as TEXT (decimal.Decimal.String()) and parsed
  back exactly. REAL columns would reintroduce float rounding.

CHANGE NOTIFICATION:
  SQLite has no change feed. The store embeds a worklog.Hub and publishes
  after every committed entry write, which is sufficient because the
  process that owns the file is the only writer.

TRANSIENT ERRORS:
  SQLITE_BUSY and SQLITE_LOCKED are wrapped with worklog.ErrStoreUnavailable
  so the ledger retries them.

USAGE:
  store, err := sqlite.New("./data/hours.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - worklog/store.go: interface definitions
  - worklog/store/memory.go: in-memory implementation for testing
  - store/mongo: document database backend
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/hours-ledger/calendar"
	"github.com/warp/hours-ledger/worklog"
)

// Store implements worklog.Store using SQLite.
type Store struct {
	*worklog.Hub

	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{Hub: worklog.NewHub(), db: db}
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

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS day_entries (
		owner_id TEXT NOT NULL,
		date TEXT NOT NULL,
		month TEXT NOT NULL,
		mode TEXT NOT NULL,
		preset TEXT,
		start_time TEXT,
		end_time TEXT,
		break_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		break_start TEXT,
		break_end TEXT,
		manual_hours TEXT,
		leave_type TEXT NOT NULL DEFAULT 'none',
		memo TEXT NOT NULL DEFAULT '',
		hours TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (owner_id, date)
	);

	-- Month reads are the hot path (summary, leave aggregation, plan apply)
	CREATE INDEX IF NOT EXISTS idx_day_entries_owner_month
		ON day_entries(owner_id, month, date);

	CREATE TABLE IF NOT EXISTS bulk_plans (
		owner_id TEXT PRIMARY KEY,
		plan_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS leave_settings (
		owner_id TEXT PRIMARY KEY,
		annual_total TEXT NOT NULL,
		valid_until TEXT,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ENTRY STORE (worklog.EntryStore interface)
// =============================================================================

const entryColumns = `date, mode, preset, start_time, end_time, break_enabled,
	break_start, break_end, manual_hours, leave_type, memo, hours, updated_at`

// PutEntry upserts the entry for e.Date.
func (s *Store) PutEntry(ctx context.Context, owner worklog.OwnerID, e worklog.DayEntry) error {
	s.mu.Lock()
	err := s.putEntry(ctx, owner, e)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.Publish(owner, e.Date.YearMonth())
	return nil
}

func (s *Store) putEntry(ctx context.Context, owner worklog.OwnerID, e worklog.DayEntry) error {
	var (
		preset, start, end, breakStart, breakEnd, manualHours sql.NullString
		breakEnabled                                          bool
	)
	if sw, ok := e.Shift(); ok {
		preset = nullString(sw.Preset)
		start = nullString(sw.Start)
		end = nullString(sw.End)
		breakEnabled = sw.BreakEnabled
		breakStart = nullString(sw.BreakStart)
		breakEnd = nullString(sw.BreakEnd)
	}
	if mw, ok := e.Manual(); ok {
		manualHours = nullString(mw.Hours.String())
	}

	query := `
		INSERT INTO day_entries
		(owner_id, month, ` + entryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, date) DO UPDATE SET
			mode = excluded.mode,
			preset = excluded.preset,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			break_enabled = excluded.break_enabled,
			break_start = excluded.break_start,
			break_end = excluded.break_end,
			manual_hours = excluded.manual_hours,
			leave_type = excluded.leave_type,
			memo = excluded.memo,
			hours = excluded.hours,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		owner,
		e.Date.YearMonth().String(),
		e.Date.String(),
		string(e.Mode()),
		preset, start, end,
		breakEnabled,
		breakStart, breakEnd,
		manualHours,
		string(e.LeaveType.Normalize()),
		e.Memo,
		e.Hours.String(),
		e.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return wrapErr("failed to save entry", err)
	}
	return nil
}

// MonthEntries returns the month's entries ordered by date.
func (s *Store) MonthEntries(ctx context.Context, owner worklog.OwnerID, month calendar.YearMonth) ([]worklog.DayEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + entryColumns + `
		FROM day_entries
		WHERE owner_id = ? AND month = ?
		ORDER BY date ASC`

	rows, err := s.db.QueryContext(ctx, query, owner, month.String())
	if err != nil {
		return nil, wrapErr("failed to query entries", err)
	}
	defer rows.Close()

	var entries []worklog.DayEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetEntry returns worklog.ErrNotFound when the date has no entry.
func (s *Store) GetEntry(ctx context.Context, owner worklog.OwnerID, date calendar.Date) (worklog.DayEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM day_entries WHERE owner_id = ? AND date = ?`,
		owner, date.String())
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return worklog.DayEntry{}, worklog.ErrNotFound
	}
	return e, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (worklog.DayEntry, error) {
	var (
		date, mode, leaveType, memo, hours, updatedAt         string
		preset, start, end, breakStart, breakEnd, manualHours sql.NullString
		breakEnabled                                          bool
	)
	if err := row.Scan(&date, &mode, &preset, &start, &end, &breakEnabled,
		&breakStart, &breakEnd, &manualHours, &leaveType, &memo, &hours, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return worklog.DayEntry{}, err
		}
		return worklog.DayEntry{}, wrapErr("failed to scan entry", err)
	}

	d, err := calendar.ParseDate(date)
	if err != nil {
		return worklog.DayEntry{}, fmt.Errorf("corrupt entry date %q: %w", date, err)
	}
	e := worklog.DayEntry{
		Date:      d,
		LeaveType: worklog.LeaveType(leaveType).Normalize(),
		Memo:      memo,
		Hours:     parseDecimal(hours),
	}
	e.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)

	if worklog.Mode(mode) == worklog.ModeManual {
		e.Work = worklog.ManualWork{Hours: parseDecimal(manualHours.String)}
	} else {
		e.Work = worklog.ShiftWork{
			Preset:       preset.String,
			Start:        start.String,
			End:          end.String,
			BreakEnabled: breakEnabled,
			BreakStart:   breakStart.String,
			BreakEnd:     breakEnd.String,
		}
	}
	return e, nil
}

// =============================================================================
// SETTINGS STORE (worklog.SettingsStore interface)
// =============================================================================

// GetBulkPlan returns nil when the owner has no stored plan.
func (s *Store) GetBulkPlan(ctx context.Context, owner worklog.OwnerID) (*worklog.BulkPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var planJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT plan_json FROM bulk_plans WHERE owner_id = ?`, owner).Scan(&planJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("failed to get bulk plan", err)
	}

	var plan worklog.BulkPlan
	if err := json.Unmarshal([]byte(planJSON), &plan); err != nil {
		return nil, fmt.Errorf("failed to decode bulk plan: %w", err)
	}
	return &plan, nil
}

func (s *Store) PutBulkPlan(ctx context.Context, owner worklog.OwnerID, plan worklog.BulkPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	planJSON, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to encode bulk plan: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO bulk_plans (owner_id, plan_json, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(owner_id) DO UPDATE SET
			plan_json = excluded.plan_json,
			updated_at = excluded.updated_at
	`, owner, string(planJSON), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return wrapErr("failed to save bulk plan", err)
	}
	return nil
}

// GetLeaveSettings returns nil when the owner has no stored settings.
func (s *Store) GetLeaveSettings(ctx context.Context, owner worklog.OwnerID) (*worklog.LeaveSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		total      string
		validUntil sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT annual_total, valid_until FROM leave_settings WHERE owner_id = ?`, owner).
		Scan(&total, &validUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("failed to get leave settings", err)
	}

	settings := &worklog.LeaveSettings{AnnualTotal: parseDecimal(total)}
	if validUntil.Valid {
		ym, err := calendar.ParseYearMonth(validUntil.String)
		if err != nil {
			return nil, fmt.Errorf("corrupt valid_until %q: %w", validUntil.String, err)
		}
		settings.ValidUntil = &ym
	}
	return settings, nil
}

func (s *Store) PutLeaveSettings(ctx context.Context, owner worklog.OwnerID, settings worklog.LeaveSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var validUntil sql.NullString
	if settings.ValidUntil != nil && !settings.ValidUntil.IsZero() {
		validUntil = nullString(settings.ValidUntil.String())
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leave_settings (owner_id, annual_total, valid_until, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(owner_id) DO UPDATE SET
			annual_total = excluded.annual_total,
			valid_until = excluded.valid_until,
			updated_at = excluded.updated_at
	`, owner, settings.AnnualTotal.String(), validUntil, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return wrapErr("failed to save leave settings", err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// wrapErr marks busy and locked databases as retryable.
func wrapErr(msg string, err error) error {
	if isTransient(err) {
		return worklog.Unavailable(msg, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func isTransient(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

var _ worklog.Store = (*Store)(nil)
