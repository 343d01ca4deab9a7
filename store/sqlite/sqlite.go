/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements ledger.Store and ledger.TxStore using SQLite. In production,
  the same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

IMMUTABILITY ENFORCEMENT:
  Posted journal entries are never updated in place:
  - markPosted flips status exactly once (WHERE status = 'draft')
  - line rows are only replaced while the entry is a draft
  - corrections happen via reversal entries, not UPDATEs

KEY TABLES:
  accounts:           Chart of accounts with denormalized balances
  journal_entries:    Entry headers (status, reversal links, calendar refs)
  journal_entry_lines:Debit/credit lines, positioned within their entry
  fiscal_years:       Posting calendar roots
  accounting_periods: Closable period windows
  balance_snapshots:  Period-end balance cache (re-derivable)
  entry_sequences:    Per-year counters behind entry numbering

INDEXES:
  - idx_lines_account: per-account history scans (general ledger hot path)
  - idx_entries_date: range queries for reports and period totals
  - idx_entries_number: unique, human-readable entry number lookups

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, as the SQLite driver serializes
  writes anyway. WithTx holds the write lock for the whole transaction,
  so engine read-modify-write sequences are atomic.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  posting := &ledger.PostingEngine{Store: store}

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/ledger-engine/ledger"
)

const (
	dayFormat = "2006-01-02"
)

// Store implements ledger.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
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
	-- Chart of accounts
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		parent_id TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL,
		normal_side TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		balance TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_parent
		ON accounts(parent_id) WHERE parent_id != '';

	-- Journal entry headers
	CREATE TABLE IF NOT EXISTS journal_entries (
		id TEXT PRIMARY KEY,
		number TEXT NOT NULL UNIQUE,
		entry_date TEXT NOT NULL,
		description TEXT,
		fiscal_year_id TEXT NOT NULL DEFAULT '',
		period_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'draft',
		is_reversal BOOLEAN NOT NULL DEFAULT FALSE,
		original_entry_id TEXT NOT NULL DEFAULT '',
		reversal_entry_id TEXT NOT NULL DEFAULT '',
		posted_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_date
		ON journal_entries(entry_date, created_at);
	CREATE INDEX IF NOT EXISTS idx_entries_status
		ON journal_entries(status);

	-- Journal entry lines
	CREATE TABLE IF NOT EXISTS journal_entry_lines (
		id TEXT PRIMARY KEY,
		entry_id TEXT NOT NULL REFERENCES journal_entries(id),
		account_id TEXT NOT NULL,
		debit TEXT NOT NULL DEFAULT '0',
		credit TEXT NOT NULL DEFAULT '0',
		cost_center_id TEXT NOT NULL DEFAULT '',
		description TEXT,
		position INTEGER NOT NULL
	);

	-- Per-account history scans (general ledger hot path)
	CREATE INDEX IF NOT EXISTS idx_lines_account
		ON journal_entry_lines(account_id);
	CREATE INDEX IF NOT EXISTS idx_lines_entry
		ON journal_entry_lines(entry_id, position);

	-- Posting calendar
	CREATE TABLE IF NOT EXISTS fiscal_years (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		is_closed BOOLEAN NOT NULL DEFAULT FALSE,
		closed_at TEXT
	);

	CREATE TABLE IF NOT EXISTS accounting_periods (
		id TEXT PRIMARY KEY,
		fiscal_year_id TEXT NOT NULL REFERENCES fiscal_years(id),
		name TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'open',
		closed_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_periods_fy
		ON accounting_periods(fiscal_year_id, start_date);
	CREATE INDEX IF NOT EXISTS idx_periods_range
		ON accounting_periods(start_date, end_date);

	-- Balance snapshots (period-end cache)
	CREATE TABLE IF NOT EXISTS balance_snapshots (
		account_id TEXT NOT NULL,
		period_id TEXT NOT NULL,
		period_end TEXT NOT NULL,
		opening_debit TEXT NOT NULL DEFAULT '0',
		opening_credit TEXT NOT NULL DEFAULT '0',
		total_debit TEXT NOT NULL DEFAULT '0',
		total_credit TEXT NOT NULL DEFAULT '0',
		closing_debit TEXT NOT NULL DEFAULT '0',
		closing_credit TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL,
		PRIMARY KEY (account_id, period_id)
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_account_end
		ON balance_snapshots(account_id, period_end DESC);

	-- Entry number sequences, one counter per year
	CREATE TABLE IF NOT EXISTS entry_sequences (
		year INTEGER PRIMARY KEY,
		counter INTEGER NOT NULL DEFAULT 0
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// querier is the subset of *sql.DB and *sql.Tx the store queries
// through, so every method works both standalone and inside WithTx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// ACCOUNTS
// =============================================================================

// SaveAccount upserts an account. The denormalized balance column is
// deliberately excluded from the update: only AddToAccountBalance moves it.
func (s *Store) SaveAccount(ctx context.Context, a ledger.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveAccount(ctx, s.db, a)
}

func saveAccount(ctx context.Context, q querier, a ledger.Account) error {
	query := `
		INSERT INTO accounts (id, code, name, parent_id, type, normal_side, is_active, balance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			code = excluded.code,
			name = excluded.name,
			parent_id = excluded.parent_id,
			type = excluded.type,
			normal_side = excluded.normal_side,
			is_active = excluded.is_active
	`

	_, err := q.ExecContext(ctx, query,
		a.ID, a.Code.String(), a.Name, a.ParentID, a.Type, a.NormalSide,
		a.IsActive, a.Balance.String(),
		a.CreatedAt.UTC().Format(time.RFC3339),
	)
	if isUniqueConstraintError(err) {
		return ledger.ErrDuplicateCode
	}
	return err
}

func (s *Store) GetAccount(ctx context.Context, id ledger.AccountID) (*ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getAccount(ctx, s.db, "id = ?", id)
}

func (s *Store) GetAccountByCode(ctx context.Context, code ledger.AccountCode) (*ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getAccount(ctx, s.db, "code = ?", code.String())
}

func getAccount(ctx context.Context, q querier, where string, arg any) (*ledger.Account, error) {
	row := q.QueryRowContext(ctx,
		"SELECT id, code, name, parent_id, type, normal_side, is_active, balance, created_at FROM accounts WHERE "+where,
		arg,
	)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryAccounts(ctx, s.db,
		"SELECT id, code, name, parent_id, type, normal_side, is_active, balance, created_at FROM accounts")
}

func (s *Store) ListChildAccounts(ctx context.Context, parentID ledger.AccountID) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryAccounts(ctx, s.db,
		"SELECT id, code, name, parent_id, type, normal_side, is_active, balance, created_at FROM accounts WHERE parent_id = ?",
		parentID)
}

func queryAccounts(ctx context.Context, q querier, query string, args ...any) ([]ledger.Account, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []ledger.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Codes sort numerically per segment ("1.2" before "1.10"), which SQL
	// string ordering gets wrong, so sort here.
	ledger.SortAccountsByCode(accounts)
	return accounts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*ledger.Account, error) {
	var (
		a         ledger.Account
		code      string
		balance   string
		createdAt string
	)
	if err := row.Scan(&a.ID, &code, &a.Name, &a.ParentID, &a.Type, &a.NormalSide,
		&a.IsActive, &balance, &createdAt); err != nil {
		return nil, err
	}

	parsed, err := ledger.ParseAccountCode(code)
	if err != nil {
		return nil, fmt.Errorf("stored account code %q: %w", code, err)
	}
	a.Code = parsed
	a.Balance = mustDecimal(balance)
	a.CreatedAt = parseTime(createdAt)
	return &a, nil
}

// AddToAccountBalance applies a signed delta to the denormalized balance.
// Decimal arithmetic happens in Go; SQLite would coerce the TEXT column
// to float.
func (s *Store) AddToAccountBalance(ctx context.Context, id ledger.AccountID, delta decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return addToAccountBalance(ctx, s.db, id, delta)
}

func addToAccountBalance(ctx context.Context, q querier, id ledger.AccountID, delta decimal.Decimal) error {
	var balance string
	err := q.QueryRowContext(ctx, "SELECT balance FROM accounts WHERE id = ?", id).Scan(&balance)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}

	next := mustDecimal(balance).Add(delta)
	_, err = q.ExecContext(ctx, "UPDATE accounts SET balance = ? WHERE id = ?", next.String(), id)
	return err
}

func (s *Store) DeleteAccount(ctx context.Context, id ledger.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", id)
	return err
}

func (s *Store) AccountHasPostedLines(ctx context.Context, id ledger.AccountID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return accountHasPostedLines(ctx, s.db, id)
}

func accountHasPostedLines(ctx context.Context, q querier, id ledger.AccountID) (bool, error) {
	query := `
		SELECT COUNT(*)
		FROM journal_entry_lines l
		JOIN journal_entries e ON e.id = l.entry_id
		WHERE l.account_id = ? AND e.status != 'draft'
	`

	var count int
	if err := q.QueryRowContext(ctx, query, id).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// =============================================================================
// JOURNAL ENTRIES
// =============================================================================

// SaveEntry upserts a header and replaces its lines wholesale. Engines
// only call this for drafts; posted rows are mutated through markPosted
// and the reversal-link updates below.
func (s *Store) SaveEntry(ctx context.Context, e ledger.JournalEntry, lines []ledger.JournalEntryLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveEntry(ctx, s.db, e, lines)
}

func saveEntry(ctx context.Context, q querier, e ledger.JournalEntry, lines []ledger.JournalEntryLine) error {
	query := `
		INSERT INTO journal_entries
		(id, number, entry_date, description, fiscal_year_id, period_id, status,
		 is_reversal, original_entry_id, reversal_entry_id, posted_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			entry_date = excluded.entry_date,
			description = excluded.description,
			fiscal_year_id = excluded.fiscal_year_id,
			period_id = excluded.period_id
	`

	_, err := q.ExecContext(ctx, query,
		e.ID, e.Number,
		e.Date.Format(dayFormat),
		e.Description, e.FiscalYearID, e.PeriodID, e.Status,
		e.IsReversal, e.OriginalEntryID, e.ReversalEntryID,
		nullTime(e.PostedAt),
		e.CreatedAt.UTC().Format(time.RFC3339),
	)
	if isUniqueConstraintError(err) {
		return ledger.ErrDuplicateNumber
	}
	if err != nil {
		return fmt.Errorf("failed to save entry: %w", err)
	}

	if _, err := q.ExecContext(ctx, "DELETE FROM journal_entry_lines WHERE entry_id = ?", e.ID); err != nil {
		return err
	}
	for _, l := range lines {
		_, err := q.ExecContext(ctx, `
			INSERT INTO journal_entry_lines
			(id, entry_id, account_id, debit, credit, cost_center_id, description, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			l.ID, e.ID, l.AccountID, l.Debit.String(), l.Credit.String(),
			l.CostCenterID, l.Description, l.Position,
		)
		if err != nil {
			return fmt.Errorf("failed to save entry line: %w", err)
		}
	}
	return nil
}

func (s *Store) GetEntry(ctx context.Context, id ledger.EntryID) (*ledger.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getEntry(ctx, s.db, "id = ?", id)
}

func (s *Store) GetEntryByNumber(ctx context.Context, number string) (*ledger.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getEntry(ctx, s.db, "number = ?", number)
}

const entryColumns = `id, number, entry_date, description, fiscal_year_id, period_id, status,
	is_reversal, original_entry_id, reversal_entry_id, posted_at, created_at`

func getEntry(ctx context.Context, q querier, where string, arg any) (*ledger.JournalEntry, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM journal_entries WHERE "+where, arg)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func scanEntry(row rowScanner) (*ledger.JournalEntry, error) {
	var (
		e           ledger.JournalEntry
		entryDate   string
		description sql.NullString
		postedAt    sql.NullString
		createdAt   string
	)
	if err := row.Scan(&e.ID, &e.Number, &entryDate, &description,
		&e.FiscalYearID, &e.PeriodID, &e.Status,
		&e.IsReversal, &e.OriginalEntryID, &e.ReversalEntryID,
		&postedAt, &createdAt); err != nil {
		return nil, err
	}

	e.Date, _ = time.Parse(dayFormat, entryDate)
	e.Description = description.String
	e.CreatedAt = parseTime(createdAt)
	if postedAt.Valid {
		t := parseTime(postedAt.String)
		e.PostedAt = &t
	}
	return &e, nil
}

func (s *Store) GetLines(ctx context.Context, id ledger.EntryID) ([]ledger.JournalEntryLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getLines(ctx, s.db, id)
}

func getLines(ctx context.Context, q querier, id ledger.EntryID) ([]ledger.JournalEntryLine, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, entry_id, account_id, debit, credit, cost_center_id, description, position
		FROM journal_entry_lines
		WHERE entry_id = ?
		ORDER BY position ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query lines: %w", err)
	}
	defer rows.Close()

	var lines []ledger.JournalEntryLine
	for rows.Next() {
		var (
			l             ledger.JournalEntryLine
			debit, credit string
			description   sql.NullString
		)
		if err := rows.Scan(&l.ID, &l.EntryID, &l.AccountID, &debit, &credit,
			&l.CostCenterID, &description, &l.Position); err != nil {
			return nil, err
		}
		l.Debit = mustDecimal(debit)
		l.Credit = mustDecimal(credit)
		l.Description = description.String
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (s *Store) ListEntries(ctx context.Context, from, to time.Time) ([]ledger.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + entryColumns + " FROM journal_entries"
	where, args := dateRange("entry_date", from, to)
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY entry_date ASC, created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// MarkPosted performs the one-way Draft -> Posted transition and stamps
// the entry with the period it landed in.
func (s *Store) MarkPosted(ctx context.Context, id ledger.EntryID, postedAt time.Time, periodID ledger.PeriodID, fyID ledger.FiscalYearID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return markPosted(ctx, s.db, id, postedAt, periodID, fyID)
}

func markPosted(ctx context.Context, q querier, id ledger.EntryID, postedAt time.Time, periodID ledger.PeriodID, fyID ledger.FiscalYearID) error {
	_, err := q.ExecContext(ctx, `
		UPDATE journal_entries
		SET status = 'posted', posted_at = ?, period_id = ?, fiscal_year_id = ?
		WHERE id = ? AND status = 'draft'`,
		postedAt.UTC().Format(time.RFC3339), periodID, fyID, id,
	)
	return err
}

func (s *Store) SetReversalLinks(ctx context.Context, originalID, reversalID ledger.EntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setReversalLinks(ctx, s.db, originalID, reversalID)
}

func setReversalLinks(ctx context.Context, q querier, originalID, reversalID ledger.EntryID) error {
	if _, err := q.ExecContext(ctx,
		"UPDATE journal_entries SET status = 'reversed', reversal_entry_id = ? WHERE id = ?",
		reversalID, originalID); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx,
		"UPDATE journal_entries SET original_entry_id = ? WHERE id = ?",
		originalID, reversalID)
	return err
}

func (s *Store) ClearReversalLinks(ctx context.Context, originalID ledger.EntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clearReversalLinks(ctx, s.db, originalID)
}

func clearReversalLinks(ctx context.Context, q querier, originalID ledger.EntryID) error {
	_, err := q.ExecContext(ctx,
		"UPDATE journal_entries SET status = 'posted', reversal_entry_id = '' WHERE id = ?",
		originalID)
	return err
}

func (s *Store) DeleteEntry(ctx context.Context, id ledger.EntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteEntry(ctx, s.db, id)
}

func deleteEntry(ctx context.Context, q querier, id ledger.EntryID) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM journal_entry_lines WHERE entry_id = ?", id); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx, "DELETE FROM journal_entries WHERE id = ?", id)
	return err
}

// =============================================================================
// POSTED LINE HISTORY
// =============================================================================

const postedLineQuery = `
	SELECT l.id, e.id, e.number, e.entry_date, e.created_at,
	       l.account_id, l.debit, l.credit, l.cost_center_id, l.description, l.position
	FROM journal_entry_lines l
	JOIN journal_entries e ON e.id = l.entry_id
	WHERE e.status != 'draft'
`

const postedLineOrder = " ORDER BY e.entry_date ASC, e.created_at ASC, e.id ASC, l.position ASC"

func (s *Store) PostedLinesForAccount(ctx context.Context, id ledger.AccountID, from, to time.Time) ([]ledger.PostedLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := postedLineQuery + " AND l.account_id = ?"
	args := []any{id}
	where, rangeArgs := dateRange("e.entry_date", from, to)
	if where != "" {
		query += " AND " + where
		args = append(args, rangeArgs...)
	}

	return queryPostedLines(ctx, s.db, query+postedLineOrder, args...)
}

func (s *Store) PostedLinesInRange(ctx context.Context, from, to time.Time) ([]ledger.PostedLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := postedLineQuery
	where, args := dateRange("e.entry_date", from, to)
	if where != "" {
		query += " AND " + where
	}

	return queryPostedLines(ctx, s.db, query+postedLineOrder, args...)
}

func (s *Store) PostedTotalsInRange(ctx context.Context, from, to time.Time) (decimal.Decimal, decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return postedTotalsInRange(ctx, s.db, from, to)
}

// postedTotalsInRange sums in Go rather than SQL: SUM() over a TEXT
// column would go through float and lose exactness.
func postedTotalsInRange(ctx context.Context, q querier, from, to time.Time) (decimal.Decimal, decimal.Decimal, error) {
	query := `
		SELECT l.debit, l.credit
		FROM journal_entry_lines l
		JOIN journal_entries e ON e.id = l.entry_id
		WHERE e.status != 'draft'
	`
	where, args := dateRange("e.entry_date", from, to)
	if where != "" {
		query += " AND " + where
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	defer rows.Close()

	debit, credit := decimal.Zero, decimal.Zero
	for rows.Next() {
		var d, c string
		if err := rows.Scan(&d, &c); err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		debit = debit.Add(mustDecimal(d))
		credit = credit.Add(mustDecimal(c))
	}
	return debit, credit, rows.Err()
}

func queryPostedLines(ctx context.Context, q querier, query string, args ...any) ([]ledger.PostedLine, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query posted lines: %w", err)
	}
	defer rows.Close()

	var lines []ledger.PostedLine
	for rows.Next() {
		var (
			pl             ledger.PostedLine
			entryDate      string
			entryCreatedAt string
			debit, credit  string
			description    sql.NullString
		)
		if err := rows.Scan(&pl.LineID, &pl.EntryID, &pl.EntryNumber, &entryDate, &entryCreatedAt,
			&pl.AccountID, &debit, &credit, &pl.CostCenterID, &description, &pl.Position); err != nil {
			return nil, err
		}
		pl.EntryDate, _ = time.Parse(dayFormat, entryDate)
		pl.EntryCreatedAt = parseTime(entryCreatedAt)
		pl.Debit = mustDecimal(debit)
		pl.Credit = mustDecimal(credit)
		pl.Description = description.String
		lines = append(lines, pl)
	}
	return lines, rows.Err()
}

// =============================================================================
// POSTING CALENDAR
// =============================================================================

func (s *Store) SaveFiscalYear(ctx context.Context, fy ledger.FiscalYear) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveFiscalYear(ctx, s.db, fy)
}

func saveFiscalYear(ctx context.Context, q querier, fy ledger.FiscalYear) error {
	query := `
		INSERT INTO fiscal_years (id, name, start_date, end_date, is_closed, closed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			is_closed = excluded.is_closed,
			closed_at = excluded.closed_at
	`

	_, err := q.ExecContext(ctx, query,
		fy.ID, fy.Name,
		fy.StartDate.Format(dayFormat), fy.EndDate.Format(dayFormat),
		fy.IsClosed, nullTime(fy.ClosedAt),
	)
	return err
}

func (s *Store) GetFiscalYear(ctx context.Context, id ledger.FiscalYearID) (*ledger.FiscalYear, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getFiscalYear(ctx, s.db, id)
}

func getFiscalYear(ctx context.Context, q querier, id ledger.FiscalYearID) (*ledger.FiscalYear, error) {
	row := q.QueryRowContext(ctx,
		"SELECT id, name, start_date, end_date, is_closed, closed_at FROM fiscal_years WHERE id = ?", id)
	fy, err := scanFiscalYear(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return fy, nil
}

func (s *Store) ListFiscalYears(ctx context.Context) ([]ledger.FiscalYear, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, start_date, end_date, is_closed, closed_at FROM fiscal_years ORDER BY start_date ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var years []ledger.FiscalYear
	for rows.Next() {
		fy, err := scanFiscalYear(rows)
		if err != nil {
			return nil, err
		}
		years = append(years, *fy)
	}
	return years, rows.Err()
}

func scanFiscalYear(row rowScanner) (*ledger.FiscalYear, error) {
	var (
		fy         ledger.FiscalYear
		start, end string
		closedAt   sql.NullString
	)
	if err := row.Scan(&fy.ID, &fy.Name, &start, &end, &fy.IsClosed, &closedAt); err != nil {
		return nil, err
	}
	fy.StartDate, _ = time.Parse(dayFormat, start)
	fy.EndDate, _ = time.Parse(dayFormat, end)
	if closedAt.Valid {
		t := parseTime(closedAt.String)
		fy.ClosedAt = &t
	}
	return &fy, nil
}

func (s *Store) SavePeriod(ctx context.Context, p ledger.AccountingPeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return savePeriod(ctx, s.db, p)
}

func savePeriod(ctx context.Context, q querier, p ledger.AccountingPeriod) error {
	query := `
		INSERT INTO accounting_periods (id, fiscal_year_id, name, start_date, end_date, status, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			closed_at = excluded.closed_at
	`

	_, err := q.ExecContext(ctx, query,
		p.ID, p.FiscalYearID, p.Name,
		p.StartDate.Format(dayFormat), p.EndDate.Format(dayFormat),
		p.Status, nullTime(p.ClosedAt),
	)
	return err
}

func (s *Store) GetPeriod(ctx context.Context, id ledger.PeriodID) (*ledger.AccountingPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPeriod(ctx, s.db, "id = ?", id)
}

func (s *Store) FindPeriodFor(ctx context.Context, date time.Time) (*ledger.AccountingPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	day := ledger.DateOnly(date).Format(dayFormat)
	return getPeriod(ctx, s.db, "start_date <= ? AND end_date >= ?", day, day)
}

func getPeriod(ctx context.Context, q querier, where string, args ...any) (*ledger.AccountingPeriod, error) {
	row := q.QueryRowContext(ctx,
		"SELECT id, fiscal_year_id, name, start_date, end_date, status, closed_at FROM accounting_periods WHERE "+where,
		args...)
	p, err := scanPeriod(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) ListPeriods(ctx context.Context, fyID ledger.FiscalYearID) ([]ledger.AccountingPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, fiscal_year_id, name, start_date, end_date, status, closed_at
		FROM accounting_periods
		WHERE fiscal_year_id = ?
		ORDER BY start_date ASC`, fyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var periods []ledger.AccountingPeriod
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		periods = append(periods, *p)
	}
	return periods, rows.Err()
}

func scanPeriod(row rowScanner) (*ledger.AccountingPeriod, error) {
	var (
		p          ledger.AccountingPeriod
		start, end string
		closedAt   sql.NullString
	)
	if err := row.Scan(&p.ID, &p.FiscalYearID, &p.Name, &start, &end, &p.Status, &closedAt); err != nil {
		return nil, err
	}
	p.StartDate, _ = time.Parse(dayFormat, start)
	p.EndDate, _ = time.Parse(dayFormat, end)
	if closedAt.Valid {
		t := parseTime(closedAt.String)
		p.ClosedAt = &t
	}
	return &p, nil
}

// =============================================================================
// BALANCE SNAPSHOTS
// =============================================================================

func (s *Store) SaveBalanceSnapshot(ctx context.Context, b ledger.AccountBalance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveBalanceSnapshot(ctx, s.db, b)
}

func saveBalanceSnapshot(ctx context.Context, q querier, b ledger.AccountBalance) error {
	query := `
		INSERT INTO balance_snapshots
		(account_id, period_id, period_end, opening_debit, opening_credit,
		 total_debit, total_credit, closing_debit, closing_credit, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id, period_id) DO UPDATE SET
			period_end = excluded.period_end,
			opening_debit = excluded.opening_debit,
			opening_credit = excluded.opening_credit,
			total_debit = excluded.total_debit,
			total_credit = excluded.total_credit,
			closing_debit = excluded.closing_debit,
			closing_credit = excluded.closing_credit,
			created_at = excluded.created_at
	`

	_, err := q.ExecContext(ctx, query,
		b.AccountID, b.PeriodID, b.PeriodEnd.Format(dayFormat),
		b.OpeningDebit.String(), b.OpeningCredit.String(),
		b.TotalDebit.String(), b.TotalCredit.String(),
		b.ClosingDebit.String(), b.ClosingCredit.String(),
		b.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetBalanceSnapshot(ctx context.Context, id ledger.AccountID, periodID ledger.PeriodID) (*ledger.AccountBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getSnapshot(ctx, s.db, "account_id = ? AND period_id = ?", id, periodID)
}

func (s *Store) LatestSnapshotBefore(ctx context.Context, id ledger.AccountID, before time.Time) (*ledger.AccountBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getSnapshot(ctx, s.db,
		"account_id = ? AND period_end < ? ORDER BY period_end DESC LIMIT 1",
		id, ledger.DateOnly(before).Format(dayFormat))
}

func getSnapshot(ctx context.Context, q querier, where string, args ...any) (*ledger.AccountBalance, error) {
	row := q.QueryRowContext(ctx, `
		SELECT account_id, period_id, period_end, opening_debit, opening_credit,
		       total_debit, total_credit, closing_debit, closing_credit, created_at
		FROM balance_snapshots WHERE `+where, args...)

	var (
		b              ledger.AccountBalance
		periodEnd      string
		od, oc, td, tc string
		cd, cc         string
		createdAt      string
	)
	err := row.Scan(&b.AccountID, &b.PeriodID, &periodEnd, &od, &oc, &td, &tc, &cd, &cc, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	b.PeriodEnd, _ = time.Parse(dayFormat, periodEnd)
	b.OpeningDebit = mustDecimal(od)
	b.OpeningCredit = mustDecimal(oc)
	b.TotalDebit = mustDecimal(td)
	b.TotalCredit = mustDecimal(tc)
	b.ClosingDebit = mustDecimal(cd)
	b.ClosingCredit = mustDecimal(cc)
	b.CreatedAt = parseTime(createdAt)
	return &b, nil
}

// =============================================================================
// ENTRY NUMBERING
// =============================================================================

// Numbers returns a durable ledger.EntryNumberSource backed by the
// entry_sequences table. Aborted transactions burn numbers; the sequence
// is unique and ascending, not gapless.
func (s *Store) Numbers() *EntryNumbers {
	return &EntryNumbers{store: s}
}

type EntryNumbers struct {
	store *Store
}

func (n *EntryNumbers) Next(ctx context.Context, date time.Time) (string, error) {
	n.store.mu.Lock()
	defer n.store.mu.Unlock()

	year := date.Year()
	tx, err := n.store.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO entry_sequences (year, counter) VALUES (?, 0) ON CONFLICT(year) DO NOTHING", year); err != nil {
		return "", err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE entry_sequences SET counter = counter + 1 WHERE year = ?", year); err != nil {
		return "", err
	}

	var counter int
	if err := tx.QueryRowContext(ctx,
		"SELECT counter FROM entry_sequences WHERE year = ?", year).Scan(&counter); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}

	return ledger.FormatEntryNumber(year, counter), nil
}

func (n *EntryNumbers) NextReversal(_ context.Context, originalNumber string) (string, error) {
	return ledger.ReversalNumberFor(originalNumber), nil
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction. The write
// lock is held for the duration, so reads inside fn see the
// transaction's own writes and nothing interleaves.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore routes every Store call through the open *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) SaveAccount(ctx context.Context, a ledger.Account) error {
	return saveAccount(ctx, ts.tx, a)
}

func (ts *txStore) GetAccount(ctx context.Context, id ledger.AccountID) (*ledger.Account, error) {
	return getAccount(ctx, ts.tx, "id = ?", id)
}

func (ts *txStore) GetAccountByCode(ctx context.Context, code ledger.AccountCode) (*ledger.Account, error) {
	return getAccount(ctx, ts.tx, "code = ?", code.String())
}

func (ts *txStore) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
	return queryAccounts(ctx, ts.tx,
		"SELECT id, code, name, parent_id, type, normal_side, is_active, balance, created_at FROM accounts")
}

func (ts *txStore) ListChildAccounts(ctx context.Context, parentID ledger.AccountID) ([]ledger.Account, error) {
	return queryAccounts(ctx, ts.tx,
		"SELECT id, code, name, parent_id, type, normal_side, is_active, balance, created_at FROM accounts WHERE parent_id = ?",
		parentID)
}

func (ts *txStore) AddToAccountBalance(ctx context.Context, id ledger.AccountID, delta decimal.Decimal) error {
	return addToAccountBalance(ctx, ts.tx, id, delta)
}

func (ts *txStore) DeleteAccount(ctx context.Context, id ledger.AccountID) error {
	_, err := ts.tx.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", id)
	return err
}

func (ts *txStore) AccountHasPostedLines(ctx context.Context, id ledger.AccountID) (bool, error) {
	return accountHasPostedLines(ctx, ts.tx, id)
}

func (ts *txStore) SaveEntry(ctx context.Context, e ledger.JournalEntry, lines []ledger.JournalEntryLine) error {
	return saveEntry(ctx, ts.tx, e, lines)
}

func (ts *txStore) GetEntry(ctx context.Context, id ledger.EntryID) (*ledger.JournalEntry, error) {
	return getEntry(ctx, ts.tx, "id = ?", id)
}

func (ts *txStore) GetEntryByNumber(ctx context.Context, number string) (*ledger.JournalEntry, error) {
	return getEntry(ctx, ts.tx, "number = ?", number)
}

func (ts *txStore) GetLines(ctx context.Context, id ledger.EntryID) ([]ledger.JournalEntryLine, error) {
	return getLines(ctx, ts.tx, id)
}

func (ts *txStore) ListEntries(ctx context.Context, from, to time.Time) ([]ledger.JournalEntry, error) {
	query := "SELECT " + entryColumns + " FROM journal_entries"
	where, args := dateRange("entry_date", from, to)
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY entry_date ASC, created_at ASC"

	rows, err := ts.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ledger.JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (ts *txStore) MarkPosted(ctx context.Context, id ledger.EntryID, postedAt time.Time, periodID ledger.PeriodID, fyID ledger.FiscalYearID) error {
	return markPosted(ctx, ts.tx, id, postedAt, periodID, fyID)
}

func (ts *txStore) SetReversalLinks(ctx context.Context, originalID, reversalID ledger.EntryID) error {
	return setReversalLinks(ctx, ts.tx, originalID, reversalID)
}

func (ts *txStore) ClearReversalLinks(ctx context.Context, originalID ledger.EntryID) error {
	return clearReversalLinks(ctx, ts.tx, originalID)
}

func (ts *txStore) DeleteEntry(ctx context.Context, id ledger.EntryID) error {
	return deleteEntry(ctx, ts.tx, id)
}

func (ts *txStore) PostedLinesForAccount(ctx context.Context, id ledger.AccountID, from, to time.Time) ([]ledger.PostedLine, error) {
	query := postedLineQuery + " AND l.account_id = ?"
	args := []any{id}
	where, rangeArgs := dateRange("e.entry_date", from, to)
	if where != "" {
		query += " AND " + where
		args = append(args, rangeArgs...)
	}
	return queryPostedLines(ctx, ts.tx, query+postedLineOrder, args...)
}

func (ts *txStore) PostedLinesInRange(ctx context.Context, from, to time.Time) ([]ledger.PostedLine, error) {
	query := postedLineQuery
	where, args := dateRange("e.entry_date", from, to)
	if where != "" {
		query += " AND " + where
	}
	return queryPostedLines(ctx, ts.tx, query+postedLineOrder, args...)
}

func (ts *txStore) PostedTotalsInRange(ctx context.Context, from, to time.Time) (decimal.Decimal, decimal.Decimal, error) {
	return postedTotalsInRange(ctx, ts.tx, from, to)
}

func (ts *txStore) SaveFiscalYear(ctx context.Context, fy ledger.FiscalYear) error {
	return saveFiscalYear(ctx, ts.tx, fy)
}

func (ts *txStore) GetFiscalYear(ctx context.Context, id ledger.FiscalYearID) (*ledger.FiscalYear, error) {
	return getFiscalYear(ctx, ts.tx, id)
}

func (ts *txStore) ListFiscalYears(ctx context.Context) ([]ledger.FiscalYear, error) {
	rows, err := ts.tx.QueryContext(ctx,
		"SELECT id, name, start_date, end_date, is_closed, closed_at FROM fiscal_years ORDER BY start_date ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var years []ledger.FiscalYear
	for rows.Next() {
		fy, err := scanFiscalYear(rows)
		if err != nil {
			return nil, err
		}
		years = append(years, *fy)
	}
	return years, rows.Err()
}

func (ts *txStore) SavePeriod(ctx context.Context, p ledger.AccountingPeriod) error {
	return savePeriod(ctx, ts.tx, p)
}

func (ts *txStore) GetPeriod(ctx context.Context, id ledger.PeriodID) (*ledger.AccountingPeriod, error) {
	return getPeriod(ctx, ts.tx, "id = ?", id)
}

func (ts *txStore) ListPeriods(ctx context.Context, fyID ledger.FiscalYearID) ([]ledger.AccountingPeriod, error) {
	rows, err := ts.tx.QueryContext(ctx, `
		SELECT id, fiscal_year_id, name, start_date, end_date, status, closed_at
		FROM accounting_periods
		WHERE fiscal_year_id = ?
		ORDER BY start_date ASC`, fyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var periods []ledger.AccountingPeriod
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		periods = append(periods, *p)
	}
	return periods, rows.Err()
}

func (ts *txStore) FindPeriodFor(ctx context.Context, date time.Time) (*ledger.AccountingPeriod, error) {
	day := ledger.DateOnly(date).Format(dayFormat)
	return getPeriod(ctx, ts.tx, "start_date <= ? AND end_date >= ?", day, day)
}

func (ts *txStore) SaveBalanceSnapshot(ctx context.Context, b ledger.AccountBalance) error {
	return saveBalanceSnapshot(ctx, ts.tx, b)
}

func (ts *txStore) GetBalanceSnapshot(ctx context.Context, id ledger.AccountID, periodID ledger.PeriodID) (*ledger.AccountBalance, error) {
	return getSnapshot(ctx, ts.tx, "account_id = ? AND period_id = ?", id, periodID)
}

func (ts *txStore) LatestSnapshotBefore(ctx context.Context, id ledger.AccountID, before time.Time) (*ledger.AccountBalance, error) {
	return getSnapshot(ctx, ts.tx,
		"account_id = ? AND period_end < ? ORDER BY period_end DESC LIMIT 1",
		id, ledger.DateOnly(before).Format(dayFormat))
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"journal_entry_lines", "journal_entries", "balance_snapshots",
		"accounting_periods", "fiscal_years", "accounts", "entry_sequences",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// dateRange builds a WHERE fragment for a day-granularity column.
// Zero bounds mean unbounded.
func dateRange(column string, from, to time.Time) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if !from.IsZero() {
		clauses = append(clauses, column+" >= ?")
		args = append(args, ledger.DateOnly(from).Format(dayFormat))
	}
	if !to.IsZero() {
		clauses = append(clauses, column+" <= ?")
		args = append(args, ledger.DateOnly(to).Format(dayFormat))
	}
	return strings.Join(clauses, " AND "), args
}

func nullTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
