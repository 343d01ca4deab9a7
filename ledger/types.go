/*
Package ledger provides the double-entry accounting core.

PURPOSE:
  This package contains the domain types and engines that keep the
  general ledger correct: journal entries must balance, posting applies
  balance deltas atomically, posted history is immutable, closed periods
  reject further postings, and every report is re-derivable from the
  posted line history.

KEY CONCEPTS IN THIS FILE (types.go):
  - Account: a node in the hierarchical chart of accounts
  - JournalEntry / JournalEntryLine: a balanced financial transaction
  - FiscalYear / AccountingPeriod: the posting calendar
  - AccountBalance: a per-period balance snapshot (cache, never truth)

DESIGN PRINCIPLES:
  1. Immutability: posted entries are never edited, only reversed
  2. Precision: decimal.Decimal everywhere, exact comparison, no floats
  3. Derivability: balances and reports recompute from posted lines
  4. Explicit errors: engines return typed errors, never panic or retry

SEE ALSO:
  - validate.go: entry shape and balance rules
  - posting.go:  Draft -> Posted transition
  - reversal.go: mirror-entry generation
  - closing.go:  period locking and the CheckOpen guard
  - reporting.go: general ledger and trial balance
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AccountID string
type EntryID string
type LineID string
type FiscalYearID string
type PeriodID string
type CostCenterID string

// =============================================================================
// ACCOUNT - Node in the chart of accounts
// =============================================================================

// AccountType classifies an account. The type determines the normal
// balance side: Asset/Expense accounts grow on the debit side,
// Liability/Equity/Revenue accounts grow on the credit side.
type AccountType string

const (
	AccountAsset     AccountType = "asset"
	AccountLiability AccountType = "liability"
	AccountEquity    AccountType = "equity"
	AccountRevenue   AccountType = "revenue"
	AccountExpense   AccountType = "expense"
)

// BalanceSide is the side of the ledger on which increases are recorded.
type BalanceSide string

const (
	SideDebit  BalanceSide = "debit"
	SideCredit BalanceSide = "credit"
)

// NormalSide returns the side on which increases to this account type
// are recorded.
func (t AccountType) NormalSide() BalanceSide {
	switch t {
	case AccountAsset, AccountExpense:
		return SideDebit
	default:
		return SideCredit
	}
}

// Valid reports whether t is one of the five account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountAsset, AccountLiability, AccountEquity, AccountRevenue, AccountExpense:
		return true
	}
	return false
}

// Account is a node in the hierarchical chart of accounts.
//
// INVARIANTS:
//   - Code is globally unique.
//   - A non-root account's code is prefixed by its parent's code.
//   - An account with children cannot be deleted.
//   - Balance is denormalized from posted lines and maintained only by
//     the posting engine's atomic increments.
type Account struct {
	ID         AccountID
	Code       AccountCode
	Name       string
	ParentID   AccountID // empty = root account
	Type       AccountType
	NormalSide BalanceSide
	IsActive   bool
	Balance    decimal.Decimal
	CreatedAt  time.Time
}

// SignedDelta returns the balance delta a line applies to an account
// with the given normal side: debit-normal accounts grow with debits,
// credit-normal accounts grow with credits.
func SignedDelta(side BalanceSide, debit, credit decimal.Decimal) decimal.Decimal {
	if side == SideDebit {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}

// =============================================================================
// JOURNAL ENTRY - A balanced financial transaction
// =============================================================================

// EntryStatus is the lifecycle state of a journal entry.
//
//	Draft ──Post──> Posted ──Reverse──> Reversed
//
// The Draft -> Posted transition is irreversible; Reversed additionally
// records that a mirror entry cancels this one.
type EntryStatus string

const (
	StatusDraft    EntryStatus = "draft"
	StatusPosted   EntryStatus = "posted"
	StatusReversed EntryStatus = "reversed"
)

// JournalEntry is the header of a financial transaction. Lines are held
// separately (JournalEntryLine) and sum to equal debits and credits.
type JournalEntry struct {
	ID           EntryID
	Number       string // unique, human-readable, e.g. "JE-2025-000042"
	Date         time.Time
	Description  string
	FiscalYearID FiscalYearID
	PeriodID     PeriodID
	Status       EntryStatus

	// Reversal bookkeeping. IsReversal marks generated mirror entries;
	// OriginalEntryID points back to the entry they cancel. On the
	// original, ReversalEntryID is set once it has been reversed.
	IsReversal      bool
	OriginalEntryID EntryID
	ReversalEntryID EntryID

	PostedAt  *time.Time
	CreatedAt time.Time
}

// IsReversed reports whether a mirror entry has been posted against
// this entry.
func (e *JournalEntry) IsReversed() bool {
	return e.ReversalEntryID != ""
}

// JournalEntryLine is a single debit or credit against one account.
//
// INVARIANT: exactly one of Debit/Credit is non-zero, never both,
// never neither.
type JournalEntryLine struct {
	ID           LineID
	EntryID      EntryID
	AccountID    AccountID
	Debit        decimal.Decimal
	Credit       decimal.Decimal
	CostCenterID CostCenterID // optional
	Description  string

	// Position is the line's creation order within its entry. Together
	// with the entry's date and creation time it makes report ordering
	// deterministic.
	Position int
}

// Totals returns the summed debit and credit over a set of lines.
func Totals(lines []JournalEntryLine) (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, l := range lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit
}

// =============================================================================
// POSTING CALENDAR - Fiscal years and accounting periods
// =============================================================================

type PeriodStatus string

const (
	PeriodOpen   PeriodStatus = "open"
	PeriodClosed PeriodStatus = "closed"
)

// FiscalYear spans a contiguous run of accounting periods.
type FiscalYear struct {
	ID        FiscalYearID
	Name      string // e.g. "FY2025"
	StartDate time.Time
	EndDate   time.Time
	IsClosed  bool
	ClosedAt  *time.Time
}

// AccountingPeriod is the unit of closing. Periods within a fiscal year
// are contiguous and non-overlapping; once Closed, no entry dated inside
// the period may be posted or mutated.
type AccountingPeriod struct {
	ID           PeriodID
	FiscalYearID FiscalYearID
	Name         string // e.g. "2025-03"
	StartDate    time.Time
	EndDate      time.Time
	Status       PeriodStatus
	ClosedAt     *time.Time
}

// Contains reports whether date falls within [StartDate, EndDate],
// compared at day granularity.
func (p *AccountingPeriod) Contains(date time.Time) bool {
	d := DateOnly(date)
	return !d.Before(DateOnly(p.StartDate)) && !d.After(DateOnly(p.EndDate))
}

// DateOnly truncates t to midnight UTC. Entry dates and period bounds
// are compared at day granularity throughout.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// ACCOUNT BALANCE SNAPSHOT - Per-period cache, never a source of truth
// =============================================================================

// AccountBalance freezes one account's activity over one period.
// Opening carries forward the prior period's closing; closing is opening
// plus the period's totals. Snapshots are written at period close and are
// always re-derivable from posted line history.
type AccountBalance struct {
	AccountID     AccountID
	PeriodID      PeriodID
	PeriodEnd     time.Time
	OpeningDebit  decimal.Decimal
	OpeningCredit decimal.Decimal
	TotalDebit    decimal.Decimal
	TotalCredit   decimal.Decimal
	ClosingDebit  decimal.Decimal
	ClosingCredit decimal.Decimal
	CreatedAt     time.Time
}

// Net returns the snapshot's closing balance signed per the given
// normal side.
func (b *AccountBalance) Net(side BalanceSide) decimal.Decimal {
	return SignedDelta(side, b.ClosingDebit, b.ClosingCredit)
}

// =============================================================================
// POSTED LINE - Reporting view of a line joined with its entry header
// =============================================================================

// PostedLine is the read-model row the reporting component consumes: a
// journal entry line flattened together with its (posted) entry header.
// Stores return posted lines ordered by (EntryDate, EntryCreatedAt,
// Position) so reports are reproducible.
type PostedLine struct {
	LineID         LineID
	EntryID        EntryID
	EntryNumber    string
	EntryDate      time.Time
	EntryCreatedAt time.Time
	AccountID      AccountID
	Debit          decimal.Decimal
	Credit         decimal.Decimal
	CostCenterID   CostCenterID
	Description    string
	Position       int
}
