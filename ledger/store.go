/*
store.go - Persistence interface for the ledger

PURPOSE:
  Defines the interface between the engines and the database. Engines
  never touch SQL; they receive a Store (or, for multi-step mutations,
  a TxStore whose WithTx gives them a transaction-scoped Store).

TRANSACTION BOUNDARY:
  Every multi-step mutation (posting, reversal, closing) runs inside a
  single WithTx call: all precondition checks re-read state through the
  transaction-scoped Store, so concurrent attempts serialize and the
  loser observes the new state (e.g. AlreadyPosted) instead of
  double-applying deltas. A failure at any step rolls everything back.

IMMUTABILITY CONTRACT:
  Posted entries are never updated except by MarkPosted (once) and
  SetReversalLinks (once, from the reversal transaction). DeleteEntry is
  only ever called on drafts; implementations may enforce this too.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: production SQLite store
  - ledger/store/memory.go: in-memory store for tests
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Store is the persistence surface the engines run against. Reads of
// absent rows return (nil, nil); engines translate that into the §7
// not-found errors so stores stay free of domain policy.
type Store interface {
	// --- Accounts ---

	// SaveAccount inserts or updates an account's metadata. It must not
	// be used to move balances; see AddToAccountBalance.
	SaveAccount(ctx context.Context, a Account) error
	GetAccount(ctx context.Context, id AccountID) (*Account, error)
	GetAccountByCode(ctx context.Context, code AccountCode) (*Account, error)
	// ListAccounts returns all accounts ordered by code.
	ListAccounts(ctx context.Context) ([]Account, error)
	ListChildAccounts(ctx context.Context, parentID AccountID) ([]Account, error)
	// AddToAccountBalance applies delta to the denormalized running
	// balance as an atomic increment (never read-modify-write).
	AddToAccountBalance(ctx context.Context, id AccountID, delta decimal.Decimal) error
	DeleteAccount(ctx context.Context, id AccountID) error
	// AccountHasPostedLines reports whether any posted line references
	// the account.
	AccountHasPostedLines(ctx context.Context, id AccountID) (bool, error)

	// --- Journal entries ---

	// SaveEntry writes an entry header and replaces its lines wholesale.
	// Only drafts are saved this way.
	SaveEntry(ctx context.Context, e JournalEntry, lines []JournalEntryLine) error
	GetEntry(ctx context.Context, id EntryID) (*JournalEntry, error)
	GetEntryByNumber(ctx context.Context, number string) (*JournalEntry, error)
	GetLines(ctx context.Context, id EntryID) ([]JournalEntryLine, error)
	// ListEntries returns entry headers dated within [from, to], ordered
	// by (date, created_at).
	ListEntries(ctx context.Context, from, to time.Time) ([]JournalEntry, error)
	// MarkPosted flips status to Posted, stamps postedAt and records the
	// period/fiscal year the entry was posted into.
	MarkPosted(ctx context.Context, id EntryID, postedAt time.Time, periodID PeriodID, fyID FiscalYearID) error
	// SetReversalLinks marks the original Reversed and records the
	// bidirectional links between original and reversal.
	SetReversalLinks(ctx context.Context, originalID, reversalID EntryID) error
	// ClearReversalLinks undoes SetReversalLinks-in-progress state for a
	// cancelled draft reversal: the original becomes plain Posted again.
	ClearReversalLinks(ctx context.Context, originalID EntryID) error
	DeleteEntry(ctx context.Context, id EntryID) error

	// --- Posted line history (reporting read model) ---

	// PostedLinesForAccount returns posted lines for the account dated
	// within [from, to], ordered by (entry date, entry created_at,
	// line position). A zero from means unbounded history.
	PostedLinesForAccount(ctx context.Context, id AccountID, from, to time.Time) ([]PostedLine, error)
	// PostedLinesInRange returns all posted lines dated within [from, to]
	// in the same order.
	PostedLinesInRange(ctx context.Context, from, to time.Time) ([]PostedLine, error)
	// PostedTotalsInRange sums debits and credits over all posted lines
	// dated within [from, to].
	PostedTotalsInRange(ctx context.Context, from, to time.Time) (debit, credit decimal.Decimal, err error)

	// --- Posting calendar ---

	SaveFiscalYear(ctx context.Context, fy FiscalYear) error
	GetFiscalYear(ctx context.Context, id FiscalYearID) (*FiscalYear, error)
	ListFiscalYears(ctx context.Context) ([]FiscalYear, error)
	SavePeriod(ctx context.Context, p AccountingPeriod) error
	GetPeriod(ctx context.Context, id PeriodID) (*AccountingPeriod, error)
	// ListPeriods returns the fiscal year's periods ordered by start date.
	ListPeriods(ctx context.Context, fyID FiscalYearID) ([]AccountingPeriod, error)
	// FindPeriodFor returns the single period containing date, or nil.
	FindPeriodFor(ctx context.Context, date time.Time) (*AccountingPeriod, error)

	// --- Balance snapshots (cache) ---

	SaveBalanceSnapshot(ctx context.Context, b AccountBalance) error
	GetBalanceSnapshot(ctx context.Context, id AccountID, periodID PeriodID) (*AccountBalance, error)
	// LatestSnapshotBefore returns the account's snapshot with the
	// greatest period end strictly before the given date, or nil.
	LatestSnapshotBefore(ctx context.Context, id AccountID, before time.Time) (*AccountBalance, error)
}

// TxStore wraps Store with transaction support.
//
// WithTx executes fn within a transaction: if fn returns an error the
// transaction rolls back and the error propagates unchanged; otherwise
// it commits. The Store passed to fn reads and writes through that
// transaction.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}
