package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/ledger-engine/ledger"
	"github.com/meridian-erp/ledger-engine/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// fakeClock hands out strictly increasing timestamps so entry ordering
// by created-at is deterministic within a test.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

// testLedger bundles every engine over one in-memory store.
type testLedger struct {
	store    *store.TxMemory
	registry *ledger.Registry
	journal  *ledger.Journal
	posting  *ledger.PostingEngine
	reversal *ledger.ReversalEngine
	closer   *ledger.Closer
	reporter *ledger.Reporter
}

func newTestLedger(t *testing.T) *testLedger {
	t.Helper()

	s := store.NewTxMemory()
	numbers := ledger.NewSequence()
	clock := &fakeClock{t: time.Date(2025, time.January, 1, 8, 0, 0, 0, time.UTC)}

	journal := ledger.NewJournal(s, numbers)
	journal.Now = clock.Now
	posting := ledger.NewPostingEngine(s)
	posting.Now = clock.Now
	reversal := ledger.NewReversalEngine(s, numbers, posting)
	reversal.Now = clock.Now
	closer := ledger.NewCloser(s)
	closer.Now = clock.Now

	return &testLedger{
		store:    s,
		registry: ledger.NewRegistry(s),
		journal:  journal,
		posting:  posting,
		reversal: reversal,
		closer:   closer,
		reporter: ledger.NewReporter(s),
	}
}

// setupCalendar registers FY2025 (calendar year, monthly periods).
func setupCalendar(t *testing.T, tl *testLedger) (*ledger.FiscalYear, []ledger.AccountingPeriod) {
	t.Helper()
	fy, periods, err := tl.closer.CreateFiscalYear(context.Background(), "FY2025",
		time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, periods, 12)
	return fy, periods
}

func newAccount(t *testing.T, tl *testLedger, code, name string, typ ledger.AccountType) *ledger.Account {
	t.Helper()
	acc, err := tl.registry.CreateAccount(context.Background(), ledger.CreateAccountInput{
		Code: code,
		Name: name,
		Type: typ,
	})
	require.NoError(t, err)
	return acc
}

// standardChart creates the minimal accounts most tests post against.
func standardChart(t *testing.T, tl *testLedger) (cash, revenue, expense *ledger.Account) {
	t.Helper()
	cash = newAccount(t, tl, "1", "Cash", ledger.AccountAsset)
	revenue = newAccount(t, tl, "4", "Sales", ledger.AccountRevenue)
	expense = newAccount(t, tl, "5", "Rent", ledger.AccountExpense)
	return cash, revenue, expense
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func debitLine(acc *ledger.Account, amount string) ledger.LineInput {
	return ledger.LineInput{AccountID: acc.ID, Debit: amount}
}

func creditLine(acc *ledger.Account, amount string) ledger.LineInput {
	return ledger.LineInput{AccountID: acc.ID, Credit: amount}
}

// postEntry drafts and posts a balanced entry, returning the posted header.
func postEntry(t *testing.T, tl *testLedger, date time.Time, lines ...ledger.LineInput) *ledger.JournalEntry {
	t.Helper()
	ctx := context.Background()
	entry, _, err := tl.journal.CreateDraft(ctx, ledger.EntryInput{
		Date:        date,
		Description: "test entry",
		Lines:       lines,
	})
	require.NoError(t, err)
	posted, err := tl.posting.Post(ctx, entry.ID)
	require.NoError(t, err)
	return posted
}

// accountBalance reloads the account's denormalized balance.
func accountBalance(t *testing.T, tl *testLedger, id ledger.AccountID) string {
	t.Helper()
	acc, err := tl.store.GetAccount(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, acc)
	return acc.Balance.String()
}
