package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/ledger-engine/ledger"
)

// =============================================================================
// FISCAL YEAR SETUP
// =============================================================================

func TestCloser_CreateFiscalYear_MonthlyPeriods(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()

	fy, periods, err := tl.closer.CreateFiscalYear(ctx, "FY2025",
		day(2025, time.January, 1), day(2025, time.December, 31))
	require.NoError(t, err)

	assert.Equal(t, "FY2025", fy.Name)
	require.Len(t, periods, 12)
	assert.Equal(t, "2025-01", periods[0].Name)
	assert.True(t, periods[0].StartDate.Equal(day(2025, time.January, 1)))
	assert.True(t, periods[0].EndDate.Equal(day(2025, time.January, 31)))
	assert.True(t, periods[11].EndDate.Equal(day(2025, time.December, 31)))

	// Contiguous, no gaps.
	for i := 1; i < len(periods); i++ {
		assert.True(t, periods[i].StartDate.Equal(periods[i-1].EndDate.AddDate(0, 0, 1)),
			"period %s must start the day after %s ends", periods[i].Name, periods[i-1].Name)
	}
}

func TestCloser_CreateFiscalYear_PartialMonths(t *testing.T) {
	// A fiscal year starting mid-month gets a short first period.
	tl := newTestLedger(t)

	_, periods, err := tl.closer.CreateFiscalYear(context.Background(), "",
		day(2025, time.April, 15), day(2026, time.April, 14))
	require.NoError(t, err)

	require.Len(t, periods, 13)
	assert.True(t, periods[0].StartDate.Equal(day(2025, time.April, 15)))
	assert.True(t, periods[0].EndDate.Equal(day(2025, time.April, 30)))
	assert.True(t, periods[12].StartDate.Equal(day(2026, time.April, 1)))
	assert.True(t, periods[12].EndDate.Equal(day(2026, time.April, 14)))
}

func TestCloser_CreateFiscalYear_Rejections(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()
	setupCalendar(t, tl)

	// Overlapping year.
	_, _, err := tl.closer.CreateFiscalYear(ctx, "FY2025b",
		day(2025, time.July, 1), day(2026, time.June, 30))
	assert.Error(t, err, "overlapping fiscal years must be rejected")

	// Start not before end.
	_, _, err = tl.closer.CreateFiscalYear(ctx, "empty",
		day(2027, time.January, 1), day(2027, time.January, 1))
	assert.ErrorIs(t, err, ledger.ErrInvalidDate)

	// An adjacent year is fine.
	_, _, err = tl.closer.CreateFiscalYear(ctx, "FY2026",
		day(2026, time.January, 1), day(2026, time.December, 31))
	assert.NoError(t, err)
}

// =============================================================================
// PERIOD CLOSE
// =============================================================================

func TestCloser_ClosePeriod_LocksAndSnapshots(t *testing.T) {
	// GIVEN: posted activity in January
	// WHEN: closing the January period
	// THEN: the period locks and per-account snapshots are frozen

	tl := newTestLedger(t)
	ctx := context.Background()
	_, periods := setupCalendar(t, tl)
	cash, revenue, _ := standardChart(t, tl)

	postEntry(t, tl, day(2025, time.January, 10),
		debitLine(cash, "100"), creditLine(revenue, "100"))
	postEntry(t, tl, day(2025, time.January, 20),
		debitLine(cash, "50"), creditLine(revenue, "50"))

	closed, err := tl.closer.ClosePeriod(ctx, periods[0].ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.PeriodClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)

	snap, err := tl.store.GetBalanceSnapshot(ctx, cash.ID, periods[0].ID)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.True(t, snap.OpeningDebit.IsZero())
	assert.True(t, snap.TotalDebit.Equal(dec(t, "150")))
	assert.True(t, snap.ClosingDebit.Equal(dec(t, "150")))
	assert.True(t, snap.ClosingCredit.IsZero())

	// Further postings into the closed period are rejected.
	_, _, err = tl.journal.CreateDraft(ctx, ledger.EntryInput{
		Date:  day(2025, time.January, 25),
		Lines: []ledger.LineInput{debitLine(cash, "10"), creditLine(revenue, "10")},
	})
	assert.ErrorIs(t, err, ledger.ErrPeriodClosed)

	// Closing twice fails.
	_, err = tl.closer.ClosePeriod(ctx, periods[0].ID)
	assert.ErrorIs(t, err, ledger.ErrPeriodAlreadyClosed)
}

func TestCloser_ClosePeriod_RequiresSequentialClose(t *testing.T) {
	// GIVEN: posted January activity and every period still open
	// WHEN: closing February before January
	// THEN: the close is rejected and February stays open

	tl := newTestLedger(t)
	ctx := context.Background()
	_, periods := setupCalendar(t, tl)
	cash, revenue, _ := standardChart(t, tl)

	postEntry(t, tl, day(2025, time.January, 10),
		debitLine(cash, "100"), creditLine(revenue, "100"))

	_, err := tl.closer.ClosePeriod(ctx, periods[1].ID)
	assert.ErrorIs(t, err, ledger.ErrEarlierPeriodOpen)
	assert.True(t, ledger.IsConflict(err))

	feb, err := tl.store.GetPeriod(ctx, periods[1].ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.PeriodOpen, feb.Status)
	assert.Nil(t, feb.ClosedAt)

	// No snapshot was frozen for February. Had one been, a later posting
	// into still-open January would have silently invalidated it.
	snap, err := tl.store.GetBalanceSnapshot(ctx, cash.ID, periods[1].ID)
	require.NoError(t, err)
	assert.Nil(t, snap)

	// In order the same closes go through, and February's snapshot opens
	// at January's full activity.
	_, err = tl.closer.ClosePeriod(ctx, periods[0].ID)
	require.NoError(t, err)
	_, err = tl.closer.ClosePeriod(ctx, periods[1].ID)
	require.NoError(t, err)

	snap, err = tl.store.GetBalanceSnapshot(ctx, cash.ID, periods[1].ID)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.True(t, snap.OpeningDebit.Equal(dec(t, "100")))
}

func TestCloser_ClosePeriod_CarriesOpeningForward(t *testing.T) {
	// GIVEN: January closed with cash at 100
	// WHEN: posting 40 more in February and closing February
	// THEN: February's snapshot opens at January's closing

	tl := newTestLedger(t)
	ctx := context.Background()
	_, periods := setupCalendar(t, tl)
	cash, revenue, _ := standardChart(t, tl)

	postEntry(t, tl, day(2025, time.January, 10),
		debitLine(cash, "100"), creditLine(revenue, "100"))
	_, err := tl.closer.ClosePeriod(ctx, periods[0].ID)
	require.NoError(t, err)

	postEntry(t, tl, day(2025, time.February, 10),
		debitLine(cash, "40"), creditLine(revenue, "40"))
	_, err = tl.closer.ClosePeriod(ctx, periods[1].ID)
	require.NoError(t, err)

	snap, err := tl.store.GetBalanceSnapshot(ctx, cash.ID, periods[1].ID)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.True(t, snap.OpeningDebit.Equal(dec(t, "100")))
	assert.True(t, snap.TotalDebit.Equal(dec(t, "40")))
	assert.True(t, snap.ClosingDebit.Equal(dec(t, "140")))
}

func TestCloser_ClosePeriod_ImbalanceDetected(t *testing.T) {
	// GIVEN: stored history corrupted below the engines
	// WHEN: closing the period
	// THEN: an ImbalanceError reports both totals and the period stays open

	tl := newTestLedger(t)
	ctx := context.Background()
	_, periods := setupCalendar(t, tl)
	cash, _, _ := standardChart(t, tl)

	// Write a lopsided posted entry directly into the store.
	bad := ledger.JournalEntry{
		ID:        ledger.EntryID(uuid.NewString()),
		Number:    "JE-2025-999999",
		Date:      day(2025, time.January, 10),
		Status:    ledger.StatusPosted,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, tl.store.SaveEntry(ctx, bad, []ledger.JournalEntryLine{
		{ID: ledger.LineID(uuid.NewString()), EntryID: bad.ID, AccountID: cash.ID, Debit: dec(t, "75")},
	}))

	_, err := tl.closer.ClosePeriod(ctx, periods[0].ID)
	var imbalance *ledger.ImbalanceError
	require.ErrorAs(t, err, &imbalance)
	assert.True(t, imbalance.TotalDebit.Equal(dec(t, "75")))
	assert.True(t, imbalance.TotalCredit.IsZero())
	assert.True(t, ledger.IsIntegrity(err))

	period, err := tl.store.GetPeriod(ctx, periods[0].ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.PeriodOpen, period.Status, "a failed close leaves the period open")
}

// =============================================================================
// FISCAL YEAR CLOSE
// =============================================================================

func TestCloser_CloseFiscalYear(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()
	fy, periods := setupCalendar(t, tl)

	// With open periods the year cannot close.
	_, err := tl.closer.CloseFiscalYear(ctx, fy.ID)
	assert.ErrorIs(t, err, ledger.ErrPeriodsStillOpen)

	for _, p := range periods {
		_, err := tl.closer.ClosePeriod(ctx, p.ID)
		require.NoError(t, err)
	}

	closed, err := tl.closer.CloseFiscalYear(ctx, fy.ID)
	require.NoError(t, err)
	assert.True(t, closed.IsClosed)
	require.NotNil(t, closed.ClosedAt)

	// Closing twice fails.
	_, err = tl.closer.CloseFiscalYear(ctx, fy.ID)
	assert.ErrorIs(t, err, ledger.ErrFiscalYearClosed)
}
