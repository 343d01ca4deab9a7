package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/ledger-engine/ledger"
)

// =============================================================================
// GENERAL LEDGER
// =============================================================================

func TestReporter_GeneralLedger_RunningBalances(t *testing.T) {
	// GIVEN: January activity of +100, then March activity of +40 and -25
	// WHEN: reporting March
	// THEN: opening is the pre-March net and running balances accumulate

	tl := newTestLedger(t)
	ctx := context.Background()
	setupCalendar(t, tl)
	cash, revenue, expense := standardChart(t, tl)

	postEntry(t, tl, day(2025, time.January, 10),
		debitLine(cash, "100"), creditLine(revenue, "100"))
	postEntry(t, tl, day(2025, time.March, 5),
		debitLine(cash, "40"), creditLine(revenue, "40"))
	postEntry(t, tl, day(2025, time.March, 12),
		debitLine(expense, "25"), creditLine(cash, "25"))

	report, err := tl.reporter.GeneralLedger(ctx, cash.ID,
		day(2025, time.March, 1), day(2025, time.March, 31))
	require.NoError(t, err)

	assert.Equal(t, cash.Code, report.AccountCode)
	assert.True(t, report.Opening.Equal(dec(t, "100")))
	require.Len(t, report.Lines, 2)
	assert.True(t, report.Lines[0].Running.Equal(dec(t, "140")))
	assert.True(t, report.Lines[1].Running.Equal(dec(t, "115")))
	assert.True(t, report.Closing.Equal(dec(t, "115")))

	// The closing matches the denormalized account balance, since the
	// range covers all activity after January.
	assert.Equal(t, "115", accountBalance(t, tl, cash.ID))
}

func TestReporter_GeneralLedger_SnapshotShortcutEquivalent(t *testing.T) {
	// GIVEN: the same history, reported before and after closing January
	// WHEN: the snapshot shortcut becomes available
	// THEN: the report is unchanged

	tl := newTestLedger(t)
	ctx := context.Background()
	_, periods := setupCalendar(t, tl)
	cash, revenue, _ := standardChart(t, tl)

	postEntry(t, tl, day(2025, time.January, 10),
		debitLine(cash, "100"), creditLine(revenue, "100"))
	postEntry(t, tl, day(2025, time.February, 14),
		debitLine(cash, "60"), creditLine(revenue, "60"))
	postEntry(t, tl, day(2025, time.March, 5),
		debitLine(cash, "40"), creditLine(revenue, "40"))

	from, to := day(2025, time.March, 1), day(2025, time.March, 31)
	before, err := tl.reporter.GeneralLedger(ctx, cash.ID, from, to)
	require.NoError(t, err)

	_, err = tl.closer.ClosePeriod(ctx, periods[0].ID)
	require.NoError(t, err)

	after, err := tl.reporter.GeneralLedger(ctx, cash.ID, from, to)
	require.NoError(t, err)

	assert.True(t, before.Opening.Equal(after.Opening), "opening: raw %s vs snapshot %s", before.Opening, after.Opening)
	assert.True(t, before.Closing.Equal(after.Closing))
	require.Equal(t, len(before.Lines), len(after.Lines))
	for i := range before.Lines {
		assert.True(t, before.Lines[i].Running.Equal(after.Lines[i].Running))
	}
}

func TestReporter_GeneralLedger_OpeningMatchesRawRecomputation(t *testing.T) {
	// GIVEN: January and February closed in order, activity in both
	// WHEN: reporting March, where the opening rides the February snapshot
	// THEN: it equals a raw sum over every posted line before March

	tl := newTestLedger(t)
	ctx := context.Background()
	_, periods := setupCalendar(t, tl)
	cash, revenue, _ := standardChart(t, tl)

	postEntry(t, tl, day(2025, time.January, 10),
		debitLine(cash, "100"), creditLine(revenue, "100"))
	_, err := tl.closer.ClosePeriod(ctx, periods[0].ID)
	require.NoError(t, err)

	postEntry(t, tl, day(2025, time.February, 14),
		debitLine(cash, "50"), creditLine(revenue, "50"))
	_, err = tl.closer.ClosePeriod(ctx, periods[1].ID)
	require.NoError(t, err)

	// Backdating behind the frozen snapshots is impossible: January and
	// February are both closed.
	_, _, err = tl.journal.CreateDraft(ctx, ledger.EntryInput{
		Date:  day(2025, time.January, 20),
		Lines: []ledger.LineInput{debitLine(cash, "999"), creditLine(revenue, "999")},
	})
	assert.ErrorIs(t, err, ledger.ErrPeriodClosed)

	report, err := tl.reporter.GeneralLedger(ctx, cash.ID,
		day(2025, time.March, 1), day(2025, time.March, 31))
	require.NoError(t, err)

	raw := decimal.Zero
	lines, err := tl.store.PostedLinesForAccount(ctx, cash.ID, time.Time{}, day(2025, time.February, 28))
	require.NoError(t, err)
	for _, l := range lines {
		raw = raw.Add(l.Debit).Sub(l.Credit)
	}
	assert.True(t, report.Opening.Equal(raw), "opening via snapshot %s vs raw %s", report.Opening, raw)
	assert.True(t, raw.Equal(dec(t, "150")))
}

func TestReporter_GeneralLedger_Rejections(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()
	setupCalendar(t, tl)
	cash, _, _ := standardChart(t, tl)

	_, err := tl.reporter.GeneralLedger(ctx, "no-such-account",
		day(2025, time.March, 1), day(2025, time.March, 31))
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)

	_, err = tl.reporter.GeneralLedger(ctx, cash.ID,
		day(2025, time.March, 31), day(2025, time.March, 1))
	assert.ErrorIs(t, err, ledger.ErrInvalidDate)
}

// =============================================================================
// TRIAL BALANCE
// =============================================================================

func TestReporter_TrialBalance_Balanced(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()
	setupCalendar(t, tl)
	cash, revenue, expense := standardChart(t, tl)

	postEntry(t, tl, day(2025, time.March, 5),
		debitLine(cash, "100"), creditLine(revenue, "100"))
	postEntry(t, tl, day(2025, time.March, 12),
		debitLine(expense, "30"), creditLine(cash, "30"))

	report, err := tl.reporter.TrialBalance(ctx, day(2025, time.March, 1), day(2025, time.March, 31))
	require.NoError(t, err)

	assert.True(t, report.IsBalanced)
	assert.True(t, report.TotalDebit.Equal(report.TotalCredit))
	require.Len(t, report.Rows, 3)

	// Rows are ordered by code: cash(1), revenue(4), expense(5).
	assert.Equal(t, cash.Code, report.Rows[0].AccountCode)
	assert.True(t, report.Rows[0].PeriodDebit.Equal(dec(t, "100")))
	assert.True(t, report.Rows[0].PeriodCredit.Equal(dec(t, "30")))
	assert.True(t, report.Rows[0].EndingDebit.Equal(dec(t, "70")), "cash nets to the debit side")
	assert.True(t, report.Rows[0].EndingCredit.IsZero())

	assert.Equal(t, revenue.Code, report.Rows[1].AccountCode)
	assert.True(t, report.Rows[1].EndingCredit.Equal(dec(t, "100")), "revenue nets to the credit side")
}

func TestReporter_TrialBalance_MatchesGeneralLedger(t *testing.T) {
	// With no activity before the range, each trial balance row's ending
	// equals the account's general ledger closing for the same range.
	tl := newTestLedger(t)
	ctx := context.Background()
	setupCalendar(t, tl)
	cash, revenue, expense := standardChart(t, tl)

	postEntry(t, tl, day(2025, time.March, 5),
		debitLine(cash, "100"), creditLine(revenue, "100"))
	postEntry(t, tl, day(2025, time.March, 12),
		debitLine(expense, "30"), creditLine(cash, "30"))

	from, to := day(2025, time.March, 1), day(2025, time.March, 31)
	tb, err := tl.reporter.TrialBalance(ctx, from, to)
	require.NoError(t, err)

	for _, row := range tb.Rows {
		gl, err := tl.reporter.GeneralLedger(ctx, row.AccountID, from, to)
		require.NoError(t, err)

		// The trial balance nets raw debits minus credits; the general
		// ledger signs per normal side. They agree up to that sign.
		net := row.EndingDebit.Sub(row.EndingCredit)
		if gl.NormalSide == ledger.SideCredit {
			net = net.Neg()
		}
		assert.True(t, gl.Closing.Equal(net),
			"account %s: GL closing %s vs TB net %s", row.AccountCode, gl.Closing, net)
	}
}

func TestReporter_TrialBalance_ReversalNetsOut(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()
	setupCalendar(t, tl)
	cash, revenue, _ := standardChart(t, tl)

	posted := postEntry(t, tl, day(2025, time.March, 5),
		debitLine(cash, "100"), creditLine(revenue, "100"))
	_, err := tl.reversal.Reverse(ctx, posted.ID, day(2025, time.March, 6), "")
	require.NoError(t, err)

	report, err := tl.reporter.TrialBalance(ctx, day(2025, time.March, 1), day(2025, time.March, 31))
	require.NoError(t, err)

	assert.True(t, report.IsBalanced)
	for _, row := range report.Rows {
		assert.True(t, row.EndingDebit.IsZero(), "account %s should net to zero", row.AccountCode)
		assert.True(t, row.EndingCredit.IsZero(), "account %s should net to zero", row.AccountCode)
	}
}

func TestReporter_TrialBalance_ImbalanceSurfaced(t *testing.T) {
	// GIVEN: corrupted stored history
	// WHEN: running the trial balance
	// THEN: the report is returned together with an ImbalanceError

	tl := newTestLedger(t)
	ctx := context.Background()
	setupCalendar(t, tl)
	cash, _, _ := standardChart(t, tl)

	bad := ledger.JournalEntry{
		ID:        ledger.EntryID(uuid.NewString()),
		Number:    "JE-2025-999999",
		Date:      day(2025, time.March, 10),
		Status:    ledger.StatusPosted,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, tl.store.SaveEntry(ctx, bad, []ledger.JournalEntryLine{
		{ID: ledger.LineID(uuid.NewString()), EntryID: bad.ID, AccountID: cash.ID, Debit: dec(t, "75")},
	}))

	report, err := tl.reporter.TrialBalance(ctx, day(2025, time.March, 1), day(2025, time.March, 31))
	var imbalance *ledger.ImbalanceError
	require.ErrorAs(t, err, &imbalance)
	require.NotNil(t, report, "the diagnostic report ships alongside the error")
	assert.False(t, report.IsBalanced)
	assert.True(t, report.TotalDebit.Equal(dec(t, "75")))
}
