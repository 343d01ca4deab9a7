package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/ledger-engine/ledger"
)

// =============================================================================
// POSTING
// =============================================================================

func TestPosting_Post_UpdatesBalances(t *testing.T) {
	// GIVEN: a balanced draft debiting cash 100, crediting revenue 100
	// WHEN: posting
	// THEN: both balances increase by 100, each per its normal side

	tl := newTestLedger(t)
	ctx := context.Background()
	fy, _ := setupCalendar(t, tl)
	cash, revenue, _ := standardChart(t, tl)

	entry, _, err := tl.journal.CreateDraft(ctx, ledger.EntryInput{
		Date:  day(2025, time.March, 10),
		Lines: []ledger.LineInput{debitLine(cash, "100"), creditLine(revenue, "100")},
	})
	require.NoError(t, err)

	posted, err := tl.posting.Post(ctx, entry.ID)
	require.NoError(t, err)

	assert.Equal(t, ledger.StatusPosted, posted.Status)
	require.NotNil(t, posted.PostedAt)
	assert.Equal(t, fy.ID, posted.FiscalYearID, "posting stamps the owning fiscal year")
	assert.NotEmpty(t, posted.PeriodID)

	assert.Equal(t, "100", accountBalance(t, tl, cash.ID))
	assert.Equal(t, "100", accountBalance(t, tl, revenue.ID))
}

func TestPosting_Post_SignedPerNormalSide(t *testing.T) {
	// Crediting an asset account decreases its balance.
	tl := newTestLedger(t)
	setupCalendar(t, tl)
	cash, _, expense := standardChart(t, tl)

	postEntry(t, tl, day(2025, time.March, 10),
		debitLine(expense, "40"), creditLine(cash, "40"))

	assert.Equal(t, "-40", accountBalance(t, tl, cash.ID))
	assert.Equal(t, "40", accountBalance(t, tl, expense.ID))
}

func TestPosting_Post_Idempotent(t *testing.T) {
	// GIVEN: an entry that was already posted
	// WHEN: posting it again
	// THEN: the second attempt fails AlreadyPosted and balances move once

	tl := newTestLedger(t)
	ctx := context.Background()
	setupCalendar(t, tl)
	cash, revenue, _ := standardChart(t, tl)

	posted := postEntry(t, tl, day(2025, time.March, 10),
		debitLine(cash, "100"), creditLine(revenue, "100"))

	_, err := tl.posting.Post(ctx, posted.ID)
	assert.ErrorIs(t, err, ledger.ErrAlreadyPosted)
	assert.True(t, ledger.IsConflict(err))

	assert.Equal(t, "100", accountBalance(t, tl, cash.ID), "double post must not double balances")
}

func TestPosting_Post_UnknownEntry(t *testing.T) {
	tl := newTestLedger(t)
	setupCalendar(t, tl)

	_, err := tl.posting.Post(context.Background(), "no-such-entry")
	assert.ErrorIs(t, err, ledger.ErrEntryNotFound)
}

// =============================================================================
// GUARDS
// =============================================================================

func TestPosting_Post_ClosedPeriodRejected(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()
	_, periods := setupCalendar(t, tl)
	cash, revenue, _ := standardChart(t, tl)

	entry, _, err := tl.journal.CreateDraft(ctx, ledger.EntryInput{
		Date:  day(2025, time.January, 20),
		Lines: []ledger.LineInput{debitLine(cash, "100"), creditLine(revenue, "100")},
	})
	require.NoError(t, err)

	_, err = tl.closer.ClosePeriod(ctx, periods[0].ID)
	require.NoError(t, err)

	_, err = tl.posting.Post(ctx, entry.ID)
	var closedErr *ledger.PeriodClosedError
	require.ErrorAs(t, err, &closedErr)
	assert.Equal(t, periods[0].ID, closedErr.PeriodID)

	// Nothing was applied.
	assert.Equal(t, "0", accountBalance(t, tl, cash.ID))
	reloaded, err := tl.store.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusDraft, reloaded.Status)
}

func TestPosting_Post_InactiveAccountRejected(t *testing.T) {
	// The account may have been deactivated after the draft was written.
	tl := newTestLedger(t)
	ctx := context.Background()
	setupCalendar(t, tl)
	cash, _, expense := standardChart(t, tl)

	entry, _, err := tl.journal.CreateDraft(ctx, ledger.EntryInput{
		Date:  day(2025, time.March, 10),
		Lines: []ledger.LineInput{debitLine(expense, "50"), creditLine(cash, "50")},
	})
	require.NoError(t, err)

	require.NoError(t, tl.registry.DeactivateAccount(ctx, expense.ID))

	_, err = tl.posting.Post(ctx, entry.ID)
	assert.ErrorIs(t, err, ledger.ErrAccountInactive)
	assert.Equal(t, "0", accountBalance(t, tl, cash.ID))
}

func TestPosting_Post_RollsBackOnFailure(t *testing.T) {
	// GIVEN: a draft corrupted after validation (store-level tamper)
	// WHEN: posting fails mid-way
	// THEN: no partial balance update survives

	tl := newTestLedger(t)
	ctx := context.Background()
	setupCalendar(t, tl)
	cash, revenue, _ := standardChart(t, tl)

	entry, lines, err := tl.journal.CreateDraft(ctx, ledger.EntryInput{
		Date:  day(2025, time.March, 10),
		Lines: []ledger.LineInput{debitLine(cash, "100"), creditLine(revenue, "100")},
	})
	require.NoError(t, err)

	// Tamper: unbalance the stored lines behind the journal's back.
	lines[1].Credit = dec(t, "90")
	require.NoError(t, tl.store.SaveEntry(ctx, *entry, lines))

	_, err = tl.posting.Post(ctx, entry.ID)
	assert.ErrorIs(t, err, ledger.ErrUnbalancedEntry)

	assert.Equal(t, "0", accountBalance(t, tl, cash.ID))
	assert.Equal(t, "0", accountBalance(t, tl, revenue.ID))
	reloaded, err := tl.store.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusDraft, reloaded.Status)
}
