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
// CREATION
// =============================================================================

func TestRegistry_CreateAccount_Explicit(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()

	acc, err := tl.registry.CreateAccount(ctx, ledger.CreateAccountInput{
		Code: "1",
		Name: "Assets",
		Type: ledger.AccountAsset,
	})
	require.NoError(t, err)

	assert.Equal(t, ledger.AccountCode("1"), acc.Code)
	assert.Equal(t, ledger.SideDebit, acc.NormalSide, "normal side follows type")
	assert.True(t, acc.IsActive)
	assert.True(t, acc.Balance.IsZero())
}

func TestRegistry_CreateAccount_DerivedCodes(t *testing.T) {
	// GIVEN: no code supplied
	// WHEN: creating accounts at root level and under a parent
	// THEN: the next sibling code is derived

	tl := newTestLedger(t)
	ctx := context.Background()

	root, err := tl.registry.CreateAccount(ctx, ledger.CreateAccountInput{
		Name: "Assets",
		Type: ledger.AccountAsset,
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.AccountCode("01"), root.Code)

	child1, err := tl.registry.CreateAccount(ctx, ledger.CreateAccountInput{
		Name:     "Cash",
		ParentID: root.ID,
		Type:     ledger.AccountAsset,
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.AccountCode("01.01"), child1.Code)

	child2, err := tl.registry.CreateAccount(ctx, ledger.CreateAccountInput{
		Name:     "Bank",
		ParentID: root.ID,
		Type:     ledger.AccountAsset,
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.AccountCode("01.02"), child2.Code)
}

func TestRegistry_CreateAccount_DerivedCodeAtSegmentCap(t *testing.T) {
	// GIVEN: a sibling whose code segment is already six digits
	// WHEN: deriving the next sibling code
	// THEN: creation is rejected instead of storing a seven-digit segment

	tl := newTestLedger(t)
	ctx := context.Background()

	newAccount(t, tl, "999999", "Suspense", ledger.AccountAsset)

	_, err := tl.registry.CreateAccount(ctx, ledger.CreateAccountInput{
		Name: "One past the cap",
		Type: ledger.AccountAsset,
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidAccountCode)
	assert.True(t, ledger.IsValidation(err))
}

func TestRegistry_CreateAccount_DuplicateCode(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()

	newAccount(t, tl, "1", "Assets", ledger.AccountAsset)

	_, err := tl.registry.CreateAccount(ctx, ledger.CreateAccountInput{
		Code: "1",
		Name: "Assets again",
		Type: ledger.AccountAsset,
	})
	assert.ErrorIs(t, err, ledger.ErrDuplicateCode)
	assert.True(t, ledger.IsConflict(err))
}

func TestRegistry_CreateAccount_ParentChecks(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()

	assets := newAccount(t, tl, "1", "Assets", ledger.AccountAsset)

	// Type must match the parent's.
	_, err := tl.registry.CreateAccount(ctx, ledger.CreateAccountInput{
		Code:     "1.01",
		Name:     "Sales",
		ParentID: assets.ID,
		Type:     ledger.AccountRevenue,
	})
	assert.Error(t, err, "child type must match parent type")

	// Explicit code must extend the parent's code.
	_, err = tl.registry.CreateAccount(ctx, ledger.CreateAccountInput{
		Code:     "2.01",
		Name:     "Cash",
		ParentID: assets.ID,
		Type:     ledger.AccountAsset,
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidAccountCode)

	// A multi-segment code without a parent is rejected.
	_, err = tl.registry.CreateAccount(ctx, ledger.CreateAccountInput{
		Code: "3.01",
		Name: "Orphan",
		Type: ledger.AccountAsset,
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidAccountCode)

	// Unknown parent.
	_, err = tl.registry.CreateAccount(ctx, ledger.CreateAccountInput{
		Name:     "Cash",
		ParentID: "no-such-account",
		Type:     ledger.AccountAsset,
	})
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

// =============================================================================
// LISTING
// =============================================================================

func TestRegistry_ListAccounts_OrderedByCode(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()

	newAccount(t, tl, "2", "Liabilities", ledger.AccountLiability)
	newAccount(t, tl, "10", "Other", ledger.AccountAsset)
	newAccount(t, tl, "1", "Assets", ledger.AccountAsset)

	accounts, err := tl.registry.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 3)

	// Numeric order: "2" before "10".
	assert.Equal(t, ledger.AccountCode("1"), accounts[0].Code)
	assert.Equal(t, ledger.AccountCode("2"), accounts[1].Code)
	assert.Equal(t, ledger.AccountCode("10"), accounts[2].Code)
}

// =============================================================================
// DEACTIVATION AND DELETION
// =============================================================================

func TestRegistry_DeactivateAccount_RequiresZeroBalance(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()
	setupCalendar(t, tl)
	cash, revenue, expense := standardChart(t, tl)

	postEntry(t, tl, day(2025, time.March, 10),
		debitLine(cash, "100"), creditLine(revenue, "100"))

	err := tl.registry.DeactivateAccount(ctx, cash.ID)
	assert.ErrorIs(t, err, ledger.ErrAccountHasBalance)

	acc, err := tl.registry.GetAccount(ctx, cash.ID)
	require.NoError(t, err)
	assert.True(t, acc.IsActive, "failed deactivation leaves the account active")

	// The untouched account deactivates cleanly.
	require.NoError(t, tl.registry.DeactivateAccount(ctx, expense.ID))
	acc, err = tl.registry.GetAccount(ctx, expense.ID)
	require.NoError(t, err)
	assert.False(t, acc.IsActive)
}

func TestRegistry_DeleteAccount_Guards(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()
	setupCalendar(t, tl)

	assets := newAccount(t, tl, "1", "Assets", ledger.AccountAsset)
	cash, err := tl.registry.CreateAccount(ctx, ledger.CreateAccountInput{
		Code:     "1.01",
		Name:     "Cash",
		ParentID: assets.ID,
		Type:     ledger.AccountAsset,
	})
	require.NoError(t, err)
	revenue := newAccount(t, tl, "4", "Sales", ledger.AccountRevenue)

	// Parent with children cannot go.
	err = tl.registry.DeleteAccount(ctx, assets.ID)
	assert.ErrorIs(t, err, ledger.ErrAccountHasChildren)

	// Account with posted activity cannot go.
	postEntry(t, tl, day(2025, time.March, 10),
		debitLine(cash, "100"), creditLine(revenue, "100"))
	err = tl.registry.DeleteAccount(ctx, cash.ID)
	assert.ErrorIs(t, err, ledger.ErrAccountHasActivity)

	// An unused account goes cleanly.
	unused := newAccount(t, tl, "9", "Never used", ledger.AccountExpense)
	require.NoError(t, tl.registry.DeleteAccount(ctx, unused.ID))
	_, err = tl.registry.GetAccount(ctx, unused.ID)
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}
