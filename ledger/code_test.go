package ledger_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/ledger-engine/ledger"
)

// =============================================================================
// PARSING
// =============================================================================

func TestAccountCode_Parse_Valid(t *testing.T) {
	for _, s := range []string{"1", "42", "1.01", "1.01.003", "999999"} {
		code, err := ledger.ParseAccountCode(s)
		assert.NoError(t, err, "%q should parse", s)
		assert.Equal(t, s, code.String())
	}
}

func TestAccountCode_Parse_Invalid(t *testing.T) {
	for _, s := range []string{"", ".", "1.", ".1", "1..2", "1.a", "abc", "1234567", "1.-2"} {
		_, err := ledger.ParseAccountCode(s)
		assert.Error(t, err, "%q should be rejected", s)
		assert.ErrorIs(t, err, ledger.ErrInvalidAccountCode)
	}
}

// =============================================================================
// HIERARCHY
// =============================================================================

func TestAccountCode_Hierarchy(t *testing.T) {
	code := ledger.AccountCode("1.01.003")

	assert.Equal(t, 3, code.Depth())
	assert.Equal(t, ledger.AccountCode("1.01"), code.Parent())
	assert.Equal(t, ledger.AccountCode(""), ledger.AccountCode("1").Parent())

	assert.True(t, code.ChildOf("1.01"))
	assert.False(t, code.ChildOf("1"), "grandchild is not an immediate child")
	assert.False(t, ledger.AccountCode("1.010").ChildOf("1.01"), "prefix of a segment is not the parent")

	assert.True(t, code.DescendantOf("1"))
	assert.True(t, code.DescendantOf("1.01"))
	assert.False(t, code.DescendantOf("2"))
	assert.False(t, code.DescendantOf("1.01.003"), "a code is not its own descendant")
}

// =============================================================================
// ORDERING
// =============================================================================

func TestAccountCode_Compare_NumericPerSegment(t *testing.T) {
	// GIVEN: codes where string order and numeric order disagree
	// WHEN: comparing
	// THEN: the numeric order wins ("1.2" sorts before "1.10")

	assert.Equal(t, -1, ledger.AccountCode("1.2").Compare("1.10"))
	assert.Equal(t, 1, ledger.AccountCode("1.10").Compare("1.2"))
	assert.Equal(t, 0, ledger.AccountCode("1.02").Compare("1.2"), "zero-padding does not change the value")

	// Shorter code sorts before its descendants.
	assert.Equal(t, -1, ledger.AccountCode("1").Compare("1.01"))
	assert.Equal(t, 1, ledger.AccountCode("2").Compare("1.99"))
}

func TestSortAccountsByCode(t *testing.T) {
	accounts := []ledger.Account{
		{Code: "1.10"},
		{Code: "2"},
		{Code: "1.2"},
		{Code: "1"},
	}
	ledger.SortAccountsByCode(accounts)

	got := make([]string, len(accounts))
	for i, a := range accounts {
		got[i] = a.Code.String()
	}
	assert.Equal(t, []string{"1", "1.2", "1.10", "2"}, got)
}

// =============================================================================
// CHILD DERIVATION
// =============================================================================

func TestAccountCode_NextChild(t *testing.T) {
	parent := ledger.AccountCode("1")

	// No siblings yet: start at 01 with the default width.
	assert.Equal(t, ledger.AccountCode("1.01"), parent.NextChild(nil))

	// Highest existing sibling plus one.
	next := parent.NextChild([]ledger.AccountCode{"1.01", "1.03"})
	assert.Equal(t, ledger.AccountCode("1.04"), next)

	// Width follows the widest existing sibling segment.
	next = parent.NextChild([]ledger.AccountCode{"1.007"})
	assert.Equal(t, ledger.AccountCode("1.008"), next)

	// Codes outside the parent are ignored.
	next = parent.NextChild([]ledger.AccountCode{"2.05", "1.01"})
	assert.Equal(t, ledger.AccountCode("1.02"), next)
}

func TestAccountCode_NextChild_RootLevel(t *testing.T) {
	var root ledger.AccountCode

	assert.Equal(t, ledger.AccountCode("01"), root.NextChild(nil))
	assert.Equal(t, ledger.AccountCode("03"), root.NextChild([]ledger.AccountCode{"01", "02"}))

	// Hand-entered unpadded roots still count.
	assert.Equal(t, ledger.AccountCode("06"), root.NextChild([]ledger.AccountCode{"5"}))
}

// =============================================================================
// NORMAL SIDE
// =============================================================================

func TestAccountType_NormalSide(t *testing.T) {
	assert.Equal(t, ledger.SideDebit, ledger.AccountAsset.NormalSide())
	assert.Equal(t, ledger.SideDebit, ledger.AccountExpense.NormalSide())
	assert.Equal(t, ledger.SideCredit, ledger.AccountLiability.NormalSide())
	assert.Equal(t, ledger.SideCredit, ledger.AccountEquity.NormalSide())
	assert.Equal(t, ledger.SideCredit, ledger.AccountRevenue.NormalSide())
}

func TestSignedDelta(t *testing.T) {
	// A debit increases a debit-normal account and decreases a
	// credit-normal one, and vice versa.
	d := dec(t, "100")
	z := dec(t, "0")

	assert.True(t, ledger.SignedDelta(ledger.SideDebit, d, z).Equal(d))
	assert.True(t, ledger.SignedDelta(ledger.SideDebit, z, d).Equal(d.Neg()))
	assert.True(t, ledger.SignedDelta(ledger.SideCredit, d, z).Equal(d.Neg()))
	assert.True(t, ledger.SignedDelta(ledger.SideCredit, z, d).Equal(d))
}

// dec parses a decimal literal, failing the test on a typo.
func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return v
}
