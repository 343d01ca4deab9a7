/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error kinds in one place for consistency and discoverability.
  The HTTP layer maps them to status codes via the classifier helpers;
  engine code never decides status codes itself.

ERROR CATEGORIES:
  1. Validation errors  - malformed or unbalanced entries, bad codes
  2. Not-found errors   - absent entry/account/period/fiscal year
  3. State conflicts    - AlreadyPosted, AlreadyReversed, NotPosted, ...
  4. Period-closed      - write attempted against a closed period
  5. Integrity errors   - cross-entry corruption found by closing/reporting

USAGE:
  if errors.Is(err, ledger.ErrAlreadyPosted) { ... }
  if ledger.IsConflict(err) { ... respond 409 ... }
*/
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// Validation.
	ErrNoLines            = errors.New("entry has no lines")
	ErrUnbalancedEntry    = errors.New("entry debits and credits do not balance")
	ErrZeroEntry          = errors.New("entry total is zero")
	ErrMalformedLine      = errors.New("line must have exactly one of debit or credit, positive")
	ErrInvalidAccountCode = errors.New("invalid account code")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrInvalidDate        = errors.New("invalid date")

	// Not found.
	ErrEntryNotFound      = errors.New("journal entry not found")
	ErrAccountNotFound    = errors.New("account not found")
	ErrPeriodNotFound     = errors.New("accounting period not found")
	ErrFiscalYearNotFound = errors.New("fiscal year not found")
	ErrNoPeriodDefined    = errors.New("no accounting period covers the given date")

	// State conflicts.
	ErrAlreadyPosted         = errors.New("entry is already posted")
	ErrNotPosted             = errors.New("entry is not posted")
	ErrAlreadyReversed       = errors.New("entry is already reversed")
	ErrNotDraft              = errors.New("entry is not a draft")
	ErrNotReversalEntry      = errors.New("entry is not a reversal entry")
	ErrReversalAlreadyPosted = errors.New("reversal entry is already posted")
	ErrPeriodAlreadyClosed   = errors.New("accounting period is already closed")
	ErrEarlierPeriodOpen     = errors.New("an earlier accounting period is still open")
	ErrFiscalYearClosed      = errors.New("fiscal year is already closed")
	ErrPeriodsStillOpen      = errors.New("fiscal year has open periods")
	ErrAccountHasChildren    = errors.New("account has child accounts")
	ErrAccountHasActivity    = errors.New("account has posted activity")
	ErrAccountHasBalance     = errors.New("account balance is not zero")
	ErrDuplicateCode         = errors.New("account code already exists")
	ErrDuplicateNumber       = errors.New("entry number already exists")

	// Period guard.
	ErrPeriodClosed = errors.New("accounting period is closed")

	// Integrity. Indicates pre-existing corruption, not caller error.
	ErrLedgerImbalance = errors.New("ledger debits and credits do not balance")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// BalanceMismatchError reports an entry whose debits and credits differ.
type BalanceMismatchError struct {
	EntryID     EntryID
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}

func (e *BalanceMismatchError) Error() string {
	return fmt.Sprintf("entry %s does not balance: debits %s, credits %s (difference %s)",
		e.EntryID, e.TotalDebit.StringFixed(2), e.TotalCredit.StringFixed(2),
		e.TotalDebit.Sub(e.TotalCredit).Abs().StringFixed(2))
}

func (e *BalanceMismatchError) Unwrap() error { return ErrUnbalancedEntry }

// LineError reports a malformed line by its position within the entry.
type LineError struct {
	Position int
	Reason   string
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Position, e.Reason)
}

func (e *LineError) Unwrap() error { return ErrMalformedLine }

// PeriodClosedError reports a write attempt against a closed period.
type PeriodClosedError struct {
	PeriodID   PeriodID
	PeriodName string
	Date       time.Time
}

func (e *PeriodClosedError) Error() string {
	return fmt.Sprintf("period %s is closed; cannot write entry dated %s",
		e.PeriodName, e.Date.Format("2006-01-02"))
}

func (e *PeriodClosedError) Unwrap() error { return ErrPeriodClosed }

// ImbalanceError reports a period- or ledger-level debit/credit mismatch
// with enough detail to locate the corruption.
type ImbalanceError struct {
	Scope       string // e.g. "period 2025-03", "trial balance 2025-01-01..2025-12-31"
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}

func (e *ImbalanceError) Error() string {
	return fmt.Sprintf("%s out of balance: debits %s, credits %s",
		e.Scope, e.TotalDebit.StringFixed(2), e.TotalCredit.StringFixed(2))
}

func (e *ImbalanceError) Unwrap() error { return ErrLedgerImbalance }

// =============================================================================
// ERROR CLASSIFIERS - Used by the HTTP layer for status mapping
// =============================================================================

// IsValidation reports whether err is caller input the engine rejected.
func IsValidation(err error) bool {
	return errors.Is(err, ErrNoLines) ||
		errors.Is(err, ErrUnbalancedEntry) ||
		errors.Is(err, ErrZeroEntry) ||
		errors.Is(err, ErrMalformedLine) ||
		errors.Is(err, ErrInvalidAccountCode) ||
		errors.Is(err, ErrAccountInactive) ||
		errors.Is(err, ErrInvalidDate)
}

// IsNotFound reports whether err indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrPeriodNotFound) ||
		errors.Is(err, ErrFiscalYearNotFound) ||
		errors.Is(err, ErrNoPeriodDefined)
}

// IsConflict reports whether err is a state conflict (entity exists but
// is in the wrong lifecycle state for the operation).
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyPosted) ||
		errors.Is(err, ErrNotPosted) ||
		errors.Is(err, ErrAlreadyReversed) ||
		errors.Is(err, ErrNotDraft) ||
		errors.Is(err, ErrNotReversalEntry) ||
		errors.Is(err, ErrReversalAlreadyPosted) ||
		errors.Is(err, ErrPeriodAlreadyClosed) ||
		errors.Is(err, ErrEarlierPeriodOpen) ||
		errors.Is(err, ErrFiscalYearClosed) ||
		errors.Is(err, ErrPeriodsStillOpen) ||
		errors.Is(err, ErrAccountHasChildren) ||
		errors.Is(err, ErrAccountHasActivity) ||
		errors.Is(err, ErrAccountHasBalance) ||
		errors.Is(err, ErrDuplicateCode) ||
		errors.Is(err, ErrDuplicateNumber) ||
		errors.Is(err, ErrPeriodClosed)
}

// IsIntegrity reports whether err indicates pre-existing ledger
// corruption rather than a caller mistake.
func IsIntegrity(err error) bool {
	return errors.Is(err, ErrLedgerImbalance)
}
