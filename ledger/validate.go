/*
validate.go - Entry shape and balance rules

PURPOSE:
  Gates every path that persists or posts a journal entry. The rules:

  1. At least one line.
  2. Per line, exactly one of debit/credit is set, and it is positive.
  3. sum(debit) == sum(credit), compared exactly (decimal, no tolerance).
  4. sum(debit) > 0 (a degenerate all-zero entry is rejected).
  5. Optionally, every referenced account exists and is active.

  The posting engine re-runs the balance check inside its transaction:
  a draft may have been mutated between validation and posting.
*/
package ledger

import (
	"context"
	"fmt"
)

// Validator checks journal entries before they are persisted or posted.
// Store may be nil, in which case account existence checks are skipped
// (used for pure shape validation of incoming payloads).
type Validator struct {
	Store Store
}

func NewValidator(store Store) *Validator {
	return &Validator{Store: store}
}

// Validate enforces the line-shape and balance invariants on an entry,
// and, when a Store is configured, cross-checks that every referenced
// account exists and is active.
func (v *Validator) Validate(ctx context.Context, entry *JournalEntry, lines []JournalEntryLine) error {
	if err := ValidateLines(entry.ID, lines); err != nil {
		return err
	}
	if v.Store == nil {
		return nil
	}

	seen := make(map[AccountID]bool, len(lines))
	for _, l := range lines {
		if seen[l.AccountID] {
			continue
		}
		seen[l.AccountID] = true

		acc, err := v.Store.GetAccount(ctx, l.AccountID)
		if err != nil {
			return err
		}
		if acc == nil {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, l.AccountID)
		}
		if !acc.IsActive {
			return fmt.Errorf("%w: %s (%s)", ErrAccountInactive, acc.Code, acc.Name)
		}
	}
	return nil
}

// ValidateLines is the pure shape-and-balance check, independent of any
// store. The posting engine calls this again inside its transaction.
func ValidateLines(entryID EntryID, lines []JournalEntryLine) error {
	if len(lines) == 0 {
		return ErrNoLines
	}

	for i, l := range lines {
		hasDebit := l.Debit.IsPositive()
		hasCredit := l.Credit.IsPositive()
		if l.Debit.IsNegative() || l.Credit.IsNegative() {
			return &LineError{Position: i, Reason: "negative amount"}
		}
		if hasDebit == hasCredit {
			return &LineError{Position: i, Reason: "exactly one of debit or credit must be set"}
		}
	}

	debit, credit := Totals(lines)
	if !debit.Equal(credit) {
		return &BalanceMismatchError{EntryID: entryID, TotalDebit: debit, TotalCredit: credit}
	}
	if debit.IsZero() {
		return ErrZeroEntry
	}
	return nil
}
