/*
posting.go - Draft -> Posted transition

PURPOSE:
  Posting is the irreversible act of applying a journal entry's effects
  to account balances. All preconditions are re-checked inside the
  transaction so concurrent attempts serialize:

  1. Entry exists                         -> ErrEntryNotFound
  2. Entry is still Draft                 -> ErrAlreadyPosted / ErrNotDraft
  3. Lines still balance                  -> validation errors
  4. Owning period is Open                -> PeriodClosedError
  5. Every account exists and is active   -> ErrAccountNotFound / ErrAccountInactive
  6. Per-line signed deltas applied as atomic increments
  7. Status -> Posted, postedAt stamped

  Steps commit together or not at all; a failure leaves the entry and
  every account balance untouched.

  Posting is never retried automatically. A double submission is safe:
  the second transaction re-reads the entry and fails AlreadyPosted
  without touching balances.
*/
package ledger

import (
	"context"
	"fmt"
	"time"
)

// PostingEngine transitions journal entries from Draft to Posted.
type PostingEngine struct {
	Store TxStore

	// Now is the clock used for postedAt stamps. Defaults to UTC now;
	// overridable in tests.
	Now func() time.Time
}

func NewPostingEngine(store TxStore) *PostingEngine {
	return &PostingEngine{Store: store, Now: func() time.Time { return time.Now().UTC() }}
}

// Post executes the posting transaction for one entry and returns the
// posted header.
func (pe *PostingEngine) Post(ctx context.Context, id EntryID) (*JournalEntry, error) {
	var posted *JournalEntry
	err := pe.Store.WithTx(ctx, func(s Store) error {
		var err error
		posted, err = pe.postInTx(ctx, s, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return posted, nil
}

// postInTx runs the posting steps against a transaction-scoped store.
// The reversal engine shares it so a reversal's posting and back-links
// commit in one transaction.
func (pe *PostingEngine) postInTx(ctx context.Context, s Store, id EntryID) (*JournalEntry, error) {
	entry, err := s.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	switch entry.Status {
	case StatusDraft:
		// proceed
	case StatusPosted, StatusReversed:
		return nil, fmt.Errorf("%w: %s", ErrAlreadyPosted, entry.Number)
	default:
		return nil, fmt.Errorf("%w: %s is %s", ErrNotDraft, entry.Number, entry.Status)
	}

	lines, err := s.GetLines(ctx, id)
	if err != nil {
		return nil, err
	}
	// The draft may have been amended since it was last validated.
	if err := ValidateLines(entry.ID, lines); err != nil {
		return nil, err
	}

	period, err := checkOpen(ctx, s, entry.Date)
	if err != nil {
		return nil, err
	}

	for _, l := range lines {
		acc, err := s.GetAccount(ctx, l.AccountID)
		if err != nil {
			return nil, err
		}
		if acc == nil {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, l.AccountID)
		}
		if !acc.IsActive {
			return nil, fmt.Errorf("%w: %s (%s)", ErrAccountInactive, acc.Code, acc.Name)
		}
		delta := SignedDelta(acc.NormalSide, l.Debit, l.Credit)
		if err := s.AddToAccountBalance(ctx, acc.ID, delta); err != nil {
			return nil, err
		}
	}

	now := pe.Now()
	if err := s.MarkPosted(ctx, id, now, period.ID, period.FiscalYearID); err != nil {
		return nil, err
	}

	entry.Status = StatusPosted
	entry.PostedAt = &now
	entry.PeriodID = period.ID
	entry.FiscalYearID = period.FiscalYearID
	return entry, nil
}
