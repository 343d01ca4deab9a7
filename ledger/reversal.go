/*
reversal.go - Mirror-entry generation

PURPOSE:
  Posted entries are immutable; corrections happen by posting a mirror
  entry that swaps every line's debit and credit. The reversal and the
  original's back-links commit in ONE transaction: either the mirror is
  posted and both links exist, or nothing changed.

RULES:
  - Only Posted entries can be reversed, exactly once.
  - The reversal date must not precede the original entry date.
  - The reversal posts into the period containing the reversal date,
    which must be open (the closing guard applies as for any posting).
  - CancelReversal is only possible while the mirror is still a draft;
    it deletes the mirror and clears the original's back-links.
  - Batch reversal treats each id independently and reports per-id
    outcomes instead of aborting on the first failure.
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ReversalEngine generates and posts mirror entries.
type ReversalEngine struct {
	Store   TxStore
	Numbers EntryNumberSource
	Posting *PostingEngine

	Now func() time.Time
}

func NewReversalEngine(store TxStore, numbers EntryNumberSource, posting *PostingEngine) *ReversalEngine {
	return &ReversalEngine{
		Store:   store,
		Numbers: numbers,
		Posting: posting,
		Now:     func() time.Time { return time.Now().UTC() },
	}
}

// Reverse builds the mirror of a posted entry, posts it, and links both
// entries, all in a single transaction.
func (re *ReversalEngine) Reverse(ctx context.Context, id EntryID, reversalDate time.Time, reason string) (*JournalEntry, error) {
	var reversal *JournalEntry
	err := re.Store.WithTx(ctx, func(s Store) error {
		original, err := s.GetEntry(ctx, id)
		if err != nil {
			return err
		}
		if original == nil {
			return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
		}
		if original.Status == StatusDraft {
			return fmt.Errorf("%w: %s", ErrNotPosted, original.Number)
		}
		if original.IsReversed() || original.Status == StatusReversed {
			return fmt.Errorf("%w: %s already reversed by %s",
				ErrAlreadyReversed, original.Number, original.ReversalEntryID)
		}
		if DateOnly(reversalDate).Before(DateOnly(original.Date)) {
			return fmt.Errorf("%w: reversal date %s precedes entry date %s",
				ErrInvalidDate, reversalDate.Format("2006-01-02"), original.Date.Format("2006-01-02"))
		}

		originalLines, err := s.GetLines(ctx, id)
		if err != nil {
			return err
		}

		number, err := re.Numbers.NextReversal(ctx, original.Number)
		if err != nil {
			return err
		}

		description := fmt.Sprintf("Reversal of %s", original.Number)
		if reason != "" {
			description += ": " + reason
		}
		reversal = &JournalEntry{
			ID:              EntryID(uuid.NewString()),
			Number:          number,
			Date:            DateOnly(reversalDate),
			Description:     description,
			Status:          StatusDraft,
			IsReversal:      true,
			OriginalEntryID: original.ID,
			CreatedAt:       re.Now(),
		}
		lines := MirrorLines(reversal.ID, originalLines)

		if err := s.SaveEntry(ctx, *reversal, lines); err != nil {
			return err
		}
		posted, err := re.Posting.postInTx(ctx, s, reversal.ID)
		if err != nil {
			return err
		}
		reversal = posted
		return s.SetReversalLinks(ctx, original.ID, reversal.ID)
	})
	if err != nil {
		return nil, err
	}
	return reversal, nil
}

// MirrorLines returns the original's lines with debit and credit swapped
// per line, preserving account and cost-center assignment.
func MirrorLines(reversalID EntryID, original []JournalEntryLine) []JournalEntryLine {
	mirrored := make([]JournalEntryLine, len(original))
	for i, l := range original {
		mirrored[i] = JournalEntryLine{
			ID:           LineID(uuid.NewString()),
			EntryID:      reversalID,
			AccountID:    l.AccountID,
			Debit:        l.Credit,
			Credit:       l.Debit,
			CostCenterID: l.CostCenterID,
			Description:  l.Description,
			Position:     i,
		}
	}
	return mirrored
}

// CancelReversal discards a reversal entry that has not been posted yet
// and clears the original's back-links.
//
// In this engine a reversal is posted within the same transaction that
// creates it, so a draft reversal only exists when a deployment stages
// reversals through the draft API first. The guard still holds: a posted
// reversal can never be cancelled, only reversed in turn.
func (re *ReversalEngine) CancelReversal(ctx context.Context, reversalID EntryID) error {
	return re.Store.WithTx(ctx, func(s Store) error {
		rev, err := s.GetEntry(ctx, reversalID)
		if err != nil {
			return err
		}
		if rev == nil {
			return fmt.Errorf("%w: %s", ErrEntryNotFound, reversalID)
		}
		if !rev.IsReversal {
			return fmt.Errorf("%w: %s", ErrNotReversalEntry, rev.Number)
		}
		if rev.Status != StatusDraft {
			return fmt.Errorf("%w: %s", ErrReversalAlreadyPosted, rev.Number)
		}
		if rev.OriginalEntryID != "" {
			if err := s.ClearReversalLinks(ctx, rev.OriginalEntryID); err != nil {
				return err
			}
		}
		return s.DeleteEntry(ctx, reversalID)
	})
}

// =============================================================================
// BATCH REVERSAL
// =============================================================================

// BatchReversalItem is the outcome for one entry in a batch.
type BatchReversalItem struct {
	EntryID    EntryID
	ReversalID EntryID
	Err        error
}

// BatchReversalResult summarizes a batch reversal run.
type BatchReversalResult struct {
	Requested int
	Reversed  int
	Failed    int
	Items     []BatchReversalItem
}

// ReverseBatch applies Reverse to each id independently: one failure
// does not abort the batch, and each reversal commits in its own
// transaction.
func (re *ReversalEngine) ReverseBatch(ctx context.Context, ids []EntryID, reversalDate time.Time, reason string) BatchReversalResult {
	result := BatchReversalResult{Requested: len(ids)}
	for _, id := range ids {
		item := BatchReversalItem{EntryID: id}
		rev, err := re.Reverse(ctx, id, reversalDate, reason)
		if err != nil {
			item.Err = err
			result.Failed++
		} else {
			item.ReversalID = rev.ID
			result.Reversed++
		}
		result.Items = append(result.Items, item)
	}
	return result
}
