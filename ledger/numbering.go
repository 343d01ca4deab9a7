/*
numbering.go - Entry number generation

PURPOSE:
  Every journal entry carries a unique human-readable number like
  "JE-2025-000042". The engines treat numbering as a collaborator so a
  deployment can plug in its own scheme; the default here issues
  per-year sequences. Reversal entries derive their number from the
  original's ("RV-JE-2025-000042"), which also makes the one-reversal-
  per-entry invariant visible in the numbering.

  A sequence may burn numbers when a transaction aborts; numbers are
  unique and ascending, not gapless.
*/
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// EntryNumberSource supplies unique entry numbers.
type EntryNumberSource interface {
	// Next returns a fresh entry number for an entry dated at date.
	Next(ctx context.Context, date time.Time) (string, error)

	// NextReversal returns the number for the reversal of the entry
	// carrying originalNumber.
	NextReversal(ctx context.Context, originalNumber string) (string, error)
}

// FormatEntryNumber renders a number like "JE-2025-000042".
func FormatEntryNumber(year, seq int) string {
	return fmt.Sprintf("JE-%04d-%06d", year, seq)
}

// ReversalNumberFor derives the reversal number from the original's.
func ReversalNumberFor(originalNumber string) string {
	return "RV-" + originalNumber
}

// =============================================================================
// SEQUENCE - In-memory EntryNumberSource (testing/dev)
// =============================================================================

// Sequence issues per-year sequential numbers from memory. The sqlite
// store provides the durable equivalent.
type Sequence struct {
	mu   sync.Mutex
	next map[int]int
}

func NewSequence() *Sequence {
	return &Sequence{next: make(map[int]int)}
}

func (s *Sequence) Next(_ context.Context, date time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	year := date.Year()
	s.next[year]++
	return FormatEntryNumber(year, s.next[year]), nil
}

func (s *Sequence) NextReversal(_ context.Context, originalNumber string) (string, error) {
	return ReversalNumberFor(originalNumber), nil
}
