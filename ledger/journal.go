/*
journal.go - Draft entry lifecycle

PURPOSE:
  Creating, amending and discarding journal entries while they are still
  drafts. A draft may be mutated freely; once posted it is immutable
  except for the reversal back-links maintained by the reversal engine.
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Journal manages draft journal entries.
type Journal struct {
	Store     TxStore
	Numbers   EntryNumberSource
	Validator *Validator

	Now func() time.Time
}

func NewJournal(store TxStore, numbers EntryNumberSource) *Journal {
	return &Journal{
		Store:     store,
		Numbers:   numbers,
		Validator: NewValidator(store),
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

// LineInput is a caller-supplied journal entry line.
type LineInput struct {
	AccountID    AccountID
	Debit        string // decimal strings; parsed exactly
	Credit       string
	CostCenterID CostCenterID
	Description  string
}

// EntryInput carries the caller-supplied fields for a draft entry.
type EntryInput struct {
	Date        time.Time
	Description string
	Lines       []LineInput
}

// CreateDraft validates the input, allocates an entry number and saves a
// new Draft entry with its lines. The owning period must be open even for
// drafts: the closing guard protects every write path.
func (j *Journal) CreateDraft(ctx context.Context, input EntryInput) (*JournalEntry, []JournalEntryLine, error) {
	if input.Date.IsZero() {
		return nil, nil, fmt.Errorf("%w: entry date required", ErrInvalidDate)
	}

	number, err := j.Numbers.Next(ctx, input.Date)
	if err != nil {
		return nil, nil, err
	}

	entry := &JournalEntry{
		ID:          EntryID(uuid.NewString()),
		Number:      number,
		Date:        DateOnly(input.Date),
		Description: input.Description,
		Status:      StatusDraft,
		CreatedAt:   j.Now(),
	}
	lines, err := buildLines(entry.ID, input.Lines)
	if err != nil {
		return nil, nil, err
	}

	err = j.Store.WithTx(ctx, func(s Store) error {
		if _, err := checkOpen(ctx, s, entry.Date); err != nil {
			return err
		}
		if err := NewValidator(s).Validate(ctx, entry, lines); err != nil {
			return err
		}
		return s.SaveEntry(ctx, *entry, lines)
	})
	if err != nil {
		return nil, nil, err
	}
	return entry, lines, nil
}

// UpdateDraft replaces a draft's date, description and lines wholesale.
// Posted entries are immutable; attempting to update one fails NotDraft.
func (j *Journal) UpdateDraft(ctx context.Context, id EntryID, input EntryInput) (*JournalEntry, []JournalEntryLine, error) {
	var (
		entry *JournalEntry
		lines []JournalEntryLine
	)
	err := j.Store.WithTx(ctx, func(s Store) error {
		var err error
		entry, err = s.GetEntry(ctx, id)
		if err != nil {
			return err
		}
		if entry == nil {
			return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
		}
		if entry.Status != StatusDraft {
			return fmt.Errorf("%w: %s is %s", ErrNotDraft, entry.Number, entry.Status)
		}

		if !input.Date.IsZero() {
			entry.Date = DateOnly(input.Date)
		}
		if input.Description != "" {
			entry.Description = input.Description
		}
		lines, err = buildLines(entry.ID, input.Lines)
		if err != nil {
			return err
		}

		if _, err := checkOpen(ctx, s, entry.Date); err != nil {
			return err
		}
		if err := NewValidator(s).Validate(ctx, entry, lines); err != nil {
			return err
		}
		return s.SaveEntry(ctx, *entry, lines)
	})
	if err != nil {
		return nil, nil, err
	}
	return entry, lines, nil
}

// DeleteDraft discards a draft entry. Posted entries cannot be deleted.
func (j *Journal) DeleteDraft(ctx context.Context, id EntryID) error {
	return j.Store.WithTx(ctx, func(s Store) error {
		entry, err := s.GetEntry(ctx, id)
		if err != nil {
			return err
		}
		if entry == nil {
			return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
		}
		if entry.Status != StatusDraft {
			return fmt.Errorf("%w: %s is %s", ErrNotDraft, entry.Number, entry.Status)
		}
		return s.DeleteEntry(ctx, id)
	})
}

// GetEntry returns an entry with its lines.
func (j *Journal) GetEntry(ctx context.Context, id EntryID) (*JournalEntry, []JournalEntryLine, error) {
	entry, err := j.Store.GetEntry(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if entry == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	lines, err := j.Store.GetLines(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return entry, lines, nil
}

// ListEntries returns entry headers dated within [from, to].
func (j *Journal) ListEntries(ctx context.Context, from, to time.Time) ([]JournalEntry, error) {
	return j.Store.ListEntries(ctx, from, to)
}

func buildLines(entryID EntryID, inputs []LineInput) ([]JournalEntryLine, error) {
	lines := make([]JournalEntryLine, len(inputs))
	for i, in := range inputs {
		debit, err := parseAmount(in.Debit)
		if err != nil {
			return nil, &LineError{Position: i, Reason: fmt.Sprintf("bad debit %q", in.Debit)}
		}
		credit, err := parseAmount(in.Credit)
		if err != nil {
			return nil, &LineError{Position: i, Reason: fmt.Sprintf("bad credit %q", in.Credit)}
		}
		lines[i] = JournalEntryLine{
			ID:           LineID(uuid.NewString()),
			EntryID:      entryID,
			AccountID:    in.AccountID,
			Debit:        debit,
			Credit:       credit,
			CostCenterID: in.CostCenterID,
			Description:  in.Description,
			Position:     i,
		}
	}
	return lines, nil
}

// parseAmount parses a decimal string; empty means zero.
func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
