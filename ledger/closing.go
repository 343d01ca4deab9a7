/*
closing.go - Period and fiscal-year closing

PURPOSE:
  Closing locks a period against further postings after verifying that
  the posted lines inside it balance in aggregate. The CheckOpen guard
  defined here is consulted by every write path (draft saves, posting,
  reversals) before anything is persisted.

  The aggregate balance check is a system-integrity check, distinct from
  per-entry validation: per-entry validation guarantees each entry
  balances, so an aggregate mismatch means the stored history has been
  corrupted. That surfaces as an ImbalanceError and the period stays
  open.

  Closing also freezes an AccountBalance snapshot per account: opening
  carried forward from the prior period's closing, closing = opening +
  the period's totals. Snapshots are caches; reporting falls back to raw
  line history whenever one is missing.

  Periods close in calendar order, across fiscal years. Once a snapshot
  is frozen no period before it is open, so nothing can be posted into
  the range it covers and the snapshot stays equal to the raw
  recomputation.
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Closer manages the posting calendar: fiscal years, their periods, and
// the closing lifecycle.
type Closer struct {
	Store TxStore

	Now func() time.Time
}

func NewCloser(store TxStore) *Closer {
	return &Closer{Store: store, Now: func() time.Time { return time.Now().UTC() }}
}

// =============================================================================
// GUARD
// =============================================================================

// CheckOpen locates the period containing date and fails when none is
// defined or the period is closed. Mutation paths call this inside
// their transaction via the package-level helper.
func (c *Closer) CheckOpen(ctx context.Context, date time.Time) error {
	_, err := checkOpen(ctx, c.Store, date)
	return err
}

func checkOpen(ctx context.Context, s Store, date time.Time) (*AccountingPeriod, error) {
	period, err := s.FindPeriodFor(ctx, date)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoPeriodDefined, date.Format("2006-01-02"))
	}
	if period.Status == PeriodClosed {
		return nil, &PeriodClosedError{PeriodID: period.ID, PeriodName: period.Name, Date: date}
	}
	return period, nil
}

// =============================================================================
// FISCAL YEAR SETUP
// =============================================================================

// CreateFiscalYear registers a fiscal year spanning [start, end] and
// generates contiguous monthly periods covering it. Overlap with an
// existing year is rejected.
func (c *Closer) CreateFiscalYear(ctx context.Context, name string, start, end time.Time) (*FiscalYear, []AccountingPeriod, error) {
	start, end = DateOnly(start), DateOnly(end)
	if !start.Before(end) {
		return nil, nil, fmt.Errorf("%w: start %s not before end %s",
			ErrInvalidDate, start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	if name == "" {
		name = fmt.Sprintf("FY%d", start.Year())
	}

	fy := &FiscalYear{
		ID:        FiscalYearID(uuid.NewString()),
		Name:      name,
		StartDate: start,
		EndDate:   end,
	}
	periods := monthlyPeriods(fy.ID, start, end)

	err := c.Store.WithTx(ctx, func(s Store) error {
		existing, err := s.ListFiscalYears(ctx)
		if err != nil {
			return err
		}
		for _, other := range existing {
			if !end.Before(other.StartDate) && !start.After(other.EndDate) {
				return fmt.Errorf("fiscal year %s overlaps %s", name, other.Name)
			}
		}
		if err := s.SaveFiscalYear(ctx, *fy); err != nil {
			return err
		}
		for _, p := range periods {
			if err := s.SavePeriod(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return fy, periods, nil
}

// monthlyPeriods cuts [start, end] into calendar-month periods. The
// first and last may be partial months; together they are contiguous
// and non-overlapping by construction.
func monthlyPeriods(fyID FiscalYearID, start, end time.Time) []AccountingPeriod {
	var periods []AccountingPeriod
	cur := start
	for !cur.After(end) {
		monthEnd := time.Date(cur.Year(), cur.Month()+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
		if monthEnd.After(end) {
			monthEnd = end
		}
		periods = append(periods, AccountingPeriod{
			ID:           PeriodID(uuid.NewString()),
			FiscalYearID: fyID,
			Name:         cur.Format("2006-01"),
			StartDate:    cur,
			EndDate:      monthEnd,
			Status:       PeriodOpen,
		})
		cur = monthEnd.AddDate(0, 0, 1)
	}
	return periods
}

// =============================================================================
// PERIOD CLOSE
// =============================================================================

// ClosePeriod verifies the period's posted lines balance in aggregate,
// locks the period and freezes per-account balance snapshots, all in one
// transaction. Every period starting earlier, in any fiscal year, must
// already be closed.
func (c *Closer) ClosePeriod(ctx context.Context, id PeriodID) (*AccountingPeriod, error) {
	var closed *AccountingPeriod
	err := c.Store.WithTx(ctx, func(s Store) error {
		period, err := s.GetPeriod(ctx, id)
		if err != nil {
			return err
		}
		if period == nil {
			return fmt.Errorf("%w: %s", ErrPeriodNotFound, id)
		}
		if period.Status == PeriodClosed {
			return fmt.Errorf("%w: %s", ErrPeriodAlreadyClosed, period.Name)
		}
		if err := earlierPeriodsClosed(ctx, s, period); err != nil {
			return err
		}

		debit, credit, err := s.PostedTotalsInRange(ctx, period.StartDate, period.EndDate)
		if err != nil {
			return err
		}
		if !debit.Equal(credit) {
			return &ImbalanceError{
				Scope:       "period " + period.Name,
				TotalDebit:  debit,
				TotalCredit: credit,
			}
		}

		if err := c.snapshotInTx(ctx, s, period); err != nil {
			return err
		}

		now := c.Now()
		period.Status = PeriodClosed
		period.ClosedAt = &now
		if err := s.SavePeriod(ctx, *period); err != nil {
			return err
		}
		closed = period
		return nil
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}

// earlierPeriodsClosed rejects closing while any period starting before
// this one, in this or an earlier fiscal year, is still open. A
// snapshot frozen over an open earlier period would go stale on the
// next backdated posting.
func earlierPeriodsClosed(ctx context.Context, s Store, period *AccountingPeriod) error {
	years, err := s.ListFiscalYears(ctx)
	if err != nil {
		return err
	}
	for _, fy := range years {
		if fy.StartDate.After(period.StartDate) {
			continue
		}
		periods, err := s.ListPeriods(ctx, fy.ID)
		if err != nil {
			return err
		}
		for _, p := range periods {
			if p.Status == PeriodOpen && p.StartDate.Before(period.StartDate) {
				return fmt.Errorf("%w: %s", ErrEarlierPeriodOpen, p.Name)
			}
		}
	}
	return nil
}

// snapshotInTx writes one AccountBalance per account for the period.
// Opening comes from the prior period's snapshot when present, else from
// a raw recomputation over all posted lines before the period start.
func (c *Closer) snapshotInTx(ctx context.Context, s Store, period *AccountingPeriod) error {
	accounts, err := s.ListAccounts(ctx)
	if err != nil {
		return err
	}
	lines, err := s.PostedLinesInRange(ctx, period.StartDate, period.EndDate)
	if err != nil {
		return err
	}

	type totals struct{ debit, credit decimal.Decimal }
	byAccount := make(map[AccountID]totals)
	for _, l := range lines {
		t := byAccount[l.AccountID]
		t.debit = t.debit.Add(l.Debit)
		t.credit = t.credit.Add(l.Credit)
		byAccount[l.AccountID] = t
	}

	now := c.Now()
	for _, acc := range accounts {
		openingDebit, openingCredit := decimal.Zero, decimal.Zero
		prior, err := s.LatestSnapshotBefore(ctx, acc.ID, period.StartDate)
		if err != nil {
			return err
		}
		if prior != nil {
			openingDebit, openingCredit = prior.ClosingDebit, prior.ClosingCredit
			// Activity between the prior snapshot and this period start
			// (periods of another fiscal year, or backdated history).
			gapStart := prior.PeriodEnd.AddDate(0, 0, 1)
			if gapStart.Before(period.StartDate) {
				gap, err := s.PostedLinesForAccount(ctx, acc.ID, gapStart, period.StartDate.AddDate(0, 0, -1))
				if err != nil {
					return err
				}
				for _, l := range gap {
					openingDebit = openingDebit.Add(l.Debit)
					openingCredit = openingCredit.Add(l.Credit)
				}
			}
		} else {
			history, err := s.PostedLinesForAccount(ctx, acc.ID, time.Time{}, period.StartDate.AddDate(0, 0, -1))
			if err != nil {
				return err
			}
			for _, l := range history {
				openingDebit = openingDebit.Add(l.Debit)
				openingCredit = openingCredit.Add(l.Credit)
			}
		}

		t, active := byAccount[acc.ID]
		if !active && openingDebit.IsZero() && openingCredit.IsZero() {
			continue // nothing to freeze
		}

		snap := AccountBalance{
			AccountID:     acc.ID,
			PeriodID:      period.ID,
			PeriodEnd:     period.EndDate,
			OpeningDebit:  openingDebit,
			OpeningCredit: openingCredit,
			TotalDebit:    t.debit,
			TotalCredit:   t.credit,
			ClosingDebit:  openingDebit.Add(t.debit),
			ClosingCredit: openingCredit.Add(t.credit),
			CreatedAt:     now,
		}
		if err := s.SaveBalanceSnapshot(ctx, snap); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// FISCAL YEAR CLOSE
// =============================================================================

// CloseFiscalYear locks a fiscal year. Every contained period must
// already be closed.
func (c *Closer) CloseFiscalYear(ctx context.Context, id FiscalYearID) (*FiscalYear, error) {
	var closed *FiscalYear
	err := c.Store.WithTx(ctx, func(s Store) error {
		fy, err := s.GetFiscalYear(ctx, id)
		if err != nil {
			return err
		}
		if fy == nil {
			return fmt.Errorf("%w: %s", ErrFiscalYearNotFound, id)
		}
		if fy.IsClosed {
			return fmt.Errorf("%w: %s", ErrFiscalYearClosed, fy.Name)
		}

		periods, err := s.ListPeriods(ctx, id)
		if err != nil {
			return err
		}
		for _, p := range periods {
			if p.Status != PeriodClosed {
				return fmt.Errorf("%w: %s is still open", ErrPeriodsStillOpen, p.Name)
			}
		}

		now := c.Now()
		fy.IsClosed = true
		fy.ClosedAt = &now
		if err := s.SaveFiscalYear(ctx, *fy); err != nil {
			return err
		}
		closed = fy
		return nil
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}

// ListPeriods returns the fiscal year's periods in calendar order.
func (c *Closer) ListPeriods(ctx context.Context, fyID FiscalYearID) ([]AccountingPeriod, error) {
	fy, err := c.Store.GetFiscalYear(ctx, fyID)
	if err != nil {
		return nil, err
	}
	if fy == nil {
		return nil, fmt.Errorf("%w: %s", ErrFiscalYearNotFound, fyID)
	}
	return c.Store.ListPeriods(ctx, fyID)
}

// ListFiscalYears returns every registered fiscal year.
func (c *Closer) ListFiscalYears(ctx context.Context) ([]FiscalYear, error) {
	return c.Store.ListFiscalYears(ctx)
}
