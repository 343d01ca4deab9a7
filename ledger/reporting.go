/*
reporting.go - General ledger and trial balance

PURPOSE:
  Reconstructs per-account running balances and aggregate trial balances
  from posted line history. Reports are finite and restartable: every
  call recomputes from stored history, there is no cursor state.

OPENING BALANCES:
  The opening balance for a range is the signed sum of all posted lines
  dated strictly before the range start, signed per the account's normal
  side. When a period-close snapshot covers part of that history it is
  used as a shortcut; the result is identical to the raw recomputation
  (the snapshot is opening-carried-forward plus period totals, which is
  exactly the same sum).

ORDERING:
  Ledger lines order by (entry date, entry created-at, line position).
  The store contract guarantees that ordering, which makes running
  balances deterministic and reproducible across calls.
*/
package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Reporter derives read-only reports from posted line history. It never
// writes and may run concurrently with postings.
type Reporter struct {
	Store Store
}

func NewReporter(store Store) *Reporter {
	return &Reporter{Store: store}
}

// =============================================================================
// GENERAL LEDGER
// =============================================================================

// LedgerLine is one row of a general ledger report: a posted line plus
// the cumulative running balance after applying it.
type LedgerLine struct {
	EntryID     EntryID
	EntryNumber string
	EntryDate   time.Time
	Description string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Running     decimal.Decimal
}

// GeneralLedgerReport is an account's activity over a date range with
// running balances, signed per the account's normal side.
type GeneralLedgerReport struct {
	AccountID   AccountID
	AccountCode AccountCode
	AccountName string
	NormalSide  BalanceSide
	From, To    time.Time
	Opening     decimal.Decimal
	Lines       []LedgerLine
	Closing     decimal.Decimal
}

// GeneralLedger reconstructs the account's ledger over [from, to].
func (r *Reporter) GeneralLedger(ctx context.Context, id AccountID, from, to time.Time) (*GeneralLedgerReport, error) {
	acc, err := r.Store.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	from, to = DateOnly(from), DateOnly(to)
	if to.Before(from) {
		return nil, fmt.Errorf("%w: range end before start", ErrInvalidDate)
	}

	opening, err := r.openingBalance(ctx, acc, from)
	if err != nil {
		return nil, err
	}

	lines, err := r.Store.PostedLinesForAccount(ctx, id, from, to)
	if err != nil {
		return nil, err
	}

	report := &GeneralLedgerReport{
		AccountID:   acc.ID,
		AccountCode: acc.Code,
		AccountName: acc.Name,
		NormalSide:  acc.NormalSide,
		From:        from,
		To:          to,
		Opening:     opening,
	}
	running := opening
	for _, l := range lines {
		running = running.Add(SignedDelta(acc.NormalSide, l.Debit, l.Credit))
		report.Lines = append(report.Lines, LedgerLine{
			EntryID:     l.EntryID,
			EntryNumber: l.EntryNumber,
			EntryDate:   l.EntryDate,
			Description: l.Description,
			Debit:       l.Debit,
			Credit:      l.Credit,
			Running:     running,
		})
	}
	report.Closing = running
	return report, nil
}

// openingBalance sums the account's posted history strictly before
// start, shortcutting through the latest period-close snapshot when one
// exists.
func (r *Reporter) openingBalance(ctx context.Context, acc *Account, start time.Time) (decimal.Decimal, error) {
	historyFrom := time.Time{}
	opening := decimal.Zero

	snap, err := r.Store.LatestSnapshotBefore(ctx, acc.ID, start)
	if err != nil {
		return decimal.Zero, err
	}
	if snap != nil {
		opening = snap.Net(acc.NormalSide)
		historyFrom = snap.PeriodEnd.AddDate(0, 0, 1)
		if !historyFrom.Before(start) {
			return opening, nil
		}
	}

	lines, err := r.Store.PostedLinesForAccount(ctx, acc.ID, historyFrom, start.AddDate(0, 0, -1))
	if err != nil {
		return decimal.Zero, err
	}
	for _, l := range lines {
		opening = opening.Add(SignedDelta(acc.NormalSide, l.Debit, l.Credit))
	}
	return opening, nil
}

// =============================================================================
// TRIAL BALANCE
// =============================================================================

// TrialBalanceRow aggregates one account's activity in the range and
// nets it into an ending debit-or-credit balance.
type TrialBalanceRow struct {
	AccountID    AccountID
	AccountCode  AccountCode
	AccountName  string
	AccountType  AccountType
	PeriodDebit  decimal.Decimal
	PeriodCredit decimal.Decimal
	EndingDebit  decimal.Decimal
	EndingCredit decimal.Decimal
}

// TrialBalanceReport lists every account with activity in the range and
// the aggregate ending totals. IsBalanced must hold for a consistent
// ledger; a false value signals upstream corruption.
type TrialBalanceReport struct {
	From, To    time.Time
	Rows        []TrialBalanceRow
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	IsBalanced  bool
}

// TrialBalance aggregates every account's posted activity in [from, to].
// On an aggregate mismatch the report is still returned, together with
// an ImbalanceError so the corruption is surfaced rather than swallowed.
func (r *Reporter) TrialBalance(ctx context.Context, from, to time.Time) (*TrialBalanceReport, error) {
	from, to = DateOnly(from), DateOnly(to)
	if to.Before(from) {
		return nil, fmt.Errorf("%w: range end before start", ErrInvalidDate)
	}

	lines, err := r.Store.PostedLinesInRange(ctx, from, to)
	if err != nil {
		return nil, err
	}

	type totals struct{ debit, credit decimal.Decimal }
	byAccount := make(map[AccountID]totals)
	for _, l := range lines {
		t := byAccount[l.AccountID]
		t.debit = t.debit.Add(l.Debit)
		t.credit = t.credit.Add(l.Credit)
		byAccount[l.AccountID] = t
	}

	report := &TrialBalanceReport{From: from, To: to}
	for accID, t := range byAccount {
		acc, err := r.Store.GetAccount(ctx, accID)
		if err != nil {
			return nil, err
		}
		row := TrialBalanceRow{
			AccountID:    accID,
			PeriodDebit:  t.debit,
			PeriodCredit: t.credit,
		}
		if acc != nil {
			row.AccountCode = acc.Code
			row.AccountName = acc.Name
			row.AccountType = acc.Type
		}
		// Net the activity onto whichever side is positive.
		net := t.debit.Sub(t.credit)
		if net.IsNegative() {
			row.EndingCredit = net.Neg()
		} else {
			row.EndingDebit = net
		}
		report.Rows = append(report.Rows, row)

		report.TotalDebit = report.TotalDebit.Add(row.EndingDebit)
		report.TotalCredit = report.TotalCredit.Add(row.EndingCredit)
	}
	sort.Slice(report.Rows, func(i, j int) bool {
		return report.Rows[i].AccountCode.Compare(report.Rows[j].AccountCode) < 0
	})

	report.IsBalanced = report.TotalDebit.Equal(report.TotalCredit)
	if !report.IsBalanced {
		return report, &ImbalanceError{
			Scope:       fmt.Sprintf("trial balance %s..%s", from.Format("2006-01-02"), to.Format("2006-01-02")),
			TotalDebit:  report.TotalDebit,
			TotalCredit: report.TotalCredit,
		}
	}
	return report, nil
}
