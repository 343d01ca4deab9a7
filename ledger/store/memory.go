// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/ledger-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	accounts  map[ledger.AccountID]ledger.Account
	entries   map[ledger.EntryID]ledger.JournalEntry
	lines     map[ledger.EntryID][]ledger.JournalEntryLine
	years     map[ledger.FiscalYearID]ledger.FiscalYear
	periods   map[ledger.PeriodID]ledger.AccountingPeriod
	snapshots map[snapKey]ledger.AccountBalance
}

type snapKey struct {
	Account ledger.AccountID
	Period  ledger.PeriodID
}

func NewMemory() *Memory {
	return &Memory{
		accounts:  make(map[ledger.AccountID]ledger.Account),
		entries:   make(map[ledger.EntryID]ledger.JournalEntry),
		lines:     make(map[ledger.EntryID][]ledger.JournalEntryLine),
		years:     make(map[ledger.FiscalYearID]ledger.FiscalYear),
		periods:   make(map[ledger.PeriodID]ledger.AccountingPeriod),
		snapshots: make(map[snapKey]ledger.AccountBalance),
	}
}

// --- Accounts ---

func (m *Memory) SaveAccount(_ context.Context, a ledger.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Preserve the denormalized balance across metadata updates.
	if existing, ok := m.accounts[a.ID]; ok {
		a.Balance = existing.Balance
	}
	m.accounts[a.ID] = a
	return nil
}

func (m *Memory) GetAccount(_ context.Context, id ledger.AccountID) (*ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if a, ok := m.accounts[id]; ok {
		return &a, nil
	}
	return nil, nil
}

func (m *Memory) GetAccountByCode(_ context.Context, code ledger.AccountCode) (*ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.accounts {
		if a.Code == code {
			a := a
			return &a, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListAccounts(_ context.Context) ([]ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	accounts := make([]ledger.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		accounts = append(accounts, a)
	}
	ledger.SortAccountsByCode(accounts)
	return accounts, nil
}

func (m *Memory) ListChildAccounts(_ context.Context, parentID ledger.AccountID) ([]ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var children []ledger.Account
	for _, a := range m.accounts {
		if a.ParentID == parentID {
			children = append(children, a)
		}
	}
	ledger.SortAccountsByCode(children)
	return children, nil
}

func (m *Memory) AddToAccountBalance(_ context.Context, id ledger.AccountID, delta decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil
	}
	a.Balance = a.Balance.Add(delta)
	m.accounts[id] = a
	return nil
}

func (m *Memory) DeleteAccount(_ context.Context, id ledger.AccountID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accounts, id)
	return nil
}

func (m *Memory) AccountHasPostedLines(_ context.Context, id ledger.AccountID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for entryID, lines := range m.lines {
		e, ok := m.entries[entryID]
		if !ok || e.Status == ledger.StatusDraft {
			continue
		}
		for _, l := range lines {
			if l.AccountID == id {
				return true, nil
			}
		}
	}
	return false, nil
}

// --- Journal entries ---

func (m *Memory) SaveEntry(_ context.Context, e ledger.JournalEntry, lines []ledger.JournalEntryLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.ID] = e
	m.lines[e.ID] = append([]ledger.JournalEntryLine(nil), lines...)
	return nil
}

func (m *Memory) GetEntry(_ context.Context, id ledger.EntryID) (*ledger.JournalEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.entries[id]; ok {
		return &e, nil
	}
	return nil, nil
}

func (m *Memory) GetEntryByNumber(_ context.Context, number string) (*ledger.JournalEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.entries {
		if e.Number == number {
			e := e
			return &e, nil
		}
	}
	return nil, nil
}

func (m *Memory) GetLines(_ context.Context, id ledger.EntryID) ([]ledger.JournalEntryLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ledger.JournalEntryLine(nil), m.lines[id]...), nil
}

func (m *Memory) ListEntries(_ context.Context, from, to time.Time) ([]ledger.JournalEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var entries []ledger.JournalEntry
	for _, e := range m.entries {
		if inRange(e.Date, from, to) {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.Before(entries[j].Date)
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries, nil
}

func (m *Memory) MarkPosted(_ context.Context, id ledger.EntryID, postedAt time.Time, periodID ledger.PeriodID, fyID ledger.FiscalYearID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil
	}
	e.Status = ledger.StatusPosted
	e.PostedAt = &postedAt
	e.PeriodID = periodID
	e.FiscalYearID = fyID
	m.entries[id] = e
	return nil
}

func (m *Memory) SetReversalLinks(_ context.Context, originalID, reversalID ledger.EntryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if orig, ok := m.entries[originalID]; ok {
		orig.Status = ledger.StatusReversed
		orig.ReversalEntryID = reversalID
		m.entries[originalID] = orig
	}
	if rev, ok := m.entries[reversalID]; ok {
		rev.OriginalEntryID = originalID
		m.entries[reversalID] = rev
	}
	return nil
}

func (m *Memory) ClearReversalLinks(_ context.Context, originalID ledger.EntryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if orig, ok := m.entries[originalID]; ok {
		orig.Status = ledger.StatusPosted
		orig.ReversalEntryID = ""
		m.entries[originalID] = orig
	}
	return nil
}

func (m *Memory) DeleteEntry(_ context.Context, id ledger.EntryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	delete(m.lines, id)
	return nil
}

// --- Posted line history ---

func (m *Memory) PostedLinesForAccount(_ context.Context, id ledger.AccountID, from, to time.Time) ([]ledger.PostedLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []ledger.PostedLine
	for _, pl := range m.postedLinesLocked(from, to) {
		if pl.AccountID == id {
			result = append(result, pl)
		}
	}
	return result, nil
}

func (m *Memory) PostedLinesInRange(_ context.Context, from, to time.Time) ([]ledger.PostedLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.postedLinesLocked(from, to), nil
}

func (m *Memory) PostedTotalsInRange(_ context.Context, from, to time.Time) (decimal.Decimal, decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	debit, credit := decimal.Zero, decimal.Zero
	for _, pl := range m.postedLinesLocked(from, to) {
		debit = debit.Add(pl.Debit)
		credit = credit.Add(pl.Credit)
	}
	return debit, credit, nil
}

// postedLinesLocked flattens posted entries' lines in the contractual
// order: (entry date, entry created-at, line position).
func (m *Memory) postedLinesLocked(from, to time.Time) []ledger.PostedLine {
	var result []ledger.PostedLine
	for _, e := range m.entries {
		if e.Status == ledger.StatusDraft || !inRange(e.Date, from, to) {
			continue
		}
		for _, l := range m.lines[e.ID] {
			result = append(result, ledger.PostedLine{
				LineID:         l.ID,
				EntryID:        e.ID,
				EntryNumber:    e.Number,
				EntryDate:      e.Date,
				EntryCreatedAt: e.CreatedAt,
				AccountID:      l.AccountID,
				Debit:          l.Debit,
				Credit:         l.Credit,
				CostCenterID:   l.CostCenterID,
				Description:    l.Description,
				Position:       l.Position,
			})
		}
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.EntryDate.Equal(b.EntryDate) {
			return a.EntryDate.Before(b.EntryDate)
		}
		if !a.EntryCreatedAt.Equal(b.EntryCreatedAt) {
			return a.EntryCreatedAt.Before(b.EntryCreatedAt)
		}
		if a.EntryID != b.EntryID {
			return a.EntryID < b.EntryID
		}
		return a.Position < b.Position
	})
	return result
}

// --- Posting calendar ---

func (m *Memory) SaveFiscalYear(_ context.Context, fy ledger.FiscalYear) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.years[fy.ID] = fy
	return nil
}

func (m *Memory) GetFiscalYear(_ context.Context, id ledger.FiscalYearID) (*ledger.FiscalYear, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if fy, ok := m.years[id]; ok {
		return &fy, nil
	}
	return nil, nil
}

func (m *Memory) ListFiscalYears(_ context.Context) ([]ledger.FiscalYear, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	years := make([]ledger.FiscalYear, 0, len(m.years))
	for _, fy := range m.years {
		years = append(years, fy)
	}
	sort.Slice(years, func(i, j int) bool { return years[i].StartDate.Before(years[j].StartDate) })
	return years, nil
}

func (m *Memory) SavePeriod(_ context.Context, p ledger.AccountingPeriod) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.periods[p.ID] = p
	return nil
}

func (m *Memory) GetPeriod(_ context.Context, id ledger.PeriodID) (*ledger.AccountingPeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.periods[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (m *Memory) ListPeriods(_ context.Context, fyID ledger.FiscalYearID) ([]ledger.AccountingPeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var periods []ledger.AccountingPeriod
	for _, p := range m.periods {
		if p.FiscalYearID == fyID {
			periods = append(periods, p)
		}
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].StartDate.Before(periods[j].StartDate) })
	return periods, nil
}

func (m *Memory) FindPeriodFor(_ context.Context, date time.Time) (*ledger.AccountingPeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.periods {
		p := p
		if p.Contains(date) {
			return &p, nil
		}
	}
	return nil, nil
}

// --- Balance snapshots ---

func (m *Memory) SaveBalanceSnapshot(_ context.Context, b ledger.AccountBalance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[snapKey{Account: b.AccountID, Period: b.PeriodID}] = b
	return nil
}

func (m *Memory) GetBalanceSnapshot(_ context.Context, id ledger.AccountID, periodID ledger.PeriodID) (*ledger.AccountBalance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if b, ok := m.snapshots[snapKey{Account: id, Period: periodID}]; ok {
		return &b, nil
	}
	return nil, nil
}

func (m *Memory) LatestSnapshotBefore(_ context.Context, id ledger.AccountID, before time.Time) (*ledger.AccountBalance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *ledger.AccountBalance
	for k, b := range m.snapshots {
		if k.Account != id || !b.PeriodEnd.Before(before) {
			continue
		}
		if latest == nil || b.PeriodEnd.After(latest.PeriodEnd) {
			b := b
			latest = &b
		}
	}
	return latest, nil
}

func inRange(date, from, to time.Time) bool {
	if !from.IsZero() && date.Before(from) {
		return false
	}
	if !to.IsZero() && date.After(to) {
		return false
	}
	return true
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
	txmu sync.Mutex
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn against the store, simulating a transaction with a
// full snapshot + rollback on error. Transactions serialize, which
// mirrors the single-writer behavior of the production store.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	tm.txmu.Lock()
	defer tm.txmu.Unlock()

	snapshot := tm.snapshot()
	if err := fn(tm.Memory); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	accounts  map[ledger.AccountID]ledger.Account
	entries   map[ledger.EntryID]ledger.JournalEntry
	lines     map[ledger.EntryID][]ledger.JournalEntryLine
	years     map[ledger.FiscalYearID]ledger.FiscalYear
	periods   map[ledger.PeriodID]ledger.AccountingPeriod
	snapshots map[snapKey]ledger.AccountBalance
}

func (tm *TxMemory) snapshot() memorySnapshot {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	s := memorySnapshot{
		accounts:  make(map[ledger.AccountID]ledger.Account, len(tm.accounts)),
		entries:   make(map[ledger.EntryID]ledger.JournalEntry, len(tm.entries)),
		lines:     make(map[ledger.EntryID][]ledger.JournalEntryLine, len(tm.lines)),
		years:     make(map[ledger.FiscalYearID]ledger.FiscalYear, len(tm.years)),
		periods:   make(map[ledger.PeriodID]ledger.AccountingPeriod, len(tm.periods)),
		snapshots: make(map[snapKey]ledger.AccountBalance, len(tm.snapshots)),
	}
	for k, v := range tm.accounts {
		s.accounts[k] = v
	}
	for k, v := range tm.entries {
		s.entries[k] = v
	}
	for k, v := range tm.lines {
		s.lines[k] = append([]ledger.JournalEntryLine(nil), v...)
	}
	for k, v := range tm.years {
		s.years[k] = v
	}
	for k, v := range tm.periods {
		s.periods[k] = v
	}
	for k, v := range tm.snapshots {
		s.snapshots[k] = v
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.accounts = s.accounts
	tm.entries = s.entries
	tm.lines = s.lines
	tm.years = s.years
	tm.periods = s.periods
	tm.snapshots = s.snapshots
}
