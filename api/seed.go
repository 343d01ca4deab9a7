/*
seed.go - Demo data loader for testing and demonstrations

PURPOSE:
  Populates a fresh database with a realistic starting point: the YAML
  chart of accounts, a fiscal year with monthly periods around today,
  and a handful of posted sample entries so reports have something to
  show.

WHAT IT LOADS:
 1. Chart of accounts from seed/chart.yaml (parents before children)
 2. A calendar-year fiscal year containing today
 3. Three balanced entries: capital contribution, a cash sale, rent

IDEMPOTENCY:
  Loading twice is safe: accounts that already exist and an overlapping
  fiscal year are skipped, but the sample entries post again each time.
  Only use in development/demo environments.

USAGE VIA API:
  POST /api/seed

SEE ALSO:
  - seed/seed.go: chart parsing
  - handlers.go: LoadSeed handler
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/meridian-erp/ledger-engine/ledger"
	"github.com/meridian-erp/ledger-engine/seed"
)

// Seeder loads demo data through the domain engines, so seeded state
// obeys every invariant ordinary requests do.
type Seeder struct {
	Store    ledger.TxStore
	Registry *ledger.Registry
	Journal  *ledger.Journal
	Posting  *ledger.PostingEngine
	Closer   *ledger.Closer

	Now func() time.Time
}

// SeedSummary reports what a seed run created.
type SeedSummary struct {
	AccountsCreated int    `json:"accounts_created"`
	AccountsSkipped int    `json:"accounts_skipped"`
	FiscalYear      string `json:"fiscal_year,omitempty"`
	EntriesPosted   int    `json:"entries_posted"`
}

// Load seeds the chart, a fiscal year around today and sample entries.
func (sd *Seeder) Load(ctx context.Context) (*SeedSummary, error) {
	now := time.Now().UTC()
	if sd.Now != nil {
		now = sd.Now()
	}

	summary := &SeedSummary{}
	if err := sd.loadChart(ctx, summary); err != nil {
		return nil, err
	}
	if err := sd.ensureFiscalYear(ctx, now, summary); err != nil {
		return nil, err
	}
	if err := sd.postSampleEntries(ctx, now, summary); err != nil {
		return nil, err
	}
	return summary, nil
}

func (sd *Seeder) loadChart(ctx context.Context, summary *SeedSummary) error {
	chart, err := seed.DefaultChart()
	if err != nil {
		return err
	}

	for _, fa := range chart {
		var parentID ledger.AccountID
		if fa.ParentCode != "" {
			parentCode, err := ledger.ParseAccountCode(fa.ParentCode)
			if err != nil {
				return fmt.Errorf("chart account %q: %w", fa.Code, err)
			}
			parent, err := sd.Store.GetAccountByCode(ctx, parentCode)
			if err != nil {
				return err
			}
			if parent == nil {
				return fmt.Errorf("chart account %q: parent %q not created", fa.Code, fa.ParentCode)
			}
			parentID = parent.ID
		}

		_, err := sd.Registry.CreateAccount(ctx, ledger.CreateAccountInput{
			Code:     fa.Code,
			Name:     fa.Name,
			ParentID: parentID,
			Type:     ledger.AccountType(fa.Type),
		})
		if errors.Is(err, ledger.ErrDuplicateCode) {
			summary.AccountsSkipped++
			continue
		}
		if err != nil {
			return fmt.Errorf("chart account %q: %w", fa.Code, err)
		}
		summary.AccountsCreated++
	}
	return nil
}

// ensureFiscalYear creates a calendar-year fiscal year containing now,
// unless one already covers it.
func (sd *Seeder) ensureFiscalYear(ctx context.Context, now time.Time, summary *SeedSummary) error {
	if period, err := sd.Store.FindPeriodFor(ctx, now); err != nil {
		return err
	} else if period != nil {
		return nil
	}

	year := now.Year()
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)

	fy, _, err := sd.Closer.CreateFiscalYear(ctx, fmt.Sprintf("FY%d", year), start, end)
	if err != nil {
		return err
	}
	summary.FiscalYear = fy.Name
	return nil
}

func (sd *Seeder) postSampleEntries(ctx context.Context, now time.Time, summary *SeedSummary) error {
	byCode := func(code string) (ledger.AccountID, error) {
		parsed, err := ledger.ParseAccountCode(code)
		if err != nil {
			return "", err
		}
		acc, err := sd.Store.GetAccountByCode(ctx, parsed)
		if err != nil {
			return "", err
		}
		if acc == nil {
			return "", fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, code)
		}
		return acc.ID, nil
	}

	bank, err := byCode("1.02")
	if err != nil {
		return err
	}
	cash, err := byCode("1.01")
	if err != nil {
		return err
	}
	capital, err := byCode("3.01")
	if err != nil {
		return err
	}
	sales, err := byCode("4.01")
	if err != nil {
		return err
	}
	rent, err := byCode("5.01")
	if err != nil {
		return err
	}

	samples := []ledger.EntryInput{
		{
			Date:        now,
			Description: "Initial capital contribution",
			Lines: []ledger.LineInput{
				{AccountID: bank, Debit: "50000.00"},
				{AccountID: capital, Credit: "50000.00"},
			},
		},
		{
			Date:        now,
			Description: "Cash sale",
			Lines: []ledger.LineInput{
				{AccountID: cash, Debit: "1250.00"},
				{AccountID: sales, Credit: "1250.00"},
			},
		},
		{
			Date:        now,
			Description: "Office rent",
			Lines: []ledger.LineInput{
				{AccountID: rent, Debit: "2000.00"},
				{AccountID: bank, Credit: "2000.00"},
			},
		},
	}

	for _, input := range samples {
		entry, _, err := sd.Journal.CreateDraft(ctx, input)
		if err != nil {
			return err
		}
		if _, err := sd.Posting.Post(ctx, entry.ID); err != nil {
			return err
		}
		summary.EntriesPosted++
	}
	return nil
}
