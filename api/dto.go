/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Amounts travel as decimal strings ("1250.00"), never floats. The
  handlers hand them to shopspring/decimal unchanged.

DATES:
  Entry dates and period bounds are day-granular "YYYY-MM-DD" strings;
  timestamps are RFC3339.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/journal.go: EntryInput / LineInput domain equivalents
*/
package api

import (
	"time"

	"github.com/meridian-erp/ledger-engine/ledger"
)

// =============================================================================
// ACCOUNTS
// =============================================================================

// AccountDTO represents an account in API responses.
type AccountDTO struct {
	ID         string `json:"id"`
	Code       string `json:"code"`
	Name       string `json:"name"`
	ParentID   string `json:"parent_id,omitempty"`
	Type       string `json:"type"`
	NormalSide string `json:"normal_side"`
	IsActive   bool   `json:"is_active"`
	Balance    string `json:"balance"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// CreateAccountRequest is the request to create an account. Code is
// optional; when empty the next sibling code under parent_id is derived.
type CreateAccountRequest struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	ParentID string `json:"parent_id"`
	Type     string `json:"type"`
}

func toAccountDTO(a ledger.Account) AccountDTO {
	return AccountDTO{
		ID:         string(a.ID),
		Code:       a.Code.String(),
		Name:       a.Name,
		ParentID:   string(a.ParentID),
		Type:       string(a.Type),
		NormalSide: string(a.NormalSide),
		IsActive:   a.IsActive,
		Balance:    a.Balance.String(),
		CreatedAt:  a.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// JOURNAL ENTRIES
// =============================================================================

// LineDTO represents a journal entry line in API responses.
type LineDTO struct {
	ID           string `json:"id"`
	AccountID    string `json:"account_id"`
	Debit        string `json:"debit"`
	Credit       string `json:"credit"`
	CostCenterID string `json:"cost_center_id,omitempty"`
	Description  string `json:"description,omitempty"`
	Position     int    `json:"position"`
}

// EntryDTO represents a journal entry with its lines.
type EntryDTO struct {
	ID              string    `json:"id"`
	Number          string    `json:"number"`
	Date            string    `json:"date"`
	Description     string    `json:"description,omitempty"`
	FiscalYearID    string    `json:"fiscal_year_id,omitempty"`
	PeriodID        string    `json:"period_id,omitempty"`
	Status          string    `json:"status"`
	IsReversal      bool      `json:"is_reversal,omitempty"`
	OriginalEntryID string    `json:"original_entry_id,omitempty"`
	ReversalEntryID string    `json:"reversal_entry_id,omitempty"`
	PostedAt        string    `json:"posted_at,omitempty"`
	CreatedAt       string    `json:"created_at,omitempty"`
	Lines           []LineDTO `json:"lines,omitempty"`
}

// LineRequest is one line of a draft entry. Exactly one of debit/credit
// must be a positive decimal string; the other stays empty or "0".
type LineRequest struct {
	AccountID    string `json:"account_id"`
	Debit        string `json:"debit"`
	Credit       string `json:"credit"`
	CostCenterID string `json:"cost_center_id"`
	Description  string `json:"description"`
}

// EntryRequest is the request to create or update a draft entry.
type EntryRequest struct {
	Date        string        `json:"date"`
	Description string        `json:"description"`
	Lines       []LineRequest `json:"lines"`
}

// ReverseRequest is the request to reverse a posted entry.
type ReverseRequest struct {
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

// ReverseBatchRequest reverses several entries in one call.
type ReverseBatchRequest struct {
	EntryIDs []string `json:"entry_ids"`
	Date     string   `json:"date"`
	Reason   string   `json:"reason"`
}

// BatchItemDTO is one entry's outcome within a batch reversal.
type BatchItemDTO struct {
	EntryID    string `json:"entry_id"`
	ReversalID string `json:"reversal_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// BatchResultDTO summarizes a batch reversal.
type BatchResultDTO struct {
	Requested int            `json:"requested"`
	Reversed  int            `json:"reversed"`
	Failed    int            `json:"failed"`
	Items     []BatchItemDTO `json:"items"`
}

func toEntryDTO(e *ledger.JournalEntry, lines []ledger.JournalEntryLine) EntryDTO {
	dto := EntryDTO{
		ID:              string(e.ID),
		Number:          e.Number,
		Date:            e.Date.Format("2006-01-02"),
		Description:     e.Description,
		FiscalYearID:    string(e.FiscalYearID),
		PeriodID:        string(e.PeriodID),
		Status:          string(e.Status),
		IsReversal:      e.IsReversal,
		OriginalEntryID: string(e.OriginalEntryID),
		ReversalEntryID: string(e.ReversalEntryID),
		CreatedAt:       e.CreatedAt.Format(time.RFC3339),
	}
	if e.PostedAt != nil {
		dto.PostedAt = e.PostedAt.Format(time.RFC3339)
	}
	for _, l := range lines {
		dto.Lines = append(dto.Lines, LineDTO{
			ID:           string(l.ID),
			AccountID:    string(l.AccountID),
			Debit:        l.Debit.String(),
			Credit:       l.Credit.String(),
			CostCenterID: string(l.CostCenterID),
			Description:  l.Description,
			Position:     l.Position,
		})
	}
	return dto
}

// =============================================================================
// POSTING CALENDAR
// =============================================================================

// FiscalYearDTO represents a fiscal year.
type FiscalYearDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	IsClosed  bool   `json:"is_closed"`
	ClosedAt  string `json:"closed_at,omitempty"`
}

// PeriodDTO represents an accounting period.
type PeriodDTO struct {
	ID           string `json:"id"`
	FiscalYearID string `json:"fiscal_year_id"`
	Name         string `json:"name"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	Status       string `json:"status"`
	ClosedAt     string `json:"closed_at,omitempty"`
}

// CreateFiscalYearRequest creates a fiscal year with generated monthly
// periods.
type CreateFiscalYearRequest struct {
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func toFiscalYearDTO(fy ledger.FiscalYear) FiscalYearDTO {
	dto := FiscalYearDTO{
		ID:        string(fy.ID),
		Name:      fy.Name,
		StartDate: fy.StartDate.Format("2006-01-02"),
		EndDate:   fy.EndDate.Format("2006-01-02"),
		IsClosed:  fy.IsClosed,
	}
	if fy.ClosedAt != nil {
		dto.ClosedAt = fy.ClosedAt.Format(time.RFC3339)
	}
	return dto
}

func toPeriodDTO(p ledger.AccountingPeriod) PeriodDTO {
	dto := PeriodDTO{
		ID:           string(p.ID),
		FiscalYearID: string(p.FiscalYearID),
		Name:         p.Name,
		StartDate:    p.StartDate.Format("2006-01-02"),
		EndDate:      p.EndDate.Format("2006-01-02"),
		Status:       string(p.Status),
	}
	if p.ClosedAt != nil {
		dto.ClosedAt = p.ClosedAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// REPORTS
// =============================================================================

// LedgerLineDTO is one row of a general ledger report.
type LedgerLineDTO struct {
	EntryID     string `json:"entry_id"`
	EntryNumber string `json:"entry_number"`
	EntryDate   string `json:"entry_date"`
	Description string `json:"description,omitempty"`
	Debit       string `json:"debit"`
	Credit      string `json:"credit"`
	Running     string `json:"running_balance"`
}

// GeneralLedgerDTO is an account's activity with running balances.
type GeneralLedgerDTO struct {
	AccountID   string          `json:"account_id"`
	AccountCode string          `json:"account_code"`
	AccountName string          `json:"account_name"`
	NormalSide  string          `json:"normal_side"`
	From        string          `json:"from"`
	To          string          `json:"to"`
	Opening     string          `json:"opening_balance"`
	Lines       []LedgerLineDTO `json:"lines"`
	Closing     string          `json:"closing_balance"`
}

// TrialBalanceRowDTO is one account's totals in a trial balance.
type TrialBalanceRowDTO struct {
	AccountID    string `json:"account_id"`
	AccountCode  string `json:"account_code"`
	AccountName  string `json:"account_name"`
	AccountType  string `json:"account_type"`
	PeriodDebit  string `json:"period_debit"`
	PeriodCredit string `json:"period_credit"`
	EndingDebit  string `json:"ending_debit"`
	EndingCredit string `json:"ending_credit"`
}

// TrialBalanceDTO is the full trial balance over a range.
type TrialBalanceDTO struct {
	From        string               `json:"from"`
	To          string               `json:"to"`
	Rows        []TrialBalanceRowDTO `json:"rows"`
	TotalDebit  string               `json:"total_debit"`
	TotalCredit string               `json:"total_credit"`
	IsBalanced  bool                 `json:"is_balanced"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
