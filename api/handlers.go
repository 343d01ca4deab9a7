/*
handlers.go - HTTP API handlers for the ledger engine

PURPOSE:
  Exposes the double-entry ledger engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Accounts:
    GET    /api/accounts                 List the chart of accounts
    POST   /api/accounts                 Create account
    GET    /api/accounts/{id}            Get account
    POST   /api/accounts/{id}/deactivate Deactivate account
    DELETE /api/accounts/{id}            Delete an unused account

  Entries:
    GET    /api/entries                  List entries (optional from/to)
    POST   /api/entries                  Create draft entry
    GET    /api/entries/{id}             Get entry with lines
    PUT    /api/entries/{id}             Update draft
    DELETE /api/entries/{id}             Delete draft
    POST   /api/entries/{id}/post        Post the entry
    POST   /api/entries/{id}/reverse     Reverse a posted entry
    POST   /api/entries/reverse-batch    Reverse several entries
    DELETE /api/reversals/{id}           Cancel a still-draft reversal

  Calendar:
    GET    /api/fiscal-years             List fiscal years
    POST   /api/fiscal-years             Create year + monthly periods
    POST   /api/fiscal-years/{id}/close  Close the year
    GET    /api/periods?fiscal_year_id=  List periods
    POST   /api/periods/{id}/close       Close a period

  Reports:
    GET    /api/reports/general-ledger   Per-account running balances
    GET    /api/reports/trial-balance    All accounts, debit/credit totals

  Seed:
    POST   /api/seed                     Load demo chart + sample entries

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input shape
  3. Call domain logic (registry, journal, engines, reporter)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Domain errors map onto HTTP status by class:
  - 400: validation (unbalanced, malformed lines, bad codes/dates)
  - 404: not found
  - 409: state conflicts (already posted, period closed, duplicates)
  - 500: integrity violations and infrastructure failures

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - seed.go: Demo data loader
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/ledger-engine/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Registry *ledger.Registry
	Journal  *ledger.Journal
	Posting  *ledger.PostingEngine
	Reversal *ledger.ReversalEngine
	Closer   *ledger.Closer
	Reporter *ledger.Reporter

	Seeder *Seeder
}

// NewHandler wires the domain engines over one transactional store.
func NewHandler(store ledger.TxStore, numbers ledger.EntryNumberSource) *Handler {
	posting := ledger.NewPostingEngine(store)
	h := &Handler{
		Registry: ledger.NewRegistry(store),
		Journal:  ledger.NewJournal(store, numbers),
		Posting:  posting,
		Reversal: ledger.NewReversalEngine(store, numbers, posting),
		Closer:   ledger.NewCloser(store),
		Reporter: ledger.NewReporter(store),
	}
	h.Seeder = &Seeder{
		Store:    store,
		Registry: h.Registry,
		Journal:  h.Journal,
		Posting:  h.Posting,
		Closer:   h.Closer,
	}
	return h
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// ListAccounts returns the full chart of accounts ordered by code.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Registry.ListAccounts(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to list accounts", err)
		return
	}

	dtos := make([]AccountDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = toAccountDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAccount creates a new account, deriving the code from the parent
// when none is supplied.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	acc, err := h.Registry.CreateAccount(r.Context(), ledger.CreateAccountInput{
		Code:     req.Code,
		Name:     req.Name,
		ParentID: ledger.AccountID(req.ParentID),
		Type:     ledger.AccountType(req.Type),
	})
	if err != nil {
		writeDomainError(w, "Failed to create account", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(*acc))
}

// GetAccount returns a single account.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id := ledger.AccountID(chi.URLParam(r, "id"))

	acc, err := h.Registry.GetAccount(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get account", err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(*acc))
}

// DeactivateAccount stops further postings to an account.
func (h *Handler) DeactivateAccount(w http.ResponseWriter, r *http.Request) {
	id := ledger.AccountID(chi.URLParam(r, "id"))

	if err := h.Registry.DeactivateAccount(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to deactivate account", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deactivated"})
}

// DeleteAccount removes an account that was never used.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id := ledger.AccountID(chi.URLParam(r, "id"))

	if err := h.Registry.DeleteAccount(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to delete account", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// =============================================================================
// ENTRY HANDLERS
// =============================================================================

// ListEntries returns entry headers, optionally bounded by ?from/?to.
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range (use YYYY-MM-DD)", err)
		return
	}

	entries, err := h.Journal.ListEntries(r.Context(), from, to)
	if err != nil {
		writeDomainError(w, "Failed to list entries", err)
		return
	}

	dtos := make([]EntryDTO, len(entries))
	for i := range entries {
		dtos[i] = toEntryDTO(&entries[i], nil)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateEntry creates a draft journal entry.
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	input, err := decodeEntryRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	entry, lines, err := h.Journal.CreateDraft(r.Context(), input)
	if err != nil {
		writeDomainError(w, "Failed to create entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(entry, lines))
}

// GetEntry returns an entry with its lines.
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id := ledger.EntryID(chi.URLParam(r, "id"))

	entry, lines, err := h.Journal.GetEntry(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get entry", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(entry, lines))
}

// UpdateEntry replaces a draft's date, description and lines.
func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	id := ledger.EntryID(chi.URLParam(r, "id"))

	input, err := decodeEntryRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	entry, lines, err := h.Journal.UpdateDraft(r.Context(), id, input)
	if err != nil {
		writeDomainError(w, "Failed to update entry", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(entry, lines))
}

// DeleteEntry discards a draft entry.
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := ledger.EntryID(chi.URLParam(r, "id"))

	if err := h.Journal.DeleteDraft(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to delete entry", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// PostEntry posts a draft, applying its balance deltas atomically.
func (h *Handler) PostEntry(w http.ResponseWriter, r *http.Request) {
	id := ledger.EntryID(chi.URLParam(r, "id"))

	entry, err := h.Posting.Post(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to post entry", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(entry, nil))
}

// ReverseEntry generates and posts the mirror of a posted entry.
func (h *Handler) ReverseEntry(w http.ResponseWriter, r *http.Request) {
	id := ledger.EntryID(chi.URLParam(r, "id"))

	var req ReverseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := parseDay(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	rev, err := h.Reversal.Reverse(r.Context(), id, date, req.Reason)
	if err != nil {
		writeDomainError(w, "Failed to reverse entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(rev, nil))
}

// ReverseBatch reverses several entries, reporting per-entry outcomes.
func (h *Handler) ReverseBatch(w http.ResponseWriter, r *http.Request) {
	var req ReverseBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := parseDay(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	ids := make([]ledger.EntryID, len(req.EntryIDs))
	for i, id := range req.EntryIDs {
		ids[i] = ledger.EntryID(id)
	}

	result := h.Reversal.ReverseBatch(r.Context(), ids, date, req.Reason)

	dto := BatchResultDTO{
		Requested: result.Requested,
		Reversed:  result.Reversed,
		Failed:    result.Failed,
		Items:     make([]BatchItemDTO, len(result.Items)),
	}
	for i, item := range result.Items {
		dto.Items[i] = BatchItemDTO{
			EntryID:    string(item.EntryID),
			ReversalID: string(item.ReversalID),
		}
		if item.Err != nil {
			dto.Items[i].Error = item.Err.Error()
		}
	}
	writeJSON(w, http.StatusOK, dto)
}

// CancelReversal discards a reversal that is still a draft, unlinking
// the original.
func (h *Handler) CancelReversal(w http.ResponseWriter, r *http.Request) {
	id := ledger.EntryID(chi.URLParam(r, "id"))

	if err := h.Reversal.CancelReversal(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to cancel reversal", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "cancelled"})
}

// =============================================================================
// CALENDAR HANDLERS
// =============================================================================

// ListFiscalYears returns all fiscal years.
func (h *Handler) ListFiscalYears(w http.ResponseWriter, r *http.Request) {
	years, err := h.Closer.ListFiscalYears(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to list fiscal years", err)
		return
	}

	dtos := make([]FiscalYearDTO, len(years))
	for i, fy := range years {
		dtos[i] = toFiscalYearDTO(fy)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateFiscalYear creates a fiscal year with generated monthly periods.
func (h *Handler) CreateFiscalYear(w http.ResponseWriter, r *http.Request) {
	var req CreateFiscalYearRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start, err := parseDay(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date (use YYYY-MM-DD)", err)
		return
	}
	end, err := parseDay(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date (use YYYY-MM-DD)", err)
		return
	}

	fy, periods, err := h.Closer.CreateFiscalYear(r.Context(), req.Name, start, end)
	if err != nil {
		writeDomainError(w, "Failed to create fiscal year", err)
		return
	}

	periodDTOs := make([]PeriodDTO, len(periods))
	for i, p := range periods {
		periodDTOs[i] = toPeriodDTO(p)
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"fiscal_year": toFiscalYearDTO(*fy),
		"periods":     periodDTOs,
	})
}

// CloseFiscalYear closes a year whose periods are all closed.
func (h *Handler) CloseFiscalYear(w http.ResponseWriter, r *http.Request) {
	id := ledger.FiscalYearID(chi.URLParam(r, "id"))

	fy, err := h.Closer.CloseFiscalYear(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to close fiscal year", err)
		return
	}
	writeJSON(w, http.StatusOK, toFiscalYearDTO(*fy))
}

// ListPeriods returns periods for ?fiscal_year_id.
func (h *Handler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	fyID := ledger.FiscalYearID(r.URL.Query().Get("fiscal_year_id"))
	if fyID == "" {
		writeError(w, http.StatusBadRequest, "fiscal_year_id query parameter required", nil)
		return
	}

	periods, err := h.Closer.ListPeriods(r.Context(), fyID)
	if err != nil {
		writeDomainError(w, "Failed to list periods", err)
		return
	}

	dtos := make([]PeriodDTO, len(periods))
	for i, p := range periods {
		dtos[i] = toPeriodDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ClosePeriod verifies period integrity, writes balance snapshots and
// locks the period against further postings.
func (h *Handler) ClosePeriod(w http.ResponseWriter, r *http.Request) {
	id := ledger.PeriodID(chi.URLParam(r, "id"))

	period, err := h.Closer.ClosePeriod(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to close period", err)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodDTO(*period))
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// GetGeneralLedger returns one account's activity with running balances.
// GET /api/reports/general-ledger?account_id=&from=&to=
func (h *Handler) GetGeneralLedger(w http.ResponseWriter, r *http.Request) {
	accountID := ledger.AccountID(r.URL.Query().Get("account_id"))
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "account_id query parameter required", nil)
		return
	}
	from, to, err := requireRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range (use from=YYYY-MM-DD&to=YYYY-MM-DD)", err)
		return
	}

	report, err := h.Reporter.GeneralLedger(r.Context(), accountID, from, to)
	if err != nil {
		writeDomainError(w, "Failed to build general ledger", err)
		return
	}

	dto := GeneralLedgerDTO{
		AccountID:   string(report.AccountID),
		AccountCode: report.AccountCode.String(),
		AccountName: report.AccountName,
		NormalSide:  string(report.NormalSide),
		From:        report.From.Format("2006-01-02"),
		To:          report.To.Format("2006-01-02"),
		Opening:     report.Opening.String(),
		Lines:       make([]LedgerLineDTO, len(report.Lines)),
		Closing:     report.Closing.String(),
	}
	for i, l := range report.Lines {
		dto.Lines[i] = LedgerLineDTO{
			EntryID:     string(l.EntryID),
			EntryNumber: l.EntryNumber,
			EntryDate:   l.EntryDate.Format("2006-01-02"),
			Description: l.Description,
			Debit:       l.Debit.String(),
			Credit:      l.Credit.String(),
			Running:     l.Running.String(),
		}
	}
	writeJSON(w, http.StatusOK, dto)
}

// GetTrialBalance returns the trial balance over a range. An imbalanced
// ledger yields 500: the report exists but the books are corrupt.
// GET /api/reports/trial-balance?from=&to=
func (h *Handler) GetTrialBalance(w http.ResponseWriter, r *http.Request) {
	from, to, err := requireRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range (use from=YYYY-MM-DD&to=YYYY-MM-DD)", err)
		return
	}

	report, err := h.Reporter.TrialBalance(r.Context(), from, to)
	if err != nil && report == nil {
		writeDomainError(w, "Failed to build trial balance", err)
		return
	}

	dto := TrialBalanceDTO{
		From:        report.From.Format("2006-01-02"),
		To:          report.To.Format("2006-01-02"),
		Rows:        make([]TrialBalanceRowDTO, len(report.Rows)),
		TotalDebit:  report.TotalDebit.String(),
		TotalCredit: report.TotalCredit.String(),
		IsBalanced:  report.IsBalanced,
	}
	for i, row := range report.Rows {
		dto.Rows[i] = TrialBalanceRowDTO{
			AccountID:    string(row.AccountID),
			AccountCode:  row.AccountCode.String(),
			AccountName:  row.AccountName,
			AccountType:  string(row.AccountType),
			PeriodDebit:  row.PeriodDebit.String(),
			PeriodCredit: row.PeriodCredit.String(),
			EndingDebit:  row.EndingDebit.String(),
			EndingCredit: row.EndingCredit.String(),
		}
	}

	if err != nil {
		// Imbalance: ship the diagnostic report inside a 500.
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":         "ledger imbalance",
			"details":       err.Error(),
			"trial_balance": dto,
		})
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// SEED HANDLER
// =============================================================================

// LoadSeed loads the demo chart of accounts and sample entries.
// POST /api/seed
func (h *Handler) LoadSeed(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Seeder.Load(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to load seed data", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// =============================================================================
// HELPERS
// =============================================================================

func decodeEntryRequest(r *http.Request) (ledger.EntryInput, error) {
	var req EntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return ledger.EntryInput{}, err
	}

	input := ledger.EntryInput{Description: req.Description}
	if req.Date != "" {
		date, err := parseDay(req.Date)
		if err != nil {
			return ledger.EntryInput{}, fmt.Errorf("invalid date %q: %w", req.Date, err)
		}
		input.Date = date
	}
	for _, l := range req.Lines {
		input.Lines = append(input.Lines, ledger.LineInput{
			AccountID:    ledger.AccountID(l.AccountID),
			Debit:        l.Debit,
			Credit:       l.Credit,
			CostCenterID: ledger.CostCenterID(l.CostCenterID),
			Description:  l.Description,
		})
	}
	return input, nil
}

func parseDay(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

// parseRange reads optional ?from/?to query parameters.
func parseRange(r *http.Request) (time.Time, time.Time, error) {
	var from, to time.Time
	if s := r.URL.Query().Get("from"); s != "" {
		t, err := parseDay(s)
		if err != nil {
			return from, to, err
		}
		from = t
	}
	if s := r.URL.Query().Get("to"); s != "" {
		t, err := parseDay(s)
		if err != nil {
			return from, to, err
		}
		to = t
	}
	return from, to, nil
}

// requireRange reads mandatory ?from/?to query parameters.
func requireRange(r *http.Request) (time.Time, time.Time, error) {
	from, to, err := parseRange(r)
	if err != nil {
		return from, to, err
	}
	if from.IsZero() || to.IsZero() {
		return from, to, fmt.Errorf("from and to are required")
	}
	return from, to, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps a domain error onto the HTTP status for its
// class. Integrity violations land on 500: the request was fine, the
// books are not.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case ledger.IsValidation(err):
		status = http.StatusBadRequest
	case ledger.IsNotFound(err):
		status = http.StatusNotFound
	case ledger.IsConflict(err):
		status = http.StatusConflict
	case ledger.IsIntegrity(err):
		status = http.StatusInternalServerError
	}
	writeError(w, status, message, err)
}
