/*
handlers.go - HTTP API handlers for the fee compliance engine

PURPOSE:
  Exposes the billing engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Clients:
    GET    /api/clients                   List all clients
    POST   /api/clients                   Create client
    GET    /api/clients/{id}              Get client details

  Contracts:
    GET    /api/clients/{id}/contracts    Full contract history
    POST   /api/clients/{id}/contracts    Append contract (supersedes prior)

  Payments:
    GET    /api/clients/{id}/payments     Payment history, newest first
    POST   /api/clients/{id}/payments     Record payment
    GET    /api/payments/{id}             Get one payment
    PUT    /api/payments/{id}             Correct a payment
    DELETE /api/payments/{id}             Remove a payment

  Reports:
    GET    /api/clients/{id}/dashboard    Current period, rates, Paid/Due
    GET    /api/clients/{id}/compliance   Full compliance ledger
    GET    /api/clients/{id}/periods      Selectable periods for the form
    GET    /api/clients/{id}/summary      Quarterly/annual rollup (?year=)

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input at the boundary (factory, billing.Validate)
  3. Call domain logic (billing package)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: billing.IsClientError (malformed contract, bad fee, bad period)
  - 404: store.IsNotFound
  - 409: store.ErrDuplicateID
  - 500: everything else

CACHING:
  Derived views (dashboard, compliance, periods, summary) are cached
  with a short TTL. Every write to a client invalidates that client's
  entries by pattern. The core engine never sees the cache.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/fee-engine/billing"
	"github.com/warp/fee-engine/cache"
	"github.com/warp/fee-engine/factory"
	"github.com/warp/fee-engine/store"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     store.Store
	Cache     *cache.Cache
	Guardrail billing.EntryGuardrail

	// now is swapped in tests to pin the current billing period.
	now func() time.Time

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(s store.Store) *Handler {
	return &Handler{
		Store:     s,
		Cache:     cache.New(),
		Guardrail: billing.DefaultEntryGuardrail(),
		now:       time.Now,
	}
}

// =============================================================================
// CLIENT HANDLERS
// =============================================================================

// ListClients returns all clients sorted by display name.
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	if cached, ok := h.Cache.Get(cache.ClientListKey); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	clients, err := h.Store.ListClients(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list clients", err)
		return
	}

	dtos := make([]ClientDTO, len(clients))
	for i, c := range clients {
		dtos[i] = toClientDTO(c)
	}

	h.Cache.Set(cache.ClientListKey, dtos, 0)
	writeJSON(w, http.StatusOK, dtos)
}

// GetClient returns a single client.
func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	id := billing.ClientID(chi.URLParam(r, "id"))

	c, err := h.Store.GetClient(r.Context(), id)
	if err != nil {
		writeStoreError(w, "Failed to get client", err)
		return
	}
	writeJSON(w, http.StatusOK, toClientDTO(c))
}

// CreateClient creates a new client.
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req CreateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	c, err := factory.ClientFromJSON(factory.ClientJSON{
		ID:            req.ID,
		DisplayName:   req.DisplayName,
		FullName:      req.FullName,
		IMASignedDate: req.IMASignedDate,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid client", err)
		return
	}

	if err := h.Store.SaveClient(r.Context(), c); err != nil {
		writeStoreError(w, "Failed to create client", err)
		return
	}

	h.Cache.Clear(cache.ClientListKey)
	writeJSON(w, http.StatusCreated, toClientDTO(c))
}

// =============================================================================
// CONTRACT HANDLERS
// =============================================================================

// ContractHistory returns the full contract history, oldest first.
func (h *Handler) ContractHistory(w http.ResponseWriter, r *http.Request) {
	clientID := billing.ClientID(chi.URLParam(r, "id"))

	history, err := h.Store.ContractHistory(r.Context(), clientID)
	if err != nil {
		writeStoreError(w, "Failed to get contract history", err)
		return
	}

	dtos := make([]ContractDTO, len(history))
	for i, c := range history {
		dtos[i] = toContractDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AppendContract appends a new contract for a client, deactivating the
// prior one. History is never deleted; "active as of date X" stays a
// query over the appended records.
func (h *Handler) AppendContract(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "id")

	var req CreateContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	req.ClientID = clientID
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	c, err := factory.ContractFromJSON(req.ContractJSON)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid contract", err)
		return
	}

	if err := h.Store.AppendContract(r.Context(), c); err != nil {
		writeStoreError(w, "Failed to append contract", err)
		return
	}

	h.Cache.InvalidatePattern(clientID)
	c.IsActive = true
	writeJSON(w, http.StatusCreated, toContractDTO(c))
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// ListPayments returns a client's payments, most recently received first.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	clientID := billing.ClientID(chi.URLParam(r, "id"))

	payments, err := h.Store.Payments(r.Context(), clientID)
	if err != nil {
		writeStoreError(w, "Failed to list payments", err)
		return
	}

	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetPayment returns a single payment.
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id := billing.PaymentID(chi.URLParam(r, "id"))

	p, err := h.Store.GetPayment(r.Context(), id)
	if err != nil {
		writeStoreError(w, "Failed to get payment", err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTO(p))
}

// CreatePayment records a remittance against a client's contract.
//
// The applied period defaults to the current (most recently completed)
// period of the contract's schedule, matching the payment form. The
// guard-rail verdict rides back on the response so the UI can prompt;
// the payment is recorded either way, since a large deviation may be
// exactly what the client remitted.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	clientID := billing.ClientID(chi.URLParam(r, "id"))
	ctx := r.Context()

	var req PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	contract, err := h.resolveContract(r, clientID, req.ContractID)
	if err != nil {
		writeStoreError(w, "Failed to resolve contract", err)
		return
	}

	p, err := h.paymentFromRequest(req, contract)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payment", err)
		return
	}
	p.ID = billing.PaymentID(uuid.NewString())
	p.ClientID = clientID

	if err := h.Store.RecordPayment(ctx, p); err != nil {
		writeStoreError(w, "Failed to record payment", err)
		return
	}

	h.Cache.InvalidatePattern(string(clientID))
	writeJSON(w, http.StatusCreated, PaymentResponse{
		Payment:         toPaymentDTO(p),
		GuardrailWarned: h.guardrailWarned(contract, p),
	})
}

// UpdatePayment corrects a recorded payment in place.
func (h *Handler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	id := billing.PaymentID(chi.URLParam(r, "id"))
	ctx := r.Context()

	existing, err := h.Store.GetPayment(ctx, id)
	if err != nil {
		writeStoreError(w, "Failed to get payment", err)
		return
	}

	var req PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if req.ContractID == "" {
		req.ContractID = string(existing.ContractID)
	}
	contract, err := h.resolveContract(r, existing.ClientID, req.ContractID)
	if err != nil {
		writeStoreError(w, "Failed to resolve contract", err)
		return
	}

	p, err := h.paymentFromRequest(req, contract)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payment", err)
		return
	}
	p.ID = existing.ID
	p.ClientID = existing.ClientID

	if err := h.Store.UpdatePayment(ctx, p); err != nil {
		writeStoreError(w, "Failed to update payment", err)
		return
	}

	h.Cache.InvalidatePattern(string(existing.ClientID))
	writeJSON(w, http.StatusOK, PaymentResponse{
		Payment:         toPaymentDTO(p),
		GuardrailWarned: h.guardrailWarned(contract, p),
	})
}

// DeletePayment removes a payment.
func (h *Handler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	id := billing.PaymentID(chi.URLParam(r, "id"))
	ctx := r.Context()

	existing, err := h.Store.GetPayment(ctx, id)
	if err != nil {
		writeStoreError(w, "Failed to get payment", err)
		return
	}

	if err := h.Store.DeletePayment(ctx, id); err != nil {
		writeStoreError(w, "Failed to delete payment", err)
		return
	}

	h.Cache.InvalidatePattern(string(existing.ClientID))
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// resolveContract returns the named contract from the client's history,
// or the currently active one when no ID is given.
func (h *Handler) resolveContract(r *http.Request, clientID billing.ClientID, contractID string) (billing.Contract, error) {
	if contractID == "" {
		return h.Store.ActiveContract(r.Context(), clientID, h.now())
	}

	history, err := h.Store.ContractHistory(r.Context(), clientID)
	if err != nil {
		return billing.Contract{}, err
	}
	for _, c := range history {
		if c.ID == billing.ContractID(contractID) {
			return c, nil
		}
	}
	return billing.Contract{}, store.ErrContractNotFound
}

// paymentFromRequest builds a billing.Payment from the request body,
// applying form defaults from the contract.
func (h *Handler) paymentFromRequest(req PaymentRequest, contract billing.Contract) (billing.Payment, error) {
	p := billing.Payment{
		ContractID:        contract.ID,
		AppliedPeriodType: contract.PaymentSchedule,
		AppliedPeriod:     req.AppliedPeriod,
		AppliedYear:       req.AppliedYear,
	}

	if req.AppliedPeriodType != "" {
		p.AppliedPeriodType = billing.Schedule(req.AppliedPeriodType)
	}
	if p.AppliedPeriod == 0 && p.AppliedYear == 0 {
		cur := billing.CurrentPeriod(h.now(), p.AppliedPeriodType)
		p.AppliedPeriod = cur.Period
		p.AppliedYear = cur.Year
	}

	received, err := time.Parse("2006-01-02", req.ReceivedDate)
	if err != nil {
		return billing.Payment{}, errors.New("invalid received_date format (use YYYY-MM-DD)")
	}
	p.ReceivedDate = received

	if p.ActualFee, err = decimal.NewFromString(req.ActualFee); err != nil {
		return billing.Payment{}, errors.New("invalid actual_fee: " + req.ActualFee)
	}
	if p.TotalAssets, err = optionalDecimal(req.TotalAssets); err != nil {
		return billing.Payment{}, errors.New("invalid total_assets: " + req.TotalAssets)
	}
	if p.ExpectedFee, err = optionalDecimal(req.ExpectedFee); err != nil {
		return billing.Payment{}, errors.New("invalid expected_fee: " + req.ExpectedFee)
	}

	return p, p.Validate()
}

// guardrailWarned runs the data-entry sanity check against the fee the
// contract terms imply for this payment's AUM.
func (h *Handler) guardrailWarned(contract billing.Contract, p billing.Payment) bool {
	expected, err := billing.ExpectedFee(contract, p.TotalAssets)
	if err != nil {
		return false
	}
	return h.Guardrail.Check(p.ActualFee, expected)
}

// =============================================================================
// DASHBOARD
// =============================================================================

// Dashboard returns the per-client summary card: current period,
// Paid/Due status, display rates, expected fee, and the last payment.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	clientID := billing.ClientID(chi.URLParam(r, "id"))
	ctx := r.Context()

	key := cache.DashboardKey(string(clientID))
	if cached, ok := h.Cache.Get(key); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	client, err := h.Store.GetClient(ctx, clientID)
	if err != nil {
		writeStoreError(w, "Failed to get client", err)
		return
	}

	dto := DashboardDTO{
		Client:        toClientDTO(client),
		PaymentStatus: string(billing.StatusDue),
	}

	contract, err := h.Store.ActiveContract(ctx, clientID, h.now())
	if err != nil {
		if !store.IsNotFound(err) {
			writeStoreError(w, "Failed to get contract", err)
			return
		}
		// No contract yet: the card shows the client as Due with no terms.
		writeJSON(w, http.StatusOK, dto)
		return
	}

	payments, err := h.Store.Payments(ctx, clientID)
	if err != nil {
		writeStoreError(w, "Failed to list payments", err)
		return
	}

	cdto := toContractDTO(contract)
	dto.Contract = &cdto
	dto.CurrentPeriod = billing.CurrentPeriod(h.now(), contract.PaymentSchedule).Display()

	last := billing.LatestApplied(payments, contract.PaymentSchedule)
	dto.PaymentStatus = string(billing.ResolveStatus(h.now(), contract.PaymentSchedule, last))
	if last != nil {
		pdto := toPaymentDTO(*last)
		dto.LastPayment = &pdto
	}

	if rates, err := billing.RatesFor(contract); err == nil {
		dto.MonthlyRate = rates.Monthly.String()
		dto.QuarterlyRate = rates.Quarterly.String()
		dto.AnnualRate = rates.Annual.String()
	}

	// Suggested AUM = assets on the most recently received payment that
	// carried them, feeding the expected fee for the open obligation.
	suggested := suggestedAUM(payments)
	if suggested != nil {
		dto.SuggestedAUM = suggested.String()
	}
	if expected, err := billing.ExpectedFee(contract, suggested); err == nil && expected != nil {
		dto.ExpectedFee = expected.String()
	}

	h.Cache.Set(key, dto, 0)
	writeJSON(w, http.StatusOK, dto)
}

// suggestedAUM returns the assets from the newest payment that recorded
// them. Payments arrive newest first from the store.
func suggestedAUM(payments []billing.Payment) *decimal.Decimal {
	for _, p := range payments {
		if p.TotalAssets != nil {
			v := *p.TotalAssets
			return &v
		}
	}
	return nil
}

// =============================================================================
// COMPLIANCE
// =============================================================================

// Compliance returns the full compliance ledger with aggregate stats
// and per-year groups.
func (h *Handler) Compliance(w http.ResponseWriter, r *http.Request) {
	clientID := billing.ClientID(chi.URLParam(r, "id"))
	ctx := r.Context()

	key := cache.ComplianceKey(string(clientID))
	if cached, ok := h.Cache.Get(key); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	contract, err := h.Store.ActiveContract(ctx, clientID, h.now())
	if err != nil {
		writeStoreError(w, "Failed to get contract", err)
		return
	}
	payments, err := h.Store.Payments(ctx, clientID)
	if err != nil {
		writeStoreError(w, "Failed to list payments", err)
		return
	}

	ledger, err := billing.BuildLedger(contract, payments, h.now())
	if err != nil {
		writeBillingError(w, "Failed to build compliance ledger", err)
		return
	}

	dto := ComplianceDTO{
		ClientID: string(clientID),
		Records:  toComplianceRecordDTOs(ledger.Records),
		Stats:    toComplianceStatsDTO(ledger.Stats),
	}
	for _, g := range ledger.ByYear() {
		dto.ByYear = append(dto.ByYear, YearGroupDTO{
			Year:    g.Year,
			Records: toComplianceRecordDTOs(g.Records),
			Stats:   toComplianceStatsDTO(g.Stats),
		})
	}

	h.Cache.Set(key, dto, 0)
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// AVAILABLE PERIODS - Payment form dropdown
// =============================================================================

// AvailablePeriods returns every billing period from the contract start
// through the current one, newest first, each flagged paid or unpaid.
func (h *Handler) AvailablePeriods(w http.ResponseWriter, r *http.Request) {
	clientID := billing.ClientID(chi.URLParam(r, "id"))
	ctx := r.Context()

	key := cache.PeriodsKey(string(clientID))
	if cached, ok := h.Cache.Get(key); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	contract, err := h.Store.ActiveContract(ctx, clientID, h.now())
	if err != nil {
		writeStoreError(w, "Failed to get contract", err)
		return
	}
	if contract.StartDate.IsZero() {
		writeBillingError(w, "Contract has no start date", billing.ErrMissingStartDate)
		return
	}
	payments, err := h.Store.Payments(ctx, clientID)
	if err != nil {
		writeStoreError(w, "Failed to list payments", err)
		return
	}

	start := billing.PeriodContaining(contract.StartDate, contract.PaymentSchedule)
	end := billing.CurrentPeriod(h.now(), contract.PaymentSchedule)
	periods, err := billing.EnumeratePeriods(start, end)
	if err != nil {
		writeBillingError(w, "Failed to enumerate periods", err)
		return
	}

	paid := make(map[billing.BillingPeriod]bool, len(payments))
	for _, p := range payments {
		if p.AppliedPeriodType == contract.PaymentSchedule {
			paid[p.AppliedTo()] = true
		}
	}

	// Newest first for the dropdown.
	dtos := make([]PeriodOptionDTO, 0, len(periods))
	for i := len(periods) - 1; i >= 0; i-- {
		p := periods[i]
		dtos = append(dtos, PeriodOptionDTO{
			Key:     p.Key(),
			Display: p.Display(),
			Period:  p.Period,
			Year:    p.Year,
			Paid:    paid[p],
		})
	}

	h.Cache.Set(key, dtos, 0)
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// SUMMARIES
// =============================================================================

// YearSummary returns the quarterly and annual payment rollup for one
// year (?year=2025, default: the current year).
func (h *Handler) YearSummary(w http.ResponseWriter, r *http.Request) {
	clientID := billing.ClientID(chi.URLParam(r, "id"))
	ctx := r.Context()

	year := h.now().Year()
	if q := r.URL.Query().Get("year"); q != "" {
		parsed, err := time.Parse("2006", q)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		year = parsed.Year()
	}

	key := cache.SummaryKey(string(clientID), year)
	if cached, ok := h.Cache.Get(key); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	if _, err := h.Store.GetClient(ctx, clientID); err != nil {
		writeStoreError(w, "Failed to get client", err)
		return
	}
	payments, err := h.Store.Payments(ctx, clientID)
	if err != nil {
		writeStoreError(w, "Failed to list payments", err)
		return
	}

	dto := buildYearSummary(clientID, year, payments)
	h.Cache.Set(key, dto, 0)
	writeJSON(w, http.StatusOK, dto)
}

func buildYearSummary(clientID billing.ClientID, year int, payments []billing.Payment) YearSummaryDTO {
	type acc struct {
		count    int
		paid     decimal.Decimal
		expected decimal.Decimal
	}
	var quarters [4]acc
	var total acc

	for _, p := range payments {
		if p.AppliedYear != year {
			continue
		}
		q := p.AppliedPeriod
		if p.AppliedPeriodType == billing.Monthly {
			q = (p.AppliedPeriod + 2) / 3
		}
		if q < 1 || q > 4 {
			continue
		}

		quarters[q-1].count++
		quarters[q-1].paid = quarters[q-1].paid.Add(p.ActualFee)
		total.count++
		total.paid = total.paid.Add(p.ActualFee)
		if p.ExpectedFee != nil {
			quarters[q-1].expected = quarters[q-1].expected.Add(*p.ExpectedFee)
			total.expected = total.expected.Add(*p.ExpectedFee)
		}
	}

	dto := YearSummaryDTO{
		ClientID:      string(clientID),
		Year:          year,
		PaymentCount:  total.count,
		TotalPaid:     total.paid.String(),
		TotalExpected: total.expected.String(),
	}
	for i, q := range quarters {
		avg := decimal.Zero
		if q.count > 0 {
			avg = q.paid.Div(decimal.NewFromInt(int64(q.count))).Round(2)
		}
		dto.Quarters = append(dto.Quarters, QuarterSummaryDTO{
			Quarter:       i + 1,
			PaymentCount:  q.count,
			TotalPaid:     q.paid.String(),
			TotalExpected: q.expected.String(),
			AveragePaid:   avg.String(),
		})
	}
	return dto
}

// =============================================================================
// HELPERS
// =============================================================================

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

// writeStoreError maps persistence errors to HTTP statuses.
func writeStoreError(w http.ResponseWriter, message string, err error) {
	switch {
	case store.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, store.ErrDuplicateID):
		writeError(w, http.StatusConflict, message, err)
	case billing.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

// writeBillingError maps engine errors to HTTP statuses.
func writeBillingError(w http.ResponseWriter, message string, err error) {
	if billing.IsClientError(err) {
		writeError(w, http.StatusBadRequest, message, err)
		return
	}
	writeError(w, http.StatusInternalServerError, message, err)
}

func optionalDecimal(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
