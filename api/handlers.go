/*
handlers.go - HTTP API handlers for the loyalty engine

PURPOSE:
  Exposes the reward ledger via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store:    Customer lookups (principal resolution, registration)
  - Ledger:   The reward ledger service
  - Identity: Credential checks and token issuance

REQUEST FLOW:
  1. Parse HTTP request
  2. Resolve the acting customer from the authenticated subject
  3. Call domain logic (ledger)
  4. Serialize response
  5. Map error kinds to HTTP statuses

ERROR HANDLING:
  Errors are returned as JSON with the status derived from the error
  kind: not_found 404, invalid_data 400, unauthorized 401, internal 500.
  Several missing-record conditions inside mutations surface as 500 -
  that classification lives in the ledger, not here.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - loyalty/errors.go: The error taxonomy
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/loyalty-engine/auth"
	"github.com/warp/loyalty-engine/loyalty"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    loyalty.Store
	Ledger   *loyalty.Ledger
	Identity *auth.Service
}

// NewHandler creates a new handler.
func NewHandler(store loyalty.Store, ledger *loyalty.Ledger, identity *auth.Service) *Handler {
	return &Handler{Store: store, Ledger: ledger, Identity: identity}
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

// Register creates a customer account.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if req.FirstName == "" {
		writeError(w, http.StatusBadRequest, "First name is required", nil)
		return
	}
	if req.LastName == "" {
		writeError(w, http.StatusBadRequest, "Last name is required", nil)
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "Email is required", nil)
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "Password is required", nil)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to register customer", err)
		return
	}

	customer := loyalty.Customer{
		ID:           loyalty.NewCustomerID(),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.Store.SaveCustomer(r.Context(), customer); err != nil {
		if loyalty.KindOf(err) == loyalty.KindInvalidData || isConstraint(err) {
			writeError(w, http.StatusBadRequest, "Email already in use", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to register customer", err)
		return
	}

	writeJSON(w, http.StatusCreated, CustomerDTO{
		ID:        string(customer.ID),
		FirstName: customer.FirstName,
		LastName:  customer.LastName,
		Email:     customer.Email,
		CreatedAt: customer.CreatedAt.Format(time.RFC3339),
	})
}

// Login authenticates a customer and returns a bearer token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	customer, err := h.Identity.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeLoyaltyError(w, err)
		return
	}

	token, err := h.Identity.IssueToken(customer.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Authentication error", err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{Token: token})
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// ListTransactions returns the acting customer's transactions.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	customer, ok := h.actingCustomer(w, r)
	if !ok {
		return
	}

	txs, err := h.Ledger.ListTransactions(r.Context(), customer.ID)
	if err != nil {
		writeLoyaltyError(w, err)
		return
	}

	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AddTransaction creates a transaction for the acting customer.
func (h *Handler) AddTransaction(w http.ResponseWriter, r *http.Request) {
	customer, ok := h.actingCustomer(w, r)
	if !ok {
		return
	}

	req, ok := decodeTransactionRequest(w, r)
	if !ok {
		return
	}

	tx, err := h.Ledger.AddTransaction(r.Context(), customer.ID, req.Amount, req.SpentDetails, req.date)
	if err != nil {
		writeLoyaltyError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTransactionDTO(*tx))
}

// EditTransaction overwrites a transaction's fields.
func (h *Handler) EditTransaction(w http.ResponseWriter, r *http.Request) {
	customer, ok := h.actingCustomer(w, r)
	if !ok {
		return
	}

	id := loyalty.TransactionID(chi.URLParam(r, "id"))
	req, ok := decodeTransactionRequest(w, r)
	if !ok {
		return
	}

	tx, err := h.Ledger.EditTransaction(r.Context(), customer.ID, id, req.Amount, req.SpentDetails, req.date)
	if err != nil {
		writeLoyaltyError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTransactionDTO(*tx))
}

// DeleteTransaction removes a transaction.
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	customer, ok := h.actingCustomer(w, r)
	if !ok {
		return
	}

	id := loyalty.TransactionID(chi.URLParam(r, "id"))
	if err := h.Ledger.DeleteTransaction(r.Context(), customer.ID, id); err != nil {
		writeLoyaltyError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// REWARD POINT HANDLERS
// =============================================================================

// GetRewardPoints returns one bucket's synthesized total.
func (h *Handler) GetRewardPoints(w http.ResponseWriter, r *http.Request) {
	customer, ok := h.actingCustomer(w, r)
	if !ok {
		return
	}

	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil || month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}

	rt, err := h.Ledger.GetRewardPoints(r.Context(), customer.ID, month, year)
	if err != nil {
		writeLoyaltyError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRewardPointsDTO(rt))
}

// GetAllRewardPoints returns every bucket for the acting customer.
func (h *Handler) GetAllRewardPoints(w http.ResponseWriter, r *http.Request) {
	customer, ok := h.actingCustomer(w, r)
	if !ok {
		return
	}

	totals, err := h.Ledger.GetAllRewardPoints(r.Context(), customer.ID)
	if err != nil {
		writeLoyaltyError(w, err)
		return
	}

	dtos := make([]RewardPointsDTO, len(totals))
	for i, rt := range totals {
		dtos[i] = toRewardPointsDTO(rt)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

// actingCustomer resolves the authenticated subject to a customer.
// A token whose subject no longer resolves (deleted account) is treated
// as unauthorized, not as a missing record.
func (h *Handler) actingCustomer(w http.ResponseWriter, r *http.Request) (*loyalty.Customer, bool) {
	subject, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing authentication", nil)
		return nil, false
	}

	customer, err := h.Store.GetCustomerByEmail(r.Context(), subject)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to resolve customer", err)
		return nil, false
	}
	if customer == nil {
		writeError(w, http.StatusUnauthorized, "Unknown principal", nil)
		return nil, false
	}
	return customer, true
}

type parsedTransactionRequest struct {
	TransactionRequest
	date time.Time
}

func decodeTransactionRequest(w http.ResponseWriter, r *http.Request) (parsedTransactionRequest, bool) {
	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return parsedTransactionRequest{}, false
	}

	if req.Amount.IsNegative() {
		writeError(w, http.StatusBadRequest, "Amount must not be negative", nil)
		return parsedTransactionRequest{}, false
	}

	date, err := time.Parse("2006-01-02", req.TransactionDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid transaction_date format (use YYYY-MM-DD)", err)
		return parsedTransactionRequest{}, false
	}

	return parsedTransactionRequest{TransactionRequest: req, date: date}, true
}

func statusForKind(kind loyalty.Kind) int {
	switch kind {
	case loyalty.KindNotFound:
		return http.StatusNotFound
	case loyalty.KindInvalidData:
		return http.StatusBadRequest
	case loyalty.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeLoyaltyError(w http.ResponseWriter, err error) {
	writeError(w, statusForKind(loyalty.KindOf(err)), loyalty.MessageOf(err), err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	body := map[string]string{"error": message}
	if err != nil && status >= http.StatusInternalServerError {
		body["detail"] = err.Error()
	}
	writeJSON(w, status, body)
}

func isConstraint(err error) bool {
	return errors.Is(err, loyalty.ErrConstraintViolation)
}
