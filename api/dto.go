/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/loyalty-engine/loyalty"
)

// =============================================================================
// AUTH
// =============================================================================

// RegisterRequest is the request to register a customer.
type RegisterRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// LoginRequest is the request to log in.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued bearer token.
type LoginResponse struct {
	Token string `json:"token"`
}

// CustomerDTO represents a customer in API responses.
type CustomerDTO struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at,omitempty"`
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// TransactionRequest is the body for add and edit.
// Amount accepts a JSON number or string; decimal keeps cents exact.
type TransactionRequest struct {
	Amount          decimal.Decimal `json:"amount"`
	SpentDetails    string          `json:"spent_details"`
	TransactionDate string          `json:"transaction_date"` // YYYY-MM-DD
}

// TransactionDTO represents a transaction in API responses.
type TransactionDTO struct {
	ID           string          `json:"id"`
	Amount       decimal.Decimal `json:"amount"`
	SpentDetails string          `json:"spent_details"`
	Date         string          `json:"date"`
	CreatedAt    string          `json:"created_at,omitempty"`
}

func toTransactionDTO(tx loyalty.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:           string(tx.ID),
		Amount:       tx.Amount,
		SpentDetails: tx.SpentDetails,
		Date:         tx.Date.Format("2006-01-02"),
	}
	if !tx.CreatedAt.IsZero() {
		dto.CreatedAt = tx.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// REWARD POINTS
// =============================================================================

// RewardPointsDTO represents one monthly bucket in API responses.
type RewardPointsDTO struct {
	CustomerID string `json:"customer_id"`
	Month      int    `json:"month"`
	Year       int    `json:"year"`
	Points     int    `json:"points"`
}

func toRewardPointsDTO(rt loyalty.RewardTotal) RewardPointsDTO {
	return RewardPointsDTO{
		CustomerID: string(rt.CustomerID),
		Month:      rt.Month,
		Year:       rt.Year,
		Points:     rt.Points,
	}
}
