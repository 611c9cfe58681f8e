/*
Package loyalty provides the core reward-point engine.

PURPOSE:
  This package contains the domain types and algorithms for converting
  customer purchase transactions into monthly reward-point totals. Two
  pieces cooperate: the point rule (a pure amount-to-points function) and
  the Ledger, which owns transaction lifecycle and the derived
  per-customer/month/year totals.

KEY CONCEPTS IN THIS FILE (types.go):
  - Customer: A registered account that owns transactions
  - Transaction: A purchase with an amount, description, and calendar date
  - RewardTotal: The stored point total for one (customer, month, year) bucket
  - CustomerID / TransactionID: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal for monetary amounts, never float
  2. Type Safety: Strong typing for IDs prevents mixing customer/transaction IDs
  3. Buckets: A transaction's date decides which monthly bucket it feeds

SEE ALSO:
  - points.go: The point rule
  - ledger.go: Transaction lifecycle and bucket maintenance
  - store.go: Persistence interfaces
*/
package loyalty

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type CustomerID string
type TransactionID string

// NewCustomerID generates a fresh customer identifier.
func NewCustomerID() CustomerID {
	return CustomerID(uuid.NewString())
}

// NewTransactionID generates a fresh transaction identifier.
func NewTransactionID() TransactionID {
	return TransactionID(uuid.NewString())
}

// =============================================================================
// CUSTOMER - Registered account
// =============================================================================

// Customer is a registered account. Email is unique across customers.
// PasswordHash is the bcrypt hash of the registration password; the
// plaintext is never stored.
type Customer struct {
	ID           CustomerID
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// =============================================================================
// TRANSACTION - A purchase owned by exactly one customer
// =============================================================================

// Transaction records a purchase. Amount is a non-negative decimal;
// Date is a calendar date (time component ignored) whose month/year
// decide which RewardTotal bucket the transaction contributes to.
// Unlike an append-only ledger entry, a transaction is mutated in place
// on edit and removed on delete; the reconciliation pass keeps the
// derived totals consistent across those mutations.
type Transaction struct {
	ID           TransactionID
	CustomerID   CustomerID
	Amount       decimal.Decimal
	SpentDetails string
	Date         time.Time
	CreatedAt    time.Time
}

// Bucket returns the (month, year) bucket this transaction feeds.
func (t Transaction) Bucket() (month, year int) {
	return int(t.Date.Month()), t.Date.Year()
}

// =============================================================================
// REWARD TOTAL - Derived monthly point bucket
// =============================================================================

// RewardTotal holds the stored point total for one (customer, month, year)
// bucket. Created lazily the first time a transaction lands in the bucket;
// never deleted, even at zero points. Lookups by bucket key should return
// at most one row; duplicates are a data anomaly that readers tolerate
// (sum or pick-first) rather than fail on.
type RewardTotal struct {
	ID         string
	CustomerID CustomerID
	Month      int
	Year       int
	Points     int
	CreatedAt  time.Time
}

// NewRewardTotal creates an empty bucket row for the given key.
func NewRewardTotal(customerID CustomerID, month, year int) RewardTotal {
	return RewardTotal{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		Month:      month,
		Year:       year,
		Points:     0,
		CreatedAt:  time.Now().UTC(),
	}
}

// =============================================================================
// TIME HELPERS
// =============================================================================

// MonthSpan returns the inclusive [first day, last day] range of the
// given calendar month, at UTC midnight.
func MonthSpan(month, year int) (start, end time.Time) {
	start = time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, -1)
	return start, end
}

// DateOnly truncates a time to its calendar date at UTC midnight.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
