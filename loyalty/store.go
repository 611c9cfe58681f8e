/*
store.go - Persistence interfaces consumed by the core

PURPOSE:
  Defines the interface between the domain logic and the database.
  Different implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  CustomerStore:    Customer records (lookup by ID and by email)
  TransactionStore: Transaction CRUD and date-range queries
  RewardTotalStore: Monthly point buckets
  Store:            All three (what the Ledger needs)

CONVENTIONS:
  - Get* returns (nil, nil) when the record does not exist; a non-nil
    error means the lookup itself failed.
  - Find* / List* return empty slices, never errors, for "no rows".
  - Save* upserts by ID. Writes that violate a uniqueness constraint
    return an error wrapping ErrConstraintViolation.
  - FindRewardTotals may return more than one row for a bucket key.
    The key should be unique, but readers are defensive about legacy
    duplicates (see ledger.go).

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite
  - store/memory: In-memory for testing

SEE ALSO:
  - ledger.go: Higher-level service using these interfaces
*/
package loyalty

import (
	"context"
	"time"
)

// =============================================================================
// CUSTOMER STORE
// =============================================================================

type CustomerStore interface {
	// GetCustomer returns the customer or (nil, nil) if absent.
	GetCustomer(ctx context.Context, id CustomerID) (*Customer, error)

	// GetCustomerByEmail returns the customer or (nil, nil) if absent.
	GetCustomerByEmail(ctx context.Context, email string) (*Customer, error)

	// SaveCustomer upserts a customer. A duplicate email returns an error
	// wrapping ErrConstraintViolation.
	SaveCustomer(ctx context.Context, c Customer) error
}

// =============================================================================
// TRANSACTION STORE
// =============================================================================

type TransactionStore interface {
	// ListTransactions returns all of a customer's transactions,
	// ordered by date then insertion.
	ListTransactions(ctx context.Context, customerID CustomerID) ([]Transaction, error)

	// GetTransaction resolves a transaction scoped to a customer,
	// or (nil, nil) if absent.
	GetTransaction(ctx context.Context, customerID CustomerID, id TransactionID) (*Transaction, error)

	// ListTransactionsInRange returns the customer's transactions with
	// date in [from, to], inclusive.
	ListTransactionsInRange(ctx context.Context, customerID CustomerID, from, to time.Time) ([]Transaction, error)

	// SaveTransaction upserts a transaction (insert on add, overwrite on edit).
	SaveTransaction(ctx context.Context, tx Transaction) error

	// DeleteTransaction removes a transaction. Deleting an absent
	// transaction is a no-op.
	DeleteTransaction(ctx context.Context, customerID CustomerID, id TransactionID) error
}

// =============================================================================
// REWARD TOTAL STORE
// =============================================================================

type RewardTotalStore interface {
	// FindRewardTotals returns the bucket rows for an exact
	// (customer, month, year) key. Zero or more rows; duplicates are
	// tolerated and left to the reader.
	FindRewardTotals(ctx context.Context, customerID CustomerID, month, year int) ([]RewardTotal, error)

	// ListRewardTotals returns all bucket rows for a customer in
	// store-defined (insertion) order.
	ListRewardTotals(ctx context.Context, customerID CustomerID) ([]RewardTotal, error)

	// SaveRewardTotal upserts a bucket row by ID.
	SaveRewardTotal(ctx context.Context, rt RewardTotal) error
}

// =============================================================================
// COMBINED STORE
// =============================================================================

// Store is everything the Ledger needs from persistence.
type Store interface {
	CustomerStore
	TransactionStore
	RewardTotalStore
}
