/*
errors.go - Centralized error types for the loyalty engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The transport layer maps error kinds to HTTP statuses; the core only
  ever deals in kinds and sentinels.

ERROR KINDS (closed enumeration):
  KindNotFound     - customer or transaction absent, or an empty
                     transaction list (a legacy quirk, see ledger.go)
  KindInvalidData  - constraint violation surfaced from the store
                     (duplicate email, malformed delete) or bad input
  KindUnauthorized - missing/invalid credentials or token
  KindInternal     - any other unexpected failure, including several
                     missing-record conditions the original system never
                     classified as not-found (kept for compatibility)

USAGE:
  Wrap sentinels with E() to attach a kind and message:

    return E(KindInternal, "an error occurred while adding the transaction",
        ErrCustomerNotFound)

  Callers branch on kinds or sentinels:

    if loyalty.KindOf(err) == loyalty.KindNotFound { ... }
    if errors.Is(err, loyalty.ErrCustomerNotFound) { ... }

SEE ALSO:
  - ledger.go: Produces these errors
  - api/handlers.go: Maps kinds to HTTP statuses
*/
package loyalty

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrCustomerNotFound is returned when a customer ID or email does not resolve.
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrTransactionNotFound is returned when a transaction ID does not resolve
	// within the given customer's scope.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrNoTransactions is returned when a customer has zero transactions.
	// Listing an empty set is treated as an error condition, not an empty
	// success. That asymmetry (reward-point listings return empty slices)
	// is inherited behavior.
	ErrNoTransactions = errors.New("no transactions found for this customer")

	// ErrConstraintViolation is returned by stores when a write violates a
	// uniqueness or integrity constraint (e.g., duplicate customer email).
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrInvalidCredentials is returned when authentication fails.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// =============================================================================
// ERROR KINDS - Closed taxonomy surfaced to the transport layer
// =============================================================================

type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindInvalidData  Kind = "invalid_data"
	KindUnauthorized Kind = "unauthorized"
	KindInternal     Kind = "internal"
)

// Error carries a kind, a user-facing message, and the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds a kinded error wrapping cause (which may be nil).
func E(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf extracts the kind from an error chain. Unclassified errors are
// internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the user-facing message from an error chain, or the
// bare error text for unclassified errors.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsInvalidData reports whether the error indicates rejected input or a
// store constraint violation.
func IsInvalidData(err error) bool {
	return KindOf(err) == KindInvalidData
}

// IsUnauthorized reports whether the error indicates failed authentication.
func IsUnauthorized(err error) bool {
	return KindOf(err) == KindUnauthorized
}
