/*
ledger.go - The Reward Ledger Service

PURPOSE:
  Owns the lifecycle of customer transactions and the derived
  per-customer monthly point totals. Every mutation (add/edit/delete)
  applies a fast incremental update to the affected bucket
  synchronously, then schedules a background reconciliation that
  recomputes the bucket from scratch and overwrites it.

CONSISTENCY MODEL:
  The incremental path is allowed to drift. In particular, editing a
  transaction adds the new amount's points to the new bucket WITHOUT
  reversing the old contribution - inherited behavior, kept as-is.
  Correctness is eventual: Reconcile recomputes a bucket as
  sum(CalculatePoints(amount)) over the transactions currently in it and
  overwrites the stored value, so after the scheduled reconciliations
  settle, every bucket equals its recomputed sum. Reconcile is
  idempotent, so re-running or reordering reconciliations converges to
  the same value.

ERROR CLASSIFICATION:
  Mutation paths classify missing customers/transactions as internal
  failures rather than not-found - the original system collapsed them
  under a catch-all handler and clients depend on the statuses. Read
  paths use not-found. See errors.go.

SEE ALSO:
  - points.go: The point rule
  - reconciler.go: Background execution of Reconcile
  - store.go: Persistence interfaces
*/
package loyalty

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// ReconcileScheduler accepts fire-and-forget reconciliation work.
// Implemented by Reconciler; a nil scheduler disables the background pass.
type ReconcileScheduler interface {
	Schedule(customerID CustomerID, month, year int)
}

// =============================================================================
// LEDGER
// =============================================================================

// Ledger is the reward ledger service.
//
// mu serializes bucket read-modify-write sequences (the incremental
// updates and Reconcile's overwrite) so two mutations for the same
// customer/month cannot lose updates to each other.
type Ledger struct {
	store Store

	// Scheduler receives one job per completed mutation. Set after
	// construction (the Reconciler needs the Ledger to run jobs).
	Scheduler ReconcileScheduler

	mu sync.Mutex
}

// NewLedger creates a ledger over the given store.
func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

// =============================================================================
// READ OPERATIONS
// =============================================================================

// ListTransactions returns all of a customer's transactions.
// A customer with zero transactions is a not-found condition, not an
// empty success. Reward-point listings behave the opposite way; the
// asymmetry is inherited and kept.
func (l *Ledger) ListTransactions(ctx context.Context, customerID CustomerID) ([]Transaction, error) {
	txs, err := l.store.ListTransactions(ctx, customerID)
	if err != nil {
		return nil, E(KindInternal, "an error occurred while fetching transactions", err)
	}
	if len(txs) == 0 {
		return nil, E(KindNotFound, "no transactions found for this customer", ErrNoTransactions)
	}
	return txs, nil
}

// GetRewardPoints returns a synthesized total for one bucket. All rows
// matching the key are summed - at most one should exist, but duplicate
// rows from legacy data are tolerated. No matching row is a valid
// zero-point result, provided the customer resolves.
func (l *Ledger) GetRewardPoints(ctx context.Context, customerID CustomerID, month, year int) (RewardTotal, error) {
	customer, err := l.store.GetCustomer(ctx, customerID)
	if err != nil {
		return RewardTotal{}, E(KindInternal, "an error occurred while fetching reward points", err)
	}
	if customer == nil {
		return RewardTotal{}, E(KindNotFound, "customer not found", ErrCustomerNotFound)
	}

	totals, err := l.store.FindRewardTotals(ctx, customerID, month, year)
	if err != nil {
		if kindOfStoreErr(err) == KindInvalidData {
			return RewardTotal{}, E(KindInvalidData, "invalid reward point data", err)
		}
		return RewardTotal{}, E(KindInternal, "an error occurred while fetching reward points", err)
	}

	sum := 0
	for _, rt := range totals {
		sum += rt.Points
	}

	return RewardTotal{
		CustomerID: customerID,
		Month:      month,
		Year:       year,
		Points:     sum,
	}, nil
}

// GetAllRewardPoints returns every bucket row for a customer. An empty
// result is a valid success.
func (l *Ledger) GetAllRewardPoints(ctx context.Context, customerID CustomerID) ([]RewardTotal, error) {
	customer, err := l.store.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, E(KindInternal, "an error occurred while fetching reward points", err)
	}
	if customer == nil {
		return nil, E(KindNotFound, "customer not found", ErrCustomerNotFound)
	}

	totals, err := l.store.ListRewardTotals(ctx, customerID)
	if err != nil {
		return nil, E(KindInternal, "an error occurred while fetching reward points", err)
	}
	if totals == nil {
		totals = []RewardTotal{}
	}
	return totals, nil
}

// =============================================================================
// MUTATIONS
// =============================================================================

// AddTransaction creates a transaction, applies the incremental point
// update to its bucket, and schedules reconciliation.
func (l *Ledger) AddTransaction(ctx context.Context, customerID CustomerID, amount decimal.Decimal, spentDetails string, date time.Time) (*Transaction, error) {
	customer, err := l.store.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, E(KindInternal, "an error occurred while adding the transaction", err)
	}
	if customer == nil {
		// Classified as internal, not not-found: the original collapsed
		// this under its catch-all handler and clients see a 500 here.
		return nil, E(KindInternal, "an error occurred while adding the transaction", ErrCustomerNotFound)
	}

	tx := Transaction{
		ID:           NewTransactionID(),
		CustomerID:   customerID,
		Amount:       amount,
		SpentDetails: spentDetails,
		Date:         DateOnly(date),
		CreatedAt:    time.Now().UTC(),
	}
	if err := l.store.SaveTransaction(ctx, tx); err != nil {
		if kindOfStoreErr(err) == KindInvalidData {
			return nil, E(KindInvalidData, "invalid data, transaction could not be added", err)
		}
		return nil, E(KindInternal, "an error occurred while adding the transaction", err)
	}

	month, year := tx.Bucket()
	if err := l.applyBucketDelta(ctx, customerID, month, year, CalculatePoints(amount)); err != nil {
		return nil, E(KindInternal, "an error occurred while adding the transaction", err)
	}

	l.schedule(customerID, month, year)
	return &tx, nil
}

// EditTransaction overwrites a transaction's fields and applies the
// incremental update for the NEW amount to the NEW date's bucket.
//
// The old contribution is not subtracted and, if the date moved, not
// removed from the old bucket. That leaves the synchronous totals
// double-booked until the scheduled reconciliation recomputes the new
// bucket - and leaves the OLD bucket stale until something else
// reconciles it. Inherited behavior, reproduced deliberately; do not
// add the reversal here without coordinating an API version.
func (l *Ledger) EditTransaction(ctx context.Context, customerID CustomerID, id TransactionID, amount decimal.Decimal, spentDetails string, date time.Time) (*Transaction, error) {
	existing, err := l.store.GetTransaction(ctx, customerID, id)
	if err != nil {
		return nil, E(KindInternal, "an error occurred while editing the transaction", err)
	}
	if existing == nil {
		// Same internal classification as AddTransaction's missing customer.
		return nil, E(KindInternal, "an error occurred while editing the transaction", ErrTransactionNotFound)
	}

	existing.Amount = amount
	existing.SpentDetails = spentDetails
	existing.Date = DateOnly(date)
	if err := l.store.SaveTransaction(ctx, *existing); err != nil {
		if kindOfStoreErr(err) == KindInvalidData {
			return nil, E(KindInvalidData, "invalid data, transaction could not be updated", err)
		}
		return nil, E(KindInternal, "an error occurred while editing the transaction", err)
	}

	month, year := existing.Bucket()
	if err := l.applyBucketDelta(ctx, customerID, month, year, CalculatePoints(amount)); err != nil {
		return nil, E(KindInternal, "an error occurred while editing the transaction", err)
	}

	l.schedule(customerID, month, year)
	return existing, nil
}

// DeleteTransaction subtracts the transaction's points from its bucket
// (no-op when the bucket row is absent), removes the transaction, and
// schedules reconciliation for the bucket it used to feed.
func (l *Ledger) DeleteTransaction(ctx context.Context, customerID CustomerID, id TransactionID) error {
	customer, err := l.store.GetCustomer(ctx, customerID)
	if err != nil {
		return E(KindInternal, "an error occurred while deleting the transaction", err)
	}
	if customer == nil {
		return E(KindInternal, "an error occurred while deleting the transaction", ErrCustomerNotFound)
	}

	tx, err := l.store.GetTransaction(ctx, customerID, id)
	if err != nil {
		return E(KindInternal, "an error occurred while deleting the transaction", err)
	}
	if tx == nil {
		return E(KindInternal, "an error occurred while deleting the transaction", ErrTransactionNotFound)
	}

	month, year := tx.Bucket()
	if err := l.subtractIfBucketExists(ctx, customerID, month, year, CalculatePoints(tx.Amount)); err != nil {
		return E(KindInternal, "an error occurred while deleting the transaction", err)
	}

	if err := l.store.DeleteTransaction(ctx, customerID, id); err != nil {
		if kindOfStoreErr(err) == KindInvalidData {
			return E(KindInvalidData, "invalid request, transaction could not be deleted", err)
		}
		return E(KindInternal, "an error occurred while deleting the transaction", err)
	}

	l.schedule(customerID, month, year)
	return nil
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// Reconcile recomputes one bucket from scratch: it sums the point rule
// over every transaction of the customer dated within the month and
// OVERWRITES the stored total with the result, creating the row if
// absent. Idempotent and self-correcting - running it any number of
// times converges to the same value, which is what repairs the edit
// path's double booking. Runs in the background; its errors are logged
// by the Reconciler, never surfaced to the mutation that triggered it.
func (l *Ledger) Reconcile(ctx context.Context, customerID CustomerID, month, year int) error {
	customer, err := l.store.GetCustomer(ctx, customerID)
	if err != nil {
		return fmt.Errorf("reconcile %s %d/%d: %w", customerID, month, year, err)
	}
	if customer == nil {
		return fmt.Errorf("reconcile %s %d/%d: %w", customerID, month, year, ErrCustomerNotFound)
	}

	start, end := MonthSpan(month, year)
	txs, err := l.store.ListTransactionsInRange(ctx, customerID, start, end)
	if err != nil {
		return fmt.Errorf("reconcile %s %d/%d: %w", customerID, month, year, err)
	}

	total := 0
	for _, tx := range txs {
		total += CalculatePoints(tx.Amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rt, err := l.bucketRowLocked(ctx, customerID, month, year)
	if err != nil {
		return fmt.Errorf("reconcile %s %d/%d: %w", customerID, month, year, err)
	}
	rt.Points = total
	if err := l.store.SaveRewardTotal(ctx, rt); err != nil {
		return fmt.Errorf("reconcile %s %d/%d: %w", customerID, month, year, err)
	}
	return nil
}

// =============================================================================
// INTERNAL
// =============================================================================

// applyBucketDelta is the incremental fast path: fetch or lazily create
// the bucket row and add delta to its stored points.
func (l *Ledger) applyBucketDelta(ctx context.Context, customerID CustomerID, month, year, delta int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rt, err := l.bucketRowLocked(ctx, customerID, month, year)
	if err != nil {
		return err
	}
	rt.Points += delta
	return l.store.SaveRewardTotal(ctx, rt)
}

// subtractIfBucketExists decrements an existing bucket row; absent rows
// are left absent (delete does not lazily create buckets).
func (l *Ledger) subtractIfBucketExists(ctx context.Context, customerID CustomerID, month, year, points int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	totals, err := l.store.FindRewardTotals(ctx, customerID, month, year)
	if err != nil {
		return err
	}
	if len(totals) == 0 {
		return nil
	}
	rt := totals[0]
	rt.Points -= points
	return l.store.SaveRewardTotal(ctx, rt)
}

// bucketRowLocked returns the bucket row for a key, picking the first on
// duplicates and creating a zero-point row when none exists. Caller
// holds l.mu.
func (l *Ledger) bucketRowLocked(ctx context.Context, customerID CustomerID, month, year int) (RewardTotal, error) {
	totals, err := l.store.FindRewardTotals(ctx, customerID, month, year)
	if err != nil {
		return RewardTotal{}, err
	}
	if len(totals) == 0 {
		return NewRewardTotal(customerID, month, year), nil
	}
	return totals[0], nil
}

func (l *Ledger) schedule(customerID CustomerID, month, year int) {
	if l.Scheduler != nil {
		l.Scheduler.Schedule(customerID, month, year)
	}
}

// kindOfStoreErr classifies raw store errors: constraint violations are
// invalid data, everything else is internal.
func kindOfStoreErr(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, ErrConstraintViolation) {
		return KindInvalidData
	}
	return KindInternal
}
