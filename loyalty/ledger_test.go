package loyalty_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/loyalty-engine/loyalty"
	"github.com/warp/loyalty-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// newTestLedger wires a ledger over the in-memory store with a running
// reconciler. Tests call rec.Drain() to wait for background passes.
func newTestLedger(t *testing.T) (*loyalty.Ledger, *loyalty.Reconciler, *memory.Store) {
	store := memory.New()
	ledger := loyalty.NewLedger(store)
	rec := loyalty.NewReconciler(ledger, 16)
	ledger.Scheduler = rec
	rec.Start()
	t.Cleanup(rec.Stop)
	return ledger, rec, store
}

func newTestCustomer(t *testing.T, store *memory.Store) loyalty.CustomerID {
	t.Helper()
	c := loyalty.Customer{
		ID:           loyalty.NewCustomerID(),
		FirstName:    "John",
		LastName:     "Doe",
		Email:        "john.doe@example.com",
		PasswordHash: "x",
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, store.SaveCustomer(context.Background(), c))
	return c.ID
}

func amt(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// ADD / READ
// =============================================================================

func TestAddTransaction_ThenRead(t *testing.T) {
	// GIVEN: A new customer
	// WHEN: Adding a 120 transaction dated 2025-01-10
	// THEN: The January 2025 bucket reads 90 points once reconciliation settles

	ledger, rec, store := newTestLedger(t)
	ctx := context.Background()
	customerID := newTestCustomer(t, store)

	tx, err := ledger.AddTransaction(ctx, customerID, amt("120"), "groceries", day(2025, time.January, 10))
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, customerID, tx.CustomerID)

	rec.Drain()

	rt, err := ledger.GetRewardPoints(ctx, customerID, 1, 2025)
	require.NoError(t, err)
	assert.Equal(t, 90, rt.Points)
}

func TestAddTransaction_UnknownCustomer_IsInternal(t *testing.T) {
	// The missing-customer condition on the add path surfaces as an
	// internal failure, not not-found. Inherited classification.
	ledger, _, _ := newTestLedger(t)

	_, err := ledger.AddTransaction(context.Background(), "nope", amt("120"), "x", day(2025, time.January, 10))
	require.Error(t, err)
	assert.Equal(t, loyalty.KindInternal, loyalty.KindOf(err))
	assert.ErrorIs(t, err, loyalty.ErrCustomerNotFound)
}

func TestGetRewardPoints_EmptyBucket_IsZeroNotError(t *testing.T) {
	// GIVEN: A customer with no transactions in June 2025
	// THEN: The bucket reads zero points, not an error

	ledger, _, store := newTestLedger(t)
	customerID := newTestCustomer(t, store)

	rt, err := ledger.GetRewardPoints(context.Background(), customerID, 6, 2025)
	require.NoError(t, err)
	assert.Equal(t, 0, rt.Points)
}

func TestGetRewardPoints_UnknownCustomer_NotFound(t *testing.T) {
	ledger, _, _ := newTestLedger(t)

	_, err := ledger.GetRewardPoints(context.Background(), "nope", 1, 2025)
	require.Error(t, err)
	assert.Equal(t, loyalty.KindNotFound, loyalty.KindOf(err))
}

func TestGetRewardPoints_DuplicateBucketRows_Summed(t *testing.T) {
	// GIVEN: Two legacy rows for the same (customer, month, year)
	// THEN: The read sums them rather than failing

	ledger, _, store := newTestLedger(t)
	ctx := context.Background()
	customerID := newTestCustomer(t, store)

	first := loyalty.NewRewardTotal(customerID, 1, 2025)
	first.Points = 50
	second := loyalty.NewRewardTotal(customerID, 1, 2025)
	second.Points = 40
	require.NoError(t, store.SaveRewardTotal(ctx, first))
	require.NoError(t, store.SaveRewardTotal(ctx, second))

	rt, err := ledger.GetRewardPoints(ctx, customerID, 1, 2025)
	require.NoError(t, err)
	assert.Equal(t, 90, rt.Points)
}

// =============================================================================
// LIST ASYMMETRY
// =============================================================================

func TestListTransactions_Empty_NotFound(t *testing.T) {
	// Listing zero transactions is a not-found condition. Inherited quirk.
	ledger, _, store := newTestLedger(t)
	customerID := newTestCustomer(t, store)

	_, err := ledger.ListTransactions(context.Background(), customerID)
	require.Error(t, err)
	assert.Equal(t, loyalty.KindNotFound, loyalty.KindOf(err))
	assert.ErrorIs(t, err, loyalty.ErrNoTransactions)
}

func TestGetAllRewardPoints_Empty_IsSuccess(t *testing.T) {
	// The analogous reward-point listing returns an empty slice without error.
	ledger, _, store := newTestLedger(t)
	customerID := newTestCustomer(t, store)

	totals, err := ledger.GetAllRewardPoints(context.Background(), customerID)
	require.NoError(t, err)
	assert.Empty(t, totals)
	assert.NotNil(t, totals)
}

func TestListTransactions_OrderedByDate(t *testing.T) {
	ledger, _, store := newTestLedger(t)
	ctx := context.Background()
	customerID := newTestCustomer(t, store)

	_, err := ledger.AddTransaction(ctx, customerID, amt("60"), "later", day(2025, time.March, 20))
	require.NoError(t, err)
	_, err = ledger.AddTransaction(ctx, customerID, amt("70"), "earlier", day(2025, time.March, 5))
	require.NoError(t, err)

	txs, err := ledger.ListTransactions(ctx, customerID)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "earlier", txs[0].SpentDetails)
	assert.Equal(t, "later", txs[1].SpentDetails)
}

// =============================================================================
// EDIT - DOUBLE BOOKING AND CONVERGENCE
// =============================================================================

func TestEditTransaction_SynchronousDoubleBooking(t *testing.T) {
	// GIVEN: A 120 transaction in January (90 points after settle)
	// WHEN: Editing it to 60 with no reconciler attached
	// THEN: The bucket shows 90+10 = 100 - the old contribution is not
	//       reversed on the synchronous path

	store := memory.New()
	ledger := loyalty.NewLedger(store) // no scheduler: observe the sync path only
	ctx := context.Background()
	customerID := newTestCustomer(t, store)

	tx, err := ledger.AddTransaction(ctx, customerID, amt("120"), "tv", day(2025, time.January, 10))
	require.NoError(t, err)

	rt, err := ledger.GetRewardPoints(ctx, customerID, 1, 2025)
	require.NoError(t, err)
	require.Equal(t, 90, rt.Points)

	_, err = ledger.EditTransaction(ctx, customerID, tx.ID, amt("60"), "tv", day(2025, time.January, 10))
	require.NoError(t, err)

	rt, err = ledger.GetRewardPoints(ctx, customerID, 1, 2025)
	require.NoError(t, err)
	assert.Equal(t, 100, rt.Points, "sync path double-books: 90 old + 10 new")
}

func TestEditTransaction_ReconciliationConverges(t *testing.T) {
	// Same scenario, but with the reconciler running: after the
	// scheduled pass, the bucket equals the recomputed sum (10 points).

	ledger, rec, store := newTestLedger(t)
	ctx := context.Background()
	customerID := newTestCustomer(t, store)

	tx, err := ledger.AddTransaction(ctx, customerID, amt("120"), "tv", day(2025, time.January, 10))
	require.NoError(t, err)

	_, err = ledger.EditTransaction(ctx, customerID, tx.ID, amt("60"), "tv", day(2025, time.January, 10))
	require.NoError(t, err)

	rec.Drain()

	rt, err := ledger.GetRewardPoints(ctx, customerID, 1, 2025)
	require.NoError(t, err)
	assert.Equal(t, 10, rt.Points)
}

func TestEditTransaction_DateMove_NewBucketConverges(t *testing.T) {
	// GIVEN: A transaction in January
	// WHEN: Its date moves to February
	// THEN: The February bucket converges to the transaction's points;
	//       the January bucket is only repaired when something
	//       reconciles January - here, explicitly.

	ledger, rec, store := newTestLedger(t)
	ctx := context.Background()
	customerID := newTestCustomer(t, store)

	tx, err := ledger.AddTransaction(ctx, customerID, amt("120"), "tv", day(2025, time.January, 10))
	require.NoError(t, err)

	_, err = ledger.EditTransaction(ctx, customerID, tx.ID, amt("120"), "tv", day(2025, time.February, 3))
	require.NoError(t, err)

	rec.Drain()

	feb, err := ledger.GetRewardPoints(ctx, customerID, 2, 2025)
	require.NoError(t, err)
	assert.Equal(t, 90, feb.Points)

	// January still carries the stale contribution until reconciled.
	jan, err := ledger.GetRewardPoints(ctx, customerID, 1, 2025)
	require.NoError(t, err)
	assert.Equal(t, 90, jan.Points)

	require.NoError(t, ledger.Reconcile(ctx, customerID, 1, 2025))
	jan, err = ledger.GetRewardPoints(ctx, customerID, 1, 2025)
	require.NoError(t, err)
	assert.Equal(t, 0, jan.Points)
}

func TestEditTransaction_UnknownTransaction_IsInternal(t *testing.T) {
	ledger, _, store := newTestLedger(t)
	customerID := newTestCustomer(t, store)

	_, err := ledger.EditTransaction(context.Background(), customerID, "nope", amt("10"), "x", day(2025, time.January, 1))
	require.Error(t, err)
	assert.Equal(t, loyalty.KindInternal, loyalty.KindOf(err))
	assert.ErrorIs(t, err, loyalty.ErrTransactionNotFound)
}

// =============================================================================
// DELETE
// =============================================================================

func TestDeleteTransaction_AdjustsDown(t *testing.T) {
	// GIVEN: A settled 120 transaction (90 points)
	// WHEN: Deleting it
	// THEN: The bucket reads 0 after reconciliation - and the bucket row
	//       survives at zero rather than being deleted

	ledger, rec, store := newTestLedger(t)
	ctx := context.Background()
	customerID := newTestCustomer(t, store)

	tx, err := ledger.AddTransaction(ctx, customerID, amt("120"), "tv", day(2025, time.January, 10))
	require.NoError(t, err)
	rec.Drain()

	require.NoError(t, ledger.DeleteTransaction(ctx, customerID, tx.ID))
	rec.Drain()

	rt, err := ledger.GetRewardPoints(ctx, customerID, 1, 2025)
	require.NoError(t, err)
	assert.Equal(t, 0, rt.Points)

	totals, err := ledger.GetAllRewardPoints(ctx, customerID)
	require.NoError(t, err)
	require.Len(t, totals, 1, "zero-point bucket row is kept, not deleted")
	assert.Equal(t, 0, totals[0].Points)
}

func TestDeleteTransaction_UnknownTransaction_IsInternal(t *testing.T) {
	ledger, _, store := newTestLedger(t)
	customerID := newTestCustomer(t, store)

	err := ledger.DeleteTransaction(context.Background(), customerID, "nope")
	require.Error(t, err)
	assert.Equal(t, loyalty.KindInternal, loyalty.KindOf(err))
}

// =============================================================================
// RECONCILIATION PROPERTIES
// =============================================================================

func TestReconcile_Idempotent(t *testing.T) {
	// Two consecutive reconciliations with no intervening mutation
	// store the same value.

	ledger, rec, store := newTestLedger(t)
	ctx := context.Background()
	customerID := newTestCustomer(t, store)

	_, err := ledger.AddTransaction(ctx, customerID, amt("75"), "a", day(2025, time.May, 1))
	require.NoError(t, err)
	_, err = ledger.AddTransaction(ctx, customerID, amt("150"), "b", day(2025, time.May, 20))
	require.NoError(t, err)
	rec.Drain()

	require.NoError(t, ledger.Reconcile(ctx, customerID, 5, 2025))
	first, err := ledger.GetRewardPoints(ctx, customerID, 5, 2025)
	require.NoError(t, err)

	require.NoError(t, ledger.Reconcile(ctx, customerID, 5, 2025))
	second, err := ledger.GetRewardPoints(ctx, customerID, 5, 2025)
	require.NoError(t, err)

	assert.Equal(t, first.Points, second.Points)
	assert.Equal(t, 25+150, first.Points) // 75 -> 25, 150 -> 2*50+50
}

func TestMutationSequence_ConvergesToRecomputedSum(t *testing.T) {
	// Any add/edit/delete sequence within one month converges, after the
	// scheduled reconciliations complete, to the sum of the point rule
	// over the transactions that survived.

	ledger, rec, store := newTestLedger(t)
	ctx := context.Background()
	customerID := newTestCustomer(t, store)

	a, err := ledger.AddTransaction(ctx, customerID, amt("120"), "a", day(2025, time.July, 2))
	require.NoError(t, err)
	b, err := ledger.AddTransaction(ctx, customerID, amt("80"), "b", day(2025, time.July, 9))
	require.NoError(t, err)
	_, err = ledger.AddTransaction(ctx, customerID, amt("45"), "c", day(2025, time.July, 30))
	require.NoError(t, err)

	_, err = ledger.EditTransaction(ctx, customerID, a.ID, amt("200"), "a", day(2025, time.July, 2))
	require.NoError(t, err)
	require.NoError(t, ledger.DeleteTransaction(ctx, customerID, b.ID))

	rec.Drain()

	// Survivors: 200 (-> 250) and 45 (-> 0).
	rt, err := ledger.GetRewardPoints(ctx, customerID, 7, 2025)
	require.NoError(t, err)
	assert.Equal(t, 250, rt.Points)
}

func TestReconcile_MonthBoundariesInclusive(t *testing.T) {
	// Transactions on the first and last day of the month both count;
	// neighbors in adjacent months do not.

	ledger, _, store := newTestLedger(t)
	ctx := context.Background()
	customerID := newTestCustomer(t, store)

	for _, d := range []time.Time{
		day(2025, time.January, 31),
		day(2025, time.February, 1),
		day(2025, time.February, 28),
		day(2025, time.March, 1),
	} {
		_, err := ledger.AddTransaction(ctx, customerID, amt("75"), "x", d)
		require.NoError(t, err)
	}

	require.NoError(t, ledger.Reconcile(ctx, customerID, 2, 2025))
	rt, err := ledger.GetRewardPoints(ctx, customerID, 2, 2025)
	require.NoError(t, err)
	assert.Equal(t, 50, rt.Points, "exactly the two February transactions")
}
