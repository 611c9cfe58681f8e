package loyalty_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/loyalty-engine/loyalty"
	"github.com/warp/loyalty-engine/store/memory"
)

// =============================================================================
// RECONCILER TESTS
// =============================================================================

func TestReconciler_FailuresAreSwallowed(t *testing.T) {
	// GIVEN: A job for a customer that does not exist
	// WHEN: The reconciler processes it
	// THEN: The failure is logged, not surfaced - Drain returns normally

	store := memory.New()
	ledger := loyalty.NewLedger(store)
	rec := loyalty.NewReconciler(ledger, 4)
	ledger.Scheduler = rec
	rec.Start()
	t.Cleanup(rec.Stop)

	rec.Schedule("ghost-customer", 1, 2025)
	rec.Drain() // must not hang or panic
}

func TestReconciler_QueueOverflowStillProcesses(t *testing.T) {
	// GIVEN: A queue far smaller than the number of scheduled jobs
	// WHEN: Mutations flood the scheduler
	// THEN: Every bucket still converges (overflow jobs run out-of-band
	//       rather than being dropped)

	store := memory.New()
	ledger := loyalty.NewLedger(store)
	rec := loyalty.NewReconciler(ledger, 1)
	ledger.Scheduler = rec
	rec.Start()
	t.Cleanup(rec.Stop)

	ctx := context.Background()
	customerID := newTestCustomer(t, store)

	for i := 0; i < 20; i++ {
		_, err := ledger.AddTransaction(ctx, customerID, amt("120"), "x", day(2025, time.January, 1+i))
		require.NoError(t, err)
	}
	rec.Drain()

	rt, err := ledger.GetRewardPoints(ctx, customerID, 1, 2025)
	require.NoError(t, err)
	assert.Equal(t, 20*90, rt.Points)
}

func TestReconciler_StopFinishesQueuedJobs(t *testing.T) {
	// Jobs already queued when Stop is called are finished, not abandoned.

	store := memory.New()
	ledger := loyalty.NewLedger(store)
	rec := loyalty.NewReconciler(ledger, 32)
	ledger.Scheduler = rec

	ctx := context.Background()
	customerID := newTestCustomer(t, store)

	// Schedule before the worker starts so jobs sit in the queue.
	_, err := ledger.AddTransaction(ctx, customerID, amt("120"), "x", day(2025, time.January, 10))
	require.NoError(t, err)

	rec.Start()
	rec.Stop()

	rt, err := ledger.GetRewardPoints(ctx, customerID, 1, 2025)
	require.NoError(t, err)
	assert.Equal(t, 90, rt.Points)
}

func TestReconciler_StartIsIdempotent(t *testing.T) {
	store := memory.New()
	ledger := loyalty.NewLedger(store)
	rec := loyalty.NewReconciler(ledger, 4)

	rec.Start()
	rec.Start() // second Start is a no-op
	rec.Stop()
	rec.Stop() // second Stop is a no-op
}
