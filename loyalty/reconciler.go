/*
reconciler.go - Background reconciliation worker

PURPOSE:
  Runs Ledger.Reconcile as fire-and-forget background work. Every
  mutation schedules one job for the bucket it touched; the job
  recomputes that bucket from full current state, so jobs may be
  delayed, reordered, or repeated without affecting correctness -
  last-write-wins on the overwrite is safe because each run recomputes
  rather than applying a delta.

DESIGN:
  - Single worker goroutine draining a buffered job queue
  - Schedule never blocks the request path: when the queue is full the
    job runs on its own goroutine instead of being dropped (dropping
    would leave a bucket unconverged)
  - Jobs are not cancellable and have no timeout; failures are logged
    and swallowed - the request that triggered the job has already
    returned, there is no one left to tell
  - Drain waits for every scheduled job to finish (tests, shutdown)

USAGE:
  ledger := loyalty.NewLedger(store)
  rec := loyalty.NewReconciler(ledger, 64)
  ledger.Scheduler = rec
  rec.Start()
  // ... later
  rec.Stop()

SEE ALSO:
  - ledger.go: Reconcile itself, and the mutations that schedule it
*/
package loyalty

import (
	"context"
	"log"
	"sync"
)

type reconcileJob struct {
	CustomerID CustomerID
	Month      int
	Year       int
}

// Reconciler executes scheduled reconciliations in the background.
type Reconciler struct {
	Ledger *Ledger

	jobs    chan reconcileJob
	stop    chan struct{}
	wg      sync.WaitGroup // worker goroutine
	pending sync.WaitGroup // scheduled-but-unfinished jobs

	mu      sync.Mutex
	started bool
}

// NewReconciler creates a reconciler with the given queue capacity.
func NewReconciler(ledger *Ledger, queueSize int) *Reconciler {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Reconciler{
		Ledger: ledger,
		jobs:   make(chan reconcileJob, queueSize),
		stop:   make(chan struct{}),
	}
}

// Start launches the worker.
func (r *Reconciler) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return
	}
	r.started = true

	r.wg.Add(1)
	go r.run()

	log.Printf("[Reconciler] Started with queue capacity %d", cap(r.jobs))
}

// Stop finishes queued jobs and stops the worker.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return
	}
	r.started = false

	close(r.stop)
	r.wg.Wait()
	r.stop = make(chan struct{})
	log.Println("[Reconciler] Stopped")
}

// Schedule queues a reconciliation for one bucket. Never blocks: if the
// queue is full the job runs on its own goroutine.
func (r *Reconciler) Schedule(customerID CustomerID, month, year int) {
	j := reconcileJob{CustomerID: customerID, Month: month, Year: year}
	r.pending.Add(1)

	select {
	case r.jobs <- j:
	default:
		go r.process(j)
	}
}

// Drain blocks until every job scheduled so far has finished.
func (r *Reconciler) Drain() {
	r.pending.Wait()
}

func (r *Reconciler) run() {
	defer r.wg.Done()

	for {
		select {
		case j := <-r.jobs:
			r.process(j)
		case <-r.stop:
			// Finish whatever is already queued before exiting.
			for {
				select {
				case j := <-r.jobs:
					r.process(j)
				default:
					return
				}
			}
		}
	}
}

func (r *Reconciler) process(j reconcileJob) {
	defer r.pending.Done()

	if err := r.Ledger.Reconcile(context.Background(), j.CustomerID, j.Month, j.Year); err != nil {
		// Best-effort: the triggering request already returned.
		log.Printf("[Reconciler] Error reconciling %s %d/%d: %v", j.CustomerID, j.Month, j.Year, err)
	}
}
