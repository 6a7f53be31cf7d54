package cell

import "fmt"

// txnCtx accumulates the effects of writes made during a transaction: the
// dirty-sink priority set drained by the scheduler at settlement, and the
// dirty-source list of expressions pending a reclamation review.
type txnCtx struct {
	name string

	// queue holds expressions invalidated by writes, ordered for the
	// propagation pass.
	queue *rankQueue

	// sources are expressions recorded for a reclamation review at
	// settlement, in discovery order, deduplicated by ID.
	sources []sink
	seen    map[uint64]bool
}

func newTxnCtx(name string) *txnCtx {
	return &txnCtx{
		name:  name,
		queue: newRankQueue(),
		seen:  make(map[uint64]bool),
	}
}

// enqueueSinks marks every current dependent of n dirty.
func (t *txnCtx) enqueueSinks(n *node) {
	for _, s := range n.sinks {
		t.queue.add(s)
	}
}

// recordSource queues s for the settlement reclamation review.
func (t *txnCtx) recordSource(s sink) {
	if t.seen[s.ID()] {
		return
	}
	t.seen[s.ID()] = true
	t.sources = append(t.sources, s)
}

// Tx runs fn as a transaction: any number of writes inside it coalesce
// into exactly one propagation pass followed by one reclamation pass when
// the outermost Tx returns. Nested Tx calls reuse the enclosing
// transaction; only the outermost settles.
//
// Every mutation entry point (Cell.Set, Expr.Reset, Expr.Swap) wraps
// itself in Tx, so a bare write settles immediately and a write inside a
// transaction is coalesced.
//
// A panic out of fn propagates unhandled: the transaction does not settle
// and there is no rollback — nodes already updated keep their new values.
//
// Example:
//
//	Tx(func() {
//	    firstName.Set("John")
//	    lastName.Set("Doe")
//	    age.Set(30)
//	})
//	// Dependents recompute once with all three changes
func Tx(fn func()) {
	TxNamed("", fn)
}

// TxNamed runs fn as a named transaction for debugging and tracing.
// The transaction name is logged when DebugMode is set and is forwarded to
// the installed Instrumentation.
//
// Example:
//
//	TxNamed("load-profile", func() {
//	    user.Set(newUser)
//	    profile.Set(newProfile)
//	})
//	// Debug output: [TX] load-profile start/end
func TxNamed(name string, fn func()) {
	tc := getTrackingContext()
	if tc.txn != nil {
		// Nested call: reuse the outermost context.
		fn()
		return
	}

	if DebugMode && name != "" {
		fmt.Printf("[TX] %s start\n", name)
		defer fmt.Printf("[TX] %s end\n", name)
	}

	t := newTxnCtx(name)
	tc.txn = t
	defer func() { tc.txn = nil }()

	fn()
	settle(t)
}

// TxResult runs fn as a transaction and returns its result.
func TxResult[R any](fn func() R) R {
	var r R
	Tx(func() {
		r = fn()
	})
	return r
}

// settle performs the outermost transaction's settlement: run the
// scheduler over the accumulated dirty sinks, merge the visited list into
// the dirty sources, then run the collector over the dirty sources in
// reverse discovery order (downstream dead nodes free up their upstream
// dependencies before those are reconsidered).
func settle(t *txnCtx) {
	var done TxDone
	if instrumentation != nil {
		done = instrumentation.TxStart(t.name)
	}

	reclaimsBefore := statsReclaims.Load()
	visited := propagate(t.queue)
	for _, s := range visited {
		t.recordSource(s)
	}
	for i := len(t.sources) - 1; i >= 0; i-- {
		t.sources[i].maybeReclaim()
	}
	statsTxns.Add(1)

	if done != nil {
		done(len(visited), int(statsReclaims.Load()-reclaimsBefore))
	}
}
