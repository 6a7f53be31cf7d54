package cell

import (
	"runtime"
	"sync"
)

// trackingContext holds the ambient reactive state for a goroutine: which
// expression is currently computing, the rank accumulator for that
// compute, the active transaction, and the DevMode cycle-guard stack.
// Each goroutine has its own context; a graph must still be confined to a
// single goroutine, but independent graphs on different goroutines do not
// interfere.
type trackingContext struct {
	// consumer is the expression currently computing.
	// When a source is read, it attaches the mutual edge to this consumer.
	// nil means no tracking (reads have no graph effect).
	consumer consumer

	// maxRank accumulates the highest source rank read during the current
	// compute. Valid only while consumer is non-nil.
	maxRank int

	// txn is the active transaction context, nil outside transactions.
	// Nested Tx calls observe and reuse it.
	txn *txnCtx

	// computeStack is the stack of expression IDs currently mid-compute,
	// used for cycle detection. Maintained only when DevMode is set.
	computeStack []uint64
}

// trackingContexts stores per-goroutine tracking contexts.
// Using sync.Map for concurrent access from multiple goroutines.
var trackingContexts sync.Map

// getGoroutineID returns a unique identifier for the current goroutine.
// This uses the runtime stack to extract the goroutine ID.
// Note: This is an implementation detail and should not be relied upon externally.
func getGoroutineID() uint64 {
	// Use a buffer to read the stack
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	// The stack starts with "goroutine <id> "
	// Parse the ID from the stack trace
	var id uint64
	for i := 10; i < n; i++ { // Skip "goroutine "
		if buf[i] == ' ' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

// getTrackingContext returns the tracking context for the current goroutine.
// If no context exists, creates a new one.
func getTrackingContext() *trackingContext {
	gid := getGoroutineID()

	if ctx, ok := trackingContexts.Load(gid); ok {
		return ctx.(*trackingContext)
	}

	ctx := &trackingContext{}
	trackingContexts.Store(gid, ctx)
	return ctx
}

// setConsumer installs c as the current consumer with a fresh rank
// accumulator and returns the previous consumer and accumulator so the
// caller can restore them on every exit path.
func (tc *trackingContext) setConsumer(c consumer) (consumer, int) {
	prev, prevMax := tc.consumer, tc.maxRank
	tc.consumer = c
	tc.maxRank = 0
	return prev, prevMax
}

// restoreConsumer undoes a setConsumer.
func (tc *trackingContext) restoreConsumer(prev consumer, prevMax int) {
	tc.consumer = prev
	tc.maxRank = prevMax
}

// registerRead records that the current consumer (if any) read src: it
// adds the mutual sink/source edge and raises the rank accumulator. Reads
// with no active consumer are plain reads with no graph effect.
func registerRead(src Source) {
	tc := getTrackingContext()
	c := tc.consumer
	if c == nil {
		return
	}
	c.addSource(src)
	src.base().addSink(c)
	if r := src.Rank(); r > tc.maxRank {
		tc.maxRank = r
	}
}

// Untracked runs fn with dependency tracking suspended: source reads
// inside it do not register edges for the computing expression. Use Peek
// instead for single reads.
func Untracked(fn func()) {
	tc := getTrackingContext()
	prev, prevMax := tc.setConsumer(nil)
	defer tc.restoreConsumer(prev, prevMax)
	fn()
}

// requestReclaim asks for a collectibility review of src. While a
// transaction is active the request is only recorded, so nodes still
// mid-use by the enclosing pass are not freed under it; otherwise the
// check runs immediately. Cells are never reclaimed and are ignored.
func requestReclaim(src Source) {
	s, ok := src.(sink)
	if !ok {
		return
	}
	if t := getTrackingContext().txn; t != nil {
		t.recordSource(s)
		return
	}
	s.maybeReclaim()
}
