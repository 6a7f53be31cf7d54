package cell

import "sync/atomic"

// Process-wide engine counters. Atomics so the inspector and metrics
// backends can read them from other goroutines.
var (
	statsComputes atomic.Uint64
	statsCutoffs  atomic.Uint64
	statsReclaims atomic.Uint64
	statsTxns     atomic.Uint64
	statsRealized atomic.Int64
)

// Stats is a snapshot of the engine's counters.
type Stats struct {
	// Computes counts expression getter runs.
	Computes uint64 `json:"computes"`

	// Cutoffs counts computes whose output was unchanged by value
	// equality, suppressing propagation to sinks.
	Cutoffs uint64 `json:"cutoffs"`

	// Reclaims counts reclaimed expressions.
	Reclaims uint64 `json:"reclaims"`

	// Transactions counts settled outermost transactions.
	Transactions uint64 `json:"transactions"`

	// LiveExprs is the number of currently realized expressions.
	LiveExprs int64 `json:"live_exprs"`
}

// ReadStats returns a snapshot of the engine's counters.
func ReadStats() Stats {
	return Stats{
		Computes:     statsComputes.Load(),
		Cutoffs:      statsCutoffs.Load(),
		Reclaims:     statsReclaims.Load(),
		Transactions: statsTxns.Load(),
		LiveExprs:    statsRealized.Load(),
	}
}
