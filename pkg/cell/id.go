package cell

import "sync/atomic"

// globalIDCounter is the source of unique IDs for all graph nodes.
// Using atomic operations ensures thread-safe ID generation without locks.
var globalIDCounter uint64

// nextID returns the next unique node ID.
// IDs are monotonically increasing and never reused; they double as the
// stable tiebreak for propagation ordering between nodes of equal rank.
func nextID() uint64 {
	return atomic.AddUint64(&globalIDCounter, 1)
}
