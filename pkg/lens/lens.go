package lens

import (
	"sync"

	"github.com/cellgraph-dev/cellgraph/pkg/cell"
)

// Parent is a writable source whose value a cursor can navigate: any cell,
// or any expression built with a setter.
type Parent interface {
	cell.Source

	// GetAny returns the current value, registering a dependency for the
	// expression currently computing.
	GetAny() any

	// PeekAny returns the current value without registering a dependency.
	PeekAny() any

	// SetAny writes a new whole value back.
	SetAny(v any)
}

// cacheKey identifies a cursor by its parent node and normalized path.
type cacheKey struct {
	parent uint64
	path   string
}

// registry is the process-wide cursor cache. Entries remove themselves
// through their cursor's drop callback when the cursor is reclaimed.
type registry struct {
	mu      sync.Mutex
	entries map[cacheKey]*cell.Expr[any]
}

var cache = &registry{entries: make(map[cacheKey]*cell.Expr[any])}

// dropKey keys the cache-eviction drop callback on each cursor.
type dropKey struct{}

// Cursor returns the writable expression for the value at path inside
// parent. Path elements are strings (map keys, struct field names) and
// integers (slice/array indexes, integer map keys); integer kinds are
// normalized, so Cursor(p, "xs", 0) and Cursor(p, "xs", int64(0)) name the
// same cursor.
//
// Repeated calls with an equal (parent, path) key return the identical
// expression until it is reclaimed; a later call then builds a fresh one.
// The lookup itself performs no reactive reads — calling Cursor while an
// expression computes does not register the parent as its dependency; only
// reading the returned cursor does.
//
// The cursor's getter reads the value at path inside the parent's current
// value; its setter writes back a path-scoped copy-on-write update of the
// whole parent value, inside a transaction.
func Cursor(parent Parent, path ...any) *cell.Expr[any] {
	np := normalize(path)
	key := cacheKey{parent: parent.ID(), path: canonical(np)}

	cache.mu.Lock()
	defer cache.mu.Unlock()

	if e, ok := cache.entries[key]; ok {
		return e
	}

	e := cell.NewExpr(
		func() any { return getIn(parent.GetAny(), np) },
		cell.WithSetter[any](func(v any) {
			parent.SetAny(updateIn(parent.PeekAny(), np, v))
		}),
	)
	e.OnDrop(dropKey{}, func() {
		cache.mu.Lock()
		delete(cache.entries, key)
		cache.mu.Unlock()
	})
	cache.entries[key] = e
	return e
}

// cached reports whether a cursor for (parent, path) is currently cached.
// Test hook.
func cached(parent Parent, path ...any) bool {
	np := normalize(path)
	key := cacheKey{parent: parent.ID(), path: canonical(np)}
	cache.mu.Lock()
	defer cache.mu.Unlock()
	_, ok := cache.entries[key]
	return ok
}
