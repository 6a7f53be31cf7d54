// Package lens provides cursors: writable expressions bound to a path
// inside a parent source's value.
//
// A cursor reads the value at its path and, when written, writes back a
// path-scoped copy-on-write update of the parent's whole value:
//
//	state := cell.NewCell[any](map[string]any{
//	    "user": map[string]any{"name": "Ada", "age": 36},
//	})
//	name := lens.Cursor(state, "user", "name")
//	name.Get()        // "Ada"
//	name.Reset("Lin") // state now holds {"user": {"name": "Lin", "age": 36}}
//
// Cursors are cached per (parent, path): repeated calls with a
// structurally equal path return the identical expression until it is
// reclaimed, at which point the cache entry is evicted by the cursor's own
// drop callback. Because a cursor is an ordinary expression, the equality
// cutoff applies: writes that leave the value at its path unchanged do not
// notify its observers.
//
// Paths navigate maps (string or integer keys), slices, arrays and
// exported struct fields. The cache layer adds no propagation logic of its
// own; everything flows through package cell.
package lens
