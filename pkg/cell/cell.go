package cell

// Cell is a root mutable store. Cells depend on nothing and are always
// rank 0; they are never reclaimed automatically and live as long as the
// code holding them. Reading a cell during an expression compute registers
// the expression as a dependent; writing a cell propagates to dependents
// through the enclosing transaction.
type Cell[T any] struct {
	n node

	// value is the current cell value.
	value T

	// equal is the equality function used to decide whether a write
	// changed the value. If nil, uses defaultEquals.
	equal func(T, T) bool
}

// NewCell creates a new cell with the given initial value.
func NewCell[T any](initial T) *Cell[T] {
	return &Cell[T]{
		n:     node{id: nextID()},
		value: initial,
	}
}

// ID returns the cell's unique node identifier.
func (c *Cell[T]) ID() uint64 { return c.n.id }

// Rank returns 0; cells are roots of the graph.
func (c *Cell[T]) Rank() int { return 0 }

func (c *Cell[T]) base() *node { return &c.n }

// Get returns the current value and registers a dependency edge for the
// expression currently computing, if any.
func (c *Cell[T]) Get() T {
	registerRead(c)
	return c.value
}

// Peek returns the current value without registering a dependency.
func (c *Cell[T]) Peek() T {
	return c.value
}

// Set writes a new value. If it differs from the stored value by the
// cell's equality function, the cell's dependents are enqueued for
// recomputation in the enclosing transaction and the cell's watchers are
// notified; a bare Set opens and settles its own transaction. Writing an
// equal value is a no-op.
func (c *Cell[T]) Set(value T) {
	Tx(func() {
		tc := getTrackingContext()
		if DevMode && tc.consumer != nil {
			panic("cell: write to cell " + c.n.label() + " during compute of expression " + tc.consumer.base().label())
		}
		if c.equals(c.value, value) {
			return
		}
		old := c.value
		c.value = value
		c.n.notifyWatchers(c, old, value)
		tc.txn.enqueueSinks(&c.n)
	})
}

// Update writes fn(current). Like Set, it is transactional and subject to
// the equality cutoff.
func (c *Cell[T]) Update(fn func(T) T) {
	c.Set(fn(c.value))
}

// Watch registers a change callback under key. The callback fires with the
// cell and its old and new values whenever a write actually changes the
// cell. A later Watch with an equal key replaces the callback.
func (c *Cell[T]) Watch(key any, fn func(key any, src *Cell[T], old, new T)) {
	c.n.watch(key, func(k, _, o, n any) {
		fn(k, c, o.(T), n.(T))
	})
}

// Unwatch removes the callback registered under key.
func (c *Cell[T]) Unwatch(key any) {
	c.n.unwatch(key)
}

// WatchAny is the type-erased form of Watch, implementing Watchable.
func (c *Cell[T]) WatchAny(key any, fn func(key, src, old, new any)) {
	c.n.watch(key, fn)
}

// GetAny is the type-erased form of Get.
func (c *Cell[T]) GetAny() any { return c.Get() }

// PeekAny is the type-erased form of Peek, implementing Watchable.
func (c *Cell[T]) PeekAny() any { return c.value }

// SetAny is the type-erased form of Set. It panics if v is not a T.
func (c *Cell[T]) SetAny(v any) { c.Set(v.(T)) }

// WithEquals returns the cell configured with a custom equality function.
// This is useful for custom types where reflect.DeepEqual is too expensive
// or has incorrect semantics.
func (c *Cell[T]) WithEquals(fn func(T, T) bool) *Cell[T] {
	c.equal = fn
	return c
}

// WithLabel sets a debug label used in diagnostics and DevMode panics.
func (c *Cell[T]) WithLabel(name string) *Cell[T] {
	c.n.name = name
	return c
}

// equals checks value equality using the configured equality function.
func (c *Cell[T]) equals(a, b T) bool {
	if c.equal != nil {
		return c.equal(a, b)
	}
	return defaultEquals(a, b)
}

var _ Watchable = (*Cell[int])(nil)
