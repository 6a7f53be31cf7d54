package cell

import "fmt"

// Expr is a derived computation: a getter over zero or more sources, a
// cached output, and graph edges maintained automatically. An expression
// starts unrealized; the first read computes it. Each compute detaches the
// expression from its previous sources and re-attaches it to whatever the
// getter actually read, so dependencies follow control flow.
//
// An expression built with WithSetter is writable through Reset and Swap.
// An expression with no dependents and no watchers is reclaimed when the
// enclosing transaction settles.
type Expr[T any] struct {
	n node

	// getter computes the expression's value from its sources.
	getter func() T

	// setter, when present, makes the expression writable: it receives the
	// proposed root value and is expected to write back into the
	// expression's sources.
	setter func(T)

	// validator, when present, vets values passed to Reset and Swap.
	validator func(T) bool

	// state is the cached output. Meaningful only while realized is true;
	// an unrealized expression has never computed or was just reclaimed.
	state    T
	realized bool

	// sources are the nodes read during the last compute, keyed by ID.
	// Mutually consistent with each source's sink set.
	sources map[uint64]Source

	// equal is the equality function for the change cutoff.
	// If nil, uses defaultEquals.
	equal func(T, T) bool
}

// ExprOption configures an expression at construction.
type ExprOption[T any] func(*Expr[T])

// WithSetter makes the expression writable. The setter receives the value
// passed to Reset and is expected to write it back into the expression's
// sources; it runs inside a transaction.
func WithSetter[T any](fn func(T)) ExprOption[T] {
	return func(e *Expr[T]) { e.setter = fn }
}

// WithValidator installs a predicate vetting values passed to Reset and
// Swap. A rejected value panics with ErrValidationRejected and leaves the
// expression unchanged.
func WithValidator[T any](fn func(T) bool) ExprOption[T] {
	return func(e *Expr[T]) { e.validator = fn }
}

// WithEquals overrides the equality function used for the change cutoff.
func WithEquals[T any](fn func(T, T) bool) ExprOption[T] {
	return func(e *Expr[T]) { e.equal = fn }
}

// WithLabel sets a debug label used in diagnostics and DevMode panics.
func WithLabel[T any](name string) ExprOption[T] {
	return func(e *Expr[T]) { e.n.name = name }
}

// NewExpr creates a new expression with the given getter.
// The getter does not run immediately; it runs lazily on first read (or
// eagerly when a watcher is attached).
func NewExpr[T any](getter func() T, opts ...ExprOption[T]) *Expr[T] {
	e := &Expr[T]{
		n:      node{id: nextID()},
		getter: getter,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ID returns the expression's unique node identifier.
func (e *Expr[T]) ID() uint64 { return e.n.id }

// Rank returns the expression's topological depth as of its last compute:
// one greater than the highest rank among its sources, or 0 if the last
// compute read no sources.
func (e *Expr[T]) Rank() int { return e.n.rank }

func (e *Expr[T]) base() *node { return &e.n }

// Get returns the expression's value, computing it if unrealized, and
// registers a dependency edge for the expression currently computing.
func (e *Expr[T]) Get() T {
	if !e.realized {
		e.recompute()
	}
	registerRead(e)
	return e.state
}

// Peek returns the expression's value without registering a dependency.
// An unrealized expression still computes first.
func (e *Expr[T]) Peek() T {
	if !e.realized {
		e.recompute()
	}
	return e.state
}

// addSource records a source read during the current compute.
// Implements the consumer interface.
func (e *Expr[T]) addSource(s Source) {
	if e.sources == nil {
		e.sources = make(map[uint64]Source)
	}
	e.sources[s.ID()] = s
}

// recompute runs the getter with this expression installed as the current
// consumer, rebuilds the source set and rank, and applies the equality
// cutoff. Reports whether the cached value changed.
func (e *Expr[T]) recompute() bool {
	tc := getTrackingContext()

	// Detach from everything read last time. Dependencies follow control
	// flow, so a source read previously may not be read again; detached
	// sources get a reclamation review once the getter has re-attached
	// whatever it still needs.
	for _, src := range e.sources {
		src.base().removeSink(e.n.id)
	}
	detached := e.sources
	e.sources = nil

	if DevMode {
		for _, id := range tc.computeStack {
			if id == e.n.id {
				panic(fmt.Errorf("%w: expression %s reads itself during its own compute", ErrCycle, e.n.label()))
			}
		}
		tc.computeStack = append(tc.computeStack, e.n.id)
	}

	prev, prevMax := tc.setConsumer(e)
	out, accum := func() (T, int) {
		defer func() {
			tc.restoreConsumer(prev, prevMax)
			if DevMode {
				tc.computeStack = tc.computeStack[:len(tc.computeStack)-1]
			}
		}()
		return e.getter(), tc.maxRank
	}()

	if len(e.sources) == 0 {
		e.n.rank = 0
	} else {
		e.n.rank = accum + 1
	}

	for _, src := range detached {
		requestReclaim(src)
	}

	if DevMode {
		warnIfOpaque(e.n.label(), out)
	}

	changed := !e.realized || !e.equals(e.state, out)
	statsComputes.Add(1)
	observeCompute(changed)
	if !changed {
		// Cutoff: keep the old state, do not invalidate sinks, do not
		// fire watchers. The rank update above still stands.
		statsCutoffs.Add(1)
		return false
	}

	old := e.state
	e.state = out
	if !e.realized {
		e.realized = true
		statsRealized.Add(1)
	}
	e.n.notifyWatchers(e, old, out)
	return true
}

// Reset writes a new root value through the expression's setter, inside a
// transaction. Panics with ErrMissingSetter if the expression has no
// setter, and with ErrValidationRejected (state unchanged) if the
// validator rejects the value.
func (e *Expr[T]) Reset(value T) {
	if e.setter == nil {
		panic(fmt.Errorf("%w: %s", ErrMissingSetter, e.n.label()))
	}
	if e.validator != nil && !e.validator(value) {
		panic(fmt.Errorf("%w: %s", ErrValidationRejected, e.n.label()))
	}
	Tx(func() {
		e.setter(value)
	})
}

// Swap resets the expression to fn(current), realizing it first.
func (e *Expr[T]) Swap(fn func(T) T) {
	e.Reset(fn(e.Peek()))
}

// Watch registers a change callback under key, computing the expression
// first if it is unrealized. A watched expression is never reclaimed. A
// later Watch with an equal key replaces the callback. The callback fires
// with the expression and its old and new values.
func (e *Expr[T]) Watch(key any, fn func(key any, src *Expr[T], old, new T)) {
	e.WatchAny(key, func(k, _, o, n any) {
		fn(k, e, o.(T), n.(T))
	})
}

// WatchAny is the type-erased form of Watch, implementing Watchable.
func (e *Expr[T]) WatchAny(key any, fn func(key, src, old, new any)) {
	if !e.realized {
		e.recompute()
	}
	e.n.watch(key, fn)
}

// Unwatch removes the callback registered under key. If it was the last
// watcher, the collectibility check runs immediately rather than waiting
// for a transaction boundary.
func (e *Expr[T]) Unwatch(key any) {
	if !e.n.unwatch(key) {
		return
	}
	e.maybeReclaim()
}

// OnDrop registers a cleanup callback under key, fired exactly once when
// the expression is reclaimed.
func (e *Expr[T]) OnDrop(key any, fn func()) {
	e.n.onDrop(key, fn)
}

// RemoveDrop removes the drop callback registered under key.
func (e *Expr[T]) RemoveDrop(key any) {
	delete(e.n.drops, key)
}

// GetAny is the type-erased form of Get.
func (e *Expr[T]) GetAny() any { return e.Get() }

// PeekAny is the type-erased form of Peek, implementing Watchable.
func (e *Expr[T]) PeekAny() any { return e.Peek() }

// SetAny is the type-erased form of Reset. It panics if v is not a T.
func (e *Expr[T]) SetAny(v any) { e.Reset(v.(T)) }

// maybeReclaim reclaims the expression if nothing observes it: no sinks
// and no watchers. Reclamation detaches all upstream edges, re-checks each
// released source (a dead chain collapses bottom-up), resets the state to
// unrealized and fires the drop callbacks once. Implements sink.
func (e *Expr[T]) maybeReclaim() {
	if len(e.n.sinks) > 0 || len(e.n.watchers) > 0 {
		return
	}
	if !e.realized && len(e.sources) == 0 && len(e.n.drops) == 0 {
		return
	}

	for _, src := range e.sources {
		src.base().removeSink(e.n.id)
	}
	detached := e.sources
	e.sources = nil

	if e.realized {
		e.realized = false
		statsRealized.Add(-1)
	}
	var zero T
	e.state = zero
	e.n.rank = 0

	for _, src := range detached {
		if s, ok := src.(sink); ok {
			s.maybeReclaim()
		}
	}

	for _, fn := range e.n.takeDrops() {
		fn()
	}

	statsReclaims.Add(1)
	observeReclaim()
}

// equals checks value equality using the configured equality function.
func (e *Expr[T]) equals(a, b T) bool {
	if e.equal != nil {
		return e.equal(a, b)
	}
	return defaultEquals(a, b)
}

var (
	_ Watchable = (*Expr[int])(nil)
	_ consumer  = (*Expr[int])(nil)
)
