package cell

import "strconv"

// Source is anything dependency-trackable: it has a propagation rank and a
// set of dependents. Implemented by *Cell[T] (rank 0 always) and *Expr[T].
type Source interface {
	// ID returns the node's unique identifier.
	ID() uint64

	// Rank returns the node's topological depth. A node's rank is strictly
	// greater than the rank of every source it read during its last
	// compute; cells are always rank 0.
	Rank() int

	// base returns the type-erased node record. Unexported so that only
	// this package's types participate in the graph.
	base() *node
}

// Watchable is the type-erased observation surface shared by cells and
// expressions. Consumers that cannot know a node's value type (the lens
// cache, the inspector) operate through it.
type Watchable interface {
	Source

	// WatchAny registers a change callback under key, replacing any
	// callback previously registered under an equal key. Watching an
	// expression computes it first. The callback receives the watched
	// node itself as src, so one callback can serve several nodes.
	WatchAny(key any, fn func(key, src, old, new any))

	// Unwatch removes the callback registered under key. Removing the last
	// watcher from an expression with no dependents makes it reclaimable
	// immediately.
	Unwatch(key any)

	// PeekAny returns the current value without registering a dependency.
	PeekAny() any
}

// sink is the type-erased view of an expression held in source sink sets
// and processed by the scheduler and the collector.
type sink interface {
	Source

	// recompute runs the expression's getter, re-tracks its sources, and
	// reports whether the cached value changed.
	recompute() bool

	// maybeReclaim reclaims the expression now if nothing observes it,
	// cascading the check to its sources. No-op otherwise.
	maybeReclaim()
}

// consumer is a sink that is currently computing and collecting its
// dependency edges.
type consumer interface {
	sink
	addSource(s Source)
}

// node is the graph record embedded in Cell[T] and Expr[T]: identity,
// rank, dependents, and the type-erased watcher and drop-callback maps.
// Edges are non-owning: a sink set holds interface references resolved by
// identity, never owned values.
type node struct {
	id   uint64
	rank int

	// sinks are the expressions that read this node during their last
	// compute, keyed by ID.
	sinks map[uint64]sink

	// watchers are external change callbacks keyed by caller-chosen keys.
	watchers map[any]func(key, src, old, new any)

	// drops are cleanup callbacks fired once when the node is reclaimed.
	drops map[any]func()

	// name is an optional debug label used in diagnostics.
	name string
}

// addSink registers a dependent expression, deduplicated by ID.
func (n *node) addSink(s sink) {
	if n.sinks == nil {
		n.sinks = make(map[uint64]sink)
	}
	n.sinks[s.ID()] = s
}

// removeSink drops the dependent with the given ID, if present.
func (n *node) removeSink(id uint64) {
	delete(n.sinks, id)
}

// watch registers fn under key, replacing any previous registration.
func (n *node) watch(key any, fn func(key, src, old, new any)) {
	if n.watchers == nil {
		n.watchers = make(map[any]func(key, src, old, new any))
	}
	n.watchers[key] = fn
}

// unwatch removes the watcher under key and reports whether one existed.
func (n *node) unwatch(key any) bool {
	if _, ok := n.watchers[key]; !ok {
		return false
	}
	delete(n.watchers, key)
	return true
}

// notifyWatchers invokes every watcher with the watched container and the
// old and new values. The node record cannot name its container, so the
// container passes itself in.
func (n *node) notifyWatchers(src any, old, new any) {
	for key, fn := range n.watchers {
		fn(key, src, old, new)
	}
}

// onDrop registers a reclamation callback under key.
func (n *node) onDrop(key any, fn func()) {
	if n.drops == nil {
		n.drops = make(map[any]func())
	}
	n.drops[key] = fn
}

// takeDrops removes and returns all drop callbacks. Taking them before
// firing guarantees each runs exactly once even if the node is reclaimed
// again after being recomputed.
func (n *node) takeDrops() map[any]func() {
	drops := n.drops
	n.drops = nil
	return drops
}

// label returns the debug name, falling back to the node ID.
func (n *node) label() string {
	if n.name != "" {
		return n.name
	}
	return "#" + strconv.FormatUint(n.id, 10)
}
