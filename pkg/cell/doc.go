// Package cell provides a fine-grained reactive dataflow engine.
//
// The engine is a dependency graph of mutable cells and derived
// expressions. Reading a source while an expression computes records a
// dependency edge automatically; writing a cell recomputes exactly the
// expressions whose inputs actually changed, in topological (rank) order;
// expressions nobody observes anymore are reclaimed.
//
// # Core Types
//
// Cell[T] is a root mutable store:
//
//	count := NewCell(0)
//	value := count.Get()  // Read (registers a dependency while computing)
//	count.Set(5)          // Write (propagates to dependents)
//	count.Update(func(n int) int { return n + 1 })
//
// Expr[T] is a derived, cached computation:
//
//	doubled := NewExpr(func() int { return count.Get() * 2 })
//	value := doubled.Get()  // Computes on first read, cached afterwards
//
// An expression with a setter is writable:
//
//	celsius := NewExpr(
//	    func() float64 { return (fahrenheit.Get() - 32) * 5 / 9 },
//	    WithSetter(func(c float64) { fahrenheit.Set(c*9/5 + 32) }),
//	)
//	celsius.Reset(100)
//
// # Transactions
//
// Multiple writes coalesce into a single propagation pass:
//
//	Tx(func() {
//	    a.Set(1)
//	    b.Set(2)
//	    c.Set(3)
//	})  // Dependents recompute once, after all three writes
//
// Every write is transactional; a bare Set opens and settles its own
// transaction. Nested Tx calls reuse the outermost one.
//
// # Propagation
//
// Each node carries a rank, one greater than the highest rank it read
// during its last compute (cells are rank 0). A propagation pass drains
// dirty expressions in ascending rank order, so every expression observes
// the settled output of its sources. Recomputation stops at expressions
// whose output is unchanged by value equality: their dependents are not
// invalidated and their watchers do not fire.
//
// # Reclamation
//
// An expression with no dependents and no watchers is reclaimed when the
// enclosing transaction settles (or immediately when its last watcher is
// removed): its cached state is dropped, its upstream edges are detached,
// and its drop callbacks run once. Cells are never reclaimed; they belong
// to whoever holds them.
//
// # Concurrency
//
// A graph is single-threaded: all reads, writes and watch management must
// happen on one logical thread, serialized externally if necessary. The
// ambient tracking state (current consumer, rank accumulator, active
// transaction) is per-goroutine, so independent graphs on different
// goroutines do not interfere.
package cell
