package cell

import "testing"

func TestCollectUnobservedAtSettlement(t *testing.T) {
	c := NewCell(1)
	e1 := NewExpr(func() int { return c.Get() * 2 })
	e2 := NewExpr(func() int { return e1.Get() + 1 })
	_ = e2.Get()

	e1Drops, e2Drops := 0, 0
	e1.OnDrop("d", func() { e1Drops++ })
	e2.OnDrop("d", func() { e2Drops++ })

	// Nothing observes the chain: the transaction's collection pass
	// reclaims e2, which cascades to e1.
	c.Set(2)

	if e2.realized {
		t.Errorf("e2 should be unrealized after reclamation")
	}
	if e1.realized {
		t.Errorf("e1 should be reclaimed by the upward cascade")
	}
	if e1Drops != 1 || e2Drops != 1 {
		t.Errorf("drop callbacks must fire exactly once, got e1=%d e2=%d", e1Drops, e2Drops)
	}
	if len(c.n.sinks) != 0 {
		t.Errorf("reclaimed chain must detach from the cell, %d sinks remain", len(c.n.sinks))
	}

	// A reclaimed expression is recomputable: a later read realizes it
	// against current values.
	if e2.Get() != 5 {
		t.Errorf("expected 5 after re-realization, got %d", e2.Get())
	}
}

func TestWatcherPreventsCollection(t *testing.T) {
	c := NewCell(1)
	e1 := NewExpr(func() int { return c.Get() * 2 })
	e2 := NewExpr(func() int { return e1.Get() + 1 })
	e2.Watch("k", func(key any, src *Expr[int], old, new int) {})

	c.Set(2)

	if !e2.realized {
		t.Errorf("a watched expression must never be reclaimed")
	}
	if !e1.realized {
		t.Errorf("an expression with an active sink must never be reclaimed")
	}
}

func TestUnwatchReclaimsImmediately(t *testing.T) {
	c := NewCell(1)
	e := NewExpr(func() int { return c.Get() + 1 })
	drops := 0
	e.OnDrop("d", func() { drops++ })
	e.Watch("k", func(key any, src *Expr[int], old, new int) {})

	if !e.realized {
		t.Fatalf("watching must eagerly realize the expression")
	}

	// No transaction is active: removing the last watcher reclaims now.
	e.Unwatch("k")
	if e.realized {
		t.Errorf("expression should be reclaimed on last watcher removal")
	}
	if drops != 1 {
		t.Errorf("expected 1 drop callback, got %d", drops)
	}
	if len(c.n.sinks) != 0 {
		t.Errorf("expected cell sinks to be empty, got %d", len(c.n.sinks))
	}
}

func TestBranchSwitchReclaimsDroppedSubgraph(t *testing.T) {
	useA := NewCell(true)
	a := NewCell(1)
	b := NewCell(2)
	viaA := NewExpr(func() int { return a.Get() * 10 })
	viaB := NewExpr(func() int { return b.Get() * 10 })
	picked := NewExpr(func() int {
		if useA.Get() {
			return viaA.Get()
		}
		return viaB.Get()
	})
	picked.Watch("k", func(key any, src *Expr[int], old, new int) {})

	if picked.Peek() != 10 {
		t.Fatalf("expected 10, got %d", picked.Peek())
	}
	if !viaA.realized {
		t.Fatalf("viaA should be realized")
	}

	// Switching the branch detaches viaA; the settlement pass reclaims it.
	useA.Set(false)

	if viaA.realized {
		t.Errorf("viaA should be reclaimed after the branch switch")
	}
	if !viaB.realized {
		t.Errorf("viaB is now a dependency and must stay realized")
	}
	if picked.Peek() != 20 {
		t.Errorf("expected 20, got %d", picked.Peek())
	}
}

func TestNoSettlementWhileTransactionActive(t *testing.T) {
	c := NewCell(1)
	e := NewExpr(func() int { return c.Get() + 1 })
	e.Watch("k", func(key any, src *Expr[int], old, new int) {})

	var during int
	Tx(func() {
		c.Set(2)
		// Still inside the transaction: propagation has not run, the
		// expression keeps its pre-write state.
		during = e.Peek()
	})

	if during != 2 {
		t.Errorf("expected pre-settlement value 2 inside the transaction, got %d", during)
	}
	if e.Peek() != 3 {
		t.Errorf("expected 3 after settlement, got %d", e.Peek())
	}
}

func TestDropCallbackRemoval(t *testing.T) {
	c := NewCell(1)
	e := NewExpr(func() int { return c.Get() })
	drops := 0
	e.OnDrop("d", func() { drops++ })
	e.RemoveDrop("d")
	e.Watch("k", func(key any, src *Expr[int], old, new int) {})
	e.Unwatch("k")

	if drops != 0 {
		t.Errorf("removed drop callback must not fire, got %d", drops)
	}
	if e.realized {
		t.Errorf("expression should still be reclaimed")
	}
}
