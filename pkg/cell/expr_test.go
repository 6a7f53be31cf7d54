package cell

import "testing"

func TestExprLazyAndCached(t *testing.T) {
	c := NewCell(2)
	computes := 0
	e := NewExpr(func() int {
		computes++
		return c.Get() * 2
	})

	if computes != 0 {
		t.Fatalf("expression must not compute before first read")
	}

	if e.Get() != 4 {
		t.Errorf("expected 4, got %d", e.Get())
	}
	if computes != 1 {
		t.Errorf("expected 1 compute, got %d", computes)
	}

	// Repeated reads hit the cache.
	_ = e.Get()
	_ = e.Get()
	if computes != 1 {
		t.Errorf("cached reads must not recompute, got %d computes", computes)
	}
}

func TestExprRecomputesOnWrite(t *testing.T) {
	c := NewCell(2)
	e := NewExpr(func() int { return c.Get() * 2 })
	_ = e.Get()

	c.Set(5)
	if e.Get() != 10 {
		t.Errorf("expected 10 after write, got %d", e.Get())
	}
}

func TestExprRankInvariant(t *testing.T) {
	c := NewCell(1)
	e1 := NewExpr(func() int { return c.Get() + 1 })
	e2 := NewExpr(func() int { return e1.Get() + 1 })
	e3 := NewExpr(func() int { return e1.Get() + e2.Get() })

	_ = e3.Get()

	if e1.Rank() != 1 {
		t.Errorf("rank(e1): expected 1, got %d", e1.Rank())
	}
	if e2.Rank() != 2 {
		t.Errorf("rank(e2): expected 2, got %d", e2.Rank())
	}
	if e3.Rank() != 3 {
		t.Errorf("rank(e3): expected 3 (1 + max(1, 2)), got %d", e3.Rank())
	}

	constant := NewExpr(func() int { return 42 })
	_ = constant.Get()
	if constant.Rank() != 0 {
		t.Errorf("rank of a source-free expression: expected 0, got %d", constant.Rank())
	}
}

func TestExprDynamicDependencies(t *testing.T) {
	useA := NewCell(true)
	a := NewCell("a")
	b := NewCell("b")
	computes := 0
	e := NewExpr(func() string {
		computes++
		if useA.Get() {
			return a.Get()
		}
		return b.Get()
	})
	e.Watch("k", func(key any, src *Expr[string], old, new string) {})

	if e.Peek() != "a" {
		t.Fatalf("expected a, got %q", e.Peek())
	}

	// b is not a dependency yet: writing it must not recompute e.
	before := computes
	b.Set("B")
	if computes != before {
		t.Errorf("write to untracked source recomputed the expression")
	}

	useA.Set(false)
	if e.Peek() != "B" {
		t.Errorf("expected B after branch switch, got %q", e.Peek())
	}

	// After the switch, a is no longer a dependency.
	before = computes
	a.Set("A")
	if computes != before {
		t.Errorf("write to a dropped source recomputed the expression")
	}
	b.Set("BB")
	if e.Peek() != "BB" {
		t.Errorf("expected BB, got %q", e.Peek())
	}
}

func TestExprDiamondNoGlitch(t *testing.T) {
	// c fans out to a and b, which join at d. Within one propagation pass
	// every node recomputes at most once and d never observes a mix of old
	// and new inputs.
	c := NewCell(1)
	aComputes, bComputes, dComputes := 0, 0, 0
	a := NewExpr(func() int { aComputes++; return c.Get() + 1 })
	b := NewExpr(func() int { bComputes++; return c.Get() * 10 })
	var observed []int
	d := NewExpr(func() int { dComputes++; return a.Get() + b.Get() })
	d.Watch("k", func(key any, src *Expr[int], old, new int) {
		observed = append(observed, new)
	})

	if d.Peek() != 12 {
		t.Fatalf("expected 12, got %d", d.Peek())
	}

	aComputes, bComputes, dComputes = 0, 0, 0
	c.Set(2)

	if aComputes != 1 || bComputes != 1 || dComputes != 1 {
		t.Errorf("expected exactly one recompute each, got a=%d b=%d d=%d",
			aComputes, bComputes, dComputes)
	}
	if d.Peek() != 23 {
		t.Errorf("expected 23, got %d", d.Peek())
	}
	if len(observed) != 1 || observed[0] != 23 {
		t.Errorf("watcher must fire once with the settled value, got %v", observed)
	}
}

func TestExprCutoffLaw(t *testing.T) {
	// cell c = 5, expression e = c > 0. Writing c = 6 recomputes e to the
	// same value: its watcher does not fire and its sinks do not recompute.
	c := NewCell(5)
	e := NewExpr(func() bool { return c.Get() > 0 })
	downstream := 0
	e2 := NewExpr(func() string {
		downstream++
		if e.Get() {
			return "positive"
		}
		return "non-positive"
	})
	watcherFires := 0
	e2.Watch("k", func(key any, src *Expr[string], old, new string) { watcherFires++ })
	e.Watch("k", func(key any, src *Expr[bool], old, new bool) { watcherFires++ })

	if e2.Peek() != "positive" {
		t.Fatalf("expected positive, got %q", e2.Peek())
	}
	downstream = 0

	c.Set(6)
	if downstream != 0 {
		t.Errorf("cutoff must not invalidate sinks, e2 recomputed %d times", downstream)
	}
	if watcherFires != 0 {
		t.Errorf("cutoff must not fire watchers, got %d", watcherFires)
	}

	c.Set(-1)
	if e2.Peek() != "non-positive" {
		t.Errorf("expected non-positive, got %q", e2.Peek())
	}
	if watcherFires != 2 {
		t.Errorf("expected both watchers to fire once, got %d", watcherFires)
	}
}

func TestExprEndToEnd(t *testing.T) {
	c := NewCell(1)
	e1 := NewExpr(func() int { return c.Get() * 2 })
	e2 := NewExpr(func() int { return e1.Get() + 1 })

	if e2.Get() != 3 {
		t.Fatalf("expected 3, got %d", e2.Get())
	}

	type event struct{ old, new int }
	var e1Events, e2Events []event
	e1.Watch("w", func(key any, src *Expr[int], old, new int) { e1Events = append(e1Events, event{old, new}) })
	e2.Watch("w", func(key any, src *Expr[int], old, new int) { e2Events = append(e2Events, event{old, new}) })

	Tx(func() {
		c.Set(2)
	})

	if e1.Peek() != 4 {
		t.Errorf("e1: expected 4, got %d", e1.Peek())
	}
	if e2.Peek() != 5 {
		t.Errorf("e2: expected 5, got %d", e2.Peek())
	}
	if len(e1Events) != 1 || e1Events[0] != (event{2, 4}) {
		t.Errorf("e1 watcher: expected one (2,4) event, got %v", e1Events)
	}
	if len(e2Events) != 1 || e2Events[0] != (event{3, 5}) {
		t.Errorf("e2 watcher: expected one (3,5) event, got %v", e2Events)
	}
}

func TestExprWritable(t *testing.T) {
	fahrenheit := NewCell(32.0)
	celsius := NewExpr(
		func() float64 { return (fahrenheit.Get() - 32) * 5 / 9 },
		WithSetter[float64](func(c float64) { fahrenheit.Set(c*9/5 + 32) }),
	)

	if celsius.Get() != 0 {
		t.Fatalf("expected 0, got %f", celsius.Get())
	}

	celsius.Reset(100)
	if fahrenheit.Peek() != 212 {
		t.Errorf("expected 212F, got %f", fahrenheit.Peek())
	}
	if celsius.Get() != 100 {
		t.Errorf("expected 100C after write-back, got %f", celsius.Get())
	}

	celsius.Swap(func(c float64) float64 { return c - 100 })
	if fahrenheit.Peek() != 32 {
		t.Errorf("expected 32F after swap, got %f", fahrenheit.Peek())
	}
}

func TestExprConsistencyAfterWrites(t *testing.T) {
	// A read after any sequence of writes reflects the latest values of
	// all transitive sources.
	x := NewCell(1)
	y := NewCell(2)
	sum := NewExpr(func() int { return x.Get() + y.Get() })
	scaled := NewExpr(func() int { return sum.Get() * 100 })
	_ = scaled.Get()

	x.Set(10)
	y.Set(20)
	Tx(func() {
		x.Set(100)
		y.Set(200)
	})

	if got := scaled.Get(); got != 30000 {
		t.Errorf("expected 30000, got %d", got)
	}
}
