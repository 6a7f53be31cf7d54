package cell

import "testing"

func TestCellBasic(t *testing.T) {
	count := NewCell(0)

	// Initial value
	if count.Get() != 0 {
		t.Errorf("expected initial value 0, got %d", count.Get())
	}

	// Set value
	count.Set(5)
	if count.Get() != 5 {
		t.Errorf("expected value 5, got %d", count.Get())
	}

	// Update value
	count.Update(func(n int) int { return n * 2 })
	if count.Get() != 10 {
		t.Errorf("expected value 10, got %d", count.Get())
	}
}

func TestCellRankIsZero(t *testing.T) {
	c := NewCell("x")
	if c.Rank() != 0 {
		t.Errorf("cell rank must be 0, got %d", c.Rank())
	}
	c.Set("y")
	if c.Rank() != 0 {
		t.Errorf("cell rank must stay 0 after writes, got %d", c.Rank())
	}
}

func TestCellWatch(t *testing.T) {
	c := NewCell(1)
	var events [][2]int
	c.Watch("k", func(key any, src *Cell[int], old, new int) {
		events = append(events, [2]int{old, new})
	})

	c.Set(2)
	if len(events) != 1 || events[0] != [2]int{1, 2} {
		t.Fatalf("expected one (1,2) notification, got %v", events)
	}

	// Same value should not notify
	c.Set(2)
	if len(events) != 1 {
		t.Errorf("same value should not notify, got %d notifications", len(events))
	}

	c.Unwatch("k")
	c.Set(3)
	if len(events) != 1 {
		t.Errorf("unwatch should stop notifications, got %d", len(events))
	}
}

func TestCellCustomEquals(t *testing.T) {
	// Treat equal-length strings as equal: such writes are no-ops.
	c := NewCell("go").WithEquals(func(a, b string) bool {
		return len(a) == len(b)
	})

	notified := 0
	c.Watch("k", func(key any, src *Cell[string], old, new string) { notified++ })

	c.Set("GO") // same length, treated as equal
	if notified != 0 {
		t.Errorf("custom equals should suppress the write, got %d notifications", notified)
	}
	if c.Peek() != "go" {
		t.Errorf("suppressed write must keep the old value, got %q", c.Peek())
	}

	c.Set("gopher")
	if notified != 1 {
		t.Errorf("expected 1 notification, got %d", notified)
	}
}

func TestCellPeekDoesNotTrack(t *testing.T) {
	c := NewCell(1)
	computes := 0
	e := NewExpr(func() int {
		computes++
		return c.Peek() * 10
	})

	if e.Get() != 10 {
		t.Fatalf("expected 10, got %d", e.Get())
	}
	if len(e.sources) != 0 {
		t.Fatalf("Peek must not register a dependency, got %d sources", len(e.sources))
	}

	c.Set(2)
	if computes != 1 {
		t.Errorf("expression must not recompute for an untracked read, got %d computes", computes)
	}
	if e.Get() != 10 {
		t.Errorf("cached value must stay stale after an untracked read, got %d", e.Get())
	}
}

func TestCellDeepEqualityForComposites(t *testing.T) {
	c := NewCell([]int{1, 2, 3})
	notified := 0
	c.Watch("k", func(key any, src *Cell[[]int], old, new []int) { notified++ })

	// Structurally equal slice: cutoff applies.
	c.Set([]int{1, 2, 3})
	if notified != 0 {
		t.Errorf("structurally equal write should be a no-op, got %d notifications", notified)
	}

	c.Set([]int{1, 2, 4})
	if notified != 1 {
		t.Errorf("expected 1 notification, got %d", notified)
	}
}

func TestCellAnyAccessors(t *testing.T) {
	c := NewCell(7)
	if c.GetAny().(int) != 7 {
		t.Errorf("GetAny: expected 7")
	}
	c.SetAny(8)
	if c.PeekAny().(int) != 8 {
		t.Errorf("SetAny/PeekAny: expected 8, got %v", c.PeekAny())
	}
}
