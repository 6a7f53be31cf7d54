package cell

import "container/heap"

// rankQueue is the propagation scheduler's priority set: dirty expressions
// ordered by ascending rank, ties broken by node ID, with no duplicate
// entries. The ordering key is captured at insertion time; if a node's
// dependency set changes mid-pass, any later reinsertion uses its new
// rank.
type rankQueue struct {
	items   []queueItem
	present map[uint64]bool
}

type queueItem struct {
	rank int
	id   uint64
	s    sink
}

func newRankQueue() *rankQueue {
	return &rankQueue{present: make(map[uint64]bool)}
}

func (q *rankQueue) Len() int { return len(q.items) }

func (q *rankQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.rank != b.rank {
		return a.rank < b.rank
	}
	return a.id < b.id
}

func (q *rankQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
}

func (q *rankQueue) Push(x any) {
	q.items = append(q.items, x.(queueItem))
}

func (q *rankQueue) Pop() any {
	old := q.items
	n := len(old)
	item := old[n-1]
	q.items = old[:n-1]
	return item
}

// add inserts s unless it is already enqueued.
func (q *rankQueue) add(s sink) {
	id := s.ID()
	if q.present[id] {
		return
	}
	q.present[id] = true
	heap.Push(q, queueItem{rank: s.Rank(), id: id, s: s})
}

// next removes and returns the minimum element.
func (q *rankQueue) next() sink {
	item := heap.Pop(q).(queueItem)
	delete(q.present, item.id)
	return item.s
}

// propagate drains the queue: repeatedly recompute the minimum-rank dirty
// expression and, only if its cached value changed, mark its current sinks
// dirty in turn. Ascending rank order guarantees every expression observes
// the settled output of all lower-ranked sources within the pass. Returns
// the visited expressions in processing order; they seed the collector.
func propagate(q *rankQueue) []sink {
	var visited []sink
	for q.Len() > 0 {
		x := q.next()
		changed := x.recompute()
		visited = append(visited, x)
		if changed {
			for _, s := range x.base().sinks {
				q.add(s)
			}
		}
	}
	return visited
}
