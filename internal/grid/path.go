package grid

import (
	"container/heap"
	"context"
)

// Mode selects the termination rule of a search.
type Mode int

const (
	// PointToPoint stops when the destination is settled and returns its
	// distance.
	PointToPoint Mode = iota
	// PointToAll runs until the reachable component is exhausted and returns
	// the sum of all shortest distances from the origin.
	PointToAll
)

func (m Mode) String() string {
	switch m {
	case PointToPoint:
		return "point-to-point"
	case PointToAll:
		return "point-to-all"
	default:
		return "unknown"
	}
}

// cancelCheckInterval is how many pops happen between context checks.
const cancelCheckInterval = 1024

type queueItem struct {
	dist int64
	id   CellID
}

// distanceQueue is a min-heap on dist.
type distanceQueue []queueItem

func (q distanceQueue) Len() int           { return len(q) }
func (q distanceQueue) Less(i, j int) bool { return q[i].dist < q[j].dist }
func (q distanceQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *distanceQueue) Push(x any)        { *q = append(*q, x.(queueItem)) }
func (q *distanceQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}

// PathFinder runs uniform-cost searches over a Store. It holds no state
// between searches and is safe for concurrent use.
type PathFinder struct {
	store *Store
}

// NewPathFinder returns a PathFinder reading from store.
func NewPathFinder(store *Store) *PathFinder {
	return &PathFinder{store: store}
}

// Search runs Dijkstra from origin using each edge's current mean weight.
//
// In PointToPoint mode the answer is the distance at which dest is settled.
// If dest is never settled the search drains the reachable component and the
// answer is the sum of every settled distance, the same value PointToAll
// would return.
//
// A missing origin, or any cell that disappears during the search because of
// a concurrent Clear, yields a *NotFoundError.
func (f *PathFinder) Search(ctx context.Context, origin, dest CellID, mode Mode) (int64, error) {
	if _, ok := f.store.Cell(origin); !ok {
		return 0, &NotFoundError{Op: "search", ID: origin}
	}

	settled := make(map[CellID]struct{})
	pq := make(distanceQueue, 0, 64)
	heap.Push(&pq, queueItem{dist: 0, id: origin})

	var sum int64
	pops := 0
	for pq.Len() > 0 {
		pops++
		if pops%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}

		cur := heap.Pop(&pq).(queueItem)
		if _, ok := settled[cur.id]; ok {
			continue
		}
		settled[cur.id] = struct{}{}

		if mode == PointToPoint && cur.id == dest {
			return cur.dist, nil
		}
		sum += cur.dist

		neighbours, err := f.store.Edges(cur.id)
		if err != nil {
			return 0, err
		}
		for _, n := range neighbours {
			if _, ok := settled[n.ID]; ok {
				continue
			}
			heap.Push(&pq, queueItem{dist: cur.dist + n.Edge.Weight(), id: n.ID})
		}
	}

	return sum, nil
}
