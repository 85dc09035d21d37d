package grid

import (
	"math/bits"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultShardCount is the number of cell-table shards when none is configured.
const DefaultShardCount = 64

// StoreConfig configures a Store.
type StoreConfig struct {
	// Shards is rounded up to a power of two. Zero means DefaultShardCount.
	Shards int
	// Stats receives ingestion counters. A fresh Stats is used when nil.
	Stats *Stats
}

// DefaultStoreConfig returns the production store configuration.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{Shards: DefaultShardCount}
}

// cellEntry is the mutable record behind a Cell. The identity and reference
// point never change after creation; edges are guarded by mu.
type cellEntry struct {
	id     CellID
	coordX int64
	coordY int64
	pointX int64
	pointY int64

	mu    sync.Mutex
	edges map[CellID]Edge
}

func (c *cellEntry) copyCell() Cell {
	c.mu.Lock()
	degree := len(c.edges)
	c.mu.Unlock()
	return Cell{
		ID:     c.id,
		CoordX: c.coordX,
		CoordY: c.coordY,
		PointX: c.pointX,
		PointY: c.pointY,
		Degree: degree,
	}
}

type shard struct {
	mu    sync.RWMutex
	cells map[CellID]*cellEntry
}

// table is one generation of the grid. Clear replaces the whole table so no
// reader ever sees a partially emptied grid.
type table struct {
	shards []shard
	shift  uint
}

func newTable(n int) *table {
	t := &table{
		shards: make([]shard, n),
		shift:  uint(64 - bits.TrailingZeros(uint(n))),
	}
	for i := range t.shards {
		t.shards[i].cells = make(map[CellID]*cellEntry)
	}
	return t
}

func (t *table) shardFor(id CellID) *shard {
	if len(t.shards) == 1 {
		return &t.shards[0]
	}
	// Fibonacci hashing spreads neighbouring coordinates across shards.
	h := (uint64(id) ^ uint64(id)>>29) * 0x9E3779B97F4A7C15
	return &t.shards[h>>t.shift]
}

func (t *table) lookup(id CellID) *cellEntry {
	sh := t.shardFor(id)
	sh.mu.RLock()
	c := sh.cells[id]
	sh.mu.RUnlock()
	return c
}

// Store is the concurrent cell graph shared by every session.
type Store struct {
	tbl    atomic.Pointer[table]
	shards int
	stats  *Stats
}

// NewStore creates an empty store.
func NewStore(cfg StoreConfig) *Store {
	n := cfg.Shards
	if n <= 0 {
		n = DefaultShardCount
	}
	if n&(n-1) != 0 {
		n = 1 << bits.Len(uint(n))
	}
	stats := cfg.Stats
	if stats == nil {
		stats = &Stats{}
	}
	s := &Store{shards: n, stats: stats}
	s.tbl.Store(newTable(n))
	return s
}

// Stats returns the counters shared with the engine.
func (s *Store) Stats() *Stats {
	return s.stats
}

// EnsureCell creates the cell for id with p as its reference point unless it
// already exists. The first writer wins; the stored cell is returned along
// with whether this call created it.
func (s *Store) EnsureCell(p Point, id CellID) (Cell, bool) {
	t := s.tbl.Load()
	if c := t.lookup(id); c != nil {
		return c.copyCell(), false
	}

	sh := t.shardFor(id)
	sh.mu.Lock()
	if c, ok := sh.cells[id]; ok {
		sh.mu.Unlock()
		return c.copyCell(), false
	}
	coordX, coordY := id.Coords()
	c := &cellEntry{
		id:     id,
		coordX: coordX,
		coordY: coordY,
		pointX: p.X,
		pointY: p.Y,
		edges:  make(map[CellID]Edge, 4),
	}
	sh.cells[id] = c
	sh.mu.Unlock()

	s.stats.cellsCreated.Add(1)
	return c.copyCell(), true
}

// AccumulateEdge records one traversal of length from origin to dest. The
// origin cell must exist. The read-modify-write of a single edge is atomic;
// edges of different cells never contend.
func (s *Store) AccumulateEdge(origin, dest CellID, length int64) (Edge, error) {
	c := s.tbl.Load().lookup(origin)
	if c == nil {
		return Edge{}, &NotFoundError{Op: "accumulate edge", ID: origin}
	}

	c.mu.Lock()
	e, ok := c.edges[dest]
	e.Length += length
	e.Samples++
	c.edges[dest] = e
	c.mu.Unlock()

	if !ok {
		s.stats.edgesCreated.Add(1)
	}
	s.stats.edgeSamples.Add(1)
	return e, nil
}

// Clear discards every cell in one step.
func (s *Store) Clear() {
	s.tbl.Store(newTable(s.shards))
}

// Cell returns a copy of the cell stored under id.
func (s *Store) Cell(id CellID) (Cell, bool) {
	c := s.tbl.Load().lookup(id)
	if c == nil {
		return Cell{}, false
	}
	return c.copyCell(), true
}

// Edge returns the edge from origin to dest, if both the cell and edge exist.
func (s *Store) Edge(origin, dest CellID) (Edge, bool) {
	c := s.tbl.Load().lookup(origin)
	if c == nil {
		return Edge{}, false
	}
	c.mu.Lock()
	e, ok := c.edges[dest]
	c.mu.Unlock()
	return e, ok
}

// Edges returns a copy of the outgoing edges of id.
func (s *Store) Edges(id CellID) ([]Neighbor, error) {
	c := s.tbl.Load().lookup(id)
	if c == nil {
		return nil, &NotFoundError{Op: "edges", ID: id}
	}
	c.mu.Lock()
	out := make([]Neighbor, 0, len(c.edges))
	for nid, e := range c.edges {
		out = append(out, Neighbor{ID: nid, Edge: e})
	}
	c.mu.Unlock()
	return out, nil
}

// Len returns the number of cells.
func (s *Store) Len() int {
	t := s.tbl.Load()
	n := 0
	for i := range t.shards {
		sh := &t.shards[i]
		sh.mu.RLock()
		n += len(sh.cells)
		sh.mu.RUnlock()
	}
	return n
}

// EdgeCount returns the number of distinct directed edges.
func (s *Store) EdgeCount() int {
	n := 0
	s.forEach(func(c *cellEntry) {
		c.mu.Lock()
		n += len(c.edges)
		c.mu.Unlock()
	})
	return n
}

func (s *Store) forEach(fn func(c *cellEntry)) {
	t := s.tbl.Load()
	var entries []*cellEntry
	for i := range t.shards {
		sh := &t.shards[i]
		sh.mu.RLock()
		for _, c := range sh.cells {
			entries = append(entries, c)
		}
		sh.mu.RUnlock()
	}
	for _, c := range entries {
		fn(c)
	}
}

// CellSnapshot is a cell together with a copy of its edges.
type CellSnapshot struct {
	Cell
	Edges []Neighbor
}

// Snapshot is a point-in-time copy of the grid, ordered by cell id. Cells and
// edges inserted while the copy is taken may or may not be included.
type Snapshot struct {
	TakenAt time.Time
	Cells   []CellSnapshot
}

// EdgeCount returns the number of edges in the snapshot.
func (s Snapshot) EdgeCount() int {
	n := 0
	for _, c := range s.Cells {
		n += len(c.Edges)
	}
	return n
}

// Snapshot copies every cell and edge.
func (s *Store) Snapshot() Snapshot {
	snap := Snapshot{TakenAt: time.Now()}
	s.forEach(func(c *cellEntry) {
		c.mu.Lock()
		cs := CellSnapshot{
			Cell: Cell{
				ID:     c.id,
				CoordX: c.coordX,
				CoordY: c.coordY,
				PointX: c.pointX,
				PointY: c.pointY,
				Degree: len(c.edges),
			},
			Edges: make([]Neighbor, 0, len(c.edges)),
		}
		for nid, e := range c.edges {
			cs.Edges = append(cs.Edges, Neighbor{ID: nid, Edge: e})
		}
		c.mu.Unlock()
		sort.Slice(cs.Edges, func(i, j int) bool { return cs.Edges[i].ID < cs.Edges[j].ID })
		snap.Cells = append(snap.Cells, cs)
	})
	sort.Slice(snap.Cells, func(i, j int) bool { return snap.Cells[i].ID < snap.Cells[j].ID })
	return snap
}
