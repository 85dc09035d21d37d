package grid

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStore_RoundsShardsToPowerOfTwo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want int
	}{
		{0, DefaultShardCount},
		{-3, DefaultShardCount},
		{1, 1},
		{3, 4},
		{64, 64},
		{100, 128},
	}
	for _, tc := range tests {
		s := NewStore(StoreConfig{Shards: tc.in})
		assert.Equal(t, tc.want, s.shards, "shards=%d", tc.in)
		assert.Len(t, s.tbl.Load().shards, tc.want)
	}
}

func TestEnsureCell_FirstWriterWins(t *testing.T) {
	t.Parallel()
	s := NewStore(DefaultStoreConfig())
	id := PackCellID(0, 0)

	c, created := s.EnsureCell(Point{10, 20}, id)
	require.True(t, created)
	assert.Equal(t, int64(10), c.PointX)

	c, created = s.EnsureCell(Point{30, 40}, id)
	assert.False(t, created)
	assert.Equal(t, int64(10), c.PointX)
	assert.Equal(t, int64(20), c.PointY)

	stored, ok := s.Cell(id)
	require.True(t, ok)
	assert.Equal(t, Point{10, 20}, Point{stored.PointX, stored.PointY})
	assert.Equal(t, 1, s.Len())
}

func TestEnsureCell_CoordinatesComeFromID(t *testing.T) {
	t.Parallel()
	s := NewStore(DefaultStoreConfig())

	c, _ := s.EnsureCell(Point{-600, 1200}, PackCellID(-1, 2))
	assert.Equal(t, int64(-1), c.CoordX)
	assert.Equal(t, int64(2), c.CoordY)
}

func TestEnsureCell_ConcurrentCreatesKeepOneReferencePoint(t *testing.T) {
	t.Parallel()
	s := NewStore(StoreConfig{Shards: 4})
	id := PackCellID(5, 5)

	const writers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, ok := s.EnsureCell(Point{2500 + int64(i), 2500}, id); ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, int64(1), s.Stats().Snapshot().CellsCreated)
}

func TestAccumulateEdge_RunningAverage(t *testing.T) {
	t.Parallel()
	s := NewStore(DefaultStoreConfig())
	a, b := PackCellID(0, 0), PackCellID(1, 0)
	s.EnsureCell(Point{0, 0}, a)
	s.EnsureCell(Point{500, 0}, b)

	_, err := s.AccumulateEdge(a, b, 10)
	require.NoError(t, err)
	e, err := s.AccumulateEdge(a, b, 20)
	require.NoError(t, err)

	assert.Equal(t, Edge{Length: 30, Samples: 2}, e)
	assert.Equal(t, int64(15), e.Weight())

	stored, ok := s.Edge(a, b)
	require.True(t, ok)
	assert.Equal(t, e, stored)

	_, ok = s.Edge(b, a)
	assert.False(t, ok, "reverse direction is only created by its own traversal")
}

func TestAccumulateEdge_MissingOrigin(t *testing.T) {
	t.Parallel()
	s := NewStore(DefaultStoreConfig())

	_, err := s.AccumulateEdge(PackCellID(1, 1), PackCellID(2, 2), 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, PackCellID(1, 1), nf.ID)
}

func TestAccumulateEdge_ConcurrentSameEdgeLosesNoUpdates(t *testing.T) {
	t.Parallel()
	s := NewStore(DefaultStoreConfig())
	a, b := PackCellID(0, 0), PackCellID(0, 1)
	s.EnsureCell(Point{0, 0}, a)
	s.EnsureCell(Point{0, 500}, b)

	const workers, perWorker = 32, 100
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				if _, err := s.AccumulateEdge(a, b, 3); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	e, ok := s.Edge(a, b)
	require.True(t, ok)
	assert.Equal(t, int64(workers*perWorker), e.Samples)
	assert.Equal(t, int64(3*workers*perWorker), e.Length)
	assert.Equal(t, int64(3), e.Weight())
}

func TestClear_RemovesEverything(t *testing.T) {
	t.Parallel()
	s := NewStore(DefaultStoreConfig())
	a := s.Insert(Point{0, 0})
	b := s.Insert(Point{5000, 0})
	_, err := s.AccumulateEdge(a, b, 7)
	require.NoError(t, err)

	s.Clear()

	assert.Zero(t, s.Len())
	assert.Zero(t, s.EdgeCount())
	_, ok := s.Cell(a)
	assert.False(t, ok)
	_, err = s.Edges(a)
	assert.ErrorIs(t, err, ErrNotFound)

	// Counters are cumulative and survive the reset.
	assert.Equal(t, int64(2), s.Stats().Snapshot().CellsCreated)
}

func TestSnapshot_SortedCopy(t *testing.T) {
	t.Parallel()
	s := NewStore(StoreConfig{Shards: 2})
	a := s.Insert(Point{5000, 0})
	b := s.Insert(Point{0, 0})
	c := s.Insert(Point{0, 5000})
	for _, leg := range []struct {
		from, to CellID
		l        int64
	}{{a, b, 4}, {a, c, 6}, {b, c, 2}, {a, b, 8}} {
		_, err := s.AccumulateEdge(leg.from, leg.to, leg.l)
		require.NoError(t, err)
	}

	snap := s.Snapshot()
	require.Len(t, snap.Cells, 3)
	assert.Equal(t, 3, snap.EdgeCount())
	assert.Equal(t, 3, s.EdgeCount())

	ids := []CellID{snap.Cells[0].ID, snap.Cells[1].ID, snap.Cells[2].ID}
	want := []CellID{b, c, a} // (0,0) < (0,10) < (10,0) once packed
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("snapshot order mismatch (-want +got):\n%s", diff)
	}

	aEdges := snap.Cells[2].Edges
	wantEdges := []Neighbor{
		{ID: b, Edge: Edge{Length: 12, Samples: 2}},
		{ID: c, Edge: Edge{Length: 6, Samples: 1}},
	}
	if diff := cmp.Diff(wantEdges, aEdges); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, snap.Cells[2].Degree)
}
