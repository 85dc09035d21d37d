package grid

import (
	"math"
	"sync/atomic"

	"gonum.org/v1/gonum/stat"
)

// Stats counts engine activity since the process started. Counters survive
// Reset; live cell and edge totals come from the Store.
type Stats struct {
	walks     atomic.Int64
	oneToOne  atomic.Int64
	oneToAll  atomic.Int64
	resets    atomic.Int64
	failures  atomic.Int64
	locations atomic.Int64

	cellsCreated atomic.Int64
	edgesCreated atomic.Int64
	edgeSamples  atomic.Int64
}

// StatsSnapshot is a copy of the counters.
type StatsSnapshot struct {
	Walks        int64 `json:"walks"`
	OneToOne     int64 `json:"one_to_one"`
	OneToAll     int64 `json:"one_to_all"`
	Resets       int64 `json:"resets"`
	Failures     int64 `json:"failures"`
	Locations    int64 `json:"locations"`
	CellsCreated int64 `json:"cells_created"`
	EdgesCreated int64 `json:"edges_created"`
	EdgeSamples  int64 `json:"edge_samples"`
}

// Snapshot copies the counters. Individual fields are read atomically but not
// as a group.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Walks:        s.walks.Load(),
		OneToOne:     s.oneToOne.Load(),
		OneToAll:     s.oneToAll.Load(),
		Resets:       s.resets.Load(),
		Failures:     s.failures.Load(),
		Locations:    s.locations.Load(),
		CellsCreated: s.cellsCreated.Load(),
		EdgesCreated: s.edgesCreated.Load(),
		EdgeSamples:  s.edgeSamples.Load(),
	}
}

// Bounds is the quantised bounding box of the live cells.
type Bounds struct {
	MinCoordX int64 `json:"min_coord_x"`
	MaxCoordX int64 `json:"max_coord_x"`
	MinCoordY int64 `json:"min_coord_y"`
	MaxCoordY int64 `json:"max_coord_y"`
}

// Summary describes the live grid.
type Summary struct {
	Cells          int           `json:"cells"`
	Edges          int           `json:"edges"`
	Samples        int64         `json:"samples"`
	Bounds         Bounds        `json:"bounds"`
	MeanEdgeWeight float64       `json:"mean_edge_weight"`
	StdDevWeight   float64       `json:"stddev_edge_weight"`
	MaxOutDegree   int           `json:"max_out_degree"`
	Counters       StatsSnapshot `json:"counters"`
}

// Summarise computes a Summary from a snapshot.
func Summarise(snap Snapshot, counters StatsSnapshot) Summary {
	sum := Summary{Cells: len(snap.Cells), Counters: counters}
	if len(snap.Cells) == 0 {
		return sum
	}

	b := Bounds{
		MinCoordX: math.MaxInt64, MaxCoordX: math.MinInt64,
		MinCoordY: math.MaxInt64, MaxCoordY: math.MinInt64,
	}
	weights := make([]float64, 0, len(snap.Cells))
	for _, c := range snap.Cells {
		b.MinCoordX = min(b.MinCoordX, c.CoordX)
		b.MaxCoordX = max(b.MaxCoordX, c.CoordX)
		b.MinCoordY = min(b.MinCoordY, c.CoordY)
		b.MaxCoordY = max(b.MaxCoordY, c.CoordY)
		sum.MaxOutDegree = max(sum.MaxOutDegree, len(c.Edges))
		for _, n := range c.Edges {
			weights = append(weights, float64(n.Edge.Weight()))
			sum.Samples += n.Edge.Samples
		}
	}
	sum.Bounds = b
	sum.Edges = len(weights)

	switch len(weights) {
	case 0:
	case 1:
		sum.MeanEdgeWeight = weights[0]
	default:
		sum.MeanEdgeWeight, sum.StdDevWeight = stat.MeanStdDev(weights, nil)
	}
	return sum
}

// Summary summarises the store's current contents.
func (s *Store) Summary() Summary {
	return Summarise(s.Snapshot(), s.stats.Snapshot())
}
