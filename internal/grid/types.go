package grid

import "fmt"

const (
	// CellSize is the side of one quantisation bucket in raw point units.
	CellSize = 500
	// SnapRadiusSquared is the squared snapping radius (500 units).
	SnapRadiusSquared = 250000
)

// Point is a raw traversal sample.
type Point struct {
	X, Y int64
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// CellID packs the quantised coordinates of a cell. The high 32 bits hold
// coordX and the low 32 bits hold coordY, both as two's-complement int32.
type CellID uint64

// PackCellID encodes a quantised coordinate pair.
func PackCellID(coordX, coordY int64) CellID {
	return CellID(uint64(uint32(int32(coordX)))<<32 | uint64(uint32(int32(coordY))))
}

// Coords decodes the quantised coordinate pair.
func (id CellID) Coords() (coordX, coordY int64) {
	return int64(int32(uint32(id >> 32))), int64(int32(uint32(id)))
}

func (id CellID) String() string {
	x, y := id.Coords()
	return fmt.Sprintf("cell[%d,%d]", x, y)
}

// Quantise maps a raw point to its own bucket. Division truncates toward zero,
// so bucket 0 spans (-500, 500) on each axis.
func Quantise(p Point) (coordX, coordY int64) {
	return p.X / CellSize, p.Y / CellSize
}

// Edge is the running total of observed traversals from one cell to another.
type Edge struct {
	Length  int64 // cumulative observed length
	Samples int64 // number of observations
}

// Weight is the mean observed length, truncated.
func (e Edge) Weight() int64 {
	if e.Samples == 0 {
		return 0
	}
	return e.Length / e.Samples
}

// Cell is a read-only copy of a graph node.
type Cell struct {
	ID     CellID
	CoordX int64
	CoordY int64
	PointX int64 // reference point: the first point that created the cell
	PointY int64
	Degree int // outgoing edges at the time of the copy
}

// Neighbor is one outgoing edge of a cell.
type Neighbor struct {
	ID   CellID
	Edge Edge
}
