package grid

// neighbourOffsets is the fixed probe order for snapping. The point's own
// bucket is not probed; it is the fallback.
var neighbourOffsets = [8][2]int64{
	{-1, -1},
	{-1, 0},
	{-1, 1},
	{0, -1},
	{0, 1},
	{1, -1},
	{1, 0},
	{1, 1},
}

// ResolveCellID maps p to a cell id against the current grid. A point snaps
// into an adjacent bucket when that bucket's cell has its reference point
// within the snapping radius; the first such neighbour in probe order wins.
// Otherwise the point's own bucket id is returned, whether or not a cell
// exists there yet. ResolveCellID never mutates the store.
func (s *Store) ResolveCellID(p Point) CellID {
	t := s.tbl.Load()
	probableX, probableY := Quantise(p)

	for _, off := range neighbourOffsets {
		id := PackCellID(probableX+off[0], probableY+off[1])
		c := t.lookup(id)
		if c == nil {
			continue
		}
		dx := p.X - c.pointX
		dy := p.Y - c.pointY
		if dx*dx+dy*dy <= SnapRadiusSquared {
			return id
		}
	}

	return PackCellID(probableX, probableY)
}

// Insert resolves p and ensures its cell exists, returning the cell id.
func (s *Store) Insert(p Point) CellID {
	id := s.ResolveCellID(p)
	s.EnsureCell(p, id)
	s.stats.locations.Add(1)
	return id
}
