// Package grid owns the walk graph: the spatial index that snaps raw points
// into cells, the concurrent store of cells and running-average edges, and
// the shortest-path search over it.
//
// Responsibilities: cell id packing, neighbour snapping, idempotent cell
// creation, edge accumulation, Dijkstra in point-to-point and point-to-all
// modes, and request dispatch.
// Key types: Store, Cell, Edge, Engine.
//
// Dependency rule: grid never imports the wire codec or any network code.
// Callers decode requests first and hand the engine plain values.
package grid
