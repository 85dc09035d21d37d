package grid

import (
	"context"
	"fmt"
)

// Kind names a request type.
type Kind string

const (
	KindWalk     Kind = "walk"
	KindOneToOne Kind = "one_to_one"
	KindOneToAll Kind = "one_to_all"
	KindReset    Kind = "reset"
)

// Request is one of WalkRequest, OneToOneRequest, OneToAllRequest or
// ResetRequest.
type Request interface {
	Kind() Kind
}

// WalkRequest ingests a trace. Lengths[i] is the observed length between
// Points[i] and Points[i+1].
type WalkRequest struct {
	Points  []Point
	Lengths []int64
}

// OneToOneRequest asks for the shortest distance between two points.
type OneToOneRequest struct {
	Origin      Point
	Destination Point
}

// OneToAllRequest asks for the sum of shortest distances from a point to
// every reachable cell.
type OneToAllRequest struct {
	Origin Point
}

// ResetRequest clears the grid.
type ResetRequest struct{}

func (WalkRequest) Kind() Kind     { return KindWalk }
func (OneToOneRequest) Kind() Kind { return KindOneToOne }
func (OneToAllRequest) Kind() Kind { return KindOneToAll }
func (ResetRequest) Kind() Kind    { return KindReset }

// Result is the outcome of a dispatched request. Walk and Reset carry no
// value.
type Result struct {
	Kind     Kind
	Value    int64
	HasValue bool
}

// Engine answers the four request kinds against one Store. It is safe for
// concurrent use by any number of sessions without external locking.
type Engine struct {
	store  *Store
	finder *PathFinder
}

// NewEngine returns an Engine over store.
func NewEngine(store *Store) *Engine {
	return &Engine{store: store, finder: NewPathFinder(store)}
}

// Store returns the underlying store.
func (e *Engine) Store() *Store {
	return e.store
}

// Walk ingests consecutive point pairs in order: both cells are resolved and
// created, then the origin->destination edge is accumulated. Pairs committed
// before an error stay committed. A walk with no legs changes nothing.
func (e *Engine) Walk(ctx context.Context, points []Point, lengths []int64) error {
	e.store.stats.walks.Add(1)
	if len(points) == 0 && len(lengths) == 0 {
		return nil
	}
	if len(lengths) != len(points)-1 {
		e.store.stats.failures.Add(1)
		return &MalformedInputError{Points: len(points), Lengths: len(lengths)}
	}
	if len(lengths) == 0 {
		return nil
	}

	origin := e.store.Insert(points[0])
	for i, length := range lengths {
		if err := ctx.Err(); err != nil {
			return err
		}
		dest := e.store.Insert(points[i+1])
		if _, err := e.store.AccumulateEdge(origin, dest, length); err != nil {
			e.store.stats.failures.Add(1)
			return fmt.Errorf("walk leg %d: %w", i, err)
		}
		origin = dest
	}
	return nil
}

// OneToOne returns the shortest distance from origin's cell to destination's
// cell.
func (e *Engine) OneToOne(ctx context.Context, origin, destination Point) (int64, error) {
	e.store.stats.oneToOne.Add(1)
	from := e.store.ResolveCellID(origin)
	to := e.store.ResolveCellID(destination)
	d, err := e.finder.Search(ctx, from, to, PointToPoint)
	if err != nil {
		e.store.stats.failures.Add(1)
	}
	return d, err
}

// OneToAll returns the sum of shortest distances from origin's cell to every
// reachable cell.
func (e *Engine) OneToAll(ctx context.Context, origin Point) (int64, error) {
	e.store.stats.oneToAll.Add(1)
	from := e.store.ResolveCellID(origin)
	d, err := e.finder.Search(ctx, from, from, PointToAll)
	if err != nil {
		e.store.stats.failures.Add(1)
	}
	return d, err
}

// Reset clears the grid.
func (e *Engine) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.store.stats.resets.Add(1)
	e.store.Clear()
	return nil
}

// Dispatch routes req to the matching operation.
func (e *Engine) Dispatch(ctx context.Context, req Request) (Result, error) {
	switch r := req.(type) {
	case WalkRequest:
		return Result{Kind: KindWalk}, e.Walk(ctx, r.Points, r.Lengths)
	case OneToOneRequest:
		d, err := e.OneToOne(ctx, r.Origin, r.Destination)
		return Result{Kind: KindOneToOne, Value: d, HasValue: err == nil}, err
	case OneToAllRequest:
		d, err := e.OneToAll(ctx, r.Origin)
		return Result{Kind: KindOneToAll, Value: d, HasValue: err == nil}, err
	case ResetRequest:
		return Result{Kind: KindReset}, e.Reset(ctx)
	default:
		return Result{}, fmt.Errorf("dispatch: unsupported request %T", req)
	}
}
