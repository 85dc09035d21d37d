package wire

import (
	"errors"
	"fmt"

	"github.com/banshee-data/gridpath/internal/grid"
)

// ErrUnknownRequest is returned when a Request carries none of the four
// message kinds.
var ErrUnknownRequest = errors.New("request has no message set")

// Location is a point on the wire.
type Location struct {
	X int32
	Y int32
}

// Walk is an ordered trace with the observed length of each leg.
type Walk struct {
	Locations []Location
	Lengths   []uint32
}

// OneToOne asks for the shortest path between two locations.
type OneToOne struct {
	Origin      Location
	Destination Location
}

// OneToAll asks for the total shortest-path length from one location.
type OneToAll struct {
	Origin Location
}

// Reset clears the server's graph.
type Reset struct{}

// Request holds exactly one of its fields.
type Request struct {
	Walk     *Walk
	OneToOne *OneToOne
	OneToAll *OneToAll
	Reset    *Reset
}

// Status is the Response status enum.
type Status int32

const (
	StatusUndefined Status = 0
	StatusOK        Status = 1
	StatusError     Status = 2
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusError:
		return "ERROR"
	default:
		return "UNDEFINED"
	}
}

// Response is sent for every request.
type Response struct {
	Status             Status
	ErrMsg             string
	ShortestPathLength uint64
	TotalLength        uint64
}

func (l Location) point() grid.Point {
	return grid.Point{X: int64(l.X), Y: int64(l.Y)}
}

// ToEngine converts a decoded request into the engine's request type.
func (r *Request) ToEngine() (grid.Request, error) {
	switch {
	case r.Walk != nil:
		pts := make([]grid.Point, len(r.Walk.Locations))
		for i, l := range r.Walk.Locations {
			pts[i] = l.point()
		}
		lengths := make([]int64, len(r.Walk.Lengths))
		for i, l := range r.Walk.Lengths {
			lengths[i] = int64(l)
		}
		return grid.WalkRequest{Points: pts, Lengths: lengths}, nil
	case r.OneToOne != nil:
		return grid.OneToOneRequest{
			Origin:      r.OneToOne.Origin.point(),
			Destination: r.OneToOne.Destination.point(),
		}, nil
	case r.OneToAll != nil:
		return grid.OneToAllRequest{Origin: r.OneToAll.Origin.point()}, nil
	case r.Reset != nil:
		return grid.ResetRequest{}, nil
	default:
		return nil, ErrUnknownRequest
	}
}

// Kind names the message set in r, or "" when none is.
func (r *Request) Kind() grid.Kind {
	switch {
	case r.Walk != nil:
		return grid.KindWalk
	case r.OneToOne != nil:
		return grid.KindOneToOne
	case r.OneToAll != nil:
		return grid.KindOneToAll
	case r.Reset != nil:
		return grid.KindReset
	default:
		return ""
	}
}

// NewResponse builds the reply to a dispatched request.
func NewResponse(res grid.Result, err error) *Response {
	if err != nil {
		return &Response{Status: StatusError, ErrMsg: err.Error()}
	}
	resp := &Response{Status: StatusOK}
	switch res.Kind {
	case grid.KindOneToOne:
		resp.ShortestPathLength = uint64(res.Value)
	case grid.KindOneToAll:
		resp.TotalLength = uint64(res.Value)
	}
	return resp
}

// ErrorResponse builds an error reply.
func ErrorResponse(format string, args ...any) *Response {
	return &Response{Status: StatusError, ErrMsg: fmt.Sprintf(format, args...)}
}
