package grid

import (
	"errors"
	"fmt"
)

// Sentinel errors for graph operations.
var (
	// ErrNotFound is returned when an operation references a cell id that is
	// not in the store, e.g. a query from a point that was never walked or a
	// cell that vanished under a concurrent Reset.
	ErrNotFound = errors.New("cell not found")

	// ErrMalformedInput is returned when a walk's points and lengths do not
	// line up (lengths must be exactly points-1).
	ErrMalformedInput = errors.New("malformed input")
)

// NotFoundError records which cell was missing and for which operation.
type NotFoundError struct {
	Op string
	ID CellID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %v: %s", e.Op, ErrNotFound, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// MalformedInputError reports inconsistent walk list sizes.
type MalformedInputError struct {
	Points  int
	Lengths int
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("walk: %v: %d points with %d lengths (want %d)",
		ErrMalformedInput, e.Points, e.Lengths, max(e.Points-1, 0))
}

func (e *MalformedInputError) Unwrap() error { return ErrMalformedInput }
