package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for the point boundary and the host loop.
var (
	// ErrInvalidState indicates a state vector containing NaN or Inf.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrParameterBounds indicates a value outside the point's valid range.
	ErrParameterBounds = errors.New("dynamo: parameter out of valid bounds")

	// ErrUnknownPoint indicates a point ID that is not registered.
	ErrUnknownPoint = errors.New("dynamo: unknown point")

	// ErrReadOnly indicates a write to a state point.
	ErrReadOnly = errors.New("dynamo: point is read-only")

	// ErrTypeMismatch indicates a value whose type does not fit the point.
	ErrTypeMismatch = errors.New("dynamo: value type does not match point")

	// ErrInvalidCycle indicates a non-positive cycle period.
	ErrInvalidCycle = errors.New("dynamo: invalid cycle period")
)

// PointError wraps a rejected write with the point and value involved.
type PointError struct {
	Point   string
	Value   any
	Wrapped error
}

func (e *PointError) Error() string {
	return fmt.Sprintf("%s = %v: %v", e.Point, e.Value, e.Wrapped)
}

func (e *PointError) Unwrap() error {
	return e.Wrapped
}
