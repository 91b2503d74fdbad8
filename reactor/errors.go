package reactor

import (
	"errors"
	"fmt"
)

// ErrStepTooSmall ends a run: the time step was cut below dt_min and the
// solve still failed
var ErrStepTooSmall = errors.New("time step reduced below dt_min")

// StepError reports the node and step size of a run-ending failure. It
// unwraps to ErrStepTooSmall only, so the solver failure it carries is not
// mistaken for a retryable one.
type StepError struct {
	Node     int
	Position float64
	Dt       float64
	Wrapped  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("geochemistry solve failed with dt = %g at node %d (position %g): %v",
		e.Dt, e.Node, e.Position, e.Wrapped)
}

func (e *StepError) Unwrap() error { return ErrStepTooSmall }
