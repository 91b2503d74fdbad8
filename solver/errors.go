package solver

import (
	"errors"
	"fmt"
)

// ErrSolveFailed is the root of every failure a caller may retry with a
// smaller step or another initial condition. Test with IsRecoverable.
var ErrSolveFailed = errors.New("equilibrium solve failed")

var (
	// ErrNotConverged: the residual met neither tolerance within max_iter
	ErrNotConverged = fmt.Errorf("%w: residual did not converge", ErrSolveFailed)

	// ErrSwapBudgetExhausted: a further basis swap was needed after max_swaps_allowed
	ErrSwapBudgetExhausted = fmt.Errorf("%w: maximum number of basis swaps reached", ErrSolveFailed)

	// ErrSingularJacobian: the Newton step could not be computed
	ErrSingularJacobian = fmt.Errorf("%w: singular or non-finite jacobian", ErrSolveFailed)

	// ErrRejectedUpdate: the system refused the values of a Newton step
	ErrRejectedUpdate = fmt.Errorf("%w: newton update rejected", ErrSolveFailed)
)

var (
	// ErrInvalidConfig indicates a solver configuration that can never work
	ErrInvalidConfig = errors.New("invalid solver configuration")

	// ErrNoLegitimateSwap indicates a model in which a consumed or
	// supersaturated mineral has no species to exchange with
	ErrNoLegitimateSwap = errors.New("no legitimate basis swap")
)

// SolveError carries the state of a failed solve
type SolveError struct {
	Kind       error
	Iterations int
	Residual   float64
	Swaps      int
}

func (e *SolveError) Error() string {
	return fmt.Sprintf("%v after %d iterations and %d swaps, |R| = %g",
		e.Kind, e.Iterations, e.Swaps, e.Residual)
}

func (e *SolveError) Unwrap() error {
	return e.Kind
}

// IsRecoverable reports whether err asks for a retry rather than an abort
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrSolveFailed)
}
