package solver

import (
	"fmt"
)

// Config holds the numerical controls of the equilibrium solver
type Config struct {
	AbsTol                 float64  `json:"abs_tol"`                            // absolute L1 residual tolerance
	RelTol                 float64  `json:"rel_tol"`                            // tolerance relative to the initial residual
	MaxIter                int      `json:"max_iter"`                           // Newton iterations per basis
	MaxInitialResidual     float64  `json:"max_initial_residual"`               // initial residual the guess is reduced below
	SwapThreshold          float64  `json:"swap_threshold"`                     // molality below which a basis species is swapped out
	MaxSwapsAllowed        int      `json:"max_swaps_allowed"`                  // basis swaps per solve
	MaxIonicStrength       float64  `json:"max_ionic_strength"`                 // final ionic strength bound
	RampMaxIonicStrength   int      `json:"ramp_max_ionic_strength_initial"`    // iterations over which the bound is ramped
	RampSubsequent         int      `json:"ramp_max_ionic_strength_subsequent"` // ramp used after the first solve
	EvaluateKineticAlways  bool     `json:"evaluate_kinetic_always"`            // recompute kinetic rates every iteration
	PreventPrecipitation   []string `json:"prevent_precipitation"`              // minerals never swapped into the basis
	StoichiometryTolerance float64  `json:"stoichiometry_tolerance"`            // coefficients below this cannot pivot a swap
	MinInitialMolality     float64  `json:"min_initial_molality"`               // floor for initial guesses
}

// DefaultConfig returns the defaults used when a run description leaves a
// control unset
func DefaultConfig() (c Config) {
	c.AbsTol = 1e-10
	c.RelTol = 1e-200
	c.MaxIter = 100
	c.MaxInitialResidual = 1e3
	c.SwapThreshold = 1e-20
	c.MaxSwapsAllowed = 20
	c.MaxIonicStrength = 3
	c.RampMaxIonicStrength = 20
	c.EvaluateKineticAlways = true
	c.StoichiometryTolerance = 1e-6
	c.MinInitialMolality = 1e-20
	c.RampSubsequent = 0
	return
}

// Validate reports the first inconsistent control
func (c Config) Validate() error {
	switch {
	case c.MaxIter < 0:
		return fmt.Errorf("%w: max_iter must not be negative", ErrInvalidConfig)
	case c.RampMaxIonicStrength < 0 || c.RampSubsequent < 0:
		return fmt.Errorf("%w: ramp_max_ionic_strength must not be negative", ErrInvalidConfig)
	case c.RampMaxIonicStrength > c.MaxIter || c.RampSubsequent > c.MaxIter:
		return fmt.Errorf("%w: ramp_max_ionic_strength must be less than max_iter", ErrInvalidConfig)
	case !(c.MaxInitialResidual > 0):
		return fmt.Errorf("%w: max_initial_residual must be positive", ErrInvalidConfig)
	case c.MaxIonicStrength < 0:
		return fmt.Errorf("%w: max_ionic_strength must not be negative", ErrInvalidConfig)
	case c.AbsTol < 0:
		return fmt.Errorf("%w: abs_tol must not be negative", ErrInvalidConfig)
	case c.RelTol < 0:
		return fmt.Errorf("%w: rel_tol must not be negative", ErrInvalidConfig)
	case c.AbsTol == 0 && c.RelTol == 0:
		return fmt.Errorf("%w: either rel_tol or abs_tol must be positive", ErrInvalidConfig)
	case c.MaxSwapsAllowed < 0:
		return fmt.Errorf("%w: max_swaps_allowed must not be negative", ErrInvalidConfig)
	case c.SwapThreshold < 0:
		return fmt.Errorf("%w: swap_threshold must not be negative", ErrInvalidConfig)
	}
	return nil
}

func (c Config) Print() {
	fmt.Printf("Absolute tolerance = %8.3g, Relative tolerance = %8.3g\n", c.AbsTol, c.RelTol)
	fmt.Printf("Max iterations = %d, Max swaps = %d, Swap threshold = %8.3g\n",
		c.MaxIter, c.MaxSwapsAllowed, c.SwapThreshold)
	fmt.Printf("Max initial residual = %8.3g\n", c.MaxInitialResidual)
	fmt.Printf("Max ionic strength = %8.3g, ramped over %d iterations (%d after the first solve)\n",
		c.MaxIonicStrength, c.RampMaxIonicStrength, c.RampSubsequent)
	if len(c.PreventPrecipitation) != 0 {
		fmt.Printf("Minerals prevented from precipitating: %v\n", c.PreventPrecipitation)
	}
}
