package solver

import (
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/notargets/gochem/chemistry"
	"github.com/notargets/gochem/utils"
)

var logger = slog.Default()

// SetLogger replaces the package logger
func SetLogger(l *slog.Logger) { logger = l }

// Solver finds the equilibrium configuration of an EquilibriumSystem by
// Newton iteration, swapping species in and out of the basis as minerals
// precipitate or dissolve and as solutes vanish.
//
// A Solver holds no state between calls other than its configuration, so a
// copy may be handed to each worker of a parallel reactor.
type Solver struct {
	cfg     Config
	prevent map[string]bool
}

// Result reports a successful solve
type Result struct {
	Iterations int     // Newton iterations over all basis attempts
	Residual   float64 // final L1 residual
	Swaps      int
}

func NewSolver(cfg Config) (sv *Solver, err error) {
	if err = cfg.Validate(); err != nil {
		return
	}
	sv = &Solver{
		cfg:     cfg,
		prevent: make(map[string]bool, len(cfg.PreventPrecipitation)),
	}
	sv.cfg.PreventPrecipitation = append([]string(nil), cfg.PreventPrecipitation...)
	for _, name := range cfg.PreventPrecipitation {
		sv.prevent[name] = true
	}
	return
}

// Copy returns an independent Solver; the ramp may be changed on either
// without affecting the other
func (sv *Solver) Copy() *Solver {
	c := *sv
	return &c
}

func (sv *Solver) Config() Config { return sv.cfg }

func (sv *Solver) MaxInitialResidual() float64 { return sv.cfg.MaxInitialResidual }

func (sv *Solver) SetMaxInitialResidual(v float64) error {
	if !(v > 0) {
		return fmt.Errorf("%w: max_initial_residual must be positive", ErrInvalidConfig)
	}
	sv.cfg.MaxInitialResidual = v
	return nil
}

func (sv *Solver) RampMaxIonicStrength() int { return sv.cfg.RampMaxIonicStrength }

// SetRampMaxIonicStrength changes the number of iterations over which the
// ionic strength bound is ramped. It must not be called during a solve.
func (sv *Solver) SetRampMaxIonicStrength(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: ramp_max_ionic_strength must not be negative", ErrInvalidConfig)
	}
	if n > sv.cfg.MaxIter {
		return fmt.Errorf("%w: ramp_max_ionic_strength must be less than max_iter", ErrInvalidConfig)
	}
	sv.cfg.RampMaxIonicStrength = n
	return nil
}

// SolveSystem brings sys to equilibrium with moleAdditions, the moles of each
// basis and kinetic species added over dt, and their derivatives
// dMoleAdditions. On success the additions are part of the system's bulk
// composition and the basis slice of moleAdditions is zero.
//
// Failures wrapping ErrSolveFailed leave sys partially updated: restore it
// from a snapshot before retrying.
func (sv *Solver) SolveSystem(sys EquilibriumSystem, trace io.Writer, dt float64,
	moleAdditions []float64, dMoleAdditions utils.Matrix) (res Result, err error) {
	var (
		cfg      = sv.cfg
		mgd      = sys.ModelDatabase()
		nb       = mgd.NumBasis()
		nTot     = nb + mgd.NumKinetic()
		residual float64
		res0Rel  float64
	)
	if trace == nil {
		trace = io.Discard
	}
	if len(moleAdditions) != nTot {
		return res, fmt.Errorf("mole additions have %d entries, need %d", len(moleAdditions), nTot)
	}
	if nr, nc := dMoleAdditions.Dims(); nr != nTot || nc != nTot {
		return res, fmt.Errorf("mole addition derivatives are %dx%d, need %dx%d", nr, nc, nTot, nTot)
	}
	var (
		input  = utils.CopyF64(moleAdditions)
		dInput = dMoleAdditions.Copy()
	)
	for {
		var (
			n   = sys.NumInAlgebraicSystem()
			r   = make([]float64, n)
			jac = utils.NewMatrix(n, n)
		)
		sv.setIonicStrengthBound(sys.IonicStrengthCalculator(), 0)
		residual = sv.kineticResidual(sys, dt, r, input, dInput, moleAdditions, dMoleAdditions)
		if residual > cfg.MaxInitialResidual {
			maxTries := sys.NumBasisInAlgebraicSystem() *
				int(math.Ceil(math.Log(residual/cfg.MaxInitialResidual)/math.Log(1.1)))
			for tries := 0; residual > cfg.MaxInitialResidual && tries < maxTries; tries++ {
				if !sv.reduceInitialResidual(sys, dt, r, &residual, input, dInput, moleAdditions, dMoleAdditions) {
					break
				}
			}
			fmt.Fprintf(trace, "initial residual reduced to |R| = %g\n", residual)
		}
		res0Rel = residual * cfg.RelTol
		iter := 0
		for ((residual >= res0Rel && residual >= cfg.AbsTol) && iter < cfg.MaxIter) ||
			iter < cfg.RampMaxIonicStrength {
			iter++
			res.Iterations++
			sys.ComputeJacobian(r, jac, moleAdditions, dMoleAdditions)
			delta, lerr := jac.LUSolve(r)
			if lerr != nil || utils.IsNan(delta) {
				return res, &SolveError{Kind: ErrSingularJacobian, Iterations: res.Iterations,
					Residual: residual, Swaps: res.Swaps}
			}
			values := underrelax(sys.AlgebraicVariableValues(), delta)
			sv.setIonicStrengthBound(sys.IonicStrengthCalculator(), iter)
			if err = sys.SetAlgebraicVariables(values); err != nil {
				logger.Debug("newton update rejected", "error", err)
				return res, &SolveError{Kind: ErrRejectedUpdate, Iterations: res.Iterations,
					Residual: residual, Swaps: res.Swaps}
			}
			if sys.AlterChargeBalanceSpecies(cfg.SwapThreshold) {
				fmt.Fprintf(trace, "changed charge balance species\n")
			}
			if cfg.EvaluateKineticAlways {
				residual = sv.kineticResidual(sys, dt, r, input, dInput, moleAdditions, dMoleAdditions)
			} else {
				residual = computeResidual(sys, r, moleAdditions)
			}
			fmt.Fprintf(trace, "iter = %d |R| = %g\n", iter, residual)
		}
		if notConverged(residual, res0Rel, cfg.AbsTol) {
			logger.Warn("equilibrium solver reached max_iter without converging",
				"max_iter", cfg.MaxIter, "residual", residual)
		}

		for i := 0; i < nb; i++ {
			sys.AddToBulkMoles(i, moleAdditions[i])
		}
		out, in, needed, serr := sv.swapNeeded(sys, residual, res0Rel)
		if serr != nil {
			return res, serr
		}
		if !needed {
			break
		}
		if res.Swaps == cfg.MaxSwapsAllowed {
			return res, &SolveError{Kind: ErrSwapBudgetExhausted, Iterations: res.Iterations,
				Residual: residual, Swaps: res.Swaps}
		}
		// keep the caller's additions in the bulk composition and drop the
		// kinetic contributions, which are recomputed in the new basis
		for i := 0; i < nb; i++ {
			sys.AddToBulkMoles(i, input[i]-moleAdditions[i])
			input[i] = 0
		}
		copy(moleAdditions, input)
		resetDerivatives(dMoleAdditions, dInput)
		if err = sys.PerformSwap(out, in); err != nil {
			return res, fmt.Errorf("%w: %v", ErrNoLegitimateSwap, err)
		}
		res.Swaps++
		fmt.Fprintf(trace, "swap %d: %s replaces %s in the basis\n", res.Swaps, mgd.Basis[out].Name, mgd.Eqm[in].Name)
	}
	res.Residual = residual
	if notConverged(residual, res0Rel, cfg.AbsTol) {
		return res, &SolveError{Kind: ErrNotConverged, Iterations: res.Iterations,
			Residual: residual, Swaps: res.Swaps}
	}
	for i := 0; i < nb; i++ {
		moleAdditions[i] = 0
	}
	sys.UpdateOldWithCurrent(moleAdditions)
	sys.EnforceChargeBalance()
	return
}

// notConverged is also true for a NaN residual
func notConverged(residual, res0Rel, absTol float64) bool {
	return !(residual < res0Rel || residual < absTol)
}

// setIonicStrengthBound ramps the ionic strength bound linearly up to its
// maximum over the first RampMaxIonicStrength iterations
func (sv *Solver) setIonicStrengthBound(is chemistry.IonicStrengthCalculator, iter int) {
	var (
		frac = math.Min(1, float64(iter+1)/float64(sv.cfg.RampMaxIonicStrength+1))
	)
	is.SetMaxIonicStrength(frac * sv.cfg.MaxIonicStrength)
	is.SetMaxStoichiometricIonicStrength(frac * sv.cfg.MaxIonicStrength)
}

// kineticResidual restarts the additions from the caller's input, adds the
// kinetic contributions at the current state and returns the residual
func (sv *Solver) kineticResidual(sys EquilibriumSystem, dt float64, r, input []float64, dInput utils.Matrix,
	moleAdditions []float64, dMoleAdditions utils.Matrix) float64 {
	copy(moleAdditions, input)
	resetDerivatives(dMoleAdditions, dInput)
	sys.AddKineticRates(dt, moleAdditions, dMoleAdditions)
	return computeResidual(sys, r, moleAdditions)
}

func computeResidual(sys EquilibriumSystem, r, moleAdditions []float64) float64 {
	for a := range r {
		r[a] = sys.ResidualComponent(a, moleAdditions)
	}
	return utils.L1Norm(r)
}

func resetDerivatives(dMoleAdditions, dInput utils.Matrix) {
	copy(dMoleAdditions.Data(), dInput.Data())
}

// underrelax applies the Newton step delta to values, shortened so that no
// positive unknown falls below half its current value
func underrelax(values, delta []float64) []float64 {
	var (
		oneOverDelta = 1.
	)
	for i, v := range values {
		if v > 0 {
			if f := 2 * delta[i] / v; f > oneOverDelta {
				oneOverDelta = f
			}
		}
	}
	for i := range values {
		values[i] -= delta[i] / oneOverDelta
	}
	return values
}

// reduceInitialResidual doubles or halves one unknown at a time, largest
// residual first, and keeps the first change that lowers the residual. It
// returns false, with the system unchanged, when no change helps.
func (sv *Solver) reduceInitialResidual(sys EquilibriumSystem, dt float64, r []float64, residual *float64,
	input []float64, dInput utils.Matrix, moleAdditions []float64, dMoleAdditions utils.Matrix) bool {
	var (
		nba    = sys.NumBasisInAlgebraicSystem()
		values = sys.AlgebraicVariableValues()
		median = utils.Median(values[:nba])
		trial  = make([]float64, len(r))
	)
	for _, a := range utils.ArgSortDescendingAbs(r[:nba]) {
		if math.Abs(r[a]) < sv.cfg.MaxInitialResidual {
			return false
		}
		var (
			original   = values[a]
			multiplier = 2.
		)
		if original > median {
			multiplier = 0.5
		}
		for _, m := range []float64{multiplier, 1 / multiplier} {
			values[a] = original * m
			if sys.SetAlgebraicVariables(values) != nil {
				continue
			}
			if res := sv.kineticResidual(sys, dt, trial, input, dInput, moleAdditions, dMoleAdditions); res < *residual {
				copy(r, trial)
				*residual = res
				return true
			}
		}
		// the original values were accepted before, a refusal now ends the reduction
		values[a] = original
		if sys.SetAlgebraicVariables(values) != nil {
			return false
		}
		sv.kineticResidual(sys, dt, trial, input, dInput, moleAdditions, dMoleAdditions)
	}
	return false
}

// swapNeeded decides whether the basis must change, returning the basis
// species to remove and the equilibrium species to replace it. In order:
// a vanishing solute when Newton failed, a consumed mineral, then a
// supersaturated mineral.
func (sv *Solver) swapNeeded(sys EquilibriumSystem, residual, res0Rel float64) (out, in int, needed bool, err error) {
	var (
		mgd         = sys.ModelDatabase()
		molality    = sys.SolventMassAndFreeMolalityAndMineralMoles()
		inAlgebraic = sys.InAlgebraicSystem()
		cb          = sys.ChargeBalanceBasisIndex()
		searcher    = sys.Swapper()
		eqmMolality = sys.EqmMolality()
		ascending   = utils.ArgSortAscending(molality)
	)
	if notConverged(residual, res0Rel, sv.cfg.AbsTol) {
		for _, i := range ascending {
			if i == 0 || i == cb || mgd.Basis[i].IsMineral() || !inAlgebraic[i] {
				continue
			}
			if !(molality[i] < sv.cfg.SwapThreshold) {
				break
			}
			if j, ok := searcher.FindBestEqmSwap(i, mgd, eqmMolality, false, false); ok {
				logger.Info("basis species has very small molality, swapping it out",
					"species", mgd.Basis[i].Name, "molality", molality[i], "replacement", mgd.Eqm[j].Name)
				return i, j, true, nil
			}
		}
	}
	for _, i := range ascending {
		if !mgd.Basis[i].IsMineral() {
			continue
		}
		if molality[i] > 0 {
			break
		}
		j, ok := searcher.FindBestEqmSwap(i, mgd, eqmMolality, false, false)
		if !ok {
			return 0, 0, false, fmt.Errorf("%w: mineral %s has been consumed and no species can replace it",
				ErrNoLegitimateSwap, mgd.Basis[i].Name)
		}
		logger.Info("mineral consumed, swapping it out of the basis",
			"mineral", mgd.Basis[i].Name, "replacement", mgd.Eqm[j].Name)
		return i, j, true, nil
	}
	var (
		si            = sys.SaturationIndices()
		activityKnown = sys.BasisActivityKnown()
	)
	for _, j := range utils.ArgSortDescending(si) {
		if !(si[j] > 0) {
			break
		}
		if !mgd.Eqm[j].IsMineral() || sv.prevent[mgd.Eqm[j].Name] {
			continue
		}
		var (
			best      = -1
			bestScore float64
		)
		for i := 1; i < mgd.NumBasis(); i++ {
			coef := mgd.EqmStoi(j, i)
			if coef == 0 || i == cb || mgd.Basis[i].IsGas() || activityKnown[i] {
				continue
			}
			if score := math.Abs(coef) / molality[i]; best < 0 || score > bestScore {
				best, bestScore = i, score
			}
		}
		if best < 0 {
			return 0, 0, false, fmt.Errorf("%w: mineral %s is supersaturated and no basis species can make way for it",
				ErrNoLegitimateSwap, mgd.Eqm[j].Name)
		}
		logger.Info("mineral supersaturated, swapping it into the basis",
			"mineral", mgd.Eqm[j].Name, "saturation_index", si[j], "replaces", mgd.Basis[best].Name)
		return best, j, true, nil
	}
	return
}
