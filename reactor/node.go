package reactor

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/notargets/gochem/chemistry"
	"github.com/notargets/gochem/database"
	"github.com/notargets/gochem/solver"
	"github.com/notargets/gochem/types"
	"github.com/notargets/gochem/utils"
)

// Source adds a basis, equilibrium or kinetic species at Rate mol/s. A
// negative rate removes it. Equilibrium species are added as their basis
// components.
type Source struct {
	Species string `json:"species"`
	Rate    Series `json:"rate"`
}

type ControlledActivity struct {
	Species string `json:"species"`
	Value   Series `json:"value"`
}

// FixedActivityRemoval turns the activity or fugacity constraint of Species
// into a bulk constraint at Time
type FixedActivityRemoval struct {
	Species string  `json:"species"`
	Time    float64 `json:"time"`
}

// TimeDependentConfig describes what happens to a batch of fluid over time
type TimeDependentConfig struct {
	Mode types.ReactorMode
	Step TimeStepControl
	// Temperature of the fluid or, while species are added, of the added
	// species. Empty keeps the current temperature.
	Temperature         Series
	CloseTime           float64 // the system is closed from this time on
	RemoveFixedActivity []FixedActivityRemoval
	ControlledActivity  []ControlledActivity
	Sources             []Source
}

func DefaultTimeDependentConfig() TimeDependentConfig {
	return TimeDependentConfig{
		Step:      DefaultTimeStepControl(),
		CloseTime: math.Inf(1),
	}
}

// prepare fits every series and checks the species named against mgd
func (cfg *TimeDependentConfig) prepare(mgd *database.ModelDatabase) (err error) {
	if err = cfg.Step.Validate(); err != nil {
		return
	}
	if !cfg.Temperature.IsEmpty() {
		if err = cfg.Temperature.fit(); err != nil {
			return fmt.Errorf("temperature: %w", err)
		}
	}
	for i := range cfg.ControlledActivity {
		ca := &cfg.ControlledActivity[i]
		if err = ca.Value.fit(); err != nil {
			return fmt.Errorf("controlled activity of %s: %w", ca.Species, err)
		}
		if _, ok := mgd.BasisIndex(ca.Species); !ok {
			logger.Warn("controlled activity species is not in the basis and will be ignored until it is",
				"species", ca.Species)
		}
	}
	for _, rm := range cfg.RemoveFixedActivity {
		i, ok := mgd.BasisIndex(rm.Species)
		if !ok {
			return fmt.Errorf("cannot remove the fixed activity of %s: not a basis species", rm.Species)
		}
		if i == 0 {
			return fmt.Errorf("cannot remove the fixed activity of water")
		}
	}
	return prepareSources(mgd, cfg.Sources)
}

func prepareSources(mgd *database.ModelDatabase, sources []Source) (err error) {
	for i := range sources {
		src := &sources[i]
		if err = src.Rate.fit(); err != nil {
			return fmt.Errorf("source %s: %w", src.Species, err)
		}
		_, isBasis := mgd.BasisIndex(src.Species)
		_, isEqm := mgd.EqmIndex(src.Species)
		_, isKin := mgd.KinIndex(src.Species)
		if !isBasis && !isEqm && !isKin {
			return fmt.Errorf("source species %s is not in the model", src.Species)
		}
	}
	return
}

// sourceRates returns the rate of change of each basis then kinetic species.
// Names are looked up at every call because swaps move species in and out
// of the basis.
func sourceRates(mgd *database.ModelDatabase, sources []Source, t float64) (rates []float64) {
	var (
		nb = mgd.NumBasis()
	)
	rates = make([]float64, nb+mgd.NumKinetic())
	for _, src := range sources {
		rate := src.Rate.At(t)
		if i, ok := mgd.BasisIndex(src.Species); ok {
			rates[i] += rate
		} else if j, ok := mgd.EqmIndex(src.Species); ok {
			for i := 0; i < nb; i++ {
				rates[i] += mgd.EqmStoi(j, i) * rate
			}
		} else if k, ok := mgd.KinIndex(src.Species); ok {
			rates[nb+k] += rate
		}
	}
	return
}

// node is one batch of fluid and the bookkeeping of its driver
type node struct {
	index    int
	position float64
	sys      *chemistry.System
	closed   bool
	removed  []bool
	prevT    float64
	dumped   map[string]float64
	output   bytes.Buffer
	result   solver.Result
	attempts int
}

func newNode(index int, position float64, sys *chemistry.System, cfg *TimeDependentConfig) *node {
	return &node{
		index:    index,
		position: position,
		sys:      sys,
		removed:  make([]bool, len(cfg.RemoveFixedActivity)),
		prevT:    sys.Temperature(),
		dumped:   make(map[string]float64),
	}
}

// solve brings the node to equilibrium with rates applied over dt
func (n *node) solve(sv *solver.Solver, dt float64, rates []float64) (err error) {
	var (
		nTot = len(rates)
		add  = make([]float64, nTot)
		dadd = utils.NewMatrix(nTot, nTot)
	)
	for i, r := range rates {
		add[i] = r * dt
	}
	res, err := sv.SolveSystem(n.sys, &n.output, dt, add, dadd)
	if err == nil {
		n.result = res
	}
	return
}

// advance covers dt in sub-steps, giving the node's context to a failure.
// prepare is called before every attempt, after any restore, with the
// sub-step and returns the rates to apply over it.
func (n *node) advance(sv *solver.Solver, tc TimeStepControl, dt float64,
	prepare func(dt float64) []float64) (err error) {
	var (
		snap *chemistry.System
	)
	n.output.Reset()
	n.attempts, err = tc.Advance(dt,
		func() { snap = n.sys.Copy() },
		func() { n.sys.Restore(snap) },
		func(dt float64) error { return n.solve(sv, dt, prepare(dt)) })
	var se *StepError
	if errors.As(err, &se) {
		se.Node, se.Position = n.index, n.position
	} else if err != nil {
		err = fmt.Errorf("node %d (position %g): %w", n.index, n.position, err)
	}
	return
}

// initialize finds the first equilibrium configuration
func (n *node) initialize(sv *solver.Solver, tc TimeStepControl) error {
	return n.advance(sv, tc, 0, func(float64) []float64 {
		mgd := n.sys.ModelDatabase()
		return make([]float64, mgd.NumBasis()+mgd.NumKinetic())
	})
}

// step advances the node from t-dt to t
func (n *node) step(sv *solver.Solver, cfg *TimeDependentConfig, sources []Source, t, dt float64) (err error) {
	var (
		sys = n.sys
		mgd = sys.ModelDatabase()
		nb  = mgd.NumBasis()
	)
	if !n.closed && t >= cfg.CloseTime {
		sys.CloseSystem()
		n.closed = true
	}
	for r, rm := range cfg.RemoveFixedActivity {
		if n.removed[r] || t < rm.Time {
			continue
		}
		if i, ok := mgd.BasisIndex(rm.Species); ok {
			if err = sys.ChangeConstraintToBulk(i); err != nil {
				return
			}
		}
		n.removed[r] = true
	}
	for _, ca := range cfg.ControlledActivity {
		if i, ok := mgd.BasisIndex(ca.Species); ok && sys.ConstraintMeaning(i).IsActivityFixed() {
			if err = sys.SetConstraintValue(i, ca.Value.At(t)); err != nil {
				return
			}
		}
	}
	var (
		rates = sourceRates(mgd, sources, t)
		add   = make([]float64, nb)
		T     = n.prevT
		dTdt  float64
	)
	for i := range add {
		add[i] = rates[i] * dt
	}
	if !cfg.Temperature.IsEmpty() {
		if T = mixedTemperature(sys, add, n.prevT, cfg.Temperature.At(t)); T != n.prevT {
			if dt > 0 {
				dTdt = (T - sys.Temperature()) / dt
			} else {
				sys.SetTemperature(T)
			}
		}
	}
	switch cfg.Mode {
	case types.ModeDump:
		if err = n.dump(rates, dt); err != nil {
			return
		}
	case types.ModeFlush:
		if dt > 0 {
			if err = sys.RemoveFluidFraction(math.Min(1, inputMass(mgd, add)/solutionMass(sys))); err != nil {
				return
			}
		}
	}
	if err = n.advance(sv, cfg.Step, dt, n.subStepRates(cfg.Mode, sources, t, dTdt)); err != nil {
		return
	}
	n.prevT = T
	if cfg.Mode == types.ModeFlowThrough {
		n.recordDumped(sys.RemoveFreeMineralMoles())
	}
	return
}

// subStepRates returns the rates of each sub-step, rebuilt in the basis the
// node has then. The temperature moves by dTdt over the sub-step and a
// restore after a failure moves it back.
func (n *node) subStepRates(mode types.ReactorMode, sources []Source, t, dTdt float64) func(dt float64) []float64 {
	return func(dt float64) []float64 {
		if dTdt != 0 {
			n.sys.SetTemperature(n.sys.Temperature() + dTdt*dt)
		}
		mgd := n.sys.ModelDatabase()
		rates := sourceRates(mgd, sources, t)
		if mode == types.ModeDump {
			// the dump added them already
			for i := 0; i < mgd.NumBasis(); i++ {
				rates[i] = 0
			}
		}
		return rates
	}
}

// dump removes every free mineral, adds the step's basis additions at once
// and swaps the minerals out of the basis. Rates of mineral basis species
// are dropped, and the solve that follows only applies kinetic rates.
func (n *node) dump(rates []float64, dt float64) (err error) {
	var (
		sys = n.sys
		mgd = sys.ModelDatabase()
	)
	n.recordDumped(sys.RemoveFreeMineralMoles())
	for i := 0; i < mgd.NumBasis(); i++ {
		if !mgd.Basis[i].IsMineral() {
			sys.AddToBulkMoles(i, rates[i]*dt)
		}
	}
	for i := 0; i < mgd.NumBasis(); i++ {
		if !mgd.Basis[i].IsMineral() {
			continue
		}
		if j, ok := sys.Swapper().FindBestEqmSwap(i, mgd, sys.EqmMolality(), false, false); ok {
			if err = sys.PerformSwap(i, j); err != nil {
				return fmt.Errorf("node %d: %w", n.index, err)
			}
		}
	}
	return
}

func (n *node) recordDumped(removed []float64) {
	for i, amount := range removed {
		if amount != 0 {
			n.dumped[n.sys.ModelDatabase().Basis[i].Name] += amount
		}
	}
}

// mixedTemperature is the temperature after fluid at Tin, the positive part
// of add, mixes with the current fluid at Tprev. Heat capacities are taken as
// equal, so the result is mass weighted. Without additions the fluid takes Tin.
func mixedTemperature(sys *chemistry.System, add []float64, Tprev, Tin float64) float64 {
	if Tin == Tprev {
		return Tin
	}
	var (
		mgd     = sys.ModelDatabase()
		bulk    = sys.BulkMoles()
		adding  bool
		current = bulk[0] / chemistry.MolesPerKgWater
		input   = math.Max(add[0], 0) / chemistry.MolesPerKgWater
	)
	for i := range add {
		if add[i] > 0 {
			adding = true
		}
	}
	if !adding {
		return Tin
	}
	for i := 1; i < mgd.NumBasis(); i++ {
		mw := mgd.Basis[i].MolecularWeight / 1000
		current += bulk[i] * mw
		input += math.Max(add[i], 0) * mw
	}
	return (Tprev*current + Tin*input) / (current + input)
}

// inputMass is the mass in kg of the non-mineral additions
func inputMass(mgd *database.ModelDatabase, add []float64) (kg float64) {
	kg = add[0] / chemistry.MolesPerKgWater
	for i := 1; i < mgd.NumBasis(); i++ {
		if !mgd.Basis[i].IsMineral() {
			kg += add[i] * mgd.Basis[i].MolecularWeight / 1000
		}
	}
	return
}

// solutionMass is the mass in kg of the system without free minerals and
// kinetic species
func solutionMass(sys *chemistry.System) (kg float64) {
	var (
		mgd  = sys.ModelDatabase()
		bulk = sys.BulkMoles()
		free = sys.SolventMassAndFreeMolalityAndMineralMoles()
		kin  = sys.KineticMoles()
	)
	kg = bulk[0] / chemistry.MolesPerKgWater
	for i := 1; i < mgd.NumBasis(); i++ {
		amount := bulk[i]
		for k := range kin {
			amount -= mgd.KinStoi(k, i) * kin[k]
		}
		if mgd.Basis[i].IsMineral() {
			amount -= free[i]
		}
		kg += amount * mgd.Basis[i].MolecularWeight / 1000
	}
	return
}
