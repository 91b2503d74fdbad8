package reactor

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/notargets/gochem/chemistry"
	"github.com/notargets/gochem/solver"
)

// HistoryRow is the state of a batch of fluid at the end of a step
type HistoryRow struct {
	Time          float64
	Temperature   float64
	PH            float64
	IonicStrength float64
	Molality      map[string]float64 // aqueous species, basis and equilibrium
	Minerals      map[string]float64 // free moles of basis minerals
}

func historyRow(sys *chemistry.System, t float64) (row HistoryRow) {
	var (
		mgd  = sys.ModelDatabase()
		free = sys.SolventMassAndFreeMolalityAndMineralMoles()
		eqm  = sys.EqmMolality()
	)
	row = HistoryRow{
		Time:          t,
		Temperature:   sys.Temperature(),
		IonicStrength: sys.IonicStrength(),
		Molality:      make(map[string]float64),
		Minerals:      make(map[string]float64),
	}
	row.PH, _ = sys.PH()
	for i := 1; i < mgd.NumBasis(); i++ {
		sp := mgd.Basis[i]
		switch {
		case sp.IsMineral():
			row.Minerals[sp.Name] = free[i]
		case !sp.IsGas():
			row.Molality[sp.Name] = free[i]
		}
	}
	for j, sp := range mgd.Eqm {
		if !sp.IsMineral() && !sp.IsGas() {
			row.Molality[sp.Name] = eqm[j]
		}
	}
	return
}

// TimeDependent reacts one batch of fluid with the sources of cfg over time
type TimeDependent struct {
	n       *node
	sv      *solver.Solver
	cfg     TimeDependentConfig
	ramp0   int
	time    float64
	History []HistoryRow
}

func NewTimeDependent(sys *chemistry.System, sv *solver.Solver, cfg TimeDependentConfig) (r *TimeDependent, err error) {
	if err = cfg.prepare(sys.ModelDatabase()); err != nil {
		return
	}
	r = &TimeDependent{
		n:     newNode(0, 0, sys, &cfg),
		sv:    sv.Copy(),
		cfg:   cfg,
		ramp0: sv.RampMaxIonicStrength(),
	}
	return
}

// Initialize solves the starting fluid with the initial ionic strength ramp
// and records it as the first history row
func (r *TimeDependent) Initialize() (err error) {
	if err = r.sv.SetRampMaxIonicStrength(r.ramp0); err != nil {
		return
	}
	if err = r.n.initialize(r.sv, r.cfg.Step); err != nil {
		return
	}
	r.History = append(r.History, historyRow(r.n.sys, r.time))
	return
}

// Step advances the fluid by dt
func (r *TimeDependent) Step(dt float64) (err error) {
	if dt < 0 {
		return fmt.Errorf("time step must not be negative, have %g", dt)
	}
	return r.stepTo(r.time + dt)
}

func (r *TimeDependent) stepTo(t float64) (err error) {
	if err = r.sv.SetRampMaxIonicStrength(r.sv.Config().RampSubsequent); err != nil {
		return
	}
	if err = r.n.step(r.sv, &r.cfg, r.cfg.Sources, t, t-r.time); err != nil {
		return
	}
	r.time = t
	r.History = append(r.History, historyRow(r.n.sys, t))
	return
}

// Run steps from the current time to endTime in steps of dt, the last one
// shortened to land on endTime
func (r *TimeDependent) Run(endTime, dt float64) (err error) {
	if !(dt > 0) {
		return fmt.Errorf("time step must be positive, have %g", dt)
	}
	for r.time < endTime {
		if err = r.stepTo(math.Min(r.time+dt, endTime)); err != nil {
			return
		}
	}
	return
}

func (r *TimeDependent) Time() float64             { return r.time }
func (r *TimeDependent) System() *chemistry.System { return r.n.sys }
func (r *TimeDependent) Result() solver.Result     { return r.n.result }

// Attempts is the number of solves the last step took
func (r *TimeDependent) Attempts() int { return r.n.attempts }

// SolverOutput is the trace of the last step
func (r *TimeDependent) SolverOutput() string { return r.n.output.String() }

// MolesDumped returns the moles of a mineral removed by the dump and
// flow_through modes so far
func (r *TimeDependent) MolesDumped(species string) float64 { return r.n.dumped[species] }

func (r *TimeDependent) Report(w io.Writer) {
	Report(w, r.n.sys, r.n.result)
	if len(r.n.dumped) == 0 {
		return
	}
	var names []string
	for name := range r.n.dumped {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintf(w, "\nMinerals removed from the system (moles)\n")
	for _, name := range names {
		fmt.Fprintf(w, "%-20s %12.5g\n", name, r.n.dumped[name])
	}
}
