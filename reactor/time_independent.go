package reactor

import (
	"io"

	"github.com/notargets/gochem/chemistry"
	"github.com/notargets/gochem/solver"
	"github.com/notargets/gochem/types"
)

// TimeIndependent holds one batch of fluid in equilibrium, re-solving it
// when the temperature changes
type TimeIndependent struct {
	n     *node
	sv    *solver.Solver
	tc    TimeStepControl
	ramp0 int
}

func NewTimeIndependent(sys *chemistry.System, sv *solver.Solver) *TimeIndependent {
	cfg := DefaultTimeDependentConfig()
	return &TimeIndependent{
		n:     newNode(0, 0, sys, &cfg),
		sv:    sv.Copy(),
		tc:    TimeStepControl{},
		ramp0: sv.RampMaxIonicStrength(),
	}
}

// Initialize solves the system with the initial ionic strength ramp
func (r *TimeIndependent) Initialize() (err error) {
	if err = r.sv.SetRampMaxIonicStrength(r.ramp0); err != nil {
		return
	}
	return r.n.initialize(r.sv, r.tc)
}

// Execute brings the system to temperature T, solving only if it changed
func (r *TimeIndependent) Execute(T float64) (err error) {
	if T == r.n.sys.Temperature() {
		return
	}
	if err = r.sv.SetRampMaxIonicStrength(r.sv.Config().RampSubsequent); err != nil {
		return
	}
	r.n.sys.SetTemperature(T)
	return r.n.advance(r.sv, r.tc, 0, r.n.subStepRates(types.ModeNone, nil, 0, 0))
}

func (r *TimeIndependent) System() *chemistry.System { return r.n.sys }
func (r *TimeIndependent) Result() solver.Result     { return r.n.result }

// SolverOutput is the trace of the last solve
func (r *TimeIndependent) SolverOutput() string { return r.n.output.String() }

func (r *TimeIndependent) Report(w io.Writer) {
	Report(w, r.n.sys, r.n.result)
}
