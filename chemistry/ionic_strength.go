package chemistry

import (
	"math"

	"github.com/notargets/gochem/database"
)

// IonicStrengthCalculator is the part of the ionic strength computation an
// equilibrium solver controls: the bounds ramped during early iterations
type IonicStrengthCalculator interface {
	SetMaxIonicStrength(v float64)
	SetMaxStoichiometricIonicStrength(v float64)
}

// IonicStrength computes the true and stoichiometric ionic strength of a
// solution, each clamped to a maximum that the equilibrium solver ramps up
// during its first iterations.
type IonicStrength struct {
	maxIonicStrength               float64
	maxStoichiometricIonicStrength float64
	UseStoichiometric              bool // activity coefficients use the stoichiometric value
}

func NewIonicStrength(maxIonicStrength, maxStoichiometricIonicStrength float64, useStoichiometric bool) *IonicStrength {
	return &IonicStrength{
		maxIonicStrength:               maxIonicStrength,
		maxStoichiometricIonicStrength: maxStoichiometricIonicStrength,
		UseStoichiometric:              useStoichiometric,
	}
}

func (is *IonicStrength) SetMaxIonicStrength(v float64) { is.maxIonicStrength = v }
func (is *IonicStrength) MaxIonicStrength() float64     { return is.maxIonicStrength }
func (is *IonicStrength) MaxStoichiometricIonicStrength() float64 {
	return is.maxStoichiometricIonicStrength
}
func (is *IonicStrength) SetMaxStoichiometricIonicStrength(v float64) {
	is.maxStoichiometricIonicStrength = v
}

func (is *IonicStrength) Copy() *IonicStrength {
	c := *is
	return &c
}

// IonicStrength is 0.5 sum m z^2 over aqueous species. basisMolality[0] is
// the solvent mass and is skipped, as are minerals and gases.
func (is *IonicStrength) IonicStrength(mgd *database.ModelDatabase, basisMolality, eqmMolality []float64) (I float64) {
	for i := 1; i < mgd.NumBasis(); i++ {
		s := mgd.Basis[i]
		if s.IsMineral() || s.IsGas() {
			continue
		}
		I += basisMolality[i] * s.Charge * s.Charge
	}
	for j, s := range mgd.Eqm {
		if s.IsMineral() || s.IsGas() {
			continue
		}
		I += eqmMolality[j] * s.Charge * s.Charge
	}
	I = math.Min(math.Max(0.5*I, 0), is.maxIonicStrength)
	return
}

// StoichiometricIonicStrength treats every aqueous equilibrium species as
// fully dissociated into its basis components
func (is *IonicStrength) StoichiometricIonicStrength(mgd *database.ModelDatabase, basisMolality, eqmMolality []float64) (I float64) {
	for i := 1; i < mgd.NumBasis(); i++ {
		s := mgd.Basis[i]
		if s.IsMineral() || s.IsGas() {
			continue
		}
		m := basisMolality[i]
		for j, e := range mgd.Eqm {
			if e.IsMineral() || e.IsGas() {
				continue
			}
			m += mgd.EqmStoi(j, i) * eqmMolality[j]
		}
		I += math.Max(m, 0) * s.Charge * s.Charge
	}
	I = math.Min(0.5*I, is.maxStoichiometricIonicStrength)
	return
}
