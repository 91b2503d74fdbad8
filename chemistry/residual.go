package chemistry

import (
	"fmt"
	"math"

	"github.com/notargets/gochem/utils"
)

func (s *System) NumInAlgebraicSystem() int      { return s.numBasisAlgebraic + s.mgd.NumKinetic() }
func (s *System) NumBasisInAlgebraicSystem() int { return s.numBasisAlgebraic }
func (s *System) InAlgebraicSystem() []bool      { return s.inAlgebraic }

// AlgebraicVariableValues returns the unknowns in algebraic order: the
// solvent mass if water is an unknown, the free molalities, then the kinetic
// moles
func (s *System) AlgebraicVariableValues() (values []float64) {
	values = make([]float64, 0, s.NumInAlgebraicSystem())
	values = append(values, s.AlgebraicBasisValues()...)
	values = append(values, s.kinMoles...)
	return
}

func (s *System) AlgebraicBasisValues() (values []float64) {
	values = make([]float64, s.numBasisAlgebraic)
	for a, i := range s.algebraicBasis {
		values[a] = s.basisMolality[i]
	}
	return
}

// SetAlgebraicVariables accepts a new set of unknowns, which must hold
// positive solvent mass and molalities, and recomputes everything that
// depends on them
func (s *System) SetAlgebraicVariables(values []float64) error {
	if len(values) != s.NumInAlgebraicSystem() {
		return fmt.Errorf("expected %d algebraic variables, got %d", s.NumInAlgebraicSystem(), len(values))
	}
	for a, i := range s.algebraicBasis {
		if !(values[a] > 0) {
			return fmt.Errorf("molality of %s must be positive, got %g", s.mgd.Basis[i].Name, values[a])
		}
	}
	for a, i := range s.algebraicBasis {
		s.basisMolality[i] = values[a]
	}
	copy(s.kinMoles, values[s.numBasisAlgebraic:])
	s.ComputeConsistentConfiguration()
	return nil
}

// ResidualComponent is the mass-balance residual of unknown a, written as
// "held by the species" minus "required": for basis species the bulk amount
// plus additions, for the charge-balance species the amount giving a neutral
// solution, and for kinetic species the old amount plus additions.
func (s *System) ResidualComponent(a int, moleAdditions []float64) float64 {
	var (
		nb = s.mgd.NumBasis()
	)
	if a >= s.numBasisAlgebraic {
		k := a - s.numBasisAlgebraic
		return s.kinMoles[k] - s.kinMolesOld[k] - moleAdditions[nb+k]
	}
	i := s.algebraicBasis[a]
	if i == s.chargeBalanceIndex {
		return s.computedBulk(i) - s.chargeBalanceTarget(moleAdditions)
	}
	return s.computedBulk(i) - s.bulk[i] - moleAdditions[i]
}

func (s *System) chargeBalanceTarget(moleAdditions []float64) (target float64) {
	var (
		cb = s.chargeBalanceIndex
	)
	for i, sp := range s.mgd.Basis {
		if i == cb || sp.Charge == 0 {
			continue
		}
		target -= sp.Charge * s.chargeBalanceAmount(i, moleAdditions)
	}
	return target / s.mgd.Basis[cb].Charge
}

// computedBulkDerivatives returns d(computedBulk(i))/d(unknown) in algebraic
// order, with activity coefficients held fixed
func (s *System) computedBulkDerivatives(i int) (d []float64) {
	var (
		nw = s.basisMolality[0]
		sp = s.mgd.Basis[i]
	)
	d = make([]float64, s.NumInAlgebraicSystem())
	for a, b := range s.algebraicBasis {
		if b == 0 {
			// solvent mass
			switch {
			case i == 0:
				d[a] = MolesPerKgWater
			case sp.IsMineral() || sp.IsGas():
			default:
				d[a] = s.basisMolality[i]
			}
			for j := range s.mgd.Eqm {
				d[a] += s.mgd.EqmStoi(j, i) * s.eqmMolality[j]
			}
			continue
		}
		if b == i {
			d[a] = nw
		}
		mb := s.basisMolality[b]
		for j := range s.mgd.Eqm {
			cji, cjb := s.mgd.EqmStoi(j, i), s.mgd.EqmStoi(j, b)
			if cji != 0 && cjb != 0 {
				d[a] += nw * cji * cjb * s.eqmMolality[j] / mb
			}
		}
	}
	for k := range s.mgd.Kin {
		d[s.numBasisAlgebraic+k] = s.mgd.KinStoi(k, i)
	}
	return
}

// additionDerivatives returns d(moleAdditions[row])/d(unknown) in algebraic
// order. Solvent mass maps to column 0, kinetic species to nb+k.
func (s *System) additionDerivatives(row int, dMoleAdditions utils.Matrix) (d []float64) {
	var (
		nb = s.mgd.NumBasis()
	)
	d = make([]float64, s.NumInAlgebraicSystem())
	for a, b := range s.algebraicBasis {
		d[a] = dMoleAdditions.At(row, b)
	}
	for k := range s.mgd.Kin {
		d[s.numBasisAlgebraic+k] = dMoleAdditions.At(row, nb+k)
	}
	return
}

// ComputeJacobian fills jacobian with the derivative of every residual
// component with respect to every unknown
func (s *System) ComputeJacobian(residual []float64, jacobian utils.Matrix, moleAdditions []float64,
	dMoleAdditions utils.Matrix) {
	var (
		nb = s.mgd.NumBasis()
		n  = s.NumInAlgebraicSystem()
		cb = s.chargeBalanceIndex
	)
	jacobian.Zero()
	for a, i := range s.algebraicBasis {
		row := s.computedBulkDerivatives(i)
		if i == cb {
			for b, sp := range s.mgd.Basis {
				if b == cb || sp.Charge == 0 {
					continue
				}
				var dAmount []float64
				if s.isBulkConstrained(b) {
					dAmount = s.additionDerivatives(b, dMoleAdditions)
				} else {
					dAmount = s.computedBulkDerivatives(b)
				}
				ratio := sp.Charge / s.mgd.Basis[cb].Charge
				for c := 0; c < n; c++ {
					row[c] += ratio * dAmount[c]
				}
			}
		} else {
			dAdd := s.additionDerivatives(i, dMoleAdditions)
			for c := 0; c < n; c++ {
				row[c] -= dAdd[c]
			}
		}
		for c := 0; c < n; c++ {
			jacobian.Set(a, c, row[c])
		}
	}
	for k := range s.mgd.Kin {
		a := s.numBasisAlgebraic + k
		dAdd := s.additionDerivatives(nb+k, dMoleAdditions)
		for c := 0; c < n; c++ {
			jacobian.Set(a, c, -dAdd[c])
		}
		jacobian.AddAt(a, a, 1)
	}
}

// AddKineticRates adds the moles produced by each kinetic species over dt,
// and their derivatives. The rate law is rate = k n (1 - Omega) where Omega
// is the saturation ratio of the kinetic reaction.
func (s *System) AddKineticRates(dt float64, moleAdditions []float64, dMoleAdditions utils.Matrix) {
	var (
		nb     = s.mgd.NumBasis()
		log10A = s.log10BasisActivities()
	)
	for k := range s.mgd.Kin {
		var (
			omega = math.Pow(10, s.log10ActivityProduct(s.mgd.KinStoichiometry, k, log10A)-s.kinLogK[k])
			kappa = s.rateConstant[k]
			n     = s.kinMoles[k]
			row   = nb + k
		)
		moleAdditions[row] -= kappa * n * (1 - omega) * dt
		dMoleAdditions.AddAt(row, row, -kappa*(1-omega)*dt)
		for b := 1; b < nb; b++ {
			coef := s.mgd.KinStoi(k, b)
			if coef == 0 || s.basisActivityKnown[b] || s.mgd.Basis[b].IsGas() || s.basisMolality[b] <= 0 {
				continue
			}
			dMoleAdditions.AddAt(row, b, kappa*n*omega*coef*dt/s.basisMolality[b])
		}
	}
}

// KineticRates returns the current rate of each kinetic species in mol/s,
// positive when the species dissolves
func (s *System) KineticRates() (rates []float64) {
	var (
		log10A = s.log10BasisActivities()
	)
	rates = make([]float64, s.mgd.NumKinetic())
	for k := range rates {
		omega := math.Pow(10, s.log10ActivityProduct(s.mgd.KinStoichiometry, k, log10A)-s.kinLogK[k])
		rates[k] = s.rateConstant[k] * s.kinMoles[k] * (1 - omega)
	}
	return
}
