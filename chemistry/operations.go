package chemistry

import (
	"fmt"
	"math"

	"github.com/notargets/gochem/database"
	"github.com/notargets/gochem/types"
)

// Read access used by the solver, the reactors and the reports. Returned
// slices are the live state and must not be modified.

func (s *System) ModelDatabase() *database.ModelDatabase           { return s.mgd }
func (s *System) Swapper() database.SwapSearcher                   { return s.swapper }
func (s *System) IonicStrengthCalculator() IonicStrengthCalculator { return s.is }
func (s *System) ChargeBalanceBasisIndex() int                     { return s.chargeBalanceIndex }
func (s *System) BasisActivityKnown() []bool                       { return s.basisActivityKnown }
func (s *System) EqmMolality() []float64                           { return s.eqmMolality }
func (s *System) BulkMoles() []float64                             { return s.bulk }
func (s *System) BasisActivity() []float64                         { return s.basisActivity }
func (s *System) KineticMoles() []float64                          { return s.kinMoles }
func (s *System) Temperature() float64                             { return s.temperature }
func (s *System) IonicStrength() float64                           { return s.ionicStrength }
func (s *System) StoichiometricIonicStrength() float64             { return s.stoichIonicStrength }

// SolventMassAndFreeMolalityAndMineralMoles returns, per basis species, the
// solvent mass (water), free moles (minerals) or free molality (others)
func (s *System) SolventMassAndFreeMolalityAndMineralMoles() []float64 { return s.basisMolality }

func (s *System) ConstraintMeaning(i int) types.ConstraintMeaning { return s.meaning[i] }
func (s *System) ConstraintValue(i int) float64                   { return s.constraintValue[i] }

// SaturationIndices returns log10(Q/K) for equilibrium minerals and the log10
// fugacity for gases; aqueous species get 0
func (s *System) SaturationIndices() (si []float64) {
	var (
		log10A = s.log10BasisActivities()
	)
	si = make([]float64, s.mgd.NumEqm())
	for j, sp := range s.mgd.Eqm {
		if sp.IsMineral() || sp.IsGas() {
			si[j] = s.log10ActivityProduct(s.mgd.EqmStoichiometry, j, log10A) - s.eqmLogK[j]
		}
	}
	return
}

// PH returns -log10 of the H+ activity, when H+ is in the model
func (s *System) PH() (pH float64, ok bool) {
	if i, found := s.mgd.BasisIndex("H+"); found {
		return -math.Log10(s.basisActivity[i]), true
	}
	if j, found := s.mgd.EqmIndex("H+"); found {
		return -(math.Log10(s.eqmMolality[j]) + s.eqmLog10Gamma[j]), true
	}
	return
}

// AddToBulkMoles adds moles of basis component i. Species whose amount is not
// fixed by a bulk constraint are unaffected. A basis mineral gains or loses
// free moles along with its bulk.
func (s *System) AddToBulkMoles(i int, amount float64) {
	if !s.isBulkConstrained(i) {
		return
	}
	s.bulk[i] += amount
	s.constraintValue[i] = s.bulk[i]
	if s.mgd.Basis[i].IsMineral() {
		s.computeFreeMineralMoles()
	}
}

// UpdateOldWithCurrent closes a step: kinetic moles become the old values
// and any remaining additions join the bulk composition
func (s *System) UpdateOldWithCurrent(moleAdditions []float64) {
	copy(s.kinMolesOld, s.kinMoles)
	for i := 0; i < s.mgd.NumBasis(); i++ {
		s.AddToBulkMoles(i, moleAdditions[i])
	}
	for i := range s.mgd.Basis {
		if !s.isBulkConstrained(i) {
			s.bulk[i] = s.computedBulk(i)
		}
	}
	s.computeFreeMineralMoles()
}

// AlterChargeBalanceSpecies moves the charge-balance role away from a species
// whose molality has fallen below threshold. The largest-molality charged
// species with a bulk constraint is chosen, preferring the opposite charge.
// It reports whether the role moved.
func (s *System) AlterChargeBalanceSpecies(threshold float64) bool {
	var (
		cb       = s.chargeBalanceIndex
		cbCharge = s.mgd.Basis[cb].Charge
	)
	if s.basisMolality[cb] >= threshold {
		return false
	}
	best := func(opposite bool) (bestI int) {
		bestI = -1
		for i, sp := range s.mgd.Basis {
			if i == cb || sp.Charge == 0 || !s.inAlgebraic[i] {
				continue
			}
			if (sp.Charge*cbCharge < 0) != opposite {
				continue
			}
			if bestI < 0 || s.basisMolality[i] > s.basisMolality[bestI] {
				bestI = i
			}
		}
		return
	}
	next := best(true)
	if next < 0 {
		next = best(false)
	}
	if next < 0 {
		return false
	}
	s.chargeBalanceIndex = next
	logger.Info("changed charge balance species",
		"from", s.mgd.Basis[cb].Name, "to", s.mgd.Basis[next].Name)
	return true
}

// PerformSwap replaces basis species out with equilibrium species in. Water,
// the charge-balance species and gases cannot take part. The new basis
// species is constrained by its bulk amount.
func (s *System) PerformSwap(out, in int) error {
	if out == 0 {
		return fmt.Errorf("cannot swap water out of the basis")
	}
	if out == s.chargeBalanceIndex {
		return fmt.Errorf("cannot swap out %s: it is the charge balance species", s.mgd.Basis[out].Name)
	}
	if out >= 0 && out < s.mgd.NumBasis() && s.mgd.Basis[out].IsGas() {
		return fmt.Errorf("cannot swap out gas %s", s.mgd.Basis[out].Name)
	}
	if in >= 0 && in < s.mgd.NumEqm() && s.mgd.Eqm[in].IsGas() {
		return fmt.Errorf("cannot swap in gas %s", s.mgd.Eqm[in].Name)
	}
	return s.swap(out, in)
}

func (s *System) swap(out, in int) (err error) {
	var (
		outMolality = s.basisMolality[out]
		inMolality  = s.eqmMolality[in]
		inName      = s.mgd.Eqm[in].Name
		outName     = s.mgd.Basis[out].Name
	)
	// every component amount, including computed ones, moves to the new basis
	for i := range s.mgd.Basis {
		if !s.isBulkConstrained(i) {
			s.bulk[i] = s.computedBulk(i)
		}
	}
	if err = s.swapper.PerformSwap(s.mgd, s.bulk, out, in); err != nil {
		return
	}
	s.meaning[out] = types.MolesBulkSpecies
	s.constraintValue[out] = s.bulk[out]
	for i := range s.mgd.Basis {
		if s.isBulkConstrained(i) {
			s.constraintValue[i] = s.bulk[i]
		}
	}
	if s.mgd.Basis[out].IsMineral() {
		s.basisMolality[out] = 0
	} else {
		s.basisMolality[out] = math.Max(inMolality, s.minInitial)
	}
	s.eqmMolality[in] = outMolality
	if s.mgd.Eqm[in].IsMineral() || s.mgd.Eqm[in].IsGas() {
		s.eqmMolality[in] = 0
	}
	s.eqmLogK, s.kinLogK = s.mgd.LogKAt(s.temperature)
	s.buildAlgebraicInfo()
	s.ComputeConsistentConfiguration()
	logger.Debug("basis swap", "out", outName, "in", inName)
	return
}

// SetTemperature moves the system to temperature T and recomputes the
// equilibrium constants and everything that depends on them
func (s *System) SetTemperature(T float64) {
	s.temperature = T
	s.eqmLogK, s.kinLogK = s.mgd.LogKAt(T)
	s.ComputeConsistentConfiguration()
}

// CloseSystem turns every fixed molality, activity and mineral amount into a
// fixed bulk amount equal to the current one. Gases keep their fugacity.
func (s *System) CloseSystem() {
	for i := range s.mgd.Basis {
		switch s.meaning[i] {
		case types.KgSolventWater:
			s.meaning[i] = types.MolesBulkWater
		case types.Activity:
			if i == 0 {
				s.meaning[i] = types.MolesBulkWater
			} else {
				s.meaning[i] = types.MolesBulkSpecies
			}
		case types.FreeMolality, types.FreeMolesMineralSpecies:
			s.meaning[i] = types.MolesBulkSpecies
		default:
			continue
		}
		s.bulk[i] = s.computedBulk(i)
		s.constraintValue[i] = s.bulk[i]
	}
	s.buildAlgebraicInfo()
	s.ComputeConsistentConfiguration()
}

// ChangeConstraintToBulk fixes the bulk amount of basis species i at its
// current value. A gas with fixed fugacity is first swapped for the
// equilibrium species best able to replace it.
func (s *System) ChangeConstraintToBulk(i int) error {
	if i < 0 || i >= s.mgd.NumBasis() {
		return fmt.Errorf("basis index %d out of range", i)
	}
	if s.mgd.Basis[i].IsGas() {
		j, ok := s.swapper.FindBestEqmSwap(i, s.mgd, s.eqmMolality, false, false)
		if !ok {
			return fmt.Errorf("no equilibrium species can replace gas %s in the basis", s.mgd.Basis[i].Name)
		}
		return s.swap(i, j)
	}
	if s.isBulkConstrained(i) {
		return nil
	}
	s.bulk[i] = s.computedBulk(i)
	if i == 0 {
		s.meaning[i] = types.MolesBulkWater
	} else {
		s.meaning[i] = types.MolesBulkSpecies
	}
	s.constraintValue[i] = s.bulk[i]
	s.buildAlgebraicInfo()
	s.ComputeConsistentConfiguration()
	return nil
}

// SetConstraintValue changes the value attached to the constraint of basis
// species i, keeping its meaning
func (s *System) SetConstraintValue(i int, value float64) error {
	if i < 0 || i >= s.mgd.NumBasis() {
		return fmt.Errorf("basis index %d out of range", i)
	}
	if err := s.checkConstraint(i, s.meaning[i], value); err != nil {
		return err
	}
	s.constraintValue[i] = value
	switch s.meaning[i] {
	case types.MolesBulkWater, types.MolesBulkSpecies:
		s.bulk[i] = value
	case types.KgSolventWater, types.FreeMolality, types.FreeMolesMineralSpecies:
		s.basisMolality[i] = value
	case types.Activity, types.Fugacity:
		s.basisActivity[i] = value
	}
	s.ComputeConsistentConfiguration()
	return nil
}

// RemoveFreeMineralMoles takes the free moles of every bulk-constrained basis
// mineral out of the system and returns them per basis index
func (s *System) RemoveFreeMineralMoles() (removed []float64) {
	removed = make([]float64, s.mgd.NumBasis())
	for i, sp := range s.mgd.Basis {
		if !sp.IsMineral() || s.meaning[i] != types.MolesBulkSpecies {
			continue
		}
		if free := s.basisMolality[i]; free > 0 {
			removed[i] = free
			s.AddToBulkMoles(i, -free)
		}
	}
	s.computeFreeMineralMoles()
	return
}

// RemoveFluidFraction removes fraction f of the aqueous part of every
// bulk-constrained component, as when fluid is flushed out of the system.
// Free mineral moles and kinetic species stay behind.
func (s *System) RemoveFluidFraction(f float64) error {
	if f < 0 || f > 1 {
		return fmt.Errorf("flush fraction must lie in [0, 1], got %g", f)
	}
	var (
		nw = s.basisMolality[0]
	)
	for i, sp := range s.mgd.Basis {
		if !s.isBulkConstrained(i) || sp.IsGas() {
			continue
		}
		var aqueous float64
		switch {
		case i == 0:
			aqueous = nw * MolesPerKgWater
		case !sp.IsMineral():
			aqueous = nw * s.basisMolality[i]
		}
		for j, e := range s.mgd.Eqm {
			if e.IsMineral() || e.IsGas() {
				continue
			}
			aqueous += nw * s.mgd.EqmStoi(j, i) * s.eqmMolality[j]
		}
		s.AddToBulkMoles(i, -f*aqueous)
	}
	s.computeFreeMineralMoles()
	return nil
}
