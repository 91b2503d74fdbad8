package chemistry

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/notargets/gochem/database"
	"github.com/notargets/gochem/types"
	"github.com/notargets/gochem/utils"
)

const (
	MolesPerKgWater = 55.51
)

var logger = slog.Default()

// SetLogger replaces the package logger
func SetLogger(l *slog.Logger) { logger = l }

// Constraint fixes one basis species
type Constraint struct {
	Species string                  `json:"species"`
	Value   float64                 `json:"value"`
	Meaning types.ConstraintMeaning `json:"meaning"`
}

// KineticSpecies gives the initial amount and rate constant of a species
// whose amount is governed by a rate law rather than equilibrium
type KineticSpecies struct {
	Name         string  `json:"name"`
	InitialMoles float64 `json:"initial_moles"`
	RateConstant float64 `json:"rate_constant"` // 1/s
}

type SystemConfig struct {
	SwapOutOfBasis       []string
	SwapIntoBasis        []string
	ChargeBalanceSpecies string
	Constraints          []Constraint // named in terms of the basis after the initial swaps
	Kinetic              []KineticSpecies
	Temperature          float64
	MinInitialMolality   float64
}

// System is the state of one batch of fluid in equilibrium with a set of
// minerals and gases. Index 0 of every basis slice is water, where the
// molality slot holds the solvent mass in kg. Minerals in the basis hold their
// free moles in the molality slot.
type System struct {
	mgd         *database.ModelDatabase
	is          *IonicStrength
	swapper     *database.Swapper
	temperature float64
	eqmLogK     []float64
	kinLogK     []float64
	minInitial  float64

	chargeBalanceIndex int
	meaning            []types.ConstraintMeaning
	constraintValue    []float64
	rateConstant       []float64

	bulk                []float64
	basisMolality       []float64
	basisActivity       []float64
	basisActivityKnown  []bool
	basisLog10Gamma     []float64
	eqmMolality         []float64
	eqmLog10Gamma       []float64
	kinMoles            []float64
	kinMolesOld         []float64
	ionicStrength       float64
	stoichIonicStrength float64

	inAlgebraic       []bool
	algebraicPosition []int // basis index to algebraic position, -1 if absent
	algebraicBasis    []int // algebraic position to basis index
	numBasisAlgebraic int
}

// NewSystem performs the requested initial swaps on mgd, checks the
// constraints and computes a first consistent configuration.
func NewSystem(mgd *database.ModelDatabase, is *IonicStrength, swapper *database.Swapper, cfg SystemConfig) (s *System, err error) {
	var (
		nb = mgd.NumBasis()
		nk = mgd.NumKinetic()
	)
	if len(cfg.SwapOutOfBasis) != len(cfg.SwapIntoBasis) {
		return nil, fmt.Errorf("swap_out_of_basis and swap_into_basis must have the same length")
	}
	for n, outName := range cfg.SwapOutOfBasis {
		out, ok := mgd.BasisIndex(outName)
		if !ok {
			return nil, fmt.Errorf("cannot swap out %s: not a basis species", outName)
		}
		in, ok := mgd.EqmIndex(cfg.SwapIntoBasis[n])
		if !ok {
			return nil, fmt.Errorf("cannot swap in %s: not an equilibrium species", cfg.SwapIntoBasis[n])
		}
		if err = swapper.PerformSwap(mgd, nil, out, in); err != nil {
			return nil, err
		}
	}
	if cfg.MinInitialMolality <= 0 {
		cfg.MinInitialMolality = 1.e-20
	}
	s = &System{
		mgd:                mgd,
		is:                 is,
		swapper:            swapper,
		temperature:        cfg.Temperature,
		minInitial:         cfg.MinInitialMolality,
		meaning:            make([]types.ConstraintMeaning, nb),
		constraintValue:    make([]float64, nb),
		rateConstant:       make([]float64, nk),
		bulk:               make([]float64, nb),
		basisMolality:      make([]float64, nb),
		basisActivity:      make([]float64, nb),
		basisActivityKnown: make([]bool, nb),
		basisLog10Gamma:    make([]float64, nb),
		eqmMolality:        make([]float64, mgd.NumEqm()),
		eqmLog10Gamma:      make([]float64, mgd.NumEqm()),
		kinMoles:           make([]float64, nk),
		kinMolesOld:        make([]float64, nk),
	}
	if err = s.setConstraints(cfg.Constraints); err != nil {
		return nil, err
	}
	if err = s.setKinetic(cfg.Kinetic); err != nil {
		return nil, err
	}
	if err = s.setChargeBalanceSpecies(cfg.ChargeBalanceSpecies); err != nil {
		return nil, err
	}
	s.eqmLogK, s.kinLogK = mgd.LogKAt(s.temperature)
	s.buildAlgebraicInfo()
	s.initBulkAndFree()
	s.enforceChargeBalanceIfSimple()
	s.ComputeConsistentConfiguration()
	return
}

func (s *System) setConstraints(constraints []Constraint) error {
	var (
		nb   = s.mgd.NumBasis()
		seen = make([]bool, nb)
	)
	for _, c := range constraints {
		i, ok := s.mgd.BasisIndex(c.Species)
		if !ok {
			return fmt.Errorf("constrained species %s is not in the basis", c.Species)
		}
		if seen[i] {
			return fmt.Errorf("species %s has more than one constraint", c.Species)
		}
		seen[i] = true
		if err := s.checkConstraint(i, c.Meaning, c.Value); err != nil {
			return err
		}
		s.meaning[i], s.constraintValue[i] = c.Meaning, c.Value
	}
	for i, ok := range seen {
		if !ok {
			return fmt.Errorf("basis species %s has no constraint", s.mgd.Basis[i].Name)
		}
	}
	return nil
}

func (s *System) checkConstraint(i int, meaning types.ConstraintMeaning, value float64) error {
	var (
		sp      = s.mgd.Basis[i]
		allowed []types.ConstraintMeaning
	)
	switch {
	case i == 0:
		allowed = []types.ConstraintMeaning{types.MolesBulkWater, types.KgSolventWater, types.Activity}
	case sp.IsMineral():
		allowed = []types.ConstraintMeaning{types.MolesBulkSpecies, types.FreeMolesMineralSpecies}
	case sp.IsGas():
		allowed = []types.ConstraintMeaning{types.Fugacity}
	default:
		allowed = []types.ConstraintMeaning{types.MolesBulkSpecies, types.FreeMolality, types.Activity}
	}
	legal := false
	for _, m := range allowed {
		legal = legal || m == meaning
	}
	if !legal {
		return fmt.Errorf("constraint %s is not allowed for %s species %s", meaning, sp.Kind, sp.Name)
	}
	switch meaning {
	case types.KgSolventWater, types.FreeMolality, types.Activity, types.Fugacity:
		if value <= 0 {
			return fmt.Errorf("constraint %s on %s must be positive, got %g", meaning, sp.Name, value)
		}
	case types.FreeMolesMineralSpecies:
		if value < 0 {
			return fmt.Errorf("free moles of mineral %s must not be negative, got %g", sp.Name, value)
		}
	case types.MolesBulkWater:
		if value <= 0 {
			return fmt.Errorf("bulk moles of water must be positive, got %g", value)
		}
	}
	return nil
}

func (s *System) setKinetic(kinetic []KineticSpecies) error {
	var (
		nk   = s.mgd.NumKinetic()
		seen = make([]bool, nk)
	)
	for _, ks := range kinetic {
		k, ok := s.mgd.KinIndex(ks.Name)
		if !ok {
			return fmt.Errorf("%s is not a kinetic species of the model", ks.Name)
		}
		if ks.InitialMoles < 0 {
			return fmt.Errorf("initial moles of kinetic species %s must not be negative", ks.Name)
		}
		seen[k] = true
		s.kinMoles[k], s.kinMolesOld[k] = ks.InitialMoles, ks.InitialMoles
		s.rateConstant[k] = ks.RateConstant
	}
	for k, ok := range seen {
		if !ok {
			return fmt.Errorf("kinetic species %s has no initial condition", s.mgd.Kin[k].Name)
		}
	}
	return nil
}

func (s *System) setChargeBalanceSpecies(name string) error {
	i, ok := s.mgd.BasisIndex(name)
	if !ok {
		return fmt.Errorf("charge balance species %s is not in the basis", name)
	}
	if s.mgd.Basis[i].Charge == 0 {
		return fmt.Errorf("charge balance species %s must be charged", name)
	}
	if s.meaning[i] != types.MolesBulkSpecies {
		return fmt.Errorf("charge balance species %s must have a %s constraint", name, types.MolesBulkSpecies)
	}
	s.chargeBalanceIndex = i
	return nil
}

// buildAlgebraicInfo lays out the unknowns: water when its bulk amount is
// fixed, aqueous species with bulk constraints, then the kinetic species
func (s *System) buildAlgebraicInfo() {
	var (
		nb = s.mgd.NumBasis()
	)
	s.inAlgebraic = make([]bool, nb)
	s.algebraicPosition = make([]int, nb)
	s.algebraicBasis = s.algebraicBasis[:0]
	for i := 0; i < nb; i++ {
		sp := s.mgd.Basis[i]
		switch {
		case i == 0:
			s.inAlgebraic[i] = s.meaning[i] == types.MolesBulkWater
		case sp.IsMineral() || sp.IsGas():
			s.inAlgebraic[i] = false
		default:
			s.inAlgebraic[i] = s.meaning[i] == types.MolesBulkSpecies
		}
		s.algebraicPosition[i] = -1
		if s.inAlgebraic[i] {
			s.algebraicPosition[i] = len(s.algebraicBasis)
			s.algebraicBasis = append(s.algebraicBasis, i)
		}
		s.basisActivityKnown[i] = s.meaning[i].IsActivityFixed() || sp.IsMineral()
	}
	s.numBasisAlgebraic = len(s.algebraicBasis)
}

func (s *System) initBulkAndFree() {
	var (
		nb = s.mgd.NumBasis()
	)
	switch s.meaning[0] {
	case types.KgSolventWater:
		s.basisMolality[0] = s.constraintValue[0]
	case types.MolesBulkWater:
		s.basisMolality[0] = 0.999 * s.constraintValue[0] / MolesPerKgWater
		s.bulk[0] = s.constraintValue[0]
	default:
		s.basisMolality[0] = 1
	}
	nw := s.basisMolality[0]
	for i := 1; i < nb; i++ {
		value := s.constraintValue[i]
		switch s.meaning[i] {
		case types.MolesBulkSpecies:
			s.bulk[i] = value
			if s.mgd.Basis[i].IsMineral() {
				s.basisMolality[i] = math.Max(0.9*value, 0)
			} else {
				s.basisMolality[i] = math.Max(0.9*value/nw, s.minInitial)
			}
		case types.FreeMolality, types.FreeMolesMineralSpecies:
			s.basisMolality[i] = value
		case types.Activity:
			s.basisMolality[i] = value
			s.basisActivity[i] = value
		case types.Fugacity:
			s.basisActivity[i] = value
		}
	}
	if s.meaning[0] == types.Activity {
		s.basisActivity[0] = s.constraintValue[0]
	}
}

func (s *System) isBulkConstrained(i int) bool {
	return s.meaning[i].IsBulk()
}

func (s *System) chargedBasisAllBulk() bool {
	for i, sp := range s.mgd.Basis {
		if sp.Charge != 0 && !s.isBulkConstrained(i) {
			return false
		}
	}
	return true
}

// enforceChargeBalanceIfSimple fixes the charge-balance species bulk amount
// before the first solve when every charged basis species has a bulk
// constraint
func (s *System) enforceChargeBalanceIfSimple() {
	if !s.chargedBasisAllBulk() {
		return
	}
	s.EnforceChargeBalance()
	cb := s.chargeBalanceIndex
	s.basisMolality[cb] = math.Max(0.9*s.bulk[cb]/s.basisMolality[0], s.minInitial)
}

// EnforceChargeBalance sets the bulk amount of the charge-balance species so
// that the bulk composition is electrically neutral
func (s *System) EnforceChargeBalance() {
	var (
		cb     = s.chargeBalanceIndex
		charge float64
	)
	for i, sp := range s.mgd.Basis {
		if i == cb || sp.Charge == 0 {
			continue
		}
		charge += sp.Charge * s.chargeBalanceAmount(i, nil)
	}
	s.bulk[cb] = -charge / s.mgd.Basis[cb].Charge
	s.constraintValue[cb] = s.bulk[cb]
}

// chargeBalanceAmount is the amount of component i that enters the charge
// balance: the constrained bulk (plus additions) or, for species without a
// bulk constraint, the bulk implied by the current molalities
func (s *System) chargeBalanceAmount(i int, moleAdditions []float64) float64 {
	if s.isBulkConstrained(i) {
		if moleAdditions != nil {
			return s.bulk[i] + moleAdditions[i]
		}
		return s.bulk[i]
	}
	return s.computedBulk(i)
}

// computedBulk is the amount of component i held by free species, the
// equilibrium species and the kinetic species
func (s *System) computedBulk(i int) (b float64) {
	var (
		nw = s.basisMolality[0]
		sp = s.mgd.Basis[i]
	)
	switch {
	case i == 0:
		b = nw * MolesPerKgWater
	case sp.IsMineral():
		b = s.basisMolality[i]
	case sp.IsGas():
		b = 0
	default:
		b = nw * s.basisMolality[i]
	}
	for j := range s.mgd.Eqm {
		if coef := s.mgd.EqmStoi(j, i); coef != 0 {
			b += nw * coef * s.eqmMolality[j]
		}
	}
	for k := range s.mgd.Kin {
		b += s.mgd.KinStoi(k, i) * s.kinMoles[k]
	}
	return
}

// ComputeConsistentConfiguration brings activity coefficients, activities,
// equilibrium molalities, bulk compositions and free mineral moles in line
// with the current basis molalities
func (s *System) ComputeConsistentConfiguration() {
	var (
		nb = s.mgd.NumBasis()
		A  = DaviesA(s.temperature)
	)
	s.ionicStrength = s.is.IonicStrength(s.mgd, s.basisMolality, s.eqmMolality)
	s.stoichIonicStrength = s.is.StoichiometricIonicStrength(s.mgd, s.basisMolality, s.eqmMolality)
	I := s.ionicStrength
	if s.is.UseStoichiometric {
		I = s.stoichIonicStrength
	}
	for i := 1; i < nb; i++ {
		sp := s.mgd.Basis[i]
		if sp.IsMineral() || sp.IsGas() {
			s.basisLog10Gamma[i] = 0
			continue
		}
		s.basisLog10Gamma[i] = Log10GammaDavies(A, sp.Charge, I)
	}
	for j, sp := range s.mgd.Eqm {
		if sp.IsMineral() || sp.IsGas() {
			s.eqmLog10Gamma[j] = 0
			continue
		}
		s.eqmLog10Gamma[j] = Log10GammaDavies(A, sp.Charge, I)
	}
	// known activities fix the free molality, the rest follow the molality
	for i := 0; i < nb; i++ {
		sp := s.mgd.Basis[i]
		switch {
		case i == 0:
			if s.meaning[0] != types.Activity {
				s.basisActivity[0] = 1
			}
		case sp.IsMineral():
			s.basisActivity[i] = 1
		case sp.IsGas():
		case s.meaning[i] == types.Activity:
			s.basisMolality[i] = s.basisActivity[i] / math.Pow(10, s.basisLog10Gamma[i])
		default:
			s.basisActivity[i] = s.basisMolality[i] * math.Pow(10, s.basisLog10Gamma[i])
		}
	}
	s.computeEqmMolalities()
	for i := 0; i < nb; i++ {
		if !s.isBulkConstrained(i) {
			s.bulk[i] = s.computedBulk(i)
		}
	}
	s.computeFreeMineralMoles()
}

func (s *System) computeEqmMolalities() {
	var (
		log10A = s.log10BasisActivities()
	)
	for j, sp := range s.mgd.Eqm {
		if sp.IsMineral() || sp.IsGas() {
			s.eqmMolality[j] = 0
			continue
		}
		s.eqmMolality[j] = math.Pow(10, s.log10ActivityProduct(s.mgd.EqmStoichiometry, j, log10A)-
			s.eqmLogK[j]-s.eqmLog10Gamma[j])
	}
}

func (s *System) log10BasisActivities() (log10A []float64) {
	log10A = make([]float64, s.mgd.NumBasis())
	for i, a := range s.basisActivity {
		log10A[i] = math.Log10(a)
	}
	return
}

func (s *System) log10ActivityProduct(stoi utils.Matrix, row int, log10A []float64) (lap float64) {
	for i := range s.mgd.Basis {
		if coef := stoi.At(row, i); coef != 0 {
			lap += coef * log10A[i]
		}
	}
	return
}

// computeFreeMineralMoles gives bulk-constrained basis minerals the free
// moles left after the aqueous and kinetic species take their share
func (s *System) computeFreeMineralMoles() {
	var (
		nw = s.basisMolality[0]
	)
	for i, sp := range s.mgd.Basis {
		if !sp.IsMineral() || s.meaning[i] != types.MolesBulkSpecies {
			continue
		}
		free := s.bulk[i]
		for j := range s.mgd.Eqm {
			free -= nw * s.mgd.EqmStoi(j, i) * s.eqmMolality[j]
		}
		for k := range s.mgd.Kin {
			free -= s.mgd.KinStoi(k, i) * s.kinMoles[k]
		}
		s.basisMolality[i] = free
	}
}

// Copy returns an independent deep copy, used for step snapshots and to give
// each spatial node its own state
func (s *System) Copy() (c *System) {
	c = &System{
		mgd:                 s.mgd.Copy(),
		is:                  s.is.Copy(),
		swapper:             s.swapper,
		temperature:         s.temperature,
		eqmLogK:             utils.CopyF64(s.eqmLogK),
		kinLogK:             utils.CopyF64(s.kinLogK),
		minInitial:          s.minInitial,
		chargeBalanceIndex:  s.chargeBalanceIndex,
		meaning:             append([]types.ConstraintMeaning(nil), s.meaning...),
		constraintValue:     utils.CopyF64(s.constraintValue),
		rateConstant:        utils.CopyF64(s.rateConstant),
		bulk:                utils.CopyF64(s.bulk),
		basisMolality:       utils.CopyF64(s.basisMolality),
		basisActivity:       utils.CopyF64(s.basisActivity),
		basisActivityKnown:  utils.CopyBool(s.basisActivityKnown),
		basisLog10Gamma:     utils.CopyF64(s.basisLog10Gamma),
		eqmMolality:         utils.CopyF64(s.eqmMolality),
		eqmLog10Gamma:       utils.CopyF64(s.eqmLog10Gamma),
		kinMoles:            utils.CopyF64(s.kinMoles),
		kinMolesOld:         utils.CopyF64(s.kinMolesOld),
		ionicStrength:       s.ionicStrength,
		stoichIonicStrength: s.stoichIonicStrength,
		inAlgebraic:         utils.CopyBool(s.inAlgebraic),
		algebraicPosition:   utils.CopyInt(s.algebraicPosition),
		algebraicBasis:      utils.CopyInt(s.algebraicBasis),
		numBasisAlgebraic:   s.numBasisAlgebraic,
	}
	return
}

// Restore overwrites the receiver with a deep copy of snap
func (s *System) Restore(snap *System) {
	*s = *snap.Copy()
}
