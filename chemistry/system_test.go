package chemistry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/notargets/gochem/database"
	"github.com/notargets/gochem/types"
	"github.com/notargets/gochem/utils"
)

func testModel(t *testing.T, basis, kinetic []string) *database.ModelDatabase {
	db, err := database.ReadDatabase("../database/testdata/carbonate.yaml")
	if err != nil {
		t.Fatal(err)
	}
	mgd, err := database.NewModelDatabase(db, basis, kinetic)
	if err != nil {
		t.Fatal(err)
	}
	return mgd
}

// naclSystem has pH fixed at 7, bulk Na+ and Cl- balancing the charge
func naclSystem(t *testing.T, maxIS float64, waterMeaning types.ConstraintMeaning, water float64) *System {
	mgd := testModel(t, []string{"H2O", "H+", "Na+", "Cl-"}, nil)
	s, err := NewSystem(mgd, NewIonicStrength(maxIS, maxIS, false), database.NewSwapper(1.e-6), SystemConfig{
		ChargeBalanceSpecies: "Cl-",
		Constraints: []Constraint{
			{Species: "H2O", Value: water, Meaning: waterMeaning},
			{Species: "H+", Value: 1.e-7, Meaning: types.Activity},
			{Species: "Na+", Value: 0.1, Meaning: types.MolesBulkSpecies},
			{Species: "Cl-", Value: 0.1, Meaning: types.MolesBulkSpecies},
		},
		Temperature: 25,
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestNewSystem(t *testing.T) {
	mgd := testModel(t, []string{"H2O", "H+", "Na+", "Cl-"}, nil)
	newSys := func(cb string, constraints ...Constraint) error {
		_, err := NewSystem(mgd.Copy(), NewIonicStrength(3, 3, false), database.NewSwapper(1.e-6),
			SystemConfig{ChargeBalanceSpecies: cb, Constraints: constraints, Temperature: 25})
		return err
	}
	var (
		water = Constraint{Species: "H2O", Value: 1, Meaning: types.KgSolventWater}
		h     = Constraint{Species: "H+", Value: 1.e-7, Meaning: types.Activity}
		na    = Constraint{Species: "Na+", Value: 0.1, Meaning: types.MolesBulkSpecies}
		cl    = Constraint{Species: "Cl-", Value: 0.1, Meaning: types.MolesBulkSpecies}
	)
	{
		assert.NoError(t, newSys("Cl-", water, h, na, cl))
	}
	{ // Every basis species needs exactly one constraint
		assert.Error(t, newSys("Cl-", water, h, na))
		assert.Error(t, newSys("Cl-", water, h, na, cl, cl))
		assert.Error(t, newSys("Cl-", water, h, na, cl,
			Constraint{Species: "Ca++", Value: 1, Meaning: types.MolesBulkSpecies}))
	}
	{ // Meanings must suit the species
		assert.Error(t, newSys("Cl-", water, Constraint{Species: "H+", Value: 1, Meaning: types.Fugacity}, na, cl))
		assert.Error(t, newSys("Cl-", Constraint{Species: "H2O", Value: 1, Meaning: types.FreeMolality}, h, na, cl))
		assert.Error(t, newSys("Cl-", water, Constraint{Species: "H+", Value: -1, Meaning: types.Activity}, na, cl))
	}
	{ // The charge-balance species must be charged and bulk constrained
		assert.Error(t, newSys("H2O", water, h, na, cl))
		assert.Error(t, newSys("H+", water, h, na, cl))
		assert.Error(t, newSys("K+", water, h, na, cl))
	}
	{ // Initial swaps
		_, err := NewSystem(mgd.Copy(), NewIonicStrength(3, 3, false), database.NewSwapper(1.e-6), SystemConfig{
			SwapOutOfBasis: []string{"Na+"},
			SwapIntoBasis:  []string{},
		})
		assert.Error(t, err)
		_, err = NewSystem(mgd.Copy(), NewIonicStrength(3, 3, false), database.NewSwapper(1.e-6), SystemConfig{
			SwapOutOfBasis: []string{"Na+"},
			SwapIntoBasis:  []string{"Calcite"},
		})
		assert.Error(t, err)
		s, err := NewSystem(mgd.Copy(), NewIonicStrength(3, 3, false), database.NewSwapper(1.e-6), SystemConfig{
			SwapOutOfBasis:       []string{"Na+"},
			SwapIntoBasis:        []string{"Halite"},
			ChargeBalanceSpecies: "Cl-",
			Constraints: []Constraint{water, h, cl,
				{Species: "Halite", Value: 2, Meaning: types.FreeMolesMineralSpecies}},
			Temperature: 25,
		})
		assert.NoError(t, err)
		i, ok := s.ModelDatabase().BasisIndex("Halite")
		assert.True(t, ok)
		assert.Equal(t, 2., s.SolventMassAndFreeMolalityAndMineralMoles()[i])
		assert.True(t, s.BasisActivityKnown()[i])
		assert.False(t, s.InAlgebraicSystem()[i])
	}
}

func TestConsistentConfiguration(t *testing.T) {
	s := naclSystem(t, 3, types.KgSolventWater, 1)
	mgd := s.ModelDatabase()
	{ // Layout: water and H+ are fixed, Na+ and Cl- are unknowns
		assert.Equal(t, 2, s.NumInAlgebraicSystem())
		assert.Equal(t, []bool{false, false, true, true}, s.InAlgebraicSystem())
		assert.InDeltaSlice(t, []float64{0.09, 0.09}, s.AlgebraicVariableValues(), 1.e-15)
		assert.Equal(t, 3, s.ChargeBalanceBasisIndex())
	}
	{ // Mass action holds for OH-
		j, _ := mgd.EqmIndex("OH-")
		lgGamma := Log10GammaDavies(DaviesA(25), -1, s.IonicStrength())
		assert.InDelta(t, -13.99, math.Log10(s.EqmMolality()[j])+lgGamma+math.Log10(1.e-7), 1.e-10)
		pH, ok := s.PH()
		assert.True(t, ok)
		assert.InDelta(t, 7., pH, 1.e-12)
	}
	{ // Minerals carry no molality, dilute halite is undersaturated
		j, _ := mgd.EqmIndex("Halite")
		assert.Equal(t, 0., s.EqmMolality()[j])
		assert.Less(t, s.SaturationIndices()[j], 0.)
		k, _ := mgd.EqmIndex("OH-")
		assert.Equal(t, 0., s.SaturationIndices()[k])
	}
	{ // The residual is held minus required
		var (
			add = make([]float64, mgd.NumBasis())
			jj  = mustEqm(t, mgd, "NaCl(aq)")
		)
		expected := s.SolventMassAndFreeMolalityAndMineralMoles()[2] + s.EqmMolality()[jj] - 0.1
		assert.InDelta(t, expected, s.ResidualComponent(0, add), 1.e-15)
		add[2] = 0.05
		assert.InDelta(t, expected-0.05, s.ResidualComponent(0, add), 1.e-15)
	}
	{ // Unknowns must stay positive
		assert.Error(t, s.SetAlgebraicVariables([]float64{0.1, -0.1}))
		assert.Error(t, s.SetAlgebraicVariables([]float64{0.1}))
		assert.NoError(t, s.SetAlgebraicVariables([]float64{0.1, 0.08}))
		assert.Equal(t, []float64{0.1, 0.08}, s.AlgebraicVariableValues())
	}
}

func mustEqm(t *testing.T, mgd *database.ModelDatabase, name string) int {
	j, ok := mgd.EqmIndex(name)
	if !ok {
		t.Fatalf("%s is not an equilibrium species", name)
	}
	return j
}

func TestJacobian(t *testing.T) {
	// Zero maximum ionic strength keeps every activity coefficient at one, so
	// the analytic Jacobian matches finite differences exactly
	s := naclSystem(t, 0, types.MolesBulkWater, 55.51)
	var (
		n    = s.NumInAlgebraicSystem()
		nb   = s.ModelDatabase().NumBasis()
		add  = make([]float64, nb)
		dadd = utils.NewMatrix(nb, nb)
		jac  = utils.NewMatrix(n, n)
		res  = func() (r []float64) {
			r = make([]float64, n)
			for a := range r {
				r[a] = s.ResidualComponent(a, add)
			}
			return
		}
	)
	assert.Equal(t, 3, n)
	x0 := s.AlgebraicVariableValues()
	s.ComputeJacobian(res(), jac, add, dadd)
	for c := 0; c < n; c++ {
		var (
			h  = 1.e-6 * x0[c]
			xp = utils.CopyF64(x0)
			xm = utils.CopyF64(x0)
		)
		xp[c] += h
		xm[c] -= h
		assert.NoError(t, s.SetAlgebraicVariables(xp))
		rp := res()
		assert.NoError(t, s.SetAlgebraicVariables(xm))
		rm := res()
		for a := 0; a < n; a++ {
			fd := (rp[a] - rm[a]) / (2 * h)
			assert.InDeltaf(t, fd, jac.At(a, c), 1.e-6*math.Max(1, math.Abs(fd)), "J[%d][%d]", a, c)
		}
	}
	assert.NoError(t, s.SetAlgebraicVariables(x0))
}

func TestBulkAndCopy(t *testing.T) {
	s := naclSystem(t, 3, types.KgSolventWater, 1)
	{ // Only bulk-constrained species take additions
		s.AddToBulkMoles(2, 0.01)
		assert.InDelta(t, 0.11, s.BulkMoles()[2], 1.e-15)
		assert.InDelta(t, 0.11, s.ConstraintValue(2), 1.e-15)
		before := s.BulkMoles()[1]
		s.AddToBulkMoles(1, 5)
		assert.Equal(t, before, s.BulkMoles()[1])
	}
	{ // Copies are independent
		c := s.Copy()
		c.AddToBulkMoles(2, 1)
		c.ModelDatabase().EqmStoichiometry.Set(0, 0, 42)
		assert.InDelta(t, 0.11, s.BulkMoles()[2], 1.e-15)
		assert.NotEqual(t, 42., s.ModelDatabase().EqmStoi(0, 0))
		s.Restore(c)
		assert.InDelta(t, 1.11, s.BulkMoles()[2], 1.e-15)
		c.AddToBulkMoles(2, 1)
		assert.InDelta(t, 1.11, s.BulkMoles()[2], 1.e-15)
	}
	{ // All-bulk charged species: H+ balances the excess chloride
		mgd := testModel(t, []string{"H2O", "H+", "Na+", "Cl-"}, nil)
		s, err := NewSystem(mgd, NewIonicStrength(3, 3, false), database.NewSwapper(1.e-6), SystemConfig{
			ChargeBalanceSpecies: "H+",
			Constraints: []Constraint{
				{Species: "H2O", Value: 55.51, Meaning: types.MolesBulkWater},
				{Species: "H+", Value: 0, Meaning: types.MolesBulkSpecies},
				{Species: "Na+", Value: 0.1, Meaning: types.MolesBulkSpecies},
				{Species: "Cl-", Value: 0.12, Meaning: types.MolesBulkSpecies},
			},
			Temperature: 25,
		})
		assert.NoError(t, err)
		assert.InDelta(t, 0.02, s.BulkMoles()[1], 1.e-15)
		s.AddToBulkMoles(3, 0.01)
		s.EnforceChargeBalance()
		assert.InDelta(t, 0.03, s.BulkMoles()[1], 1.e-15)
	}
}

func TestSystemMutation(t *testing.T) {
	{ // Closing the system fixes every amount
		s := naclSystem(t, 3, types.KgSolventWater, 1)
		s.CloseSystem()
		assert.Equal(t, types.MolesBulkWater, s.ConstraintMeaning(0))
		assert.Equal(t, types.MolesBulkSpecies, s.ConstraintMeaning(1))
		assert.Equal(t, 4, s.NumBasisInAlgebraicSystem())
		j := mustEqm(t, s.ModelDatabase(), "OH-")
		assert.InDelta(t, MolesPerKgWater+s.EqmMolality()[j], s.BulkMoles()[0], 1.e-10)
	}
	{
		s := naclSystem(t, 3, types.KgSolventWater, 1)
		assert.Error(t, s.ChangeConstraintToBulk(7))
		assert.NoError(t, s.ChangeConstraintToBulk(1))
		assert.Equal(t, types.MolesBulkSpecies, s.ConstraintMeaning(1))
		assert.Equal(t, 3, s.NumBasisInAlgebraicSystem())
		assert.NoError(t, s.ChangeConstraintToBulk(2)) // already bulk
		assert.Equal(t, 3, s.NumBasisInAlgebraicSystem())
	}
	{ // Temperature changes the equilibrium constants
		s := naclSystem(t, 3, types.KgSolventWater, 1)
		s.SetTemperature(100)
		assert.Equal(t, 100., s.Temperature())
		j := mustEqm(t, s.ModelDatabase(), "OH-")
		lgGamma := Log10GammaDavies(DaviesA(100), -1, s.IonicStrength())
		assert.InDelta(t, -12.25, math.Log10(s.EqmMolality()[j])+lgGamma+math.Log10(1.e-7), 1.e-10)
	}
	{
		s := naclSystem(t, 3, types.KgSolventWater, 1)
		assert.Error(t, s.SetConstraintValue(1, -1))
		assert.NoError(t, s.SetConstraintValue(1, 1.e-5))
		pH, _ := s.PH()
		assert.InDelta(t, 5., pH, 1.e-12)
		assert.NoError(t, s.SetConstraintValue(2, 0.2))
		assert.Equal(t, 0.2, s.BulkMoles()[2])
	}
	{ // Flushing half the fluid removes half the dissolved sodium
		s := naclSystem(t, 3, types.KgSolventWater, 1)
		var (
			mgd     = s.ModelDatabase()
			aqueous = s.SolventMassAndFreeMolalityAndMineralMoles()[2] + s.EqmMolality()[mustEqm(t, mgd, "NaCl(aq)")]
		)
		assert.Error(t, s.RemoveFluidFraction(2))
		assert.NoError(t, s.RemoveFluidFraction(0.5))
		assert.InDelta(t, 0.1-0.5*aqueous, s.BulkMoles()[2], 1.e-15)
	}
	{ // The charge-balance role moves only below the threshold
		s := naclSystem(t, 3, types.KgSolventWater, 1)
		assert.False(t, s.AlterChargeBalanceSpecies(1.e-20))
		assert.True(t, s.AlterChargeBalanceSpecies(1))
		assert.Equal(t, 2, s.ChargeBalanceBasisIndex())
	}
}

func TestSystemSwap(t *testing.T) {
	mgd := testModel(t, []string{"H2O", "H+", "Ca++", "HCO3-"}, nil)
	s, err := NewSystem(mgd, NewIonicStrength(3, 3, false), database.NewSwapper(1.e-6), SystemConfig{
		ChargeBalanceSpecies: "HCO3-",
		Constraints: []Constraint{
			{Species: "H2O", Value: 1, Meaning: types.KgSolventWater},
			{Species: "H+", Value: 1.e-8, Meaning: types.Activity},
			{Species: "Ca++", Value: 1.e-3, Meaning: types.MolesBulkSpecies},
			{Species: "HCO3-", Value: 2.e-3, Meaning: types.MolesBulkSpecies},
		},
		Temperature: 25,
	})
	assert.NoError(t, err)
	var (
		calcite = mustEqm(t, mgd, "Calcite")
		gas     = mustEqm(t, mgd, "CO2(g)")
	)
	{
		assert.Error(t, s.PerformSwap(0, calcite))
		assert.Error(t, s.PerformSwap(3, calcite))
		assert.Error(t, s.PerformSwap(2, gas))
	}
	{ // Ca++ leaves the basis and calcite holds all the calcium
		assert.NoError(t, s.PerformSwap(2, calcite))
		assert.Equal(t, "Calcite", mgd.Basis[2].Name)
		assert.Equal(t, "Ca++", mgd.Eqm[calcite].Name)
		assert.Equal(t, types.MolesBulkSpecies, s.ConstraintMeaning(2))
		assert.InDelta(t, 1.e-3, s.BulkMoles()[2], 1.e-15)
		assert.InDelta(t, 1.e-3, s.BulkMoles()[3], 1.e-15)
		assert.True(t, s.BasisActivityKnown()[2])
		assert.Equal(t, 1, s.NumBasisInAlgebraicSystem())
		assert.Greater(t, s.EqmMolality()[calcite], 0.)
	}
}

func TestKineticRates(t *testing.T) {
	mgd := testModel(t, []string{"H2O", "H+", "Ca++", "HCO3-"}, []string{"Calcite"})
	s, err := NewSystem(mgd, NewIonicStrength(3, 3, false), database.NewSwapper(1.e-6), SystemConfig{
		ChargeBalanceSpecies: "HCO3-",
		Constraints: []Constraint{
			{Species: "H2O", Value: 1, Meaning: types.KgSolventWater},
			{Species: "H+", Value: 1.e-8, Meaning: types.Activity},
			{Species: "Ca++", Value: 1.e-6, Meaning: types.MolesBulkSpecies},
			{Species: "HCO3-", Value: 2.e-6, Meaning: types.MolesBulkSpecies},
		},
		Kinetic:     []KineticSpecies{{Name: "Calcite", InitialMoles: 1, RateConstant: 1.e-6}},
		Temperature: 25,
	})
	assert.NoError(t, err)
	_, isEqm := mgd.EqmIndex("Calcite")
	assert.False(t, isEqm)
	assert.Equal(t, 3, s.NumInAlgebraicSystem())
	{ // Far from saturation the mineral dissolves at k n
		rates := s.KineticRates()
		assert.InDelta(t, 1.e-6, rates[0], 1.e-9)
		var (
			nb   = mgd.NumBasis()
			add  = make([]float64, nb+1)
			dadd = utils.NewMatrix(nb+1, nb+1)
		)
		s.AddKineticRates(10, add, dadd)
		assert.InDelta(t, -1.e-5, add[nb], 1.e-8)
		assert.InDelta(t, -1.e-5, dadd.At(nb, nb), 1.e-8)
		// The kinetic row of the residual is n - n_old - additions
		assert.InDelta(t, 1.e-5, s.ResidualComponent(2, add), 1.e-8)
	}
	{
		_, err = NewSystem(mgd.Copy(), NewIonicStrength(3, 3, false), database.NewSwapper(1.e-6), SystemConfig{
			ChargeBalanceSpecies: "HCO3-",
			Constraints: []Constraint{
				{Species: "H2O", Value: 1, Meaning: types.KgSolventWater},
				{Species: "H+", Value: 1.e-8, Meaning: types.Activity},
				{Species: "Ca++", Value: 1, Meaning: types.MolesBulkSpecies},
				{Species: "HCO3-", Value: 1, Meaning: types.MolesBulkSpecies},
			},
		})
		assert.Error(t, err)
	}
}
