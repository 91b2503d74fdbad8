package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/notargets/gochem/types"
)

func testDB(t *testing.T) *Database {
	db, err := ReadDatabase("testdata/carbonate.yaml")
	if err != nil {
		t.Fatal(err)
	}
	return db
}

func TestDatabase(t *testing.T) {
	{
		db := testDB(t)
		assert.Equal(t, []float64{25, 100}, db.Temperatures)
		assert.Equal(t, 6, len(db.Basis))
		assert.Equal(t, 6, len(db.Secondary))
		assert.Equal(t, 2, len(db.Minerals))
		assert.Equal(t, 1, len(db.Gases))
		assert.Equal(t, -1., db.Secondary[0].Species["H+"])
	}
	{ // Validation
		_, err := ParseDatabase([]byte("temperatures: []\n"))
		assert.Error(t, err)
		_, err = ParseDatabase([]byte("temperatures: [100, 25]\n"))
		assert.Error(t, err)
		_, err = ParseDatabase([]byte(`
temperatures: [25, 100]
basis_species: [{name: H2O}]
secondary_species:
  - {name: OH-, species: {H2O: 1}, logk: [14]}
`))
		assert.Error(t, err)
		_, err = ParseDatabase([]byte(`
temperatures: [25]
basis_species: [{name: H2O}, {name: H2O}]
`))
		assert.Error(t, err)
		_, err = ReadDatabase("testdata/missing.yaml")
		assert.Error(t, err)
	}
}

func TestModelDatabase(t *testing.T) {
	db := testDB(t)
	{ // Only reactions closed over the basis are pertinent
		mgd, err := NewModelDatabase(db, []string{"H2O", "H+", "Na+", "Cl-"}, nil)
		assert.NoError(t, err)
		var names []string
		for _, s := range mgd.Eqm {
			names = append(names, s.Name)
		}
		assert.Equal(t, []string{"OH-", "NaCl(aq)", "Halite"}, names)
		j, ok := mgd.EqmIndex("Halite")
		assert.True(t, ok)
		assert.Equal(t, types.Mineral, mgd.Eqm[j].Kind)
		i, _ := mgd.BasisIndex("Cl-")
		assert.Equal(t, 1., mgd.EqmStoi(j, i))
		assert.Equal(t, 0., mgd.EqmStoi(j, 0))
		oh, _ := mgd.EqmIndex("OH-")
		assert.Equal(t, 1., mgd.EqmStoi(oh, 0))
		assert.Equal(t, -1., mgd.EqmStoi(oh, 1))
	}
	{ // Kinetic species leave the equilibrium set
		mgd, err := NewModelDatabase(db, []string{"H2O", "H+", "Ca++", "HCO3-"}, []string{"Calcite"})
		assert.NoError(t, err)
		_, isEqm := mgd.EqmIndex("Calcite")
		assert.False(t, isEqm)
		k, ok := mgd.KinIndex("Calcite")
		assert.True(t, ok)
		assert.Equal(t, types.Mineral, mgd.Kin[k].Kind)
		assert.Equal(t, -1., mgd.KinStoi(k, 1))
		_, kinLogK := mgd.LogKAt(25)
		assert.Equal(t, []float64{1.85}, kinLogK)
	}
	{ // Errors
		_, err := NewModelDatabase(db, []string{"H+", "H2O"}, nil)
		assert.Error(t, err)
		_, err = NewModelDatabase(db, []string{"H2O", "Mg++"}, nil)
		assert.Error(t, err)
		_, err = NewModelDatabase(db, []string{"H2O", "H+", "H+"}, nil)
		assert.Error(t, err)
		_, err = NewModelDatabase(db, []string{"H2O", "H+"}, []string{"Calcite"})
		assert.Error(t, err)
		_, err = NewModelDatabase(db, []string{"H2O", "H+"}, []string{"Dolomite"})
		assert.Error(t, err)
	}
	{ // Temperature interpolation clamps at the table ends
		mgd, _ := NewModelDatabase(db, []string{"H2O", "H+"}, nil)
		lk, _ := mgd.LogKAt(25)
		assert.InDelta(t, 13.99, lk[0], 1.e-12)
		lk, _ = mgd.LogKAt(62.5)
		assert.InDelta(t, (13.99+12.25)/2, lk[0], 1.e-12)
		lk, _ = mgd.LogKAt(0)
		assert.InDelta(t, 13.99, lk[0], 1.e-12)
		lk, _ = mgd.LogKAt(300)
		assert.InDelta(t, 12.25, lk[0], 1.e-12)
	}
	{ // Copies are independent
		mgd, _ := NewModelDatabase(db, []string{"H2O", "H+"}, nil)
		cp := mgd.Copy()
		cp.EqmStoichiometry.Set(0, 0, 7)
		cp.Basis[1].Name = "X"
		assert.Equal(t, 1., mgd.EqmStoi(0, 0))
		assert.Equal(t, "H+", mgd.Basis[1].Name)
		_, ok := cp.BasisIndex("H+")
		assert.True(t, ok) // index is not rebuilt by a direct edit
	}
}

func TestSwapper(t *testing.T) {
	var (
		db    = testDB(t)
		sw    = NewSwapper(1.e-6)
		basis = []string{"H2O", "H+", "Ca++", "HCO3-"}
	)
	{ // Swap Calcite in for Ca++
		mgd, err := NewModelDatabase(db, basis, nil)
		assert.NoError(t, err)
		var (
			ca, _      = mgd.BasisIndex("Ca++")
			calcite, _ = mgd.EqmIndex("Calcite")
			co3, _     = mgd.EqmIndex("CO3--")
			cahco3, _  = mgd.EqmIndex("CaHCO3+")
			bulk       = []float64{55.5, 0.001, 0.01, 0.02}
		)
		assert.NoError(t, sw.PerformSwap(mgd, bulk, ca, calcite))
		assert.Equal(t, "Calcite", mgd.Basis[ca].Name)
		assert.Equal(t, "Ca++", mgd.Eqm[calcite].Name)
		i, ok := mgd.BasisIndex("Calcite")
		assert.True(t, ok)
		assert.Equal(t, ca, i)
		_, ok = mgd.EqmIndex("Calcite")
		assert.False(t, ok)
		// Ca++ = Calcite + H+ - HCO3-, logK = -1.85
		assert.InDeltaSlice(t, []float64{0, 1, 1, -1}, mgd.EqmStoichiometry.Row(calcite), 1.e-12)
		assert.InDeltaSlice(t, []float64{-1.85, -1.1}, mgd.EqmLogK.Row(calcite), 1.e-12)
		// CaHCO3+ = Ca++ + HCO3- becomes Calcite + H+
		assert.InDeltaSlice(t, []float64{0, 1, 1, 0}, mgd.EqmStoichiometry.Row(cahco3), 1.e-12)
		assert.InDeltaSlice(t, []float64{-1.04 - 1.85, -1.5 - 1.1}, mgd.EqmLogK.Row(cahco3), 1.e-12)
		// CO3-- does not involve Ca++ and is untouched
		assert.InDeltaSlice(t, []float64{0, -1, 0, 1}, mgd.EqmStoichiometry.Row(co3), 1.e-12)
		assert.InDeltaSlice(t, []float64{10.33, 10.08}, mgd.EqmLogK.Row(co3), 1.e-12)
		// Bulk: Calcite takes Ca, H+ and HCO3- are corrected by the calcite reaction
		assert.InDeltaSlice(t, []float64{55.5, 0.011, 0.01, 0.01}, bulk, 1.e-12)

		// Swapping back restores the original tables
		calciteBasis, _ := mgd.BasisIndex("Calcite")
		caEqm, _ := mgd.EqmIndex("Ca++")
		assert.NoError(t, sw.PerformSwap(mgd, bulk, calciteBasis, caEqm))
		orig, _ := NewModelDatabase(db, basis, nil)
		assert.InDeltaSlice(t, orig.EqmStoichiometry.Data(), mgd.EqmStoichiometry.Data(), 1.e-12)
		assert.InDeltaSlice(t, orig.EqmLogK.Data(), mgd.EqmLogK.Data(), 1.e-12)
		assert.InDeltaSlice(t, []float64{55.5, 0.001, 0.01, 0.02}, bulk, 1.e-12)
	}
	{ // Kinetic reactions follow the basis
		mgd, _ := NewModelDatabase(db, basis, []string{"Calcite"})
		ca, _ := mgd.BasisIndex("Ca++")
		cahco3, _ := mgd.EqmIndex("CaHCO3+")
		assert.NoError(t, sw.PerformSwap(mgd, nil, ca, cahco3))
		// Calcite = Ca++ - H+ + HCO3- = CaHCO3+ - H+
		assert.InDeltaSlice(t, []float64{0, -1, 1, 0}, mgd.KinStoichiometry.Row(0), 1.e-12)
		assert.InDeltaSlice(t, []float64{1.85 + 1.04, 1.1 + 1.5}, mgd.KinLogK.Row(0), 1.e-12)
	}
	{ // Illegal swaps
		mgd, _ := NewModelDatabase(db, basis, nil)
		co3, _ := mgd.EqmIndex("CO3--")
		ca, _ := mgd.BasisIndex("Ca++")
		oh, _ := mgd.EqmIndex("OH-")
		assert.Error(t, sw.CheckSwap(mgd, ca, co3))
		assert.Error(t, sw.CheckSwap(mgd, 0, oh))
		assert.Error(t, sw.CheckSwap(mgd, 9, oh))
		assert.Error(t, sw.CheckSwap(mgd, ca, 99))
		assert.Error(t, sw.PerformSwap(mgd, nil, ca, co3))
	}
	{ // Best swap prefers abundant species and honours the mineral and gas flags
		mgd, _ := NewModelDatabase(db, basis, nil)
		var (
			hco3, _    = mgd.BasisIndex("HCO3-")
			co2, _     = mgd.EqmIndex("CO2(aq)")
			co3, _     = mgd.EqmIndex("CO3--")
			calcite, _ = mgd.EqmIndex("Calcite")
			co2g, _    = mgd.EqmIndex("CO2(g)")
			molality   = make([]float64, mgd.NumEqm())
		)
		molality[co2] = 1.e-3
		molality[co3] = 1.e-2
		best, ok := sw.FindBestEqmSwap(hco3, mgd, molality, false, false)
		assert.True(t, ok)
		assert.Equal(t, co3, best)
		molality[co3] = 0
		molality[co2] = 0
		molality[calcite] = 5
		best, ok = sw.FindBestEqmSwap(hco3, mgd, molality, false, false)
		assert.True(t, ok)
		assert.NotEqual(t, calcite, best)
		best, _ = sw.FindBestEqmSwap(hco3, mgd, molality, true, false)
		assert.Equal(t, calcite, best)
		molality[co2g] = 10
		best, _ = sw.FindBestEqmSwap(hco3, mgd, molality, true, true)
		assert.Equal(t, co2g, best)
		_, ok = sw.FindBestEqmSwap(0, mgd, molality, true, true)
		assert.False(t, ok)
	}
}
