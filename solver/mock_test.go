package solver

import (
	"testing"

	"github.com/notargets/gochem/chemistry"
	"github.com/notargets/gochem/database"
	"github.com/notargets/gochem/utils"
)

const mockDB = `
temperatures: [25]
basis_species:
  - {name: H2O}
  - {name: A+, charge: 1}
secondary_species:
  - {name: B, species: {A+: 1}, logk: [0]}
minerals:
  - {name: Am, species: {A+: 1}, logk: [1]}
`

type swapRequest struct {
	out             int
	minerals, gases bool
}

type mockSearcher struct {
	requests []swapRequest
	in       int
	ok       bool
}

func (ms *mockSearcher) FindBestEqmSwap(out int, mgd *database.ModelDatabase, eqmMolality []float64,
	minerals, gases bool) (int, bool) {
	ms.requests = append(ms.requests, swapRequest{out: out, minerals: minerals, gases: gases})
	return ms.in, ms.ok
}

// mockSystem has one unknown per basis species and the linear residual
// x - target - additions
type mockSystem struct {
	mgd           *database.ModelDatabase
	x, target     []float64
	bulk          []float64
	si            []float64
	activityKnown []bool
	cb            int
	searcher      *mockSearcher
	is            *chemistry.IonicStrength
	swaps         [][2]int
	reject        error // returned by SetAlgebraicVariables when set
}

func newMockSystem(t *testing.T, x, target []float64) *mockSystem {
	db, err := database.ParseDatabase([]byte(mockDB))
	if err != nil {
		t.Fatal(err)
	}
	mgd, err := database.NewModelDatabase(db, []string{"H2O", "A+"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return &mockSystem{
		mgd:           mgd,
		x:             x,
		target:        target,
		bulk:          make([]float64, len(x)),
		si:            make([]float64, mgd.NumEqm()),
		activityKnown: make([]bool, len(x)),
		searcher:      &mockSearcher{ok: true},
		is:            chemistry.NewIonicStrength(0, 0, false),
	}
}

func (m *mockSystem) NumInAlgebraicSystem() int          { return len(m.x) }
func (m *mockSystem) NumBasisInAlgebraicSystem() int     { return len(m.x) }
func (m *mockSystem) AlgebraicVariableValues() []float64 { return utils.CopyF64(m.x) }

func (m *mockSystem) SetAlgebraicVariables(values []float64) error {
	if m.reject != nil {
		return m.reject
	}
	copy(m.x, values)
	return nil
}

func (m *mockSystem) ResidualComponent(a int, moleAdditions []float64) float64 {
	return m.x[a] - m.target[a] - moleAdditions[a]
}

func (m *mockSystem) ComputeJacobian(residual []float64, jacobian utils.Matrix, moleAdditions []float64,
	dMoleAdditions utils.Matrix) {
	jacobian.Zero()
	for a := range m.x {
		jacobian.Set(a, a, 1)
	}
}

func (m *mockSystem) AddKineticRates(dt float64, moleAdditions []float64, dMoleAdditions utils.Matrix) {
}

func (m *mockSystem) AddToBulkMoles(i int, amount float64) {
	m.bulk[i] += amount
}

func (m *mockSystem) PerformSwap(out, in int) error {
	m.swaps = append(m.swaps, [2]int{out, in})
	return nil
}

func (m *mockSystem) AlterChargeBalanceSpecies(threshold float64) bool { return false }
func (m *mockSystem) EnforceChargeBalance()                            {}
func (m *mockSystem) UpdateOldWithCurrent(moleAdditions []float64)     {}

func (m *mockSystem) ModelDatabase() *database.ModelDatabase                     { return m.mgd }
func (m *mockSystem) Swapper() database.SwapSearcher                             { return m.searcher }
func (m *mockSystem) IonicStrengthCalculator() chemistry.IonicStrengthCalculator { return m.is }
func (m *mockSystem) EqmMolality() []float64                                     { return make([]float64, m.mgd.NumEqm()) }
func (m *mockSystem) SaturationIndices() []float64                               { return m.si }
func (m *mockSystem) SolventMassAndFreeMolalityAndMineralMoles() []float64       { return m.x }
func (m *mockSystem) ChargeBalanceBasisIndex() int                               { return m.cb }
func (m *mockSystem) BasisActivityKnown() []bool                                 { return m.activityKnown }
func (m *mockSystem) InAlgebraicSystem() []bool {
	in := make([]bool, len(m.x))
	for i := range in {
		in[i] = true
	}
	return in
}

var _ EquilibriumSystem = (*mockSystem)(nil)
