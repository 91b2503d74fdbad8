package solver

import (
	"github.com/notargets/gochem/chemistry"
	"github.com/notargets/gochem/database"
	"github.com/notargets/gochem/utils"
)

// EquilibriumSystem is the chemistry the solver drives. Unknowns are
// addressed by position in the algebraic system, the basis species come
// first and the kinetic species last. Mole additions are indexed by basis
// species then kinetic species.
type EquilibriumSystem interface {
	NumInAlgebraicSystem() int
	NumBasisInAlgebraicSystem() int
	AlgebraicVariableValues() []float64
	SetAlgebraicVariables(values []float64) error
	ResidualComponent(a int, moleAdditions []float64) float64
	ComputeJacobian(residual []float64, jacobian utils.Matrix, moleAdditions []float64, dMoleAdditions utils.Matrix)
	AddKineticRates(dt float64, moleAdditions []float64, dMoleAdditions utils.Matrix)
	AddToBulkMoles(i int, amount float64)
	PerformSwap(out, in int) error
	AlterChargeBalanceSpecies(threshold float64) bool
	EnforceChargeBalance()
	UpdateOldWithCurrent(moleAdditions []float64)

	ModelDatabase() *database.ModelDatabase
	Swapper() database.SwapSearcher
	IonicStrengthCalculator() chemistry.IonicStrengthCalculator
	EqmMolality() []float64
	SaturationIndices() []float64
	SolventMassAndFreeMolalityAndMineralMoles() []float64
	InAlgebraicSystem() []bool
	ChargeBalanceBasisIndex() int
	BasisActivityKnown() []bool
}

var _ EquilibriumSystem = (*chemistry.System)(nil)
