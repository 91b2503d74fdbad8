package database

import (
	"fmt"
	"sort"

	"github.com/notargets/gochem/types"
	"github.com/notargets/gochem/utils"
)

// Species holds the per-species constants that travel with a species when it
// moves between the basis and the equilibrium set
type Species struct {
	Name            string
	Kind            types.SpeciesKind
	Charge          float64
	IonSize         float64
	MolecularWeight float64
}

func (s Species) IsMineral() bool { return s.Kind == types.Mineral }
func (s Species) IsGas() bool     { return s.Kind == types.Gas }

// ModelDatabase is the subset of a thermodynamic database used by one model,
// written in terms of the model's current basis. Stoichiometry rows are
// indexed by equilibrium (or kinetic) species, columns by basis position.
// LogK rows follow the same species order and columns the temperatures.
type ModelDatabase struct {
	Temperatures     []float64
	Basis            []Species
	Eqm              []Species
	Kin              []Species
	EqmStoichiometry utils.Matrix
	EqmLogK          utils.Matrix
	KinStoichiometry utils.Matrix
	KinLogK          utils.Matrix
	basisIndex       map[string]int
	eqmIndex         map[string]int
	kinIndex         map[string]int
}

// NewModelDatabase selects the named basis species, every secondary species,
// mineral and gas whose reaction only involves them, and the named kinetic
// species. Water must be the first basis species.
func NewModelDatabase(db *Database, basisNames, kineticNames []string) (mgd *ModelDatabase, err error) {
	if len(basisNames) == 0 || basisNames[0] != "H2O" {
		return nil, fmt.Errorf("the first basis species must be H2O")
	}
	mgd = &ModelDatabase{
		Temperatures: utils.CopyF64(db.Temperatures),
	}
	inBasis := make(map[string]bool)
	for _, name := range basisNames {
		b, ok := db.findBasis(name)
		if !ok {
			return nil, fmt.Errorf("basis species %s is not a basis species of the database", name)
		}
		if inBasis[name] {
			return nil, fmt.Errorf("basis species %s is named more than once", name)
		}
		inBasis[name] = true
		mgd.Basis = append(mgd.Basis, Species{
			Name:            b.Name,
			Kind:            types.Aqueous,
			Charge:          b.Charge,
			IonSize:         b.IonSize,
			MolecularWeight: b.MolecularWeight,
		})
	}
	isKinetic := make(map[string]bool)
	for _, name := range kineticNames {
		isKinetic[name] = true
	}
	pertinent := func(r ReactionEntry) bool {
		for name := range r.Species {
			if !inBasis[name] {
				return false
			}
		}
		return true
	}
	var eqmEntries, kinEntries []ReactionEntry
	addGroup := func(entries []ReactionEntry, kind types.SpeciesKind) {
		for _, r := range entries {
			if isKinetic[r.Name] || !pertinent(r) {
				continue
			}
			eqmEntries = append(eqmEntries, r)
			mgd.Eqm = append(mgd.Eqm, newSpecies(r, kind))
		}
	}
	addGroup(db.Secondary, types.Aqueous)
	addGroup(db.Minerals, types.Mineral)
	addGroup(db.Gases, types.Gas)
	for _, name := range kineticNames {
		r, kind, ok := db.findReaction(name)
		if !ok {
			return nil, fmt.Errorf("kinetic species %s is not in the database", name)
		}
		if !pertinent(r) {
			return nil, fmt.Errorf("kinetic species %s reacts with species outside the basis", name)
		}
		kinEntries = append(kinEntries, r)
		mgd.Kin = append(mgd.Kin, newSpecies(r, kind))
	}
	mgd.rebuildIndex()
	mgd.EqmStoichiometry, mgd.EqmLogK = mgd.assemble(eqmEntries)
	mgd.KinStoichiometry, mgd.KinLogK = mgd.assemble(kinEntries)
	return
}

func newSpecies(r ReactionEntry, kind types.SpeciesKind) Species {
	return Species{
		Name:            r.Name,
		Kind:            kind,
		Charge:          r.Charge,
		IonSize:         r.IonSize,
		MolecularWeight: r.MolecularWeight,
	}
}

func (mgd *ModelDatabase) assemble(entries []ReactionEntry) (stoi, logK utils.Matrix) {
	var (
		nb    = len(mgd.Basis)
		nt    = len(mgd.Temperatures)
		sp    = utils.NewDOK(len(entries), nb)
		logKD = make([]float64, 0, len(entries)*nt)
	)
	for j, r := range entries {
		names := make([]string, 0, len(r.Species))
		for name := range r.Species {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if coef := r.Species[name]; coef != 0 {
				sp.Set(j, mgd.basisIndex[name], coef)
			}
		}
		logKD = append(logKD, r.LogK...)
	}
	stoi = sp.ToMatrix()
	logK = utils.NewMatrix(len(entries), nt, logKD)
	return
}

func (mgd *ModelDatabase) rebuildIndex() {
	mgd.basisIndex = make(map[string]int, len(mgd.Basis))
	mgd.eqmIndex = make(map[string]int, len(mgd.Eqm))
	mgd.kinIndex = make(map[string]int, len(mgd.Kin))
	for i, s := range mgd.Basis {
		mgd.basisIndex[s.Name] = i
	}
	for j, s := range mgd.Eqm {
		mgd.eqmIndex[s.Name] = j
	}
	for k, s := range mgd.Kin {
		mgd.kinIndex[s.Name] = k
	}
}

func (mgd *ModelDatabase) NumBasis() int   { return len(mgd.Basis) }
func (mgd *ModelDatabase) NumEqm() int     { return len(mgd.Eqm) }
func (mgd *ModelDatabase) NumKinetic() int { return len(mgd.Kin) }

func (mgd *ModelDatabase) BasisIndex(name string) (i int, ok bool) {
	i, ok = mgd.basisIndex[name]
	return
}

func (mgd *ModelDatabase) EqmIndex(name string) (j int, ok bool) {
	j, ok = mgd.eqmIndex[name]
	return
}

func (mgd *ModelDatabase) KinIndex(name string) (k int, ok bool) {
	k, ok = mgd.kinIndex[name]
	return
}

// EqmStoi is the coefficient of basis species i in the reaction of
// equilibrium species j
func (mgd *ModelDatabase) EqmStoi(j, i int) float64 { return mgd.EqmStoichiometry.At(j, i) }
func (mgd *ModelDatabase) KinStoi(k, i int) float64 { return mgd.KinStoichiometry.At(k, i) }

// LogKAt interpolates every equilibrium and kinetic logK linearly in
// temperature, holding the end values outside the tabulated range
func (mgd *ModelDatabase) LogKAt(T float64) (eqmLogK, kinLogK []float64) {
	var (
		i0, i1, w = mgd.bracket(T)
	)
	interp := func(m utils.Matrix, n int) (r []float64) {
		r = make([]float64, n)
		for j := range r {
			r[j] = (1-w)*m.At(j, i0) + w*m.At(j, i1)
		}
		return
	}
	eqmLogK = interp(mgd.EqmLogK, len(mgd.Eqm))
	kinLogK = interp(mgd.KinLogK, len(mgd.Kin))
	return
}

func (mgd *ModelDatabase) bracket(T float64) (i0, i1 int, w float64) {
	var (
		temps = mgd.Temperatures
		nt    = len(temps)
	)
	switch {
	case nt == 1 || T <= temps[0]:
		return 0, 0, 0
	case T >= temps[nt-1]:
		return nt - 1, nt - 1, 0
	}
	i1 = sort.SearchFloat64s(temps, T)
	if temps[i1] == T {
		return i1, i1, 0
	}
	i0 = i1 - 1
	w = (T - temps[i0]) / (temps[i1] - temps[i0])
	return
}

// Copy returns a deep copy, each node of a spatial model swaps independently
func (mgd *ModelDatabase) Copy() (R *ModelDatabase) {
	R = &ModelDatabase{
		Temperatures:     utils.CopyF64(mgd.Temperatures),
		Basis:            append([]Species(nil), mgd.Basis...),
		Eqm:              append([]Species(nil), mgd.Eqm...),
		Kin:              append([]Species(nil), mgd.Kin...),
		EqmStoichiometry: mgd.EqmStoichiometry.Copy(),
		EqmLogK:          mgd.EqmLogK.Copy(),
		KinStoichiometry: mgd.KinStoichiometry.Copy(),
		KinLogK:          mgd.KinLogK.Copy(),
	}
	R.rebuildIndex()
	return
}

func (mgd *ModelDatabase) Print() {
	fmt.Printf("Basis species (%d):\n", len(mgd.Basis))
	for _, s := range mgd.Basis {
		fmt.Printf("  %-14s %-8s z = %+g\n", s.Name, s.Kind, s.Charge)
	}
	fmt.Printf("Equilibrium species (%d):\n", len(mgd.Eqm))
	for j, s := range mgd.Eqm {
		fmt.Printf("  %-14s %-8s = %s\n", s.Name, s.Kind, mgd.reactionString(mgd.EqmStoichiometry, j))
	}
	if len(mgd.Kin) != 0 {
		fmt.Printf("Kinetic species (%d):\n", len(mgd.Kin))
		for k, s := range mgd.Kin {
			fmt.Printf("  %-14s %-8s = %s\n", s.Name, s.Kind, mgd.reactionString(mgd.KinStoichiometry, k))
		}
	}
}

func (mgd *ModelDatabase) reactionString(stoi utils.Matrix, row int) (s string) {
	for i, b := range mgd.Basis {
		coef := stoi.At(row, i)
		if coef == 0 {
			continue
		}
		if s != "" {
			s += " "
		}
		s += fmt.Sprintf("%+g %s", coef, b.Name)
	}
	return
}
