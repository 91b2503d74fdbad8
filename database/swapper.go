package database

import (
	"fmt"
	"math"

	"github.com/notargets/gochem/utils"
)

// SwapSearcher proposes the equilibrium species that should replace a basis
// species
type SwapSearcher interface {
	FindBestEqmSwap(out int, mgd *ModelDatabase, eqmMolality []float64, minerals, gases bool) (best int, ok bool)
}

// Swapper exchanges a basis species with an equilibrium species, rewriting
// every reaction, logK and bulk composition in terms of the new basis.
type Swapper struct {
	StoichiometryTolerance float64
}

func NewSwapper(stoichiometryTolerance float64) *Swapper {
	return &Swapper{StoichiometryTolerance: stoichiometryTolerance}
}

// CheckSwap returns an error if equilibrium species in cannot replace basis
// species out
func (sw *Swapper) CheckSwap(mgd *ModelDatabase, out, in int) error {
	if out < 0 || out >= mgd.NumBasis() {
		return fmt.Errorf("basis index %d out of range", out)
	}
	if in < 0 || in >= mgd.NumEqm() {
		return fmt.Errorf("equilibrium index %d out of range", in)
	}
	if out == 0 {
		return fmt.Errorf("cannot remove water from the basis")
	}
	if math.Abs(mgd.EqmStoi(in, out)) <= sw.StoichiometryTolerance {
		return fmt.Errorf("cannot swap %s for %s: %s does not appear in the reaction of %s",
			mgd.Basis[out].Name, mgd.Eqm[in].Name, mgd.Basis[out].Name, mgd.Eqm[in].Name)
	}
	return nil
}

// PerformSwap replaces basis species out with equilibrium species in. Species
// out takes the equilibrium slot vacated by in. When bulk is non-nil it holds
// the bulk composition in the old basis and is rewritten in the new one.
func (sw *Swapper) PerformSwap(mgd *ModelDatabase, bulk []float64, out, in int) (err error) {
	if err = sw.CheckSwap(mgd, out, in); err != nil {
		return
	}
	var (
		nb     = mgd.NumBasis()
		nt     = len(mgd.Temperatures)
		stoi   = mgd.EqmStoichiometry
		logK   = mgd.EqmLogK
		pivot  = stoi.At(in, out)
		rowIn  = stoi.Row(in)
		logKIn = logK.Row(in)
	)
	if bulk != nil && len(bulk) < nb {
		return fmt.Errorf("bulk composition has %d entries, need %d", len(bulk), nb)
	}
	rewrite := func(st, lk utils.Matrix, row int) {
		var (
			coefOut = st.At(row, out)
		)
		if coefOut == 0 {
			return
		}
		for i := 0; i < nb; i++ {
			if i == out {
				st.Set(row, i, coefOut/pivot)
				continue
			}
			st.AddAt(row, i, -coefOut*rowIn[i]/pivot)
		}
		for t := 0; t < nt; t++ {
			lk.AddAt(row, t, -coefOut*logKIn[t]/pivot)
		}
	}
	for j := 0; j < mgd.NumEqm(); j++ {
		if j == in {
			continue
		}
		rewrite(stoi, logK, j)
	}
	for k := 0; k < mgd.NumKinetic(); k++ {
		rewrite(mgd.KinStoichiometry, mgd.KinLogK, k)
	}
	// The old basis species is now written in terms of the new one
	for i := 0; i < nb; i++ {
		if i == out {
			stoi.Set(in, i, 1/pivot)
			continue
		}
		stoi.Set(in, i, -rowIn[i]/pivot)
	}
	for t := 0; t < nt; t++ {
		logK.Set(in, t, -logKIn[t]/pivot)
	}
	if bulk != nil {
		bOut := bulk[out]
		for i := 0; i < nb; i++ {
			if i == out {
				bulk[i] = bOut / pivot
				continue
			}
			bulk[i] -= rowIn[i] * bOut / pivot
		}
	}
	mgd.Basis[out], mgd.Eqm[in] = mgd.Eqm[in], mgd.Basis[out]
	mgd.rebuildIndex()
	return
}

// FindBestEqmSwap searches the equilibrium species that could replace basis
// species out and returns the one with the largest molality weighted by its
// stoichiometric coefficient. Minerals and gases are candidates only when
// asked for.
func (sw *Swapper) FindBestEqmSwap(out int, mgd *ModelDatabase, eqmMolality []float64,
	minerals, gases bool) (best int, ok bool) {
	var (
		bestScore = -1.
	)
	best = -1
	for j := 0; j < mgd.NumEqm(); j++ {
		s := mgd.Eqm[j]
		if (s.IsMineral() && !minerals) || (s.IsGas() && !gases) {
			continue
		}
		if sw.CheckSwap(mgd, out, j) != nil {
			continue
		}
		score := eqmMolality[j] * math.Abs(mgd.EqmStoi(j, out))
		if score > bestScore {
			best, bestScore = j, score
		}
	}
	ok = best >= 0
	return
}
