package reactor

import (
	"fmt"
	"image/color"
	"io"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/notargets/gochem/chemistry"
	"github.com/notargets/gochem/solver"
)

// Report prints the composition of sys after a solve
func Report(w io.Writer, sys *chemistry.System, res solver.Result) {
	var (
		mgd  = sys.ModelDatabase()
		free = sys.SolventMassAndFreeMolalityAndMineralMoles()
		bulk = sys.BulkMoles()
		eqm  = sys.EqmMolality()
		si   = sys.SaturationIndices()
	)
	fmt.Fprintf(w, "Temperature = %8.3f degC\n", sys.Temperature())
	fmt.Fprintf(w, "Iterations = %d, Swaps = %d, |R| = %8.3g\n", res.Iterations, res.Swaps, res.Residual)
	if pH, ok := sys.PH(); ok {
		fmt.Fprintf(w, "pH = %8.4f\n", pH)
	}
	fmt.Fprintf(w, "Ionic strength = %12.5g, Stoichiometric ionic strength = %12.5g\n",
		sys.IonicStrength(), sys.StoichiometricIonicStrength())
	fmt.Fprintf(w, "Mass of solvent water = %12.5g kg\n", free[0])

	fmt.Fprintf(w, "\nBasis species%15s%15s%15s  constraint\n", "molality", "activity", "bulk moles")
	for i := 1; i < mgd.NumBasis(); i++ {
		sp := mgd.Basis[i]
		label := "molality"
		if sp.IsMineral() {
			label = "free moles"
		}
		fmt.Fprintf(w, "%-13s%15.6g%15.6g%15.6g  %s (%s)\n", sp.Name, free[i], sys.BasisActivity()[i], bulk[i],
			sys.ConstraintMeaning(i), label)
	}

	fmt.Fprintf(w, "\nEquilibrium species%15s\n", "molality")
	for _, j := range sortedByValue(eqm) {
		sp := mgd.Eqm[j]
		if sp.IsMineral() || sp.IsGas() {
			continue
		}
		fmt.Fprintf(w, "%-19s%15.6g\n", sp.Name, eqm[j])
	}

	fmt.Fprintf(w, "\nMinerals and gases%15s\n", "log10(Q/K)")
	for _, j := range sortedByValue(si) {
		sp := mgd.Eqm[j]
		if !sp.IsMineral() && !sp.IsGas() {
			continue
		}
		fmt.Fprintf(w, "%-18s%15.4f  %s\n", sp.Name, si[j], sp.Kind)
	}

	if nk := mgd.NumKinetic(); nk != 0 {
		fmt.Fprintf(w, "\nKinetic species%15s\n", "moles")
		for k := 0; k < nk; k++ {
			fmt.Fprintf(w, "%-15s%15.6g\n", mgd.Kin[k].Name, sys.KineticMoles()[k])
		}
	}
}

// sortedByValue returns the indices of v from largest to smallest value,
// ties in index order
func sortedByValue(v []float64) (inds []int) {
	inds = make([]int, len(v))
	for i := range inds {
		inds[i] = i
	}
	sort.SliceStable(inds, func(a, b int) bool { return v[inds[a]] > v[inds[b]] })
	return
}

// PlotHistory writes a PNG (or any format gonum/plot infers from the file
// extension) of the molality of each named species against time. A species
// named "pH" or "temperature" plots that quantity instead.
func (r *TimeDependent) PlotHistory(fileName string, species []string) (err error) {
	if len(r.History) == 0 {
		return fmt.Errorf("no history to plot")
	}
	p := plot.New()
	p.Title.Text = "Time dependent reaction"
	p.X.Label.Text = "time (s)"
	p.Add(plotter.NewGrid())
	for n, name := range species {
		var (
			pts = make(plotter.XYs, len(r.History))
		)
		for i, row := range r.History {
			pts[i].X = row.Time
			switch name {
			case "pH":
				pts[i].Y = row.PH
			case "temperature":
				pts[i].Y = row.Temperature
			default:
				if m, ok := row.Molality[name]; ok {
					pts[i].Y = m
				} else {
					pts[i].Y = row.Minerals[name]
				}
			}
		}
		line, lerr := plotter.NewLine(pts)
		if lerr != nil {
			return fmt.Errorf("plotting %s: %w", name, lerr)
		}
		line.Color = plotutil.Color(n)
		line.Dashes = plotutil.Dashes(n)
		p.Add(line)
		p.Legend.Add(name, line)
	}
	p.Legend.Top = true
	p.Legend.TextStyle.Color = color.Black
	if len(species) == 1 {
		p.Y.Label.Text = species[0]
	} else {
		p.Y.Label.Text = "molality"
	}
	return p.Save(6*vg.Inch, 4*vg.Inch, fileName)
}
