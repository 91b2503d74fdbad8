package chemistry

import (
	"math"

	"gonum.org/v1/gonum/interp"
)

// Debye-Huckel A parameter for the Davies equation, linear in temperature
// between the tabulated points (degC)
var daviesA = func() (pl *interp.PiecewiseLinear) {
	pl = &interp.PiecewiseLinear{}
	if err := pl.Fit(
		[]float64{0, 25, 60, 100, 150, 200, 250, 300},
		[]float64{0.4913, 0.5092, 0.5336, 0.5998, 0.6898, 0.7986, 0.9288, 1.0948}); err != nil {
		panic(err)
	}
	return
}()

// DaviesA is constant outside 0 to 300 degC
func DaviesA(T float64) float64 { return daviesA.Predict(T) }

// Log10GammaDavies is log10 of the Davies activity coefficient for a species
// of the given charge, which is 0 for neutral species
func Log10GammaDavies(A, charge, I float64) float64 {
	if charge == 0 {
		return 0
	}
	sqrtI := math.Sqrt(I)
	return -A * charge * charge * (sqrtI/(1+sqrtI) - 0.3*I)
}
