package utils

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

func ConstArray(N int, val float64) (v []float64) {
	v = make([]float64, N)
	for i := range v {
		v[i] = val
	}
	return
}

func CopyF64(v []float64) (r []float64) {
	r = make([]float64, len(v))
	copy(r, v)
	return
}

func CopyBool(v []bool) (r []bool) {
	r = make([]bool, len(v))
	copy(r, v)
	return
}

func CopyInt(v []int) (r []int) {
	r = make([]int, len(v))
	copy(r, v)
	return
}

func L1Norm(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return floats.Norm(v, 1)
}

// Median returns the lower median of v, zero for an empty slice. For an even
// length this is the smaller middle element rather than the mean of the two;
// the initial residual reduction is tuned against that choice.
func Median(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var (
		sorted = CopyF64(v)
	)
	sort.Float64s(sorted)
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}

// ArgSortAscending returns the indices that order v from smallest to largest
func ArgSortAscending(v []float64) (inds []int) {
	var (
		dst = CopyF64(v)
	)
	inds = make([]int, len(v))
	if len(v) == 0 {
		return
	}
	floats.Argsort(dst, inds)
	return
}

// ArgSortDescending returns the indices that order v from largest to smallest,
// ties keep their original order
func ArgSortDescending(v []float64) (inds []int) {
	inds = make([]int, len(v))
	for i := range inds {
		inds[i] = i
	}
	sort.SliceStable(inds, func(a, b int) bool {
		return v[inds[a]] > v[inds[b]]
	})
	return
}

func ArgSortDescendingAbs(v []float64) (inds []int) {
	var (
		absV = make([]float64, len(v))
	)
	for i, val := range v {
		absV[i] = math.Abs(val)
	}
	return ArgSortDescending(absV)
}
