package utils

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/lapack/lapack64"
	"gonum.org/v1/gonum/mat"
)

// Matrix is a dense row-major matrix. A zero dimension is allowed, in which
// case no gonum storage is allocated (mat.NewDense rejects empty shapes).
type Matrix struct {
	M        *mat.Dense
	nr, nc   int
	readOnly bool
	name     string
}

func NewMatrix(nr, nc int, dataO ...[]float64) (R Matrix) {
	var m *mat.Dense
	if len(dataO) != 0 {
		if len(dataO[0]) != nr*nc {
			err := fmt.Errorf("mismatch in allocation: NewMatrix nr,nc = %v,%v, len(data[0]) = %v", nr, nc, len(dataO[0]))
			panic(err)
		}
		if nr*nc != 0 {
			m = mat.NewDense(nr, nc, dataO[0])
		}
	} else if nr*nc != 0 {
		m = mat.NewDense(nr, nc, make([]float64, nr*nc))
	}
	R = Matrix{
		M:    m,
		nr:   nr,
		nc:   nc,
		name: "unnamed - hint: pass a variable name to SetReadOnly()",
	}
	return
}

// Dims, At and T minimally satisfy the mat.Matrix interface.
func (m Matrix) Dims() (r, c int)    { return m.nr, m.nc }
func (m Matrix) At(i, j int) float64 { return m.M.At(i, j) }
func (m Matrix) T() mat.Matrix       { return m.M.T() }
func (m Matrix) RawMatrix() blas64.General {
	if m.M == nil {
		return blas64.General{Rows: m.nr, Cols: m.nc, Stride: max(m.nc, 1)}
	}
	return m.M.RawMatrix()
}

func (m Matrix) IsEmpty() bool { return m.M == nil }

// Data returns the row-major backing slice, not a copy
func (m Matrix) Data() []float64 {
	if m.M == nil {
		return nil
	}
	return m.M.RawMatrix().Data
}

// Chainable methods (extended)
func (m *Matrix) SetReadOnly(name ...string) Matrix {
	if len(name) != 0 {
		m.name = name[0]
	}
	m.readOnly = true
	return *m
}

func (m *Matrix) SetWritable() Matrix {
	m.readOnly = false
	return *m
}

func (m Matrix) Copy() (R Matrix) { // Does not change receiver
	var (
		data  = m.Data()
		dataR = make([]float64, m.nr*m.nc)
	)
	copy(dataR, data)
	R = NewMatrix(m.nr, m.nc, dataR)
	return
}

func (m Matrix) Set(i, j int, val float64) Matrix { // Changes receiver
	m.checkWritable()
	m.M.Set(i, j, val)
	return m
}

func (m Matrix) AddAt(i, j int, val float64) Matrix { // Changes receiver
	m.checkWritable()
	m.M.Set(i, j, m.M.At(i, j)+val)
	return m
}

func (m Matrix) Zero() Matrix { // Changes receiver
	m.checkWritable()
	data := m.Data()
	for i := range data {
		data[i] = 0
	}
	return m
}

func (m Matrix) Scale(a float64) Matrix { // Changes receiver
	m.checkWritable()
	data := m.Data()
	for i := range data {
		data[i] *= a
	}
	return m
}

func (m Matrix) Row(i int) []float64 { // Returns a copy
	var (
		r = make([]float64, m.nc)
	)
	copy(r, m.M.RawRowView(i))
	return r
}

// LUSolve solves m x = b with a partial-pivot LU factorization. The receiver
// is left untouched.
func (m Matrix) LUSolve(b []float64) (x []float64, err error) {
	var (
		nr, nc = m.Dims()
	)
	if nr != nc {
		err = fmt.Errorf("unable to solve, matrix is not square: %d x %d", nr, nc)
		return
	}
	if len(b) != nr {
		err = fmt.Errorf("unable to solve, rhs length %d does not match matrix dimension %d", len(b), nr)
		return
	}
	x = make([]float64, nr)
	if nr == 0 {
		return
	}
	copy(x, b)
	var (
		lu   = m.Copy()
		iPiv = make([]int, nr)
		rhs  = blas64.General{Rows: nr, Cols: 1, Stride: 1, Data: x}
	)
	if ok := lapack64.Getrf(lu.RawMatrix(), iPiv); !ok {
		err = fmt.Errorf("unable to solve, matrix is singular")
		return
	}
	lapack64.Getrs(blas.NoTrans, lu.RawMatrix(), rhs, iPiv)
	for _, val := range x {
		if math.IsNaN(val) || math.IsInf(val, 0) {
			err = fmt.Errorf("unable to solve, matrix is numerically singular")
			return
		}
	}
	return
}

func (m Matrix) String() string {
	if m.M == nil {
		return fmt.Sprintf("[%d x %d]", m.nr, m.nc)
	}
	return fmt.Sprintf("%v", mat.Formatted(m.M, mat.Squeeze()))
}

func (m Matrix) checkWritable() {
	if m.readOnly {
		err := fmt.Errorf("attempt to write to a read only matrix named: \"%v\"", m.name)
		panic(err)
	}
}
