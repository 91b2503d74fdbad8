package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatrix(t *testing.T) {
	// LUSolve
	{
		M := NewMatrix(3, 3, []float64{
			4, 1, 0,
			1, 3, 1,
			0, 1, 2,
		})
		x, err := M.LUSolve([]float64{5, 5, 3})
		assert.NoError(t, err)
		assert.InDeltaSlice(t, []float64{1, 1, 1}, x, 1.e-12)
		// receiver is untouched by the factorization
		assert.Equal(t, 4., M.At(0, 0))
		assert.Equal(t, 1., M.At(1, 0))
	}
	// Pivoting is required
	{
		M := NewMatrix(2, 2, []float64{
			0, 1,
			1, 0,
		})
		x, err := M.LUSolve([]float64{2, 3})
		assert.NoError(t, err)
		assert.InDeltaSlice(t, []float64{3, 2}, x, 1.e-14)
	}
	// Singular
	{
		M := NewMatrix(2, 2, []float64{
			1, 2,
			2, 4,
		})
		_, err := M.LUSolve([]float64{1, 1})
		assert.Error(t, err)
	}
	// Empty systems are legal and solve trivially
	{
		M := NewMatrix(0, 0)
		assert.True(t, M.IsEmpty())
		x, err := M.LUSolve(nil)
		assert.NoError(t, err)
		assert.Equal(t, 0, len(x))
		C := M.Copy()
		nr, nc := C.Dims()
		assert.Equal(t, 0, nr)
		assert.Equal(t, 0, nc)
	}
	// Dimension mismatch
	{
		M := NewMatrix(2, 3)
		_, err := M.LUSolve([]float64{1, 1})
		assert.Error(t, err)
		M = NewMatrix(2, 2)
		_, err = M.LUSolve([]float64{1, 1, 1})
		assert.Error(t, err)
	}
	// Copy is deep, chainable mutators change the receiver
	{
		M := NewMatrix(2, 2, []float64{1, 2, 3, 4})
		C := M.Copy()
		M.Set(0, 0, 10).AddAt(1, 1, 1)
		assert.Equal(t, 1., C.At(0, 0))
		assert.Equal(t, 10., M.At(0, 0))
		assert.Equal(t, 5., M.At(1, 1))
		M.Scale(2)
		assert.Equal(t, []float64{20, 4, 6, 10}, M.Data())
		assert.Equal(t, []float64{6, 10}, M.Row(1))
		M.Zero()
		assert.Equal(t, []float64{0, 0, 0, 0}, M.Data())
	}
	// Read only
	{
		M := NewMatrix(1, 1)
		M.SetReadOnly("jacobian")
		assert.Panics(t, func() { M.Set(0, 0, 1) })
		M.SetWritable().Set(0, 0, 1)
		assert.Equal(t, 1., M.At(0, 0))
	}
	// Sparse assembly densifies to the same values
	{
		S := NewDOK(2, 3)
		S.Set(0, 2, -1).Set(1, 0, 2)
		assert.Equal(t, 2, S.NNZ())
		D := S.ToMatrix()
		assert.Equal(t, []float64{0, 0, -1, 2, 0, 0}, D.Data())
	}
	{
		assert.True(t, IsNan(NewMatrix(1, 2, []float64{1, posInf()})))
		assert.False(t, IsNan([]float64{1, 2}))
	}
}
