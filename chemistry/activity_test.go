package chemistry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActivity(t *testing.T) {
	{
		assert.Equal(t, 0.5092, DaviesA(25))
		assert.Equal(t, 0.4913, DaviesA(-10))
		assert.Equal(t, 1.0948, DaviesA(400))
		assert.InDelta(t, 0.5*(0.5336+0.5998), DaviesA(80), 1.e-12)
	}
	{
		assert.Equal(t, 0., Log10GammaDavies(0.5092, 0, 0.5))
		assert.Equal(t, 0., Log10GammaDavies(0.5092, 1, 0))
		// I = 0.1, z = 1
		expected := -0.5092 * (math.Sqrt(0.1)/(1+math.Sqrt(0.1)) - 0.03)
		assert.InDelta(t, expected, Log10GammaDavies(0.5092, 1, 0.1), 1.e-14)
		// Divalent ions are corrected four times as much
		assert.InDelta(t, 4*expected, Log10GammaDavies(0.5092, -2, 0.1), 1.e-14)
	}
}
