package reactor

import (
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/interp"
)

// Series is a quantity prescribed in time, interpolated linearly between the
// given points and held constant outside them. A single value is constant.
type Series struct {
	Time  []float64 `json:"time"`
	Value []float64 `json:"value"`
	pl    *interp.PiecewiseLinear
}

// Constant returns a Series with value v at all times
func Constant(v float64) Series {
	return Series{Value: []float64{v}}
}

func NewSeries(time, value []float64) (s Series, err error) {
	s = Series{Time: time, Value: value}
	err = s.fit()
	return
}

func (s *Series) fit() error {
	switch {
	case len(s.Value) == 0:
		return fmt.Errorf("series has no values")
	case len(s.Value) == 1 && len(s.Time) <= 1:
		s.pl = nil
		return nil
	case len(s.Time) != len(s.Value):
		return fmt.Errorf("series has %d times and %d values", len(s.Time), len(s.Value))
	}
	for i := 1; i < len(s.Time); i++ {
		if !(s.Time[i] > s.Time[i-1]) {
			return fmt.Errorf("series times must increase strictly, have %g after %g", s.Time[i], s.Time[i-1])
		}
	}
	pl := &interp.PiecewiseLinear{}
	if err := pl.Fit(s.Time, s.Value); err != nil {
		return fmt.Errorf("series: %w", err)
	}
	s.pl = pl
	return nil
}

// UnmarshalJSON also accepts a bare number for a constant series
func (s *Series) UnmarshalJSON(data []byte) error {
	var v float64
	if err := json.Unmarshal(data, &v); err == nil {
		*s = Constant(v)
		return nil
	}
	type points Series
	var p points
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = Series(p)
	return nil
}

func (s Series) IsEmpty() bool { return len(s.Value) == 0 }

// At returns the value at time t; an empty Series is zero
func (s Series) At(t float64) float64 {
	switch {
	case len(s.Value) == 0:
		return 0
	case s.pl == nil:
		return s.Value[0]
	}
	return s.pl.Predict(t)
}
