package reactor

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/notargets/gochem/solver"
)

var logger = slog.Default()

// SetLogger replaces the package logger
func SetLogger(l *slog.Logger) { logger = l }

// TimeStepControl cuts a time step into sub-steps when the solver fails.
// Without Adaptive the first failure ends the run.
type TimeStepControl struct {
	Adaptive bool    `json:"adaptive"`
	DtMin    float64 `json:"dt_min"` // smallest sub-step attempted
	DtDec    float64 `json:"dt_dec"` // in [0, 1), applied after a failure
	DtInc    float64 `json:"dt_inc"` // >= 1, applied after a success
}

func DefaultTimeStepControl() TimeStepControl {
	return TimeStepControl{
		Adaptive: true,
		DtMin:    1.e-6,
		DtDec:    0.5,
		DtInc:    1.1,
	}
}

func (tc TimeStepControl) Validate() error {
	switch {
	case !tc.Adaptive:
		return nil
	case !(tc.DtDec >= 0 && tc.DtDec < 1):
		return fmt.Errorf("dt_dec must lie in [0, 1), have %g", tc.DtDec)
	case !(tc.DtInc >= 1):
		return fmt.Errorf("dt_inc must be at least 1, have %g", tc.DtInc)
	case !(tc.DtMin > 0):
		return fmt.Errorf("dt_min must be positive, have %g", tc.DtMin)
	}
	return nil
}

// Advance covers dtFull with calls to attempt. The state is saved before the
// first attempt and after every successful sub-step short of the end, and
// restored after every recoverable failure, which also shrinks the next
// sub-step by DtDec. Successes grow it by DtInc, capped by what is left of
// dtFull. A sub-step smaller than DtMin is never attempted: the run ends with
// a *StepError instead. Errors that are not recoverable are returned as is.
func (tc TimeStepControl) Advance(dtFull float64, save, restore func(),
	attempt func(dt float64) error) (attempts int, err error) {
	var (
		dtMin     = tc.DtMin
		remaining = dtFull
		dt        = dtFull
	)
	if !tc.Adaptive {
		dtMin = math.Inf(1)
	}
	save()
	for {
		attempts++
		if err = attempt(dt); err == nil {
			if remaining -= dt; !(remaining > 0) {
				return
			}
			save()
			dt = math.Min(dt*tc.DtInc, remaining)
			continue
		}
		if !solver.IsRecoverable(err) {
			return
		}
		restore()
		logger.Warn("geochemistry solve failed, reducing the time step", "dt", dt, "error", err)
		next := dt * tc.DtDec
		if !(next >= dtMin) || !(dtFull > 0) {
			return attempts, &StepError{Dt: dt, Wrapped: err}
		}
		dt = next
	}
}
