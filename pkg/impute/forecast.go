package impute

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/SanjayGanapathy/wearable-data-pipeline-challenge/pkg/config"
)

// errFit marks numerical failures during model fitting or forecasting.
// Callers treat these as per-gap skips, never hard errors.
var errFit = errors.New("forecast fit failed")

// Forecaster fits a short-memory autoregressive-integrated model and
// extrapolates a fixed number of steps. The default order (5,1,0) models
// hourly physiological signals: difference once to remove slow drift, then
// regress each step on its five predecessors.
type Forecaster struct {
	order config.ForecastOrder
}

// NewForecaster builds a forecaster for the configured (p, d, q) order.
// Only q=0 is supported; moving-average terms are not used by this system.
func NewForecaster(opts config.Options) *Forecaster {
	return &Forecaster{order: opts.ForecastOrder}
}

// Forecast fits on the training values and predicts the next steps values.
// Training values must be ordered; any numerical failure (too little data
// after differencing, a singular or ill-conditioned design matrix,
// non-finite output) returns an error wrapping errFit.
func (f *Forecaster) Forecast(train []float64, steps int) ([]float64, error) {
	if steps <= 0 {
		return nil, nil
	}

	p, d := f.order.P, f.order.D

	// Apply d rounds of differencing, remembering the values needed to
	// integrate the forecast back to the original level.
	work := append([]float64(nil), train...)
	lastLevels := make([]float64, 0, d)
	for i := 0; i < d; i++ {
		if len(work) < 2 {
			return nil, fmt.Errorf("%w: series too short to difference", errFit)
		}
		lastLevels = append(lastLevels, work[len(work)-1])
		diffed := make([]float64, len(work)-1)
		for j := 1; j < len(work); j++ {
			diffed[j-1] = work[j] - work[j-1]
		}
		work = diffed
	}

	coeffs, err := fitAR(work, p)
	if err != nil {
		return nil, err
	}

	// Iterate the AR recurrence forward, then undo the differencing.
	history := append([]float64(nil), work...)
	out := make([]float64, steps)
	for s := 0; s < steps; s++ {
		next := coeffs[0]
		for i := 1; i <= p; i++ {
			next += coeffs[i] * history[len(history)-i]
		}
		if math.IsNaN(next) || math.IsInf(next, 0) {
			return nil, fmt.Errorf("%w: non-finite forecast", errFit)
		}
		history = append(history, next)
		out[s] = next
	}

	for i := d - 1; i >= 0; i-- {
		level := lastLevels[i]
		for s := range out {
			level += out[s]
			out[s] = level
		}
	}
	return out, nil
}

// fitAR solves the AR(p) least-squares problem with an intercept:
// x[t] = c + phi_1*x[t-1] + ... + phi_p*x[t-p]. Returned coefficients are
// [c, phi_1, ..., phi_p].
func fitAR(x []float64, p int) ([]float64, error) {
	rows := len(x) - p
	cols := p + 1
	if rows < cols {
		return nil, fmt.Errorf("%w: %d observations cannot determine %d coefficients", errFit, rows, cols)
	}

	design := mat.NewDense(rows, cols, nil)
	response := mat.NewVecDense(rows, nil)
	for t := 0; t < rows; t++ {
		design.Set(t, 0, 1)
		for i := 1; i <= p; i++ {
			design.Set(t, i, x[p+t-i])
		}
		response.SetVec(t, x[p+t])
	}

	var solution mat.VecDense
	if err := solution.SolveVec(design, response); err != nil {
		return nil, fmt.Errorf("%w: %v", errFit, err)
	}

	coeffs := make([]float64, cols)
	for i := range coeffs {
		c := solution.AtVec(i)
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("%w: non-finite coefficient", errFit)
		}
		coeffs[i] = c
	}
	return coeffs, nil
}
