// Package stats collects the small statistical helpers the weighting
// step of the MPN estimator (C5) and the optional Weibull robust-weight
// mode (§12) build on: mean/variance, a Cauchy-style redescending
// influence function, plain linear regression, and the Weibull
// distribution family, all grounded on the original implementation's
// weibull.c.
package stats

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/andrew-torda/aybgo/simplex"
)

// ErrNoData is returned by helpers that need at least one observation.
var ErrNoData = errors.New("stats: no data")

// Mean returns the arithmetic mean of x.
func Mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v
	}
	return sum / float64(len(x))
}

// Variance returns the population variance of x (divide by n, not n-1),
// matching the MPN estimator's use over the full cluster population
// rather than a sample drawn from it.
func Variance(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	m := Mean(x)
	var sumSq float64
	for _, v := range x {
		d := v - m
		sumSq += d * d
	}
	return sumSq / float64(len(x))
}

// CauchyWeight is the Cauchy-style redescending influence function used
// to down-weight clusters whose residual sum of squares is far from the
// population mean: w = variance / (variance + delta2). It is ≈1 near the
// centre (delta2 ≈ 0) and tends to 0 in the tails, and is well-defined
// (returns 1) when variance is degenerate (0 or negative).
func CauchyWeight(delta2, variance float64) float64 {
	if variance <= 0 {
		return 1
	}
	if delta2 < 0 {
		delta2 = 0
	}
	return variance / (variance + delta2)
}

// LinearRegression fits y = slope*x + intercept by ordinary least
// squares.
func LinearRegression(x, y []float64) (slope, intercept float64, err error) {
	n := len(x)
	if n == 0 || n != len(y) {
		return 0, 0, ErrNoData
	}
	mx, my := Mean(x), Mean(y)
	var sxy, sxx float64
	for i := 0; i < n; i++ {
		dx := x[i] - mx
		sxy += dx * (y[i] - my)
		sxx += dx * dx
	}
	if sxx == 0 {
		return 0, 0, errors.New("stats: LinearRegression degenerate x")
	}
	slope = sxy / sxx
	intercept = my - slope*mx
	return slope, intercept, nil
}

// PWeibull is the Weibull CDF (or its tail / log form). x is
// non-negative; shape and scale are strictly positive.
func PWeibull(x, shape, scale float64, tail, logp bool) float64 {
	if x < 0 || shape <= 0 || scale <= 0 {
		return math.NaN()
	}
	res := -math.Pow(x/scale, shape)
	if tail && logp {
		return res
	}
	if !tail && !logp {
		return -math.Expm1(res)
	}
	res = math.Exp(res)
	if tail {
		return res
	}
	return math.Log1p(-res)
}

// QWeibull is the inverse Weibull CDF.
func QWeibull(p, shape, scale float64, tail, logp bool) float64 {
	if shape <= 0 || scale <= 0 {
		return math.NaN()
	}
	if !logp && (p < 0 || p > 1) {
		return math.NaN()
	}
	if logp && p > 0 {
		return math.NaN()
	}
	if p <= 0 && !logp {
		return 0
	}
	if p >= 1 && !logp {
		return math.Inf(1)
	}
	if p >= 0 && logp {
		return math.Inf(1)
	}

	var res float64
	if logp {
		if tail {
			res = -p
		} else {
			res = -math.Log(-math.Expm1(p))
		}
	} else {
		if tail {
			res = -math.Log(p)
		} else {
			res = -math.Log1p(-p)
		}
	}
	return scale * math.Pow(res, 1.0/shape)
}

// DWeibull is the Weibull density (or its log).
func DWeibull(x, shape, scale float64, logd bool) float64 {
	if x < 0 || shape <= 0 || scale <= 0 {
		return math.NaN()
	}
	scaledX := x / scale
	if logd {
		return math.Log(shape/scale) + (shape-1)*math.Log(scaledX) - math.Pow(scaledX, shape)
	}
	res := math.Pow(scaledX, shape-1)
	return (shape / scale) * res * math.Exp(-res*scaledX)
}

// FitWeibull fits shape and scale to a sample by the probability-plot
// method: sort the data, regress log(-log(1-CDF_i)) on log(x_i), where
// CDF_i is the ith (0-based) order statistic's plotting position
// (i+1)/(n+1), i.e. 1-CDF_i = (n-i)/(n+1).
// Grounded directly on fit_weibull in the original C source.
func FitWeibull(x []float64) (shape, scale float64, err error) {
	n := len(x)
	if n == 0 {
		return 0, 0, ErrNoData
	}
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)

	logX := make([]float64, n)
	logY := make([]float64, n)
	for i := 0; i < n; i++ {
		logX[i] = math.Log(sorted[i])
		logY[i] = math.Log(-math.Log(float64(n-i) / float64(n+1)))
	}

	slope, intercept, err := LinearRegression(logX, logY)
	if err != nil {
		return 0, 0, err
	}
	shape = slope
	scale = math.Exp(-intercept / slope)
	return shape, scale, nil
}

// FitWeibullMLE refines a probability-plot fit (FitWeibull) into a
// maximum-likelihood one by minimising the negative log-likelihood with
// a Nelder-Mead simplex search seeded at the plot estimate.
func FitWeibullMLE(x []float64) (shape, scale float64, err error) {
	shape0, scale0, err := FitWeibull(x)
	if err != nil {
		return 0, 0, err
	}

	negLogLik := func(prm []float32) (float32, error) {
		s, c := float64(prm[0]), float64(prm[1])
		if s <= 0 || c <= 0 {
			return float32(math.MaxFloat32), nil
		}
		var sum float64
		for _, xi := range x {
			sum -= DWeibull(xi, s, c, true)
		}
		return float32(sum), nil
	}

	ctrl := simplex.NewSplxCtrl(negLogLik, []float32{float32(shape0), float32(scale0)})
	ctrl.Tol(1e-8)
	if err := ctrl.AddBounds([]float32{1e-6, 1e-6}, nil); err != nil {
		return 0, 0, fmt.Errorf("stats.FitWeibullMLE: %w", err)
	}
	if err := ctrl.Run(200, 3); err != nil {
		return 0, 0, fmt.Errorf("stats.FitWeibullMLE: %w", err)
	}
	return float64(ctrl.BestPrm[0]), float64(ctrl.BestPrm[1]), nil
}
