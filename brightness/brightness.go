// Package brightness estimates per-cluster brightness λ (C3): by plain
// OLS against the regression p_{b,k} = λ·1{bases[k]=b}, and by weighted
// least squares once per-cycle residual variances are available.
package brightness

import (
	"math"

	"github.com/andrew-torda/aybgo/matrix"
	"github.com/andrew-torda/aybgo/nuc"
)

// EstimateOLS estimates λ by ordinary least squares: λ = Σ_k p[bases[k],k]
// / K over cycles with a definite (non-ambiguous) call. Returns 0 if the
// denominator is ≤ 0, and never returns a negative or non-finite value.
func EstimateOLS(p *matrix.Dense, bases []nuc.NUC) float64 {
	var num, den float64
	for k, b := range bases {
		if b == nuc.AMBIG {
			continue
		}
		num += p.Mat[int(b)][k]
		den++
	}
	if den <= 0 {
		return 0
	}
	lambda := num / den
	if math.IsNaN(lambda) || math.IsInf(lambda, 0) || lambda < 0 {
		return 0
	}
	return lambda
}

// EstimateWLS estimates λ by weighted least squares, weighting cycle k by
// 1/cycleVar[k]. Cycles with cycleVar[k] <= 0 are excluded (unreliable
// variance estimate). Falls back to lambdaPrev if the result would be
// negative or non-finite, so the estimate never regresses to something
// unusable mid-iteration.
func EstimateWLS(p *matrix.Dense, bases []nuc.NUC, lambdaPrev float64, cycleVar []float64) float64 {
	var num, den float64
	for k, b := range bases {
		if b == nuc.AMBIG {
			continue
		}
		v := cycleVar[k]
		if v <= 0 {
			continue
		}
		w := 1.0 / v
		num += w * p.Mat[int(b)][k]
		den += w
	}
	if den <= 0 {
		return lambdaPrev
	}
	lambda := num / den
	if math.IsNaN(lambda) || math.IsInf(lambda, 0) || lambda < 0 {
		return lambdaPrev
	}
	return lambda
}
