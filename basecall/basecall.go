// Package basecall makes per-cycle {base, quality} calls from processed
// intensities (C4): a minimum-least-squares decision with a
// numerically-stable posterior-probability quality score, plus a simple
// argmax caller used for the initial pass before any model has been fit.
package basecall

import (
	"math"

	"github.com/andrew-torda/aybgo/matrix"
	"github.com/andrew-torda/aybgo/nuc"
)

// Result is one cycle's call.
type Result struct {
	Base    nuc.NUC
	Quality nuc.QUAL
}

// Null is the call returned when there is no usable brightness.
func Null() Result { return Result{Base: nuc.A, Quality: nuc.MinQuality} }

// Call implements the minimum-LS decision of §4.4. p holds the processed
// intensities for one cycle (length NBASE), omega is that cycle's inverse
// residual covariance (NBASE x NBASE), and penalty is an optional
// per-base additive penalty (nil is treated as all-zero). mu tunes which
// branch of the posterior-probability formula is used to avoid underflow
// when max_prob is tiny.
func Call(p []float64, lambda float64, omega *matrix.Dense, penalty []float64, mu float64) (Result, error) {
	if lambda == 0 {
		return Null(), nil
	}
	if penalty == nil {
		penalty = make([]float64, nuc.NBASE)
	}

	var stat [nuc.NBASE]float64
	call := 0
	minStat := math.Inf(1)
	for b := 0; b < nuc.NBASE; b++ {
		var s float64
		for j := 0; j < nuc.NBASE; j++ {
			s -= 2.0 * p[j] * omega.Mat[b][j]
		}
		s += lambda * omega.Mat[b][b]
		s *= lambda
		s += penalty[b]
		stat[b] = s
		if s < minStat {
			minStat = s
			call = b
		}
	}

	var tot float64
	for b := 0; b < nuc.NBASE; b++ {
		tot += math.Exp(-0.5 * (stat[b] - minStat))
	}

	kStat, err := matrix.XMY(p, omega, p)
	if err != nil {
		return Result{}, err
	}
	maxProb := math.Exp(-0.5 * (kStat + minStat))

	expPen := math.Exp(-0.5 * penalty[call])
	var post float64
	if maxProb < mu {
		post = (expPen*mu + maxProb) / (4.0*mu + maxProb*tot)
	} else {
		post = (expPen*mu/maxProb + 1.0) / (4.0*mu/maxProb + tot)
	}

	return Result{Base: nuc.NUC(call), Quality: nuc.QualityFromProb(post)}, nil
}

// CallSimple returns argmax(p), used for the initial call before M, P, N
// have been fit. Returns AMBIG if p is uniform or contains a non-finite
// value.
func CallSimple(p []float64) nuc.NUC {
	for _, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nuc.AMBIG
		}
	}
	best := p[0]
	idx := 0
	allEqual := true
	for i := 1; i < len(p); i++ {
		if p[i] != p[0] {
			allEqual = false
		}
		if p[i] > best {
			best = p[i]
			idx = i
		}
	}
	if allEqual {
		return nuc.AMBIG
	}
	return nuc.NUC(idx)
}
