// Package mpn implements the MPN (crosstalk M, phasing P, noise N)
// estimator (C5): one parameter-estimation loop of the AYB base-calling
// model.
//
// The estimator builds a Kronecker-structured set of sufficient
// statistics once per call — J and K (the "occupancy" and "intensity"
// tensors over base-call pairs), Sbar, Ibar, Wbar — and then alternates,
// AYB_NITER times, a (P,N) solve with M fixed and an (M,N) solve with P
// fixed, each iteration cheaply re-deriving its normal-equation blocks
// from those fixed statistics rather than re-scanning every cluster.
// Each half-solve renormalises its updated matrix to unit determinant and
// rescales the statistics to match, which is what keeps the fit's
// predicted intensities invariant under the λ/M and λ/P rescalings (§8
// property 2).
package mpn

import (
	"fmt"
	"math"

	"github.com/andrew-torda/aybgo/ayberr"
	"github.com/andrew-torda/aybgo/matrix"
	"github.com/andrew-torda/aybgo/nuc"
	"github.com/andrew-torda/aybgo/stats"
	"github.com/andrew-torda/aybgo/tile"
)

// niterDefault is AYB_NITER, the number of inner alternating-solve steps.
const niterDefault = 20

const detEps = 3e-8

// WeightModel selects how updateClusterWeights turns each cluster's
// residual sum of squares into a robustness weight in step 1 of §4.5.
type WeightModel int

const (
	// CauchyWeights is the plain w = cauchy(Δ², var) of spec.md §4.5 step
	// 1, weighting by distance from the population mean residual. This
	// is the default and matches spec.md exactly.
	CauchyWeights WeightModel = iota
	// WeibullWeights is the supplemented alternative from SPEC_FULL.md
	// §12: fit a Weibull distribution to the population of residual sums
	// of squares (stats.FitWeibullMLE) and weight each cluster by its
	// upper-tail probability under that fit, so clusters whose residual
	// sits far into the fitted tail are down-weighted the same way a
	// large Δ² is under CauchyWeights. Falls back to CauchyWeights if
	// the Weibull fit fails (e.g. too few or degenerate residuals).
	WeibullWeights
)

func (w WeightModel) String() string {
	switch w {
	case WeibullWeights:
		return "weibull"
	default:
		return "cauchy"
	}
}

// Result carries the outputs of one MPN-estimate call the driver needs
// downstream: the per-cluster robustness weights computed at the start
// of the fit (fed into the covariance estimator, C6) and the fit's final
// weighted residual sum of squares.
type Result struct {
	Weights []float64
	SumLSS  float64
}

// Estimate runs one MPN-estimate loop, updating m, p, n and lambda in
// place to their newly fitted values. bases holds each cluster's current
// per-cycle base calls (length ncycle each), parallel to clusters and
// lambda.
func Estimate(m, p, n *matrix.Dense, lambda []float64, bases [][]nuc.NUC, clusters []tile.Cluster, weightModel WeightModel) (Result, error) {
	ncluster := len(clusters)
	if ncluster == 0 {
		return Result{}, fmt.Errorf("mpn.Estimate: no clusters: %w", matrix.ErrInvalidDim)
	}
	_, ncycle := p.Size()

	weights, _ := updateClusterWeights(m, p, n, lambda, bases, clusters, weightModel)

	jStat, kStat, sbar, ibar, wbar := accumulateStatistics(weights, lambda, bases, clusters, ncycle)

	lambdaFactor := 1.0
	failStreak := 0

	for iter := 0; iter < niterDefault; iter++ {
		if err := updatePN(m, p, n, jStat, kStat, sbar, ibar, wbar); err != nil {
			failStreak++
		} else {
			failStreak = 0
			d, err := matrix.NormaliseToUnitDet(p, detEps)
			if err == nil {
				rescale(jStat, kStat, sbar, d)
				lambdaFactor *= d
			}
		}
		if failStreak >= 2 {
			return Result{}, fmt.Errorf("mpn.Estimate: %w", ayberr.NonConvergent)
		}

		if err := updateMN(m, p, n, jStat, kStat, sbar, ibar, wbar); err != nil {
			failStreak++
		} else {
			failStreak = 0
			d, err := matrix.NormaliseToUnitDet(m, detEps)
			if err == nil {
				rescale(jStat, kStat, sbar, d)
				lambdaFactor *= d
			}
		}
		if failStreak >= 2 {
			return Result{}, fmt.Errorf("mpn.Estimate: %w", ayberr.NonConvergent)
		}
	}

	for i := range lambda {
		lambda[i] *= lambdaFactor
	}

	finalLSE := weightedLSE(m, p, n, lambda, weights, bases, clusters)
	if math.IsNaN(finalLSE) {
		return Result{}, fmt.Errorf("mpn.Estimate: %w", ayberr.NonConvergent)
	}

	return Result{Weights: weights, SumLSS: finalLSE}, nil
}

// updateClusterWeights computes the robustness weight of every cluster
// from how far its current model residual sum of squares sits from the
// population, and returns those weights along with the unweighted sum of
// the residual sums of squares (sumLSS; Estimate does not use it). weightModel
// selects the weighting rule; WeibullWeights falls back to Cauchy if the
// Weibull fit doesn't converge.
func updateClusterWeights(m, p, n *matrix.Dense, lambda []float64, bases [][]nuc.NUC, clusters []tile.Cluster, weightModel WeightModel) ([]float64, float64) {
	ncluster := len(clusters)
	lss := make([]float64, ncluster)
	for i, c := range clusters {
		lss[i] = residualSS(m, p, n, lambda[i], bases[i], c.Signals)
	}
	mean := stats.Mean(lss)
	variance := stats.Variance(lss)

	weights := make([]float64, ncluster)
	var sumLSS float64

	if weightModel == WeibullWeights {
		if w, ok := weibullClusterWeights(lss); ok {
			copy(weights, w)
			for _, v := range lss {
				sumLSS += v
			}
			return weights, sumLSS
		}
	}

	for i, v := range lss {
		delta := v - mean
		weights[i] = stats.CauchyWeight(delta*delta, variance)
		sumLSS += v
	}
	return weights, sumLSS
}

// weibullClusterWeights fits a Weibull distribution to the population of
// residual sums of squares (stats.FitWeibullMLE) and weights each
// cluster by P(LSS > lss_i) under that fit: ~1 for a cluster near the
// body of the distribution, tending to 0 for one far into the tail — the
// same redescending shape as CauchyWeights, driven by a fitted
// distribution instead of a fixed functional form. Returns ok=false if
// the fit can't be trusted (too few points, or FitWeibullMLE errors),
// so the caller can fall back to CauchyWeights.
func weibullClusterWeights(lss []float64) (weights []float64, ok bool) {
	if len(lss) < 3 {
		return nil, false
	}
	shape, scale, err := stats.FitWeibullMLE(lss)
	if err != nil || shape <= 0 || scale <= 0 {
		return nil, false
	}
	weights = make([]float64, len(lss))
	for i, v := range lss {
		w := stats.PWeibull(v, shape, scale, true, false)
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, false
		}
		weights[i] = w
	}
	return weights, true
}

// residualSS returns Σ(I - (λ M S P + N))² for one cluster, S being the
// B x K indicator of bases.
func residualSS(m, p, n *matrix.Dense, lambda float64, bases []nuc.NUC, signals *matrix.Dense) float64 {
	pred := predict(m, p, n, lambda, bases)
	var sum float64
	for b := 0; b < nuc.NBASE; b++ {
		for k := range bases {
			d := signals.Mat[b][k] - pred.Mat[b][k]
			sum += d * d
		}
	}
	return sum
}

// weightedLSE recomputes the full weighted least-squares error under the
// final fitted (m, p, n, lambda), directly, rather than via the
// closed-form trace-identity delta the original C code uses to avoid a
// second cluster pass. Same quantity, more direct route.
func weightedLSE(m, p, n *matrix.Dense, lambda, weights []float64, bases [][]nuc.NUC, clusters []tile.Cluster) float64 {
	var total float64
	for i, c := range clusters {
		total += weights[i] * residualSS(m, p, n, lambda[i], bases[i], c.Signals)
	}
	return total
}

// predict returns λ M S P + N for one cluster given its base calls.
func predict(m, p, n *matrix.Dense, lambda float64, bases []nuc.NUC) *matrix.Dense {
	_, ncycle := p.Size()
	s := matrix.New(nuc.NBASE, ncycle)
	for k, b := range bases {
		if b == nuc.AMBIG {
			continue
		}
		s.Mat[int(b)][k] = 1
	}
	sp := matrix.New(nuc.NBASE, ncycle)
	sp.AsGonum().Mul(s.AsGonum(), p.AsGonum())
	pred := matrix.New(nuc.NBASE, ncycle)
	pred.AsGonum().Mul(m.AsGonum(), sp.AsGonum())
	pred.Scale(lambda)
	for b := 0; b < nuc.NBASE; b++ {
		for k := 0; k < ncycle; k++ {
			pred.Mat[b][k] += n.Mat[b][k]
		}
	}
	return pred
}

// baseTensor is a NBASE x NBASE array of K x K matrices: the compact
// representation of J and K's Kronecker structure, indexed by the pair
// of base calls involved.
type baseTensor [nuc.NBASE][nuc.NBASE]*matrix.Dense

func newBaseTensor(ncycle int) baseTensor {
	var t baseTensor
	for a := 0; a < nuc.NBASE; a++ {
		for b := 0; b < nuc.NBASE; b++ {
			t[a][b] = matrix.New(ncycle, ncycle)
		}
	}
	return t
}

// accumulateStatistics builds J, K, Sbar, Ibar, Wbar in a single pass
// over clusters:
//
//	J[a][b][k',k]  = Σ_i w_i λ_i²      · 1{call_i(k')=a} 1{call_i(k)=b}
//	K[a][b][k',k]  = Σ_i w_i λ_i       · 1{call_i(k')=a} · I_i[b,k]
//	Sbar[b,k]      = Σ_i w_i λ_i       · 1{call_i(k)=b}
//	Ibar[b,k]      = Σ_i w_i           · I_i[b,k]
//	Wbar           = Σ_i w_i
func accumulateStatistics(weights, lambda []float64, bases [][]nuc.NUC, clusters []tile.Cluster, ncycle int) (jStat, kStat baseTensor, sbar, ibar *matrix.Dense, wbar float64) {
	jStat = newBaseTensor(ncycle)
	kStat = newBaseTensor(ncycle)
	sbar = matrix.New(nuc.NBASE, ncycle)
	ibar = matrix.New(nuc.NBASE, ncycle)

	for i, c := range clusters {
		w := weights[i]
		lam := lambda[i]
		wl := w * lam
		wl2 := w * lam * lam
		bi := bases[i]

		for b := 0; b < nuc.NBASE; b++ {
			for k := 0; k < ncycle; k++ {
				ibar.Mat[b][k] += w * c.Signals.Mat[b][k]
			}
		}

		for kp := 0; kp < ncycle; kp++ {
			a := bi[kp]
			if a == nuc.AMBIG {
				continue
			}
			sbar.Mat[int(a)][kp] += wl

			for k := 0; k < ncycle; k++ {
				bcall := bi[k]
				if bcall != nuc.AMBIG {
					jStat[int(a)][int(bcall)].Mat[kp][k] += wl2
				}
				for ch := 0; ch < nuc.NBASE; ch++ {
					kStat[int(a)][ch].Mat[kp][k] += wl * c.Signals.Mat[ch][k]
				}
			}
		}
		wbar += w
	}
	return
}

// rescale applies the coupled J/K/Sbar rescaling required after a
// determinant-normalisation step (§4.5, §8 property 2): J *= d², K *= d,
// Sbar *= d.
func rescale(jStat, kStat baseTensor, sbar *matrix.Dense, d float64) {
	d2 := d * d
	for a := 0; a < nuc.NBASE; a++ {
		for b := 0; b < nuc.NBASE; b++ {
			jStat[a][b].Scale(d2)
			kStat[a][b].Scale(d)
		}
	}
	sbar.Scale(d)
}

// updatePN solves the (P, N) block with M fixed, per the normal
// equations derived from λ_i M S_i P + N: Lhs = [[G, SbarᵀMᵀ],[M Sbar,
// Wbar·Id]], Rhs = [[RhsTop],[Ibar]], where G[k',k] = Σ MtM[a,b]
// J[a][b][k',k] and RhsTop[k',k] = Σ M[b,a] K[a][b][k',k].
func updatePN(m, p, n *matrix.Dense, jStat, kStat baseTensor, sbar, ibar *matrix.Dense, wbar float64) error {
	_, ncycle := p.Size()

	mtM := matrix.New(nuc.NBASE, nuc.NBASE)
	mtM.AsGonum().Mul(matrix.TransposeInPlace(m.Copy()).AsGonum(), m.AsGonum())

	g := matrix.New(ncycle, ncycle)
	for a := 0; a < nuc.NBASE; a++ {
		for b := 0; b < nuc.NBASE; b++ {
			addScaled(g, jStat[a][b], mtM.Mat[a][b])
		}
	}

	rhsTop := matrix.New(ncycle, ncycle)
	for a := 0; a < nuc.NBASE; a++ {
		for b := 0; b < nuc.NBASE; b++ {
			addScaled(rhsTop, kStat[a][b], m.Mat[b][a])
		}
	}

	sbarT := matrix.TransposeInPlace(sbar.Copy())
	sbarTMt := matrix.New(ncycle, nuc.NBASE)
	sbarTMt.AsGonum().Mul(sbarT.AsGonum(), matrix.TransposeInPlace(m.Copy()).AsGonum())

	mSbar := matrix.New(nuc.NBASE, ncycle)
	mSbar.AsGonum().Mul(m.AsGonum(), sbar.AsGonum())

	lhs := matrix.New(ncycle+nuc.NBASE, ncycle+nuc.NBASE)
	rhs := matrix.New(ncycle+nuc.NBASE, ncycle)
	blit(lhs, g, 0, 0)
	blit(lhs, sbarTMt, 0, ncycle)
	blit(lhs, mSbar, ncycle, 0)
	for b := 0; b < nuc.NBASE; b++ {
		lhs.Mat[ncycle+b][ncycle+b] = wbar
	}
	blit(rhs, rhsTop, 0, 0)
	blit(rhs, ibar, ncycle, 0)

	work := make([]float64, (ncycle+nuc.NBASE)*ncycle+min(ncycle+nuc.NBASE, ncycle))
	x, err := matrix.SVDSolve(lhs, rhs, work)
	if err != nil {
		return fmt.Errorf("mpn.updatePN: %w", err)
	}

	for i := 0; i < ncycle; i++ {
		copy(p.Mat[i], x.Mat[i])
	}
	for b := 0; b < nuc.NBASE; b++ {
		copy(n.Mat[b], x.Mat[ncycle+b])
	}
	return nil
}

// updateMN solves the (M, N) block with P fixed, mirroring updatePN with
// the roles of M and P (and NBASE and ncycle) exchanged: Lhs = [[G2,
// SbarP],[SbarPᵀ, Wbar·Id]], Rhs = [[RhsTop2],[IbarT]], where G2[a,b] =
// Σ_{k',k} J[a][b][k',k]·(PPᵀ)[k',k] and RhsTop2[a,b] = Σ_{k',k}
// P[k',k]·K[a][b][k',k].
func updateMN(m, p, n *matrix.Dense, jStat, kStat baseTensor, sbar, ibar *matrix.Dense, wbar float64) error {
	_, ncycle := p.Size()

	ppt := matrix.New(ncycle, ncycle)
	ppt.AsGonum().Mul(p.AsGonum(), matrix.TransposeInPlace(p.Copy()).AsGonum())

	g2 := matrix.New(nuc.NBASE, nuc.NBASE)
	rhsTop2 := matrix.New(nuc.NBASE, nuc.NBASE)
	for a := 0; a < nuc.NBASE; a++ {
		for b := 0; b < nuc.NBASE; b++ {
			g2.Mat[a][b] = frobenius(jStat[a][b], ppt)
			rhsTop2.Mat[a][b] = frobenius(p, kStat[a][b])
		}
	}

	sbarP := matrix.New(nuc.NBASE, ncycle)
	sbarP.AsGonum().Mul(sbar.AsGonum(), p.AsGonum())
	sbarPT := matrix.TransposeInPlace(sbarP.Copy())

	ibarT := matrix.TransposeInPlace(ibar.Copy())

	lhs := matrix.New(nuc.NBASE+ncycle, nuc.NBASE+ncycle)
	rhs := matrix.New(nuc.NBASE+ncycle, nuc.NBASE)
	blit(lhs, g2, 0, 0)
	blit(lhs, sbarP, 0, nuc.NBASE)
	blit(lhs, sbarPT, nuc.NBASE, 0)
	for k := 0; k < ncycle; k++ {
		lhs.Mat[nuc.NBASE+k][nuc.NBASE+k] = wbar
	}
	blit(rhs, rhsTop2, 0, 0)
	blit(rhs, ibarT, nuc.NBASE, 0)

	work := make([]float64, (nuc.NBASE+ncycle)*nuc.NBASE+min(nuc.NBASE+ncycle, nuc.NBASE))
	x, err := matrix.SVDSolve(lhs, rhs, work)
	if err != nil {
		return fmt.Errorf("mpn.updateMN: %w", err)
	}

	// x[0:NBASE,:] is Mᵀ; x[NBASE:,:] is Nᵀ.
	for a := 0; a < nuc.NBASE; a++ {
		for b := 0; b < nuc.NBASE; b++ {
			m.Mat[b][a] = x.Mat[a][b]
		}
	}
	for k := 0; k < ncycle; k++ {
		for b := 0; b < nuc.NBASE; b++ {
			n.Mat[b][k] = x.Mat[nuc.NBASE+k][b]
		}
	}
	return nil
}

func addScaled(dst, src *matrix.Dense, w float64) {
	if w == 0 {
		return
	}
	for i := range dst.Mat {
		for j := range dst.Mat[i] {
			dst.Mat[i][j] += w * src.Mat[i][j]
		}
	}
}

func frobenius(a, b *matrix.Dense) float64 {
	var sum float64
	for i := range a.Mat {
		for j := range a.Mat[i] {
			sum += a.Mat[i][j] * b.Mat[i][j]
		}
	}
	return sum
}

// blit copies src into dst starting at (rowOff, colOff).
func blit(dst, src *matrix.Dense, rowOff, colOff int) {
	for i := range src.Mat {
		copy(dst.Mat[rowOff+i][colOff:colOff+len(src.Mat[i])], src.Mat[i])
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
