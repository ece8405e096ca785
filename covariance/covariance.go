// Package covariance estimates per-cycle residual covariance (C6): one
// forward sweep over clusters accumulating V_k = Σ_i w_i (p_i - λ_i e_b)
// (p_i - λ_i e_b)ᵀ for each cycle k, where p_i is that cluster's processed
// intensity column and e_b is the unit vector for its called base, then
// inverting each V_k to obtain the per-cycle Ω used by base calling.
//
// Grounded directly on accumulate_covariance / calculate_covariance in
// the original implementation, including its side effect of turning the
// processed-intensity matrix into a residual matrix in place (the same
// p_i - λ_i e_b subtraction it performs at the end of accumulation) and
// its use of tr(V_k) — not its reciprocal — as the per-cycle variance fed
// to the brightness estimator; the original leaves that reciprocal
// commented out with a shrug, so this keeps it uninverted too.
package covariance

import (
	"fmt"

	"github.com/andrew-torda/aybgo/intensity"
	"github.com/andrew-torda/aybgo/matrix"
	"github.com/andrew-torda/aybgo/nuc"
	"github.com/andrew-torda/aybgo/tile"
)

// Result holds the per-cycle inverse covariance (Omega) used for base
// calling and the per-cycle residual variance (the trace of each V_k)
// used to re-estimate brightness.
type Result struct {
	Omega    []*matrix.Dense
	CycleVar []float64
}

// Estimate computes Result from the pre-inverted, pre-transposed M and P
// (miT, piT), N, the current lambda, per-cluster robustness weights (as
// returned by mpn.Estimate), base calls and the tile's clusters. Using
// the caller's pre-inverted M and P means the driver inverts each once
// per outer iteration rather than once per cluster.
func Estimate(miT, piT, n *matrix.Dense, lambda, weights []float64, bases [][]nuc.NUC, clusters []tile.Cluster) (Result, error) {
	ncluster := len(clusters)
	if ncluster == 0 {
		return Result{}, fmt.Errorf("covariance.Estimate: no clusters: %w", matrix.ErrInvalidDim)
	}
	_, ncycle := n.Size()

	v := make([]*matrix.Dense, ncycle)
	for k := range v {
		v[k] = matrix.New(nuc.NBASE, nuc.NBASE)
	}

	var wesum float64
	var pcl *matrix.Dense
	for i, c := range clusters {
		var err error
		pcl, err = intensity.Process(c.Signals, miT, piT, n, pcl)
		if err != nil {
			return Result{}, fmt.Errorf("covariance.Estimate: cluster %d: %w", i, err)
		}
		accumulate(weights[i], pcl, lambda[i], bases[i], v)
		wesum += weights[i]
	}
	if wesum <= 0 {
		return Result{}, fmt.Errorf("covariance.Estimate: zero total weight: %w", matrix.ErrInvalidDim)
	}

	cycleVar := make([]float64, ncycle)
	omega := make([]*matrix.Dense, ncycle)
	for k := 0; k < ncycle; k++ {
		v[k].Scale(1.0 / wesum)
		var tr float64
		for b := 0; b < nuc.NBASE; b++ {
			tr += v[k].Mat[b][b]
		}
		cycleVar[k] = tr

		inv, err := matrix.InvertViaCholesky(v[k])
		if err != nil {
			return Result{}, fmt.Errorf("covariance.Estimate: cycle %d: %w", k, err)
		}
		omega[k] = inv
	}

	return Result{Omega: omega, CycleVar: cycleVar}, nil
}

// accumulate adds one cluster's contribution to v: for each cycle k with
// called base b, v[k] += w * p[:,k] p[:,k]ᵀ, then shifts p[:,k] by the
// same -λ e_b subtraction as the rank-2 update (R = p - λ e_b), so that
// v[k] ends up accumulating w·R Rᵀ without ever materialising R
// directly. p is left holding the residual R in place on return, same
// as the original.
func accumulate(w float64, p *matrix.Dense, lambda float64, bases []nuc.NUC, v []*matrix.Dense) {
	for k, b := range bases {
		if b == nuc.AMBIG {
			continue
		}
		cybase := int(b)
		vk := v[k]
		for i := 0; i < nuc.NBASE; i++ {
			for j := 0; j < nuc.NBASE; j++ {
				vk.Mat[i][j] += w * p.Mat[i][k] * p.Mat[j][k]
			}
		}
		for i := 0; i < nuc.NBASE; i++ {
			vk.Mat[cybase][i] -= w * lambda * p.Mat[i][k]
			vk.Mat[i][cybase] -= w * lambda * p.Mat[i][k]
		}
		vk.Mat[cybase][cybase] += w * lambda * lambda
	}
	for k, b := range bases {
		if b == nuc.AMBIG {
			continue
		}
		p.Mat[int(b)][k] -= lambda
	}
}
