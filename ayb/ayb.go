// Package ayb is the AYB base-calling driver (C8): it owns the model
// state for one datablock (crosstalk M, phasing P, noise N, per-cluster
// brightness λ and weight, per-cycle residual variance, base/quality
// calls), seeds it, and runs the alternating parameter-estimation loop
// that the package-level functions in mpn, covariance, brightness and
// basecall implement one step of each.
//
// Grounded on analyse_tile/initialise_model/estimate_bases in the
// original implementation: new_AYB's field layout is Model's, and
// initialise_model's "process, call simple bases, fit initial lambda"
// sequence is New's, while analyse_tile's `for i := range NIter {
// estimate_MPN(); estimate_bases() }` outer loop is Run's.
package ayb

import (
	"fmt"

	"github.com/andrew-torda/aybgo/ayberr"
	"github.com/andrew-torda/aybgo/basecall"
	"github.com/andrew-torda/aybgo/brightness"
	"github.com/andrew-torda/aybgo/covariance"
	"github.com/andrew-torda/aybgo/intensity"
	"github.com/andrew-torda/aybgo/matrix"
	"github.com/andrew-torda/aybgo/mpn"
	"github.com/andrew-torda/aybgo/nuc"
	"github.com/andrew-torda/aybgo/tile"
)

// Config holds the run's tuning values. Model.Run receives it by value.
type Config struct {
	// NIter is the number of outer (estimate-MPN, call-bases) passes.
	// The original implementation's CLI default is 5.
	NIter int
	// Mu tunes the posterior-probability quality formula (basecall.Call);
	// the original implementation's default is 1e-5.
	Mu float64
	// WeightModel selects how mpn.Estimate turns per-cluster residuals
	// into robustness weights (SPEC_FULL.md §12). Defaults to
	// mpn.CauchyWeights, matching spec.md §4.5 step 1 exactly.
	WeightModel mpn.WeightModel
}

// DefaultConfig returns the original implementation's tuning defaults.
func DefaultConfig() Config {
	return Config{NIter: 5, Mu: 1e-5, WeightModel: mpn.CauchyWeights}
}

// DefaultCrosstalk is the built-in seed crosstalk matrix used when no
// external one is supplied, taken verbatim from the original
// implementation's INITIAL_CROSSTALK.
func DefaultCrosstalk() *matrix.Dense {
	m, err := matrix.FromArray(nuc.NBASE, nuc.NBASE, []float64{
		2.0114300, 1.7217841, 0.06436576, 0.1126401,
		0.6919319, 1.8022413, 0.06436576, 0.0804572,
		0.2735545, 0.2252802, 1.39995531, 0.9976693,
		0.2896459, 0.2413716, 0.11264008, 1.3194981,
	})
	if err != nil {
		panic("ayb: built-in DefaultCrosstalk is malformed: " + err.Error())
	}
	return m
}

// Model is one datablock's AYB state.
type Model struct {
	Tile *tile.Tile

	M *matrix.Dense // NBASE x NBASE crosstalk
	P *matrix.Dense // ncycle x ncycle phasing
	N *matrix.Dense // NBASE x ncycle noise

	Lambda   []float64 // per-cluster brightness
	Weights  []float64 // per-cluster robustness weight
	CycleVar []float64 // per-cycle residual variance

	Bases [][]nuc.NUC  // [cluster][cycle]
	Quals [][]nuc.QUAL // [cluster][cycle]
}

// New builds and seeds a Model for one tile (a single datablock, post
// blockspec.Parse/tile.Split), following initialise_model: M starts at
// seedCrosstalk (or DefaultCrosstalk if nil), P at seedPhasing (or the
// identity if nil), N at seedNoise (or zero if nil).
// Weights and cycle variance start at one, then every cluster gets an
// initial argmax base call and OLS brightness from the once-inverted M
// and P. Any supplied seed whose shape disagrees with the tile's
// NBASE/ncycle dimensions is rejected with ayberr.MatrixDimMismatch
// before any iteration begins.
func New(t *tile.Tile, seedCrosstalk, seedPhasing, seedNoise *matrix.Dense) (*Model, error) {
	ncluster := t.NCluster()
	ncycle := t.NCycle()
	if ncluster == 0 || ncycle == 0 {
		return nil, fmt.Errorf("ayb.New: empty tile (%d clusters, %d cycles): %w", ncluster, ncycle, ayberr.InsufficientCycles)
	}

	m := seedCrosstalk
	if m == nil {
		m = DefaultCrosstalk()
	} else {
		if nr, nc := m.Size(); nr != nuc.NBASE || nc != nuc.NBASE {
			return nil, fmt.Errorf("ayb.New: seed crosstalk is %dx%d, want %dx%d: %w", nr, nc, nuc.NBASE, nuc.NBASE, ayberr.MatrixDimMismatch)
		}
		m = m.Copy()
	}

	p := seedPhasing
	if p == nil {
		p = matrix.New(ncycle, ncycle)
		for k := 0; k < ncycle; k++ {
			p.Mat[k][k] = 1
		}
	} else {
		if nr, nc := p.Size(); nr != ncycle || nc != ncycle {
			return nil, fmt.Errorf("ayb.New: seed phasing is %dx%d, want %dx%d: %w", nr, nc, ncycle, ncycle, ayberr.MatrixDimMismatch)
		}
		p = p.Copy()
	}

	n := seedNoise
	if n == nil {
		n = matrix.New(nuc.NBASE, ncycle)
	} else {
		if nr, nc := n.Size(); nr != nuc.NBASE || nc != ncycle {
			return nil, fmt.Errorf("ayb.New: seed noise is %dx%d, want %dx%d: %w", nr, nc, nuc.NBASE, ncycle, ayberr.MatrixDimMismatch)
		}
		n = n.Copy()
	}

	weights := make([]float64, ncluster)
	cycleVar := make([]float64, ncycle)
	lambda := make([]float64, ncluster)
	for i := range weights {
		weights[i] = 1
	}
	for k := range cycleVar {
		cycleVar[k] = 1
	}

	bases := make([][]nuc.NUC, ncluster)
	quals := make([][]nuc.QUAL, ncluster)

	miT, err := intensity.PreInvertTranspose(m)
	if err != nil {
		return nil, fmt.Errorf("ayb.New: %w", err)
	}
	piT, err := intensity.PreInvertTranspose(p)
	if err != nil {
		return nil, fmt.Errorf("ayb.New: %w", err)
	}

	var pcl *matrix.Dense
	for i, c := range t.Clusters {
		pcl, err = intensity.Process(c.Signals, miT, piT, n, pcl)
		if err != nil {
			return nil, fmt.Errorf("ayb.New: cluster %d: %w", i, err)
		}
		cb := make([]nuc.NUC, ncycle)
		cq := make([]nuc.QUAL, ncycle)
		for k := 0; k < ncycle; k++ {
			col := make([]float64, nuc.NBASE)
			for b := 0; b < nuc.NBASE; b++ {
				col[b] = pcl.Mat[b][k]
			}
			cb[k] = basecall.CallSimple(col)
			cq[k] = nuc.MinQuality
		}
		bases[i] = cb
		quals[i] = cq
		lambda[i] = brightness.EstimateOLS(pcl, cb)
	}

	return &Model{
		Tile: t, M: m, P: p, N: n,
		Lambda: lambda, Weights: weights, CycleVar: cycleVar,
		Bases: bases, Quals: quals,
	}, nil
}

// Run executes cfg.NIter outer iterations of (estimate MPN, re-estimate
// covariance, re-estimate brightness, re-call bases), mutating m in
// place. Any error, such as a non-convergent MPN estimate
// (ayberr.NonConvergent), aborts the run. Bases and Quals then still hold
// the calls of the last completed iteration, while M, P and N may already
// have been changed in place by the failed estimate.
func (m *Model) Run(cfg Config) error {
	ncycle := m.Tile.NCycle()
	if cfg.NIter <= 0 {
		return nil
	}

	for iter := 0; iter < cfg.NIter; iter++ {
		res, err := mpn.Estimate(m.M, m.P, m.N, m.Lambda, m.Bases, m.Tile.Clusters, cfg.WeightModel)
		if err != nil {
			return fmt.Errorf("ayb.Run: iteration %d: %w", iter, err)
		}
		m.Weights = res.Weights

		if err := m.estimateBases(cfg, ncycle); err != nil {
			return fmt.Errorf("ayb.Run: iteration %d: %w", iter, err)
		}
	}
	return nil
}

// estimateBases mirrors estimate_bases: recompute the per-cycle residual
// covariance, then for every cluster re-estimate brightness by weighted
// least squares, call bases cycle by cycle using that cycle's inverse
// covariance, and re-estimate brightness once more with the new calls.
func (m *Model) estimateBases(cfg Config, ncycle int) error {
	miT, err := intensity.PreInvertTranspose(m.M)
	if err != nil {
		return err
	}
	piT, err := intensity.PreInvertTranspose(m.P)
	if err != nil {
		return err
	}

	covRes, err := covariance.Estimate(miT, piT, m.N, m.Lambda, m.Weights, m.Bases, m.Tile.Clusters)
	if err != nil {
		return err
	}
	m.CycleVar = covRes.CycleVar

	var pcl *matrix.Dense
	for i, c := range m.Tile.Clusters {
		pcl, err = intensity.Process(c.Signals, miT, piT, m.N, pcl)
		if err != nil {
			return fmt.Errorf("cluster %d: %w", i, err)
		}

		m.Lambda[i] = brightness.EstimateWLS(pcl, m.Bases[i], m.Lambda[i], m.CycleVar)

		for k := 0; k < ncycle; k++ {
			col := make([]float64, nuc.NBASE)
			for b := 0; b < nuc.NBASE; b++ {
				col[b] = pcl.Mat[b][k]
			}
			res, err := basecall.Call(col, m.Lambda[i], covRes.Omega[k], nil, cfg.Mu)
			if err != nil {
				return fmt.Errorf("cluster %d cycle %d: %w", i, k, err)
			}
			m.Bases[i][k] = res.Base
			m.Quals[i][k] = res.Quality
		}

		m.Lambda[i] = brightness.EstimateWLS(pcl, m.Bases[i], m.Lambda[i], m.CycleVar)
	}
	return nil
}

// Report summarises one Model's final state for output/logging.
type Report struct {
	NCluster    int
	NCycle      int
	MeanQuality float64
}

// Summarise builds a Report from the model's current base/quality calls.
func (m *Model) Summarise() Report {
	ncluster := len(m.Bases)
	ncycle := m.Tile.NCycle()
	var sum float64
	var count int
	for _, quals := range m.Quals {
		for _, q := range quals {
			sum += float64(q)
			count++
		}
	}
	mean := 0.0
	if count > 0 {
		mean = sum / float64(count)
	}
	return Report{NCluster: ncluster, NCycle: ncycle, MeanQuality: mean}
}
