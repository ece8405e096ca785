package brightness_test

import (
	"math"
	"testing"

	"github.com/andrew-torda/aybgo/brightness"
	"github.com/andrew-torda/aybgo/matrix"
	"github.com/andrew-torda/aybgo/nuc"
)

func TestEstimateOLSExact(t *testing.T) {
	bases := []nuc.NUC{nuc.A, nuc.C, nuc.G, nuc.T}
	p := matrix.New(nuc.NBASE, len(bases))
	const lambda = 4.2
	for k, b := range bases {
		p.Mat[int(b)][k] = lambda
	}
	if got := brightness.EstimateOLS(p, bases); math.Abs(got-lambda) > 1e-9 {
		t.Errorf("got %v, want %v", got, lambda)
	}
}

func TestEstimateOLSSkipsAmbig(t *testing.T) {
	bases := []nuc.NUC{nuc.A, nuc.AMBIG, nuc.A}
	p := matrix.New(nuc.NBASE, len(bases))
	p.Mat[nuc.A][0] = 2
	p.Mat[nuc.A][2] = 4
	if got, want := brightness.EstimateOLS(p, bases), 3.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestEstimateOLSNegativeFallsBackToZero(t *testing.T) {
	bases := []nuc.NUC{nuc.A}
	p := matrix.New(nuc.NBASE, 1)
	p.Mat[nuc.A][0] = -5
	if got := brightness.EstimateOLS(p, bases); got != 0 {
		t.Errorf("got %v, want 0", got)
	}
}

func TestEstimateWLSExcludesZeroVarianceCycles(t *testing.T) {
	bases := []nuc.NUC{nuc.A, nuc.A}
	p := matrix.New(nuc.NBASE, 2)
	p.Mat[nuc.A][0] = 10 // excluded, cycleVar[0] <= 0
	p.Mat[nuc.A][1] = 3
	cycleVar := []float64{0, 1}
	if got, want := brightness.EstimateWLS(p, bases, 0, cycleVar), 3.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestEstimateWLSFallsBackWhenNoUsableCycles(t *testing.T) {
	bases := []nuc.NUC{nuc.A}
	p := matrix.New(nuc.NBASE, 1)
	cycleVar := []float64{0}
	if got, want := brightness.EstimateWLS(p, bases, 7, cycleVar), 7.0; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}
