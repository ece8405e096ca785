package stats_test

import (
	"math"
	"testing"

	"github.com/andrew-torda/aybgo/stats"
)

func TestMeanVariance(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	if got := stats.Mean(x); got != 3 {
		t.Errorf("Mean = %v, want 3", got)
	}
	if got, want := stats.Variance(x), 2.0; math.Abs(got-want) > 1e-12 {
		t.Errorf("Variance = %v, want %v", got, want)
	}
}

func TestCauchyWeight(t *testing.T) {
	if w := stats.CauchyWeight(0, 1); w != 1 {
		t.Errorf("delta2=0: got %v, want 1", w)
	}
	if w := stats.CauchyWeight(1, 0); w != 1 {
		t.Errorf("degenerate variance: got %v, want 1", w)
	}
	if w := stats.CauchyWeight(3, 1); math.Abs(w-0.25) > 1e-12 {
		t.Errorf("got %v, want 0.25", w)
	}
	// Monotone decreasing in delta2.
	prev := stats.CauchyWeight(0, 2)
	for _, d := range []float64{1, 2, 5, 10} {
		w := stats.CauchyWeight(d, 2)
		if w > prev {
			t.Fatalf("weight not decreasing: delta2=%v gave %v after %v", d, w, prev)
		}
		prev = w
	}
}

func TestLinearRegressionExact(t *testing.T) {
	x := []float64{0, 1, 2, 3}
	y := make([]float64, len(x))
	for i, xi := range x {
		y[i] = 2*xi + 1
	}
	slope, intercept, err := stats.LinearRegression(x, y)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(slope-2) > 1e-9 || math.Abs(intercept-1) > 1e-9 {
		t.Errorf("got slope=%v intercept=%v, want 2,1", slope, intercept)
	}
}

func TestWeibullRoundTrip(t *testing.T) {
	shape, scale := 1.5, 3.0
	x := 2.0
	p := stats.PWeibull(x, shape, scale, false, false)
	back := stats.QWeibull(p, shape, scale, false, false)
	if math.Abs(back-x) > 1e-9 {
		t.Errorf("QWeibull(PWeibull(x)) = %v, want %v", back, x)
	}
}

func TestFitWeibullRecoversParameters(t *testing.T) {
	shape, scale := 2.0, 5.0
	n := 200
	x := make([]float64, n)
	for i := 0; i < n; i++ {
		p := (float64(i) + 0.5) / float64(n)
		x[i] = stats.QWeibull(p, shape, scale, false, false)
	}
	gotShape, gotScale, err := stats.FitWeibull(x)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(gotShape-shape) > 0.05*shape {
		t.Errorf("shape = %v, want ~%v", gotShape, shape)
	}
	if math.Abs(gotScale-scale) > 0.05*scale {
		t.Errorf("scale = %v, want ~%v", gotScale, scale)
	}
}
