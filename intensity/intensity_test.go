package intensity_test

import (
	"math"
	"testing"

	"github.com/andrew-torda/aybgo/intensity"
	"github.com/andrew-torda/aybgo/matrix"
	"github.com/andrew-torda/aybgo/nuc"
	"gonum.org/v1/gonum/mat"
)

// TestProcessRoundTrip checks §8 property 1: given I = M S P + N for some
// known M, P, N and brightness-scaled indicator S, Process(I; (M^-1)^T,
// (P^-1)^T, N) recovers S to within 1e-9.
func TestProcessRoundTrip(t *testing.T) {
	m, err := matrix.FromArray(4, 4, []float64{
		2, 0.1, 0.2, 0,
		0.3, 1.8, 0, 0.1,
		0, 0.2, 1.5, 0.3,
		0.1, 0, 0.2, 2.1,
	})
	if err != nil {
		t.Fatalf("build M: %v", err)
	}
	const ncycle = 3
	p, err := matrix.FromArray(ncycle, ncycle, []float64{
		1.0, 0.2, 0.0,
		0.1, 1.0, 0.15,
		0.0, 0.05, 1.0,
	})
	if err != nil {
		t.Fatalf("build P: %v", err)
	}
	n := matrix.New(4, ncycle)
	for b := 0; b < 4; b++ {
		for k := 0; k < ncycle; k++ {
			n.Mat[b][k] = 0.05 * float64(b+k)
		}
	}

	s, err := matrix.FromArray(4, ncycle, []float64{
		5, 0, 0,
		0, 4, 0,
		0, 0, 3,
		0, 0, 0,
	})
	if err != nil {
		t.Fatalf("build S: %v", err)
	}

	sp := matrix.New(4, ncycle)
	sp.AsGonum().Mul(s.AsGonum(), p.AsGonum())
	i := matrix.New(4, ncycle)
	i.AsGonum().Mul(m.AsGonum(), sp.AsGonum())
	for b := 0; b < 4; b++ {
		for k := 0; k < ncycle; k++ {
			i.Mat[b][k] += n.Mat[b][k]
		}
	}

	miT, err := intensity.PreInvertTranspose(m)
	if err != nil {
		t.Fatalf("invert M: %v", err)
	}
	piT, err := intensity.PreInvertTranspose(p)
	if err != nil {
		t.Fatalf("invert P: %v", err)
	}

	out, err := intensity.Process(i, miT, piT, n, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	var maxErr float64
	for b := 0; b < 4; b++ {
		for k := 0; k < ncycle; k++ {
			d := math.Abs(out.Mat[b][k] - s.Mat[b][k])
			if d > maxErr {
				maxErr = d
			}
		}
	}
	if maxErr > 1e-9 {
		t.Errorf("round-trip max abs error %v exceeds 1e-9", maxErr)
	}
}

func TestProcessDimensionMismatch(t *testing.T) {
	i := matrix.New(4, 3)
	n := matrix.New(4, 2)
	miT := matrix.New(4, 4)
	piT := matrix.New(3, 3)
	if _, err := intensity.Process(i, miT, piT, n, nil); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestPreInvertTransposeMatchesGonum(t *testing.T) {
	m, _ := matrix.FromArray(nuc.NBASE, nuc.NBASE, []float64{
		4, 1, 0, 0,
		1, 3, 1, 0,
		0, 1, 3, 1,
		0, 0, 1, 2,
	})
	got, err := intensity.PreInvertTranspose(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var want mat.Dense
	if err := want.Inverse(m.AsGonum()); err != nil {
		t.Fatalf("gonum inverse: %v", err)
	}
	want.CloneFrom(want.T())
	for i := 0; i < nuc.NBASE; i++ {
		for j := 0; j < nuc.NBASE; j++ {
			if d := math.Abs(got.Mat[i][j] - want.At(i, j)); d > 1e-9 {
				t.Errorf("[%d][%d]: got %v, want %v", i, j, got.Mat[i][j], want.At(i, j))
			}
		}
	}
}
