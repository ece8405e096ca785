package matrix_test

import (
	"errors"
	"math"
	"testing"

	"github.com/andrew-torda/aybgo/matrix"
)

// Just for testing
const (
	nrowDflt = 3
	ncolDflt = 5
)

var testSizes = []struct {
	nr, nc int
}{
	{5, 0},
	{0, 0},
	{3, 5},
	{5, 3},
	{5, 3},
	{4, 4},
	{1, 1},
}

func fillAccess(m *matrix.Dense, nr, nc int) {
	n := 1.0
	for i := 0; i < nr; i++ {
		for j := 0; j < nc; j++ {
			m.Mat[i][j] = n
			n++
		}
	}
}

func checkSize(m *matrix.Dense, nr, nc int, t *testing.T) {
	if r, c := m.Size(); r != nr || c != nc {
		t.Fatalf("want size %dx%d, got %dx%d", nr, nc, r, c)
	}
}

func TestNewAndResize(t *testing.T) {
	for _, ts := range testSizes {
		m := matrix.New(ts.nr, ts.nc)
		checkSize(m, ts.nr, ts.nc, t)
		fillAccess(m, ts.nr, ts.nc)
	}

	m := matrix.New(nrowDflt, ncolDflt)
	fillAccess(m, nrowDflt, ncolDflt)
	m.Resize(nrowDflt+2, ncolDflt+2)
	checkSize(m, nrowDflt+2, ncolDflt+2, t)
}

func TestFromArrayBadShape(t *testing.T) {
	if _, err := matrix.FromArray(2, 2, []float64{1, 2, 3}); !errors.Is(err, matrix.ErrInvalidDim) {
		t.Fatalf("expected ErrInvalidDim, got %v", err)
	}
}

func TestCopyInto(t *testing.T) {
	src, _ := matrix.FromArray(2, 3, []float64{1, 2, 3, 4, 5, 6})
	dst := matrix.New(1, 1)
	matrix.CopyInto(dst, src)
	checkSize(dst, 2, 3, t)
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			if dst.Mat[i][j] != src.Mat[i][j] {
				t.Fatalf("copy mismatch at %d,%d", i, j)
			}
		}
	}
}

func TestTransposeSquare(t *testing.T) {
	a, _ := matrix.FromArray(2, 2, []float64{1, 2, 3, 4})
	matrix.TransposeInPlace(a)
	want := [][]float64{{1, 3}, {2, 4}}
	for i := range want {
		for j := range want[i] {
			if a.Mat[i][j] != want[i][j] {
				t.Fatalf("transpose mismatch at %d,%d: got %v want %v", i, j, a.Mat[i][j], want[i][j])
			}
		}
	}
}

func TestTransposeRectangular(t *testing.T) {
	a, _ := matrix.FromArray(2, 3, []float64{1, 2, 3, 4, 5, 6})
	matrix.TransposeInPlace(a)
	checkSize(a, 3, 2, t)
	want := [][]float64{{1, 4}, {2, 5}, {3, 6}}
	for i := range want {
		for j := range want[i] {
			if a.Mat[i][j] != want[i][j] {
				t.Fatalf("transpose mismatch at %d,%d", i, j)
			}
		}
	}
}

func TestInvertIdentity(t *testing.T) {
	id, _ := matrix.FromArray(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	inv, err := matrix.Invert(id)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.Abs(inv.Mat[i][j]-id.Mat[i][j]) > 1e-12 {
				t.Fatalf("inverse of identity mismatch at %d,%d", i, j)
			}
		}
	}
}

func TestInvertSingular(t *testing.T) {
	sing, _ := matrix.FromArray(2, 2, []float64{1, 1, 1, 1})
	if _, err := matrix.Invert(sing); !errors.Is(err, matrix.ErrSingular) {
		t.Fatalf("expected ErrSingular, got %v", err)
	}
}

func TestCholeskyRoundTrip(t *testing.T) {
	// SPD matrix [[4,2],[2,3]]
	a, _ := matrix.FromArray(2, 2, []float64{4, 2, 2, 3})
	l, err := matrix.Cholesky(a)
	if err != nil {
		t.Fatal(err)
	}
	got := matrix.New(2, 2)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			var s float64
			for k := 0; k < 2; k++ {
				s += l.Mat[i][k] * l.Mat[j][k]
			}
			got.Mat[i][j] = s
		}
	}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if math.Abs(got.Mat[i][j]-a.Mat[i][j]) > 1e-9 {
				t.Fatalf("L L^T != A at %d,%d: got %v want %v", i, j, got.Mat[i][j], a.Mat[i][j])
			}
		}
	}
}

func TestNormaliseToUnitDet(t *testing.T) {
	a, _ := matrix.FromArray(2, 2, []float64{2, 0, 0, 8})
	d, err := matrix.NormaliseToUnitDet(a, 1e-10)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(d-4) > 1e-9 {
		t.Fatalf("expected scale 4, got %v", d)
	}
	det := a.Mat[0][0]*a.Mat[1][1] - a.Mat[0][1]*a.Mat[1][0]
	if math.Abs(det-1) > 1e-9 {
		t.Fatalf("expected det 1 after normalisation, got %v", det)
	}
}

func TestNormaliseNearSingular(t *testing.T) {
	a, _ := matrix.FromArray(2, 2, []float64{1e-6, 0, 0, 1e-6})
	if _, err := matrix.NormaliseToUnitDet(a, 1e-3); !errors.Is(err, matrix.ErrNearSingular) {
		t.Fatalf("expected ErrNearSingular, got %v", err)
	}
}

func TestAppendColumnsFromEmpty(t *testing.T) {
	dst := matrix.New(0, 0)
	src, _ := matrix.FromArray(2, 4, []float64{1, 2, 3, 4, 5, 6, 7, 8})
	if _, err := matrix.AppendColumns(dst, src, 1, 2); err != nil {
		t.Fatal(err)
	}
	checkSize(dst, 2, 2, t)
	want := [][]float64{{2, 3}, {6, 7}}
	for i := range want {
		for j := range want[i] {
			if dst.Mat[i][j] != want[i][j] {
				t.Fatalf("append mismatch at %d,%d", i, j)
			}
		}
	}
}

func TestBlockDiagonal(t *testing.T) {
	a, _ := matrix.FromArray(4, 4, []float64{
		1, 2, 0, 0,
		3, 4, 0, 0,
		0, 0, 5, 6,
		0, 0, 7, 8,
	})
	blocks, err := matrix.BlockDiagonal(a, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
	if blocks[0].Mat[0][0] != 1 || blocks[0].Mat[1][1] != 4 {
		t.Fatalf("first block wrong: %v", blocks[0])
	}
	if blocks[1].Mat[0][0] != 5 || blocks[1].Mat[1][1] != 8 {
		t.Fatalf("second block wrong: %v", blocks[1])
	}
}

func TestXMY(t *testing.T) {
	m, _ := matrix.FromArray(2, 2, []float64{1, 0, 0, 1})
	got, err := matrix.XMY([]float64{1, 2}, m, []float64{3, 4})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got-11) > 1e-12 {
		t.Fatalf("xMy identity: got %v want 11", got)
	}
}

func TestSVDSolveExact(t *testing.T) {
	lhs, _ := matrix.FromArray(2, 2, []float64{2, 0, 0, 2})
	rhs, _ := matrix.FromArray(2, 1, []float64{4, 6})
	work := make([]float64, 2*1+2)
	x, err := matrix.SVDSolve(lhs, rhs, work)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(x.Mat[0][0]-2) > 1e-9 || math.Abs(x.Mat[1][0]-3) > 1e-9 {
		t.Fatalf("unexpected solve result: %v", x)
	}
}
