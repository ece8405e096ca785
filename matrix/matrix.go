// Package matrix is a dense, row-major matrix kernel for the AYB
// base-calling core.
//
// It follows the allocation discipline of the original FMatrix2d: declare
// a zero-value Dense, call Resize before use, or use New for a one-off
// matrix. The backing store grows but never shrinks across a Resize, so a
// matrix reused across iterations (the common case in the MPN estimator)
// does not reallocate once it has reached its largest shape.
//
// The hard numerical operations (inverse, Cholesky, SVD, determinant) are
// not reimplemented here. They are delegated to gonum.org/v1/gonum/mat,
// which owns exactly this kind of dense linear algebra; Dense's backing
// slice is handed to gonum directly (no copy) wherever the aliasing is
// safe, following the pattern the pack's own gonum users rely on.
package matrix

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Sentinel errors surfaced by kernel operations. Wrapped with fmt.Errorf
// at the call site so callers can still errors.Is against these.
var (
	ErrInvalidDim   = errors.New("matrix: invalid dimensions")
	ErrSingular     = errors.New("matrix: singular")
	ErrNearSingular = errors.New("matrix: near singular")
)

// Dense is a two dimensional array of float64s, stored row-major in a
// single backing slice. Mat[i] is a view onto row i of that slice.
type Dense struct {
	Mat      [][]float64
	fullData []float64
	nrow     int
	ncol     int
}

// fixSlices points Mat's rows into fullData. Called whenever the shape
// changes, for both fresh and resized matrices.
func (m *Dense) fixSlices(nr, nc int) {
	tmp := m.fullData
	m.Mat = make([][]float64, nr)
	for i := range m.Mat {
		m.Mat[i] = tmp[:nc:nc]
		tmp = tmp[nc:]
	}
	m.nrow, m.ncol = nr, nc
}

// Resize adapts mat to be nr x nc. If the new size needs more storage
// than mat currently owns, the backing array is reallocated; otherwise
// the existing array is reused and Mat's row pointers are rebuilt. It
// never shrinks the backing store.
func (m *Dense) Resize(nr, nc int) *Dense {
	if m.nrow == nr && m.ncol == nc {
		return m
	}
	if nr*nc > len(m.fullData) {
		m.fullData = make([]float64, nr*nc)
	}
	m.fixSlices(nr, nc)
	return m
}

// New allocates a zero-filled nr x nc matrix.
func New(nr, nc int) *Dense {
	m := new(Dense)
	m.fullData = make([]float64, nr*nc)
	m.fixSlices(nr, nc)
	return m
}

// FromArray copies nr*nc values from src, in row-major order, into a new
// matrix.
func FromArray(nr, nc int, src []float64) (*Dense, error) {
	if nr <= 0 || nc <= 0 || len(src) != nr*nc {
		return nil, fmt.Errorf("matrix.FromArray %dx%d from %d values: %w", nr, nc, len(src), ErrInvalidDim)
	}
	m := New(nr, nc)
	copy(m.fullData, src)
	return m, nil
}

// Size returns the number of rows and columns.
func (m *Dense) Size() (nrow, ncol int) {
	return m.nrow, m.ncol
}

// String prints the matrix for debugging, clamping extreme values the
// way the teacher's FMatrix2d.String does.
func (m *Dense) String() string {
	s := ""
	for _, row := range m.Mat {
		for _, v := range row {
			x := v
			if x < -50 {
				x = -50
			}
			if x > 50 {
				x = 50
			}
			s += fmt.Sprintf("%8.3f", x)
		}
		s += "\n"
	}
	return s
}

// Copy returns a freshly allocated duplicate of m.
func (m *Dense) Copy() *Dense {
	out := New(m.nrow, m.ncol)
	copy(out.fullData, m.fullData)
	return out
}

// CopyInto copies src into dst, resizing dst if its shape differs from
// src's. Returns dst.
func CopyInto(dst, src *Dense) *Dense {
	dst.Resize(src.nrow, src.ncol)
	copy(dst.fullData, src.fullData)
	return dst
}

// Scale multiplies every entry of m by f.
func (m *Dense) Scale(f float64) {
	for i := range m.fullData {
		m.fullData[i] *= f
	}
}

// AsGonum returns a *mat.Dense view over m's backing store. Mutating the
// returned matrix mutates m; this is intentional, it is how the kernel
// hands work to gonum without copying.
func (m *Dense) AsGonum() *mat.Dense {
	return mat.NewDense(m.nrow, m.ncol, m.fullData)
}

// TransposeInPlace produces Aᵀ. Square matrices keep their storage and
// are transposed element-wise; rectangular matrices reallocate, since a
// transpose changes shape.
func TransposeInPlace(a *Dense) *Dense {
	nr, nc := a.Size()
	if nr == nc {
		for i := 0; i < nr; i++ {
			for j := i + 1; j < nc; j++ {
				a.Mat[i][j], a.Mat[j][i] = a.Mat[j][i], a.Mat[i][j]
			}
		}
		return a
	}
	out := New(nc, nr)
	for i := 0; i < nr; i++ {
		for j := 0; j < nc; j++ {
			out.Mat[j][i] = a.Mat[i][j]
		}
	}
	a.fullData = out.fullData
	a.fixSlices(nc, nr)
	return a
}

// Invert computes the general inverse of a square matrix A, failing with
// ErrSingular if A is numerically singular.
func Invert(a *Dense) (*Dense, error) {
	nr, nc := a.Size()
	if nr != nc || nr == 0 {
		return nil, fmt.Errorf("matrix.Invert %dx%d: %w", nr, nc, ErrInvalidDim)
	}
	out := New(nr, nr)
	if err := out.AsGonum().Inverse(a.AsGonum()); err != nil {
		return nil, fmt.Errorf("matrix.Invert: %w", ErrSingular)
	}
	return out, nil
}

// Cholesky computes the lower-triangular Cholesky factor L (A = L Lᵀ) of
// a symmetric positive-definite matrix.
func Cholesky(a *Dense) (*Dense, error) {
	nr, nc := a.Size()
	if nr != nc || nr == 0 {
		return nil, fmt.Errorf("matrix.Cholesky %dx%d: %w", nr, nc, ErrInvalidDim)
	}
	sym := mat.NewSymDense(nr, append([]float64(nil), a.fullData...))
	var chol mat.Cholesky
	if ok := chol.Factorize(sym); !ok {
		return nil, fmt.Errorf("matrix.Cholesky: %w", ErrNearSingular)
	}
	var lower mat.TriDense
	chol.LTo(&lower)
	out := New(nr, nr)
	for i := 0; i < nr; i++ {
		for j := 0; j <= i; j++ {
			out.Mat[i][j] = lower.At(i, j)
		}
	}
	return out, nil
}

// InvertViaCholesky inverts a symmetric positive-definite matrix via its
// Cholesky factorisation; cheaper and more stable than a general inverse
// when A is known SPD (e.g. a covariance matrix).
func InvertViaCholesky(a *Dense) (*Dense, error) {
	nr, nc := a.Size()
	if nr != nc || nr == 0 {
		return nil, fmt.Errorf("matrix.InvertViaCholesky %dx%d: %w", nr, nc, ErrInvalidDim)
	}
	sym := mat.NewSymDense(nr, append([]float64(nil), a.fullData...))
	var chol mat.Cholesky
	if ok := chol.Factorize(sym); !ok {
		return nil, fmt.Errorf("matrix.InvertViaCholesky: %w", ErrNearSingular)
	}
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, fmt.Errorf("matrix.InvertViaCholesky: %w", ErrSingular)
	}
	out := New(nr, nr)
	for i := 0; i < nr; i++ {
		for j := 0; j < nr; j++ {
			out.Mat[i][j] = inv.At(i, j)
		}
	}
	return out, nil
}

// SVDSolve solves Lhs * X = Rhs in the least-squares sense. Rhs is
// overwritten with X and also returned. work is sized by the caller to
// rows*cols + min(rows,cols) per the kernel contract; it is not touched
// here; gonum manages its own scratch space, the parameter is kept so
// call sites stay shaped the way the rest of the estimator allocates its
// workspaces once, up front.
func SVDSolve(lhs, rhs *Dense, work []float64) (*Dense, error) {
	lr, lc := lhs.Size()
	rr, rc := rhs.Size()
	if lr != rr || lr == 0 || lc == 0 {
		return nil, fmt.Errorf("matrix.SVDSolve lhs %dx%d rhs %dx%d: %w", lr, lc, rr, rc, ErrInvalidDim)
	}
	var svd mat.SVD
	if ok := svd.Factorize(lhs.AsGonum(), mat.SVDThin); !ok {
		return nil, fmt.Errorf("matrix.SVDSolve: %w", ErrNearSingular)
	}
	// Singular values below 1e-12 of the largest are treated as zero, so
	// a rank-deficient Lhs yields the minimum-norm least-squares solution.
	rank := svd.Rank(1e-12)
	if rank == 0 {
		return nil, fmt.Errorf("matrix.SVDSolve: %w", ErrSingular)
	}
	var x mat.Dense
	svd.SolveTo(&x, rhs.AsGonum(), rank)
	xr, xc := x.Dims()
	rhs.Resize(xr, xc)
	for i := 0; i < xr; i++ {
		for j := 0; j < xc; j++ {
			rhs.Mat[i][j] = x.At(i, j)
		}
	}
	return rhs, nil
}

// NormaliseToUnitDet scales A so |det(A)| == 1, returning the scale factor
// d = |det(A)|^(1/n) that was divided out. The sign of the determinant is
// kept, so a matrix with negative determinant ends with det(A) == -1. Fails with ErrNearSingular if
// d < eps, since dividing by something that small would blow A up.
func NormaliseToUnitDet(a *Dense, eps float64) (float64, error) {
	nr, nc := a.Size()
	if nr != nc || nr == 0 {
		return 0, fmt.Errorf("matrix.NormaliseToUnitDet %dx%d: %w", nr, nc, ErrInvalidDim)
	}
	det := mat.Det(a.AsGonum())
	d := math.Pow(math.Abs(det), 1.0/float64(nr))
	if d < eps {
		return 0, fmt.Errorf("matrix.NormaliseToUnitDet: %w", ErrNearSingular)
	}
	a.Scale(1.0 / d)
	return d, nil
}

// AppendColumns appends columns [colStart, colEndIncl] of src to dst,
// allocating dst if it is currently empty (zero shape). Both matrices
// must have the same number of rows once dst is non-empty.
func AppendColumns(dst, src *Dense, colStart, colEndIncl int) (*Dense, error) {
	srcR, srcC := src.Size()
	if colStart < 0 || colEndIncl < colStart || colEndIncl >= srcC {
		return nil, fmt.Errorf("matrix.AppendColumns range [%d,%d] of %d cols: %w", colStart, colEndIncl, srcC, ErrInvalidDim)
	}
	width := colEndIncl - colStart + 1
	dstR, dstC := dst.Size()
	if dstR == 0 && dstC == 0 {
		dst.Resize(srcR, 0)
		dstR, dstC = dst.Size()
	}
	if dstR != srcR {
		return nil, fmt.Errorf("matrix.AppendColumns dst rows %d != src rows %d: %w", dstR, srcR, ErrInvalidDim)
	}
	grown := New(dstR, dstC+width)
	for i := 0; i < dstR; i++ {
		copy(grown.Mat[i], dst.Mat[i])
		copy(grown.Mat[i][dstC:], src.Mat[i][colStart:colEndIncl+1])
	}
	dst.fullData = grown.fullData
	dst.fixSlices(dstR, dstC+width)
	return dst, nil
}

// BlockDiagonal extracts the n diagonal b x b blocks of a (b*n) x (b*n)
// matrix, where b = nrow(A)/n.
func BlockDiagonal(a *Dense, n int) ([]*Dense, error) {
	nr, nc := a.Size()
	if n <= 0 || nr != nc || nr%n != 0 {
		return nil, fmt.Errorf("matrix.BlockDiagonal %dx%d into %d blocks: %w", nr, nc, n, ErrInvalidDim)
	}
	b := nr / n
	blocks := make([]*Dense, n)
	for k := 0; k < n; k++ {
		blk := New(b, b)
		for i := 0; i < b; i++ {
			for j := 0; j < b; j++ {
				blk.Mat[i][j] = a.Mat[k*b+i][k*b+j]
			}
		}
		blocks[k] = blk
	}
	return blocks, nil
}

// XMY computes the bilinear form xᵀ M y for vectors x, y and square
// matrix M.
func XMY(x []float64, m *Dense, y []float64) (float64, error) {
	nr, nc := m.Size()
	if len(x) != nr || len(y) != nc {
		return 0, fmt.Errorf("matrix.XMY: x(%d) M(%dx%d) y(%d): %w", len(x), nr, nc, len(y), ErrInvalidDim)
	}
	var total float64
	for i := 0; i < nr; i++ {
		var rowDot float64
		row := m.Mat[i]
		for j := 0; j < nc; j++ {
			rowDot += row[j] * y[j]
		}
		total += x[i] * rowDot
	}
	return total, nil
}
