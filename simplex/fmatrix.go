package simplex

// FMatrix2d is a small dense float32 matrix, just enough for the simplex
// point set: a row-major backing slice with row views into it.
type FMatrix2d struct {
	Mat [][]float32
}

// NewFMatrix2d allocates an nr x nc zeroed matrix.
func NewFMatrix2d(nr, nc int) *FMatrix2d {
	flat := make([]float32, nr*nc)
	mat := make([][]float32, nr)
	for i := range mat {
		mat[i] = flat[i*nc : (i+1)*nc]
	}
	return &FMatrix2d{Mat: mat}
}
