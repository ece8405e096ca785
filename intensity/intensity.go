// Package intensity implements the per-cluster intensity processing
// kernel (C2): out = M⁻¹ (I - N) P⁻¹.
//
// The caller supplies the pre-transposed inverses Mᵢᵀ = (M⁻¹)ᵀ and
// Pᵢᵀ = (P⁻¹)ᵀ rather than M and P directly, so the same two matrices can
// be reused across every cluster in a tile without re-inverting, and so
// the inner multiply reads them in the transposed (contiguous) order the
// original C implementation's Kronecker-identity formulation wanted.
package intensity

import (
	"fmt"

	"github.com/andrew-torda/aybgo/matrix"
	"github.com/andrew-torda/aybgo/nuc"
	"gonum.org/v1/gonum/mat"
)

// Process computes out = Mᵢᵀᵀ · (I - N) · Pᵢᵀᵀ = M⁻¹(I-N)P⁻¹, for one
// cluster's B x K intensities. out is allocated (B x K) if nil, otherwise
// resized and reused. I, Mᵢᵀ, Pᵢᵀ and N are not mutated.
func Process(i, miT, piT, n, out *matrix.Dense) (*matrix.Dense, error) {
	br, kr := i.Size()
	nr, nk := n.Size()
	if br != nr || kr != nk || br != nuc.NBASE {
		return nil, fmt.Errorf("intensity.Process: I %dx%d vs N %dx%d (want %d rows): %w", br, kr, nr, nk, nuc.NBASE, matrix.ErrInvalidDim)
	}
	mr, mc := miT.Size()
	if mr != nuc.NBASE || mc != nuc.NBASE {
		return nil, fmt.Errorf("intensity.Process: MiT %dx%d, want %dx%d: %w", mr, mc, nuc.NBASE, nuc.NBASE, matrix.ErrInvalidDim)
	}
	pr, pc := piT.Size()
	if pr != kr || pc != kr {
		return nil, fmt.Errorf("intensity.Process: PiT %dx%d, want %dx%d: %w", pr, pc, kr, kr, matrix.ErrInvalidDim)
	}

	if out == nil {
		out = matrix.New(br, kr)
	} else {
		out.Resize(br, kr)
	}

	diff := matrix.New(br, kr)
	for r := 0; r < br; r++ {
		for c := 0; c < kr; c++ {
			diff.Mat[r][c] = i.Mat[r][c] - n.Mat[r][c]
		}
	}

	tmp := mat.NewDense(br, kr, nil)
	tmp.Mul(mat.Transpose{Matrix: miT.AsGonum()}, diff.AsGonum())

	outG := out.AsGonum()
	outG.Mul(tmp, mat.Transpose{Matrix: piT.AsGonum()})

	return out, nil
}

// PreInvertTranspose is a small convenience used by the driver: given M
// (B x B) or P (K x K), return (M⁻¹)ᵀ ready for repeated use across
// clusters.
func PreInvertTranspose(m *matrix.Dense) (*matrix.Dense, error) {
	inv, err := matrix.Invert(m)
	if err != nil {
		return nil, fmt.Errorf("intensity.PreInvertTranspose: %w", err)
	}
	return matrix.TransposeInPlace(inv), nil
}
