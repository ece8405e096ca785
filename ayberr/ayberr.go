// Package ayberr holds the sentinel errors the AYB core surfaces, one per
// kind named in the exit-semantics table. Components wrap these with
// fmt.Errorf("...: %w", ayberr.X) so callers can test with errors.Is
// without needing a global "last error" the way the C original's err.h
// macros did.
package ayberr

import "errors"

var (
	// NonConvergent: the MPN estimator failed to make progress on a
	// sub-tile; that sub-tile is abandoned, others are unaffected.
	NonConvergent = errors.New("ayb: estimate non-convergent")

	// InsufficientCycles: the intensity source has fewer cycles than the
	// block-spec requires. Fatal for the run.
	InsufficientCycles = errors.New("ayb: insufficient cycles")

	// BadBlockSpec: the block-spec failed to parse (empty item, bad or
	// zero count, unknown letter, CONCAT before any READ). Fatal for the
	// run.
	BadBlockSpec = errors.New("ayb: bad block spec")

	// NoBlocks: a block-spec is empty or contains no READ block.
	NoBlocks = errors.New("ayb: no blocks in spec")

	// CycleMismatch: a block-spec's total cycle count disagrees with the
	// raw tile it is applied to.
	CycleMismatch = errors.New("ayb: block spec cycle count mismatch")

	// MatrixDimMismatch: an externally supplied seed matrix (M0, P0, N0)
	// does not match the sub-tile's shape. Fatal for the run.
	MatrixDimMismatch = errors.New("ayb: seed matrix dimension mismatch")

	// OutOfMemory: allocation failure for one sub-tile; that sub-tile is
	// abandoned, the driver proceeds to the next one.
	OutOfMemory = errors.New("ayb: out of memory")
)
