// Package callsink is a minimal reference implementation of the core's
// exposed call-sink interface (§6): given per-cluster base and quality
// calls, emit one FASTA or FASTQ record per cluster, with the ID scheme
// `cluster_{1..N}` §6 specifies (optionally suffixed with a sub-tile id
// when a tile was split into more than one datablock).
package callsink

import (
	"bufio"
	"fmt"
	"io"

	"github.com/andrew-torda/aybgo/nuc"
)

// Format selects the emitted record layout.
type Format int

const (
	FASTA Format = iota
	FASTQ
)

// Write emits one record per cluster. bases and quals are parallel
// per-cluster, per-cycle slices (bases[i][k], quals[i][k]). subtileID < 0
// means the tile was not split, and the ID omits the sub-tile suffix.
func Write(w io.Writer, format Format, bases [][]nuc.NUC, quals [][]nuc.QUAL, subtileID int) error {
	if len(bases) != len(quals) {
		return fmt.Errorf("callsink.Write: %d base rows vs %d quality rows", len(bases), len(quals))
	}
	bw := bufio.NewWriter(w)
	for i := range bases {
		id := fmt.Sprintf("cluster_%d", i+1)
		if subtileID >= 0 {
			id = fmt.Sprintf("cluster_%d_blk%d", i+1, subtileID)
		}
		seq := make([]byte, len(bases[i]))
		for k, b := range bases[i] {
			seq[k] = b.Byte()
		}

		switch format {
		case FASTA:
			fmt.Fprintf(bw, ">%s\n%s\n", id, seq)
		case FASTQ:
			qual := make([]byte, len(quals[i]))
			for k, q := range quals[i] {
				qual[k] = q.FASTQChar()
			}
			fmt.Fprintf(bw, "@%s\n%s\n+\n%s\n", id, seq, qual)
		default:
			return fmt.Errorf("callsink.Write: unknown format %d", format)
		}
	}
	return bw.Flush()
}
