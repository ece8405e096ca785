// aybcall reads a tile of cluster intensities, fits the AYB crosstalk /
// phasing / noise model, and writes base and quality calls.
package main

import (
	"flag"
	"fmt"
	"os"
	"path"

	"github.com/andrew-torda/aybgo/ayb"
	"github.com/andrew-torda/aybgo/blockspec"
	"github.com/andrew-torda/aybgo/callsink"
	"github.com/andrew-torda/aybgo/intensitysrc"
	"github.com/andrew-torda/aybgo/matrix"
	"github.com/andrew-torda/aybgo/mpn"
	"github.com/andrew-torda/aybgo/nuc"
	"github.com/andrew-torda/aybgo/tile"
)

const (
	exitSuccess = 0
	exitFailure = iota
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage:", path.Base(os.Args[0]), "[flags] infile outfile")
	flag.PrintDefaults()
}

// parseOutform maps the -outform flag onto a callsink.Format.
func parseOutform(s string) (callsink.Format, error) {
	switch s {
	case "fasta":
		return callsink.FASTA, nil
	case "fastq":
		return callsink.FASTQ, nil
	default:
		return 0, fmt.Errorf("unknown -outform %q, want fasta or fastq", s)
	}
}

// parseWeightModel maps the -weights flag onto an mpn.WeightModel.
func parseWeightModel(s string) (mpn.WeightModel, error) {
	switch s {
	case "cauchy":
		return mpn.CauchyWeights, nil
	case "weibull":
		return mpn.WeibullWeights, nil
	default:
		return 0, fmt.Errorf("unknown -weights %q, want cauchy or weibull", s)
	}
}

func mymain() int {
	niter := flag.Int("niter", ayb.DefaultConfig().NIter, "number of estimate/call iterations")
	mu := flag.Float64("mu", ayb.DefaultConfig().Mu, "quality formula tuning parameter")
	blockSpec := flag.String("blocks", "", "datablock spec, e.g. 3R,2C,2I,3R (default: one READ block covering every cycle)")
	crosstalkFile := flag.String("crosstalk", "", "optional seed crosstalk matrix file (column-major text, NBASE x NBASE)")
	noiseFile := flag.String("noise", "", "optional seed noise matrix file (column-major text, NBASE x ncycle)")
	phasingFile := flag.String("phasing", "", "optional seed phasing matrix file (column-major text, ncycle x ncycle)")
	outform := flag.String("outform", "fasta", "output record format: fasta or fastq")
	weights := flag.String("weights", ayb.DefaultConfig().WeightModel.String(), "cluster weighting rule: cauchy or weibull")
	flag.Parse()

	if len(flag.Args()) != 2 {
		fmt.Fprintln(os.Stderr, "got", len(flag.Args()), "args, expected 2")
		usage()
		return exitFailure
	}
	infile := flag.Args()[0]
	outfile := flag.Args()[1]

	format, err := parseOutform(*outform)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		return exitFailure
	}
	weightModel, err := parseWeightModel(*weights)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		return exitFailure
	}

	raw, err := intensitysrc.ReadTile(infile, 0)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		return exitFailure
	}

	spec := *blockSpec
	if spec == "" {
		spec = fmt.Sprintf("%dR", raw.NCycle())
	}
	blocks, err := blockspec.Parse(spec)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal: bad block spec:", err)
		return exitFailure
	}

	subtiles, err := tile.Split(raw, blocks)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		return exitFailure
	}

	seedM := ayb.DefaultCrosstalk()
	if *crosstalkFile != "" {
		m, err := intensitysrc.ReadMatrix(*crosstalkFile, nuc.NBASE, nuc.NBASE)
		if err != nil {
			fmt.Fprintln(os.Stderr, "fatal:", err)
			return exitFailure
		}
		seedM = m
	}

	out, err := os.Create(outfile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		return exitFailure
	}
	defer out.Close()

	cfg := ayb.Config{NIter: *niter, Mu: *mu, WeightModel: weightModel}

	for blk, sub := range subtiles {
		var seedP, seedN *matrix.Dense
		if *phasingFile != "" {
			seedP, err = intensitysrc.ReadMatrix(*phasingFile, sub.NCycle(), sub.NCycle())
			if err != nil {
				// A supplied seed's shape disagreeing with a sub-tile is
				// fatal for the whole run (§7 MATRIX_DIM_MISMATCH), not
				// just this sub-tile.
				fmt.Fprintln(os.Stderr, "fatal: -phasing:", err)
				return exitFailure
			}
		}
		if *noiseFile != "" {
			seedN, err = intensitysrc.ReadMatrix(*noiseFile, nuc.NBASE, sub.NCycle())
			if err != nil {
				fmt.Fprintln(os.Stderr, "fatal: -noise:", err)
				return exitFailure
			}
		}

		model, err := ayb.New(sub, seedM, seedP, seedN)
		if err != nil {
			fmt.Fprintln(os.Stderr, "fatal: datablock", blk+1, "init failed:", err)
			return exitFailure
		}
		if err := model.Run(cfg); err != nil {
			// Estimation failure is fatal only for this sub-tile (§7); the
			// model still holds its last successfully fitted calls, which
			// are emitted below rather than dropped.
			fmt.Fprintln(os.Stderr, "datablock", blk+1, "estimate failed:", err)
		}

		subtileID := -1
		if len(subtiles) > 1 {
			subtileID = blk + 1
		}
		if err := callsink.Write(out, format, model.Bases, model.Quals, subtileID); err != nil {
			fmt.Fprintln(os.Stderr, "fatal: writing datablock", blk+1, ":", err)
			return exitFailure
		}
	}

	return exitSuccess
}

func main() {
	os.Exit(mymain())
}
