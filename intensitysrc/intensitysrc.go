// Package intensitysrc is a minimal reference implementation of the
// core's two consumed external interfaces (§6): an intensity source and
// an optional matrix source. Both read a plain whitespace-separated text
// format via a memory-mapped file, following the mmap-on-read pattern
// the teacher's numseq package uses for large sequence files — the same
// idea applies here since a tile's raw intensities are the largest input
// the core ever reads.
//
// Production intensity formats (CIF, compressed per-cycle files) are an
// explicit non-goal; this package exists so the core has a real,
// testable way to get data in and results out, not to be a complete
// Illumina file-format reader.
package intensitysrc

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/andrew-torda/aybgo/ayberr"
	"github.com/andrew-torda/aybgo/matrix"
	"github.com/andrew-torda/aybgo/nuc"
	"github.com/andrew-torda/aybgo/tile"
	"github.com/edsrzf/mmap-go"
)

// ReadTile reads a tile from fname. The format is one header line
//
//	lane tile ncluster ncycle
//
// followed by one line per cluster:
//
//	x y  a1 c1 g1 t1  a2 c2 g2 t2  ...
//
// (the four channel intensities for cycle 1, then cycle 2, and so on).
// If wantCycle is positive and the file has fewer cycles,
// ayberr.InsufficientCycles is returned.
func ReadTile(fname string, wantCycle int) (*tile.Tile, error) {
	data, err := mmapRead(fname)
	if err != nil {
		return nil, fmt.Errorf("intensitysrc.ReadTile: %w", err)
	}
	return ParseTile(bytes.NewReader(data), wantCycle)
}

// ParseTile parses the same format as ReadTile from an arbitrary reader.
// ReadTile is a thin mmap-backed wrapper around this; splitting it out
// lets callers (and tests) feed it any io.Reader, including one that
// injects faults, without going through the filesystem.
func ParseTile(r io.Reader, wantCycle int) (*tile.Tile, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)

	if !sc.Scan() {
		return nil, fmt.Errorf("intensitysrc.ParseTile: empty file: %w", matrix.ErrInvalidDim)
	}
	var lane, tileID, ncluster, ncycle int
	if _, err := fmt.Sscan(sc.Text(), &lane, &tileID, &ncluster, &ncycle); err != nil {
		return nil, fmt.Errorf("intensitysrc.ParseTile: bad header %q: %w", sc.Text(), matrix.ErrInvalidDim)
	}
	if wantCycle > 0 && ncycle < wantCycle {
		return nil, fmt.Errorf("intensitysrc.ParseTile: have %d cycles, want %d: %w", ncycle, wantCycle, ayberr.InsufficientCycles)
	}

	t := &tile.Tile{Lane: uint32(lane), TileID: uint32(tileID), Clusters: make([]tile.Cluster, 0, ncluster)}
	for sc.Scan() {
		fields := bytes.Fields(sc.Bytes())
		if len(fields) != 2+nuc.NBASE*ncycle {
			return nil, fmt.Errorf("intensitysrc.ParseTile: cluster line has %d fields, want %d: %w", len(fields), 2+nuc.NBASE*ncycle, matrix.ErrInvalidDim)
		}
		x, err := strconv.ParseUint(string(fields[0]), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("intensitysrc.ParseTile: %w", err)
		}
		y, err := strconv.ParseUint(string(fields[1]), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("intensitysrc.ParseTile: %w", err)
		}
		signals := matrix.New(nuc.NBASE, ncycle)
		idx := 2
		for k := 0; k < ncycle; k++ {
			for b := 0; b < nuc.NBASE; b++ {
				v, err := strconv.ParseFloat(string(fields[idx]), 64)
				if err != nil {
					return nil, fmt.Errorf("intensitysrc.ParseTile: %w", err)
				}
				signals.Mat[b][k] = v
				idx++
			}
		}
		t.Clusters = append(t.Clusters, tile.Cluster{X: uint32(x), Y: uint32(y), Signals: signals})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("intensitysrc.ParseTile: %w", err)
	}
	if len(t.Clusters) != ncluster {
		return nil, fmt.Errorf("intensitysrc.ParseTile: header declares %d clusters, found %d: %w", ncluster, len(t.Clusters), matrix.ErrInvalidDim)
	}
	return t, nil
}

// ReadMatrix reads one named matrix (CROSSTALK, NOISE, PHASING) as
// nr x nc values in column-major whitespace-separated text, per §6.
func ReadMatrix(fname string, nr, nc int) (*matrix.Dense, error) {
	data, err := mmapRead(fname)
	if err != nil {
		return nil, fmt.Errorf("intensitysrc.ReadMatrix: %w", err)
	}
	fields := bytes.Fields(data)
	if len(fields) != nr*nc {
		return nil, fmt.Errorf("intensitysrc.ReadMatrix: got %d values, want %d: %w", len(fields), nr*nc, ayberr.MatrixDimMismatch)
	}
	out := matrix.New(nr, nc)
	idx := 0
	for c := 0; c < nc; c++ {
		for r := 0; r < nr; r++ {
			v, err := strconv.ParseFloat(string(fields[idx]), 64)
			if err != nil {
				return nil, fmt.Errorf("intensitysrc.ReadMatrix: %w", err)
			}
			out.Mat[r][c] = v
			idx++
		}
	}
	return out, nil
}

// mmapRead returns fname's full contents via a read-only memory map,
// copying them out before the map and file are released.
func mmapRead(fname string) ([]byte, error) {
	fp, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer fp.Close()

	fi, err := fp.Stat()
	if err != nil {
		return nil, err
	}
	if fi.Size() == 0 {
		return nil, nil
	}

	mm, err := mmap.Map(fp, mmap.RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer mm.Unmap()

	out := make([]byte, len(mm))
	copy(out, mm)
	return out, nil
}
