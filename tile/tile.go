// Package tile holds the flowcell tile / cluster data model (§3) and the
// datablock engine (C7) that splits a raw multi-cycle tile into the
// sub-tiles a block-spec describes.
package tile

import (
	"fmt"

	"github.com/andrew-torda/aybgo/ayberr"
	"github.com/andrew-torda/aybgo/blockspec"
	"github.com/andrew-torda/aybgo/matrix"
)

// Cluster is one spot on the flowcell: its flowcell coordinates and its
// B x K (channel x cycle) intensity matrix.
type Cluster struct {
	X, Y    uint32
	Signals *matrix.Dense
}

// Tile is an ordered sequence of clusters sharing a lane/tile identity.
// Every cluster in a tile must have the same cycle count.
type Tile struct {
	Lane, TileID uint32
	Clusters     []Cluster
}

// NCluster returns the number of clusters in the tile.
func (t *Tile) NCluster() int { return len(t.Clusters) }

// NCycle returns the cycle count shared by every cluster, or 0 for an
// empty tile.
func (t *Tile) NCycle() int {
	if len(t.Clusters) == 0 {
		return 0
	}
	_, k := t.Clusters[0].Signals.Size()
	return k
}

// Split carves a raw tile into a sequence of sub-tiles per the block
// spec: IGNORE blocks drop cycles, READ blocks start a new sub-tile,
// CONCAT blocks extend the current one. Every cluster's (lane, tile, x,
// y) identity is preserved into each sub-tile it contributes to.
//
// Fails with ayberr.CycleMismatch if the spec's total cycle count
// disagrees with raw's, and ayberr.BadBlockSpec if a CONCAT has no
// current sub-tile (should not happen for specs returned by
// blockspec.Parse, which already rejects that shape, but Split re-checks
// since it may be called with a hand-built slice of blocks).
func Split(raw *Tile, blocks []blockspec.Block) ([]*Tile, error) {
	total := raw.NCycle()
	specTotal := int(blockspec.TotalCycles(blocks))
	if specTotal != total {
		return nil, fmt.Errorf("tile.Split: spec wants %d cycles, tile has %d: %w", specTotal, total, ayberr.CycleMismatch)
	}

	var subtiles []*Tile
	var cur *Tile
	colCursor := 0

	for _, blk := range blocks {
		start := colCursor
		end := colCursor + int(blk.Num) - 1
		colCursor += int(blk.Num)

		if blk.Kind == blockspec.Ignore {
			continue
		}

		if blk.Kind == blockspec.Read {
			sub := &Tile{
				Lane:     raw.Lane,
				TileID:   raw.TileID,
				Clusters: make([]Cluster, len(raw.Clusters)),
			}
			for i, c := range raw.Clusters {
				sub.Clusters[i] = Cluster{X: c.X, Y: c.Y, Signals: &matrix.Dense{}}
			}
			subtiles = append(subtiles, sub)
			cur = sub
		} else if cur == nil { // Concat with nothing open
			return nil, fmt.Errorf("tile.Split: CONCAT before any READ: %w", ayberr.BadBlockSpec)
		}

		for i := range raw.Clusters {
			if _, err := matrix.AppendColumns(cur.Clusters[i].Signals, raw.Clusters[i].Signals, start, end); err != nil {
				return nil, fmt.Errorf("tile.Split: appending cycles [%d,%d] for cluster %d: %w", start, end, i, err)
			}
		}
	}

	return subtiles, nil
}
