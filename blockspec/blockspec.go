// Package blockspec parses the textual block specification that tells
// the tile engine (package tile) how to carve a raw cycle range into
// sub-tiles: which cycles to read, which to fold into the previous read,
// and which to drop.
//
// Grammar (case-insensitive): SPEC := ITEM (',' ITEM)*, ITEM := COUNT
// ('R'|'C'|'I'), COUNT a positive integer. R=Read, C=Concat, I=Ignore.
package blockspec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/andrew-torda/aybgo/ayberr"
)

// Kind identifies how a block of cycles is handled.
type Kind int

const (
	Read Kind = iota
	Concat
	Ignore
)

func (k Kind) String() string {
	switch k {
	case Read:
		return "READ"
	case Concat:
		return "CONCAT"
	case Ignore:
		return "IGNORE"
	default:
		return "?"
	}
}

// Block is one element of a parsed spec: num cycles, handled as kind.
type Block struct {
	Kind Kind
	Num  uint32
}

// Parse turns a textual spec like "3R,2C,2I,3R" into an ordered sequence
// of Blocks. It fails with ayberr.BadBlockSpec on any unrecognised token,
// a zero count, or a CONCAT with no preceding READ/CONCAT, and with
// ayberr.NoBlocks if the spec contains no blocks or no READ at all.
func Parse(spec string) ([]Block, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("blockspec: empty spec: %w", ayberr.NoBlocks)
	}

	items := strings.Split(spec, ",")
	blocks := make([]Block, 0, len(items))
	haveReadOrConcat := false
	haveRead := false

	for _, raw := range items {
		item := strings.TrimSpace(raw)
		if item == "" {
			return nil, fmt.Errorf("blockspec: empty item in %q: %w", spec, ayberr.BadBlockSpec)
		}
		letter := item[len(item)-1]
		countStr := item[:len(item)-1]
		count, err := strconv.ParseUint(countStr, 10, 32)
		if err != nil || count == 0 {
			return nil, fmt.Errorf("blockspec: bad count in item %q: %w", item, ayberr.BadBlockSpec)
		}

		var kind Kind
		switch letter {
		case 'r', 'R':
			kind = Read
		case 'c', 'C':
			kind = Concat
		case 'i', 'I':
			kind = Ignore
		default:
			return nil, fmt.Errorf("blockspec: unrecognised token %q: %w", item, ayberr.BadBlockSpec)
		}

		if kind == Concat && !haveReadOrConcat {
			return nil, fmt.Errorf("blockspec: CONCAT with no prior READ/CONCAT in %q: %w", spec, ayberr.BadBlockSpec)
		}
		if kind == Read || kind == Concat {
			haveReadOrConcat = true
		}
		if kind == Read {
			haveRead = true
		}

		blocks = append(blocks, Block{Kind: kind, Num: uint32(count)})
	}

	if !haveRead {
		return nil, fmt.Errorf("blockspec: no READ block in %q: %w", spec, ayberr.NoBlocks)
	}
	return blocks, nil
}

// TotalCycles sums Num across all blocks, READ, CONCAT and IGNORE alike —
// this is the cycle count the raw tile must supply.
func TotalCycles(blocks []Block) uint32 {
	var total uint32
	for _, b := range blocks {
		total += b.Num
	}
	return total
}
