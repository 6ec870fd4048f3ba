package products

import (
	"fmt"

	pkgerrors "github.com/dcastella/fabrica-backend/pkg/errors"
)

type bandVerdict int

const (
	bandOK bandVerdict = iota
	bandInvalidRange
	bandDuplicate
	bandOverlap
)

type qtyRange struct {
	Min int
	Max int
}

// classifyBands validates a proposed set of discount-band ranges. Ranges are
// inclusive on both ends. Checks run in strict precedence: every range is
// first checked for min > max, then pairs are checked for exact duplicates
// and overlap. The first violation wins.
func classifyBands(ranges []qtyRange) bandVerdict {
	for _, r := range ranges {
		if r.Min > r.Max {
			return bandInvalidRange
		}
	}

	for i := 0; i < len(ranges); i++ {
		for j := i + 1; j < len(ranges); j++ {
			a, b := ranges[i], ranges[j]
			if a.Min == b.Min && a.Max == b.Max {
				return bandDuplicate
			}
			if a.Min <= b.Max && b.Min <= a.Max {
				return bandOverlap
			}
		}
	}

	return bandOK
}

// ensureBandRanges maps a classification onto the error taxonomy. A
// degenerate range is a caller mistake; duplicates and overlaps are conflicts
// with the rest of the set.
func ensureBandRanges(ranges []qtyRange) error {
	switch classifyBands(ranges) {
	case bandInvalidRange:
		return pkgerrors.New(pkgerrors.CodeValidation, "discount band range is inverted")
	case bandDuplicate:
		return pkgerrors.New(pkgerrors.CodeConflict, "duplicate discount band range")
	case bandOverlap:
		return pkgerrors.New(pkgerrors.CodeConflict, "overlapping discount band ranges")
	default:
		return nil
	}
}

func (r qtyRange) String() string {
	return fmt.Sprintf("[%d,%d]", r.Min, r.Max)
}
