package products

import "testing"

func TestClassifyBands(t *testing.T) {
	tests := []struct {
		name   string
		ranges []qtyRange
		want   bandVerdict
	}{
		{"empty set", nil, bandOK},
		{"single band", []qtyRange{{1, 10}}, bandOK},
		{"single unit band", []qtyRange{{5, 5}}, bandOK},
		{"adjacent bands", []qtyRange{{1, 10}, {11, 20}}, bandOK},
		{"unordered but disjoint", []qtyRange{{11, 20}, {1, 10}}, bandOK},
		{"inverted range", []qtyRange{{10, 1}}, bandInvalidRange},
		{"inverted beats overlap", []qtyRange{{1, 10}, {20, 5}}, bandInvalidRange},
		{"exact duplicate", []qtyRange{{1, 10}, {1, 10}}, bandDuplicate},
		{"shared boundary overlaps", []qtyRange{{1, 10}, {10, 20}}, bandOverlap},
		{"containment overlaps", []qtyRange{{1, 100}, {5, 10}}, bandOverlap},
		{"partial overlap", []qtyRange{{1, 10}, {5, 15}}, bandOverlap},
		{"duplicate checked before overlap in pair", []qtyRange{{3, 7}, {3, 7}}, bandDuplicate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyBands(tt.ranges); got != tt.want {
				t.Fatalf("classifyBands(%v) = %d, want %d", tt.ranges, got, tt.want)
			}
		})
	}
}

func TestClassifyBandsShortCircuitsOnFirstViolation(t *testing.T) {
	// The duplicate pair appears before the overlapping pair; the duplicate
	// verdict must win even though an overlap also exists later in the set.
	ranges := []qtyRange{{1, 5}, {1, 5}, {4, 9}}
	if got := classifyBands(ranges); got != bandDuplicate {
		t.Fatalf("expected duplicate verdict, got %d", got)
	}
}

func TestEnsureBandRangesErrorCodes(t *testing.T) {
	if err := ensureBandRanges([]qtyRange{{1, 10}, {11, 20}}); err != nil {
		t.Fatalf("expected valid set, got %v", err)
	}

	err := ensureBandRanges([]qtyRange{{9, 2}})
	if err == nil {
		t.Fatal("expected error for inverted range")
	}
	if code := codeOf(t, err); code != "VALIDATION_ERROR" {
		t.Fatalf("inverted range should be a validation error, got %s", code)
	}

	err = ensureBandRanges([]qtyRange{{1, 10}, {5, 12}})
	if err == nil {
		t.Fatal("expected error for overlap")
	}
	if code := codeOf(t, err); code != "CONFLICT" {
		t.Fatalf("overlap should be a conflict, got %s", code)
	}
}
