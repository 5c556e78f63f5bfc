package metrics

import (
	"math"
	"testing"
)

func TestAdjustedRandIndex(t *testing.T) {
	tests := []struct {
		name string
		a, b []int
		min  float64
		max  float64
	}{
		// Two configurations substituting exactly the same pivots.
		{"identical_decisions", []int{0, 0, 1, 1, 2, 2}, []int{0, 0, 1, 1, 2, 2}, 0.99, 1.01},
		// Renamed labels are still the same partition.
		{"relabeled_partition", []int{0, 0, 1, 1}, []int{5, 5, 3, 3}, 0.99, 1.01},
		// Interleaved decisions carry no agreement beyond chance.
		{"chance_level", []int{0, 0, 0, 1, 1, 1}, []int{0, 1, 0, 1, 0, 1}, -1.0, 0.5},
		// Degenerate inputs score 0.
		{"length_mismatch", []int{0, 1}, []int{0}, -0.01, 0.01},
		{"too_small", []int{0}, []int{0}, -0.01, 0.01},
	}
	for _, tc := range tests {
		ari := AdjustedRandIndex(tc.a, tc.b)
		if ari < tc.min || ari > tc.max {
			t.Errorf("%s: ARI = %f, want within [%f, %f]", tc.name, ari, tc.min, tc.max)
		}
	}
}

func TestAdjustedRandIndexSingleBlock(t *testing.T) {
	// Every pivot kept in both runs: one block on each side, trivially
	// identical, and the chance-correction denominator degenerates.
	a := []int{0, 0, 0, 0}
	if ari := AdjustedRandIndex(a, a); math.Abs(ari-1.0) > 0.01 {
		t.Errorf("single-block ARI = %f, want 1.0", ari)
	}
}

func TestVariationOfInformation(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []int
		wantZero bool
	}{
		{"identical_decisions", []int{0, 0, 1, 1, 2, 2}, []int{0, 0, 1, 1, 2, 2}, true},
		{"relabeled_partition", []int{1, 1, 0, 0}, []int{7, 7, 9, 9}, true},
		{"diverging_decisions", []int{0, 0, 0, 1, 1, 1}, []int{0, 1, 0, 1, 0, 1}, false},
	}
	for _, tc := range tests {
		vi := VariationOfInformation(tc.a, tc.b)
		if tc.wantZero && vi != 0 {
			t.Errorf("%s: VI = %f, want exactly 0", tc.name, vi)
		}
		if !tc.wantZero && vi < 0.1 {
			t.Errorf("%s: VI = %f, want a clearly positive distance", tc.name, vi)
		}
	}
}

func TestMetricsAgreeOnDirection(t *testing.T) {
	// A partition compared against itself must beat the same partition
	// compared against a perturbed copy, on both metrics.
	base := []int{0, 0, 1, 1, 0, 1, 0, 1}
	perturbed := append([]int(nil), base...)
	perturbed[0], perturbed[3] = 1, 0

	if same, drifted := AdjustedRandIndex(base, base), AdjustedRandIndex(base, perturbed); same <= drifted {
		t.Errorf("ARI: self-agreement %f should exceed perturbed agreement %f", same, drifted)
	}
	if same, drifted := VariationOfInformation(base, base), VariationOfInformation(base, perturbed); same >= drifted {
		t.Errorf("VI: self-distance %f should be below perturbed distance %f", same, drifted)
	}
}
