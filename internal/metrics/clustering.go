// Package metrics compares two labelings of the same population. The
// shadow runner uses it to quantify how far an experimental driver
// configuration's substitute/keep decisions drift from production's
// over one pivot set: each pivot carries a label per configuration,
// and the two metrics below score the agreement of the resulting
// partitions.
package metrics

import "math"

// contingency is the joint count table of two labelings plus its
// marginals. Labels are arbitrary ints; only equality matters.
type contingency struct {
	n     int
	joint map[[2]int]int
	rows  map[int]int
	cols  map[int]int
}

func tabulate(a, b []int) contingency {
	ct := contingency{
		n:     len(a),
		joint: make(map[[2]int]int),
		rows:  make(map[int]int),
		cols:  make(map[int]int),
	}
	for i := range a {
		ct.joint[[2]int{a[i], b[i]}]++
		ct.rows[a[i]]++
		ct.cols[b[i]]++
	}
	return ct
}

// pairs counts the unordered pairs among c items: C(c, 2).
func pairs(c int) float64 {
	if c < 2 {
		return 0
	}
	return float64(c) * float64(c-1) / 2
}

// AdjustedRandIndex scores two labelings by chance-corrected pair
// counting: ARI = (index - expected) / (max - expected), where index is
// the number of item pairs the labelings co-cluster identically. 1 is
// perfect agreement, 0 is chance level, negative is worse than chance.
// Mismatched or sub-2 inputs score 0.
func AdjustedRandIndex(a, b []int) float64 {
	if len(a) != len(b) || len(a) < 2 {
		return 0
	}
	ct := tabulate(a, b)

	var index float64
	for _, c := range ct.joint {
		index += pairs(c)
	}
	var rowPairs, colPairs float64
	for _, c := range ct.rows {
		rowPairs += pairs(c)
	}
	for _, c := range ct.cols {
		colPairs += pairs(c)
	}

	total := pairs(ct.n)
	if total == 0 {
		return 0
	}
	expected := rowPairs * colPairs / total
	max := (rowPairs + colPairs) / 2
	if math.Abs(max-expected) < 1e-12 {
		// Both labelings are a single block: trivially identical.
		return 1
	}
	return (index - expected) / (max - expected)
}

// VariationOfInformation is the information-theoretic distance between
// two labelings: H(A|B) + H(B|A), both conditional entropies read
// straight off the contingency table. 0 means identical partitions
// (every joint cell coincides with its marginal, so every term is
// exactly zero); the distance grows as the labelings share less
// information. Lower is better. Mismatched or sub-2 inputs score 0.
func VariationOfInformation(a, b []int) float64 {
	if len(a) != len(b) || len(a) < 2 {
		return 0
	}
	ct := tabulate(a, b)
	n := float64(ct.n)

	var hAgivenB, hBgivenA float64
	for key, c := range ct.joint {
		pxy := float64(c) / n
		hAgivenB -= pxy * math.Log2(float64(c)/float64(ct.cols[key[1]]))
		hBgivenA -= pxy * math.Log2(float64(c)/float64(ct.rows[key[0]]))
	}
	return hAgivenB + hBgivenA
}
