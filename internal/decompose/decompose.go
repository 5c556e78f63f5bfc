// Package decompose implements the LUT decomposer:
// given a cut function too wide for a database, it minimizes support
// using don't-cares, then attempts a 2-decomposition to split the
// function into a sequence of database-sized specs.
package decompose

import (
	"fmt"

	"github.com/rawblock/resynth-engine/internal/network"
	"github.com/rawblock/resynth-engine/internal/ttable"
)

// Spec is one emitted sub-function, sized to fit a database.
type Spec struct {
	Inputs []network.Signal
	Sim    ttable.Ternary
}

// minimizeSupport drops any leaf/time the ternary function doesn't
// depend on, comparing the two cofactors of each variable only where
// both are cared about (dependsOnCareAware) so DC bits widen what counts
// as "doesn't depend on".
func minimizeSupport(f ttable.Ternary, leaves []network.Signal, times []float64) (ttable.Ternary, []network.Signal, []float64) {
	n := f.Bits.NumVars()
	keep := make([]int, 0, n)
	for v := 0; v < n; v++ {
		if dependsOnCareAware(f, v) {
			keep = append(keep, v)
		}
	}
	if len(keep) == n {
		return f, leaves, times
	}
	newLeaves := make([]network.Signal, len(keep))
	newTimes := make([]float64, len(keep))
	for i, v := range keep {
		newLeaves[i] = leaves[v]
		newTimes[i] = times[v]
	}
	return restrict(f, keep), newLeaves, newTimes
}

// dependsOnCareAware reports whether f genuinely depends on v once
// don't-cares are taken into account: both cofactors, restricted to
// minterms cared about in both, must disagree somewhere.
func dependsOnCareAware(f ttable.Ternary, v int) bool {
	b0, c0 := ttable.Cofactor0(f.Bits, v), ttable.Cofactor0(f.Care, v)
	b1, c1 := ttable.Cofactor1(f.Bits, v), ttable.Cofactor1(f.Care, v)
	shared := ttable.And(c0, c1)
	diff := ttable.Xor(b0, b1)
	return !ttable.Equal(ttable.And(diff, shared), ttable.Const(f.Bits.NumVars(), false))
}

// restrict projects f down to the variables in keep, in order. Each
// dropped variable is existentially abstracted: the projected minterm is
// cared wherever either branch was, and takes its value from whichever
// branch cares (dependsOnCareAware has already established the branches
// agree wherever both care). The kept variables are then permuted to the
// front and the table shrunk to its new width.
func restrict(f ttable.Ternary, keep []int) ttable.Ternary {
	n := f.Bits.NumVars()
	used := make([]bool, n)
	for _, v := range keep {
		used[v] = true
	}
	for v := 0; v < n; v++ {
		if used[v] {
			continue
		}
		b0, c0 := ttable.Cofactor0(f.Bits, v), ttable.Cofactor0(f.Care, v)
		b1, c1 := ttable.Cofactor1(f.Bits, v), ttable.Cofactor1(f.Care, v)
		bits := ttable.Or(ttable.And(b0, c0), ttable.And(b1, ttable.And(c1, ttable.Not(c0))))
		f = ttable.Ternary{Bits: bits, Care: ttable.Or(c0, c1)}
	}
	perm := make([]int, n)
	for i, v := range keep {
		perm[v] = i
	}
	next := len(keep)
	for v := 0; v < n; v++ {
		if !used[v] {
			perm[v] = next
			next++
		}
	}
	return ttable.Ternary{
		Bits: ttable.ShrinkTo(ttable.Permute(f.Bits, perm), len(keep)),
		Care: ttable.ShrinkTo(ttable.Permute(f.Care, perm), len(keep)),
	}
}

// Decompose splits f over leaves/times into a
// sequence of specs each with support ≤ maxNumVars. Fails (returns an
// error) when no 2-decomposition can reduce a too-wide residual.
func Decompose(f ttable.Ternary, leaves []network.Signal, times []float64, maxNumVars int) ([]Spec, error) {
	if f.Bits.NumVars() != len(leaves) || len(leaves) != len(times) {
		return nil, fmt.Errorf("decompose: function is over %d variables but %d leaves / %d times were supplied", f.Bits.NumVars(), len(leaves), len(times))
	}
	f, leaves, times = minimizeSupport(f, leaves, times)
	support := len(leaves)
	if support <= maxNumVars {
		return []Spec{{Inputs: leaves, Sim: f}}, nil
	}

	top, residual, residualLeaves, residualTimes, ok := try2Decomposition(f, leaves, times)
	if !ok {
		return nil, fmt.Errorf("decompose: support %d exceeds max_num_vars %d and no 2-decomposition was found", support, maxNumVars)
	}
	tail, err := Decompose(residual, residualLeaves, residualTimes, maxNumVars)
	if err != nil {
		return nil, err
	}
	return append([]Spec{top}, tail...), nil
}

// Placeholder marks the position, in a residual spec's Inputs, of the
// signal the decomposer's prior emitted spec will produce once written —
// the network hasn't created that node yet when Decompose runs. The
// resynth driver replaces it with the actual written signal before
// matching/writing the residual spec. No real node ever has a negative
// NodeId, so this is unambiguous.
var Placeholder = network.NewSignal(-1, 0)

// try2Decomposition looks for a variable pair (i,j) whose four joint
// cofactors collapse to the XOR-bonding pattern — f(i,j)=f(!i,!j) and
// f(!i,j)=f(i,!j) on every minterm both cofactors care about — meaning f
// can be rewritten as g(other vars, i XOR j). Among
// eligible pairs it picks the one with the highest combined arrival time
// (the latest-arriving variables are the preferred candidates).
func try2Decomposition(f ttable.Ternary, leaves []network.Signal, times []float64) (top Spec, residual ttable.Ternary, residualLeaves []network.Signal, residualTimes []float64, ok bool) {
	n := f.Bits.NumVars()
	bestI, bestJ, bestWeight := -1, -1, -1.0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if !xorBondable(f, i, j) {
				continue
			}
			w := times[i] + times[j]
			if bestI == -1 || w > bestWeight {
				bestI, bestJ, bestWeight = i, j, w
			}
		}
	}
	if bestI == -1 {
		return Spec{}, ttable.Ternary{}, nil, nil, false
	}

	top = Spec{
		Inputs: []network.Signal{leaves[bestI], leaves[bestJ]},
		Sim:    ttable.FromTable(ttable.Xor(ttable.Proj(2, 0), ttable.Proj(2, 1))),
	}

	// Fixing i=0 and reading j as the new bonded variable is valid exactly
	// because the bonding condition made f invariant under flipping both
	// i and j together.
	keep := make([]int, 0, n-1)
	for v := 0; v < n; v++ {
		if v != bestI {
			keep = append(keep, v)
		}
	}
	residual = restrictFixing(f, bestI, false, keep)
	residualLeaves = make([]network.Signal, len(keep))
	residualTimes = make([]float64, len(keep))
	for i, v := range keep {
		if v == bestJ {
			residualLeaves[i] = Placeholder
		} else {
			residualLeaves[i] = leaves[v]
		}
		residualTimes[i] = times[v]
	}
	return top, residual, residualLeaves, residualTimes, true
}

// restrictFixing cofactors variable `fix` to `value`, then reindexes the
// remaining `keep` variables (which must exclude fix) to the front in
// order and shrinks the table to len(keep) variables.
func restrictFixing(f ttable.Ternary, fix int, value bool, keep []int) ttable.Ternary {
	var bits, care ttable.Table
	if value {
		bits, care = ttable.Cofactor1(f.Bits, fix), ttable.Cofactor1(f.Care, fix)
	} else {
		bits, care = ttable.Cofactor0(f.Bits, fix), ttable.Cofactor0(f.Care, fix)
	}
	n := f.Bits.NumVars()
	perm := make([]int, n)
	used := make([]bool, n)
	for i, v := range keep {
		perm[v] = i
		used[v] = true
	}
	next := len(keep)
	perm[fix] = next
	used[fix] = true
	next++
	for v := 0; v < n; v++ {
		if !used[v] {
			perm[v] = next
			next++
		}
	}
	return ttable.Ternary{
		Bits: ttable.ShrinkTo(ttable.Permute(bits, perm), len(keep)),
		Care: ttable.ShrinkTo(ttable.Permute(care, perm), len(keep)),
	}
}

// xorBondable reports whether i and j can be bonded into a single XOR
// input: f(i=0,j=0) agrees with f(i=1,j=1), and f(i=0,j=1) agrees with
// f(i=1,j=0), wherever both sides' don't-care masks allow comparison.
func xorBondable(f ttable.Ternary, i, j int) bool {
	b00 := doubleCofactor(f.Bits, i, j, false, false)
	b01 := doubleCofactor(f.Bits, i, j, false, true)
	b10 := doubleCofactor(f.Bits, i, j, true, false)
	b11 := doubleCofactor(f.Bits, i, j, true, true)
	c00 := doubleCofactor(f.Care, i, j, false, false)
	c01 := doubleCofactor(f.Care, i, j, false, true)
	c10 := doubleCofactor(f.Care, i, j, true, false)
	c11 := doubleCofactor(f.Care, i, j, true, true)
	zero := ttable.Const(f.Bits.NumVars(), false)
	agree := func(a, b, ca, cb ttable.Table) bool {
		shared := ttable.And(ca, cb)
		return ttable.Equal(ttable.And(ttable.Xor(a, b), shared), zero)
	}
	return agree(b00, b11, c00, c11) && agree(b01, b10, c01, c10)
}

func doubleCofactor(t ttable.Table, i, j int, vi, vj bool) ttable.Table {
	if vi {
		t = ttable.Cofactor1(t, i)
	} else {
		t = ttable.Cofactor0(t, i)
	}
	if vj {
		t = ttable.Cofactor1(t, j)
	} else {
		t = ttable.Cofactor0(t, j)
	}
	return t
}
