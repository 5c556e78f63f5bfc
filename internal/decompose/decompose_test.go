package decompose

import (
	"testing"

	"github.com/rawblock/resynth-engine/internal/network"
	"github.com/rawblock/resynth-engine/internal/ttable"
)

func leaves(n int) []network.Signal {
	out := make([]network.Signal, n)
	for i := range out {
		out[i] = network.NewSignal(network.NodeId(i+10), 0)
	}
	return out
}

func fullCare(t ttable.Table) ttable.Ternary { return ttable.FromTable(t) }

func xor3() ttable.Table {
	return ttable.Xor(ttable.Xor(ttable.Proj(3, 0), ttable.Proj(3, 1)), ttable.Proj(3, 2))
}

func maj3() ttable.Table {
	return ttable.Or(
		ttable.Or(
			ttable.And(ttable.Proj(3, 0), ttable.Proj(3, 1)),
			ttable.And(ttable.Proj(3, 0), ttable.Proj(3, 2))),
		ttable.And(ttable.Proj(3, 1), ttable.Proj(3, 2)))
}

func TestDecomposeEmitsSingleSpecWhenSmallEnough(t *testing.T) {
	f := fullCare(ttable.And(ttable.Proj(2, 0), ttable.Proj(2, 1)))
	ls := leaves(2)
	specs, err := Decompose(f, ls, []float64{0, 0}, 4)
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	if len(specs) != 1 {
		t.Fatalf("got %d specs, want 1", len(specs))
	}
	if len(specs[0].Inputs) != 2 || specs[0].Inputs[0] != ls[0] || specs[0].Inputs[1] != ls[1] {
		t.Errorf("spec inputs = %v, want the original leaves", specs[0].Inputs)
	}
	if !ttable.Equal(specs[0].Sim.Bits, f.Bits) {
		t.Errorf("spec function = %s, want %s", specs[0].Sim.Bits, f.Bits)
	}
}

func TestDecomposeMinimizesSupport(t *testing.T) {
	// a AND b declared over 3 variables: c drops out, and the spec's
	// function shrinks to a genuine 2-variable table.
	f := fullCare(ttable.And(ttable.Proj(3, 0), ttable.Proj(3, 1)))
	ls := leaves(3)
	specs, err := Decompose(f, ls, []float64{1, 2, 3}, 4)
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	if len(specs) != 1 {
		t.Fatalf("got %d specs, want 1", len(specs))
	}
	s := specs[0]
	if len(s.Inputs) != 2 || s.Inputs[0] != ls[0] || s.Inputs[1] != ls[1] {
		t.Errorf("support minimization kept %v, want the first two leaves", s.Inputs)
	}
	if s.Sim.Bits.NumVars() != 2 {
		t.Fatalf("minimized spec has %d vars, want 2", s.Sim.Bits.NumVars())
	}
	want := ttable.And(ttable.Proj(2, 0), ttable.Proj(2, 1))
	if !ttable.Equal(s.Sim.Bits, want) {
		t.Errorf("minimized function = %s, want %s", s.Sim.Bits, want)
	}
}

func TestDecomposeUsesDontCaresToDropVariables(t *testing.T) {
	// f = a AND b on the cared half c=0, unconstrained on c=1: with DCs
	// honored, c is droppable even though the bits table depends on it.
	bits := ttable.Or(
		ttable.And(ttable.And(ttable.Proj(3, 0), ttable.Proj(3, 1)), ttable.Not(ttable.Proj(3, 2))),
		ttable.Proj(3, 2))
	care := ttable.Not(ttable.Proj(3, 2))
	f := ttable.Ternary{Bits: bits, Care: care}
	specs, err := Decompose(f, leaves(3), []float64{0, 0, 0}, 4)
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	if len(specs) != 1 || len(specs[0].Inputs) != 2 {
		t.Fatalf("specs=%d inputs=%v, want one spec over {a,b}", len(specs), specs[0].Inputs)
	}
	want := ttable.And(ttable.Proj(2, 0), ttable.Proj(2, 1))
	if !specs[0].Sim.Dominates(want) {
		t.Errorf("AND should realize the care-masked projection, got %s / care %s", specs[0].Sim.Bits, specs[0].Sim.Care)
	}
}

func TestDecomposeSplitsParityByXorBonding(t *testing.T) {
	ls := leaves(3)
	// Support 3 exceeds max_num_vars 2; parity admits an XOR bonding of
	// any pair, and the latest-arriving pair {a, c} must be chosen.
	specs, err := Decompose(fullCare(xor3()), ls, []float64{4, 0, 5}, 2)
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("got %d specs, want 2", len(specs))
	}
	top := specs[0]
	if len(top.Inputs) != 2 || top.Inputs[0] != ls[0] || top.Inputs[1] != ls[2] {
		t.Errorf("top spec inputs = %v, want {a, c} (latest arrivals)", top.Inputs)
	}
	xor2 := ttable.Xor(ttable.Proj(2, 0), ttable.Proj(2, 1))
	if !ttable.Equal(top.Sim.Bits, xor2) {
		t.Errorf("top function = %s, want XOR %s", top.Sim.Bits, xor2)
	}
	// The residual consumes b and the top spec's result.
	res := specs[1]
	if len(res.Inputs) != 2 {
		t.Fatalf("residual inputs = %v, want 2", res.Inputs)
	}
	hasPlaceholder, hasB := false, false
	for _, in := range res.Inputs {
		if in == Placeholder {
			hasPlaceholder = true
		}
		if in == ls[1] {
			hasB = true
		}
	}
	if !hasPlaceholder || !hasB {
		t.Errorf("residual inputs = %v, want {b, Placeholder}", res.Inputs)
	}
	if !ttable.Equal(res.Sim.Bits, xor2) {
		t.Errorf("residual function = %s, want XOR %s", res.Sim.Bits, xor2)
	}
}

func TestDecomposeFailsWhenNoBondingExists(t *testing.T) {
	// Majority has no XOR-bondable pair; with max_num_vars 2 the cut must
	// be rejected rather than silently mis-decomposed.
	if _, err := Decompose(fullCare(maj3()), leaves(3), []float64{0, 0, 0}, 2); err == nil {
		t.Fatal("expected a decomposition failure for majority at max 2 vars")
	}
}

func TestDecomposeRejectsLeafCountMismatch(t *testing.T) {
	f := fullCare(ttable.And(ttable.Proj(3, 0), ttable.Proj(3, 1)))
	if _, err := Decompose(f, leaves(2), []float64{0, 0}, 4); err == nil {
		t.Fatal("expected an error when leaves do not cover the function's variables")
	}
}
