package network

import (
	"testing"

	"github.com/rawblock/resynth-engine/internal/chain"
)

func TestExtractInsertRoundTrip(t *testing.T) {
	lib := testLibrary(t)
	src := New()
	a := src.CreatePi()
	b := src.CreatePi()

	and2 := gateID(t, lib, "and2")
	inv1 := gateID(t, lib, "inv1")
	or2 := gateID(t, lib, "or2")

	// or2(and2(inv(a), b), a)
	na, _ := CreateBoundNode(src, lib, []Signal{a}, []chain.GateID{inv1})
	g1, _ := CreateBoundNode(src, lib, []Signal{na, b}, []chain.GateID{and2})
	root, _ := CreateBoundNode(src, lib, []Signal{g1, a}, []chain.GateID{or2})
	src.CreatePo(root)

	c, err := Extract(src, []Signal{a, b}, root)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if c.NumInputs != 2 || c.NumGates() != 3 {
		t.Fatalf("extracted chain has %d inputs / %d gates, want 2/3\n%s", c.NumInputs, c.NumGates(), c)
	}

	dst := New()
	x := dst.CreatePi()
	y := dst.CreatePi()
	out, err := Insert(dst, lib, []Signal{x, y}, c)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// Chain round-trip: the inserted cone's simulation under the
	// input mapping a->x, b->y must match the source cone's.
	for i := 0; i < 4; i++ {
		srcVals := map[NodeId]bool{a.Node(): i&1 != 0, b.Node(): i&2 != 0}
		dstVals := map[NodeId]bool{x.Node(): i&1 != 0, y.Node(): i&2 != 0}
		if got, want := evalSignal(dst, lib, out, dstVals), evalSignal(src, lib, root, srcVals); got != want {
			t.Errorf("minterm %d: inserted cone = %v, source cone = %v", i, got, want)
		}
	}
}

func TestExtractFailsOnDanglingCone(t *testing.T) {
	lib := testLibrary(t)
	ntk := New()
	a := ntk.CreatePi()
	b := ntk.CreatePi()
	and2 := gateID(t, lib, "and2")
	g, _ := CreateBoundNode(ntk, lib, []Signal{a, b}, []chain.GateID{and2})

	// b is reachable but not declared as an input.
	if _, err := Extract(ntk, []Signal{a}, g); err == nil {
		t.Fatal("expected a dangling-cone error when a reached PI is not an input")
	}
}

func TestExtractHandlesConstants(t *testing.T) {
	lib := testLibrary(t)
	ntk := New()
	a := ntk.CreatePi()
	and2 := gateID(t, lib, "and2")
	one := ntk.GetConstant(true)
	g, _ := CreateBoundNode(ntk, lib, []Signal{a, one}, []chain.GateID{and2})

	c, err := Extract(ntk, []Signal{a}, g)
	if err != nil {
		t.Fatalf("Extract with a constant fanin: %v", err)
	}
	// One const gate plus the and gate.
	if c.NumGates() != 2 {
		t.Fatalf("chain has %d gates, want 2 (const + and)\n%s", c.NumGates(), c)
	}
}

func TestInsertStructuralHashingDedups(t *testing.T) {
	lib := testLibrary(t)
	and2 := gateID(t, lib, "and2")
	or2 := gateID(t, lib, "or2")

	// Two structurally identical and2 gates feeding an or2: Insert must
	// create the and2 node once.
	c := chain.New(2)
	i0 := chain.NewLiteral(0, false)
	i1 := chain.NewLiteral(1, false)
	g0 := c.AddGate([]chain.Literal{i0, i1}, chain.GateBinding(and2))
	g1 := c.AddGate([]chain.Literal{i0, i1}, chain.GateBinding(and2))
	g2 := c.AddGate([]chain.Literal{g0, g1}, chain.GateBinding(or2))
	c.SetOutputs(g2)

	ntk := New()
	x := ntk.CreatePi()
	y := ntk.CreatePi()
	before := ntk.NumNodes()
	if _, err := Insert(ntk, lib, []Signal{x, y}, c); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if created := ntk.NumNodes() - before; created != 2 {
		t.Errorf("Insert created %d nodes, want 2 (deduplicated and2 + or2)", created)
	}
}

func TestInsertRejectsComplementedLiterals(t *testing.T) {
	lib := testLibrary(t)
	inv1 := gateID(t, lib, "inv1")

	c := chain.New(1)
	g := c.AddGate([]chain.Literal{chain.NewLiteral(0, true)}, chain.GateBinding(inv1))
	c.SetOutputs(g)

	ntk := New()
	x := ntk.CreatePi()
	if _, err := Insert(ntk, lib, []Signal{x}, c); err == nil {
		t.Fatal("bound chains carry no inverters; Insert must reject a complemented literal")
	}
}

func TestExtractMultiInsertMultiPreservesBothOutputs(t *testing.T) {
	lib := testLibrary(t)
	src := New()
	a := src.CreatePi()
	b := src.CreatePi()
	cin := src.CreatePi()

	faC := gateID(t, lib, "fa_c")
	faS := gateID(t, lib, "fa_s")
	fa, err := CreateBoundNode(src, lib, []Signal{a, b, cin}, []chain.GateID{faC, faS})
	if err != nil {
		t.Fatalf("create FA: %v", err)
	}
	carry := NewSignal(fa.Node(), 0)
	sum := NewSignal(fa.Node(), 1)

	c, err := ExtractMulti(src, []Signal{a, b, cin}, []Signal{carry, sum})
	if err != nil {
		t.Fatalf("ExtractMulti: %v", err)
	}
	if len(c.Outputs) != 2 {
		t.Fatalf("chain declares %d outputs, want 2", len(c.Outputs))
	}

	dst := New()
	x := dst.CreatePi()
	y := dst.CreatePi()
	z := dst.CreatePi()
	outs, err := InsertMulti(dst, lib, []Signal{x, y, z}, c)
	if err != nil {
		t.Fatalf("InsertMulti: %v", err)
	}
	for i := 0; i < 8; i++ {
		srcVals := map[NodeId]bool{a.Node(): i&1 != 0, b.Node(): i&2 != 0, cin.Node(): i&4 != 0}
		dstVals := map[NodeId]bool{x.Node(): i&1 != 0, y.Node(): i&2 != 0, z.Node(): i&4 != 0}
		if got, want := evalSignal(dst, lib, outs[0], dstVals), evalSignal(src, lib, carry, srcVals); got != want {
			t.Errorf("carry minterm %d: %v, want %v", i, got, want)
		}
		if got, want := evalSignal(dst, lib, outs[1], dstVals), evalSignal(src, lib, sum, srcVals); got != want {
			t.Errorf("sum minterm %d: %v, want %v", i, got, want)
		}
	}
}
