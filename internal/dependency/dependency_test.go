package dependency

import (
	"testing"

	"github.com/rawblock/resynth-engine/internal/chain"
	"github.com/rawblock/resynth-engine/internal/library"
	"github.com/rawblock/resynth-engine/internal/network"
	"github.com/rawblock/resynth-engine/internal/ttable"
	"github.com/rawblock/resynth-engine/internal/window"
)

func pin() library.Pin {
	return library.Pin{RiseDelay: 1, FallDelay: 1, RiseCapacitance: 1, FallCapacitance: 1}
}

func testLibrary(t *testing.T) *library.Library {
	t.Helper()
	andFn := ttable.And(ttable.Proj(2, 0), ttable.Proj(2, 1))
	orFn := ttable.Or(ttable.Proj(2, 0), ttable.Proj(2, 1))
	invFn := ttable.Not(ttable.Proj(1, 0))
	lib, err := library.New([]library.Gate{
		{Name: "and2", Area: 2, OutputFn: andFn, Pins: []library.Pin{pin(), pin()}, InnerChain: library.Synthesize(2, andFn)},
		{Name: "or2", Area: 2, OutputFn: orFn, Pins: []library.Pin{pin(), pin()}, InnerChain: library.Synthesize(2, orFn)},
		{Name: "inv1", Area: 1, OutputFn: invFn, Pins: []library.Pin{pin()}, InnerChain: library.Synthesize(1, invFn)},
	})
	if err != nil {
		t.Fatalf("library.New: %v", err)
	}
	return lib
}

func gid(t *testing.T, lib *library.Library, name string) chain.GateID {
	t.Helper()
	g, ok := lib.Lookup(name)
	if !ok {
		t.Fatalf("no gate %q", name)
	}
	return g.ID
}

func buildWindow(t *testing.T, ntk *network.Network, lib *library.Library, pivot network.NodeId, odc int) (window.Window, window.Simulation) {
	t.Helper()
	m := window.NewManager(ntk)
	w := m.Build(pivot, window.Params{ODCLevels: odc, MaxNumLeaves: 8, MaxNumDivisors: 50})
	if !w.Valid {
		t.Fatalf("window invalid: %+v", w)
	}
	sim, err := window.Simulate(ntk, lib, w)
	if err != nil {
		t.Fatalf("window.Simulate: %v", err)
	}
	return w, sim
}

func TestFindRewireKeepsGateBinding(t *testing.T) {
	lib := testLibrary(t)
	ntk := network.New()
	a := ntk.CreatePi()
	b := ntk.CreatePi()
	and2 := gid(t, lib, "and2")
	g, _ := network.CreateBoundNode(ntk, lib, []network.Signal{b, a}, []chain.GateID{and2})
	ntk.CreatePo(g)

	w, sim := buildWindow(t, ntk, lib, g.Node(), 0)
	f := New(ntk, lib, w, sim)
	cuts := f.FindRewire(Limits{MaxCutsSize: 4, MaxCuts: 16})

	// AND is symmetric: both fanin orders realize the pivot's function.
	if len(cuts) != 2 {
		t.Fatalf("got %d rewire cuts, want 2 (both orderings)", len(cuts))
	}
	for _, c := range cuts {
		if c.Kind != Rewire {
			t.Errorf("cut kind = %v, want rewire", c.Kind)
		}
		if c.GateHint != and2 {
			t.Errorf("rewire cut must keep the pivot's binding, got gate %d", c.GateHint)
		}
		if len(c.Leaves) != 2 {
			t.Errorf("rewire leaves = %v, want 2 signals", c.Leaves)
		}
	}
}

func TestFindRewireRespectsCutBudget(t *testing.T) {
	lib := testLibrary(t)
	ntk := network.New()
	a := ntk.CreatePi()
	b := ntk.CreatePi()
	and2 := gid(t, lib, "and2")
	g, _ := network.CreateBoundNode(ntk, lib, []network.Signal{a, b}, []chain.GateID{and2})
	ntk.CreatePo(g)

	w, sim := buildWindow(t, ntk, lib, g.Node(), 0)
	f := New(ntk, lib, w, sim)
	cuts := f.FindRewire(Limits{MaxCutsSize: 4, MaxCuts: 1})
	if len(cuts) != 1 {
		t.Fatalf("got %d cuts, want exactly the budget of 1", len(cuts))
	}
}

func TestFindStructuralProducesLeafCut(t *testing.T) {
	lib := testLibrary(t)
	ntk := network.New()
	a := ntk.CreatePi()
	b := ntk.CreatePi()
	and2 := gid(t, lib, "and2")
	or2 := gid(t, lib, "or2")
	inv1 := gid(t, lib, "inv1")

	// ((NOT a) AND b) OR (NOT (a AND b)) == NAND(a,b).
	na, _ := network.CreateBoundNode(ntk, lib, []network.Signal{a}, []chain.GateID{inv1})
	t1, _ := network.CreateBoundNode(ntk, lib, []network.Signal{na, b}, []chain.GateID{and2})
	t2, _ := network.CreateBoundNode(ntk, lib, []network.Signal{a, b}, []chain.GateID{and2})
	nt2, _ := network.CreateBoundNode(ntk, lib, []network.Signal{t2}, []chain.GateID{inv1})
	root, _ := network.CreateBoundNode(ntk, lib, []network.Signal{t1, nt2}, []chain.GateID{or2})
	ntk.CreatePo(root)

	w, sim := buildWindow(t, ntk, lib, root.Node(), 0)
	f := New(ntk, lib, w, sim)
	cuts := f.FindStructural(Limits{MaxCutsSize: 4, MaxCuts: 32})

	var found *Cut
	for i := range cuts {
		if len(cuts[i].Leaves) == 2 {
			found = &cuts[i]
		}
	}
	if found == nil {
		t.Fatalf("no {a,b} structural cut among %d cuts", len(cuts))
	}
	// Every structural leaf set must be drawn from the divisor pool.
	divs := make(map[network.Signal]bool)
	for _, d := range w.Divisors {
		divs[d] = true
	}
	for _, c := range cuts {
		for _, l := range c.Leaves {
			if !divs[l] {
				t.Errorf("cut leaf %v is not a divisor", l)
			}
		}
	}
	// The 2-leaf cut's function is NAND over its own leaves, fully cared.
	nand := ttable.Not(ttable.And(ttable.Proj(2, 0), ttable.Proj(2, 1)))
	if !ttable.Equal(found.Func.Care, ttable.Const(2, true)) {
		t.Errorf("cut care = %s, want all-1", found.Func.Care)
	}
	if !ttable.Equal(found.Func.Bits, nand) {
		t.Errorf("cut function = %s, want NAND %s", found.Func.Bits, nand)
	}
}

func TestFindWindowRejectsNonDeterminingSubsets(t *testing.T) {
	lib := testLibrary(t)
	ntk := network.New()
	a := ntk.CreatePi()
	b := ntk.CreatePi()
	and2 := gid(t, lib, "and2")
	g, _ := network.CreateBoundNode(ntk, lib, []network.Signal{a, b}, []chain.GateID{and2})
	ntk.CreatePo(g)

	w, sim := buildWindow(t, ntk, lib, g.Node(), 0)
	f := New(ntk, lib, w, sim)
	cuts := f.FindWindow(Limits{MaxCutsSize: 2, MaxCuts: 32})

	for _, c := range cuts {
		if len(c.Leaves) == 1 {
			t.Errorf("singleton cut %v cannot determine AND(a,b) and must be pruned", c.Leaves)
		}
	}
	// The full {a,b} subset must be present and fully specified.
	found := false
	for _, c := range cuts {
		if len(c.Leaves) == 2 {
			found = true
			andTT := ttable.And(ttable.Proj(2, 0), ttable.Proj(2, 1))
			if !ttable.Equal(c.Func.Bits, andTT) {
				t.Errorf("window cut function = %s, want AND %s", c.Func.Bits, andTT)
			}
		}
	}
	if !found {
		t.Error("no 2-leaf window cut found")
	}
}

func TestFindWindowPrunesCutsConflictingUnderODC(t *testing.T) {
	lib := testLibrary(t)
	ntk := network.New()
	a := ntk.CreatePi()
	b := ntk.CreatePi()
	c := ntk.CreatePi()
	and2 := gid(t, lib, "and2")
	or2 := gid(t, lib, "or2")

	// p = and2(a,b), observed only through or2(p,c): minterms with c=1
	// are ODCs, so only the c=0 assignments constrain a cut.
	p, _ := network.CreateBoundNode(ntk, lib, []network.Signal{a, b}, []chain.GateID{and2})
	g, _ := network.CreateBoundNode(ntk, lib, []network.Signal{p, c}, []chain.GateID{or2})
	ntk.CreatePo(g)

	w, sim := buildWindow(t, ntk, lib, p.Node(), 1)
	f := New(ntk, lib, w, sim)
	cuts := f.FindWindow(Limits{MaxCutsSize: 2, MaxCuts: 64})

	var abCut *Cut
	for i := range cuts {
		hasC := false
		for _, l := range cuts[i].Leaves {
			if l == c {
				hasC = true
			}
		}
		if hasC {
			// {a,c}, {b,c}, {c}: under c=0 the pivot still varies with the
			// missing variable, so these cannot determine it.
			t.Errorf("cut %v includes c and should have been pruned", cuts[i].Leaves)
		}
		if len(cuts[i].Leaves) == 2 {
			abCut = &cuts[i]
		}
	}
	if abCut == nil {
		t.Fatalf("no {a,b} window cut among %d cuts", len(cuts))
	}
	andTT := ttable.And(ttable.Proj(2, 0), ttable.Proj(2, 1))
	if !abCut.Func.Dominates(andTT) {
		t.Error("AND must dominate the {a,b} cut's function")
	}
}

func TestFindRewireExploitsObservabilityDontCares(t *testing.T) {
	lib := testLibrary(t)
	ntk := network.New()
	a := ntk.CreatePi()
	b := ntk.CreatePi()
	c := ntk.CreatePi()
	or2 := gid(t, lib, "or2")
	pivot, _ := network.CreateBoundNode(ntk, lib, []network.Signal{a, b}, []chain.GateID{or2})
	ntk.CreatePo(pivot)

	// A hand-built simulation: the pivot (OR) is only observable at
	// minterm a=1,b=1, where every divisor pair's OR is 1 as well — so a
	// rewire onto the constant-0 divisor c becomes legal under the DC
	// mask and would be illegal without it.
	values := map[network.Signal]ttable.Table{
		a:     ttable.Proj(2, 0),
		b:     ttable.Proj(2, 1),
		c:     ttable.Const(2, false),
		pivot: ttable.Or(ttable.Proj(2, 0), ttable.Proj(2, 1)),
	}
	w := window.Window{
		Pivot:    pivot.Node(),
		MFFC:     []network.NodeId{pivot.Node()},
		Outputs:  []network.Signal{pivot},
		Inputs:   []network.Signal{a, b},
		Divisors: []network.Signal{a, b, c},
		Valid:    true,
	}
	restricted := window.Simulation{
		NVars:   2,
		Values:  values,
		Outputs: []ttable.Table{values[pivot]},
		Care:    ttable.And(ttable.Proj(2, 0), ttable.Proj(2, 1)),
	}

	f := New(ntk, lib, w, restricted)
	cuts := f.FindRewire(Limits{MaxCutsSize: 2, MaxCuts: 64})
	foundC := false
	for _, cut := range cuts {
		for _, l := range cut.Leaves {
			if l == c {
				foundC = true
			}
		}
	}
	if !foundC {
		t.Error("with only minterm 11 cared, a rewire using the constant divisor should be accepted")
	}

	// Under a full care mask the same rewire must be rejected.
	full := restricted
	full.Care = ttable.Const(2, true)
	f2 := New(ntk, lib, w, full)
	for _, cut := range f2.FindRewire(Limits{MaxCutsSize: 2, MaxCuts: 64}) {
		for _, l := range cut.Leaves {
			if l == c {
				t.Errorf("fully-cared rewire accepted the constant divisor: %v", cut.Leaves)
			}
		}
	}
}

func TestKindString(t *testing.T) {
	if Rewire.String() != "rewire" || Structural.String() != "structural" || Window.String() != "window" {
		t.Error("Kind.String mismatch")
	}
}
