package api

import (
	"testing"

	"github.com/rawblock/resynth-engine/internal/library"
	"github.com/rawblock/resynth-engine/internal/network"
)

func testLibraryDTO() LibraryDTO {
	p := func(name string) PinDTO {
		return PinDTO{Name: name, RiseDelay: 1, FallDelay: 1, RiseCapacitance: 1, FallCapacitance: 1}
	}
	return LibraryDTO{Gates: []GateDTO{
		{Name: "and2", Area: 2, OutputFn: []bool{false, false, false, true}, Pins: []PinDTO{p("A"), p("B")}},
		{Name: "or2", Area: 2, OutputFn: []bool{false, true, true, true}, Pins: []PinDTO{p("A"), p("B")}},
		{Name: "inv1", Area: 1, OutputFn: []bool{true, false}, Pins: []PinDTO{p("A")}},
	}}
}

func testNetlistDTO() NetlistDTO {
	// y = or2(and2(a,b), inv(a)): bits 0=a, 1=b, 2=and out, 3=inv out, 4=y.
	return NetlistDTO{Modules: map[string]ModuleDTO{
		"top": {
			Ports: map[string]PortDTO{
				"in":  {Direction: "input", Bits: []BitID{{Index: 0}, {Index: 1}}},
				"out": {Direction: "output", Bits: []BitID{{Index: 4}}},
			},
			Cells: map[string]CellDTO{
				"g_and": {Type: "and2", PinOrder: []string{"A", "B"}, Connections: map[string][]BitID{
					"A": {{Index: 0}}, "B": {{Index: 1}}, "and2": {{Index: 2}},
				}},
				"g_inv": {Type: "inv1", PinOrder: []string{"A"}, Connections: map[string][]BitID{
					"A": {{Index: 0}}, "inv1": {{Index: 3}},
				}},
				"g_or": {Type: "or2", PinOrder: []string{"A", "B"}, Connections: map[string][]BitID{
					"A": {{Index: 2}}, "B": {{Index: 3}}, "or2": {{Index: 4}},
				}},
			},
		},
	}}
}

func evalPO(ntk *network.Network, lib *library.Library, piVals map[network.NodeId]bool) []bool {
	var eval func(sig network.Signal) bool
	eval = func(sig network.Signal) bool {
		nd := ntk.Node(sig.Node())
		switch nd.Kind {
		case network.KindConstant:
			return nd.Value != 0
		case network.KindPi:
			return piVals[sig.Node()]
		}
		idx := 0
		for i, f := range nd.Fanins {
			if eval(f) {
				idx |= 1 << uint(i)
			}
		}
		return lib.Gate(nd.Outputs[sig.Pin()].GateID).OutputFn.Bit(idx)
	}
	var out []bool
	ntk.ForeachPo(func(_ network.NodeId, fanin network.Signal) {
		out = append(out, eval(fanin))
	})
	return out
}

func poTable(ntk *network.Network, lib *library.Library) [][]bool {
	pis := ntk.PIs()
	var rows [][]bool
	for i := 0; i < 1<<uint(len(pis)); i++ {
		vals := make(map[network.NodeId]bool, len(pis))
		for v, pi := range pis {
			vals[pi] = i>>uint(v)&1 == 1
		}
		rows = append(rows, evalPO(ntk, lib, vals))
	}
	return rows
}

func TestLibraryDTOBuild(t *testing.T) {
	lib, err := testLibraryDTO().Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if lib.Len() != 3 {
		t.Fatalf("library has %d gates, want 3", lib.Len())
	}
	g, ok := lib.Lookup("and2")
	if !ok {
		t.Fatal("and2 missing")
	}
	// The synthesized inner chain must exist so the chain simulator can
	// evaluate the gate.
	if g.InnerChain.NumInputs != 2 {
		t.Errorf("inner chain declares %d inputs, want 2", g.InnerChain.NumInputs)
	}
}

func TestLibraryDTORejectsWrongTableLength(t *testing.T) {
	d := testLibraryDTO()
	d.Gates[0].OutputFn = []bool{true, false}
	if _, err := d.Build(); err == nil {
		t.Fatal("expected an error for a 2-pin gate with a 2-entry table")
	}
}

func TestNetlistDTOBuildRealizesFunction(t *testing.T) {
	lib, err := testLibraryDTO().Build()
	if err != nil {
		t.Fatalf("library build: %v", err)
	}
	ntk, err := testNetlistDTO().Build(lib)
	if err != nil {
		t.Fatalf("netlist build: %v", err)
	}
	if len(ntk.PIs()) != 2 || len(ntk.POs()) != 1 {
		t.Fatalf("PIs=%d POs=%d, want 2/1", len(ntk.PIs()), len(ntk.POs()))
	}
	// y = (a AND b) OR (NOT a): truth column for (a,b) in 00,10,01,11
	// order is 1,0,1,1.
	want := []bool{true, false, true, true}
	got := poTable(ntk, lib)
	for i, row := range got {
		if row[0] != want[i] {
			t.Errorf("minterm %d: %v, want %v", i, row[0], want[i])
		}
	}
}

func TestNetlistDTOBuildDetectsUnknownGate(t *testing.T) {
	lib, _ := testLibraryDTO().Build()
	d := testNetlistDTO()
	cell := d.Modules["top"].Cells["g_and"]
	cell.Type = "xor9"
	d.Modules["top"].Cells["g_and"] = cell
	if _, err := d.Build(lib); err == nil {
		t.Fatal("expected an unknown gate type error")
	}
}

func TestNetlistDTOBuildDetectsCycle(t *testing.T) {
	lib, _ := testLibraryDTO().Build()
	// A cell that consumes its own output bit can never become ready.
	d := NetlistDTO{Modules: map[string]ModuleDTO{
		"top": {
			Ports: map[string]PortDTO{
				"in":  {Direction: "input", Bits: []BitID{{Index: 0}}},
				"out": {Direction: "output", Bits: []BitID{{Index: 1}}},
			},
			Cells: map[string]CellDTO{
				"g_loop": {Type: "and2", PinOrder: []string{"A", "B"}, Connections: map[string][]BitID{
					"A": {{Index: 0}}, "B": {{Index: 1}}, "and2": {{Index: 1}},
				}},
			},
		},
	}}
	if _, err := d.Build(lib); err == nil {
		t.Fatal("expected a combinational cycle error")
	}
}

func TestEncodeNetworkRoundTrip(t *testing.T) {
	lib, err := testLibraryDTO().Build()
	if err != nil {
		t.Fatalf("library build: %v", err)
	}
	ntk, err := testNetlistDTO().Build(lib)
	if err != nil {
		t.Fatalf("netlist build: %v", err)
	}
	wantRows := poTable(ntk, lib)

	encoded := EncodeNetwork(ntk, lib, "top")
	back, err := encoded.Build(lib)
	if err != nil {
		t.Fatalf("rebuilding encoded netlist: %v", err)
	}
	gotRows := poTable(back, lib)

	// Bit-exactness, JSON flavor: read(write(N)) realizes the same
	// PO functions over the same PI order.
	if len(gotRows) != len(wantRows) {
		t.Fatalf("row counts differ: %d vs %d", len(gotRows), len(wantRows))
	}
	for i := range wantRows {
		for j := range wantRows[i] {
			if gotRows[i][j] != wantRows[i][j] {
				t.Errorf("minterm %d PO %d: %v, want %v", i, j, gotRows[i][j], wantRows[i][j])
			}
		}
	}
	live := 0
	back.ForeachGate(func(network.NodeId) { live++ })
	if live != 3 {
		t.Errorf("rebuilt network has %d gates, want 3", live)
	}
}
