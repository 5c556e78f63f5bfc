// Netlist/library JSON ingestion for the engine service: the HTTP
// surface is the one boundary format this repo speaks; it carries no
// Verilog/Yosys-JSON reader or pretty-printer. The shapes below are a
// direct JSON rendering of the library and netlist data model (gates
// with area/output_fn/pins, modules with numeric-bit ports and cells)
// rather than a full Yosys-compatible parser.
package api

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rawblock/resynth-engine/internal/chain"
	"github.com/rawblock/resynth-engine/internal/library"
	"github.com/rawblock/resynth-engine/internal/network"
	"github.com/rawblock/resynth-engine/internal/ttable"
)

func tryUnmarshalInt(data []byte, out *int) error    { return json.Unmarshal(data, out) }
func tryUnmarshalString(data []byte, out *string) error { return json.Unmarshal(data, out) }

// PinDTO is one input pin of a library gate.
type PinDTO struct {
	Name            string  `json:"name"`
	RiseDelay       float64 `json:"riseDelay"`
	FallDelay       float64 `json:"fallDelay"`
	RiseCapacitance float64 `json:"riseCapacitance"`
	FallCapacitance float64 `json:"fallCapacitance"`
}

// GateDTO is one library cell (or one output of a multi-output cell).
// OutputFn is the function's truth table as a little-endian minterm
// list, length 2^len(Pins): the function's variable count equals its
// pin count.
type GateDTO struct {
	Name     string  `json:"name"`
	CellName string  `json:"cellName,omitempty"`
	Area     float64 `json:"area"`
	OutputFn []bool  `json:"outputFn"`
	Pins     []PinDTO `json:"pins"`
}

// LibraryDTO is the request body for the library half of a job
// submission.
type LibraryDTO struct {
	Gates []GateDTO `json:"gates"`
}

// Build decodes d into a library.Library, synthesizing each gate's
// inner chain from its output function since a JSON-submitted library
// carries no pre-decomposed chain of its own (internal/library.Synthesize).
func (d LibraryDTO) Build() (*library.Library, error) {
	gates := make([]library.Gate, len(d.Gates))
	for i, g := range d.Gates {
		nVars := len(g.Pins)
		if len(g.OutputFn) != 1<<uint(nVars) {
			return nil, fmt.Errorf("api: gate %q declares %d pins but outputFn has %d entries (want %d)", g.Name, nVars, len(g.OutputFn), 1<<uint(nVars))
		}
		tt := ttable.FromBits(nVars, g.OutputFn)
		pins := make([]library.Pin, nVars)
		for j, p := range g.Pins {
			pins[j] = library.Pin{Name: p.Name, RiseDelay: p.RiseDelay, FallDelay: p.FallDelay, RiseCapacitance: p.RiseCapacitance, FallCapacitance: p.FallCapacitance}
		}
		gates[i] = library.Gate{
			Name:       g.Name,
			CellName:   g.CellName,
			Area:       g.Area,
			OutputFn:   tt,
			Pins:       pins,
			InnerChain: library.Synthesize(nVars, tt),
		}
	}
	return library.New(gates)
}

// BitID names one net in a NetlistDTO: either an index into the
// network's growing bit->Signal map, or a constant literal "0"/"1".
type BitID struct {
	Index    int
	Constant string // "0" or "1"; empty when Index is meaningful
	IsConst  bool
}

func (b *BitID) UnmarshalJSON(data []byte) error {
	var n int
	if err := tryUnmarshalInt(data, &n); err == nil {
		b.Index, b.IsConst = n, false
		return nil
	}
	var s string
	if err := tryUnmarshalString(data, &s); err == nil {
		b.Constant, b.IsConst = s, true
		return nil
	}
	return fmt.Errorf("api: bit id is neither a number nor a string: %s", data)
}

func (b BitID) MarshalJSON() ([]byte, error) {
	if b.IsConst {
		return []byte(fmt.Sprintf("%q", b.Constant)), nil
	}
	return []byte(fmt.Sprintf("%d", b.Index)), nil
}

// CellDTO is one gate instance in a module.
type CellDTO struct {
	Type        string             `json:"type"`
	Connections map[string][]BitID `json:"connections"`
	// PinOrder lists Connections keys in the gate's declared pin order,
	// since Go JSON maps don't preserve key order and fanin order is
	// load-bearing for Boolean correctness.
	PinOrder []string `json:"pinOrder"`
}

// PortDTO is one module port.
type PortDTO struct {
	Direction string  `json:"direction"` // "input" or "output"
	Bits      []BitID `json:"bits"`
}

// ModuleDTO is one Yosys-style module.
type ModuleDTO struct {
	Ports map[string]PortDTO `json:"ports"`
	Cells map[string]CellDTO `json:"cells"`
}

// NetlistDTO is the request/response body for a netlist.
type NetlistDTO struct {
	Modules map[string]ModuleDTO `json:"modules"`
}

// topModule picks the netlist's single module, or the first in sorted
// name order if more than one is present (job submissions name exactly
// one module in practice).
func (d NetlistDTO) topModule() (string, ModuleDTO, error) {
	if len(d.Modules) == 0 {
		return "", ModuleDTO{}, fmt.Errorf("api: netlist has no modules")
	}
	names := make([]string, 0, len(d.Modules))
	for name := range d.Modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names[0], d.Modules[names[0]], nil
}

// Build constructs a network.Network from d against lib, resolving
// cells in dependency order (a cell is buildable once every input bit
// it consumes has already been mapped to a Signal) since a combinational
// netlist's cell map carries no implicit ordering.
func (d NetlistDTO) Build(lib *library.Library) (*network.Network, error) {
	_, mod, err := d.topModule()
	if err != nil {
		return nil, err
	}

	ntk := network.New()
	bits := make(map[int]network.Signal)

	resolve := func(b BitID) (network.Signal, bool) {
		if b.IsConst {
			switch b.Constant {
			case "0":
				return ntk.GetConstant(false), true
			case "1":
				return ntk.GetConstant(true), true
			default:
				return 0, false // "x"/"z" carry no defined value in a combinational network
			}
		}
		sig, ok := bits[b.Index]
		return sig, ok
	}

	var inputBits []BitID
	var outputBits []BitID
	for _, port := range mod.Ports {
		switch port.Direction {
		case "input":
			inputBits = append(inputBits, port.Bits...)
		case "output":
			outputBits = append(outputBits, port.Bits...)
		default:
			return nil, fmt.Errorf("api: netlist: unknown port direction %q", port.Direction)
		}
	}
	for _, b := range inputBits {
		if b.IsConst {
			continue
		}
		if _, ok := bits[b.Index]; !ok {
			bits[b.Index] = ntk.CreatePi()
		}
	}

	pending := make(map[string]CellDTO, len(mod.Cells))
	for name, c := range mod.Cells {
		pending[name] = c
	}
	for len(pending) > 0 {
		progressed := false
		for name, c := range pending {
			fanins, ready := resolveFanins(c, resolve)
			if !ready {
				continue
			}
			gateID, ok := lib.Lookup(c.Type)
			if !ok {
				return nil, fmt.Errorf("api: netlist: cell %q references unknown gate type %q", name, c.Type)
			}
			bindingIDs := lib.CellOutputs(gateID.CellName)
			if len(bindingIDs) == 0 {
				bindingIDs = []chain.GateID{gateID.ID}
			}
			sig, err := network.CreateBoundNode(ntk, lib, fanins, bindingIDs)
			if err != nil {
				return nil, fmt.Errorf("api: netlist: cell %q: %w", name, err)
			}
			// Output pin i of the cell is the JSON connection whose key
			// equals the i-th gate's own Name — the same gate names the
			// library library.CellOutputs(cellName) enumerates.
			for i, gid := range bindingIDs {
				outGate := lib.Gate(gid)
				bitList, ok := c.Connections[outGate.Name]
				if !ok {
					return nil, fmt.Errorf("api: netlist: cell %q: missing connection for output pin %q", name, outGate.Name)
				}
				outSig := network.NewSignal(sig.Node(), uint8(i))
				for _, b := range bitList {
					if !b.IsConst {
						bits[b.Index] = outSig
					}
				}
			}
			delete(pending, name)
			progressed = true
		}
		if !progressed {
			return nil, fmt.Errorf("api: netlist: %d cell(s) form a combinational cycle or reference undeclared bits", len(pending))
		}
	}

	for _, b := range outputBits {
		sig, ok := resolve(b)
		if !ok {
			return nil, fmt.Errorf("api: netlist: output bit %v never produced", b)
		}
		ntk.CreatePo(sig)
	}
	return ntk, nil
}

// EncodeNetwork renders ntk back into the same JSON shape Build
// consumes, under moduleName, assigning a fresh bit id per PI and per
// gate output pin in declaration order, producing the JSON response
// body the job-status endpoint returns.
func EncodeNetwork(ntk *network.Network, lib *library.Library, moduleName string) NetlistDTO {
	nextBit := 0
	bitOf := make(map[network.Signal]int)
	newBit := func(sig network.Signal) int {
		if id, ok := bitOf[sig]; ok {
			return id
		}
		id := nextBit
		nextBit++
		bitOf[sig] = id
		return id
	}
	bitIDFor := func(sig network.Signal) BitID {
		if ntk.IsConstant(sig.Node()) {
			v := ntk.Node(sig.Node()).Value
			c := "0"
			if v != 0 {
				c = "1"
			}
			return BitID{IsConst: true, Constant: c}
		}
		return BitID{Index: newBit(sig)}
	}

	var inputBits, outputBits []BitID
	for _, pi := range ntk.PIs() {
		inputBits = append(inputBits, bitIDFor(network.NewSignal(pi, 0)))
	}

	cells := make(map[string]CellDTO)
	i := 0
	ntk.ForeachGate(func(id network.NodeId) {
		nd := ntk.Node(id)
		if len(nd.Outputs) == 0 {
			return
		}
		first := lib.Gate(nd.Outputs[0].GateID)
		pinOrder := make([]string, len(first.Pins))
		for j, p := range first.Pins {
			pinOrder[j] = p.Name
		}
		conns := make(map[string][]BitID, len(first.Pins)+len(nd.Outputs))
		for j, fin := range nd.Fanins {
			conns[pinOrder[j]] = []BitID{bitIDFor(fin)}
		}
		for j, pin := range nd.Outputs {
			outGate := lib.Gate(pin.GateID)
			conns[outGate.Name] = []BitID{bitIDFor(network.NewSignal(id, uint8(j)))}
		}
		cells[fmt.Sprintf("g%d", i)] = CellDTO{Type: first.Name, Connections: conns, PinOrder: pinOrder}
		i++
	})

	ntk.ForeachPo(func(_ network.NodeId, fanin network.Signal) {
		outputBits = append(outputBits, bitIDFor(fanin))
	})

	return NetlistDTO{Modules: map[string]ModuleDTO{
		moduleName: {
			Ports: map[string]PortDTO{
				"in":  {Direction: "input", Bits: inputBits},
				"out": {Direction: "output", Bits: outputBits},
			},
			Cells: cells,
		},
	}}
}

// resolveFanins gathers c's input-pin connections in PinOrder (the
// gate's declared pin order — load-bearing for Boolean correctness),
// returning ready=false if any referenced bit hasn't been produced yet.
func resolveFanins(c CellDTO, resolve func(BitID) (network.Signal, bool)) ([]network.Signal, bool) {
	fanins := make([]network.Signal, 0, len(c.PinOrder))
	for _, pin := range c.PinOrder {
		bitList, ok := c.Connections[pin]
		if !ok || len(bitList) == 0 {
			return nil, false
		}
		sig, ok := resolve(bitList[0])
		if !ok {
			return nil, false
		}
		fanins = append(fanins, sig)
	}
	return fanins, true
}
