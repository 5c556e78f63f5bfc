// Package simulator implements the chain simulator:
// topological truth-table propagation through a chain, composing bound
// (library-gate) nodes via their augmented library's precomputed inner
// AND/XOR chain, and AIG/XAG primitive nodes directly. It also exposes the
// switching-activity proxy metric used by the power profiler.
package simulator

import (
	"fmt"

	"github.com/rawblock/resynth-engine/internal/chain"
	"github.com/rawblock/resynth-engine/internal/library"
	"github.com/rawblock/resynth-engine/internal/ttable"
)

// Result holds every literal's simulated signature (truth table), indexed
// the same way chain.Literal indexes do: [0,NumInputs) are the chain's
// inputs, [NumInputs, NumInputs+NumGates) are gate outputs in declaration
// order.
type Result struct {
	nVars  int
	values []ttable.Table
}

func (r Result) literal(l chain.Literal) ttable.Table {
	t := r.values[l.Index()]
	if l.IsComplemented() {
		return ttable.Not(t)
	}
	return t
}

// Outputs returns the signature of every declared output of the chain that
// was simulated to produce r.
func (r Result) Outputs(c chain.Chain) []ttable.Table {
	out := make([]ttable.Table, len(c.Outputs))
	for i, o := range c.Outputs {
		out[i] = r.literal(o)
	}
	return out
}

// GateValue returns the signature at gate index i (0-based among c.Nodes).
func (r Result) GateValue(c chain.Chain, gateIdx int) ttable.Table {
	return r.values[c.NumInputs+gateIdx]
}

// Simulate propagates inputs (one signature per chain input, all sharing
// the same variable count) through c in topological (declaration) order.
// lib resolves BindingGate nodes to their inner chain; it may be nil if c
// is known to contain no BindingGate nodes (a pure AIG/XAG inner chain).
func Simulate(lib *library.Library, c chain.Chain, inputs []ttable.Table) (Result, error) {
	if len(inputs) != c.NumInputs {
		return Result{}, fmt.Errorf("simulator: expected %d inputs, got %d", c.NumInputs, len(inputs))
	}
	nVars := 0
	if len(inputs) > 0 {
		nVars = inputs[0].NumVars()
	}
	values := make([]ttable.Table, c.NumInputs+len(c.Nodes))
	copy(values, inputs)
	r := Result{nVars: nVars, values: values}

	for i, g := range c.Nodes {
		var out ttable.Table
		switch g.Binding.Kind {
		case chain.BindingConst:
			out = ttable.Const(nVars, g.Binding.ConstVal)
		case chain.BindingAnd:
			a, b := r.literal(g.Fanins[0]), r.literal(g.Fanins[1])
			out = ttable.And(a, b)
		case chain.BindingXor:
			a, b := r.literal(g.Fanins[0]), r.literal(g.Fanins[1])
			out = ttable.Xor(a, b)
		case chain.BindingGate:
			if lib == nil {
				return Result{}, fmt.Errorf("simulator: BindingGate node but no library supplied")
			}
			fin := make([]ttable.Table, len(g.Fanins))
			for j, f := range g.Fanins {
				fin[j] = r.literal(f)
			}
			gate := lib.Gate(g.Binding.GateID)
			inner, err := Simulate(lib, gate.InnerChain, fin)
			if err != nil {
				return Result{}, fmt.Errorf("simulator: gate %q inner chain: %w", gate.Name, err)
			}
			outs := inner.Outputs(gate.InnerChain)
			if len(outs) != 1 {
				return Result{}, fmt.Errorf("simulator: gate %q inner chain declares %d outputs, want 1", gate.Name, len(outs))
			}
			out = outs[0]
		default:
			return Result{}, fmt.Errorf("simulator: unknown binding kind %v", g.Binding.Kind)
		}
		values[c.NumInputs+i] = out
	}
	return r, nil
}

// Switching returns the sum, over every internal gate of c, of
// ones(sim)*zeros(sim), the switching-activity proxy the power profiler
// uses to score candidates.
func Switching(lib *library.Library, c chain.Chain, inputs []ttable.Table) (int, error) {
	r, err := Simulate(lib, c, inputs)
	if err != nil {
		return 0, err
	}
	total := 0
	for i := range c.Nodes {
		total += r.GateValue(c, i).Switching()
	}
	return total, nil
}
