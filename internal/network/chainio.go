package network

import (
	"fmt"

	"github.com/rawblock/resynth-engine/internal/chain"
	"github.com/rawblock/resynth-engine/internal/library"
)

// extractor walks a network's TFI, assigning a chain.Literal to every
// signal it resolves.
type extractor struct {
	ntk *Network
	c   *chain.Chain
	lit map[Signal]chain.Literal
}

func (e *extractor) resolve(sig Signal) (chain.Literal, error) {
	if l, ok := e.lit[sig]; ok {
		return l, nil
	}
	nd := e.ntk.Node(sig.Node())
	switch nd.Kind {
	case KindConstant:
		v := nd.Value != 0
		l := e.c.AddGate(nil, chain.ConstBinding(v))
		e.lit[sig] = l
		return l, nil
	case KindPi:
		return 0, fmt.Errorf("chain extract: reached primary input %v outside the declared input boundary (dangling cone)", sig)
	case KindGate:
		fanins := make([]chain.Literal, len(nd.Fanins))
		for i, f := range nd.Fanins {
			fl, err := e.resolve(f)
			if err != nil {
				return 0, err
			}
			fanins[i] = fl
		}
		gid := nd.Outputs[sig.Pin()].GateID
		l := e.c.AddGate(fanins, chain.GateBinding(gid))
		e.lit[sig] = l
		return l, nil
	default:
		return 0, fmt.Errorf("chain extract: unexpected node kind at %v", sig)
	}
}

// Extract builds a bound chain realizing root's function given inputs as
// the free (assumed) boundary signals, in topological order.
// It fails with a dangling-cone error if a reached node is neither an
// input nor resolvable (a bare PI not present in inputs).
func Extract(ntk *Network, inputs []Signal, root Signal) (chain.Chain, error) {
	return ExtractMulti(ntk, inputs, []Signal{root})
}

// ExtractMulti is Extract generalized to several simultaneous output
// roots, used by the window manager when a cone has multiple boundary
// outputs.
func ExtractMulti(ntk *Network, inputs []Signal, roots []Signal) (chain.Chain, error) {
	c := chain.New(len(inputs))
	e := &extractor{ntk: ntk, c: &c, lit: make(map[Signal]chain.Literal, len(inputs)+8)}
	for i, s := range inputs {
		e.lit[s] = chain.NewLiteral(uint32(i), false)
	}
	outs := make([]chain.Literal, len(roots))
	for i, r := range roots {
		l, err := e.resolve(r)
		if err != nil {
			return chain.Chain{}, err
		}
		outs[i] = l
	}
	c.SetOutputs(outs...)
	return c, nil
}

// insertKey identifies a candidate for structural-hashing dedup during a
// single Insert call: the binding plus the already-resolved fanin signals.
type insertKey struct {
	kind    chain.BindingKind
	gate    chain.GateID
	constv  bool
	fanins  string
}

func keyFor(g chain.Gate, resolved []Signal) insertKey {
	s := ""
	for _, sig := range resolved {
		s += fmt.Sprintf("%d,", sig)
	}
	return insertKey{kind: g.Binding.Kind, gate: g.Binding.GateID, constv: g.Binding.ConstVal, fanins: s}
}

// Insert builds fresh nodes in ntk realizing c, substituting inputs[k] for
// c's input literal k, and returns the signal of c's (single) declared
// output. Structural hashing dedups nodes created for identical
// (binding, fanins) keys within this single call; the cache is
// call-scoped, matching the network's non-persistent, per-pass arena
// model.
func Insert(ntk *Network, lib *library.Library, inputs []Signal, c chain.Chain) (Signal, error) {
	if len(c.Outputs) != 1 {
		return 0, fmt.Errorf("network: Insert expects a single-output chain, got %d outputs", len(c.Outputs))
	}
	outs, err := InsertMulti(ntk, lib, inputs, c)
	if err != nil {
		return 0, err
	}
	return outs[0], nil
}

// InsertMulti is Insert generalized to multi-output chains, returning one
// signal per declared output literal.
func InsertMulti(ntk *Network, lib *library.Library, inputs []Signal, c chain.Chain) ([]Signal, error) {
	if len(inputs) != c.NumInputs {
		return nil, fmt.Errorf("network: Insert input count mismatch: chain declares %d, got %d", c.NumInputs, len(inputs))
	}
	resolved := make([]Signal, c.NumInputs+len(c.Nodes))
	for i, s := range inputs {
		resolved[i] = s
	}
	hashCons := make(map[insertKey]Signal)
	for i, g := range c.Nodes {
		fanins := make([]Signal, len(g.Fanins))
		for j, f := range g.Fanins {
			if f.IsComplemented() {
				return nil, fmt.Errorf("network: Insert does not support complemented literals in bound chains (gate %d, fanin %d)", i, j)
			}
			fanins[j] = resolved[f.Index()]
		}
		k := keyFor(g, fanins)
		if sig, ok := hashCons[k]; ok {
			resolved[c.NumInputs+i] = sig
			continue
		}
		var sig Signal
		switch g.Binding.Kind {
		case chain.BindingConst:
			sig = ntk.GetConstant(g.Binding.ConstVal)
		case chain.BindingGate:
			var err error
			sig, err = CreateBoundNode(ntk, lib, fanins, []chain.GateID{g.Binding.GateID})
			if err != nil {
				return nil, fmt.Errorf("network: Insert gate %d: %w", i, err)
			}
		default:
			return nil, fmt.Errorf("network: Insert does not support AND/XOR primitives in a bound chain (gate %d)", i)
		}
		resolved[c.NumInputs+i] = sig
		hashCons[k] = sig
	}
	outs := make([]Signal, len(c.Outputs))
	for i, o := range c.Outputs {
		if o.IsComplemented() {
			return nil, fmt.Errorf("network: Insert does not support a complemented output literal")
		}
		outs[i] = resolved[o.Index()]
	}
	return outs, nil
}
