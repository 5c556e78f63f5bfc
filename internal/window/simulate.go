package window

import (
	"fmt"

	"github.com/rawblock/resynth-engine/internal/library"
	"github.com/rawblock/resynth-engine/internal/network"
	"github.com/rawblock/resynth-engine/internal/ttable"
)

// Simulation is the result of the window simulator:
// every input gets a distinct projection table over len(Window.Inputs)
// variables, propagated forward through the divisors and MFFC/TFO to
// produce each output's signature and the window's care mask.
type Simulation struct {
	NVars   int
	Values  map[network.Signal]ttable.Table
	Outputs []ttable.Table
	Care    ttable.Table
}

// Simulate computes w's Boolean contract. lib resolves gate output
// functions; nil is only valid if w contains no gate nodes (degenerate
// single-PI window).
func Simulate(ntk *network.Network, lib *library.Library, w Window) (Simulation, error) {
	nVars := len(w.Inputs)
	if nVars > ttable.MaxVars {
		return Simulation{}, fmt.Errorf("window: simulate: %d inputs exceeds MaxVars %d", nVars, ttable.MaxVars)
	}
	values := make(map[network.Signal]ttable.Table, len(w.Inputs)+len(w.Divisors)+len(w.MFFC)+len(w.TFO))
	for i, s := range w.Inputs {
		values[s] = ttable.Proj(nVars, i)
	}

	var eval func(sig network.Signal) (ttable.Table, error)
	eval = func(sig network.Signal) (ttable.Table, error) {
		if t, ok := values[sig]; ok {
			return t, nil
		}
		nd := ntk.Node(sig.Node())
		switch nd.Kind {
		case network.KindConstant:
			t := ttable.Const(nVars, nd.Value != 0)
			values[sig] = t
			return t, nil
		case network.KindPi:
			return ttable.Table{}, fmt.Errorf("window: simulate: reached free primary input %v outside window inputs", sig)
		case network.KindGate:
			if lib == nil {
				return ttable.Table{}, fmt.Errorf("window: simulate: gate node %v but no library supplied", sig)
			}
			args := make([]ttable.Table, len(nd.Fanins))
			for i, f := range nd.Fanins {
				a, err := eval(f)
				if err != nil {
					return ttable.Table{}, err
				}
				args[i] = a
			}
			gid := nd.Outputs[sig.Pin()].GateID
			g := lib.Gate(gid)
			t := ttable.Compose(g.OutputFn, args)
			values[sig] = t
			return t, nil
		default:
			return ttable.Table{}, fmt.Errorf("window: simulate: unexpected node kind at %v", sig)
		}
	}

	for _, d := range w.Divisors {
		if _, err := eval(d); err != nil {
			return Simulation{}, err
		}
	}
	outputs := make([]ttable.Table, len(w.Outputs))
	for i, o := range w.Outputs {
		t, err := eval(o)
		if err != nil {
			return Simulation{}, err
		}
		outputs[i] = t
	}

	care, err := careMask(ntk, lib, w, values, outputs, nVars, eval)
	if err != nil {
		return Simulation{}, err
	}

	return Simulation{NVars: nVars, Values: values, Outputs: outputs, Care: care}, nil
}

// careMask computes the observability don't-care mask: an input
// assignment is cared about iff flipping the pivot's simulated value
// changes at least one window output. For a
// window with no TFO, the pivot's own output is the only output, so
// flipping it always differs everywhere and the mask is trivially all-1.
func careMask(ntk *network.Network, lib *library.Library, w Window, base map[network.Signal]ttable.Table, nominal []ttable.Table, nVars int, _ func(network.Signal) (ttable.Table, error)) (ttable.Table, error) {
	// Seed only the window inputs and the flipped pivot pins: everything
	// downstream of the pivot must be re-derived, not read from the
	// nominal cache, or the flip would never reach the outputs.
	flipped := make(map[network.Signal]ttable.Table, len(w.Inputs)+2)
	for _, in := range w.Inputs {
		flipped[in] = base[in]
	}
	for pin := 0; pin < ntk.NumOutputs(w.Pivot); pin++ {
		sig := network.NewSignal(w.Pivot, uint8(pin))
		if t, ok := base[sig]; ok {
			flipped[sig] = ttable.Not(t)
		}
	}

	var evalFlipped func(sig network.Signal) (ttable.Table, error)
	evalFlipped = func(sig network.Signal) (ttable.Table, error) {
		if t, ok := flipped[sig]; ok {
			return t, nil
		}
		nd := ntk.Node(sig.Node())
		switch nd.Kind {
		case network.KindConstant:
			t := ttable.Const(nVars, nd.Value != 0)
			flipped[sig] = t
			return t, nil
		case network.KindGate:
			args := make([]ttable.Table, len(nd.Fanins))
			for i, f := range nd.Fanins {
				a, err := evalFlipped(f)
				if err != nil {
					return ttable.Table{}, err
				}
				args[i] = a
			}
			gid := nd.Outputs[sig.Pin()].GateID
			g := lib.Gate(gid)
			t := ttable.Compose(g.OutputFn, args)
			flipped[sig] = t
			return t, nil
		default:
			return ttable.Table{}, fmt.Errorf("window: simulate: unexpected node kind at %v during ODC pass", sig)
		}
	}

	care := ttable.Const(nVars, false)
	for i, o := range w.Outputs {
		t, err := evalFlipped(o)
		if err != nil {
			return ttable.Table{}, err
		}
		diff := ttable.Xor(nominal[i], t)
		care = ttable.Or(care, diff)
	}
	return care, nil
}
