// Package trackers implements the per-signal timing/load annotations used
// throughout the resynthesis loop: arrival time (forward,
// max), required time (backward, min against a slack budget), load (sum of
// fanout input capacitance), and sensing time (forward, min — an estimate
// of the earliest-arriving glitch rather than the settled value).
//
// Every tracker is memoized over the current network snapshot; callers
// must call Reset after a substitution changes the signals they care
// about, since a tracker's cache does not invalidate itself incrementally.
package trackers

import (
	"math"

	"github.com/rawblock/resynth-engine/internal/library"
	"github.com/rawblock/resynth-engine/internal/network"
)

// Trackers bundles the four views over one network/library pair.
type Trackers struct {
	ntk *network.Network
	lib *library.Library

	piArrival map[network.NodeId]float64
	poRequired map[network.NodeId]float64

	arrival  map[network.Signal]float64
	sensing  map[network.Signal]float64
	required map[network.Signal]float64
	load     map[network.Signal]float64
}

// New returns a Trackers view with zero input arrivals and +Inf (no
// constraint) output required times, matching the config defaults
// (`RESYNTH_INPUT_ARRIVALS`, `RESYNTH_OUTPUT_REQUIRED`).
func New(ntk *network.Network, lib *library.Library) *Trackers {
	return &Trackers{
		ntk:        ntk,
		lib:        lib,
		piArrival:  make(map[network.NodeId]float64),
		poRequired: make(map[network.NodeId]float64),
		arrival:    make(map[network.Signal]float64),
		sensing:    make(map[network.Signal]float64),
		required:   make(map[network.Signal]float64),
		load:       make(map[network.Signal]float64),
	}
}

// SetInputArrivals zips arrivals with the network's PIs in declaration
// order; missing trailing entries default to 0.
func (t *Trackers) SetInputArrivals(arrivals []float64) {
	for i, id := range t.ntk.PIs() {
		if i < len(arrivals) {
			t.piArrival[id] = arrivals[i]
		} else {
			t.piArrival[id] = 0
		}
	}
	t.Reset()
}

// SetOutputRequired zips requireds with the network's POs in declaration
// order; missing trailing entries default to +Inf (the "INF" sentinel).
func (t *Trackers) SetOutputRequired(requireds []float64) {
	for i, id := range t.ntk.POs() {
		if i < len(requireds) {
			t.poRequired[id] = requireds[i]
		} else {
			t.poRequired[id] = math.Inf(1)
		}
	}
	t.Reset()
}

// Reset clears every memoized value; call after the network changes.
func (t *Trackers) Reset() {
	t.arrival = make(map[network.Signal]float64)
	t.sensing = make(map[network.Signal]float64)
	t.required = make(map[network.Signal]float64)
	t.load = make(map[network.Signal]float64)
}

// Arrival returns the forward arrival time at sig: 0 at constants, the
// configured per-PI arrival at primary inputs, and max over fanins of
// (Arrival(fanin) + pin delay) at gates.
func (t *Trackers) Arrival(sig network.Signal) float64 {
	return t.forward(sig, math.Max, t.piArrival, t.arrival)
}

// Sensing returns the earliest-glitch estimate at sig: identical
// propagation to Arrival but taking the min instead of the max at every
// gate.
func (t *Trackers) Sensing(sig network.Signal) float64 {
	return t.forward(sig, math.Min, t.piArrival, t.sensing)
}

// forward memoizes per-signal into cache as it recurses, so reconvergent
// fanout inside a window is only ever walked once.
func (t *Trackers) forward(sig network.Signal, combine func(a, b float64) float64, piBase map[network.NodeId]float64, cache map[network.Signal]float64) float64 {
	if v, ok := cache[sig]; ok {
		return v
	}
	nd := t.ntk.Node(sig.Node())
	var val float64
	switch nd.Kind {
	case network.KindConstant:
		val = 0
	case network.KindPi:
		if v, ok := piBase[sig.Node()]; ok {
			val = v
		}
	case network.KindPo:
		val = t.forward(nd.Fanins[0], combine, piBase, cache)
	case network.KindGate:
		gid := nd.Outputs[sig.Pin()].GateID
		g := t.lib.Gate(gid)
		first := true
		for i, fin := range nd.Fanins {
			a := t.forward(fin, combine, piBase, cache) + g.Pins[i].AvgDelay()
			if first {
				val = a
				first = false
			} else {
				val = combine(val, a)
			}
		}
	}
	cache[sig] = val
	return val
}

// Required returns the backward required time at sig: the configured
// per-PO required time at a PO's driver, propagated back as min over
// fanouts of (Required(consumer_output) - pin delay at the fanin index
// used), per consumer output pin.
func (t *Trackers) Required(sig network.Signal) float64 {
	if v, ok := t.required[sig]; ok {
		return v
	}
	best := math.Inf(1)
	t.ntk.ForeachFanout(sig, func(consumer network.NodeId) {
		cnd := t.ntk.Node(consumer)
		if cnd.Kind == network.KindPo {
			req, ok := t.poRequired[consumer]
			if !ok {
				req = math.Inf(1)
			}
			if req < best {
				best = req
			}
			return
		}
		for p := range cnd.Outputs {
			g := t.lib.Gate(cnd.Outputs[p].GateID)
			reqOut := t.Required(network.NewSignal(consumer, uint8(p)))
			for idx, fin := range cnd.Fanins {
				if fin != sig {
					continue
				}
				cand := reqOut - g.Pins[idx].AvgDelay()
				if cand < best {
					best = cand
				}
			}
		}
	})
	t.required[sig] = best
	return best
}

// Load returns the static load at sig: the sum of input capacitance over
// every gate pin that consumes it; PO consumers contribute 0.
func (t *Trackers) Load(sig network.Signal) float64 {
	if v, ok := t.load[sig]; ok {
		return v
	}
	total := 0.0
	t.ntk.ForeachFanout(sig, func(consumer network.NodeId) {
		cnd := t.ntk.Node(consumer)
		if cnd.Kind == network.KindPo {
			return
		}
		for p := range cnd.Outputs {
			g := t.lib.Gate(cnd.Outputs[p].GateID)
			for idx, fin := range cnd.Fanins {
				if fin == sig {
					total += g.Pins[idx].AvgCapacitance()
				}
			}
		}
	})
	t.load[sig] = total
	return total
}

// Slack returns Required(sig) - Arrival(sig); negative slack signals a
// timing violation.
func (t *Trackers) Slack(sig network.Signal) float64 {
	return t.Required(sig) - t.Arrival(sig)
}
