// Package profiler implements the three cost profilers the resynthesis
// driver iterates gates by: area, delay, and power.
// All three share one contract so the driver can swap them without
// branching on kind.
package profiler

import (
	"math"
	"sort"

	"github.com/rawblock/resynth-engine/internal/library"
	"github.com/rawblock/resynth-engine/internal/network"
	"github.com/rawblock/resynth-engine/internal/trackers"
	"github.com/rawblock/resynth-engine/internal/window"
)

// Profiler is the common contract every variant implements.
type Profiler interface {
	// Init prepares any window-level data (activity simulation for power)
	// ahead of evaluating candidates against this pivot's window.
	Init(w window.Window, sim window.Simulation) error

	// Evaluate returns a cost delta for replacing oldMFFC's nodes with
	// everything created in ntk at or after watermark, rooted at newRoot.
	// Positive means gain.
	Evaluate(ntk *network.Network, lib *library.Library, oldMFFC []network.NodeId, newRoot network.Signal, watermark network.NodeId) (float64, error)

	// EvaluateRewiring is a cheaper path for fanin-rewire candidates that
	// keep the pivot's existing gate id.
	EvaluateRewiring(ntk *network.Network, lib *library.Library, pivot network.NodeId, oldChildren, newChildren []network.Signal) (float64, error)

	// ForeachGate iterates live gates, ordered by this profiler's per-gate
	// cost key, up to maxNumRoots (0 means unbounded).
	ForeachGate(ntk *network.Network, maxNumRoots int, fn func(network.NodeId))
}

func gateArea(lib *library.Library, ntk *network.Network, id network.NodeId) float64 {
	nd := ntk.Node(id)
	if nd.Kind != network.KindGate {
		return 0
	}
	var total float64
	for _, pin := range nd.Outputs {
		total += lib.Gate(pin.GateID).Area
	}
	return total
}

func sortedGateIDs(ntk *network.Network, maxNumRoots int, key func(network.NodeId) float64) []network.NodeId {
	var ids []network.NodeId
	ntk.ForeachGate(func(id network.NodeId) { ids = append(ids, id) })
	sort.Slice(ids, func(a, b int) bool { return key(ids[a]) > key(ids[b]) })
	if maxNumRoots > 0 && len(ids) > maxNumRoots {
		ids = ids[:maxNumRoots]
	}
	return ids
}

// newNodesArea sums the area of every node created at or after
// watermark — the arena grows monotonically within a pass, so
// this set is exactly the candidate subnet just written.
func newNodesArea(lib *library.Library, ntk *network.Network, watermark network.NodeId) float64 {
	var total float64
	for id := watermark; int(id) < ntk.NumNodes(); id++ {
		total += gateArea(lib, ntk, id)
	}
	return total
}

// --- Area profiler ---

// AreaProfiler scores candidates by area delta alone.
type AreaProfiler struct {
	lib *library.Library
}

func NewAreaProfiler(lib *library.Library) *AreaProfiler { return &AreaProfiler{lib: lib} }

func (p *AreaProfiler) Init(w window.Window, sim window.Simulation) error { return nil }

func (p *AreaProfiler) Evaluate(ntk *network.Network, lib *library.Library, oldMFFC []network.NodeId, newRoot network.Signal, watermark network.NodeId) (float64, error) {
	var oldCost float64
	for _, id := range oldMFFC {
		oldCost += gateArea(lib, ntk, id)
	}
	newCost := newNodesArea(lib, ntk, watermark)
	return oldCost - newCost, nil
}

// EvaluateRewiring estimates the area reclaimed when an old fanin of the
// pivot loses its last live consumer (a simplified, non-recursive
// one-level approximation of the real take-out cascade network.tryTakeOut
// would perform).
func (p *AreaProfiler) EvaluateRewiring(ntk *network.Network, lib *library.Library, pivot network.NodeId, oldChildren, newChildren []network.Signal) (float64, error) {
	kept := make(map[network.Signal]bool, len(newChildren))
	for _, s := range newChildren {
		kept[s] = true
	}
	var reclaimed float64
	for _, old := range oldChildren {
		if kept[old] {
			continue
		}
		if ntk.FanoutSize(old) == 1 && ntk.Node(old.Node()).Kind == network.KindGate {
			reclaimed += gateArea(lib, ntk, old.Node())
		}
	}
	return reclaimed, nil
}

func (p *AreaProfiler) ForeachGate(ntk *network.Network, maxNumRoots int, fn func(network.NodeId)) {
	for _, id := range sortedGateIDs(ntk, maxNumRoots, func(id network.NodeId) float64 {
		w := window.NewManager(ntk)
		wi := w.Build(id, window.Params{MaxNumLeaves: 1 << 20, MaxNumDivisors: 1 << 20})
		var total float64
		for _, m := range wi.MFFC {
			total += gateArea(p.lib, ntk, m)
		}
		return total
	}) {
		fn(id)
	}
}

// --- Delay profiler ---

// DelayProfiler scores candidates by worst-arrival delta at the
// candidate's root, using a shared Trackers view the driver re-seeds
// after every network mutation.
type DelayProfiler struct {
	lib *library.Library
	t   *trackers.Trackers
}

func NewDelayProfiler(lib *library.Library, t *trackers.Trackers) *DelayProfiler {
	return &DelayProfiler{lib: lib, t: t}
}

func (p *DelayProfiler) Init(w window.Window, sim window.Simulation) error { return nil }

func (p *DelayProfiler) Evaluate(ntk *network.Network, lib *library.Library, oldMFFC []network.NodeId, newRoot network.Signal, watermark network.NodeId) (float64, error) {
	p.t.Reset()
	oldRoot := network.NewSignal(oldMFFC[len(oldMFFC)-1], 0)
	before := p.t.Arrival(oldRoot)
	after := p.t.Arrival(newRoot)
	return before - after, nil
}

// EvaluateRewiring computes the hypothetical arrival at pivot if its
// fanins became newChildren, without mutating the network: since a
// rewire candidate keeps the pivot's own gate binding, the new arrival
// is just the pin-delay-weighted max over newChildren's already-known
// arrivals.
func (p *DelayProfiler) EvaluateRewiring(ntk *network.Network, lib *library.Library, pivot network.NodeId, oldChildren, newChildren []network.Signal) (float64, error) {
	before := p.t.Arrival(network.NewSignal(pivot, 0))
	gid := ntk.Node(pivot).Outputs[0].GateID
	g := lib.Gate(gid)
	var after float64
	for i, c := range newChildren {
		a := p.t.Arrival(c) + g.Pins[i].AvgDelay()
		if a > after {
			after = a
		}
	}
	return before - after, nil
}

func (p *DelayProfiler) ForeachGate(ntk *network.Network, maxNumRoots int, fn func(network.NodeId)) {
	for _, id := range sortedGateIDs(ntk, maxNumRoots, func(id network.NodeId) float64 {
		return -p.t.Slack(network.NewSignal(id, 0))
	}) {
		fn(id)
	}
}

// --- Power profiler ---

// PowerProfiler scores candidates by switching*load delta, using the
// window simulation's per-signal signatures for the switching-activity
// proxy.
type PowerProfiler struct {
	lib *library.Library
	t   *trackers.Trackers
	sim window.Simulation
}

func NewPowerProfiler(lib *library.Library, t *trackers.Trackers) *PowerProfiler {
	return &PowerProfiler{lib: lib, t: t}
}

func (p *PowerProfiler) Init(w window.Window, sim window.Simulation) error {
	p.sim = sim
	return nil
}

func (p *PowerProfiler) nodePower(ntk *network.Network, sig network.Signal) float64 {
	t, ok := p.sim.Values[sig]
	if !ok {
		return 0
	}
	return p.t.Load(sig) * float64(t.Switching())
}

func (p *PowerProfiler) Evaluate(ntk *network.Network, lib *library.Library, oldMFFC []network.NodeId, newRoot network.Signal, watermark network.NodeId) (float64, error) {
	p.t.Reset()
	var oldCost float64
	for _, id := range oldMFFC {
		oldCost += p.nodePower(ntk, network.NewSignal(id, 0))
	}
	newCost := p.nodePower(ntk, newRoot)
	return oldCost - newCost, nil
}

func (p *PowerProfiler) EvaluateRewiring(ntk *network.Network, lib *library.Library, pivot network.NodeId, oldChildren, newChildren []network.Signal) (float64, error) {
	p.t.Reset()
	var before, after float64
	for _, c := range oldChildren {
		before += p.t.Load(c) * float64(fallbackSwitching(p.sim, c))
	}
	for _, c := range newChildren {
		after += p.t.Load(c) * float64(fallbackSwitching(p.sim, c))
	}
	return before - after, nil
}

func fallbackSwitching(sim window.Simulation, sig network.Signal) int {
	if t, ok := sim.Values[sig]; ok {
		return t.Switching()
	}
	return 0
}

// TimeSteps is the bucket count the power profiler divides a window's
// [sensing, arrival] span into when reporting a per-timestep power
// histogram.
const TimeSteps = 16

// timestepOf places instant t on a TimeSteps-bucket axis spanning
// [windowSensing, windowArrival]: bucket 0 is the earliest-arriving
// glitch in the window, bucket TimeSteps-1 its settled value. A
// degenerate window (windowArrival <= windowSensing, e.g. a single-node
// window with nothing upstream to glitch against) always buckets to 0.
func timestepOf(t, windowSensing, windowArrival float64) int {
	if windowArrival <= windowSensing {
		return 0
	}
	frac := (t - windowSensing) / (windowArrival - windowSensing)
	step := int(math.Round(frac * float64(TimeSteps-1)))
	return clampStep(step)
}

func clampStep(v int) int {
	if v < 0 {
		return 0
	}
	if v > TimeSteps-1 {
		return TimeSteps - 1
	}
	return v
}

// Histogram buckets ids' power contribution by estimated switching
// instant, using the joint [sensing, arrival] span across ids as the
// window's time axis. Useful for the service layer's pass-progress
// reporting to show power concentrated early vs late
// in a pass.
func (p *PowerProfiler) Histogram(ntk *network.Network, ids []network.NodeId) [TimeSteps]float64 {
	var windowSensing, windowArrival float64
	first := true
	for _, id := range ids {
		sig := network.NewSignal(id, 0)
		s, a := p.t.Sensing(sig), p.t.Arrival(sig)
		if first {
			windowSensing, windowArrival = s, a
			first = false
			continue
		}
		if s < windowSensing {
			windowSensing = s
		}
		if a > windowArrival {
			windowArrival = a
		}
	}
	var hist [TimeSteps]float64
	for _, id := range ids {
		sig := network.NewSignal(id, 0)
		step := timestepOf(p.t.Arrival(sig), windowSensing, windowArrival)
		hist[step] += p.nodePower(ntk, sig)
	}
	return hist
}

func (p *PowerProfiler) ForeachGate(ntk *network.Network, maxNumRoots int, fn func(network.NodeId)) {
	for _, id := range sortedGateIDs(ntk, maxNumRoots, func(id network.NodeId) float64 {
		w := window.NewManager(ntk)
		wi := w.Build(id, window.Params{MaxNumLeaves: 1 << 20, MaxNumDivisors: 1 << 20})
		var total float64
		for _, m := range wi.MFFC {
			total += p.nodePower(ntk, network.NewSignal(m, 0))
		}
		return total
	}) {
		fn(id)
	}
}
