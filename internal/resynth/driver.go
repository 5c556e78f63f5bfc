// Package resynth implements the resynthesis driver:
// the outer per-pivot loop that ties the window manager, window
// simulator, dependency finder, LUT decomposer, mapped database, and
// profiler together, substituting the best positive-reward candidate it
// finds for each pivot's MFFC.
package resynth

import (
	"fmt"

	"github.com/rawblock/resynth-engine/internal/chain"
	"github.com/rawblock/resynth-engine/internal/config"
	"github.com/rawblock/resynth-engine/internal/database"
	"github.com/rawblock/resynth-engine/internal/decompose"
	"github.com/rawblock/resynth-engine/internal/dependency"
	"github.com/rawblock/resynth-engine/internal/diag"
	"github.com/rawblock/resynth-engine/internal/library"
	"github.com/rawblock/resynth-engine/internal/network"
	"github.com/rawblock/resynth-engine/internal/profiler"
	"github.com/rawblock/resynth-engine/internal/trackers"
	"github.com/rawblock/resynth-engine/internal/window"
)

// State names a pivot's position in the per-pivot state machine:
// idle -> window_built -> simulated -> scored ->
// {substituted | rejected}.
type State int

const (
	StateIdle State = iota
	StateWindowBuilt
	StateSimulated
	StateScored
	StateSubstituted
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWindowBuilt:
		return "window_built"
	case StateSimulated:
		return "simulated"
	case StateScored:
		return "scored"
	case StateSubstituted:
		return "substituted"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// PivotResult reports what happened to one pivot during a pass, used by
// the service layer to stream pass-progress events.
type PivotResult struct {
	Pivot  network.NodeId
	State  State
	Reward float64
	Kind   dependency.Kind
}

// Stats summarizes one completed pass over the network.
type Stats struct {
	PivotsVisited int
	Substitutions int
	TotalReward   float64
	Results       []PivotResult
}

// Driver orchestrates one resynthesis pass over a bound network using a
// single cost profiler (area, delay, or power).
type Driver struct {
	ntk  *network.Network
	lib  *library.Library
	db   *database.Database
	cfg  config.Config
	prof profiler.Profiler
	trk  *trackers.Trackers
	sink diag.Sink

	onPivot func(PivotResult)
}

// New returns a driver wired to ntk/lib/db under cfg, scoring candidates
// with prof and reporting recoverable conditions to sink.
func New(ntk *network.Network, lib *library.Library, db *database.Database, cfg config.Config, prof profiler.Profiler, trk *trackers.Trackers, sink diag.Sink) *Driver {
	return &Driver{ntk: ntk, lib: lib, db: db, cfg: cfg, prof: prof, trk: trk, sink: sink}
}

// OnPivot installs a callback invoked once per visited pivot, after its
// final state is known (used to stream PassProgress events over the
// service layer's websocket hub).
func (d *Driver) OnPivot(fn func(PivotResult)) { d.onPivot = fn }

// RunPass performs one full pass: the profiler orders live gates by
// priority, and each eligible one is built, simulated, scored, and
// substituted in place if a positive-reward candidate turns up.
func (d *Driver) RunPass() Stats {
	var stats Stats
	d.prof.ForeachGate(d.ntk, d.cfg.MaxNumRoots, func(pivot network.NodeId) {
		stats.PivotsVisited++
		res := d.visitPivot(pivot)
		stats.Results = append(stats.Results, res)
		if res.State == StateSubstituted {
			stats.Substitutions++
			stats.TotalReward += res.Reward
		}
		if d.onPivot != nil {
			d.onPivot(res)
		}
	})
	return stats
}

// visitPivot runs the full per-pivot algorithm: eligibility checks,
// window build, simulation, candidate scoring, substitution.
func (d *Driver) visitPivot(pivot network.NodeId) PivotResult {
	nd := d.ntk.Node(pivot)
	if nd.IsDead || nd.Kind != network.KindGate {
		return PivotResult{Pivot: pivot, State: StateIdle}
	}
	if len(nd.Outputs) != 1 {
		// Multi-output cell pivots aren't handled by the dependency finder
		// (it only inspects output pin 0); skip rather than substitute a
		// partial binding.
		return PivotResult{Pivot: pivot, State: StateRejected}
	}
	if d.cfg.FanoutLimit > 0 {
		total := 0
		d.ntk.ForeachOutput(pivot, func(sig network.Signal) { total += d.ntk.FanoutSize(sig) })
		if total > d.cfg.FanoutLimit {
			return PivotResult{Pivot: pivot, State: StateRejected}
		}
	}

	wm := window.NewManager(d.ntk)
	w := wm.Build(pivot, window.Params{
		ODCLevels:                  d.cfg.ODCLevels,
		MaxNumLeaves:               d.cfg.MaxNumLeaves,
		MaxNumDivisors:             d.cfg.MaxNumDivisors,
		SkipFanoutLimitForDivisors: d.cfg.SkipFanoutLimitForDivisors,
		PreserveDepth:              d.cfg.PreserveDepth,
	})
	if !w.Valid {
		return PivotResult{Pivot: pivot, State: StateRejected}
	}

	sim, err := window.Simulate(d.ntk, d.lib, w)
	if err != nil {
		d.sink.Emit(diag.Warning, "resynth: pivot %d: window simulate: %v", pivot, err)
		return PivotResult{Pivot: pivot, State: StateRejected}
	}
	if err := d.prof.Init(w, sim); err != nil {
		d.sink.Emit(diag.Warning, "resynth: pivot %d: profiler init: %v", pivot, err)
	}

	champ, err := d.scorePivot(pivot, w, sim)
	if err != nil {
		d.sink.Emit(diag.Warning, "resynth: pivot %d: %v", pivot, err)
		return PivotResult{Pivot: pivot, State: StateRejected}
	}
	if champ == nil || champ.reward <= d.cfg.Eps {
		if champ != nil {
			d.discardChampion(*champ)
		}
		return PivotResult{Pivot: pivot, State: StateRejected}
	}

	root := champ.root
	if champ.rewire {
		sig, err := network.CreateBoundNode(d.ntk, d.lib, champ.rewireLeaves, []chain.GateID{champ.rewireGate})
		if err != nil {
			d.sink.Emit(diag.Error, "resynth: pivot %d: materialize rewire candidate: %v", pivot, err)
			return PivotResult{Pivot: pivot, State: StateRejected}
		}
		root = sig
	}

	if err := d.ntk.SubstituteNode(pivot, []network.Signal{root}); err != nil {
		d.sink.Emit(diag.Error, "resynth: pivot %d: substitute: %v", pivot, err)
		d.discardChampion(*champ)
		return PivotResult{Pivot: pivot, State: StateRejected}
	}
	d.trk.Reset()

	return PivotResult{Pivot: pivot, State: StateSubstituted, Reward: champ.reward, Kind: champ.kind}
}

// candidate is one scored replacement for the pivot, either a lazily
// materialized rewire (no network write until chosen) or an
// already-written structural/window subnet (freed immediately if beaten).
type candidate struct {
	kind   dependency.Kind
	reward float64

	rewire       bool
	rewireLeaves []network.Signal
	rewireGate   chain.GateID

	root network.Signal
}

// discardChampion releases a structural/window candidate's written subnet
// when the driver ultimately rejects the pivot; a lazy rewire candidate
// was never written so there is nothing to release.
func (d *Driver) discardChampion(c candidate) {
	if c.rewire {
		return
	}
	if err := d.ntk.DiscardCandidate(c.root.Node()); err != nil {
		d.sink.Emit(diag.Warning, "resynth: discard candidate: %v", err)
	}
}

// scorePivot prefers a rewire candidate if
// try_rewire is enabled and one scores positively; otherwise fall back to
// structural/window cuts through the decomposer and database.
func (d *Driver) scorePivot(pivot network.NodeId, w window.Window, sim window.Simulation) (*candidate, error) {
	finder := dependency.New(d.ntk, d.lib, w, sim)
	lim := dependency.Limits{MaxCutsSize: d.cfg.MaxCutsSize, MaxCuts: d.cfg.MaxCubeSPFD}

	if d.cfg.TryRewire {
		var best *candidate
		for _, c := range finder.FindRewire(lim) {
			oldChildren := append([]network.Signal(nil), d.ntk.Fanins(pivot)...)
			reward, err := d.prof.EvaluateRewiring(d.ntk, d.lib, pivot, oldChildren, c.Leaves)
			if err != nil {
				d.sink.Emit(diag.Warning, "resynth: pivot %d: evaluate rewiring: %v", pivot, err)
				continue
			}
			if best == nil || reward > best.reward {
				best = &candidate{kind: c.Kind, reward: reward, rewire: true, rewireLeaves: c.Leaves, rewireGate: c.GateHint}
			}
		}
		if best != nil && best.reward > d.cfg.Eps {
			return best, nil
		}
	}

	var cuts []dependency.Cut
	if d.cfg.TryStruct {
		cuts = append(cuts, finder.FindStructural(lim)...)
	}
	if d.cfg.TryWindow {
		cuts = append(cuts, finder.FindWindow(lim)...)
	}

	var champion *candidate
	for _, c := range cuts {
		cand, err := d.tryCut(c, w.MFFC)
		if err != nil {
			continue
		}
		if champion == nil || cand.reward > champion.reward {
			if champion != nil {
				d.discardChampion(*champion)
			}
			champion = cand
		} else {
			d.discardChampion(*cand)
		}
	}
	return champion, nil
}

// tryCut decomposes one cut's function, writes the resulting chain of
// database matches into the host network, and scores the written root
// against oldMFFC.
func (d *Driver) tryCut(c dependency.Cut, oldMFFC []network.NodeId) (*candidate, error) {
	times := make([]float64, len(c.Leaves))
	for i, l := range c.Leaves {
		times[i] = d.trk.Arrival(l)
	}
	specs, err := decompose.Decompose(c.Func, c.Leaves, times, d.db.MaxVars())
	if err != nil {
		return nil, err
	}

	watermark := network.NodeId(d.ntk.NumNodes())
	root, err := d.writeChain(specs)
	if err != nil {
		// A partially-written chain may be left behind here; it has no
		// fanout, costs nothing to simulate or profile, and the next
		// pivot that happens to visit it will simply find it dead-ended
		// with no consumers and skip it.
		return nil, err
	}

	reward, err := d.prof.Evaluate(d.ntk, d.lib, oldMFFC, root, watermark)
	if err != nil {
		_ = d.ntk.DiscardCandidate(root.Node())
		return nil, err
	}
	return &candidate{kind: c.Kind, reward: reward, root: root}, nil
}

// writeChain writes a decomposed sequence of specs into the host network
// in order, resolving each spec's decompose.Placeholder inputs to the
// previous spec's written signal, and picking the lowest-area database
// entry at every intermediate stage (only the final stage's full Pareto
// front is explored, since every earlier stage merely supplies the same
// Boolean value at a different realized cost).
func (d *Driver) writeChain(specs []decompose.Spec) (network.Signal, error) {
	var last network.Signal
	var haveLast bool

	for i, spec := range specs {
		leaves := make([]network.Signal, len(spec.Inputs))
		times := make([]float64, len(spec.Inputs))
		for j, in := range spec.Inputs {
			if in == decompose.Placeholder {
				if !haveLast {
					return 0, fmt.Errorf("resynth: spec %d references a placeholder before any prior spec was written", i)
				}
				leaves[j] = last
				times[j] = d.trk.Arrival(last)
			} else {
				leaves[j] = in
				times[j] = d.trk.Arrival(in)
			}
		}

		match, ok := d.db.BooleanMatching(spec.Sim.Bits, times, leaves)
		if !ok || len(match.Row.Entries) == 0 {
			return 0, fmt.Errorf("resynth: no database match for spec %d", i)
		}

		final := i == len(specs)-1
		var sig network.Signal
		var werr error
		if final {
			sig, werr = d.writeBestEntry(match)
		} else {
			sig, werr = d.db.Write(d.ntk, lowestAreaEntry(match.Row.Entries), match.Leaves)
		}
		if werr != nil {
			return 0, werr
		}
		last, haveLast = sig, true
	}
	return last, nil
}

// writeBestEntry realizes every Pareto entry of the final spec's row in
// the host network, keeping only the lowest-area one and discarding the
// rest. Since every entry realizes the identical Boolean function,
// comparing their raw area is a sound proxy here; the driver's own
// profiler.Evaluate call against the chosen entry is what ultimately
// decides whether the pivot gets substituted.
func (d *Driver) writeBestEntry(match database.MatchResult) (network.Signal, error) {
	var bestSig network.Signal
	haveBest := false
	bestArea := 0.0
	for _, e := range match.Row.Entries {
		sig, err := d.db.Write(d.ntk, e, match.Leaves)
		if err != nil {
			return 0, err
		}
		if !haveBest || e.Area < bestArea {
			if haveBest {
				_ = d.ntk.DiscardCandidate(bestSig.Node())
			}
			bestSig, bestArea, haveBest = sig, e.Area, true
			continue
		}
		_ = d.ntk.DiscardCandidate(sig.Node())
	}
	if !haveBest {
		return 0, fmt.Errorf("resynth: row has no entries")
	}
	return bestSig, nil
}

func lowestAreaEntry(entries []database.Entry) database.Entry {
	best := entries[0]
	for _, e := range entries[1:] {
		if e.Area < best.Area {
			best = e
		}
	}
	return best
}
