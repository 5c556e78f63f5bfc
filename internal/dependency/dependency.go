// Package dependency implements the dependency finder:
// given a built, simulated window, enumerates candidate cuts a
// replacement for the pivot could realize. Three strategies are
// supported — rewire, structural, and window (non-structural) — each
// stopping at a bound on the number of cuts produced.
package dependency

import (
	"sort"

	"github.com/rawblock/resynth-engine/internal/chain"
	"github.com/rawblock/resynth-engine/internal/library"
	"github.com/rawblock/resynth-engine/internal/network"
	"github.com/rawblock/resynth-engine/internal/ttable"
	"github.com/rawblock/resynth-engine/internal/window"
)

// Kind identifies the strategy that produced a Cut.
type Kind int

const (
	Rewire Kind = iota
	Structural
	Window
)

func (k Kind) String() string {
	switch k {
	case Rewire:
		return "rewire"
	case Structural:
		return "structural"
	case Window:
		return "window"
	default:
		return "unknown"
	}
}

// Cut is a candidate (leaves, function) pair a replacement must realize.
type Cut struct {
	Kind     Kind
	Root     network.NodeId
	Leaves   []network.Signal
	GateHint chain.GateID // valid only for Rewire cuts: the pivot's existing binding
	Func     ttable.Ternary
}

// Limits bounds the work each strategy performs.
type Limits struct {
	MaxCutsSize int
	MaxCuts     int
}

// Finder enumerates cuts over one window/simulation pair.
type Finder struct {
	ntk *network.Network
	lib *library.Library
	w   window.Window
	sim window.Simulation
}

// New returns a Finder bound to a built, simulated window.
func New(ntk *network.Network, lib *library.Library, w window.Window, sim window.Simulation) *Finder {
	return &Finder{ntk: ntk, lib: lib, w: w, sim: sim}
}

// FindRewire enumerates alternative fanin sets for the pivot that realize
// the same (or DC-equivalent) function while keeping the pivot's existing
// gate binding: every permutation of the current divisor pool, taken
// Arity() at a time, whose joint signature dominates the pivot's output
// signature under the window's care mask.
func (f *Finder) FindRewire(lim Limits) []Cut {
	nd := f.ntk.Node(f.w.Pivot)
	if nd.Kind != network.KindGate {
		return nil
	}
	arity := len(nd.Fanins)
	target := f.pivotTernary()
	gid := nd.Outputs[0].GateID
	fn := f.lib.Gate(gid).OutputFn

	var cuts []Cut
	var combo func(start int, chosen []network.Signal)
	combo = func(start int, chosen []network.Signal) {
		if len(cuts) >= lim.MaxCuts {
			return
		}
		if len(chosen) == arity {
			permuteSignals(chosen, func(order []network.Signal) {
				if len(cuts) >= lim.MaxCuts {
					return
				}
				tables := make([]ttable.Table, len(order))
				for i, s := range order {
					tables[i] = f.sim.Values[s]
				}
				cand := ttable.Compose(fn, tables)
				if target.Dominates(cand) {
					cuts = append(cuts, Cut{Kind: Rewire, Root: f.w.Pivot, Leaves: append([]network.Signal(nil), order...), GateHint: gid, Func: target})
				}
			})
			return
		}
		for i := start; i < len(f.w.Divisors); i++ {
			combo(i+1, append(chosen, f.w.Divisors[i]))
		}
	}
	combo(0, nil)
	return cuts
}

// pivotTernary returns the pivot's current output function as an
// all-cared ternary table intersected with the window's observability
// care mask.
func (f *Finder) pivotTernary() ttable.Ternary {
	sig := network.NewSignal(f.w.Pivot, 0)
	nominal := f.sim.Values[sig]
	return ttable.Ternary{Bits: nominal, Care: f.sim.Care}
}

func permuteSignals(in []network.Signal, fn func([]network.Signal)) {
	n := len(in)
	cur := append([]network.Signal(nil), in...)
	var rec func(k int)
	rec = func(k int) {
		if k == n {
			fn(cur)
			return
		}
		for i := k; i < n; i++ {
			cur[k], cur[i] = cur[i], cur[k]
			rec(k + 1)
			cur[k], cur[i] = cur[i], cur[k]
		}
	}
	rec(0)
}

// FindStructural enumerates structural cuts rooted at the pivot of size
// up to lim.MaxCutsSize via bottom-up cut enumeration: the trivial
// singleton cut at every window node, merged pairwise along fanins up to
// the size bound.
func (f *Finder) FindStructural(lim Limits) []Cut {
	cutsOf := make(map[network.NodeId][][]network.Signal)
	var windowMembers = make(map[network.NodeId]bool)
	for _, id := range f.w.MFFC {
		windowMembers[id] = true
	}
	for _, id := range f.w.TFO {
		windowMembers[id] = true
	}

	var order []network.NodeId
	order = append(order, f.w.MFFC...)
	sort.Slice(order, func(i, j int) bool { return f.ntk.Level(order[i]) < f.ntk.Level(order[j]) })

	var computeCuts func(id network.NodeId) [][]network.Signal
	computeCuts = func(id network.NodeId) [][]network.Signal {
		if c, ok := cutsOf[id]; ok {
			return c
		}
		trivial := []network.Signal{network.NewSignal(id, 0)}
		all := [][]network.Signal{trivial}
		nd := f.ntk.Node(id)
		if nd.Kind == network.KindGate && windowMembers[id] {
			faninCuts := make([][][]network.Signal, len(nd.Fanins))
			for i, fin := range nd.Fanins {
				if windowMembers[fin.Node()] {
					faninCuts[i] = computeCuts(fin.Node())
				} else {
					faninCuts[i] = [][]network.Signal{{fin}}
				}
			}
			for _, merged := range cartesianMerge(faninCuts, lim.MaxCutsSize) {
				all = append(all, merged)
			}
		}
		cutsOf[id] = all
		return all
	}

	var result []Cut
	raw := computeCuts(f.w.Pivot)
	for _, leaves := range raw {
		if len(result) >= lim.MaxCuts {
			break
		}
		if len(leaves) > lim.MaxCutsSize {
			continue
		}
		if !allDivisors(f.w.Divisors, leaves) {
			continue
		}
		fn, ok := f.projectFunc(leaves)
		if !ok {
			continue
		}
		result = append(result, Cut{Kind: Structural, Root: f.w.Pivot, Leaves: leaves, Func: fn})
	}
	return result
}

func allDivisors(divisors, leaves []network.Signal) bool {
	set := make(map[network.Signal]bool, len(divisors))
	for _, d := range divisors {
		set[d] = true
	}
	for _, l := range leaves {
		if !set[l] {
			return false
		}
	}
	return true
}

// cartesianMerge unions every combination of one cut per fanin slot,
// deduplicating leaves, dropping any merge exceeding maxSize.
func cartesianMerge(perFanin [][][]network.Signal, maxSize int) [][]network.Signal {
	var out [][]network.Signal
	var rec func(i int, acc map[network.Signal]bool)
	rec = func(i int, acc map[network.Signal]bool) {
		if i == len(perFanin) {
			leaves := make([]network.Signal, 0, len(acc))
			for s := range acc {
				leaves = append(leaves, s)
			}
			sort.Slice(leaves, func(a, b int) bool { return leaves[a] < leaves[b] })
			out = append(out, leaves)
			return
		}
		for _, c := range perFanin[i] {
			next := make(map[network.Signal]bool, len(acc)+len(c))
			for s := range acc {
				next[s] = true
			}
			for _, s := range c {
				next[s] = true
			}
			if len(next) > maxSize {
				continue
			}
			rec(i+1, next)
		}
	}
	rec(0, map[network.Signal]bool{})
	return out
}

// projectFunc re-expresses the pivot's (care-masked) value as a ternary
// function over exactly the cut's leaves. For every cared window input
// assignment x, the leaves' simulated tables give a local assignment b;
// the cut function must take the pivot's value at every such b. Two
// cared assignments that agree on the leaves but disagree at the pivot
// mean the leaves do not determine the pivot and the cut is rejected,
// which doubles as the signature-containment prune. Local
// assignments never reached by a cared x stay don't-care.
func (f *Finder) projectFunc(leaves []network.Signal) (ttable.Ternary, bool) {
	if len(f.w.Outputs) == 0 {
		return ttable.Ternary{}, false
	}
	pivotSig := network.NewSignal(f.w.Pivot, 0)
	target, ok := f.sim.Values[pivotSig]
	if !ok {
		return ttable.Ternary{}, false
	}
	leafTables := make([]ttable.Table, len(leaves))
	for i, l := range leaves {
		t, ok := f.sim.Values[l]
		if !ok {
			return ttable.Ternary{}, false
		}
		leafTables[i] = t
	}

	k := len(leaves)
	bits := ttable.New(k)
	care := ttable.New(k)
	nb := 1 << uint(f.sim.NVars)
	for x := 0; x < nb; x++ {
		if !f.sim.Care.Bit(x) {
			continue
		}
		idx := 0
		for i := range leafTables {
			if leafTables[i].Bit(x) {
				idx |= 1 << uint(i)
			}
		}
		v := target.Bit(x)
		if care.Bit(idx) {
			if bits.Bit(idx) != v {
				return ttable.Ternary{}, false
			}
			continue
		}
		care.SetBit(idx)
		if v {
			bits.SetBit(idx)
		}
	}
	return ttable.Ternary{Bits: bits, Care: care}, true
}

// FindWindow enumerates non-structural cuts: every subset of divisors up
// to lim.MaxCutsSize whose simulated joint signature dominates the
// output signature under the care mask. Each subset is tested on its
// own; a rejected subset does not prune its supersets from the search.
func (f *Finder) FindWindow(lim Limits) []Cut {
	var result []Cut
	n := len(f.w.Divisors)
	var combo func(start int, chosen []network.Signal)
	combo = func(start int, chosen []network.Signal) {
		if len(result) >= lim.MaxCuts {
			return
		}
		if len(chosen) > 0 && len(chosen) <= lim.MaxCutsSize {
			fn, ok := f.projectFunc(chosen)
			if ok {
				result = append(result, Cut{Kind: Window, Root: f.w.Pivot, Leaves: append([]network.Signal(nil), chosen...), Func: fn})
			}
		}
		if len(chosen) >= lim.MaxCutsSize {
			return
		}
		for i := start; i < n; i++ {
			combo(i+1, append(chosen, f.w.Divisors[i]))
		}
	}
	combo(0, nil)
	return result
}
