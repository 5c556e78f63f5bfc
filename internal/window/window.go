// Package window implements the window manager and window simulator:
// for a pivot node, collects its MFFC, the forward cone up to
// odc_levels hops (TFO), the divisor pool, and the
// leaf (input) boundary, then assigns each leaf a distinct projection
// truth table and propagates it through the window to compute the joint
// Boolean contract the pivot's replacement must honor.
package window

import (
	"sort"

	"github.com/rawblock/resynth-engine/internal/network"
)

// Params are the per-pivot bounds for window extraction.
type Params struct {
	ODCLevels                  int
	MaxNumLeaves               int
	MaxNumDivisors             int
	SkipFanoutLimitForDivisors int
	PreserveDepth              bool
}

// Window is the bounded neighborhood around a pivot.
type Window struct {
	Pivot     network.NodeId
	MFFC      []network.NodeId
	TFO       []network.NodeId
	Outputs   []network.Signal
	Inputs    []network.Signal
	Divisors  []network.Signal
	Valid     bool
}

// Manager builds windows, reusing a private epoch-painted membership map
// across calls so repeated Build invocations don't need to clear state
// between pivots: incrementing the epoch invalidates all old marks in
// O(1).
type Manager struct {
	ntk   *network.Network
	epoch uint64
	paint map[network.NodeId]paintedRole
}

type role uint8

const (
	roleMFFC role = 1 << iota
	roleTFO
)

type paintedRole struct {
	epoch uint64
	roles role
}

// NewManager returns a window manager over ntk.
func NewManager(ntk *network.Network) *Manager {
	return &Manager{ntk: ntk, paint: make(map[network.NodeId]paintedRole)}
}

func (m *Manager) has(id network.NodeId, r role) bool {
	p, ok := m.paint[id]
	return ok && p.epoch == m.epoch && p.roles&r != 0
}

func (m *Manager) mark(id network.NodeId, r role) {
	p := m.paint[id]
	if p.epoch != m.epoch {
		p = paintedRole{epoch: m.epoch}
	}
	p.roles |= r
	m.paint[id] = p
}

func (m *Manager) inWindow(id network.NodeId) bool {
	return m.has(id, roleMFFC) || m.has(id, roleTFO)
}

// Build computes the window rooted at pivot.
func (m *Manager) Build(pivot network.NodeId, p Params) Window {
	m.epoch++
	m.mark(pivot, roleMFFC)

	m.collectMFFC(pivot)
	if p.ODCLevels > 0 {
		m.collectTFO(pivot, p.ODCLevels)
	}

	w := Window{Pivot: pivot}
	for id, pr := range m.paint {
		if pr.epoch != m.epoch {
			continue
		}
		if pr.roles&roleMFFC != 0 {
			w.MFFC = append(w.MFFC, id)
		}
		if pr.roles&roleTFO != 0 {
			w.TFO = append(w.TFO, id)
		}
	}

	w.Inputs = m.collectInputs(w.MFFC, w.TFO)
	w.Outputs = m.collectOutputs(w.MFFC, w.TFO)
	w.Divisors, w.Inputs = m.expandDivisors(w, p)

	sortNodesByLevel(m.ntk, w.MFFC)
	sortNodesByLevel(m.ntk, w.TFO)
	sortSignalsByLevel(m.ntk, w.Inputs)
	sortSignalsByLevel(m.ntk, w.Outputs)
	sortSignalsByLevel(m.ntk, w.Divisors)

	w.Valid = len(w.Inputs) <= p.MaxNumLeaves && len(w.Divisors) <= p.MaxNumDivisors
	return w
}

// collectMFFC grows the MFFC to its declarative fixed point: a fanin joins iff it is not a PI, not yet in the window, not a
// PO, and every one of its live fanouts already belongs to the MFFC. Uses
// an explicit worklist + changed flag rather than a short-circuiting
// accumulator that can stop prematurely.
func (m *Manager) collectMFFC(pivot network.NodeId) {
	changed := true
	for changed {
		changed = false
		var members []network.NodeId
		for id, pr := range m.paint {
			if pr.epoch == m.epoch && pr.roles&roleMFFC != 0 {
				members = append(members, id)
			}
		}
		for _, mid := range members {
			m.ntk.ForeachFanin(mid, func(f network.Signal) {
				fn := f.Node()
				if m.has(fn, roleMFFC) || m.ntk.IsPi(fn) || m.ntk.IsConstant(fn) || m.ntk.IsPo(fn) {
					return
				}
				if m.allFanoutIn(fn, roleMFFC) {
					m.mark(fn, roleMFFC)
					changed = true
				}
			})
		}
	}
}

// allFanoutIn reports whether every live consumer, across every output
// pin of id, already carries role r.
func (m *Manager) allFanoutIn(id network.NodeId, r role) bool {
	ok := true
	m.ntk.ForeachOutput(id, func(sig network.Signal) {
		m.ntk.ForeachFanout(sig, func(c network.NodeId) {
			if !m.has(c, r) {
				ok = false
			}
		})
	})
	return ok
}

// collectTFO performs a bounded forward BFS from pivot, up to depth
// odcLevels.
func (m *Manager) collectTFO(pivot network.NodeId, odcLevels int) {
	frontier := []network.NodeId{pivot}
	for level := 0; level < odcLevels && len(frontier) > 0; level++ {
		var next []network.NodeId
		for _, n := range frontier {
			m.ntk.ForeachOutput(n, func(sig network.Signal) {
				m.ntk.ForeachFanout(sig, func(c network.NodeId) {
					if m.has(c, roleTFO) || m.has(c, roleMFFC) {
						return
					}
					m.mark(c, roleTFO)
					if !m.ntk.IsPo(c) {
						next = append(next, c)
					}
				})
			})
		}
		frontier = next
	}
}

// collectInputs returns the boundary signals of the window: fanins of
// MFFC/TFO members that are not themselves in the window.
func (m *Manager) collectInputs(mffc, tfo []network.NodeId) []network.Signal {
	seen := make(map[network.Signal]bool)
	var inputs []network.Signal
	add := func(id network.NodeId) {
		m.ntk.ForeachFanin(id, func(f network.Signal) {
			fn := f.Node()
			if m.ntk.IsConstant(fn) || m.inWindow(fn) {
				return
			}
			if !seen[f] {
				seen[f] = true
				inputs = append(inputs, f)
			}
		})
	}
	for _, id := range mffc {
		add(id)
	}
	for _, id := range tfo {
		if !m.ntk.IsPo(id) {
			add(id)
		}
	}
	return inputs
}

// collectOutputs returns the boundary signals the window's replacement
// must reproduce: every output-pin signal of an MFFC/TFO member with at
// least one live consumer outside the window. This is also
// correct for the ODCLevels==0 case ("if TFO is empty, the pivot's own
// outputs"): with TFO empty, the pivot's own fanout consumers (if any)
// are by construction outside the window, so they surface here without a
// special case; the pivot's POs-inside-the-TFO case is likewise covered
// since a PO consumer is never itself marked MFFC/TFO.
func (m *Manager) collectOutputs(mffc, tfo []network.NodeId) []network.Signal {
	var outputs []network.Signal
	check := func(id network.NodeId) {
		if m.ntk.IsPo(id) {
			return
		}
		m.ntk.ForeachOutput(id, func(sig network.Signal) {
			external := false
			m.ntk.ForeachFanout(sig, func(c network.NodeId) {
				// A PO consumer is always an outward boundary, even when
				// the PO node itself was swept into the TFO.
				if !m.inWindow(c) || m.ntk.IsPo(c) {
					external = true
				}
			})
			if external {
				outputs = append(outputs, sig)
			}
		})
	}
	for _, id := range mffc {
		check(id)
	}
	for _, id := range tfo {
		check(id)
	}
	return outputs
}

// expandDivisors repeatedly grows the divisor
// pool with fanouts whose fanins are already divisors/leaves, then grows
// the leaf set by replacing an input with its own fanins whenever that is
// leaf-count negative, until neither step is profitable or the bounds are
// reached. Returns the final divisor pool and the (possibly reshaped)
// leaf set.
func (m *Manager) expandDivisors(w Window, p Params) ([]network.Signal, []network.Signal) {
	inSet := make(map[network.Signal]bool, len(w.Inputs))
	leaves := append([]network.Signal(nil), w.Inputs...)
	for _, s := range leaves {
		inSet[s] = true
	}
	divSet := make(map[network.Signal]bool, len(leaves))
	for _, s := range leaves {
		divSet[s] = true
	}
	divisors := append([]network.Signal(nil), leaves...)

	maxOutLevel := 0
	for _, o := range w.Outputs {
		if l := m.ntk.Level(o.Node()); l > maxOutLevel {
			maxOutLevel = l
		}
	}

	changed := true
	for changed && len(divisors) < p.MaxNumDivisors {
		changed = false

		// (a) grow divisors: fanouts of current divisors whose fanins are
		// all already divisors/leaves.
		candidates := make(map[network.NodeId]bool)
		for _, d := range divisors {
			m.ntk.ForeachOutput(d.Node(), func(sig network.Signal) {
				m.ntk.ForeachFanout(sig, func(c network.NodeId) {
					if m.inWindow(c) {
						return
					}
					candidates[c] = true
				})
			})
		}
		for c := range candidates {
			if m.inWindow(c) {
				continue
			}
			if p.SkipFanoutLimitForDivisors > 0 {
				total := 0
				m.ntk.ForeachOutput(c, func(sig network.Signal) { total += m.ntk.FanoutSize(sig) })
				if total > p.SkipFanoutLimitForDivisors {
					continue
				}
			}
			if p.PreserveDepth && m.ntk.Level(c) >= maxOutLevel && maxOutLevel > 0 {
				continue
			}
			allFaninsDivisors := true
			m.ntk.ForeachFanin(c, func(f network.Signal) {
				if !divSet[f] && !m.ntk.IsConstant(f.Node()) {
					allFaninsDivisors = false
				}
			})
			if !allFaninsDivisors {
				continue
			}
			added := false
			m.ntk.ForeachOutput(c, func(sig network.Signal) {
				if !divSet[sig] && len(divisors) < p.MaxNumDivisors {
					divSet[sig] = true
					divisors = append(divisors, sig)
					added = true
				}
			})
			if added {
				changed = true
			}
		}

		// (b) grow leaves: replace the most profitable leaf with its
		// fanins, only when that strictly reduces the leaf count.
		bestIdx, bestCost, bestFanins := -1, 0, []network.Signal(nil)
		for i, l := range leaves {
			nd := m.ntk.Node(l.Node())
			if nd.Kind != network.KindGate {
				continue
			}
			fanins := m.ntk.Fanins(l.Node())
			newCount := 0
			for _, f := range fanins {
				if !inSet[f] {
					newCount++
				}
			}
			cost := newCount - 1
			if bestIdx == -1 || cost < bestCost {
				bestIdx, bestCost, bestFanins = i, cost, fanins
			}
		}
		if bestIdx != -1 && bestCost < 0 && len(leaves)-1+len(bestFanins) <= p.MaxNumLeaves {
			removed := leaves[bestIdx]
			leaves = append(leaves[:bestIdx], leaves[bestIdx+1:]...)
			delete(inSet, removed)
			for _, f := range bestFanins {
				if !inSet[f] {
					inSet[f] = true
					leaves = append(leaves, f)
				}
				if !divSet[f] {
					divSet[f] = true
					divisors = append(divisors, f)
				}
			}
			changed = true
		}
	}

	return divisors, leaves
}

func sortNodesByLevel(ntk *network.Network, ids []network.NodeId) {
	sort.Slice(ids, func(i, j int) bool { return ntk.Level(ids[i]) < ntk.Level(ids[j]) })
}

func sortSignalsByLevel(ntk *network.Network, sigs []network.Signal) {
	sort.Slice(sigs, func(i, j int) bool { return ntk.Level(sigs[i].Node()) < ntk.Level(sigs[j].Node()) })
}
