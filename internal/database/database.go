// Package database implements the mapped database: a collection of
// Pareto rows keyed by P-canonical truth table, each holding
// library-gate-bound implementations in an internal bound
// network under a fixed canonical PI vector, plus the Boolean-matching
// path a query function uses to find candidate entries.
package database

import (
	"fmt"
	"sort"

	"github.com/rawblock/resynth-engine/internal/chain"
	"github.com/rawblock/resynth-engine/internal/library"
	"github.com/rawblock/resynth-engine/internal/network"
	"github.com/rawblock/resynth-engine/internal/simulator"
	"github.com/rawblock/resynth-engine/internal/ttable"
)

// Entry is one Pareto-front member of a row.
type Entry struct {
	Area    float64
	Switches int
	Delays  []float64
	Impl    network.Signal
}

// dominates reports whether a is at least as good as b on every metric
// and strictly better on at least one.
func dominates(a, b Entry) bool {
	if !weaklyDominates(a, b) {
		return false
	}
	if a.Area < b.Area || a.Switches < b.Switches {
		return true
	}
	for i := range a.Delays {
		if a.Delays[i] < b.Delays[i] {
			return true
		}
	}
	return false
}

// weaklyDominates reports whether a is at least as good as b everywhere,
// ties included. An incoming entry weakly dominated by an existing one is
// rejected, which is what makes Add idempotent: re-adding an identical
// chain ties on every metric and is discarded.
func weaklyDominates(a, b Entry) bool {
	if a.Area > b.Area || a.Switches > b.Switches {
		return false
	}
	for i := range a.Delays {
		if a.Delays[i] > b.Delays[i] {
			return false
		}
	}
	return true
}

// Row is a canonical-class Pareto front.
type Row struct {
	Repr     ttable.Table
	Symmetry [][]int
	Entries  []Entry
}

type matchEntry struct {
	rowID int
	perm  []int
}

// Database holds the Pareto rows and the internal network that stores
// every row's implementations under one shared canonical PI vector.
type Database struct {
	lib      *library.Library
	maxVars  int
	ntk      *network.Network
	canonPIs []network.Signal

	rows        []*Row
	rowByRepr   map[string]int
	funcToMatch map[string]matchEntry
}

// New returns an empty database whose internal network exposes maxVars
// canonical primary inputs.
func New(lib *library.Library, maxVars int) *Database {
	ntk := network.New()
	pis := make([]network.Signal, maxVars)
	for i := 0; i < maxVars; i++ {
		pis[i] = ntk.CreatePi()
	}
	return &Database{
		lib:         lib,
		maxVars:     maxVars,
		ntk:         ntk,
		canonPIs:    pis,
		rowByRepr:   make(map[string]int),
		funcToMatch: make(map[string]matchEntry),
	}
}

// MaxVars returns the canonical PI vector width.
func (db *Database) MaxVars() int { return db.maxVars }

// Rows exposes the current row set (read-only).
func (db *Database) Rows() []*Row { return db.rows }

// funcKey qualifies a table's hex rendering with its variable count, so
// functions of different arity whose bit patterns coincide never share a
// cache slot or a row.
func funcKey(tt ttable.Table) string {
	return fmt.Sprintf("%d:%s", tt.NumVars(), tt.String())
}

func (db *Database) lookupOrCompute(tt ttable.Table) (matchEntry, bool) {
	key := funcKey(tt)
	if fm, ok := db.funcToMatch[key]; ok {
		return fm, true
	}
	canon := ttable.PCanonize(tt)
	rowID, found := db.rowByRepr[funcKey(canon.Repr)]
	if !found {
		return matchEntry{}, false
	}
	fm := matchEntry{rowID: rowID, perm: canon.InputPerm}
	db.funcToMatch[key] = fm
	return fm, true
}

// Add inserts chain c. Returns whether the
// database changed.
func (db *Database) Add(c chain.Chain) (bool, error) {
	if c.NumInputs > db.maxVars {
		return false, fmt.Errorf("database: add: chain has %d inputs, database max_num_vars is %d", c.NumInputs, db.maxVars)
	}
	inputs := make([]ttable.Table, c.NumInputs)
	for i := range inputs {
		inputs[i] = ttable.Proj(c.NumInputs, i)
	}
	res, err := simulator.Simulate(db.lib, c, inputs)
	if err != nil {
		return false, fmt.Errorf("database: add: %w", err)
	}
	outs := res.Outputs(c)
	if len(outs) != 1 {
		return false, fmt.Errorf("database: add: expects a single-output chain, got %d outputs", len(outs))
	}
	tt := outs[0]

	var row *Row
	var perm []int
	if fm, ok := db.lookupOrCompute(tt); ok {
		row = db.rows[fm.rowID]
		perm = fm.perm
	} else {
		canon := ttable.PCanonize(tt)
		row = &Row{Repr: canon.Repr, Symmetry: ttable.SymmetricGroups(canon.Repr)}
		db.rows = append(db.rows, row)
		rowID := len(db.rows) - 1
		db.rowByRepr[funcKey(canon.Repr)] = rowID
		perm = canon.InputPerm
		db.funcToMatch[funcKey(tt)] = matchEntry{rowID: rowID, perm: perm}
	}

	canonChain := c.PermCanonize(padPerm(perm, c.NumInputs))
	impl, err := network.Insert(db.ntk, db.lib, db.canonPIs[:c.NumInputs], canonChain)
	if err != nil {
		return false, fmt.Errorf("database: add: inserting into internal network: %w", err)
	}
	area, delays := chainCost(db.lib, canonChain)
	switches, err := simulator.Switching(db.lib, canonChain, inputs)
	if err != nil {
		return false, fmt.Errorf("database: add: %w", err)
	}
	candidate := Entry{Area: area, Switches: switches, Delays: delays, Impl: impl}

	for _, e := range row.Entries {
		if weaklyDominates(e, candidate) {
			_ = db.ntk.DiscardCandidate(impl.Node())
			return false, nil
		}
	}
	var kept []Entry
	for _, e := range row.Entries {
		if dominates(candidate, e) {
			if err := db.ntk.SubstituteNode(e.Impl.Node(), []network.Signal{impl}); err != nil {
				return false, fmt.Errorf("database: add: redirecting dominated entry: %w", err)
			}
			continue
		}
		kept = append(kept, e)
	}
	kept = append(kept, candidate)
	row.Entries = kept
	return true, nil
}

// padPerm extends perm (over the function's support) with an identity
// tail so it can be applied to a chain declaring exactly n inputs.
func padPerm(perm []int, n int) []int {
	if len(perm) >= n {
		return perm[:n]
	}
	out := append([]int(nil), perm...)
	for i := len(perm); i < n; i++ {
		out = append(out, i)
	}
	return out
}

// chainCost computes a candidate's area (sum of gate areas) and, per
// declared output, the critical-path delay reaching it — a forward max
// over fanins of (arrival(fanin) + pin delay), mirroring the trackers
// package's Arrival propagation but over a chain instead of a network.
func chainCost(lib *library.Library, c chain.Chain) (float64, []float64) {
	arrival := make([]float64, c.NumInputs+len(c.Nodes))
	var area float64
	for i, g := range c.Nodes {
		if g.Binding.Kind != chain.BindingGate {
			continue
		}
		gate := lib.Gate(g.Binding.GateID)
		area += gate.Area
		var maxIn float64
		for j, fin := range g.Fanins {
			d := arrival[fin.Index()] + gate.Pins[j].AvgDelay()
			if d > maxIn {
				maxIn = d
			}
		}
		arrival[c.NumInputs+i] = maxIn
	}
	delays := make([]float64, len(c.Outputs))
	for i, o := range c.Outputs {
		delays[i] = arrival[o.Index()]
	}
	return area, delays
}

// MatchResult is the outcome of BooleanMatching: the matched row plus the
// caller's leaves/times reordered into the row's canonical pin order.
type MatchResult struct {
	Row    *Row
	Leaves []network.Signal
	Times  []float64
}

// BooleanMatching looks up q's canonical row, permutes leaves/times into
// the row's pin order, then reorders each symmetric group by descending
// arrival time so the latest-arriving input lands on the group's first
// (by convention, fastest) slot.
func (db *Database) BooleanMatching(q ttable.Table, times []float64, leaves []network.Signal) (MatchResult, bool) {
	fm, ok := db.lookupOrCompute(q)
	if !ok {
		return MatchResult{}, false
	}
	row := db.rows[fm.rowID]
	perm := padPerm(fm.perm, len(leaves))

	permLeaves := make([]network.Signal, len(leaves))
	permTimes := make([]float64, len(times))
	for i, p := range perm {
		permLeaves[p] = leaves[i]
		permTimes[p] = times[i]
	}
	for _, group := range row.Symmetry {
		if len(group) < 2 {
			continue
		}
		slots := append([]int(nil), group...)
		sort.Ints(slots) // ascending slot index is this database's fastest-to-slowest pin convention

		type assignment struct {
			leaf network.Signal
			time float64
		}
		pairs := make([]assignment, len(slots))
		for i, s := range slots {
			pairs[i] = assignment{permLeaves[s], permTimes[s]}
		}
		sort.Slice(pairs, func(a, b int) bool { return pairs[a].time > pairs[b].time })
		for i, s := range slots {
			permLeaves[s] = pairs[i].leaf
			permTimes[s] = pairs[i].time
		}
	}
	return MatchResult{Row: row, Leaves: permLeaves, Times: permTimes}, true
}

// Write instantiates entry's implementation tree into host, mapping the
// database's canonical PIs to leaves. Structural
// hashing during Insert dedups against whatever host already contains.
func (db *Database) Write(host *network.Network, e Entry, leaves []network.Signal) (network.Signal, error) {
	c, err := network.Extract(db.ntk, db.canonPIs[:len(leaves)], e.Impl)
	if err != nil {
		return 0, fmt.Errorf("database: write: extracting canonical impl: %w", err)
	}
	sig, err := network.Insert(host, db.lib, leaves, c)
	if err != nil {
		return 0, fmt.Errorf("database: write: %w", err)
	}
	return sig, nil
}
