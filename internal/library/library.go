// Package library holds the augmented standard-cell library: per-gate
// area, pin delays, output function, and the precomputed inner AND/XOR
// chain the simulator uses to evaluate the gate without
// special-casing it.
//
// File parsing (GenLib and friends) happens outside this package: a
// Library is built in memory from already-decoded Gate values,
// the way the core receives it from its caller.
package library

import (
	"fmt"

	"github.com/rawblock/resynth-engine/internal/chain"
	"github.com/rawblock/resynth-engine/internal/ttable"
)

// Pin is one input pin of a library gate.
type Pin struct {
	Name           string
	RiseDelay      float64
	FallDelay      float64
	RiseCapacitance float64
	FallCapacitance float64
}

// AvgDelay returns the mean of rise and fall delay, the single scalar most
// trackers use when they don't need rise/fall distinction.
func (p Pin) AvgDelay() float64 { return (p.RiseDelay + p.FallDelay) / 2 }

// AvgCapacitance returns the mean of rise and fall pin capacitance.
func (p Pin) AvgCapacitance() float64 { return (p.RiseCapacitance + p.FallCapacitance) / 2 }

// Gate is one cell (or one output of a multi-output cell) in the library.
type Gate struct {
	ID         chain.GateID
	Name       string
	CellName   string // shared across the outputs of a multi-output cell
	Area       float64
	OutputFn   ttable.Table
	Pins       []Pin
	InnerChain chain.Chain // pre-decomposed AND/XOR realization of OutputFn
}

// Arity returns the number of input pins (== OutputFn.NumVars()).
func (g Gate) Arity() int { return len(g.Pins) }

// Library is an immutable collection of gates, indexed for lookup by id,
// name, and cell (for multi-output grouping).
type Library struct {
	gates    []Gate
	byName   map[string]chain.GateID
	byCell   map[string][]chain.GateID
}

// New builds a Library from a caller-supplied gate list. Gate.ID fields are
// assigned densely in declaration order; any IDs in the input are ignored
// and overwritten, so callers can pass zero-valued IDs.
func New(gates []Gate) (*Library, error) {
	lib := &Library{
		byName: make(map[string]chain.GateID, len(gates)),
		byCell: make(map[string][]chain.GateID),
	}
	for i := range gates {
		g := gates[i]
		g.ID = chain.GateID(i)
		if g.Arity() != g.OutputFn.NumVars() {
			return nil, fmt.Errorf("library: gate %q declares %d pins but output_fn has %d vars", g.Name, g.Arity(), g.OutputFn.NumVars())
		}
		if _, dup := lib.byName[g.Name]; dup {
			return nil, fmt.Errorf("library: duplicate gate name %q", g.Name)
		}
		cell := g.CellName
		if cell == "" {
			cell = g.Name
		}
		g.CellName = cell
		lib.gates = append(lib.gates, g)
		lib.byName[g.Name] = g.ID
		lib.byCell[cell] = append(lib.byCell[cell], g.ID)
	}
	return lib, nil
}

// Gate returns the gate with the given id.
func (l *Library) Gate(id chain.GateID) Gate { return l.gates[id] }

// Lookup returns a gate by name.
func (l *Library) Lookup(name string) (Gate, bool) {
	id, ok := l.byName[name]
	if !ok {
		return Gate{}, false
	}
	return l.gates[id], true
}

// CellOutputs returns every GateID belonging to the named multi-output
// cell, in declaration order. A multi-output node's output-pin count
// always equals the cell's declared output count.
func (l *Library) CellOutputs(cellName string) []chain.GateID {
	return l.byCell[cellName]
}

// Len returns the number of gates (outputs) in the library.
func (l *Library) Len() int { return len(l.gates) }

// All returns every gate, for iteration (e.g. database row construction).
func (l *Library) All() []Gate { return l.gates }
