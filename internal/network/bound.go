package network

import (
	"fmt"

	"github.com/rawblock/resynth-engine/internal/chain"
	"github.com/rawblock/resynth-engine/internal/library"
)

// CreateBoundNode is CreateNode specialized for library-gate bindings: it
// validates that the fanin count matches the (single) gate's arity, or, for
// a multi-output cell, that bindingIDs lists exactly the cell's declared
// outputs and children matches the shared fanin arity.
func CreateBoundNode(n *Network, lib *library.Library, children []Signal, bindingIDs []chain.GateID) (Signal, error) {
	if len(bindingIDs) == 0 {
		return 0, fmt.Errorf("network: no gate bindings supplied")
	}
	first := lib.Gate(bindingIDs[0])
	if len(children) != first.Arity() {
		return 0, fmt.Errorf("network: gate %q expects %d fanins, got %d", first.Name, first.Arity(), len(children))
	}
	if len(bindingIDs) > 1 {
		cellOutputs := lib.CellOutputs(first.CellName)
		if len(cellOutputs) != len(bindingIDs) {
			return 0, fmt.Errorf("network: cell %q has %d outputs, node declares %d", first.CellName, len(cellOutputs), len(bindingIDs))
		}
		for i, id := range bindingIDs {
			g := lib.Gate(id)
			if g.CellName != first.CellName {
				return 0, fmt.Errorf("network: multi-output node mixes cells %q and %q", first.CellName, g.CellName)
			}
			if g.Arity() != len(children) {
				return 0, fmt.Errorf("network: output pin %d of cell %q expects %d fanins, got %d", i, first.CellName, g.Arity(), len(children))
			}
		}
	}
	return n.CreateNode(children, bindingIDs), nil
}
