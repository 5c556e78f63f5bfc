// Package network implements the bound network: an
// arena-based DAG of multi-output cells with fanout ownership, traversal
// epochs, and node substitution. NodeIds are dense indices into the arena
// and stay stable for the lifetime of a pass; nodes are never physically
// removed, only marked dead.
package network

import (
	"fmt"

	"github.com/rawblock/resynth-engine/internal/chain"
)

// NodeId is a dense index into the network's node arena.
type NodeId int32

const invalidNode NodeId = -1

// Signal packs a NodeId and an output-pin index into one comparable
// value: two signals on the same node but different output pins are
// distinct, which is how multi-output cells are addressed.
type Signal uint64

const pinBits = 8
const pinMask = (uint64(1) << pinBits) - 1

// NewSignal packs a node id and output pin into a Signal.
func NewSignal(n NodeId, pin uint8) Signal {
	return Signal(uint64(uint32(n))<<pinBits | uint64(pin))
}

func (s Signal) Node() NodeId { return NodeId(int32(uint32(uint64(s) >> pinBits))) }
func (s Signal) Pin() uint8   { return uint8(uint64(s) & pinMask) }

func (s Signal) String() string { return fmt.Sprintf("n%d.%d", s.Node(), s.Pin()) }

// Kind classifies a node.
type Kind uint8

const (
	KindConstant Kind = iota
	KindPi
	KindPo
	KindGate
)

// PinType is a bit set so unions compose cheaply.
type PinType uint16

const (
	PinNone PinType = 0
	PinConst PinType = 1 << iota
	PinInternal
	PinDead
	PinPi
	PinPo
	PinCi
	PinCo
)

// OutputPin is one output of a node: its fanout list and classification.
type OutputPin struct {
	PinType PinType
	GateID  chain.GateID // binding for this pin (BindingGate id in the host library); left at 0 and meaningless unless PinType is PinInternal
	fanout  []NodeId     // live nodes with a fanin signal pointing at this pin
}

// FanoutCount returns the number of live fanouts of this pin.
func (p *OutputPin) FanoutCount() int { return len(p.fanout) }

// Fanout returns the (shared) slice of fanout node ids. Callers must not
// mutate the returned slice.
func (p *OutputPin) Fanout() []NodeId { return p.fanout }

// Node owns its fanins, its output pins, and per-pass scratch state.
type Node struct {
	Kind    Kind
	Fanins  []Signal
	Outputs []OutputPin

	Level     int
	Visited   uint64
	Value     uint64 // scratch slot (simulation signatures, cost cache, ...)
	IsDead    bool
	POIndex   int // valid when Kind == KindPo: index among declared POs
}

// Network is the arena of nodes plus the PI/PO declaration order.
type Network struct {
	nodes   []Node
	pis     []NodeId
	pos     []NodeId
	travID  uint64
	constID map[bool]NodeId
}

// New returns an empty network with both boolean constants pre-created.
func New() *Network {
	n := &Network{constID: make(map[bool]NodeId, 2)}
	for _, v := range [2]bool{false, true} {
		id := n.allocNode(Node{Kind: KindConstant, Outputs: []OutputPin{{}}})
		n.nodes[id].Value = boolToUint64(v)
		n.constID[v] = id
	}
	return n
}

func boolToUint64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func (n *Network) allocNode(nd Node) NodeId {
	id := NodeId(len(n.nodes))
	n.nodes = append(n.nodes, nd)
	return id
}

// node returns a pointer to the node's storage; callers within the package
// use this instead of copying Node values around.
func (n *Network) node(id NodeId) *Node { return &n.nodes[id] }

// NumNodes returns the arena size, including dead nodes.
func (n *Network) NumNodes() int { return len(n.nodes) }

// GetConstant returns the signal for the boolean constant value.
func (n *Network) GetConstant(value bool) Signal {
	return NewSignal(n.constID[value], 0)
}

// IsConstant, IsPi, IsPo, IsDead classify a node id.
func (n *Network) IsConstant(id NodeId) bool { return n.node(id).Kind == KindConstant }
func (n *Network) IsPi(id NodeId) bool       { return n.node(id).Kind == KindPi }
func (n *Network) IsPo(id NodeId) bool       { return n.node(id).Kind == KindPo }
func (n *Network) IsDead(id NodeId) bool     { return n.node(id).IsDead }

// Node exposes read access to a node's fields for callers (trackers,
// profilers, window manager) that need to inspect but not mutate it.
func (n *Network) Node(id NodeId) *Node { return n.node(id) }

// CreatePi appends a primary input and returns its signal.
func (n *Network) CreatePi() Signal {
	id := n.allocNode(Node{Kind: KindPi, Outputs: []OutputPin{{PinType: PinPi}}})
	n.pis = append(n.pis, id)
	return NewSignal(id, 0)
}

// CreatePo declares fanin as a primary output and returns the PO node id.
func (n *Network) CreatePo(fanin Signal) NodeId {
	id := n.allocNode(Node{
		Kind:    KindPo,
		Fanins:  []Signal{fanin},
		Outputs: []OutputPin{{PinType: PinPo}},
		POIndex: len(n.pos),
	})
	n.pos = append(n.pos, id)
	n.registerFanin(id, fanin)
	n.recomputeLevel(id)
	return id
}

// CreateNode allocates a gate node bound to bindingIDs (one per output
// pin); when len(bindingIDs) > 1 the node is multi-output.
// The fanin count is len(children); mismatches
// between children/bindings and a gate's real arity are the caller's
// responsibility to validate (CreateBoundNode below does, for library
// gates).
func (n *Network) CreateNode(children []Signal, bindingIDs []chain.GateID) Signal {
	if len(bindingIDs) == 0 {
		panic("network: CreateNode requires at least one output binding")
	}
	outputs := make([]OutputPin, len(bindingIDs))
	for i, g := range bindingIDs {
		outputs[i] = OutputPin{PinType: PinInternal, GateID: g}
	}
	id := n.allocNode(Node{
		Kind:    KindGate,
		Fanins:  append([]Signal(nil), children...),
		Outputs: outputs,
	})
	for _, c := range children {
		n.registerFanin(id, c)
	}
	n.recomputeLevel(id)
	return NewSignal(id, 0)
}

// registerFanin adds consumer to fanin's source output pin's fanout list.
func (n *Network) registerFanin(consumer NodeId, fanin Signal) {
	src := n.node(fanin.Node())
	pin := &src.Outputs[fanin.Pin()]
	pin.fanout = append(pin.fanout, consumer)
}

// unregisterFanin removes one occurrence of consumer from fanin's fanout
// list (used by substitution and dead-node propagation).
func (n *Network) unregisterFanin(consumer NodeId, fanin Signal) {
	src := n.node(fanin.Node())
	pin := &src.Outputs[fanin.Pin()]
	for i, f := range pin.fanout {
		if f == consumer {
			pin.fanout[i] = pin.fanout[len(pin.fanout)-1]
			pin.fanout = pin.fanout[:len(pin.fanout)-1]
			return
		}
	}
}

func (n *Network) recomputeLevel(id NodeId) {
	nd := n.node(id)
	if nd.Kind == KindPi || nd.Kind == KindConstant {
		nd.Level = 0
		return
	}
	max := 0
	for _, f := range nd.Fanins {
		if l := n.node(f.Node()).Level; l > max {
			max = l
		}
	}
	nd.Level = max + 1
}

// Level returns a node's topological level.
func (n *Network) Level(id NodeId) int { return n.node(id).Level }

// FanoutSize returns the live fanout count of a specific output pin.
func (n *Network) FanoutSize(sig Signal) int {
	return n.node(sig.Node()).Outputs[sig.Pin()].FanoutCount()
}

// SubstituteNode rewrites every live fanout of every output pin of old to
// point at newSignals[pin] instead, then releases old's fanins/itself when
// no longer referenced. len(newSignals) must equal the number
// of output pins of old.
func (n *Network) SubstituteNode(old NodeId, newSignals []Signal) error {
	oldNode := n.node(old)
	if len(newSignals) != len(oldNode.Outputs) {
		return fmt.Errorf("network: substitute_node arity mismatch: node has %d output pins, got %d replacements", len(oldNode.Outputs), len(newSignals))
	}
	for pinIdx := range oldNode.Outputs {
		pin := &oldNode.Outputs[pinIdx]
		fanouts := append([]NodeId(nil), pin.fanout...) // snapshot: rewriting mutates fanout lists
		newSig := newSignals[pinIdx]
		oldSig := NewSignal(old, uint8(pinIdx))
		for _, consumer := range fanouts {
			cn := n.node(consumer)
			for i, f := range cn.Fanins {
				if f == oldSig {
					cn.Fanins[i] = newSig
					n.unregisterFanin(consumer, oldSig)
					n.registerFanin(consumer, newSig)
				}
			}
			n.recomputeLevel(consumer)
		}
	}
	n.tryTakeOut(old)
	return nil
}

// tryTakeOut marks id dead (and recursively its now-unreferenced fanins)
// once every output pin has zero fanout and it is not a PO driver.
func (n *Network) tryTakeOut(id NodeId) {
	nd := n.node(id)
	if nd.IsDead || nd.Kind == KindPi || nd.Kind == KindConstant {
		return
	}
	for i := range nd.Outputs {
		if nd.Outputs[i].FanoutCount() != 0 {
			return
		}
	}
	if n.isPODriver(id) {
		return
	}
	nd.IsDead = true
	for i := range nd.Outputs {
		nd.Outputs[i].PinType |= PinDead
	}
	fanins := append([]Signal(nil), nd.Fanins...)
	nd.Fanins = nil
	for _, f := range fanins {
		n.unregisterFanin(id, f)
		n.tryTakeOut(f.Node())
	}
}

// DiscardCandidate releases a freshly-created, never-referenced candidate
// subnet that the resynthesis driver decided not to substitute. id must
// carry zero fanout on every output pin;
// DiscardCandidate then cascades through tryTakeOut exactly as a losing
// substitution would, freeing every fanin that only this candidate used.
func (n *Network) DiscardCandidate(id NodeId) error {
	nd := n.node(id)
	for i := range nd.Outputs {
		if nd.Outputs[i].FanoutCount() != 0 {
			return fmt.Errorf("network: DiscardCandidate: node %d still has live fanout on pin %d", id, i)
		}
	}
	n.tryTakeOut(id)
	return nil
}

func (n *Network) isPODriver(id NodeId) bool {
	for _, po := range n.pos {
		if n.node(po).Fanins[0].Node() == id {
			return true
		}
	}
	return false
}

// --- traversal epochs ---

// IncrTravId advances the traversal epoch and returns it; nodes whose
// Visited field is behind the new epoch are "unvisited" in O(1), without
// clearing per-node state.
func (n *Network) IncrTravId() uint64 {
	n.travID++
	return n.travID
}

// TravId returns the current traversal epoch.
func (n *Network) TravId() uint64 { return n.travID }

// Visited reports whether id has been painted at the current epoch.
func (n *Network) Visited(id NodeId) bool { return n.node(id).Visited == n.travID }

// SetVisited paints id at the given epoch (normally TravId()).
func (n *Network) SetVisited(id NodeId, epoch uint64) { n.node(id).Visited = epoch }

// --- iteration ---

// ForeachPi calls fn for every live primary input, in creation order.
func (n *Network) ForeachPi(fn func(NodeId)) {
	for _, id := range n.pis {
		fn(id)
	}
}

// ForeachPo calls fn for every primary output, in declaration order.
func (n *Network) ForeachPo(fn func(NodeId, Signal)) {
	for _, id := range n.pos {
		fn(id, n.node(id).Fanins[0])
	}
}

// ForeachGate calls fn for every live gate node, in creation (insertion)
// order. Dead nodes are skipped.
func (n *Network) ForeachGate(fn func(NodeId)) {
	for id := range n.nodes {
		nd := &n.nodes[id]
		if nd.Kind == KindGate && !nd.IsDead {
			fn(NodeId(id))
		}
	}
}

// ForeachFanin calls fn for every fanin signal of id.
func (n *Network) ForeachFanin(id NodeId, fn func(Signal)) {
	for _, f := range n.node(id).Fanins {
		fn(f)
	}
}

// ForeachFanout calls fn for every live consumer of a specific output pin.
func (n *Network) ForeachFanout(sig Signal, fn func(NodeId)) {
	for _, c := range n.node(sig.Node()).Outputs[sig.Pin()].fanout {
		fn(c)
	}
}

// ForeachOutput calls fn for every output pin signal of id.
func (n *Network) ForeachOutput(id NodeId, fn func(Signal)) {
	for pin := range n.node(id).Outputs {
		fn(NewSignal(id, uint8(pin)))
	}
}

// NumOutputs returns the output-pin count of id (1 for single-output
// gates, PIs, POs, and constants).
func (n *Network) NumOutputs(id NodeId) int { return len(n.node(id).Outputs) }

// Fanins returns a node's fanin signals (read-only view).
func (n *Network) Fanins(id NodeId) []Signal { return n.node(id).Fanins }

// PIs / POs expose declaration-order id lists.
func (n *Network) PIs() []NodeId { return n.pis }
func (n *Network) POs() []NodeId { return n.pos }
