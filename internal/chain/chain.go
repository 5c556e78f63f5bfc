// Package chain implements the bound chain: a linear,
// immutable encoding of a small mapped subnetwork shared between database
// entries, the window/cut machinery, and network insertion. It is also
// reused, with BindingAnd/BindingXor primitives, as the "inner chain"
// format a library gate decomposes its own function into.
package chain

import "fmt"

// GateID identifies a library gate binding. Chain itself is agnostic to
// what a GateID means; internal/library maps GateIDs to gate metadata.
type GateID int32

// Literal is a chain-local SSA value: literals 0..NumInputs-1 denote the
// chain's inputs, and NumInputs..NumInputs+len(Nodes)-1 denote the outputs
// of each gate in declaration order. The low bit carries a complementation
// flag, used only by AND/XOR primitive chains (inner chains); bound chains
// never set it, since inversion there is absorbed into gates.
type Literal uint32

// NewLiteral packs an index and polarity into a Literal.
func NewLiteral(index uint32, complemented bool) Literal {
	l := Literal(index) << 1
	if complemented {
		l |= 1
	}
	return l
}

func (l Literal) Index() uint32       { return uint32(l) >> 1 }
func (l Literal) IsComplemented() bool { return l&1 == 1 }
func (l Literal) Negate() Literal      { return l ^ 1 }

// BindingKind distinguishes the three things a chain gate can realize.
type BindingKind uint8

const (
	BindingConst BindingKind = iota // 0-fanin constant (ConstValue)
	BindingAnd                      // 2-fanin AND, AIG/XAG primitive
	BindingXor                      // 2-fanin XOR, AIG/XAG primitive
	BindingGate                     // library-gate-bound node (bound chain)
)

// Binding describes what a Gate computes.
type Binding struct {
	Kind     BindingKind
	GateID   GateID // valid when Kind == BindingGate
	ConstVal bool   // valid when Kind == BindingConst
}

func ConstBinding(v bool) Binding       { return Binding{Kind: BindingConst, ConstVal: v} }
func AndBinding() Binding               { return Binding{Kind: BindingAnd} }
func XorBinding() Binding               { return Binding{Kind: BindingXor} }
func GateBinding(id GateID) Binding     { return Binding{Kind: BindingGate, GateID: id} }

// Gate is one node of a chain: its fanin literals and what it computes.
type Gate struct {
	Fanins  []Literal
	Binding Binding
}

// Chain is an immutable, linear mapped subnetwork. Copying a
// Chain value copies the slice headers only; callers that need an
// independent copy should use Clone.
type Chain struct {
	NumInputs int
	Nodes     []Gate
	Outputs   []Literal
}

// New returns an empty chain declaring numInputs primary inputs.
func New(numInputs int) Chain {
	return Chain{NumInputs: numInputs}
}

// AddGate appends a gate and returns the literal naming its (uncomplemented)
// output.
func (c *Chain) AddGate(fanins []Literal, b Binding) Literal {
	idx := uint32(c.NumInputs + len(c.Nodes))
	c.Nodes = append(c.Nodes, Gate{Fanins: append([]Literal(nil), fanins...), Binding: b})
	return NewLiteral(idx, false)
}

// SetOutputs declares the chain's output literals.
func (c *Chain) SetOutputs(lits ...Literal) {
	c.Outputs = append([]Literal(nil), lits...)
}

// NumGates returns the number of internal gates.
func (c Chain) NumGates() int { return len(c.Nodes) }

// Clone returns a deep, independent copy of c.
func (c Chain) Clone() Chain {
	nodes := make([]Gate, len(c.Nodes))
	for i, g := range c.Nodes {
		nodes[i] = Gate{Fanins: append([]Literal(nil), g.Fanins...), Binding: g.Binding}
	}
	return Chain{
		NumInputs: c.NumInputs,
		Nodes:     nodes,
		Outputs:   append([]Literal(nil), c.Outputs...),
	}
}

// literalName renders a literal for diagnostics.
func (c Chain) literalName(l Literal) string {
	idx := l.Index()
	name := fmt.Sprintf("n%d", idx)
	if int(idx) < c.NumInputs {
		name = fmt.Sprintf("i%d", idx)
	}
	if l.IsComplemented() {
		name = "!" + name
	}
	return name
}

// String renders the chain in a small human-readable SSA form, useful in
// test failure messages and diagnostics.
func (c Chain) String() string {
	s := fmt.Sprintf("chain(in=%d)", c.NumInputs)
	for i, g := range c.Nodes {
		idx := uint32(c.NumInputs + i)
		op := "?"
		switch g.Binding.Kind {
		case BindingConst:
			op = fmt.Sprintf("const(%v)", g.Binding.ConstVal)
		case BindingAnd:
			op = "and"
		case BindingXor:
			op = "xor"
		case BindingGate:
			op = fmt.Sprintf("gate(%d)", g.Binding.GateID)
		}
		fanins := ""
		for _, f := range g.Fanins {
			fanins += " " + c.literalName(f)
		}
		s += fmt.Sprintf("\n  n%d = %s%s", idx, op, fanins)
	}
	s += "\n  out:"
	for _, o := range c.Outputs {
		s += " " + c.literalName(o)
	}
	return s
}

// PermCanonize renames input literals 0..NumInputs-1 through perm so that
// input i becomes input perm[i]. perm must be a permutation of
// 0..NumInputs-1; the chain's internal gate literals and gate count are
// unchanged. This renames *declarations*, so it must be paired with the
// inverse permutation when the caller re-simulates to check the resulting
// truth table.
func (c Chain) PermCanonize(perm []int) Chain {
	if len(perm) != c.NumInputs {
		panic("chain: PermCanonize perm length mismatch")
	}
	remap := func(l Literal) Literal {
		idx := l.Index()
		if int(idx) < c.NumInputs {
			return NewLiteral(uint32(perm[idx]), l.IsComplemented())
		}
		return l
	}
	out := c.Clone()
	for i := range out.Nodes {
		for j, f := range out.Nodes[i].Fanins {
			out.Nodes[i].Fanins[j] = remap(f)
		}
	}
	for i, o := range out.Outputs {
		out.Outputs[i] = remap(o)
	}
	return out
}

// TimeReorder permutes chain inputs according to perm the same way
// PermCanonize does. It exists as a distinct, semantically-named entry
// point for time canonization: among functionally symmetric inputs,
// permute so that the latest-arriving input lands on the fastest pin.
// This is a pure reordering; the chain's Boolean function is unchanged.
// The caller computes perm; this function performs only the reordering,
// not the symmetry/arrival-time analysis (internal/database matching does
// that analysis itself and reorders its leaves without calling this).
func (c Chain) TimeReorder(perm []int) Chain {
	return c.PermCanonize(perm)
}
