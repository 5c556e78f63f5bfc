package library

import (
	"fmt"

	"github.com/rawblock/resynth-engine/internal/chain"
	"github.com/rawblock/resynth-engine/internal/ttable"
)

// Synthesize builds an inner AND/XOR chain realizing t, for callers that
// only have a gate's output function (e.g. a library decoded from a
// JSON request body) and not a hand-authored decomposition.
// It recurses through Shannon cofactors on each variable in order and
// combines them via the Reed-Muller identity
// f = f0 XOR (x_i AND (f0 XOR f1)), which only ever needs the AND/XOR
// primitives chain.AndBinding/chain.XorBinding already provide.
func Synthesize(nVars int, t ttable.Table) chain.Chain {
	c := chain.New(nVars)
	constCache := make(map[bool]chain.Literal)
	constLit := func(v bool) chain.Literal {
		if lit, ok := constCache[v]; ok {
			return lit
		}
		lit := c.AddGate(nil, chain.ConstBinding(v))
		constCache[v] = lit
		return lit
	}

	memo := make(map[string]chain.Literal)
	var rec func(tt ttable.Table, v int) chain.Literal
	rec = func(tt ttable.Table, v int) chain.Literal {
		if v == nVars {
			return constLit(tt.Bit(0))
		}
		key := fmt.Sprintf("%d|%s", v, tt.String())
		if lit, ok := memo[key]; ok {
			return lit
		}
		f0 := ttable.Cofactor0(tt, v)
		f1 := ttable.Cofactor1(tt, v)
		l0 := rec(f0, v+1)
		l1 := rec(f1, v+1)

		var lit chain.Literal
		if l0 == l1 {
			lit = l0
		} else {
			diff := c.AddGate([]chain.Literal{l0, l1}, chain.XorBinding())
			xi := chain.NewLiteral(uint32(v), false)
			andN := c.AddGate([]chain.Literal{xi, diff}, chain.AndBinding())
			lit = c.AddGate([]chain.Literal{l0, andN}, chain.XorBinding())
		}
		memo[key] = lit
		return lit
	}

	root := rec(t, 0)
	c.SetOutputs(root)
	return c
}
