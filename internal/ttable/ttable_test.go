package ttable

import "testing"

func and2() Table { return And(Proj(2, 0), Proj(2, 1)) }
func or2() Table  { return Or(Proj(2, 0), Proj(2, 1)) }
func nand2() Table {
	return Not(and2())
}

func TestProjAndLogicalOps(t *testing.T) {
	a := Proj(2, 0)
	b := Proj(2, 1)

	tests := []struct {
		name string
		got  Table
		bits [4]bool
	}{
		{"and", And(a, b), [4]bool{false, false, false, true}},
		{"or", Or(a, b), [4]bool{false, true, true, true}},
		{"xor", Xor(a, b), [4]bool{false, true, true, false}},
		{"not_a", Not(a), [4]bool{true, false, true, false}},
	}
	for _, tc := range tests {
		for i := 0; i < 4; i++ {
			if tc.got.Bit(i) != tc.bits[i] {
				t.Errorf("%s: minterm %d = %v, want %v", tc.name, i, tc.got.Bit(i), tc.bits[i])
			}
		}
	}
}

func TestConstAndCounts(t *testing.T) {
	one := Const(3, true)
	if one.OnesCount() != 8 || one.ZerosCount() != 0 {
		t.Errorf("Const(3,true): ones=%d zeros=%d, want 8/0", one.OnesCount(), one.ZerosCount())
	}
	p := Proj(2, 0)
	if p.OnesCount() != 2 || p.ZerosCount() != 2 {
		t.Errorf("Proj(2,0): ones=%d zeros=%d, want 2/2", p.OnesCount(), p.ZerosCount())
	}
	if p.Switching() != 4 {
		t.Errorf("Proj(2,0).Switching() = %d, want 4", p.Switching())
	}
}

func TestCofactorsAndSupport(t *testing.T) {
	f := and2()
	c0 := Cofactor0(f, 0)
	if !Equal(c0, Const(2, false)) {
		t.Errorf("Cofactor0(and,0) should be constant 0, got %s", c0)
	}
	c1 := Cofactor1(f, 0)
	if !Equal(c1, Proj(2, 1)) {
		t.Errorf("Cofactor1(and,0) should be b, got %s", c1)
	}

	// a AND b over 3 declared variables: support excludes the unused c.
	g := And(Proj(3, 0), Proj(3, 1))
	s := Support(g)
	if len(s) != 2 || s[0] != 0 || s[1] != 1 {
		t.Errorf("Support(a AND b over 3 vars) = %v, want [0 1]", s)
	}
	if DependsOn(g, 2) {
		t.Error("a AND b should not depend on variable 2")
	}
}

func TestPermuteMovesVariables(t *testing.T) {
	for n := 2; n <= 4; n++ {
		perm := make([]int, n)
		for i := range perm {
			perm[i] = (i + 1) % n
		}
		for v := 0; v < n; v++ {
			got := Permute(Proj(n, v), perm)
			want := Proj(n, perm[v])
			if !Equal(got, want) {
				t.Errorf("n=%d: Permute(Proj(%d)) != Proj(%d)", n, v, perm[v])
			}
		}
	}
}

func TestInversePerm(t *testing.T) {
	perm := []int{2, 0, 3, 1}
	inv := InversePerm(perm)
	for i, p := range perm {
		if inv[p] != i {
			t.Fatalf("InversePerm: inv[%d]=%d, want %d", p, inv[p], i)
		}
	}
}

func TestPCanonizeEquivalenceClasses(t *testing.T) {
	// a AND NOT b and NOT a AND b are related by an input swap, so they
	// must share a P-canonical representative.
	f1 := And(Proj(2, 0), Not(Proj(2, 1)))
	f2 := And(Not(Proj(2, 0)), Proj(2, 1))
	c1 := PCanonize(f1)
	c2 := PCanonize(f2)
	if !Equal(c1.Repr, c2.Repr) {
		t.Errorf("P-equivalent functions canonize differently: %s vs %s", c1.Repr, c2.Repr)
	}
	// The reported permutation must reproduce the representative.
	if !Equal(Permute(f1, c1.InputPerm), c1.Repr) {
		t.Error("Permute(f, InputPerm) != Repr")
	}
	// And a function NOT P-equivalent must not collide.
	c3 := PCanonize(and2())
	if Equal(c1.Repr, c3.Repr) {
		t.Error("a AND NOT b canonized onto a AND b")
	}
}

func TestPCanonizeDeterministic(t *testing.T) {
	f := Or(And(Proj(3, 0), Proj(3, 1)), Proj(3, 2))
	a := PCanonize(f)
	b := PCanonize(f)
	if !Equal(a.Repr, b.Repr) {
		t.Fatal("PCanonize is not deterministic")
	}
	for i := range a.InputPerm {
		if a.InputPerm[i] != b.InputPerm[i] {
			t.Fatal("PCanonize permutation is not deterministic")
		}
	}
}

func TestNPNCanonizeMergesNegationClasses(t *testing.T) {
	// AND, OR, and NAND are all NPN-equivalent.
	cAnd := NPNCanonize(and2())
	cOr := NPNCanonize(or2())
	cNand := NPNCanonize(nand2())
	if !Equal(cAnd.Repr, cOr.Repr) {
		t.Errorf("AND and OR should share an NPN representative: %s vs %s", cAnd.Repr, cOr.Repr)
	}
	if !Equal(cAnd.Repr, cNand.Repr) {
		t.Errorf("AND and NAND should share an NPN representative: %s vs %s", cAnd.Repr, cNand.Repr)
	}
	// XOR is in a different NPN class than AND.
	cXor := NPNCanonize(Xor(Proj(2, 0), Proj(2, 1)))
	if Equal(cAnd.Repr, cXor.Repr) {
		t.Error("AND and XOR must not share an NPN representative")
	}
}

func TestNPNCanonizeReconstruction(t *testing.T) {
	funcs := []Table{
		and2(),
		nand2(),
		Xor(Proj(2, 0), Proj(2, 1)),
		Or(And(Proj(3, 0), Proj(3, 1)), Not(Proj(3, 2))),
	}
	for _, f := range funcs {
		c := NPNCanonize(f)
		g := f
		for v := 0; v < f.NumVars(); v++ {
			if c.InputNeg&(1<<uint(v)) != 0 {
				g = negateInput(g, v)
			}
		}
		g = Permute(g, c.InputPerm)
		if c.OutputNeg {
			g = Not(g)
		}
		if !Equal(g, c.Repr) {
			t.Errorf("NPN transform does not reconstruct Repr for %s", f)
		}
	}
}

func TestSymmetricGroups(t *testing.T) {
	maj := Or(Or(And(Proj(3, 0), Proj(3, 1)), And(Proj(3, 0), Proj(3, 2))), And(Proj(3, 1), Proj(3, 2)))
	tests := []struct {
		name      string
		f         Table
		numGroups int
	}{
		{"and2_fully_symmetric", and2(), 1},
		{"andnot_no_symmetry", And(Proj(2, 0), Not(Proj(2, 1))), 2},
		{"majority3_fully_symmetric", maj, 1},
	}
	for _, tc := range tests {
		groups := SymmetricGroups(tc.f)
		if len(groups) != tc.numGroups {
			t.Errorf("%s: %d symmetric groups, want %d (%v)", tc.name, len(groups), tc.numGroups, groups)
		}
	}
}

func TestTernaryDominates(t *testing.T) {
	// Target: NAND, but with minterm 11 marked don't-care. Constant 1
	// agrees with NAND on 00/01/10 and only differs at 11, so it
	// dominates; AND disagrees at the cared 00 and does not.
	care := Const(2, true)
	care.ClearBit(3)
	target := Ternary{Bits: nand2(), Care: care}

	if !target.Dominates(Const(2, true)) {
		t.Error("constant 1 should dominate NAND with minterm 11 don't-care")
	}
	if target.Dominates(and2()) {
		t.Error("AND must not dominate NAND under this care mask")
	}
	if !target.Dominates(nand2()) {
		t.Error("a function must dominate itself")
	}
}

func TestTernaryEquivalent(t *testing.T) {
	careA := Const(2, true)
	careA.ClearBit(3)
	careB := Const(2, true)
	careB.ClearBit(0)
	a := Ternary{Bits: nand2(), Care: careA}
	b := Ternary{Bits: or2(), Care: careB}
	// Shared care is minterms 1 and 2, where NAND and OR agree.
	if !Equivalent(a, b) {
		t.Error("NAND and OR should be equivalent on the shared care 01/10")
	}
	c := Ternary{Bits: and2(), Care: Const(2, true)}
	if Equivalent(a, c) {
		t.Error("NAND and AND disagree at the shared cared minterm 00")
	}
}

func TestCompose(t *testing.T) {
	// Feeding the AND function with projections of a wider space must
	// equal the wider-space AND of those projections.
	args := []Table{Proj(3, 0), Proj(3, 2)}
	got := Compose(and2(), args)
	want := And(Proj(3, 0), Proj(3, 2))
	if !Equal(got, want) {
		t.Errorf("Compose(and, [a c]) = %s, want %s", got, want)
	}

	// An inner XOR through a NOT wrapper.
	got = Compose(Not(Proj(1, 0)), []Table{Xor(Proj(2, 0), Proj(2, 1))})
	want = Not(Xor(Proj(2, 0), Proj(2, 1)))
	if !Equal(got, want) {
		t.Errorf("Compose(not, [xor]) = %s, want %s", got, want)
	}
}

func TestShrinkTo(t *testing.T) {
	// a AND b declared over 4 variables shrinks to the 2-variable AND.
	wide := And(Proj(4, 0), Proj(4, 1))
	got := ShrinkTo(wide, 2)
	if got.NumVars() != 2 {
		t.Fatalf("ShrinkTo returned %d vars, want 2", got.NumVars())
	}
	if !Equal(got, and2()) {
		t.Errorf("ShrinkTo(a AND b, 2) = %s, want %s", got, and2())
	}
}

func TestFromBitsAndString(t *testing.T) {
	f := FromBits(2, []bool{false, true, true, true})
	if !Equal(f, or2()) {
		t.Errorf("FromBits OR mismatch: %s", f)
	}
	if and2().String() != "0000000000000008" {
		t.Errorf("and2 hex = %s, want 0000000000000008", and2().String())
	}
}
