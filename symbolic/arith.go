package symbolic

import (
	"fmt"
	"sort"
	"strings"
)

// ============================================================
// Add: sum of terms
// ============================================================

type Add struct{ terms []Expr }

// AddOf returns the canonical sum of terms. Like terms are merged by
// summing their numeric coefficients, the numeric part goes last and tuples
// or matrices of the same shape are added componentwise.
func AddOf(terms ...Expr) Expr {
	flat := make([]Expr, 0, len(terms))
	for _, t := range terms {
		if inner, ok := t.(*Add); ok {
			flat = append(flat, inner.terms...)
		} else {
			flat = append(flat, t)
		}
	}

	var containers []Expr
	scalars := flat[:0:0]
	for _, t := range flat {
		switch t.(type) {
		case *Tuple, *Matrix:
			containers = append(containers, t)
		default:
			scalars = append(scalars, t)
		}
	}
	if len(containers) > 0 {
		sum := addContainers(containers)
		rest := addScalars(scalars)
		if IsZero(rest) {
			return sum
		}
		// Mixed sums only arise from unevaluated operators; keep them opaque.
		return &Add{terms: append(append([]Expr(nil), Terms(rest)...), sum)}
	}
	return addScalars(scalars)
}

type addGroup struct {
	coeff *Num
	rest  Expr
	key   string
}

func addScalars(flat []Expr) Expr {
	numAccum := N(0)
	groups := map[string]*addGroup{}
	order := []*addGroup{}
	for _, t := range flat {
		if v, ok := t.(*Num); ok {
			numAccum = numAdd(numAccum, v)
			continue
		}
		c, rest := SplitCoeff(t)
		key := Key(rest)
		g, seen := groups[key]
		if !seen {
			g = &addGroup{coeff: N(0), rest: rest, key: key}
			groups[key] = g
			order = append(order, g)
		}
		g.coeff = numAdd(g.coeff, c)
	}

	kept := make([]*addGroup, 0, len(order))
	for _, g := range order {
		if !g.coeff.IsZero() {
			kept = append(kept, g)
		}
	}
	sortKeys := make(map[*addGroup]string, len(kept))
	for _, g := range kept {
		sortKeys[g] = g.rest.String()
	}
	sort.SliceStable(kept, func(i, j int) bool {
		a, b := sortKeys[kept[i]], sortKeys[kept[j]]
		if a != b {
			return a < b
		}
		return kept[i].key < kept[j].key
	})

	result := make([]Expr, 0, len(kept)+1)
	for _, g := range kept {
		if g.coeff.IsOne() {
			result = append(result, g.rest)
		} else {
			result = append(result, MulOf(g.coeff, g.rest))
		}
	}
	if !numAccum.IsZero() {
		result = append(result, numAccum)
	}
	switch len(result) {
	case 0:
		return N(0)
	case 1:
		return result[0]
	}
	return &Add{terms: result}
}

func addContainers(cs []Expr) Expr {
	switch first := cs[0].(type) {
	case *Tuple:
		items := make([][]Expr, first.Len())
		for _, c := range cs {
			t, ok := c.(*Tuple)
			if !ok || t.Len() != first.Len() {
				panic(fmt.Sprintf("symbolic: cannot add %s and %s", first, c))
			}
			for i, it := range t.items {
				items[i] = append(items[i], it)
			}
		}
		out := make([]Expr, len(items))
		for i, it := range items {
			out[i] = AddOf(it...)
		}
		return TupleOf(out...)
	case *Matrix:
		acc := first
		for _, c := range cs[1:] {
			m, ok := c.(*Matrix)
			if !ok {
				panic(fmt.Sprintf("symbolic: cannot add %s and %s", first, c))
			}
			acc = acc.add(m)
		}
		return acc
	}
	panic("symbolic: unreachable container kind")
}

func (a *Add) Type() string              { return "add" }
func (a *Add) Args() []Expr              { return a.terms }
func (a *Add) Terms() []Expr             { return a.terms }
func (a *Add) WithArgs(args []Expr) Expr { return AddOf(args...) }

func (a *Add) String() string {
	var sb strings.Builder
	for i, t := range a.terms {
		s := t.String()
		switch {
		case i == 0:
			sb.WriteString(s)
		case strings.HasPrefix(s, "-"):
			sb.WriteString(" - ")
			sb.WriteString(s[1:])
		default:
			sb.WriteString(" + ")
			sb.WriteString(s)
		}
	}
	return sb.String()
}

func (a *Add) LaTeX() string {
	var sb strings.Builder
	for i, t := range a.terms {
		s := t.LaTeX()
		switch {
		case i == 0:
			sb.WriteString(s)
		case strings.HasPrefix(s, "-"):
			sb.WriteString(" - ")
			sb.WriteString(s[1:])
		default:
			sb.WriteString(" + ")
			sb.WriteString(s)
		}
	}
	return sb.String()
}

func (a *Add) Diff(varName string) Expr {
	dTerms := make([]Expr, len(a.terms))
	for i, t := range a.terms {
		dTerms[i] = t.Diff(varName)
	}
	return AddOf(dTerms...)
}

func (a *Add) Equal(other Expr) bool {
	o, ok := other.(*Add)
	return ok && equalSlices(a.terms, o.terms)
}

// ============================================================
// Mul: product of factors
// ============================================================

type Mul struct{ factors []Expr }

type mulGroup struct {
	base Expr
	exps []Expr
}

// MulOf returns the canonical product of factors: the numeric coefficient
// comes first, powers of the same base are combined and the remaining
// factors are ordered by their printed form. A tuple or matrix factor is
// scaled by the product of the others.
func MulOf(factors ...Expr) Expr {
	flat := make([]Expr, 0, len(factors))
	for _, f := range factors {
		if inner, ok := f.(*Mul); ok {
			flat = append(flat, inner.factors...)
		} else {
			flat = append(flat, f)
		}
	}

	coeff := N(1)
	var container Expr
	others := make([]Expr, 0, len(flat))
	for _, f := range flat {
		switch v := f.(type) {
		case *Num:
			if v.IsZero() {
				return N(0)
			}
			coeff = numMul(coeff, v)
		case *Tuple, *Matrix:
			if container != nil {
				panic(fmt.Sprintf("symbolic: product of %s and %s, use MatMulOf", container, f))
			}
			container = f
		default:
			others = append(others, f)
		}
	}
	if container != nil {
		scale := MulOf(append([]Expr{coeff}, others...)...)
		return scaleContainer(container, scale)
	}

	groups := map[string]*mulGroup{}
	order := []*mulGroup{}
	for _, f := range others {
		base, exp := f, Expr(N(1))
		if p, ok := f.(*Pow); ok {
			base, exp = p.base, p.exp
		}
		key := Key(base)
		g, seen := groups[key]
		if !seen {
			g = &mulGroup{base: base}
			groups[key] = g
			order = append(order, g)
		}
		g.exps = append(g.exps, exp)
	}

	parts := make([]Expr, 0, len(order))
	rerun := false
	for _, g := range order {
		exp := g.exps[0]
		if len(g.exps) > 1 {
			exp = AddOf(g.exps...)
		}
		p := g.base
		if len(g.exps) > 1 || !IsOne(exp) {
			p = PowOf(g.base, exp)
		}
		switch v := p.(type) {
		case *Num:
			if v.IsZero() {
				return N(0)
			}
			coeff = numMul(coeff, v)
		case *Mul:
			rerun = true
			parts = append(parts, v.factors...)
		default:
			parts = append(parts, p)
		}
	}
	if rerun {
		return MulOf(append([]Expr{coeff}, parts...)...)
	}
	if len(parts) == 0 {
		return coeff
	}

	// Precompute sort keys to avoid repeated String() calls in comparator.
	type keyed struct {
		e        Expr
		key, tie string
	}
	ks := make([]keyed, len(parts))
	for i, e := range parts {
		ks[i] = keyed{e: e, key: e.String(), tie: Key(e)}
	}
	sort.SliceStable(ks, func(i, j int) bool {
		if ks[i].key != ks[j].key {
			return ks[i].key < ks[j].key
		}
		return ks[i].tie < ks[j].tie
	})
	sorted := make([]Expr, len(ks))
	for i := range ks {
		sorted[i] = ks[i].e
	}

	if coeff.IsOne() {
		return mulRaw(sorted)
	}
	return &Mul{factors: append([]Expr{coeff}, sorted...)}
}

// mulRaw wraps already canonical factors without re-simplifying them.
func mulRaw(factors []Expr) Expr {
	switch len(factors) {
	case 0:
		return N(1)
	case 1:
		return factors[0]
	}
	return &Mul{factors: append([]Expr(nil), factors...)}
}

func scaleContainer(c, s Expr) Expr {
	if IsOne(s) {
		return c
	}
	switch v := c.(type) {
	case *Tuple:
		out := make([]Expr, v.Len())
		for i, it := range v.items {
			out[i] = MulOf(s, it)
		}
		return TupleOf(out...)
	case *Matrix:
		return v.Scale(s)
	}
	return MulOf(s, c)
}

func (m *Mul) Type() string              { return "mul" }
func (m *Mul) Args() []Expr              { return m.factors }
func (m *Mul) Factors() []Expr           { return m.factors }
func (m *Mul) WithArgs(args []Expr) Expr { return MulOf(args...) }

func (m *Mul) String() string {
	parts := make([]string, 0, len(m.factors))
	prefix := ""
	for i, f := range m.factors {
		if n, ok := f.(*Num); ok && i == 0 && n.IsNegOne() {
			prefix = "-"
			continue
		}
		switch f.(type) {
		case *Add:
			parts = append(parts, "("+f.String()+")")
		default:
			parts = append(parts, f.String())
		}
	}
	return prefix + strings.Join(parts, "*")
}

func (m *Mul) LaTeX() string {
	parts := make([]string, 0, len(m.factors))
	prefix := ""
	for i, f := range m.factors {
		if n, ok := f.(*Num); ok && i == 0 && n.IsNegOne() {
			prefix = "-"
			continue
		}
		if _, isAdd := f.(*Add); isAdd {
			parts = append(parts, "\\left("+f.LaTeX()+"\\right)")
		} else {
			parts = append(parts, f.LaTeX())
		}
	}
	return prefix + strings.Join(parts, " ")
}

func (m *Mul) Diff(varName string) Expr {
	terms := make([]Expr, len(m.factors))
	for i, fi := range m.factors {
		dfi := fi.Diff(varName)
		if IsZero(dfi) {
			terms[i] = N(0)
			continue
		}
		others := make([]Expr, 0, len(m.factors))
		others = append(others, dfi)
		for j, fj := range m.factors {
			if j != i {
				others = append(others, fj)
			}
		}
		terms[i] = MulOf(others...)
	}
	return AddOf(terms...)
}

func (m *Mul) Equal(other Expr) bool {
	o, ok := other.(*Mul)
	return ok && equalSlices(m.factors, o.factors)
}

// ============================================================
// Pow: base^exponent
// ============================================================

type Pow struct{ base, exp Expr }

const maxFoldExponent = 64

// PowOf returns base^exp. Integer powers of numbers are folded, integer
// powers of products are distributed over the factors and nested integer
// powers are combined.
func PowOf(base, exp Expr) Expr {
	en, expIsNum := exp.(*Num)
	if expIsNum && en.IsZero() {
		return N(1)
	}
	if expIsNum && en.IsOne() {
		return base
	}

	if bn, ok := base.(*Num); ok {
		switch {
		case bn.IsZero():
			// 0^0 and 0^negative stay unevaluated.
			if expIsNum && en.Sign() > 0 {
				return N(0)
			}
			return &Pow{base: base, exp: exp}
		case bn.IsOne():
			return N(1)
		case expIsNum && en.IsInteger():
			e := en.val.Num().Int64()
			if e >= -maxFoldExponent && e <= maxFoldExponent {
				return numPow(bn, e)
			}
		}
	}

	if expIsNum && en.IsInteger() {
		switch b := base.(type) {
		case *Pow:
			return PowOf(b.base, MulOf(b.exp, exp))
		case *Mul:
			fs := make([]Expr, len(b.factors))
			for i, f := range b.factors {
				fs[i] = PowOf(f, exp)
			}
			return MulOf(fs...)
		}
	}
	return &Pow{base: base, exp: exp}
}

func (p *Pow) Type() string              { return "pow" }
func (p *Pow) Args() []Expr              { return []Expr{p.base, p.exp} }
func (p *Pow) Base() Expr                { return p.base }
func (p *Pow) ExpExpr() Expr             { return p.exp }
func (p *Pow) WithArgs(args []Expr) Expr { return PowOf(args[0], args[1]) }

func (p *Pow) String() string {
	baseStr := p.base.String()
	switch b := p.base.(type) {
	case *Add, *Mul, *Pow:
		baseStr = "(" + baseStr + ")"
	case *Num:
		if !b.IsInteger() || b.Sign() < 0 {
			baseStr = "(" + baseStr + ")"
		}
	}
	expStr := p.exp.String()
	switch e := p.exp.(type) {
	case *Add, *Mul, *Pow:
		expStr = "(" + expStr + ")"
	case *Num:
		if !e.IsInteger() {
			expStr = "(" + expStr + ")"
		}
	}
	return baseStr + "^" + expStr
}

func (p *Pow) LaTeX() string {
	if n, ok := p.exp.(*Num); ok && n.Rat().Cmp(F(1, 2).val) == 0 {
		return "\\sqrt{" + p.base.LaTeX() + "}"
	}
	baseStr := p.base.LaTeX()
	switch p.base.(type) {
	case *Add, *Mul, *Pow:
		baseStr = "\\left(" + baseStr + "\\right)"
	}
	return baseStr + "^{" + p.exp.LaTeX() + "}"
}

func (p *Pow) Diff(varName string) Expr {
	db := p.base.Diff(varName)
	de := p.exp.Diff(varName)
	if IsZero(de) {
		if IsZero(db) {
			return N(0)
		}
		return MulOf(p.exp, PowOf(p.base, AddOf(p.exp, N(-1))), db)
	}
	return MulOf(p, AddOf(
		MulOf(de, LnOf(p.base)),
		MulOf(p.exp, db, PowOf(p.base, N(-1))),
	))
}

func (p *Pow) Equal(other Expr) bool {
	o, ok := other.(*Pow)
	return ok && p.base.Equal(o.base) && p.exp.Equal(o.exp)
}
