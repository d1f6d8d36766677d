// Package symbolic is the expression kernel underneath the weak-form layer.
//
// Expressions are immutable trees kept in canonical form by their
// constructors:
//   - sums and products are flattened and like terms are collected
//   - numeric coefficients are exact rationals (math/big.Rat)
//   - operands are ordered by their printed form
//
// Structurally equal results therefore compare Equal, which is what the
// calculus rewriting and the form passes rely on.
package symbolic

import (
	"fmt"
	"math/big"
	"strings"
)

// ============================================================
// Core Interface
// ============================================================

// Expr is implemented by every node of an expression tree, including the
// nodes contributed by the topology, calculus and form packages.
type Expr interface {
	Type() string
	String() string
	LaTeX() string
	Diff(varName string) Expr
	Equal(other Expr) bool
	Args() []Expr
	// WithArgs rebuilds the node around new children, re-applying the
	// node's canonicalization rules.
	WithArgs(args []Expr) Expr
}

// Keyer is implemented by leaves whose printed form does not identify them,
// e.g. two elements sharing a name but living in different spaces.
type Keyer interface {
	Key() string
}

// Key returns a string that identifies e structurally. It is used for
// grouping like terms and as the memo key of Expand.
func Key(e Expr) string {
	if k, ok := e.(Keyer); ok {
		return k.Key()
	}
	args := e.Args()
	if len(args) == 0 {
		return e.Type() + ":" + e.String()
	}
	var sb strings.Builder
	sb.WriteString(e.Type())
	sb.WriteString(":")
	sb.WriteString(e.String())
	sb.WriteString("{")
	for i, a := range args {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(Key(a))
	}
	sb.WriteString("}")
	return sb.String()
}

// ============================================================
// Num: exact rational number
// ============================================================

type Num struct{ val *big.Rat }

func N(n int64) *Num { return &Num{val: new(big.Rat).SetInt64(n)} }
func F(p, q int64) *Num {
	if q == 0 {
		panic("symbolic: denominator is zero")
	}
	return &Num{val: new(big.Rat).SetFrac(big.NewInt(p), big.NewInt(q))}
}
func NRat(r *big.Rat) *Num { return &Num{val: new(big.Rat).Set(r)} }

func (n *Num) Type() string         { return "num" }
func (n *Num) Args() []Expr         { return nil }
func (n *Num) Diff(string) Expr     { return N(0) }
func (n *Num) WithArgs([]Expr) Expr { return n }
func (n *Num) Equal(other Expr) bool {
	o, ok := other.(*Num)
	return ok && n.val.Cmp(o.val) == 0
}
func (n *Num) Float64() float64 { f, _ := n.val.Float64(); return f }
func (n *Num) IsZero() bool     { return n.val.Sign() == 0 }
func (n *Num) IsOne() bool      { return n.val.Cmp(big.NewRat(1, 1)) == 0 }
func (n *Num) IsNegOne() bool   { return n.val.Cmp(big.NewRat(-1, 1)) == 0 }
func (n *Num) IsInteger() bool  { return n.val.IsInt() }
func (n *Num) Sign() int        { return n.val.Sign() }
func (n *Num) Rat() *big.Rat    { return new(big.Rat).Set(n.val) }

func (n *Num) String() string {
	if n.val.IsInt() {
		return n.val.Num().String()
	}
	return n.val.RatString()
}

func (n *Num) LaTeX() string {
	if n.val.IsInt() {
		return n.val.Num().String()
	}
	sign := ""
	v := new(big.Rat).Set(n.val)
	if v.Sign() < 0 {
		sign = "-"
		v.Neg(v)
	}
	return fmt.Sprintf("%s\\frac{%s}{%s}", sign, v.Num().String(), v.Denom().String())
}

func numAdd(a, b *Num) *Num { return &Num{val: new(big.Rat).Add(a.val, b.val)} }
func numMul(a, b *Num) *Num { return &Num{val: new(big.Rat).Mul(a.val, b.val)} }
func numNeg(a *Num) *Num    { return &Num{val: new(big.Rat).Neg(a.val)} }
func numRecip(a *Num) *Num {
	if a.IsZero() {
		panic("symbolic: division by zero")
	}
	return &Num{val: new(big.Rat).Inv(a.val)}
}

// numPow raises a to an integer power.
func numPow(a *Num, e int64) *Num {
	if e < 0 {
		return numRecip(numPow(a, -e))
	}
	num := new(big.Int).Exp(a.val.Num(), big.NewInt(e), nil)
	den := new(big.Int).Exp(a.val.Denom(), big.NewInt(e), nil)
	return &Num{val: new(big.Rat).SetFrac(num, den)}
}

// ============================================================
// Sym: symbolic variable
// ============================================================

// Sym is a free variable. Coordinates (x, y, z, x1, x2, x3) and basis
// placeholders (Ni, Nj_x) are symbols.
type Sym struct{ name string }

func S(name string) *Sym            { return &Sym{name: name} }
func (s *Sym) Type() string         { return "sym" }
func (s *Sym) String() string       { return s.name }
func (s *Sym) LaTeX() string        { return latexName(s.name) }
func (s *Sym) Name() string         { return s.name }
func (s *Sym) Args() []Expr         { return nil }
func (s *Sym) WithArgs([]Expr) Expr { return s }
func (s *Sym) Equal(other Expr) bool {
	o, ok := other.(*Sym)
	return ok && s.name == o.name
}
func (s *Sym) Diff(varName string) Expr {
	if s.name == varName {
		return N(1)
	}
	return N(0)
}

// Symbols returns one symbol per name.
func Symbols(names ...string) []Expr {
	out := make([]Expr, len(names))
	for i, n := range names {
		out[i] = S(n)
	}
	return out
}

// ============================================================
// Constant: named quantity independent of every coordinate
// ============================================================

type Constant struct{ name string }

// Pi is the only constant with a known numeric value.
var Pi = &Constant{name: "pi"}

func C(name string) *Constant            { return &Constant{name: name} }
func (c *Constant) Type() string         { return "constant" }
func (c *Constant) String() string       { return c.name }
func (c *Constant) LaTeX() string        { return latexName(c.name) }
func (c *Constant) Name() string         { return c.name }
func (c *Constant) Args() []Expr         { return nil }
func (c *Constant) WithArgs([]Expr) Expr { return c }
func (c *Constant) Diff(string) Expr     { return N(0) }
func (c *Constant) Equal(other Expr) bool {
	o, ok := other.(*Constant)
	return ok && c.name == o.name
}

var greek = map[string]bool{
	"alpha": true, "beta": true, "gamma": true, "delta": true, "epsilon": true,
	"kappa": true, "lambda": true, "mu": true, "nu": true, "pi": true,
	"rho": true, "sigma": true, "tau": true, "theta": true, "omega": true,
}

func latexName(name string) string {
	if greek[name] {
		return "\\" + name
	}
	if i := strings.Index(name, "_"); i > 0 && i < len(name)-1 {
		return latexName(name[:i]) + "_{" + name[i+1:] + "}"
	}
	return name
}

// ============================================================
// Small helpers
// ============================================================

func IsZero(e Expr) bool { n, ok := e.(*Num); return ok && n.IsZero() }
func IsOne(e Expr) bool  { n, ok := e.(*Num); return ok && n.IsOne() }

func Neg(e Expr) Expr      { return MulOf(N(-1), e) }
func Minus(a, b Expr) Expr { return AddOf(a, Neg(b)) }
func DivOf(a, b Expr) Expr { return MulOf(a, PowOf(b, N(-1))) }
func SqrtOf(arg Expr) Expr { return PowOf(arg, F(1, 2)) }
func Square(arg Expr) Expr { return PowOf(arg, N(2)) }
func Recip(arg Expr) Expr  { return PowOf(arg, N(-1)) }

// IsConstant reports whether e depends on no symbol, element or derivative:
// numbers, constants and arithmetic built only from them.
func IsConstant(e Expr) bool {
	switch v := e.(type) {
	case *Num, *Constant:
		return true
	case *Add, *Mul, *Pow:
		for _, a := range v.Args() {
			if !IsConstant(a) {
				return false
			}
		}
		return true
	case *Func:
		if !v.known() {
			return false
		}
		for _, a := range v.args {
			if !IsConstant(a) {
				return false
			}
		}
		return true
	}
	return false
}

// Terms returns the summands of e, or e itself.
func Terms(e Expr) []Expr {
	if a, ok := e.(*Add); ok {
		return a.Terms()
	}
	return []Expr{e}
}

// SplitCoeff separates the numeric coefficient of a product.
func SplitCoeff(e Expr) (*Num, Expr) {
	switch v := e.(type) {
	case *Num:
		return v, N(1)
	case *Mul:
		if c, ok := v.factors[0].(*Num); ok {
			return c, mulRaw(v.factors[1:])
		}
	}
	return N(1), e
}

// Factors returns the non-numeric factors of a product, or e itself.
func Factors(e Expr) []Expr {
	_, rest := SplitCoeff(e)
	if m, ok := rest.(*Mul); ok {
		return m.Factors()
	}
	if IsOne(rest) {
		return nil
	}
	return []Expr{rest}
}

func equalSlices(a, b []Expr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func stringsOf(es []Expr) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.String()
	}
	return out
}

func latexOf(es []Expr) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.LaTeX()
	}
	return out
}
