package symbolic

import (
	"fmt"
	"sort"
	"strings"
)

// ============================================================
// Func: named function applications
// ============================================================

// Func is either an elementary function (sin, cos, exp, ...) of a single
// argument or an undefined function f(x, y) of several arguments. Partial
// derivatives of undefined functions are kept as Derivative atoms.
type Func struct {
	name string
	args []Expr
}

var elementary = map[string]bool{
	"sin": true, "cos": true, "tan": true, "exp": true, "ln": true,
	"asin": true, "acos": true, "atan": true,
	"sinh": true, "cosh": true, "tanh": true, "abs": true,
}

// FuncOf applies the function called name to args. Elementary names are
// routed through their constructors so the usual special values fold.
func FuncOf(name string, args ...Expr) Expr {
	if elementary[name] && len(args) == 1 {
		return unaryFunc(name, args[0])
	}
	return &Func{name: name, args: append([]Expr(nil), args...)}
}

func SinOf(arg Expr) Expr  { return unaryFunc("sin", arg) }
func CosOf(arg Expr) Expr  { return unaryFunc("cos", arg) }
func TanOf(arg Expr) Expr  { return unaryFunc("tan", arg) }
func ExpOf(arg Expr) Expr  { return unaryFunc("exp", arg) }
func LnOf(arg Expr) Expr   { return unaryFunc("ln", arg) }
func SinhOf(arg Expr) Expr { return unaryFunc("sinh", arg) }
func CoshOf(arg Expr) Expr { return unaryFunc("cosh", arg) }
func TanhOf(arg Expr) Expr { return unaryFunc("tanh", arg) }

func unaryFunc(name string, arg Expr) Expr {
	switch name {
	case "sin", "tan", "asin", "atan", "sinh", "tanh":
		if IsZero(arg) {
			return N(0)
		}
	case "cos", "cosh":
		if IsZero(arg) {
			return N(1)
		}
	case "ln":
		if IsOne(arg) {
			return N(0)
		}
		if inner, ok := arg.(*Func); ok && inner.name == "exp" {
			return inner.args[0]
		}
	case "exp":
		if IsZero(arg) {
			return N(1)
		}
		if inner, ok := arg.(*Func); ok && inner.name == "ln" {
			return inner.args[0]
		}
	case "abs":
		if n, ok := arg.(*Num); ok {
			if n.Sign() < 0 {
				return numNeg(n)
			}
			return n
		}
	}
	return &Func{name: name, args: []Expr{arg}}
}

func (f *Func) known() bool { return elementary[f.name] && len(f.args) == 1 }

func (f *Func) Type() string     { return "func" }
func (f *Func) Args() []Expr     { return f.args }
func (f *Func) FuncName() string { return f.name }

func (f *Func) WithArgs(args []Expr) Expr { return FuncOf(f.name, args...) }

func (f *Func) String() string {
	return f.name + "(" + strings.Join(stringsOf(f.args), ", ") + ")"
}

func (f *Func) LaTeX() string {
	inner := strings.Join(latexOf(f.args), ", ")
	switch f.name {
	case "sin", "cos", "tan", "exp", "sinh", "cosh", "tanh":
		return "\\" + f.name + "\\left(" + inner + "\\right)"
	case "ln":
		return "\\ln\\left(" + inner + "\\right)"
	case "asin":
		return "\\arcsin\\left(" + inner + "\\right)"
	case "acos":
		return "\\arccos\\left(" + inner + "\\right)"
	case "atan":
		return "\\arctan\\left(" + inner + "\\right)"
	case "abs":
		return "\\left|" + inner + "\\right|"
	}
	return "\\operatorname{" + f.name + "}\\left(" + inner + "\\right)"
}

func (f *Func) Diff(varName string) Expr {
	if !f.known() {
		return f.diffUndefined(varName)
	}
	arg := f.args[0]
	du := arg.Diff(varName)
	if IsZero(du) {
		return N(0)
	}
	var outer Expr
	switch f.name {
	case "sin":
		outer = CosOf(arg)
	case "cos":
		outer = Neg(SinOf(arg))
	case "tan":
		outer = AddOf(N(1), PowOf(TanOf(arg), N(2)))
	case "exp":
		outer = ExpOf(arg)
	case "ln":
		outer = PowOf(arg, N(-1))
	case "asin":
		outer = PowOf(AddOf(N(1), Neg(PowOf(arg, N(2)))), F(-1, 2))
	case "acos":
		outer = Neg(PowOf(AddOf(N(1), Neg(PowOf(arg, N(2)))), F(-1, 2)))
	case "atan":
		outer = PowOf(AddOf(N(1), PowOf(arg, N(2))), N(-1))
	case "sinh":
		outer = CoshOf(arg)
	case "cosh":
		outer = SinhOf(arg)
	case "tanh":
		outer = AddOf(N(1), Neg(PowOf(TanhOf(arg), N(2))))
	case "abs":
		outer = FuncOf("sign", arg)
	}
	return MulOf(outer, du)
}

// diffUndefined differentiates f(args). When every argument is a distinct
// symbol the result is the atom d_var f(args); otherwise the chain rule is
// applied with D1[f], D2[f], ... standing for the partial derivatives.
func (f *Func) diffUndefined(varName string) Expr {
	plain := true
	seen := map[string]bool{}
	for _, a := range f.args {
		s, ok := a.(*Sym)
		if !ok || seen[s.name] {
			plain = false
			break
		}
		seen[s.name] = true
	}
	if plain {
		if !seen[varName] {
			return N(0)
		}
		return NewDerivative(f, varName)
	}
	terms := make([]Expr, 0, len(f.args))
	for k, a := range f.args {
		da := a.Diff(varName)
		if IsZero(da) {
			continue
		}
		partial := &Func{name: fmt.Sprintf("D%d[%s]", k+1, f.name), args: f.args}
		terms = append(terms, MulOf(partial, da))
	}
	return AddOf(terms...)
}

func (f *Func) Equal(other Expr) bool {
	o, ok := other.(*Func)
	return ok && f.name == o.name && equalSlices(f.args, o.args)
}

// ============================================================
// Derivative: partial derivative atom
// ============================================================

// Derivative is the atom d_{v1}...d_{vk} e of an expression the kernel cannot
// differentiate further (a field, a test function, a mapping component or an
// undefined function). Variables are kept sorted, so derivatives commute.
type Derivative struct {
	expr Expr
	vars []string
}

// NewDerivative differentiates e with respect to vars without evaluating it.
// Nested derivatives are merged.
func NewDerivative(e Expr, vars ...string) Expr {
	if len(vars) == 0 {
		return e
	}
	all := make([]string, 0, len(vars)+2)
	if d, ok := e.(*Derivative); ok {
		all = append(all, d.vars...)
		e = d.expr
	}
	all = append(all, vars...)
	sort.Strings(all)
	return &Derivative{expr: e, vars: all}
}

func (d *Derivative) Type() string   { return "derivative" }
func (d *Derivative) Args() []Expr   { return []Expr{d.expr} }
func (d *Derivative) Expr() Expr     { return d.expr }
func (d *Derivative) Vars() []string { return append([]string(nil), d.vars...) }
func (d *Derivative) Order() int     { return len(d.vars) }

// WithArgs differentiates the new operand for real, so substituting an
// analytic expression into an atom yields its derivative.
func (d *Derivative) WithArgs(args []Expr) Expr {
	out := args[0]
	for _, v := range d.vars {
		out = out.Diff(v)
	}
	return out
}

func (d *Derivative) String() string {
	s := d.expr.String()
	for i := len(d.vars) - 1; i >= 0; i-- {
		s = "d" + d.vars[i] + "(" + s + ")"
	}
	return s
}

func (d *Derivative) LaTeX() string {
	var sb strings.Builder
	sb.WriteString("\\partial_{")
	for i, v := range d.vars {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(latexName(v))
	}
	sb.WriteString("} ")
	sb.WriteString(d.expr.LaTeX())
	return sb.String()
}

func (d *Derivative) Diff(varName string) Expr {
	if IsZero(d.expr.Diff(varName)) {
		return N(0)
	}
	return NewDerivative(d, varName)
}

func (d *Derivative) Equal(other Expr) bool {
	o, ok := other.(*Derivative)
	if !ok || len(d.vars) != len(o.vars) || !d.expr.Equal(o.expr) {
		return false
	}
	for i := range d.vars {
		if d.vars[i] != o.vars[i] {
			return false
		}
	}
	return true
}
