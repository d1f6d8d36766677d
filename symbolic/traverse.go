package symbolic

import (
	"fmt"
	"math"
	"sync"
)

// ============================================================
// Traversal and substitution
// ============================================================

// Replace rebuilds e bottom-up after offering every node to fn, outermost
// first. When fn reports a replacement the node's children are not visited.
func Replace(e Expr, fn func(Expr) (Expr, bool)) Expr {
	if r, ok := fn(e); ok {
		return r
	}
	args := e.Args()
	if len(args) == 0 {
		return e
	}
	changed := false
	out := make([]Expr, len(args))
	for i, a := range args {
		out[i] = Replace(a, fn)
		if out[i] != a {
			changed = true
		}
	}
	if !changed {
		return e
	}
	return e.WithArgs(out)
}

// Subs replaces every occurrence of old in e by value.
func Subs(e, old, value Expr) Expr {
	return Replace(e, func(n Expr) (Expr, bool) {
		if n.Equal(old) {
			return value, true
		}
		return nil, false
	})
}

// Walk visits e in pre-order. Returning false from fn skips the children of
// the current node.
func Walk(e Expr, fn func(Expr) bool) {
	if !fn(e) {
		return
	}
	for _, a := range e.Args() {
		Walk(a, fn)
	}
}

// Atoms returns the distinct subexpressions of e matching pred, in order of
// first appearance. Matching nodes are not searched further.
func Atoms(e Expr, pred func(Expr) bool) []Expr {
	seen := map[string]bool{}
	var out []Expr
	Walk(e, func(n Expr) bool {
		if !pred(n) {
			return true
		}
		k := Key(n)
		if !seen[k] {
			seen[k] = true
			out = append(out, n)
		}
		return false
	})
	return out
}

// Has reports whether some subexpression of e matches pred.
func Has(e Expr, pred func(Expr) bool) bool {
	found := false
	Walk(e, func(n Expr) bool {
		if found {
			return false
		}
		if pred(n) {
			found = true
			return false
		}
		return true
	})
	return found
}

func FreeSymbols(e Expr) map[string]struct{} {
	result := map[string]struct{}{}
	Walk(e, func(n Expr) bool {
		if s, ok := n.(*Sym); ok {
			result[s.name] = struct{}{}
		}
		return true
	})
	return result
}

// ============================================================
// Expansion
// ============================================================

const maxCacheEntries = 1 << 14

// expandCache memoizes Expand across calls. It is a pure performance memo:
// clearing it never changes results.
var expandCache = struct {
	sync.RWMutex
	m map[string]Expr
}{m: map[string]Expr{}}

// ClearCache drops every memoized expansion.
func ClearCache() {
	expandCache.Lock()
	expandCache.m = map[string]Expr{}
	expandCache.Unlock()
}

// CacheLen reports the number of memoized expansions.
func CacheLen() int {
	expandCache.RLock()
	defer expandCache.RUnlock()
	return len(expandCache.m)
}

// Expand distributes products over sums and small positive integer powers,
// everywhere in e, including inside tuples, matrices and operator nodes.
func Expand(e Expr) Expr {
	switch e.(type) {
	case *Num, *Sym, *Constant:
		return e
	}
	key := Key(e)
	expandCache.RLock()
	r, ok := expandCache.m[key]
	expandCache.RUnlock()
	if ok {
		return r
	}
	r = expandExpr(e)
	expandCache.Lock()
	if len(expandCache.m) >= maxCacheEntries {
		expandCache.m = map[string]Expr{}
	}
	expandCache.m[key] = r
	expandCache.Unlock()
	return r
}

func expandExpr(e Expr) Expr {
	switch v := e.(type) {
	case *Mul:
		expanded := make([]Expr, len(v.factors))
		for i, f := range v.factors {
			expanded[i] = Expand(f)
		}
		for i, f := range expanded {
			if a, ok := f.(*Add); ok {
				rest := make([]Expr, 0, len(expanded)-1)
				for j, ef := range expanded {
					if j != i {
						rest = append(rest, ef)
					}
				}
				terms := make([]Expr, len(a.terms))
				for k, t := range a.terms {
					terms[k] = Expand(MulOf(append([]Expr{t}, rest...)...))
				}
				return AddOf(terms...)
			}
		}
		return MulOf(expanded...)
	case *Add:
		newTerms := make([]Expr, len(v.terms))
		for i, t := range v.terms {
			newTerms[i] = Expand(t)
		}
		return AddOf(newTerms...)
	case *Pow:
		base := Expand(v.base)
		if n, ok := v.exp.(*Num); ok && n.IsInteger() {
			exp := n.val.Num().Int64()
			if _, isAdd := base.(*Add); isAdd && exp >= 2 && exp <= 10 {
				result := base
				for i := int64(1); i < exp; i++ {
					result = Expand(mulDistribute(result, base))
				}
				return result
			}
		}
		return PowOf(base, Expand(v.exp))
	}
	args := e.Args()
	if len(args) == 0 {
		return e
	}
	out := make([]Expr, len(args))
	for i, a := range args {
		out[i] = Expand(a)
	}
	return e.WithArgs(out)
}

// mulDistribute multiplies two expanded sums term by term. MulOf alone would
// fold a*a back into a^2.
func mulDistribute(a, b Expr) Expr {
	at, bt := Terms(a), Terms(b)
	terms := make([]Expr, 0, len(at)*len(bt))
	for _, x := range at {
		for _, y := range bt {
			terms = append(terms, MulOf(x, y))
		}
	}
	return AddOf(terms...)
}

// ============================================================
// Numeric evaluation
// ============================================================

// EvalFloat evaluates e with the given values for symbols and constants.
// Pi defaults to math.Pi.
func EvalFloat(e Expr, env map[string]float64) (float64, error) {
	switch v := e.(type) {
	case *Num:
		return v.Float64(), nil
	case *Sym:
		if x, ok := env[v.name]; ok {
			return x, nil
		}
		return 0, fmt.Errorf("symbolic: no value for symbol %q", v.name)
	case *Constant:
		if x, ok := env[v.name]; ok {
			return x, nil
		}
		if v.name == Pi.name {
			return math.Pi, nil
		}
		return 0, fmt.Errorf("symbolic: no value for constant %q", v.name)
	case *Add:
		acc := 0.0
		for _, t := range v.terms {
			x, err := EvalFloat(t, env)
			if err != nil {
				return 0, err
			}
			acc += x
		}
		return acc, nil
	case *Mul:
		acc := 1.0
		for _, f := range v.factors {
			x, err := EvalFloat(f, env)
			if err != nil {
				return 0, err
			}
			acc *= x
		}
		return acc, nil
	case *Pow:
		b, err := EvalFloat(v.base, env)
		if err != nil {
			return 0, err
		}
		p, err := EvalFloat(v.exp, env)
		if err != nil {
			return 0, err
		}
		return math.Pow(b, p), nil
	case *Func:
		if !v.known() {
			return 0, fmt.Errorf("symbolic: cannot evaluate undefined function %s", v.name)
		}
		x, err := EvalFloat(v.args[0], env)
		if err != nil {
			return 0, err
		}
		return evalElementary(v.name, x), nil
	}
	return 0, fmt.Errorf("symbolic: cannot evaluate %s node %s numerically", e.Type(), e)
}

func evalElementary(name string, v float64) float64 {
	switch name {
	case "sin":
		return math.Sin(v)
	case "cos":
		return math.Cos(v)
	case "tan":
		return math.Tan(v)
	case "exp":
		return math.Exp(v)
	case "ln":
		return math.Log(v)
	case "asin":
		return math.Asin(v)
	case "acos":
		return math.Acos(v)
	case "atan":
		return math.Atan(v)
	case "sinh":
		return math.Sinh(v)
	case "cosh":
		return math.Cosh(v)
	case "tanh":
		return math.Tanh(v)
	case "abs":
		return math.Abs(v)
	}
	return math.NaN()
}
