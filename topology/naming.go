package topology

import (
	"strconv"
	"strings"

	"github.com/njchilds90/gosympde/symbolic"
)

// SymbolicExpr renders the atoms of an atomized expression as flat symbols
// for code generation: u, u_xy, w_0_x, and x, x_x2 for M[0] and d_{x2} M[0].
func SymbolicExpr(e symbolic.Expr) symbolic.Expr {
	return symbolic.Replace(e, func(n symbolic.Expr) (symbolic.Expr, bool) {
		if d, ok := n.(*symbolic.Derivative); ok {
			base, ok := atomName(d.Expr())
			if !ok {
				return nil, false
			}
			return symbolic.S(base + "_" + strings.Join(d.Vars(), "")), true
		}
		name, ok := atomName(n)
		if !ok {
			return nil, false
		}
		return symbolic.S(name), true
	})
}

func atomName(e symbolic.Expr) (string, bool) {
	switch v := e.(type) {
	case *Element:
		return v.name, true
	case *BoundaryVector:
		return v.name, true
	case *MappingComponent:
		if v.index < len(PhysicalCoordinates) {
			return PhysicalCoordinates[v.index], true
		}
	case *Indexed:
		if base, ok := atomName(v.base); ok {
			return base + "_" + strconv.Itoa(v.index), true
		}
	}
	return "", false
}
