package form

import (
	"errors"
	"fmt"

	"github.com/njchilds90/gosympde/symbolic"
)

var (
	// ErrNonSeparable is returned by Tensorize for a monomial that cannot be
	// split into one 1D kernel per axis.
	ErrNonSeparable = errors.New("form: non-separable expression")
	// ErrWrongArgument is returned for malformed argument lists.
	ErrWrongArgument = errors.New("form: wrong argument")
	// ErrUnsupported is returned when a pass does not handle its input.
	ErrUnsupported = errors.New("form: unsupported")
)

// UnconsistentLinearExpressionError reports a form body that is not linear
// in its declared arguments.
type UnconsistentLinearExpressionError struct {
	Form string
	Term symbolic.Expr
}

func (e *UnconsistentLinearExpressionError) Error() string {
	return fmt.Sprintf("form: %s is not linear in its arguments: term %s", e.Form, e.Term)
}

// UnconsistentLhsError reports an equation whose left-hand side is not a
// single call of a bilinear form.
type UnconsistentLhsError struct {
	Lhs    symbolic.Expr
	Reason string
}

func (e *UnconsistentLhsError) Error() string {
	return fmt.Sprintf("form: inconsistent lhs %s: %s", e.Lhs, e.Reason)
}

// UnconsistentRhsError reports an equation whose right-hand side is not a
// single call of a linear form on the test functions of the lhs.
type UnconsistentRhsError struct {
	Rhs    symbolic.Expr
	Reason string
}

func (e *UnconsistentRhsError) Error() string {
	return fmt.Sprintf("form: inconsistent rhs %s: %s", e.Rhs, e.Reason)
}

// UnconsistentBCError reports a boundary condition that does not fit the
// equation it is attached to.
type UnconsistentBCError struct {
	BC     *EssentialBC
	Reason string
}

func (e *UnconsistentBCError) Error() string {
	return fmt.Sprintf("form: inconsistent boundary condition %s: %s", e.BC, e.Reason)
}
