package symbolic

import (
	"fmt"
	"strings"
)

// ============================================================
// Tuple: ordered list of expressions
// ============================================================

type Tuple struct{ items []Expr }

func TupleOf(items ...Expr) *Tuple { return &Tuple{items: append([]Expr(nil), items...)} }

func (t *Tuple) Type() string              { return "tuple" }
func (t *Tuple) Args() []Expr              { return t.items }
func (t *Tuple) Len() int                  { return len(t.items) }
func (t *Tuple) At(i int) Expr             { return t.items[i] }
func (t *Tuple) WithArgs(args []Expr) Expr { return TupleOf(args...) }

func (t *Tuple) String() string {
	return "(" + strings.Join(stringsOf(t.items), ", ") + ")"
}

func (t *Tuple) LaTeX() string {
	return "\\left(" + strings.Join(latexOf(t.items), ", ") + "\\right)"
}

func (t *Tuple) Diff(varName string) Expr {
	out := make([]Expr, len(t.items))
	for i, it := range t.items {
		out[i] = it.Diff(varName)
	}
	return TupleOf(out...)
}

func (t *Tuple) Equal(other Expr) bool {
	o, ok := other.(*Tuple)
	return ok && equalSlices(t.items, o.items)
}

// ============================================================
// Matrix: symbolic matrix
// ============================================================

type Matrix struct {
	rows, cols int
	data       [][]Expr
}

func NewMatrix(rows, cols int) *Matrix {
	data := make([][]Expr, rows)
	for i := range data {
		data[i] = make([]Expr, cols)
		for j := range data[i] {
			data[i][j] = N(0)
		}
	}
	return &Matrix{rows: rows, cols: cols, data: data}
}

func MatrixFromSlice(rows, cols int, entries []Expr) *Matrix {
	if len(entries) != rows*cols {
		panic(fmt.Sprintf("symbolic: MatrixFromSlice needs %d entries, got %d", rows*cols, len(entries)))
	}
	m := NewMatrix(rows, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			m.data[i][j] = entries[i*cols+j]
		}
	}
	return m
}

func (m *Matrix) checkBounds(row, col int) {
	if row < 0 || row >= m.rows || col < 0 || col >= m.cols {
		panic(fmt.Sprintf("symbolic: matrix index out of range [%d,%d] for %dx%d", row, col, m.rows, m.cols))
	}
}

func (m *Matrix) Get(row, col int) Expr {
	m.checkBounds(row, col)
	return m.data[row][col]
}

// Set is meant for filling a freshly built matrix; published matrices are
// treated as immutable.
func (m *Matrix) Set(row, col int, val Expr) {
	m.checkBounds(row, col)
	m.data[row][col] = val
}

func (m *Matrix) Rows() int    { return m.rows }
func (m *Matrix) Cols() int    { return m.cols }
func (m *Matrix) Type() string { return "matrix" }

func (m *Matrix) Args() []Expr {
	out := make([]Expr, 0, m.rows*m.cols)
	for _, r := range m.data {
		out = append(out, r...)
	}
	return out
}

func (m *Matrix) WithArgs(args []Expr) Expr {
	return MatrixFromSlice(m.rows, m.cols, args)
}

func (m *Matrix) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i := 0; i < m.rows; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("[")
		for j := 0; j < m.cols; j++ {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(m.data[i][j].String())
		}
		sb.WriteString("]")
	}
	sb.WriteString("]")
	return sb.String()
}

func (m *Matrix) LaTeX() string {
	var sb strings.Builder
	sb.WriteString("\\begin{pmatrix}")
	for i := 0; i < m.rows; i++ {
		if i > 0 {
			sb.WriteString(" \\\\ ")
		}
		for j := 0; j < m.cols; j++ {
			if j > 0 {
				sb.WriteString(" & ")
			}
			sb.WriteString(m.data[i][j].LaTeX())
		}
	}
	sb.WriteString("\\end{pmatrix}")
	return sb.String()
}

func (m *Matrix) Equal(other Expr) bool {
	o, ok := other.(*Matrix)
	if !ok || m.rows != o.rows || m.cols != o.cols {
		return false
	}
	for i := 0; i < m.rows; i++ {
		if !equalSlices(m.data[i], o.data[i]) {
			return false
		}
	}
	return true
}

func (m *Matrix) Diff(varName string) Expr {
	result := NewMatrix(m.rows, m.cols)
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			result.data[i][j] = m.data[i][j].Diff(varName)
		}
	}
	return result
}

func (m *Matrix) add(other *Matrix) *Matrix {
	if m.rows != other.rows || m.cols != other.cols {
		panic("symbolic: matrix dimension mismatch in add")
	}
	result := NewMatrix(m.rows, m.cols)
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			result.data[i][j] = AddOf(m.data[i][j], other.data[i][j])
		}
	}
	return result
}

func (m *Matrix) MatMul(other *Matrix) *Matrix {
	if m.cols != other.rows {
		panic("symbolic: matrix dimension mismatch in MatMul")
	}
	result := NewMatrix(m.rows, other.cols)
	for i := 0; i < m.rows; i++ {
		for j := 0; j < other.cols; j++ {
			terms := make([]Expr, m.cols)
			for k := 0; k < m.cols; k++ {
				terms[k] = MulOf(m.data[i][k], other.data[k][j])
			}
			result.data[i][j] = AddOf(terms...)
		}
	}
	return result
}

// Apply multiplies m by a column vector.
func (m *Matrix) Apply(v *Tuple) *Tuple {
	if m.cols != v.Len() {
		panic("symbolic: matrix dimension mismatch in Apply")
	}
	out := make([]Expr, m.rows)
	for i := 0; i < m.rows; i++ {
		terms := make([]Expr, m.cols)
		for k := 0; k < m.cols; k++ {
			terms[k] = MulOf(m.data[i][k], v.items[k])
		}
		out[i] = AddOf(terms...)
	}
	return TupleOf(out...)
}

func (m *Matrix) Scale(scalar Expr) *Matrix {
	result := NewMatrix(m.rows, m.cols)
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			result.data[i][j] = MulOf(scalar, m.data[i][j])
		}
	}
	return result
}

func (m *Matrix) Transpose() *Matrix {
	result := NewMatrix(m.cols, m.rows)
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			result.data[j][i] = m.data[i][j]
		}
	}
	return result
}

func (m *Matrix) Trace() Expr {
	if m.rows != m.cols {
		panic("symbolic: Trace requires a square matrix")
	}
	terms := make([]Expr, m.rows)
	for i := 0; i < m.rows; i++ {
		terms[i] = m.data[i][i]
	}
	return AddOf(terms...)
}

func (m *Matrix) Det() Expr {
	if m.rows != m.cols {
		panic("symbolic: Det requires a square matrix")
	}
	return matDet(m.data, m.rows)
}

func matDet(data [][]Expr, n int) Expr {
	if n == 1 {
		return data[0][0]
	}
	if n == 2 {
		return AddOf(
			MulOf(data[0][0], data[1][1]),
			Neg(MulOf(data[0][1], data[1][0])),
		)
	}
	terms := make([]Expr, n)
	for j := 0; j < n; j++ {
		minor := makeMinor(data, n, 0, j)
		sign := N(1)
		if j%2 == 1 {
			sign = N(-1)
		}
		terms[j] = MulOf(sign, data[0][j], matDet(minor, n-1))
	}
	return AddOf(terms...)
}

func makeMinor(data [][]Expr, n, skipRow, skipCol int) [][]Expr {
	minor := make([][]Expr, n-1)
	mi := 0
	for i := 0; i < n; i++ {
		if i == skipRow {
			continue
		}
		minor[mi] = make([]Expr, n-1)
		mj := 0
		for j := 0; j < n; j++ {
			if j == skipCol {
				continue
			}
			minor[mi][mj] = data[i][j]
			mj++
		}
		mi++
	}
	return minor
}

// Adjugate returns the transposed cofactor matrix, so that
// m.Adjugate() = det(m) * m^-1.
func (m *Matrix) Adjugate() *Matrix {
	if m.rows != m.cols {
		panic("symbolic: Adjugate requires a square matrix")
	}
	n := m.rows
	if n == 1 {
		return Identity(1)
	}
	cof := NewMatrix(n, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			minor := makeMinor(m.data, n, i, j)
			sign := N(1)
			if (i+j)%2 == 1 {
				sign = N(-1)
			}
			cof.data[i][j] = MulOf(sign, matDet(minor, n-1))
		}
	}
	return cof.Transpose()
}

func (m *Matrix) Inverse() (*Matrix, error) {
	if m.rows != m.cols {
		return nil, fmt.Errorf("symbolic: Inverse requires a square matrix")
	}
	det := m.Det()
	if IsZero(det) {
		return nil, fmt.Errorf("symbolic: matrix is singular")
	}
	return m.Adjugate().Scale(PowOf(det, N(-1))), nil
}

func Identity(n int) *Matrix {
	m := NewMatrix(n, n)
	for i := 0; i < n; i++ {
		m.data[i][i] = N(1)
	}
	return m
}

// ============================================================
// MatMul: deferred matrix product
// ============================================================

// MatMul is the product of a matrix with an operand whose components are not
// known yet, such as J^-T * grad(u). It is evaluated as soon as both sides
// are concrete.
type MatMul struct{ left, right Expr }

func MatMulOf(left, right Expr) Expr {
	if IsZero(left) || IsZero(right) {
		return N(0)
	}
	if l, ok := left.(*Matrix); ok {
		switch r := right.(type) {
		case *Matrix:
			return l.MatMul(r)
		case *Tuple:
			return l.Apply(r)
		}
	}
	return &MatMul{left: left, right: right}
}

func (m *MatMul) Type() string              { return "matmul" }
func (m *MatMul) Args() []Expr              { return []Expr{m.left, m.right} }
func (m *MatMul) Left() Expr                { return m.left }
func (m *MatMul) Right() Expr               { return m.right }
func (m *MatMul) WithArgs(args []Expr) Expr { return MatMulOf(args[0], args[1]) }

func (m *MatMul) String() string {
	return operandString(m.left) + "*" + operandString(m.right)
}

func (m *MatMul) LaTeX() string {
	return m.left.LaTeX() + " " + m.right.LaTeX()
}

func (m *MatMul) Diff(varName string) Expr {
	return AddOf(
		MatMulOf(m.left.Diff(varName), m.right),
		MatMulOf(m.left, m.right.Diff(varName)),
	)
}

func (m *MatMul) Equal(other Expr) bool {
	o, ok := other.(*MatMul)
	return ok && m.left.Equal(o.left) && m.right.Equal(o.right)
}

func operandString(e Expr) string {
	if _, ok := e.(*Add); ok {
		return "(" + e.String() + ")"
	}
	return e.String()
}
