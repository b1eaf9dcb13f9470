package shade

// binaryOp enumerates the two-operand operators the arena records.
type binaryOp uint8

const (
	opAdd binaryOp = iota
	opSub
	opMul
	opDiv
	opEq
	opNe
	opLt
	opLe
	opGt
	opGe
	opAnd
	opOr
)

func (op binaryOp) String() string {
	switch op {
	case opAdd:
		return "add"
	case opSub:
		return "sub"
	case opMul:
		return "mul"
	case opDiv:
		return "div"
	case opEq:
		return "eq"
	case opNe:
		return "ne"
	case opLt:
		return "lt"
	case opLe:
		return "le"
	case opGt:
		return "gt"
	case opGe:
		return "ge"
	case opAnd:
		return "and"
	case opOr:
		return "or"
	default:
		return "binary"
	}
}

// unaryOp enumerates the one-operand operators.
type unaryOp uint8

const (
	opNeg unaryOp = iota
	opNot
)

// Add returns a + b. Operands may be Exprs or host values liftable by
// Lit; scalars broadcast against vectors of the same component kind.
func Add(a, b any) Expr { return hostShader(a, b).binary(opAdd, a, b) }

// Sub returns a - b under the same operand rules as Add.
func Sub(a, b any) Expr { return hostShader(a, b).binary(opSub, a, b) }

// Mul returns a * b. Beyond the element-wise forms, Mul covers the
// linear-algebra products: matrix times vector, vector times matrix,
// matrix times matrix, and float scalar times matrix.
func Mul(a, b any) Expr { return hostShader(a, b).binary(opMul, a, b) }

// Div returns a / b for scalars and vectors; matrices do not divide.
func Div(a, b any) Expr { return hostShader(a, b).binary(opDiv, a, b) }

// Eq returns a == b for two scalars of one kind.
func Eq(a, b any) Expr { return hostShader(a, b).binary(opEq, a, b) }

// Ne returns a != b for two scalars of one kind.
func Ne(a, b any) Expr { return hostShader(a, b).binary(opNe, a, b) }

// Lt returns a < b for two numeric scalars of one kind.
func Lt(a, b any) Expr { return hostShader(a, b).binary(opLt, a, b) }

// Le returns a <= b for two numeric scalars of one kind.
func Le(a, b any) Expr { return hostShader(a, b).binary(opLe, a, b) }

// Gt returns a > b for two numeric scalars of one kind.
func Gt(a, b any) Expr { return hostShader(a, b).binary(opGt, a, b) }

// Ge returns a >= b for two numeric scalars of one kind.
func Ge(a, b any) Expr { return hostShader(a, b).binary(opGe, a, b) }

// And returns the logical conjunction of two bool scalars.
func And(a, b any) Expr { return hostShader(a, b).binary(opAnd, a, b) }

// Or returns the logical disjunction of two bool scalars.
func Or(a, b any) Expr { return hostShader(a, b).binary(opOr, a, b) }

// Neg returns the arithmetic negation of a float or signed-integer
// scalar, vector or float matrix.
func Neg(v Expr) Expr {
	if v.s == nil {
		panic("shade: zero Expr used as operand")
	}
	s := v.s
	if v.poisoned() {
		return s.poisonExpr()
	}
	n := s.node(v.idx)
	if !negatable(n.typ) {
		return s.poisonf(ErrTypeMismatch, "neg of %s", n.typ)
	}
	return s.add(nodeUnary{op: opNeg, operand: v.idx}, n.typ, n.mask)
}

// Not returns the logical complement of a bool scalar.
func Not(v Expr) Expr {
	if v.s == nil {
		panic("shade: zero Expr used as operand")
	}
	s := v.s
	if v.poisoned() {
		return s.poisonExpr()
	}
	n := s.node(v.idx)
	if !TypesEqual(n.typ, Scalar{Kind: Bool}) {
		return s.poisonf(ErrTypeMismatch, "not of %s", n.typ)
	}
	return s.add(nodeUnary{op: opNot, operand: v.idx}, n.typ, n.mask)
}

func (s *Shader) binary(op binaryOp, a, b any) Expr {
	lhs, rhs := s.lift(a), s.lift(b)
	if lhs.poisoned() || rhs.poisoned() {
		return s.poisonExpr()
	}
	ln, rn := s.node(lhs.idx), s.node(rhs.idx)
	typ, ok := binaryResult(op, ln.typ, rn.typ)
	if !ok {
		return s.poisonf(ErrTypeMismatch, "%s of %s and %s", op, ln.typ, rn.typ)
	}
	mask, ok := s.combine(op.String(), lhs, rhs)
	if !ok {
		return s.poisonExpr()
	}
	return s.add(nodeBinary{op: op, lhs: lhs.idx, rhs: rhs.idx}, typ, mask)
}

// binaryResult computes the result type of op over lt and rt, or
// reports false when the pairing is not well typed.
func binaryResult(op binaryOp, lt, rt ValueType) (ValueType, bool) {
	switch op {
	case opAdd, opSub, opMul, opDiv:
		return arithResult(op, lt, rt)
	case opEq, opNe:
		ls, lok := lt.(Scalar)
		rs, rok := rt.(Scalar)
		if lok && rok && ls.Kind == rs.Kind {
			return Scalar{Kind: Bool}, true
		}
	case opLt, opLe, opGt, opGe:
		ls, lok := lt.(Scalar)
		rs, rok := rt.(Scalar)
		if lok && rok && ls.Kind == rs.Kind && numericKind(ls.Kind) {
			return Scalar{Kind: Bool}, true
		}
	case opAnd, opOr:
		if TypesEqual(lt, Scalar{Kind: Bool}) && TypesEqual(rt, Scalar{Kind: Bool}) {
			return Scalar{Kind: Bool}, true
		}
	}
	return nil, false
}

func arithResult(op binaryOp, lt, rt ValueType) (ValueType, bool) {
	switch l := lt.(type) {
	case Scalar:
		if !numericKind(l.Kind) {
			return nil, false
		}
		switch r := rt.(type) {
		case Scalar:
			if l.Kind == r.Kind {
				return l, true
			}
		case Vector:
			// Scalar broadcasts across the vector.
			if l.Kind == r.Kind {
				return r, true
			}
		case Matrix:
			if op == opMul && l.Kind == F32 {
				return r, true
			}
		}
	case Vector:
		if !numericKind(l.Kind) {
			return nil, false
		}
		switch r := rt.(type) {
		case Scalar:
			if l.Kind == r.Kind {
				return l, true
			}
		case Vector:
			if l == r {
				return l, true
			}
		case Matrix:
			// Row vector times matrix.
			if op == opMul && l.Kind == F32 && l.Size == r.Rows {
				return Vector{Size: r.Cols, Kind: F32}, true
			}
		}
	case Matrix:
		switch r := rt.(type) {
		case Scalar:
			if op == opMul && r.Kind == F32 {
				return l, true
			}
		case Vector:
			if op == opMul && r.Kind == F32 && r.Size == l.Cols {
				return Vector{Size: l.Rows, Kind: F32}, true
			}
		case Matrix:
			switch op {
			case opAdd, opSub:
				if l == r {
					return l, true
				}
			case opMul:
				if l.Cols == r.Rows {
					return Matrix{Rows: l.Rows, Cols: r.Cols}, true
				}
			}
		}
	}
	return nil, false
}

func negatable(t ValueType) bool {
	switch tt := t.(type) {
	case Scalar:
		return tt.Kind == F32 || tt.Kind == I32
	case Vector:
		return tt.Kind == F32 || tt.Kind == I32
	case Matrix:
		return true
	default:
		return false
	}
}
