package shade

// ToF32 converts a numeric scalar or vector to float components.
func ToF32(v Expr) Expr { return convert(F32, v) }

// ToI32 converts a numeric scalar or vector to signed-integer
// components. Float components truncate toward zero.
func ToI32(v Expr) Expr { return convert(I32, v) }

// ToU32 converts a numeric scalar or vector to unsigned-integer
// components. Float components truncate toward zero.
func ToU32(v Expr) Expr { return convert(U32, v) }

func convert(kind ScalarKind, v Expr) Expr {
	if v.s == nil {
		panic("shade: zero Expr used as operand")
	}
	s := v.s
	if v.poisoned() {
		return s.poisonExpr()
	}
	n := s.node(v.idx)
	k, ok := componentKind(n.typ)
	if !ok || !numericKind(k) {
		return s.poisonf(ErrTypeMismatch, "convert %s to %s", n.typ, kind)
	}
	var typ ValueType
	switch t := n.typ.(type) {
	case Scalar:
		typ = Scalar{Kind: kind}
	case Vector:
		typ = Vector{Size: t.Size, Kind: kind}
	}
	return s.add(nodeConvert{kind: kind, value: v.idx}, typ, n.mask)
}
