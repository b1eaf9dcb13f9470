package shade

// mathFun enumerates the built-in math functions an expression can
// apply.
type mathFun uint8

const (
	fnAbs mathFun = iota
	fnMin
	fnMax
	fnCos
	fnCosh
	fnSin
	fnSinh
	fnTan
	fnTanh
	fnFloor
	fnFract
	fnSqrt
	fnPow
	fnDot
	fnLength
	fnNormalize
)

func (f mathFun) String() string {
	switch f {
	case fnAbs:
		return "abs"
	case fnMin:
		return "min"
	case fnMax:
		return "max"
	case fnCos:
		return "cos"
	case fnCosh:
		return "cosh"
	case fnSin:
		return "sin"
	case fnSinh:
		return "sinh"
	case fnTan:
		return "tan"
	case fnTanh:
		return "tanh"
	case fnFloor:
		return "floor"
	case fnFract:
		return "fract"
	case fnSqrt:
		return "sqrt"
	case fnPow:
		return "pow"
	case fnDot:
		return "dot"
	case fnLength:
		return "length"
	case fnNormalize:
		return "normalize"
	default:
		return "math"
	}
}

// Cos returns the component-wise cosine of a float scalar or vector.
func Cos(v Expr) Expr { return floatMath(fnCos, v) }

// Cosh returns the component-wise hyperbolic cosine.
func Cosh(v Expr) Expr { return floatMath(fnCosh, v) }

// Sin returns the component-wise sine.
func Sin(v Expr) Expr { return floatMath(fnSin, v) }

// Sinh returns the component-wise hyperbolic sine.
func Sinh(v Expr) Expr { return floatMath(fnSinh, v) }

// Tan returns the component-wise tangent.
func Tan(v Expr) Expr { return floatMath(fnTan, v) }

// Tanh returns the component-wise hyperbolic tangent.
func Tanh(v Expr) Expr { return floatMath(fnTanh, v) }

// Floor rounds each component down to an integer value.
func Floor(v Expr) Expr { return floatMath(fnFloor, v) }

// Fract returns each component's fractional part.
func Fract(v Expr) Expr { return floatMath(fnFract, v) }

// Sqrt returns the component-wise square root.
func Sqrt(v Expr) Expr { return floatMath(fnSqrt, v) }

// Abs returns the component-wise absolute value of a float or
// signed-integer scalar or vector.
func Abs(v Expr) Expr {
	if v.s == nil {
		panic("shade: zero Expr used as operand")
	}
	s := v.s
	if v.poisoned() {
		return s.poisonExpr()
	}
	n := s.node(v.idx)
	if k, ok := componentKind(n.typ); !ok || (k != F32 && k != I32) {
		return s.poisonf(ErrTypeMismatch, "abs of %s", n.typ)
	}
	return s.add(nodeCall{fn: fnAbs, args: []uint32{v.idx}}, n.typ, n.mask)
}

// Min returns the component-wise minimum of two values of one numeric
// scalar or vector type.
func Min(a, b any) Expr { return hostShader(a, b).pairMath(fnMin, a, b) }

// Max returns the component-wise maximum of two values of one numeric
// scalar or vector type.
func Max(a, b any) Expr { return hostShader(a, b).pairMath(fnMax, a, b) }

// Pow raises a to the power b, component-wise, for float scalars or
// vectors of one type.
func Pow(a, b any) Expr { return hostShader(a, b).pairMath(fnPow, a, b) }

// Dot returns the dot product of two float vectors of one size.
func Dot(a, b Expr) Expr {
	s := hostShader(a, b)
	if a.poisoned() || b.poisoned() {
		return s.poisonExpr()
	}
	an, bn := s.node(a.idx), s.node(b.idx)
	av, aok := an.typ.(Vector)
	bv, bok := bn.typ.(Vector)
	if !aok || !bok || av != bv || av.Kind != F32 {
		return s.poisonf(ErrTypeMismatch, "dot of %s and %s", an.typ, bn.typ)
	}
	mask, ok := s.combine("dot", a, b)
	if !ok {
		return s.poisonExpr()
	}
	return s.add(nodeCall{fn: fnDot, args: []uint32{a.idx, b.idx}}, Scalar{Kind: F32}, mask)
}

// Length returns the Euclidean length of a float vector.
func Length(v Expr) Expr {
	if v.s == nil {
		panic("shade: zero Expr used as operand")
	}
	s := v.s
	if v.poisoned() {
		return s.poisonExpr()
	}
	n := s.node(v.idx)
	if vt, ok := n.typ.(Vector); !ok || vt.Kind != F32 {
		return s.poisonf(ErrTypeMismatch, "length of %s", n.typ)
	}
	return s.add(nodeCall{fn: fnLength, args: []uint32{v.idx}}, Scalar{Kind: F32}, n.mask)
}

// Normalize returns a float vector scaled to unit length.
func Normalize(v Expr) Expr {
	if v.s == nil {
		panic("shade: zero Expr used as operand")
	}
	s := v.s
	if v.poisoned() {
		return s.poisonExpr()
	}
	n := s.node(v.idx)
	if vt, ok := n.typ.(Vector); !ok || vt.Kind != F32 {
		return s.poisonf(ErrTypeMismatch, "normalize of %s", n.typ)
	}
	return s.add(nodeCall{fn: fnNormalize, args: []uint32{v.idx}}, n.typ, n.mask)
}

// Sample samples a 2D texture with a sampler at uv, a float coordinate
// in texture space. Fragment stage only: sampling relies on implicit
// derivatives, which exist only under rasterization.
func Sample(tex, sam, uv Expr) Expr {
	s := hostShader(tex, sam, uv)
	if tex.poisoned() || sam.poisoned() || uv.poisoned() {
		return s.poisonExpr()
	}
	tn, sn, un := s.node(tex.idx), s.node(sam.idx), s.node(uv.idx)
	if _, ok := tn.typ.(Texture); !ok {
		return s.poisonf(ErrTypeMismatch, "sample of %s", tn.typ)
	}
	if _, ok := sn.typ.(Sampler); !ok {
		return s.poisonf(ErrTypeMismatch, "sample with %s", sn.typ)
	}
	if !TypesEqual(un.typ, Vector{Size: 2, Kind: F32}) {
		return s.poisonf(ErrTypeMismatch, "sample at %s coordinate", un.typ)
	}
	mask, ok := s.combine("sample", tex, sam, uv)
	if !ok {
		return s.poisonExpr()
	}
	if mask&maskFragment == 0 {
		return s.poisonf(ErrStageScope, "sample with %s coordinate operands", mask)
	}
	return s.add(nodeSample{tex: tex.idx, sam: sam.idx, coord: uv.idx},
		Vector{Size: 4, Kind: F32}, maskFragment)
}

func floatMath(fn mathFun, v Expr) Expr {
	if v.s == nil {
		panic("shade: zero Expr used as operand")
	}
	s := v.s
	if v.poisoned() {
		return s.poisonExpr()
	}
	n := s.node(v.idx)
	if k, ok := componentKind(n.typ); !ok || k != F32 {
		return s.poisonf(ErrTypeMismatch, "%s of %s", fn, n.typ)
	}
	return s.add(nodeCall{fn: fn, args: []uint32{v.idx}}, n.typ, n.mask)
}

func (s *Shader) pairMath(fn mathFun, a, b any) Expr {
	lhs, rhs := s.lift(a), s.lift(b)
	if lhs.poisoned() || rhs.poisoned() {
		return s.poisonExpr()
	}
	ln, rn := s.node(lhs.idx), s.node(rhs.idx)
	k, kok := componentKind(ln.typ)
	if !kok || !TypesEqual(ln.typ, rn.typ) {
		return s.poisonf(ErrTypeMismatch, "%s of %s and %s", fn, ln.typ, rn.typ)
	}
	if fn == fnPow && k != F32 {
		return s.poisonf(ErrTypeMismatch, "%s of %s and %s", fn, ln.typ, rn.typ)
	}
	if !numericKind(k) {
		return s.poisonf(ErrTypeMismatch, "%s of %s and %s", fn, ln.typ, rn.typ)
	}
	mask, ok := s.combine(fn.String(), lhs, rhs)
	if !ok {
		return s.poisonExpr()
	}
	return s.add(nodeCall{fn: fn, args: []uint32{lhs.idx, rhs.idx}}, ln.typ, mask)
}
