package shade

import "fmt"

// Vec2 builds a two-component vector from scalar and vector parts
// whose component counts sum to 2. All parts must share one component
// kind; host values lift through Lit. Concatenation is the same
// operation: Vec4(a, b) joins two vec2 values.
func Vec2(parts ...any) Expr { return vec(2, parts) }

// Vec3 builds a three-component vector from parts summing to 3
// components.
func Vec3(parts ...any) Expr { return vec(3, parts) }

// Vec4 builds a four-component vector from parts summing to 4
// components.
func Vec4(parts ...any) Expr { return vec(4, parts) }

// Splat2 broadcasts a numeric scalar across two lanes.
func Splat2(v any) Expr { return splat(2, v) }

// Splat3 broadcasts a numeric scalar across three lanes.
func Splat3(v any) Expr { return splat(3, v) }

// Splat4 broadcasts a numeric scalar across four lanes.
func Splat4(v any) Expr { return splat(4, v) }

// Mat2 builds a 2x2 float matrix from two vec2 columns.
func Mat2(c0, c1 any) Expr { return mat(2, []any{c0, c1}) }

// Mat3 builds a 3x3 float matrix from three vec3 columns.
func Mat3(c0, c1, c2 any) Expr { return mat(3, []any{c0, c1, c2}) }

// Mat4 builds a 4x4 float matrix from four vec4 columns.
func Mat4(c0, c1, c2, c3 any) Expr { return mat(4, []any{c0, c1, c2, c3}) }

func vec(size uint8, parts []any) Expr {
	s := hostShader(parts...)
	exprs := make([]Expr, len(parts))
	var kind ScalarKind
	kindSet := false
	var total uint32
	for i, p := range parts {
		e := s.lift(p)
		if e.poisoned() {
			return s.poisonExpr()
		}
		exprs[i] = e
		t := s.node(e.idx).typ
		k, ok := componentKind(t)
		if !ok {
			return s.poisonf(ErrTypeMismatch, "vec%d part %d is %s", size, i, t)
		}
		if !kindSet {
			kind, kindSet = k, true
		} else if k != kind {
			return s.poisonf(ErrTypeMismatch, "vec%d mixes %s and %s parts", size, kind, k)
		}
		total += componentCount(t)
	}
	if total != uint32(size) {
		return s.poisonf(ErrTypeMismatch, "vec%d from %d components", size, total)
	}
	return s.construct(fmt.Sprintf("vec%d", size), Vector{Size: size, Kind: kind}, exprs)
}

func splat(size uint8, v any) Expr {
	s := hostShader(v)
	e := s.lift(v)
	if e.poisoned() {
		return s.poisonExpr()
	}
	n := s.node(e.idx)
	sc, ok := n.typ.(Scalar)
	if !ok || !numericKind(sc.Kind) {
		return s.poisonf(ErrTypeMismatch, "splat of %s", n.typ)
	}
	return s.add(nodeSplat{value: e.idx}, Vector{Size: size, Kind: sc.Kind}, n.mask)
}

func mat(dim uint8, cols []any) Expr {
	s := hostShader(cols...)
	exprs := make([]Expr, len(cols))
	want := Vector{Size: dim, Kind: F32}
	for i, c := range cols {
		e := s.lift(c)
		if e.poisoned() {
			return s.poisonExpr()
		}
		t := s.node(e.idx).typ
		if !TypesEqual(t, want) {
			return s.poisonf(ErrTypeMismatch, "mat%d column %d is %s", dim, i, t)
		}
		exprs[i] = e
	}
	return s.construct(fmt.Sprintf("mat%d", dim), Matrix{Rows: dim, Cols: dim}, exprs)
}

// construct records a composition whose parts were already validated
// by the caller.
func (s *Shader) construct(what string, result ValueType, parts []Expr) Expr {
	idxs := make([]uint32, len(parts))
	for i, p := range parts {
		if p.poisoned() {
			return s.poisonExpr()
		}
		idxs[i] = p.idx
	}
	mask, ok := s.combine(what, parts...)
	if !ok {
		return s.poisonExpr()
	}
	return s.add(nodeConstruct{parts: idxs}, result, mask)
}
