package shade

import (
	"math"

	"golang.org/x/image/math/f32"
)

// Shader owns an expression arena and the input and group records
// registered against it. Build one per program: declare records, grow
// expression trees from their reads, then hand the roots to Compile.
//
// Every combinator validates eagerly. The first failure latches on the
// shader and yields a poison handle that later combinators pass
// through unchanged, so a builder chain never has to check errors
// mid-expression; Err (or Compile) reports the root cause afterwards.
//
// A Shader is not safe for concurrent mutation. Compiled modules are
// immutable and safe to share.
type Shader struct {
	nodes      []node
	inputs     []*inputDecl
	groups     []*groupDecl
	closedVars map[uint32]bool
	locUsed    map[int]bool
	locNext    int
	err        error
}

// New returns an empty Shader.
func New() *Shader {
	s := &Shader{}
	// Seed the poison node so index 0 never names a real expression.
	s.nodes = append(s.nodes, node{kind: nodeInvalid{}})
	return s
}

// Err returns the first error latched while building, or nil. Compile
// returns the same error, so checking here is optional.
func (s *Shader) Err() error { return s.err }

// Lit returns a constant expression. Accepted host values: float32,
// float64 and untyped float constants become f32; int and int32 become
// i32; uint32 becomes u32; bool becomes bool; f32.Vec2, f32.Vec3 and
// f32.Vec4 become float vectors; f32.Mat3 and f32.Mat4 become float
// matrices. An Expr passes through unchanged.
func (s *Shader) Lit(v any) Expr {
	switch x := v.(type) {
	case Expr:
		s.operand(x)
		return x
	case float32:
		return s.scalarLit(F32, math.Float32bits(x))
	case float64:
		return s.scalarLit(F32, math.Float32bits(float32(x)))
	case int:
		return s.scalarLit(I32, uint32(int32(x)))
	case int32:
		return s.scalarLit(I32, uint32(x))
	case uint32:
		return s.scalarLit(U32, x)
	case bool:
		var bits uint32
		if x {
			bits = 1
		}
		return s.scalarLit(Bool, bits)
	case f32.Vec2:
		return s.construct("vec2 literal", Vector{Size: 2, Kind: F32},
			[]Expr{s.Lit(x[0]), s.Lit(x[1])})
	case f32.Vec3:
		return s.construct("vec3 literal", Vector{Size: 3, Kind: F32},
			[]Expr{s.Lit(x[0]), s.Lit(x[1]), s.Lit(x[2])})
	case f32.Vec4:
		return s.construct("vec4 literal", Vector{Size: 4, Kind: F32},
			[]Expr{s.Lit(x[0]), s.Lit(x[1]), s.Lit(x[2]), s.Lit(x[3])})
	case f32.Mat3:
		// Host matrices are row major; shader matrices are columns.
		cols := make([]Expr, 3)
		for c := range cols {
			cols[c] = s.construct("vec3 literal", Vector{Size: 3, Kind: F32},
				[]Expr{s.Lit(x[c]), s.Lit(x[3+c]), s.Lit(x[6+c])})
		}
		return s.construct("mat3 literal", Matrix{Rows: 3, Cols: 3}, cols)
	case f32.Mat4:
		cols := make([]Expr, 4)
		for c := range cols {
			cols[c] = s.construct("vec4 literal", Vector{Size: 4, Kind: F32},
				[]Expr{s.Lit(x[c]), s.Lit(x[4+c]), s.Lit(x[8+c]), s.Lit(x[12+c])})
		}
		return s.construct("mat4 literal", Matrix{Rows: 4, Cols: 4}, cols)
	default:
		return s.poisonf(ErrTypeMismatch, "literal of host type %T", v)
	}
}

func (s *Shader) scalarLit(kind ScalarKind, bits uint32) Expr {
	return s.add(nodeLit{lit: literal{kind: kind, bits: bits}}, Scalar{Kind: kind}, maskAll)
}

// Zero returns the zero value of t. Only plain types (scalars,
// vectors, matrices, fixed arrays, structs of those) have zero values.
func (s *Shader) Zero(t ValueType) Expr {
	if t == nil || !plainType(t) {
		return s.poisonf(ErrTypeMismatch, "zero value of %v", t)
	}
	return s.add(nodeZero{}, t, maskAll)
}

// VertexIndex reads the index of the current vertex. Vertex stage
// only.
func (s *Shader) VertexIndex() Expr {
	return s.add(nodeBuiltin{which: builtinVertexIndex}, Scalar{Kind: U32}, maskVertex)
}

// GlobalInvocationID reads the grid coordinate of the current compute
// invocation. Compute stage only.
func (s *Shader) GlobalInvocationID() Expr {
	return s.add(nodeBuiltin{which: builtinGlobalInvocationID}, Vector{Size: 3, Kind: U32}, maskCompute)
}

// Discard returns a fragment-only expression that abandons the current
// fragment when evaluated. t names the type Discard stands in for, so
// it can occupy a branch arm opposite a real value, or serve as the
// fragment root directly.
func (s *Shader) Discard(t ValueType) Expr {
	if t == nil || !plainType(t) {
		return s.poisonf(ErrTypeMismatch, "discard standing in for %v", t)
	}
	return s.add(nodeDiscard{}, t, maskFragment)
}

// Transfer carries a vertex-stage value across rasterization. The
// fragment stage reads the result interpolated per fragment; the
// vertex stage cannot read it at all. Only float scalars and vectors
// interpolate.
func Transfer(v Expr) Expr {
	if v.s == nil {
		panic("shade: zero Expr used as operand")
	}
	s := v.s
	if v.poisoned() {
		return s.poisonExpr()
	}
	n := s.node(v.idx)
	if n.mask&maskVertex == 0 {
		return s.poisonf(ErrStageScope, "transfer of %s value", n.mask)
	}
	if k, ok := componentKind(n.typ); !ok || k != F32 {
		return s.poisonf(ErrTypeMismatch, "transfer of non-interpolatable %s", n.typ)
	}
	return s.add(nodeTransfer{value: v.idx}, n.typ, maskFragment)
}
