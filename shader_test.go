package shade

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/image/math/f32"
)

// wantType fails unless e carries exactly the wanted type.
func wantType(t *testing.T, e Expr, want ValueType) {
	t.Helper()
	got := e.Type()
	if got == nil {
		t.Fatalf("Type() = nil, want %s", want)
	}
	if !TypesEqual(got, want) {
		t.Errorf("Type() = %s, want %s", got, want)
	}
}

// wantPoisoned fails unless e is the poison expression and the
// shader's latched error wraps sentinel and mentions msg.
func wantPoisoned(t *testing.T, s *Shader, e Expr, sentinel error, msg string) {
	t.Helper()
	if e.Type() != nil {
		t.Errorf("Type() = %s, want poisoned", e.Type())
	}
	err := s.Err()
	if err == nil {
		t.Fatalf("Err() = nil, want %v", sentinel)
	}
	if !errors.Is(err, sentinel) {
		t.Errorf("Err() = %v, want errors.Is %v", err, sentinel)
	}
	if !strings.Contains(err.Error(), msg) {
		t.Errorf("Err() = %q, want substring %q", err, msg)
	}
}

func TestLitTypes(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want ValueType
	}{
		{"float32", float32(1.5), Scalar{Kind: F32}},
		{"float64", 2.5, Scalar{Kind: F32}},
		{"int", 7, Scalar{Kind: I32}},
		{"int32", int32(-3), Scalar{Kind: I32}},
		{"uint32", uint32(9), Scalar{Kind: U32}},
		{"bool", true, Scalar{Kind: Bool}},
		{"vec2", f32.Vec2{1, 2}, Vector{Size: 2, Kind: F32}},
		{"vec3", f32.Vec3{1, 2, 3}, Vector{Size: 3, Kind: F32}},
		{"vec4", f32.Vec4{1, 2, 3, 4}, Vector{Size: 4, Kind: F32}},
		{"mat3", f32.Mat3{}, Matrix{Rows: 3, Cols: 3}},
		{"mat4", f32.Mat4{}, Matrix{Rows: 4, Cols: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			wantType(t, s.Lit(tt.v), tt.want)
			if err := s.Err(); err != nil {
				t.Errorf("Err() = %v, want nil", err)
			}
		})
	}
}

func TestLitPassesExprThrough(t *testing.T) {
	s := New()
	e := s.Lit(float32(1))
	again := s.Lit(e)
	if again != e {
		t.Errorf("Lit(Expr) = %+v, want the operand unchanged", again)
	}
}

func TestLitUnsupportedHostType(t *testing.T) {
	s := New()
	e := s.Lit("nope")
	wantPoisoned(t, s, e, ErrTypeMismatch, "literal of host type string")
}

func TestZero(t *testing.T) {
	s := New()
	wantType(t, s.Zero(Scalar{Kind: U32}), Scalar{Kind: U32})
	wantType(t, s.Zero(Vector{Size: 4, Kind: F32}), Vector{Size: 4, Kind: F32})
	wantType(t, s.Zero(Matrix{Rows: 4, Cols: 4}), Matrix{Rows: 4, Cols: 4})
	arr := Array{Elem: Vector{Size: 4, Kind: F32}, Len: 4}
	wantType(t, s.Zero(arr), arr)
	if err := s.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

func TestZeroRejectsBindingTypes(t *testing.T) {
	t.Run("texture", func(t *testing.T) {
		s := New()
		wantPoisoned(t, s, s.Zero(Texture{}), ErrTypeMismatch, "zero value of texture_2d<f32>")
	})
	t.Run("runtime array", func(t *testing.T) {
		s := New()
		e := s.Zero(Array{Elem: Vector{Size: 4, Kind: F32}})
		wantPoisoned(t, s, e, ErrTypeMismatch, "zero value of array<vec4<f32>>")
	})
	t.Run("nil", func(t *testing.T) {
		s := New()
		wantPoisoned(t, s, s.Zero(nil), ErrTypeMismatch, "zero value of <nil>")
	})
}

func TestBuiltinTypes(t *testing.T) {
	s := New()
	wantType(t, s.VertexIndex(), Scalar{Kind: U32})
	wantType(t, s.GlobalInvocationID(), Vector{Size: 3, Kind: U32})
}

func TestDiscard(t *testing.T) {
	s := New()
	wantType(t, s.Discard(Vector{Size: 4, Kind: F32}), Vector{Size: 4, Kind: F32})

	s2 := New()
	wantPoisoned(t, s2, s2.Discard(Sampler{}), ErrTypeMismatch, "discard standing in for sampler")
}

func TestTransfer(t *testing.T) {
	s := New()
	in := s.Vertex(PointVertex{})
	v := Transfer(in.Read("Pos"))
	wantType(t, v, Vector{Size: 2, Kind: F32})
	if err := s.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

func TestTransferRequiresVertexValue(t *testing.T) {
	s := New()
	g := s.Group(RWParticles{})
	elem := Index(g.Read("Data"), s.Lit(uint32(0)))
	e := Transfer(elem)
	wantPoisoned(t, s, e, ErrStageScope, "transfer of fragment|compute value")
}

func TestTransferRequiresInterpolatable(t *testing.T) {
	s := New()
	e := Transfer(s.VertexIndex())
	wantPoisoned(t, s, e, ErrTypeMismatch, "transfer of non-interpolatable u32")
}

func TestTransferZeroExprPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("Transfer of the zero Expr did not panic")
		}
	}()
	Transfer(Expr{})
}

func TestCombinatorsPanicWithoutShader(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("Add with no Expr operand did not panic")
		}
	}()
	Add(1.0, 2.0)
}

func TestCrossShaderOperandsPanic(t *testing.T) {
	s1, s2 := New(), New()
	a := s1.Lit(float32(1))
	b := s2.Lit(float32(2))
	defer func() {
		if recover() == nil {
			t.Errorf("Add across Shader instances did not panic")
		}
	}()
	Add(a, b)
}

func TestErrStaysNilOnCleanBuild(t *testing.T) {
	s := New()
	in := s.Vertex(PointVertex{})
	v := Vec4(in.Read("Pos"), 0.0, 1.0)
	_ = Mul(v, s.Lit(float32(2)))
	if err := s.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

func TestPoisonPropagatesWithoutRelatch(t *testing.T) {
	s := New()
	bad := Add(s.Lit(float32(1)), s.Lit(uint32(1)))
	first := s.Err()
	if first == nil {
		t.Fatalf("Err() = nil, want mismatch error")
	}

	// Operating on a poisoned expression keeps the original error.
	chained := Mul(bad, s.Lit(float32(2)))
	if chained.Type() != nil {
		t.Errorf("Type() = %s, want poisoned", chained.Type())
	}
	if err := s.Err(); !errors.Is(err, first) && err.Error() != first.Error() {
		t.Errorf("Err() = %v, want first error %v", err, first)
	}
}
