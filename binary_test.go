package shade

import "testing"

func TestArithmeticTypes(t *testing.T) {
	vec3f := Vector{Size: 3, Kind: F32}
	vec4f := Vector{Size: 4, Kind: F32}
	mat4 := Matrix{Rows: 4, Cols: 4}
	tests := []struct {
		name  string
		build func(s *Shader) Expr
		want  ValueType
	}{
		{
			"scalar add",
			func(s *Shader) Expr { return Add(s.Lit(float32(1)), 2.0) },
			Scalar{Kind: F32},
		},
		{
			"u32 sub",
			func(s *Shader) Expr { return Sub(s.Lit(uint32(3)), uint32(1)) },
			Scalar{Kind: U32},
		},
		{
			"vector add",
			func(s *Shader) Expr { return Add(s.Zero(vec3f), s.Zero(vec3f)) },
			vec3f,
		},
		{
			"scalar broadcasts left",
			func(s *Shader) Expr { return Mul(s.Lit(float32(2)), s.Zero(vec3f)) },
			vec3f,
		},
		{
			"scalar broadcasts right",
			func(s *Shader) Expr { return Mul(s.Zero(vec3f), s.Lit(float32(2))) },
			vec3f,
		},
		{
			"matrix times vector",
			func(s *Shader) Expr { return Mul(s.Zero(mat4), s.Zero(vec4f)) },
			vec4f,
		},
		{
			"vector times matrix",
			func(s *Shader) Expr { return Mul(s.Zero(vec4f), s.Zero(mat4)) },
			vec4f,
		},
		{
			"matrix times matrix",
			func(s *Shader) Expr { return Mul(s.Zero(mat4), s.Zero(mat4)) },
			mat4,
		},
		{
			"scalar times matrix",
			func(s *Shader) Expr { return Mul(s.Lit(float32(2)), s.Zero(mat4)) },
			mat4,
		},
		{
			"matrix add",
			func(s *Shader) Expr { return Add(s.Zero(mat4), s.Zero(mat4)) },
			mat4,
		},
		{
			"vector div",
			func(s *Shader) Expr { return Div(s.Zero(vec4f), s.Zero(vec4f)) },
			vec4f,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			wantType(t, tt.build(s), tt.want)
			if err := s.Err(); err != nil {
				t.Errorf("Err() = %v, want nil", err)
			}
		})
	}
}

func TestArithmeticErrors(t *testing.T) {
	vec3f := Vector{Size: 3, Kind: F32}
	mat4 := Matrix{Rows: 4, Cols: 4}
	tests := []struct {
		name  string
		build func(s *Shader) Expr
		msg   string
	}{
		{
			"mixed scalar kinds",
			func(s *Shader) Expr { return Add(s.Lit(float32(1)), s.Lit(uint32(1))) },
			"add of f32 and u32",
		},
		{
			"mixed vector sizes",
			func(s *Shader) Expr { return Add(s.Zero(vec3f), s.Zero(Vector{Size: 4, Kind: F32})) },
			"add of vec3<f32> and vec4<f32>",
		},
		{
			"bool arithmetic",
			func(s *Shader) Expr { return Add(s.Lit(true), s.Lit(false)) },
			"add of bool and bool",
		},
		{
			"matrix division",
			func(s *Shader) Expr { return Div(s.Zero(mat4), s.Zero(mat4)) },
			"div of mat4x4<f32>",
		},
		{
			"matrix times short vector",
			func(s *Shader) Expr { return Mul(s.Zero(mat4), s.Zero(vec3f)) },
			"mul of mat4x4<f32> and vec3<f32>",
		},
		{
			"integer scalar times matrix",
			func(s *Shader) Expr { return Mul(s.Lit(int32(2)), s.Zero(mat4)) },
			"mul of i32 and mat4x4<f32>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			wantPoisoned(t, s, tt.build(s), ErrTypeMismatch, tt.msg)
		})
	}
}

func TestComparisons(t *testing.T) {
	boolT := Scalar{Kind: Bool}
	t.Run("numeric ordering", func(t *testing.T) {
		s := New()
		wantType(t, Lt(s.Lit(float32(1)), 2.0), boolT)
		wantType(t, Le(s.Lit(uint32(1)), uint32(2)), boolT)
		wantType(t, Gt(s.Lit(int32(3)), int32(2)), boolT)
		wantType(t, Ge(s.Lit(float32(3)), 2.0), boolT)
		if err := s.Err(); err != nil {
			t.Errorf("Err() = %v, want nil", err)
		}
	})
	t.Run("equality covers bool", func(t *testing.T) {
		s := New()
		wantType(t, Eq(s.Lit(true), s.Lit(false)), boolT)
		wantType(t, Ne(s.Lit(uint32(1)), uint32(2)), boolT)
		if err := s.Err(); err != nil {
			t.Errorf("Err() = %v, want nil", err)
		}
	})
	t.Run("ordering rejects bool", func(t *testing.T) {
		s := New()
		wantPoisoned(t, s, Lt(s.Lit(true), s.Lit(false)), ErrTypeMismatch, "lt of bool and bool")
	})
	t.Run("no vector comparison", func(t *testing.T) {
		s := New()
		v := s.Zero(Vector{Size: 2, Kind: F32})
		wantPoisoned(t, s, Eq(v, v), ErrTypeMismatch, "eq of vec2<f32>")
	})
}

func TestLogicalOps(t *testing.T) {
	t.Run("bool operands", func(t *testing.T) {
		s := New()
		wantType(t, And(s.Lit(true), s.Lit(false)), Scalar{Kind: Bool})
		wantType(t, Or(s.Lit(true), s.Lit(false)), Scalar{Kind: Bool})
		if err := s.Err(); err != nil {
			t.Errorf("Err() = %v, want nil", err)
		}
	})
	t.Run("numeric operands", func(t *testing.T) {
		s := New()
		wantPoisoned(t, s, And(s.Lit(float32(1)), 1.0), ErrTypeMismatch, "and of f32 and f32")
	})
}

func TestNeg(t *testing.T) {
	t.Run("negatable", func(t *testing.T) {
		s := New()
		wantType(t, Neg(s.Lit(float32(1))), Scalar{Kind: F32})
		wantType(t, Neg(s.Lit(int32(1))), Scalar{Kind: I32})
		wantType(t, Neg(s.Zero(Vector{Size: 3, Kind: F32})), Vector{Size: 3, Kind: F32})
		wantType(t, Neg(s.Zero(Matrix{Rows: 4, Cols: 4})), Matrix{Rows: 4, Cols: 4})
		if err := s.Err(); err != nil {
			t.Errorf("Err() = %v, want nil", err)
		}
	})
	t.Run("unsigned", func(t *testing.T) {
		s := New()
		wantPoisoned(t, s, Neg(s.Lit(uint32(1))), ErrTypeMismatch, "neg of u32")
	})
	t.Run("bool", func(t *testing.T) {
		s := New()
		wantPoisoned(t, s, Neg(s.Lit(true)), ErrTypeMismatch, "neg of bool")
	})
}

func TestNot(t *testing.T) {
	t.Run("bool", func(t *testing.T) {
		s := New()
		wantType(t, Not(s.Lit(true)), Scalar{Kind: Bool})
	})
	t.Run("numeric", func(t *testing.T) {
		s := New()
		wantPoisoned(t, s, Not(s.Lit(float32(1))), ErrTypeMismatch, "not of f32")
	})
}
