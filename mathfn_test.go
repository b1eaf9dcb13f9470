package shade

import "testing"

func TestFloatMathTypes(t *testing.T) {
	vec3f := Vector{Size: 3, Kind: F32}
	fns := []struct {
		name string
		fn   func(Expr) Expr
	}{
		{"Cos", Cos}, {"Cosh", Cosh}, {"Sin", Sin}, {"Sinh", Sinh},
		{"Tan", Tan}, {"Tanh", Tanh}, {"Floor", Floor}, {"Fract", Fract},
		{"Sqrt", Sqrt},
	}
	for _, tt := range fns {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			wantType(t, tt.fn(s.Lit(float32(1))), Scalar{Kind: F32})
			wantType(t, tt.fn(s.Zero(vec3f)), vec3f)
			if err := s.Err(); err != nil {
				t.Errorf("Err() = %v, want nil", err)
			}
		})
	}
}

func TestFloatMathRejectsIntegers(t *testing.T) {
	s := New()
	wantPoisoned(t, s, Sqrt(s.Lit(uint32(4))), ErrTypeMismatch, "sqrt of u32")
}

func TestAbs(t *testing.T) {
	t.Run("signed", func(t *testing.T) {
		s := New()
		wantType(t, Abs(s.Lit(float32(-1))), Scalar{Kind: F32})
		wantType(t, Abs(s.Lit(int32(-1))), Scalar{Kind: I32})
		wantType(t, Abs(s.Zero(Vector{Size: 2, Kind: I32})), Vector{Size: 2, Kind: I32})
		if err := s.Err(); err != nil {
			t.Errorf("Err() = %v, want nil", err)
		}
	})
	t.Run("unsigned", func(t *testing.T) {
		s := New()
		wantPoisoned(t, s, Abs(s.Lit(uint32(1))), ErrTypeMismatch, "abs of u32")
	})
}

func TestMinMax(t *testing.T) {
	t.Run("matching numeric types", func(t *testing.T) {
		s := New()
		wantType(t, Min(s.Lit(uint32(1)), uint32(2)), Scalar{Kind: U32})
		v := s.Zero(Vector{Size: 3, Kind: F32})
		wantType(t, Max(v, v), Vector{Size: 3, Kind: F32})
		if err := s.Err(); err != nil {
			t.Errorf("Err() = %v, want nil", err)
		}
	})
	t.Run("mismatched types", func(t *testing.T) {
		s := New()
		e := Min(s.Lit(float32(1)), s.Lit(uint32(2)))
		wantPoisoned(t, s, e, ErrTypeMismatch, "min of f32 and u32")
	})
	t.Run("bool operands", func(t *testing.T) {
		s := New()
		wantPoisoned(t, s, Max(s.Lit(true), s.Lit(false)), ErrTypeMismatch, "max of bool")
	})
}

func TestPow(t *testing.T) {
	t.Run("float operands", func(t *testing.T) {
		s := New()
		wantType(t, Pow(s.Lit(float32(2)), 3.0), Scalar{Kind: F32})
		if err := s.Err(); err != nil {
			t.Errorf("Err() = %v, want nil", err)
		}
	})
	t.Run("integer operands", func(t *testing.T) {
		s := New()
		wantPoisoned(t, s, Pow(s.Lit(int32(2)), int32(3)), ErrTypeMismatch, "pow of i32 and i32")
	})
}

func TestDot(t *testing.T) {
	t.Run("matching float vectors", func(t *testing.T) {
		s := New()
		v := s.Zero(Vector{Size: 3, Kind: F32})
		wantType(t, Dot(v, v), Scalar{Kind: F32})
		if err := s.Err(); err != nil {
			t.Errorf("Err() = %v, want nil", err)
		}
	})
	t.Run("size mismatch", func(t *testing.T) {
		s := New()
		a := s.Zero(Vector{Size: 2, Kind: F32})
		b := s.Zero(Vector{Size: 3, Kind: F32})
		wantPoisoned(t, s, Dot(a, b), ErrTypeMismatch, "dot of vec2<f32> and vec3<f32>")
	})
	t.Run("integer vectors", func(t *testing.T) {
		s := New()
		v := s.Zero(Vector{Size: 3, Kind: U32})
		wantPoisoned(t, s, Dot(v, v), ErrTypeMismatch, "dot of vec3<u32>")
	})
}

func TestLengthNormalize(t *testing.T) {
	t.Run("float vector", func(t *testing.T) {
		s := New()
		v := s.Zero(Vector{Size: 3, Kind: F32})
		wantType(t, Length(v), Scalar{Kind: F32})
		wantType(t, Normalize(v), Vector{Size: 3, Kind: F32})
		if err := s.Err(); err != nil {
			t.Errorf("Err() = %v, want nil", err)
		}
	})
	t.Run("scalar operand", func(t *testing.T) {
		s := New()
		wantPoisoned(t, s, Length(s.Lit(float32(1))), ErrTypeMismatch, "length of f32")
	})
}

func TestSampleTypes(t *testing.T) {
	t.Run("texture sampler uv", func(t *testing.T) {
		s := New()
		g := s.Group(Material{})
		uv := Transfer(Vec2(ToF32(s.VertexIndex()), 0.0))
		e := Sample(g.Read("Tex"), g.Read("Sam"), uv)
		wantType(t, e, Vector{Size: 4, Kind: F32})
		if err := s.Err(); err != nil {
			t.Errorf("Err() = %v, want nil", err)
		}
	})
	t.Run("swapped texture and sampler", func(t *testing.T) {
		s := New()
		g := s.Group(Material{})
		uv := s.Zero(Vector{Size: 2, Kind: F32})
		e := Sample(g.Read("Sam"), g.Read("Tex"), uv)
		wantPoisoned(t, s, e, ErrTypeMismatch, "sample of sampler")
	})
	t.Run("bad coordinate", func(t *testing.T) {
		s := New()
		g := s.Group(Material{})
		e := Sample(g.Read("Tex"), g.Read("Sam"), s.Zero(Vector{Size: 3, Kind: F32}))
		wantPoisoned(t, s, e, ErrTypeMismatch, "sample at vec3<f32> coordinate")
	})
}

func TestConvert(t *testing.T) {
	tests := []struct {
		name  string
		build func(s *Shader) Expr
		want  ValueType
	}{
		{"u32 to f32", func(s *Shader) Expr { return ToF32(s.Lit(uint32(1))) }, Scalar{Kind: F32}},
		{"f32 to i32", func(s *Shader) Expr { return ToI32(s.Lit(float32(1.5))) }, Scalar{Kind: I32}},
		{"i32 to u32", func(s *Shader) Expr { return ToU32(s.Lit(int32(1))) }, Scalar{Kind: U32}},
		{
			"vector components",
			func(s *Shader) Expr { return ToF32(s.Zero(Vector{Size: 3, Kind: I32})) },
			Vector{Size: 3, Kind: F32},
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

func TestConvertRejectsBool(t *testing.T) {
	s := New()
	wantPoisoned(t, s, ToF32(s.Lit(true)), ErrTypeMismatch, "convert bool to f32")
}
