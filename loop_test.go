package shade

import "testing"

func foldFixture(s *Shader) (arr, length Expr) {
	arr = s.Zero(Array{Elem: Vector{Size: 4, Kind: F32}, Len: 4})
	length = s.Lit(uint32(4))
	return arr, length
}

func TestFoldTypes(t *testing.T) {
	s := New()
	arr, length := foldFixture(s)
	e := Fold(arr, length, s.Zero(Vector{Size: 4, Kind: F32}),
		func(acc, elem, index Expr) Expr {
			return Add(acc, elem)
		})
	wantType(t, e, Vector{Size: 4, Kind: F32})
	if err := s.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

func TestFoldPlaceholderTypes(t *testing.T) {
	s := New()
	arr, length := foldFixture(s)
	Fold(arr, length, s.Lit(float32(0)), func(acc, elem, index Expr) Expr {
		wantType(t, acc, Scalar{Kind: F32})
		wantType(t, elem, Vector{Size: 4, Kind: F32})
		wantType(t, index, Scalar{Kind: U32})
		return Add(acc, elem.X())
	})
	if err := s.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

func TestFoldErrors(t *testing.T) {
	t.Run("non-array", func(t *testing.T) {
		s := New()
		e := Fold(s.Zero(Vector{Size: 4, Kind: F32}), s.Lit(uint32(4)), 0.0,
			func(acc, elem, index Expr) Expr { return acc })
		wantPoisoned(t, s, e, ErrTypeMismatch, "fold over vec4<f32>")
	})
	t.Run("length type", func(t *testing.T) {
		s := New()
		arr, _ := foldFixture(s)
		e := Fold(arr, s.Lit(int32(4)), 0.0,
			func(acc, elem, index Expr) Expr { return acc })
		wantPoisoned(t, s, e, ErrTypeMismatch, "fold length of type i32")
	})
	t.Run("body accumulator type", func(t *testing.T) {
		s := New()
		arr, length := foldFixture(s)
		e := Fold(arr, length, s.Lit(float32(0)),
			func(acc, elem, index Expr) Expr { return elem })
		wantPoisoned(t, s, e, ErrTypeMismatch, "fold body yields vec4<f32>, accumulator is f32")
	})
	t.Run("nil body", func(t *testing.T) {
		s := New()
		arr, length := foldFixture(s)
		e := Fold(arr, length, 0.0, nil)
		wantPoisoned(t, s, e, ErrTypeMismatch, "fold with nil body")
	})
}

func TestFoldPlaceholderEscapeLatches(t *testing.T) {
	s := New()
	arr, length := foldFixture(s)
	var leaked Expr
	Fold(arr, length, s.Lit(float32(0)), func(acc, elem, index Expr) Expr {
		leaked = elem
		return Add(acc, elem.X())
	})
	if err := s.Err(); err != nil {
		t.Fatalf("Err() after fold = %v, want nil", err)
	}
	e := Add(leaked.X(), s.Lit(float32(1)))
	wantPoisoned(t, s, e, ErrStageScope, "loop variable used outside its fold body")
}
