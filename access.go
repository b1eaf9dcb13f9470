package shade

// X returns component 0 of a vector.
func (e Expr) X() Expr { return e.component(0, "x") }

// Y returns component 1 of a vector.
func (e Expr) Y() Expr { return e.component(1, "y") }

// Z returns component 2 of a vector.
func (e Expr) Z() Expr { return e.component(2, "z") }

// W returns component 3 of a vector.
func (e Expr) W() Expr { return e.component(3, "w") }

func (e Expr) component(i uint8, name string) Expr {
	if e.s == nil {
		panic("shade: zero Expr used as operand")
	}
	s := e.s
	if e.poisoned() {
		return s.poisonExpr()
	}
	n := s.node(e.idx)
	v, ok := n.typ.(Vector)
	if !ok || i >= v.Size {
		return s.poisonf(ErrTypeMismatch, "component .%s of %s", name, n.typ)
	}
	return s.add(nodeComponent{base: e.idx, index: i}, Scalar{Kind: v.Kind}, n.mask)
}

// Field returns the named field of a struct-typed expression, looked
// up by the Go field name of the record that declared it.
func (e Expr) Field(name string) Expr {
	if e.s == nil {
		panic("shade: zero Expr used as operand")
	}
	s := e.s
	if e.poisoned() {
		return s.poisonExpr()
	}
	n := s.node(e.idx)
	st, ok := n.typ.(Struct)
	if !ok {
		return s.poisonf(ErrTypeMismatch, "field .%s of %s", name, n.typ)
	}
	for i, f := range st.Fields {
		if f.Name == name {
			return s.add(nodeComponent{base: e.idx, index: uint8(i)}, f.Type, n.mask)
		}
	}
	return s.poisonf(ErrTypeMismatch, "%s has no field %s", n.typ, name)
}

// Col returns column i of a matrix as a vector.
func (e Expr) Col(i int) Expr {
	if e.s == nil {
		panic("shade: zero Expr used as operand")
	}
	s := e.s
	if e.poisoned() {
		return s.poisonExpr()
	}
	n := s.node(e.idx)
	m, ok := n.typ.(Matrix)
	if !ok || i < 0 || i >= int(m.Cols) {
		return s.poisonf(ErrTypeMismatch, "column %d of %s", i, n.typ)
	}
	return s.add(nodeComponent{base: e.idx, index: uint8(i)}, Vector{Size: m.Rows, Kind: F32}, n.mask)
}

// Index reads element i of an array. The index lifts to a u32 or i32
// scalar and stays a runtime subscript; constant indices are not
// folded away. Keeping a runtime index inside the bound length is the
// caller's responsibility.
func Index(arr Expr, i any) Expr {
	if arr.s == nil {
		panic("shade: zero Expr used as operand")
	}
	s := arr.s
	if arr.poisoned() {
		return s.poisonExpr()
	}
	idx := s.lift(i)
	if idx.poisoned() {
		return s.poisonExpr()
	}
	an := s.node(arr.idx)
	at, ok := an.typ.(Array)
	if !ok {
		return s.poisonf(ErrTypeMismatch, "index of %s", an.typ)
	}
	in := s.node(idx.idx)
	if k, kok := in.typ.(Scalar); !kok || (k.Kind != U32 && k.Kind != I32) {
		return s.poisonf(ErrTypeMismatch, "array index of type %s", in.typ)
	}
	mask, ok := s.combine("index", arr, idx)
	if !ok {
		return s.poisonExpr()
	}
	return s.add(nodeIndex{base: arr.idx, index: idx.idx}, at.Elem, mask)
}
