package shade

// Fold reduces the leading length elements of an array into an
// accumulator. body receives three placeholder expressions, the
// running accumulator, the current element and the current index, and
// returns the next accumulator value of the same type as init.
//
// The reduction lowers to a single counted loop bounded by length at
// runtime; a length that happens to be known on the host never unrolls
// the loop. Elements at and past length are not read.
//
// The placeholders are meaningful only inside body. Referencing one
// from an expression built after Fold returns latches ErrStageScope;
// smuggling one out indirectly through a subexpression panics when the
// shader compiles.
func Fold(arr Expr, length, init any, body func(acc, elem, index Expr) Expr) Expr {
	s := hostShader(arr, length, init)
	ln, in := s.lift(length), s.lift(init)
	if arr.poisoned() || ln.poisoned() || in.poisoned() {
		return s.poisonExpr()
	}
	an := s.node(arr.idx)
	at, ok := an.typ.(Array)
	if !ok {
		return s.poisonf(ErrTypeMismatch, "fold over %s", an.typ)
	}
	if !plainType(at.Elem) {
		return s.poisonf(ErrTypeMismatch, "fold over %s elements", at.Elem)
	}
	if lt := s.node(ln.idx).typ; !TypesEqual(lt, Scalar{Kind: U32}) {
		return s.poisonf(ErrTypeMismatch, "fold length of type %s", lt)
	}
	it := s.node(in.idx).typ
	if !plainType(it) {
		return s.poisonf(ErrTypeMismatch, "fold accumulator of %s", it)
	}
	mask, ok := s.combine("fold", arr, ln, in)
	if !ok {
		return s.poisonExpr()
	}
	if body == nil {
		return s.poisonf(ErrTypeMismatch, "fold with nil body")
	}

	acc := s.add(nodeLoopVar{role: loopAcc}, it, mask)
	elem := s.add(nodeLoopVar{role: loopElem}, at.Elem, mask)
	index := s.add(nodeLoopVar{role: loopIndex}, Scalar{Kind: U32}, mask)

	result := body(acc, elem, index)
	if result.s == nil {
		panic("shade: zero Expr used as operand")
	}
	s.operand(result)
	if result.poisoned() {
		return s.poisonExpr()
	}
	rn := s.node(result.idx)
	if !TypesEqual(rn.typ, it) {
		return s.poisonf(ErrTypeMismatch, "fold body yields %s, accumulator is %s", rn.typ, it)
	}
	mask &= rn.mask
	if mask == 0 {
		return s.poisonf(ErrStageScope, "fold: body and bounds share no stage")
	}

	out := s.add(nodeLoop{
		array:  arr.idx,
		length: ln.idx,
		init:   in.idx,
		acc:    acc.idx,
		elem:   elem.idx,
		index:  index.idx,
		body:   result.idx,
	}, it, mask)

	// The placeholders go out of scope with the body. Later nodes that
	// name them directly latch an error at construction.
	if s.closedVars == nil {
		s.closedVars = make(map[uint32]bool)
	}
	s.closedVars[acc.idx] = true
	s.closedVars[elem.idx] = true
	s.closedVars[index.idx] = true
	return out
}
