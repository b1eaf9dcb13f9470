package shade

// If selects between two values of one plain type behind a runtime
// conditional. Only the taken arm evaluates, so an arm may discard or
// index past what the other arm could. A condition that happens to be
// constant still branches at runtime; neither arm is folded away.
func If(cond Expr, then, els any) Expr {
	s := hostShader(cond, then, els)
	t, e := s.lift(then), s.lift(els)
	if cond.poisoned() || t.poisoned() || e.poisoned() {
		return s.poisonExpr()
	}
	cn := s.node(cond.idx)
	if !TypesEqual(cn.typ, Scalar{Kind: Bool}) {
		return s.poisonf(ErrTypeMismatch, "branch on %s condition", cn.typ)
	}
	tn, en := s.node(t.idx), s.node(e.idx)
	if !TypesEqual(tn.typ, en.typ) {
		return s.poisonf(ErrTypeMismatch, "branch arms %s and %s", tn.typ, en.typ)
	}
	if !plainType(tn.typ) {
		return s.poisonf(ErrTypeMismatch, "branch over %s", tn.typ)
	}
	mask, ok := s.combine("branch", cond, t, e)
	if !ok {
		return s.poisonExpr()
	}
	return s.add(nodeBranch{cond: cond.idx, then: t.idx, els: e.idx}, tn.typ, mask)
}

// DiscardIf abandons the current fragment when cond holds and yields
// keep otherwise. Shorthand for If(cond, Discard, keep).
func DiscardIf(cond Expr, keep any) Expr {
	s := hostShader(cond, keep)
	k := s.lift(keep)
	if cond.poisoned() || k.poisoned() {
		return s.poisonExpr()
	}
	kt := s.node(k.idx).typ
	if kt == nil || !plainType(kt) {
		return s.poisonf(ErrTypeMismatch, "discard standing in for %v", kt)
	}
	return If(cond, s.Discard(kt), k)
}
