package shade

import (
	"fmt"
	"strings"
)

// stageMask tracks which shader stages may evaluate a node. Masks
// intersect as expressions combine; an empty intersection latches
// ErrStageScope on the owning Shader.
type stageMask uint8

const (
	maskVertex stageMask = 1 << iota
	maskFragment
	maskCompute

	maskAll = maskVertex | maskFragment | maskCompute
)

func (m stageMask) String() string {
	if m == 0 {
		return "none"
	}
	var parts []string
	if m&maskVertex != 0 {
		parts = append(parts, "vertex")
	}
	if m&maskFragment != 0 {
		parts = append(parts, "fragment")
	}
	if m&maskCompute != 0 {
		parts = append(parts, "compute")
	}
	return strings.Join(parts, "|")
}

// Expr is an immutable handle into a Shader's expression arena.
// Combinators return new handles and never mutate existing nodes, so a
// handle may be reused across any number of larger expressions and the
// shared subtree is compiled exactly once.
//
// The zero Expr means "no expression"; passing it to a combinator is a
// host programming error and panics. Handles from different Shader
// instances must not be mixed.
type Expr struct {
	s   *Shader
	idx uint32
}

// Type returns the value type of the expression. It returns nil for
// the zero Expr and for handles minted after an error latched.
func (e Expr) Type() ValueType {
	if e.s == nil || e.idx == 0 {
		return nil
	}
	return e.s.nodes[e.idx].typ
}

// poisoned reports whether e is the poison handle of its shader.
func (e Expr) poisoned() bool { return e.idx == 0 }

// node is one arena entry. Nodes are immutable once appended.
type node struct {
	kind nodeKind
	typ  ValueType
	mask stageMask
}

// nodeKind is the closed set of expression payloads. Operands are
// arena indices, never pointers, so sharing survives every transform
// pass by index identity.
type nodeKind interface{ isNodeKind() }

type (
	// nodeInvalid is the poison node seeded at index 0 by New.
	nodeInvalid struct{}

	// nodeLit is a compile-time scalar constant.
	nodeLit struct {
		lit literal
	}

	// nodeZero is the zero value of the node's type.
	nodeZero struct{}

	// nodeBuiltin reads a per-invocation builtin value.
	nodeBuiltin struct {
		which builtinKind
	}

	// nodeReadInput reads one field of a vertex or instance record.
	nodeReadInput struct {
		input int
		field int
	}

	// nodeReadGlobal reads one field of a bind group record.
	nodeReadGlobal struct {
		group int
		field int
	}

	// nodeConstruct builds a vector or matrix from parts whose
	// component counts sum to the result arity.
	nodeConstruct struct {
		parts []uint32
	}

	// nodeSplat broadcasts a scalar across every vector lane.
	nodeSplat struct {
		value uint32
	}

	// nodeComponent extracts one vector component or one matrix
	// column.
	nodeComponent struct {
		base  uint32
		index uint8
	}

	// nodeIndex reads one array element at a runtime index.
	nodeIndex struct {
		base  uint32
		index uint32
	}

	// nodeTransfer carries a vertex-stage value across the
	// rasterizer; the fragment stage sees it interpolated.
	nodeTransfer struct {
		value uint32
	}

	// nodeBinary applies an arithmetic, comparison or logical
	// operator.
	nodeBinary struct {
		op  binaryOp
		lhs uint32
		rhs uint32
	}

	// nodeUnary negates or complements a value.
	nodeUnary struct {
		op      unaryOp
		operand uint32
	}

	// nodeCall applies a built-in math function.
	nodeCall struct {
		fn   mathFun
		args []uint32
	}

	// nodeSample samples a 2D texture at a coordinate.
	nodeSample struct {
		tex   uint32
		sam   uint32
		coord uint32
	}

	// nodeConvert converts components to another scalar kind.
	nodeConvert struct {
		kind  ScalarKind
		value uint32
	}

	// nodeBranch selects one of two values behind a runtime
	// conditional. Constant conditions still branch at runtime.
	nodeBranch struct {
		cond uint32
		then uint32
		els  uint32
	}

	// nodeDiscard abandons the current fragment. It stands in for a
	// value of the node's type as a branch arm or fragment root.
	nodeDiscard struct{}

	// nodeLoop folds an accumulator over the leading elements of an
	// array. acc, elem and index are the placeholder nodes handed to
	// the body callback; body is the callback's result.
	nodeLoop struct {
		array  uint32
		length uint32
		init   uint32
		acc    uint32
		elem   uint32
		index  uint32
		body   uint32
	}

	// nodeLoopVar is a placeholder bound by an enclosing nodeLoop.
	nodeLoopVar struct {
		role loopVarRole
	}
)

func (nodeInvalid) isNodeKind()    {}
func (nodeLit) isNodeKind()        {}
func (nodeZero) isNodeKind()       {}
func (nodeBuiltin) isNodeKind()    {}
func (nodeReadInput) isNodeKind()  {}
func (nodeReadGlobal) isNodeKind() {}
func (nodeConstruct) isNodeKind()  {}
func (nodeSplat) isNodeKind()      {}
func (nodeComponent) isNodeKind()  {}
func (nodeIndex) isNodeKind()      {}
func (nodeTransfer) isNodeKind()   {}
func (nodeBinary) isNodeKind()     {}
func (nodeUnary) isNodeKind()      {}
func (nodeCall) isNodeKind()       {}
func (nodeSample) isNodeKind()     {}
func (nodeConvert) isNodeKind()    {}
func (nodeBranch) isNodeKind()     {}
func (nodeDiscard) isNodeKind()    {}
func (nodeLoop) isNodeKind()       {}
func (nodeLoopVar) isNodeKind()    {}

// literal is a scalar constant stored as raw bits plus kind.
type literal struct {
	kind ScalarKind
	bits uint32
}

// builtinKind names the per-invocation builtins an expression can read.
type builtinKind uint8

const (
	builtinVertexIndex builtinKind = iota
	builtinGlobalInvocationID
)

// loopVarRole distinguishes the three placeholders a Fold binds.
type loopVarRole uint8

const (
	loopAcc loopVarRole = iota
	loopElem
	loopIndex
)

// add appends a node and returns its handle. Index 0 is the poison
// node, so real handles start at 1.
func (s *Shader) add(kind nodeKind, typ ValueType, mask stageMask) Expr {
	if len(s.closedVars) > 0 {
		escaped := false
		operands(kind, func(op uint32) {
			if s.closedVars[op] {
				escaped = true
			}
		})
		if escaped {
			return s.poisonf(ErrStageScope, "loop variable used outside its fold body")
		}
	}
	s.nodes = append(s.nodes, node{kind: kind, typ: typ, mask: mask})
	return Expr{s: s, idx: uint32(len(s.nodes) - 1)}
}

// operands calls fn with each arena index kind references. Loop
// placeholders are bindings rather than operands, so nodeLoop reports
// only its array, length, init and body edges.
func operands(kind nodeKind, fn func(uint32)) {
	switch k := kind.(type) {
	case nodeConstruct:
		for _, p := range k.parts {
			fn(p)
		}
	case nodeSplat:
		fn(k.value)
	case nodeComponent:
		fn(k.base)
	case nodeIndex:
		fn(k.base)
		fn(k.index)
	case nodeTransfer:
		fn(k.value)
	case nodeBinary:
		fn(k.lhs)
		fn(k.rhs)
	case nodeUnary:
		fn(k.operand)
	case nodeCall:
		for _, a := range k.args {
			fn(a)
		}
	case nodeSample:
		fn(k.tex)
		fn(k.sam)
		fn(k.coord)
	case nodeConvert:
		fn(k.value)
	case nodeBranch:
		fn(k.cond)
		fn(k.then)
		fn(k.els)
	case nodeLoop:
		fn(k.array)
		fn(k.length)
		fn(k.init)
		fn(k.body)
	}
}

func (s *Shader) node(idx uint32) node { return s.nodes[idx] }

// poison latches err on the shader and returns the poison handle. The
// first error wins; later failures on an already-poisoned shader keep
// the original. Combinators pass poison operands through silently, so
// one Err check after building observes the root cause.
func (s *Shader) poison(err error) Expr {
	if s.err == nil {
		s.err = err
	}
	return Expr{s: s, idx: 0}
}

// poisonf wraps sentinel with formatted context and latches it.
func (s *Shader) poisonf(sentinel error, format string, args ...any) Expr {
	args = append(args, sentinel)
	return s.poison(fmt.Errorf(format+": %w", args...))
}

// poisonExpr returns the poison handle without latching a new error.
// Used to propagate an operand that already poisoned the shader.
func (s *Shader) poisonExpr() Expr { return Expr{s: s, idx: 0} }

// operand validates e as an operand created on s. The zero Expr and
// cross-shader handles are host programming errors and panic rather
// than latch: they indicate broken plumbing, not a bad shader.
func (s *Shader) operand(e Expr) {
	if e.s == nil {
		panic("shade: zero Expr used as operand")
	}
	if e.s != s {
		panic("shade: expressions from different Shader instances")
	}
}

// hostShader extracts the common Shader from a free-function
// combinator's operands. At least one operand must be an Expr; plain
// host values alone give the call nothing to attach to.
func hostShader(vals ...any) *Shader {
	var s *Shader
	for _, v := range vals {
		e, ok := v.(Expr)
		if !ok {
			continue
		}
		if e.s == nil {
			panic("shade: zero Expr used as operand")
		}
		if s == nil {
			s = e.s
		} else if s != e.s {
			panic("shade: expressions from different Shader instances")
		}
	}
	if s == nil {
		panic("shade: no Expr operand to bind the call to a Shader")
	}
	return s
}

// lift converts a host value to an arena expression: Exprs pass
// through after an ownership check, everything else goes through Lit.
func (s *Shader) lift(v any) Expr {
	if e, ok := v.(Expr); ok {
		s.operand(e)
		return e
	}
	return s.Lit(v)
}

// combine intersects operand masks. An empty intersection means no
// stage can evaluate the combined expression; that latches
// ErrStageScope and reports false.
func (s *Shader) combine(what string, exprs ...Expr) (stageMask, bool) {
	m := maskAll
	for _, e := range exprs {
		m &= s.node(e.idx).mask
	}
	if m == 0 {
		s.poisonf(ErrStageScope, "%s: operands share no stage", what)
		return 0, false
	}
	return m, true
}
