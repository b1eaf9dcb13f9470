package shade

import (
	"fmt"
	"math"

	"github.com/gogpu/naga/ir"
)

// lowerer turns one Shader arena plus its entry roots into an ir.Module.
//
// Lowering is structural: every arena node reachable from a root becomes at
// most one ir expression per entry function, so subtrees shared by index in
// the arena stay shared in the output. Nothing is folded on the way down; a
// branch keeps its runtime `if` and a fold keeps its runtime loop no matter
// how constant their inputs happen to be.
type lowerer struct {
	s   *Shader
	reg *typeTable
	mod *ir.Module

	// inputStructs[i] is the IO struct registered for s.inputs[i].
	inputStructs []ir.TypeHandle

	// globals maps a resolved (group, binding) pair to its module global.
	globals   map[bindingKey]ir.GlobalVariableHandle
	globalTyp map[bindingKey]ir.TypeHandle

	// rwStorage records which globals were declared read_write.
	rwStorage map[ir.GlobalVariableHandle]bool

	// transfers lists transferred value nodes in the order the fragment
	// tree first encountered them; slots in VertexOutput follow it, with
	// slot 0 reserved for the position builtin.
	transfers    []uint32
	transferSlot map[uint32]int

	// outHandle is filled in once the fragment pass has discovered every
	// transfer and VertexOutput can be registered. The pointer is shared
	// with expression resolutions created before that point.
	outHandle *ir.TypeHandle
}

// loweredVal is a lowered arena node. ptr marks handles that still point into
// a buffer (uniform array members, storage arrays) and need an Access before
// a Load rather than a value-level index.
type loweredVal struct {
	h   ir.ExpressionHandle
	ptr bool
}

// fnBuilder accumulates one entry function. The watermark tracks the first
// expression not yet covered by a StmtEmit; pushing any statement first
// flushes the pending range, extending a trailing emit in the same block so
// ranges stay maximal.
type fnBuilder struct {
	l   *lowerer
	fun ir.Function

	memo      map[uint32]loweredVal
	refs      map[uint32]int
	watermark ir.ExpressionHandle

	// args maps input decl index to the function argument expression.
	args map[int]ir.ExpressionHandle
	// builtinArg is the expression for the stage builtin argument, if any.
	builtinArg ir.ExpressionHandle
	hasBuiltin bool
	// ioArg is the fragment stage's VertexOutput argument expression.
	ioArg ir.ExpressionHandle

	// localPtrs caches the pointer expression for each declared local.
	localPtrs []ir.ExpressionHandle
}

func internalf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrInternal)...)
}

// ir struct members and function results hold *ir.Binding, so the value has
// to pass through an interface variable before its address is taken.
func locationBinding(loc uint32) *ir.Binding {
	b := ir.Binding(ir.LocationBinding{Location: loc})
	return &b
}

func builtinBinding(builtin ir.BuiltinValue) *ir.Binding {
	b := ir.Binding(ir.BuiltinBinding{Builtin: builtin})
	return &b
}

// lower builds the module for the given roots. Roots that are not wanted are
// passed as zero Exprs with ok=false.
func (s *Shader) lower(place, color, compute Expr, hasPlace, hasColor, hasCompute bool, workgroup [3]uint32) (*ir.Module, map[ir.GlobalVariableHandle]bool) {
	l := &lowerer{
		s:            s,
		reg:          newTypeTable(),
		mod:          &ir.Module{},
		globals:      make(map[bindingKey]ir.GlobalVariableHandle),
		globalTyp:    make(map[bindingKey]ir.TypeHandle),
		rwStorage:    make(map[ir.GlobalVariableHandle]bool),
		transferSlot: make(map[uint32]int),
		outHandle:    new(ir.TypeHandle),
	}

	l.registerInputs()
	l.registerGroups()

	var fragFn *fnBuilder
	if hasColor {
		fragFn = l.buildFragment(color)
	}
	l.registerOutput(hasPlace)
	if fragFn != nil {
		// The argument was declared before VertexOutput existed; give the
		// declaration the type the shared resolution already points at.
		fragFn.fun.Arguments[0].Type = *l.outHandle
	}
	if hasPlace {
		vb := l.buildVertex(place)
		l.finishFunction(vb, ir.StageVertex, "vs_main", workgroup)
	}
	if fragFn != nil {
		l.finishFunction(fragFn, ir.StageFragment, "fs_main", workgroup)
	}
	if hasCompute {
		cb := l.buildCompute(compute)
		l.finishFunction(cb, ir.StageCompute, "cs_main", workgroup)
	}

	l.mod.Types = l.reg.types
	return l.mod, l.rwStorage
}

func (l *lowerer) finishFunction(b *fnBuilder, stage ir.ShaderStage, name string, workgroup [3]uint32) {
	b.fun.Name = name
	ep := ir.EntryPoint{Name: name, Stage: stage, Function: b.fun}
	if stage == ir.StageCompute {
		ep.Workgroup = workgroup
	}
	l.mod.EntryPoints = append(l.mod.EntryPoints, ep)
}

// --- type registration -----------------------------------------------------

const (
	layoutUniform = iota
	layoutStorage
)

// typeTable interns module types. The SPIR-V path wants each distinct type
// declared exactly once, so handles are deduplicated by a structural key.
// Struct keys fold in member names, offsets, and IO bindings, which keeps
// interface structs that differ only in claimed locations distinct.
type typeTable struct {
	types []ir.Type
	index map[string]ir.TypeHandle
}

func newTypeTable() *typeTable {
	return &typeTable{index: make(map[string]ir.TypeHandle, 16)}
}

func (t *typeTable) GetOrCreate(name string, inner ir.TypeInner) ir.TypeHandle {
	key := name + "|" + typeTableKey(inner)
	if h, ok := t.index[key]; ok {
		return h
	}
	h := ir.TypeHandle(len(t.types))
	t.types = append(t.types, ir.Type{Name: name, Inner: inner})
	t.index[key] = h
	return h
}

// typeTableKey spells a type's structure. Composite types refer to their
// base by handle, which is sound because typeHandle interns inner types
// before the types that contain them.
func typeTableKey(inner ir.TypeInner) string {
	switch i := inner.(type) {
	case ir.ScalarType:
		return fmt.Sprintf("s%d.%d", i.Kind, i.Width)
	case ir.VectorType:
		return fmt.Sprintf("v%d[%s]", i.Size, typeTableKey(i.Scalar))
	case ir.MatrixType:
		return fmt.Sprintf("m%dx%d[%s]", i.Columns, i.Rows, typeTableKey(i.Scalar))
	case ir.ArrayType:
		size := "rt"
		if i.Size.Constant != nil {
			size = fmt.Sprintf("%d", *i.Size.Constant)
		}
		return fmt.Sprintf("a%s.%d[t%d]", size, i.Stride, i.Base)
	case ir.PointerType:
		return fmt.Sprintf("p%d[t%d]", i.Space, i.Base)
	case ir.StructType:
		key := fmt.Sprintf("st%d", i.Span)
		for _, m := range i.Members {
			binding := ""
			if m.Binding != nil {
				binding = fmt.Sprintf("%v", *m.Binding)
			}
			key += fmt.Sprintf(";%s@%d:t%d%s", m.Name, m.Offset, m.Type, binding)
		}
		return key
	case ir.ImageType:
		return fmt.Sprintf("img%d.%d.%t", i.Dim, i.Class, i.Arrayed)
	case ir.SamplerType:
		return "sam"
	}
	panic(internalf("lower: unhandled type inner %T", inner))
}

func irScalar(k ScalarKind) ir.ScalarType {
	switch k {
	case F32:
		return ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}
	case U32:
		return ir.ScalarType{Kind: ir.ScalarUint, Width: 4}
	case I32:
		return ir.ScalarType{Kind: ir.ScalarSint, Width: 4}
	case Bool:
		return ir.ScalarType{Kind: ir.ScalarBool, Width: 1}
	}
	panic(internalf("lower: unknown scalar kind %d", k))
}

// typeHandle registers t (and everything it contains) and returns its handle.
// layout picks the stride and offset rules: uniform records round arrays and
// structs to 16-byte granularity, storage elements pack naturally.
func (l *lowerer) typeHandle(t ValueType, layout int) ir.TypeHandle {
	switch tt := t.(type) {
	case Scalar:
		return l.reg.GetOrCreate("", irScalar(tt.Kind))
	case Vector:
		return l.reg.GetOrCreate("", ir.VectorType{Size: ir.VectorSize(tt.Size), Scalar: irScalar(tt.Kind)})
	case Matrix:
		return l.reg.GetOrCreate("", ir.MatrixType{
			Columns: ir.VectorSize(tt.Cols),
			Rows:    ir.VectorSize(tt.Rows),
			Scalar:  irScalar(F32),
		})
	case Array:
		base := l.typeHandle(tt.Elem, layout)
		stride := arrayStride(tt.Elem)
		if layout == layoutStorage {
			stride = storageStride(tt.Elem)
		}
		size := ir.ArraySize{}
		if tt.Len > 0 {
			n := tt.Len
			size.Constant = &n
		}
		return l.reg.GetOrCreate("", ir.ArrayType{Base: base, Size: size, Stride: stride})
	case Struct:
		members := make([]ir.StructMember, len(tt.Fields))
		offset := uint32(0)
		for i, f := range tt.Fields {
			if layout == layoutStorage {
				offset = roundUp(offset, storageAlignOf(f.Type))
			} else {
				offset = roundUp(offset, alignOf(f.Type))
			}
			members[i] = ir.StructMember{
				Name:   lowerFirst(f.Name),
				Type:   l.typeHandle(f.Type, layout),
				Offset: offset,
			}
			if layout == layoutStorage {
				offset += storageSizeOf(f.Type)
			} else {
				offset += sizeOf(f.Type)
			}
		}
		span := sizeOf(tt)
		if layout == layoutStorage {
			span = storageSizeOf(tt)
		}
		return l.reg.GetOrCreate(tt.Name, ir.StructType{Members: members, Span: span})
	case Texture:
		return l.reg.GetOrCreate("", ir.ImageType{Dim: ir.Dim2D, Class: ir.ImageClassSampled})
	case Sampler:
		return l.reg.GetOrCreate("", ir.SamplerType{})
	}
	panic(internalf("lower: unhandled type %s", t))
}

func (l *lowerer) pointerHandle(base ir.TypeHandle, space ir.AddressSpace) ir.TypeHandle {
	return l.reg.GetOrCreate("", ir.PointerType{Base: base, Space: space})
}

func (l *lowerer) resolve(t ValueType) ir.TypeResolution {
	h := l.typeHandle(t, layoutUniform)
	return ir.TypeResolution{Handle: &h}
}

func (l *lowerer) resolveHandle(h ir.TypeHandle) ir.TypeResolution {
	hh := h
	return ir.TypeResolution{Handle: &hh}
}

// registerInputs builds one IO struct per registered input record. Members
// are the flattened leaves in declaration order; the Offset field carries the
// location so records that differ only in claimed locations stay distinct in
// the type table.
func (l *lowerer) registerInputs() {
	l.inputStructs = make([]ir.TypeHandle, len(l.s.inputs))
	for i, decl := range l.s.inputs {
		members := make([]ir.StructMember, len(decl.members))
		for j, m := range decl.members {
			loc := m.loc
			members[j] = ir.StructMember{
				Name:    m.name,
				Type:    l.typeHandle(m.typ, layoutUniform),
				Binding: locationBinding(loc),
				Offset:  loc * 16,
			}
		}
		name := "VertexInput"
		if decl.instance {
			name = "InstanceInput"
		}
		l.inputStructs[i] = l.reg.GetOrCreate(name, ir.StructType{
			Members: members,
			Span:    uint32(len(members)) * 16,
		})
	}
}

// registerGroups declares one module global per resolved binding: the merged
// uniform struct, each texture and sampler, each storage array, and the
// companion length uniform that trails a storage array.
func (l *lowerer) registerGroups() {
	used := make(map[string]int)
	unique := func(base string) string {
		n := used[base]
		used[base] = n + 1
		if n == 0 {
			return base
		}
		return fmt.Sprintf("%s_%d", base, n)
	}

	for _, g := range l.s.groups {
		if g.hasUniform {
			fields := make([]StructField, 0, len(g.fields))
			for _, f := range g.fields {
				if f.kind == fieldUniform {
					fields = append(fields, StructField{Name: f.name, Type: f.typ})
				}
			}
			th := l.typeHandle(Struct{Name: g.name, Fields: fields}, layoutUniform)
			l.addGlobal(g.index, g.uniformBinding, unique(lowerFirst(g.name)), ir.SpaceUniform, th, false)
		}
		for _, f := range g.fields {
			// Standalone bindings are named group_field so two groups can
			// both carry a Tex without clashing in module scope.
			base := lowerFirst(g.name) + "_" + lowerFirst(f.name)
			switch f.kind {
			case fieldTexture, fieldSampler:
				th := l.typeHandle(f.typ, layoutUniform)
				l.addGlobal(g.index, f.binding, unique(base), ir.SpaceHandle, th, false)
			case fieldStorage:
				th := l.typeHandle(f.typ, layoutStorage)
				l.addGlobal(g.index, f.binding, unique(base), ir.SpaceStorage, th, f.rw)
			case fieldArrayLen:
				members := make([]ir.StructMember, 4)
				for i := range members {
					name := "n"
					if i > 0 {
						name = fmt.Sprintf("pad%d", i-1)
					}
					members[i] = ir.StructMember{
						Name:   name,
						Type:   l.typeHandle(Scalar{U32}, layoutUniform),
						Offset: uint32(i) * 4,
					}
				}
				th := l.reg.GetOrCreate("Len", ir.StructType{Members: members, Span: lenUniformSize})
				l.addGlobal(g.index, f.binding, unique(base+"_len"), ir.SpaceUniform, th, false)
			}
		}
	}
}

func (l *lowerer) addGlobal(group int, binding uint32, name string, space ir.AddressSpace, typ ir.TypeHandle, rw bool) {
	gh := ir.GlobalVariableHandle(len(l.mod.GlobalVariables))
	l.mod.GlobalVariables = append(l.mod.GlobalVariables, ir.GlobalVariable{
		Name:    name,
		Space:   space,
		Binding: &ir.ResourceBinding{Group: uint32(group), Binding: binding},
		Type:    typ,
	})
	key := bindingKey{group, binding}
	l.globals[key] = gh
	l.globalTyp[key] = typ
	if rw {
		l.rwStorage[gh] = true
	}
}

// registerOutput registers VertexOutput once the fragment pass has discovered
// every transferred value. Member 0 is the position builtin; members 1..n
// carry transfers at sequential locations.
func (l *lowerer) registerOutput(hasPlace bool) {
	if !hasPlace {
		return
	}
	members := make([]ir.StructMember, 1+len(l.transfers))
	members[0] = ir.StructMember{
		Name:    "position",
		Type:    l.typeHandle(Vector{4, F32}, layoutUniform),
		Binding: builtinBinding(ir.BuiltinPosition),
	}
	for i, idx := range l.transfers {
		members[1+i] = ir.StructMember{
			Name:    fmt.Sprintf("v%d", i),
			Type:    l.typeHandle(l.s.node(idx).typ, layoutUniform),
			Binding: locationBinding(uint32(i)), //nolint:gosec // G115: slot count is bounded by maxLocations
			Offset:  uint32(1+i) * 16,
		}
	}
	*l.outHandle = l.reg.GetOrCreate("VertexOutput", ir.StructType{
		Members: members,
		Span:    uint32(len(members)) * 16,
	})
}

// --- entry functions -------------------------------------------------------

func (l *lowerer) newBuilder() *fnBuilder {
	return &fnBuilder{
		l:    l,
		memo: make(map[uint32]loweredVal),
		refs: make(map[uint32]int),
		args: make(map[int]ir.ExpressionHandle),
	}
}

// countRefs walks the subgraph under each root once and counts, per node, how
// many distinct parent edges reach it. A count above one marks a shared
// subtree that must lower exactly once. Transfers are leaves here: what sits
// below one is vertex work, invisible to the function being counted.
func (b *fnBuilder) countRefs(roots ...uint32) {
	seen := make(map[uint32]bool)
	var stack []uint32
	for _, r := range roots {
		b.refs[r]++
		if !seen[r] {
			seen[r] = true
			stack = append(stack, r)
		}
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		kind := b.l.s.node(n).kind
		if _, ok := kind.(nodeTransfer); ok {
			continue
		}
		operands(kind, func(op uint32) {
			b.refs[op]++
			if !seen[op] {
				seen[op] = true
				stack = append(stack, op)
			}
		})
	}
}

func (l *lowerer) buildVertex(place Expr) *fnBuilder {
	b := l.newBuilder()
	b.addInputArgs()
	roots := []uint32{place.idx}
	for _, t := range l.transfers {
		roots = append(roots, t)
	}
	if treesUseBuiltin(l.s, builtinVertexIndex, roots...) {
		b.addBuiltinArg("index", Scalar{U32}, builtinBinding(ir.BuiltinVertexIndex))
	}
	b.countRefs(roots...)

	block := (*ir.Block)(&b.fun.Body)
	pos := b.lowerValue(block, place.idx)
	parts := make([]ir.ExpressionHandle, 1+len(l.transfers))
	parts[0] = pos
	for i, t := range l.transfers {
		parts[1+i] = b.lowerValue(block, t)
	}
	out := b.addExpr(ir.ExprCompose{Type: *l.outHandle, Components: parts}, l.resolveHandle(*l.outHandle))
	b.fun.Result = &ir.FunctionResult{Type: *l.outHandle}
	b.push(block, ir.StmtReturn{Value: &out})
	return b
}

func (l *lowerer) buildFragment(color Expr) *fnBuilder {
	b := l.newBuilder()
	// The argument type is VertexOutput, registered only after this pass
	// has discovered every transfer; the shared handle is patched then.
	b.fun.Arguments = append(b.fun.Arguments, ir.FunctionArgument{Name: "out"})
	b.ioArg = b.addExpr(ir.ExprFunctionArgument{Index: 0}, ir.TypeResolution{Handle: l.outHandle})
	b.countRefs(color.idx)

	block := (*ir.Block)(&b.fun.Body)
	if _, isDiscard := l.s.node(color.idx).kind.(nodeDiscard); isDiscard {
		b.push(block, ir.StmtKill{})
		zero := b.addExpr(ir.ExprZeroValue{Type: l.typeHandle(Vector{4, F32}, layoutUniform)}, l.resolve(Vector{4, F32}))
		b.push(block, ir.StmtReturn{Value: &zero})
	} else {
		v := b.lowerValue(block, color.idx)
		b.push(block, ir.StmtReturn{Value: &v})
	}
	b.fun.Result = &ir.FunctionResult{
		Type:    l.typeHandle(Vector{4, F32}, layoutUniform),
		Binding: locationBinding(0),
	}
	return b
}

func (l *lowerer) buildCompute(root Expr) *fnBuilder {
	b := l.newBuilder()
	if treesUseBuiltin(l.s, builtinGlobalInvocationID, root.idx) {
		b.addBuiltinArg("invocation", Vector{3, U32}, builtinBinding(ir.BuiltinGlobalInvocationID))
	}
	b.countRefs(root.idx)

	typ := l.s.node(root.idx).typ
	ptr := b.addLocal("result", typ)
	block := (*ir.Block)(&b.fun.Body)
	v := b.lowerValue(block, root.idx)
	b.push(block, ir.StmtStore{Pointer: ptr, Value: v})
	b.push(block, ir.StmtReturn{})
	return b
}

func (b *fnBuilder) addInputArgs() {
	for i, decl := range b.l.s.inputs {
		name := "input"
		if decl.instance {
			name = "model"
		}
		b.fun.Arguments = append(b.fun.Arguments, ir.FunctionArgument{
			Name: name,
			Type: b.l.inputStructs[i],
		})
		b.args[i] = b.addExpr(
			ir.ExprFunctionArgument{Index: uint32(len(b.fun.Arguments) - 1)},
			b.l.resolveHandle(b.l.inputStructs[i]),
		)
	}
}

func (b *fnBuilder) addBuiltinArg(name string, t ValueType, binding *ir.Binding) {
	b.fun.Arguments = append(b.fun.Arguments, ir.FunctionArgument{
		Name:    name,
		Type:    b.l.typeHandle(t, layoutUniform),
		Binding: binding,
	})
	b.builtinArg = b.addExpr(
		ir.ExprFunctionArgument{Index: uint32(len(b.fun.Arguments) - 1)},
		b.l.resolve(t),
	)
	b.hasBuiltin = true
}

// treesUseBuiltin reports whether any root's subgraph reads the given stage
// builtin. Transfer boundaries are not crossed; callers pass the roots that
// belong to the stage being built.
func treesUseBuiltin(s *Shader, which builtinKind, roots ...uint32) bool {
	seen := make(map[uint32]bool)
	var stack []uint32
	for _, r := range roots {
		if !seen[r] {
			seen[r] = true
			stack = append(stack, r)
		}
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if k, ok := s.node(n).kind.(nodeBuiltin); ok && k.which == which {
			return true
		}
		operands(s.node(n).kind, func(op uint32) {
			if !seen[op] {
				seen[op] = true
				stack = append(stack, op)
			}
		})
	}
	return false
}

// --- function body machinery ----------------------------------------------

func (b *fnBuilder) addExpr(kind ir.ExpressionKind, res ir.TypeResolution) ir.ExpressionHandle {
	h := ir.ExpressionHandle(len(b.fun.Expressions))
	b.fun.Expressions = append(b.fun.Expressions, ir.Expression{Kind: kind})
	b.fun.ExpressionTypes = append(b.fun.ExpressionTypes, res)
	return h
}

// addLocal declares a function local and returns its pointer expression.
func (b *fnBuilder) addLocal(name string, t ValueType) ir.ExpressionHandle {
	idx := uint32(len(b.fun.LocalVars))
	b.fun.LocalVars = append(b.fun.LocalVars, ir.LocalVariable{
		Name: name,
		Type: b.l.typeHandle(t, layoutUniform),
	})
	th := b.l.typeHandle(t, layoutUniform)
	ptr := b.addExpr(ir.ExprLocalVariable{Variable: idx}, b.l.resolveHandle(b.l.pointerHandle(th, ir.SpaceFunction)))
	b.localPtrs = append(b.localPtrs, ptr)
	return ptr
}

// emitPending covers every expression created since the watermark with a
// StmtEmit in block, extending a trailing emit rather than stacking ranges.
func (b *fnBuilder) emitPending(block *ir.Block) {
	end := ir.ExpressionHandle(len(b.fun.Expressions))
	if b.watermark == end {
		return
	}
	if n := len(*block); n > 0 {
		if e, ok := (*block)[n-1].Kind.(ir.StmtEmit); ok && e.Range.End == b.watermark {
			e.Range.End = end
			(*block)[n-1] = ir.Statement{Kind: e}
			b.watermark = end
			return
		}
	}
	*block = append(*block, ir.Statement{Kind: ir.StmtEmit{Range: ir.Range{Start: b.watermark, End: end}}})
	b.watermark = end
}

func (b *fnBuilder) push(block *ir.Block, kind ir.StatementKind) {
	b.emitPending(block)
	*block = append(*block, ir.Statement{Kind: kind})
}

// lowerValue lowers idx and collapses any remaining pointer with a Load.
func (b *fnBuilder) lowerValue(block *ir.Block, idx uint32) ir.ExpressionHandle {
	v := b.lowerNode(block, idx)
	if !v.ptr {
		return v.h
	}
	t := b.l.s.node(idx).typ
	return b.addExpr(ir.ExprLoad{Pointer: v.h}, b.l.resolve(t))
}

// hoistShared pre-lowers, into the current block, every node under root that
// is referenced more than once and does not depend on one of the blocked
// placeholders. Run before entering a nested block so shared work lands where
// both the nested block and later siblings can see it.
func (b *fnBuilder) hoistShared(block *ir.Block, root uint32, blocked map[uint32]bool) {
	dep := make(map[uint32]bool)
	var depends func(n uint32) bool
	depends = func(n uint32) bool {
		if v, ok := dep[n]; ok {
			return v
		}
		if blocked[n] {
			dep[n] = true
			return true
		}
		dep[n] = false
		found := false
		kind := b.l.s.node(n).kind
		if _, ok := kind.(nodeTransfer); !ok {
			operands(kind, func(op uint32) {
				if depends(op) {
					found = true
				}
			})
		}
		dep[n] = found
		return found
	}

	seen := make(map[uint32]bool)
	var visit func(n uint32)
	visit = func(n uint32) {
		if seen[n] {
			return
		}
		seen[n] = true
		if _, done := b.memo[n]; done {
			return
		}
		kind := b.l.s.node(n).kind
		if _, ok := kind.(nodeDiscard); ok {
			// A discard is a control edge, not a value; lowerArm places it.
			return
		}
		if _, ok := kind.(nodeTransfer); !ok {
			operands(kind, func(op uint32) { visit(op) })
		}
		if b.refs[n] > 1 && !depends(n) {
			b.lowerNode(block, n)
		}
	}
	visit(root)
}

// --- node lowering ---------------------------------------------------------

func (b *fnBuilder) lowerNode(block *ir.Block, idx uint32) loweredVal {
	if v, ok := b.memo[idx]; ok {
		return v
	}
	n := b.l.s.node(idx)
	var v loweredVal
	switch k := n.kind.(type) {
	case nodeLit:
		v = loweredVal{h: b.addExpr(ir.Literal{Value: irLiteral(k.lit)}, b.l.resolve(n.typ))}
	case nodeZero:
		v = loweredVal{h: b.addExpr(ir.ExprZeroValue{Type: b.l.typeHandle(n.typ, layoutUniform)}, b.l.resolve(n.typ))}
	case nodeBuiltin:
		if !b.hasBuiltin {
			panic(internalf("lower: builtin read without a builtin argument"))
		}
		v = loweredVal{h: b.builtinArg}
	case nodeReadInput:
		v = b.lowerReadInput(k)
	case nodeReadGlobal:
		v = b.lowerReadGlobal(k)
	case nodeConstruct:
		parts := make([]ir.ExpressionHandle, len(k.parts))
		for i, p := range k.parts {
			parts[i] = b.lowerValue(block, p)
		}
		v = loweredVal{h: b.addExpr(ir.ExprCompose{
			Type:       b.l.typeHandle(n.typ, layoutUniform),
			Components: parts,
		}, b.l.resolve(n.typ))}
	case nodeSplat:
		val := b.lowerValue(block, k.value)
		size := ir.VectorSize(n.typ.(Vector).Size)
		v = loweredVal{h: b.addExpr(ir.ExprSplat{Size: size, Value: val}, b.l.resolve(n.typ))}
	case nodeComponent:
		base := b.lowerValue(block, k.base)
		v = loweredVal{h: b.addExpr(ir.ExprAccessIndex{Base: base, Index: uint32(k.index)}, b.l.resolve(n.typ))}
	case nodeIndex:
		v = b.lowerIndex(block, k, n.typ)
	case nodeTransfer:
		v = b.lowerTransfer(idx, k)
	case nodeBinary:
		lhs := b.lowerValue(block, k.lhs)
		rhs := b.lowerValue(block, k.rhs)
		v = loweredVal{h: b.addExpr(ir.ExprBinary{Op: irBinaryOp(k.op), Left: lhs, Right: rhs}, b.l.resolve(n.typ))}
	case nodeUnary:
		val := b.lowerValue(block, k.operand)
		op := ir.UnaryNegate
		if k.op == opNot {
			op = ir.UnaryLogicalNot
		}
		v = loweredVal{h: b.addExpr(ir.ExprUnary{Op: op, Expr: val}, b.l.resolve(n.typ))}
	case nodeCall:
		v = b.lowerCall(block, k, n.typ)
	case nodeSample:
		img := b.lowerValue(block, k.tex)
		sam := b.lowerValue(block, k.sam)
		coord := b.lowerValue(block, k.coord)
		v = loweredVal{h: b.addExpr(ir.ExprImageSample{
			Image:      img,
			Sampler:    sam,
			Coordinate: coord,
			Level:      ir.SampleLevelAuto{},
		}, b.l.resolve(n.typ))}
	case nodeConvert:
		val := b.lowerValue(block, k.value)
		width := uint8(4)
		if k.kind == Bool {
			width = 1
		}
		v = loweredVal{h: b.addExpr(ir.ExprAs{
			Expr:    val,
			Kind:    irScalar(k.kind).Kind,
			Convert: &width,
		}, b.l.resolve(n.typ))}
	case nodeBranch:
		v = b.lowerBranch(block, k, n.typ)
	case nodeLoop:
		v = b.lowerLoop(block, k, n.typ)
	case nodeLoopVar:
		panic(fmt.Errorf("shade: loop variable used outside its fold body: %w", ErrStageScope))
	case nodeDiscard:
		panic(internalf("lower: discard outside a branch arm or root"))
	default:
		panic(internalf("lower: unhandled node kind %T", n.kind))
	}
	b.memo[idx] = v
	return v
}

func irLiteral(lit literal) ir.LiteralValue {
	switch lit.kind {
	case F32:
		return ir.LiteralF32(math.Float32frombits(lit.bits))
	case U32:
		return ir.LiteralU32(lit.bits)
	case I32:
		return ir.LiteralI32(int32(lit.bits))
	case Bool:
		return ir.LiteralBool(lit.bits != 0)
	}
	panic(internalf("lower: unknown literal kind %d", lit.kind))
}

func irBinaryOp(op binaryOp) ir.BinaryOperator {
	switch op {
	case opAdd:
		return ir.BinaryAdd
	case opSub:
		return ir.BinarySubtract
	case opMul:
		return ir.BinaryMultiply
	case opDiv:
		return ir.BinaryDivide
	case opEq:
		return ir.BinaryEqual
	case opNe:
		return ir.BinaryNotEqual
	case opLt:
		return ir.BinaryLess
	case opLe:
		return ir.BinaryLessEqual
	case opGt:
		return ir.BinaryGreater
	case opGe:
		return ir.BinaryGreaterEqual
	case opAnd:
		return ir.BinaryLogicalAnd
	case opOr:
		return ir.BinaryLogicalOr
	}
	panic(internalf("lower: unknown binary op %d", op))
}

func irMathFun(fn mathFun) ir.MathFunction {
	switch fn {
	case fnAbs:
		return ir.MathAbs
	case fnMin:
		return ir.MathMin
	case fnMax:
		return ir.MathMax
	case fnCos:
		return ir.MathCos
	case fnCosh:
		return ir.MathCosh
	case fnSin:
		return ir.MathSin
	case fnSinh:
		return ir.MathSinh
	case fnTan:
		return ir.MathTan
	case fnTanh:
		return ir.MathTanh
	case fnFloor:
		return ir.MathFloor
	case fnFract:
		return ir.MathFract
	case fnSqrt:
		return ir.MathSqrt
	case fnPow:
		return ir.MathPow
	case fnDot:
		return ir.MathDot
	case fnLength:
		return ir.MathLength
	case fnNormalize:
		return ir.MathNormalize
	}
	panic(internalf("lower: unknown math function %d", fn))
}

// lowerReadInput reads a declared input field off its function argument.
// Scalar and vector fields are a single member access; composite fields were
// flattened into leaf members at registration and are rebuilt here with a
// Compose mirroring that flattening.
func (b *fnBuilder) lowerReadInput(k nodeReadInput) loweredVal {
	decl := b.l.s.inputs[k.input]
	arg, ok := b.args[k.input]
	if !ok {
		panic(internalf("lower: input read outside the vertex stage"))
	}
	f := decl.fields[k.field]
	leaf := f.memberStart
	h := b.buildInputValue(f.typ, arg, &leaf)
	if leaf != f.memberStart+f.memberCount {
		panic(internalf("lower: input leaf walk out of step for %q", f.name))
	}
	return loweredVal{h: h}
}

func (b *fnBuilder) buildInputValue(t ValueType, arg ir.ExpressionHandle, leaf *int) ir.ExpressionHandle {
	switch tt := t.(type) {
	case Scalar, Vector:
		h := b.addExpr(ir.ExprAccessIndex{Base: arg, Index: uint32(*leaf)}, b.l.resolve(t))
		*leaf++
		return h
	case Matrix:
		cols := make([]ir.ExpressionHandle, tt.Cols)
		for c := range cols {
			cols[c] = b.buildInputValue(Vector{tt.Rows, F32}, arg, leaf)
		}
		return b.addExpr(ir.ExprCompose{Type: b.l.typeHandle(t, layoutUniform), Components: cols}, b.l.resolve(t))
	case Array:
		elems := make([]ir.ExpressionHandle, tt.Len)
		for i := range elems {
			elems[i] = b.buildInputValue(tt.Elem, arg, leaf)
		}
		return b.addExpr(ir.ExprCompose{Type: b.l.typeHandle(t, layoutUniform), Components: elems}, b.l.resolve(t))
	case Struct:
		parts := make([]ir.ExpressionHandle, len(tt.Fields))
		for i, f := range tt.Fields {
			parts[i] = b.buildInputValue(f.Type, arg, leaf)
		}
		return b.addExpr(ir.ExprCompose{Type: b.l.typeHandle(t, layoutUniform), Components: parts}, b.l.resolve(t))
	}
	panic(internalf("lower: unhandled input leaf type %s", t))
}

// lowerReadGlobal reads one resolved binding. Uniform members load through an
// AccessIndex on the group's merged struct; textures and samplers are the
// global itself; storage arrays and uniform array members stay pointers so an
// index can address the buffer directly.
func (b *fnBuilder) lowerReadGlobal(k nodeReadGlobal) loweredVal {
	g := b.l.s.groups[k.group]
	f := g.fields[k.field]
	switch f.kind {
	case fieldTexture, fieldSampler:
		gv := b.globalExpr(g.index, f.binding)
		return loweredVal{h: gv}
	case fieldStorage:
		return loweredVal{h: b.globalExpr(g.index, f.binding), ptr: true}
	case fieldUniform:
		gv := b.globalExpr(g.index, g.uniformBinding)
		fieldPtrType := b.l.pointerHandle(b.l.typeHandle(f.typ, layoutUniform), ir.SpaceUniform)
		ptr := b.addExpr(ir.ExprAccessIndex{Base: gv, Index: uint32(f.member)}, b.l.resolveHandle(fieldPtrType))
		if _, isArr := f.typ.(Array); isArr {
			return loweredVal{h: ptr, ptr: true}
		}
		return loweredVal{h: b.addExpr(ir.ExprLoad{Pointer: ptr}, b.l.resolve(f.typ))}
	case fieldArrayLen:
		gv := b.globalExpr(g.index, f.binding)
		u32Ptr := b.l.pointerHandle(b.l.typeHandle(Scalar{U32}, layoutUniform), ir.SpaceUniform)
		ptr := b.addExpr(ir.ExprAccessIndex{Base: gv, Index: 0}, b.l.resolveHandle(u32Ptr))
		return loweredVal{h: b.addExpr(ir.ExprLoad{Pointer: ptr}, b.l.resolve(Scalar{U32}))}
	}
	panic(internalf("lower: unhandled group field kind %d", f.kind))
}

// globalExpr returns the (memoized per function) expression for a module
// global. Handle-space globals stand for their value; buffer globals stand
// for a pointer into the buffer.
func (b *fnBuilder) globalExpr(group int, binding uint32) ir.ExpressionHandle {
	key := bindingKey{group, binding}
	// Memoized under keys counted down from the top of the index space,
	// where arena node indices never land.
	gh, ok := b.l.globals[key]
	if !ok {
		panic(internalf("lower: no global registered for group %d binding %d", group, binding))
	}
	memoKey := ^uint32(0) - uint32(gh)
	if v, ok := b.memo[memoKey]; ok {
		return v.h
	}
	g := b.l.mod.GlobalVariables[gh]
	var res ir.TypeResolution
	if g.Space == ir.SpaceHandle {
		res = b.l.resolveHandle(g.Type)
	} else {
		res = b.l.resolveHandle(b.l.pointerHandle(g.Type, g.Space))
	}
	h := b.addExpr(ir.ExprGlobalVariable{Variable: gh}, res)
	b.memo[memoKey] = loweredVal{h: h}
	return h
}

// lowerIndex addresses one element of an array. A pointer base keeps the
// access in the buffer and loads the element; a value base extracts directly.
func (b *fnBuilder) lowerIndex(block *ir.Block, k nodeIndex, elemT ValueType) loweredVal {
	base := b.lowerNode(block, k.base)
	idx := b.lowerValue(block, k.index)
	return b.indexInto(base, idx, k.base, elemT)
}

func (b *fnBuilder) indexInto(base loweredVal, idx ir.ExpressionHandle, baseNode uint32, elemT ValueType) loweredVal {
	if !base.ptr {
		h := b.addExpr(ir.ExprAccess{Base: base.h, Index: idx}, b.l.resolve(elemT))
		return loweredVal{h: h}
	}
	space := ir.SpaceStorage
	if bk, ok := b.l.s.node(baseNode).kind.(nodeReadGlobal); ok {
		if b.l.s.groups[bk.group].fields[bk.field].kind == fieldUniform {
			space = ir.SpaceUniform
		}
	}
	elemPtr := b.l.pointerHandle(b.l.typeHandle(elemT, layoutUniform), space)
	ptr := b.addExpr(ir.ExprAccess{Base: base.h, Index: idx}, b.l.resolveHandle(elemPtr))
	if _, isArr := elemT.(Array); isArr {
		return loweredVal{h: ptr, ptr: true}
	}
	return loweredVal{h: b.addExpr(ir.ExprLoad{Pointer: ptr}, b.l.resolve(elemT))}
}

func (b *fnBuilder) lowerTransfer(idx uint32, k nodeTransfer) loweredVal {
	slot, ok := b.l.transferSlot[k.value]
	if !ok {
		slot = len(b.l.transfers)
		b.l.transfers = append(b.l.transfers, k.value)
		b.l.transferSlot[k.value] = slot
	}
	t := b.l.s.node(idx).typ
	h := b.addExpr(ir.ExprAccessIndex{Base: b.ioArg, Index: uint32(1 + slot)}, b.l.resolve(t))
	return loweredVal{h: h}
}

func (b *fnBuilder) lowerCall(block *ir.Block, k nodeCall, t ValueType) loweredVal {
	args := make([]ir.ExpressionHandle, len(k.args))
	for i, a := range k.args {
		args[i] = b.lowerValue(block, a)
	}
	expr := ir.ExprMath{Fun: irMathFun(k.fn), Arg: args[0]}
	if len(args) > 1 {
		expr.Arg1 = &args[1]
	}
	if len(args) > 2 {
		expr.Arg2 = &args[2]
	}
	return loweredVal{h: b.addExpr(expr, b.l.resolve(t))}
}

// lowerBranch keeps both arms as runtime code behind a single if statement.
// The selected value travels through a function local because expressions
// created inside an arm are not visible after it.
func (b *fnBuilder) lowerBranch(block *ir.Block, k nodeBranch, t ValueType) loweredVal {
	cond := b.lowerValue(block, k.cond)
	b.hoistShared(block, k.then, nil)
	b.hoistShared(block, k.els, nil)

	sel := b.addLocal("sel", t)
	b.emitPending(block)
	accept := ir.Block{}
	b.lowerArm(&accept, k.then, sel)
	reject := ir.Block{}
	b.lowerArm(&reject, k.els, sel)
	b.push(block, ir.StmtIf{Condition: cond, Accept: accept, Reject: reject})

	h := b.addExpr(ir.ExprLoad{Pointer: sel}, b.l.resolve(t))
	return loweredVal{h: h}
}

func (b *fnBuilder) lowerArm(arm *ir.Block, idx uint32, sel ir.ExpressionHandle) {
	if _, isDiscard := b.l.s.node(idx).kind.(nodeDiscard); isDiscard {
		b.push(arm, ir.StmtKill{})
		return
	}
	v := b.lowerValue(arm, idx)
	b.push(arm, ir.StmtStore{Pointer: sel, Value: v})
}

// lowerLoop shapes a fold as a counted loop over the array: a guard break on
// the running index, the rebound body, an accumulator store, and an index
// increment in the continuing block. The trip count is whatever the length
// operand evaluates to at runtime; a length that happens to be a constant
// still runs through the same loop.
func (b *fnBuilder) lowerLoop(block *ir.Block, k nodeLoop, t ValueType) loweredVal {
	arr := b.lowerNode(block, k.array)
	length := b.lowerValue(block, k.length)
	init := b.lowerValue(block, k.init)

	blocked := map[uint32]bool{k.acc: true, k.elem: true, k.index: true}
	b.hoistShared(block, k.body, blocked)

	acc := b.addLocal("acc", t)
	i := b.addLocal("i", Scalar{U32})
	b.push(block, ir.StmtStore{Pointer: acc, Value: init})
	zero := b.addExpr(ir.Literal{Value: ir.LiteralU32(0)}, b.l.resolve(Scalar{U32}))
	b.push(block, ir.StmtStore{Pointer: i, Value: zero})

	elemT := b.l.s.node(k.elem).typ

	body := ir.Block{}
	iVal := b.addExpr(ir.ExprLoad{Pointer: i}, b.l.resolve(Scalar{U32}))
	cond := b.addExpr(ir.ExprBinary{Op: ir.BinaryLess, Left: iVal, Right: length}, b.l.resolve(Scalar{Bool}))
	b.push(&body, ir.StmtIf{
		Condition: cond,
		Accept:    ir.Block{},
		Reject:    ir.Block{{Kind: ir.StmtBreak{}}},
	})

	// Rebind the fold placeholders for the body walk: the accumulator and
	// element load fresh values each iteration.
	accVal := b.addExpr(ir.ExprLoad{Pointer: acc}, b.l.resolve(t))
	b.memo[k.acc] = loweredVal{h: accVal}
	elemVal := b.indexInto(arr, iVal, k.array, elemT)
	if elemVal.ptr {
		elemVal = loweredVal{h: b.addExpr(ir.ExprLoad{Pointer: elemVal.h}, b.l.resolve(elemT))}
	}
	b.memo[k.elem] = elemVal
	b.memo[k.index] = loweredVal{h: iVal}

	next := b.lowerValue(&body, k.body)
	b.push(&body, ir.StmtStore{Pointer: acc, Value: next})

	continuing := ir.Block{}
	iNext := b.addExpr(ir.ExprLoad{Pointer: i}, b.l.resolve(Scalar{U32}))
	one := b.addExpr(ir.Literal{Value: ir.LiteralU32(1)}, b.l.resolve(Scalar{U32}))
	inc := b.addExpr(ir.ExprBinary{Op: ir.BinaryAdd, Left: iNext, Right: one}, b.l.resolve(Scalar{U32}))
	b.push(&continuing, ir.StmtStore{Pointer: i, Value: inc})

	b.push(block, ir.StmtLoop{Body: body, Continuing: continuing})
	h := b.addExpr(ir.ExprLoad{Pointer: acc}, b.l.resolve(t))
	return loweredVal{h: h}
}
