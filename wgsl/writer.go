package wgsl

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gogpu/naga/ir"
)

// nameKey identifies an IR entity for name lookup.
type nameKey struct {
	kind    nameKeyKind
	handle1 uint32
	handle2 uint32
}

type nameKeyKind uint8

const (
	nameKeyType nameKeyKind = iota
	nameKeyStructMember
	nameKeyGlobalVariable
	nameKeyFunctionArgument
)

// Writer generates WGSL source code from IR.
type Writer struct {
	module  *ir.Module
	options *Options

	// Output buffer
	out strings.Builder

	// Current indentation level
	indent int

	// Name management
	names map[nameKey]string
	namer *namer

	// Declared struct names
	typeNames map[ir.TypeHandle]string

	// Function context (set during function writing)
	currentFunction   *ir.Function
	currentEntryPoint uint32
	localNames        map[uint32]string
	namedExpressions  map[ir.ExpressionHandle]string

	// Expressions materialized as let bindings
	needBakeExpression map[ir.ExpressionHandle]struct{}

	// Blank-line separation between top-level items
	wroteItem bool
}

// namer generates unique identifiers.
type namer struct {
	usedNames map[string]struct{}
	counter   uint32
}

func newNamer() *namer {
	return &namer{
		usedNames: make(map[string]struct{}),
	}
}

// call generates a unique name based on the given base.
func (n *namer) call(base string) string {
	escaped := escapeKeyword(base)

	if _, used := n.usedNames[escaped]; !used {
		n.usedNames[escaped] = struct{}{}
		return escaped
	}

	for {
		n.counter++
		candidate := fmt.Sprintf("%s_%d", escaped, n.counter)
		if _, used := n.usedNames[candidate]; !used {
			n.usedNames[candidate] = struct{}{}
			return candidate
		}
	}
}

// newWriter creates a new WGSL writer.
func newWriter(module *ir.Module, options *Options) *Writer {
	return &Writer{
		module:    module,
		options:   options,
		names:     make(map[nameKey]string),
		namer:     newNamer(),
		typeNames: make(map[ir.TypeHandle]string),
	}
}

// String returns the generated WGSL source code.
func (w *Writer) String() string {
	return w.out.String()
}

// writeModule generates WGSL code for the entire module.
func (w *Writer) writeModule() error {
	w.registerNames()

	if err := w.writeStructs(); err != nil {
		return err
	}
	if err := w.writeGlobals(); err != nil {
		return err
	}
	return w.writeEntryPoints()
}

// registerNames assigns unique names to module-scope IR entities.
// Locals register later, while their function is written, so the
// shared suffix counter advances in declaration order.
func (w *Writer) registerNames() {
	// Named struct types become declarations. Everything else is
	// spelled structurally at the point of use.
	for handle, typ := range w.module.Types {
		st, ok := typ.Inner.(ir.StructType)
		if !ok || typ.Name == "" {
			continue
		}
		name := w.namer.call(typ.Name)
		w.names[nameKey{kind: nameKeyType, handle1: uint32(handle)}] = name //nolint:gosec // G115: handle is valid slice index
		w.typeNames[ir.TypeHandle(handle)] = name                           //nolint:gosec // G115: handle is valid slice index

		for memberIdx, member := range st.Members {
			memberName := member.Name
			if memberName == "" {
				memberName = fmt.Sprintf("member_%d", memberIdx)
			}
			w.names[nameKey{kind: nameKeyStructMember, handle1: uint32(handle), handle2: uint32(memberIdx)}] = escapeKeyword(memberName) //nolint:gosec // G115: handle is valid slice index
		}
	}

	for handle, global := range w.module.GlobalVariables {
		baseName := global.Name
		if baseName == "" {
			baseName = fmt.Sprintf("global_%d", handle)
		}
		name := w.namer.call(baseName)
		w.names[nameKey{kind: nameKeyGlobalVariable, handle1: uint32(handle)}] = name //nolint:gosec // G115: handle is valid slice index
	}

	// Argument names only need to be unique within their function;
	// WGSL lets them shadow module-scope declarations.
	for epIdx := range w.module.EntryPoints {
		fn := &w.module.EntryPoints[epIdx].Function
		used := make(map[string]struct{})
		for argIdx, arg := range fn.Arguments {
			argName := arg.Name
			if argName == "" {
				argName = fmt.Sprintf("arg_%d", argIdx)
			}
			name := escapeKeyword(argName)
			for i := 1; ; i++ {
				if _, taken := used[name]; !taken {
					break
				}
				name = fmt.Sprintf("%s_%d", escapeKeyword(argName), i)
			}
			used[name] = struct{}{}
			w.names[nameKey{kind: nameKeyFunctionArgument, handle1: uint32(epIdx), handle2: uint32(argIdx)}] = name //nolint:gosec // G115: argIdx is valid slice index
		}
	}
}

// writeStructs writes struct declarations: entry point IO structs in
// interface order first, then the remaining named structs in registry
// order. Registry order is already inner-before-outer for nesting.
func (w *Writer) writeStructs() error {
	seen := make(map[ir.TypeHandle]struct{})
	var order []ir.TypeHandle

	add := func(handle ir.TypeHandle) {
		if _, declared := w.typeNames[handle]; !declared {
			return
		}
		if _, dup := seen[handle]; dup {
			return
		}
		seen[handle] = struct{}{}
		order = append(order, handle)
	}

	for epIdx := range w.module.EntryPoints {
		fn := &w.module.EntryPoints[epIdx].Function
		for _, arg := range fn.Arguments {
			add(arg.Type)
		}
		if fn.Result != nil {
			add(fn.Result.Type)
		}
	}
	for handle := range w.module.Types {
		add(ir.TypeHandle(handle)) //nolint:gosec // G115: handle is valid slice index
	}

	for _, handle := range order {
		if err := w.writeStruct(handle); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeStruct(handle ir.TypeHandle) error {
	st, ok := w.module.Types[handle].Inner.(ir.StructType)
	if !ok {
		return fmt.Errorf("struct declaration for non-struct type %d", handle)
	}

	w.startItem()
	w.writeLine("struct %s {", w.typeNames[handle])
	w.pushIndent()
	for memberIdx, member := range st.Members {
		attr, err := bindingAttribute(member.Binding)
		if err != nil {
			return err
		}
		memberName := w.names[nameKey{kind: nameKeyStructMember, handle1: uint32(handle), handle2: uint32(memberIdx)}] //nolint:gosec // G115: memberIdx is valid slice index
		w.writeLine("%s%s: %s,", attr, memberName, w.typeName(member.Type))
	}
	w.popIndent()
	w.writeLine("}")
	return nil
}

// bindingAttribute renders an IO binding attribute including the
// trailing space, or "" when the binding is absent.
func bindingAttribute(binding *ir.Binding) (string, error) {
	if binding == nil {
		return "", nil
	}
	switch b := (*binding).(type) {
	case ir.LocationBinding:
		return fmt.Sprintf("@location(%d) ", b.Location), nil
	case ir.BuiltinBinding:
		name, err := builtinName(b.Builtin)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("@builtin(%s) ", name), nil
	default:
		return "", fmt.Errorf("unsupported binding %T", b)
	}
}

func builtinName(builtin ir.BuiltinValue) (string, error) {
	switch builtin {
	case ir.BuiltinPosition:
		return "position", nil
	case ir.BuiltinVertexIndex:
		return "vertex_index", nil
	case ir.BuiltinInstanceIndex:
		return "instance_index", nil
	case ir.BuiltinFrontFacing:
		return "front_facing", nil
	case ir.BuiltinFragDepth:
		return "frag_depth", nil
	case ir.BuiltinSampleIndex:
		return "sample_index", nil
	case ir.BuiltinSampleMask:
		return "sample_mask", nil
	case ir.BuiltinLocalInvocationID:
		return "local_invocation_id", nil
	case ir.BuiltinLocalInvocationIndex:
		return "local_invocation_index", nil
	case ir.BuiltinGlobalInvocationID:
		return "global_invocation_id", nil
	case ir.BuiltinWorkGroupID:
		return "workgroup_id", nil
	case ir.BuiltinNumWorkGroups:
		return "num_workgroups", nil
	}
	return "", fmt.Errorf("unsupported builtin %d", builtin)
}

// writeGlobals writes module-scope variables sorted by binding so the
// resource interface reads in @group/@binding order.
func (w *Writer) writeGlobals() error {
	if len(w.module.GlobalVariables) == 0 {
		return nil
	}

	handles := make([]ir.GlobalVariableHandle, len(w.module.GlobalVariables))
	for i := range handles {
		handles[i] = ir.GlobalVariableHandle(i) //nolint:gosec // G115: i is valid slice index
	}
	sort.Slice(handles, func(i, j int) bool {
		a := w.module.GlobalVariables[handles[i]].Binding
		b := w.module.GlobalVariables[handles[j]].Binding
		switch {
		case a == nil && b == nil:
			return handles[i] < handles[j]
		case a == nil:
			return true
		case b == nil:
			return false
		case a.Group != b.Group:
			return a.Group < b.Group
		case a.Binding != b.Binding:
			return a.Binding < b.Binding
		}
		return handles[i] < handles[j]
	})

	w.startItem()
	for _, handle := range handles {
		global := &w.module.GlobalVariables[handle]
		name := w.names[nameKey{kind: nameKeyGlobalVariable, handle1: uint32(handle)}] //nolint:gosec // G115: handle is valid slice index
		decl, err := w.varDeclaration(handle, global)
		if err != nil {
			return err
		}
		if global.Binding != nil {
			w.writeLine("@group(%d) @binding(%d) %s %s: %s;", global.Binding.Group, global.Binding.Binding, decl, name, w.typeName(global.Type))
		} else {
			w.writeLine("%s %s: %s;", decl, name, w.typeName(global.Type))
		}
	}
	return nil
}

// varDeclaration renders the var keyword with its address space. The
// storage access mode comes from Options since IR globals carry none.
func (w *Writer) varDeclaration(handle ir.GlobalVariableHandle, global *ir.GlobalVariable) (string, error) {
	switch global.Space {
	case ir.SpaceUniform:
		return "var<uniform>", nil
	case ir.SpaceStorage:
		if w.options.ReadWrite[handle] {
			return "var<storage, read_write>", nil
		}
		return "var<storage, read>", nil
	case ir.SpaceHandle:
		return "var", nil
	case ir.SpacePrivate:
		return "var<private>", nil
	case ir.SpaceWorkGroup:
		return "var<workgroup>", nil
	}
	return "", fmt.Errorf("unsupported address space %d", global.Space)
}

func (w *Writer) writeEntryPoints() error {
	for epIdx := range w.module.EntryPoints {
		if err := w.writeEntryPoint(epIdx); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeEntryPoint(epIdx int) error {
	ep := &w.module.EntryPoints[epIdx]
	fn := &ep.Function
	w.currentFunction = fn
	w.currentEntryPoint = uint32(epIdx) //nolint:gosec // G115: epIdx is a valid slice index
	w.localNames = make(map[uint32]string)
	w.namedExpressions = make(map[ir.ExpressionHandle]string)
	w.markBakes(fn)

	w.startItem()
	switch ep.Stage {
	case ir.StageVertex:
		w.writeLine("@vertex")
	case ir.StageFragment:
		w.writeLine("@fragment")
	case ir.StageCompute:
		w.writeLine("@compute @workgroup_size(%d, %d, %d)", ep.Workgroup[0], ep.Workgroup[1], ep.Workgroup[2])
	default:
		return fmt.Errorf("unsupported shader stage %d", ep.Stage)
	}

	args := make([]string, len(fn.Arguments))
	for argIdx, arg := range fn.Arguments {
		attr, err := bindingAttribute(arg.Binding)
		if err != nil {
			return err
		}
		name := w.names[nameKey{kind: nameKeyFunctionArgument, handle1: uint32(epIdx), handle2: uint32(argIdx)}] //nolint:gosec // G115: argIdx is valid slice index
		args[argIdx] = fmt.Sprintf("%s%s: %s", attr, name, w.typeName(arg.Type))
	}

	signature := fmt.Sprintf("fn %s(%s)", escapeKeyword(ep.Name), strings.Join(args, ", "))
	if fn.Result != nil {
		attr, err := bindingAttribute(fn.Result.Binding)
		if err != nil {
			return err
		}
		signature = fmt.Sprintf("%s -> %s%s", signature, attr, w.typeName(fn.Result.Type))
	}
	w.writeLine("%s {", signature)

	w.pushIndent()
	if err := w.writeLocalVars(fn); err != nil {
		return err
	}
	if err := w.writeBlock(fn.Body); err != nil {
		return err
	}
	w.popIndent()
	w.writeLine("}")
	return nil
}

// writeLocalVars declares function-scope variables at the top of the
// body. Names go through the module namer so locals never shadow a
// global the body still reads.
func (w *Writer) writeLocalVars(fn *ir.Function) error {
	for localIdx := range fn.LocalVars {
		local := &fn.LocalVars[localIdx]
		baseName := local.Name
		if baseName == "" {
			baseName = fmt.Sprintf("local_%d", localIdx)
		}
		name := w.namer.call(baseName)
		w.localNames[uint32(localIdx)] = name //nolint:gosec // G115: localIdx is valid slice index
		if local.Init != nil {
			value, err := w.writeExpression(*local.Init)
			if err != nil {
				return err
			}
			w.writeLine("var %s: %s = %s;", name, w.typeName(local.Type), value)
		} else {
			w.writeLine("var %s: %s;", name, w.typeName(local.Type))
		}
	}
	return nil
}

// markBakes flags expressions referenced more than once so they get a
// let binding when their emit range is written. Single-use expressions
// stay inline at their use site, which keeps the output close to what
// a person would write.
func (w *Writer) markBakes(fn *ir.Function) {
	w.needBakeExpression = make(map[ir.ExpressionHandle]struct{})

	uses := make([]uint32, len(fn.Expressions))
	count := func(h ir.ExpressionHandle) {
		uses[h]++
	}
	for i := range fn.Expressions {
		eachOperand(fn.Expressions[i], count)
	}
	countBlockUses(fn.Body, count)

	for h, n := range uses {
		handle := ir.ExpressionHandle(h) //nolint:gosec // G115: h is valid slice index
		if n > 1 && w.shouldBake(fn, handle) {
			w.needBakeExpression[handle] = struct{}{}
		}
	}
}

// shouldBake reports whether a multiply-used expression is worth
// naming. Leaf references stay inline; pointer-typed chains must stay
// inline because a let cannot hold them.
func (w *Writer) shouldBake(fn *ir.Function, handle ir.ExpressionHandle) bool {
	switch fn.Expressions[handle].Kind.(type) {
	case ir.ExprCompose, ir.ExprSplat, ir.ExprLoad, ir.ExprUnary, ir.ExprBinary,
		ir.ExprMath, ir.ExprAs, ir.ExprImageSample:
		return true
	case ir.ExprAccess, ir.ExprAccessIndex:
		return !w.pointerTyped(fn, handle)
	}
	return false
}

// pointerTyped reports whether the expression resolves to a pointer.
func (w *Writer) pointerTyped(fn *ir.Function, handle ir.ExpressionHandle) bool {
	resolution := &fn.ExpressionTypes[handle]
	if resolution.Handle != nil {
		_, ok := w.module.Types[*resolution.Handle].Inner.(ir.PointerType)
		return ok
	}
	_, ok := resolution.Value.(ir.PointerType)
	return ok
}

// typeName spells a type reference. Declared structs go by name,
// everything else structurally.
func (w *Writer) typeName(handle ir.TypeHandle) string {
	if name, ok := w.typeNames[handle]; ok {
		return name
	}
	if int(handle) >= len(w.module.Types) {
		return fmt.Sprintf("type_%d", handle)
	}
	return w.innerTypeName(w.module.Types[handle].Inner)
}

func (w *Writer) innerTypeName(inner ir.TypeInner) string {
	switch t := inner.(type) {
	case ir.ScalarType:
		return scalarTypeName(t)
	case ir.VectorType:
		return fmt.Sprintf("vec%d<%s>", t.Size, scalarTypeName(t.Scalar))
	case ir.MatrixType:
		return fmt.Sprintf("mat%dx%d<%s>", t.Columns, t.Rows, scalarTypeName(t.Scalar))
	case ir.ArrayType:
		if t.Size.Constant != nil {
			return fmt.Sprintf("array<%s, %d>", w.typeName(t.Base), *t.Size.Constant)
		}
		return fmt.Sprintf("array<%s>", w.typeName(t.Base))
	case ir.PointerType:
		return fmt.Sprintf("ptr<%s, %s>", pointerSpaceName(t.Space), w.typeName(t.Base))
	case ir.ImageType:
		return imageTypeName(t)
	case ir.SamplerType:
		return "sampler"
	}
	return "type_unknown"
}

func scalarTypeName(s ir.ScalarType) string {
	switch s.Kind {
	case ir.ScalarFloat:
		if s.Width == 2 {
			return "f16"
		}
		return "f32"
	case ir.ScalarSint:
		return "i32"
	case ir.ScalarUint:
		return "u32"
	case ir.ScalarBool:
		return "bool"
	}
	return "f32"
}

func pointerSpaceName(space ir.AddressSpace) string {
	switch space {
	case ir.SpacePrivate:
		return "private"
	case ir.SpaceWorkGroup:
		return "workgroup"
	case ir.SpaceUniform:
		return "uniform"
	case ir.SpaceStorage:
		return "storage"
	}
	return "function"
}

func imageTypeName(t ir.ImageType) string {
	dim := "2d"
	switch t.Dim {
	case ir.Dim1D:
		dim = "1d"
	case ir.Dim2D:
		dim = "2d"
	case ir.Dim3D:
		dim = "3d"
	case ir.DimCube:
		dim = "cube"
	}
	suffix := ""
	if t.Arrayed {
		suffix = "_array"
	}
	if t.Class == ir.ImageClassDepth {
		return fmt.Sprintf("texture_depth_%s%s", dim, suffix)
	}
	return fmt.Sprintf("texture_%s%s<f32>", dim, suffix)
}

// resolvedTypeName spells the resolved type of an expression.
func (w *Writer) resolvedTypeName(handle ir.ExpressionHandle) string {
	resolution := &w.currentFunction.ExpressionTypes[handle]
	if resolution.Handle != nil {
		return w.typeName(*resolution.Handle)
	}
	return w.innerTypeName(resolution.Value)
}

// baseTypeOf returns the resolved type of an access base and, when the
// type lives in the registry, its handle. Pointers are looked through
// so member lookups see the pointee.
func (w *Writer) baseTypeOf(handle ir.ExpressionHandle) (ir.TypeInner, ir.TypeHandle, bool) {
	resolution := &w.currentFunction.ExpressionTypes[handle]
	var inner ir.TypeInner
	var typeHandle ir.TypeHandle
	hasHandle := false
	if resolution.Handle != nil {
		typeHandle = *resolution.Handle
		hasHandle = true
		inner = w.module.Types[typeHandle].Inner
	} else {
		inner = resolution.Value
	}
	if ptr, ok := inner.(ir.PointerType); ok {
		typeHandle = ptr.Base
		hasHandle = true
		inner = w.module.Types[ptr.Base].Inner
	}
	return inner, typeHandle, hasHandle
}

// formatFloat renders an f32 literal. Integral values keep a trailing
// ".0" so the token stays a float.
func formatFloat(v float32) string {
	s := fmt.Sprintf("%g", v)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// startItem separates top-level declarations with one blank line.
func (w *Writer) startItem() {
	if w.wroteItem {
		w.out.WriteByte('\n')
	}
	w.wroteItem = true
}

// writeLine writes an indented line of output.
func (w *Writer) writeLine(format string, args ...any) {
	w.writeIndent()
	fmt.Fprintf(&w.out, format, args...)
	w.out.WriteByte('\n')
}

func (w *Writer) writeIndent() {
	for i := 0; i < w.indent; i++ {
		w.out.WriteString("    ")
	}
}

func (w *Writer) pushIndent() {
	w.indent++
}

func (w *Writer) popIndent() {
	if w.indent > 0 {
		w.indent--
	}
}
