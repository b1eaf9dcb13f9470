package shade

import "reflect"

// Bind group limits, following the WebGPU baseline.
const (
	maxGroups        = 4
	maxGroupBindings = 16
)

// groupFieldKind classifies one entry of a group record.
type groupFieldKind uint8

const (
	fieldUniform groupFieldKind = iota
	fieldTexture
	fieldSampler
	fieldStorage
	fieldArrayLen
)

// groupDecl is one registered bind group record. Plain fields collapse
// into a single uniform struct at the group's first binding; textures,
// samplers and storage arrays bind standalone. A storage array brings
// a trailing length uniform with it.
type groupDecl struct {
	index          int
	name           string
	fields         []groupField
	uniformBinding uint32
	hasUniform     bool
	bindings       int
}

// groupField maps one record entry to its binding slot. Uniform
// members share the synthesized struct's binding and carry their
// member index instead.
type groupField struct {
	name       string
	typ        ValueType
	kind       groupFieldKind
	binding    uint32
	member     int
	rw         bool
	cap        uint32
	arrayField int
}

// Group exposes the fields of a registered bind group record as
// expressions.
type Group struct {
	s    *Shader
	decl *groupDecl
}

// Group registers the struct type of prototype as a bind group record
// at the next group index. Scalar, vector, matrix, fixed-array and
// struct fields merge into one uniform buffer; Texture and Sampler
// fields and slice-typed storage arrays bind standalone. A storage
// array must be the trailing field and accepts `shade:"rw"` for
// read-write access and `shade:"cap:N"` to declare its capacity in
// elements.
func (s *Shader) Group(prototype any) Group {
	bad := Group{s: s}
	rt := reflect.TypeOf(prototype)
	if rt != nil && rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	if rt == nil || rt.Kind() != reflect.Struct {
		s.poisonf(ErrTypeMismatch, "group record from %T", prototype)
		return bad
	}
	if rt.Name() == "" {
		s.poisonf(ErrTypeMismatch, "group record needs a named struct type")
		return bad
	}
	if len(s.groups) >= maxGroups {
		s.poisonf(ErrLayoutOverflow, "more than %d bind groups", maxGroups)
		return bad
	}

	decl := &groupDecl{index: len(s.groups), name: rt.Name()}
	var binding uint32
	var members int
	memberNames := make(map[string]bool)
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		what := rt.Name() + "." + f.Name
		if !f.IsExported() {
			s.poisonf(ErrTypeMismatch, "%s: unexported fields cannot reach the GPU", what)
			return bad
		}
		tag, err := parseShadeTag(f.Tag)
		if err != nil {
			s.poisonf(ErrTypeMismatch, "%s: %v", what, err)
			return bad
		}
		if tag.loc >= 0 {
			s.poisonf(ErrTypeMismatch, "%s: loc tags apply to input records", what)
			return bad
		}

		switch {
		case f.Type == texType:
			if tag.rw || tag.hasCap {
				s.poisonf(ErrTypeMismatch, "%s: tags do not apply to textures", what)
				return bad
			}
			decl.fields = append(decl.fields, groupField{
				name: f.Name, typ: Texture{Dim: Dim2D}, kind: fieldTexture, binding: binding,
			})
			binding++

		case f.Type == samType:
			if tag.rw || tag.hasCap {
				s.poisonf(ErrTypeMismatch, "%s: tags do not apply to samplers", what)
				return bad
			}
			decl.fields = append(decl.fields, groupField{
				name: f.Name, typ: Sampler{}, kind: fieldSampler, binding: binding,
			})
			binding++

		case f.Type.Kind() == reflect.Slice:
			if i != rt.NumField()-1 {
				s.poisonf(ErrTypeMismatch, "%s: a storage array must be the trailing field", what)
				return bad
			}
			elem, ok := hostPlainType(f.Type.Elem())
			if !ok {
				s.poisonf(ErrTypeMismatch, "%s: unsupported storage element type %s", what, f.Type.Elem())
				return bad
			}
			if !storageElemOK(elem) {
				s.poisonf(ErrTypeMismatch,
					"%s: storage elements must be scalars, vectors, matrices or flat structs filling vec4 granularity",
					what)
				return bad
			}
			arrayIdx := len(decl.fields)
			decl.fields = append(decl.fields, groupField{
				name: f.Name, typ: Array{Elem: elem}, kind: fieldStorage,
				binding: binding, rw: tag.rw, cap: tag.cap,
			})
			binding++
			// The runtime element count travels in a companion
			// uniform so loops can bound themselves by it.
			decl.fields = append(decl.fields, groupField{
				name: f.Name, typ: Scalar{Kind: U32}, kind: fieldArrayLen,
				binding: binding, arrayField: arrayIdx,
			})
			binding++

		default:
			if tag.rw || tag.hasCap {
				s.poisonf(ErrTypeMismatch, "%s: rw and cap tags apply to storage arrays", what)
				return bad
			}
			ft, ok := hostPlainType(f.Type)
			if !ok {
				s.poisonf(ErrTypeMismatch, "%s: unsupported group field type %s", what, f.Type)
				return bad
			}
			if !uniformCompatible(ft) {
				s.poisonf(ErrTypeMismatch,
					"%s: %s cannot live in a uniform buffer, widen array elements to vec4 granularity",
					what, ft)
				return bad
			}
			if memberNames[lowerFirst(f.Name)] {
				s.poisonf(ErrTypeMismatch, "%s: member name collides after lowercasing", what)
				return bad
			}
			memberNames[lowerFirst(f.Name)] = true
			if !decl.hasUniform {
				decl.hasUniform = true
				decl.uniformBinding = binding
				binding++
			}
			decl.fields = append(decl.fields, groupField{
				name: f.Name, typ: ft, kind: fieldUniform,
				binding: decl.uniformBinding, member: members,
			})
			members++
		}
	}
	if int(binding) > maxGroupBindings {
		s.poisonf(ErrLayoutOverflow, "group %s uses %d bindings, limit is %d",
			rt.Name(), binding, maxGroupBindings)
		return bad
	}
	decl.bindings = int(binding)
	s.groups = append(s.groups, decl)
	return Group{s: s, decl: decl}
}

// Read returns the named field of the group as an expression. Uniform
// members, textures, samplers and read-only storage arrays read from
// any stage; read-write storage is off limits to the vertex stage.
func (g Group) Read(name string) Expr {
	s := g.s
	if s == nil {
		panic("shade: Read on zero Group")
	}
	if g.decl == nil {
		return s.poisonExpr()
	}
	for i, f := range g.decl.fields {
		if f.kind == fieldArrayLen || f.name != name {
			continue
		}
		mask := maskAll
		if f.kind == fieldStorage && f.rw {
			mask = maskFragment | maskCompute
		}
		return s.add(nodeReadGlobal{group: g.decl.index, field: i}, f.typ, mask)
	}
	return s.poisonf(ErrTypeMismatch, "%s has no field %s", g.decl.name, name)
}

// Len returns the bound element count of the named storage array as a
// u32 scalar. The host fills the companion uniform when it binds the
// buffer, so the count is a runtime value: loops bounded by it never
// unroll, whatever capacity the field declares.
func (g Group) Len(name string) Expr {
	s := g.s
	if s == nil {
		panic("shade: Len on zero Group")
	}
	if g.decl == nil {
		return s.poisonExpr()
	}
	for i, f := range g.decl.fields {
		if f.kind != fieldArrayLen || g.decl.fields[f.arrayField].name != name {
			continue
		}
		return s.add(nodeReadGlobal{group: g.decl.index, field: i}, Scalar{Kind: U32}, maskAll)
	}
	return s.poisonf(ErrTypeMismatch, "%s has no storage array %s", g.decl.name, name)
}
