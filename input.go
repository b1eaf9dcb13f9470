package shade

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/image/math/f32"
)

// Input record limits. Locations are scarce; the caps follow the
// WebGPU baseline limits.
const (
	maxVertexRecords   = 1
	maxInstanceRecords = 2
	maxLocations       = 16
)

var (
	vec2Type = reflect.TypeOf(f32.Vec2{})
	vec3Type = reflect.TypeOf(f32.Vec3{})
	vec4Type = reflect.TypeOf(f32.Vec4{})
	mat3Type = reflect.TypeOf(f32.Mat3{})
	mat4Type = reflect.TypeOf(f32.Mat4{})
	texType  = reflect.TypeOf(Texture{})
	samType  = reflect.TypeOf(Sampler{})
)

// inputDecl is one registered vertex or instance record.
type inputDecl struct {
	index    int
	instance bool
	name     string
	fields   []inputField
	members  []memberDecl
}

// inputField maps one Go struct field to its span of flattened
// members.
type inputField struct {
	name        string
	typ         ValueType
	memberStart int
	memberCount int
}

// memberDecl is one flattened shader-side member of an input record.
// Composite fields split into scalar and vector leaves, one location
// each: matrix columns become name_0..name_N, array elements likewise,
// nested struct fields join with an underscore.
type memberDecl struct {
	name string
	typ  ValueType
	loc  uint32
}

// Input exposes the fields of a registered input record as
// expressions.
type Input struct {
	s    *Shader
	decl *inputDecl
}

// Vertex registers the struct type of prototype as the per-vertex
// input record. Fields claim shader locations in declaration order,
// one per scalar or vector leaf; a matrix field claims one location
// per column, consecutively. A `shade:"loc:N"` tag pins a field's
// first location. Only one vertex record may be registered.
func (s *Shader) Vertex(prototype any) Input {
	return s.inputRecord(prototype, false)
}

// Instance registers a per-instance input record. Its locations
// continue after the ones already claimed, so a vertex record and up
// to two instance records share one location space.
func (s *Shader) Instance(prototype any) Input {
	return s.inputRecord(prototype, true)
}

// Read returns the named field of the record as an expression. Input
// reads are vertex-stage values; Transfer carries them onward to the
// fragment stage.
func (in Input) Read(name string) Expr {
	s := in.s
	if s == nil {
		panic("shade: Read on zero Input")
	}
	if in.decl == nil {
		return s.poisonExpr()
	}
	for i, f := range in.decl.fields {
		if f.name == name {
			return s.add(nodeReadInput{input: in.decl.index, field: i}, f.typ, maskVertex)
		}
	}
	return s.poisonf(ErrTypeMismatch, "%s has no field %s", in.decl.name, name)
}

func (s *Shader) inputRecord(prototype any, instance bool) Input {
	bad := Input{s: s}
	rt := reflect.TypeOf(prototype)
	if rt != nil && rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	if rt == nil || rt.Kind() != reflect.Struct {
		s.poisonf(ErrTypeMismatch, "input record from %T", prototype)
		return bad
	}
	var vertexN, instanceN int
	for _, d := range s.inputs {
		if d.instance {
			instanceN++
		} else {
			vertexN++
		}
	}
	if instance && instanceN >= maxInstanceRecords {
		s.poisonf(ErrLayoutOverflow, "more than %d instance records", maxInstanceRecords)
		return bad
	}
	if !instance && vertexN >= maxVertexRecords {
		s.poisonf(ErrLayoutOverflow, "more than %d vertex record", maxVertexRecords)
		return bad
	}

	decl := &inputDecl{index: len(s.inputs), instance: instance, name: rt.Name()}
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
			s.poison(fmt.Errorf("%s: %w", what, err))
			return bad
		}
		if tag.rw || tag.hasCap {
			s.poisonf(ErrTypeMismatch, "%s: rw and cap tags apply to group records", what)
			return bad
		}
		ft, ok := hostPlainType(f.Type)
		if !ok {
			s.poisonf(ErrTypeMismatch, "%s: unsupported input field type %s", what, f.Type)
			return bad
		}
		start := len(decl.members)
		decl.members = appendInputLeaves(decl.members, lowerFirst(f.Name), ft)
		leaves := decl.members[start:]
		for _, m := range leaves {
			if _, ok := vertexFormat(m.typ); !ok {
				s.poisonf(ErrTypeMismatch, "%s: %s cannot feed a vertex attribute", what, m.typ)
				return bad
			}
			if memberNames[m.name] {
				s.poisonf(ErrTypeMismatch, "%s: member %s collides after lowercasing", what, m.name)
				return bad
			}
			memberNames[m.name] = true
		}
		base, ok := s.claimLocations(what, len(leaves), tag.loc)
		if !ok {
			return bad
		}
		for j := range leaves {
			leaves[j].loc = base + uint32(j)
		}
		decl.fields = append(decl.fields, inputField{
			name:        f.Name,
			typ:         ft,
			memberStart: start,
			memberCount: len(leaves),
		})
	}
	s.inputs = append(s.inputs, decl)
	return Input{s: s, decl: decl}
}

// claimLocations reserves count consecutive locations, either at the
// explicit base from a loc tag or at the next free run after the
// cursor. count comes from flattening one field, so a matrix claims
// its columns side by side.
func (s *Shader) claimLocations(what string, count, explicit int) (uint32, bool) {
	if count == 0 {
		return 0, true
	}
	if s.locUsed == nil {
		s.locUsed = make(map[int]bool)
	}
	if explicit >= 0 {
		if explicit+count > maxLocations {
			s.poisonf(ErrLayoutOverflow, "%s: locations %d..%d exceed the limit of %d",
				what, explicit, explicit+count-1, maxLocations)
			return 0, false
		}
		for i := 0; i < count; i++ {
			if s.locUsed[explicit+i] {
				s.poisonf(ErrDuplicateLocation, "%s: location %d already assigned", what, explicit+i)
				return 0, false
			}
		}
		for i := 0; i < count; i++ {
			s.locUsed[explicit+i] = true
		}
		return uint32(explicit), true
	}
	start := s.locNext
scan:
	for {
		if start+count > maxLocations {
			s.poisonf(ErrLayoutOverflow, "%s: out of input locations", what)
			return 0, false
		}
		for i := 0; i < count; i++ {
			if s.locUsed[start+i] {
				start += i + 1
				continue scan
			}
		}
		break
	}
	for i := 0; i < count; i++ {
		s.locUsed[start+i] = true
	}
	s.locNext = start + count
	return uint32(start), true
}

// appendInputLeaves flattens t into per-location members named after
// name.
func appendInputLeaves(members []memberDecl, name string, t ValueType) []memberDecl {
	switch tt := t.(type) {
	case Scalar, Vector:
		return append(members, memberDecl{name: name, typ: t})
	case Matrix:
		col := Vector{Size: tt.Rows, Kind: F32}
		for c := 0; c < int(tt.Cols); c++ {
			members = append(members, memberDecl{name: fmt.Sprintf("%s_%d", name, c), typ: col})
		}
	case Array:
		for i := 0; i < int(tt.Len); i++ {
			members = appendInputLeaves(members, fmt.Sprintf("%s_%d", name, i), tt.Elem)
		}
	case Struct:
		for _, f := range tt.Fields {
			members = appendInputLeaves(members, name+"_"+lowerFirst(f.Name), f.Type)
		}
	}
	return members
}

// hostPlainType maps a host field type to its shader value type.
// Records may carry float32, uint32 and int32 scalars, the f32 vector
// and matrix types, fixed arrays and named nested structs of those.
// Booleans never cross the host boundary.
func hostPlainType(rt reflect.Type) (ValueType, bool) {
	switch rt {
	case vec2Type:
		return Vector{Size: 2, Kind: F32}, true
	case vec3Type:
		return Vector{Size: 3, Kind: F32}, true
	case vec4Type:
		return Vector{Size: 4, Kind: F32}, true
	case mat3Type:
		return Matrix{Rows: 3, Cols: 3}, true
	case mat4Type:
		return Matrix{Rows: 4, Cols: 4}, true
	}
	switch rt.Kind() {
	case reflect.Float32:
		return Scalar{Kind: F32}, true
	case reflect.Uint32:
		return Scalar{Kind: U32}, true
	case reflect.Int32:
		return Scalar{Kind: I32}, true
	case reflect.Array:
		elem, ok := hostPlainType(rt.Elem())
		if !ok {
			return nil, false
		}
		return Array{Elem: elem, Len: uint32(rt.Len())}, true
	case reflect.Struct:
		if rt.Name() == "" {
			return nil, false
		}
		fields := make([]StructField, 0, rt.NumField())
		for i := 0; i < rt.NumField(); i++ {
			f := rt.Field(i)
			if !f.IsExported() {
				return nil, false
			}
			ft, ok := hostPlainType(f.Type)
			if !ok {
				return nil, false
			}
			fields = append(fields, StructField{Name: f.Name, Type: ft})
		}
		return Struct{Name: rt.Name(), Fields: fields}, true
	}
	return nil, false
}

// shadeTag is the parsed form of a `shade:"..."` struct tag.
type shadeTag struct {
	loc    int
	rw     bool
	cap    uint32
	hasCap bool
}

func parseShadeTag(tag reflect.StructTag) (shadeTag, error) {
	out := shadeTag{loc: -1}
	raw, ok := tag.Lookup("shade")
	if !ok {
		return out, nil
	}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "rw":
			out.rw = true
		case strings.HasPrefix(part, "loc:"):
			n, err := strconv.Atoi(part[len("loc:"):])
			if err != nil || n < 0 {
				return out, fmt.Errorf("bad loc tag %q: %w", part, ErrTypeMismatch)
			}
			out.loc = n
		case strings.HasPrefix(part, "cap:"):
			n, err := strconv.ParseUint(part[len("cap:"):], 10, 32)
			if err != nil || n == 0 {
				return out, fmt.Errorf("bad cap tag %q: %w", part, ErrTypeMismatch)
			}
			out.cap = uint32(n)
			out.hasCap = true
		default:
			return out, fmt.Errorf("unknown shade tag %q: %w", part, ErrTypeMismatch)
		}
	}
	return out, nil
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}
