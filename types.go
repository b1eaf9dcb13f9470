package shade

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
)

// ScalarKind identifies the component kind of a scalar or aggregate value.
type ScalarKind uint8

const (
	// F32 is a 32-bit IEEE-754 float.
	F32 ScalarKind = iota
	// U32 is a 32-bit unsigned integer.
	U32
	// I32 is a 32-bit signed integer.
	I32
	// Bool is a boolean. Booleans never cross the host boundary; they
	// exist only inside expression trees.
	Bool
)

// String returns the shader-language spelling of the kind.
func (k ScalarKind) String() string {
	switch k {
	case F32:
		return "f32"
	case U32:
		return "u32"
	case I32:
		return "i32"
	case Bool:
		return "bool"
	default:
		return fmt.Sprintf("scalar(%d)", uint8(k))
	}
}

// ValueType describes the shader-side type of a value. The closed set of
// implementations is Scalar, Vector, Matrix, Array, Texture, Sampler and
// Struct. Compare types with TypesEqual, not ==: struct types carry
// slices.
type ValueType interface {
	// String returns the shader-language spelling of the type. Struct
	// types print their declared name.
	String() string

	valueType()
}

// Scalar is a single 32-bit component.
type Scalar struct {
	Kind ScalarKind
}

// Vector is 2 to 4 components of one scalar kind.
type Vector struct {
	Size uint8
	Kind ScalarKind
}

// Matrix is a column-major float matrix with 2 to 4 rows and columns.
type Matrix struct {
	Rows uint8
	Cols uint8
}

// Array is a homogeneous sequence. Len 0 marks a runtime-sized array
// whose length is only known at binding time; such arrays appear only as
// standalone storage bindings, never inside records.
type Array struct {
	Elem ValueType
	Len  uint32
}

// TextureDim identifies the dimensionality of a texture binding.
type TextureDim uint8

// Dim2D is the only supported texture dimensionality.
const Dim2D TextureDim = iota

// Texture is a sampled float texture binding. Declare a field of this
// type in a group record to bind one.
type Texture struct {
	Dim TextureDim
}

// Sampler is a filtering sampler binding. Declare a field of this type
// in a group record to bind one.
type Sampler struct{}

// StructField is a named member of a Struct.
type StructField struct {
	Name string
	Type ValueType
}

// Struct is a named record of fields, produced by reflection over host
// struct types.
type Struct struct {
	Name   string
	Fields []StructField
}

func (Scalar) valueType()  {}
func (Vector) valueType()  {}
func (Matrix) valueType()  {}
func (Array) valueType()   {}
func (Texture) valueType() {}
func (Sampler) valueType() {}
func (Struct) valueType()  {}

func (s Scalar) String() string { return s.Kind.String() }

func (v Vector) String() string {
	return fmt.Sprintf("vec%d<%s>", v.Size, v.Kind)
}

func (m Matrix) String() string {
	return fmt.Sprintf("mat%dx%d<f32>", m.Cols, m.Rows)
}

func (a Array) String() string {
	if a.Len == 0 {
		return fmt.Sprintf("array<%s>", a.Elem)
	}
	return fmt.Sprintf("array<%s, %d>", a.Elem, a.Len)
}

func (t Texture) String() string { return "texture_2d<f32>" }

func (Sampler) String() string { return "sampler" }

func (s Struct) String() string { return s.Name }

// TypesEqual reports whether two value types are structurally equal.
// Struct types compare by name and field list.
func TypesEqual(a, b ValueType) bool {
	switch at := a.(type) {
	case Scalar:
		bt, ok := b.(Scalar)
		return ok && at == bt
	case Vector:
		bt, ok := b.(Vector)
		return ok && at == bt
	case Matrix:
		bt, ok := b.(Matrix)
		return ok && at == bt
	case Array:
		bt, ok := b.(Array)
		return ok && at.Len == bt.Len && TypesEqual(at.Elem, bt.Elem)
	case Texture:
		bt, ok := b.(Texture)
		return ok && at == bt
	case Sampler:
		_, ok := b.(Sampler)
		return ok
	case Struct:
		bt, ok := b.(Struct)
		if !ok || at.Name != bt.Name || len(at.Fields) != len(bt.Fields) {
			return false
		}
		for i := range at.Fields {
			if at.Fields[i].Name != bt.Fields[i].Name {
				return false
			}
			if !TypesEqual(at.Fields[i].Type, bt.Fields[i].Type) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// typeKey returns a canonical spelling usable as a map key and hash
// input. Structs expand their full field list so two distinct records
// with the same name never collide.
func typeKey(t ValueType) string {
	st, ok := t.(Struct)
	if !ok {
		return t.String()
	}
	var b strings.Builder
	b.WriteString("struct ")
	b.WriteString(st.Name)
	b.WriteByte('{')
	for i, f := range st.Fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(f.Name)
		b.WriteByte(':')
		b.WriteString(typeKey(f.Type))
	}
	b.WriteByte('}')
	return b.String()
}

// plainType reports whether t may appear inside a uniform record:
// scalars, vectors, matrices, fixed arrays and structs of those.
// Textures, samplers and runtime-sized arrays are standalone bindings.
func plainType(t ValueType) bool {
	switch tt := t.(type) {
	case Scalar, Vector, Matrix:
		return true
	case Array:
		return tt.Len > 0 && plainType(tt.Elem)
	case Struct:
		for _, f := range tt.Fields {
			if !plainType(f.Type) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// numericKind reports whether k supports arithmetic.
func numericKind(k ScalarKind) bool {
	return k == F32 || k == U32 || k == I32
}

// componentKind returns the scalar kind of a scalar or vector, or false
// for other types.
func componentKind(t ValueType) (ScalarKind, bool) {
	switch tt := t.(type) {
	case Scalar:
		return tt.Kind, true
	case Vector:
		return tt.Kind, true
	default:
		return 0, false
	}
}

// componentCount returns the number of scalar components a plain type
// flattens to. Used by vector construction and input layout.
func componentCount(t ValueType) uint32 {
	switch tt := t.(type) {
	case Scalar:
		return 1
	case Vector:
		return uint32(tt.Size)
	case Matrix:
		return uint32(tt.Rows) * uint32(tt.Cols)
	case Array:
		return tt.Len * componentCount(tt.Elem)
	case Struct:
		var n uint32
		for _, f := range tt.Fields {
			n += componentCount(f.Type)
		}
		return n
	default:
		return 0
	}
}

// alignOf returns the uniform-space alignment of a plain type.
// Vectors of 3 and 4 components align to 16 bytes; matrices align like
// their column vector; structs round up to 16 inside uniform buffers.
func alignOf(t ValueType) uint32 {
	switch tt := t.(type) {
	case Scalar:
		return 4
	case Vector:
		if tt.Size == 2 {
			return 8
		}
		return 16
	case Matrix:
		if tt.Rows == 2 {
			return 8
		}
		return 16
	case Array, Struct:
		return 16
	default:
		return 4
	}
}

// sizeOf returns the uniform-space byte size of a plain type, before
// trailing padding is applied by the enclosing record.
func sizeOf(t ValueType) uint32 {
	switch tt := t.(type) {
	case Scalar:
		return 4
	case Vector:
		return 4 * uint32(tt.Size)
	case Matrix:
		// One column slot per column, padded to the column align.
		return roundUp(4*uint32(tt.Rows), alignOf(tt)) * uint32(tt.Cols)
	case Array:
		return tt.Len * arrayStride(tt.Elem)
	case Struct:
		var offset uint32
		for _, f := range tt.Fields {
			offset = roundUp(offset, alignOf(f.Type)) + sizeOf(f.Type)
		}
		return roundUp(offset, 16)
	default:
		return 0
	}
}

// arrayStride returns the per-element stride of an array in uniform
// space: the element size rounded up to 16 bytes.
func arrayStride(elem ValueType) uint32 {
	return roundUp(sizeOf(elem), 16)
}

// uniformCompatible reports whether t may live in a uniform buffer.
// Uniform address space requires array strides in 16-byte multiples,
// so arrays of bare scalars or vec2 need their elements widened to
// vec4 granularity first.
func uniformCompatible(t ValueType) bool {
	switch tt := t.(type) {
	case Scalar, Vector, Matrix:
		return true
	case Array:
		if !uniformCompatible(tt.Elem) {
			return false
		}
		return roundUp(sizeOf(tt.Elem), alignOf(tt.Elem))%16 == 0
	case Struct:
		for _, f := range tt.Fields {
			if !uniformCompatible(f.Type) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// storageElemOK reports whether t can be the element of a storage
// array. Elements must lay out identically under uniform and storage
// rules so one registered type serves both: scalars, vectors and
// matrices always do; a flat struct qualifies when its natural size
// already fills vec4 granularity. Nested arrays and structs do not.
func storageElemOK(t ValueType) bool {
	switch tt := t.(type) {
	case Scalar, Vector, Matrix:
		return true
	case Struct:
		for _, f := range tt.Fields {
			switch f.Type.(type) {
			case Scalar, Vector, Matrix:
			default:
				return false
			}
		}
		return storageSizeOf(tt) == sizeOf(tt)
	}
	return false
}

// storageAlignOf returns the storage-space alignment of a plain type:
// the natural alignment, with no 16-byte rounding for structs.
func storageAlignOf(t ValueType) uint32 {
	switch tt := t.(type) {
	case Struct:
		var align uint32 = 4
		for _, f := range tt.Fields {
			if a := storageAlignOf(f.Type); a > align {
				align = a
			}
		}
		return align
	case Array:
		return storageAlignOf(tt.Elem)
	default:
		return alignOf(t)
	}
}

// storageSizeOf returns the storage-space byte size of a plain type.
func storageSizeOf(t ValueType) uint32 {
	switch tt := t.(type) {
	case Array:
		return tt.Len * storageStride(tt.Elem)
	case Struct:
		var offset uint32
		for _, f := range tt.Fields {
			offset = roundUp(offset, storageAlignOf(f.Type)) + storageSizeOf(f.Type)
		}
		return roundUp(offset, storageAlignOf(t))
	default:
		return sizeOf(t)
	}
}

// storageStride returns the per-element stride of a storage array.
func storageStride(elem ValueType) uint32 {
	return roundUp(storageSizeOf(elem), storageAlignOf(elem))
}

func roundUp(n, align uint32) uint32 {
	if align == 0 {
		return n
	}
	return (n + align - 1) / align * align
}

// vertexFormat returns the vertex attribute format for a type that can
// feed a single shader location, or false for types that must be split
// (matrices, arrays, structs) or cannot appear in vertex records.
func vertexFormat(t ValueType) (gputypes.VertexFormat, bool) {
	switch tt := t.(type) {
	case Scalar:
		switch tt.Kind {
		case F32:
			return gputypes.VertexFormatFloat32, true
		case U32:
			return gputypes.VertexFormatUint32, true
		case I32:
			return gputypes.VertexFormatSint32, true
		}
	case Vector:
		if tt.Kind == F32 {
			switch tt.Size {
			case 2:
				return gputypes.VertexFormatFloat32x2, true
			case 3:
				return gputypes.VertexFormatFloat32x3, true
			case 4:
				return gputypes.VertexFormatFloat32x4, true
			}
		}
	}
	return 0, false
}
