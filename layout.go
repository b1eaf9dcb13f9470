package shade

import "github.com/gogpu/gputypes"

// Layout is the host-visible binding interface of a compiled module:
// one vertex buffer per registered input record and one bind group per
// registered group record, in registration order.
type Layout struct {
	// Buffers describes the vertex buffers feeding the vertex stage.
	Buffers []VertexBufferLayout

	// Groups describes the bind groups, indexed by group number.
	Groups []BindGroupLayout
}

// VertexBufferLayout describes one vertex buffer.
type VertexBufferLayout struct {
	// ArrayStride is the byte stride between consecutive elements.
	ArrayStride uint64

	// StepMode is the input rate (per vertex or per instance).
	StepMode gputypes.VertexStepMode

	// Attributes describes the attributes read from this buffer.
	Attributes []VertexAttribute
}

// VertexAttribute describes one vertex attribute.
type VertexAttribute struct {
	// ShaderLocation is the attribute location in the shader.
	ShaderLocation uint32

	// Format is the attribute data format.
	Format gputypes.VertexFormat

	// Offset is the byte offset from the start of the element.
	Offset uint64
}

// BindGroupLayout describes one bind group.
type BindGroupLayout struct {
	// Entries describes the group's bindings in binding order. Entry
	// visibility covers exactly the stages that read the binding.
	Entries []gputypes.BindGroupLayoutEntry

	// Fields locates each plain record field inside the group's
	// merged uniform buffer, in field order. Empty when the group
	// has no plain fields.
	Fields []UniformField

	// UniformSize is the byte size of the merged uniform buffer,
	// zero when the group has none.
	UniformSize uint32

	// ArrayStride is the element stride of the group's storage
	// array, zero when the group has none.
	ArrayStride uint32
}

// UniformField locates one plain field in a merged uniform buffer.
type UniformField struct {
	// Name is the Go field name.
	Name string

	// Offset is the byte offset of the field's value.
	Offset uint32

	// Size is the byte size of the field's value.
	Size uint32
}

// bindingKey identifies one binding slot for usage tracking.
type bindingKey struct {
	group   int
	binding uint32
}

// resolveLayout packages the registered records into a Layout. usage
// maps binding slots to the stages whose expression trees read them;
// bindings no stage reads keep an empty visibility.
func (s *Shader) resolveLayout(usage map[bindingKey]stageMask) *Layout {
	l := &Layout{}
	for _, in := range s.inputs {
		buf := VertexBufferLayout{StepMode: gputypes.VertexStepModeVertex}
		if in.instance {
			buf.StepMode = gputypes.VertexStepModeInstance
		}
		var offset uint64
		for _, m := range in.members {
			format, _ := vertexFormat(m.typ)
			buf.Attributes = append(buf.Attributes, VertexAttribute{
				ShaderLocation: m.loc,
				Format:         format,
				Offset:         offset,
			})
			offset += uint64(4 * componentCount(m.typ))
		}
		buf.ArrayStride = offset
		l.Buffers = append(l.Buffers, buf)
	}

	for gi, g := range s.groups {
		bg := BindGroupLayout{}
		if g.hasUniform {
			var offset uint32
			for _, f := range g.fields {
				if f.kind != fieldUniform {
					continue
				}
				offset = roundUp(offset, alignOf(f.typ))
				bg.Fields = append(bg.Fields, UniformField{
					Name:   f.name,
					Offset: offset,
					Size:   sizeOf(f.typ),
				})
				offset += sizeOf(f.typ)
			}
			bg.UniformSize = roundUp(offset, 16)
		}

		seen := make(map[uint32]bool)
		for _, f := range g.fields {
			if seen[f.binding] {
				continue
			}
			seen[f.binding] = true
			vis := toShaderStage(usage[bindingKey{group: gi, binding: f.binding}])
			entry := gputypes.BindGroupLayoutEntry{
				Binding:    f.binding,
				Visibility: vis,
			}
			switch f.kind {
			case fieldUniform:
				entry.Buffer = &gputypes.BufferBindingLayout{
					Type:           gputypes.BufferBindingTypeUniform,
					MinBindingSize: uint64(bg.UniformSize),
				}
			case fieldTexture:
				entry.Texture = &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				}
			case fieldSampler:
				entry.Sampler = &gputypes.SamplerBindingLayout{
					Type: gputypes.SamplerBindingTypeFiltering,
				}
			case fieldStorage:
				at := f.typ.(Array)
				stride := storageStride(at.Elem)
				bg.ArrayStride = stride
				min := uint64(stride)
				if f.cap > 0 {
					min = uint64(f.cap) * uint64(stride)
				}
				bufType := gputypes.BufferBindingTypeReadOnlyStorage
				if f.rw {
					bufType = gputypes.BufferBindingTypeStorage
				}
				entry.Buffer = &gputypes.BufferBindingLayout{
					Type:           bufType,
					MinBindingSize: min,
				}
			case fieldArrayLen:
				entry.Buffer = &gputypes.BufferBindingLayout{
					Type:           gputypes.BufferBindingTypeUniform,
					MinBindingSize: lenUniformSize,
				}
			}
			bg.Entries = append(bg.Entries, entry)
		}
		l.Groups = append(l.Groups, bg)
	}
	return l
}

// lenUniformSize is the byte size of the length uniform accompanying a
// storage array: one u32 padded out to a 16-byte slot.
const lenUniformSize = 16

func toShaderStage(m stageMask) gputypes.ShaderStage {
	var st gputypes.ShaderStage
	if m&maskVertex != 0 {
		st |= gputypes.ShaderStageVertex
	}
	if m&maskFragment != 0 {
		st |= gputypes.ShaderStageFragment
	}
	if m&maskCompute != 0 {
		st |= gputypes.ShaderStageCompute
	}
	return st
}
