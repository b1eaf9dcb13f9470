package shade

import (
	"encoding/binary"
	"hash"
	"hash/fnv"
	"slices"
)

// fingerprint hashes everything that shapes the compiled module: the input
// and group declarations, the reachable expression nodes in arena order, the
// chosen roots, the workgroup size, and the resolved layout. Labels and other
// debug-only configuration stay out, so relabeled compiles still collide in
// pipeline caches. FNV-1a, matching the rest of the module's hashing.
func (s *Shader) fingerprint(out Out, hasPlace, hasColor, hasCompute bool, wg [3]uint32, layout *Layout) uint64 {
	h := fnv.New64a()
	hashWriteString(h, "shade/v1")

	hashWriteUint32(h, uint32(len(s.inputs)))
	for _, decl := range s.inputs {
		hashWriteBool(h, decl.instance)
		hashWriteString(h, decl.name)
		hashWriteUint32(h, uint32(len(decl.members)))
		for _, m := range decl.members {
			hashWriteString(h, m.name)
			hashWriteString(h, typeKey(m.typ))
			hashWriteUint32(h, m.loc)
		}
	}

	hashWriteUint32(h, uint32(len(s.groups)))
	for _, g := range s.groups {
		hashWriteString(h, g.name)
		hashWriteUint32(h, uint32(len(g.fields)))
		for _, f := range g.fields {
			hashWriteString(h, f.name)
			hashWriteUint32(h, uint32(f.kind))
			hashWriteUint32(h, f.binding)
			hashWriteUint32(h, uint32(f.member))
			hashWriteBool(h, f.rw)
			hashWriteUint32(h, f.cap)
			hashWriteString(h, typeKey(f.typ))
		}
	}

	var roots []uint32
	if hasPlace {
		roots = append(roots, out.Place.idx)
	}
	if hasColor {
		roots = append(roots, out.Color.idx)
	}
	if hasCompute {
		roots = append(roots, out.Compute.idx)
	}
	for _, idx := range s.reachable(roots) {
		s.hashNode(h, idx)
	}

	hashWriteBool(h, hasPlace)
	hashWriteBool(h, hasColor)
	hashWriteBool(h, hasCompute)
	if hasPlace {
		hashWriteUint32(h, out.Place.idx)
	}
	if hasColor {
		hashWriteUint32(h, out.Color.idx)
	}
	if hasCompute {
		hashWriteUint32(h, out.Compute.idx)
	}
	for _, v := range wg {
		hashWriteUint32(h, v)
	}

	hashLayout(h, layout)
	return h.Sum64()
}

// reachable collects the node indices under the given roots, ascending.
func (s *Shader) reachable(roots []uint32) []uint32 {
	seen := make(map[uint32]bool)
	stack := append([]uint32(nil), roots...)
	for _, r := range roots {
		seen[r] = true
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		operands(s.node(n).kind, func(op uint32) {
			if !seen[op] {
				seen[op] = true
				stack = append(stack, op)
			}
		})
	}
	idxs := make([]uint32, 0, len(seen))
	for idx := range seen {
		idxs = append(idxs, idx)
	}
	slices.Sort(idxs)
	return idxs
}

func (s *Shader) hashNode(h hash.Hash64, idx uint32) {
	n := s.node(idx)
	hashWriteUint32(h, idx)
	hashWriteString(h, typeKey(n.typ))
	switch k := n.kind.(type) {
	case nodeLit:
		hashWriteUint32(h, 1)
		hashWriteUint32(h, uint32(k.lit.kind))
		hashWriteUint32(h, k.lit.bits)
	case nodeZero:
		hashWriteUint32(h, 2)
	case nodeBuiltin:
		hashWriteUint32(h, 3)
		hashWriteUint32(h, uint32(k.which))
	case nodeReadInput:
		hashWriteUint32(h, 4)
		hashWriteUint32(h, uint32(k.input))
		hashWriteUint32(h, uint32(k.field))
	case nodeReadGlobal:
		hashWriteUint32(h, 5)
		hashWriteUint32(h, uint32(k.group))
		hashWriteUint32(h, uint32(k.field))
	case nodeConstruct:
		hashWriteUint32(h, 6)
		hashWriteUint32(h, uint32(len(k.parts)))
		for _, p := range k.parts {
			hashWriteUint32(h, p)
		}
	case nodeSplat:
		hashWriteUint32(h, 7)
		hashWriteUint32(h, k.value)
	case nodeComponent:
		hashWriteUint32(h, 8)
		hashWriteUint32(h, k.base)
		hashWriteUint32(h, uint32(k.index))
	case nodeIndex:
		hashWriteUint32(h, 9)
		hashWriteUint32(h, k.base)
		hashWriteUint32(h, k.index)
	case nodeTransfer:
		hashWriteUint32(h, 10)
		hashWriteUint32(h, k.value)
	case nodeBinary:
		hashWriteUint32(h, 11)
		hashWriteUint32(h, uint32(k.op))
		hashWriteUint32(h, k.lhs)
		hashWriteUint32(h, k.rhs)
	case nodeUnary:
		hashWriteUint32(h, 12)
		hashWriteUint32(h, uint32(k.op))
		hashWriteUint32(h, k.operand)
	case nodeCall:
		hashWriteUint32(h, 13)
		hashWriteUint32(h, uint32(k.fn))
		hashWriteUint32(h, uint32(len(k.args)))
		for _, a := range k.args {
			hashWriteUint32(h, a)
		}
	case nodeSample:
		hashWriteUint32(h, 14)
		hashWriteUint32(h, k.tex)
		hashWriteUint32(h, k.sam)
		hashWriteUint32(h, k.coord)
	case nodeConvert:
		hashWriteUint32(h, 15)
		hashWriteUint32(h, uint32(k.kind))
		hashWriteUint32(h, k.value)
	case nodeBranch:
		hashWriteUint32(h, 16)
		hashWriteUint32(h, k.cond)
		hashWriteUint32(h, k.then)
		hashWriteUint32(h, k.els)
	case nodeDiscard:
		hashWriteUint32(h, 17)
	case nodeLoop:
		hashWriteUint32(h, 18)
		hashWriteUint32(h, k.array)
		hashWriteUint32(h, k.length)
		hashWriteUint32(h, k.init)
		hashWriteUint32(h, k.acc)
		hashWriteUint32(h, k.elem)
		hashWriteUint32(h, k.index)
		hashWriteUint32(h, k.body)
	case nodeLoopVar:
		hashWriteUint32(h, 19)
		hashWriteUint32(h, uint32(k.role))
	default:
		panic(internalf("fingerprint: unhandled node kind %T", n.kind))
	}
}

func hashLayout(h hash.Hash64, layout *Layout) {
	hashWriteUint32(h, uint32(len(layout.Buffers)))
	for _, b := range layout.Buffers {
		hashWriteUint64(h, b.ArrayStride)
		hashWriteUint32(h, uint32(b.StepMode))
		hashWriteUint32(h, uint32(len(b.Attributes)))
		for _, a := range b.Attributes {
			hashWriteUint32(h, a.ShaderLocation)
			hashWriteUint32(h, uint32(a.Format))
			hashWriteUint64(h, a.Offset)
		}
	}
	hashWriteUint32(h, uint32(len(layout.Groups)))
	for _, g := range layout.Groups {
		hashWriteUint32(h, uint32(len(g.Entries)))
		for _, e := range g.Entries {
			hashWriteUint32(h, e.Binding)
			hashWriteUint32(h, uint32(e.Visibility))
			switch {
			case e.Buffer != nil:
				hashWriteUint32(h, 1)
				hashWriteUint32(h, uint32(e.Buffer.Type))
				hashWriteUint64(h, e.Buffer.MinBindingSize)
			case e.Texture != nil:
				hashWriteUint32(h, 2)
			case e.Sampler != nil:
				hashWriteUint32(h, 3)
			}
		}
		hashWriteUint32(h, g.UniformSize)
		hashWriteUint32(h, g.ArrayStride)
		for _, f := range g.Fields {
			hashWriteString(h, f.Name)
			hashWriteUint32(h, f.Offset)
			hashWriteUint32(h, f.Size)
		}
	}
}

// Hash write helpers, little-endian with length-prefixed strings.

func hashWriteUint32(h hash.Hash64, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	h.Write(buf[:])
}

func hashWriteUint64(h hash.Hash64, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	h.Write(buf[:])
}

func hashWriteString(h hash.Hash64, s string) {
	hashWriteUint32(h, uint32(len(s)))
	h.Write([]byte(s))
}

func hashWriteBool(h hash.Hash64, v bool) {
	if v {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
}
