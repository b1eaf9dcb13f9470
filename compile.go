package shade

import (
	"fmt"

	"github.com/gogpu/naga"
)

// Out names the roots to compile. Place is the vertex position and must be a
// vec4<f32>; Color is the fragment output, a vec4<f32> or a discard; Compute
// is any plain value, computed per invocation into a function local. Leave a
// root as the zero Expr to skip its stage. Workgroup sizes a compute entry
// point; zero means {1, 1, 1}.
type Out struct {
	Place     Expr
	Color     Expr
	Compute   Expr
	Workgroup [3]uint32
}

// Compile lowers the shader's expression graph into a ShaderModule for the
// given roots. The first error latched while building wins and is returned
// here; a shader that never latched one is checked again against the root
// rules before lowering. Compile does not consume the Shader: the arena can
// keep growing and compile again.
func Compile(s *Shader, out Out, opts ...CompileOption) (*ShaderModule, error) {
	cfg := defaultCompileOptions()
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := s.Err(); err != nil {
		return nil, err
	}

	hasPlace := out.Place.s != nil
	hasColor := out.Color.s != nil
	hasCompute := out.Compute.s != nil
	for _, r := range []struct {
		ok bool
		e  Expr
	}{{hasPlace, out.Place}, {hasColor, out.Color}, {hasCompute, out.Compute}} {
		if r.ok && r.e.s != s {
			panic("shade: Out root bound to a different Shader")
		}
	}
	if !hasPlace && !hasColor && !hasCompute {
		return nil, fmt.Errorf("compile: Out names no roots: %w", ErrTypeMismatch)
	}
	if hasColor && !hasPlace {
		return nil, fmt.Errorf("compile: a fragment root needs a vertex position root: %w", ErrTypeMismatch)
	}

	if hasPlace {
		if err := s.checkRoot(out.Place, Vector{4, F32}, maskVertex, "position"); err != nil {
			return nil, err
		}
	}
	if hasColor {
		if err := s.checkRoot(out.Color, Vector{4, F32}, maskFragment, "color"); err != nil {
			return nil, err
		}
	}
	if hasCompute {
		n := s.node(out.Compute.idx)
		if !plainType(n.typ) {
			return nil, fmt.Errorf("compile: compute root of type %s: %w", n.typ, ErrTypeMismatch)
		}
		if err := s.checkRootMask(out.Compute, maskCompute, "compute"); err != nil {
			return nil, err
		}
	}

	wg := out.Workgroup
	if hasCompute && wg == [3]uint32{} {
		wg = [3]uint32{1, 1, 1}
	}

	usage := make(map[bindingKey]stageMask)
	if hasPlace {
		s.walkStageUsage(out.Place.idx, maskVertex, usage)
	}
	if hasColor {
		s.walkStageUsage(out.Color.idx, maskFragment, usage)
	}
	if hasCompute {
		s.walkStageUsage(out.Compute.idx, maskCompute, usage)
	}

	irMod, rwGlobals := s.lower(out.Place, out.Color, out.Compute, hasPlace, hasColor, hasCompute, wg)
	layout := s.resolveLayout(usage)

	if cfg.validate {
		errs, err := naga.Validate(irMod)
		if err != nil {
			panic(internalf("compile: ir validation: %v", err))
		}
		if len(errs) > 0 {
			panic(internalf("compile: ir validation: %v", errs[0]))
		}
	}

	m := &ShaderModule{
		label:       cfg.label,
		layout:      layout,
		module:      irMod,
		rwGlobals:   rwGlobals,
		hasVertex:   hasPlace,
		hasFragment: hasColor,
		hasCompute:  hasCompute,
		workgroup:   wg,
	}
	m.fingerprint = s.fingerprint(out, hasPlace, hasColor, hasCompute, wg, layout)

	Logger().Debug("compiled shader module",
		"label", cfg.label,
		"fingerprint", m.fingerprint,
		"vertex", hasPlace,
		"fragment", hasColor,
		"compute", hasCompute,
	)
	return m, nil
}

// checkRoot enforces the type and stage of one entry root.
func (s *Shader) checkRoot(root Expr, want ValueType, need stageMask, what string) error {
	n := s.node(root.idx)
	if !TypesEqual(n.typ, want) {
		return fmt.Errorf("compile: %s root of type %s, want %s: %w", what, n.typ, want, ErrTypeMismatch)
	}
	return s.checkRootMask(root, need, what)
}

// checkRootMask verifies the root can run in the required stage. A root shut
// out because a discard sits in its tree is a stage violation; one shut out
// by where its inputs live is a scope error.
func (s *Shader) checkRootMask(root Expr, need stageMask, what string) error {
	n := s.node(root.idx)
	if n.mask&need != 0 {
		return nil
	}
	if need != maskFragment && s.containsDiscard(root.idx) {
		return fmt.Errorf("compile: discard in the %s stage: %w", what, ErrStageViolation)
	}
	return fmt.Errorf("compile: %s root runs in %s, not %s: %w", what, n.mask, need, ErrStageScope)
}

// containsDiscard walks the subgraph under idx looking for a discard node.
func (s *Shader) containsDiscard(idx uint32) bool {
	seen := make(map[uint32]bool)
	stack := []uint32{idx}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := s.node(n).kind.(nodeDiscard); ok {
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

// walkStageUsage records which stages read each resolved binding, so layout
// entries carry exact visibility. Crossing a stage transfer re-attributes
// everything beneath it to the vertex stage.
func (s *Shader) walkStageUsage(idx uint32, stage stageMask, usage map[bindingKey]stageMask) {
	type item struct {
		idx   uint32
		stage stageMask
	}
	type seenKey struct {
		idx   uint32
		stage stageMask
	}
	seen := make(map[seenKey]bool)
	stack := []item{{idx, stage}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[seenKey(it)] {
			continue
		}
		seen[seenKey(it)] = true

		n := s.node(it.idx)
		next := it.stage
		switch k := n.kind.(type) {
		case nodeTransfer:
			next = maskVertex
		case nodeReadGlobal:
			g := s.groups[k.group]
			f := g.fields[k.field]
			binding := f.binding
			if f.kind == fieldUniform {
				binding = g.uniformBinding
			}
			usage[bindingKey{g.index, binding}] |= it.stage
		}
		operands(n.kind, func(op uint32) {
			stack = append(stack, item{op, next})
		})
	}
}
