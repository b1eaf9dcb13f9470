package shade

import (
	"github.com/gogpu/naga/ir"

	"github.com/gogpu/shade/wgsl"
)

// ShaderModule is a compiled shader program: the lowered IR, the resolved
// vertex and bind group layout, and a structural fingerprint. Modules are
// immutable once built; everything mutable stayed behind in the Shader.
type ShaderModule struct {
	label       string
	fingerprint uint64
	layout      *Layout
	module      *ir.Module
	rwGlobals   map[ir.GlobalVariableHandle]bool

	hasVertex   bool
	hasFragment bool
	hasCompute  bool
	workgroup   [3]uint32
}

// Label returns the debug label given at compile time, or "".
func (m *ShaderModule) Label() string { return m.label }

// Fingerprint identifies the module structurally: compiling the same
// declarations, expression graph, roots and layout again yields the same
// value. The target surface format is not part of it; pipeline caches fold
// the target in when they build their keys.
func (m *ShaderModule) Fingerprint() uint64 { return m.fingerprint }

// Layout returns the resolved vertex buffer and bind group layout.
func (m *ShaderModule) Layout() *Layout { return m.layout }

// IR returns the lowered module. Callers must treat it as read-only.
func (m *ShaderModule) IR() *ir.Module { return m.module }

// HasVertex reports whether the module carries a vertex entry point.
func (m *ShaderModule) HasVertex() bool { return m.hasVertex }

// HasFragment reports whether the module carries a fragment entry point.
func (m *ShaderModule) HasFragment() bool { return m.hasFragment }

// HasCompute reports whether the module carries a compute entry point.
func (m *ShaderModule) HasCompute() bool { return m.hasCompute }

// Workgroup returns the compute workgroup size, or zeros for a module
// without a compute entry point.
func (m *ShaderModule) Workgroup() [3]uint32 { return m.workgroup }

// Emit renders the module as WGSL source text. Emission is deterministic:
// the same module yields byte-identical text on every call. A module that
// cannot be emitted was built inconsistently, which is a bug here rather
// than in the caller, so emission failure panics with an error wrapping
// ErrInternal.
func (m *ShaderModule) Emit() string {
	src, err := wgsl.Compile(m.module, wgsl.Options{ReadWrite: m.rwGlobals})
	if err != nil {
		panic(internalf("emit: %v", err))
	}
	return src
}
