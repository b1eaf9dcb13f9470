// Package shade builds GPU shader programs from Go function composition.
//
// # Overview
//
// shade is a shader compiler for the GoGPU ecosystem. Instead of parsing a
// shading language, applications describe a shader as a graph of typed
// expressions built with ordinary Go calls. Compiling the graph yields WGSL
// text, a resolved vertex and bind group layout, and a structural
// fingerprint that pipeline caches key on.
//
// # Quick Start
//
//	import "github.com/gogpu/shade"
//
//	type Vertex struct {
//		Pos   f32.Vec2
//		Color f32.Vec3
//	}
//
//	s := shade.New()
//	in := s.Vertex(Vertex{})
//	pos := shade.Vec4(in.Read("Pos"), 0.0, 1.0)
//	col := shade.Vec4(shade.Transfer(in.Read("Color")), 1.0)
//
//	m, err := shade.Compile(s, shade.Out{Place: pos, Color: col})
//	if err != nil {
//		// a mistake latched while building, reported here
//	}
//	src := m.Emit()
//
// # Architecture
//
// The library is organized into:
//   - Expression builder: Shader, Expr, input and group records
//   - Lowering: expression graph to naga IR, one function per stage
//   - Emission: wgsl (deterministic WGSL text from IR)
//   - Caching: cache (generic memo), pipeline (GPU pipeline artifacts)
//
// # Stages
//
// Every expression knows which stages may evaluate it. Vertex inputs exist
// only in the vertex stage; values cross into the fragment stage through
// Transfer, which interpolates them across the primitive. Mixing values
// whose stages cannot meet latches a stage error on the Shader instead of
// producing a module.
//
// # Determinism
//
// Compiling the same construction twice yields byte-identical WGSL and the
// same fingerprint, so caches built on either never see spurious misses.
package shade

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)
