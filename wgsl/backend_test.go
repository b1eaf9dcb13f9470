package wgsl

import (
	"strings"
	"testing"

	"github.com/gogpu/naga/ir"
)

func locBinding(location uint32) *ir.Binding {
	b := ir.Binding(ir.LocationBinding{Location: location})
	return &b
}

func builtinBinding(builtin ir.BuiltinValue) *ir.Binding {
	b := ir.Binding(ir.BuiltinBinding{Builtin: builtin})
	return &b
}

func typeRes(handle ir.TypeHandle) ir.TypeResolution {
	h := handle
	return ir.TypeResolution{Handle: &h}
}

func exprHandle(h ir.ExpressionHandle) *ir.ExpressionHandle {
	return &h
}

var scalarF32 = ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}
var scalarU32 = ir.ScalarType{Kind: ir.ScalarUint, Width: 4}

// interfaceModule builds a vertex/fragment pair passing one varying
// through an IO struct, the smallest shape lowering produces.
func interfaceModule() *ir.Module {
	return &ir.Module{
		Types: []ir.Type{
			{Inner: ir.VectorType{Size: ir.Vec2, Scalar: scalarF32}},
			{Inner: ir.VectorType{Size: ir.Vec3, Scalar: scalarF32}},
			{Inner: ir.VectorType{Size: ir.Vec4, Scalar: scalarF32}},
			{Name: "VertexInput", Inner: ir.StructType{
				Members: []ir.StructMember{
					{Name: "pos", Type: 0, Binding: locBinding(0)},
					{Name: "col", Type: 1, Binding: locBinding(1), Offset: 16},
				},
				Span: 32,
			}},
			{Name: "VertexOutput", Inner: ir.StructType{
				Members: []ir.StructMember{
					{Name: "position", Type: 2, Binding: builtinBinding(ir.BuiltinPosition)},
					{Name: "v0", Type: 1, Binding: locBinding(0), Offset: 16},
				},
				Span: 32,
			}},
		},
		EntryPoints: []ir.EntryPoint{
			{Name: "vs_main", Stage: ir.StageVertex, Function: ir.Function{
				Name:      "vs_main",
				Arguments: []ir.FunctionArgument{{Name: "input", Type: 3}},
				Result:    &ir.FunctionResult{Type: 4},
				Expressions: []ir.Expression{
					{Kind: ir.ExprFunctionArgument{Index: 0}},
					{Kind: ir.ExprAccessIndex{Base: 0, Index: 0}},
					{Kind: ir.Literal{Value: ir.LiteralF32(0)}},
					{Kind: ir.Literal{Value: ir.LiteralF32(1)}},
					{Kind: ir.ExprCompose{Type: 0, Components: []ir.ExpressionHandle{2, 3}}},
					{Kind: ir.ExprCompose{Type: 2, Components: []ir.ExpressionHandle{1, 4}}},
					{Kind: ir.ExprAccessIndex{Base: 0, Index: 1}},
					{Kind: ir.ExprCompose{Type: 4, Components: []ir.ExpressionHandle{5, 6}}},
				},
				ExpressionTypes: []ir.TypeResolution{
					typeRes(3),
					typeRes(0),
					{Value: scalarF32},
					{Value: scalarF32},
					typeRes(0),
					typeRes(2),
					typeRes(1),
					typeRes(4),
				},
				Body: []ir.Statement{
					{Kind: ir.StmtEmit{Range: ir.Range{Start: 0, End: 8}}},
					{Kind: ir.StmtReturn{Value: exprHandle(7)}},
				},
			}},
			{Name: "fs_main", Stage: ir.StageFragment, Function: ir.Function{
				Name:      "fs_main",
				Arguments: []ir.FunctionArgument{{Name: "out", Type: 4}},
				Result:    &ir.FunctionResult{Type: 2, Binding: locBinding(0)},
				Expressions: []ir.Expression{
					{Kind: ir.ExprFunctionArgument{Index: 0}},
					{Kind: ir.ExprAccessIndex{Base: 0, Index: 1}},
					{Kind: ir.Literal{Value: ir.LiteralF32(1)}},
					{Kind: ir.ExprCompose{Type: 2, Components: []ir.ExpressionHandle{1, 2}}},
				},
				ExpressionTypes: []ir.TypeResolution{
					typeRes(4),
					typeRes(1),
					{Value: scalarF32},
					typeRes(2),
				},
				Body: []ir.Statement{
					{Kind: ir.StmtEmit{Range: ir.Range{Start: 0, End: 4}}},
					{Kind: ir.StmtReturn{Value: exprHandle(3)}},
				},
			}},
		},
	}
}

// =============================================================================
// Compile Tests - Full Modules
// =============================================================================

func TestCompile_InterfaceModule(t *testing.T) {
	want := `struct VertexInput {
    @location(0) pos: vec2<f32>,
    @location(1) col: vec3<f32>,
}

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) v0: vec3<f32>,
}

@vertex
fn vs_main(input: VertexInput) -> VertexOutput {
    return VertexOutput(vec4<f32>(input.pos, vec2<f32>(0.0, 1.0)), input.col);
}

@fragment
fn fs_main(out: VertexOutput) -> @location(0) vec4<f32> {
    return vec4<f32>(out.v0, 1.0);
}
`

	source, err := Compile(interfaceModule(), Options{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if source != want {
		t.Errorf("Compile() output mismatch\ngot:\n%s\nwant:\n%s", source, want)
	}
}

func TestCompile_Deterministic(t *testing.T) {
	first, err := Compile(interfaceModule(), Options{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	for i := 0; i < 10; i++ {
		next, err := Compile(interfaceModule(), Options{})
		if err != nil {
			t.Fatalf("Compile() error = %v", err)
		}
		if next != first {
			t.Fatalf("Compile() output changed between runs\nfirst:\n%s\nnext:\n%s", first, next)
		}
	}
}

func TestCompile_EmptyModule(t *testing.T) {
	source, err := Compile(&ir.Module{}, Options{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if source != "" {
		t.Errorf("Compile() = %q, want empty output", source)
	}
}

// =============================================================================
// Compile Tests - Global Variables
// =============================================================================

func TestCompile_GlobalsSortedByBinding(t *testing.T) {
	module := &ir.Module{
		Types: []ir.Type{
			{Inner: ir.ImageType{Dim: ir.Dim2D, Class: ir.ImageClassSampled}},
			{Inner: ir.SamplerType{}},
			{Inner: ir.VectorType{Size: ir.Vec4, Scalar: scalarF32}},
		},
		GlobalVariables: []ir.GlobalVariable{
			{Name: "material", Space: ir.SpaceUniform, Binding: &ir.ResourceBinding{Group: 0, Binding: 2}, Type: 2},
			{Name: "material_tex", Space: ir.SpaceHandle, Binding: &ir.ResourceBinding{Group: 0, Binding: 0}, Type: 0},
			{Name: "material_sam", Space: ir.SpaceHandle, Binding: &ir.ResourceBinding{Group: 0, Binding: 1}, Type: 1},
		},
	}

	want := `@group(0) @binding(0) var material_tex: texture_2d<f32>;
@group(0) @binding(1) var material_sam: sampler;
@group(0) @binding(2) var<uniform> material: vec4<f32>;
`

	source, err := Compile(module, Options{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if source != want {
		t.Errorf("Compile() output mismatch\ngot:\n%s\nwant:\n%s", source, want)
	}
}

func TestCompile_StorageAccessMode(t *testing.T) {
	module := func() *ir.Module {
		return &ir.Module{
			Types: []ir.Type{
				{Inner: scalarF32},
				{Inner: ir.ArrayType{Base: 0, Stride: 4}},
			},
			GlobalVariables: []ir.GlobalVariable{
				{Name: "points", Space: ir.SpaceStorage, Binding: &ir.ResourceBinding{Group: 0, Binding: 0}, Type: 1},
			},
		}
	}

	readOnly, err := Compile(module(), Options{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if !strings.Contains(readOnly, "var<storage, read> points: array<f32>;") {
		t.Errorf("expected read-only storage declaration, got:\n%s", readOnly)
	}

	readWrite, err := Compile(module(), Options{ReadWrite: map[ir.GlobalVariableHandle]bool{0: true}})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if !strings.Contains(readWrite, "var<storage, read_write> points: array<f32>;") {
		t.Errorf("expected read_write storage declaration, got:\n%s", readWrite)
	}
}

// =============================================================================
// Compile Tests - Statements
// =============================================================================

func TestCompile_DiscardInFragment(t *testing.T) {
	module := &ir.Module{
		Types: []ir.Type{
			{Inner: ir.VectorType{Size: ir.Vec4, Scalar: scalarF32}},
		},
		EntryPoints: []ir.EntryPoint{
			{Name: "fs_main", Stage: ir.StageFragment, Function: ir.Function{
				Name:   "fs_main",
				Result: &ir.FunctionResult{Type: 0, Binding: locBinding(0)},
				Expressions: []ir.Expression{
					{Kind: ir.Literal{Value: ir.LiteralBool(true)}},
					{Kind: ir.ExprZeroValue{Type: 0}},
				},
				ExpressionTypes: []ir.TypeResolution{
					{Value: ir.ScalarType{Kind: ir.ScalarBool, Width: 1}},
					typeRes(0),
				},
				Body: []ir.Statement{
					{Kind: ir.StmtEmit{Range: ir.Range{Start: 0, End: 1}}},
					{Kind: ir.StmtIf{Condition: 0, Accept: ir.Block{{Kind: ir.StmtKill{}}}}},
					{Kind: ir.StmtEmit{Range: ir.Range{Start: 1, End: 2}}},
					{Kind: ir.StmtReturn{Value: exprHandle(1)}},
				},
			}},
		},
	}

	want := `@fragment
fn fs_main() -> @location(0) vec4<f32> {
    if (true) {
        discard;
    }
    return vec4<f32>();
}
`

	source, err := Compile(module, Options{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if source != want {
		t.Errorf("Compile() output mismatch\ngot:\n%s\nwant:\n%s", source, want)
	}
}

func TestCompile_CountedLoop(t *testing.T) {
	functionPtr := func(base ir.TypeHandle) ir.TypeResolution {
		return ir.TypeResolution{Value: ir.PointerType{Base: base, Space: ir.SpaceFunction}}
	}

	module := &ir.Module{
		Types: []ir.Type{
			{Inner: scalarF32},
			{Inner: scalarU32},
		},
		EntryPoints: []ir.EntryPoint{
			{Name: "cs_main", Stage: ir.StageCompute, Workgroup: [3]uint32{64, 1, 1}, Function: ir.Function{
				Name: "cs_main",
				LocalVars: []ir.LocalVariable{
					{Name: "acc", Type: 0},
					{Name: "i", Type: 1},
				},
				Expressions: []ir.Expression{
					{Kind: ir.ExprLocalVariable{Variable: 0}},
					{Kind: ir.Literal{Value: ir.LiteralF32(0)}},
					{Kind: ir.ExprLocalVariable{Variable: 1}},
					{Kind: ir.Literal{Value: ir.LiteralU32(0)}},
					{Kind: ir.ExprLoad{Pointer: 2}},
					{Kind: ir.Literal{Value: ir.LiteralU32(4)}},
					{Kind: ir.ExprBinary{Op: ir.BinaryLess, Left: 4, Right: 5}},
					{Kind: ir.ExprLoad{Pointer: 0}},
					{Kind: ir.Literal{Value: ir.LiteralF32(1)}},
					{Kind: ir.ExprBinary{Op: ir.BinaryAdd, Left: 7, Right: 8}},
					{Kind: ir.ExprLoad{Pointer: 2}},
					{Kind: ir.Literal{Value: ir.LiteralU32(1)}},
					{Kind: ir.ExprBinary{Op: ir.BinaryAdd, Left: 10, Right: 11}},
				},
				ExpressionTypes: []ir.TypeResolution{
					functionPtr(0),
					{Value: scalarF32},
					functionPtr(1),
					{Value: scalarU32},
					{Value: scalarU32},
					{Value: scalarU32},
					{Value: ir.ScalarType{Kind: ir.ScalarBool, Width: 1}},
					{Value: scalarF32},
					{Value: scalarF32},
					{Value: scalarF32},
					{Value: scalarU32},
					{Value: scalarU32},
					{Value: scalarU32},
				},
				Body: []ir.Statement{
					{Kind: ir.StmtEmit{Range: ir.Range{Start: 0, End: 4}}},
					{Kind: ir.StmtStore{Pointer: 0, Value: 1}},
					{Kind: ir.StmtStore{Pointer: 2, Value: 3}},
					{Kind: ir.StmtLoop{
						Body: ir.Block{
							{Kind: ir.StmtEmit{Range: ir.Range{Start: 4, End: 7}}},
							{Kind: ir.StmtIf{Condition: 6, Reject: ir.Block{{Kind: ir.StmtBreak{}}}}},
							{Kind: ir.StmtEmit{Range: ir.Range{Start: 7, End: 10}}},
							{Kind: ir.StmtStore{Pointer: 0, Value: 9}},
						},
						Continuing: ir.Block{
							{Kind: ir.StmtEmit{Range: ir.Range{Start: 10, End: 13}}},
							{Kind: ir.StmtStore{Pointer: 2, Value: 12}},
						},
					}},
					{Kind: ir.StmtReturn{}},
				},
			}},
		},
	}

	want := `@compute @workgroup_size(64, 1, 1)
fn cs_main() {
    var acc: f32;
    var i: u32;
    acc = 0.0;
    i = 0u;
    loop {
        if ((i < 4u)) {
        } else {
            break;
        }
        acc = (acc + 1.0);
        continuing {
            i = (i + 1u);
        }
    }
    return;
}
`

	source, err := Compile(module, Options{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if source != want {
		t.Errorf("Compile() output mismatch\ngot:\n%s\nwant:\n%s", source, want)
	}
}

// =============================================================================
// Compile Tests - Expression Baking
// =============================================================================

func TestCompile_BakesSharedExpression(t *testing.T) {
	module := &ir.Module{
		Types: []ir.Type{
			{Inner: ir.VectorType{Size: ir.Vec4, Scalar: scalarF32}},
		},
		EntryPoints: []ir.EntryPoint{
			{Name: "vs_main", Stage: ir.StageVertex, Function: ir.Function{
				Name:   "vs_main",
				Result: &ir.FunctionResult{Type: 0, Binding: builtinBinding(ir.BuiltinPosition)},
				Expressions: []ir.Expression{
					{Kind: ir.Literal{Value: ir.LiteralF32(2)}},
					{Kind: ir.Literal{Value: ir.LiteralF32(3)}},
					{Kind: ir.ExprBinary{Op: ir.BinaryMultiply, Left: 0, Right: 1}},
					{Kind: ir.ExprBinary{Op: ir.BinaryAdd, Left: 2, Right: 2}},
					{Kind: ir.ExprSplat{Size: ir.Vec4, Value: 3}},
				},
				ExpressionTypes: []ir.TypeResolution{
					{Value: scalarF32},
					{Value: scalarF32},
					{Value: scalarF32},
					{Value: scalarF32},
					typeRes(0),
				},
				Body: []ir.Statement{
					{Kind: ir.StmtEmit{Range: ir.Range{Start: 0, End: 5}}},
					{Kind: ir.StmtReturn{Value: exprHandle(4)}},
				},
			}},
		},
	}

	want := `@vertex
fn vs_main() -> @builtin(position) vec4<f32> {
    let _e2 = (2.0 * 3.0);
    return vec4<f32>((_e2 + _e2));
}
`

	source, err := Compile(module, Options{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if source != want {
		t.Errorf("Compile() output mismatch\ngot:\n%s\nwant:\n%s", source, want)
	}
}

func TestCompile_SharedLeafStaysInline(t *testing.T) {
	// A literal used twice reads fine repeated; only computed values
	// earn a let binding.
	module := &ir.Module{
		Types: []ir.Type{
			{Inner: ir.VectorType{Size: ir.Vec2, Scalar: scalarF32}},
		},
		EntryPoints: []ir.EntryPoint{
			{Name: "vs_main", Stage: ir.StageVertex, Function: ir.Function{
				Name:   "vs_main",
				Result: &ir.FunctionResult{Type: 0, Binding: locBinding(0)},
				Expressions: []ir.Expression{
					{Kind: ir.Literal{Value: ir.LiteralF32(5)}},
					{Kind: ir.ExprCompose{Type: 0, Components: []ir.ExpressionHandle{0, 0}}},
				},
				ExpressionTypes: []ir.TypeResolution{
					{Value: scalarF32},
					typeRes(0),
				},
				Body: []ir.Statement{
					{Kind: ir.StmtEmit{Range: ir.Range{Start: 0, End: 2}}},
					{Kind: ir.StmtReturn{Value: exprHandle(1)}},
				},
			}},
		},
	}

	source, err := Compile(module, Options{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if strings.Contains(source, "let ") {
		t.Errorf("literal should not be baked, got:\n%s", source)
	}
	if !strings.Contains(source, "vec2<f32>(5.0, 5.0)") {
		t.Errorf("expected inline literals, got:\n%s", source)
	}
}

// =============================================================================
// Compile Tests - Naming
// =============================================================================

func TestCompile_EscapesReservedMemberName(t *testing.T) {
	module := &ir.Module{
		Types: []ir.Type{
			{Inner: scalarF32},
			{Name: "Config", Inner: ir.StructType{
				Members: []ir.StructMember{
					{Name: "const", Type: 0},
				},
				Span: 16,
			}},
		},
		GlobalVariables: []ir.GlobalVariable{
			{Name: "config", Space: ir.SpaceUniform, Binding: &ir.ResourceBinding{Group: 0, Binding: 0}, Type: 1},
		},
	}

	source, err := Compile(module, Options{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if !strings.Contains(source, "_const: f32,") {
		t.Errorf("expected escaped member name, got:\n%s", source)
	}
}

func TestCompile_DuplicateArgumentNames(t *testing.T) {
	module := &ir.Module{
		Types: []ir.Type{
			{Inner: ir.VectorType{Size: ir.Vec4, Scalar: scalarF32}},
			{Name: "A", Inner: ir.StructType{
				Members: []ir.StructMember{{Name: "p", Type: 0, Binding: locBinding(0)}},
				Span:    16,
			}},
			{Name: "B", Inner: ir.StructType{
				Members: []ir.StructMember{{Name: "q", Type: 0, Binding: locBinding(1)}},
				Span:    16,
			}},
		},
		EntryPoints: []ir.EntryPoint{
			{Name: "vs_main", Stage: ir.StageVertex, Function: ir.Function{
				Name: "vs_main",
				Arguments: []ir.FunctionArgument{
					{Name: "model", Type: 1},
					{Name: "model", Type: 2},
				},
				Result: &ir.FunctionResult{Type: 0, Binding: builtinBinding(ir.BuiltinPosition)},
				Expressions: []ir.Expression{
					{Kind: ir.ExprFunctionArgument{Index: 0}},
					{Kind: ir.ExprAccessIndex{Base: 0, Index: 0}},
				},
				ExpressionTypes: []ir.TypeResolution{
					typeRes(1),
					typeRes(0),
				},
				Body: []ir.Statement{
					{Kind: ir.StmtEmit{Range: ir.Range{Start: 0, End: 2}}},
					{Kind: ir.StmtReturn{Value: exprHandle(1)}},
				},
			}},
		},
	}

	source, err := Compile(module, Options{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if !strings.Contains(source, "model: A, model_1: B") {
		t.Errorf("expected deduplicated argument names, got:\n%s", source)
	}
}

func TestCompile_TextureSample(t *testing.T) {
	module := &ir.Module{
		Types: []ir.Type{
			{Inner: ir.ImageType{Dim: ir.Dim2D, Class: ir.ImageClassSampled}},
			{Inner: ir.SamplerType{}},
			{Inner: ir.VectorType{Size: ir.Vec2, Scalar: scalarF32}},
			{Inner: ir.VectorType{Size: ir.Vec4, Scalar: scalarF32}},
		},
		GlobalVariables: []ir.GlobalVariable{
			{Name: "material_tex", Space: ir.SpaceHandle, Binding: &ir.ResourceBinding{Group: 0, Binding: 0}, Type: 0},
			{Name: "material_sam", Space: ir.SpaceHandle, Binding: &ir.ResourceBinding{Group: 0, Binding: 1}, Type: 1},
		},
		EntryPoints: []ir.EntryPoint{
			{Name: "fs_main", Stage: ir.StageFragment, Function: ir.Function{
				Name:      "fs_main",
				Arguments: []ir.FunctionArgument{{Name: "uv", Type: 2, Binding: locBinding(0)}},
				Result:    &ir.FunctionResult{Type: 3, Binding: locBinding(0)},
				Expressions: []ir.Expression{
					{Kind: ir.ExprGlobalVariable{Variable: 0}},
					{Kind: ir.ExprGlobalVariable{Variable: 1}},
					{Kind: ir.ExprFunctionArgument{Index: 0}},
					{Kind: ir.ExprImageSample{Image: 0, Sampler: 1, Coordinate: 2, Level: ir.SampleLevelAuto{}}},
				},
				ExpressionTypes: []ir.TypeResolution{
					typeRes(0),
					typeRes(1),
					typeRes(2),
					typeRes(3),
				},
				Body: []ir.Statement{
					{Kind: ir.StmtEmit{Range: ir.Range{Start: 0, End: 4}}},
					{Kind: ir.StmtReturn{Value: exprHandle(3)}},
				},
			}},
		},
	}

	source, err := Compile(module, Options{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if !strings.Contains(source, "textureSample(material_tex, material_sam, uv)") {
		t.Errorf("expected textureSample call, got:\n%s", source)
	}
}
