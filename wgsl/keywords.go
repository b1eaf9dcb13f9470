package wgsl

import "strings"

// wgslKeywords contains the WGSL keywords and predeclared type names
// that cannot be used as identifiers.
var wgslKeywords = map[string]struct{}{
	// Declarations and control flow
	"alias": {}, "break": {}, "case": {}, "const": {}, "const_assert": {},
	"continue": {}, "continuing": {}, "default": {}, "diagnostic": {},
	"discard": {}, "else": {}, "enable": {}, "false": {}, "fn": {},
	"for": {}, "if": {}, "let": {}, "loop": {}, "override": {},
	"return": {}, "struct": {}, "switch": {}, "true": {}, "var": {},
	"while": {},

	// Scalar and composite types
	"bool": {}, "f16": {}, "f32": {}, "i32": {}, "u32": {},
	"vec2": {}, "vec3": {}, "vec4": {},
	"mat2x2": {}, "mat2x3": {}, "mat2x4": {},
	"mat3x2": {}, "mat3x3": {}, "mat3x4": {},
	"mat4x2": {}, "mat4x3": {}, "mat4x4": {},
	"array": {}, "atomic": {}, "ptr": {},

	// Texture and sampler types
	"sampler": {}, "sampler_comparison": {},
	"texture_1d": {}, "texture_2d": {}, "texture_2d_array": {},
	"texture_3d": {}, "texture_cube": {}, "texture_cube_array": {},
	"texture_multisampled_2d": {},
	"texture_storage_1d":      {}, "texture_storage_2d": {},
	"texture_storage_2d_array": {}, "texture_storage_3d": {},
	"texture_depth_2d": {}, "texture_depth_2d_array": {},
	"texture_depth_cube": {}, "texture_depth_cube_array": {},
	"texture_depth_multisampled_2d": {},
}

// isKeyword checks if a name is a WGSL keyword or predeclared type name.
func isKeyword(name string) bool {
	_, ok := wgslKeywords[name]
	return ok
}

// escapeKeyword escapes a name if it cannot be used as a WGSL
// identifier. Reserved names get an underscore prefix.
func escapeKeyword(name string) string {
	if name == "" {
		return "_unnamed"
	}
	if isKeyword(name) {
		return "_" + name
	}
	// A bare underscore and the __ prefix are not valid identifiers.
	if name == "_" || strings.HasPrefix(name, "__") {
		return "x" + name
	}
	return name
}
