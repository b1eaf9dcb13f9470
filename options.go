package shade

// CompileOption configures one Compile call.
//
// Example:
//
//	// Default: validated, unlabeled
//	m, err := shade.Compile(s, out)
//
//	// Skip IR validation on a hot path
//	m, err := shade.Compile(s, out, shade.WithValidation(false))
type CompileOption func(*compileOptions)

// compileOptions holds optional configuration for Compile.
type compileOptions struct {
	label    string
	validate bool
}

// defaultCompileOptions returns the default compile options.
func defaultCompileOptions() compileOptions {
	return compileOptions{validate: true}
}

// WithLabel attaches a debug label to the compiled module. The label shows
// up in logs and on the GPU objects a pipeline cache creates from the
// module; it never enters the fingerprint.
func WithLabel(label string) CompileOption {
	return func(o *compileOptions) {
		o.label = label
	}
}

// WithValidation toggles IR validation of the lowered module. Validation is
// on by default; a failure means the lowering itself is broken and panics
// with an error wrapping ErrInternal rather than returning, since no caller
// input can make it fail.
func WithValidation(enabled bool) CompileOption {
	return func(o *compileOptions) {
		o.validate = enabled
	}
}
