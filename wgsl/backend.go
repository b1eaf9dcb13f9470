package wgsl

import (
	"fmt"

	"github.com/gogpu/naga/ir"
)

// Options configures WGSL code generation.
type Options struct {
	// ReadWrite marks storage globals the module writes to. IR globals
	// do not carry an access mode, so the caller supplies one; globals
	// absent from the map are declared read-only.
	ReadWrite map[ir.GlobalVariableHandle]bool
}

// Compile generates WGSL source code from an IR module.
// Output is deterministic: the same module yields the same bytes.
func Compile(module *ir.Module, options Options) (string, error) {
	w := newWriter(module, &options)

	if err := w.writeModule(); err != nil {
		return "", fmt.Errorf("wgsl: %w", err)
	}

	return w.String(), nil
}
