// Package wgsl provides a WGSL text backend for naga IR modules.
//
// The writer turns a module produced by shader lowering into WGSL
// source. Output is deterministic: identical modules produce identical
// bytes, which makes the text usable as a cache key and in golden
// tests.
//
// # Expression Placement
//
// IR expressions form a DAG. Values referenced once are spelled inline
// at their use site. Values referenced more than once materialize as
// let bindings named _e<N> when their emit range is written, so shared
// work is stated once in the output.
//
// # Reserved Words
//
// Identifier names that collide with WGSL keywords or predeclared type
// names are escaped with an underscore prefix.
package wgsl
