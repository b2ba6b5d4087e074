// Package render turns resolved crate views and their synthesized
// conditionals into build-description file text.
//
// Rendering is a pure function of its inputs: no filesystem access, no
// clock. Every generated file starts with the fixed generation marker and
// carries no other generation metadata, so identical inputs produce
// byte-identical output. One template exists per crate kind (library,
// binary, proc-macro, build-script, unsupported) plus the aggregate alias
// file and the remote-mode aggregator.
package render
