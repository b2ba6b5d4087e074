// Package metadata holds the in-memory model of the resolved dependency
// graph: packages, their declared dependency edges with platform and feature
// conditions, resolved versions, checksums and license expressions.
//
// The model is built once per run from the resolved-metadata JSON document
// produced by the upstream resolver and is read-only afterwards. Packages are
// stored in an arena and referenced by stable integer indices; the resolver
// walks the arena rather than chasing pointers.
package metadata
