package metadata

import (
	"fmt"
	"sort"
)

// SourceKind says where a package's sources come from.
type SourceKind string

const (
	SourceWorkspace SourceKind = "workspace"
	SourceRegistry  SourceKind = "registry"
	SourceGit       SourceKind = "git"
)

// DepKind classifies a dependency edge.
type DepKind string

const (
	DepNormal DepKind = "normal"
	DepBuild  DepKind = "build"
	DepDev    DepKind = "dev"
)

// CrateKind is the role of a package's primary compiled unit.
type CrateKind string

const (
	KindLibrary     CrateKind = "library"
	KindBinary      CrateKind = "binary"
	KindProcMacro   CrateKind = "proc-macro"
	KindUnsupported CrateKind = "unsupported"
)

// Dependency is one declared edge from the owning package to another package
// in the model.
type Dependency struct {
	Name    string
	Version string
	Kind    DepKind
	// Target is the platform predicate source string gating this edge, or
	// empty when the edge is unconditional.
	Target string
	// FeatureGate names a feature of the owning package that must be active
	// for this edge to apply, or empty.
	FeatureGate string
	// Optional edges activate only when a feature enables them by name.
	Optional bool
}

// Target is one buildable unit declared by a package.
type Target struct {
	Name string
	// Kind is the raw declared kind: "lib", "bin", "proc-macro",
	// "custom-build", or anything else (treated as unsupported).
	Kind string
	// CrateRoot is the package-relative path of the unit's root source file.
	CrateRoot string
	Edition   string
}

// Package is one resolved package and everything declared about it.
type Package struct {
	Name     string
	Version  string
	Source   SourceKind
	Checksum string
	License  string
	Edition  string
	// Features maps a feature name to the features and optional dependencies
	// it enables.
	Features map[string][]string
	Deps     []Dependency
	Targets  []Target

	// Fields below are populated by the override layer; the raw document
	// never carries them.
	ExtraFeatures    []string
	RustcFlags       []string
	LinkFlags        []string
	BuildScriptEnv   map[string]string
	CfgDefines       []string
	ExtraSourceRoots []string
	// AdditionalContent is verbatim text appended to the generated build
	// file, loaded by the settings layer so rendering stays free of file I/O.
	AdditionalContent string
	// Skipped packages are excluded from resolution; any surviving edge to
	// one is a fatal inconsistency.
	Skipped bool
}

// ID returns the canonical "name-version" identity used in diagnostics and
// output paths.
func (p *Package) ID() string {
	return fmt.Sprintf("%s-%s", p.Name, p.Version)
}

// Kind derives the package's crate kind from its declared targets.
func (p *Package) Kind() CrateKind {
	var hasLib, hasBin bool
	for _, t := range p.Targets {
		switch t.Kind {
		case "proc-macro":
			return KindProcMacro
		case "lib":
			hasLib = true
		case "bin":
			hasBin = true
		}
	}
	switch {
	case hasLib:
		return KindLibrary
	case hasBin:
		return KindBinary
	default:
		return KindUnsupported
	}
}

// LibTarget returns the library (or proc-macro) target, if any.
func (p *Package) LibTarget() (Target, bool) {
	for _, t := range p.Targets {
		if t.Kind == "lib" || t.Kind == "proc-macro" {
			return t, true
		}
	}
	return Target{}, false
}

// BinTargets returns the binary targets in declaration order.
func (p *Package) BinTargets() []Target {
	var bins []Target
	for _, t := range p.Targets {
		if t.Kind == "bin" {
			bins = append(bins, t)
		}
	}
	return bins
}

// BuildScriptTarget returns the custom build script target, if any.
func (p *Package) BuildScriptTarget() (Target, bool) {
	for _, t := range p.Targets {
		if t.Kind == "custom-build" {
			return t, true
		}
	}
	return Target{}, false
}

// HasBuildScript reports whether the package declares a custom build script.
func (p *Package) HasBuildScript() bool {
	_, ok := p.BuildScriptTarget()
	return ok
}

// Model is the arena of all packages in the resolved graph.
type Model struct {
	packages []*Package
	index    map[string]int
	roots    []int
}

// NewModel builds a model from the given packages. Packages are sorted by
// identity so arena indices are stable across runs regardless of document
// order; workspace packages become the resolution roots.
func NewModel(packages []*Package) (*Model, error) {
	sorted := make([]*Package, len(packages))
	copy(sorted, packages)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID() < sorted[j].ID() })

	m := &Model{packages: sorted, index: make(map[string]int, len(sorted))}
	for i, p := range sorted {
		if _, dup := m.index[p.ID()]; dup {
			return nil, fmt.Errorf("duplicate package in metadata: %s", p.ID())
		}
		m.index[p.ID()] = i
		if p.Source == SourceWorkspace {
			m.roots = append(m.roots, i)
		}
	}
	return m, nil
}

// Len returns the number of packages in the arena.
func (m *Model) Len() int {
	return len(m.packages)
}

// Package returns the package at the given arena index.
func (m *Model) Package(i int) *Package {
	return m.packages[i]
}

// Lookup finds a package by name and exact version.
func (m *Model) Lookup(name, version string) (int, bool) {
	i, ok := m.index[name+"-"+version]
	return i, ok
}

// Roots returns arena indices of the workspace packages, excluding any that
// an override has skipped.
func (m *Model) Roots() []int {
	var out []int
	for _, i := range m.roots {
		if !m.packages[i].Skipped {
			out = append(out, i)
		}
	}
	return out
}
