package resolver

import (
	"github.com/vk/bzlcrate/internal/metadata"
)

// ResolvedDep is one dependency edge of a crate view, annotated with the
// minimal triple subset under which it applies.
type ResolvedDep struct {
	// PkgIndex is the arena index of the dependency package.
	PkgIndex int
	Name     string
	Version  string
	Kind     metadata.DepKind
	// ProcMacro marks edges to proc-macro crates; the build tool compiles
	// those for the host toolchain and lists them separately.
	ProcMacro bool
	// Always is set when the edge is active under every requested triple.
	Always bool
	// Triples is the sorted subset of requested triples the edge is active
	// under. Nil when Always is set.
	Triples []string
}

// CrateView is the fully resolved, per-package output of the resolver for
// one requested triple set.
type CrateView struct {
	// Index is the package's arena index in the model.
	Index int
	Pkg   *metadata.Package
	Kind  metadata.CrateKind

	// Omitted is set for packages the target build tool has no rule for;
	// the renderer emits an explicit annotation instead of a build rule.
	Omitted    bool
	OmitReason string

	// ActiveTriples is the sorted set of requested triples under which the
	// package is reachable at all.
	ActiveTriples []string

	// Features is the active feature set when it is identical across all
	// active triples; otherwise nil, with FeaturesByTriple populated.
	Features         []string
	FeaturesByTriple map[string][]string

	// Deps lists the merged, classified dependency edges, sorted by
	// (name, version, kind).
	Deps []ResolvedDep

	// RootDependency marks direct dependencies of a workspace root; the
	// aggregate build file exposes aliases only for those.
	RootDependency bool
}

// ID returns the viewed package's identity.
func (v *CrateView) ID() string {
	return v.Pkg.ID()
}

// DepsOfKind returns the view's edges of one dependency kind.
func (v *CrateView) DepsOfKind(kind metadata.DepKind) []ResolvedDep {
	var out []ResolvedDep
	for _, d := range v.Deps {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}
