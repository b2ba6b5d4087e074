package resolver

import (
	"strings"

	"github.com/vk/bzlcrate/internal/metadata"
)

// activation computes the feature-activation fixed point for one target
// triple. All growth is monotonic: packages, features, optional-dependency
// enables and edges only ever switch on, so sweeping until nothing changes
// reaches the least fixed point.
type activation struct {
	model  *metadata.Model
	triple string
	// matches answers whether a predicate source string admits this triple.
	// Predicates are validated before activation starts, so lookups cannot
	// fail here.
	matches func(target string) bool

	roots      map[int]bool
	active     []bool
	feats      []map[string]bool
	optEnabled []map[string]bool
}

func newActivation(model *metadata.Model, triple string, matches func(string) bool) *activation {
	n := model.Len()
	a := &activation{
		model:      model,
		triple:     triple,
		matches:    matches,
		roots:      make(map[int]bool),
		active:     make([]bool, n),
		feats:      make([]map[string]bool, n),
		optEnabled: make([]map[string]bool, n),
	}
	for i := 0; i < n; i++ {
		a.feats[i] = make(map[string]bool)
		a.optEnabled[i] = make(map[string]bool)
	}
	return a
}

// seed activates the workspace roots with their default and
// override-requested features.
func (a *activation) seed() {
	for _, i := range a.model.Roots() {
		a.roots[i] = true
		a.activate(i)
	}
}

// run sweeps to the fixed point.
func (a *activation) run() {
	for a.step() {
	}
}

// step performs one full sweep over the active graph and reports whether any
// new activation occurred. A false return means the state is a fixed point.
func (a *activation) step() bool {
	changed := false
	for i := 0; i < a.model.Len(); i++ {
		if !a.active[i] {
			continue
		}
		p := a.model.Package(i)

		// Edges first: an active edge pulls in the dependency package with
		// its default features.
		for _, d := range p.Deps {
			if !a.edgeActive(i, d) {
				continue
			}
			j, ok := a.model.Lookup(d.Name, d.Version)
			if !ok {
				continue // reported during validation
			}
			if a.activate(j) {
				changed = true
			}
		}

		// Then feature implications of every active feature.
		for f := range a.feats[i] {
			for _, implied := range p.Features[f] {
				if a.applyImplication(i, p, implied) {
					changed = true
				}
			}
		}
	}
	return changed
}

// activate switches a package on, seeding its default feature and any
// override-requested features. Returns true when the package was inactive.
func (a *activation) activate(i int) bool {
	changed := false
	if !a.active[i] {
		a.active[i] = true
		changed = true
	}
	p := a.model.Package(i)
	if _, ok := p.Features["default"]; ok {
		if a.addFeature(i, "default") {
			changed = true
		}
	}
	for _, f := range p.ExtraFeatures {
		if a.addFeature(i, f) {
			changed = true
		}
	}
	return changed
}

func (a *activation) addFeature(i int, f string) bool {
	if a.feats[i][f] {
		return false
	}
	a.feats[i][f] = true
	return true
}

// applyImplication interprets one entry of a feature's enable list:
//
//	"feat"       activates a sibling feature, or enables the optional
//	             dependency of that name (legacy form)
//	"dep:name"   enables the optional dependency "name"
//	"name/feat"  enables dependency "name" and activates "feat" on it
//	"name?/feat" activates "feat" on "name" only where already enabled
func (a *activation) applyImplication(i int, p *metadata.Package, implied string) bool {
	if rest, ok := strings.CutPrefix(implied, "dep:"); ok {
		return a.enableOptional(i, p, rest)
	}

	if name, feat, ok := strings.Cut(implied, "/"); ok {
		changed := false
		weak := strings.HasSuffix(name, "?")
		name = strings.TrimSuffix(name, "?")
		if !weak && a.enableOptional(i, p, name) {
			changed = true
		}
		// Forward the feature to every active matching dependency package.
		for _, d := range p.Deps {
			if d.Name != name || !a.edgeActive(i, d) {
				continue
			}
			if j, ok := a.model.Lookup(d.Name, d.Version); ok && a.active[j] && a.addFeature(j, feat) {
				changed = true
			}
		}
		return changed
	}

	if _, declared := p.Features[implied]; declared {
		return a.addFeature(i, implied)
	}
	return a.enableOptional(i, p, implied)
}

// enableOptional marks an optional dependency of p as enabled, if p declares
// one by that name.
func (a *activation) enableOptional(i int, p *metadata.Package, name string) bool {
	if a.optEnabled[i][name] {
		return false
	}
	for _, d := range p.Deps {
		if d.Optional && d.Name == name {
			a.optEnabled[i][name] = true
			return true
		}
	}
	return false
}

// edgeActive evaluates one declared edge under the current state: platform
// predicate, optionality and feature gate must all admit it. Dev edges count
// only for workspace roots.
func (a *activation) edgeActive(i int, d metadata.Dependency) bool {
	if d.Kind == metadata.DepDev && !a.roots[i] {
		return false
	}
	if d.Target != "" && !a.matches(d.Target) {
		return false
	}
	if d.Optional && !a.optEnabled[i][d.Name] {
		return false
	}
	if d.FeatureGate != "" && !a.feats[i][d.FeatureGate] {
		return false
	}
	return true
}

// featureSet returns the sorted active features of a package.
func (a *activation) featureSet(i int) []string {
	return sortedKeys(a.feats[i])
}
