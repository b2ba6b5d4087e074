package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vk/bzlcrate/internal/ctxlog"
	"github.com/vk/bzlcrate/internal/diag"
	"github.com/vk/bzlcrate/internal/metadata"
	"github.com/vk/bzlcrate/internal/platform"
)

// Resolver computes CrateViews for every package over a requested triple set.
type Resolver struct {
	model   *metadata.Model
	matcher *platform.Matcher
	triples []string
}

// New creates a resolver. An empty triple list means every triple in the
// matcher's catalog.
func New(model *metadata.Model, matcher *platform.Matcher, triples []string) *Resolver {
	if len(triples) == 0 {
		triples = matcher.Catalog().Names()
	} else {
		sorted := make([]string, len(triples))
		copy(sorted, triples)
		sort.Strings(sorted)
		triples = sorted
	}
	return &Resolver{model: model, matcher: matcher, triples: triples}
}

// Triples returns the sorted requested triple set.
func (r *Resolver) Triples() []string {
	return r.triples
}

// Resolve validates the model, runs per-triple activation and merges the
// results into one CrateView per reachable package, sorted by identity.
// A nil return means fatal diagnostics were collected.
func (r *Resolver) Resolve(ctx context.Context, diags *diag.Collector) []*CrateView {
	logger := ctxlog.FromContext(ctx)

	r.validatePredicates(diags)
	detectCycles(r.model, diags)
	if diags.HasFatal() {
		return nil
	}
	logger.Debug("Model validated.", "packages", r.model.Len(), "triples", len(r.triples))

	// Activation per requested triple. Each pass is independent of the
	// others; results land in triple order for a deterministic merge.
	acts := make([]*activation, len(r.triples))
	for ti, triple := range r.triples {
		a := newActivation(r.model, triple, r.matchFunc(triple))
		a.seed()
		a.run()
		acts[ti] = a
	}

	views := r.merge(acts, diags)
	logger.Debug("Resolution complete.", "views", len(views))
	return views
}

// matchFunc returns a predicate matcher specialized to one triple. Predicate
// validation has already run, so an error here would indicate a predicate
// string appearing from nowhere; it is treated as non-matching.
func (r *Resolver) matchFunc(triple string) func(string) bool {
	return func(target string) bool {
		ok, err := r.matcher.Matches(target, triple)
		if err != nil {
			return false
		}
		return ok
	}
}

// validatePredicates parses every distinct predicate string in the model,
// attributing malformed expressions to the owning package. All failures are
// collected; none is recoverable.
func (r *Resolver) validatePredicates(diags *diag.Collector) {
	for i := 0; i < r.model.Len(); i++ {
		p := r.model.Package(i)
		seen := make(map[string]bool)
		for _, d := range p.Deps {
			if d.Target == "" || seen[d.Target] {
				continue
			}
			seen[d.Target] = true
			if _, err := r.matcher.MatchingTriples(d.Target); err != nil {
				diags.Fatalf(p.ID(), "%v", err)
			}
		}
	}
}

// merge folds the per-triple activations into crate views.
func (r *Resolver) merge(acts []*activation, diags *diag.Collector) []*CrateView {
	var views []*CrateView
	viewByIndex := make(map[int]*CrateView)

	for i := 0; i < r.model.Len(); i++ {
		p := r.model.Package(i)
		if p.Skipped {
			continue
		}

		var activeTriples []string
		for ti, a := range acts {
			if a.active[i] {
				activeTriples = append(activeTriples, r.triples[ti])
			}
		}
		if len(activeTriples) == 0 {
			continue // unreachable under every requested triple
		}

		v := &CrateView{
			Index:         i,
			Pkg:           p,
			Kind:          p.Kind(),
			ActiveTriples: activeTriples,
		}
		if v.Kind == metadata.KindUnsupported {
			v.Omitted = true
			v.OmitReason = omitReason(p)
			diags.Warnf(p.ID(), "omitted from generation: %s", v.OmitReason)
		}

		r.mergeFeatures(v, acts)
		r.mergeDeps(v, acts)

		views = append(views, v)
		viewByIndex[i] = v
	}

	// Aliases are exposed only for direct dependencies of workspace roots.
	for _, root := range r.model.Roots() {
		rootView, ok := viewByIndex[root]
		if !ok {
			continue
		}
		for _, d := range rootView.Deps {
			if d.Kind != metadata.DepNormal {
				continue
			}
			if dv, ok := viewByIndex[d.PkgIndex]; ok {
				dv.RootDependency = true
			}
		}
	}

	sort.Slice(views, func(a, b int) bool { return views[a].ID() < views[b].ID() })
	return views
}

// mergeFeatures collapses per-triple feature sets to a single list when they
// agree everywhere the package is active.
func (r *Resolver) mergeFeatures(v *CrateView, acts []*activation) {
	byTriple := make(map[string][]string, len(v.ActiveTriples))
	uniform := true
	var first []string
	for ti, a := range acts {
		if !a.active[v.Index] {
			continue
		}
		fs := a.featureSet(v.Index)
		byTriple[r.triples[ti]] = fs
		if first == nil {
			first = fs
		} else if strings.Join(first, "\x00") != strings.Join(fs, "\x00") {
			uniform = false
		}
	}
	if uniform {
		v.Features = first
		return
	}
	v.FeaturesByTriple = byTriple
}

// mergeDeps classifies each edge by the exact triple subset it is active
// under. Multiple declared edges to the same package and kind (differing
// predicates) merge into one classified edge.
func (r *Resolver) mergeDeps(v *CrateView, acts []*activation) {
	p := v.Pkg
	type depKey struct {
		name, version string
		kind          metadata.DepKind
	}
	tripleSets := make(map[depKey]map[string]bool)
	var order []depKey

	for _, d := range p.Deps {
		key := depKey{d.Name, d.Version, d.Kind}
		if _, ok := tripleSets[key]; !ok {
			tripleSets[key] = make(map[string]bool)
			order = append(order, key)
		}
		for ti, a := range acts {
			if a.active[v.Index] && a.edgeActive(v.Index, d) {
				tripleSets[key][r.triples[ti]] = true
			}
		}
	}

	for _, key := range order {
		set := tripleSets[key]
		if len(set) == 0 {
			continue // excluded under every requested triple
		}
		j, ok := r.model.Lookup(key.name, key.version)
		if !ok {
			continue // reported during validation
		}
		dep := ResolvedDep{
			PkgIndex:  j,
			Name:      key.name,
			Version:   key.version,
			Kind:      key.kind,
			ProcMacro: r.model.Package(j).Kind() == metadata.KindProcMacro,
		}
		if len(set) == len(r.triples) {
			dep.Always = true
		} else {
			dep.Triples = sortedKeys(set)
		}
		v.Deps = append(v.Deps, dep)
	}

	sort.Slice(v.Deps, func(a, b int) bool {
		da, db := v.Deps[a], v.Deps[b]
		if da.Name != db.Name {
			return da.Name < db.Name
		}
		if da.Version != db.Version {
			return da.Version < db.Version
		}
		return da.Kind < db.Kind
	})
}

// omitReason explains why no build rule exists for a package.
func omitReason(p *metadata.Package) string {
	var kinds []string
	seen := make(map[string]bool)
	for _, t := range p.Targets {
		if !seen[t.Kind] {
			seen[t.Kind] = true
			kinds = append(kinds, t.Kind)
		}
	}
	if len(kinds) == 0 {
		return "package declares no buildable targets"
	}
	sort.Strings(kinds)
	return fmt.Sprintf("no build rule for declared target kind(s): %s", strings.Join(kinds, ", "))
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
