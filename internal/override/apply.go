package override

import (
	"context"

	"github.com/vk/bzlcrate/internal/ctxlog"
	"github.com/vk/bzlcrate/internal/diag"
	"github.com/vk/bzlcrate/internal/metadata"
	"github.com/vk/bzlcrate/internal/settings"
)

// Apply folds the override table into the model, in declaration order.
// The model is mutated in place; it is not yet shared at this stage of the
// pipeline. Structural problems (override of an unknown package, an edge
// surviving into a skipped package) are reported as fatal diagnostics.
func Apply(ctx context.Context, model *metadata.Model, overrides []settings.Override, diags *diag.Collector) {
	logger := ctxlog.FromContext(ctx)

	for _, o := range overrides {
		idx, ok := model.Lookup(o.Name, o.Version)
		if !ok {
			// A stale override is a misconfiguration, not something to skip
			// over quietly.
			diags.Fatalf(o.ID(), "override references a package absent from the resolved graph")
			continue
		}
		applyOne(model.Package(idx), o, diags)
	}

	checkSkippedEdges(model, diags)
	logger.Debug("Overrides applied.", "count", len(overrides))
}

func applyOne(p *metadata.Package, o settings.Override, diags *diag.Collector) {
	p.ExtraFeatures = appendUnique(p.ExtraFeatures, o.Features)
	p.RustcFlags = appendUnique(p.RustcFlags, o.RustcFlags)
	p.LinkFlags = appendUnique(p.LinkFlags, o.LinkFlags)
	p.CfgDefines = appendUnique(p.CfgDefines, o.CfgDefines)
	p.ExtraSourceRoots = appendUnique(p.ExtraSourceRoots, o.ExtraSourceRoots)

	if len(o.BuildScriptEnv) > 0 {
		if p.BuildScriptEnv == nil {
			p.BuildScriptEnv = make(map[string]string, len(o.BuildScriptEnv))
		}
		// Last-applied-wins for individual keys.
		for k, v := range o.BuildScriptEnv {
			p.BuildScriptEnv[k] = v
		}
	}
	if o.AdditionalContent != "" {
		p.AdditionalContent = o.AdditionalContent
	}

	for _, name := range o.RemoveDeps {
		removed := false
		kept := p.Deps[:0]
		for _, d := range p.Deps {
			if d.Name == name {
				removed = true
				continue
			}
			kept = append(kept, d)
		}
		p.Deps = kept
		if !removed {
			diags.Fatalf(p.ID(), "override removes dependency %q which the crate does not declare", name)
		}
	}

	for _, extra := range o.ExtraDeps {
		kind := metadata.DepKind(extra.Kind)
		if extra.Kind == "" {
			kind = metadata.DepNormal
		}
		p.Deps = append(p.Deps, metadata.Dependency{
			Name:    extra.Name,
			Version: extra.Version,
			Kind:    kind,
			Target:  extra.Target,
		})
	}

	if o.Skip {
		p.Skipped = true
	}
}

// checkSkippedEdges enforces both sides of a skip: every edge into a skipped
// package must have been removed by the same override pass. Extra edges
// injected by overrides are validated for existence here too, since they
// bypass the document-level dangling-edge check.
func checkSkippedEdges(model *metadata.Model, diags *diag.Collector) {
	for i := 0; i < model.Len(); i++ {
		p := model.Package(i)
		if p.Skipped {
			continue
		}
		for _, d := range p.Deps {
			idx, ok := model.Lookup(d.Name, d.Version)
			if !ok {
				diags.Fatalf(p.ID(), "dangling dependency edge to %s-%s", d.Name, d.Version)
				continue
			}
			if model.Package(idx).Skipped {
				diags.Fatalf(p.ID(), "dependency edge to skipped package %s-%s; skip and remove_deps must be applied together", d.Name, d.Version)
			}
		}
	}
}

// appendUnique appends items preserving first-occurrence order, dropping
// exact duplicates.
func appendUnique(dst []string, items []string) []string {
	seen := make(map[string]bool, len(dst)+len(items))
	for _, s := range dst {
		seen[s] = true
	}
	for _, s := range items {
		if !seen[s] {
			seen[s] = true
			dst = append(dst, s)
		}
	}
	return dst
}
