package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vk/bzlcrate/internal/diag"
	"github.com/vk/bzlcrate/internal/license"
	"github.com/vk/bzlcrate/internal/metadata"
	"github.com/vk/bzlcrate/internal/resolver"
	"github.com/vk/bzlcrate/internal/selectexpr"
	"github.com/vk/bzlcrate/internal/settings"
)

// Config is the render-relevant slice of the settings document.
type Config struct {
	Mode            settings.Mode
	OutputRoot      string
	BuildfileSuffix string
	WorkspacePrefix string
	LicenseTable    license.Table
}

// CrateLabel returns the build label other rules use to depend on a crate.
func (c Config) CrateLabel(p *metadata.Package) string {
	name := sanitize(p.Name)
	if p.Source == metadata.SourceWorkspace {
		// Workspace crates are reachable through their alias in the
		// aggregate build file.
		return fmt.Sprintf("//%s:%s", c.OutputRoot, name)
	}
	if c.Mode == settings.ModeRemote {
		return fmt.Sprintf("@%s__%s__%s//:%s", c.WorkspacePrefix, name, sanitize(p.Version), name)
	}
	return fmt.Sprintf("//%s/vendor/%s-%s:%s", c.OutputRoot, p.Name, p.Version, name)
}

// RepositoryName returns the external repository name used for a crate in
// remote mode.
func (c Config) RepositoryName(p *metadata.Package) string {
	return fmt.Sprintf("%s__%s__%s", c.WorkspacePrefix, sanitize(p.Name), sanitize(p.Version))
}

// sanitize rewrites a crate name or version into a valid rule identifier.
func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// selectEntry is one branch of a select expression, already sorted.
type selectEntry struct {
	Label  string
	Values []string
}

// depGroup is a conditional dependency list: unconditional labels plus
// select branches.
type depGroup struct {
	Always []string
	Select []selectEntry
}

func (g depGroup) empty() bool {
	return len(g.Always) == 0 && len(g.Select) == 0
}

// binContext describes one binary rule of a crate.
type binContext struct {
	RuleName  string
	CrateRoot string
	Edition   string
}

// buildScriptContext describes the build-script rules of a crate.
type buildScriptContext struct {
	RuleName  string
	CrateRoot string
	Edition   string
	Env       []envPair
	Deps      depGroup
}

type envPair struct {
	Key   string
	Value string
}

// crateContext is everything a per-crate template needs.
type crateContext struct {
	Header  string
	Name    string
	Version string

	Kind       metadata.CrateKind
	Omitted    bool
	OmitReason string

	RuleName    string
	CrateRoot   string
	Edition     string
	SrcGlobs    []string
	LicenseTags []string

	Features          []string
	FeatureSelect     []selectEntry
	RustcFlags        []string
	LinkFlags         []string
	Deps              depGroup
	ProcMacroDeps     depGroup
	BinDeps           depGroup
	HasLib            bool
	Bins              []binContext
	BuildScript       *buildScriptContext
	AdditionalContent string
}

// buildCrateContext assembles the template context for one crate view.
// Unrepresentable conditionals become fatal diagnostics; license gaps become
// warnings with the most restrictive category substituted.
func (r *Renderer) buildCrateContext(v *resolver.CrateView, synth *selectexpr.Synthesizer, diags *diag.Collector) crateContext {
	p := v.Pkg
	cc := crateContext{
		Header:   HeaderLine,
		Name:     p.Name,
		Version:  p.Version,
		Kind:     v.Kind,
		RuleName: sanitize(p.Name),
	}

	if v.Omitted {
		cc.Omitted = true
		cc.OmitReason = v.OmitReason
		return cc
	}

	cc.LicenseTags = r.licenseTags(p, diags)
	cc.Edition = p.Edition
	cc.SrcGlobs = []string{"**/*.rs"}
	for _, root := range p.ExtraSourceRoots {
		cc.SrcGlobs = append(cc.SrcGlobs, root+"/**/*.rs")
	}

	if lib, ok := p.LibTarget(); ok {
		cc.HasLib = true
		cc.CrateRoot = lib.CrateRoot
		if lib.Edition != "" {
			cc.Edition = lib.Edition
		}
	}
	for _, bin := range p.BinTargets() {
		edition := bin.Edition
		if edition == "" {
			edition = cc.Edition
		}
		cc.Bins = append(cc.Bins, binContext{
			RuleName:  "cargo_bin_" + sanitize(bin.Name),
			CrateRoot: bin.CrateRoot,
			Edition:   edition,
		})
	}

	cc.Features, cc.FeatureSelect = r.featureLists(v, synth, diags)

	cc.RustcFlags = append(cc.RustcFlags, p.RustcFlags...)
	for _, define := range p.CfgDefines {
		cc.RustcFlags = append(cc.RustcFlags, "--cfg="+define)
	}
	cc.LinkFlags = append(cc.LinkFlags, p.LinkFlags...)

	cc.Deps, cc.ProcMacroDeps = r.depGroups(v, metadata.DepNormal, synth, diags)
	buildDeps, buildProcMacroDeps := r.depGroups(v, metadata.DepBuild, synth, diags)

	if script, ok := p.BuildScriptTarget(); ok {
		bs := &buildScriptContext{
			RuleName:  cc.RuleName + "_build_script",
			CrateRoot: script.CrateRoot,
			Edition:   cc.Edition,
			Deps:      buildDeps,
		}
		if script.Edition != "" {
			bs.Edition = script.Edition
		}
		for _, k := range sortedEnvKeys(p.BuildScriptEnv) {
			bs.Env = append(bs.Env, envPair{Key: k, Value: p.BuildScriptEnv[k]})
		}
		// The build tool injects the script's captured outputs by making the
		// library depend on the script rule.
		cc.Deps.Always = append([]string{":" + bs.RuleName}, cc.Deps.Always...)
		cc.BuildScript = bs
	} else if !buildDeps.empty() || !buildProcMacroDeps.empty() {
		// Build-only deps without a script still need to be buildable for
		// the host; fold them into the normal groups.
		cc.Deps = mergeGroups(cc.Deps, buildDeps)
		cc.ProcMacroDeps = mergeGroups(cc.ProcMacroDeps, buildProcMacroDeps)
	}

	// Binaries depend on the crate's own library when it has one; the library
	// carries the transitive graph, so binaries skip the plain dep list then.
	if cc.HasLib {
		cc.BinDeps = depGroup{Always: []string{":" + cc.RuleName}}
	} else {
		cc.BinDeps = cc.Deps
	}

	cc.AdditionalContent = p.AdditionalContent
	return cc
}

// licenseTags categorizes the package's license expression, reporting gaps.
func (r *Renderer) licenseTags(p *metadata.Package, diags *diag.Collector) []string {
	result, err := license.Categorize(p.License, r.cfg.LicenseTable)
	if err != nil {
		diags.Warnf(p.ID(), "unparseable license expression; defaulting to %q: %v", license.MostRestrictive, err)
		return []string{string(license.MostRestrictive)}
	}
	for _, u := range result.Unknown {
		diags.Warnf(p.ID(), "license identifier %s has no category mapping; defaulting to %q", u, license.MostRestrictive)
	}
	tags := make([]string, 0, len(result.Categories))
	for _, c := range result.Categories {
		tags = append(tags, string(c))
	}
	return tags
}

// featureLists renders the feature set: a plain list when uniform across
// triples, otherwise one select branch per triple.
func (r *Renderer) featureLists(v *resolver.CrateView, synth *selectexpr.Synthesizer, diags *diag.Collector) ([]string, []selectEntry) {
	if v.FeaturesByTriple == nil {
		return v.Features, nil
	}
	var entries []selectEntry
	for _, triple := range v.ActiveTriples {
		expr, err := synth.Synthesize([]string{triple})
		if err != nil {
			diags.Fatalf(v.ID(), "feature set for triple %s: %v", triple, err)
			continue
		}
		entries = append(entries, selectEntry{Label: expr.Labels[0], Values: v.FeaturesByTriple[triple]})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Label < entries[j].Label })
	return nil, entries
}

// depGroups classifies a view's edges of one kind into plain and proc-macro
// groups with their conditional branches.
func (r *Renderer) depGroups(v *resolver.CrateView, kind metadata.DepKind, synth *selectexpr.Synthesizer, diags *diag.Collector) (depGroup, depGroup) {
	var plain, procMacro depGroup
	plainSelect := make(map[string][]string)
	procSelect := make(map[string][]string)

	for _, d := range v.DepsOfKind(kind) {
		depLabel := r.cfg.CrateLabel(r.depPkg(d))
		if d.Always {
			if d.ProcMacro {
				procMacro.Always = append(procMacro.Always, depLabel)
			} else {
				plain.Always = append(plain.Always, depLabel)
			}
			continue
		}
		expr, err := synth.Synthesize(d.Triples)
		if err != nil {
			diags.Fatalf(v.ID(), "dependency %s-%s: %v", d.Name, d.Version, err)
			continue
		}
		target := plainSelect
		if d.ProcMacro {
			target = procSelect
		}
		for _, condLabel := range expr.Labels {
			target[condLabel] = append(target[condLabel], depLabel)
		}
	}

	sort.Strings(plain.Always)
	sort.Strings(procMacro.Always)
	plain.Select = toSelectEntries(plainSelect)
	procMacro.Select = toSelectEntries(procSelect)
	return plain, procMacro
}

func (r *Renderer) depPkg(d resolver.ResolvedDep) *metadata.Package {
	return r.model.Package(d.PkgIndex)
}

func toSelectEntries(m map[string][]string) []selectEntry {
	if len(m) == 0 {
		return nil
	}
	labels := make([]string, 0, len(m))
	for l := range m {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	entries := make([]selectEntry, 0, len(labels))
	for _, l := range labels {
		vals := m[l]
		sort.Strings(vals)
		entries = append(entries, selectEntry{Label: l, Values: vals})
	}
	return entries
}

func mergeGroups(a, b depGroup) depGroup {
	out := depGroup{Always: append(append([]string(nil), a.Always...), b.Always...)}
	sort.Strings(out.Always)
	merged := make(map[string][]string)
	for _, e := range append(append([]selectEntry(nil), a.Select...), b.Select...) {
		merged[e.Label] = append(merged[e.Label], e.Values...)
	}
	out.Select = toSelectEntries(merged)
	return out
}

func sortedEnvKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
