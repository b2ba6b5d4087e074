package render

import (
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/vk/bzlcrate/internal/diag"
	"github.com/vk/bzlcrate/internal/license"
	"github.com/vk/bzlcrate/internal/metadata"
	"github.com/vk/bzlcrate/internal/resolver"
	"github.com/vk/bzlcrate/internal/selectexpr"
)

// Marker identifies files produced by this tool. The output planner prunes
// orphaned files by this marker and never touches files without it.
const Marker = "@generated by bzlcrate"

// HeaderLine is the first line of every generated file. It carries the
// marker and the tool identity but deliberately no timestamp; generated
// output is diffed and must be byte-stable across runs.
const HeaderLine = "# " + Marker + ". Do not edit by hand."

// Renderer renders build-description files from resolved crate views.
type Renderer struct {
	cfg   Config
	model *metadata.Model
	tmpl  *template.Template
}

// New parses the fixed template set. The license table defaults when unset.
func New(cfg Config, model *metadata.Model) (*Renderer, error) {
	if cfg.LicenseTable == nil {
		cfg.LicenseTable = license.DefaultTable()
	}
	r := &Renderer{cfg: cfg, model: model}

	tmpl := template.New("crate").Funcs(template.FuncMap{
		"quote":   bzlQuote,
		"list":    bzlList,
		"inline":  bzlInlineList,
		"deps":    bzlDeps,
		"featsel": bzlFeatureSelect,
		"dict":    bzlDict,
		"libRule": libRuleName,
	})
	var err error
	if tmpl, err = tmpl.Parse(crateTemplate); err != nil {
		return nil, fmt.Errorf("parsing crate template: %w", err)
	}
	if tmpl, err = tmpl.New("aliases").Parse(aliasesTemplate); err != nil {
		return nil, fmt.Errorf("parsing aliases template: %w", err)
	}
	if tmpl, err = tmpl.New("aggregator").Parse(aggregatorTemplate); err != nil {
		return nil, fmt.Errorf("parsing aggregator template: %w", err)
	}
	r.tmpl = tmpl
	return r, nil
}

// RenderCrate renders the build file for one crate view.
func (r *Renderer) RenderCrate(v *resolver.CrateView, synth *selectexpr.Synthesizer, diags *diag.Collector) (string, error) {
	cc := r.buildCrateContext(v, synth, diags)
	var b strings.Builder
	if err := r.tmpl.ExecuteTemplate(&b, "crate", cc); err != nil {
		return "", fmt.Errorf("rendering crate %s: %w", v.ID(), err)
	}
	return b.String(), nil
}

// aliasEntry is one alias in the aggregate build file.
type aliasEntry struct {
	Name   string
	Actual string
}

type aliasesContext struct {
	Header  string
	Aliases []aliasEntry
}

// RenderAliases renders the aggregate build file exposing aliases for every
// direct dependency of the workspace roots. Name collisions across versions
// disambiguate with a version suffix, lower versions first.
func (r *Renderer) RenderAliases(views []*resolver.CrateView) (string, error) {
	byName := make(map[string][]*resolver.CrateView)
	for _, v := range views {
		if v.RootDependency && !v.Omitted {
			byName[v.Pkg.Name] = append(byName[v.Pkg.Name], v)
		}
	}

	ctx := aliasesContext{Header: HeaderLine}
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		group := byName[name]
		sort.Slice(group, func(i, j int) bool { return group[i].Pkg.Version < group[j].Pkg.Version })
		for _, v := range group {
			alias := sanitize(name)
			if len(group) > 1 {
				alias = sanitize(name + "-" + v.Pkg.Version)
			}
			ctx.Aliases = append(ctx.Aliases, aliasEntry{Name: alias, Actual: r.cfg.CrateLabel(v.Pkg)})
		}
	}

	var b strings.Builder
	if err := r.tmpl.ExecuteTemplate(&b, "aliases", ctx); err != nil {
		return "", fmt.Errorf("rendering aliases file: %w", err)
	}
	return b.String(), nil
}

// aggregatorCrate is one fetchable crate in the remote-mode aggregator.
type aggregatorCrate struct {
	RepoName    string
	URL         string
	Sha256      string
	StripPrefix string
	BuildFile   string
}

type aggregatorContext struct {
	Header string
	Crates []aggregatorCrate
}

// RenderAggregator renders the remote-mode aggregator enumerating every
// registry crate's identity, checksum and generated build file path.
func (r *Renderer) RenderAggregator(views []*resolver.CrateView) (string, error) {
	ctx := aggregatorContext{Header: HeaderLine}
	for _, v := range views {
		p := v.Pkg
		if v.Omitted || p.Source != metadata.SourceRegistry {
			continue
		}
		ctx.Crates = append(ctx.Crates, aggregatorCrate{
			RepoName:    r.cfg.RepositoryName(p),
			URL:         fmt.Sprintf("https://crates.io/api/v1/crates/%s/%s/download", p.Name, p.Version),
			Sha256:      p.Checksum,
			StripPrefix: fmt.Sprintf("%s-%s", p.Name, p.Version),
			BuildFile:   fmt.Sprintf("//%s/remote:%s-%s.BUILD", r.cfg.OutputRoot, p.Name, p.Version),
		})
	}
	sort.Slice(ctx.Crates, func(i, j int) bool { return ctx.Crates[i].RepoName < ctx.Crates[j].RepoName })

	var b strings.Builder
	if err := r.tmpl.ExecuteTemplate(&b, "aggregator", ctx); err != nil {
		return "", fmt.Errorf("rendering aggregator file: %w", err)
	}
	return b.String(), nil
}

// --- Starlark formatting helpers used by the templates ---

func indentOf(level int) string {
	return strings.Repeat("    ", level)
}

func bzlQuote(s string) string {
	return `"` + strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `"`, `\"`) + `"`
}

// bzlList formats a string list at the given indent level, one element per
// line. An empty list renders as [].
func bzlList(items []string, level int) string {
	if len(items) == 0 {
		return "[]"
	}
	var b strings.Builder
	b.WriteString("[\n")
	for _, item := range items {
		b.WriteString(indentOf(level + 1))
		b.WriteString(bzlQuote(item))
		b.WriteString(",\n")
	}
	b.WriteString(indentOf(level))
	b.WriteString("]")
	return b.String()
}

// bzlInlineList formats a short string list on one line, for attributes that
// conventionally stay inline such as licenses().
func bzlInlineList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = bzlQuote(item)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// bzlSelect formats select branches plus the mandatory default branch.
func bzlSelect(entries []selectEntry, level int) string {
	var b strings.Builder
	b.WriteString("select({\n")
	for _, e := range entries {
		b.WriteString(indentOf(level + 1))
		b.WriteString(bzlQuote(e.Label))
		b.WriteString(": ")
		b.WriteString(bzlList(e.Values, level+1))
		b.WriteString(",\n")
	}
	b.WriteString(indentOf(level + 1))
	b.WriteString(`"//conditions:default": [],`)
	b.WriteString("\n")
	b.WriteString(indentOf(level))
	b.WriteString("})")
	return b.String()
}

// bzlDeps formats a dependency group: the unconditional list, plus select
// branches when any edge is platform-conditional.
func bzlDeps(g depGroup, level int) string {
	if len(g.Select) == 0 {
		return bzlList(g.Always, level)
	}
	return bzlList(g.Always, level) + " + " + bzlSelect(g.Select, level)
}

// bzlFeatureSelect formats a per-triple feature table.
func bzlFeatureSelect(entries []selectEntry, level int) string {
	return bzlSelect(entries, level)
}

// bzlDict formats a string dictionary.
func bzlDict(pairs []envPair, level int) string {
	if len(pairs) == 0 {
		return "{}"
	}
	var b strings.Builder
	b.WriteString("{\n")
	for _, p := range pairs {
		b.WriteString(indentOf(level + 1))
		b.WriteString(bzlQuote(p.Key))
		b.WriteString(": ")
		b.WriteString(bzlQuote(p.Value))
		b.WriteString(",\n")
	}
	b.WriteString(indentOf(level))
	b.WriteString("}")
	return b.String()
}

func libRuleName(kind metadata.CrateKind) string {
	if kind == metadata.KindProcMacro {
		return "rust_proc_macro"
	}
	return "rust_library"
}
