package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/vk/bzlcrate/internal/ctxlog"
	"github.com/vk/bzlcrate/internal/diag"
)

// document is the wire shape of the resolved-metadata JSON document handed to
// us by the upstream resolver step.
type document struct {
	Packages []packageDoc `json:"packages"`
}

type packageDoc struct {
	Name         string              `json:"name"`
	Version      string              `json:"version"`
	Source       string              `json:"source"`
	Checksum     string              `json:"checksum,omitempty"`
	License      string              `json:"license,omitempty"`
	Edition      string              `json:"edition,omitempty"`
	Features     map[string][]string `json:"features,omitempty"`
	Dependencies []dependencyDoc     `json:"dependencies,omitempty"`
	Targets      []targetDoc         `json:"targets"`
}

type dependencyDoc struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Kind        string `json:"kind,omitempty"` // defaults to "normal"
	Target      string `json:"target,omitempty"`
	FeatureGate string `json:"feature_gate,omitempty"`
	Optional    bool   `json:"optional,omitempty"`
}

type targetDoc struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	CrateRoot string `json:"crate_root"`
	Edition   string `json:"edition,omitempty"`
}

// LoadFile reads and validates a resolved-metadata document from disk.
// Structural findings go to the collector; the returned error covers I/O and
// malformed JSON only.
func LoadFile(ctx context.Context, path string, diags *diag.Collector) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening metadata document: %w", err)
	}
	defer f.Close()
	return Load(ctx, f, diags)
}

// Load decodes and validates a resolved-metadata document.
func Load(ctx context.Context, r io.Reader, diags *diag.Collector) (*Model, error) {
	logger := ctxlog.FromContext(ctx)

	var doc document
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding metadata document: %w", err)
	}

	packages := make([]*Package, 0, len(doc.Packages))
	for _, pd := range doc.Packages {
		packages = append(packages, translatePackage(pd, diags))
	}

	model, err := NewModel(packages)
	if err != nil {
		return nil, err
	}
	validate(model, diags)

	logger.Debug("Metadata document loaded.", "packages", model.Len(), "roots", len(model.Roots()))
	return model, nil
}

// translatePackage converts the wire shape into the model shape, reporting
// missing required fields as fatal input-validation diagnostics.
func translatePackage(pd packageDoc, diags *diag.Collector) *Package {
	id := pd.Name + "-" + pd.Version
	if pd.Name == "" || pd.Version == "" {
		diags.Fatalf(id, "package is missing a name or version")
	}

	source := SourceKind(pd.Source)
	switch source {
	case SourceWorkspace, SourceRegistry, SourceGit:
	default:
		diags.Fatalf(id, "unknown package source kind %q", pd.Source)
	}
	if source == SourceRegistry && pd.Checksum == "" {
		diags.Fatalf(id, "registry package has no lockfile checksum")
	}

	p := &Package{
		Name:     pd.Name,
		Version:  pd.Version,
		Source:   source,
		Checksum: pd.Checksum,
		License:  pd.License,
		Edition:  pd.Edition,
		Features: pd.Features,
	}
	for _, dd := range pd.Dependencies {
		kind := DepKind(dd.Kind)
		if dd.Kind == "" {
			kind = DepNormal
		}
		switch kind {
		case DepNormal, DepBuild, DepDev:
		default:
			diags.Fatalf(id, "dependency %q has unknown kind %q", dd.Name, dd.Kind)
		}
		p.Deps = append(p.Deps, Dependency{
			Name:        dd.Name,
			Version:     dd.Version,
			Kind:        kind,
			Target:      dd.Target,
			FeatureGate: dd.FeatureGate,
			Optional:    dd.Optional,
		})
	}
	for _, td := range pd.Targets {
		if td.CrateRoot == "" {
			diags.Fatalf(id, "target %q has no crate root", td.Name)
		}
		edition := td.Edition
		if edition == "" {
			edition = pd.Edition
		}
		p.Targets = append(p.Targets, Target{
			Name:      td.Name,
			Kind:      td.Kind,
			CrateRoot: td.CrateRoot,
			Edition:   edition,
		})
	}
	return p
}

// declaresFeature reports whether name is an explicit feature of p or the
// implicit feature created by an optional dependency of that name.
func declaresFeature(p *Package, name string) bool {
	if _, ok := p.Features[name]; ok {
		return true
	}
	for _, d := range p.Deps {
		if d.Optional && d.Name == name {
			return true
		}
	}
	return false
}

// validate checks cross-package consistency. A dependency edge pointing at a
// package absent from the model is fatal: the upstream resolver guarantees a
// closed graph, so a dangling edge means the document is corrupt.
func validate(m *Model, diags *diag.Collector) {
	for i := 0; i < m.Len(); i++ {
		p := m.Package(i)
		for _, d := range p.Deps {
			if _, ok := m.Lookup(d.Name, d.Version); !ok {
				diags.Fatalf(p.ID(), "dangling dependency edge to %s-%s", d.Name, d.Version)
			}
			if d.FeatureGate != "" && !declaresFeature(p, d.FeatureGate) {
				diags.Fatalf(p.ID(), "dependency %q gated on undeclared feature %q", d.Name, d.FeatureGate)
			}
		}
	}
}
