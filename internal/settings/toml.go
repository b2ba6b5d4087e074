package settings

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/vk/bzlcrate/internal/ctxlog"
)

// tomlDoc is the manifest wrapper; everything we care about lives under the
// [metadata.bzlcrate] stanza so the rest of the manifest passes through
// untouched.
type tomlDoc struct {
	Metadata struct {
		Bzlcrate *tomlSettings `toml:"bzlcrate"`
	} `toml:"metadata"`
}

type tomlSettings struct {
	Mode                string                             `toml:"mode"`
	OutputRoot          string                             `toml:"output_root"`
	BuildfileSuffix     string                             `toml:"buildfile_suffix"`
	PlatformLabelPrefix string                             `toml:"platform_label_prefix"`
	WorkspacePrefix     string                             `toml:"workspace_prefix"`
	Triples             []string                           `toml:"triples"`
	PlatformGroups      map[string]tomlGroup               `toml:"platform_groups"`
	Crates              map[string]map[string]tomlOverride `toml:"crates"`
}

type tomlGroup struct {
	Label   string   `toml:"label"`
	Triples []string `toml:"triples"`
}

type tomlOverride struct {
	Skip                bool              `toml:"skip"`
	Features            []string          `toml:"features"`
	RustcFlags          []string          `toml:"rustc_flags"`
	LinkFlags           []string          `toml:"link_flags"`
	CfgDefines          []string          `toml:"cfg_defines"`
	ExtraSourceRoots    []string          `toml:"extra_source_roots"`
	RemoveDeps          []string          `toml:"remove_deps"`
	BuildScriptEnv      map[string]string `toml:"build_script_env"`
	AdditionalBuildFile string            `toml:"additional_build_file"`
	ExtraDeps           []tomlExtraDep    `toml:"extra_deps"`
}

type tomlExtraDep struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
	Target  string `toml:"target"`
	Kind    string `toml:"kind"`
}

// loadTOMLFile reads settings embedded in a TOML manifest. TOML tables carry
// no declaration order, so overrides are ordered by (name, version) to keep
// the run deterministic.
func loadTOMLFile(ctx context.Context, path string) (*Settings, error) {
	logger := ctxlog.FromContext(ctx)

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading settings manifest %s: %w", path, err)
	}
	var doc tomlDoc
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding settings manifest %s: %w", path, err)
	}
	ts := doc.Metadata.Bzlcrate
	if ts == nil {
		return nil, fmt.Errorf("settings manifest %s: missing [metadata.bzlcrate] stanza", path)
	}

	s := &Settings{
		Mode:                Mode(ts.Mode),
		OutputRoot:          ts.OutputRoot,
		BuildfileSuffix:     ts.BuildfileSuffix,
		PlatformLabelPrefix: ts.PlatformLabelPrefix,
		WorkspacePrefix:     ts.WorkspacePrefix,
		Triples:             ts.Triples,
	}

	groupNames := make([]string, 0, len(ts.PlatformGroups))
	for name := range ts.PlatformGroups {
		groupNames = append(groupNames, name)
	}
	sort.Strings(groupNames)
	for _, name := range groupNames {
		g := ts.PlatformGroups[name]
		s.Groups = append(s.Groups, ConditionGroup{Name: name, Label: g.Label, Triples: g.Triples})
	}

	baseDir := filepath.Dir(path)
	crateNames := make([]string, 0, len(ts.Crates))
	for name := range ts.Crates {
		crateNames = append(crateNames, name)
	}
	sort.Strings(crateNames)
	for _, name := range crateNames {
		versions := make([]string, 0, len(ts.Crates[name]))
		for v := range ts.Crates[name] {
			versions = append(versions, v)
		}
		sort.Strings(versions)
		for _, version := range versions {
			o, err := translateTOMLOverride(name, version, ts.Crates[name][version], baseDir)
			if err != nil {
				return nil, fmt.Errorf("settings manifest %s: %w", path, err)
			}
			s.Overrides = append(s.Overrides, o)
		}
	}

	if err := s.validate(); err != nil {
		return nil, err
	}
	logger.Debug("Settings loaded.", "format", "toml", "mode", s.Mode, "overrides", len(s.Overrides))
	return s, nil
}

func translateTOMLOverride(name, version string, t tomlOverride, baseDir string) (Override, error) {
	o := Override{
		Name:             name,
		Version:          version,
		Skip:             t.Skip,
		Features:         t.Features,
		RustcFlags:       t.RustcFlags,
		LinkFlags:        t.LinkFlags,
		CfgDefines:       t.CfgDefines,
		ExtraSourceRoots: t.ExtraSourceRoots,
		RemoveDeps:       t.RemoveDeps,
		BuildScriptEnv:   t.BuildScriptEnv,
	}
	for _, d := range t.ExtraDeps {
		o.ExtraDeps = append(o.ExtraDeps, ExtraDep(d))
	}
	if t.AdditionalBuildFile != "" {
		content, err := os.ReadFile(filepath.Join(baseDir, t.AdditionalBuildFile))
		if err != nil {
			return Override{}, fmt.Errorf("crate %s-%s: reading additional_build_file: %w", name, version, err)
		}
		o.AdditionalContent = string(content)
	}
	return o, nil
}
