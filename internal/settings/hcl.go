package settings

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/vk/bzlcrate/internal/ctxlog"
)

// fileRoot decodes the top-level blocks of a settings file.
type fileRoot struct {
	Generation *generationBlock      `hcl:"generation,block"`
	Groups     []*platformGroupBlock `hcl:"platform_group,block"`
	Crates     []*crateBlock         `hcl:"crate,block"`
}

type generationBlock struct {
	Mode                string   `hcl:"mode"`
	OutputRoot          string   `hcl:"output_root"`
	BuildfileSuffix     string   `hcl:"buildfile_suffix,optional"`
	PlatformLabelPrefix string   `hcl:"platform_label_prefix,optional"`
	WorkspacePrefix     string   `hcl:"workspace_prefix,optional"`
	Triples             []string `hcl:"triples,optional"`
}

type platformGroupBlock struct {
	Name    string   `hcl:"name,label"`
	Label   string   `hcl:"label,optional"`
	Triples []string `hcl:"triples"`
}

type crateBlock struct {
	Name    string `hcl:"name,label"`
	Version string `hcl:"version,label"`

	Skip                bool             `hcl:"skip,optional"`
	Features            []string         `hcl:"features,optional"`
	RustcFlags          []string         `hcl:"rustc_flags,optional"`
	LinkFlags           []string         `hcl:"link_flags,optional"`
	CfgDefines          []string         `hcl:"cfg_defines,optional"`
	ExtraSourceRoots    []string         `hcl:"extra_source_roots,optional"`
	RemoveDeps          []string         `hcl:"remove_deps,optional"`
	BuildScriptEnv      hcl.Expression   `hcl:"build_script_env,optional"`
	AdditionalBuildFile string           `hcl:"additional_build_file,optional"`
	ExtraDeps           []*extraDepBlock `hcl:"extra_dep,block"`
}

type extraDepBlock struct {
	Name    string `hcl:"name"`
	Version string `hcl:"version"`
	Target  string `hcl:"target,optional"`
	Kind    string `hcl:"kind,optional"`
}

// loadHCLFile parses and translates an HCL settings document.
func loadHCLFile(ctx context.Context, path string) (*Settings, error) {
	logger := ctxlog.FromContext(ctx)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing settings file %s: %w", path, diags)
	}

	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("decoding settings file %s: %w", path, diags)
	}
	if root.Generation == nil {
		return nil, fmt.Errorf("settings file %s: missing required generation block", path)
	}

	s := &Settings{
		Mode:                Mode(root.Generation.Mode),
		OutputRoot:          root.Generation.OutputRoot,
		BuildfileSuffix:     root.Generation.BuildfileSuffix,
		PlatformLabelPrefix: root.Generation.PlatformLabelPrefix,
		WorkspacePrefix:     root.Generation.WorkspacePrefix,
		Triples:             root.Generation.Triples,
	}
	for _, g := range root.Groups {
		s.Groups = append(s.Groups, ConditionGroup{Name: g.Name, Label: g.Label, Triples: g.Triples})
	}
	for _, c := range root.Crates {
		o, err := translateCrateBlock(c, filepath.Dir(path))
		if err != nil {
			return nil, fmt.Errorf("settings file %s: %w", path, err)
		}
		s.Overrides = append(s.Overrides, o)
	}

	if err := s.validate(); err != nil {
		return nil, err
	}
	logger.Debug("Settings loaded.", "format", "hcl", "mode", s.Mode, "overrides", len(s.Overrides))
	return s, nil
}

// translateCrateBlock converts one crate block into an Override, resolving
// the additional build file relative to the settings document.
func translateCrateBlock(c *crateBlock, baseDir string) (Override, error) {
	o := Override{
		Name:             c.Name,
		Version:          c.Version,
		Skip:             c.Skip,
		Features:         c.Features,
		RustcFlags:       c.RustcFlags,
		LinkFlags:        c.LinkFlags,
		CfgDefines:       c.CfgDefines,
		ExtraSourceRoots: c.ExtraSourceRoots,
		RemoveDeps:       c.RemoveDeps,
	}

	env, err := decodeStringMap(c.BuildScriptEnv)
	if err != nil {
		return Override{}, fmt.Errorf("crate %s-%s: build_script_env: %w", c.Name, c.Version, err)
	}
	o.BuildScriptEnv = env

	for _, d := range c.ExtraDeps {
		o.ExtraDeps = append(o.ExtraDeps, ExtraDep{
			Name:    d.Name,
			Version: d.Version,
			Target:  d.Target,
			Kind:    d.Kind,
		})
	}

	if c.AdditionalBuildFile != "" {
		content, err := os.ReadFile(filepath.Join(baseDir, c.AdditionalBuildFile))
		if err != nil {
			return Override{}, fmt.Errorf("crate %s-%s: reading additional_build_file: %w", c.Name, c.Version, err)
		}
		o.AdditionalContent = string(content)
	}
	return o, nil
}

// decodeStringMap evaluates an attribute expression into a string map. The
// expression must be a constant object; settings documents have no variable
// scope.
func decodeStringMap(expr hcl.Expression) (map[string]string, error) {
	if expr == nil {
		return nil, nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, diags
	}
	if val.IsNull() {
		return nil, nil
	}
	val, err := convert.Convert(val, cty.Map(cty.String))
	if err != nil {
		return nil, err
	}

	out := make(map[string]string)
	for it := val.ElementIterator(); it.Next(); {
		k, v := it.Element()
		out[k.AsString()] = v.AsString()
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
