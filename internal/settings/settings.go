package settings

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Mode selects the output layout.
type Mode string

const (
	// ModeVendored mirrors each crate's build file into its own directory
	// under a vendor tree.
	ModeVendored Mode = "vendored"
	// ModeRemote emits all build files under one shared directory plus an
	// aggregator enumerating every crate.
	ModeRemote Mode = "remote"
)

// Defaults applied when the settings document leaves a field unset.
const (
	DefaultBuildfileSuffix     = "BUILD.bazel"
	DefaultPlatformLabelPrefix = "@rules_rust//rust/platform"
	DefaultWorkspacePrefix     = "crates"
)

// Settings is the format-agnostic model of the settings document.
type Settings struct {
	Mode                Mode
	OutputRoot          string
	BuildfileSuffix     string
	PlatformLabelPrefix string
	// WorkspacePrefix namespaces the external repository names emitted in
	// remote mode.
	WorkspacePrefix string
	// Triples restricts generation to these catalog triples; empty means all.
	Triples []string
	// Groups declares named platform conditions beyond the per-triple ones.
	Groups []ConditionGroup
	// Overrides in declaration order. Order matters: conflicting overrides
	// for the same attribute resolve last-applied-wins.
	Overrides []Override
}

// ConditionGroup names a platform condition covering a set of triples.
type ConditionGroup struct {
	Name    string
	Label   string
	Triples []string
}

// ExtraDep is a dependency edge injected by an override. Without a target
// predicate the edge is always active.
type ExtraDep struct {
	Name    string
	Version string
	Target  string
	Kind    string
}

// Override is one per-crate customization, keyed by exact package identity.
type Override struct {
	Name    string
	Version string

	Skip             bool
	Features         []string
	RustcFlags       []string
	LinkFlags        []string
	CfgDefines       []string
	ExtraSourceRoots []string
	// RemoveDeps drops declared edges from this crate to the named packages.
	// Required on dependents when the same settings document skips a crate.
	RemoveDeps     []string
	BuildScriptEnv map[string]string
	ExtraDeps      []ExtraDep
	// AdditionalContent is the verbatim text of the configured
	// additional_build_file, loaded here so rendering needs no file access.
	AdditionalContent string
}

// ID returns the package identity the override targets.
func (o Override) ID() string {
	return fmt.Sprintf("%s-%s", o.Name, o.Version)
}

// LoadFile loads a settings document, dispatching on file extension:
// .hcl for the native format, .toml for a manifest-embedded stanza.
func LoadFile(ctx context.Context, path string) (*Settings, error) {
	switch ext := filepath.Ext(path); ext {
	case ".hcl":
		return loadHCLFile(ctx, path)
	case ".toml":
		return loadTOMLFile(ctx, path)
	default:
		return nil, fmt.Errorf("unsupported settings format %q (want .hcl or .toml)", ext)
	}
}

// validate applies defaults and checks required fields. Settings problems are
// input-validation errors and fail the run before any resolution begins.
func (s *Settings) validate() error {
	switch s.Mode {
	case ModeVendored, ModeRemote:
	case "":
		return fmt.Errorf("settings: mode is required")
	default:
		return fmt.Errorf("settings: unknown mode %q (want %q or %q)", s.Mode, ModeVendored, ModeRemote)
	}
	if s.OutputRoot == "" {
		return fmt.Errorf("settings: output_root is required")
	}
	if s.BuildfileSuffix == "" {
		s.BuildfileSuffix = DefaultBuildfileSuffix
	}
	if s.PlatformLabelPrefix == "" {
		s.PlatformLabelPrefix = DefaultPlatformLabelPrefix
	}
	if s.WorkspacePrefix == "" {
		s.WorkspacePrefix = DefaultWorkspacePrefix
	}
	for i := range s.Groups {
		g := &s.Groups[i]
		if g.Name == "" || len(g.Triples) == 0 {
			return fmt.Errorf("settings: platform group %q must name at least one triple", g.Name)
		}
		if g.Label == "" {
			g.Label = s.PlatformLabelPrefix + ":" + g.Name
		}
	}
	for _, o := range s.Overrides {
		if o.Name == "" || o.Version == "" {
			return fmt.Errorf("settings: override %q must carry both name and version", o.Name)
		}
		if strings.TrimSpace(o.Version) != o.Version {
			return fmt.Errorf("settings: override %s has a malformed version", o.ID())
		}
	}
	return nil
}
