package planner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/vk/bzlcrate/internal/ctxlog"
	"github.com/vk/bzlcrate/internal/fsutil"
	"github.com/vk/bzlcrate/internal/metadata"
	"github.com/vk/bzlcrate/internal/settings"
)

// Layout computes where each generated file lives relative to the workspace
// directory. Paths use forward slashes until they hit the filesystem.
type Layout struct {
	Mode            settings.Mode
	OutputRoot      string
	BuildfileSuffix string
}

// CratePath returns the per-crate build file location.
//
// Vendored mode gives every crate its own directory so the build file sits
// next to the vendored sources. Remote mode collects all build files under
// one remote/ directory; they are attached to fetched archives by the
// aggregator, so the suffix convention does not apply there.
func (l Layout) CratePath(p *metadata.Package) string {
	if l.Mode == settings.ModeRemote {
		return fmt.Sprintf("%s/remote/%s-%s.BUILD", l.OutputRoot, p.Name, p.Version)
	}
	return fmt.Sprintf("%s/vendor/%s-%s/%s", l.OutputRoot, p.Name, p.Version, l.BuildfileSuffix)
}

// AliasesPath returns the aggregate build file location at the output root.
func (l Layout) AliasesPath() string {
	return l.OutputRoot + "/" + l.BuildfileSuffix
}

// AggregatorPath returns the remote-mode aggregator location.
func (l Layout) AggregatorPath() string {
	return l.OutputRoot + "/crates.bzl"
}

// RemoteAnchorPath returns the empty build file that makes the remote/
// directory a package, so the aggregator's build_file labels resolve.
func (l Layout) RemoteAnchorPath() string {
	return l.OutputRoot + "/remote/" + l.BuildfileSuffix
}

// Plan is the staged output set for one run.
type Plan struct {
	baseDir    string
	outputRoot string
	marker     string
	files      map[string]string
}

// New stages outputs destined for outputRoot under baseDir. The marker is
// matched against first lines during orphan pruning.
func New(baseDir, outputRoot, marker string) *Plan {
	return &Plan{
		baseDir:    baseDir,
		outputRoot: outputRoot,
		marker:     marker,
		files:      make(map[string]string),
	}
}

// Add stages one file. Two crates mapping to the same path means the layout
// is ambiguous, which is a planning bug worth failing loudly on.
func (p *Plan) Add(relPath, content string) error {
	if _, dup := p.files[relPath]; dup {
		return fmt.Errorf("output path %s planned twice", relPath)
	}
	p.files[relPath] = content
	return nil
}

// Files returns the staged paths in sorted order.
func (p *Plan) Files() []string {
	out := make([]string, 0, len(p.files))
	for path := range p.files {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// Content returns the staged content for one path.
func (p *Plan) Content(relPath string) (string, bool) {
	c, ok := p.files[relPath]
	return c, ok
}

// Report summarizes one Commit.
type Report struct {
	Written   []string
	Unchanged []string
	Pruned    []string
}

// Commit writes every staged file and prunes orphans. The output root is
// scanned before any write so files created by this commit can never be
// mistaken for orphans. Files whose on-disk bytes already match are left
// alone, keeping modification times stable for incremental builds.
func (p *Plan) Commit(ctx context.Context) (Report, error) {
	logger := ctxlog.FromContext(ctx)
	var report Report

	orphans, err := p.findOrphans()
	if err != nil {
		return report, err
	}

	for _, relPath := range p.Files() {
		abs := filepath.Join(p.baseDir, filepath.FromSlash(relPath))
		content := p.files[relPath]
		if existing, err := os.ReadFile(abs); err == nil && string(existing) == content {
			report.Unchanged = append(report.Unchanged, relPath)
			continue
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return report, fmt.Errorf("creating directory for %s: %w", relPath, err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			return report, fmt.Errorf("writing %s: %w", relPath, err)
		}
		logger.Debug("Wrote generated file", "path", relPath)
		report.Written = append(report.Written, relPath)
	}

	for _, relPath := range orphans {
		abs := filepath.Join(p.baseDir, filepath.FromSlash(relPath))
		if err := os.Remove(abs); err != nil {
			return report, fmt.Errorf("pruning orphan %s: %w", relPath, err)
		}
		logger.Debug("Pruned orphaned file", "path", relPath)
		report.Pruned = append(report.Pruned, relPath)
	}

	return report, nil
}

// findOrphans scans the output root for previously generated files that the
// current plan no longer produces.
func (p *Plan) findOrphans() ([]string, error) {
	root := filepath.Join(p.baseDir, filepath.FromSlash(p.outputRoot))
	found, err := fsutil.FindFiles(root)
	if err != nil {
		return nil, fmt.Errorf("scanning output root: %w", err)
	}

	var orphans []string
	for _, abs := range found {
		rel, err := filepath.Rel(p.baseDir, abs)
		if err != nil {
			return nil, err
		}
		relPath := filepath.ToSlash(rel)
		if _, planned := p.files[relPath]; planned {
			continue
		}
		marked, err := fsutil.FirstLineContains(abs, p.marker)
		if err != nil {
			return nil, fmt.Errorf("probing %s: %w", relPath, err)
		}
		if marked {
			orphans = append(orphans, relPath)
		}
	}
	sort.Strings(orphans)
	return orphans, nil
}
