package planner

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/bzlcrate/internal/metadata"
	"github.com/vk/bzlcrate/internal/settings"
)

const marker = "@generated by bzlcrate"
const header = "# " + marker + ". Do not edit by hand.\n"

func TestLayout_Paths(t *testing.T) {
	t.Parallel()

	pkg := &metadata.Package{Name: "libfoo", Version: "1.2.0"}

	vendored := Layout{Mode: settings.ModeVendored, OutputRoot: "third_party/cargo", BuildfileSuffix: "BUILD.bazel"}
	assert.Equal(t, "third_party/cargo/vendor/libfoo-1.2.0/BUILD.bazel", vendored.CratePath(pkg))
	assert.Equal(t, "third_party/cargo/BUILD.bazel", vendored.AliasesPath())

	remote := Layout{Mode: settings.ModeRemote, OutputRoot: "cargo", BuildfileSuffix: "BUILD.bazel"}
	assert.Equal(t, "cargo/remote/libfoo-1.2.0.BUILD", remote.CratePath(pkg))
	assert.Equal(t, "cargo/crates.bzl", remote.AggregatorPath())
	assert.Equal(t, "cargo/remote/BUILD.bazel", remote.RemoteAnchorPath())
}

func TestPlan_DuplicatePath(t *testing.T) {
	t.Parallel()

	p := New(t.TempDir(), "cargo", marker)
	require.NoError(t, p.Add("cargo/BUILD.bazel", header))
	err := p.Add("cargo/BUILD.bazel", header)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "planned twice")
}

func TestPlan_Commit(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := New(dir, "cargo", marker)
	require.NoError(t, p.Add("cargo/vendor/libfoo-1.2.0/BUILD.bazel", header+"rule_a\n"))
	require.NoError(t, p.Add("cargo/BUILD.bazel", header+"aliases\n"))

	report, err := p.Commit(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Written, 2)
	assert.Empty(t, report.Pruned)

	data, err := os.ReadFile(filepath.Join(dir, "cargo", "vendor", "libfoo-1.2.0", "BUILD.bazel"))
	require.NoError(t, err)
	assert.Equal(t, header+"rule_a\n", string(data))
}

func TestPlan_CommitSkipsUnchanged(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	first := New(dir, "cargo", marker)
	require.NoError(t, first.Add("cargo/BUILD.bazel", header+"same\n"))
	_, err := first.Commit(context.Background())
	require.NoError(t, err)

	second := New(dir, "cargo", marker)
	require.NoError(t, second.Add("cargo/BUILD.bazel", header+"same\n"))
	report, err := second.Commit(context.Background())
	require.NoError(t, err)

	assert.Empty(t, report.Written)
	assert.Equal(t, []string{"cargo/BUILD.bazel"}, report.Unchanged)
}

func TestPlan_PrunesMarkedOrphans(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	stale := filepath.Join(dir, "cargo", "vendor", "gone-0.1.0", "BUILD.bazel")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte(header+"old rule\n"), 0o644))

	p := New(dir, "cargo", marker)
	require.NoError(t, p.Add("cargo/BUILD.bazel", header+"fresh\n"))

	report, err := p.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"cargo/vendor/gone-0.1.0/BUILD.bazel"}, report.Pruned)

	_, statErr := os.Stat(stale)
	assert.True(t, os.IsNotExist(statErr))
}

func TestPlan_NeverTouchesUnmarkedFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	handWritten := filepath.Join(dir, "cargo", "vendor", "patched-1.0.0", "BUILD.bazel")
	require.NoError(t, os.MkdirAll(filepath.Dir(handWritten), 0o755))
	require.NoError(t, os.WriteFile(handWritten, []byte("# maintained by hand\n"), 0o644))

	p := New(dir, "cargo", marker)
	require.NoError(t, p.Add("cargo/BUILD.bazel", header+"fresh\n"))

	report, err := p.Commit(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Pruned)

	data, err := os.ReadFile(handWritten)
	require.NoError(t, err)
	assert.Equal(t, "# maintained by hand\n", string(data))
}

func TestPlan_SkipsFilesWithOverlongFirstLine(t *testing.T) {
	t.Parallel()

	// Vendored crates can ship minified assets whose first "line" exceeds the
	// marker scan cap. Those are unmarked files: the commit must leave them
	// alone and still succeed.
	dir := t.TempDir()
	minified := filepath.Join(dir, "cargo", "vendor", "webby-1.0.0", "asset.min.js")
	require.NoError(t, os.MkdirAll(filepath.Dir(minified), 0o755))
	content := append(bytes.Repeat([]byte("x"), 70*1024), '\n')
	require.NoError(t, os.WriteFile(minified, content, 0o644))

	p := New(dir, "cargo", marker)
	require.NoError(t, p.Add("cargo/BUILD.bazel", header+"fresh\n"))

	report, err := p.Commit(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Pruned)

	data, err := os.ReadFile(minified)
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestPlan_MissingOutputRoot(t *testing.T) {
	t.Parallel()

	// First run against a clean tree: nothing to scan, everything written.
	dir := t.TempDir()
	p := New(dir, "cargo", marker)
	require.NoError(t, p.Add("cargo/BUILD.bazel", header))

	report, err := p.Commit(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Written, 1)
}
