package override

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/bzlcrate/internal/diag"
	"github.com/vk/bzlcrate/internal/metadata"
	"github.com/vk/bzlcrate/internal/settings"
)

func testModel(t *testing.T) *metadata.Model {
	t.Helper()
	m, err := metadata.NewModel([]*metadata.Package{
		{
			Name: "app", Version: "0.1.0", Source: metadata.SourceWorkspace,
			Deps: []metadata.Dependency{
				{Name: "libfoo", Version: "1.2.0", Kind: metadata.DepNormal},
				{Name: "legacycrate", Version: "0.3.0", Kind: metadata.DepNormal},
			},
			Targets: []metadata.Target{{Name: "app", Kind: "bin", CrateRoot: "src/main.rs"}},
		},
		{
			Name: "libfoo", Version: "1.2.0", Source: metadata.SourceRegistry, Checksum: "aa",
			Targets: []metadata.Target{{Name: "libfoo", Kind: "lib", CrateRoot: "src/lib.rs"}},
		},
		{
			Name: "legacycrate", Version: "0.3.0", Source: metadata.SourceRegistry, Checksum: "bb",
			Targets: []metadata.Target{{Name: "legacycrate", Kind: "lib", CrateRoot: "src/lib.rs"}},
		},
	})
	require.NoError(t, err)
	return m
}

func TestApply_AttributeMerging(t *testing.T) {
	t.Parallel()

	m := testModel(t)
	diags := diag.NewCollector()

	Apply(context.Background(), m, []settings.Override{
		{
			Name: "libfoo", Version: "1.2.0",
			Features:       []string{"extra", "extra"},
			RustcFlags:     []string{"--cap-lints=allow"},
			CfgDefines:     []string{"use_std"},
			BuildScriptEnv: map[string]string{"KEY": "one"},
		},
		{
			Name: "libfoo", Version: "1.2.0",
			Features:          []string{"extra", "more"},
			BuildScriptEnv:    map[string]string{"KEY": "two"},
			AdditionalContent: "# appended\n",
		},
	}, diags)

	require.False(t, diags.HasFatal(), diags.Err())

	i, _ := m.Lookup("libfoo", "1.2.0")
	p := m.Package(i)
	assert.Equal(t, []string{"extra", "more"}, p.ExtraFeatures)
	assert.Equal(t, []string{"--cap-lints=allow"}, p.RustcFlags)
	assert.Equal(t, []string{"use_std"}, p.CfgDefines)
	// Conflicting keys resolve last-applied-wins.
	assert.Equal(t, map[string]string{"KEY": "two"}, p.BuildScriptEnv)
	assert.Equal(t, "# appended\n", p.AdditionalContent)
}

func TestApply_UnknownPackage(t *testing.T) {
	t.Parallel()

	m := testModel(t)
	diags := diag.NewCollector()

	Apply(context.Background(), m, []settings.Override{
		{Name: "ghost", Version: "9.9.9", Features: []string{"x"}},
	}, diags)

	require.True(t, diags.HasFatal())
	assert.Contains(t, diags.Err().Error(), "absent from the resolved graph")
}

func TestApply_SkipRequiresRemoveDeps(t *testing.T) {
	t.Parallel()

	t.Run("skip alone leaves a dangling dependent", func(t *testing.T) {
		t.Parallel()
		m := testModel(t)
		diags := diag.NewCollector()

		Apply(context.Background(), m, []settings.Override{
			{Name: "legacycrate", Version: "0.3.0", Skip: true},
		}, diags)

		require.True(t, diags.HasFatal())
		assert.Contains(t, diags.Err().Error(), "skip and remove_deps must be applied together")
	})

	t.Run("skip plus remove_deps is consistent", func(t *testing.T) {
		t.Parallel()
		m := testModel(t)
		diags := diag.NewCollector()

		Apply(context.Background(), m, []settings.Override{
			{Name: "legacycrate", Version: "0.3.0", Skip: true},
			{Name: "app", Version: "0.1.0", RemoveDeps: []string{"legacycrate"}},
		}, diags)

		require.False(t, diags.HasFatal(), diags.Err())

		i, _ := m.Lookup("legacycrate", "0.3.0")
		assert.True(t, m.Package(i).Skipped)

		app, _ := m.Lookup("app", "0.1.0")
		require.Len(t, m.Package(app).Deps, 1)
		assert.Equal(t, "libfoo", m.Package(app).Deps[0].Name)
	})
}

func TestApply_RemoveUndeclaredDep(t *testing.T) {
	t.Parallel()

	m := testModel(t)
	diags := diag.NewCollector()

	Apply(context.Background(), m, []settings.Override{
		{Name: "libfoo", Version: "1.2.0", RemoveDeps: []string{"nonexistent"}},
	}, diags)

	require.True(t, diags.HasFatal())
	assert.Contains(t, diags.Err().Error(), `removes dependency "nonexistent"`)
}

func TestApply_ExtraDeps(t *testing.T) {
	t.Parallel()

	t.Run("injected edge with defaults", func(t *testing.T) {
		t.Parallel()
		m := testModel(t)
		diags := diag.NewCollector()

		Apply(context.Background(), m, []settings.Override{
			{Name: "libfoo", Version: "1.2.0", ExtraDeps: []settings.ExtraDep{
				{Name: "legacycrate", Version: "0.3.0", Target: "cfg(unix)"},
			}},
		}, diags)

		require.False(t, diags.HasFatal(), diags.Err())
		i, _ := m.Lookup("libfoo", "1.2.0")
		deps := m.Package(i).Deps
		require.Len(t, deps, 1)
		assert.Equal(t, metadata.DepNormal, deps[0].Kind)
		assert.Equal(t, "cfg(unix)", deps[0].Target)
	})

	t.Run("injected edge to unknown package is fatal", func(t *testing.T) {
		t.Parallel()
		m := testModel(t)
		diags := diag.NewCollector()

		Apply(context.Background(), m, []settings.Override{
			{Name: "libfoo", Version: "1.2.0", ExtraDeps: []settings.ExtraDep{
				{Name: "ghost", Version: "1.0.0"},
			}},
		}, diags)

		require.True(t, diags.HasFatal())
		assert.Contains(t, diags.Err().Error(), "dangling dependency edge to ghost-1.0.0")
	})
}
