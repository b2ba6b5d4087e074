package metadata

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/bzlcrate/internal/diag"
)

func loadString(t *testing.T, doc string) (*Model, *diag.Collector, error) {
	t.Helper()
	diags := diag.NewCollector()
	m, err := Load(context.Background(), strings.NewReader(doc), diags)
	return m, diags, err
}

func TestLoad_Minimal(t *testing.T) {
	t.Parallel()

	m, diags, err := loadString(t, `{
		"packages": [
			{
				"name": "app",
				"version": "0.1.0",
				"source": "workspace",
				"edition": "2018",
				"dependencies": [
					{"name": "libfoo", "version": "1.2.0"}
				],
				"targets": [
					{"name": "app", "kind": "bin", "crate_root": "src/main.rs"}
				]
			},
			{
				"name": "libfoo",
				"version": "1.2.0",
				"source": "registry",
				"checksum": "abc123",
				"license": "MIT",
				"targets": [
					{"name": "libfoo", "kind": "lib", "crate_root": "src/lib.rs", "edition": "2015"}
				]
			}
		]
	}`)
	require.NoError(t, err)
	require.False(t, diags.HasFatal())

	assert.Equal(t, 2, m.Len())
	assert.Equal(t, []int{0}, m.Roots())

	i, ok := m.Lookup("libfoo", "1.2.0")
	require.True(t, ok)
	p := m.Package(i)
	assert.Equal(t, KindLibrary, p.Kind())
	assert.Equal(t, "MIT", p.License)

	lib, ok := p.LibTarget()
	require.True(t, ok)
	assert.Equal(t, "src/lib.rs", lib.CrateRoot)
	assert.Equal(t, "2015", lib.Edition)

	// Edge defaults to the normal kind.
	app := m.Package(0)
	require.Len(t, app.Deps, 1)
	assert.Equal(t, DepNormal, app.Deps[0].Kind)
}

func TestLoad_TargetEditionFallsBackToPackage(t *testing.T) {
	t.Parallel()

	m, diags, err := loadString(t, `{
		"packages": [
			{
				"name": "libbar",
				"version": "2.0.0",
				"source": "git",
				"edition": "2021",
				"targets": [
					{"name": "libbar", "kind": "lib", "crate_root": "src/lib.rs"}
				]
			}
		]
	}`)
	require.NoError(t, err)
	require.False(t, diags.HasFatal())

	lib, ok := m.Package(0).LibTarget()
	require.True(t, ok)
	assert.Equal(t, "2021", lib.Edition)
}

func TestLoad_FatalFindings(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "unknown source kind",
			doc: `{"packages": [
				{"name": "a", "version": "1.0.0", "source": "mirror",
				 "targets": [{"name": "a", "kind": "lib", "crate_root": "src/lib.rs"}]}
			]}`,
			want: `unknown package source kind "mirror"`,
		},
		{
			name: "registry package without checksum",
			doc: `{"packages": [
				{"name": "a", "version": "1.0.0", "source": "registry",
				 "targets": [{"name": "a", "kind": "lib", "crate_root": "src/lib.rs"}]}
			]}`,
			want: "no lockfile checksum",
		},
		{
			name: "missing crate root",
			doc: `{"packages": [
				{"name": "a", "version": "1.0.0", "source": "workspace",
				 "targets": [{"name": "a", "kind": "lib", "crate_root": ""}]}
			]}`,
			want: "no crate root",
		},
		{
			name: "unknown dependency kind",
			doc: `{"packages": [
				{"name": "a", "version": "1.0.0", "source": "workspace",
				 "dependencies": [{"name": "b", "version": "1.0.0", "kind": "runtime"}],
				 "targets": [{"name": "a", "kind": "lib", "crate_root": "src/lib.rs"}]},
				{"name": "b", "version": "1.0.0", "source": "workspace",
				 "targets": [{"name": "b", "kind": "lib", "crate_root": "src/lib.rs"}]}
			]}`,
			want: `unknown kind "runtime"`,
		},
		{
			name: "dangling edge",
			doc: `{"packages": [
				{"name": "a", "version": "1.0.0", "source": "workspace",
				 "dependencies": [{"name": "ghost", "version": "0.9.0"}],
				 "targets": [{"name": "a", "kind": "lib", "crate_root": "src/lib.rs"}]}
			]}`,
			want: "dangling dependency edge to ghost-0.9.0",
		},
		{
			name: "undeclared feature gate",
			doc: `{"packages": [
				{"name": "a", "version": "1.0.0", "source": "workspace",
				 "dependencies": [{"name": "b", "version": "1.0.0", "feature_gate": "turbo"}],
				 "targets": [{"name": "a", "kind": "lib", "crate_root": "src/lib.rs"}]},
				{"name": "b", "version": "1.0.0", "source": "workspace",
				 "targets": [{"name": "b", "kind": "lib", "crate_root": "src/lib.rs"}]}
			]}`,
			want: `gated on undeclared feature "turbo"`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, diags, err := loadString(t, tc.doc)
			require.NoError(t, err, "structural findings go to the collector, not the error return")
			require.True(t, diags.HasFatal())
			assert.Contains(t, diags.Err().Error(), tc.want)
		})
	}
}

func TestLoad_OptionalDepCountsAsFeature(t *testing.T) {
	t.Parallel()

	// A feature gate naming an optional dependency's implicit feature is
	// declared enough; only truly unknown names are fatal.
	_, diags, err := loadString(t, `{
		"packages": [
			{"name": "a", "version": "1.0.0", "source": "workspace",
			 "dependencies": [
				{"name": "b", "version": "1.0.0", "optional": true},
				{"name": "c", "version": "1.0.0", "feature_gate": "b"}
			 ],
			 "targets": [{"name": "a", "kind": "lib", "crate_root": "src/lib.rs"}]},
			{"name": "b", "version": "1.0.0", "source": "workspace",
			 "targets": [{"name": "b", "kind": "lib", "crate_root": "src/lib.rs"}]},
			{"name": "c", "version": "1.0.0", "source": "workspace",
			 "targets": [{"name": "c", "kind": "lib", "crate_root": "src/lib.rs"}]}
		]
	}`)
	require.NoError(t, err)
	assert.False(t, diags.HasFatal())
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	t.Parallel()

	_, _, err := loadString(t, `{"packages": [], "extra": true}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding metadata document")
}

func TestLoad_DuplicatePackage(t *testing.T) {
	t.Parallel()

	_, _, err := loadString(t, `{
		"packages": [
			{"name": "a", "version": "1.0.0", "source": "workspace",
			 "targets": [{"name": "a", "kind": "lib", "crate_root": "src/lib.rs"}]},
			{"name": "a", "version": "1.0.0", "source": "workspace",
			 "targets": [{"name": "a", "kind": "lib", "crate_root": "src/lib.rs"}]}
		]
	}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate package")
}

func TestPackage_Kind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		targets []Target
		want    CrateKind
	}{
		{"lib", []Target{{Kind: "lib"}}, KindLibrary},
		{"bin only", []Target{{Kind: "bin"}}, KindBinary},
		{"lib wins over bin", []Target{{Kind: "bin"}, {Kind: "lib"}}, KindLibrary},
		{"proc macro wins", []Target{{Kind: "lib"}, {Kind: "proc-macro"}}, KindProcMacro},
		{"build script alone is unsupported", []Target{{Kind: "custom-build"}}, KindUnsupported},
		{"cdylib is unsupported", []Target{{Kind: "cdylib"}}, KindUnsupported},
		{"no targets", nil, KindUnsupported},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := &Package{Targets: tc.targets}
			assert.Equal(t, tc.want, p.Kind())
		})
	}
}

func TestModel_SortedArena(t *testing.T) {
	t.Parallel()

	m, err := NewModel([]*Package{
		{Name: "zeta", Version: "1.0.0"},
		{Name: "alpha", Version: "2.0.0"},
		{Name: "alpha", Version: "1.0.0"},
	})
	require.NoError(t, err)

	assert.Equal(t, "alpha-1.0.0", m.Package(0).ID())
	assert.Equal(t, "alpha-2.0.0", m.Package(1).ID())
	assert.Equal(t, "zeta-1.0.0", m.Package(2).ID())
}
