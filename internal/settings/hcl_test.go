package settings

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSettings(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFile_HCL(t *testing.T) {
	t.Parallel()

	path := writeSettings(t, "settings.hcl", `
generation {
  mode        = "vendored"
  output_root = "third_party/cargo"
  triples     = ["x86_64-unknown-linux-gnu", "x86_64-pc-windows-gnu"]
}

platform_group "desktop" {
  triples = ["x86_64-unknown-linux-gnu", "x86_64-pc-windows-gnu"]
}

crate "openssl-sys" "0.9.60" {
  features    = ["vendored"]
  rustc_flags = ["--cap-lints=allow"]

  build_script_env = {
    OPENSSL_STATIC = "1"
  }

  extra_dep {
    name    = "libc"
    version = "0.2.80"
    target  = "cfg(unix)"
  }
}
`)

	s, err := LoadFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, ModeVendored, s.Mode)
	assert.Equal(t, "third_party/cargo", s.OutputRoot)
	assert.Equal(t, []string{"x86_64-unknown-linux-gnu", "x86_64-pc-windows-gnu"}, s.Triples)

	// Defaults fill unset fields.
	assert.Equal(t, DefaultBuildfileSuffix, s.BuildfileSuffix)
	assert.Equal(t, DefaultPlatformLabelPrefix, s.PlatformLabelPrefix)
	assert.Equal(t, DefaultWorkspacePrefix, s.WorkspacePrefix)

	require.Len(t, s.Groups, 1)
	assert.Equal(t, "desktop", s.Groups[0].Name)
	assert.Equal(t, DefaultPlatformLabelPrefix+":desktop", s.Groups[0].Label)

	require.Len(t, s.Overrides, 1)
	o := s.Overrides[0]
	assert.Equal(t, "openssl-sys-0.9.60", o.ID())
	assert.Equal(t, []string{"vendored"}, o.Features)
	assert.Equal(t, map[string]string{"OPENSSL_STATIC": "1"}, o.BuildScriptEnv)
	require.Len(t, o.ExtraDeps, 1)
	assert.Equal(t, "cfg(unix)", o.ExtraDeps[0].Target)
}

func TestLoadFile_HCL_AdditionalBuildFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "extra.bzl.frag"), []byte("# extra rules\n"), 0o600))
	path := filepath.Join(dir, "settings.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
generation {
  mode        = "remote"
  output_root = "cargo"
}

crate "ring" "0.16.0" {
  additional_build_file = "extra.bzl.frag"
}
`), 0o600))

	s, err := LoadFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, s.Overrides, 1)
	assert.Equal(t, "# extra rules\n", s.Overrides[0].AdditionalContent)
}

func TestLoadFile_HCL_Errors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "syntax error",
			content: "generation {\n  mode = \n}",
			want:    "parsing settings file",
		},
		{
			name:    "missing generation block",
			content: `platform_group "g" { triples = ["x"] }`,
			want:    "missing required generation block",
		},
		{
			name: "unknown mode",
			content: `
generation {
  mode        = "hybrid"
  output_root = "cargo"
}`,
			want: `unknown mode "hybrid"`,
		},
		{
			name: "missing output root",
			content: `
generation {
  mode        = "vendored"
  output_root = ""
}`,
			want: "output_root is required",
		},
		{
			name: "group without triples",
			content: `
generation {
  mode        = "vendored"
  output_root = "cargo"
}
platform_group "empty" {
  triples = []
}`,
			want: "must name at least one triple",
		},
		{
			name: "env is not a string map",
			content: `
generation {
  mode        = "vendored"
  output_root = "cargo"
}
crate "a" "1.0.0" {
  build_script_env = ["nope"]
}`,
			want: "build_script_env",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			path := writeSettings(t, "settings.hcl", tc.content)
			_, err := LoadFile(context.Background(), path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadFile_UnsupportedExtension(t *testing.T) {
	t.Parallel()

	path := writeSettings(t, "settings.yaml", "mode: vendored")
	_, err := LoadFile(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported settings format")
}
