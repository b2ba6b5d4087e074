package render

// Template text for the generated files. Heavy formatting (lists, selects,
// dicts) happens in Go helpers so the templates stay thin; the helpers own
// indentation and the templates own attribute layout.

const crateTemplate = `{{ .Header }}
#
# Rules for the {{ .Name }}-{{ .Version }} crate.
{{- if .Omitted }}
#
# No rule generated: {{ .OmitReason }}
{{- else }}

package(default_visibility = ["//visibility:public"])

licenses({{ inline .LicenseTags }})

load(
    "@rules_rust//rust:defs.bzl",
    "rust_binary",
    "rust_library",
    "rust_proc_macro",
)
{{- if .BuildScript }}

load("@rules_rust//cargo:defs.bzl", "cargo_build_script")

cargo_build_script(
    name = {{ quote .BuildScript.RuleName }},
    srcs = glob({{ list .SrcGlobs 1 }}),
    crate_root = {{ quote .BuildScript.CrateRoot }},
    edition = {{ quote .BuildScript.Edition }},
{{- if .Features }}
    crate_features = {{ list .Features 1 }},
{{- end }}
{{- if .BuildScript.Env }}
    build_script_env = {{ dict .BuildScript.Env 1 }},
{{- end }}
    deps = {{ deps .BuildScript.Deps 1 }},
    visibility = ["//visibility:private"],
)
{{- end }}
{{- if .HasLib }}

{{ libRule .Kind }}(
    name = {{ quote .RuleName }},
    srcs = glob({{ list .SrcGlobs 1 }}),
    crate_root = {{ quote .CrateRoot }},
    edition = {{ quote .Edition }},
{{- if .FeatureSelect }}
    crate_features = {{ featsel .FeatureSelect 1 }},
{{- else if .Features }}
    crate_features = {{ list .Features 1 }},
{{- end }}
{{- if .RustcFlags }}
    rustc_flags = {{ list .RustcFlags 1 }},
{{- end }}
{{- if .LinkFlags }}
    rustc_link_flags = {{ list .LinkFlags 1 }},
{{- end }}
    deps = {{ deps .Deps 1 }},
{{- if or .ProcMacroDeps.Always .ProcMacroDeps.Select }}
    proc_macro_deps = {{ deps .ProcMacroDeps 1 }},
{{- end }}
)
{{- end }}
{{- range .Bins }}

rust_binary(
    name = {{ quote .RuleName }},
    srcs = glob({{ list $.SrcGlobs 1 }}),
    crate_root = {{ quote .CrateRoot }},
    edition = {{ quote .Edition }},
{{- if $.FeatureSelect }}
    crate_features = {{ featsel $.FeatureSelect 1 }},
{{- else if $.Features }}
    crate_features = {{ list $.Features 1 }},
{{- end }}
{{- if $.RustcFlags }}
    rustc_flags = {{ list $.RustcFlags 1 }},
{{- end }}
    deps = {{ deps $.BinDeps 1 }},
{{- if or $.ProcMacroDeps.Always $.ProcMacroDeps.Select }}
    proc_macro_deps = {{ deps $.ProcMacroDeps 1 }},
{{- end }}
)
{{- end }}
{{- end }}
{{- if .AdditionalContent }}

# Content below comes from the crate's configured additional build file.

{{ .AdditionalContent }}
{{- end }}
`

const aliasesTemplate = `{{ .Header }}
#
# Aliases for the workspace's direct crate dependencies.

package(default_visibility = ["//visibility:public"])
{{- range .Aliases }}

alias(
    name = {{ quote .Name }},
    actual = {{ quote .Actual }},
)
{{- end }}
`

const aggregatorTemplate = `{{ .Header }}
"""Fetch rules for every remote crate in the resolved graph."""

load("@bazel_tools//tools/build_defs/repo:http.bzl", "http_archive")

def crate_repositories():
{{- if not .Crates }}
    pass
{{- end }}
{{- range .Crates }}
    http_archive(
        name = {{ quote .RepoName }},
        url = {{ quote .URL }},
        sha256 = {{ quote .Sha256 }},
        strip_prefix = {{ quote .StripPrefix }},
        type = "tar.gz",
        build_file = Label({{ quote .BuildFile }}),
    )
{{- end }}
`
