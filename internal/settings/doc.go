// Package settings loads the generation settings document: output mode and
// root, target-triple allowlist, named platform condition groups, and the
// per-crate override table.
//
// The native format is HCL. The same settings can also live inside a TOML
// manifest under a [metadata.bzlcrate] stanza, which eases migration for
// projects that keep tool configuration next to their dependency manifest.
// Both loaders translate into the same format-agnostic Settings model.
package settings
