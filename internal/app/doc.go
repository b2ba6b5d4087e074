// Package app contains the core application logic. It wires the generation
// pipeline end to end: load settings and metadata, apply overrides, resolve
// the graph per platform, render build files and commit them atomically,
// decoupled from any specific entrypoint like a CLI.
package app
