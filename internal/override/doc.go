// Package override applies user-declared per-crate customizations on top of
// the raw metadata model.
//
// Overrides are additive and explicit: flags are appended to crate-declared
// ones, injected dependency edges are always-active unless the override names
// a predicate, and a skip must be paired with remove_deps on every dependent
// or the run fails. Conflicting overrides for the same attribute resolve
// last-applied-wins, in settings-document declaration order; list attributes
// append in that order and drop exact duplicates.
package override
