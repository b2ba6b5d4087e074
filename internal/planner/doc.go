// Package planner maps rendered file contents to their workspace locations
// and commits the whole output set in one pass.
//
// All contents are staged in memory first; nothing touches the filesystem
// until Commit. Commit also prunes orphans: files under the output root that
// carry the generation marker on their first line but are absent from the
// current plan. Files without the marker are never modified or deleted, so a
// hand-written file sitting inside the output tree survives every run.
package planner
