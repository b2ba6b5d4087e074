// Package platform evaluates target-conditional predicates against a catalog
// of known target triples.
//
// A predicate is either a bare triple name or a cfg(...) expression over
// target attributes (target_os, target_family, target_arch and friends).
// Matching is a pure function of the predicate source string and the catalog;
// the Matcher memoizes match sets because the same predicate string recurs
// across many dependency edges.
package platform
