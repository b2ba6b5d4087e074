// Package selectexpr converts a resolved edge's triple-subset annotation
// into the target build language's conditional construct: a mapping from
// named platform conditions to values plus a default branch.
//
// The synthesizer never approximates. A subset that no combination of named
// conditions reproduces exactly is a fatal unrepresentable-conditional error,
// because silently widening or narrowing a dependency's applicability would
// corrupt the build graph.
package selectexpr

import (
	"fmt"
	"sort"
	"strings"
)

// Condition is one named platform condition of the target language and the
// triple subset it selects.
type Condition struct {
	Label   string
	Triples []string
}

// Expr is a synthesized conditional: either "always", or the union of the
// named conditions in Labels (lexicographically sorted for stable output).
type Expr struct {
	Always bool
	Labels []string
}

// Synthesizer matches triple subsets against the catalog of named
// conditions. One condition per requested triple always exists, labeled
// "<prefix>:<triple>"; settings may add group conditions on top.
type Synthesizer struct {
	requested  []string
	conditions []Condition
	setByLabel map[string]map[string]bool
}

// New builds a synthesizer for the requested triple set. Group conditions
// are clipped to the requested set; a group left empty by clipping is
// dropped, since it could never be selected. Duplicate labels are an error.
func New(labelPrefix string, requested []string, groups []Condition) (*Synthesizer, error) {
	s := &Synthesizer{
		requested:  append([]string(nil), requested...),
		setByLabel: make(map[string]map[string]bool),
	}
	sort.Strings(s.requested)
	inRequested := make(map[string]bool, len(s.requested))
	for _, t := range s.requested {
		inRequested[t] = true
	}

	add := func(label string, triples []string) error {
		if _, dup := s.setByLabel[label]; dup {
			return fmt.Errorf("duplicate platform condition label %q", label)
		}
		set := make(map[string]bool, len(triples))
		sorted := make([]string, len(triples))
		copy(sorted, triples)
		sort.Strings(sorted)
		for _, t := range sorted {
			set[t] = true
		}
		s.setByLabel[label] = set
		s.conditions = append(s.conditions, Condition{Label: label, Triples: sorted})
		return nil
	}

	for _, t := range s.requested {
		if err := add(labelPrefix+":"+t, []string{t}); err != nil {
			return nil, err
		}
	}
	for _, g := range groups {
		var clipped []string
		for _, t := range g.Triples {
			if inRequested[t] {
				clipped = append(clipped, t)
			}
		}
		if len(clipped) == 0 {
			continue
		}
		if err := add(g.Label, clipped); err != nil {
			return nil, err
		}
	}

	sort.Slice(s.conditions, func(i, j int) bool { return s.conditions[i].Label < s.conditions[j].Label })
	return s, nil
}

// NewRestricted builds a synthesizer over an explicit condition catalog with
// no implicit per-triple conditions. With a restricted catalog some triple
// subsets may be unrepresentable; Synthesize reports those as errors.
func NewRestricted(requested []string, conditions []Condition) (*Synthesizer, error) {
	s := &Synthesizer{
		requested:  append([]string(nil), requested...),
		setByLabel: make(map[string]map[string]bool),
	}
	sort.Strings(s.requested)
	for _, c := range conditions {
		if _, dup := s.setByLabel[c.Label]; dup {
			return nil, fmt.Errorf("duplicate platform condition label %q", c.Label)
		}
		set := make(map[string]bool, len(c.Triples))
		sorted := make([]string, len(c.Triples))
		copy(sorted, c.Triples)
		sort.Strings(sorted)
		for _, t := range sorted {
			set[t] = true
		}
		s.setByLabel[c.Label] = set
		s.conditions = append(s.conditions, Condition{Label: c.Label, Triples: sorted})
	}
	sort.Slice(s.conditions, func(i, j int) bool { return s.conditions[i].Label < s.conditions[j].Label })
	return s, nil
}

// Synthesize produces the minimal expression selecting exactly the given
// triple subset.
func (s *Synthesizer) Synthesize(triples []string) (Expr, error) {
	if len(triples) == 0 {
		return Expr{}, fmt.Errorf("cannot synthesize a condition for an empty triple subset")
	}
	subset := make(map[string]bool, len(triples))
	for _, t := range triples {
		subset[t] = true
	}
	if len(subset) == len(s.requested) {
		all := true
		for _, t := range s.requested {
			if !subset[t] {
				all = false
				break
			}
		}
		if all {
			return Expr{Always: true}, nil
		}
	}

	// A single condition covering the subset exactly beats any union.
	// Conditions are in label order, so ties resolve deterministically.
	for _, c := range s.conditions {
		if setsEqual(s.setByLabel[c.Label], subset) {
			return Expr{Labels: []string{c.Label}}, nil
		}
	}

	// Greedy union cover: consider only conditions fully inside the subset,
	// widest first so group labels win over runs of per-triple labels.
	var candidates []Condition
	for _, c := range s.conditions {
		if setContains(subset, s.setByLabel[c.Label]) {
			candidates = append(candidates, c)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if len(candidates[i].Triples) != len(candidates[j].Triples) {
			return len(candidates[i].Triples) > len(candidates[j].Triples)
		}
		return candidates[i].Label < candidates[j].Label
	})

	covered := make(map[string]bool)
	var labels []string
	for _, c := range candidates {
		adds := false
		for _, t := range c.Triples {
			if !covered[t] {
				adds = true
				break
			}
		}
		if !adds {
			continue
		}
		labels = append(labels, c.Label)
		for _, t := range c.Triples {
			covered[t] = true
		}
		if len(covered) == len(subset) {
			break
		}
	}

	if !setsEqual(covered, subset) {
		missing := make([]string, 0)
		for t := range subset {
			if !covered[t] {
				missing = append(missing, t)
			}
		}
		sort.Strings(missing)
		return Expr{}, fmt.Errorf("no combination of named platform conditions selects exactly [%s]; unmatched: %s",
			strings.Join(sortedSet(subset), ", "), strings.Join(missing, ", "))
	}

	sort.Strings(labels)
	return Expr{Labels: labels}, nil
}

// Eval reports whether the expression selects the given triple. Used by
// round-trip verification: a synthesized expression must reproduce the
// resolver's per-triple classification exactly.
func (s *Synthesizer) Eval(e Expr, triple string) bool {
	if e.Always {
		return true
	}
	for _, label := range e.Labels {
		if s.setByLabel[label][triple] {
			return true
		}
	}
	return false
}

func setsEqual(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func setContains(outer, inner map[string]bool) bool {
	for k := range inner {
		if !outer[k] {
			return false
		}
	}
	return true
}

func sortedSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
