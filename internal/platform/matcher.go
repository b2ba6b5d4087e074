package platform

import (
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// matchCacheSize bounds the memoized match sets. A run touches far fewer
// distinct predicate strings than this in practice.
const matchCacheSize = 1024

// Matcher answers which catalog triples satisfy a predicate. It owns two
// explicit memoization tables keyed by predicate source string: parsed
// predicates and computed match sets. Results are a pure function of
// (source, catalog), so memoization never changes an answer.
type Matcher struct {
	catalog *Catalog

	mu     sync.Mutex
	parsed map[string]*Predicate

	sets *lru.Cache[string, []string]
}

// NewMatcher creates a Matcher over the given catalog.
func NewMatcher(catalog *Catalog) *Matcher {
	sets, err := lru.New[string, []string](matchCacheSize)
	if err != nil {
		// Only reachable with a non-positive size constant.
		panic(err)
	}
	return &Matcher{
		catalog: catalog,
		parsed:  make(map[string]*Predicate),
		sets:    sets,
	}
}

// Catalog returns the catalog this matcher evaluates against.
func (m *Matcher) Catalog() *Catalog {
	return m.catalog
}

// MatchingTriples returns the sorted names of every catalog triple satisfying
// the predicate source. An empty source means "always" and matches the whole
// catalog.
func (m *Matcher) MatchingTriples(source string) ([]string, error) {
	if source == "" {
		return m.catalog.Names(), nil
	}
	if cached, ok := m.sets.Get(source); ok {
		return cached, nil
	}

	pred, err := m.predicate(source)
	if err != nil {
		return nil, err
	}

	var matched []string
	for _, name := range m.catalog.Names() {
		t, _ := m.catalog.Lookup(name)
		if pred.Matches(t) {
			matched = append(matched, name)
		}
	}
	sort.Strings(matched)
	m.sets.Add(source, matched)
	return matched, nil
}

// Matches reports whether the predicate source is satisfied by the named
// triple. Triples outside the catalog never match.
func (m *Matcher) Matches(source, triple string) (bool, error) {
	if source == "" {
		_, ok := m.catalog.Lookup(triple)
		return ok, nil
	}
	matched, err := m.MatchingTriples(source)
	if err != nil {
		return false, err
	}
	for _, name := range matched {
		if name == triple {
			return true, nil
		}
	}
	return false, nil
}

// AlwaysTrue reports whether the predicate matches every triple in the
// catalog.
func (m *Matcher) AlwaysTrue(source string) (bool, error) {
	matched, err := m.MatchingTriples(source)
	if err != nil {
		return false, err
	}
	return len(matched) == m.catalog.Len(), nil
}

func (m *Matcher) predicate(source string) (*Predicate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.parsed[source]; ok {
		return p, nil
	}
	p, err := ParsePredicate(source)
	if err != nil {
		return nil, err
	}
	m.parsed[source] = p
	return p, nil
}
