package platform

import (
	"fmt"
	"sort"
)

// Triple describes one target triple and the attributes that cfg() predicates
// test against. Values mirror the compiler's built-in target definitions.
type Triple struct {
	Name         string
	OS           string // target_os, e.g. "linux"
	Family       string // target_family: "unix", "windows", or ""
	Arch         string // target_arch, e.g. "x86_64"
	Env          string // target_env, e.g. "gnu"
	Vendor       string // target_vendor, e.g. "apple"
	PointerWidth int    // target_pointer_width: 32 or 64
	Endian       string // target_endian: "little" or "big"
}

// Catalog is an immutable set of known target triples. It is loaded once per
// run and injected wherever predicate matching happens, so tests can
// substitute smaller catalogs.
type Catalog struct {
	triples []Triple
	byName  map[string]int
}

// NewCatalog builds a catalog from the given triples. Triple names must be
// unique.
func NewCatalog(triples []Triple) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]int, len(triples))}
	for _, t := range triples {
		if _, dup := c.byName[t.Name]; dup {
			return nil, fmt.Errorf("duplicate triple in catalog: %q", t.Name)
		}
		c.byName[t.Name] = len(c.triples)
		c.triples = append(c.triples, t)
	}
	return c, nil
}

// Restrict returns a new catalog containing only the named triples, in
// catalog order. Naming a triple absent from the catalog is an error, since
// a silently ignored allowlist entry would generate for the wrong platforms.
func (c *Catalog) Restrict(names []string) (*Catalog, error) {
	if len(names) == 0 {
		return c, nil
	}
	allowed := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := c.byName[n]; !ok {
			return nil, fmt.Errorf("unknown target triple in allowlist: %q", n)
		}
		allowed[n] = true
	}
	var kept []Triple
	for _, t := range c.triples {
		if allowed[t.Name] {
			kept = append(kept, t)
		}
	}
	return NewCatalog(kept)
}

// Lookup returns the triple with the given name.
func (c *Catalog) Lookup(name string) (Triple, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Triple{}, false
	}
	return c.triples[i], true
}

// Names returns all triple names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.triples))
	for _, t := range c.triples {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of triples in the catalog.
func (c *Catalog) Len() int {
	return len(c.triples)
}

// DefaultCatalog returns the built-in catalog of supported target triples.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultTriples)
	if err != nil {
		// The built-in table is validated by tests; a duplicate here is a
		// programmer error.
		panic(err)
	}
	return c
}

// defaultTriples lists the tier-1 and tier-2 platforms the generated build
// rules support.
var defaultTriples = []Triple{
	// Tier 1
	{Name: "i686-apple-darwin", OS: "macos", Family: "unix", Arch: "x86", Vendor: "apple", PointerWidth: 32, Endian: "little"},
	{Name: "i686-pc-windows-gnu", OS: "windows", Family: "windows", Arch: "x86", Env: "gnu", Vendor: "pc", PointerWidth: 32, Endian: "little"},
	{Name: "i686-unknown-linux-gnu", OS: "linux", Family: "unix", Arch: "x86", Env: "gnu", Vendor: "unknown", PointerWidth: 32, Endian: "little"},
	{Name: "x86_64-apple-darwin", OS: "macos", Family: "unix", Arch: "x86_64", Vendor: "apple", PointerWidth: 64, Endian: "little"},
	{Name: "x86_64-pc-windows-gnu", OS: "windows", Family: "windows", Arch: "x86_64", Env: "gnu", Vendor: "pc", PointerWidth: 64, Endian: "little"},
	{Name: "x86_64-unknown-linux-gnu", OS: "linux", Family: "unix", Arch: "x86_64", Env: "gnu", Vendor: "unknown", PointerWidth: 64, Endian: "little"},
	// Tier 2
	{Name: "aarch64-apple-ios", OS: "ios", Family: "unix", Arch: "aarch64", Vendor: "apple", PointerWidth: 64, Endian: "little"},
	{Name: "aarch64-linux-android", OS: "android", Family: "unix", Arch: "aarch64", Vendor: "unknown", PointerWidth: 64, Endian: "little"},
	{Name: "aarch64-unknown-linux-gnu", OS: "linux", Family: "unix", Arch: "aarch64", Env: "gnu", Vendor: "unknown", PointerWidth: 64, Endian: "little"},
	{Name: "arm-unknown-linux-gnueabi", OS: "linux", Family: "unix", Arch: "arm", Env: "gnu", Vendor: "unknown", PointerWidth: 32, Endian: "little"},
	{Name: "i686-linux-android", OS: "android", Family: "unix", Arch: "x86", Vendor: "unknown", PointerWidth: 32, Endian: "little"},
	{Name: "i686-unknown-freebsd", OS: "freebsd", Family: "unix", Arch: "x86", Vendor: "unknown", PointerWidth: 32, Endian: "little"},
	{Name: "powerpc-unknown-linux-gnu", OS: "linux", Family: "unix", Arch: "powerpc", Env: "gnu", Vendor: "unknown", PointerWidth: 32, Endian: "big"},
	{Name: "s390x-unknown-linux-gnu", OS: "linux", Family: "unix", Arch: "s390x", Env: "gnu", Vendor: "unknown", PointerWidth: 64, Endian: "big"},
	{Name: "wasm32-unknown-unknown", OS: "unknown", Arch: "wasm32", Vendor: "unknown", PointerWidth: 32, Endian: "little"},
	{Name: "x86_64-apple-ios", OS: "ios", Family: "unix", Arch: "x86_64", Vendor: "apple", PointerWidth: 64, Endian: "little"},
	{Name: "x86_64-linux-android", OS: "android", Family: "unix", Arch: "x86_64", Vendor: "unknown", PointerWidth: 64, Endian: "little"},
	{Name: "x86_64-unknown-freebsd", OS: "freebsd", Family: "unix", Arch: "x86_64", Vendor: "unknown", PointerWidth: 64, Endian: "little"},
}
