// Package diag collects diagnostics raised across the generation pipeline.
//
// Every stage reports problems here instead of returning on the first error,
// so a failed run surfaces the complete set of findings. Fatal diagnostics
// block the output commit; warnings do not.
package diag

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Severity classifies a diagnostic.
type Severity int

const (
	// Warning marks a recoverable finding. Generation continues.
	Warning Severity = iota
	// Fatal marks a structural inconsistency. The run fails atomically.
	Fatal
)

// String returns the lowercase name of the severity.
func (s Severity) String() string {
	if s == Fatal {
		return "fatal"
	}
	return "warning"
}

// Diagnostic is a single finding, attributed to a package where one is known.
type Diagnostic struct {
	Severity Severity
	// Package is the "name-version" identity of the offending package, or
	// empty for document-level findings.
	Package string
	Summary string
}

// String renders the diagnostic in the canonical single-line form.
func (d Diagnostic) String() string {
	if d.Package == "" {
		return fmt.Sprintf("%s: %s", d.Severity, d.Summary)
	}
	return fmt.Sprintf("%s: %s: %s", d.Severity, d.Package, d.Summary)
}

// Collector accumulates diagnostics. It is safe for concurrent use so the
// resolver can fan out across packages.
type Collector struct {
	mu    sync.Mutex
	diags []Diagnostic
}

// NewCollector returns an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Fatalf records a fatal diagnostic attributed to the given package identity.
func (c *Collector) Fatalf(pkg, format string, args ...any) {
	c.add(Diagnostic{Severity: Fatal, Package: pkg, Summary: fmt.Sprintf(format, args...)})
}

// Warnf records a warning diagnostic attributed to the given package identity.
func (c *Collector) Warnf(pkg, format string, args ...any) {
	c.add(Diagnostic{Severity: Warning, Package: pkg, Summary: fmt.Sprintf(format, args...)})
}

func (c *Collector) add(d Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diags = append(c.diags, d)
}

// HasFatal reports whether any fatal diagnostic has been collected.
func (c *Collector) HasFatal() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.diags {
		if d.Severity == Fatal {
			return true
		}
	}
	return false
}

// Diagnostics returns a stable-ordered copy of all collected diagnostics.
// Fatal findings sort first, then by package identity, then by summary.
func (c *Collector) Diagnostics() []Diagnostic {
	c.mu.Lock()
	out := make([]Diagnostic, len(c.diags))
	copy(out, c.diags)
	c.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Severity != out[j].Severity {
			return out[i].Severity > out[j].Severity
		}
		if out[i].Package != out[j].Package {
			return out[i].Package < out[j].Package
		}
		return out[i].Summary < out[j].Summary
	})
	return out
}

// Err returns an error summarizing all fatal diagnostics, or nil when the
// collector holds none.
func (c *Collector) Err() error {
	if !c.HasFatal() {
		return nil
	}
	var lines []string
	for _, d := range c.Diagnostics() {
		if d.Severity == Fatal {
			lines = append(lines, d.String())
		}
	}
	return fmt.Errorf("generation failed with %d fatal diagnostic(s):\n%s", len(lines), strings.Join(lines, "\n"))
}
