// Package license translates declared license expressions into the target
// build tool's license-category tags.
//
// Expressions use SPDX syntax: identifiers combined with AND, OR, WITH and
// parentheses (plus the legacy "/" separator meaning OR). Each identifier
// maps to a category through an injected table; an identifier with no known
// mapping is a warning-level gap and defaults to the most restrictive
// category rather than failing the run.
package license

import (
	"fmt"
	"sort"
	"strings"
)

// Category is a license-category tag understood by the build tool, ordered
// from least to most restrictive.
type Category string

const (
	Unencumbered Category = "unencumbered"
	Notice       Category = "notice"
	Reciprocal   Category = "reciprocal"
	Restricted   Category = "restricted"
)

// MostRestrictive is the category assumed for unknown identifiers.
const MostRestrictive = Restricted

// Table maps SPDX license identifiers to categories. Compound
// "identifier WITH exception" keys take precedence over the bare identifier.
type Table map[string]Category

// DefaultTable returns the built-in identifier mapping.
func DefaultTable() Table {
	return Table{
		"0BSD":         Unencumbered,
		"CC0-1.0":      Unencumbered,
		"Unlicense":    Unencumbered,
		"WTFPL":        Unencumbered,
		"Apache-2.0":   Notice,
		"BSD-2-Clause": Notice,
		"BSD-3-Clause": Notice,
		"BSL-1.0":      Notice,
		"ISC":          Notice,
		"MIT":          Notice,
		"OpenSSL":      Notice,
		"Zlib":         Notice,
		"CDDL-1.0":     Reciprocal,
		"EPL-2.0":      Reciprocal,
		"MPL-2.0":      Reciprocal,
		"AGPL-3.0":     Restricted,
		"GPL-2.0":      Restricted,
		"GPL-3.0":      Restricted,
		"LGPL-2.1":     Restricted,
		"LGPL-3.0":     Restricted,

		"Apache-2.0 WITH LLVM-exception":       Notice,
		"GPL-2.0 WITH Classpath-exception-2.0": Reciprocal,
	}
}

// Result is the categorized form of one license expression.
type Result struct {
	// Categories are the sorted, de-duplicated tags for every identifier in
	// the expression.
	Categories []Category
	// Unknown lists identifiers absent from the table, each of which
	// contributed MostRestrictive to Categories.
	Unknown []string
}

// Categorize parses the expression and maps every identifier through the
// table. An empty expression yields the most restrictive category and is
// reported via Unknown as well, since an undeclared license is a gap of the
// same kind. A malformed expression is an error; the caller decides severity.
func Categorize(expr string, table Table) (Result, error) {
	if strings.TrimSpace(expr) == "" {
		return Result{
			Categories: []Category{MostRestrictive},
			Unknown:    []string{"(no license declared)"},
		}, nil
	}

	idents, err := identifiers(expr)
	if err != nil {
		return Result{}, err
	}

	catSet := make(map[Category]bool)
	var unknown []string
	for _, id := range idents {
		if cat, ok := table[id]; ok {
			catSet[cat] = true
			continue
		}
		// Normalize "-only"/"-or-later" SPDX suffixes before giving up.
		base := strings.TrimSuffix(strings.TrimSuffix(id, "-only"), "-or-later")
		if cat, ok := table[base]; ok {
			catSet[cat] = true
			continue
		}
		catSet[MostRestrictive] = true
		unknown = append(unknown, id)
	}

	cats := make([]Category, 0, len(catSet))
	for c := range catSet {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
	sort.Strings(unknown)
	return Result{Categories: cats, Unknown: unknown}, nil
}

// identifiers extracts every license identifier from an SPDX expression,
// folding "X WITH Y" pairs into one compound identifier. Order follows the
// expression; duplicates are dropped.
func identifiers(expr string) ([]string, error) {
	// Parentheses only group; the identifier set is the same without them.
	cleaned := strings.NewReplacer("(", " ", ")", " ", "/", " OR ").Replace(expr)
	fields := strings.Fields(cleaned)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty license expression %q", expr)
	}

	var idents []string
	seen := make(map[string]bool)
	expectOperand := true
	for i := 0; i < len(fields); i++ {
		tok := fields[i]
		switch tok {
		case "AND", "OR":
			if expectOperand {
				return nil, fmt.Errorf("malformed license expression %q: operator %q needs a left operand", expr, tok)
			}
			expectOperand = true
		case "WITH":
			if expectOperand || len(idents) == 0 || i+1 >= len(fields) {
				return nil, fmt.Errorf("malformed license expression %q: dangling WITH", expr)
			}
			i++
			last := idents[len(idents)-1]
			compound := last + " WITH " + fields[i]
			delete(seen, last)
			idents = idents[:len(idents)-1]
			if !seen[compound] {
				seen[compound] = true
				idents = append(idents, compound)
			}
		default:
			if !expectOperand {
				return nil, fmt.Errorf("malformed license expression %q: missing operator before %q", expr, tok)
			}
			if !seen[tok] {
				seen[tok] = true
				idents = append(idents, tok)
			}
			expectOperand = false
		}
	}
	if expectOperand {
		return nil, fmt.Errorf("malformed license expression %q: trailing operator", expr)
	}
	return idents, nil
}
