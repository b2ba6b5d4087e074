package resolver

import (
	"strings"

	"github.com/vk/bzlcrate/internal/diag"
	"github.com/vk/bzlcrate/internal/metadata"
)

// detectCycles runs a depth-first search over the normal and build dependency
// edges and reports every distinct cycle found as a fatal diagnostic carrying
// the cycle path. Dev edges are exempt: the build tool never links a crate
// into its own dev-only consumers.
func detectCycles(model *metadata.Model, diags *diag.Collector) {
	const (
		unvisited = iota
		inStack
		done
	)
	state := make([]int, model.Len())
	var stack []int

	var visit func(i int)
	visit = func(i int) {
		state[i] = inStack
		stack = append(stack, i)

		p := model.Package(i)
		for _, d := range p.Deps {
			if d.Kind == metadata.DepDev {
				continue
			}
			j, ok := model.Lookup(d.Name, d.Version)
			if !ok || model.Package(j).Skipped {
				// Dangling and skipped edges are reported elsewhere.
				continue
			}
			switch state[j] {
			case inStack:
				diags.Fatalf(p.ID(), "dependency cycle: %s", cyclePath(model, stack, j))
			case unvisited:
				visit(j)
			}
		}

		stack = stack[:len(stack)-1]
		state[i] = done
	}

	for i := 0; i < model.Len(); i++ {
		if state[i] == unvisited && !model.Package(i).Skipped {
			visit(i)
		}
	}
}

// cyclePath renders the portion of the DFS stack from the repeated node
// onward, closing the loop, e.g. "a-1.0 -> b-2.0 -> a-1.0".
func cyclePath(model *metadata.Model, stack []int, repeat int) string {
	start := 0
	for k, idx := range stack {
		if idx == repeat {
			start = k
			break
		}
	}
	var parts []string
	for _, idx := range stack[start:] {
		parts = append(parts, model.Package(idx).ID())
	}
	parts = append(parts, model.Package(repeat).ID())
	return strings.Join(parts, " -> ")
}
