// Package deporder computes a dependency-respecting execution plan for
// a feature set: cycle detection first, then maximal-parallelism groups
// of features eligible to run together.
package deporder

import (
	"fmt"
	"strings"

	"github.com/gammazero/toposort"

	"featureforge/internal/feature"
)

// CyclicDependencyError aborts the run before any orchestration starts.
// There is no partial execution of a cyclic feature set.
type CyclicDependencyError struct {
	Detail string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic dependency in feature set: %s", e.Detail)
}

// Group is a set of feature IDs with no unresolved dependencies on one
// another. Iteration order within a group carries no meaning.
type Group []string

// Order validates the dependency graph and returns execution groups.
// Every feature in group K has all of its dependencies in groups < K.
func Order(features []*feature.Feature) ([]Group, error) {
	byID := make(map[string]*feature.Feature, len(features))
	for _, f := range features {
		if _, dup := byID[f.ID]; dup {
			return nil, fmt.Errorf("duplicate feature id %q", f.ID)
		}
		byID[f.ID] = f
	}
	for _, f := range features {
		for _, dep := range f.Dependencies {
			if _, ok := byID[dep]; !ok {
				return nil, fmt.Errorf("feature %s depends on unknown feature %q", f.ID, dep)
			}
		}
	}

	if err := detectCycle(features); err != nil {
		return nil, err
	}

	return buildGroups(features), nil
}

// detectCycle runs a topological sort over the dependency edges purely
// to surface cycles. The sort's flat order is not used: grouping below
// provides the ordering the coordinator needs.
func detectCycle(features []*feature.Feature) error {
	edges := make([]toposort.Edge, 0)
	for _, f := range features {
		for _, dep := range f.Dependencies {
			edges = append(edges, toposort.Edge{dep, f.ID})
		}
	}
	if len(edges) == 0 {
		return nil
	}
	if _, err := toposort.Toposort(edges); err != nil {
		return &CyclicDependencyError{Detail: err.Error()}
	}
	return nil
}

// buildGroups layers the graph by dependency depth (Kahn levels): a
// feature's depth is one past the deepest of its dependencies.
func buildGroups(features []*feature.Feature) []Group {
	depths := make(map[string]int, len(features))
	remaining := make([]*feature.Feature, len(features))
	copy(remaining, features)

	// Repeatedly assign depths to features whose dependencies are all
	// assigned. The graph is acyclic here, so this always terminates.
	for len(remaining) > 0 {
		next := remaining[:0]
		for _, f := range remaining {
			depth, ready := 0, true
			for _, dep := range f.Dependencies {
				d, ok := depths[dep]
				if !ok {
					ready = false
					break
				}
				if d+1 > depth {
					depth = d + 1
				}
			}
			if ready {
				depths[f.ID] = depth
			} else {
				next = append(next, f)
			}
		}
		remaining = next
	}

	maxDepth := 0
	for _, d := range depths {
		if d > maxDepth {
			maxDepth = d
		}
	}

	groups := make([]Group, maxDepth+1)
	for _, f := range features {
		d := depths[f.ID]
		groups[d] = append(groups[d], f.ID)
	}
	return groups
}

// Describe renders the plan for logging.
func Describe(groups []Group) string {
	parts := make([]string, len(groups))
	for i, g := range groups {
		parts[i] = fmt.Sprintf("[%s]", strings.Join(g, ", "))
	}
	return strings.Join(parts, " -> ")
}
