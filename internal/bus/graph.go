package bus

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/fintrack/internal/ir"
)

// CycleWarning describes a loop in the invalidation graph.
type CycleWarning struct {
	Path    []string `json:"path"` // e.g. ["A", "B", "A"]
	Message string   `json:"message"`
}

// AnalyzeCycles reports every loop in the store graph induced by edges:
// a store points at each store its publications refresh. Each strongly
// connected component with more than one store, and each store that
// refreshes itself, yields one warning. Stores are visited in sorted
// order so the result is stable. An acyclic graph yields an empty slice.
func AnalyzeCycles(edges []ir.Edge) []CycleWarning {
	adj := adjacency(edges)

	warnings := []CycleWarning{}
	for _, comp := range components(adj) {
		switch {
		case len(comp) > 1:
			path := walkComponent(comp, adj)
			warnings = append(warnings, CycleWarning{
				Path:    path,
				Message: "invalidation cycle: " + strings.Join(path, " -> "),
			})
		case slices.Contains(adj[comp[0]], comp[0]):
			name := comp[0]
			warnings = append(warnings, CycleWarning{
				Path:    []string{name, name},
				Message: fmt.Sprintf("store refreshes itself: %s -> %s", name, name),
			})
		}
	}
	return warnings
}

// adjacency maps each store to the distinct stores it refreshes, in edge
// order. Subscribers with no outgoing edges are present with no targets.
func adjacency(edges []ir.Edge) map[string][]string {
	adj := make(map[string][]string)
	for _, e := range edges {
		if _, ok := adj[e.Subscriber]; !ok {
			adj[e.Subscriber] = nil
		}
		if !slices.Contains(adj[e.Source], e.Subscriber) {
			adj[e.Source] = append(adj[e.Source], e.Subscriber)
		}
	}
	return adj
}

// tarjan holds the bookkeeping of one run of Tarjan's algorithm.
type tarjan struct {
	adj     map[string][]string
	counter int
	order   map[string]int // discovery index
	low     map[string]int
	stack   []string
	onStack map[string]bool
	out     [][]string
}

// components returns the strongly connected components of adj, each in
// discovery order.
func components(adj map[string][]string) [][]string {
	t := &tarjan{
		adj:     adj,
		order:   make(map[string]int, len(adj)),
		low:     make(map[string]int, len(adj)),
		onStack: make(map[string]bool, len(adj)),
	}
	nodes := make([]string, 0, len(adj))
	for n := range adj {
		nodes = append(nodes, n)
	}
	slices.Sort(nodes)
	for _, n := range nodes {
		if _, seen := t.order[n]; !seen {
			t.visit(n)
		}
	}
	return t.out
}

func (t *tarjan) visit(v string) {
	t.order[v] = t.counter
	t.low[v] = t.counter
	t.counter++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for _, w := range t.adj[v] {
		if _, seen := t.order[w]; !seen {
			t.visit(w)
			t.low[v] = min(t.low[v], t.low[w])
		} else if t.onStack[w] {
			t.low[v] = min(t.low[v], t.order[w])
		}
	}

	if t.low[v] != t.order[v] {
		return
	}
	i := slices.Index(t.stack, v)
	comp := slices.Clone(t.stack[i:])
	for _, w := range comp {
		t.onStack[w] = false
	}
	t.stack = t.stack[:i]
	t.out = append(t.out, comp)
}

// walkComponent follows edges inside comp from its first store, preferring
// unvisited stores, until it gets back to the start.
func walkComponent(comp []string, adj map[string][]string) []string {
	start := comp[0]
	path := []string{start}
	visited := map[string]bool{start: true}

	for cur := start; ; {
		next := ""
		for _, w := range adj[cur] {
			if slices.Contains(comp, w) && (w == start || !visited[w]) {
				next = w
				break
			}
		}
		if next == "" {
			return path
		}
		path = append(path, next)
		if next == start {
			return path
		}
		visited[next] = true
		cur = next
	}
}
