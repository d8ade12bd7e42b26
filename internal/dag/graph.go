package dag

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"
)

var (
	// ErrCycle is returned when the graph contains a dependency cycle.
	ErrCycle = errors.New("dependency cycle")
	// ErrSkipped is the error recorded on nodes whose dependency did not succeed.
	ErrSkipped = errors.New("skipped")
	// ErrDuplicate is returned when two nodes share a name.
	ErrDuplicate = errors.New("duplicate node")
	// ErrUnknownDependency is returned when a node depends on a name not in the graph.
	ErrUnknownDependency = errors.New("unknown dependency")
)

// Ref is anything that names a node of a graph.
type Ref interface {
	Name() string
}

// Name is a plain node reference, used where no value is consumed.
type Name string

// Name implements Ref.
func (n Name) Name() string { return string(n) }

type node struct {
	name    string
	group   string
	deps    []string
	timeout time.Duration
	index   int
	run     func(ctx context.Context) error
}

// Graph is a set of named steps and the dependency edges between them.
// A Graph is built once and evaluated once; it is not safe for concurrent Add.
type Graph struct {
	nodes map[string]*node
	names []string
	err   error
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*node)}
}

// NodeOption configures a node.
type NodeOption func(*node)

// After adds dependencies that are not consumed as values, such as ordering gates.
func After(refs ...Ref) NodeOption {
	return func(n *node) {
		for _, r := range refs {
			if r != nil && !slices.Contains(n.deps, r.Name()) {
				n.deps = append(n.deps, r.Name())
			}
		}
	}
}

// WithTimeout bounds a single node's execution.
func WithTimeout(d time.Duration) NodeOption {
	return func(n *node) {
		n.timeout = d
	}
}

// InGroup assigns the node to a named group used when rendering.
func InGroup(group string) NodeOption {
	return func(n *node) {
		n.group = group
	}
}

func (g *Graph) add(name string, run func(ctx context.Context) error, opts []NodeOption) {
	if _, exists := g.nodes[name]; exists {
		g.err = errors.Join(g.err, fmt.Errorf("%w: %s", ErrDuplicate, name))
		return
	}
	n := &node{name: name, run: run, index: len(g.names)}
	for _, opt := range opts {
		opt(n)
	}
	g.nodes[name] = n
	g.names = append(g.names, name)
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.names) }

// Names returns node names in insertion order.
func (g *Graph) Names() []string { return slices.Clone(g.names) }

// Deps returns the direct dependencies of a node.
func (g *Graph) Deps(name string) []string {
	if n, ok := g.nodes[name]; ok {
		return slices.Clone(n.deps)
	}
	return nil
}

// Group returns the render group of a node.
func (g *Graph) Group(name string) string {
	if n, ok := g.nodes[name]; ok {
		return n.group
	}
	return ""
}

// DependsOn reports whether a transitively depends on b.
func (g *Graph) DependsOn(a, b string) bool {
	seen := make(map[string]bool)
	var visit func(string) bool
	visit = func(name string) bool {
		n, ok := g.nodes[name]
		if !ok || seen[name] {
			return false
		}
		seen[name] = true
		for _, dep := range n.deps {
			if dep == b || visit(dep) {
				return true
			}
		}
		return false
	}
	return visit(a)
}

// Validate checks names, dependencies and acyclicity.
func (g *Graph) Validate() error {
	if g.err != nil {
		return g.err
	}
	for _, name := range g.names {
		for _, dep := range g.nodes[name].deps {
			if _, ok := g.nodes[dep]; !ok {
				return fmt.Errorf("%w: %s depends on %s", ErrUnknownDependency, name, dep)
			}
		}
	}
	_, err := g.Order()
	return err
}

// Order returns a topological order. Ties are broken by insertion order, so
// the result is deterministic.
func (g *Graph) Order() ([]string, error) {
	indegree := make(map[string]int, len(g.names))
	dependents := make(map[string][]string, len(g.names))
	for _, name := range g.names {
		for _, dep := range g.nodes[name].deps {
			if _, ok := g.nodes[dep]; !ok {
				continue
			}
			indegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var ready []string
	for _, name := range g.names {
		if indegree[name] == 0 {
			ready = append(ready, name)
		}
	}

	order := make([]string, 0, len(g.names))
	for len(ready) > 0 {
		slices.SortFunc(ready, func(a, b string) int { return g.nodes[a].index - g.nodes[b].index })
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)
		for _, d := range dependents[name] {
			indegree[d]--
			if indegree[d] == 0 {
				ready = append(ready, d)
			}
		}
	}

	if len(order) != len(g.names) {
		var stuck []string
		for _, name := range g.names {
			if indegree[name] > 0 {
				stuck = append(stuck, name)
			}
		}
		return nil, fmt.Errorf("%w between %v", ErrCycle, stuck)
	}
	return order, nil
}
