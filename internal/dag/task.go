package dag

import "context"

// Task is a typed handle to a node's output.
type Task[T any] struct {
	name  string
	value T
}

// Name implements Ref.
func (t *Task[T]) Name() string { return t.name }

// Value returns the node's output. It is only valid inside a node that
// declared t as a dependency, or after a successful Run.
func (t *Task[T]) Value() T { return t.value }

// Add registers a node producing a value of type T and returns its handle.
// deps are the tasks whose values fn reads.
func Add[T any](g *Graph, name string, deps []Ref, fn func(ctx context.Context) (T, error), opts ...NodeOption) *Task[T] {
	t := &Task[T]{name: name}
	run := func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		t.value = v
		return nil
	}
	g.add(name, run, append([]NodeOption{After(deps...)}, opts...))
	return t
}

// Do registers a node that produces no value.
func Do(g *Graph, name string, deps []Ref, fn func(ctx context.Context) error, opts ...NodeOption) *Task[struct{}] {
	return Add(g, name, deps, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, opts...)
}

// Deps is a convenience constructor for a dependency list.
func Deps(refs ...Ref) []Ref { return refs }
