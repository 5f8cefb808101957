// Package graph discovers the module graph reachable from a set of roots and
// answers reachability questions for the linker.
package graph

import (
	"context"
	"errors"
	"log"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/coldog/extbld/pkg/compiler"
)

var ErrUnknownModule = errors.New("graph: unknown module")

type CompileFunc func(id string) (compiler.Object, error)

// Graph is the set of compiled modules keyed by id. Edges are the static
// Imports and Dynamic imports of each object.
type Graph struct {
	Modules map[string]compiler.Object
}

// Discover compiles roots and everything they import, one frontier at a
// time. Each frontier is compiled by up to concurrency workers.
func Discover(ctx context.Context, roots []string, concurrency int, compile CompileFunc) (*Graph, error) {
	g := &Graph{Modules: map[string]compiler.Object{}}
	seen := map[string]bool{}
	var frontier []string
	for _, r := range roots {
		if !seen[r] {
			seen[r] = true
			frontier = append(frontier, r)
		}
	}

	for depth := 0; len(frontier) > 0; depth++ {
		log.Printf("graph: frontier=%d modules=%d", depth, len(frontier))
		objects := make([]compiler.Object, len(frontier))

		eg, ctx := errgroup.WithContext(ctx)
		eg.SetLimit(concurrency)
		for i, id := range frontier {
			i, id := i, id
			eg.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				o, err := compile(id)
				if err != nil {
					return err
				}
				objects[i] = o
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}

		var next []string
		for _, o := range objects {
			g.Modules[o.ID] = o
			for _, dep := range append(append([]string{}, o.Imports...), o.Dynamic...) {
				if !seen[dep] {
					seen[dep] = true
					next = append(next, dep)
				}
			}
		}
		frontier = next
	}
	return g, nil
}

// Closure returns the modules statically reachable from root, root included,
// in sorted order.
func (g *Graph) Closure(root string) ([]string, error) {
	set := map[string]bool{}
	if err := g.walk(root, false, set); err != nil {
		return nil, err
	}
	return keys(set), nil
}

// Reach returns every module reachable from root through static or dynamic
// imports.
func (g *Graph) Reach(root string) ([]string, error) {
	set := map[string]bool{}
	if err := g.walk(root, true, set); err != nil {
		return nil, err
	}
	return keys(set), nil
}

// DynamicTargets lists the dynamic import targets of the given modules.
func (g *Graph) DynamicTargets(modules []string) []string {
	set := map[string]bool{}
	for _, id := range modules {
		for _, d := range g.Modules[id].Dynamic {
			set[d] = true
		}
	}
	return keys(set)
}

func (g *Graph) walk(id string, dynamic bool, set map[string]bool) error {
	stack := []string{id}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if set[id] {
			continue
		}
		o, ok := g.Modules[id]
		if !ok {
			return &UnknownModuleError{ID: id}
		}
		set[id] = true
		stack = append(stack, o.Imports...)
		if dynamic {
			stack = append(stack, o.Dynamic...)
		}
	}
	return nil
}

type UnknownModuleError struct {
	ID string
}

func (e *UnknownModuleError) Error() string {
	return ErrUnknownModule.Error() + ": " + e.ID
}

func (e *UnknownModuleError) Unwrap() error { return ErrUnknownModule }

func keys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
