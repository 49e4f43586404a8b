package construct

import (
	"errors"
	"fmt"
	"slices"

	"github.com/dominikbraun/graph"
	topo_errs "github.com/klothoplatform/infratopo/pkg/errors"
)

// TopologicalSort returns the creation order of the registry. Resources that become ready together are ordered
// by declaration, so the result is stable across runs.
func (r *Registry) TopologicalSort() ([]ResourceId, error) {
	order, err := graph.StableTopologicalSort(r.graph, r.declaredBefore)
	if err != nil {
		return nil, fmt.Errorf("failed to sort registry: %w", err)
	}
	return order, nil
}

func (r *Registry) declaredBefore(a, b ResourceId) bool {
	return r.index[a] < r.index[b]
}

// ReverseTopologicalSort returns the teardown order of the registry.
func (r *Registry) ReverseTopologicalSort() ([]ResourceId, error) {
	topo, err := r.TopologicalSort()
	if err != nil {
		return nil, err
	}
	slices.Reverse(topo)
	return topo, nil
}

// Stacks returns each stack name in the order it was first used.
func (r *Registry) Stacks() []string {
	var stacks []string
	for _, res := range r.arena {
		s := r.stacks[res.Id()]
		if !slices.Contains(stacks, s) {
			stacks = append(stacks, s)
		}
	}
	return stacks
}

// stackGraph collapses the resource graph onto stacks: stack A depends on stack B when any resource of A
// consumes a resource of B. The collapsed graph must itself be acyclic for the stacks to be deployable one by one.
func (r *Registry) stackGraph() (graph.Graph[string, string], error) {
	deps, err := r.Dependencies()
	if err != nil {
		return nil, err
	}
	stackGraph := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())
	for _, s := range r.Stacks() {
		if err := stackGraph.AddVertex(s); err != nil {
			return nil, err
		}
	}
	var errs error
	for _, d := range deps {
		producer, consumer := r.stacks[d.Producer], r.stacks[d.Consumer]
		if producer == consumer {
			continue
		}
		err := stackGraph.AddEdge(producer, consumer)
		switch {
		case err == nil, errors.Is(err, graph.ErrEdgeAlreadyExists):
		case errors.Is(err, graph.ErrEdgeCreatesCycle):
			errs = errors.Join(errs, topo_errs.ConfigurationError{
				Component: "registry",
				Field:     "stack",
				Reason:    fmt.Sprintf("%s makes stack %s depend on stack %s, which already depends on it", d, consumer, producer),
				Err:       err,
			})
		default:
			errs = errors.Join(errs, err)
		}
	}
	if errs != nil {
		return nil, errs
	}
	return stackGraph, nil
}

// StackDependencies returns the stacks each stack depends on, sorted by name.
func (r *Registry) StackDependencies() (map[string][]string, error) {
	stackGraph, err := r.stackGraph()
	if err != nil {
		return nil, err
	}
	pred, err := stackGraph.PredecessorMap()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(pred))
	for consumer, producers := range pred {
		list := make([]string, 0, len(producers))
		for p := range producers {
			list = append(list, p)
		}
		slices.Sort(list)
		out[consumer] = list
	}
	return out, nil
}

// StackOrder returns the stacks in deployment order, breaking ties by first use.
func (r *Registry) StackOrder() ([]string, error) {
	stackGraph, err := r.stackGraph()
	if err != nil {
		return nil, err
	}
	stacks := r.Stacks()
	return graph.StableTopologicalSort(stackGraph, func(a, b string) bool {
		return slices.Index(stacks, a) < slices.Index(stacks, b)
	})
}
