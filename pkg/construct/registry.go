package construct

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/dominikbraun/graph"
	topo_errs "github.com/klothoplatform/infratopo/pkg/errors"
	"go.uber.org/zap"
)

type (
	// Graph is keyed and valued by ResourceId: the definitions themselves live in the Registry's arena.
	Graph = graph.Graph[ResourceId, ResourceId]
	Edge  = graph.Edge[ResourceId]

	// Registry is the single owner of every definition in a topology. Definitions are stored in
	// declaration order (the arena) and addressed by id (the index); the dependency graph only holds ids.
	Registry struct {
		graph   Graph
		arena   []Resource
		index   map[ResourceId]int
		stacks  map[ResourceId]string
		stack   string
		outputs map[string]Output
	}
)

func idHash(id ResourceId) ResourceId {
	return id
}

func NewGraph() Graph {
	return graph.New(idHash, graph.Directed(), graph.PreventCycles())
}

func NewRegistry() *Registry {
	return &Registry{
		graph:   NewGraph(),
		index:   make(map[ResourceId]int),
		stacks:  make(map[ResourceId]string),
		outputs: make(map[string]Output),
	}
}

// SetStack sets the stack that subsequently added resources are grouped under.
func (r *Registry) SetStack(name string) {
	r.stack = name
}

// InStack runs fn with resources grouped under the named stack, then restores the current stack.
func (r *Registry) InStack(name string, fn func() error) error {
	prev := r.stack
	r.stack = name
	defer func() { r.stack = prev }()
	return fn()
}

// Add registers a new definition and a reference edge from each id it references. Every referenced id
// must already be registered, and an id can only be registered once.
func (r *Registry) Add(res Resource) error {
	id := res.Id()
	if id.IsZero() {
		return topo_errs.Configf("registry", "id", "%T has an empty id", res)
	}
	if err := id.Validate(); err != nil {
		return topo_errs.ConfigurationError{Component: "registry", Field: "id", Reason: "invalid id", Err: err}
	}
	if _, ok := r.index[id]; ok {
		return topo_errs.Configf("registry", id.String(), "already registered, shared resources are declared exactly once")
	}
	refs, err := r.checkReferences(id, res.References())
	if err != nil {
		return err
	}

	if err := r.graph.AddVertex(id); err != nil {
		return fmt.Errorf("could not add vertex %s: %w", id, err)
	}
	r.index[id] = len(r.arena)
	r.arena = append(r.arena, res)
	r.stacks[id] = r.stack

	for _, ref := range refs {
		if err := r.addEdge(ref, id, ReasonReference); err != nil {
			return err
		}
	}
	zap.L().Debug("registered resource", zap.Stringer("id", id), zap.String("stack", r.stack), zap.Int("references", len(refs)))
	return nil
}

// Replace updates a registered definition in place, keeping its arena slot. Reference edges are added for new
// references and removed for references the definition no longer reads.
func (r *Registry) Replace(res Resource) error {
	id := res.Id()
	idx, ok := r.index[id]
	if !ok {
		return topo_errs.ReferenceError{Consumer: "registry", Ref: id.String(), Reason: "cannot replace an unregistered resource"}
	}
	refs, err := r.checkReferences(id, res.References())
	if err != nil {
		return err
	}
	old := r.arena[idx]

	var added []ResourceId
	for _, ref := range refs {
		if r.hasEdge(ref, id) {
			continue
		}
		if err := r.addEdge(ref, id, ReasonReference); err != nil {
			for _, a := range added {
				_ = r.graph.RemoveEdge(a, id)
			}
			return err
		}
		added = append(added, ref)
	}
	for _, ref := range old.References() {
		if slices.Contains(refs, ref) {
			continue
		}
		e, err := r.graph.Edge(ref, id)
		if err != nil {
			continue
		}
		if data, ok := e.Properties.Data.(EdgeData); ok && data.Reason == ReasonReference {
			if err := r.graph.RemoveEdge(ref, id); err != nil {
				return fmt.Errorf("could not remove stale reference %s -> %s: %w", ref, id, err)
			}
		}
	}
	r.arena[idx] = res
	return nil
}

// DependOn records that consumer must be created after producer. It is idempotent.
func (r *Registry) DependOn(consumer, producer ResourceId, reason EdgeReason) error {
	var errs error
	if _, ok := r.index[consumer]; !ok {
		errs = errors.Join(errs, topo_errs.ReferenceError{Consumer: "dependency", Ref: consumer.String(), Reason: "consumer is not registered"})
	}
	if _, ok := r.index[producer]; !ok {
		errs = errors.Join(errs, topo_errs.ReferenceError{Consumer: consumer.String(), Ref: producer.String(), Reason: "producer is not registered"})
	}
	if errs != nil {
		return errs
	}
	if consumer == producer {
		return topo_errs.Configf("registry", "dependency", "%s cannot depend on itself", consumer)
	}
	if r.hasEdge(producer, consumer) {
		return nil
	}
	return r.addEdge(producer, consumer, reason)
}

func (r *Registry) checkReferences(id ResourceId, refs []ResourceId) ([]ResourceId, error) {
	var errs error
	var unique []ResourceId
	for _, ref := range refs {
		switch {
		case ref.IsZero():
			errs = errors.Join(errs, topo_errs.ReferenceError{Consumer: id.String(), Reason: "empty reference"})
		case ref == id:
			errs = errors.Join(errs, topo_errs.Configf("registry", id.String(), "resource references itself"))
		default:
			if _, ok := r.index[ref]; !ok {
				errs = errors.Join(errs, topo_errs.ReferenceError{Consumer: id.String(), Ref: ref.String(), Reason: "not registered"})
				continue
			}
			unique = appendUnique(unique, ref)
		}
	}
	return unique, errs
}

func (r *Registry) addEdge(producer, consumer ResourceId, reason EdgeReason) error {
	opts := []func(*graph.EdgeProperties){graph.EdgeData(EdgeData{Reason: reason})}
	if reason == ReasonOrdering {
		opts = append(opts, graph.EdgeAttribute("style", "dashed"))
	}
	err := r.graph.AddEdge(producer, consumer, opts...)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, graph.ErrEdgeAlreadyExists):
		return nil
	case errors.Is(err, graph.ErrEdgeCreatesCycle):
		return topo_errs.ConfigurationError{
			Component: "registry",
			Field:     "dependency",
			Reason:    fmt.Sprintf("%s -> %s would introduce a cyclic dependency", producer, consumer),
			Err:       err,
		}
	default:
		return fmt.Errorf("could not add dependency %s -> %s: %w", producer, consumer, err)
	}
}

func (r *Registry) hasEdge(producer, consumer ResourceId) bool {
	_, err := r.graph.Edge(producer, consumer)
	return err == nil
}

// Get returns the definition registered under id.
func (r *Registry) Get(id ResourceId) (Resource, error) {
	idx, ok := r.index[id]
	if !ok {
		return nil, topo_errs.ReferenceError{Consumer: "registry", Ref: id.String(), Reason: "not registered"}
	}
	return r.arena[idx], nil
}

// Resolve returns the definition registered under ref as a T on behalf of consumer. It fails with a
// ReferenceError if ref is empty, unregistered, or not a T.
func Resolve[T Resource](r *Registry, consumer string, ref ResourceId) (T, error) {
	var zero T
	if ref.IsZero() {
		return zero, topo_errs.ReferenceError{Consumer: consumer, Reason: fmt.Sprintf("no %T was produced", zero)}
	}
	idx, ok := r.index[ref]
	if !ok {
		return zero, topo_errs.ReferenceError{Consumer: consumer, Ref: ref.String(), Reason: "not registered"}
	}
	res, ok := r.arena[idx].(T)
	if !ok {
		return zero, topo_errs.ReferenceError{
			Consumer: consumer,
			Ref:      ref.String(),
			Reason:   fmt.Sprintf("is a %T, not a %T", r.arena[idx], zero),
		}
	}
	return res, nil
}

// ListOf returns every registered T in declaration order.
func ListOf[T Resource](r *Registry) []T {
	var out []T
	for _, res := range r.arena {
		if t, ok := res.(T); ok {
			out = append(out, t)
		}
	}
	return out
}

func (r *Registry) Has(id ResourceId) bool {
	_, ok := r.index[id]
	return ok
}

func (r *Registry) Len() int {
	return len(r.arena)
}

// Index returns the declaration index of id.
func (r *Registry) Index(id ResourceId) (int, bool) {
	idx, ok := r.index[id]
	return idx, ok
}

// Ids returns all registered ids in declaration order.
func (r *Registry) Ids() []ResourceId {
	ids := make([]ResourceId, len(r.arena))
	for i, res := range r.arena {
		ids[i] = res.Id()
	}
	return ids
}

func (r *Registry) StackOf(id ResourceId) string {
	return r.stacks[id]
}

// Dependencies returns every edge ordered by the declaration index of the producer, then the consumer.
func (r *Registry) Dependencies() ([]Dependency, error) {
	edges, err := r.graph.Edges()
	if err != nil {
		return nil, err
	}
	deps := make([]Dependency, 0, len(edges))
	for _, e := range edges {
		reason := ReasonReference
		if data, ok := e.Properties.Data.(EdgeData); ok {
			reason = data.Reason
		}
		deps = append(deps, Dependency{Producer: e.Source, Consumer: e.Target, Reason: reason})
	}
	sort.Slice(deps, func(i, j int) bool {
		pi, pj := r.index[deps[i].Producer], r.index[deps[j].Producer]
		if pi != pj {
			return pi < pj
		}
		return r.index[deps[i].Consumer] < r.index[deps[j].Consumer]
	})
	return deps, nil
}

// Producers returns the direct producers of id in declaration order.
func (r *Registry) Producers(id ResourceId) ([]ResourceId, error) {
	pred, err := r.graph.PredecessorMap()
	if err != nil {
		return nil, err
	}
	return r.sortedKeys(pred[id]), nil
}

// Consumers returns the direct consumers of id in declaration order.
func (r *Registry) Consumers(id ResourceId) ([]ResourceId, error) {
	adj, err := r.graph.AdjacencyMap()
	if err != nil {
		return nil, err
	}
	return r.sortedKeys(adj[id]), nil
}

// Roots returns the resources with no producers in declaration order.
func (r *Registry) Roots() ([]ResourceId, error) {
	pred, err := r.graph.PredecessorMap()
	if err != nil {
		return nil, err
	}
	var roots []ResourceId
	for _, id := range r.Ids() {
		if len(pred[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots, nil
}

// DependsOn reports whether consumer transitively depends on producer.
func (r *Registry) DependsOn(consumer, producer ResourceId) (bool, error) {
	if consumer == producer {
		return false, nil
	}
	found := false
	err := graph.BFS(r.graph, producer, func(id ResourceId) bool {
		found = id == consumer
		return found
	})
	if err != nil {
		return false, fmt.Errorf("could not walk consumers of %s: %w", producer, err)
	}
	return found, nil
}

// VerifyReferences checks that every reference of every definition resolves and is backed by an edge.
func (r *Registry) VerifyReferences() error {
	var errs error
	for _, res := range r.arena {
		id := res.Id()
		for _, ref := range res.References() {
			if !r.Has(ref) {
				errs = errors.Join(errs, topo_errs.ReferenceError{Consumer: id.String(), Ref: ref.String(), Reason: "not registered"})
				continue
			}
			if !r.hasEdge(ref, id) {
				errs = errors.Join(errs, topo_errs.Configf("registry", "dependency", "missing required dependency edge %s -> %s", ref, id))
			}
		}
	}
	return errs
}

func (r *Registry) AddOutput(name string, out Output) error {
	if name == "" {
		return topo_errs.Configf("registry", "output", "output name must not be empty")
	}
	if _, ok := r.outputs[name]; ok {
		return topo_errs.Configf("registry", "output", "output %q already declared", name)
	}
	if !r.Has(out.Ref) {
		return topo_errs.ReferenceError{Consumer: "output " + name, Ref: out.Ref.String(), Reason: "not registered"}
	}
	r.outputs[name] = out
	return nil
}

func (r *Registry) Outputs() map[string]Output {
	outs := make(map[string]Output, len(r.outputs))
	for k, v := range r.outputs {
		outs[k] = v
	}
	return outs
}

func (r *Registry) sortedKeys(m map[ResourceId]Edge) []ResourceId {
	ids := make([]ResourceId, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return r.index[ids[i]] < r.index[ids[j]]
	})
	return ids
}
