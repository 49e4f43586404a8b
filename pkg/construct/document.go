package construct

import (
	"errors"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

type (
	// Document is the fully assembled topology in the form handed to a provisioning backend: resources in
	// creation order, the dependency edges, and the named outputs.
	Document struct {
		Environment  map[string]string
		Stacks       []string
		Resources    []DocumentResource
		Dependencies []Dependency
		Outputs      map[string]Output
	}

	DocumentResource struct {
		Id         ResourceId
		Stack      string
		Definition Resource
	}
)

// nullNode renders as nothing, so an empty section reads `edges:` instead of `edges: {}`.
var nullNode = &yaml.Node{
	Kind:  yaml.ScalarNode,
	Tag:   "!!null",
	Value: "",
}

func (r *Registry) Document(env map[string]string) (*Document, error) {
	topo, err := r.TopologicalSort()
	if err != nil {
		return nil, err
	}
	stacks, err := r.StackOrder()
	if err != nil {
		return nil, err
	}
	deps, err := r.Dependencies()
	if err != nil {
		return nil, err
	}
	doc := &Document{
		Environment:  make(map[string]string, len(env)),
		Stacks:       stacks,
		Resources:    make([]DocumentResource, 0, len(topo)),
		Dependencies: deps,
		Outputs:      r.Outputs(),
	}
	for k, v := range env {
		doc.Environment[k] = v
	}
	for _, id := range topo {
		res, err := r.Get(id)
		if err != nil {
			return nil, err
		}
		doc.Resources = append(doc.Resources, DocumentResource{Id: id, Stack: r.StackOf(id), Definition: res})
	}
	return doc, nil
}

func (d *Document) Resource(id ResourceId) (DocumentResource, bool) {
	for _, res := range d.Resources {
		if res.Id == id {
			return res, true
		}
	}
	return DocumentResource{}, false
}

// OutputNames returns the output names sorted.
func (d *Document) OutputNames() []string {
	names := make([]string, 0, len(d.Outputs))
	for name := range d.Outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func scalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: v}
}

func (d Document) MarshalYAML() (interface{}, error) {
	var errs error

	env := &yaml.Node{Kind: yaml.MappingNode}
	envKeys := make([]string, 0, len(d.Environment))
	for k := range d.Environment {
		envKeys = append(envKeys, k)
	}
	sort.Strings(envKeys)
	for _, k := range envKeys {
		env.Content = append(env.Content, scalar(k), scalar(d.Environment[k]))
	}
	if len(env.Content) == 0 {
		env = nullNode
	}

	stacks := &yaml.Node{Kind: yaml.SequenceNode}
	for _, s := range d.Stacks {
		stacks.Content = append(stacks.Content, scalar(s))
	}

	resources := &yaml.Node{Kind: yaml.MappingNode}
	for _, res := range d.Resources {
		def := &yaml.Node{}
		if err := def.Encode(res.Definition); err != nil {
			errs = errors.Join(errs, fmt.Errorf("could not encode %s: %w", res.Id, err))
			continue
		}
		if def.Kind != yaml.MappingNode {
			def = &yaml.Node{Kind: yaml.MappingNode}
		}
		def.Content = append([]*yaml.Node{scalar("stack"), scalar(res.Stack)}, def.Content...)
		resources.Content = append(resources.Content, scalar(res.Id.String()), def)
	}
	if len(resources.Content) == 0 {
		resources = nullNode
	}

	edges := &yaml.Node{Kind: yaml.MappingNode}
	for _, dep := range d.Dependencies {
		edges.Content = append(edges.Content, scalar(dep.String()), scalar(string(dep.Reason)))
	}
	if len(edges.Content) == 0 {
		edges = nullNode
	}

	outputs := &yaml.Node{Kind: yaml.MappingNode}
	for _, name := range d.OutputNames() {
		out := &yaml.Node{}
		if err := out.Encode(d.Outputs[name]); err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		outputs.Content = append(outputs.Content, scalar(name), out)
	}
	if len(outputs.Content) == 0 {
		outputs = nullNode
	}

	if errs != nil {
		return nil, errs
	}
	return &yaml.Node{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			scalar("environment"), env,
			scalar("stacks"), stacks,
			scalar("resources"), resources,
			scalar("edges"), edges,
			scalar("outputs"), outputs,
		},
	}, nil
}

// ResourceMaps returns every resource definition decoded into a generic map, keyed by id string. This is the
// shape used to compare two documents.
func (d *Document) ResourceMaps() (map[string]map[string]interface{}, error) {
	out := make(map[string]map[string]interface{}, len(d.Resources))
	var errs error
	for _, res := range d.Resources {
		node := &yaml.Node{}
		if err := node.Encode(res.Definition); err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		m := make(map[string]interface{})
		if err := node.Decode(&m); err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		m["stack"] = res.Stack
		out[res.Id.String()] = m
	}
	return out, errs
}
