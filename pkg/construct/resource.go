package construct

import "slices"

type (
	// Resource is a declarative definition owned by a Registry.
	Resource interface {
		Id() ResourceId
		// References returns the ids this definition reads. Each one becomes a reference
		// edge from the referenced (producer) resource to this (consumer) resource.
		References() []ResourceId
	}

	EdgeReason string

	EdgeData struct {
		Reason EdgeReason `yaml:"reason,omitempty" json:"reason,omitempty"`
	}

	// Dependency is an edge of the dependency graph: Producer must be fully materialized
	// before Consumer is created (and Consumer deleted before Producer).
	Dependency struct {
		Producer ResourceId `yaml:"producer"`
		Consumer ResourceId `yaml:"consumer"`
		Reason   EdgeReason `yaml:"reason"`
	}

	// Output is a named result value surfaced to the caller of the composition, resolved by the
	// provisioning backend from a property of a registered resource.
	Output struct {
		Ref         ResourceId `yaml:"ref"`
		Property    string     `yaml:"property"`
		Description string     `yaml:"description,omitempty"`
	}
)

const (
	// ReasonReference is used when the consumer's definition reads the producer's id.
	ReasonReference EdgeReason = "reference"
	// ReasonOrdering is used for edges that only exist for creation and teardown order.
	ReasonOrdering EdgeReason = "ordering"
)

func (d Dependency) String() string {
	return d.Producer.String() + " -> " + d.Consumer.String()
}

// Placeholder is the token a backend substitutes with the resolved output value.
func (o Output) Placeholder() string {
	return "${" + o.Ref.String() + "#" + o.Property + "}"
}

// appendUnique appends ids that are not already present in the list, preserving order.
func appendUnique(ids []ResourceId, add ...ResourceId) []ResourceId {
	for _, id := range add {
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids
}
