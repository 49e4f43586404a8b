package construct

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ResourceId is the key every definition is registered under. Definitions never hold pointers to
// each other, only ids, so that each resource has exactly one owner (the Registry).
type ResourceId struct {
	Provider string `yaml:"provider" toml:"provider"`
	Type     string `yaml:"type" toml:"type"`
	// Namespace is optional and disambiguates resources that share a name, such as
	// a subnet that belongs to a specific VPC.
	Namespace string `yaml:"namespace" toml:"namespace"`
	Name      string `yaml:"name" toml:"name"`
}

func (id ResourceId) IsZero() bool {
	return id == ResourceId{}
}

func (id ResourceId) String() string {
	if id.IsZero() {
		return ""
	}
	s := id.Provider + ":" + id.Type
	if id.Namespace != "" || strings.Contains(id.Name, ":") {
		s += ":" + id.Namespace
	}
	return s + ":" + id.Name
}

func (id ResourceId) QualifiedTypeName() string {
	return id.Provider + ":" + id.Type
}

// Matches reports whether id, used as a selector, matches other. Empty fields in the selector match anything.
func (id ResourceId) Matches(other ResourceId) bool {
	if id.Provider != "" && id.Provider != other.Provider {
		return false
	}
	if id.Type != "" && id.Type != other.Type {
		return false
	}
	if id.Namespace != "" && id.Namespace != other.Namespace {
		return false
	}
	if id.Name != "" && id.Name != other.Name {
		return false
	}
	return true
}

var (
	resourceProviderPattern  = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	resourceTypePattern      = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	resourceNamespacePattern = regexp.MustCompile(`^[a-zA-Z0-9_#./\-:\[\]]*$`)
	resourceNamePattern      = regexp.MustCompile(`^[a-zA-Z0-9_#./\-:\[\]]*$`)
)

func (id ResourceId) Validate() error {
	if id.IsZero() {
		return nil
	}
	var err error
	if !resourceProviderPattern.MatchString(id.Provider) {
		err = errors.Join(err, fmt.Errorf("invalid provider '%s' (must match %s)", id.Provider, resourceProviderPattern))
	}
	if id.Type != "" && !resourceTypePattern.MatchString(id.Type) {
		err = errors.Join(err, fmt.Errorf("invalid type '%s' (must match %s)", id.Type, resourceTypePattern))
	}
	if !resourceNamespacePattern.MatchString(id.Namespace) {
		err = errors.Join(err, fmt.Errorf("invalid namespace '%s' (must match %s)", id.Namespace, resourceNamespacePattern))
	}
	if !resourceNamePattern.MatchString(id.Name) {
		err = errors.Join(err, fmt.Errorf("invalid name '%s' (must match %s)", id.Name, resourceNamePattern))
	}
	if err != nil {
		return fmt.Errorf("invalid resource id '%s': %w", id, err)
	}
	return nil
}

func (id *ResourceId) Parse(s string) error {
	*id = ResourceId{}
	if s == "" {
		return nil
	}
	parts := strings.SplitN(s, ":", 4)
	if len(parts) < 2 {
		return fmt.Errorf("invalid number of parts (%d) in resource id '%s'", len(parts), s)
	}
	id.Provider = parts[0]
	id.Type = parts[1]
	switch len(parts) {
	case 3:
		id.Name = parts[2]
	case 4:
		id.Namespace = parts[2]
		id.Name = parts[3]
	}
	return nil
}

func (id ResourceId) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ResourceId) UnmarshalText(data []byte) error {
	if err := id.Parse(string(data)); err != nil {
		return err
	}
	return id.Validate()
}

// Less orders ids by their content. It is only used where no declaration order is available.
func (id ResourceId) Less(other ResourceId) bool {
	if id.Provider != other.Provider {
		return id.Provider < other.Provider
	}
	if id.Type != other.Type {
		return id.Type < other.Type
	}
	if id.Namespace != other.Namespace {
		return id.Namespace < other.Namespace
	}
	return id.Name < other.Name
}
