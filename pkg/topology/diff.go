package topology

import (
	"fmt"
	"strings"

	"github.com/r3labs/diff"
)

// Diff compares two topologies resource by resource. Paths start with the resource id followed by the
// property name.
func Diff(a, b *Topology) (diff.Changelog, error) {
	from, err := resourceMaps(a)
	if err != nil {
		return nil, err
	}
	to, err := resourceMaps(b)
	if err != nil {
		return nil, err
	}
	differ, err := diff.NewDiffer(diff.SliceOrdering(false))
	if err != nil {
		return nil, err
	}
	return differ.Diff(from, to)
}

func resourceMaps(t *Topology) (map[string]map[string]interface{}, error) {
	doc, err := t.Document()
	if err != nil {
		return nil, err
	}
	maps, err := doc.ResourceMaps()
	if err != nil {
		return nil, fmt.Errorf("could not read resources of %s: %w", t.Profile.Name, err)
	}
	return maps, nil
}

// FormatChange renders a change on one line.
func FormatChange(c diff.Change) string {
	path := strings.Join(c.Path, ".")
	switch c.Type {
	case diff.CREATE:
		return fmt.Sprintf("+ %s: %v", path, c.To)
	case diff.DELETE:
		return fmt.Sprintf("- %s: %v", path, c.From)
	default:
		return fmt.Sprintf("~ %s: %v -> %v", path, c.From, c.To)
	}
}
