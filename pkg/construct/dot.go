package construct

import (
	"io"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
)

// WriteDOT renders the dependency graph in Graphviz DOT. Ordering-only edges are dashed.
func (d *Document) WriteDOT(w io.Writer) error {
	g := NewGraph()
	for _, res := range d.Resources {
		err := g.AddVertex(res.Id,
			graph.VertexAttribute("label", res.Id.Name),
			graph.VertexAttribute("tooltip", res.Id.String()),
		)
		if err != nil {
			return err
		}
	}
	for _, dep := range d.Dependencies {
		opts := []func(*graph.EdgeProperties){graph.EdgeData(EdgeData{Reason: dep.Reason})}
		if dep.Reason == ReasonOrdering {
			opts = append(opts, graph.EdgeAttribute("style", "dashed"))
		}
		if err := g.AddEdge(dep.Producer, dep.Consumer, opts...); err != nil {
			return err
		}
	}
	return draw.DOT(g, w)
}
