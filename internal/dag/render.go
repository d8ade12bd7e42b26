package dag

import (
	"fmt"
	"io"

	"github.com/emicklei/dot"
)

// Format specifies the output format for a rendered graph.
type Format string

const (
	// FormatDOT outputs Graphviz DOT format.
	FormatDOT Format = "dot"
	// FormatMermaid outputs Mermaid format for markdown rendering.
	FormatMermaid Format = "mermaid"
)

// Render writes the graph to w. Edges point from a dependency to its dependent,
// so the picture reads in execution order.
func (g *Graph) Render(w io.Writer, format Format) error {
	graph := g.buildDot()

	var output string
	switch format {
	case FormatMermaid:
		output = dot.MermaidGraph(graph, dot.MermaidTopToBottom)
	case FormatDOT, "":
		output = graph.String()
	default:
		return fmt.Errorf("unsupported graph format %q", format)
	}

	_, err := io.WriteString(w, output)
	return err
}

func (g *Graph) buildDot() *dot.Graph {
	graph := dot.NewGraph(dot.Directed)
	graph.Attr("rankdir", "TB")
	graph.NodeInitializer(func(n dot.Node) {
		n.Attr("shape", "box")
		n.Attr("fontname", "Arial")
	})

	clusters := make(map[string]*dot.Graph)
	nodes := make(map[string]dot.Node, len(g.names))
	for _, name := range g.names {
		parent := graph
		if group := g.nodes[name].group; group != "" {
			cluster, ok := clusters[group]
			if !ok {
				cluster = graph.Subgraph(group, dot.ClusterOption{})
				cluster.Attr("style", "rounded")
				clusters[group] = cluster
			}
			parent = cluster
		}
		nodes[name] = parent.Node(name)
	}

	for _, name := range g.names {
		for _, dep := range g.nodes[name].deps {
			from, ok := nodes[dep]
			if !ok {
				continue
			}
			graph.Edge(from, nodes[name])
		}
	}

	return graph
}
