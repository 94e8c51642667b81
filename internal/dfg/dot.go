package dfg

import (
	"strconv"

	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
)

// DOTID implements dot.Node.
func (n *Node) DOTID() string { return "n" + strconv.FormatInt(n.id, 10) }

// Attributes implements encoding.Attributer.
func (n *Node) Attributes() []encoding.Attribute {
	attrs := []encoding.Attribute{{Key: "label", Value: n.String()}}
	switch n.Kind {
	case KindLiveIn:
		attrs = append(attrs, encoding.Attribute{Key: "shape", Value: "invhouse"})
	case KindOutput:
		attrs = append(attrs, encoding.Attribute{Key: "shape", Value: "house"})
	case KindMux:
		attrs = append(attrs, encoding.Attribute{Key: "shape", Value: "invtrapezium"})
	case KindConst:
		attrs = append(attrs, encoding.Attribute{Key: "shape", Value: "plaintext"})
	default:
		attrs = append(attrs, encoding.Attribute{Key: "shape", Value: "box"})
	}
	return attrs
}

// Attributes implements encoding.Attributer.
func (e *Edge) Attributes() []encoding.Attribute {
	if e.Label == "" {
		return nil
	}
	return []encoding.Attribute{{Key: "label", Value: e.Label}}
}

// MarshalDOT renders the graph in Graphviz format.
func (g *Graph) MarshalDOT(name string) ([]byte, error) {
	if name == "" {
		name = g.name
	}
	return dot.MarshalMulti(g.g, name, "", "  ")
}
