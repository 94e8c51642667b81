package cfg

import (
	"strconv"
	"strings"

	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"

	"github.com/malphas-lang/ifconv/internal/mir"
)

// DOTID implements dot.Node. Block labels go into the label attribute
// since they need not be unique.
func (n *Node) DOTID() string { return "n" + strconv.FormatInt(n.id, 10) }

// Attributes implements encoding.Attributer.
func (n *Node) Attributes() []encoding.Attribute {
	if n.Block == nil {
		return []encoding.Attribute{
			{Key: "shape", Value: "circle"},
			{Key: "label", Value: n.String()},
		}
	}
	lines := []string{n.Block.Label + ":"}
	for _, stmt := range n.Block.Statements {
		lines = append(lines, mir.StatementString(stmt))
	}
	if n.Block.Terminator != nil {
		lines = append(lines, mir.StatementString(n.Block.Terminator))
	}
	return []encoding.Attribute{
		{Key: "shape", Value: "box"},
		{Key: "label", Value: strings.Join(lines, "\n")},
	}
}

// Attributes implements encoding.Attributer.
func (e *Edge) Attributes() []encoding.Attribute {
	if e.Label == Seq {
		return nil
	}
	return []encoding.Attribute{{Key: "label", Value: string(e.Label)}}
}

// MarshalDOT renders the graph in Graphviz format.
func (g *Graph) MarshalDOT(name string) ([]byte, error) {
	if name == "" {
		name = g.fn.Name
	}
	return dot.Marshal(g.g, name, "", "  ")
}
