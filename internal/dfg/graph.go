// Package dfg builds the acyclic dataflow graph of a procedure from its
// interval decomposition, resolving control-dependent definitions into
// multiplexers.
package dfg

import (
	"fmt"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/multi"

	"github.com/malphas-lang/ifconv/internal/mir"
)

// Kind classifies dataflow nodes.
type Kind uint8

const (
	KindLiveIn Kind = iota // value flowing into the procedure or a fragment
	KindConst              // literal
	KindOp                 // opaque operation, comparison or boolean connective
	KindDef                // assignment to a variable
	KindMux                // select between two producers
	KindReturn             // definition of the return value
	KindOutput             // value leaving the procedure
	KindInvoke             // side-effecting call with no result
)

func (k Kind) String() string {
	switch k {
	case KindLiveIn:
		return "live-in"
	case KindConst:
		return "const"
	case KindOp:
		return "op"
	case KindDef:
		return "def"
	case KindMux:
		return "mux"
	case KindReturn:
		return "return"
	case KindOutput:
		return "output"
	case KindInvoke:
		return "invoke"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Node is a dataflow node.
type Node struct {
	id    int64
	Kind  Kind
	Var   mir.Var     // variable of live-in, def, mux, return and output nodes
	Name  string      // display name of Var
	Op    string      // operator or callee of op and invoke nodes
	Value interface{} // literal of const nodes
}

// ID implements graph.Node.
func (n *Node) ID() int64 { return n.id }

func (n *Node) String() string {
	switch n.Kind {
	case KindLiveIn:
		return n.Name
	case KindConst:
		return mir.OperandString(&mir.Literal{Value: n.Value})
	case KindOp, KindInvoke:
		return n.Op
	case KindDef:
		return n.Name + " ="
	case KindMux:
		return "mux " + n.Name
	case KindReturn:
		return "return"
	case KindOutput:
		return "out " + n.Name
	}
	return "n" + strconv.FormatInt(n.id, 10)
}

// Edge labels.
const (
	PortTrue      = "true"
	PortFalse     = "false"
	PortCondition = "condition"
	PortValue     = "value"
	PortBase      = "base"
)

// Edge is a labelled dataflow edge. Operation inputs are labelled with
// their position.
type Edge struct {
	F, T  *Node
	UID   int64
	Label string
}

func (e *Edge) From() graph.Node { return e.F }
func (e *Edge) To() graph.Node   { return e.T }
func (e *Edge) ID() int64        { return e.UID }
func (e *Edge) ReversedLine() graph.Line {
	return &Edge{F: e.T, T: e.F, UID: e.UID, Label: e.Label}
}

// Graph is the dataflow graph of one procedure. Parallel edges are allowed,
// so an operation may read the same producer twice.
type Graph struct {
	g        *multi.DirectedGraph
	name     string
	nextNode int64
	nextLine int64
	outputs  []*Node
}

func newGraph(name string) *Graph {
	return &Graph{g: multi.NewDirectedGraph(), name: name}
}

func (g *Graph) addNode(n *Node) *Node {
	n.id = g.nextNode
	g.nextNode++
	g.g.AddNode(n)
	return n
}

func (g *Graph) connect(from, to *Node, label string) {
	g.g.SetLine(&Edge{F: from, T: to, UID: g.nextLine, Label: label})
	g.nextLine++
}

// redirect moves every outgoing edge of from to start at to, then removes
// from.
func (g *Graph) redirect(from, to *Node) {
	for _, e := range g.outgoing(from) {
		g.g.RemoveLine(e.F.ID(), e.T.ID(), e.UID)
		g.connect(to, e.T, e.Label)
	}
	g.g.RemoveNode(from.ID())
}

func (g *Graph) outgoing(n *Node) []*Edge {
	var edges []*Edge
	for _, to := range graph.NodesOf(g.g.From(n.ID())) {
		for _, l := range graph.LinesOf(g.g.Lines(n.ID(), to.ID())) {
			edges = append(edges, l.(*Edge))
		}
	}
	sortEdges(edges)
	return edges
}

// Name returns the procedure name.
func (g *Graph) Name() string { return g.name }

// Len returns the number of nodes.
func (g *Graph) Len() int { return g.g.Nodes().Len() }

// Node returns the node with the given ID, or nil.
func (g *Graph) Node(id int64) *Node {
	if n, ok := g.g.Node(id).(*Node); ok {
		return n
	}
	return nil
}

// Nodes returns every node in ascending ID order.
func (g *Graph) Nodes() []*Node {
	raw := graph.NodesOf(g.g.Nodes())
	nodes := make([]*Node, len(raw))
	for i, n := range raw {
		nodes[i] = n.(*Node)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].id < nodes[j].id })
	return nodes
}

// Edges returns every edge in creation order.
func (g *Graph) Edges() []*Edge {
	var edges []*Edge
	for _, n := range g.Nodes() {
		edges = append(edges, g.outgoing(n)...)
	}
	sortEdges(edges)
	return edges
}

// Inputs returns the edges into n in creation order.
func (g *Graph) Inputs(n *Node) []*Edge {
	var edges []*Edge
	for _, from := range graph.NodesOf(g.g.To(n.ID())) {
		for _, l := range graph.LinesOf(g.g.Lines(from.ID(), n.ID())) {
			edges = append(edges, l.(*Edge))
		}
	}
	sortEdges(edges)
	return edges
}

// Input returns the producer feeding n through the edge labelled label.
func (g *Graph) Input(n *Node, label string) *Node {
	for _, e := range g.Inputs(n) {
		if e.Label == label {
			return e.F
		}
	}
	return nil
}

// Uses returns the edges out of n in creation order.
func (g *Graph) Uses(n *Node) []*Edge { return g.outgoing(n) }

// Outputs returns the output nodes: the return value first, then heap
// fields written by the procedure.
func (g *Graph) Outputs() []*Node { return append([]*Node(nil), g.outputs...) }

// Output returns the output node of v, or nil.
func (g *Graph) Output(v mir.Var) *Node {
	for _, n := range g.outputs {
		if n.Var == v {
			return n
		}
	}
	return nil
}

// Muxes returns the multiplexer nodes in ID order.
func (g *Graph) Muxes() []*Node { return g.ofKind(KindMux) }

// LiveIns returns the live-in nodes in ID order.
func (g *Graph) LiveIns() []*Node { return g.ofKind(KindLiveIn) }

func (g *Graph) ofKind(k Kind) []*Node {
	var nodes []*Node
	for _, n := range g.Nodes() {
		if n.Kind == k {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// Label returns the display label of a node of g.
func (g *Graph) Label(n graph.Node) string {
	if n, ok := n.(*Node); ok {
		return n.String()
	}
	return "n" + strconv.FormatInt(n.ID(), 10)
}

// Summary returns a one-line description of the graph's size.
func (g *Graph) Summary() string {
	return fmt.Sprintf("%d nodes, %d edges, %d muxes, %d live-ins, %d outputs",
		g.Len(), len(g.Edges()), len(g.Muxes()), len(g.LiveIns()), len(g.outputs))
}

func sortEdges(edges []*Edge) {
	sort.Slice(edges, func(i, j int) bool { return edges[i].UID < edges[j].UID })
}
