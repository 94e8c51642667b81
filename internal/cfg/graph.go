// Package cfg wraps a procedure's basic blocks in a single-source,
// single-sink directed acyclic graph.
package cfg

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/malphas-lang/ifconv/internal/mir"
)

// Kind tells block nodes apart from synthesized ones.
type Kind uint8

const (
	KindBlock Kind = iota // carries a basic block
	KindSink              // synthesized common exit
	KindJoin              // synthesized merge point
)

func (k Kind) String() string {
	switch k {
	case KindBlock:
		return "block"
	case KindSink:
		return "sink"
	case KindJoin:
		return "join"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Node is a CFG node. Block is nil for synthesized nodes.
type Node struct {
	id    int64
	Kind  Kind
	Block *mir.BasicBlock
}

// ID implements graph.Node.
func (n *Node) ID() int64 { return n.id }

func (n *Node) String() string {
	switch {
	case n.Block != nil && n.Block.Label != "":
		return n.Block.Label
	case n.Kind == KindSink:
		return "sink"
	case n.Kind == KindJoin:
		return fmt.Sprintf("join%d", n.id)
	}
	return fmt.Sprintf("n%d", n.id)
}

// Label names the branch outcome an edge stands for.
type Label string

const (
	Seq   Label = ""      // unconditional
	True  Label = "true"  // branch taken
	False Label = "false" // fall-through
)

// Edge is a labelled CFG edge.
type Edge struct {
	F, T  *Node
	Label Label
}

func (e *Edge) From() graph.Node         { return e.F }
func (e *Edge) To() graph.Node           { return e.T }
func (e *Edge) ReversedEdge() graph.Edge { return &Edge{F: e.T, T: e.F, Label: e.Label} }

// Graph is the acyclic CFG of one procedure. It implements graph.Directed,
// so gonum algorithms and the dominance analysis run on it directly.
type Graph struct {
	g      *simple.DirectedGraph
	fn     *mir.Function
	blocks map[*mir.BasicBlock]*Node
	exits  []*Node
	nextID int64

	// version counts structural mutations; analyses cached against an
	// older version are stale.
	version int

	Source *Node
	Sink   *Node
}

func newGraph(fn *mir.Function) *Graph {
	return &Graph{
		g:      simple.NewDirectedGraph(),
		fn:     fn,
		blocks: make(map[*mir.BasicBlock]*Node, len(fn.Blocks)),
	}
}

func (g *Graph) addNode(kind Kind, block *mir.BasicBlock) *Node {
	n := &Node{id: g.nextID, Kind: kind, Block: block}
	g.nextID++
	g.g.AddNode(n)
	if block != nil {
		g.blocks[block] = n
	}
	return n
}

func (g *Graph) setEdge(from, to *Node, label Label) {
	g.g.SetEdge(&Edge{F: from, T: to, Label: label})
}

// Function returns the procedure the graph was built from.
func (g *Graph) Function() *mir.Function { return g.fn }

// Version returns the mutation counter of the graph.
func (g *Graph) Version() int { return g.version }

// Len returns the number of nodes.
func (g *Graph) Len() int { return g.g.Nodes().Len() }

// NodeOf returns the node holding block, or nil.
func (g *Graph) NodeOf(block *mir.BasicBlock) *Node { return g.blocks[block] }

// Exits returns the original exit nodes, before sink synthesis.
func (g *Graph) Exits() []*Node { return append([]*Node(nil), g.exits...) }

// graph.Directed

func (g *Graph) Node(id int64) graph.Node           { return g.g.Node(id) }
func (g *Graph) Nodes() graph.Nodes                 { return g.g.Nodes() }
func (g *Graph) From(id int64) graph.Nodes          { return g.g.From(id) }
func (g *Graph) To(id int64) graph.Nodes            { return g.g.To(id) }
func (g *Graph) HasEdgeBetween(xid, yid int64) bool { return g.g.HasEdgeBetween(xid, yid) }
func (g *Graph) HasEdgeFromTo(uid, vid int64) bool  { return g.g.HasEdgeFromTo(uid, vid) }
func (g *Graph) Edge(uid, vid int64) graph.Edge     { return g.g.Edge(uid, vid) }

// Sorted returns every node in ascending ID order.
func (g *Graph) Sorted() []*Node {
	return sortedNodes(g.g.Nodes())
}

// Successors returns the successors of n, branch target first.
func (g *Graph) Successors(n *Node) []*Node {
	succs := sortedNodes(g.g.From(n.ID()))
	sort.SliceStable(succs, func(i, j int) bool {
		return labelRank(g.EdgeLabel(n, succs[i])) < labelRank(g.EdgeLabel(n, succs[j]))
	})
	return succs
}

// Predecessors returns the predecessors of n in ascending ID order.
func (g *Graph) Predecessors(n *Node) []*Node {
	return sortedNodes(g.g.To(n.ID()))
}

// EdgeLabel returns the label of the edge from -> to.
func (g *Graph) EdgeLabel(from, to *Node) Label {
	if e, ok := g.g.Edge(from.ID(), to.ID()).(*Edge); ok {
		return e.Label
	}
	return Seq
}

// Label returns the display label of a node of g.
func (g *Graph) Label(n graph.Node) string {
	if n, ok := n.(*Node); ok {
		return n.String()
	}
	return fmt.Sprintf("n%d", n.ID())
}

// Topological returns the nodes in topological order, breaking ties by ID.
func (g *Graph) Topological() []*Node {
	sorted, err := topo.SortStabilized(g.g, byID)
	if err != nil {
		// Build rejects cycles and joins never introduce one.
		panic(fmt.Sprintf("cfg: graph of %s lost acyclicity: %v", g.fn.Name, err))
	}
	nodes := make([]*Node, len(sorted))
	for i, n := range sorted {
		nodes[i] = n.(*Node)
	}
	return nodes
}

// InsertJoin synthesizes a join node in front of target: every edge
// pred -> target is redirected to the join, keeping its label, and the
// join falls through to target. Predecessors without an edge to target
// are ignored.
func (g *Graph) InsertJoin(target *Node, preds []*Node) *Node {
	join := g.addNode(KindJoin, nil)
	for _, p := range preds {
		label := g.EdgeLabel(p, target)
		if !g.g.HasEdgeFromTo(p.ID(), target.ID()) {
			continue
		}
		g.g.RemoveEdge(p.ID(), target.ID())
		g.setEdge(p, join, label)
	}
	g.setEdge(join, target, Seq)
	g.version++
	return join
}

func labelRank(l Label) int {
	switch l {
	case True:
		return 0
	case False:
		return 1
	}
	return 2
}

func byID(nodes []graph.Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID() < nodes[j].ID() })
}

func sortedNodes(it graph.Nodes) []*Node {
	raw := graph.NodesOf(it)
	byID(raw)
	nodes := make([]*Node, len(raw))
	for i, n := range raw {
		nodes[i] = n.(*Node)
	}
	return nodes
}
