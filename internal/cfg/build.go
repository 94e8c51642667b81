package cfg

import (
	"strings"

	"gonum.org/v1/gonum/graph/topo"

	"github.com/malphas-lang/ifconv/internal/diag"
	"github.com/malphas-lang/ifconv/internal/mir"
)

// Build wraps fn's blocks in an acyclic graph with a single source and a
// single sink. The entry block must be the only block without
// predecessors. When several blocks exit the procedure, a synthesized
// sink node collects them.
func Build(fn *mir.Function) (*Graph, error) {
	if fn.Entry == nil || len(fn.Blocks) == 0 {
		return nil, malformed(fn, nil, "procedure has no entry block")
	}

	g := newGraph(fn)
	for _, block := range fn.Blocks {
		if g.blocks[block] != nil {
			return nil, malformed(fn, block, "block %s listed twice", block.Label)
		}
		g.addNode(KindBlock, block)
	}
	if g.blocks[fn.Entry] == nil {
		return nil, malformed(fn, fn.Entry, "entry block %s is not part of the procedure", fn.Entry.Label)
	}

	for _, block := range fn.Blocks {
		if err := g.addEdges(block); err != nil {
			return nil, err
		}
	}

	var sources []*Node
	for _, n := range g.Sorted() {
		if g.g.To(n.ID()).Len() == 0 {
			sources = append(sources, n)
		}
		if g.g.From(n.ID()).Len() == 0 {
			g.exits = append(g.exits, n)
		}
	}
	if len(sources) != 1 {
		return nil, malformed(fn, nil, "graph has %d sources, want 1", len(sources)).
			WithNote("sources: " + nodeList(sources)).
			WithHelp("remove unreachable blocks before building the graph")
	}
	if sources[0].Block != fn.Entry {
		return nil, malformed(fn, fn.Entry, "entry block %s has predecessors", fn.Entry.Label).
			WithNote("the only source is " + sources[0].String())
	}
	if _, err := topo.Sort(g.g); err != nil {
		return nil, malformed(fn, nil, "control flow graph has a cycle").
			Wrap(err).
			WithHelp("loops are not converted")
	}
	if len(g.exits) == 0 {
		return nil, malformed(fn, nil, "graph has no exit")
	}

	g.Source = sources[0]
	if len(g.exits) == 1 {
		g.Sink = g.exits[0]
		return g, nil
	}
	g.Sink = g.addNode(KindSink, nil)
	for _, exit := range g.exits {
		g.setEdge(exit, g.Sink, Seq)
	}
	return g, nil
}

func (g *Graph) addEdges(block *mir.BasicBlock) error {
	from := g.blocks[block]
	target := func(t *mir.BasicBlock) (*Node, error) {
		to := g.blocks[t]
		switch {
		case t == nil:
			return nil, malformed(g.fn, block, "block %s jumps to a nil block", block.Label)
		case to == nil:
			return nil, malformed(g.fn, block, "block %s jumps to unknown block %s", block.Label, t.Label)
		case to == from:
			return nil, malformed(g.fn, block, "control flow graph has a cycle").
				WithNote("block " + block.Label + " jumps to itself").
				WithHelp("loops are not converted")
		}
		return to, nil
	}

	switch term := block.Terminator.(type) {
	case *mir.Return:
	case *mir.Goto:
		to, err := target(term.Target)
		if err != nil {
			return err
		}
		g.setEdge(from, to, Seq)
	case *mir.Branch:
		t, err := target(term.True)
		if err != nil {
			return err
		}
		f, err := target(term.False)
		if err != nil {
			return err
		}
		if t == f {
			g.setEdge(from, t, Seq)
			return nil
		}
		g.setEdge(from, t, True)
		g.setEdge(from, f, False)
	default:
		return malformed(g.fn, block, "block %s has no terminator", block.Label)
	}
	return nil
}

func malformed(fn *mir.Function, block *mir.BasicBlock, format string, args ...interface{}) *diag.Error {
	span := diag.Span{Procedure: fn.Name}
	if block != nil {
		span.Block = block.Label
	}
	return diag.Errorf(diag.StageCFG, diag.CodeMalformedGraph, format, args...).At(span)
}

func nodeList(nodes []*Node) string {
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.String()
	}
	return strings.Join(names, ", ")
}
