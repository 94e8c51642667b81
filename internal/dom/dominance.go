// Package dom computes dominator and post-dominator trees by iterating
// dominator sets to a fixpoint over a topological order.
package dom

import (
	"fmt"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/malphas-lang/ifconv/internal/diag"
)

// Tree holds the dominator sets of every node of a graph and the
// immediate-dominator tree derived from them.
type Tree struct {
	g     graph.Directed
	root  graph.Node
	order []graph.Node

	sets     map[int64]nodeSet
	idom     map[int64]graph.Node
	children map[int64][]graph.Node
	depth    map[int64]int

	frontiers map[int64][]graph.Node
}

// nodeSet is a set of node IDs.
type nodeSet map[int64]struct{}

func (s nodeSet) has(id int64) bool {
	_, ok := s[id]
	return ok
}

// Dominators computes the dominator tree of g rooted at root. Every node of
// g must be reachable from root and g must be acyclic.
func Dominators(g graph.Directed, root graph.Node) (*Tree, error) {
	order, err := topo.SortStabilized(g, byID)
	if err != nil {
		return nil, diag.Errorf(diag.StageDominance, diag.CodeMalformedGraph,
			"graph is not acyclic").Wrap(err)
	}
	if g.Node(root.ID()) == nil {
		return nil, diag.Errorf(diag.StageDominance, diag.CodeMalformedGraph,
			"root %d is not in the graph", root.ID())
	}
	if n := unreachable(g, root); n != nil {
		return nil, diag.Errorf(diag.StageDominance, diag.CodeMalformedGraph,
			"node %s is unreachable from %s", label(n), label(root))
	}

	t := &Tree{
		g:        g,
		root:     root,
		order:    order,
		sets:     make(map[int64]nodeSet, len(order)),
		idom:     make(map[int64]graph.Node, len(order)),
		children: make(map[int64][]graph.Node),
		depth:    make(map[int64]int, len(order)),
	}
	t.computeSets()
	if err := t.computeImmediate(); err != nil {
		return nil, err
	}
	return t, nil
}

// PostDominators computes the post-dominator tree of g rooted at sink, as
// the dominator tree of the reversed graph.
func PostDominators(g graph.Directed, sink graph.Node) (*Tree, error) {
	return Dominators(Reverse(g), sink)
}

// computeSets iterates Dom(n) = {n} ∪ ⋂ Dom(p) over predecessors p until
// no set shrinks. The root starts as {root}; every other node starts as
// the set of all nodes.
func (t *Tree) computeSets() {
	all := make(nodeSet, len(t.order))
	for _, n := range t.order {
		all[n.ID()] = struct{}{}
	}
	for _, n := range t.order {
		if n.ID() == t.root.ID() {
			t.sets[n.ID()] = nodeSet{n.ID(): {}}
			continue
		}
		full := make(nodeSet, len(all))
		for id := range all {
			full[id] = struct{}{}
		}
		t.sets[n.ID()] = full
	}

	changed := true
	for changed {
		changed = false
		for _, n := range t.order {
			if n.ID() == t.root.ID() {
				continue
			}
			next := t.intersectPredecessors(n)
			next[n.ID()] = struct{}{}
			if len(next) != len(t.sets[n.ID()]) {
				t.sets[n.ID()] = next
				changed = true
			}
		}
	}
}

// intersectPredecessors returns the intersection of the dominator sets of
// n's predecessors.
func (t *Tree) intersectPredecessors(n graph.Node) nodeSet {
	preds := graph.NodesOf(t.g.To(n.ID()))
	if len(preds) == 0 {
		return make(nodeSet)
	}
	byID(preds)

	result := make(nodeSet, len(t.sets[preds[0].ID()]))
	for id := range t.sets[preds[0].ID()] {
		result[id] = struct{}{}
	}
	for _, p := range preds[1:] {
		ps := t.sets[p.ID()]
		for id := range result {
			if !ps.has(id) {
				delete(result, id)
			}
		}
	}
	return result
}

// computeImmediate extracts the immediate dominator of every node: drop the
// node itself from its set, then drop every candidate that strictly
// dominates another candidate. Exactly one candidate must remain.
func (t *Tree) computeImmediate() error {
	for _, n := range t.order {
		id := n.ID()
		if id == t.root.ID() {
			continue
		}

		var candidates []int64
		for d := range t.sets[id] {
			if d != id {
				candidates = append(candidates, d)
			}
		}
		var closest []int64
		for _, d := range candidates {
			dominatesOther := false
			for _, other := range candidates {
				if other != d && t.sets[other].has(d) {
					dominatesOther = true
					break
				}
			}
			if !dominatesOther {
				closest = append(closest, d)
			}
		}
		if len(closest) != 1 {
			return diag.Errorf(diag.StageDominance, diag.CodeMalformedGraph,
				"node %s has %d immediate dominator candidates", label(n), len(closest))
		}
		parent := t.g.Node(closest[0])
		t.idom[id] = parent
		t.children[parent.ID()] = append(t.children[parent.ID()], n)
	}

	for id := range t.children {
		byID(t.children[id])
	}
	// order is topological, so parents get their depth first.
	for _, n := range t.order {
		if p := t.idom[n.ID()]; p != nil {
			t.depth[n.ID()] = t.depth[p.ID()] + 1
		}
	}
	return nil
}

// Root returns the root of the tree.
func (t *Tree) Root() graph.Node { return t.root }

// Order returns the nodes in the topological order the fixpoint used.
func (t *Tree) Order() []graph.Node { return append([]graph.Node(nil), t.order...) }

// Dominates reports whether a dominates b. Every node dominates itself.
func (t *Tree) Dominates(a, b graph.Node) bool {
	return t.sets[b.ID()].has(a.ID())
}

// StrictlyDominates reports whether a dominates b and a != b.
func (t *Tree) StrictlyDominates(a, b graph.Node) bool {
	return a.ID() != b.ID() && t.Dominates(a, b)
}

// Immediate returns the immediate dominator of n, or nil for the root.
func (t *Tree) Immediate(n graph.Node) graph.Node {
	return t.idom[n.ID()]
}

// Set returns the dominators of n, including n, in ascending ID order.
func (t *Tree) Set(n graph.Node) []graph.Node {
	nodes := make([]graph.Node, 0, len(t.sets[n.ID()]))
	for id := range t.sets[n.ID()] {
		nodes = append(nodes, t.g.Node(id))
	}
	byID(nodes)
	return nodes
}

// Children returns the nodes immediately dominated by n.
func (t *Tree) Children(n graph.Node) []graph.Node {
	return t.children[n.ID()]
}

// Depth returns the distance from the root to n in the tree.
func (t *Tree) Depth(n graph.Node) int {
	return t.depth[n.ID()]
}

func unreachable(g graph.Directed, root graph.Node) graph.Node {
	seen := map[int64]bool{root.ID(): true}
	worklist := []graph.Node{root}
	for len(worklist) > 0 {
		n := worklist[0]
		worklist = worklist[1:]
		for _, succ := range graph.NodesOf(g.From(n.ID())) {
			if !seen[succ.ID()] {
				seen[succ.ID()] = true
				worklist = append(worklist, succ)
			}
		}
	}
	nodes := graph.NodesOf(g.Nodes())
	byID(nodes)
	for _, n := range nodes {
		if !seen[n.ID()] {
			return n
		}
	}
	return nil
}

func byID(nodes []graph.Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID() < nodes[j].ID() })
}

func label(n graph.Node) string {
	if s, ok := n.(fmt.Stringer); ok {
		return s.String()
	}
	return "#" + strconv.FormatInt(n.ID(), 10)
}
