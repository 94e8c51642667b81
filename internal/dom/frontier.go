package dom

import (
	"gonum.org/v1/gonum/graph"
)

// Frontier returns the dominance frontier of n: the nodes y such that n
// dominates a predecessor of y but does not strictly dominate y. Results
// are in ascending ID order.
func (t *Tree) Frontier(n graph.Node) []graph.Node {
	if t.frontiers == nil {
		t.frontiers = t.computeFrontiers()
	}
	return t.frontiers[n.ID()]
}

// computeFrontiers walks up the tree from each predecessor of every join
// node until it meets the join's immediate dominator.
func (t *Tree) computeFrontiers() map[int64][]graph.Node {
	frontiers := make(map[int64][]graph.Node)
	seen := make(map[[2]int64]bool)

	for _, block := range t.order {
		preds := graph.NodesOf(t.g.To(block.ID()))
		if len(preds) < 2 {
			continue
		}
		byID(preds)
		stop := t.idom[block.ID()]
		for _, pred := range preds {
			runner := pred
			// Walk up the dominator tree from pred
			for runner != nil && (stop == nil || runner.ID() != stop.ID()) {
				key := [2]int64{runner.ID(), block.ID()}
				if !seen[key] {
					seen[key] = true
					frontiers[runner.ID()] = append(frontiers[runner.ID()], block)
				}
				runner = t.idom[runner.ID()]
			}
		}
	}

	for id := range frontiers {
		byID(frontiers[id])
	}
	return frontiers
}
