package dom

import (
	"gonum.org/v1/gonum/graph"
)

// Reversed is a view of a directed graph with every edge turned around.
type Reversed struct {
	graph.Directed
}

// Reverse returns the edge-reversed view of g.
func Reverse(g graph.Directed) Reversed {
	return Reversed{g}
}

func (r Reversed) From(id int64) graph.Nodes         { return r.Directed.To(id) }
func (r Reversed) To(id int64) graph.Nodes           { return r.Directed.From(id) }
func (r Reversed) HasEdgeFromTo(uid, vid int64) bool { return r.Directed.HasEdgeFromTo(vid, uid) }

// Edge returns the reversed edge from u to v, or nil.
func (r Reversed) Edge(uid, vid int64) graph.Edge {
	e := r.Directed.Edge(vid, uid)
	if e == nil {
		return nil
	}
	return e.ReversedEdge()
}
