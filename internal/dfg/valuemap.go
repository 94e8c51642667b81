package dfg

import "github.com/malphas-lang/ifconv/internal/mir"

// ValueMap records, per variable, the nodes that defined it in one scope,
// most recent last. Scopes nest: a forked scope sees its parent's
// definitions but records its own separately, so sibling branches explore
// independent definitions. Live-ins are kept at the root scope.
type ValueMap struct {
	parent *ValueMap
	defs   map[mir.Var][]*Node
	vars   []mir.Var

	liveIn map[mir.Var]*Node
	inputs []mir.Var
}

// NewValueMap returns an empty root scope.
func NewValueMap() *ValueMap {
	return &ValueMap{
		defs:   make(map[mir.Var][]*Node),
		liveIn: make(map[mir.Var]*Node),
	}
}

// Fork returns an empty scope nested in m.
func (m *ValueMap) Fork() *ValueMap {
	return &ValueMap{parent: m, defs: make(map[mir.Var][]*Node)}
}

// Clone returns a copy of m with the same parent. Definition lists are
// copied shallowly.
func (m *ValueMap) Clone() *ValueMap {
	c := &ValueMap{
		parent: m.parent,
		defs:   make(map[mir.Var][]*Node, len(m.defs)),
		vars:   append([]mir.Var(nil), m.vars...),
	}
	for v, nodes := range m.defs {
		c.defs[v] = append([]*Node(nil), nodes...)
	}
	if m.liveIn != nil {
		c.liveIn = make(map[mir.Var]*Node, len(m.liveIn))
		for v, n := range m.liveIn {
			c.liveIn[v] = n
		}
		c.inputs = append([]mir.Var(nil), m.inputs...)
	}
	return c
}

func (m *ValueMap) root() *ValueMap {
	for m.parent != nil {
		m = m.parent
	}
	return m
}

// Define records n as the most recent definition of v in m.
func (m *ValueMap) Define(v mir.Var, n *Node) {
	if _, ok := m.defs[v]; !ok {
		m.vars = append(m.vars, v)
	}
	m.defs[v] = append(m.defs[v], n)
}

// Lookup returns the most recent producer of v visible from m: a
// definition in m or an enclosing scope, else a live-in.
func (m *ValueMap) Lookup(v mir.Var) (*Node, bool) {
	for s := m; s != nil; s = s.parent {
		if nodes := s.defs[v]; len(nodes) > 0 {
			return nodes[len(nodes)-1], true
		}
	}
	n, ok := m.root().liveIn[v]
	return n, ok
}

// Local returns the most recent definition of v made in m itself.
func (m *ValueMap) Local(v mir.Var) (*Node, bool) {
	nodes := m.defs[v]
	if len(nodes) == 0 {
		return nil, false
	}
	return nodes[len(nodes)-1], true
}

// History returns every definition of v made in m, oldest first.
func (m *ValueMap) History(v mir.Var) []*Node {
	return append([]*Node(nil), m.defs[v]...)
}

// Defined returns the variables defined in m, in first-definition order.
func (m *ValueMap) Defined() []mir.Var {
	return append([]mir.Var(nil), m.vars...)
}

// DefinedBelow returns the variables defined in m or any scope between m
// and ancestor, excluding ancestor, in first-definition order from the
// outermost scope inward.
func (m *ValueMap) DefinedBelow(ancestor *ValueMap) []mir.Var {
	var chain []*ValueMap
	for s := m; s != nil && s != ancestor; s = s.parent {
		chain = append(chain, s)
	}
	var vars []mir.Var
	seen := make(map[mir.Var]bool)
	for i := len(chain) - 1; i >= 0; i-- {
		for _, v := range chain[i].vars {
			if !seen[v] {
				seen[v] = true
				vars = append(vars, v)
			}
		}
	}
	return vars
}

// LookupBelow is Lookup restricted to the scopes between m and ancestor.
func (m *ValueMap) LookupBelow(ancestor *ValueMap, v mir.Var) (*Node, bool) {
	for s := m; s != nil && s != ancestor; s = s.parent {
		if nodes := s.defs[v]; len(nodes) > 0 {
			return nodes[len(nodes)-1], true
		}
	}
	return nil, false
}

// SetLiveIn records n as the value of v on entry to m's root scope.
func (m *ValueMap) SetLiveIn(v mir.Var, n *Node) {
	r := m.root()
	if _, ok := r.liveIn[v]; !ok {
		r.inputs = append(r.inputs, v)
	}
	r.liveIn[v] = n
}

// LiveIns returns the live-in nodes of m's root scope in creation order.
func (m *ValueMap) LiveIns() []*Node {
	r := m.root()
	nodes := make([]*Node, 0, len(r.inputs))
	for _, v := range r.inputs {
		nodes = append(nodes, r.liveIn[v])
	}
	return nodes
}
