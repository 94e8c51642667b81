package dfg

import (
	"github.com/malphas-lang/ifconv/internal/cfg"
	"github.com/malphas-lang/ifconv/internal/diag"
	"github.com/malphas-lang/ifconv/internal/interval"
	"github.com/malphas-lang/ifconv/internal/mir"
)

// serialMerge appends the fragment frag, built for the next interval of a
// chain, to scope. Live-ins of frag that scope can produce are redirected
// to that producer; the others become live-ins of scope.
func (b *builder) serialMerge(scope, frag *ValueMap) {
	replaced := make(map[*Node]*Node)
	for _, in := range frag.LiveIns() {
		p, ok := scope.Lookup(in.Var)
		if !ok {
			scope.SetLiveIn(in.Var, in)
			continue
		}
		if p != in {
			b.out.redirect(in, p)
			replaced[in] = p
		}
	}
	for _, v := range frag.Defined() {
		for _, n := range frag.History(v) {
			if r, ok := replaced[n]; ok {
				n = r
			}
			scope.Define(v, n)
		}
	}
}

// forkMerge builds both arms of a simple fork in scopes forked from parent
// and multiplexes every variable whose value depends on the arm taken.
func (b *builder) forkMerge(iv *interval.Interval, parent *ValueMap, cond *Node) error {
	if len(iv.Branches) != 2 {
		return diag.Errorf(diag.StageDataflow, diag.CodeUnsupportedConstruct,
			"fork %s has %d branches", iv.Root, len(iv.Branches)).At(b.location(iv.Root))
	}
	var arms [2]*ValueMap
	for i := range arms {
		arms[i] = parent.Fork()
		if child := iv.Child(i); child != nil {
			if err := b.chain(child, arms[i]); err != nil {
				return err
			}
		}
	}

	for _, v := range union(arms[0].Defined(), arms[1].Defined()) {
		t, inTrue := arms[0].Local(v)
		f, inFalse := arms[1].Local(v)
		if !inTrue || !inFalse {
			prev, ok := b.before(parent, v)
			if !ok {
				if inTrue {
					parent.Define(v, t)
				} else {
					parent.Define(v, f)
				}
				continue
			}
			if !inTrue {
				t = prev
			}
			if !inFalse {
				f = prev
			}
		}
		parent.Define(v, b.mux(v, t, f, cond))
	}
	return nil
}

// edgeState is what flows along one CFG edge of a special region: the
// definitions made on the way and the predicate under which the edge is
// taken.
type edgeState struct {
	scope *ValueMap
	path  *Node // nil means always
}

type edgeKey [2]int64

func keyOf(from, to *cfg.Node) edgeKey { return edgeKey{from.ID(), to.ID()} }

// gatedMerge builds a special region node by node in topological order.
// Each edge carries the predicate under which it is taken; nodes entered
// by several edges select each variable through a chain of multiplexers
// keyed by those predicates. The state reaching the region's join becomes
// the fork's result in base.
func (b *builder) gatedMerge(iv *interval.Interval, base *ValueMap, cond *Node) error {
	states := make(map[edgeKey]edgeState)
	if err := b.emit(iv.Root, base, nil, cond, states); err != nil {
		return err
	}

	for _, n := range iv.SpecialNodes {
		scope, in, err := b.enter(n, base, states)
		if err != nil {
			return err
		}
		c, err := b.walk(n, scope)
		if err != nil {
			return err
		}
		if err := b.emit(n, scope, b.anyOf(in), c, states); err != nil {
			return err
		}
	}

	scope, _, err := b.enter(iv.Join, base, states)
	if err != nil {
		return err
	}
	for _, v := range scope.DefinedBelow(base) {
		n, _ := scope.LookupBelow(base, v)
		base.Define(v, n)
	}
	b.log.Debug("special region merged", "fork", iv.Root.String(), "nodes", len(iv.SpecialNodes))
	return nil
}

// emit records the state leaving n along each of its outgoing edges.
func (b *builder) emit(n *cfg.Node, scope *ValueMap, path, cond *Node, states map[edgeKey]edgeState) error {
	var negated *Node
	for _, s := range b.cfg.Successors(n) {
		label := b.cfg.EdgeLabel(n, s)
		if label != cfg.Seq && cond == nil {
			return diag.Errorf(diag.StageDataflow, diag.CodeMalformedGraph,
				"%s edge out of %s without a condition", label, n).At(b.location(n))
		}
		switch label {
		case cfg.True:
			states[keyOf(n, s)] = edgeState{scope: scope.Fork(), path: b.and(path, cond)}
		case cfg.False:
			if negated == nil {
				negated = b.op("!", cond)
			}
			states[keyOf(n, s)] = edgeState{scope: scope.Fork(), path: b.and(path, negated)}
		default:
			states[keyOf(n, s)] = edgeState{scope: scope, path: path}
		}
	}
	return nil
}

// enter merges the states arriving at n.
func (b *builder) enter(n *cfg.Node, base *ValueMap, states map[edgeKey]edgeState) (*ValueMap, []edgeState, error) {
	var in []edgeState
	for _, p := range b.cfg.Predecessors(n) {
		if st, ok := states[keyOf(p, n)]; ok {
			in = append(in, st)
		}
	}
	switch len(in) {
	case 0:
		return nil, nil, diag.Errorf(diag.StageDataflow, diag.CodeMalformedGraph,
			"%s is not reached from its region", n).At(b.location(n))
	case 1:
		return in[0].scope, in, nil
	}

	var defined [][]mir.Var
	for _, st := range in {
		defined = append(defined, st.scope.DefinedBelow(base))
	}
	merged := base.Fork()
	for _, v := range union(defined...) {
		var values, paths []*Node
		for _, st := range in {
			value, ok := st.scope.LookupBelow(base, v)
			if !ok {
				value, ok = b.before(base, v)
			}
			if ok {
				values = append(values, value)
				paths = append(paths, st.path)
			}
		}
		acc := values[len(values)-1]
		for i := len(values) - 2; i >= 0; i-- {
			if paths[i] == nil {
				acc = values[i]
				continue
			}
			acc = b.mux(v, values[i], acc, paths[i])
		}
		merged.Define(v, acc)
	}
	return merged, in, nil
}

// before returns the value v had on entry to a fork whose arms did not all
// define it. A variable nothing produced yet gets a live-in, which a later
// serial merge may redirect to the real producer. The return value has no
// prior value.
func (b *builder) before(scope *ValueMap, v mir.Var) (*Node, bool) {
	if n, ok := scope.Lookup(v); ok {
		return n, true
	}
	if v == mir.ReturnVar {
		return nil, false
	}
	return b.liveIn(scope, v), true
}

func (b *builder) mux(v mir.Var, t, f, cond *Node) *Node {
	if t == f {
		return t
	}
	name := b.varName(v)
	m := b.node(&Node{Kind: KindMux, Var: v, Name: name})
	b.out.connect(t, m, PortTrue)
	b.out.connect(f, m, PortFalse)
	b.out.connect(cond, m, PortCondition)
	b.log.Debug("mux", "var", name, "true", t.String(), "false", f.String())
	return m
}

func (b *builder) and(path, cond *Node) *Node {
	if path == nil {
		return cond
	}
	return b.op("&&", path, cond)
}

// anyOf returns the predicate under which at least one of in is taken.
func (b *builder) anyOf(in []edgeState) *Node {
	var path *Node
	for i, st := range in {
		if st.path == nil {
			return nil
		}
		if i == 0 {
			path = st.path
			continue
		}
		path = b.op("||", path, st.path)
	}
	return path
}

func (b *builder) varName(v mir.Var) string {
	if v == mir.ReturnVar {
		return "return"
	}
	return b.names.Name(v)
}

func union(lists ...[]mir.Var) []mir.Var {
	var vars []mir.Var
	seen := make(map[mir.Var]bool)
	for _, list := range lists {
		for _, v := range list {
			if !seen[v] {
				seen[v] = true
				vars = append(vars, v)
			}
		}
	}
	return vars
}
