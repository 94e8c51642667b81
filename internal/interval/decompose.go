package interval

import (
	"log/slog"
	"strings"

	"github.com/malphas-lang/ifconv/internal/cfg"
	"github.com/malphas-lang/ifconv/internal/config"
	"github.com/malphas-lang/ifconv/internal/diag"
	"github.com/malphas-lang/ifconv/internal/dom"
)

// Decompose partitions g into an interval chain rooted at its source. It
// inserts join nodes into g in front of every fork's immediate
// post-dominator and in front of multi-entry nodes of special regions.
func Decompose(g *cfg.Graph, conf config.Config) (*Interval, error) {
	d := &decomposer{g: g, log: conf.Logger(), version: -1}
	head, err := d.chain(g.Source)
	if err != nil {
		return nil, diag.InProcedure(err, g.Function().Name)
	}
	if !head.ChainValid() {
		var bad *Interval
		head.Walk(func(iv *Interval) bool {
			if bad == nil && !iv.Valid {
				bad = iv
			}
			return true
		})
		return nil, d.unsupported(bad.Root, "irregular region at %s cannot be closed", bad.Root)
	}
	return head, nil
}

type decomposer struct {
	g   *cfg.Graph
	log *slog.Logger

	version int
	dom     *dom.Tree
	pdom    *dom.Tree
}

// refresh recomputes both dominator trees if the graph changed since they
// were last computed.
func (d *decomposer) refresh() error {
	if d.version == d.g.Version() {
		return nil
	}
	var err error
	if d.dom, err = dom.Dominators(d.g, d.g.Source); err != nil {
		return err
	}
	if d.pdom, err = dom.PostDominators(d.g, d.g.Sink); err != nil {
		return err
	}
	d.version = d.g.Version()
	return nil
}

func (d *decomposer) chain(n *cfg.Node) (*Interval, error) {
	if err := d.refresh(); err != nil {
		return nil, err
	}
	succs := d.g.Successors(n)
	switch len(succs) {
	case 0:
		d.log.Debug("leaf", "node", n.String())
		return &Interval{Root: n, Sink: n, Kind: Leaf, Valid: true}, nil
	case 1:
		iv := &Interval{Root: n, Sink: n, Kind: Sequential, Valid: true}
		if d.dom.StrictlyDominates(n, succs[0]) {
			next, err := d.chain(succs[0])
			if err != nil {
				return nil, err
			}
			iv.Next = next
		}
		return iv, nil
	case 2:
		return d.fork(n, succs)
	}
	return nil, d.unsupported(n, "block %s has %d successors", n, len(succs)).
		WithHelp("multi-way branches are not converted")
}

func (d *decomposer) fork(n *cfg.Node, succs []*cfg.Node) (*Interval, error) {
	ipd, _ := d.pdom.Immediate(n).(*cfg.Node)
	if ipd == nil {
		return nil, diag.Errorf(diag.StageInterval, diag.CodeMalformedGraph,
			"fork %s has no immediate post-dominator", n).At(d.location(n))
	}
	iv := &Interval{
		Root:     n,
		Sink:     n,
		Kind:     Fork,
		IPD:      ipd,
		Branches: succs,
		Children: make(map[int64]*Interval),
	}

	irregular, childInvalid := false, false
	for _, s := range succs {
		if s == ipd {
			continue
		}
		if err := d.refresh(); err != nil {
			return nil, err
		}
		if !d.dom.StrictlyDominates(n, s) {
			irregular = true
			continue
		}
		child, err := d.chain(s)
		if err != nil {
			return nil, err
		}
		iv.Children[s.ID()] = child
		iv.ChildOrder = append(iv.ChildOrder, s.ID())
		switch {
		case !child.ChainValid():
			irregular, childInvalid = true, true
		case d.exit(child.Last()) != ipd:
			irregular = true
		}
	}

	if irregular {
		return d.special(iv, childInvalid)
	}

	region := map[int64]bool{n.ID(): true}
	for _, id := range iv.ChildOrder {
		for _, m := range iv.Children[id].Nodes() {
			region[m.ID()] = true
		}
	}
	iv.Join = d.g.InsertJoin(ipd, d.within(d.g.Predecessors(ipd), region))
	iv.Sink = iv.Join
	iv.Valid = true
	d.log.Debug("fork", "node", n.String(), "ipd", ipd.String(), "join", iv.Join.String())
	return d.continueAt(iv)
}

// special handles a fork whose branches do not reconverge at the IPD
// through its own children. If every node between the root and the IPD is
// dominated by the root, the span is merged as one region; otherwise the
// fork is left invalid for its enclosing fork.
func (d *decomposer) special(iv *Interval, childInvalid bool) (*Interval, error) {
	n, ipd := iv.Root, iv.IPD
	if err := d.refresh(); err != nil {
		return nil, err
	}
	span := d.span(n, ipd)
	for _, s := range span {
		if d.dom.StrictlyDominates(n, s) {
			continue
		}
		if childInvalid {
			return nil, d.unsupported(n, "nested irregular region at %s is entered from outside at %s", n, s).
				WithNote("dominance frontier of " + n.String() + ": " + d.frontier(n)).
				WithHelp("restructure the branches so each region has a single entry")
		}
		d.log.Debug("deferring irregular fork", "node", n.String(), "entry", s.String())
		iv.Children = nil
		iv.ChildOrder = nil
		return iv, nil
	}

	inSpan := map[int64]bool{n.ID(): true}
	for _, s := range span {
		inSpan[s.ID()] = true
	}
	for _, s := range span {
		preds := d.g.Predecessors(s)
		if len(preds) > 1 && s.Kind != cfg.KindJoin {
			j := d.g.InsertJoin(s, preds)
			inSpan[j.ID()] = true
		}
	}
	iv.Join = d.g.InsertJoin(ipd, d.within(d.g.Predecessors(ipd), inSpan))
	iv.Sink = iv.Join
	iv.Special = true
	iv.Valid = true
	iv.Children = nil
	iv.ChildOrder = nil
	iv.SpecialNodes = d.span(n, iv.Join)
	d.log.Debug("special fork", "node", n.String(), "ipd", ipd.String(), "span", len(iv.SpecialNodes))
	return d.continueAt(iv)
}

// continueAt extends a closed fork's chain at its IPD when the fork root
// dominates it.
func (d *decomposer) continueAt(iv *Interval) (*Interval, error) {
	if err := d.refresh(); err != nil {
		return nil, err
	}
	if !d.dom.StrictlyDominates(iv.Root, iv.IPD) {
		return iv, nil
	}
	next, err := d.chain(iv.IPD)
	if err != nil {
		return nil, err
	}
	iv.Next = next
	return iv, nil
}

// exit returns the node control reaches after leaving last, or nil for a
// leaf or an unclosed fork.
func (d *decomposer) exit(last *Interval) *cfg.Node {
	switch {
	case last.Kind == Leaf, last.Kind == Fork && last.Join == nil:
		return nil
	}
	succs := d.g.Successors(last.Sink)
	if len(succs) != 1 {
		return nil
	}
	return succs[0]
}

// span returns the nodes reachable from n without passing stop, excluding
// both, in topological order.
func (d *decomposer) span(n, stop *cfg.Node) []*cfg.Node {
	seen := map[int64]bool{n.ID(): true, stop.ID(): true}
	worklist := []*cfg.Node{n}
	for len(worklist) > 0 {
		m := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		for _, s := range d.g.Successors(m) {
			if !seen[s.ID()] {
				seen[s.ID()] = true
				worklist = append(worklist, s)
			}
		}
	}
	var nodes []*cfg.Node
	for _, m := range d.g.Topological() {
		if m != n && m != stop && seen[m.ID()] {
			nodes = append(nodes, m)
		}
	}
	return nodes
}

func (d *decomposer) within(nodes []*cfg.Node, set map[int64]bool) []*cfg.Node {
	var out []*cfg.Node
	for _, m := range nodes {
		if set[m.ID()] {
			out = append(out, m)
		}
	}
	return out
}

func (d *decomposer) frontier(n *cfg.Node) string {
	var names []string
	for _, m := range d.dom.Frontier(n) {
		names = append(names, d.g.Label(m))
	}
	if len(names) == 0 {
		return "empty"
	}
	return strings.Join(names, ", ")
}

func (d *decomposer) unsupported(n *cfg.Node, format string, args ...interface{}) *diag.Error {
	return diag.Errorf(diag.StageInterval, diag.CodeUnsupportedConstruct, format, args...).At(d.location(n))
}

func (d *decomposer) location(n *cfg.Node) diag.Span {
	span := diag.Span{Procedure: d.g.Function().Name}
	if n.Block != nil {
		span.Block = n.Block.Label
	}
	return span
}
