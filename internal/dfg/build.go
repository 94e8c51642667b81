package dfg

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/malphas-lang/ifconv/internal/cfg"
	"github.com/malphas-lang/ifconv/internal/config"
	"github.com/malphas-lang/ifconv/internal/diag"
	"github.com/malphas-lang/ifconv/internal/interval"
	"github.com/malphas-lang/ifconv/internal/mir"
)

// Build converts the interval chain head of the CFG g of fn into a
// dataflow graph. g must be the graph head was decomposed from.
func Build(fn *mir.Function, g *cfg.Graph, head *interval.Interval, conf config.Config) (*Graph, error) {
	b := &builder{
		fn:    fn,
		cfg:   g,
		out:   newGraph(fn.Name),
		names: mir.VarNames(fn),
		log:   conf.Logger(),
	}

	top := NewValueMap()
	for _, p := range fn.Params {
		b.liveIn(top, mir.LocalVar(p))
	}
	if err := b.chain(head, top); err != nil {
		return nil, diag.InProcedure(err, fn.Name)
	}
	b.outputs(top)
	b.log.Debug("dataflow graph built", "procedure", fn.Name, "summary", b.out.Summary())
	return b.out, nil
}

type builder struct {
	fn    *mir.Function
	cfg   *cfg.Graph
	out   *Graph
	names mir.Names
	log   *slog.Logger

	// state of the block being walked
	scope *ValueMap
	block *cfg.Node
	cond  *Node
	err   error
}

// chain builds the intervals of a chain. The first interval is built
// straight into scope; each following one is built in its own fragment and
// merged serially.
func (b *builder) chain(head *interval.Interval, scope *ValueMap) error {
	if err := b.interval(head, scope); err != nil {
		return err
	}
	for iv := head.Next; iv != nil; iv = iv.Next {
		frag := NewValueMap()
		if err := b.interval(iv, frag); err != nil {
			return err
		}
		b.serialMerge(scope, frag)
	}
	return nil
}

func (b *builder) interval(iv *interval.Interval, scope *ValueMap) error {
	if !iv.Valid {
		return diag.Errorf(diag.StageDataflow, diag.CodeUnsupportedConstruct,
			"interval at %s was not closed", iv.Root).At(b.location(iv.Root))
	}
	cond, err := b.walk(iv.Root, scope)
	if err != nil {
		return err
	}
	if iv.Kind != interval.Fork {
		return nil
	}
	if cond == nil {
		return diag.Errorf(diag.StageDataflow, diag.CodeMalformedGraph,
			"fork %s does not end in a branch", iv.Root).At(b.location(iv.Root))
	}
	if iv.Special {
		return b.gatedMerge(iv, scope, cond)
	}
	return b.forkMerge(iv, scope, cond)
}

// walk visits the statements and terminator of n's block in scope and
// returns the branch condition node, if any.
func (b *builder) walk(n *cfg.Node, scope *ValueMap) (*Node, error) {
	if n.Block == nil {
		return nil, nil
	}
	b.scope, b.block, b.cond, b.err = scope, n, nil, nil
	mir.WalkBlock(n.Block, b)
	return b.cond, b.err
}

func (b *builder) VisitAssign(a *mir.Assign) {
	v := a.Dest.Var()
	value := b.operand(a.RHS)
	def := b.node(&Node{Kind: KindDef, Var: v, Name: b.names.Name(v)})
	b.out.connect(value, def, PortValue)
	if f, ok := a.Dest.(*mir.FieldRef); ok && !f.Static {
		b.out.connect(b.read(mir.LocalVar(f.Base)), def, PortBase)
	}
	b.scope.Define(v, def)
}

func (b *builder) VisitInvoke(i *mir.Invoke) {
	call := b.node(&Node{Kind: KindInvoke, Op: i.Func})
	for pos, arg := range i.Args {
		b.out.connect(b.operand(arg), call, strconv.Itoa(pos))
	}
}

func (b *builder) VisitBranch(br *mir.Branch) {
	if br.Condition == nil {
		b.fail(diag.Errorf(diag.StageDataflow, diag.CodeMalformedGraph, "branch without condition"))
		return
	}
	b.cond = b.operand(br.Condition)
}

func (b *builder) VisitGoto(*mir.Goto) {}

func (b *builder) VisitReturn(r *mir.Return) {
	if r.Value == nil {
		return
	}
	value := b.operand(r.Value)
	ret := b.node(&Node{Kind: KindReturn, Var: mir.ReturnVar, Name: "return"})
	b.out.connect(value, ret, PortValue)
	b.scope.Define(mir.ReturnVar, ret)
}

// operand returns the node producing op in the current scope.
func (b *builder) operand(op mir.Operand) *Node {
	switch o := op.(type) {
	case *mir.LocalRef:
		return b.read(o.Var())
	case *mir.FieldRef:
		return b.read(o.Var())
	case *mir.Literal:
		return b.node(&Node{Kind: KindConst, Value: o.Value})
	case *mir.Op:
		return b.apply(o.Name, o.Args...)
	case *mir.Compare:
		return b.apply(o.Op.String(), o.X, o.Y)
	case *mir.Compound:
		return b.apply(o.Op.String(), o.X, o.Y)
	case *mir.Not:
		return b.apply("!", o.X)
	}
	b.fail(diag.Errorf(diag.StageDataflow, diag.CodeUnsupportedConstruct, "unsupported operand %T", op))
	return b.node(&Node{Kind: KindConst})
}

func (b *builder) apply(name string, args ...mir.Operand) *Node {
	inputs := make([]*Node, len(args))
	for i, arg := range args {
		inputs[i] = b.operand(arg)
	}
	return b.op(name, inputs...)
}

func (b *builder) op(name string, inputs ...*Node) *Node {
	n := b.node(&Node{Kind: KindOp, Op: name})
	for i, in := range inputs {
		b.out.connect(in, n, strconv.Itoa(i))
	}
	return n
}

// read resolves v in the current scope, creating a live-in at the root
// scope when nothing produces it yet.
func (b *builder) read(v mir.Var) *Node {
	if n, ok := b.scope.Lookup(v); ok {
		return n
	}
	return b.liveIn(b.scope, v)
}

func (b *builder) liveIn(scope *ValueMap, v mir.Var) *Node {
	n := b.node(&Node{Kind: KindLiveIn, Var: v, Name: b.names.Name(v)})
	scope.SetLiveIn(v, n)
	return n
}

func (b *builder) node(n *Node) *Node { return b.out.addNode(n) }

func (b *builder) fail(err *diag.Error) {
	if b.err == nil {
		if b.block != nil {
			err = err.At(b.location(b.block))
		}
		b.err = err
	}
}

// outputs wires the procedure's results: the return value, then every
// heap field the procedure writes.
func (b *builder) outputs(top *ValueMap) {
	if ret, ok := top.Local(mir.ReturnVar); ok {
		b.output(mir.ReturnVar, ret)
	}
	for _, v := range top.Defined() {
		if !v.IsHeap() {
			continue
		}
		n, _ := top.Local(v)
		b.output(v, n)
	}
}

func (b *builder) output(v mir.Var, value *Node) {
	out := b.node(&Node{Kind: KindOutput, Var: v, Name: b.varName(v)})
	b.out.connect(value, out, PortValue)
	b.out.outputs = append(b.out.outputs, out)
}

func (b *builder) location(n *cfg.Node) diag.Span {
	span := diag.Span{Procedure: b.fn.Name}
	if n.Block != nil {
		span.Block = n.Block.Label
	} else {
		span.Block = fmt.Sprint(n)
	}
	return span
}
