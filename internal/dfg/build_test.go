package dfg

import (
	"errors"
	"strings"
	"testing"

	"github.com/malphas-lang/ifconv/internal/cfg"
	"github.com/malphas-lang/ifconv/internal/config"
	"github.com/malphas-lang/ifconv/internal/diag"
	"github.com/malphas-lang/ifconv/internal/interval"
	"github.com/malphas-lang/ifconv/internal/mir"
	"github.com/malphas-lang/ifconv/internal/mir/mirtest"
)

func convert(t *testing.T, b *mirtest.Builder) *Graph {
	t.Helper()
	fn := b.Func()
	g, err := cfg.Build(fn)
	if err != nil {
		t.Fatalf("cfg.Build failed: %v", err)
	}
	head, err := interval.Decompose(g, config.Default())
	if err != nil {
		t.Fatalf("Decompose failed: %v", err)
	}
	out, err := Build(fn, g, head, config.Default())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return out
}

func gt(b *mirtest.Builder, name string) mir.Condition {
	return mirtest.Cmp(mir.Gt, b.Ref(name), mirtest.Lit(int64(0)))
}

// constOf returns the literal flowing into the definition def.
func constOf(t *testing.T, g *Graph, def *Node) interface{} {
	t.Helper()
	if def == nil || def.Kind != KindDef {
		t.Fatalf("Expected a definition, got %v", def)
	}
	value := g.Input(def, PortValue)
	if value == nil || value.Kind != KindConst {
		t.Fatalf("Expected a constant feeding %s, got %v", def, value)
	}
	return value.Value
}

// returned returns the node producing the procedure's return value.
func returned(t *testing.T, g *Graph) *Node {
	t.Helper()
	out := g.Output(mir.ReturnVar)
	if out == nil {
		t.Fatalf("Expected a return output")
	}
	ret := g.Input(out, PortValue)
	if ret == nil || ret.Kind != KindReturn {
		t.Fatalf("Expected the output to be fed by a return node, got %v", ret)
	}
	return g.Input(ret, PortValue)
}

// TestBuildDiamond tests that if (a>0) x=1; else x=2; yields one
// multiplexer keyed on a>0
func TestBuildDiamond(t *testing.T) {
	b := mirtest.New("diamond", "a")
	b.Branch("entry", gt(b, "a"), "then", "else").
		Set("then", "x", mirtest.Lit(int64(1))).Goto("then", "exit").
		Set("else", "x", mirtest.Lit(int64(2))).Goto("else", "exit").
		Return("exit", b.Ref("x"))
	g := convert(t, b)

	muxes := g.Muxes()
	if len(muxes) != 1 {
		t.Fatalf("Expected 1 mux, got %d", len(muxes))
	}
	mux := muxes[0]
	if got := constOf(t, g, g.Input(mux, PortTrue)); got != int64(1) {
		t.Errorf("Expected true input 1, got %v", got)
	}
	if got := constOf(t, g, g.Input(mux, PortFalse)); got != int64(2) {
		t.Errorf("Expected false input 2, got %v", got)
	}

	cond := g.Input(mux, PortCondition)
	if cond == nil || cond.Kind != KindOp || cond.Op != ">" {
		t.Fatalf("Expected condition a > 0, got %v", cond)
	}
	if a := g.Input(cond, "0"); a == nil || a.Kind != KindLiveIn || a.Name != "a" {
		t.Errorf("Expected the condition to read live-in a, got %v", a)
	}
	if len(g.Inputs(mux)) != 3 {
		t.Errorf("Expected exactly three mux inputs, got %d", len(g.Inputs(mux)))
	}

	if got := returned(t, g); got != mux {
		t.Errorf("Expected the mux to be returned, got %v", got)
	}
	if n := len(g.LiveIns()); n != 1 {
		t.Fatalf("Expected a single live-in, got %d", n)
	}
	uses := g.Uses(g.LiveIns()[0])
	if len(uses) != 1 || uses[0].T.Op != ">" || uses[0].Label != "0" {
		t.Errorf("Expected a to feed only the comparison, got %v", uses)
	}
}

// TestBuildOneSided tests a variable defined on one arm only against its
// value before the fork
func TestBuildOneSided(t *testing.T) {
	b := mirtest.New("onesided", "a")
	b.Set("entry", "x", mirtest.Lit(int64(0))).
		Branch("entry", gt(b, "a"), "then", "exit").
		Set("then", "x", mirtest.Lit(int64(1))).Goto("then", "exit").
		Return("exit", b.Ref("x"))
	g := convert(t, b)

	mux := returned(t, g)
	if mux.Kind != KindMux {
		t.Fatalf("Expected a mux to be returned, got %v", mux)
	}
	if got := constOf(t, g, g.Input(mux, PortTrue)); got != int64(1) {
		t.Errorf("Expected the branch definition on the true side, got %v", got)
	}
	if got := constOf(t, g, g.Input(mux, PortFalse)); got != int64(0) {
		t.Errorf("Expected the prior definition on the false side, got %v", got)
	}
}

// TestBuildHeapField tests a field store on one arm against the field's
// incoming value
func TestBuildHeapField(t *testing.T) {
	b := mirtest.New("store", "a", "o")
	b.Branch("entry", gt(b, "a"), "then", "exit").
		Assign("then", b.Field("o", "f"), mirtest.Lit(int64(1))).Goto("then", "exit").
		Return("exit", nil)
	g := convert(t, b)

	field := mir.FieldVar(b.Local("o"), "f")
	out := g.Output(field)
	if out == nil {
		t.Fatalf("Expected an output for o.f, got %v", g.Outputs())
	}
	if g.Output(mir.ReturnVar) != nil {
		t.Errorf("Did not expect a return output for a void procedure")
	}
	mux := g.Input(out, PortValue)
	if mux == nil || mux.Kind != KindMux || mux.Name != "o.f" {
		t.Fatalf("Expected a mux for o.f, got %v", mux)
	}
	def := g.Input(mux, PortTrue)
	if constOf(t, g, def) != int64(1) {
		t.Errorf("Expected the store on the true side")
	}
	if base := g.Input(def, PortBase); base == nil || base.Kind != KindLiveIn || base.Name != "o" {
		t.Errorf("Expected the store to depend on o, got %v", base)
	}
	if in := g.Input(mux, PortFalse); in == nil || in.Kind != KindLiveIn || in.Var != field {
		t.Errorf("Expected the incoming o.f on the false side, got %v", in)
	}
}

// TestBuildSerialMerge tests that live-ins of later intervals are
// redirected to earlier producers
func TestBuildSerialMerge(t *testing.T) {
	b := mirtest.New("twice", "a", "b")
	b.Set("entry", "x", mirtest.Lit(int64(0))).
		Branch("entry", gt(b, "a"), "t1", "mid").
		Set("t1", "x", mirtest.Lit(int64(1))).Goto("t1", "mid").
		Branch("mid", gt(b, "b"), "t2", "exit").
		Set("t2", "x", &mir.Op{Name: "add", Args: []mir.Operand{b.Ref("x"), mirtest.Lit(int64(1))}}).
		Goto("t2", "exit").
		Return("exit", b.Ref("x"))
	g := convert(t, b)

	var names []string
	for _, n := range g.LiveIns() {
		names = append(names, n.Name)
	}
	if got := strings.Join(names, " "); got != "a b" {
		t.Errorf("Expected live-ins a b, got %s", got)
	}

	second := returned(t, g)
	if second.Kind != KindMux {
		t.Fatalf("Expected a mux to be returned, got %v", second)
	}
	first := g.Input(second, PortFalse)
	if first == nil || first.Kind != KindMux {
		t.Fatalf("Expected the first mux on the false side of the second, got %v", first)
	}
	if got := constOf(t, g, g.Input(first, PortTrue)); got != int64(1) {
		t.Errorf("Expected x = 1 on the first mux, got %v", got)
	}
	add := g.Input(g.Input(second, PortTrue), PortValue)
	if add == nil || add.Op != "add" || g.Input(add, "0") != first {
		t.Errorf("Expected add to read the first mux, got %v", add)
	}
	if c := g.Input(second, PortCondition); g.Input(c, "0").Name != "b" {
		t.Errorf("Expected the second mux to be keyed on b")
	}
}

// TestBuildMultipleReturns tests return values merged at a synthesized sink
func TestBuildMultipleReturns(t *testing.T) {
	b := mirtest.New("exits", "a", "b")
	b.Branch("entry", gt(b, "a"), "r1", "next").
		Branch("next", gt(b, "b"), "r2", "r3").
		Return("r1", mirtest.Lit(int64(1))).
		Return("r2", mirtest.Lit(int64(2))).
		Return("r3", mirtest.Lit(int64(3)))
	g := convert(t, b)

	if n := len(g.Muxes()); n != 2 {
		t.Fatalf("Expected 2 muxes, got %d", n)
	}
	outer := g.Input(g.Output(mir.ReturnVar), PortValue)
	if outer == nil || outer.Kind != KindMux {
		t.Fatalf("Expected a mux to be returned, got %v", outer)
	}
	r1 := g.Input(outer, PortTrue)
	if r1.Kind != KindReturn || g.Input(r1, PortValue).Value != int64(1) {
		t.Errorf("Expected return 1 on the true side, got %v", r1)
	}
	inner := g.Input(outer, PortFalse)
	if inner.Kind != KindMux {
		t.Fatalf("Expected the nested mux on the false side, got %v", inner)
	}
	if r3 := g.Input(inner, PortFalse); g.Input(r3, PortValue).Value != int64(3) {
		t.Errorf("Expected return 3 on the inner false side")
	}
}

// TestBuildSpecialRegion tests the gated merge of an irregular region
func TestBuildSpecialRegion(t *testing.T) {
	b := mirtest.New("special", "p", "q")
	b.Branch("entry", gt(b, "p"), "a", "b").
		Branch("a", gt(b, "q"), "c", "d").
		Set("b", "y", mirtest.Lit(int64(1))).Goto("b", "d").
		Set("c", "y", mirtest.Lit(int64(2))).Goto("c", "x").
		Set("d", "y", mirtest.Lit(int64(3))).Goto("d", "x").
		Return("x", b.Ref("y"))
	g := convert(t, b)

	mux := returned(t, g)
	if mux.Kind != KindMux {
		t.Fatalf("Expected a mux to be returned, got %v", mux)
	}
	if got := constOf(t, g, g.Input(mux, PortTrue)); got != int64(2) {
		t.Errorf("Expected y = 2 when c is taken, got %v", got)
	}
	if got := constOf(t, g, g.Input(mux, PortFalse)); got != int64(3) {
		t.Errorf("Expected y = 3 otherwise, got %v", got)
	}
	path := g.Input(mux, PortCondition)
	if path == nil || path.Op != "&&" {
		t.Fatalf("Expected the activation p > 0 && q > 0, got %v", path)
	}
	if c := g.Input(path, "0"); c.Op != ">" || g.Input(c, "0").Name != "p" {
		t.Errorf("Expected the activation to start with p > 0")
	}
	if n := len(g.Muxes()); n != 2 {
		t.Errorf("Expected 2 muxes, got %d", n)
	}
}

// TestBuildRejectsOpenInterval tests that an unclosed interval is refused
func TestBuildRejectsOpenInterval(t *testing.T) {
	b := mirtest.New("open")
	b.Return("entry", nil)
	fn := b.Func()
	g, err := cfg.Build(fn)
	if err != nil {
		t.Fatal(err)
	}

	_, err = Build(fn, g, &interval.Interval{Root: g.Source, Sink: g.Source, Kind: interval.Fork}, config.Default())
	if !errors.Is(err, diag.ErrUnsupported) {
		t.Errorf("Expected an unsupported construct error, got %v", err)
	}
}

// TestBuildInvoke tests opaque calls
func TestBuildInvoke(t *testing.T) {
	b := mirtest.New("calls", "a")
	b.Block("entry").Statements = append(b.Block("entry").Statements,
		&mir.Invoke{Func: "log", Args: []mir.Operand{b.Ref("a"), b.Ref("a")}})
	b.Return("entry", nil)
	g := convert(t, b)

	var call *Node
	for _, n := range g.Nodes() {
		if n.Kind == KindInvoke {
			call = n
		}
	}
	if call == nil || call.Op != "log" {
		t.Fatalf("Expected an invoke node, got %v", g.Nodes())
	}
	inputs := g.Inputs(call)
	if len(inputs) != 2 || inputs[0].F != inputs[1].F {
		t.Errorf("Expected both arguments to read the same live-in, got %v", inputs)
	}
	if inputs[0].Label != "0" || inputs[1].Label != "1" {
		t.Errorf("Expected positional labels, got %q %q", inputs[0].Label, inputs[1].Label)
	}
}

// TestMarshalDOT tests the Graphviz rendering
func TestMarshalDOT(t *testing.T) {
	b := mirtest.New("diamond", "a")
	b.Branch("entry", gt(b, "a"), "then", "else").
		Set("then", "x", mirtest.Lit(int64(1))).Goto("then", "exit").
		Set("else", "x", mirtest.Lit(int64(2))).Goto("else", "exit").
		Return("exit", b.Ref("x"))
	g := convert(t, b)

	out, err := g.MarshalDOT("")
	if err != nil {
		t.Fatalf("MarshalDOT failed: %v", err)
	}
	text := string(out)
	for _, want := range []string{"digraph diamond", `label="mux x"`, "label=condition", "shape=invhouse"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected DOT output to contain %q:\n%s", want, text)
		}
	}
}
