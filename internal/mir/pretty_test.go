package mir

import (
	"strings"
	"testing"
)

func sampleFunction() *Function {
	x := Local{ID: 2, Name: "x"}
	entry := &BasicBlock{Label: "entry"}
	then := &BasicBlock{Label: "then"}
	els := &BasicBlock{Label: "else"}
	exit := &BasicBlock{Label: "exit"}

	entry.Terminator = &Branch{Condition: compare(Gt, a, 0), True: then, False: els}
	then.Statements = []Statement{&Assign{Dest: &LocalRef{Local: x}, RHS: &Literal{Value: int64(1)}}}
	then.Terminator = &Goto{Target: exit}
	els.Statements = []Statement{
		&Assign{Dest: &FieldRef{Base: b, Field: "n"}, RHS: &Op{Name: "add", Args: []Operand{&LocalRef{Local: a}, &Literal{Value: int64(2)}}}},
		&Invoke{Func: "log", Args: []Operand{&LocalRef{Local: a}}},
	}
	els.Terminator = &Goto{Target: exit}
	exit.Terminator = &Return{Value: &LocalRef{Local: x}}

	return &Function{
		Name:   "sample",
		Params: []Local{a, b},
		Locals: []Local{x},
		Entry:  entry,
		Blocks: []*BasicBlock{entry, then, els, exit},
	}
}

// TestPrettyPrintFunction tests the textual rendering of a procedure
func TestPrettyPrintFunction(t *testing.T) {
	out := sampleFunction().PrettyPrint()
	for _, want := range []string{
		"proc sample(a, b) {",
		"let x",
		"if a > 0 goto then else goto else",
		"x = 1",
		"b.n = add(a, 2)",
		"invoke log(a)",
		"return x",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q:\n%s", want, out)
		}
	}
}

// TestCloneIsDeep tests that rewriting a clone leaves the original alone
func TestCloneIsDeep(t *testing.T) {
	fn := sampleFunction()
	before := fn.PrettyPrint()

	clone := fn.Clone()
	if clone.Entry == fn.Entry || clone.Entry.Label != "entry" {
		t.Fatalf("Expected a fresh entry block")
	}
	br := clone.Entry.Terminator.(*Branch)
	if br.True != clone.Block("then") {
		t.Errorf("Expected cloned branch to target cloned blocks")
	}
	clone.Entry.Terminator = &Goto{Target: clone.Block("exit")}
	clone.Blocks = clone.Blocks[:1]

	if fn.PrettyPrint() != before {
		t.Errorf("Clone shares state with the original")
	}
}

// TestPredecessors tests predecessor collection
func TestPredecessors(t *testing.T) {
	fn := sampleFunction()
	preds := Predecessors(fn)

	if len(preds[fn.Entry]) != 0 {
		t.Errorf("Expected entry to have no predecessors")
	}
	exit := fn.Block("exit")
	if len(preds[exit]) != 2 {
		t.Errorf("Expected exit to have 2 predecessors, got %d", len(preds[exit]))
	}
	succs := Successors(fn.Entry)
	if len(succs) != 2 || succs[0].Label != "then" {
		t.Errorf("Expected the jump target first, got %v", succs)
	}
}

// TestUses tests variable collection in first-occurrence order
func TestUses(t *testing.T) {
	op := &Op{Name: "f", Args: []Operand{
		&FieldRef{Base: b, Field: "n"},
		&LocalRef{Local: a},
		&Compare{Op: Lt, X: &LocalRef{Local: a}, Y: &Literal{Value: int64(0)}},
	}}
	got := Uses(op)
	want := []Var{FieldVar(b, "n"), LocalVar(a)}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected %v at %d, got %v", want[i], i, got[i])
		}
	}
}

type countingVisitor struct {
	assigns, invokes, gotos, branches, returns int
}

func (c *countingVisitor) VisitAssign(*Assign) { c.assigns++ }
func (c *countingVisitor) VisitInvoke(*Invoke) { c.invokes++ }
func (c *countingVisitor) VisitBranch(*Branch) { c.branches++ }
func (c *countingVisitor) VisitGoto(*Goto)     { c.gotos++ }
func (c *countingVisitor) VisitReturn(*Return) { c.returns++ }

// TestWalkBlock tests visitor dispatch over statements and terminators
func TestWalkBlock(t *testing.T) {
	fn := sampleFunction()
	v := &countingVisitor{}
	for _, block := range fn.Blocks {
		WalkBlock(block, v)
	}
	if v.assigns != 2 || v.invokes != 1 || v.gotos != 2 || v.branches != 1 || v.returns != 1 {
		t.Errorf("Unexpected visit counts: %+v", *v)
	}
}

// TestVarNames tests display names for variables
func TestVarNames(t *testing.T) {
	names := VarNames(sampleFunction())
	tests := []struct {
		v    Var
		want string
	}{
		{LocalVar(a), "a"},
		{FieldVar(b, "n"), "b.n"},
		{StaticVar("count"), "static.count"},
		{ReturnVar, "$return"},
		{Var{Kind: VarLocal, Slot: 9}, "_9"},
	}
	for _, tt := range tests {
		if got := names.Name(tt.v); got != tt.want {
			t.Errorf("Name(%v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}
