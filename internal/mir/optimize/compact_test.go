package optimize

import (
	"testing"

	"github.com/malphas-lang/ifconv/internal/mir"
)

var (
	localA = mir.Local{ID: 0, Name: "a"}
	localB = mir.Local{ID: 1, Name: "b"}
	localX = mir.Local{ID: 2, Name: "x"}
)

func ref(l mir.Local) *mir.LocalRef { return &mir.LocalRef{Local: l} }

func lit(v interface{}) *mir.Literal { return &mir.Literal{Value: v} }

func cmp(op mir.CmpOp, l mir.Local, v int64) *mir.Compare {
	return &mir.Compare{Op: op, X: ref(l), Y: lit(v)}
}

func block(label string) *mir.BasicBlock {
	return &mir.BasicBlock{Label: label}
}

// andChain builds the shape emitted for "if (a>0 && b>0) goto L":
//
//	head: if a <= 0 goto skip else next
//	next: if b > 0 goto L else skip
func andChain() (*mir.Function, *mir.BasicBlock, *mir.BasicBlock, *mir.BasicBlock) {
	head, next, target, skip := block("head"), block("next"), block("L"), block("skip")
	head.Terminator = &mir.Branch{Condition: cmp(mir.Le, localA, 0), True: skip, False: next}
	next.Terminator = &mir.Branch{Condition: cmp(mir.Gt, localB, 0), True: target, False: skip}
	target.Terminator = &mir.Goto{Target: skip}
	skip.Terminator = &mir.Return{}
	fn := &mir.Function{
		Name:   "and",
		Params: []mir.Local{localA, localB},
		Entry:  head,
		Blocks: []*mir.BasicBlock{head, next, target, skip},
	}
	return fn, head, target, skip
}

// TestMergeCompoundAnd tests that a chained pair becomes one AND branch
func TestMergeCompoundAnd(t *testing.T) {
	fn, head, target, skip := andChain()

	if n := MergeCompoundConditions(fn); n != 1 {
		t.Fatalf("Expected 1 merge, got %d", n)
	}
	if len(fn.Blocks) != 3 {
		t.Fatalf("Expected 3 blocks after merge, got %d", len(fn.Blocks))
	}

	br, ok := head.Terminator.(*mir.Branch)
	if !ok {
		t.Fatalf("Expected head to end in a branch, got %T", head.Terminator)
	}
	want := &mir.Compound{Op: mir.And, X: cmp(mir.Gt, localA, 0), Y: cmp(mir.Gt, localB, 0)}
	if !mir.EqualOperands(br.Condition, want) {
		t.Errorf("Expected condition %s, got %s", mir.OperandString(want), mir.OperandString(br.Condition))
	}
	if br.True != target || br.False != skip {
		t.Errorf("Expected successors L/skip, got %s/%s", br.True.Label, br.False.Label)
	}
}

// TestMergeCompoundOr tests the shared-target case
func TestMergeCompoundOr(t *testing.T) {
	head, next, target, rest := block("head"), block("next"), block("L"), block("rest")
	head.Terminator = &mir.Branch{Condition: cmp(mir.Gt, localA, 0), True: target, False: next}
	next.Terminator = &mir.Branch{Condition: cmp(mir.Gt, localB, 0), True: target, False: rest}
	target.Terminator = &mir.Return{}
	rest.Terminator = &mir.Return{}
	fn := &mir.Function{Name: "or", Entry: head, Blocks: []*mir.BasicBlock{head, next, target, rest}}

	if n := MergeCompoundConditions(fn); n != 1 {
		t.Fatalf("Expected 1 merge, got %d", n)
	}
	br := head.Terminator.(*mir.Branch)
	want := &mir.Compound{Op: mir.Or, X: cmp(mir.Gt, localA, 0), Y: cmp(mir.Gt, localB, 0)}
	if !mir.EqualOperands(br.Condition, want) {
		t.Errorf("Expected condition %s, got %s", mir.OperandString(want), mir.OperandString(br.Condition))
	}
	if br.True != target || br.False != rest {
		t.Errorf("Expected successors L/rest, got %s/%s", br.True.Label, br.False.Label)
	}
}

// TestMergeCompoundSkipsBlocksWithStatements tests that a fall-through
// block doing work is not folded
func TestMergeCompoundSkipsBlocksWithStatements(t *testing.T) {
	fn, _, _, _ := andChain()
	next := fn.Block("next")
	next.Statements = []mir.Statement{&mir.Assign{Dest: ref(localX), RHS: lit(int64(1))}}

	if n := MergeCompoundConditions(fn); n != 0 {
		t.Errorf("Expected no merge, got %d", n)
	}
	if len(fn.Blocks) != 4 {
		t.Errorf("Expected 4 blocks, got %d", len(fn.Blocks))
	}
}

// TestMergeCompoundChain tests that three chained tests fold to a fixpoint
func TestMergeCompoundChain(t *testing.T) {
	b0, b1, b2, target, rest := block("b0"), block("b1"), block("b2"), block("L"), block("rest")
	b0.Terminator = &mir.Branch{Condition: cmp(mir.Eq, localA, 1), True: target, False: b1}
	b1.Terminator = &mir.Branch{Condition: cmp(mir.Eq, localA, 2), True: target, False: b2}
	b2.Terminator = &mir.Branch{Condition: cmp(mir.Eq, localA, 3), True: target, False: rest}
	target.Terminator = &mir.Return{}
	rest.Terminator = &mir.Return{}
	fn := &mir.Function{Name: "chain", Entry: b0, Blocks: []*mir.BasicBlock{b0, b1, b2, target, rest}}

	if n := MergeCompoundConditions(fn); n != 2 {
		t.Fatalf("Expected 2 merges, got %d", n)
	}
	if n := MergeCompoundConditions(fn); n != 0 {
		t.Errorf("Expected second run to be a no-op, got %d merges", n)
	}
	br := b0.Terminator.(*mir.Branch)
	if br.True != target || br.False != rest {
		t.Errorf("Expected successors L/rest, got %s/%s", br.True.Label, br.False.Label)
	}
	if got := mir.OperandString(br.Condition); got != "(a == 1 || (a == 2 || a == 3))" && got != "((a == 1 || a == 2) || a == 3)" {
		t.Errorf("Unexpected merged condition %s", got)
	}
}

// notDiamond builds the four-block NOT idiom. fall stores fallValue and
// target stores the opposite.
func notDiamond(fallValue bool) (*mir.Function, *mir.BasicBlock, *mir.BasicBlock) {
	p, target, fall, join := block("p"), block("t"), block("f"), block("j")
	p.Terminator = &mir.Branch{Condition: cmp(mir.Gt, localA, 0), True: target, False: fall}
	fall.Statements = []mir.Statement{&mir.Assign{Dest: ref(localX), RHS: lit(fallValue)}}
	fall.Terminator = &mir.Goto{Target: join}
	target.Statements = []mir.Statement{&mir.Assign{Dest: ref(localX), RHS: lit(!fallValue)}}
	target.Terminator = &mir.Goto{Target: join}
	join.Terminator = &mir.Return{Value: ref(localX)}
	fn := &mir.Function{
		Name:   "not",
		Params: []mir.Local{localA},
		Locals: []mir.Local{localX},
		Entry:  p,
		Blocks: []*mir.BasicBlock{p, target, fall, join},
	}
	return fn, p, join
}

// TestCollapseNotPatterns tests both polarities of the NOT idiom
func TestCollapseNotPatterns(t *testing.T) {
	tests := []struct {
		name      string
		fallValue bool
		want      mir.Operand
	}{
		{"negated", true, &mir.Not{X: cmp(mir.Gt, localA, 0)}},
		{"direct", false, cmp(mir.Gt, localA, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, p, join := notDiamond(tt.fallValue)
			if n := CollapseNotPatterns(fn); n != 1 {
				t.Fatalf("Expected 1 collapse, got %d", n)
			}
			if len(fn.Blocks) != 2 {
				t.Fatalf("Expected 2 blocks, got %d", len(fn.Blocks))
			}
			jump, ok := p.Terminator.(*mir.Goto)
			if !ok || jump.Target != join {
				t.Fatalf("Expected p to jump to j, got %s", mir.StatementString(p.Terminator))
			}
			if len(p.Statements) != 1 {
				t.Fatalf("Expected 1 statement in p, got %d", len(p.Statements))
			}
			assign := p.Statements[0].(*mir.Assign)
			if assign.Dest.Var() != mir.LocalVar(localX) {
				t.Errorf("Expected assignment to x, got %s", mir.StatementString(assign))
			}
			if !mir.EqualOperands(assign.RHS, tt.want) {
				t.Errorf("Expected x = %s, got %s", mir.OperandString(tt.want), mir.StatementString(assign))
			}
		})
	}
}

// TestCollapseNotRequiresSameVariable tests that stores to different
// variables are left alone
func TestCollapseNotRequiresSameVariable(t *testing.T) {
	fn, _, _ := notDiamond(true)
	fn.Block("t").Statements[0] = &mir.Assign{Dest: ref(localB), RHS: lit(false)}

	if n := CollapseNotPatterns(fn); n != 0 {
		t.Errorf("Expected no collapse, got %d", n)
	}
}

// TestCollapseNotAcceptsIntegerBooleans tests 0/1 constants as booleans
func TestCollapseNotAcceptsIntegerBooleans(t *testing.T) {
	fn, p, _ := notDiamond(true)
	fn.Block("f").Statements[0] = &mir.Assign{Dest: ref(localX), RHS: lit(int64(1))}
	fn.Block("t").Statements[0] = &mir.Assign{Dest: ref(localX), RHS: lit(int64(0))}

	if n := CollapseNotPatterns(fn); n != 1 {
		t.Fatalf("Expected 1 collapse, got %d", n)
	}
	assign := p.Statements[0].(*mir.Assign)
	if _, ok := assign.RHS.(*mir.Not); !ok {
		t.Errorf("Expected a negated condition, got %s", mir.StatementString(assign))
	}
}

// TestCompactRoundTrip tests that compaction copies its input and that a
// second pass changes nothing
func TestCompactRoundTrip(t *testing.T) {
	fn, _, _, _ := andChain()
	before := fn.PrettyPrint()

	out, stats := Compact(fn)
	if stats.Compounds != 1 {
		t.Errorf("Expected 1 compound merge, got %d", stats.Compounds)
	}
	if fn.PrettyPrint() != before {
		t.Errorf("Compact modified its input:\n%s", fn.PrettyPrint())
	}

	again, stats := Compact(out)
	if stats.Changed() {
		t.Errorf("Expected second compaction to be a no-op, got %+v", stats)
	}
	if again.PrettyPrint() != out.PrettyPrint() {
		t.Errorf("Expected identical output, got:\n%s\nvs\n%s", again.PrettyPrint(), out.PrettyPrint())
	}
}

// TestCompactNotAfterCompound tests that a NOT idiom over a chained test
// collapses into a single negated compound assignment
func TestCompactNotAfterCompound(t *testing.T) {
	head, next, target, fall, join := block("head"), block("next"), block("t"), block("f"), block("j")
	head.Terminator = &mir.Branch{Condition: cmp(mir.Gt, localA, 0), True: target, False: next}
	next.Terminator = &mir.Branch{Condition: cmp(mir.Gt, localB, 0), True: target, False: fall}
	fall.Statements = []mir.Statement{&mir.Assign{Dest: ref(localX), RHS: lit(true)}}
	fall.Terminator = &mir.Goto{Target: join}
	target.Statements = []mir.Statement{&mir.Assign{Dest: ref(localX), RHS: lit(false)}}
	target.Terminator = &mir.Goto{Target: join}
	join.Terminator = &mir.Return{Value: ref(localX)}
	fn := &mir.Function{Name: "nor", Entry: head, Blocks: []*mir.BasicBlock{head, next, target, fall, join}}

	out, stats := Compact(fn)
	if stats.Compounds != 1 || stats.Nots != 1 {
		t.Fatalf("Expected 1 compound and 1 not, got %+v", stats)
	}
	if len(out.Blocks) != 2 {
		t.Fatalf("Expected 2 blocks, got %d:\n%s", len(out.Blocks), out.PrettyPrint())
	}
	assign := out.Entry.Statements[0].(*mir.Assign)
	if got, want := mir.OperandString(assign.RHS), "!((a > 0 || b > 0))"; got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

// TestFoldConstantBranches tests that literal comparisons become gotos
func TestFoldConstantBranches(t *testing.T) {
	tests := []struct {
		cond mir.Condition
		want string
	}{
		{&mir.Compare{Op: mir.Lt, X: lit(int64(1)), Y: lit(int64(2))}, "t"},
		{&mir.Compare{Op: mir.Eq, X: lit("a"), Y: lit("b")}, "f"},
		{&mir.Not{X: &mir.Compare{Op: mir.Eq, X: lit(true), Y: lit(true)}}, "f"},
		{&mir.Compound{Op: mir.Or, X: cmp(mir.Gt, localA, 0), Y: &mir.Compare{Op: mir.Ge, X: lit(2.5), Y: lit(int64(2))}}, "t"},
		{&mir.Compound{Op: mir.And, X: cmp(mir.Gt, localA, 0), Y: &mir.Compare{Op: mir.Ne, X: lit(int64(0)), Y: lit(int64(0))}}, "f"},
	}

	for _, tt := range tests {
		p, target, fall := block("p"), block("t"), block("f")
		p.Terminator = &mir.Branch{Condition: tt.cond, True: target, False: fall}
		target.Terminator = &mir.Return{}
		fall.Terminator = &mir.Return{}
		fn := &mir.Function{Name: "fold", Entry: p, Blocks: []*mir.BasicBlock{p, target, fall}}

		if n := FoldConstantBranches(fn); n != 1 {
			t.Errorf("%s: expected 1 fold, got %d", mir.OperandString(tt.cond), n)
			continue
		}
		jump := p.Terminator.(*mir.Goto)
		if jump.Target.Label != tt.want {
			t.Errorf("%s: expected goto %s, got goto %s", mir.OperandString(tt.cond), tt.want, jump.Target.Label)
		}
	}
}

// TestFoldLeavesUnknownConditions tests that run-time conditions survive
func TestFoldLeavesUnknownConditions(t *testing.T) {
	fn, _, _, _ := andChain()
	if n := FoldConstantBranches(fn); n != 0 {
		t.Errorf("Expected no folds, got %d", n)
	}
}

// TestEliminateUnreachableBlocks tests that unreachable blocks are removed
func TestEliminateUnreachableBlocks(t *testing.T) {
	// entry -> bb1 -> exit
	// unreachable (not connected to entry)
	entry, bb1, exit, unreachable := block("entry"), block("bb1"), block("exit"), block("unreachable")
	entry.Terminator = &mir.Goto{Target: bb1}
	bb1.Terminator = &mir.Goto{Target: exit}
	exit.Terminator = &mir.Return{}
	unreachable.Terminator = &mir.Goto{Target: exit}

	fn := &mir.Function{Name: "test", Entry: entry, Blocks: []*mir.BasicBlock{entry, bb1, exit, unreachable}}

	optimizedFn, stats := Compact(fn)
	if stats.Removed != 1 {
		t.Errorf("Expected 1 removed block, got %d", stats.Removed)
	}
	if len(optimizedFn.Blocks) != 3 {
		t.Errorf("Expected 3 blocks after DCE, got %d", len(optimizedFn.Blocks))
	}
	for _, block := range optimizedFn.Blocks {
		if block.Label == "unreachable" {
			t.Errorf("Unreachable block should have been removed")
		}
	}
	if len(fn.Blocks) != 4 {
		t.Errorf("Expected the input procedure to be untouched")
	}
}

// TestEliminateUnusedLocals tests that unused locals are removed
func TestEliminateUnusedLocals(t *testing.T) {
	usedLocal := mir.Local{ID: 1, Name: "used"}
	unusedLocal := mir.Local{ID: 2, Name: "unused"}
	param := mir.Local{ID: 0, Name: "p"}

	entry := block("entry")
	entry.Statements = []mir.Statement{&mir.Assign{Dest: ref(usedLocal), RHS: lit(int64(42))}}
	entry.Terminator = &mir.Return{Value: ref(usedLocal)}

	fn := &mir.Function{
		Name:   "test",
		Params: []mir.Local{param},
		Entry:  entry,
		Blocks: []*mir.BasicBlock{entry},
		Locals: []mir.Local{usedLocal, unusedLocal},
	}
	EliminateUnusedLocals(fn)

	if len(fn.Locals) != 1 || fn.Locals[0].ID != usedLocal.ID {
		t.Errorf("Expected only 'used' to survive, got %v", fn.Locals)
	}
	if len(fn.Params) != 1 {
		t.Errorf("Expected parameters to be kept")
	}
}
