package mir

// Module represents a MIR module (collection of procedures)
type Module struct {
	Functions []*Function
}

// Function represents a MIR procedure with a control-flow graph
type Function struct {
	Name   string
	Params []Local
	Locals []Local
	Blocks []*BasicBlock
	Entry  *BasicBlock
}

// Local represents a local variable slot or parameter
type Local struct {
	ID   int
	Name string
}

// BasicBlock represents a basic block in the CFG
type BasicBlock struct {
	Label      string
	Statements []Statement
	Terminator Terminator
}

// Statement represents a non-terminating operation
type Statement interface {
	stmtNode()
	Accept(v Visitor)
}

// Terminator represents control flow (branch, goto, return)
type Terminator interface {
	terminatorNode()
	Accept(v Visitor)
}

// Operand represents a value used in an operation
type Operand interface {
	operandNode()
}

// Place is an operand that can be assigned to.
type Place interface {
	Operand
	placeNode()
	Var() Var
}

// LocalRef represents a reference to a local variable
type LocalRef struct {
	Local Local
}

func (*LocalRef) operandNode() {}
func (*LocalRef) placeNode()   {}
func (l *LocalRef) Var() Var   { return LocalVar(l.Local) }

// FieldRef represents a heap field of the object held in Base.
// Static fields ignore Base.
type FieldRef struct {
	Base   Local
	Field  string
	Static bool
}

func (*FieldRef) operandNode() {}
func (*FieldRef) placeNode()   {}
func (f *FieldRef) Var() Var {
	if f.Static {
		return StaticVar(f.Field)
	}
	return FieldVar(f.Base, f.Field)
}

// Literal represents a constant value
type Literal struct {
	Value interface{} // int64, float64, bool, string, nil
}

func (*Literal) operandNode() {}

// Op is an operation opaque to control-flow conversion (arithmetic,
// array access, calls with a result, ...).
type Op struct {
	Name string
	Args []Operand
}

func (*Op) operandNode() {}

// Assign statement: dest = rhs
type Assign struct {
	Dest Place
	RHS  Operand
}

func (*Assign) stmtNode()          {}
func (a *Assign) Accept(v Visitor) { v.VisitAssign(a) }

// Invoke is an opaque side-effecting operation whose result is unused.
type Invoke struct {
	Func string
	Args []Operand
}

func (*Invoke) stmtNode()          {}
func (i *Invoke) Accept(v Visitor) { v.VisitInvoke(i) }

// Return terminator
type Return struct {
	Value Operand // nil for void return
}

func (*Return) terminatorNode()    {}
func (r *Return) Accept(v Visitor) { v.VisitReturn(r) }

// Goto terminator (unconditional jump)
type Goto struct {
	Target *BasicBlock
}

func (*Goto) terminatorNode()    {}
func (g *Goto) Accept(v Visitor) { v.VisitGoto(g) }

// Branch terminator (conditional jump). True is the jump target taken when
// the condition holds; False is the fall-through successor.
type Branch struct {
	Condition Condition
	True      *BasicBlock
	False     *BasicBlock
}

func (*Branch) terminatorNode()    {}
func (b *Branch) Accept(v Visitor) { v.VisitBranch(b) }

// Successors returns the successor blocks of the given block, jump target
// first for branches.
func Successors(block *BasicBlock) []*BasicBlock {
	if block.Terminator == nil {
		return nil
	}

	switch term := block.Terminator.(type) {
	case *Goto:
		return []*BasicBlock{term.Target}
	case *Branch:
		if term.True == term.False {
			return []*BasicBlock{term.True}
		}
		return []*BasicBlock{term.True, term.False}
	default:
		return nil
	}
}

// Predecessors builds a map from each block of fn to its predecessors, in
// block order.
func Predecessors(fn *Function) map[*BasicBlock][]*BasicBlock {
	preds := make(map[*BasicBlock][]*BasicBlock, len(fn.Blocks))
	for _, block := range fn.Blocks {
		if _, ok := preds[block]; !ok {
			preds[block] = nil
		}
		for _, succ := range Successors(block) {
			preds[succ] = append(preds[succ], block)
		}
	}
	return preds
}

// Block returns the block with the given label, or nil.
func (f *Function) Block(label string) *BasicBlock {
	for _, block := range f.Blocks {
		if block.Label == label {
			return block
		}
	}
	return nil
}

// Clone returns a copy of the function whose blocks, statement slices and
// terminators are fresh. Operands are immutable and shared.
func (f *Function) Clone() *Function {
	blockMap := make(map[*BasicBlock]*BasicBlock, len(f.Blocks))
	clone := &Function{
		Name:   f.Name,
		Params: append([]Local(nil), f.Params...),
		Locals: append([]Local(nil), f.Locals...),
		Blocks: make([]*BasicBlock, 0, len(f.Blocks)),
	}
	for _, block := range f.Blocks {
		nb := &BasicBlock{
			Label:      block.Label,
			Statements: append([]Statement(nil), block.Statements...),
		}
		blockMap[block] = nb
		clone.Blocks = append(clone.Blocks, nb)
	}
	for _, block := range f.Blocks {
		nb := blockMap[block]
		switch term := block.Terminator.(type) {
		case *Goto:
			nb.Terminator = &Goto{Target: blockMap[term.Target]}
		case *Branch:
			nb.Terminator = &Branch{Condition: term.Condition, True: blockMap[term.True], False: blockMap[term.False]}
		case *Return:
			nb.Terminator = &Return{Value: term.Value}
		}
	}
	if f.Entry != nil {
		clone.Entry = blockMap[f.Entry]
	}
	return clone
}
