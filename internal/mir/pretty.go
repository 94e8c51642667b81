package mir

import (
	"fmt"
	"strings"
)

// PrettyPrint returns a human-readable string representation of a MIR module
func (m *Module) PrettyPrint() string {
	var b strings.Builder
	for i, fn := range m.Functions {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(fn.PrettyPrint())
	}
	return b.String()
}

// PrettyPrint returns a human-readable string representation of a function
func (f *Function) PrettyPrint() string {
	var b strings.Builder

	// Procedure signature
	b.WriteString(fmt.Sprintf("proc %s(", f.Name))
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = localString(p)
	}
	b.WriteString(strings.Join(params, ", "))
	b.WriteString(") {\n")

	// Locals
	if len(f.Locals) > 0 {
		b.WriteString("  // Locals:\n")
		for _, local := range f.Locals {
			b.WriteString(fmt.Sprintf("  let %s\n", localString(local)))
		}
		b.WriteString("\n")
	}

	// Basic blocks
	for _, block := range f.Blocks {
		b.WriteString(block.PrettyPrint())
		b.WriteString("\n")
	}

	b.WriteString("}")
	return b.String()
}

// PrettyPrint returns a human-readable string representation of a basic block
func (bb *BasicBlock) PrettyPrint() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("  %s:\n", bb.Label))

	// Statements
	for _, stmt := range bb.Statements {
		b.WriteString("    ")
		b.WriteString(prettyPrintStmt(stmt))
		b.WriteString("\n")
	}

	// Terminator
	if bb.Terminator != nil {
		b.WriteString("    ")
		b.WriteString(prettyPrintTerminator(bb.Terminator))
		b.WriteString("\n")
	}

	return b.String()
}

// PrettyPrint implementations for statements

func (a *Assign) PrettyPrint() string {
	return fmt.Sprintf("%s = %s", OperandString(a.Dest), OperandString(a.RHS))
}

func (i *Invoke) PrettyPrint() string {
	return fmt.Sprintf("invoke %s(%s)", i.Func, operandList(i.Args))
}

// prettyPrintStmt dispatches to the appropriate PrettyPrint method
func prettyPrintStmt(stmt Statement) string {
	switch s := stmt.(type) {
	case *Assign:
		return s.PrettyPrint()
	case *Invoke:
		return s.PrettyPrint()
	default:
		return fmt.Sprintf("<?stmt:%T>", stmt)
	}
}

// prettyPrintTerminator dispatches to the appropriate PrettyPrint method
func prettyPrintTerminator(term Terminator) string {
	switch t := term.(type) {
	case *Return:
		return t.PrettyPrint()
	case *Goto:
		return t.PrettyPrint()
	case *Branch:
		return t.PrettyPrint()
	default:
		return fmt.Sprintf("<?terminator:%T>", term)
	}
}

// PrettyPrint implementations for terminators

func (r *Return) PrettyPrint() string {
	if r.Value == nil {
		return "return"
	}
	return fmt.Sprintf("return %s", OperandString(r.Value))
}

func (g *Goto) PrettyPrint() string {
	return fmt.Sprintf("goto %s", g.Target.Label)
}

func (b *Branch) PrettyPrint() string {
	return fmt.Sprintf("if %s goto %s else goto %s", OperandString(b.Condition), b.True.Label, b.False.Label)
}

// StatementString renders a statement or terminator on one line.
func StatementString(node interface{}) string {
	switch n := node.(type) {
	case Statement:
		return prettyPrintStmt(n)
	case Terminator:
		return prettyPrintTerminator(n)
	}
	return fmt.Sprintf("<?node:%T>", node)
}

// Helper functions for pretty printing

func localString(local Local) string {
	if local.Name == "" {
		return fmt.Sprintf("_%d", local.ID)
	}
	return local.Name
}

// OperandString renders an operand in source-like syntax.
func OperandString(op Operand) string {
	switch o := op.(type) {
	case nil:
		return "<nil>"
	case *LocalRef:
		return localString(o.Local)
	case *FieldRef:
		if o.Static {
			return "static." + o.Field
		}
		return localString(o.Base) + "." + o.Field
	case *Literal:
		return literalString(o)
	case *Op:
		return fmt.Sprintf("%s(%s)", o.Name, operandList(o.Args))
	case *Compare:
		return fmt.Sprintf("%s %s %s", OperandString(o.X), o.Op, OperandString(o.Y))
	case *Compound:
		return fmt.Sprintf("(%s %s %s)", OperandString(o.X), o.Op, OperandString(o.Y))
	case *Not:
		return fmt.Sprintf("!(%s)", OperandString(o.X))
	default:
		return fmt.Sprintf("<?operand:%T>", op)
	}
}

func operandList(ops []Operand) string {
	parts := make([]string, len(ops))
	for i, op := range ops {
		parts[i] = OperandString(op)
	}
	return strings.Join(parts, ", ")
}

func literalString(lit *Literal) string {
	switch v := lit.Value.(type) {
	case int64:
		return fmt.Sprintf("%d", v)
	case int:
		return fmt.Sprintf("%d", v)
	case float64:
		return fmt.Sprintf("%g", v)
	case bool:
		if v {
			return "true"
		}
		return "false"
	case string:
		return fmt.Sprintf("%q", v)
	case nil:
		return "nil"
	default:
		return fmt.Sprintf("<?literal:%T>", v)
	}
}
