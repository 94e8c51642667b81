// Package gofront lowers loop-free Go functions into MIR procedures.
//
// Each function declaration with a body becomes one procedure. Control flow
// comes from golang.org/x/tools/go/cfg, which already splits && and || in
// branch conditions into chained blocks. Straight-line statements are
// limited to single assignments, increments, calls and returns; anything
// else is reported as unsupported.
package gofront

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"
	"os"

	"github.com/nikandfor/errors"
	"golang.org/x/tools/go/cfg"

	"github.com/malphas-lang/ifconv/internal/diag"
	"github.com/malphas-lang/ifconv/internal/mir"
)

// LoadFile reads and lowers the Go source file at path.
func LoadFile(path string) (*mir.Module, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read go source")
	}
	return Load(path, src)
}

// Load lowers the functions of the Go source src. filename is used in
// positions only.
func Load(filename string, src []byte) (*mir.Module, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.SkipObjectResolution)
	if err != nil {
		e := diag.Errorf(diag.StageFrontend, diag.CodeFrontendSyntax, "invalid Go source")
		if list, ok := err.(scanner.ErrorList); ok && len(list) > 0 {
			e.Message = list[0].Msg
			e.At(span(list[0].Pos, ""))
			if len(list) > 1 {
				e.WithNote(fmt.Sprintf("and %d more errors", len(list)-1))
			}
			return nil, e
		}
		return nil, e.Wrap(err).At(diag.Span{Filename: filename})
	}

	module := &mir.Module{}
	for _, decl := range file.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || fd.Body == nil {
			continue
		}
		fn, err := lowerFunc(fset, fd)
		if err != nil {
			return nil, err
		}
		module.Functions = append(module.Functions, fn)
	}
	return module, nil
}

// funcName returns the procedure name of fd, prefixing methods with their
// receiver type.
func funcName(fd *ast.FuncDecl) string {
	if fd.Recv == nil || len(fd.Recv.List) == 0 {
		return fd.Name.Name
	}
	recv := fd.Recv.List[0].Type
	if star, ok := recv.(*ast.StarExpr); ok {
		recv = star.X
	}
	if id, ok := recv.(*ast.Ident); ok {
		return id.Name + "." + fd.Name.Name
	}
	return fd.Name.Name
}

func span(pos token.Position, proc string) diag.Span {
	return diag.Span{
		Filename:  pos.Filename,
		Line:      pos.Line,
		Column:    pos.Column,
		Procedure: proc,
	}
}

// checkSupported rejects statements that introduce cycles, non-local jumps
// or nested functions.
func checkSupported(fset *token.FileSet, name string, body *ast.BlockStmt) error {
	var err error
	ast.Inspect(body, func(n ast.Node) bool {
		if err != nil {
			return false
		}
		var what string
		switch n.(type) {
		case *ast.ForStmt, *ast.RangeStmt:
			what = "loop"
		case *ast.SwitchStmt, *ast.TypeSwitchStmt, *ast.SelectStmt:
			what = "switch statement"
		case *ast.GoStmt, *ast.DeferStmt:
			what = "go or defer statement"
		case *ast.BranchStmt, *ast.LabeledStmt:
			what = "jump statement"
		case *ast.FuncLit:
			what = "function literal"
		default:
			return true
		}
		err = diag.Errorf(diag.StageFrontend, diag.CodeFrontendUnsupported,
			"%s is not supported", what).
			At(span(fset.Position(n.Pos()), name)).
			WithHelp("only loop-free functions built from if statements can be converted")
		return false
	})
	return err
}

func lowerFunc(fset *token.FileSet, fd *ast.FuncDecl) (*mir.Function, error) {
	name := funcName(fd)
	if err := checkSupported(fset, name, fd.Body); err != nil {
		return nil, err
	}

	l := &lowerer{
		fset:   fset,
		fn:     &mir.Function{Name: name},
		locals: make(map[string]mir.Local),
	}
	if fd.Recv != nil {
		l.params(fd.Recv)
	}
	l.params(fd.Type.Params)
	if res := fd.Type.Results; res != nil && len(res.List) == 1 && len(res.List[0].Names) == 1 {
		l.result = l.local(res.List[0].Names[0].Name)
		l.named = true
	}

	graph := cfg.New(fd.Body, func(*ast.CallExpr) bool { return true })
	if err := l.lower(graph); err != nil {
		return nil, diag.InProcedure(err, name)
	}
	return l.fn, nil
}
