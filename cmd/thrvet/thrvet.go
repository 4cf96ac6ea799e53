package main

import "go/ast"
import "go/token"
import "go/types"
import "strings"

import "golang.org/x/tools/go/analysis"
import "golang.org/x/tools/go/analysis/passes/inspect"
import "golang.org/x/tools/go/ast/inspector"

/// Analyzer flags condition waits that are not retried in a loop and
/// synchronization objects copied by value.
var Analyzer = &analysis.Analyzer{
	Name:     "thrvet",
	Doc:      "check for misuse of rthread mutexes, condition variables and semaphores",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

// objects that must never be copied once used
var nocopy = map[string]bool{
	"Mutex_t": true,
	"Cond_t":  true,
	"Sem_t":   true,
	"Once_t":  true,
}

/**
 * @brief Reports whether t is one of the runtime's object types.
 * @param t type to examine, not dereferenced
 * @return the type name, or empty when t is not such an object
 */
func syncobj(t types.Type) string {
	named, ok := t.(*types.Named)
	if !ok {
		return ""
	}
	obj := named.Obj()
	if obj.Pkg() == nil || !nocopy[obj.Name()] {
		return ""
	}
	p := obj.Pkg().Path()
	if p != "rthread" && !strings.HasSuffix(p, "/rthread") {
		return ""
	}
	return obj.Name()
}

/**
 * @brief Finds the receiver type name of a method call.
 * @param pass current pass
 * @param call call expression
 * @return receiver type name and method name, empty when call is not a
 *         method of a runtime object
 */
func method(pass *analysis.Pass, call *ast.CallExpr) (string, string) {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return "", ""
	}
	fn, ok := pass.TypesInfo.Uses[sel.Sel].(*types.Func)
	if !ok {
		return "", ""
	}
	recv := fn.Type().(*types.Signature).Recv()
	if recv == nil {
		return "", ""
	}
	t := recv.Type()
	if p, ok := t.(*types.Pointer); ok {
		t = p.Elem()
	}
	return syncobj(t), fn.Name()
}

// inloop reports whether the innermost function on stack encloses n in a
// for or range statement.
func inloop(stack []ast.Node) bool {
	for i := len(stack) - 1; i >= 0; i-- {
		switch stack[i].(type) {
		case *ast.ForStmt, *ast.RangeStmt:
			return true
		case *ast.FuncLit, *ast.FuncDecl:
			return false
		}
	}
	return false
}

func checkfields(pass *analysis.Pass, fl *ast.FieldList, what string) {
	if fl == nil {
		return
	}
	for _, f := range fl.List {
		if name := syncobj(pass.TypesInfo.TypeOf(f.Type)); name != "" {
			pass.Reportf(f.Pos(), "%s passes %s by value", what, name)
		}
	}
}

// copies reports whether evaluating e yields a copy of an existing
// object, rather than a fresh one.
func copies(e ast.Expr) bool {
	switch x := e.(type) {
	case *ast.CompositeLit:
		return false
	case *ast.ParenExpr:
		return copies(x.X)
	case *ast.CallExpr:
		return false
	}
	return true
}

func run(pass *analysis.Pass) (interface{}, error) {
	ins := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)
	filter := []ast.Node{
		(*ast.CallExpr)(nil),
		(*ast.FuncDecl)(nil),
		(*ast.FuncLit)(nil),
		(*ast.AssignStmt)(nil),
		(*ast.ValueSpec)(nil),
	}
	ins.WithStack(filter, func(n ast.Node, push bool, stack []ast.Node) bool {
		if !push {
			return true
		}
		switch x := n.(type) {
		case *ast.CallExpr:
			recv, name := method(pass, x)
			if recv == "Cond_t" && (name == "Wait" || name == "Timedwait") && !inloop(stack) {
				pass.Reportf(x.Pos(), "Cond_t.%s outside a loop; wakeups may be spurious or stolen", name)
			}
		case *ast.FuncDecl:
			checkfields(pass, x.Recv, "receiver")
			checkfields(pass, x.Type.Params, "parameter")
			checkfields(pass, x.Type.Results, "result")
		case *ast.FuncLit:
			checkfields(pass, x.Type.Params, "parameter")
			checkfields(pass, x.Type.Results, "result")
		case *ast.AssignStmt:
			if x.Tok != token.ASSIGN && x.Tok != token.DEFINE {
				break
			}
			for _, r := range x.Rhs {
				if name := syncobj(pass.TypesInfo.TypeOf(r)); name != "" && copies(r) {
					pass.Reportf(r.Pos(), "assignment copies %s", name)
				}
			}
		case *ast.ValueSpec:
			for _, v := range x.Values {
				if name := syncobj(pass.TypesInfo.TypeOf(v)); name != "" && copies(v) {
					pass.Reportf(v.Pos(), "variable declaration copies %s", name)
				}
			}
		}
		return true
	})
	return nil, nil
}
