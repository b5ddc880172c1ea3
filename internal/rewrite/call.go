package rewrite

import (
	"go/ast"
	"go/token"
	"go/types"
	"strings"

	"golang.org/x/tools/go/ast/astutil"

	"github.com/roach88/pre/internal/annotation"
	"github.com/roach88/pre/internal/diag"
	"github.com/roach88/pre/internal/fingerprint"
	"github.com/roach88/pre/internal/validate"
)

// stmt handles the directive comments attached to one statement.
func (r *fileRun) stmt(c *astutil.Cursor, stmt ast.Stmt, comments []*ast.Comment) {
	anns, failed := r.parse(comments)
	var uses []*annotation.Annotation
	for _, a := range anns {
		switch a.Verb {
		case annotation.VerbAssert, annotation.VerbDef:
			uses = append(uses, a)
		default:
			r.unused(a, "only //pre:assert and //pre:def apply to a statement")
		}
	}
	if len(uses) == 0 {
		return
	}

	call := OutermostCall(stmt, r.conversion)
	if call == nil {
		for _, a := range uses {
			r.unused(a, "the statement contains no function call")
		}
		return
	}

	res := validate.Node(r.pass.Sink, uses)
	if failed || res.Failed {
		return
	}

	marker := fingerprint.Encode(res.Preconditions)
	if call.Ellipsis.IsValid() && !marker.IsEmpty() {
		r.report(diag.Errorf(diag.MalformedAnnotation, diag.SpanOf(call),
			"cannot attach preconditions to a call with a spread argument"))
		return
	}

	if res.Forward == nil {
		if !marker.IsEmpty() {
			call.Args = append(call.Args, marker.Value(r.pkg))
			r.marked = true
			r.stats.Calls++
		}
		return
	}
	r.forward(c, stmt, call, res.Forward, marker)
}

// forward replaces call by its redirected form and keeps the original call
// under the dead branch of `if true`.
func (r *fileRun) forward(c *astutil.Cursor, stmt ast.Stmt, call *ast.CallExpr, fwd *annotation.Forward, marker fingerprint.Marker) {
	es, isExpr := stmt.(*ast.ExprStmt)
	isExpr = isExpr && ast.Unparen(es.X) == call
	if !isExpr && (!isSimple(stmt) || c.Index() < 0) {
		r.report(diag.Errorf(diag.MalformedAnnotation, diag.SpanOf(stmt),
			"a forwarding statement applies only to a simple statement in a block"))
		return
	}

	rewritten, err := ForwardCall(call, fwd)
	if err != nil {
		r.report(*err)
		return
	}
	if !marker.IsEmpty() {
		rewritten.Args = append(rewritten.Args, marker.Value(r.pkg))
		r.marked = true
		r.stats.Calls++
	}
	original := &ast.ExprStmt{X: call}
	r.stats.Forwards++

	if isExpr {
		// Apply goes on to walk the replaced statement, so function
		// literals in the shared arguments are still visited.
		c.Replace(DeadBranch([]ast.Stmt{&ast.ExprStmt{X: rewritten}}, original))
		return
	}
	astutil.Apply(stmt, func(cc *astutil.Cursor) bool {
		if cc.Node() == call {
			cc.Replace(rewritten)
			return false
		}
		return true
	}, nil)
	c.InsertBefore(DeadBranch(nil, original))
}

// DeadBranch returns `if true { live } else { dead }`.
func DeadBranch(live []ast.Stmt, dead ast.Stmt) *ast.IfStmt {
	return &ast.IfStmt{
		Cond: ast.NewIdent("true"),
		Body: &ast.BlockStmt{List: live},
		Else: &ast.BlockStmt{List: []ast.Stmt{dead}},
	}
}

// ForwardCall builds the redirected copy of call. The original call is not
// modified; unchanged sub-expressions are shared.
func ForwardCall(call *ast.CallExpr, fwd *annotation.Forward) (*ast.CallExpr, *diag.Diagnostic) {
	fun := call.Fun
	if fwd.Target != "" {
		fun = selector(fwd.Target, fwd.TargetPos)
	}

	pointers := make(map[string]bool, len(fwd.Pointers))
	for _, p := range fwd.Pointers {
		pointers[p.Name] = false
	}
	args := make([]ast.Expr, len(call.Args))
	for i, arg := range call.Args {
		text := types.ExprString(arg)
		if _, ok := pointers[text]; ok {
			pointers[text] = true
			args[i] = &ast.UnaryExpr{Op: token.AND, X: arg}
			continue
		}
		args[i] = arg
	}
	for _, p := range fwd.Pointers {
		if !pointers[p.Name] {
			d := diag.Errorf(diag.MalformedAnnotation, diag.Point(p.Pos),
				"ptr(%s) does not match any argument of the call", p.Name)
			return nil, &d
		}
	}

	return &ast.CallExpr{
		Fun:      fun,
		Lparen:   call.Lparen,
		Args:     args,
		Ellipsis: call.Ellipsis,
		Rparen:   call.Rparen,
	}, nil
}

// selector builds the expression for a dotted name.
func selector(name string, pos token.Pos) ast.Expr {
	parts := strings.Split(name, ".")
	var x ast.Expr = &ast.Ident{NamePos: pos, Name: parts[0]}
	for _, p := range parts[1:] {
		x = &ast.SelectorExpr{X: x, Sel: ast.NewIdent(p)}
	}
	return x
}

func isSimple(stmt ast.Stmt) bool {
	switch s := stmt.(type) {
	case *ast.AssignStmt, *ast.ReturnStmt, *ast.DeferStmt, *ast.GoStmt,
		*ast.DeclStmt, *ast.SendStmt, *ast.ExprStmt:
		return true
	case *ast.LabeledStmt:
		return isSimple(s.Stmt)
	}
	return false
}

// OutermostCall returns the first candidate call in stmt in source order,
// not descending into function literals or nested blocks. Conversions to
// predeclared types and builtin calls are skipped, as is every call for
// which conversion reports true. conversion may be nil.
func OutermostCall(stmt ast.Stmt, conversion func(*ast.CallExpr) bool) *ast.CallExpr {
	var found *ast.CallExpr
	var roots []ast.Node

	switch s := stmt.(type) {
	case *ast.LabeledStmt:
		return OutermostCall(s.Stmt, conversion)
	case *ast.IfStmt:
		roots = []ast.Node{s.Init, s.Cond}
	case *ast.ForStmt:
		roots = []ast.Node{s.Init, s.Cond, s.Post}
	case *ast.RangeStmt:
		roots = []ast.Node{s.X}
	case *ast.SwitchStmt:
		roots = []ast.Node{s.Init, s.Tag}
	case *ast.TypeSwitchStmt:
		roots = []ast.Node{s.Init, s.Assign}
	case *ast.SelectStmt, *ast.BlockStmt:
		return nil
	default:
		roots = []ast.Node{stmt}
	}

	for _, root := range roots {
		if root == nil {
			continue
		}
		ast.Inspect(root, func(n ast.Node) bool {
			if found != nil {
				return false
			}
			switch n := n.(type) {
			case *ast.FuncLit, *ast.BlockStmt:
				return false
			case *ast.CallExpr:
				if isCandidate(n) && (conversion == nil || !conversion(n)) {
					found = n
					return false
				}
			}
			return true
		})
		if found != nil {
			break
		}
	}
	return found
}

func isCandidate(call *ast.CallExpr) bool {
	switch f := callee(call).(type) {
	case *ast.Ident:
		return types.Universe.Lookup(f.Name) == nil
	case *ast.SelectorExpr:
		return true
	}
	return false
}

// callee strips parentheses and type arguments from call.Fun.
func callee(call *ast.CallExpr) ast.Expr {
	fun := ast.Unparen(call.Fun)
	switch f := fun.(type) {
	case *ast.IndexExpr:
		fun = f.X
	case *ast.IndexListExpr:
		fun = f.X
	}
	return fun
}

// TypeNames returns the names of the types declared in files, at package
// level or inside function bodies.
func TypeNames(files ...*ast.File) map[string]bool {
	names := make(map[string]bool)
	for _, f := range files {
		ast.Inspect(f, func(n ast.Node) bool {
			if ts, ok := n.(*ast.TypeSpec); ok {
				names[ts.Name.Name] = true
			}
			return true
		})
	}
	return names
}

// ConversionTo returns a predicate reporting whether a call names one of
// the given types without qualification. A qualified conversion such as
// pkg.T(x) cannot be told from a call by syntax and is not matched.
func ConversionTo(names map[string]bool) func(*ast.CallExpr) bool {
	return func(call *ast.CallExpr) bool {
		id, ok := callee(call).(*ast.Ident)
		return ok && names[id.Name]
	}
}
