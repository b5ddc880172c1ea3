// Package check compares the preconditions asserted at call sites with the
// ones the called functions declare, using type information to resolve
// callees.
//
// The rewrite turns every mismatch into a type error on the generated
// marker struct. Check reports the same problems against the original
// source, naming the preconditions involved instead of two struct types.
// Only functions declared in the loaded packages are known; calls into other
// modules, through function values or through interfaces are not checked.
package check

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"log/slog"
	"strings"

	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/types/typeutil"

	"github.com/roach88/pre/internal/annotation"
	"github.com/roach88/pre/internal/diag"
	"github.com/roach88/pre/internal/fingerprint"
	"github.com/roach88/pre/internal/precondition"
	"github.com/roach88/pre/internal/rewrite"
	"github.com/roach88/pre/internal/validate"
)

const loadMode = packages.NeedName | packages.NeedFiles | packages.NeedSyntax |
	packages.NeedTypes | packages.NeedTypesInfo

// Declaration is a function that declares preconditions.
type Declaration struct {
	// Name is the qualified name, e.g. "example.com/p.Read" or
	// "(*example.com/p.File).Read".
	Name   string
	Marker fingerprint.Marker
	Pos    token.Pos
}

// Result is the outcome of a check run.
type Result struct {
	Declarations []Declaration
	Calls        int
}

// Checker loads packages and checks their call sites.
type Checker struct {
	Dir      string
	Patterns []string
	// Tests includes test files and external test packages.
	Tests  bool
	Env    []string
	Logger *slog.Logger

	Fset  *token.FileSet
	Diags *diag.List
}

// New returns a checker for ./... in dir.
func New(dir string, logger *slog.Logger) *Checker {
	fset := token.NewFileSet()
	return &Checker{
		Dir:      dir,
		Patterns: []string{"./..."},
		Tests:    true,
		Logger:   logger,
		Fset:     fset,
		Diags:    diag.NewList(fset),
	}
}

// Run loads the packages and reports mismatches to c.Diags. Load and type
// errors are returned.
func (c *Checker) Run(ctx context.Context) (*Result, error) {
	cfg := &packages.Config{
		Context: ctx,
		Mode:    loadMode,
		Dir:     c.Dir,
		Env:     c.Env,
		Fset:    c.Fset,
		Tests:   c.Tests,
	}
	pkgs, err := packages.Load(cfg, c.Patterns...)
	if err != nil {
		return nil, fmt.Errorf("check: %w", err)
	}
	var errs []error
	for _, p := range pkgs {
		for _, e := range p.Errors {
			errs = append(errs, e)
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("check: %w", errors.Join(errs...))
	}

	r := &run{
		checker: c,
		loaded:  make(map[string]bool),
		decls:   make(map[string]Declaration),
		seen:    make(map[string]bool),
	}
	for _, p := range pkgs {
		r.loaded[p.PkgPath] = true
	}
	units := r.units(pkgs)
	for _, u := range units {
		r.declarations(u)
	}
	res := &Result{}
	for _, u := range units {
		res.Calls += r.calls(u)
	}
	for _, u := range units {
		res.Declarations = append(res.Declarations, u.decls...)
	}
	if c.Logger != nil {
		c.Logger.Debug("checked packages",
			"packages", len(pkgs),
			"declarations", len(res.Declarations),
			"calls", res.Calls,
		)
	}
	return res, nil
}

// unit is one file with the package it was type-checked in.
type unit struct {
	pkg   *packages.Package
	file  *ast.File
	decls []Declaration

	names map[string]bool
}

// typeNames returns the type names the rewrite sees for u: every type
// declared in the file and the package-level types of the package.
func (u *unit) typeNames() map[string]bool {
	if u.names != nil {
		return u.names
	}
	u.names = rewrite.TypeNames(u.file)
	scope := u.pkg.Types.Scope()
	for _, name := range scope.Names() {
		if _, ok := scope.Lookup(name).(*types.TypeName); ok {
			u.names[name] = true
		}
	}
	return u.names
}

type run struct {
	checker *Checker
	loaded  map[string]bool
	decls   map[string]Declaration
	seen    map[string]bool
}

// units lists every file once. With tests enabled a file appears in both
// the package and its test variant; the first occurrence wins.
func (r *run) units(pkgs []*packages.Package) []*unit {
	var out []*unit
	for _, p := range pkgs {
		for _, f := range p.Syntax {
			name := r.checker.Fset.Position(f.Package).Filename
			if r.seen[name] {
				continue
			}
			r.seen[name] = true
			out = append(out, &unit{pkg: p, file: f})
		}
	}
	return out
}

// declarations indexes the annotated functions of u.
func (r *run) declarations(u *unit) {
	for _, d := range u.file.Decls {
		fn, ok := d.(*ast.FuncDecl)
		if !ok || fn.Doc == nil {
			continue
		}
		obj, ok := u.pkg.TypesInfo.Defs[fn.Name].(*types.Func)
		if !ok {
			continue
		}
		requires := annotation.Filter(annotation.Collect(diag.Discard, fn.Doc), annotation.VerbRequire)
		if len(requires) == 0 {
			continue
		}
		res := validate.Node(diag.Discard, requires)
		if res.Failed || len(res.Preconditions) == 0 {
			continue
		}
		decl := Declaration{Name: obj.FullName(), Marker: fingerprint.Encode(res.Preconditions), Pos: fn.Name.Pos()}
		r.decls[decl.Name] = decl
		u.decls = append(u.decls, decl)
	}
}

// site is an annotated call.
type site struct {
	marker  fingerprint.Marker
	forward *annotation.Forward
	span    diag.Span
}

// calls checks every call in u and returns how many resolved to a known
// function.
func (r *run) calls(u *unit) int {
	idx := annotation.NewIndex(r.checker.Fset, u.file)
	sites := make(map[*ast.CallExpr]site)
	ast.Inspect(u.file, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.FuncDecl:
			idx.Doc(n.Doc)
		case *ast.BlockStmt, *ast.CaseClause, *ast.CommClause, *ast.EmptyStmt:
		case ast.Stmt:
			if s, call, ok := r.site(u, idx, n); ok {
				sites[call] = s
			}
		}
		return true
	})

	checked := 0
	ast.Inspect(u.file, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		s, annotated := sites[call]
		callee := typeutil.StaticCallee(u.pkg.TypesInfo, call)
		if annotated && s.forward != nil && s.forward.Target != "" {
			callee = r.resolve(u, call, s.forward.Target)
		}
		if callee == nil || callee.Pkg() == nil || !r.loaded[callee.Pkg().Path()] {
			return true
		}
		checked++
		r.compare(callee, call, s)
		return true
	})
	return checked
}

// site parses the assertions attached to stmt.
func (r *run) site(u *unit, idx *annotation.Index, stmt ast.Stmt) (site, *ast.CallExpr, bool) {
	comments := idx.Statement(stmt)
	if len(comments) == 0 {
		return site{}, nil, false
	}
	var uses []*annotation.Annotation
	for _, c := range comments {
		a, err := annotation.Parse(c)
		if err != nil {
			return site{}, nil, false
		}
		if a.Verb == annotation.VerbAssert || a.Verb == annotation.VerbDef {
			uses = append(uses, a)
		}
	}
	if len(uses) == 0 {
		return site{}, nil, false
	}
	isType := func(call *ast.CallExpr) bool {
		tv, ok := u.pkg.TypesInfo.Types[call.Fun]
		return ok && tv.IsType()
	}
	call := rewrite.OutermostCall(stmt, isType)
	// The rewrite only knows the unqualified type names of the package.
	if seen := rewrite.OutermostCall(stmt, rewrite.ConversionTo(u.typeNames())); seen != nil && seen != call && isType(seen) {
		r.report(diag.Warnf(diag.ConversionTakesMarker, diag.SpanOf(seen),
			"the rewrite attaches the marker to the conversion %s", types.ExprString(seen.Fun)).
			WithHelp(uses[0].Span(), "move the asserted call into its own statement"))
	}
	if call == nil {
		return site{}, nil, false
	}
	res := validate.Node(diag.Discard, uses)
	if res.Failed {
		return site{}, nil, false
	}
	return site{
		marker:  fingerprint.Encode(res.Preconditions),
		forward: res.Forward,
		span:    uses[0].Span(),
	}, call, true
}

// resolve finds the function a forwarding statement redirects call to.
func (r *run) resolve(u *unit, call *ast.CallExpr, target string) *types.Func {
	parts := strings.Split(target, ".")
	var scope *types.Scope
	switch len(parts) {
	case 1:
		scope = u.pkg.Types.Scope()
	case 2:
		pn, ok := u.pkg.TypesInfo.Scopes[u.file].Lookup(parts[0]).(*types.PkgName)
		if !ok {
			r.debug("unresolved forwarding target", "target", target)
			return nil
		}
		scope = pn.Imported().Scope()
	default:
		return nil
	}
	fn, _ := scope.Lookup(parts[len(parts)-1]).(*types.Func)
	if fn == nil {
		r.debug("unresolved forwarding target", "target", target, "call", r.checker.Fset.Position(call.Pos()))
	}
	return fn
}

func (r *run) compare(callee *types.Func, call *ast.CallExpr, s site) {
	name := callee.FullName()
	declared := r.decls[name].Marker
	asserted := s.marker
	if declared.Equal(asserted) {
		return
	}

	span := diag.SpanOf(call)
	switch {
	case declared.IsEmpty():
		d := diag.Errorf(diag.UnexpectedAssertion, span, "%s declares no preconditions", name)
		r.report(d.WithHelp(s.span, "remove the assertion"))
	case asserted.IsEmpty():
		missing := declared.Kinds()
		d := diag.Errorf(diag.MissingAssertion, span, "call to %s requires %s", name, list(missing))
		if decl, ok := r.decls[name]; ok {
			d = d.WithHelp(diag.Point(decl.Pos), "declared here")
		}
		for _, k := range missing {
			d = d.WithHelp(diag.Point(span.Pos), "assert it: `//pre:assert %s%s`", k, validate.ReasonSnippet())
		}
		r.report(d)
	default:
		d := diag.Errorf(diag.PreconditionMismatch, span, "asserted preconditions do not match %s", name)
		if missing := precondition.Difference(declared.Kinds(), asserted.Kinds()); len(missing) > 0 {
			d = d.WithHelp(s.span, "missing %s", list(missing))
		}
		if extra := precondition.Difference(asserted.Kinds(), declared.Kinds()); len(extra) > 0 {
			d = d.WithHelp(s.span, "not required %s", list(extra))
		}
		r.report(d)
	}
}

func (r *run) report(d diag.Diagnostic) {
	r.checker.Diags.Report(d)
}

func (r *run) debug(msg string, args ...any) {
	if r.checker.Logger != nil {
		r.checker.Logger.Debug(msg, args...)
	}
}

func list(kinds []precondition.Kind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = k.String()
	}
	return strings.Join(parts, ", ")
}
