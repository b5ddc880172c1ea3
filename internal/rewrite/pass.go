package rewrite

import (
	"go/ast"
	"go/token"
	"log/slog"

	"golang.org/x/tools/go/ast/astutil"

	"github.com/roach88/pre/internal/annotation"
	"github.com/roach88/pre/internal/diag"
	"github.com/roach88/pre/internal/library"
)

// Pass rewrites files against one marker library.
type Pass struct {
	Fset    *token.FileSet
	Sink    diag.Sink
	Library library.Library
	Logger  *slog.Logger
	// Types names the types declared in the other files of the package.
	// Calls to them are conversions and never take a marker.
	Types map[string]bool
}

// Stats counts what a pass changed in one file.
type Stats struct {
	// Declarations that gained a marker parameter.
	Declarations int `json:"declarations" yaml:"declarations"`
	// Calls that gained a marker argument.
	Calls int `json:"calls" yaml:"calls"`
	// Calls redirected by a forwarding statement.
	Forwards int `json:"forwards" yaml:"forwards"`
}

// Changed reports whether the file was modified.
func (s Stats) Changed() bool {
	return s.Declarations+s.Calls+s.Forwards > 0
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Declarations += o.Declarations
	s.Calls += o.Calls
	s.Forwards += o.Forwards
}

// File rewrites f in place.
func (p *Pass) File(f *ast.File) Stats {
	r := &fileRun{
		pass: p,
		file: f,
		pkg:  markerName(f, p.Library),
		idx:  annotation.NewIndex(p.Fset, f),
	}
	names := TypeNames(f)
	for name := range p.Types {
		names[name] = true
	}
	r.conversion = ConversionTo(names)
	astutil.Apply(f, r.visit, nil)
	r.reportUnused()

	if r.marked {
		r.addImport()
	}
	if p.Logger != nil {
		p.Logger.Debug("rewrote file",
			"file", p.Fset.Position(f.Package).Filename,
			"declarations", r.stats.Declarations,
			"calls", r.stats.Calls,
			"forwards", r.stats.Forwards,
		)
	}
	return r.stats
}

// fileRun holds the state of one File call.
type fileRun struct {
	pass  *Pass
	file  *ast.File
	pkg   string
	idx   *annotation.Index
	stats Stats
	// marked is set once a marker referencing the library was emitted.
	marked bool
	// conversion reports calls that convert to a type of the package.
	conversion func(*ast.CallExpr) bool
}

func (r *fileRun) visit(c *astutil.Cursor) bool {
	switch n := c.Node().(type) {
	case *ast.FuncDecl:
		r.decl(n)
	case *ast.BlockStmt, *ast.CaseClause, *ast.CommClause, *ast.EmptyStmt:
	case ast.Stmt:
		if comments := r.idx.Statement(n); len(comments) > 0 {
			r.stmt(c, n, comments)
		}
	}
	return true
}

// parse parses comments into annotations, reporting syntax errors. failed is
// set when any comment was malformed.
func (r *fileRun) parse(comments []*ast.Comment) (anns []*annotation.Annotation, failed bool) {
	for _, c := range comments {
		ann, err := annotation.Parse(c)
		if err != nil {
			failed = true
			r.report(malformed(c, err))
			continue
		}
		anns = append(anns, ann)
	}
	return anns, failed
}

func (r *fileRun) report(d diag.Diagnostic) {
	r.pass.Sink.Report(d)
}

// unused warns that an annotation has no effect where it is written.
func (r *fileRun) unused(a *annotation.Annotation, help string) {
	d := diag.Warnf(diag.UnusedTopLevelAnnotation, a.Span(), "this does not do anything")
	if help != "" {
		d = d.WithHelp(a.Span(), "%s", help)
	}
	r.report(d)
}

// reportUnused diagnoses directives that no declaration or statement took.
func (r *fileRun) reportUnused() {
	for _, c := range r.idx.Rest() {
		ann, err := annotation.Parse(c)
		if err != nil {
			r.report(malformed(c, err))
			continue
		}
		r.unused(ann, "")
	}
}

func malformed(c *ast.Comment, err error) diag.Diagnostic {
	if perr, ok := err.(*annotation.Error); ok {
		return perr.Diagnostic()
	}
	return diag.Errorf(diag.MalformedAnnotation, diag.SpanOf(c), "%v", err)
}
