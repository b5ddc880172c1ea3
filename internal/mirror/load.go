package mirror

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/pre/internal/annotation"
	"github.com/roach88/pre/internal/diag"
)

// ErrNoStubs is returned when the stub directory holds no Go files.
var ErrNoStubs = errors.New("no stub files")

// Load parses the stub package in dir and its nested stub packages.
//
// Problems with stub content are reported to sink; the returned module is
// then incomplete and callers should not render it. I/O and Go syntax
// errors are returned.
func Load(fset *token.FileSet, dir string, sink diag.Sink) (*Module, error) {
	l := &loader{fset: fset, root: dir, sink: sink}
	m, err := l.dir(".")
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("mirror: %s: %w", dir, ErrNoStubs)
	}
	if m.Target == "" {
		sink.Report(diag.Errorf(diag.MalformedAnnotation, diag.Point(l.firstPackage),
			"stub package %s needs a //pre:defs_for directive in its package doc", m.Name))
		return m, nil
	}
	for _, sub := range m.Modules {
		inherit(m, sub)
	}

	for _, f := range l.files {
		f.build()
	}
	return m, nil
}

// inherit extends the parent's target and visibility to sub and below.
func inherit(parent, sub *Module) {
	if sub.Target == "" {
		sub.Target = parent.Target + "/" + path.Base(sub.Dir)
	}
	sub.Public = parent.Public
	for _, s := range sub.Modules {
		inherit(sub, s)
	}
}

type loader struct {
	fset *token.FileSet
	root string
	sink diag.Sink

	firstPackage token.Pos
	files        []*pendingFile
}

// pendingFile is a parsed file waiting for its module's target.
type pendingFile struct {
	out   *File
	mod   *Module
	src   []byte
	tok   *token.File
	alias string
	funcs []*ast.FuncDecl
}

func (l *loader) dir(rel string) (*Module, error) {
	abs := filepath.Join(l.root, rel)
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("mirror: %w", err)
	}

	m := &Module{Dir: filepath.ToSlash(rel)}
	var subdirs []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			if !strings.HasPrefix(name, ".") && !strings.HasPrefix(name, "_") && name != "testdata" {
				subdirs = append(subdirs, name)
			}
			continue
		}
		if !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		if err := l.file(m, filepath.Join(abs, name)); err != nil {
			return nil, err
		}
	}

	for _, name := range subdirs {
		sub, err := l.dir(path.Join(rel, name))
		if err != nil {
			return nil, err
		}
		if sub != nil {
			m.Modules = append(m.Modules, sub)
		}
	}
	if len(m.Files) == 0 {
		if len(m.Modules) > 0 {
			return nil, fmt.Errorf("mirror: %s: nested stub packages need a parent stub package", abs)
		}
		return nil, nil
	}
	return m, nil
}

func (l *loader) file(m *Module, filename string) error {
	src, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("mirror: %w", err)
	}
	f, err := parser.ParseFile(l.fset, filename, src, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		return fmt.Errorf("mirror: %w", err)
	}
	if !l.firstPackage.IsValid() {
		l.firstPackage = f.Package
	}

	switch {
	case m.Name == "":
		m.Name = f.Name.Name
	case m.Name != f.Name.Name:
		return fmt.Errorf("mirror: %s: package %s, expected %s", filename, f.Name.Name, m.Name)
	}

	if f.Doc != nil {
		for _, a := range annotation.Collect(l.sink, f.Doc) {
			if a.DefsFor == nil {
				l.sink.Report(diag.Warnf(diag.UnusedTopLevelAnnotation, a.Span(), "this does not do anything"))
				continue
			}
			m.Target = a.DefsFor.Path
			m.Public = a.DefsFor.Public
		}
		if len(m.Doc) == 0 {
			m.Doc = docLines(f.Doc, false)
		}
	}

	out := &File{Name: filepath.Base(filename), names: make(map[string]bool)}
	p := &pendingFile{out: out, mod: m, src: src, tok: l.fset.File(f.Package)}

	for _, d := range f.Decls {
		switch d := d.(type) {
		case *ast.GenDecl:
			if d.Tok != token.IMPORT {
				l.sink.Report(notStub(d))
				continue
			}
			for _, spec := range d.Specs {
				is := spec.(*ast.ImportSpec)
				out.Imports = append(out.Imports, p.slice(is.Pos(), is.End()))
				out.names[importName(is)] = true
			}
		case *ast.FuncDecl:
			if d.Body != nil || d.Recv != nil {
				l.sink.Report(notStub(d))
				continue
			}
			p.funcs = append(p.funcs, d)
			p.collectNames(d)
		}
	}

	m.Files = append(m.Files, out)
	l.files = append(l.files, p)
	return nil
}

func notStub(d ast.Decl) diag.Diagnostic {
	return diag.Errorf(diag.MalformedAnnotation, diag.SpanOf(d), "expected a function signature or an import")
}

func importName(is *ast.ImportSpec) string {
	if is.Name != nil {
		return is.Name.Name
	}
	p, _ := strconv.Unquote(is.Path.Value)
	return path.Base(p)
}

// docLines renders a comment group line by line. Directives are kept only
// when withDirectives is set.
func docLines(g *ast.CommentGroup, withDirectives bool) []string {
	if g == nil {
		return nil
	}
	var out []string
	for _, c := range g.List {
		if annotation.IsDirective(c.Text) && !withDirectives {
			continue
		}
		out = append(out, c.Text)
	}
	for len(out) > 0 && strings.TrimSpace(out[len(out)-1]) == "//" {
		out = out[:len(out)-1]
	}
	return out
}

func (p *pendingFile) slice(from, to token.Pos) string {
	return string(p.src[p.tok.Offset(from):p.tok.Offset(to)])
}

func (p *pendingFile) collectNames(fd *ast.FuncDecl) {
	p.out.names[fd.Name.Name] = true
	for _, fl := range []*ast.FieldList{fd.Type.TypeParams, fd.Type.Params, fd.Type.Results} {
		if fl == nil {
			continue
		}
		for _, field := range fl.List {
			for _, n := range field.Names {
				p.out.names[n.Name] = true
			}
		}
	}
}

// build fills in the forwarders once the module target is known.
func (p *pendingFile) build() {
	if len(p.funcs) == 0 {
		return
	}
	p.alias = freshName(identFrom(path.Base(p.mod.Target)), p.out.names)
	p.out.names[p.alias] = true
	p.out.Alias = p.alias
	for _, fd := range p.funcs {
		p.out.Funcs = append(p.out.Funcs, p.fn(fd))
	}
}

func (p *pendingFile) fn(fd *ast.FuncDecl) *Func {
	tparams := make(map[string]bool)
	f := &Func{Name: fd.Name.Name, Doc: docLines(fd.Doc, true)}

	if tp := fd.Type.TypeParams; tp != nil {
		for _, field := range tp.List {
			for _, n := range field.Names {
				tparams[n.Name] = true
				f.TypeArgs = append(f.TypeArgs, n.Name)
			}
		}
		f.TypeParams = p.text(tp, tparams)
	}

	i := 0
	for _, field := range fd.Type.Params.List {
		typ := p.text(field.Type, tparams)
		if _, ok := field.Type.(*ast.Ellipsis); ok {
			f.Variadic = true
		}
		if len(field.Names) == 0 {
			f.Params = append(f.Params, Param{Name: p.fresh(i), Type: typ})
			i++
			continue
		}
		for _, n := range field.Names {
			name := n.Name
			if name == "_" {
				name = p.fresh(i)
			}
			f.Params = append(f.Params, Param{Name: name, Type: typ})
			i++
		}
	}

	if fd.Type.Results != nil {
		f.Results = p.text(fd.Type.Results, tparams)
	}
	return f
}

func (p *pendingFile) fresh(i int) string {
	name := freshName("arg"+strconv.Itoa(i), p.out.names)
	p.out.names[name] = true
	return name
}

// text returns the source of n with every identifier that refers to the
// mirrored package qualified by the file's alias.
func (p *pendingFile) text(n ast.Node, tparams map[string]bool) string {
	var at []int
	unqualified(n, tparams, func(id *ast.Ident) {
		at = append(at, p.tok.Offset(id.Pos()))
	})
	sort.Ints(at)

	var b strings.Builder
	last := p.tok.Offset(n.Pos())
	for _, off := range at {
		b.Write(p.src[last:off])
		b.WriteString(p.alias)
		b.WriteByte('.')
		last = off
	}
	b.Write(p.src[last:p.tok.Offset(n.End())])
	return b.String()
}

// unqualified calls fn for each identifier in type position that is
// neither predeclared nor a type parameter. Field and method names are
// skipped.
func unqualified(n ast.Node, tparams map[string]bool, fn func(*ast.Ident)) {
	ast.Inspect(n, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.SelectorExpr:
			return false
		case *ast.Field:
			unqualified(n.Type, tparams, fn)
			return false
		case *ast.Ident:
			if !tparams[n.Name] && types.Universe.Lookup(n.Name) == nil {
				fn(n)
			}
		}
		return true
	})
}

// identFrom turns an import path element into an identifier.
func identFrom(elem string) string {
	var b strings.Builder
	for i, r := range elem {
		switch {
		case r == '_' || 'a' <= r && r <= 'z' || 'A' <= r && r <= 'Z':
			b.WriteRune(r)
		case '0' <= r && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "target"
	}
	return b.String()
}

// freshName returns base, or base with the smallest numeric suffix, that
// is not in taken and is not a keyword.
func freshName(base string, taken map[string]bool) string {
	name := base
	for i := 1; taken[name] || token.Lookup(name).IsKeyword() || name == "_"; i++ {
		name = base + strconv.Itoa(i)
	}
	return name
}
