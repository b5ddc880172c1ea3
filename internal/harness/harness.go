package harness

import (
	"bytes"
	"errors"
	"fmt"
	"go/ast"
	"go/format"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"path"

	"github.com/roach88/pre/internal/diag"
	"github.com/roach88/pre/internal/library"
	"github.com/roach88/pre/internal/rewrite"
)

// markerSource declares the marker types for type-checking rewritten code.
const markerSource = `package %s

type Custom struct{}

type ValidPtr struct{}
`

// Result is the outcome of rewriting a scenario.
type Result struct {
	Scenario *Scenario
	Library  library.Library
	// Outputs holds the source of every rewritten file.
	Outputs map[string]string
	Stats   rewrite.Stats
	Fset    *token.FileSet
	Diags   *diag.List
}

// Run rewrites the scenario's files in memory.
func Run(s *Scenario) (*Result, error) {
	lib := library.Default()
	if s.Library != "" {
		lib = library.Library{Path: s.Library, Name: path.Base(s.Library)}
	}
	fset := token.NewFileSet()
	res := &Result{
		Scenario: s,
		Library:  lib,
		Outputs:  make(map[string]string),
		Fset:     fset,
		Diags:    diag.NewList(fset),
	}

	names := s.FileNames()
	files := make([]*ast.File, len(names))
	for i, name := range names {
		f, err := parser.ParseFile(fset, name, s.Files[name], parser.ParseComments)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
		}
		files[i] = f
	}

	pass := &rewrite.Pass{Fset: fset, Sink: res.Diags, Library: lib, Types: rewrite.TypeNames(files...)}
	for i, name := range names {
		f := files[i]
		stats := pass.File(f)
		res.Stats.Add(stats)
		if !stats.Changed() {
			continue
		}
		rewrite.StripComments(f)
		var buf bytes.Buffer
		if err := format.Node(&buf, fset, f); err != nil {
			return nil, fmt.Errorf("scenario %s: print %s: %w", s.Name, name, err)
		}
		res.Outputs[name] = buf.String()
	}
	return res, nil
}

// Source returns the rewritten source of name, or the original when the
// file was not rewritten.
func (r *Result) Source(name string) string {
	if out, ok := r.Outputs[name]; ok {
		return out
	}
	return r.Scenario.Files[name]
}

// TypeCheck type-checks the rewritten package. The marker package is
// synthesized; other imports come from the default importer.
func (r *Result) TypeCheck() error {
	fset := token.NewFileSet()
	var files []*ast.File
	for _, name := range r.Scenario.FileNames() {
		f, err := parser.ParseFile(fset, name, r.Source(name), 0)
		if err != nil {
			return fmt.Errorf("rewritten %s does not parse: %w", name, err)
		}
		files = append(files, f)
	}

	var errs []error
	conf := types.Config{
		Importer: &markerImporter{lib: r.Library, fallback: importer.Default()},
		Error:    func(err error) { errs = append(errs, err) },
	}
	conf.Check(files[0].Name.Name, fset, files, nil)
	return errors.Join(errs...)
}

type markerImporter struct {
	lib      library.Library
	fallback types.Importer
	pkg      *types.Package
}

func (m *markerImporter) Import(p string) (*types.Package, error) {
	if p != m.lib.Path {
		return m.fallback.Import(p)
	}
	if m.pkg != nil {
		return m.pkg, nil
	}
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "marker.go", fmt.Sprintf(markerSource, m.lib.Name), 0)
	if err != nil {
		return nil, err
	}
	pkg, err := (&types.Config{}).Check(p, fset, []*ast.File{f}, nil)
	if err != nil {
		return nil, err
	}
	m.pkg = pkg
	return pkg, nil
}
