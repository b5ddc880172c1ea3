package engine

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"go/ast"
	"go/build/constraint"
	"go/parser"
	"go/printer"
	"go/token"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/pre/internal/annotation"
	"github.com/roach88/pre/internal/config"
	"github.com/roach88/pre/internal/diag"
	"github.com/roach88/pre/internal/library"
	"github.com/roach88/pre/internal/mirror"
	"github.com/roach88/pre/internal/rewrite"
)

// OverlayName is the overlay file written into the cache directory.
const OverlayName = "overlay.json"

// ErrDiagnostics is returned by Run when error diagnostics blocked output.
var ErrDiagnostics = errors.New("errors reported")

// Overlay is the go command's -overlay file format.
type Overlay struct {
	Replace map[string]string `json:"Replace"`
}

// Report summarizes a run.
type Report struct {
	Files     int           `json:"files" yaml:"files"`
	Rewritten int           `json:"rewritten" yaml:"rewritten"`
	Mirrored  int           `json:"mirrored" yaml:"mirrored"`
	Stats     rewrite.Stats `json:"stats" yaml:"stats"`
	Overlay   string        `json:"overlay,omitempty" yaml:"overlay,omitempty"`
}

// Engine rewrites one module.
type Engine struct {
	Root    string
	Config  config.Config
	Library library.Library
	Logger  *slog.Logger

	Fset  *token.FileSet
	Diags *diag.List

	// types caches the package-level type names per directory.
	types map[string]map[string]bool
}

// New returns an engine for the module at root. root is made absolute so
// overlay keys are absolute paths.
func New(root string, cfg config.Config, lib library.Library, logger *slog.Logger) (*Engine, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	fset := token.NewFileSet()
	return &Engine{
		Root:    abs,
		Config:  cfg,
		Library: lib,
		Logger:  logger,
		Fset:    fset,
		Diags:   diag.NewList(fset),
		types:   make(map[string]map[string]bool),
	}, nil
}

// CacheDir returns the absolute cache directory.
func (e *Engine) CacheDir() string {
	if filepath.IsAbs(e.Config.CacheDir) {
		return e.Config.CacheDir
	}
	return filepath.Join(e.Root, e.Config.CacheDir)
}

type shadow struct {
	src    string
	name   string
	source []byte
}

// Run generates the configured mirrors, rewrites the module and writes
// the overlay. It returns ErrDiagnostics when errors were reported; the
// diagnostics themselves are in e.Diags.
func (e *Engine) Run(ctx context.Context) (Report, error) {
	var rep Report
	n, err := e.Mirror(ctx)
	if err != nil {
		return rep, err
	}
	rep.Mirrored = n

	var shadows []shadow
	err = e.walk(ctx, func(filename string) error {
		rep.Files++
		sh, stats, err := e.processFile(filename)
		if err != nil {
			return err
		}
		rep.Stats.Add(stats)
		if sh != nil {
			shadows = append(shadows, *sh)
		}
		return nil
	})
	if err != nil {
		return rep, err
	}
	rep.Rewritten = len(shadows)

	if e.Diags.HasErrors() {
		e.Logger.Info("rewrite blocked", "errors", e.Diags.Count(diag.Error))
		return rep, ErrDiagnostics
	}
	if err := e.writeShadows(shadows); err != nil {
		return rep, err
	}
	rep.Overlay = filepath.Join(e.CacheDir(), OverlayName)
	e.Logger.Info("rewrite complete",
		"files", rep.Files,
		"rewritten", rep.Rewritten,
		"overlay", rep.Overlay,
	)
	return rep, nil
}

// Mirror renders every configured mirror job into the module tree and
// returns the number of files written. Jobs with stub diagnostics are
// skipped.
func (e *Engine) Mirror(ctx context.Context) (int, error) {
	written := 0
	for _, job := range e.Config.Mirror {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		before := e.Diags.Count(diag.Error)
		m, err := mirror.Load(e.Fset, e.path(job.Stubs), e.Diags)
		if err != nil {
			return written, err
		}
		if e.Diags.Count(diag.Error) > before {
			continue
		}
		outputs, err := mirror.Render(m)
		if err != nil {
			return written, err
		}
		if err := mirror.Write(e.path(job.Out), outputs); err != nil {
			return written, err
		}
		e.Logger.Debug("mirrored stubs", "stubs", job.Stubs, "target", m.Target, "files", len(outputs))
		written += len(outputs)
	}
	return written, nil
}

func (e *Engine) path(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(e.Root, filepath.FromSlash(rel))
}

// walk calls fn for every Go file of the module in lexical order.
func (e *Engine) walk(ctx context.Context, fn func(filename string) error) error {
	cache := e.CacheDir()
	return filepath.WalkDir(e.Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if p == e.Root {
				return nil
			}
			if e.skipDir(p, d.Name(), cache) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(p, ".go") {
			return nil
		}
		return fn(p)
	})
}

func (e *Engine) skipDir(p, name, cache string) bool {
	if p == cache {
		return true
	}
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor" || name == "testdata" {
		return true
	}
	// Nested modules are built on their own.
	if _, err := os.Stat(filepath.Join(p, "go.mod")); err == nil {
		return true
	}
	// Stub trees are mirror input, never built.
	for _, job := range e.Config.Mirror {
		if p == e.path(job.Stubs) {
			return true
		}
	}
	rel, err := filepath.Rel(e.Root, p)
	if err != nil {
		return false
	}
	return e.Config.Excluded(filepath.ToSlash(rel))
}

// processFile rewrites one file. It returns a nil shadow when the file
// is unchanged or is a stub.
func (e *Engine) processFile(filename string) (*shadow, rewrite.Stats, error) {
	f, err := parser.ParseFile(e.Fset, filename, nil, parser.ParseComments)
	if err != nil {
		return nil, rewrite.Stats{}, fmt.Errorf("engine: %w", err)
	}
	if isStub(f) {
		e.Logger.Debug("skipping stub file", "file", filename)
		return nil, rewrite.Stats{}, nil
	}

	p := &rewrite.Pass{
		Fset:    e.Fset,
		Sink:    e.Diags,
		Library: e.Library,
		Logger:  e.Logger,
		Types:   e.packageTypes(filepath.Dir(filename)),
	}
	stats := p.File(f)
	if !stats.Changed() {
		return nil, stats, nil
	}

	rewrite.StripComments(f)
	var buf bytes.Buffer
	cfg := printer.Config{Mode: printer.UseSpaces | printer.TabIndent | printer.SourcePos, Tabwidth: 8}
	if err := cfg.Fprint(&buf, e.Fset, f); err != nil {
		return nil, stats, fmt.Errorf("engine: print %s: %w", filename, err)
	}

	base := strings.TrimSuffix(filepath.Base(filename), ".go")
	return &shadow{
		src:    filename,
		name:   fmt.Sprintf("%s_%s.go", base, contentHash(buf.Bytes())[:12]),
		source: buf.Bytes(),
	}, stats, nil
}

// packageTypes returns the names of the types declared at package level
// in the Go files of dir. Files that fail to parse contribute what was
// parsed; their errors are reported when they are processed.
func (e *Engine) packageTypes(dir string) map[string]bool {
	if names, ok := e.types[dir]; ok {
		return names
	}
	if e.types == nil {
		e.types = make(map[string]map[string]bool)
	}
	names := make(map[string]bool)
	files, _ := filepath.Glob(filepath.Join(dir, "*.go"))
	fset := token.NewFileSet()
	for _, name := range files {
		f, _ := parser.ParseFile(fset, name, nil, parser.SkipObjectResolution)
		if f == nil {
			continue
		}
		for _, d := range f.Decls {
			gd, ok := d.(*ast.GenDecl)
			if !ok || gd.Tok != token.TYPE {
				continue
			}
			for _, spec := range gd.Specs {
				names[spec.(*ast.TypeSpec).Name.Name] = true
			}
		}
	}
	e.types[dir] = names
	return names
}

// isStub reports whether f is a mirror stub file: it is constrained to
// mirror.BuildTag, or its package doc names the package it defines
// functions for. Nested stub packages only carry the constraint.
func isStub(f *ast.File) bool {
	for _, g := range f.Comments {
		if g.Pos() >= f.Package {
			break
		}
		for _, c := range g.List {
			if constraint.IsGoBuild(c.Text) && mentions(c.Text, mirror.BuildTag) {
				return true
			}
		}
	}
	if f.Doc == nil {
		return false
	}
	for _, c := range f.Doc.List {
		if !annotation.IsDirective(c.Text) {
			continue
		}
		if a, err := annotation.Parse(c); err == nil && a.Verb == annotation.VerbDefsFor {
			return true
		}
	}
	return false
}

// mentions reports whether the build constraint line refers to tag.
func mentions(line, tag string) bool {
	expr, err := constraint.Parse(line)
	if err != nil {
		return false
	}
	found := false
	expr.Eval(func(t string) bool {
		found = found || t == tag
		return true
	})
	return found
}

// writeShadows replaces the cache contents with shadows and the overlay.
func (e *Engine) writeShadows(shadows []shadow) error {
	dir := e.CacheDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	stale, err := filepath.Glob(filepath.Join(dir, "*.go"))
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	for _, name := range stale {
		if err := os.Remove(name); err != nil {
			return fmt.Errorf("engine: %w", err)
		}
	}

	ov := Overlay{Replace: make(map[string]string, len(shadows))}
	for _, sh := range shadows {
		dst := filepath.Join(dir, sh.name)
		if err := os.WriteFile(dst, sh.source, 0o644); err != nil {
			return fmt.Errorf("engine: %w", err)
		}
		ov.Replace[sh.src] = dst
	}
	return writeOverlay(filepath.Join(dir, OverlayName), ov)
}

func writeOverlay(name string, ov Overlay) error {
	data, err := json.MarshalIndent(ov, "", "  ")
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if err := os.WriteFile(name, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	return nil
}

// ReadOverlay loads an overlay written by Run.
func ReadOverlay(name string) (Overlay, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return Overlay{}, fmt.Errorf("engine: %w", err)
	}
	var ov Overlay
	if err := json.Unmarshal(data, &ov); err != nil {
		return Overlay{}, fmt.Errorf("engine: %s: %w", name, err)
	}
	return ov, nil
}

// Sources returns the overlay's original paths, sorted.
func (o Overlay) Sources() []string {
	out := make([]string, 0, len(o.Replace))
	for src := range o.Replace {
		out = append(out, src)
	}
	sort.Strings(out)
	return out
}

func contentHash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
