package rewrite

import (
	"go/ast"
	"go/token"
	"strings"
)

// compilerPrefixes start comments the toolchain reads.
var compilerPrefixes = []string{"//go:", "//line ", "//export ", "//extern ", "// +build"}

// IsCompilerDirective reports whether a comment is read by the toolchain.
func IsCompilerDirective(text string) bool {
	for _, p := range compilerPrefixes {
		if strings.HasPrefix(text, p) {
			return true
		}
	}
	return false
}

// StripComments removes every comment group from f except those holding a
// compiler directive and the cgo preamble. Doc fields are cleared so the
// printer cannot bring stripped comments back.
func StripComments(f *ast.File) {
	keep := make(map[*ast.CommentGroup]bool)
	for _, d := range f.Decls {
		gd, ok := d.(*ast.GenDecl)
		if !ok || gd.Tok != token.IMPORT {
			continue
		}
		for _, spec := range gd.Specs {
			if is := spec.(*ast.ImportSpec); is.Path.Value == `"C"` {
				keep[gd.Doc] = true
				keep[is.Doc] = true
			}
		}
	}
	for _, g := range f.Comments {
		for _, c := range g.List {
			if IsCompilerDirective(c.Text) {
				keep[g] = true
				break
			}
		}
	}

	kept := f.Comments[:0]
	for _, g := range f.Comments {
		if keep[g] {
			kept = append(kept, g)
		}
	}
	f.Comments = kept

	drop := func(g **ast.CommentGroup) {
		if *g != nil && !keep[*g] {
			*g = nil
		}
	}
	drop(&f.Doc)
	ast.Inspect(f, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.FuncDecl:
			drop(&n.Doc)
		case *ast.GenDecl:
			drop(&n.Doc)
		case *ast.Field:
			drop(&n.Doc)
			drop(&n.Comment)
		case *ast.ImportSpec:
			drop(&n.Doc)
			drop(&n.Comment)
		case *ast.ValueSpec:
			drop(&n.Doc)
			drop(&n.Comment)
		case *ast.TypeSpec:
			drop(&n.Doc)
			drop(&n.Comment)
		}
		return true
	})
}
