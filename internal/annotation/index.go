package annotation

import (
	"go/ast"
	"go/token"
)

// Index hands out the directive comments of one file to the nodes they
// are attached to. Each comment is handed out at most once.
//
// A directive is attached to a statement when it trails the statement on
// its last line, or when it belongs to the comment group that ends on the
// line just above the statement. Statements must be queried in source
// order, outer before inner, so that trailing comments go to the
// statement they follow.
type Index struct {
	fset       *token.FileSet
	directives []*ast.Comment
	byLine     map[int][]*ast.Comment
	groupEnd   map[int]*ast.CommentGroup
	taken      map[*ast.Comment]bool
}

// NewIndex indexes the directive comments of f.
func NewIndex(fset *token.FileSet, f *ast.File) *Index {
	x := &Index{
		fset:     fset,
		byLine:   make(map[int][]*ast.Comment),
		groupEnd: make(map[int]*ast.CommentGroup),
		taken:    make(map[*ast.Comment]bool),
	}
	for _, g := range f.Comments {
		if !HasDirective(g) {
			continue
		}
		for _, c := range g.List {
			if IsDirective(c.Text) {
				x.directives = append(x.directives, c)
				l := x.line(c.Slash)
				x.byLine[l] = append(x.byLine[l], c)
			}
		}
		x.groupEnd[x.line(g.End())] = g
	}
	return x
}

func (x *Index) line(pos token.Pos) int {
	return x.fset.Position(pos).Line
}

func (x *Index) take(c *ast.Comment, out []*ast.Comment) []*ast.Comment {
	if x.taken[c] {
		return out
	}
	x.taken[c] = true
	return append(out, c)
}

// Doc takes the directives of a doc comment group.
func (x *Index) Doc(g *ast.CommentGroup) []*ast.Comment {
	if g == nil {
		return nil
	}
	var out []*ast.Comment
	for _, c := range g.List {
		if IsDirective(c.Text) {
			out = x.take(c, out)
		}
	}
	return out
}

// Statement takes the directives attached to stmt.
func (x *Index) Statement(stmt ast.Stmt) []*ast.Comment {
	var out []*ast.Comment
	if g := x.groupEnd[x.line(stmt.Pos())-1]; g != nil {
		for _, c := range g.List {
			if IsDirective(c.Text) {
				out = x.take(c, out)
			}
		}
	}
	for _, c := range x.byLine[x.line(stmt.End())] {
		if c.Slash >= stmt.End() {
			out = x.take(c, out)
		}
	}
	return out
}

// Rest takes every directive not handed out yet, in source order.
func (x *Index) Rest() []*ast.Comment {
	var out []*ast.Comment
	for _, c := range x.directives {
		out = x.take(c, out)
	}
	return out
}

// Len returns the number of directive comments in the file.
func (x *Index) Len() int { return len(x.directives) }
