package annotation

import (
	"errors"
	"go/ast"

	"github.com/roach88/pre/internal/diag"
)

// Collect parses every directive in the given comment groups, in source
// order. Syntax errors are reported to sink and the offending directive is
// skipped; its siblings are still returned.
func Collect(sink diag.Sink, groups ...*ast.CommentGroup) []*Annotation {
	var out []*Annotation
	for _, g := range groups {
		if g == nil {
			continue
		}
		for _, c := range g.List {
			ann, err := Parse(c)
			if err != nil {
				var perr *Error
				if errors.As(err, &perr) {
					sink.Report(perr.Diagnostic())
				} else {
					sink.Report(diag.Errorf(diag.MalformedAnnotation, diag.SpanOf(c), "%v", err))
				}
				continue
			}
			if ann != nil {
				out = append(out, ann)
			}
		}
	}
	return out
}

// HasDirective reports whether any comment of g is a //pre: directive.
func HasDirective(g *ast.CommentGroup) bool {
	if g == nil {
		return false
	}
	for _, c := range g.List {
		if IsDirective(c.Text) {
			return true
		}
	}
	return false
}

// Filter returns the annotations with the given verb.
func Filter(anns []*Annotation, verb Verb) []*Annotation {
	var out []*Annotation
	for _, a := range anns {
		if a.Verb == verb {
			out = append(out, a)
		}
	}
	return out
}
