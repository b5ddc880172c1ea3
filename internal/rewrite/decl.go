package rewrite

import (
	"go/ast"

	"github.com/roach88/pre/internal/annotation"
	"github.com/roach88/pre/internal/diag"
	"github.com/roach88/pre/internal/fingerprint"
	"github.com/roach88/pre/internal/validate"
)

// decl attaches the marker parameter to fn when its doc declares
// preconditions.
func (r *fileRun) decl(fn *ast.FuncDecl) {
	comments := r.idx.Doc(fn.Doc)
	if len(comments) == 0 {
		return
	}

	anns, failed := r.parse(comments)
	var requires []*annotation.Annotation
	for _, a := range anns {
		if a.Verb == annotation.VerbRequire {
			requires = append(requires, a)
			continue
		}
		r.unused(a, "only //pre:require applies to a function declaration")
	}
	if len(requires) == 0 {
		return
	}

	res := validate.Node(r.pass.Sink, requires)
	if failed || res.Failed {
		return
	}
	if len(res.Preconditions) == 0 {
		for _, a := range requires {
			r.unused(a, "")
		}
		return
	}

	marker := fingerprint.Encode(res.Preconditions)
	params := fn.Type.Params
	if n := len(params.List); n > 0 {
		if _, ok := params.List[n-1].Type.(*ast.Ellipsis); ok {
			r.report(diag.Errorf(diag.MalformedAnnotation, diag.SpanOf(fn.Name),
				"cannot attach preconditions to a variadic function"))
			return
		}
	}
	AppendParam(params, marker, r.pkg)
	r.marked = true
	r.stats.Declarations++
}

// AppendParam adds the marker parameter to params, unnamed when the
// existing parameters are unnamed.
func AppendParam(params *ast.FieldList, marker fingerprint.Marker, pkg string) {
	field := marker.Param(pkg)
	if len(params.List) > 0 && len(params.List[0].Names) == 0 {
		field.Names = nil
	}
	params.List = append(params.List, field)
}
