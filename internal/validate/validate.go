// Package validate checks the justifications and duplicates of the
// annotations collected from one declaration or one call.
package validate

import (
	"github.com/roach88/pre"
	"github.com/roach88/pre/internal/annotation"
	"github.com/roach88/pre/internal/diag"
	"github.com/roach88/pre/internal/precondition"
)

// Result is what survives validation of one node.
type Result struct {
	// Preconditions holds the first occurrence of every distinct condition.
	Preconditions precondition.List
	// Forward is the first forwarding statement, if any.
	Forward *annotation.Forward
	// Failed is set when an error was reported for the node. The node must
	// then be left unrewritten.
	Failed bool
}

// Node validates the preconditions and forwarding statements of one node.
// Every other verb in anns is ignored.
//
// Warnings never set Failed.
func Node(sink diag.Sink, anns []*annotation.Annotation) Result {
	var res Result
	first := make(map[precondition.Kind]*precondition.Precondition)
	var firstForward *annotation.Annotation

	report := func(d diag.Diagnostic) {
		if d.Severity == diag.Error {
			res.Failed = true
		}
		sink.Report(d)
	}

	for _, a := range anns {
		switch {
		case a.Forward != nil:
			if firstForward != nil {
				report(diag.Errorf(diag.DuplicateForwardingStatement, a.Span(), "duplicate forwarding statement").
					WithHelp(firstForward.Span(), "there can be just one definition site, try removing the wrong one"))
				continue
			}
			firstForward = a
			res.Forward = a.Forward

		case a.Precondition != nil:
			p := a.Precondition
			span := diag.Span{Pos: p.Pos, End: p.End}
			if prev, ok := first[p.Kind]; ok {
				report(diag.Errorf(diag.DuplicateAnnotation, span, "duplicate annotation of %s; combine into one", p.Kind).
					WithHelp(diag.Span{Pos: prev.Pos, End: prev.End}, "first written here"))
				continue
			}
			first[p.Kind] = p
			for _, d := range Justification(*p) {
				report(d)
			}
			res.Preconditions = append(res.Preconditions, *p)
		}
	}
	return res
}

// Justification checks the reason clause of a single precondition.
func Justification(p precondition.Precondition) []diag.Diagnostic {
	if !p.HasReason() {
		return []diag.Diagnostic{
			diag.Errorf(diag.MissingJustification, diag.Span{Pos: p.Pos, End: p.End}, "a justification is required").
				WithHelp(diag.Point(p.ReasonAt), "state why the precondition holds: `%s`", ReasonSnippet()),
		}
	}
	if IsPlaceholder(p.Reason.Text) {
		return []diag.Diagnostic{
			diag.Warnf(diag.PlaceholderJustification, diag.Span{Pos: p.Reason.Pos, End: p.Reason.End},
				"justification is probably not meaningful yet"),
		}
	}
	return nil
}

// ReasonSnippet is the ready-to-paste reason clause offered in help notes.
func ReasonSnippet() string {
	return `, reason = "` + pre.HintReason + `"`
}

// IsPlaceholder reports whether reason is one of the placeholder values,
// ignoring ASCII case.
func IsPlaceholder(reason string) bool {
	for _, p := range pre.PlaceholderReasons {
		if equalFoldASCII(reason, p) {
			return true
		}
	}
	return false
}

func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		if lower(a[i]) != lower(b[i]) {
			return false
		}
	}
	return true
}

func lower(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + 'a' - 'A'
	}
	return c
}
