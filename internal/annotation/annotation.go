// Package annotation parses //pre: directive comments.
//
// Directives:
//
//	//pre:require                                   empty marker
//	//pre:require "<text>", reason = "<why>"        custom precondition
//	//pre:require valid_ptr(<ident>), reason = "<why>"
//	//pre:assert <condition>, reason = "<why>"      call-site assertion
//	//pre:def [<target>] [ptr(<arg>, ...)]          forwarding statement
//	//pre:defs_for [pub] <import path>              mirror a stub package
//
// The reason clause is optional at parse time. Parsing a directive either
// yields an Annotation or an *Error anchored at the offending token; callers
// keep going with the next directive.
package annotation

import (
	"fmt"
	"go/ast"
	"go/token"
	"strings"

	"github.com/roach88/pre/internal/diag"
	"github.com/roach88/pre/internal/precondition"
)

// Prefix starts every directive comment.
const Prefix = "//pre:"

// Verb is the directive name after the prefix.
type Verb int

const (
	VerbRequire Verb = iota // declaration precondition
	VerbAssert              // call-site assertion
	VerbDef                 // forwarding statement
	VerbDefsFor             // mirror annotation
)

var verbNames = map[Verb]string{
	VerbRequire: "require",
	VerbAssert:  "assert",
	VerbDef:     "def",
	VerbDefsFor: "defs_for",
}

func (v Verb) String() string {
	if s, ok := verbNames[v]; ok {
		return s
	}
	return "unknown"
}

// Annotation is one parsed directive.
type Annotation struct {
	Verb    Verb
	Comment *ast.Comment

	// Precondition is set for require/assert directives with content.
	Precondition *precondition.Precondition
	// Forward is set for def directives.
	Forward *Forward
	// DefsFor is set for defs_for directives.
	DefsFor *DefsFor
}

// IsEmpty reports whether the annotation is an empty require marker.
func (a *Annotation) IsEmpty() bool {
	return a.Verb == VerbRequire && a.Precondition == nil
}

// Span covers the whole directive comment.
func (a *Annotation) Span() diag.Span {
	return diag.SpanOf(a.Comment)
}

// Forward redirects a call to another function.
type Forward struct {
	// Target is the qualified callee, e.g. "unsafeptr.Read". Empty keeps
	// the original callee.
	Target    string
	TargetPos token.Pos
	// Pointers lists argument source texts to pass by address.
	Pointers []PointerArg
}

// PointerArg is one argument named in a ptr(...) clause.
type PointerArg struct {
	Name string
	Pos  token.Pos
}

// DefsFor names the external package a stub package mirrors.
type DefsFor struct {
	Path   string
	Public bool
	Pos    token.Pos
}

// Error is a syntax error inside a directive.
type Error struct {
	Span    diag.Span
	Message string
}

func (e *Error) Error() string { return e.Message }

// Diagnostic converts the error into a malformed-annotation diagnostic.
func (e *Error) Diagnostic() diag.Diagnostic {
	return diag.Errorf(diag.MalformedAnnotation, e.Span, "%s", e.Message)
}

// IsDirective reports whether a comment text is a //pre: directive.
func IsDirective(text string) bool {
	return strings.HasPrefix(text, Prefix)
}

// Parse parses one comment. It returns (nil, nil) when the comment is not
// a directive.
func Parse(c *ast.Comment) (*Annotation, error) {
	if !IsDirective(c.Text) {
		return nil, nil
	}
	rest := c.Text[len(Prefix):]
	name := rest
	if i := strings.IndexAny(rest, " \t"); i >= 0 {
		name = rest[:i]
	}

	var verb Verb
	found := false
	for v, n := range verbNames {
		if n == name {
			verb, found = v, true
			break
		}
	}
	if !found {
		return nil, &Error{
			Span:    diag.SpanOf(c),
			Message: fmt.Sprintf("unknown directive %q: expected one of require, assert, def, defs_for", Prefix+name),
		}
	}

	offset := len(Prefix) + len(name)
	content := c.Text[offset:]
	base := c.Slash + token.Pos(offset)
	ann := &Annotation{Verb: verb, Comment: c}

	switch verb {
	case VerbRequire, VerbAssert:
		p, err := parseStatement(content, base, verb == VerbRequire)
		if err != nil {
			return nil, err
		}
		ann.Precondition = p
	case VerbDef:
		f, err := parseForward(content, base)
		if err != nil {
			return nil, err
		}
		ann.Forward = f
	case VerbDefsFor:
		d, err := parseDefsFor(content, base)
		if err != nil {
			return nil, err
		}
		ann.DefsFor = d
	}
	return ann, nil
}
