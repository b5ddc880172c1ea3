// Package diag defines the structured diagnostics emitted by the processor.
//
// Diagnostics never abort a pass. They are collected against the source
// span they describe and handed to a Sink; callers decide afterwards
// whether the run failed by asking the collector for errors.
package diag

import (
	"fmt"
	"go/token"
	"sort"
	"strings"
)

// Severity ranks a diagnostic.
type Severity int

const (
	// Warning never blocks the build.
	Warning Severity = iota
	// Error blocks the build.
	Error
)

func (s Severity) String() string {
	switch s {
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText renders the severity by name in JSON and YAML output.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Code identifies a diagnostic category.
type Code string

const (
	MissingJustification         Code = "missing-justification"
	PlaceholderJustification     Code = "placeholder-justification"
	DuplicateAnnotation          Code = "duplicate-annotation"
	DuplicateForwardingStatement Code = "duplicate-forwarding-statement"
	MalformedAnnotation          Code = "malformed-annotation"
	UnusedTopLevelAnnotation     Code = "unused-top-level-annotation"

	// Reported by the check pass.
	PreconditionMismatch  Code = "precondition-mismatch"
	MissingAssertion      Code = "missing-assertion"
	UnexpectedAssertion   Code = "unexpected-assertion"
	ConversionTakesMarker Code = "conversion-takes-marker"
)

// Span is a half-open source range. End may be token.NoPos for a point.
type Span struct {
	Pos token.Pos
	End token.Pos
}

// SpanOf returns the span covering n.
func SpanOf(n interface {
	Pos() token.Pos
	End() token.Pos
}) Span {
	return Span{Pos: n.Pos(), End: n.End()}
}

// Point returns an empty span at pos.
func Point(pos token.Pos) Span {
	return Span{Pos: pos, End: pos}
}

// IsValid reports whether the span points into a file.
func (s Span) IsValid() bool { return s.Pos.IsValid() }

// Help is a note attached to a diagnostic, optionally with its own span.
type Help struct {
	Message string
	Span    Span
}

// Diagnostic is one structured message about the source.
type Diagnostic struct {
	Code     Code
	Severity Severity
	Message  string
	Span     Span
	Help     []Help
}

// Sink receives diagnostics as they are produced.
type Sink interface {
	Report(d Diagnostic)
}

// Errorf builds an error diagnostic.
func Errorf(code Code, span Span, format string, args ...any) Diagnostic {
	return Diagnostic{Code: code, Severity: Error, Message: fmt.Sprintf(format, args...), Span: span}
}

// Warnf builds a warning diagnostic.
func Warnf(code Code, span Span, format string, args ...any) Diagnostic {
	return Diagnostic{Code: code, Severity: Warning, Message: fmt.Sprintf(format, args...), Span: span}
}

// WithHelp returns d with an additional help note.
func (d Diagnostic) WithHelp(span Span, format string, args ...any) Diagnostic {
	d.Help = append(d.Help, Help{Message: fmt.Sprintf(format, args...), Span: span})
	return d
}

// List collects diagnostics for one file set.
type List struct {
	fset  *token.FileSet
	items []Diagnostic
}

// NewList returns an empty collector resolving positions through fset.
func NewList(fset *token.FileSet) *List {
	return &List{fset: fset}
}

// Report implements Sink.
func (l *List) Report(d Diagnostic) {
	l.items = append(l.items, d)
}

// Len returns the number of collected diagnostics.
func (l *List) Len() int { return len(l.items) }

// All returns the diagnostics sorted by position, then code.
func (l *List) All() []Diagnostic {
	out := make([]Diagnostic, len(l.items))
	copy(out, l.items)
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := l.position(out[i].Span.Pos), l.position(out[j].Span.Pos)
		if pi.Filename != pj.Filename {
			return pi.Filename < pj.Filename
		}
		if pi.Offset != pj.Offset {
			return pi.Offset < pj.Offset
		}
		return out[i].Code < out[j].Code
	})
	return out
}

// HasErrors reports whether any error-severity diagnostic was collected.
func (l *List) HasErrors() bool {
	return l.Count(Error) > 0
}

// Count returns how many diagnostics of the given severity were collected.
func (l *List) Count(s Severity) int {
	n := 0
	for _, d := range l.items {
		if d.Severity == s {
			n++
		}
	}
	return n
}

// ByCode returns the collected diagnostics with the given code, in order.
func (l *List) ByCode(code Code) []Diagnostic {
	var out []Diagnostic
	for _, d := range l.All() {
		if d.Code == code {
			out = append(out, d)
		}
	}
	return out
}

// Position resolves pos against the list's file set.
func (l *List) Position(pos token.Pos) token.Position {
	return l.position(pos)
}

func (l *List) position(pos token.Pos) token.Position {
	if l.fset == nil || !pos.IsValid() {
		return token.Position{}
	}
	return l.fset.Position(pos)
}

// Resolved is a diagnostic with positions resolved, for machine-readable output.
type Resolved struct {
	Code     Code           `json:"code" yaml:"code"`
	Severity Severity       `json:"severity" yaml:"severity"`
	Message  string         `json:"message" yaml:"message"`
	File     string         `json:"file,omitempty" yaml:"file,omitempty"`
	Line     int            `json:"line,omitempty" yaml:"line,omitempty"`
	Column   int            `json:"column,omitempty" yaml:"column,omitempty"`
	Help     []ResolvedHelp `json:"help,omitempty" yaml:"help,omitempty"`
}

// ResolvedHelp is a help note with its position resolved.
type ResolvedHelp struct {
	Message string `json:"message" yaml:"message"`
	Line    int    `json:"line,omitempty" yaml:"line,omitempty"`
	Column  int    `json:"column,omitempty" yaml:"column,omitempty"`
}

// Resolve converts all collected diagnostics, sorted.
func (l *List) Resolve() []Resolved {
	all := l.All()
	out := make([]Resolved, 0, len(all))
	for _, d := range all {
		p := l.position(d.Span.Pos)
		r := Resolved{
			Code:     d.Code,
			Severity: d.Severity,
			Message:  d.Message,
			File:     p.Filename,
			Line:     p.Line,
			Column:   p.Column,
		}
		for _, h := range d.Help {
			hp := l.position(h.Span.Pos)
			r.Help = append(r.Help, ResolvedHelp{Message: h.Message, Line: hp.Line, Column: hp.Column})
		}
		out = append(out, r)
	}
	return out
}

// Format renders one diagnostic in the compiler style:
//
//	file.go:3:2: error[missing-justification]: message
//		help (file.go:3:20): add `, reason = "..."`
func (l *List) Format(d Diagnostic) string {
	var b strings.Builder
	if p := l.position(d.Span.Pos); p.IsValid() {
		fmt.Fprintf(&b, "%s: ", p)
	}
	fmt.Fprintf(&b, "%s[%s]: %s", d.Severity, d.Code, d.Message)
	for _, h := range d.Help {
		b.WriteString("\n\thelp")
		if hp := l.position(h.Span.Pos); hp.IsValid() {
			fmt.Fprintf(&b, " (%d:%d)", hp.Line, hp.Column)
		}
		fmt.Fprintf(&b, ": %s", h.Message)
	}
	return b.String()
}

// String renders every diagnostic, one per paragraph.
func (l *List) String() string {
	var parts []string
	for _, d := range l.All() {
		parts = append(parts, l.Format(d))
	}
	return strings.Join(parts, "\n")
}

// Discard is a Sink that drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Report(Diagnostic) {}
