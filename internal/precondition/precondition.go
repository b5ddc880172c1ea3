package precondition

import (
	"go/token"
	"slices"
)

// Reason is the justification attached to a precondition.
type Reason struct {
	Text string
	Pos  token.Pos // position of the string literal
	End  token.Pos
}

// Precondition is one contract obligation as written in one annotation.
type Precondition struct {
	Kind Kind
	// Reason is nil when the annotation has no reason clause.
	Reason *Reason

	// Pos and End span the condition expression.
	Pos token.Pos
	End token.Pos

	// ReasonAt is where a missing reason clause should be inserted.
	ReasonAt token.Pos
}

// HasReason reports whether a reason clause was written.
func (p Precondition) HasReason() bool { return p.Reason != nil }

// MustReason returns the reason text. It panics when the reason is absent;
// callers only use it after validation has passed.
func (p Precondition) MustReason() string {
	if p.Reason == nil {
		panic("precondition: reason expected but absent after validation")
	}
	return p.Reason.Text
}

// List is the set of preconditions attached to one declaration or call.
type List []Precondition

// Kinds returns the kinds in list order.
func (l List) Kinds() []Kind {
	out := make([]Kind, len(l))
	for i, p := range l {
		out[i] = p.Kind
	}
	return out
}

// Sorted returns the distinct kinds of l in canonical order. The result is
// independent of declaration order.
func (l List) Sorted() []Kind {
	kinds := l.Kinds()
	slices.SortStableFunc(kinds, Compare)
	return slices.CompactFunc(kinds, func(a, b Kind) bool { return a == b })
}

// Contains reports whether l holds a precondition of kind k.
func (l List) Contains(k Kind) bool {
	for _, p := range l {
		if p.Kind == k {
			return true
		}
	}
	return false
}

// Difference returns the kinds of a that are not in b, in canonical order.
func Difference(a, b []Kind) []Kind {
	seen := make(map[Kind]bool, len(b))
	for _, k := range b {
		seen[k] = true
	}
	var out []Kind
	for _, k := range a {
		if !seen[k] {
			out = append(out, k)
		}
	}
	slices.SortStableFunc(out, Compare)
	return out
}
