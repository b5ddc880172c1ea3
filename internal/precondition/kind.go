package precondition

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Tag identifies the variant of a Kind. The numeric order is the primary
// sort key of the canonical order.
type Tag int

const (
	// TagCustom is a condition spelled out as free-form text.
	TagCustom Tag = iota
	// TagValidPtr requires that an identifier refers to a valid pointer.
	TagValidPtr
)

var tagNames = map[Tag]string{
	TagCustom:   "custom",
	TagValidPtr: "valid_ptr",
}

func (t Tag) String() string {
	if s, ok := tagNames[t]; ok {
		return s
	}
	return "unknown"
}

// ValidPtrKeyword is the keyword of the structured pointer-validity form.
const ValidPtrKeyword = "valid_ptr"

// Kind is one condition. The zero Kind is an empty custom condition.
//
// Kind is comparable; two kinds are the same logical condition iff they
// are equal.
type Kind struct {
	Tag Tag
	// Value is the condition text for TagCustom and the identifier for
	// TagValidPtr.
	Value string
}

// Custom returns a free-form condition. The text is NFC-normalized so that
// canonically equivalent spellings produce the same fingerprint.
func Custom(text string) Kind {
	return Kind{Tag: TagCustom, Value: norm.NFC.String(text)}
}

// ValidPtr returns the pointer-validity condition for ident.
func ValidPtr(ident string) Kind {
	return Kind{Tag: TagValidPtr, Value: ident}
}

// Compare orders kinds by tag, then by value. It returns -1, 0 or +1.
func Compare(a, b Kind) int {
	switch {
	case a.Tag < b.Tag:
		return -1
	case a.Tag > b.Tag:
		return 1
	}
	return strings.Compare(a.Value, b.Value)
}

// String renders the kind in annotation syntax.
func (k Kind) String() string {
	switch k.Tag {
	case TagCustom:
		return strconv.Quote(k.Value)
	case TagValidPtr:
		return fmt.Sprintf("%s(%s)", ValidPtrKeyword, k.Value)
	default:
		return fmt.Sprintf("unknown(%q)", k.Value)
	}
}
