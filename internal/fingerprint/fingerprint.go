// Package fingerprint encodes a set of preconditions as a marker type.
//
// The marker is an anonymous struct whose fields are named P0..Pn in
// canonical order. Each field has type pre.Custom or pre.ValidPtr and a
// struct tag carrying the condition:
//
//	struct {
//		P0 pre.Custom   `pre:"src is aligned"`
//		P1 pre.ValidPtr `pre:"src"`
//	}
//
// Two sets that are equal as sets always encode to the same marker, so the
// compiler's type identity check compares declared and asserted sets.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"go/ast"
	"go/token"
	"reflect"
	"strconv"
	"strings"

	"github.com/roach88/pre"
	"github.com/roach88/pre/internal/precondition"
)

// DomainMarker separates marker digests from other hashes.
const DomainMarker = "pre/fingerprint/v1"

// Marker is the canonical encoding of one precondition set.
type Marker struct {
	kinds []precondition.Kind
}

// Encode sorts l and drops repeated kinds.
func Encode(l precondition.List) Marker {
	return Marker{kinds: l.Sorted()}
}

// FromKinds builds a marker from kinds in any order.
func FromKinds(kinds ...precondition.Kind) Marker {
	l := make(precondition.List, len(kinds))
	for i, k := range kinds {
		l[i] = precondition.Precondition{Kind: k}
	}
	return Encode(l)
}

// Kinds returns the encoded kinds in canonical order.
func (m Marker) Kinds() []precondition.Kind {
	return append([]precondition.Kind(nil), m.kinds...)
}

// IsEmpty reports whether the marker encodes no condition. An empty marker
// is never attached.
func (m Marker) IsEmpty() bool { return len(m.kinds) == 0 }

// Equal reports whether m and o encode the same set.
func (m Marker) Equal(o Marker) bool {
	if len(m.kinds) != len(o.kinds) {
		return false
	}
	for i := range m.kinds {
		if m.kinds[i] != o.kinds[i] {
			return false
		}
	}
	return true
}

// FieldName is the name of the i-th marker field.
func FieldName(i int) string { return "P" + strconv.Itoa(i) }

// TypeName is the marker type name in the pre package for tag t.
func TypeName(t precondition.Tag) string {
	switch t {
	case precondition.TagCustom:
		return "Custom"
	case precondition.TagValidPtr:
		return "ValidPtr"
	}
	panic(fmt.Sprintf("fingerprint: unknown tag %d", t))
}

// Tag returns the struct tag value for k, e.g. pre:"src".
func Tag(k precondition.Kind) string {
	return pre.TagKey + ":" + strconv.Quote(k.Value)
}

// TagLiteral returns the Go literal spelling of Tag(k). A raw string is
// used unless the tag contains a backquote.
func TagLiteral(k precondition.Kind) string {
	tag := Tag(k)
	if strings.Contains(tag, "`") {
		return strconv.Quote(tag)
	}
	return "`" + tag + "`"
}

// Type returns the marker struct type. pkg is the local name under which
// the pre package is imported.
func (m Marker) Type(pkg string) *ast.StructType {
	fields := make([]*ast.Field, len(m.kinds))
	for i, k := range m.kinds {
		fields[i] = &ast.Field{
			Names: []*ast.Ident{ast.NewIdent(FieldName(i))},
			Type: &ast.SelectorExpr{
				X:   ast.NewIdent(pkg),
				Sel: ast.NewIdent(TypeName(k.Tag)),
			},
			Tag: &ast.BasicLit{Kind: token.STRING, Value: TagLiteral(k)},
		}
	}
	return &ast.StructType{Fields: &ast.FieldList{List: fields}}
}

// Param returns the blank parameter that carries the marker.
func (m Marker) Param(pkg string) *ast.Field {
	return &ast.Field{
		Names: []*ast.Ident{ast.NewIdent("_")},
		Type:  m.Type(pkg),
	}
}

// Value returns the zero composite literal of the marker type.
func (m Marker) Value(pkg string) *ast.CompositeLit {
	return &ast.CompositeLit{Type: m.Type(pkg)}
}

// String renders the canonical single-line text of the marker type with
// the pre package named "pre".
func (m Marker) String() string {
	var b strings.Builder
	b.WriteString("struct{")
	for i, k := range m.kinds {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s pre.%s %s", FieldName(i), TypeName(k.Tag), TagLiteral(k))
	}
	b.WriteString("}")
	return b.String()
}

// Digest is the hex SHA-256 of the canonical text under DomainMarker.
// Format: SHA256(domain + 0x00 + text).
func (m Marker) Digest() string {
	h := sha256.New()
	h.Write([]byte(DomainMarker))
	h.Write([]byte{0x00})
	h.Write([]byte(m.String()))
	return hex.EncodeToString(h.Sum(nil))
}

// DecodeField recovers the kind of one marker field from its type name and
// raw tag. ok is false when the field is not a marker field.
func DecodeField(typeName, tag string) (precondition.Kind, bool) {
	value, ok := reflect.StructTag(tag).Lookup(pre.TagKey)
	if !ok {
		return precondition.Kind{}, false
	}
	switch typeName {
	case "Custom":
		return precondition.Kind{Tag: precondition.TagCustom, Value: value}, true
	case "ValidPtr":
		return precondition.ValidPtr(value), true
	}
	return precondition.Kind{}, false
}
