package annotation

import (
	"go/ast"
	"go/parser"
	"go/token"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const indexSource = `package p

//pre:require "a", reason = "r"
func F() {
	x := 1 //pre:assert "trailing", reason = "r"

	// Leading group.
	//pre:assert "leading", reason = "r"
	if x > 0 {
		g() //pre:assert "inner", reason = "r"
	}

	//pre:assert "detached", reason = "r"

	g()
}

func g() {}
`

func texts(cs []*ast.Comment) []string {
	var out []string
	for _, c := range cs {
		out = append(out, c.Text)
	}
	return out
}

func TestIndexAttachment(t *testing.T) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "p.go", indexSource, parser.ParseComments)
	require.NoError(t, err)
	x := NewIndex(fset, f)
	assert.Equal(t, 5, x.Len())

	fn := f.Decls[0].(*ast.FuncDecl)
	assert.Equal(t, []string{`//pre:require "a", reason = "r"`}, texts(x.Doc(fn.Doc)))
	assert.Empty(t, x.Doc(fn.Doc), "each comment is handed out once")

	body := fn.Body.List
	assert.Equal(t, []string{`//pre:assert "trailing", reason = "r"`}, texts(x.Statement(body[0])))
	assert.Equal(t, []string{`//pre:assert "leading", reason = "r"`}, texts(x.Statement(body[1])))

	inner := body[1].(*ast.IfStmt).Body.List[0]
	assert.Equal(t, []string{`//pre:assert "inner", reason = "r"`}, texts(x.Statement(inner)))

	assert.Empty(t, x.Statement(body[2]), "a blank line detaches the group")
	assert.Equal(t, []string{`//pre:assert "detached", reason = "r"`}, texts(x.Rest()))
	assert.Empty(t, x.Rest())
}

func TestIndexOuterStatementTakesTrailingComment(t *testing.T) {
	src := "package p\n\nfunc F() {\n\tif true { g() } //pre:assert \"x\", reason = \"r\"\n}\n\nfunc g() {}\n"
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "p.go", src, parser.ParseComments)
	require.NoError(t, err)
	x := NewIndex(fset, f)

	stmt := f.Decls[0].(*ast.FuncDecl).Body.List[0].(*ast.IfStmt)
	assert.Len(t, x.Statement(stmt), 1)
	assert.Empty(t, x.Statement(stmt.Body.List[0]))
}
