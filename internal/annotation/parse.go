package annotation

import (
	"fmt"
	"go/scanner"
	"go/token"
	"strconv"
	"strings"

	"github.com/roach88/pre/internal/diag"
	"github.com/roach88/pre/internal/precondition"
)

// item is one token of directive content with source positions.
type item struct {
	tok token.Token
	lit string
	pos token.Pos
	end token.Pos
}

func (it item) String() string {
	switch it.tok {
	case token.EOF:
		return "end of directive"
	case token.IDENT:
		return fmt.Sprintf("`%s`", it.lit)
	case token.STRING:
		return "string literal"
	default:
		if it.lit != "" {
			return fmt.Sprintf("`%s`", it.lit)
		}
		return fmt.Sprintf("`%s`", it.tok)
	}
}

// tokens scans content and maps every token to base+offset. Automatically
// inserted semicolons are dropped.
func tokens(content string, base token.Pos) ([]item, error) {
	fset := token.NewFileSet()
	file := fset.AddFile("", fset.Base(), len(content))
	src := []byte(content)

	var firstErr error
	var s scanner.Scanner
	s.Init(file, src, func(p token.Position, msg string) {
		if firstErr == nil {
			at := base + token.Pos(p.Offset)
			firstErr = &Error{Span: diag.Point(at), Message: msg}
		}
	}, 0)

	var out []item
	for {
		p, tok, lit := s.Scan()
		if tok == token.SEMICOLON && lit == "\n" {
			continue
		}
		off := file.Offset(p)
		at := base + token.Pos(off)
		if tok == token.EOF {
			end := base + token.Pos(len(content))
			out = append(out, item{tok: tok, pos: end, end: end})
			break
		}
		width := len(lit)
		if width == 0 {
			width = len(tok.String())
		}
		out = append(out, item{tok: tok, lit: lit, pos: at, end: at + token.Pos(width)})
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// cursor walks a token slice. The final item is always EOF.
type cursor struct {
	items []item
	i     int
}

func (c *cursor) peek() item { return c.items[c.i] }

func (c *cursor) peekAt(n int) item {
	if c.i+n >= len(c.items) {
		return c.items[len(c.items)-1]
	}
	return c.items[c.i+n]
}

func (c *cursor) next() item {
	it := c.items[c.i]
	if it.tok != token.EOF {
		c.i++
	}
	return it
}

func (c *cursor) expect(tok token.Token, what string) (item, error) {
	it := c.next()
	if it.tok != tok {
		return it, unexpected(it, what)
	}
	return it, nil
}

func (c *cursor) expectIdent(name string) (item, error) {
	it := c.next()
	if it.tok != token.IDENT || it.lit != name {
		return it, unexpected(it, "`"+name+"`")
	}
	return it, nil
}

func (c *cursor) done() error {
	if it := c.peek(); it.tok != token.EOF {
		return unexpected(it, "end of directive")
	}
	return nil
}

func unexpected(it item, want string) error {
	return &Error{
		Span:    diag.Span{Pos: it.pos, End: it.end},
		Message: fmt.Sprintf("expected %s, found %s", want, it),
	}
}

// parseStatement parses `condition [, reason = "..."]`. Empty content is an
// empty marker when allowEmpty is set.
func parseStatement(content string, base token.Pos, allowEmpty bool) (*precondition.Precondition, error) {
	items, err := tokens(content, base)
	if err != nil {
		return nil, err
	}
	c := &cursor{items: items}
	if c.peek().tok == token.EOF {
		if allowEmpty {
			return nil, nil
		}
		return nil, unexpected(c.peek(), "a condition")
	}

	p, err := parseCondition(c)
	if err != nil {
		return nil, err
	}
	p.ReasonAt = p.End

	if c.peek().tok == token.COMMA {
		c.next()
		if _, err := c.expectIdent("reason"); err != nil {
			return nil, err
		}
		if _, err := c.expect(token.ASSIGN, "`=`"); err != nil {
			return nil, err
		}
		lit, err := c.expect(token.STRING, "string literal")
		if err != nil {
			return nil, err
		}
		text, err := unquote(lit)
		if err != nil {
			return nil, err
		}
		p.Reason = &precondition.Reason{Text: text, Pos: lit.pos, End: lit.end}
	}
	if err := c.done(); err != nil {
		return nil, err
	}
	return p, nil
}

// parseCondition parses a string literal or valid_ptr(ident).
func parseCondition(c *cursor) (*precondition.Precondition, error) {
	first := c.next()
	switch {
	case first.tok == token.STRING:
		text, err := unquote(first)
		if err != nil {
			return nil, err
		}
		return &precondition.Precondition{
			Kind: precondition.Custom(text),
			Pos:  first.pos,
			End:  first.end,
		}, nil

	case first.tok == token.IDENT && first.lit == precondition.ValidPtrKeyword:
		if _, err := c.expect(token.LPAREN, "`(`"); err != nil {
			return nil, err
		}
		ident, err := c.expect(token.IDENT, "identifier")
		if err != nil {
			return nil, err
		}
		rparen, err := c.expect(token.RPAREN, "`)`")
		if err != nil {
			return nil, err
		}
		return &precondition.Precondition{
			Kind: precondition.ValidPtr(ident.lit),
			Pos:  first.pos,
			End:  rparen.end,
		}, nil
	}
	return nil, unexpected(first, "one of: string literal, `valid_ptr`")
}

// parseForward parses `[target] [,] [ptr(a, b, ...)]`.
func parseForward(content string, base token.Pos) (*Forward, error) {
	items, err := tokens(content, base)
	if err != nil {
		return nil, err
	}
	c := &cursor{items: items}
	f := &Forward{}

	isPtrClause := func() bool {
		return c.peek().tok == token.IDENT && c.peek().lit == "ptr" && c.peekAt(1).tok == token.LPAREN
	}

	if c.peek().tok == token.IDENT && !isPtrClause() {
		first := c.next()
		parts := []string{first.lit}
		for c.peek().tok == token.PERIOD {
			c.next()
			sel, err := c.expect(token.IDENT, "identifier")
			if err != nil {
				return nil, err
			}
			parts = append(parts, sel.lit)
		}
		f.Target = strings.Join(parts, ".")
		f.TargetPos = first.pos
		if c.peek().tok == token.COMMA {
			c.next()
		}
	}

	if isPtrClause() {
		c.next()
		c.next()
		for c.peek().tok != token.RPAREN {
			ident, err := c.expect(token.IDENT, "identifier")
			if err != nil {
				return nil, err
			}
			f.Pointers = append(f.Pointers, PointerArg{Name: ident.lit, Pos: ident.pos})
			if c.peek().tok != token.COMMA {
				break
			}
			c.next()
		}
		if _, err := c.expect(token.RPAREN, "`)`"); err != nil {
			return nil, err
		}
	}

	if f.Target == "" && len(f.Pointers) == 0 {
		return nil, unexpected(c.peek(), "a target function or `ptr(...)`")
	}
	if err := c.done(); err != nil {
		return nil, err
	}
	return f, nil
}

// parseDefsFor parses `[pub] <import path>`. The path may be quoted.
func parseDefsFor(content string, base token.Pos) (*DefsFor, error) {
	fields := strings.Fields(content)
	d := &DefsFor{}
	if len(fields) > 0 && fields[0] == "pub" {
		d.Public = true
		fields = fields[1:]
	}
	end := base + token.Pos(len(content))
	if len(fields) != 1 {
		return nil, &Error{
			Span:    diag.Span{Pos: base, End: end},
			Message: "expected `defs_for [pub] <import path>`",
		}
	}
	path := fields[0]
	at := base + token.Pos(strings.LastIndex(content, path))
	if strings.HasPrefix(path, `"`) {
		p, err := strconv.Unquote(path)
		if err != nil {
			return nil, &Error{Span: diag.Span{Pos: at, End: end}, Message: "malformed import path " + path}
		}
		path = p
	}
	if path == "" {
		return nil, &Error{Span: diag.Span{Pos: at, End: end}, Message: "import path must not be empty"}
	}
	d.Path = path
	d.Pos = at
	return d, nil
}

func unquote(it item) (string, error) {
	s, err := strconv.Unquote(it.lit)
	if err != nil {
		return "", &Error{
			Span:    diag.Span{Pos: it.pos, End: it.end},
			Message: fmt.Sprintf("malformed string literal %s", it.lit),
		}
	}
	return s, nil
}
