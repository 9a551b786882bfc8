// Package assign parses compound assignment text, the form the tree
// serializer writes, and applies it to a store.
package assign

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/agentic-research/vartree/api"
	"github.com/agentic-research/vartree/internal/shquote"
)

// Kind is the shape of a parsed value.
type Kind int

const (
	Scalar Kind = iota
	Compound
	Indexed
	Assoc
)

func (k Kind) String() string {
	switch k {
	case Compound:
		return "compound"
	case Indexed:
		return "indexed"
	case Assoc:
		return "assoc"
	}
	return "scalar"
}

// Value is the right-hand side of an assignment.
type Value struct {
	Kind    Kind
	Scalar  string
	Members []*Assignment // Compound
	Elems   []Elem        // Indexed and Assoc
}

// Elem is one array element. Key is empty for positional elements.
type Elem struct {
	Key   string
	Value *Value
}

// Assignment is one statement: an optional declaration and a value.
type Assignment struct {
	Name string
	// Type is the type name the statement declares, if any.
	Type string
	// Declared is set when typeset options were given.
	Declared bool
	Attrs    api.Attr
	Size     int
	// Shape is the shape forced by -C, -a or -A, or Scalar.
	Shape Kind
	// Value is nil for a bare declaration.
	Value *Value

	Line, Col int
}

type parser struct {
	toks []token
	i    int
}

// Parse reads a list of assignments separated by newlines or ';'.
func Parse(src string) ([]*Assignment, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	var out []*Assignment
	for {
		p.skipSeps()
		if p.peek().kind == tEOF {
			return out, nil
		}
		a, err := p.statement()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
		if t := p.peek(); t.kind == tLParen || t.kind == tRParen {
			return nil, p.errorf(t, "unexpected %q", t.text)
		}
	}
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) peekAt(n int) token {
	if p.i+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.i+n]
}

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tEOF {
		p.i++
	}
	return t
}

func (p *parser) skipSeps() {
	for p.peek().kind == tSep {
		p.i++
	}
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return syntaxErrorf(t.line, t.col, format, args...)
}

func (p *parser) statement() (*Assignment, error) {
	t := p.next()
	if t.kind != tWord {
		return nil, p.errorf(t, "expected assignment, found %q", t.text)
	}
	a := &Assignment{Line: t.line, Col: t.col}
	switch {
	case t.text == "typeset":
		a.Declared = true
		for p.peek().kind == tWord && strings.HasPrefix(p.peek().text, "-") {
			o := p.next()
			if err := a.options(o.text); err != nil {
				return nil, p.errorf(o, "%v", err)
			}
		}
		t = p.next()
	case !isAssign(t.text) && p.peek().kind == tWord && ValidType(t.text):
		a.Type = t.text
		t = p.next()
	}
	if t.kind != tWord {
		return nil, p.errorf(t, "expected name, found %q", t.text)
	}
	name, rest, ok := splitAssign(t.text)
	if !ok {
		if a.Declared || a.Type != "" {
			a.Name = t.text
			return a, nil
		}
		return nil, p.errorf(t, "expected assignment, found %q", t.text)
	}
	a.Name = name
	v, err := p.value(rest, a.Shape)
	if err != nil {
		return nil, err
	}
	a.Value = v
	return a, nil
}

// value parses the text after '='. An empty remainder followed by '('
// opens a compound or array.
func (p *parser) value(rest string, shape Kind) (*Value, error) {
	if rest == "" && p.peek().kind == tLParen {
		p.next()
		return p.paren(shape)
	}
	s, err := shquote.Unquote(rest)
	if err != nil {
		return nil, p.errorf(p.toks[p.i-1], "%v", err)
	}
	return &Value{Kind: Scalar, Scalar: s}, nil
}

// paren parses the body after '(' up to and including the matching ')'.
func (p *parser) paren(shape Kind) (*Value, error) {
	p.skipSeps()
	t := p.peek()
	switch {
	case t.kind == tRParen:
		p.next()
		if shape == Scalar {
			shape = Compound
		}
		return &Value{Kind: shape}, nil
	case t.kind == tWord && strings.HasPrefix(t.text, "["):
		return p.keyed(shape)
	case t.kind == tWord && (t.text == "typeset" || isAssign(t.text) ||
		(ValidType(t.text) && p.peekAt(1).kind == tWord && isAssign(p.peekAt(1).text))):
		return p.compound()
	}
	return p.indexed()
}

func (p *parser) compound() (*Value, error) {
	v := &Value{Kind: Compound}
	for {
		p.skipSeps()
		switch t := p.peek(); t.kind {
		case tRParen:
			p.next()
			return v, nil
		case tEOF:
			return nil, p.errorf(t, "unterminated compound")
		}
		a, err := p.statement()
		if err != nil {
			return nil, err
		}
		v.Members = append(v.Members, a)
	}
}

func (p *parser) keyed(shape Kind) (*Value, error) {
	v := &Value{Kind: Indexed}
	if shape == Assoc {
		v.Kind = Assoc
	}
	for {
		p.skipSeps()
		t := p.next()
		switch t.kind {
		case tRParen:
			return v, nil
		case tWord:
		default:
			return nil, p.errorf(t, "expected [key]=value, found %q", t.text)
		}
		key, rest, ok := splitAssign(t.text)
		if !ok || !strings.HasPrefix(key, "[") || !strings.HasSuffix(key, "]") {
			return nil, p.errorf(t, "expected [key]=value, found %q", t.text)
		}
		k, err := shquote.Unquote(key[1 : len(key)-1])
		if err != nil {
			return nil, p.errorf(t, "%v", err)
		}
		if k == "" {
			return nil, p.errorf(t, "empty subscript")
		}
		if !isIndex(k) {
			v.Kind = Assoc
		}
		el, err := p.value(rest, Scalar)
		if err != nil {
			return nil, err
		}
		v.Elems = append(v.Elems, Elem{Key: k, Value: el})
	}
}

func (p *parser) indexed() (*Value, error) {
	v := &Value{Kind: Indexed}
	for {
		p.skipSeps()
		t := p.next()
		switch t.kind {
		case tRParen:
			return v, nil
		case tLParen:
			el, err := p.paren(Scalar)
			if err != nil {
				return nil, err
			}
			v.Elems = append(v.Elems, Elem{Value: el})
		case tWord:
			s, err := shquote.Unquote(t.text)
			if err != nil {
				return nil, p.errorf(t, "%v", err)
			}
			v.Elems = append(v.Elems, Elem{Value: &Value{Kind: Scalar, Scalar: s}})
		default:
			return nil, p.errorf(t, "unterminated array")
		}
	}
}

// options applies one typeset option word such as "-x", "-L8" or "-xi".
func (a *Assignment) options(w string) error {
	for i := 1; i < len(w); i++ {
		c := w[i]
		switch c {
		case 'C':
			a.Shape = Compound
			continue
		case 'a':
			a.Shape = Indexed
			continue
		case 'A':
			a.Shape = Assoc
			continue
		}
		f, ok := api.Lookup(c)
		if !ok {
			return fmt.Errorf("unknown option -%c", c)
		}
		a.Attrs |= f.Attr
		if !f.Sized {
			continue
		}
		j := i + 1
		for j < len(w) && w[j] >= '0' && w[j] <= '9' {
			j++
		}
		if j > i+1 {
			a.Size, _ = strconv.Atoi(w[i+1 : j])
			i = j - 1
		}
	}
	return nil
}

// splitAssign splits a word at its first unquoted '=' outside a subscript.
// The name part must start like a variable name or a subscript.
func splitAssign(w string) (name, rest string, ok bool) {
	depth := 0
	for i := 0; i < len(w); i++ {
		c := w[i]
		switch {
		case c == '\\' && depth == 0:
			return "", "", false
		case c == '\\':
			i++
		case c == '\'' && depth > 0:
			for i++; i < len(w) && w[i] != '\''; i++ {
			}
		case c == '"' && depth > 0:
			for i++; i < len(w) && w[i] != '"'; i++ {
				if w[i] == '\\' {
					i++
				}
			}
		case c == '\'' || c == '"' || c == '$':
			return "", "", false
		case c == '[':
			depth++
		case c == ']':
			depth--
		case c == '=' && depth == 0:
			if i == 0 || !nameStart(w[0]) {
				return "", "", false
			}
			return w[:i], w[i+1:], true
		}
	}
	return "", "", false
}

func nameStart(c byte) bool {
	return c == '_' || c == '[' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isAssign(w string) bool {
	_, _, ok := splitAssign(w)
	return ok
}

// ValidType reports whether w can name a type.
func ValidType(w string) bool {
	if w == "" || w == "typeset" {
		return false
	}
	for i := 0; i < len(w); i++ {
		c := w[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func isIndex(s string) bool {
	n, err := strconv.Atoi(s)
	return err == nil && n >= 0
}
