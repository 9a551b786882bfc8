package assign

import (
	"fmt"
	"strings"
)

// SyntaxError reports malformed assignment text.
type SyntaxError struct {
	Line, Col int
	Msg       string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Msg)
}

type tokKind int

const (
	tEOF tokKind = iota
	tWord
	tLParen
	tRParen
	tSep
)

type token struct {
	kind      tokKind
	text      string
	line, col int
}

type lexer struct {
	src       string
	pos       int
	line, col int
}

func lex(src string) ([]token, error) {
	l := &lexer{src: src, line: 1, col: 1}
	var toks []token
	for {
		t, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, t)
		if t.kind == tEOF {
			return toks, nil
		}
	}
}

func (l *lexer) advance(n int) {
	for i := 0; i < n && l.pos < len(l.src); i++ {
		if l.src[l.pos] == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
		l.pos++
	}
}

func syntaxErrorf(line, col int, format string, args ...any) error {
	return &SyntaxError{Line: line, Col: col, Msg: fmt.Sprintf(format, args...)}
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == ' ' || c == '\t' || c == '\r' {
			l.advance(1)
			continue
		}
		if c == '#' {
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.advance(1)
			}
			continue
		}
		if c == '\\' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '\n' {
			l.advance(2)
			continue
		}
		break
	}
	t := token{line: l.line, col: l.col}
	if l.pos >= len(l.src) {
		return t, nil
	}
	switch l.src[l.pos] {
	case '\n', ';':
		t.kind, t.text = tSep, l.src[l.pos:l.pos+1]
		l.advance(1)
		return t, nil
	case '(':
		t.kind, t.text = tLParen, "("
		l.advance(1)
		return t, nil
	case ')':
		t.kind, t.text = tRParen, ")"
		l.advance(1)
		return t, nil
	}
	start := l.pos
	depth := 0
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if depth == 0 && strings.IndexByte(" \t\r\n;()", c) >= 0 {
			break
		}
		switch c {
		case '[':
			depth++
			l.advance(1)
		case ']':
			if depth > 0 {
				depth--
			}
			l.advance(1)
		case '\\':
			l.advance(2)
		case '\'':
			if err := l.skipQuote(t, '\'', false); err != nil {
				return t, err
			}
		case '"':
			if err := l.skipQuote(t, '"', true); err != nil {
				return t, err
			}
		case '$':
			if l.pos+1 < len(l.src) && l.src[l.pos+1] == '\'' {
				l.advance(1)
				if err := l.skipQuote(t, '\'', true); err != nil {
					return t, err
				}
				break
			}
			l.advance(1)
		default:
			l.advance(1)
		}
	}
	if depth > 0 {
		return t, syntaxErrorf(t.line, t.col, "unterminated subscript")
	}
	t.kind, t.text = tWord, l.src[start:l.pos]
	return t, nil
}

// skipQuote consumes a quoted section starting at the opening quote. Inside
// $'...' and "..." a backslash escapes the next byte.
func (l *lexer) skipQuote(t token, q byte, escapes bool) error {
	l.advance(1)
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == q:
			l.advance(1)
			return nil
		case c == '\\' && escapes:
			l.advance(2)
		default:
			l.advance(1)
		}
	}
	return syntaxErrorf(t.line, t.col, "unterminated %c quote", q)
}
