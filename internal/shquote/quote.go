// Package shquote quotes and unquotes shell words the way compound
// assignment text needs them.
package shquote

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrUnterminated = errors.New("unterminated quote")

func safeByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("_./-+,:@%^=", c) >= 0
}

// Quote returns s as a single shell word. Words made only of safe bytes are
// returned as they are; words with control bytes or single quotes use
// $'...'; everything else is single-quoted.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	plain, dollar := true, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !safeByte(c) {
			plain = false
		}
		if c == '\'' || c < 0x20 || c == 0x7f {
			dollar = true
		}
	}
	switch {
	case plain:
		return s
	case dollar:
		return dollarQuote(s)
	}
	return "'" + s + "'"
}

func dollarQuote(s string) string {
	var b strings.Builder
	b.WriteString("$'")
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		case '\a':
			b.WriteString(`\a`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		case '\v':
			b.WriteString(`\v`)
		case 0x1b:
			b.WriteString(`\E`)
		default:
			if c < 0x20 || c == 0x7f {
				fmt.Fprintf(&b, `\x%02x`, c)
			} else {
				b.WriteByte(c)
			}
		}
	}
	b.WriteByte('\'')
	return b.String()
}

// EscapeAssign escapes the first '=' of a quoted word when it comes before
// any quote, so the word cannot be read back as an assignment.
func EscapeAssign(q string) string {
	i := strings.IndexByte(q, '=')
	if i < 0 {
		return q
	}
	if j := strings.IndexAny(q, `'"`); j >= 0 && j < i {
		return q
	}
	return q[:i] + `\` + q[i:]
}

// Unquote decodes a shell word: single quotes, $'...', double quotes and
// backslash escapes.
func Unquote(w string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(w); {
		c := w[i]
		switch {
		case c == '\\':
			if i+1 < len(w) {
				b.WriteByte(w[i+1])
				i += 2
			} else {
				i++
			}
		case c == '\'':
			j := strings.IndexByte(w[i+1:], '\'')
			if j < 0 {
				return "", ErrUnterminated
			}
			b.WriteString(w[i+1 : i+1+j])
			i += j + 2
		case c == '$' && i+1 < len(w) && w[i+1] == '\'':
			n, err := ansiC(&b, w[i+2:])
			if err != nil {
				return "", err
			}
			i += 2 + n
		case c == '"':
			n, err := double(&b, w[i+1:])
			if err != nil {
				return "", err
			}
			i += 1 + n
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), nil
}

// ansiC decodes the body of $'...' and returns the bytes consumed,
// including the closing quote.
func ansiC(b *strings.Builder, s string) (int, error) {
	for i := 0; i < len(s); {
		c := s[i]
		if c == '\'' {
			return i + 1, nil
		}
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			i++
			continue
		}
		e := s[i+1]
		i += 2
		switch e {
		case 'a':
			b.WriteByte('\a')
		case 'b':
			b.WriteByte('\b')
		case 'e', 'E':
			b.WriteByte(0x1b)
		case 'f':
			b.WriteByte('\f')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'v':
			b.WriteByte('\v')
		case '\\', '\'', '"', '?':
			b.WriteByte(e)
		case 'x':
			j := i
			for j < len(s) && j < i+2 && isHex(s[j]) {
				j++
			}
			if j == i {
				b.WriteString(`\x`)
				continue
			}
			n, _ := strconv.ParseUint(s[i:j], 16, 8)
			b.WriteByte(byte(n))
			i = j
		case '0', '1', '2', '3', '4', '5', '6', '7':
			j := i - 1
			for j < len(s) && j < i+2 && s[j] >= '0' && s[j] <= '7' {
				j++
			}
			n, _ := strconv.ParseUint(s[i-1:j], 8, 8)
			b.WriteByte(byte(n))
			i = j
		default:
			b.WriteByte('\\')
			b.WriteByte(e)
		}
	}
	return 0, ErrUnterminated
}

// double decodes the body of "..." and returns the bytes consumed,
// including the closing quote.
func double(b *strings.Builder, s string) (int, error) {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			return i + 1, nil
		case c == '\\' && i+1 < len(s) && strings.IndexByte("$`\"\\\n", s[i+1]) >= 0:
			if s[i+1] != '\n' {
				b.WriteByte(s[i+1])
			}
			i++
		default:
			b.WriteByte(c)
		}
	}
	return 0, ErrUnterminated
}

func isHex(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}
