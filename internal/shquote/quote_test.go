package shquote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuote(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "''"},
		{"plain", "plain"},
		{"a/b.c-d", "a/b.c-d"},
		{"two words", "'two words'"},
		{"$HOME", "'$HOME'"},
		{"it's", `$'it\'s'`},
		{"tab\there", `$'tab\there'`},
		{"line\n", `$'line\n'`},
		{"\x01", `$'\x01'`},
		{"a=b", "a=b"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Quote(tt.in), "Quote(%q)", tt.in)
	}
}

func TestEscapeAssign(t *testing.T) {
	assert.Equal(t, `a\=b`, EscapeAssign("a=b"))
	assert.Equal(t, `x\=y=z`, EscapeAssign("x=y=z"))
	assert.Equal(t, `'a b=c'`, EscapeAssign(`'a b=c'`))
	assert.Equal(t, "plain", EscapeAssign("plain"))
}

func TestUnquoteInvertsQuote(t *testing.T) {
	for _, s := range []string{"", "plain", "two words", "it's", "tab\tand\nnewline", "\x01\x7f", `back\slash`, "a=b", "ünï"} {
		got, err := Unquote(Quote(s))
		require.NoError(t, err, s)
		assert.Equal(t, s, got)

		got, err = Unquote(EscapeAssign(Quote(s)))
		require.NoError(t, err, s)
		assert.Equal(t, s, got)
	}
}

func TestUnquoteForms(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`"a \"b\" \$c \d"`, `a "b" $c \d`},
		{`$'\101\x42\e'`, "AB\x1b"},
		{`pre'mid'"post"`, "premidpost"},
		{`a\ b`, "a b"},
	}
	for _, tt := range tests {
		got, err := Unquote(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestUnquoteUnterminated(t *testing.T) {
	for _, in := range []string{`'open`, `"open`, `$'open`} {
		_, err := Unquote(in)
		assert.ErrorIs(t, err, ErrUnterminated, in)
	}
}
