package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttrOptions(t *testing.T) {
	a := Export | LJust | Integer
	assert.Equal(t, []string{"-x", "-i", "-L8"}, a.Options(8))
	assert.Equal(t, "-x -i -L", a.String())
	assert.Equal(t, []string{"export", "integer", "left"}, a.Names())
}

func TestAttrStructuralBitsNotRendered(t *testing.T) {
	a := Array | Assoc | KeepOnEmpty
	assert.Empty(t, a.Options(0))
	assert.True(t, a.Has(Assoc))
	assert.False(t, a.Has(0))
}

func TestLookup(t *testing.T) {
	f, ok := Lookup('u')
	assert.True(t, ok)
	assert.Equal(t, Upper, f.Attr)

	_, ok = Lookup('q')
	assert.False(t, ok)
}
