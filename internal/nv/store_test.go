package nv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/vartree/internal/cdt"
)

func TestScopeShadowing(t *testing.T) {
	s := NewStore()
	g := s.Global()
	_, err := s.Assign(g, "x", "outer")
	require.NoError(t, err)
	_, err = s.Assign(g, "y", "only-outer")
	require.NoError(t, err)

	fn, err := s.NewScope(g)
	require.NoError(t, err)
	_, err = s.Open(fn, "x", Create|NoScope)
	require.NoError(t, err)
	_, err = s.Assign(fn, "x", "inner")
	require.NoError(t, err)

	x, ok := s.Lookup(fn, "x")
	require.True(t, ok)
	assert.Equal(t, "inner", x.Value())

	y, ok := s.Lookup(fn, "y")
	require.True(t, ok)
	assert.Equal(t, "only-outer", y.Value(), "lookups fall through to the parent")

	gx, _ := s.Lookup(g, "x")
	assert.Equal(t, "outer", gx.Value())

	assert.Equal(t, []string{"x", "y"}, fn.Names())
}

func TestScopeCreateLandsInNearestScope(t *testing.T) {
	s := NewStore()
	fn, err := s.NewScope(nil)
	require.NoError(t, err)
	_, err = s.Assign(fn, "local", "1")
	require.NoError(t, err)

	_, ok := s.Lookup(s.Global(), "local")
	assert.False(t, ok)

	fn.Close()
	assert.Nil(t, fn.Parent())
	assert.Equal(t, 0, s.Len(), "closing a scope frees its entries")
}

func TestScopeRebindRejectsCycle(t *testing.T) {
	s := NewStore()
	a, err := s.NewScope(nil)
	require.NoError(t, err)
	b, err := s.NewScope(a)
	require.NoError(t, err)

	err = a.Rebind(b)
	assert.ErrorIs(t, err, cdt.ErrViewCycle)
	assert.Equal(t, s.Global(), a.Parent(), "rejected rebind leaves the parent alone")

	c, err := s.NewScope(nil)
	require.NoError(t, err)
	require.NoError(t, b.Rebind(c))
	assert.Equal(t, c, b.Parent())
}

func TestUnorderedStoreKeepsInsertionOrder(t *testing.T) {
	s := NewStore(WithMethod(cdt.Unordered))
	for _, n := range []string{"zeta", "alpha", "mid"} {
		_, err := s.Assign(s.Global(), n, "v")
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, s.Global().Names())
	assert.Equal(t, cdt.Unordered, s.Method())
}

func TestLiveEntriesTracked(t *testing.T) {
	s := NewStore()
	e, err := s.Assign(s.Global(), "p.a", "1")
	require.NoError(t, err)
	p, _ := s.Lookup(s.Global(), "p")
	assert.True(t, s.Live(e.ID()))
	assert.Equal(t, 2, s.Len())

	_, ok := s.Table(p.Table().ID())
	assert.True(t, ok)

	require.NoError(t, s.Delete(p))
	assert.False(t, s.Live(e.ID()))
	assert.False(t, s.Live(p.ID()))
	assert.Equal(t, 0, s.Len())
}
