package nv

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/vartree/api"
)

// upper stores values upper-cased and reads them back with a suffix.
type upper struct{ suffix string }

func (u *upper) Put(e *Entry, v string) error { return e.AssignNext(u, strings.ToUpper(v)) }
func (u *upper) Get(e *Entry) string          { return e.ValueNext(u) + u.suffix }

// counter computes its value and counts reads.
type counter struct{ reads int }

func (c *counter) Get(*Entry) string {
	c.reads++
	return "computed"
}

func (c *counter) Number(*Entry) (float64, bool) { return 42, true }

func TestDisciplineChain(t *testing.T) {
	s := NewStore()
	e, err := s.Open(s.Global(), "v", Create)
	require.NoError(t, err)

	outer, inner := &upper{suffix: "!"}, &upper{suffix: "?"}
	e.Push(inner)
	e.Push(outer)
	assert.Equal(t, []Discipline{outer, inner}, e.Disciplines())

	require.NoError(t, e.Assign("abc"))
	assert.Equal(t, "ABC", e.Raw())
	assert.Equal(t, "ABC?!", e.Value(), "getters run head first and continue down the stack")
	assert.Equal(t, "ABC?", e.ValueNext(outer))

	assert.True(t, e.Pop(outer))
	assert.False(t, e.Pop(outer))
	assert.Equal(t, "ABC?", e.Value())
}

func TestDisciplineCapabilities(t *testing.T) {
	s := NewStore()
	e, err := s.Open(s.Global(), "n", Create)
	require.NoError(t, err)
	assert.True(t, e.IsNull())

	c := &counter{}
	e.Push(c)
	assert.False(t, e.IsNull(), "a getter supplies a value")
	assert.Equal(t, "computed", e.Value())
	assert.Equal(t, 1, c.reads)

	n, ok := e.Number()
	require.True(t, ok)
	assert.Equal(t, 42.0, n)

	require.NoError(t, e.Assign("stored"))
	assert.Equal(t, "stored", e.Raw(), "no putter falls back to the built-in put")
	assert.Equal(t, "computed", e.Value())
}

func TestNumberWithoutDiscipline(t *testing.T) {
	s := NewStore()
	e, err := s.Assign(s.Global(), "f", " 2.5 ")
	require.NoError(t, err)
	n, ok := e.Number()
	require.True(t, ok)
	assert.Equal(t, 2.5, n)

	e2, _ := s.Assign(s.Global(), "word", "abc")
	_, ok = e2.Number()
	assert.False(t, ok)
}

func TestAttributeConversions(t *testing.T) {
	s := NewStore()
	g := s.Global()
	tests := []struct {
		attrs api.Attr
		size  int
		in    string
		want  string
	}{
		{api.Upper, 0, "MiXed", "MIXED"},
		{api.Lower, 0, "MiXed", "mixed"},
		{api.Integer, 0, " 007 ", "7"},
		{api.Double, 0, "2.50", "2.5"},
		{api.LJust, 5, "ab", "ab   "},
		{api.LJust, 2, "abcdef", "ab"},
		{api.RJust, 5, "ab", "   ab"},
		{api.ZFill, 4, "42", "0042"},
		{api.ZFill | api.Integer, 3, "12345", "345"},
	}
	for _, tt := range tests {
		e, err := s.Open(g, "conv", Create)
		require.NoError(t, err)
		e.SetAttrs(tt.attrs, tt.size)
		require.NoError(t, e.Assign(tt.in))
		assert.Equal(t, tt.want, e.Value(), "%v %q", tt.attrs, tt.in)
		require.NoError(t, s.Unset(g, "conv"))
	}
}

func TestAssignErrors(t *testing.T) {
	s := NewStore()
	g := s.Global()
	i, _ := s.Open(g, "i", Create)
	i.SetAttrs(api.Integer, 0)
	assert.ErrorIs(t, i.Assign("x1"), ErrArith)

	r, _ := s.Assign(g, "r", "fixed")
	r.AddAttrs(api.ReadOnly)
	assert.ErrorIs(t, r.Assign("other"), ErrReadOnly)
	assert.Equal(t, "fixed", r.Value())
}

func TestSetAttrsKeepsStructuralBits(t *testing.T) {
	s := NewStore()
	e, err := s.Assign(s.Global(), "arr[0]", "x")
	require.NoError(t, err)
	a, _ := s.Lookup(s.Global(), "arr")
	a.SetAttrs(api.Export, 0)
	assert.True(t, a.Attrs().Has(api.Array))
	assert.True(t, a.Attrs().Has(api.Export))
	a.AddAttrs(api.Assoc)
	assert.False(t, a.Attrs().Has(api.Assoc), "structural bits are not set through AddAttrs")
	assert.Equal(t, "arr[0]", e.FullName())
}

func TestMakeArrayPromotesScalar(t *testing.T) {
	s := NewStore()
	e, err := s.Assign(s.Global(), "v", "first")
	require.NoError(t, err)
	require.NoError(t, e.MakeArray(false))
	el, ok := e.Array().Get("0")
	require.True(t, ok)
	assert.Equal(t, "first", el.Value())
	assert.False(t, e.IsSet())

	assert.ErrorIs(t, e.MakeArray(true), ErrSubscript, "a filled indexed array cannot become associative")
	assert.ErrorIs(t, e.MakeCompound(), ErrNotCompound)
}

func TestArrayCursor(t *testing.T) {
	s := NewStore()
	g := s.Global()
	for _, sub := range []string{"10", "2", "1"} {
		_, err := s.Assign(g, "a["+sub+"]", "v"+sub)
		require.NoError(t, err)
	}
	a, _ := s.Lookup(g, "a")
	arr := a.Array()
	assert.Equal(t, []string{"1", "2", "10"}, arr.Subscripts(), "indices sort numerically")
	assert.Equal(t, 10, arr.Max())
	assert.True(t, arr.Sparse())

	arr.Reset()
	var seen []string
	for arr.NextSub() {
		seen = append(seen, arr.Current().Value())
	}
	assert.Equal(t, []string{"v1", "v2", "v10"}, seen)
	assert.Equal(t, "", arr.Subscript())

	el, err := arr.Append()
	require.NoError(t, err)
	assert.Equal(t, "11", el.Name())

	assert.True(t, arr.Unset("2"))
	assert.False(t, arr.Unset("2"))
	assert.Equal(t, 3, arr.Len())

	end := arr.BeginScan()
	inner := arr.BeginScan()
	inner()
	assert.True(t, arr.Scanning(), "nested scans do not end the outer one")
	end()
	assert.False(t, arr.Scanning())
}
