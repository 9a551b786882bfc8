package nv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/vartree/api"
)

func newTree(t *testing.T, s *Store, assigns ...string) {
	t.Helper()
	for i := 0; i+1 < len(assigns); i += 2 {
		_, err := s.Assign(s.Global(), assigns[i], assigns[i+1])
		require.NoError(t, err)
	}
}

func TestCompoundValueRendersMembers(t *testing.T) {
	s := NewStore()
	newTree(t, s, "p.a", "1", "p.b.x", "2")
	p, _ := s.Lookup(s.Global(), "p")
	assert.Equal(t, "(\n\ta=1\n\tb=(\n\t\tx=2\n\t)\n)", p.Value())
}

func TestCompoundPutCopiesNamedCompound(t *testing.T) {
	s := NewStore()
	newTree(t, s, "src.a", "1", "src.n.b", "2", "dst.old", "gone")
	dst, _ := s.Lookup(s.Global(), "dst")

	require.NoError(t, dst.Assign("src"))
	_, ok := s.Lookup(s.Global(), "dst.old")
	assert.False(t, ok)
	b, ok := s.Lookup(s.Global(), "dst.n.b")
	require.True(t, ok)
	assert.Equal(t, "2", b.Value())

	_, err := s.Assign(s.Global(), "dst.n.b", "changed")
	require.NoError(t, err)
	orig, _ := s.Lookup(s.Global(), "src.n.b")
	assert.Equal(t, "2", orig.Value(), "the copy is deep")
}

func TestCompoundPutFromRelatedEntry(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		value   string
		want    map[string]string
		missing []string
		live    int
	}{
		{
			name:    "own member",
			target:  "x",
			value:   "x.y",
			want:    map[string]string{"x.k": "1"},
			missing: []string{"x.a", "x.y"},
			live:    2,
		},
		{
			name:    "ancestor",
			target:  "x.y",
			value:   "x",
			want:    map[string]string{"x.a": "2", "x.y.a": "2", "x.y.y.k": "1"},
			missing: []string{"x.y.k", "x.y.y.y"},
			live:    6,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			newTree(t, s, "x.y.k", "1", "x.a", "2")
			g := s.Global()
			e, ok := s.Lookup(g, tt.target)
			require.True(t, ok)

			require.NoError(t, e.Assign(tt.value))
			for name, want := range tt.want {
				got, ok := s.Lookup(g, name)
				require.True(t, ok, name)
				assert.Equal(t, want, got.Value(), name)
				assert.Equal(t, name, got.FullName())
			}
			for _, name := range tt.missing {
				_, ok := s.Lookup(g, name)
				assert.False(t, ok, name)
			}
			assert.Equal(t, tt.live, s.Len())
		})
	}
}

func TestCompoundPutScalarDropsMembers(t *testing.T) {
	s := NewStore()
	newTree(t, s, "c.a", "1")
	c, _ := s.Lookup(s.Global(), "c")
	before := s.Len()

	require.NoError(t, c.Assign("plain"))
	assert.False(t, c.IsCompound())
	assert.False(t, c.Has(TreeDiscipline()))
	assert.Equal(t, "plain", c.Value())
	assert.Equal(t, before-1, s.Len())
}

func TestCloneModes(t *testing.T) {
	s := NewStore()
	newTree(t, s, "src.a", "1", "src.sub.b", "2")
	g := s.Global()
	src, _ := s.Lookup(g, "src")

	deep, _ := s.Open(g, "deep", Create)
	s.cloneEntry(src, deep, 0)
	assert.NotSame(t, src.Table(), deep.Table())
	b, ok := s.Lookup(g, "deep.sub.b")
	require.True(t, ok)
	assert.Equal(t, "2", b.Value())

	raw, _ := s.Open(g, "raw", Create)
	s.cloneEntry(src, raw, Raw)
	assert.True(t, raw.IsCompound())
	assert.Equal(t, 0, raw.Table().Len())

	shared, _ := s.Open(g, "shared", Create)
	s.cloneEntry(src, shared, Share)
	assert.Same(t, src.Table(), shared.Table())
	_, err := s.Assign(g, "shared.a", "via-alias")
	require.NoError(t, err)
	a, _ := s.Lookup(g, "src.a")
	assert.Equal(t, "via-alias", a.Value())

	require.NoError(t, s.Unset(g, "shared"))
	_, ok = s.Table(src.Table().ID())
	assert.True(t, ok, "the table outlives one of its owners")
	a, ok = s.Lookup(g, "src.a")
	require.True(t, ok, "unsetting an alias leaves the members alone")
	assert.Equal(t, "via-alias", a.Value())
}

func TestDeepCopySharesAliasedTables(t *testing.T) {
	s := NewStore()
	newTree(t, s, "p.a", "1")
	g := s.Global()
	p, _ := s.Lookup(g, "p")
	self, _ := s.Open(g, "p.self", Create)
	s.cloneEntry(p, self, Share)

	q, _ := s.Open(g, "q", Create)
	s.cloneEntry(p, q, 0)
	qs, ok := s.Lookup(g, "q.self")
	require.True(t, ok)
	assert.Same(t, p.Table(), qs.Table(), "a member aliasing the table being copied stays an alias")
}

func TestArraysAreCopiedDeep(t *testing.T) {
	s := NewStore()
	newTree(t, s, "src[0]", "a", "src[1]", "b")
	g := s.Global()
	src, _ := s.Lookup(g, "src")
	dst, _ := s.Open(g, "dst", Create)
	s.cloneEntry(src, dst, Share)

	require.True(t, dst.IsArray())
	assert.NotSame(t, src.Array(), dst.Array())
	assert.Equal(t, []string{"0", "1"}, dst.Array().Subscripts())
	assert.True(t, dst.Attrs().Has(api.Array))
}

func point() *Type {
	return &Type{Name: "Point", Fields: []Field{
		{Name: "x", Default: "0", Attrs: api.Integer},
		{Name: "y", Default: "0", Attrs: api.Integer},
	}}
}

func TestDeclareType(t *testing.T) {
	s := NewStore()
	s.RegisterType(point())
	g := s.Global()

	_, err := s.Declare(g, "pt", "Nope")
	assert.ErrorIs(t, err, ErrNotFound)

	pt, err := s.Declare(g, "pt", "Point")
	require.NoError(t, err)
	assert.Equal(t, "Point", pt.TypeName())
	x, ok := s.Lookup(g, "pt.x")
	require.True(t, ok)
	assert.Equal(t, "0", x.Value())
	assert.True(t, x.Attrs().Has(api.Integer))

	_, err = s.Assign(g, "pt.x", "3")
	require.NoError(t, err)
	_, err = s.Assign(g, "pt.x", "three")
	assert.ErrorIs(t, err, ErrArith)

	typ, ok := s.Type("Point")
	require.True(t, ok)
	cp, _ := s.Open(g, "cp", Create)
	s.cloneEntry(pt, cp, 0)
	assert.True(t, cp.Has(typ), "the type survives a clone")
	cx, _ := s.Lookup(g, "cp.x")
	assert.Equal(t, "3", cx.Value())
}

func TestTypeCreatesFieldsOnDemand(t *testing.T) {
	s := NewStore()
	s.RegisterType(point())
	g := s.Global()
	pt, err := s.Declare(g, "pt", "Point")
	require.NoError(t, err)
	require.NoError(t, s.Unset(g, "pt.y"))

	y, err := pt.Child("y", true)
	require.NoError(t, err)
	assert.Equal(t, "0", y.Value(), "recreated with its default")

	other, err := pt.Child("extra", true)
	require.NoError(t, err)
	assert.False(t, other.Attrs().Has(api.Integer))
}
