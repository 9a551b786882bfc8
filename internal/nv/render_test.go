package nv

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/vartree/api"
)

func render(t *testing.T, s *Store, name string, opts RenderOptions) string {
	t.Helper()
	e, ok := s.Lookup(s.Global(), name)
	require.True(t, ok, name)
	return s.RenderString(e, opts)
}

func TestRenderLayouts(t *testing.T) {
	s := NewStore()
	newTree(t, s, "p.a", "1", "p.b.x", "2")

	assert.Equal(t, "p=(a=1 b=(x=2 ))", render(t, s, "p", RenderOptions{Layout: LayoutFlat}))
	assert.Equal(t, "p=(a=1;b=(x=2;);)", render(t, s, "p", RenderOptions{Layout: LayoutCompact}))
	assert.Equal(t, "p=(a=1;b=(x=2;);)", render(t, s, "p", RenderOptions{Export: true}))
	assert.Equal(t, "p=(\n\ta=1\n\tb=(\n\t\tx=2\n\t)\n)", render(t, s, "p", RenderOptions{}))
	assert.Equal(t, "p=(\n\t\ta=1\n\t\tb=(\n\t\t\tx=2\n\t\t)\n\t)", render(t, s, "p", RenderOptions{Indent: 1}))
}

func TestRenderNestedEntryUsesFullName(t *testing.T) {
	s := NewStore()
	newTree(t, s, "p.b.x", "2")
	assert.Equal(t, "p.b=(x=2 )", render(t, s, "p.b", RenderOptions{Layout: LayoutFlat}))
	assert.Equal(t, "p.b.x=2", render(t, s, "p.b.x", RenderOptions{Layout: LayoutFlat}))
}

func TestRenderQuoting(t *testing.T) {
	s := NewStore()
	newTree(t, s,
		"q.space", "two words",
		"q.eq", "a=b",
		"q.empty", "",
		"q.nl", "x\ny",
	)
	assert.Equal(t, `q=(empty='' eq=a\=b nl=$'x\ny' space='two words' )`, render(t, s, "q", RenderOptions{Layout: LayoutFlat}))
}

func TestRenderAttributes(t *testing.T) {
	s := NewStore()
	g := s.Global()
	n, err := s.Open(g, "r.n", Create)
	require.NoError(t, err)
	n.SetAttrs(api.Integer|api.Export, 0)
	require.NoError(t, n.Assign("5"))
	l, err := s.Open(g, "r.l", Create)
	require.NoError(t, err)
	l.SetAttrs(api.LJust, 4)
	require.NoError(t, l.Assign("ab"))
	_, err = s.Open(g, "r.c", Create|Compound)
	require.NoError(t, err)

	assert.Equal(t, "r=(typeset -C c=() typeset -L4 l=ab typeset -x -i n=5 )",
		render(t, s, "r", RenderOptions{Layout: LayoutFlat}))
}

func TestRenderArrays(t *testing.T) {
	s := NewStore()
	newTree(t, s,
		"a.list[0]", "x",
		"a.list[1]", "y z",
		"a.sparse[0]", "p",
		"a.sparse[5]", "q",
		"a.map[k]", "v=w",
		"a.map[two words]", "2",
	)
	want := "a=(list=(x 'y z' ) typeset -A map=([k]=v=w ['two words']=2 ) sparse=([0]=p [5]=q ) )"
	assert.Equal(t, want, render(t, s, "a", RenderOptions{Layout: LayoutFlat}))

	wantCompact := "a=(list=(x 'y z');typeset -A map=([k]=v=w ['two words']=2);sparse=([0]=p [5]=q);)"
	assert.Equal(t, wantCompact, render(t, s, "a", RenderOptions{Layout: LayoutCompact}))
}

func TestRenderTopLevelArray(t *testing.T) {
	s := NewStore()
	newTree(t, s, "arr[0]", "1", "arr[1]", "2")
	assert.Equal(t, "arr=(1 2 )", render(t, s, "arr", RenderOptions{Layout: LayoutFlat}))
	assert.Equal(t, "arr=(1 2)", render(t, s, "arr", RenderOptions{Layout: LayoutCompact}))

	m, err := s.Open(s.Global(), "m", Create|Assoc)
	require.NoError(t, err)
	require.NoError(t, m.MakeArray(true))
	assert.Equal(t, "typeset -A m=()", render(t, s, "m", RenderOptions{Layout: LayoutFlat}))
}

func TestRenderArrayOfCompounds(t *testing.T) {
	s := NewStore()
	newTree(t, s, "p.rec[0].a", "1", "p.rec[1].a", "2")
	assert.Equal(t, "p=(rec=([0]=(a=1 ) [1]=(a=2 ) ) )", render(t, s, "p", RenderOptions{Layout: LayoutFlat}))
	assert.Equal(t, "p=(rec=([0]=(a=1;) [1]=(a=2;));)", render(t, s, "p", RenderOptions{Layout: LayoutCompact}))
	assert.Equal(t,
		"p=(\n\trec=(\n\t\t[0]=(\n\t\t\ta=1\n\t\t)\n\t\t[1]=(\n\t\t\ta=2\n\t\t)\n\t)\n)",
		render(t, s, "p", RenderOptions{}))
}

func TestRenderTypedCompound(t *testing.T) {
	s := NewStore()
	s.RegisterType(point())
	newTree(t, s, "w.label", "origin")
	_, err := s.Declare(s.Global(), "w.pt", "Point")
	require.NoError(t, err)
	assert.Equal(t, "w=(label=origin Point pt=(x=0 y=0 ))", render(t, s, "w", RenderOptions{Layout: LayoutFlat}))
}

// clock computes a scalar value.
type clock struct{}

func (clock) Get(*Entry) string { return "noon" }

func TestRenderNoFollow(t *testing.T) {
	s := NewStore()
	newTree(t, s, "c.t", "stored")
	e, _ := s.Lookup(s.Global(), "c.t")
	e.Push(clock{})

	assert.Equal(t, "c=(t=noon )", render(t, s, "c", RenderOptions{Layout: LayoutFlat}))
	assert.Equal(t, "c=(t=stored )", render(t, s, "c", RenderOptions{Layout: LayoutFlat, NoFollow: true}))
}

func TestRenderWriter(t *testing.T) {
	s := NewStore()
	newTree(t, s, "v", "1")
	e, _ := s.Lookup(s.Global(), "v")
	var buf bytes.Buffer
	require.NoError(t, s.Render(&buf, e, RenderOptions{}))
	assert.Equal(t, "v=1", buf.String())
}

func TestParseLayout(t *testing.T) {
	for _, l := range []Layout{LayoutPretty, LayoutFlat, LayoutCompact} {
		got, err := ParseLayout(l.String())
		require.NoError(t, err)
		assert.Equal(t, l, got)
	}
	_, err := ParseLayout("fancy")
	assert.Error(t, err)
}
