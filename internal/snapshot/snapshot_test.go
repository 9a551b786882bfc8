package snapshot

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/vartree/api"
	"github.com/agentic-research/vartree/internal/assign"
	"github.com/agentic-research/vartree/internal/nv"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "vars.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seeded(t *testing.T) *nv.Store {
	t.Helper()
	s := nv.NewStore()
	require.NoError(t, assign.Eval(s, s.Global(), `
cfg=(host='db one' port=5432 opts=(tls=on))
typeset -i n=3
typeset -r ro=fixed
list=(a b)
`))
	return s
}

func flat(s *nv.Store, name string) string {
	e, ok := s.Lookup(s.Global(), name)
	if !ok {
		return "<unset>"
	}
	return s.RenderString(e, nv.RenderOptions{Layout: nv.LayoutFlat})
}

func TestSaveLoadRoundTrip(t *testing.T) {
	db := openTestDB(t)
	src := seeded(t)

	n, err := db.Save(src, src.Global())
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	vars, err := db.Vars()
	require.NoError(t, err)
	assert.Equal(t, []string{"cfg", "list", "n", "ro"}, vars)

	dst := nv.NewStore()
	n, err = db.Load(dst, dst.Global())
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	for _, name := range vars {
		assert.Equal(t, flat(src, name), flat(dst, name), name)
	}
	ro, ok := dst.Lookup(dst.Global(), "ro")
	require.True(t, ok)
	assert.True(t, ro.Attrs().Has(api.ReadOnly))
}

func TestPaths(t *testing.T) {
	db := openTestDB(t)
	s := seeded(t)
	_, err := db.Save(s, s.Global())
	require.NoError(t, err)

	got, err := db.Paths("cfg")
	require.NoError(t, err)
	assert.Equal(t, []Path{
		{Name: "cfg", Kind: KindCompound},
		{Name: "cfg.host", Kind: KindScalar, Value: "db one"},
		{Name: "cfg.opts", Kind: KindCompound},
		{Name: "cfg.opts.tls", Kind: KindScalar, Value: "on"},
		{Name: "cfg.port", Kind: KindScalar, Value: "5432"},
	}, got)

	got, err = db.Paths("list")
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, KindArray, got[0].Kind)

	got, err = db.Paths("c")
	require.NoError(t, err)
	assert.Empty(t, got, "a prefix only matches whole segments")

	all, err := db.Paths("")
	require.NoError(t, err)
	assert.Equal(t, "cfg", all[0].Name)
}

func TestSaveReplacesPreviousSnapshot(t *testing.T) {
	db := openTestDB(t)
	s := seeded(t)
	_, err := db.Save(s, s.Global())
	require.NoError(t, err)

	require.NoError(t, s.Unset(s.Global(), "cfg"))
	n, err := db.Save(s, s.Global())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := db.Paths("cfg")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoadReportsBadText(t *testing.T) {
	db := openTestDB(t)
	_, err := db.db.Exec(`INSERT INTO vars (name, seq, text) VALUES ('x', 0, 'x=(a')`)
	require.NoError(t, err)

	s := nv.NewStore()
	_, err = db.Load(s, s.Global())
	require.Error(t, err)
	var se *assign.SyntaxError
	assert.ErrorAs(t, err, &se)
}
