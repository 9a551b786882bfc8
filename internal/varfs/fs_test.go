package varfs

import (
	"fmt"
	"io"
	"net"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/vartree/internal/assign"
	"github.com/agentic-research/vartree/internal/nv"
)

func newTestFS(t *testing.T, opts ...Option) (*FS, *nv.Store) {
	t.Helper()
	s := nv.NewStore()
	require.NoError(t, assign.Eval(s, s.Global(), `
app=(name=web port=80 tags=(a b))
typeset -r ver=1.0
`))
	return New(s, s.Global(), opts...), s
}

func value(t *testing.T, s *nv.Store, name string) string {
	t.Helper()
	e, ok := s.Lookup(s.Global(), name)
	require.True(t, ok, name)
	return e.Value()
}

func readAll(t *testing.T, fs *FS, name string) string {
	t.Helper()
	f, err := fs.Open(name)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	return string(data)
}

func TestStat(t *testing.T) {
	fs, _ := newTestFS(t)

	info, err := fs.Stat("/")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, "/", info.Name())

	info, err = fs.Stat("/app")
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	info, err = fs.Stat("/app/name")
	require.NoError(t, err)
	assert.False(t, info.IsDir())
	assert.Equal(t, "name", info.Name())
	assert.Equal(t, int64(4), info.Size())
	assert.Equal(t, os.FileMode(0o444), info.Mode())

	info, err = fs.Stat("/app/tags")
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = fs.Stat("/app/missing")
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = fs.Stat("/app/name/below")
	assert.Error(t, err)
}

func TestReadDir(t *testing.T) {
	fs, _ := newTestFS(t)

	names := func(path string) []string {
		infos, err := fs.ReadDir(path)
		require.NoError(t, err)
		var out []string
		for _, fi := range infos {
			out = append(out, fi.Name())
		}
		return out
	}
	assert.Equal(t, []string{"_tree", "app", "ver"}, names("/"))
	assert.Equal(t, []string{"name", "port", "tags"}, names("/app"))
	assert.Equal(t, []string{"0", "1"}, names("/app/tags"))

	_, err := fs.ReadDir("/app/name")
	assert.Error(t, err)
}

func TestReadFiles(t *testing.T) {
	fs, _ := newTestFS(t)

	assert.Equal(t, "web\n", readAll(t, fs, "/app/name"))
	assert.Equal(t, "b\n", readAll(t, fs, "app/tags/1"))

	f, err := fs.Open("/app/port")
	require.NoError(t, err)
	pos, err := f.Seek(1, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pos)
	buf := make([]byte, 8)
	n, _ := f.Read(buf)
	assert.Equal(t, "0\n", string(buf[:n]))

	_, err = fs.Open("/app")
	assert.Error(t, err)
	_, err = fs.Open("/nonexistent")
	assert.Error(t, err)
}

func TestTreeFileRereads(t *testing.T) {
	fs, src := newTestFS(t, WithLayout(nv.LayoutFlat))

	text := readAll(t, fs, "/_tree")
	assert.Contains(t, text, "app=(name=web port=80 tags=(a b ) )\n")

	dst := nv.NewStore()
	require.NoError(t, assign.Eval(dst, dst.Global(), text))
	for _, name := range []string{"app.name", "app.port", "app.tags[1]", "ver"} {
		assert.Equal(t, value(t, src, name), value(t, dst, name), name)
	}
}

func TestWriteCommitsOnClose(t *testing.T) {
	fs, s := newTestFS(t, Writable())

	f, err := fs.OpenFile("/app/name", os.O_WRONLY|os.O_TRUNC, 0)
	require.NoError(t, err)
	_, err = f.Write([]byte("api\n"))
	require.NoError(t, err)
	assert.Equal(t, "web", value(t, s, "app.name"), "nothing changes before close")
	require.NoError(t, f.Close())
	assert.Equal(t, "api", value(t, s, "app.name"))

	f, err = fs.OpenFile("/app/port", os.O_RDWR, 0)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(0))
	require.NoError(t, f.Close())
	assert.Equal(t, "80", value(t, s, "app.port"), "truncate alone commits nothing")
}

func TestCreateFile(t *testing.T) {
	fs, s := newTestFS(t, Writable())

	f, err := fs.Create("/app/extra")
	require.NoError(t, err)
	info, err := fs.Stat("/app/extra")
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.Size())
	_, err = f.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, "x", value(t, s, "app.extra"))

	f, err = fs.Create("/new/deep/leaf")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	e, ok := s.Lookup(s.Global(), "new.deep")
	require.True(t, ok)
	assert.True(t, e.IsCompound())

	_, err = fs.Create("/app/bad name")
	assert.ErrorIs(t, err, nv.ErrName)
}

func TestWriteReadOnlyVariable(t *testing.T) {
	fs, _ := newTestFS(t, Writable())

	_, err := fs.OpenFile("/ver", os.O_WRONLY, 0)
	assert.ErrorIs(t, err, nv.ErrReadOnly)

	info, err := fs.Stat("/ver")
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o444), info.Mode())

	_, err = fs.OpenFile("/_tree", os.O_WRONLY, 0)
	assert.Error(t, err)
}

func TestRemove(t *testing.T) {
	fs, s := newTestFS(t, Writable())

	require.NoError(t, fs.Remove("/app/tags"))
	_, ok := s.Lookup(s.Global(), "app.tags")
	assert.False(t, ok)

	require.NoError(t, assign.Eval(s, s.Global(), "lock=(typeset -r k=1 v=2)"))
	err := fs.Remove("/lock")
	assert.ErrorIs(t, err, nv.ErrReadOnly)
	assert.Equal(t, "1", value(t, s, "lock.k"))
	_, ok = s.Lookup(s.Global(), "lock.v")
	assert.False(t, ok)

	assert.ErrorIs(t, fs.Remove("/gone"), os.ErrNotExist)
}

func TestMkdirAll(t *testing.T) {
	fs, s := newTestFS(t, Writable())

	require.NoError(t, fs.MkdirAll("/dir/sub", 0o755))
	e, ok := s.Lookup(s.Global(), "dir.sub")
	require.True(t, ok)
	assert.True(t, e.IsCompound())

	info, err := fs.Stat("/dir/sub")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestRename(t *testing.T) {
	fs, s := newTestFS(t, Writable())

	require.NoError(t, fs.Rename("/app", "/moved"))
	_, ok := s.Lookup(s.Global(), "app")
	assert.False(t, ok)
	assert.Equal(t, "web", value(t, s, "moved.name"))
	assert.Equal(t, "b", value(t, s, "moved.tags[1]"))

	assert.Error(t, fs.Rename("/missing", "/x"))
}

func TestReadOnlyFS(t *testing.T) {
	fs, _ := newTestFS(t)

	_, err := fs.Create("newfile")
	assert.Equal(t, errReadOnly, err)
	assert.Equal(t, errReadOnly, fs.MkdirAll("/newdir", 0o755))
	assert.Equal(t, errReadOnly, fs.Remove("/app/name"))
	assert.Equal(t, errReadOnly, fs.Rename("/app", "/renamed"))

	caps := fs.Capabilities()
	assert.NotZero(t, caps&2) // ReadCapability (1 << 1)
	assert.NotZero(t, caps&8) // SeekCapability (1 << 3)
	assert.Zero(t, caps&1)    // WriteCapability (1 << 0) should NOT be set
}

func TestChroot(t *testing.T) {
	fs, _ := newTestFS(t)

	sub, err := fs.Chroot("/app")
	require.NoError(t, err)
	info, err := sub.Stat("/name")
	require.NoError(t, err)
	assert.Equal(t, int64(4), info.Size())
}

func TestDo(t *testing.T) {
	fs, _ := newTestFS(t)
	require.NoError(t, fs.Do(func(s *nv.Store, sc *nv.Scope) error {
		_, err := s.Assign(sc, "app.name", "db")
		return err
	}))
	assert.Equal(t, "db\n", readAll(t, fs, "/app/name"))
}

func TestNFSServerStarts(t *testing.T) {
	fs, _ := newTestFS(t)

	srv, err := NewServer(fs, "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = srv.Close() }()

	assert.True(t, srv.Port() > 0, "server should be on a valid port")

	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", srv.Port()))
	require.NoError(t, err)
	_ = conn.Close()
}
