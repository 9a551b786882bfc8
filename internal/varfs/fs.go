// Package varfs presents the variables of a scope as a filesystem.
//
// Compound variables and arrays are directories, everything else is a file
// holding the value followed by a newline. The virtual file /_tree holds
// the whole scope in canonical assignment text. The filesystem implements
// billy.Filesystem so it can be served over NFS with willscott/go-nfs.
package varfs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/helper/chroot"
	"github.com/go-logr/logr"

	"github.com/agentic-research/vartree/api"
	"github.com/agentic-research/vartree/internal/nv"
)

const treeFile = "/_tree"

var (
	errReadOnly = errors.New("read-only filesystem")
	errIsDir    = errors.New("is a directory")
	errNotDir   = errors.New("not a directory")
)

// FS adapts a store scope to billy.Filesystem. All store access goes
// through one mutex.
type FS struct {
	mu       sync.Mutex
	store    *nv.Store
	scope    *nv.Scope
	layout   nv.Layout
	writable bool
	log      logr.Logger
	started  time.Time
}

// Option configures an FS.
type Option func(*FS)

// Writable allows writes, removals and renames.
func Writable() Option { return func(fs *FS) { fs.writable = true } }

// WithLayout sets the layout of /_tree. The default is pretty.
func WithLayout(l nv.Layout) Option { return func(fs *FS) { fs.layout = l } }

// WithLogger sets the logger used for commits and removals.
func WithLogger(l logr.Logger) Option { return func(fs *FS) { fs.log = l } }

// New returns a filesystem over the variables visible in sc.
func New(s *nv.Store, sc *nv.Scope, opts ...Option) *FS {
	fs := &FS{
		store:   s,
		scope:   sc,
		layout:  nv.LayoutPretty,
		log:     logr.Discard(),
		started: time.Now(),
	}
	for _, o := range opts {
		o(fs)
	}
	return fs
}

// Do runs fn while holding the filesystem lock, for callers that share
// the store with a mounted filesystem.
func (fs *FS) Do(fn func(s *nv.Store, sc *nv.Scope) error) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fn(fs.store, fs.scope)
}

// --- billy.Basic ---

// Create makes an empty scalar at filename when it does not exist yet and
// returns it opened for writing.
func (fs *FS) Create(filename string) (billy.File, error) {
	return fs.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
}

func (fs *FS) Open(filename string) (billy.File, error) {
	return fs.OpenFile(filename, os.O_RDONLY, 0)
}

func (fs *FS) OpenFile(filename string, flag int, _ os.FileMode) (billy.File, error) {
	filename = cleanPath(filename)
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC) != 0 {
		if !fs.writable {
			return nil, errReadOnly
		}
		return fs.openWritable(filename, flag)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if filename == treeFile {
		return &bytesFile{name: filename, data: fs.tree()}, nil
	}
	e, err := fs.resolve(filename)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: filename, Err: err}
	}
	if isDir(e) {
		return nil, &os.PathError{Op: "open", Path: filename, Err: errIsDir}
	}
	return &bytesFile{name: filename, data: content(e)}, nil
}

func (fs *FS) openWritable(filename string, flag int) (billy.File, error) {
	if filename == treeFile || filename == "/" {
		return nil, &os.PathError{Op: "open", Path: filename, Err: errReadOnly}
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	e, err := fs.resolve(filename)
	switch {
	case errors.Is(err, os.ErrNotExist) && flag&os.O_CREATE != 0:
		if e, err = fs.create(filename, false); err != nil {
			return nil, &os.PathError{Op: "create", Path: filename, Err: err}
		}
		if err := e.Assign(""); err != nil {
			return nil, &os.PathError{Op: "create", Path: filename, Err: err}
		}
	case err != nil:
		return nil, &os.PathError{Op: "open", Path: filename, Err: err}
	}
	if isDir(e) {
		return nil, &os.PathError{Op: "open", Path: filename, Err: errIsDir}
	}
	if e.Attrs().Has(api.ReadOnly) {
		return nil, &os.PathError{Op: "open", Path: filename, Err: nv.ErrReadOnly}
	}

	var buf []byte
	if flag&os.O_TRUNC == 0 {
		buf = content(e)
	}
	return &writeFile{name: filename, buf: buf, commit: fs.commit}, nil
}

// commit stores data as the value at name, dropping one trailing newline.
func (fs *FS) commit(name string, data []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	e, err := fs.resolve(name)
	if err != nil {
		return err
	}
	value := strings.TrimSuffix(string(data), "\n")
	if err := e.Assign(value); err != nil {
		return err
	}
	fs.log.V(1).Info("committed value", "name", e.FullName(), "bytes", len(value))
	return nil
}

func (fs *FS) Stat(filename string) (os.FileInfo, error) {
	return fs.Lstat(filename)
}

// Rename moves the variable at oldpath to newpath. An existing destination
// is replaced.
func (fs *FS) Rename(oldpath, newpath string) error {
	if !fs.writable {
		return errReadOnly
	}
	oldpath, newpath = cleanPath(oldpath), cleanPath(newpath)

	fs.mu.Lock()
	defer fs.mu.Unlock()

	src, err := fs.resolve(oldpath)
	if err != nil {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: err}
	}
	dst, err := fs.resolve(newpath)
	if errors.Is(err, os.ErrNotExist) {
		dst, err = fs.create(newpath, false)
	}
	if err != nil {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: err}
	}
	if err := fs.store.CopyTree(src, dst, nv.Move); err != nil {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: err}
	}
	fs.log.V(1).Info("moved variable", "from", oldpath, "to", dst.FullName())
	return nil
}

// Remove unsets the variable at filename and everything below it.
// Read-only members are kept and reported in the error.
func (fs *FS) Remove(filename string) error {
	if !fs.writable {
		return errReadOnly
	}
	filename = cleanPath(filename)
	if filename == "/" || filename == treeFile {
		return &os.PathError{Op: "remove", Path: filename, Err: errReadOnly}
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	e, err := fs.resolve(filename)
	if err != nil {
		return &os.PathError{Op: "remove", Path: filename, Err: err}
	}
	name := e.FullName()
	if err := fs.store.Delete(e); err != nil {
		var we *nv.WalkError
		if errors.As(err, &we) {
			fs.log.V(1).Info("kept read-only entries", "name", name, "skipped", we.Skipped)
		}
		return &os.PathError{Op: "remove", Path: filename, Err: err}
	}
	return nil
}

func (fs *FS) Join(elem ...string) string {
	return filepath.Join(elem...)
}

// --- billy.TempFile ---

func (fs *FS) TempFile(_, _ string) (billy.File, error) {
	return nil, billy.ErrNotSupported
}

// --- billy.Dir ---

func (fs *FS) ReadDir(path string) ([]os.FileInfo, error) {
	path = cleanPath(path)

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if path == "/" {
		infos := []os.FileInfo{fs.treeInfo()}
		for _, name := range fs.scope.Names() {
			if e, ok := fs.store.Lookup(fs.scope, name); ok && !e.IsNull() {
				infos = append(infos, fs.info(name, e))
			}
		}
		return infos, nil
	}

	e, err := fs.resolve(path)
	if err != nil {
		return nil, &os.PathError{Op: "readdir", Path: path, Err: err}
	}
	if !isDir(e) {
		return nil, &os.PathError{Op: "readdir", Path: path, Err: errNotDir}
	}
	var infos []os.FileInfo
	for _, c := range children(e) {
		if strings.Contains(c.Name(), "/") || c.IsNull() {
			continue
		}
		infos = append(infos, fs.info(c.Name(), c))
	}
	return infos, nil
}

// MkdirAll creates filename and any missing parents as compound variables.
func (fs *FS) MkdirAll(filename string, _ os.FileMode) error {
	if !fs.writable {
		return errReadOnly
	}
	filename = cleanPath(filename)
	if filename == "/" {
		return nil
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, err := fs.create(filename, true); err != nil {
		return &os.PathError{Op: "mkdir", Path: filename, Err: err}
	}
	return nil
}

// --- billy.Symlink ---

func (fs *FS) Lstat(filename string) (os.FileInfo, error) {
	filename = cleanPath(filename)

	fs.mu.Lock()
	defer fs.mu.Unlock()

	switch filename {
	case "/":
		return &fileInfo{name: "/", mode: os.ModeDir | fs.dirPerm(), modTime: fs.started}, nil
	case treeFile:
		return fs.treeInfo(), nil
	}
	e, err := fs.resolve(filename)
	if err != nil {
		return nil, &os.PathError{Op: "lstat", Path: filename, Err: err}
	}
	return fs.info(filepath.Base(filename), e), nil
}

func (fs *FS) Symlink(_, _ string) error {
	return billy.ErrNotSupported
}

func (fs *FS) Readlink(_ string) (string, error) {
	return "", billy.ErrNotSupported
}

// --- billy.Chroot ---

func (fs *FS) Chroot(path string) (billy.Filesystem, error) {
	return chroot.New(fs, path), nil
}

func (fs *FS) Root() string {
	return "/"
}

// --- billy.Capable ---

func (fs *FS) Capabilities() billy.Capability {
	caps := billy.ReadCapability | billy.SeekCapability
	if fs.writable {
		caps |= billy.WriteCapability
	}
	return caps
}

// --- internals ---

// resolve maps a cleaned path to its entry. Path segments below an array
// are subscripts, below a compound member names.
func (fs *FS) resolve(path string) (*nv.Entry, error) {
	segs := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if !nv.ValidName(segs[0]) {
		return nil, os.ErrNotExist
	}
	e, ok := fs.store.Lookup(fs.scope, segs[0])
	if !ok {
		return nil, os.ErrNotExist
	}
	for _, seg := range segs[1:] {
		var err error
		switch {
		case e.IsArray():
			e, err = e.Elem(seg, false)
		case e.IsCompound():
			e, err = e.Child(seg, false)
		default:
			return nil, errNotDir
		}
		if err != nil {
			return nil, os.ErrNotExist
		}
	}
	return e, nil
}

// create adds the entry at path, making missing parents compound.
func (fs *FS) create(path string, compound bool) (*nv.Entry, error) {
	segs := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if !nv.ValidName(segs[0]) {
		return nil, fmt.Errorf("%q: %w", segs[0], nv.ErrName)
	}
	flags := nv.Create
	if compound || len(segs) > 1 {
		flags |= nv.Compound
	}
	e, err := fs.store.Open(fs.scope, segs[0], flags)
	if err != nil {
		return nil, err
	}
	for i, seg := range segs[1:] {
		if e.IsArray() {
			e, err = e.Elem(seg, true)
		} else {
			if !nv.ValidName(seg) {
				return nil, fmt.Errorf("%q: %w", seg, nv.ErrName)
			}
			e, err = e.Child(seg, true)
		}
		if err != nil {
			return nil, err
		}
		if (compound || i < len(segs)-2) && !isDir(e) {
			if err := e.MakeCompound(); err != nil {
				return nil, err
			}
		}
	}
	return e, nil
}

// tree renders every visible variable, one assignment per line.
func (fs *FS) tree() []byte {
	var b []byte
	opts := nv.RenderOptions{Layout: fs.layout}
	for _, name := range fs.scope.Names() {
		e, ok := fs.store.Lookup(fs.scope, name)
		if !ok || e.IsNull() {
			continue
		}
		b = fs.store.AppendRender(b, e, opts)
		b = append(b, '\n')
	}
	return b
}

func (fs *FS) treeInfo() os.FileInfo {
	return &fileInfo{name: treeFile[1:], size: int64(len(fs.tree())), mode: 0o444, modTime: fs.started}
}

func (fs *FS) dirPerm() os.FileMode {
	if fs.writable {
		return 0o755
	}
	return 0o555
}

func (fs *FS) info(name string, e *nv.Entry) os.FileInfo {
	if isDir(e) {
		return &fileInfo{name: name, mode: os.ModeDir | fs.dirPerm(), modTime: fs.started}
	}
	mode := os.FileMode(0o444)
	if fs.writable && !e.Attrs().Has(api.ReadOnly) {
		mode = 0o644
	}
	return &fileInfo{name: name, size: int64(len(content(e))), mode: mode, modTime: fs.started}
}

func isDir(e *nv.Entry) bool {
	return e.IsArray() || e.IsCompound()
}

func content(e *nv.Entry) []byte {
	return []byte(e.Value() + "\n")
}

func children(e *nv.Entry) []*nv.Entry {
	var out []*nv.Entry
	if a := e.Array(); a != nil {
		for _, k := range a.Subscripts() {
			if el, ok := a.Get(k); ok {
				out = append(out, el)
			}
		}
		return out
	}
	t := e.Table()
	for _, k := range t.Keys() {
		if c, ok := t.Local(k); ok {
			out = append(out, c)
		}
	}
	return out
}

// cleanPath normalizes a billy path to a clean absolute path.
func cleanPath(path string) string {
	path = filepath.Clean("/" + path)
	if path == "." {
		return "/"
	}
	return path
}

// fileInfo implements os.FileInfo with static values.
type fileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
}

func (fi *fileInfo) Name() string       { return fi.name }
func (fi *fileInfo) Size() int64        { return fi.size }
func (fi *fileInfo) Mode() os.FileMode  { return fi.mode }
func (fi *fileInfo) ModTime() time.Time { return fi.modTime }
func (fi *fileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi *fileInfo) Sys() any           { return nil }

var (
	_ billy.Filesystem = (*FS)(nil)
	_ billy.Capable    = (*FS)(nil)
)
