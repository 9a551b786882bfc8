package varfs

import (
	"fmt"
	"io"

	billy "github.com/go-git/go-billy/v5"
)

// bytesFile is a read-only file over a snapshot of a value.
type bytesFile struct {
	name string
	data []byte
	pos  int64
}

func (f *bytesFile) Name() string { return f.name }

func (f *bytesFile) Read(p []byte) (int, error) {
	n, err := f.ReadAt(p, f.pos)
	f.pos += int64(n)
	return n, err
}

func (f *bytesFile) ReadAt(p []byte, off int64) (int, error) {
	return readAt(f.data, p, off)
}

func (f *bytesFile) Seek(offset int64, whence int) (int64, error) {
	f.pos = seek(f.pos, int64(len(f.data)), offset, whence)
	return f.pos, nil
}

func (f *bytesFile) Write([]byte) (int, error) { return 0, errReadOnly }
func (f *bytesFile) Truncate(int64) error      { return errReadOnly }
func (f *bytesFile) Lock() error               { return nil }
func (f *bytesFile) Unlock() error             { return nil }
func (f *bytesFile) Close() error              { return nil }

// writeFile buffers writes and assigns the result when closed.
type writeFile struct {
	name    string
	buf     []byte
	pos     int64
	written bool
	commit  func(name string, data []byte) error
}

func (f *writeFile) Name() string { return f.name }

func (f *writeFile) Read(p []byte) (int, error) {
	n, err := f.ReadAt(p, f.pos)
	f.pos += int64(n)
	return n, err
}

func (f *writeFile) ReadAt(p []byte, off int64) (int, error) {
	return readAt(f.buf, p, off)
}

func (f *writeFile) Write(p []byte) (int, error) {
	end := f.pos + int64(len(p))
	if end > int64(len(f.buf)) {
		grown := make([]byte, end)
		copy(grown, f.buf)
		f.buf = grown
	}
	n := copy(f.buf[f.pos:], p)
	f.pos += int64(n)
	f.written = true
	return n, nil
}

func (f *writeFile) Seek(offset int64, whence int) (int64, error) {
	f.pos = seek(f.pos, int64(len(f.buf)), offset, whence)
	return f.pos, nil
}

// Truncate resizes the buffer. A truncate without a write commits nothing:
// NFS sends SETATTR(size=0) and CLOSE before the WRITE calls arrive.
func (f *writeFile) Truncate(size int64) error {
	if size < int64(len(f.buf)) {
		f.buf = f.buf[:size]
	} else if size > int64(len(f.buf)) {
		grown := make([]byte, size)
		copy(grown, f.buf)
		f.buf = grown
	}
	return nil
}

func (f *writeFile) Close() error {
	if !f.written || f.commit == nil {
		return nil
	}
	if err := f.commit(f.name, f.buf); err != nil {
		return fmt.Errorf("commit %s: %w", f.name, err)
	}
	return nil
}

func (f *writeFile) Lock() error   { return nil }
func (f *writeFile) Unlock() error { return nil }

func readAt(data, p []byte, off int64) (int, error) {
	if off >= int64(len(data)) {
		return 0, io.EOF
	}
	n := copy(p, data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func seek(pos, size, offset int64, whence int) int64 {
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos += offset
	case io.SeekEnd:
		pos = size + offset
	}
	return max(pos, 0)
}

var (
	_ billy.File = (*bytesFile)(nil)
	_ billy.File = (*writeFile)(nil)
)
