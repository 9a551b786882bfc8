package nv

import (
	"fmt"
	"strconv"

	"github.com/agentic-research/vartree/internal/cdt"
)

// Array holds the elements of an indexed or associative array together
// with the current-subscript cursor used by scans.
type Array struct {
	owner *Entry
	assoc bool
	elems *Table
	cur   string // "" is the undefined subscript
	scan  bool
}

func (a *Array) Assoc() bool   { return a.assoc }
func (a *Array) Len() int      { return a.elems.Len() }
func (a *Array) Owner() *Entry { return a.owner }

// Subscripts returns the element keys in scan order.
func (a *Array) Subscripts() []string { return a.elems.Keys() }

// Get returns element sub.
func (a *Array) Get(sub string) (*Entry, bool) {
	key, err := a.key(sub)
	if err != nil {
		return nil, false
	}
	return a.elems.Local(key)
}

// Max returns the largest index of an indexed array, -1 when empty.
func (a *Array) Max() int {
	k, _, ok := a.elems.Search("", cdt.Last)
	if !ok {
		return -1
	}
	n, _ := strconv.Atoi(k)
	return n
}

// Sparse reports whether an indexed array has holes.
func (a *Array) Sparse() bool {
	return !a.assoc && a.Len() < a.Max()+1
}

// Compound reports whether any element owns a nested table.
func (a *Array) Compound() bool {
	found := false
	a.elems.Range(func(_ string, e *Entry) bool {
		found = e.table != nil
		return !found
	})
	return found
}

// Reset moves the cursor to the undefined subscript.
func (a *Array) Reset() { a.cur = "" }

// Subscript returns the current subscript, "" when undefined.
func (a *Array) Subscript() string { return a.cur }

// Current returns the element under the cursor.
func (a *Array) Current() *Entry {
	if a.cur == "" {
		return nil
	}
	e, _ := a.elems.Local(a.cur)
	return e
}

// NextSub advances the cursor, starting from the first element when the
// cursor is undefined. It reports false at the end and leaves the cursor
// undefined.
func (a *Array) NextSub() bool {
	var (
		k  string
		ok bool
	)
	if a.cur == "" {
		k, _, ok = a.elems.Search("", cdt.First)
	} else {
		k, _, ok = a.elems.Search(a.cur, cdt.Next)
	}
	if !ok {
		a.cur = ""
		return false
	}
	a.cur = k
	return true
}

// BeginScan marks a scan in progress. The returned func ends it, unless
// an enclosing scan was already running.
func (a *Array) BeginScan() (end func()) {
	if a.scan {
		return func() {}
	}
	a.scan = true
	return func() { a.scan = false }
}

// Scanning reports whether a scan is in progress.
func (a *Array) Scanning() bool { return a.scan }

// Unset removes element sub.
func (a *Array) Unset(sub string) bool {
	e, ok := a.Get(sub)
	if !ok {
		return false
	}
	e.unlink()
	if a.cur == e.name {
		a.cur = ""
	}
	return true
}

// Append adds an element after the largest index.
func (a *Array) Append() (*Entry, error) {
	if a.assoc {
		return nil, fmt.Errorf("%s: %w: append to associative array", a.owner.FullName(), ErrSubscript)
	}
	return a.add(strconv.Itoa(a.Max() + 1)), nil
}

func (a *Array) add(key string) *Entry {
	s := a.owner.store
	el := s.newEntry(key)
	el.elemOf = a
	if old, ok := a.elems.Insert(key, el); ok {
		s.free(old)
	}
	return el
}

// key normalizes a subscript: decimal for indexed arrays, verbatim for
// associative ones.
func (a *Array) key(sub string) (string, error) {
	if a.assoc {
		if sub == "" {
			return "", ErrSubscript
		}
		return sub, nil
	}
	n, err := strconv.Atoi(sub)
	if err != nil || n < 0 {
		return "", ErrSubscript
	}
	return strconv.Itoa(n), nil
}

func isIndex(sub string) bool {
	n, err := strconv.Atoi(sub)
	return err == nil && n >= 0
}
