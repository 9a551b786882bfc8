package nv

import (
	"strings"

	"github.com/RoaringBitmap/roaring"

	"github.com/agentic-research/vartree/api"
	"github.com/agentic-research/vartree/internal/cdt"
)

// frame is one level of a directory walk.
type frame struct {
	table  *Table  // walked table, nil for single or discipline-driven levels
	owner  *Entry  // entry owning the level
	next   Nexter  // custom iteration, nil for table levels
	prefix string  // names reported at this level start with prefix
	cur    *Entry  // next candidate
	key    uint32  // identity for the cycle guard, 0 for the open level
	done   func()  // ends an array scan started by this level
	stop   bool    // prefix mismatch on an ordered level
	elems  bool    // members of the current element of owner's array
}

// nameOf returns the name reported for e. Below the open level names are
// built from the walk itself, so members of a shared table are reported
// under the path they were reached by.
func (f *frame) nameOf(e *Entry) string {
	switch {
	case f.key == 0:
		return e.FullName()
	case f.elems:
		return f.prefix + "[" + f.owner.array.Subscript() + "]." + e.name
	}
	return f.prefix + "." + e.name
}

func (f *frame) advance(e *Entry) *Entry {
	switch {
	case f.next != nil:
		return f.next.Next(f.owner, e)
	case f.table != nil:
		_, n, ok := f.table.Search(e.name, cdt.Next)
		if ok {
			return n
		}
	}
	return nil
}

// Dir is a resumable walk over the names below a root. Each call to Next
// returns one fully qualified name; compound and array values are entered
// unless they are already being walked further up.
type Dir struct {
	store  *Store
	frames []*frame
	active *roaring.Bitmap
}

// OpenDir opens a walk of name in sc. A trailing "*" or "@" is ignored.
// Leading segments naming compounds are entered; the walk starts at the
// last segment, or at its successor when it is absent. Intermediate
// segments that do not resolve to compounds yield an empty walk.
func (s *Store) OpenDir(sc *Scope, name string) (*Dir, error) {
	d := &Dir{store: s, active: roaring.New()}
	name = strings.TrimRight(name, "*@")
	name = strings.TrimSuffix(name, ".")
	if name == "" {
		_, first, ok := sc.table.Search("", cdt.First)
		if ok {
			d.push(&frame{table: sc.table, cur: first})
		}
		return d, nil
	}
	segs, err := parsePath(name)
	if err != nil {
		return nil, err
	}
	if err := checkNames(name, segs, false); err != nil {
		return nil, err
	}
	last := segs[len(segs)-1]
	if len(last.subs) > 0 {
		if e, err := s.resolve(sc.table, name, 0); err == nil {
			d.push(&frame{cur: e, prefix: e.FullName()})
		}
		return d, nil
	}
	table := sc.table
	var owner *Entry
	for i, seg := range segs[:len(segs)-1] {
		var (
			e  *Entry
			ok bool
		)
		if i == 0 {
			e, ok = table.Get(seg.name)
		} else {
			e, ok = table.Local(seg.name)
		}
		if ok && len(seg.subs) > 0 {
			e, err = e.subscript(seg.subs, 0)
			ok = err == nil
		}
		if !ok || e.table == nil {
			return d, nil
		}
		owner, table = e, e.table
	}
	mode := cdt.AtLeast
	if table.Method() == cdt.Unordered {
		mode = cdt.Search
	}
	_, first, ok := table.Search(last.name, mode)
	if !ok {
		return d, nil
	}
	d.push(&frame{table: table, owner: owner, cur: first, prefix: name})
	return d, nil
}

// OpenEntryDir opens a walk rooted at e. The first name is e's own.
func (s *Store) OpenEntryDir(e *Entry) *Dir {
	d := &Dir{store: s, active: roaring.New()}
	d.push(&frame{cur: e, prefix: e.FullName()})
	return d
}

func (d *Dir) push(f *frame) {
	if f.key != 0 {
		d.active.Add(f.key)
	}
	d.frames = append(d.frames, f)
}

func (d *Dir) pop() {
	f := d.frames[len(d.frames)-1]
	d.frames = d.frames[:len(d.frames)-1]
	if f.key != 0 {
		d.active.Remove(f.key)
	}
	if f.done != nil {
		f.done()
	}
}

// Next returns the next name, or false when the walk is exhausted.
func (d *Dir) Next() (string, bool) {
	for len(d.frames) > 0 {
		f := d.frames[len(d.frames)-1]
		e := f.cur
		if e == nil || f.stop {
			if !f.stop && f.next != nil && f.owner.array != nil && f.owner.array.NextSub() {
				f.cur = f.next.Next(f.owner, nil)
				continue
			}
			d.pop()
			continue
		}
		if e.array != nil {
			e.array.Reset()
		}
		f.cur = f.advance(e)
		if e.IsNull() && !e.attrs.Has(api.Integer) {
			continue
		}
		name := f.nameOf(e)
		if !underPrefix(name, f.prefix) {
			if f.table != nil && f.table.Method() == cdt.Unordered {
				continue
			}
			f.stop = true
			continue
		}
		if child := d.enter(e, name); child != nil {
			if d.active.Contains(child.key) {
				d.store.log.V(1).Info("cycle truncated", "name", name)
				if child.done != nil {
					child.done()
				}
				return name, true
			}
			d.push(child)
		}
		return name, true
	}
	return "", false
}

// enter builds the frame for descending into e, or nil for leaves.
func (d *Dir) enter(e *Entry, name string) *frame {
	if nx, ok := dispatch[Nexter](e, nil); ok {
		return &frame{owner: e, next: nx, prefix: name, key: e.id, cur: nx.Next(e, nil)}
	}
	if e.table != nil {
		_, first, _ := e.table.Search("", cdt.First)
		return &frame{table: e.table, owner: e, prefix: name, key: e.table.ID(), cur: first}
	}
	if e.array != nil && e.array.Compound() {
		f := &frame{owner: e, next: elemMembers{}, elems: true, prefix: name, key: e.array.elems.ID()}
		f.done = e.array.BeginScan()
		e.array.Reset()
		if e.array.NextSub() {
			f.cur = f.next.Next(e, nil)
		}
		return f
	}
	return nil
}

// Close releases every frame. It is safe to call more than once.
func (d *Dir) Close() {
	for len(d.frames) > 0 {
		d.pop()
	}
}

// underPrefix reports whether name is prefix or lies below it.
func underPrefix(name, prefix string) bool {
	if prefix == "" {
		return true
	}
	if !strings.HasPrefix(name, prefix) {
		return false
	}
	if len(name) == len(prefix) {
		return true
	}
	c := name[len(prefix)]
	return c == '.' || c == '['
}

// elemMembers walks the members of the current element of an array of
// compounds. The walk moves to the next element through the array's own
// cursor when one element is exhausted.
type elemMembers struct{}

func (elemMembers) Next(owner, cur *Entry) *Entry {
	el := owner.array.Current()
	if el == nil || el.table == nil {
		return nil
	}
	var (
		n  *Entry
		ok bool
	)
	if cur == nil {
		_, n, ok = el.table.Search("", cdt.First)
	} else {
		_, n, ok = el.table.Search(cur.name, cdt.Next)
	}
	if !ok {
		return nil
	}
	return n
}

// WalkDir opens a walk of name, calls fn for each name and closes the
// walk on every path. Returning false from fn stops early.
func (s *Store) WalkDir(sc *Scope, name string, fn func(name string) bool) error {
	d, err := s.OpenDir(sc, name)
	if err != nil {
		return err
	}
	defer d.Close()
	for n, ok := d.Next(); ok; n, ok = d.Next() {
		if !fn(n) {
			return nil
		}
	}
	return nil
}

// Names snapshots the walk rooted at e, excluding e itself.
func (s *Store) Names(e *Entry) []string {
	d := s.OpenEntryDir(e)
	defer d.Close()
	root := e.FullName()
	var out []string
	for n, ok := d.Next(); ok; n, ok = d.Next() {
		if n != root {
			out = append(out, n)
		}
	}
	return out
}
