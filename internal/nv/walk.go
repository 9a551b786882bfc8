package nv

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agentic-research/vartree/api"
)

// ErrInside is returned when a tree would be copied into itself.
var ErrInside = errors.New("destination lies inside source")

// WalkFlag controls structural copies.
type WalkFlag int

const (
	// Append keeps the members the destination already has.
	Append WalkFlag = 1 << iota
	// Move deletes the source once the copy is complete.
	Move
	// Raw clones compounds without their members.
	Raw
	// Share links the destination to the source's table.
	Share
	// LocalDest creates the destination in the scope's own table.
	LocalDest
)

// Unset deletes name from sc. Missing names are not an error.
func (s *Store) Unset(sc *Scope, name string) error {
	e, ok := s.Lookup(sc, name)
	if !ok {
		return nil
	}
	return s.Delete(e)
}

// Delete removes e and every entry below it. The names are snapshotted
// before anything is removed and processed deepest first, each one
// resolved again when its turn comes. Entries marked KeepOnEmpty are
// cleared rather than removed; read-only entries and their ancestors are
// left in place and reported in a *WalkError. A compound whose table is
// also owned from outside the walk only drops its reference.
func (s *Store) Delete(e *Entry) error {
	names := s.Names(e)
	base := e.FullName()
	linked := s.linked(e, base, names)
	var skipped []string
	for i := len(names) - 1; i >= 0; i-- {
		n := names[i]
		if belowAny(n, linked) {
			continue
		}
		x, err := e.Resolve(n[len(base):], 0)
		if err != nil {
			continue
		}
		skipped = s.remove(x, n, skipped)
	}
	skipped = s.remove(e, base, skipped)
	if len(skipped) > 0 {
		return &WalkError{Op: "unset " + base, Skipped: skipped}
	}
	return nil
}

// linked returns the names, e's own included, whose tables have owners
// the walk does not reach.
func (s *Store) linked(e *Entry, base string, names []string) []string {
	owners := make(map[uint32]int)
	var tabled []string
	var ids []uint32
	count := func(n string, x *Entry) {
		if x.table == nil {
			return
		}
		id := x.table.ID()
		owners[id]++
		tabled = append(tabled, n)
		ids = append(ids, id)
	}
	count(base, e)
	for _, n := range names {
		if x, err := e.Resolve(n[len(base):], 0); err == nil {
			count(n, x)
		}
	}
	var out []string
	for i, n := range tabled {
		if s.refs[ids[i]] > owners[ids[i]] {
			out = append(out, n)
		}
	}
	return out
}

func (s *Store) remove(e *Entry, name string, skipped []string) []string {
	switch {
	case e.attrs.Has(api.ReadOnly):
		s.log.V(1).Info("read-only entry skipped", "name", name)
		return append(skipped, name)
	case holdsAny(name, skipped):
		e.value, e.set = "", false
	case e.attrs.Has(api.KeepOnEmpty):
		e.Clear()
	default:
		e.unlink()
	}
	return skipped
}

// below reports whether name lies strictly below prefix.
func below(name, prefix string) bool {
	if len(name) <= len(prefix) || !strings.HasPrefix(name, prefix) {
		return false
	}
	c := name[len(prefix)]
	return c == '.' || c == '['
}

// holdsAny reports whether any of names lies below name.
func holdsAny(name string, names []string) bool {
	for _, n := range names {
		if below(n, name) {
			return true
		}
	}
	return false
}

// belowAny reports whether name lies below any of prefixes.
func belowAny(name string, prefixes []string) bool {
	for _, p := range prefixes {
		if below(name, p) {
			return true
		}
	}
	return false
}

// Copy copies the tree at from to to, creating to if needed. When the copy
// is rejected, entries created for to are removed again.
func (s *Store) Copy(sc *Scope, from, to string, flags WalkFlag) (*Entry, error) {
	src, ok := s.Lookup(sc, from)
	if !ok {
		return nil, fmt.Errorf("%s: %w", from, ErrNotFound)
	}
	open := Create
	if flags&LocalDest != 0 {
		open |= NoScope
	}
	mark := s.nextID
	dst, err := s.Open(sc, to, open)
	if err != nil {
		return nil, err
	}
	if err := s.CopyTree(src, dst, flags); err != nil {
		var we *WalkError
		if errors.As(err, &we) {
			return dst, err
		}
		s.discard(dst, mark)
		return nil, err
	}
	return dst, nil
}

// discard unlinks e and its ancestors while they were created after mark.
func (s *Store) discard(e *Entry, mark uint32) {
	for e != nil && e.id > mark {
		up := e.up()
		e.unlink()
		e = up
	}
}

// Move copies from to to and deletes from.
func (s *Store) Move(sc *Scope, from, to string) (*Entry, error) {
	return s.Copy(sc, from, to, Move)
}

// CopyTree copies src and everything below it onto dst. The source names
// are snapshotted first; each is mapped to the same relative name under
// dst and cloned shallowly, so members are filled in by the names that
// follow. Names that do not resolve on either side are skipped. Arrays
// are copied whole with their owner. With Move the source is deleted
// after every member has been copied.
func (s *Store) CopyTree(src, dst *Entry, flags WalkFlag) error {
	if src == dst {
		return nil
	}
	for p := dst; p != nil; p = p.up() {
		if p == src {
			return fmt.Errorf("%s into %s: %w", src.FullName(), dst.FullName(), ErrInside)
		}
	}
	if dst.attrs.Has(api.ReadOnly) {
		return fmt.Errorf("%s: %w", dst.FullName(), ErrReadOnly)
	}
	if flags&Share != 0 {
		s.cloneEntry(src, dst, flags&^Raw)
		if flags&Move != 0 && src.table != nil {
			s.handOver(src, dst)
		}
		return nil
	}

	names := s.Names(src)
	base := src.FullName()
	if flags&Append == 0 || dst.table == nil || src.table == nil {
		s.cloneEntry(src, dst, flags|Raw)
	}
	for _, n := range names {
		rel := n[len(base):]
		if strings.ContainsRune(rel, '[') {
			continue
		}
		from, err := src.Resolve(rel, 0)
		if err != nil {
			continue
		}
		to, err := dst.Resolve(rel, Create)
		if err != nil {
			s.log.V(1).Info("copy target unresolved", "name", dst.FullName()+rel, "err", err)
			continue
		}
		s.cloneEntry(from, to, flags|Raw)
	}
	if flags&Move != 0 {
		return s.Delete(src)
	}
	return nil
}

// handOver gives dst sole ownership of the table it shares with src and
// removes src.
func (s *Store) handOver(src, dst *Entry) {
	dst.table.Range(func(_ string, c *Entry) bool {
		c.parent = dst
		return true
	})
	s.releaseTable(src.table)
	src.table = nil
	src.Pop(treeDisc)
	src.unlink()
}

// up returns the entry owning the container e lives in.
func (e *Entry) up() *Entry {
	if e.elemOf != nil {
		return e.elemOf.owner
	}
	return e.parent
}
