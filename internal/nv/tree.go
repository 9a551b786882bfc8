package nv

import (
	"fmt"

	"github.com/RoaringBitmap/roaring"

	"github.com/agentic-research/vartree/api"
)

// Tree is the compound discipline. It is installed on every entry that
// owns a nested table.
type Tree struct{}

var treeDisc = &Tree{}

// TreeDiscipline returns the shared compound discipline.
func TreeDiscipline() *Tree { return treeDisc }

// Get renders the members of e unless a getter below the tree computes
// the value.
func (t *Tree) Get(e *Entry) string {
	if g, ok := dispatch[Getter](e, t); ok {
		return g.Get(e)
	}
	var b []byte
	b = e.store.appendValue(b, e, RenderOptions{Layout: LayoutPretty})
	return string(b)
}

// Put assigns to a compound. A value naming another compound copies that
// compound's members; any other value turns e back into a scalar. The
// source is copied before e's old members are released, so it may be a
// member of e or one of e's ancestors.
func (t *Tree) Put(e *Entry, value string) error {
	s := e.store
	if src := s.lookupIn(e.scope(), value); src != nil && src != e && src.table != nil {
		tmp := s.newEntry(e.name)
		tmp.table = s.newTable()
		s.copyTable(src, tmp, 0)

		s.releaseTable(e.table)
		e.table, tmp.table = tmp.table, nil
		e.table.Range(func(_ string, c *Entry) bool {
			c.parent = e
			return true
		})
		s.free(tmp)
		return nil
	}
	e.Clear()
	return e.Assign(value)
}

// Create defers to the next creator below the tree.
func (t *Tree) Create(owner *Entry, name string) *Entry {
	if c, ok := dispatch[Creator](owner, t); ok {
		return c.Create(owner, name)
	}
	return nil
}

// Clone gives dst a table: a deep copy by default, an empty table under
// Raw (the caller copies members itself), or src's own table under Share.
func (t *Tree) Clone(src, dst *Entry, flags WalkFlag) Discipline {
	s := dst.store
	if dst.table != nil {
		s.releaseTable(dst.table)
		dst.table = nil
	}
	switch {
	case flags&Share != 0:
		dst.table = src.table
		s.shareTable(src.table)
	case flags&Raw != 0:
		dst.table = s.newTable()
	default:
		dst.table = s.newTable()
		s.copyTable(src, dst, flags)
	}
	return t
}

// copyTable deep-copies the members of src into dst's table. A member
// aliasing a table that is being copied further up is shared rather than
// copied again.
func (s *Store) copyTable(src, dst *Entry, flags WalkFlag) {
	if s.seen == nil {
		s.seen = roaring.New()
		defer func() { s.seen = nil }()
	}
	id := src.table.ID()
	s.seen.Add(id)
	defer s.seen.Remove(id)

	for _, name := range src.table.Keys() {
		c, ok := src.table.Local(name)
		if !ok {
			continue
		}
		d := dst.AddChild(name)
		if c.table != nil && s.seen.Contains(c.table.ID()) {
			s.log.V(1).Info("aliased table shared during copy", "name", c.FullName())
			s.cloneEntry(c, d, flags|Share)
			continue
		}
		s.cloneEntry(c, d, flags&^Raw)
	}
}

// cloneEntry copies the value, attributes, disciplines and array of src
// onto dst. Disciplines implementing Cloner decide what dst receives;
// others are installed as they are.
func (s *Store) cloneEntry(src, dst *Entry, flags WalkFlag) {
	if src == dst {
		return
	}
	dst.Clear()
	dst.discs = nil
	dst.value, dst.set = src.value, src.set
	dst.attrs = src.attrs &^ (api.Array | api.Assoc)
	dst.size = src.size
	for i := len(src.discs) - 1; i >= 0; i-- {
		d := src.discs[i]
		if c, ok := d.(Cloner); ok {
			if nd := c.Clone(src, dst, flags); nd != nil {
				dst.Push(nd)
			}
			continue
		}
		dst.Push(d)
	}
	if src.array != nil {
		s.copyArray(src, dst, flags)
	}
}

// copyArray deep-copies the elements of src. Arrays are never shared.
func (s *Store) copyArray(src, dst *Entry, flags WalkFlag) {
	a := src.array
	dst.array = &Array{owner: dst, assoc: a.assoc, elems: s.newArrayTable(a.assoc)}
	dst.setArrayAttrs()
	for _, k := range a.elems.Keys() {
		el, ok := a.elems.Local(k)
		if !ok {
			continue
		}
		s.cloneEntry(el, dst.array.add(k), flags&^(Raw|Share))
	}
}

// Field is a member of a declared type.
type Field struct {
	Name    string
	Default string
	Attrs   api.Attr
}

// Type is a typed-compound discipline. Members listed in Fields are
// created with their defaults on first reference.
type Type struct {
	Name   string
	Fields []Field
}

func (t *Type) TypeName() string { return t.Name }

func (t *Type) Create(owner *Entry, name string) *Entry {
	for _, f := range t.Fields {
		if f.Name != name {
			continue
		}
		c := owner.AddChild(name)
		c.attrs = f.Attrs &^ api.Structural
		if err := c.putScalar(f.Default); err != nil {
			owner.store.log.V(1).Info("bad field default", "type", t.Name, "field", f.Name, "err", err)
		}
		return c
	}
	return nil
}

func (t *Type) Clone(_, _ *Entry, _ WalkFlag) Discipline { return t }

// RegisterType makes t available to Declare.
func (s *Store) RegisterType(t *Type) { s.types[t.Name] = t }

// Type returns a registered type.
func (s *Store) Type(name string) (*Type, bool) {
	t, ok := s.types[name]
	return t, ok
}

// Declare creates name in sc as an instance of the registered type.
func (s *Store) Declare(sc *Scope, name, typeName string) (*Entry, error) {
	if _, ok := s.types[typeName]; !ok {
		return nil, fmt.Errorf("type %s: %w", typeName, ErrNotFound)
	}
	e, err := s.Open(sc, name, Create|Compound)
	if err != nil {
		return nil, err
	}
	if err := s.SetType(e, typeName); err != nil {
		return nil, err
	}
	return e, nil
}

// SetType makes e an instance of a registered type and creates the
// fields it does not have yet.
func (s *Store) SetType(e *Entry, typeName string) error {
	t, ok := s.types[typeName]
	if !ok {
		return fmt.Errorf("type %s: %w", typeName, ErrNotFound)
	}
	if err := e.MakeCompound(); err != nil {
		return err
	}
	if !e.Has(t) {
		e.Push(t)
	}
	for _, f := range t.Fields {
		if _, err := e.Child(f.Name, true); err != nil {
			return err
		}
	}
	return nil
}
