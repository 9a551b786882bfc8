package nv

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/agentic-research/vartree/api"
)

// Entry is a named variable. Its value is a scalar, a nested table when a
// Tree discipline is installed, or an Array of element entries.
type Entry struct {
	id    uint32
	name  string
	store *Store

	value string
	set   bool
	attrs api.Attr
	size  int

	discs []Discipline // head first

	parent *Entry // compound owning the table e lives in
	holder *Table // table e lives in
	elemOf *Array // set for array elements

	table *Table
	array *Array
}

func (e *Entry) ID() uint32 { return e.id }

// Name returns the last path segment, or the subscript for an element.
func (e *Entry) Name() string { return e.name }

func (e *Entry) Attrs() api.Attr { return e.attrs }
func (e *Entry) Size() int       { return e.size }
func (e *Entry) Parent() *Entry  { return e.parent }
func (e *Entry) Table() *Table   { return e.table }
func (e *Entry) Array() *Array   { return e.array }

// Container returns the table e was resolved in.
func (e *Entry) Container() *Table {
	if e.elemOf != nil {
		return e.elemOf.elems
	}
	return e.holder
}

// ElementOf returns the array e is an element of, or nil.
func (e *Entry) ElementOf() *Array { return e.elemOf }

// FullName returns the dotted and subscripted path of e.
func (e *Entry) FullName() string {
	switch {
	case e.elemOf != nil:
		return e.elemOf.owner.FullName() + "[" + e.name + "]"
	case e.parent != nil:
		return e.parent.FullName() + "." + e.name
	}
	return e.name
}

// IsCompound reports whether e owns a nested table.
func (e *Entry) IsCompound() bool { return e.table != nil }

// IsArray reports whether e holds array elements.
func (e *Entry) IsArray() bool { return e.array != nil }

// IsNull reports whether e has no value of any kind.
func (e *Entry) IsNull() bool {
	if e.set || e.table != nil || e.array != nil {
		return false
	}
	for _, d := range e.discs {
		if _, ok := d.(Getter); ok {
			return false
		}
	}
	return true
}

// IsSet reports whether a scalar value was assigned.
func (e *Entry) IsSet() bool { return e.set }

// Raw returns the stored scalar without consulting disciplines.
func (e *Entry) Raw() string { return e.value }

// Value returns the value through the get chain.
func (e *Entry) Value() string {
	if g, ok := dispatch[Getter](e, nil); ok {
		return g.Get(e)
	}
	return e.value
}

// Number returns the numeric value through the numeric chain.
func (e *Entry) Number() (float64, bool) {
	if n, ok := dispatch[Numberer](e, nil); ok {
		return n.Number(e)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(e.Value()), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Assign sets the value through the put chain.
func (e *Entry) Assign(value string) error {
	if e.attrs.Has(api.ReadOnly) {
		return fmt.Errorf("%s: %w", e.FullName(), ErrReadOnly)
	}
	if p, ok := dispatch[Putter](e, nil); ok {
		return p.Put(e, value)
	}
	return e.putScalar(value)
}

// AssignNext continues an assignment past discipline d.
func (e *Entry) AssignNext(d Discipline, value string) error {
	if p, ok := dispatch[Putter](e, d); ok {
		return p.Put(e, value)
	}
	return e.putScalar(value)
}

// ValueNext continues a read past discipline d.
func (e *Entry) ValueNext(d Discipline) string {
	if g, ok := dispatch[Getter](e, d); ok {
		return g.Get(e)
	}
	return e.value
}

// SetAttrs replaces the attribute bits and width of e. Structural bits
// are kept as they are.
func (e *Entry) SetAttrs(a api.Attr, size int) {
	e.attrs = e.attrs&api.Structural | a&^api.Structural
	e.size = size
}

// AddAttrs sets additional attribute bits.
func (e *Entry) AddAttrs(a api.Attr) {
	e.attrs |= a &^ api.Structural
}

// SetKeepOnEmpty marks e to survive deletion passes.
func (e *Entry) SetKeepOnEmpty(keep bool) {
	if keep {
		e.attrs |= api.KeepOnEmpty
	} else {
		e.attrs &^= api.KeepOnEmpty
	}
}

// putScalar is the built-in put: it applies the attribute conversions and
// stores the result.
func (e *Entry) putScalar(v string) error {
	switch {
	case e.attrs.Has(api.Upper):
		v = strings.ToUpper(v)
	case e.attrs.Has(api.Lower):
		v = strings.ToLower(v)
	}
	switch {
	case e.attrs.Has(api.Integer):
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %q: %w", e.FullName(), v, ErrArith)
		}
		v = strconv.FormatInt(n, 10)
	case e.attrs.Has(api.Double):
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("%s: %q: %w", e.FullName(), v, ErrArith)
		}
		v = strconv.FormatFloat(f, 'g', -1, 64)
	}
	if e.size > 0 {
		v = justify(v, e.size, e.attrs)
	}
	e.value, e.set = v, true
	return nil
}

func justify(v string, size int, a api.Attr) string {
	switch {
	case a.Has(api.LJust):
		v = strings.TrimLeft(v, " ")
		if len(v) >= size {
			return v[:size]
		}
		return v + strings.Repeat(" ", size-len(v))
	case a.Has(api.ZFill):
		v = strings.TrimLeft(v, " ")
		if len(v) >= size {
			return v[len(v)-size:]
		}
		return strings.Repeat("0", size-len(v)) + v
	case a.Has(api.RJust):
		v = strings.TrimRight(v, " ")
		if len(v) >= size {
			return v[len(v)-size:]
		}
		return strings.Repeat(" ", size-len(v)) + v
	}
	return v
}

// Clear drops the scalar value and any nested structure but keeps the
// entry, its attributes and its non-structural disciplines.
func (e *Entry) Clear() {
	e.value, e.set = "", false
	if e.table != nil {
		e.store.releaseTable(e.table)
		e.table = nil
		e.Pop(treeDisc)
	}
	if e.array != nil {
		e.store.releaseTable(e.array.elems)
		e.array = nil
		e.attrs &^= api.Array | api.Assoc
	}
}

// Child returns the member name of compound e, creating it when create is
// set. Creation defers to the create chain before adding the member
// directly.
func (e *Entry) Child(name string, create bool) (*Entry, error) {
	if e.table == nil {
		if !create {
			return nil, fmt.Errorf("%s: %w", e.FullName(), ErrNotCompound)
		}
		if err := e.MakeCompound(); err != nil {
			return nil, err
		}
	}
	if c, ok := e.table.Get(name); ok {
		return c, nil
	}
	if !create {
		return nil, fmt.Errorf("%s.%s: %w", e.FullName(), name, ErrNotFound)
	}
	if cr, ok := dispatch[Creator](e, nil); ok {
		if c := cr.Create(e, name); c != nil {
			return c, nil
		}
	}
	return e.AddChild(name), nil
}

// AddChild inserts a fresh member directly into the nested table.
func (e *Entry) AddChild(name string) *Entry {
	c := e.store.newEntry(name)
	c.parent = e
	c.holder = e.table
	if old, ok := e.table.Insert(name, c); ok {
		e.store.free(old)
	}
	return c
}

// MakeCompound turns e into a compound value with an empty table. A set
// scalar value is dropped.
func (e *Entry) MakeCompound() error {
	if e.table != nil {
		return nil
	}
	if e.array != nil {
		return fmt.Errorf("%s: array: %w", e.FullName(), ErrNotCompound)
	}
	e.value, e.set = "", false
	e.table = e.store.newTable()
	e.Push(treeDisc)
	return nil
}

// MakeArray turns e into an array. A set scalar becomes element 0 of an
// indexed array.
func (e *Entry) MakeArray(assoc bool) error {
	if e.array != nil {
		if e.array.assoc != assoc && e.array.Len() > 0 {
			return fmt.Errorf("%s: %w: array kind is fixed", e.FullName(), ErrSubscript)
		}
		e.array.assoc = assoc
		e.setArrayAttrs()
		return nil
	}
	if e.table != nil {
		return fmt.Errorf("%s: %w: compound", e.FullName(), ErrSubscript)
	}
	e.array = &Array{owner: e, assoc: assoc, elems: e.store.newArrayTable(assoc)}
	e.setArrayAttrs()
	if e.set && !assoc {
		el := e.array.add("0")
		el.value, el.set = e.value, true
	}
	e.value, e.set = "", false
	return nil
}

func (e *Entry) setArrayAttrs() {
	e.attrs |= api.Array
	if e.array.assoc {
		e.attrs |= api.Assoc
	} else {
		e.attrs &^= api.Assoc
	}
}

// Elem returns element sub of array e, creating the array and element
// when create is set.
func (e *Entry) Elem(sub string, create bool) (*Entry, error) {
	if e.array == nil {
		if !create {
			return nil, fmt.Errorf("%s[%s]: %w", e.FullName(), sub, ErrNotFound)
		}
		if err := e.MakeArray(!isIndex(sub)); err != nil {
			return nil, err
		}
	}
	key, err := e.array.key(sub)
	if err != nil {
		return nil, fmt.Errorf("%s[%s]: %w", e.FullName(), sub, err)
	}
	el, ok := e.array.elems.Local(key)
	if !ok {
		if !create {
			return nil, fmt.Errorf("%s[%s]: %w", e.FullName(), sub, ErrNotFound)
		}
		el = e.array.add(key)
	}
	e.array.cur = key
	return el, nil
}

// Unlink removes e from the container it lives in and frees it.
func (e *Entry) unlink() {
	if e.elemOf != nil {
		e.elemOf.elems.Delete(e.name)
	} else if e.holder != nil {
		e.holder.Delete(e.name)
	}
	e.store.free(e)
}

// scope returns the table the topmost ancestor of e lives in.
func (e *Entry) scope() *Table {
	top := e
	for {
		switch {
		case top.elemOf != nil:
			top = top.elemOf.owner
		case top.parent != nil:
			top = top.parent
		default:
			return top.holder
		}
	}
}
