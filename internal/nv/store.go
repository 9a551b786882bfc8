// Package nv implements the scoped variable store: entries with attribute
// bits and discipline stacks, compound and array values, a resumable
// directory iterator over compound trees, and the tree serializer and
// structural copy/move/delete built on it.
package nv

import (
	"strconv"

	"github.com/RoaringBitmap/roaring"
	"github.com/go-logr/logr"

	"github.com/agentic-research/vartree/internal/cdt"
)

// Table is a container of entries.
type Table = cdt.Dict[*Entry]

// Store owns every entry and table it hands out. Entries and tables carry
// arena ids; the store indexes live tables by id and tracks live entry ids
// in a bitmap. A Store is not safe for concurrent use.
type Store struct {
	log    logr.Logger
	method cdt.Method

	nextID uint32
	tables map[uint32]*Table
	refs   map[uint32]int // tables shared by more than one compound
	live   *roaring.Bitmap
	types  map[string]*Type

	global *Scope
	// seen guards deep clones against aliased tables.
	seen *roaring.Bitmap
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for diagnostics. The default discards.
func WithLogger(l logr.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithMethod selects the container method for scopes and compound tables.
func WithMethod(m cdt.Method) Option {
	return func(s *Store) { s.method = m }
}

// NewStore creates a store with an empty global scope.
func NewStore(opts ...Option) *Store {
	s := &Store{
		log:    logr.Discard(),
		method: cdt.Ordered,
		tables: make(map[uint32]*Table),
		refs:   make(map[uint32]int),
		live:   roaring.New(),
		types:  make(map[string]*Type),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.global = &Scope{store: s, table: s.newTable()}
	return s
}

// Global returns the outermost scope.
func (s *Store) Global() *Scope { return s.global }

// Method returns the container method used for scopes and compounds.
func (s *Store) Method() cdt.Method { return s.method }

// Table returns the live table with the given id.
func (s *Store) Table(id uint32) (*Table, bool) {
	t, ok := s.tables[id]
	return t, ok
}

// Live reports whether an entry id is still allocated.
func (s *Store) Live(id uint32) bool { return s.live.Contains(id) }

// Len returns the number of live entries.
func (s *Store) Len() int { return int(s.live.GetCardinality()) }

func (s *Store) id() uint32 {
	s.nextID++
	return s.nextID
}

func (s *Store) newTable() *Table {
	id := s.id()
	t := cdt.New[*Entry](s.method, cdt.WithID(id))
	s.tables[id] = t
	s.refs[id] = 1
	return t
}

func (s *Store) newArrayTable(assoc bool) *Table {
	id := s.id()
	opts := []cdt.Option{cdt.WithID(id)}
	if !assoc {
		opts = append(opts, cdt.WithCompare(compareIndex))
	}
	t := cdt.New[*Entry](cdt.Ordered, opts...)
	s.tables[id] = t
	s.refs[id] = 1
	return t
}

// shareTable records one more owner of t.
func (s *Store) shareTable(t *Table) {
	s.refs[t.ID()]++
}

// releaseTable drops one owner of t and frees it, with everything below
// it, once no owner is left.
func (s *Store) releaseTable(t *Table) {
	if t == nil {
		return
	}
	id := t.ID()
	if s.refs[id] > 1 {
		s.refs[id]--
		return
	}
	delete(s.refs, id)
	delete(s.tables, id)
	t.Range(func(_ string, e *Entry) bool {
		s.free(e)
		return true
	})
}

func (s *Store) newEntry(name string) *Entry {
	e := &Entry{id: s.id(), name: name, store: s}
	s.live.Add(e.id)
	return e
}

// free releases e and everything it owns. e must already be unlinked.
func (s *Store) free(e *Entry) {
	if e.table != nil {
		s.releaseTable(e.table)
		e.table = nil
	}
	if e.array != nil {
		s.releaseTable(e.array.elems)
		e.array = nil
	}
	e.discs = nil
	s.live.Remove(e.id)
}

// compareIndex orders decimal subscripts numerically.
func compareIndex(a, b string) int {
	x, errA := strconv.Atoi(a)
	y, errB := strconv.Atoi(b)
	switch {
	case errA != nil || errB != nil:
		if a < b {
			return -1
		} else if a > b {
			return 1
		}
		return 0
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

// Scope is a lexical level of variables. A nested scope views its parent,
// so lookups fall through while new entries land in the nested scope.
type Scope struct {
	store  *Store
	table  *Table
	parent *Scope
}

// NewScope creates a scope whose table views parent's.
func (s *Store) NewScope(parent *Scope) (*Scope, error) {
	if parent == nil {
		parent = s.global
	}
	sc := &Scope{store: s, table: s.newTable(), parent: parent}
	if err := sc.table.View(parent.table); err != nil {
		s.log.V(1).Info("view rejected", "table", sc.table.ID(), "parent", parent.table.ID(), "err", err)
		s.releaseTable(sc.table)
		return nil, err
	}
	return sc, nil
}

// Table returns the scope's own table.
func (sc *Scope) Table() *Table { return sc.table }

// Parent returns the enclosing scope, nil for the global scope.
func (sc *Scope) Parent() *Scope { return sc.parent }

// Close detaches the scope from its parent and frees its entries.
func (sc *Scope) Close() {
	if sc.parent == nil {
		return
	}
	_ = sc.table.View(nil)
	sc.store.releaseTable(sc.table)
	sc.parent = nil
}

// Rebind points the scope at a different fallback scope.
func (sc *Scope) Rebind(parent *Scope) error {
	if err := sc.table.View(parent.table); err != nil {
		sc.store.log.V(1).Info("view rejected", "table", sc.table.ID(), "parent", parent.table.ID(), "err", err)
		return err
	}
	sc.parent = parent
	return nil
}

// Names returns the names visible from sc, nearest scope first on ties.
func (sc *Scope) Names() []string {
	var out []string
	sc.table.Each(func(k string, _ *Entry) bool {
		out = append(out, k)
		return true
	})
	return out
}
