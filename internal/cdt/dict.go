// Package cdt provides string-keyed containers that can be chained into
// view paths. A dictionary viewing another falls back to it on search and
// merges it into iteration, with entries in nearer dictionaries shadowing
// same-keyed entries further along the chain.
package cdt

import (
	"errors"
	"strings"

	"github.com/google/btree"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var (
	// ErrViewCycle is returned when a view would make a dictionary reach itself.
	ErrViewCycle = errors.New("view would create a cycle")
	// ErrViewMethod is returned when ordered and unordered dictionaries are chained.
	ErrViewMethod = errors.New("view method mismatch")
)

// Method selects the storage discipline of a dictionary.
type Method int

const (
	// Ordered keeps keys sorted by the dictionary's compare function.
	Ordered Method = iota
	// Unordered keeps keys in insertion order.
	Unordered
)

func (m Method) String() string {
	if m == Unordered {
		return "unordered"
	}
	return "ordered"
}

// Mode is a search mode.
type Mode int

const (
	Search  Mode = iota // exact key
	Match               // exact key, first match along the view path
	First               // smallest (ordered) or oldest (unordered) key
	Last                // largest or newest key
	Next                // successor of the key
	Prev                // predecessor of the key
	AtLeast             // key or its successor
	AtMost              // key or its predecessor
)

type pair[V any] struct {
	key string
	val V
}

// Option configures a new Dict.
type Option func(*options)

type options struct {
	id  uint32
	cmp func(a, b string) int
}

// WithID tags the dictionary with an arena id.
func WithID(id uint32) Option {
	return func(o *options) { o.id = id }
}

// WithCompare sets the key ordering of an ordered dictionary.
func WithCompare(cmp func(a, b string) int) Option {
	return func(o *options) { o.cmp = cmp }
}

// Dict is a string-keyed dictionary with an optional view.
// It is not safe for concurrent use.
type Dict[V any] struct {
	id     uint32
	method Method
	cmp    func(a, b string) int
	tree   *btree.BTreeG[pair[V]]
	hash   *orderedmap.OrderedMap[string, V]

	view  *Dict[V]
	nview int
	walk  *Dict[V]
}

// New creates an empty dictionary.
func New[V any](method Method, opts ...Option) *Dict[V] {
	o := options{cmp: strings.Compare}
	for _, fn := range opts {
		fn(&o)
	}
	d := &Dict[V]{id: o.id, method: method, cmp: o.cmp}
	if method == Ordered {
		cmp := o.cmp
		d.tree = btree.NewG[pair[V]](8, func(a, b pair[V]) bool {
			return cmp(a.key, b.key) < 0
		})
	} else {
		d.hash = orderedmap.New[string, V]()
	}
	return d
}

func (d *Dict[V]) ID() uint32     { return d.id }
func (d *Dict[V]) Method() Method { return d.method }

// Viewed returns the dictionary d falls back to, or nil.
func (d *Dict[V]) Viewed() *Dict[V] { return d.view }

// ViewCount returns the number of dictionaries viewing d.
func (d *Dict[V]) ViewCount() int { return d.nview }

// Walk returns the dictionary along the view path that served the last
// search, or nil. The value is a cache and any mutation resets it.
func (d *Dict[V]) Walk() *Dict[V] { return d.walk }

// Len returns the number of local entries.
func (d *Dict[V]) Len() int {
	if d.tree != nil {
		return d.tree.Len()
	}
	return d.hash.Len()
}

// Insert adds or replaces a local entry.
func (d *Dict[V]) Insert(key string, v V) (old V, replaced bool) {
	d.walk = nil
	if d.tree != nil {
		p, ok := d.tree.ReplaceOrInsert(pair[V]{key: key, val: v})
		return p.val, ok
	}
	return d.hash.Set(key, v)
}

// Delete removes a local entry. The view is never consulted.
func (d *Dict[V]) Delete(key string) (V, bool) {
	d.walk = nil
	if d.tree != nil {
		p, ok := d.tree.Delete(pair[V]{key: key})
		return p.val, ok
	}
	return d.hash.Delete(key)
}

// Local looks key up in d alone.
func (d *Dict[V]) Local(key string) (V, bool) {
	_, v, ok := d.local(key, Search)
	return v, ok
}

// Get looks key up along the view path.
func (d *Dict[V]) Get(key string) (V, bool) {
	_, v, ok := d.Search(key, Search)
	return v, ok
}

// Range calls fn for each local entry in order until fn returns false.
// fn must not mutate d.
func (d *Dict[V]) Range(fn func(key string, v V) bool) {
	if d.tree != nil {
		d.tree.Ascend(func(p pair[V]) bool { return fn(p.key, p.val) })
		return
	}
	for p := d.hash.Oldest(); p != nil; p = p.Next() {
		if !fn(p.Key, p.Value) {
			return
		}
	}
}

// Keys returns a snapshot of the local keys in order.
func (d *Dict[V]) Keys() []string {
	keys := make([]string, 0, d.Len())
	d.Range(func(k string, _ V) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

// Each calls fn for every visible entry along the view path, each key
// once, until fn returns false.
func (d *Dict[V]) Each(fn func(key string, v V) bool) {
	k, v, ok := d.Search("", First)
	for ok {
		if !fn(k, v) {
			return
		}
		k, v, ok = d.Search(k, Next)
	}
}

// local runs a search against d's own storage.
func (d *Dict[V]) local(key string, mode Mode) (string, V, bool) {
	var zero V
	if d.tree != nil {
		return d.treeSearch(key, mode)
	}
	switch mode {
	case First:
		if p := d.hash.Oldest(); p != nil {
			return p.Key, p.Value, true
		}
	case Last:
		if p := d.hash.Newest(); p != nil {
			return p.Key, p.Value, true
		}
	case Next:
		if p := d.hash.GetPair(key); p != nil {
			if n := p.Next(); n != nil {
				return n.Key, n.Value, true
			}
		}
	case Prev:
		if p := d.hash.GetPair(key); p != nil {
			if n := p.Prev(); n != nil {
				return n.Key, n.Value, true
			}
		}
	default:
		if v, ok := d.hash.Get(key); ok {
			return key, v, true
		}
	}
	return "", zero, false
}

func (d *Dict[V]) treeSearch(key string, mode Mode) (string, V, bool) {
	var (
		found pair[V]
		ok    bool
	)
	pivot := pair[V]{key: key}
	switch mode {
	case First:
		found, ok = d.tree.Min()
	case Last:
		found, ok = d.tree.Max()
	case Next, AtLeast:
		d.tree.AscendGreaterOrEqual(pivot, func(p pair[V]) bool {
			if mode == Next && d.cmp(p.key, key) == 0 {
				return true
			}
			found, ok = p, true
			return false
		})
	case Prev, AtMost:
		d.tree.DescendLessOrEqual(pivot, func(p pair[V]) bool {
			if mode == Prev && d.cmp(p.key, key) == 0 {
				return true
			}
			found, ok = p, true
			return false
		})
	default:
		found, ok = d.tree.Get(pivot)
	}
	return found.key, found.val, ok
}
