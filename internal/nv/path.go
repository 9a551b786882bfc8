package nv

import (
	"fmt"
	"strings"
)

// OpenFlag controls name resolution.
type OpenFlag int

const (
	// Create adds missing entries. Intermediate segments become compound.
	Create OpenFlag = 1 << iota
	// Compound makes the final entry compound.
	Compound
	// Assoc creates missing arrays as associative.
	Assoc
	// NoScope restricts the first segment to the scope's own table.
	NoScope
)

type segment struct {
	name string
	subs []string
}

// parsePath splits a dotted, subscripted name. The first segment may have
// an empty name when the path starts with a subscript.
func parsePath(path string) ([]segment, error) {
	var segs []segment
	i := 0
	for {
		start := i
		for i < len(path) && path[i] != '.' && path[i] != '[' {
			if path[i] == ']' {
				return nil, fmt.Errorf("%q: %w", path, ErrSubscript)
			}
			i++
		}
		seg := segment{name: path[start:i]}
		for i < len(path) && path[i] == '[' {
			depth, j := 0, i
			for ; j < len(path); j++ {
				if path[j] == '[' {
					depth++
				} else if path[j] == ']' {
					if depth--; depth == 0 {
						break
					}
				}
			}
			if j == len(path) {
				return nil, fmt.Errorf("%q: unterminated: %w", path, ErrSubscript)
			}
			sub := unquoteSub(path[i+1 : j])
			if sub == "" {
				return nil, fmt.Errorf("%q: empty: %w", path, ErrSubscript)
			}
			seg.subs = append(seg.subs, sub)
			i = j + 1
		}
		segs = append(segs, seg)
		if i == len(path) {
			return segs, nil
		}
		if path[i] != '.' {
			return nil, fmt.Errorf("%q: %w", path, ErrSubscript)
		}
		i++
		if i == len(path) {
			return nil, fmt.Errorf("%q: trailing dot: %w", path, ErrName)
		}
	}
}

func unquoteSub(s string) string {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

// ValidName reports whether s is a plain variable name.
func ValidName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func checkNames(path string, segs []segment, headMayBeEmpty bool) error {
	for i, seg := range segs {
		if i == 0 && headMayBeEmpty && seg.name == "" && len(seg.subs) > 0 {
			continue
		}
		if !ValidName(seg.name) {
			return fmt.Errorf("%q: %w", path, ErrName)
		}
	}
	return nil
}

// Open resolves name in sc. With Create, missing entries are added to the
// scope's own table and intermediate segments become compound.
func (s *Store) Open(sc *Scope, name string, flags OpenFlag) (*Entry, error) {
	return s.resolve(sc.table, name, flags)
}

// Lookup resolves name in sc without creating anything.
func (s *Store) Lookup(sc *Scope, name string) (*Entry, bool) {
	e, err := s.resolve(sc.table, name, 0)
	return e, err == nil
}

// Assign sets name in sc to a scalar value, creating it if needed.
func (s *Store) Assign(sc *Scope, name, value string) (*Entry, error) {
	e, err := s.Open(sc, name, Create)
	if err != nil {
		return nil, err
	}
	if err := e.Assign(value); err != nil {
		return nil, err
	}
	return e, nil
}

// lookupIn resolves name against table, returning nil on any failure.
func (s *Store) lookupIn(table *Table, name string) *Entry {
	if table == nil || name == "" {
		return nil
	}
	e, err := s.resolve(table, name, 0)
	if err != nil {
		return nil
	}
	return e
}

func (s *Store) resolve(table *Table, name string, flags OpenFlag) (*Entry, error) {
	segs, err := parsePath(name)
	if err != nil {
		return nil, err
	}
	if err := checkNames(name, segs, false); err != nil {
		return nil, err
	}
	var e *Entry
	for i, seg := range segs {
		if i == 0 {
			e, err = s.top(table, seg.name, flags)
		} else {
			e, err = e.descend(seg.name, flags)
		}
		if err != nil {
			return nil, err
		}
		if e, err = e.subscript(seg.subs, flags); err != nil {
			return nil, err
		}
	}
	if flags&Compound != 0 {
		if err := e.MakeCompound(); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (s *Store) top(table *Table, name string, flags OpenFlag) (*Entry, error) {
	var (
		e  *Entry
		ok bool
	)
	if flags&NoScope != 0 {
		e, ok = table.Local(name)
	} else {
		e, ok = table.Get(name)
	}
	if ok {
		return e, nil
	}
	if flags&Create == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	e = s.newEntry(name)
	e.holder = table
	table.Insert(name, e)
	return e, nil
}

func (e *Entry) descend(name string, flags OpenFlag) (*Entry, error) {
	if e.table == nil && (flags&Create == 0 || e.set || e.array != nil) {
		return nil, fmt.Errorf("%s: %w", e.FullName(), ErrNotCompound)
	}
	return e.Child(name, flags&Create != 0)
}

func (e *Entry) subscript(subs []string, flags OpenFlag) (*Entry, error) {
	var err error
	for _, sub := range subs {
		if e.array == nil && flags&(Create|Assoc) == Create|Assoc {
			if err := e.MakeArray(true); err != nil {
				return nil, err
			}
		}
		if e, err = e.Elem(sub, flags&Create != 0); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Resolve follows a relative path from e: ".a.b", "[k].c" or "".
func (e *Entry) Resolve(rel string, flags OpenFlag) (*Entry, error) {
	rel = strings.TrimPrefix(rel, ".")
	if rel == "" {
		return e, nil
	}
	segs, err := parsePath(rel)
	if err != nil {
		return nil, err
	}
	if err := checkNames(rel, segs, true); err != nil {
		return nil, err
	}
	cur := e
	for _, seg := range segs {
		if seg.name != "" {
			if cur, err = cur.descend(seg.name, flags); err != nil {
				return nil, err
			}
		}
		if cur, err = cur.subscript(seg.subs, flags); err != nil {
			return nil, err
		}
	}
	return cur, nil
}
