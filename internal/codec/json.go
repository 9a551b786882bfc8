// Package codec converts variable trees to and from JSON, YAML and HCL.
package codec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring"
	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/agentic-research/vartree/api"
	"github.com/agentic-research/vartree/internal/nv"
)

// ToValue converts e into plain data: compounds and associative arrays
// become maps, indexed arrays become slices, integer and float entries
// become numbers and everything else a string. A compound reached again
// through a shared table inside its own subtree becomes nil.
func ToValue(e *nv.Entry) any {
	return toValue(e, roaring.New())
}

func toValue(e *nv.Entry, open *roaring.Bitmap) any {
	switch {
	case e.IsArray():
		return arrayValue(e.Array(), open)
	case e.IsCompound() && hasGetterBelowTree(e):
		return scalarValue(e)
	case e.IsCompound():
		id := e.Table().ID()
		if open.Contains(id) {
			return nil
		}
		open.Add(id)
		defer open.Remove(id)
		m := make(map[string]any, e.Table().Len())
		for _, k := range e.Table().Keys() {
			c, ok := e.Table().Local(k)
			if !ok || c.IsNull() {
				continue
			}
			m[k] = toValue(c, open)
		}
		return m
	}
	return scalarValue(e)
}

func hasGetterBelowTree(e *nv.Entry) bool {
	ds := e.Disciplines()
	for i, d := range ds {
		if d != nv.TreeDiscipline() {
			continue
		}
		for _, below := range ds[i+1:] {
			if _, ok := below.(nv.Getter); ok {
				return true
			}
		}
	}
	return false
}

func arrayValue(a *nv.Array, open *roaring.Bitmap) any {
	if a.Assoc() {
		m := make(map[string]any, a.Len())
		for _, k := range a.Subscripts() {
			el, _ := a.Get(k)
			m[k] = toValue(el, open)
		}
		return m
	}
	list := make([]any, a.Max()+1)
	for _, k := range a.Subscripts() {
		el, _ := a.Get(k)
		i, _ := strconv.Atoi(k)
		list[i] = toValue(el, open)
	}
	return list
}

func scalarValue(e *nv.Entry) any {
	if e.IsNull() {
		return nil
	}
	v := e.Value()
	switch {
	case e.Attrs().Has(api.Integer):
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n
		}
	case e.Attrs().Has(api.Double):
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return v
}

// ScopeValue converts every set variable visible in sc, keyed by name.
func ScopeValue(s *nv.Store, sc *nv.Scope) map[string]any {
	out := make(map[string]any)
	for _, name := range sc.Names() {
		if e, ok := s.Lookup(sc, name); ok && !e.IsNull() {
			out[name] = ToValue(e)
		}
	}
	return out
}

// ToJSON renders e as JSON with sorted keys. indent 0 gives one line.
func ToJSON(e *nv.Entry, indent int) string {
	return JSON(ToValue(e), indent)
}

// JSON renders plain data as JSON with sorted keys.
func JSON(v any, indent int) string {
	return oj.JSON(v, &ojg.Options{Indent: indent, Sort: true})
}

// Select evaluates a JSONPath expression against the JSON form of e.
func Select(e *nv.Entry, path string) ([]any, error) {
	return Query(ToValue(e), path)
}

// Query evaluates a JSONPath expression against plain data.
func Query(v any, path string) ([]any, error) {
	x, err := jp.ParseString(path)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", path, err)
	}
	return x.Get(v), nil
}
