package codec

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/ohler55/ojg/oj"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/agentic-research/vartree/api"
	"github.com/agentic-research/vartree/internal/nv"
)

// Object is a map that remembers key order.
type Object = orderedmap.OrderedMap[string, any]

// Import replaces name in sc with data. Maps whose keys are all valid
// variable names become compounds, other maps associative arrays, slices
// indexed arrays. Integers and floats get the integer and float
// attributes. Nil values are left unset.
func Import(s *nv.Store, sc *nv.Scope, name string, data any) error {
	e, err := s.Open(sc, name, nv.Create)
	if err != nil {
		return err
	}
	if e.Attrs().Has(api.ReadOnly) {
		return fmt.Errorf("%s: %w", name, nv.ErrReadOnly)
	}
	e.Clear()
	return put(e, data)
}

// ImportJSON parses src as JSON and imports it as name.
func ImportJSON(s *nv.Store, sc *nv.Scope, name string, src []byte) error {
	data, err := oj.Parse(src)
	if err != nil {
		return fmt.Errorf("parse json: %w", err)
	}
	return Import(s, sc, name, data)
}

func put(e *nv.Entry, v any) error {
	switch x := v.(type) {
	case nil:
		return nil
	case *Object:
		var keys []string
		for p := x.Oldest(); p != nil; p = p.Next() {
			keys = append(keys, p.Key)
		}
		return putMap(e, keys, func(k string) any {
			v, _ := x.Get(k)
			return v
		})
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return putMap(e, keys, func(k string) any { return x[k] })
	case []any:
		if err := e.MakeArray(false); err != nil {
			return err
		}
		for i, item := range x {
			el, err := e.Elem(strconv.Itoa(i), true)
			if err != nil {
				return err
			}
			if err := put(el, item); err != nil {
				return err
			}
		}
		return nil
	case string:
		return e.Assign(x)
	case bool:
		return e.Assign(strconv.FormatBool(x))
	case int64:
		e.SetAttrs(e.Attrs()|api.Integer, 0)
		return e.Assign(strconv.FormatInt(x, 10))
	case int:
		e.SetAttrs(e.Attrs()|api.Integer, 0)
		return e.Assign(strconv.Itoa(x))
	case float64:
		e.SetAttrs(e.Attrs()|api.Double, 0)
		return e.Assign(strconv.FormatFloat(x, 'g', -1, 64))
	}
	return e.Assign(fmt.Sprint(v))
}

func putMap(e *nv.Entry, keys []string, get func(string) any) error {
	names := true
	for _, k := range keys {
		if !nv.ValidName(k) {
			names = false
			break
		}
	}
	if names {
		if err := e.MakeCompound(); err != nil {
			return err
		}
	} else if err := e.MakeArray(true); err != nil {
		return err
	}
	for _, k := range keys {
		var (
			c   *nv.Entry
			err error
		)
		if names {
			c, err = e.Child(k, true)
		} else {
			c, err = e.Elem(k, true)
		}
		if err != nil {
			return err
		}
		if err := put(c, get(k)); err != nil {
			return err
		}
	}
	return nil
}
