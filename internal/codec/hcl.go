package codec

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/agentic-research/vartree/internal/nv"
)

// ImportHCL parses src as HCL native syntax and imports it as name.
// Attributes become members in source order; a block becomes a compound
// named by its type, with one nested level per label. Expressions are
// evaluated without variables or functions.
func ImportHCL(s *nv.Store, sc *nv.Scope, name, filename string, src []byte) error {
	f, diags := hclsyntax.ParseConfig(src, filename, hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return fmt.Errorf("parse hcl: %w", diags)
	}
	body, ok := f.Body.(*hclsyntax.Body)
	if !ok {
		return fmt.Errorf("parse hcl: unexpected body %T", f.Body)
	}
	data, err := fromBody(body)
	if err != nil {
		return err
	}
	return Import(s, sc, name, data)
}

func fromBody(body *hclsyntax.Body) (*Object, error) {
	out := orderedmap.New[string, any]()

	attrs := make([]*hclsyntax.Attribute, 0, len(body.Attributes))
	for _, a := range body.Attributes {
		attrs = append(attrs, a)
	}
	sort.Slice(attrs, func(i, j int) bool {
		return attrs[i].SrcRange.Start.Byte < attrs[j].SrcRange.Start.Byte
	})
	for _, a := range attrs {
		v, diags := a.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("%s: %w", a.Name, diags)
		}
		out.Set(a.Name, fromCty(v))
	}

	for _, b := range body.Blocks {
		inner, err := fromBody(b.Body)
		if err != nil {
			return nil, err
		}
		path := append([]string{b.Type}, b.Labels...)
		parent := out
		for _, key := range path[:len(path)-1] {
			parent = child(parent, key)
		}
		last := path[len(path)-1]
		if prev, ok := parent.Get(last); ok {
			if m, ok := prev.(*Object); ok {
				for p := inner.Oldest(); p != nil; p = p.Next() {
					m.Set(p.Key, p.Value)
				}
				continue
			}
		}
		parent.Set(last, inner)
	}
	return out, nil
}

// child returns the nested object under key, creating it if needed.
func child(m *Object, key string) *Object {
	if v, ok := m.Get(key); ok {
		if c, ok := v.(*Object); ok {
			return c
		}
	}
	c := orderedmap.New[string, any]()
	m.Set(key, c)
	return c
}

func fromCty(v cty.Value) any {
	if v.IsNull() || !v.IsKnown() {
		return nil
	}
	t := v.Type()
	switch {
	case t.Equals(cty.String):
		return v.AsString()
	case t.Equals(cty.Bool):
		return v.True()
	case t.Equals(cty.Number):
		bf := v.AsBigFloat()
		if bf.IsInt() {
			if i, acc := bf.Int64(); acc == big.Exact {
				return i
			}
		}
		f, _ := bf.Float64()
		return f
	case t.IsObjectType() || t.IsMapType():
		m := orderedmap.New[string, any]()
		for it := v.ElementIterator(); it.Next(); {
			k, ev := it.Element()
			m.Set(k.AsString(), fromCty(ev))
		}
		return m
	case t.IsTupleType() || t.IsListType() || t.IsSetType():
		var list []any
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			list = append(list, fromCty(ev))
		}
		return list
	}
	return v.GoString()
}
