package nv

import (
	"fmt"
	"io"
	"strings"

	"github.com/agentic-research/vartree/api"
	"github.com/agentic-research/vartree/internal/shquote"
)

// Layout selects the shape of rendered text.
type Layout int

const (
	// LayoutPretty puts one member per line, indented with tabs.
	LayoutPretty Layout = iota
	// LayoutFlat puts everything on one line separated by spaces.
	LayoutFlat
	// LayoutCompact is the single-line export form separated by ';'.
	LayoutCompact
)

var layoutNames = map[Layout]string{
	LayoutPretty:  "pretty",
	LayoutFlat:    "flat",
	LayoutCompact: "compact",
}

func (l Layout) String() string { return layoutNames[l] }

// ParseLayout maps a layout name to its Layout.
func ParseLayout(s string) (Layout, error) {
	for l, name := range layoutNames {
		if strings.EqualFold(s, name) {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown layout %q (expected pretty, flat, or compact)", s)
}

// RenderOptions controls Render.
type RenderOptions struct {
	Layout Layout
	// Indent is the tab depth of the first line in LayoutPretty.
	Indent int
	// Export forces LayoutCompact.
	Export bool
	// NoFollow renders stored scalars without consulting get disciplines.
	NoFollow bool
}

// Render writes e as an assignment in canonical text.
func (s *Store) Render(w io.Writer, e *Entry, opts RenderOptions) error {
	_, err := w.Write(s.AppendRender(nil, e, opts))
	return err
}

// RenderString returns e as an assignment in canonical text.
func (s *Store) RenderString(e *Entry, opts RenderOptions) string {
	return string(s.AppendRender(nil, e, opts))
}

// AppendRender appends the assignment text for e to b.
func (s *Store) AppendRender(b []byte, e *Entry, opts RenderOptions) []byte {
	r := newRenderer(s, b, opts)
	name := e.FullName()
	r.b = append(r.b, r.prefix(e, s.Names(e))...)
	r.b = append(r.b, name...)
	r.b = append(r.b, '=')
	r.value(e, name, r.opts.Indent+1, false)
	return r.b
}

// appendValue appends only the value part of e's assignment text.
func (s *Store) appendValue(b []byte, e *Entry, opts RenderOptions) []byte {
	r := newRenderer(s, b, opts)
	r.value(e, e.FullName(), r.opts.Indent+1, false)
	return r.b
}

type renderer struct {
	s    *Store
	opts RenderOptions
	b    []byte
}

func newRenderer(s *Store, b []byte, opts RenderOptions) *renderer {
	if opts.Export {
		opts.Layout = LayoutCompact
	}
	return &renderer{s: s, opts: opts, b: b}
}

// member is a direct member of a group together with the names below it.
type member struct {
	e     *Entry
	label string
	desc  []string
}

// members groups a pre-order name list by the direct members of base.
func members(owner *Entry, base string, names []string) []member {
	var out []member
	head := base + "."
	for i := 0; i < len(names); {
		n := names[i]
		i++
		if !strings.HasPrefix(n, head) {
			continue
		}
		rest := n[len(head):]
		label := rest
		if k := strings.IndexAny(rest, ".["); k >= 0 {
			label = rest[:k]
		}
		full := head + label
		start := i
		for i < len(names) && strings.HasPrefix(names[i], full) && len(names[i]) > len(full) &&
			(names[i][len(full)] == '.' || names[i][len(full)] == '[') {
			i++
		}
		if rest != label || owner.table == nil {
			continue
		}
		e, ok := owner.table.Local(label)
		if !ok {
			continue
		}
		out = append(out, member{e: e, label: label, desc: names[start:i]})
	}
	return out
}

func (r *renderer) value(e *Entry, base string, depth int, assoc bool) {
	switch {
	case e.array != nil:
		r.array(e, depth)
	case e.table != nil && !r.computed(e):
		r.group(e, base, r.s.Names(e), depth)
	default:
		r.scalar(e, assoc)
	}
}

// computed reports whether a getter below the tree discipline supplies
// the value of compound e.
func (r *renderer) computed(e *Entry) bool {
	if r.opts.NoFollow {
		return false
	}
	_, ok := dispatch[Getter](e, treeDisc)
	return ok && e.Has(treeDisc)
}

func (r *renderer) group(e *Entry, base string, names []string, depth int) {
	ms := members(e, base, names)
	if len(ms) == 0 {
		r.b = append(r.b, "()"...)
		return
	}
	r.b = append(r.b, '(')
	if r.opts.Layout == LayoutPretty {
		r.b = append(r.b, '\n')
	}
	for i, m := range ms {
		if r.opts.Layout == LayoutPretty {
			r.tabs(depth)
		}
		full := base + "." + m.label
		if !declared(e, m.e) {
			r.b = append(r.b, r.prefix(m.e, m.desc)...)
		}
		r.b = append(r.b, m.label...)
		r.b = append(r.b, '=')
		nested := m.e.table != nil && m.e.array == nil && !r.computed(m.e)
		switch {
		case m.e.array != nil:
			r.array(m.e, depth+1)
		case nested:
			r.group(m.e, full, m.desc, depth+1)
		default:
			r.scalar(m.e, false)
		}
		switch r.opts.Layout {
		case LayoutPretty:
			r.b = append(r.b, '\n')
		case LayoutCompact:
			r.b = append(r.b, ';')
		default:
			if !nested || i < len(ms)-1 {
				r.b = append(r.b, ' ')
			}
		}
	}
	if r.opts.Layout == LayoutPretty {
		r.tabs(depth - 1)
	}
	r.b = append(r.b, ')')
}

func (r *renderer) array(e *Entry, depth int) {
	a := e.array
	subs := a.Subscripts()
	if len(subs) == 0 {
		r.b = append(r.b, "()"...)
		return
	}
	compound := a.Compound()
	keyed := a.assoc || a.Sparse() || compound
	multiline := compound && r.opts.Layout == LayoutPretty
	r.b = append(r.b, '(')
	if multiline {
		r.b = append(r.b, '\n')
	}
	for i, sub := range subs {
		el, ok := a.elems.Local(sub)
		if !ok {
			continue
		}
		if multiline {
			r.tabs(depth)
		}
		if keyed {
			r.b = append(r.b, '[')
			r.b = append(r.b, shquote.Quote(sub)...)
			r.b = append(r.b, "]="...)
		}
		switch {
		case el.array != nil:
			r.array(el, depth+1)
		case el.table != nil:
			r.group(el, el.FullName(), r.s.Names(el), depth+1)
		default:
			r.scalar(el, a.assoc)
		}
		switch {
		case multiline:
			r.b = append(r.b, '\n')
		case r.opts.Layout != LayoutCompact || i < len(subs)-1:
			r.b = append(r.b, ' ')
		}
	}
	if multiline {
		r.tabs(depth - 1)
	}
	r.b = append(r.b, ')')
}

func (r *renderer) scalar(e *Entry, assoc bool) {
	v := e.value
	if !r.opts.NoFollow {
		v = e.Value()
	}
	if e.attrs.Has(api.LJust) && !e.attrs.Has(api.Integer) {
		v = strings.TrimRight(v, " ")
	}
	q := shquote.Quote(v)
	if !assoc {
		q = shquote.EscapeAssign(q)
	}
	r.b = append(r.b, q...)
}

// prefix renders the declaration needed to read e back with the same
// type and attributes: a type name, or typeset options.
func (r *renderer) prefix(e *Entry, desc []string) string {
	if t := e.TypeName(); t != "" {
		return t + " "
	}
	opts := (e.attrs &^ api.Structural).Options(e.size)
	switch {
	case e.array != nil && e.array.assoc:
		opts = append([]string{"-A"}, opts...)
	case e.array != nil && e.array.Len() == 0:
		opts = append([]string{"-a"}, opts...)
	case e.table != nil && len(desc) == 0 && !r.computed(e):
		opts = append([]string{"-C"}, opts...)
	}
	if len(opts) == 0 {
		return ""
	}
	return "typeset " + strings.Join(opts, " ") + " "
}

// declared reports whether m is a field of owner's type carrying exactly
// the field's attributes, so the type declaration already restores them.
func declared(owner, m *Entry) bool {
	t, ok := dispatch[*Type](owner, nil)
	if !ok || m.TypeName() != "" {
		return false
	}
	for _, f := range t.Fields {
		if f.Name == m.name {
			return f.Attrs&^api.Structural == m.attrs&^api.Structural && m.size == 0
		}
	}
	return false
}

func (r *renderer) tabs(n int) {
	for i := 0; i < n; i++ {
		r.b = append(r.b, '\t')
	}
}
