package assign

import (
	"fmt"
	"strconv"

	"github.com/agentic-research/vartree/api"
	"github.com/agentic-research/vartree/internal/nv"
)

// Apply performs the assignments in sc in order. Attributes are set before
// values so conversions apply; read-only is set last.
func Apply(s *nv.Store, sc *nv.Scope, list []*Assignment) error {
	ap := &applier{s: s, sc: sc}
	for _, a := range list {
		if err := ap.assign(nil, a); err != nil {
			return fmt.Errorf("%d:%d: %s: %w", a.Line, a.Col, a.Name, err)
		}
	}
	return nil
}

// Eval parses src and applies it in sc.
func Eval(s *nv.Store, sc *nv.Scope, src string) error {
	list, err := Parse(src)
	if err != nil {
		return err
	}
	return Apply(s, sc, list)
}

type applier struct {
	s  *nv.Store
	sc *nv.Scope
}

func (ap *applier) open(parent *nv.Entry, name string) (*nv.Entry, error) {
	if parent == nil {
		return ap.s.Open(ap.sc, name, nv.Create)
	}
	return parent.Resolve("."+name, nv.Create)
}

func (ap *applier) assign(parent *nv.Entry, a *Assignment) error {
	e, err := ap.open(parent, a.Name)
	if err != nil {
		return err
	}
	typed := a.Type != ""
	if typed {
		if err := ap.s.SetType(e, a.Type); err != nil {
			return err
		}
	}
	if a.Declared {
		if e.Attrs().Has(api.ReadOnly) {
			return fmt.Errorf("%s: %w", e.FullName(), nv.ErrReadOnly)
		}
		e.SetAttrs(a.Attrs&^api.ReadOnly, a.Size)
	}
	if a.Value == nil {
		if err := ap.shape(e, a.Shape); err != nil {
			return err
		}
	} else if err := ap.value(e, a.Value, typed); err != nil {
		return err
	}
	if a.Attrs.Has(api.ReadOnly) {
		e.AddAttrs(api.ReadOnly)
	}
	return nil
}

// shape gives a bare declaration the structure its options ask for.
func (ap *applier) shape(e *nv.Entry, k Kind) error {
	switch k {
	case Compound:
		return e.MakeCompound()
	case Indexed, Assoc:
		return e.MakeArray(k == Assoc)
	}
	return nil
}

func (ap *applier) value(e *nv.Entry, v *Value, typed bool) error {
	if v.Kind != Scalar && e.Attrs().Has(api.ReadOnly) {
		return fmt.Errorf("%s: %w", e.FullName(), nv.ErrReadOnly)
	}
	switch v.Kind {
	case Scalar:
		return e.Assign(v.Scalar)
	case Compound:
		if !typed {
			e.Clear()
			if err := e.MakeCompound(); err != nil {
				return err
			}
		}
		for _, m := range v.Members {
			if err := ap.assign(e, m); err != nil {
				return err
			}
		}
		return nil
	}

	e.Clear()
	if err := e.MakeArray(v.Kind == Assoc); err != nil {
		return err
	}
	next := 0
	for _, el := range v.Elems {
		key := el.Key
		if key == "" {
			key = strconv.Itoa(next)
		}
		if n, err := strconv.Atoi(key); err == nil && v.Kind == Indexed {
			next = n + 1
		}
		x, err := e.Elem(key, true)
		if err != nil {
			return err
		}
		if err := ap.value(x, el.Value, false); err != nil {
			return err
		}
	}
	return nil
}
