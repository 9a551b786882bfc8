package nv

// Discipline is a behavior override attached to an entry. A discipline
// supplies any subset of the capability interfaces below; the stack is
// searched from the head for the first supplier of a capability.
// Disciplines are compared by identity, so implementations should be
// pointer types.
type Discipline interface{}

// Getter supplies the value of an entry.
type Getter interface {
	Get(e *Entry) string
}

// Putter intercepts assignments. Implementations continue the chain with
// e.AssignNext.
type Putter interface {
	Put(e *Entry, value string) error
}

// Numberer supplies the numeric value of an entry.
type Numberer interface {
	Number(e *Entry) (float64, bool)
}

// Nexter drives iteration over the children of owner. cur is nil to
// request the first child; nil is returned at the end.
type Nexter interface {
	Next(owner, cur *Entry) *Entry
}

// Creator creates the missing member name of owner. Returning nil lets
// the next creator, and finally the compound table, handle it.
type Creator interface {
	Create(owner *Entry, name string) *Entry
}

// Cloner returns the discipline to install on dst when src is cloned,
// or nil to install none.
type Cloner interface {
	Clone(src, dst *Entry, flags WalkFlag) Discipline
}

// Typer names the type of a typed entry.
type Typer interface {
	TypeName() string
}

// Push installs d at the head of the stack.
func (e *Entry) Push(d Discipline) {
	e.discs = append([]Discipline{d}, e.discs...)
}

// Pop removes d from the stack and reports whether it was installed.
func (e *Entry) Pop(d Discipline) bool {
	for i, x := range e.discs {
		if x == d {
			e.discs = append(e.discs[:i:i], e.discs[i+1:]...)
			return true
		}
	}
	return false
}

// Disciplines returns the stack, head first.
func (e *Entry) Disciplines() []Discipline {
	return append([]Discipline(nil), e.discs...)
}

// Has reports whether d is installed on e.
func (e *Entry) Has(d Discipline) bool {
	for _, x := range e.discs {
		if x == d {
			return true
		}
	}
	return false
}

// dispatch returns the nearest discipline implementing C. With after set,
// the search starts below after.
func dispatch[C any](e *Entry, after Discipline) (C, bool) {
	var zero C
	i := 0
	if after != nil {
		for i < len(e.discs) && e.discs[i] != after {
			i++
		}
		i++
	}
	for ; i < len(e.discs); i++ {
		if c, ok := e.discs[i].(C); ok {
			return c, true
		}
	}
	return zero, false
}

// TypeName returns the type tag of e, or "".
func (e *Entry) TypeName() string {
	if t, ok := dispatch[Typer](e, nil); ok {
		return t.TypeName()
	}
	return ""
}
