package cdt

// View makes d fall back to v. A nil v detaches d from its current view.
// Views that would form a cycle or mix methods are rejected and leave
// both dictionaries unchanged.
func (d *Dict[V]) View(v *Dict[V]) error {
	if v != nil {
		if v.method != d.method {
			return ErrViewMethod
		}
		for t := v; t != nil; t = t.view {
			if t == d {
				return ErrViewCycle
			}
		}
	}
	if d.view != nil {
		d.view.nview--
	}
	d.view = v
	d.walk = nil
	if v != nil {
		v.nview++
	}
	return nil
}

// Search looks key up along the view path using mode.
//
// Exact modes return the entry of the first dictionary holding the key.
// On ordered paths the boundary modes pick the best candidate of every
// dictionary, the earliest dictionary winning ties. On unordered paths
// Next and Prev skip keys that a dictionary nearer the head also holds.
func (d *Dict[V]) Search(key string, mode Mode) (string, V, bool) {
	if d.view == nil {
		k, v, ok := d.local(key, mode)
		d.walk = nil
		if ok {
			d.walk = d
		}
		return k, v, ok
	}
	switch {
	case mode == Search || mode == Match:
		return d.firstMatch(key, mode)
	case d.method == Unordered && mode != Next && mode != Prev:
		return d.firstMatch(key, mode)
	case d.method == Ordered:
		return d.bestOf(key, mode)
	default:
		return d.uncovered(key, mode)
	}
}

func (d *Dict[V]) firstMatch(key string, mode Mode) (string, V, bool) {
	for t := d; t != nil; t = t.view {
		if k, v, ok := t.local(key, mode); ok {
			d.walk = t
			return k, v, true
		}
	}
	var zero V
	d.walk = nil
	return "", zero, false
}

func (d *Dict[V]) bestOf(key string, mode Mode) (string, V, bool) {
	var (
		bk   string
		bv   V
		best *Dict[V]
	)
	backward := mode == Last || mode == Prev || mode == AtMost
	for t := d; t != nil; t = t.view {
		k, v, ok := t.local(key, mode)
		if !ok {
			continue
		}
		if best != nil {
			c := d.cmp(k, bk)
			if (!backward && c >= 0) || (backward && c <= 0) {
				continue
			}
		}
		bk, bv, best = k, v, t
	}
	d.walk = best
	return bk, bv, best != nil
}

// uncovered steps Next or Prev on an unordered path. The walk resumes in
// the first dictionary holding key, since that is where key was reported.
func (d *Dict[V]) uncovered(key string, mode Mode) (string, V, bool) {
	var zero V
	walk := d.holder(key)
	if walk == nil {
		d.walk = nil
		return "", zero, false
	}
	restart := First
	if mode == Prev {
		restart = Last
	}
	k, v, ok := walk.local(key, mode)
	for {
		for ok {
			if !d.covered(walk, k) {
				d.walk = walk
				return k, v, true
			}
			k, v, ok = walk.local(k, mode)
		}
		if walk = walk.view; walk == nil {
			d.walk = nil
			return "", zero, false
		}
		k, v, ok = walk.local("", restart)
	}
}

func (d *Dict[V]) holder(key string) *Dict[V] {
	for t := d; t != nil; t = t.view {
		if _, _, ok := t.local(key, Search); ok {
			return t
		}
	}
	return nil
}

// covered reports whether a dictionary before walk also holds key.
func (d *Dict[V]) covered(walk *Dict[V], key string) bool {
	for t := d; t != walk; t = t.view {
		if _, _, ok := t.local(key, Search); ok {
			return true
		}
	}
	return false
}
