package nv

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a name does not resolve.
	ErrNotFound = errors.New("variable not found")
	// ErrSubscript is returned for a malformed or misplaced subscript.
	ErrSubscript = errors.New("bad subscript")
	// ErrName is returned for a path segment that is not a valid name.
	ErrName = errors.New("invalid variable name")
	// ErrReadOnly is returned when a read-only entry would be changed.
	ErrReadOnly = errors.New("read-only variable")
	// ErrNotCompound is returned when members are requested of a non-compound.
	ErrNotCompound = errors.New("not a compound variable")
	// ErrArith is returned when an integer or float value does not parse.
	ErrArith = errors.New("arithmetic syntax error")
)

// WalkError reports the entries a mutation pass skipped.
type WalkError struct {
	Op      string
	Skipped []string
}

func (e *WalkError) Error() string {
	return fmt.Sprintf("%s: skipped %d read-only entries: %s", e.Op, len(e.Skipped), strings.Join(e.Skipped, ", "))
}

func (e *WalkError) Unwrap() error { return ErrReadOnly }
