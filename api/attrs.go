package api

import (
	"strconv"
	"strings"
)

// Attr is the attribute bit-set carried by every variable entry.
type Attr uint32

const (
	Export Attr = 1 << iota
	ReadOnly
	Integer
	Double
	LJust
	RJust
	ZFill
	Upper
	Lower
	Tagged
	Ref
	Binary
	// Array marks an entry holding indexed or associative elements.
	Array
	// Assoc marks the array as keyed by strings rather than integers.
	Assoc
	// KeepOnEmpty keeps the entry in its container when a deletion pass
	// clears it.
	KeepOnEmpty
)

// Has reports whether every bit of b is set in a.
func (a Attr) Has(b Attr) bool { return a&b == b && b != 0 }

// Flag describes one entry of the attribute catalog.
type Flag struct {
	Attr  Attr
	Short byte   // typeset option letter
	Name  string // long name used in JSON and diagnostics
	Sized bool   // option takes a width, e.g. -L8
}

// Flags is the attribute catalog in rendering order. Array, Assoc and
// KeepOnEmpty are structural and rendered by the serializer itself.
var Flags = []Flag{
	{Attr: Export, Short: 'x', Name: "export"},
	{Attr: ReadOnly, Short: 'r', Name: "readonly"},
	{Attr: Integer, Short: 'i', Name: "integer"},
	{Attr: Double, Short: 'F', Name: "float"},
	{Attr: LJust, Short: 'L', Name: "left", Sized: true},
	{Attr: RJust, Short: 'R', Name: "right", Sized: true},
	{Attr: ZFill, Short: 'Z', Name: "zerofill", Sized: true},
	{Attr: Upper, Short: 'u', Name: "upper"},
	{Attr: Lower, Short: 'l', Name: "lower"},
	{Attr: Tagged, Short: 't', Name: "tagged"},
	{Attr: Ref, Short: 'n', Name: "nameref"},
	{Attr: Binary, Short: 'b', Name: "binary"},
}

// Structural is the set of bits the catalog does not render as options.
const Structural = Array | Assoc | KeepOnEmpty

// Lookup returns the catalog entry for a typeset option letter.
func Lookup(short byte) (Flag, bool) {
	for _, f := range Flags {
		if f.Short == short {
			return f, true
		}
	}
	return Flag{}, false
}

// Options renders the catalog bits of a as typeset options ("-x -L8").
// size is appended to sized options when positive.
func (a Attr) Options(size int) []string {
	var out []string
	for _, f := range Flags {
		if !a.Has(f.Attr) {
			continue
		}
		opt := "-" + string(f.Short)
		if f.Sized && size > 0 {
			opt += strconv.Itoa(size)
		}
		out = append(out, opt)
	}
	return out
}

// Names returns the long names of the catalog bits set in a.
func (a Attr) Names() []string {
	var out []string
	for _, f := range Flags {
		if a.Has(f.Attr) {
			out = append(out, f.Name)
		}
	}
	return out
}

func (a Attr) String() string {
	return strings.Join(a.Options(0), " ")
}
