// Package ast defines the syntax tree for hex body signatures and logical
// signature expressions.
package ast

// Sig is a parsed hex signature body.
type Sig struct {
	Tokens []Token
}

// Token is one element of a hex signature.
type Token interface {
	token()
}

// Byte matches one input byte x where x&Mask == Value&Mask.
// Mask is 0xff for a literal, 0xf0 or 0x0f for a nibble wildcard and 0
// for ??.
type Byte struct {
	Value byte
	Mask  byte
}

func (Byte) token() {}

// Exact reports whether b matches a single byte value.
func (b Byte) Exact() bool {
	return b.Mask == 0xff
}

// Any reports whether b matches every byte.
func (b Byte) Any() bool {
	return b.Mask == 0
}

// Jump is a {n}, {n-m}, {n-}, {-m}, {*} or * wildcard.
type Jump struct {
	Min *int // nil means 0
	Max *int // nil means unbounded
}

func (Jump) token() {}

// Fixed reports whether j spans a fixed number of bytes, and which.
func (j Jump) Fixed() (int, bool) {
	if j.Min != nil && j.Max != nil && *j.Min == *j.Max {
		return *j.Min, true
	}
	return 0, false
}

// Range is a bounded [n-m] gap of arbitrary bytes kept inside one part.
type Range struct {
	Min int
	Max int
}

func (Range) token() {}

// Alt is an alternation such as (aa|bbcc) or a negated !(aa|bb).
// Branches may nest further alternations.
type Alt struct {
	Negate   bool
	Branches [][]Token
}

func (Alt) token() {}
