// Package offset resolves file-relative signature anchors into concrete
// byte ranges for one scanned target.
package offset

import (
	"fmt"
	"math"
	"math/bits"
)

// Type identifies what a Descriptor is anchored to.
type Type uint8

const (
	None Type = iota
	Absolute
	EOFMinus
	EPPlus
	EPMinus
	SectionPlus
	LastSectionPlus
	SectionEntire
	Version
	Macro
	Overlay
)

var typeNames = [...]string{
	None:            "*",
	Absolute:        "ABS",
	EOFMinus:        "EOF-",
	EPPlus:          "EP+",
	EPMinus:         "EP-",
	SectionPlus:     "S+",
	LastSectionPlus: "SL+",
	SectionEntire:   "SE",
	Version:         "VI",
	Macro:           "MACRO",
	Overlay:         "OV",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// Descriptor is a compiled offset expression.
//
// Section holds the section index for SectionPlus and SectionEntire and the
// macro group for Macro. It is ignored by every other type.
type Descriptor struct {
	Type     Type
	Value    uint64
	MaxShift uint64
	Section  int
}

// Any is the unconstrained descriptor.
var Any = Descriptor{Type: None}

// String renders d in signature offset syntax.
func (d Descriptor) String() string {
	var s string
	switch d.Type {
	case None:
		return "*"
	case Absolute:
		s = fmt.Sprintf("%d", d.Value)
	case EOFMinus, EPPlus, EPMinus, LastSectionPlus:
		s = fmt.Sprintf("%s%d", d.Type, d.Value)
	case SectionPlus:
		s = fmt.Sprintf("S%d+%d", d.Section, d.Value)
	case SectionEntire:
		return fmt.Sprintf("SE%d", d.Section)
	case Macro:
		s = fmt.Sprintf("MACRO%d+%d", d.Section, d.Value)
	case Version, Overlay:
		s = fmt.Sprintf("%s+%d", d.Type, d.Value)
	default:
		return d.Type.String()
	}
	if d.MaxShift > 0 {
		s += fmt.Sprintf(",%d", d.MaxShift)
	}
	return s
}

// Section is one entry of a target's section table, in file (raw) offsets.
type Section struct {
	RawOffset uint64
	RawSize   uint64
}

// Target holds the per-file metadata offsets are resolved against. It is
// produced once per scanned file by a metadata collaborator and never
// modified by this package.
type Target struct {
	Size uint64

	EntryPoint    uint64
	HasEntryPoint bool

	Sections []Section

	Overlay    uint64
	HasOverlay bool

	VersionInfo    uint64
	HasVersionInfo bool

	Macros    uint64
	HasMacros bool
}

// Range is an inclusive range of allowed start offsets.
type Range struct {
	Min uint64
	Max uint64
}

var (
	// Unconstrained accepts every offset.
	Unconstrained = Range{Min: 0, Max: math.MaxUint64}
	// Impossible accepts nothing; the descriptor cannot match this target.
	Impossible = Range{Min: 1, Max: 0}
)

// IsImpossible reports whether r can never contain an offset.
func (r Range) IsImpossible() bool {
	return r.Min > r.Max
}

// IsUnconstrained reports whether r accepts every offset.
func (r Range) IsUnconstrained() bool {
	return r == Unconstrained
}

// Contains reports whether off lies within r.
func (r Range) Contains(off uint64) bool {
	return off >= r.Min && off <= r.Max
}

func (r Range) String() string {
	switch {
	case r.IsImpossible():
		return "impossible"
	case r.IsUnconstrained():
		return "any"
	}
	return fmt.Sprintf("[%d,%d]", r.Min, r.Max)
}

// Resolve maps d onto t. It returns Impossible when the anchor d refers to
// does not exist in t or lies at or beyond the end of the file.
func Resolve(d Descriptor, t Target) Range {
	var (
		base uint64
		ok   bool
	)

	switch d.Type {
	case None:
		return Unconstrained
	case Absolute:
		base = d.Value
	case EOFMinus:
		if d.Value > t.Size {
			return Impossible
		}
		base = t.Size - d.Value
	case EPPlus:
		if !t.HasEntryPoint {
			return Impossible
		}
		if base, ok = plus(t.EntryPoint, d.Value); !ok {
			return Impossible
		}
	case EPMinus:
		if !t.HasEntryPoint || d.Value > t.EntryPoint {
			return Impossible
		}
		base = t.EntryPoint - d.Value
	case SectionPlus, LastSectionPlus:
		idx := d.Section
		if d.Type == LastSectionPlus {
			idx = len(t.Sections) - 1
		}
		if idx < 0 || idx >= len(t.Sections) {
			return Impossible
		}
		s := t.Sections[idx]
		if d.Value >= s.RawSize {
			return Impossible
		}
		if base, ok = plus(s.RawOffset, d.Value); !ok {
			return Impossible
		}
	case SectionEntire:
		if d.Section < 0 || d.Section >= len(t.Sections) {
			return Impossible
		}
		s := t.Sections[d.Section]
		if s.RawSize == 0 || s.RawOffset >= t.Size {
			return Impossible
		}
		return Range{Min: s.RawOffset, Max: s.RawOffset + s.RawSize - 1}
	case Version:
		if !t.HasVersionInfo {
			return Impossible
		}
		if base, ok = plus(t.VersionInfo, d.Value); !ok {
			return Impossible
		}
	case Macro:
		if !t.HasMacros {
			return Impossible
		}
		if base, ok = plus(t.Macros, d.Value); !ok {
			return Impossible
		}
	case Overlay:
		if !t.HasOverlay {
			return Impossible
		}
		if base, ok = plus(t.Overlay, d.Value); !ok {
			return Impossible
		}
	default:
		return Impossible
	}

	if base >= t.Size {
		return Impossible
	}
	end := base + d.MaxShift
	if end < base {
		end = math.MaxUint64
	}
	return Range{Min: base, Max: end}
}

// plus adds a signature-supplied value to an anchor, failing on overflow.
func plus(anchor, v uint64) (uint64, bool) {
	sum, carry := bits.Add64(anchor, v, 0)
	return sum, carry == 0
}
