package matcher

import (
	"encoding/hex"

	"github.com/sansecio/sigmatch/offset"
)

// Description is the compiled form of one signature, for diagnostics.
type Description struct {
	Offset offset.Descriptor
	// Literal reports whether the signature would be served by the literal
	// matcher.
	Literal bool
	Weak    bool
	Chains  [][]PartDescription
	// Regex is an RE2 rendering of the plain encoding, when expressible.
	Regex   string
	RegexOK bool
}

// PartDescription describes one part of a signature chain.
type PartDescription struct {
	Index     int
	Pattern   string
	MinLength int
	MaxLength int
	// MinDist and MaxDist bound the gap to the previous part; MaxDist is
	// -1 when unbounded.
	MinDist int
	MaxDist int
	Anchors []string
	// AnchorAt is the element index the anchor starts at.
	AnchorAt int
}

// Describe compiles s with the Matcher's options without adding it.
func (m *Matcher) Describe(s Signature) (Description, error) {
	cs, err := m.compile(s.Hex, s.Offset, s.Flags)
	if err != nil {
		return Description{}, err
	}
	d := Description{
		Offset:  cs.off,
		Literal: cs.literal != nil && !m.opts.ForceTrie,
		Weak:    cs.weak,
	}
	d.Regex, d.RegexOK = cs.sig.Regex()
	for _, parts := range cs.chains {
		var pds []PartDescription
		for _, p := range parts {
			pd := PartDescription{
				Index:     p.index + 1,
				Pattern:   elemsString(p.elems),
				MinLength: p.length[0],
				MaxLength: p.length[1],
				AnchorAt:  p.anchor.elem,
			}
			if p.index > 0 {
				pd.MinDist, pd.MaxDist = p.minDist, p.maxDist
			}
			for _, k := range p.anchor.keys {
				pd.Anchors = append(pd.Anchors, hex.EncodeToString(k))
			}
			pds = append(pds, pd)
		}
		d.Chains = append(d.Chains, pds)
	}
	return d, nil
}
