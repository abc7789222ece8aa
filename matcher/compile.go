package matcher

import (
	"fmt"
	"slices"
	"strings"

	"github.com/sansecio/sigmatch/ast"
	"github.com/sansecio/sigmatch/bm"
	"github.com/sansecio/sigmatch/offset"
	"github.com/sansecio/sigmatch/parser"
)

const (
	// maxNesting is the deepest alternation nesting accepted.
	maxNesting = 15
	// maxRange is the largest upper bound of a [n-m] byte range.
	maxRange = 32
	// maxBranches caps the flattened branch count of one alternation.
	maxBranches = 4096
)

// rawPart is a run of tokens between two variable jumps.
type rawPart struct {
	tokens           []ast.Token
	minDist, maxDist int
}

// compiledSig is the result of compiling one signature text, before it is
// registered with a Matcher.
type compiledSig struct {
	sig    ast.Sig
	off    offset.Descriptor
	chains [][]*part
	// literal holds the bytes of a signature eligible for the literal
	// matcher.
	literal []byte
	// weak is set when an anchor is shorter than MinDepth.
	weak bool
}

func (m *Matcher) compile(hex, off string, flags Flags) (*compiledSig, error) {
	if flags&Ascii != 0 && flags&Wide == 0 {
		return nil, fmt.Errorf("%w: ascii requires wide", ErrOptions)
	}
	if strings.TrimSpace(hex) == "" {
		return nil, ErrEmpty
	}

	cs := &compiledSig{off: offset.Any}
	if strings.TrimSpace(off) != "" {
		d, err := parser.ParseOffset(off)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrOffset, err)
		}
		cs.off = d
	}

	sig, err := parser.ParseHex(hex)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	cs.sig = sig

	raws, err := splitParts(sig.Tokens)
	if err != nil {
		return nil, err
	}

	plain := make([][]element, len(raws))
	for i, rp := range raws {
		elems, err := m.convertTokens(rp.tokens, flags)
		if err != nil {
			return nil, err
		}
		if len(elems) == 0 {
			return nil, fmt.Errorf("%w: part %d", ErrEmpty, i+1)
		}
		plain[i] = elems
	}

	var variants []bool // wide per chain
	switch {
	case flags&Wide == 0:
		variants = []bool{false}
	case flags&Ascii != 0:
		variants = []bool{false, true}
	default:
		variants = []bool{true}
	}

	nocase := flags&NoCase != 0
	for _, wide := range variants {
		parts := make([]*part, len(raws))
		for i, rp := range raws {
			elems := plain[i]
			minDist, maxDist := rp.minDist, rp.maxDist
			if wide {
				elems = widen(elems)
				minDist *= 2
				if maxDist > 0 {
					maxDist *= 2
				}
			}
			p := &part{index: i, elems: elems, minDist: minDist, maxDist: maxDist}
			for _, e := range elems {
				lo, hi := e.bounds()
				p.length[0] += lo
				p.length[1] += hi
			}
			a, ok := selectAnchor(elems, m.opts.MaxDepth, nocase)
			if !ok {
				return nil, fmt.Errorf("%w: part %d", ErrNoAnchor, i+1)
			}
			if a.length < m.opts.MinDepth {
				cs.weak = true
			}
			p.anchor = a
			parts[i] = p
		}
		cs.chains = append(cs.chains, parts)
	}

	cs.literal = literalBytes(cs, flags)
	return cs, nil
}

// literalBytes returns the bytes of a single-part signature made only of
// exact bytes, or nil.
func literalBytes(cs *compiledSig, flags Flags) []byte {
	if len(cs.chains) != 1 || len(cs.chains[0]) != 1 || flags&(NoCase|Fullword) != 0 {
		return nil
	}
	switch cs.off.Type {
	case offset.None, offset.Absolute, offset.EOFMinus:
	default:
		return nil
	}
	elems := cs.chains[0][0].elems
	if len(elems) < bm.MinLength {
		return nil
	}
	out := make([]byte, len(elems))
	for i := range elems {
		if !exactByte(&elems[i]) {
			return nil
		}
		out[i] = elems[i].b.v
	}
	return out
}

// splitParts cuts tokens at variable jumps. Fixed {n} jumps become n
// wildcard bytes of the current part.
func splitParts(tokens []ast.Token) ([]rawPart, error) {
	var parts []rawPart
	cur := rawPart{}
	pending := false

	for _, t := range tokens {
		j, ok := t.(ast.Jump)
		if !ok {
			cur.tokens = append(cur.tokens, t)
			continue
		}
		if n, fixed := j.Fixed(); fixed {
			for range n {
				cur.tokens = append(cur.tokens, ast.Byte{})
			}
			continue
		}
		if len(cur.tokens) == 0 {
			return nil, fmt.Errorf("%w: jump without preceding bytes", ErrMalformed)
		}
		lo, hi := 0, -1
		if j.Min != nil {
			lo = *j.Min
		}
		if j.Max != nil {
			hi = *j.Max
		}
		if hi >= 0 && lo > hi {
			return nil, fmt.Errorf("%w: jump {%d-%d}", ErrDistance, lo, hi)
		}
		parts = append(parts, cur)
		cur = rawPart{minDist: lo, maxDist: hi}
		pending = true
	}

	if len(cur.tokens) == 0 {
		if pending {
			return nil, fmt.Errorf("%w: trailing jump", ErrMalformed)
		}
		return nil, ErrEmpty
	}
	return append(parts, cur), nil
}

func (m *Matcher) convertTokens(tokens []ast.Token, flags Flags) ([]element, error) {
	elems := make([]element, 0, len(tokens))
	for _, t := range tokens {
		switch t := t.(type) {
		case ast.Byte:
			if t.Mask != 0xff && t.Mask != 0 && flags&Wide != 0 {
				return nil, fmt.Errorf("%w: nibble wildcard with wide", ErrOptions)
			}
			elems = append(elems, element{kind: elemByte, b: mbyte{v: t.Value & t.Mask, m: t.Mask}})
		case ast.Range:
			if t.Min > t.Max {
				return nil, fmt.Errorf("%w: range [%d-%d]", ErrDistance, t.Min, t.Max)
			}
			if t.Max > maxRange {
				return nil, fmt.Errorf("%w: range [%d-%d] exceeds %d", ErrDistance, t.Min, t.Max, maxRange)
			}
			elems = append(elems, element{kind: elemGap, min: t.Min, max: t.Max})
		case ast.Alt:
			g, err := m.convertAlt(t, flags)
			if err != nil {
				return nil, err
			}
			elems = append(elems, element{kind: elemAlt, alt: g})
		case ast.Jump:
			return nil, fmt.Errorf("%w: unexpected jump", ErrMalformed)
		}
	}
	return elems, nil
}

func (m *Matcher) convertAlt(alt ast.Alt, flags Flags) (*altGroup, error) {
	if alt.Negate && flags&NoCase != 0 {
		return nil, fmt.Errorf("%w: negated alternation with nocase", ErrOptions)
	}
	branches, depth, err := flattenAlt(alt, 1, flags)
	if err != nil {
		return nil, err
	}

	g := &altGroup{
		negate: alt.Negate,
		unique: (m.opts.DistinctAlternatives || flags&Distinct != 0) && !alt.Negate,
		depth:  depth,
	}
	seen := make(map[string]bool, len(branches))
	for _, br := range branches {
		if !g.unique {
			k := mbytesKey(br)
			if seen[k] {
				continue
			}
			seen[k] = true
		}
		g.branches = append(g.branches, br)
	}

	g.minLen, g.maxLen = len(g.branches[0]), len(g.branches[0])
	for _, br := range g.branches[1:] {
		g.minLen = min(g.minLen, len(br))
		g.maxLen = max(g.maxLen, len(br))
	}
	if g.negate && g.minLen != g.maxLen {
		return nil, fmt.Errorf("%w: negated alternation branches differ in length", ErrMalformed)
	}
	if g.minLen == 0 {
		return nil, fmt.Errorf("%w: empty alternation branch", ErrEmpty)
	}
	g.set = byteSet(g, flags&NoCase != 0)
	return g, nil
}

// flattenAlt expands nested alternations into the full list of branch byte
// strings.
func flattenAlt(alt ast.Alt, depth int, flags Flags) ([][]mbyte, int, error) {
	if depth > maxNesting {
		return nil, depth, fmt.Errorf("%w: depth %d", ErrNesting, depth)
	}
	maxDepth := depth
	var out [][]mbyte
	for _, br := range alt.Branches {
		seqs := [][]mbyte{nil}
		for _, t := range br {
			switch t := t.(type) {
			case ast.Byte:
				if t.Mask != 0xff && t.Mask != 0 && flags&Wide != 0 {
					return nil, depth, fmt.Errorf("%w: nibble wildcard with wide", ErrOptions)
				}
				b := mbyte{v: t.Value & t.Mask, m: t.Mask}
				for i := range seqs {
					seqs[i] = append(seqs[i], b)
				}
			case ast.Alt:
				if t.Negate {
					return nil, depth, fmt.Errorf("%w: nested negated alternation", ErrMalformed)
				}
				inner, d, err := flattenAlt(t, depth+1, flags)
				if err != nil {
					return nil, d, err
				}
				maxDepth = max(maxDepth, d)
				if len(seqs)*len(inner) > maxBranches {
					return nil, depth, fmt.Errorf("%w: alternation expands past %d branches", ErrMalformed, maxBranches)
				}
				next := make([][]mbyte, 0, len(seqs)*len(inner))
				for _, s := range seqs {
					for _, in := range inner {
						next = append(next, append(slices.Clip(s), in...))
					}
				}
				seqs = next
			default:
				return nil, depth, fmt.Errorf("%w: jump or range inside alternation", ErrMalformed)
			}
		}
		out = append(out, seqs...)
		if len(out) > maxBranches {
			return nil, depth, fmt.Errorf("%w: alternation expands past %d branches", ErrMalformed, maxBranches)
		}
	}
	return out, maxDepth, nil
}

func mbytesKey(bs []mbyte) string {
	var sb strings.Builder
	for _, b := range bs {
		sb.WriteByte(b.v)
		sb.WriteByte(b.m)
	}
	return sb.String()
}

// byteSet builds the lookup table for groups of single exact bytes.
func byteSet(g *altGroup, nocase bool) *[256]bool {
	if g.unique || g.maxLen != 1 {
		return nil
	}
	var set [256]bool
	for _, br := range g.branches {
		if br[0].m != 0xff {
			return nil
		}
		set[br[0].v] = true
		if nocase && isLetter(br[0].v) {
			set[br[0].v^0x20] = true
		}
	}
	if g.negate {
		for i := range set {
			set[i] = !set[i]
		}
	}
	return &set
}

var wideZero = mbyte{v: 0, m: 0xff}

// widen converts elements to their UTF-16LE form.
func widen(elems []element) []element {
	out := make([]element, 0, 2*len(elems))
	for _, e := range elems {
		switch e.kind {
		case elemByte:
			out = append(out, e, element{kind: elemByte, b: wideZero})
		case elemGap:
			out = append(out, element{kind: elemGap, min: 2 * e.min, max: 2 * e.max})
		case elemAlt:
			g := &altGroup{
				negate: e.alt.negate,
				unique: e.alt.unique,
				minLen: 2 * e.alt.minLen,
				maxLen: 2 * e.alt.maxLen,
				depth:  e.alt.depth,
				wide:   true,
			}
			for _, br := range e.alt.branches {
				w := make([]mbyte, 0, 2*len(br))
				for _, b := range br {
					w = append(w, b, wideZero)
				}
				g.branches = append(g.branches, w)
			}
			out = append(out, element{kind: elemAlt, alt: g})
		}
	}
	return out
}
