package matcher

import (
	"fmt"
	"strings"

	"github.com/sansecio/sigmatch/offset"
	"github.com/sansecio/sigmatch/tracker"
)

type elemKind uint8

const (
	elemByte elemKind = iota
	elemGap
	elemAlt
)

// mbyte matches x when x&m == v&m.
type mbyte struct {
	v, m byte
}

func (b mbyte) match(x byte, nocase bool) bool {
	if b.m != 0xff {
		return x&b.m == b.v&b.m
	}
	if x == b.v {
		return true
	}
	return nocase && isLetter(b.v) && x|0x20 == b.v|0x20
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isAlnum(b byte) bool {
	return isLetter(b) || (b >= '0' && b <= '9')
}

// altGroup is one alternation position.
type altGroup struct {
	branches [][]mbyte
	negate   bool
	// unique reports every matching branch separately.
	unique bool
	// wide groups hold widened branches. A negated wide group also
	// requires a zero byte after every byte it covers.
	wide bool
	// set accelerates groups whose branches are all single exact bytes.
	// For negated groups it holds the complement.
	set            *[256]bool
	minLen, maxLen int
	depth          int
}

func (g *altGroup) matchBranch(br []mbyte, buf []byte, pos int, nocase bool) bool {
	if pos+len(br) > len(buf) {
		return false
	}
	for i, b := range br {
		if !b.match(buf[pos+i], nocase) {
			return false
		}
	}
	return true
}

type element struct {
	kind elemKind
	b    mbyte
	// gap bounds for elemGap
	min, max int
	alt      *altGroup
}

func (e *element) bounds() (int, int) {
	switch e.kind {
	case elemGap:
		return e.min, e.max
	case elemAlt:
		return e.alt.minLen, e.alt.maxLen
	}
	return 1, 1
}

// part is one independently anchored piece of a signature. Signatures with
// variable {n-m} jumps are split into several parts.
type part struct {
	id    int
	chain int
	index int
	elems []element
	// length bounds: min, max
	length [2]int
	// gap to the previous part, maxDist < 0 is unbounded
	minDist, maxDist int
	anchor           anchor
}

func (p *part) last(c *chain) bool {
	return p.index == len(c.parts)-1
}

// chain is one encoding of a signature. Ascii|Wide signatures have two.
type chain struct {
	id    int
	sig   int
	parts []*part
	// ringBase indexes the first partial-match ring in ScanState.
	ringBase int
}

// sigEntry describes one added signature or logical sub-signature.
type sigEntry struct {
	name     string
	flags    Flags
	kind     Mode
	fileType string
	off      offset.Descriptor
	// logical is -1 for standalone signatures.
	logical int
	subsig  int
	after   *tracker.Constraint
	chains  []int
	literal bool
}

func (s *sigEntry) standalone() bool {
	return s.logical < 0
}

func (e element) String() string {
	switch e.kind {
	case elemGap:
		return fmt.Sprintf("[%d-%d]", e.min, e.max)
	case elemAlt:
		var sb strings.Builder
		if e.alt.negate {
			sb.WriteByte('!')
		}
		sb.WriteByte('(')
		for i, br := range e.alt.branches {
			if i > 0 {
				sb.WriteByte('|')
			}
			sb.WriteString(mbytesString(br))
		}
		sb.WriteByte(')')
		return sb.String()
	}
	return mbytesString([]mbyte{e.b})
}

func mbytesString(bs []mbyte) string {
	var sb strings.Builder
	for _, b := range bs {
		switch b.m {
		case 0xff:
			fmt.Fprintf(&sb, "%02x", b.v)
		case 0xf0:
			fmt.Fprintf(&sb, "%x?", b.v>>4)
		case 0x0f:
			fmt.Fprintf(&sb, "?%x", b.v&0x0f)
		default:
			sb.WriteString("??")
		}
	}
	return sb.String()
}

func elemsString(elems []element) string {
	var sb strings.Builder
	for _, e := range elems {
		sb.WriteString(e.String())
	}
	return sb.String()
}
