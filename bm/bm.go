// Package bm implements the literal-only fast path: a Wu-Manber style
// shift-table search over many byte strings at once.
//
// Every pattern contributes its first MinLength bytes (the search prefix) to
// a shift table indexed by two-byte blocks. Patterns whose prefix ends in the
// same block share a bucket; a bucket hit is confirmed with a first-byte
// check and then a full compare.
package bm

import (
	"errors"
	"fmt"

	"github.com/sansecio/sigmatch/offset"
)

// MinLength is the shortest pattern the matcher accepts.
const MinLength = 3

const (
	blockSize    = 2
	tableSize    = 1 << (8 * blockSize)
	defaultShift = MinLength - blockSize + 1
)

var (
	ErrShort      = errors.New("pattern shorter than minimum length")
	ErrOffsetType = errors.New("offset type not supported by literal matcher")
	ErrBuilt      = errors.New("literal matcher already built")
	ErrNotBuilt   = errors.New("literal matcher not built")
)

// Boundary restricts where a match may end.
type Boundary uint8

const (
	BoundaryNone Boundary = iota
	// BoundaryEOL requires the match to be followed by '\n', '\r' or the
	// end of data.
	BoundaryEOL
)

// Pattern is one literal signature.
type Pattern struct {
	Data     []byte
	Boundary Boundary
	// Offset restricts the match start. Only None, Absolute and EOFMinus
	// are accepted, which depend on nothing but the file size.
	Offset offset.Descriptor
}

// Match is one reported occurrence.
type Match struct {
	Pattern int
	// Offset is the absolute offset of the first matched byte.
	Offset uint64
}

type entry struct {
	pat   Pattern
	first byte
	next  int32
}

// Matcher holds a set of literal patterns.
type Matcher struct {
	entries    []entry
	shift      []uint8
	heads      []int32
	collisions []uint16
	buckets    int
	maxChain   int
	built      bool
}

// New returns an empty matcher.
func New() *Matcher {
	return &Matcher{}
}

// Add registers p and returns its index.
func (m *Matcher) Add(p Pattern) (int, error) {
	if m.built {
		return 0, ErrBuilt
	}
	if len(p.Data) < MinLength {
		return 0, fmt.Errorf("%w: %d bytes", ErrShort, len(p.Data))
	}
	switch p.Offset.Type {
	case offset.None, offset.Absolute, offset.EOFMinus:
	default:
		return 0, fmt.Errorf("%w: %s", ErrOffsetType, p.Offset.Type)
	}
	m.entries = append(m.entries, entry{pat: p, first: p.Data[0], next: -1})
	return len(m.entries) - 1, nil
}

func block(b []byte) int {
	return int(b[0])<<8 | int(b[1])
}

// Build computes the shift table and bucket chains.
func (m *Matcher) Build() error {
	if m.built {
		return ErrBuilt
	}
	m.shift = make([]uint8, tableSize)
	for i := range m.shift {
		m.shift[i] = defaultShift
	}
	m.heads = make([]int32, tableSize)
	for i := range m.heads {
		m.heads[i] = -1
	}
	m.collisions = make([]uint16, tableSize)

	for i := len(m.entries) - 1; i >= 0; i-- {
		e := &m.entries[i]
		prefix := e.pat.Data[:MinLength]
		for q := 0; q+blockSize <= MinLength; q++ {
			s := uint8(MinLength - blockSize - q)
			if b := block(prefix[q:]); s < m.shift[b] {
				m.shift[b] = s
			}
		}
		tail := block(prefix[MinLength-blockSize:])
		// Prepend so chains keep insertion order.
		e.next = m.heads[tail]
		m.heads[tail] = int32(i)
		if m.collisions[tail] == 0 {
			m.buckets++
		}
		m.collisions[tail]++
		m.maxChain = max(m.maxChain, int(m.collisions[tail]))
	}
	m.built = true
	return nil
}

// Len returns the number of patterns.
func (m *Matcher) Len() int {
	return len(m.entries)
}

// Stats describes the bucket layout after Build.
type Stats struct {
	Patterns int
	Buckets  int
	MaxChain int
}

// Stats returns size counters.
func (m *Matcher) Stats() Stats {
	return Stats{Patterns: len(m.entries), Buckets: m.buckets, MaxChain: m.maxChain}
}

// Scan searches buf, whose first byte sits at absolute offset base of a file
// of size bytes, and calls fn for every match in non-decreasing offset order.
// Returning false from fn stops the scan.
func (m *Matcher) Scan(buf []byte, base, size uint64, fn func(Match) bool) error {
	if !m.built {
		return ErrNotBuilt
	}
	if len(m.entries) == 0 {
		return nil
	}
	target := offset.Target{Size: size}

	for i := 0; i+MinLength <= len(buf); {
		b := block(buf[i+MinLength-blockSize:])
		if s := m.shift[b]; s > 0 {
			i += int(s)
			continue
		}
		for n := m.heads[b]; n >= 0; n = m.entries[n].next {
			e := &m.entries[n]
			if e.first != buf[i] || !m.verify(e, buf, i, base, target) {
				continue
			}
			if !fn(Match{Pattern: int(n), Offset: base + uint64(i)}) {
				return nil
			}
		}
		i++
	}
	return nil
}

func (m *Matcher) verify(e *entry, buf []byte, i int, base uint64, target offset.Target) bool {
	data := e.pat.Data
	if len(buf)-i < len(data) {
		return false
	}
	for j := 1; j < len(data); j++ {
		if buf[i+j] != data[j] {
			return false
		}
	}
	if e.pat.Boundary == BoundaryEOL {
		if end := i + len(data); end < len(buf) && buf[end] != '\n' && buf[end] != '\r' {
			return false
		}
	}
	if e.pat.Offset.Type != offset.None {
		if !offset.Resolve(e.pat.Offset, target).Contains(base + uint64(i)) {
			return false
		}
	}
	return true
}
