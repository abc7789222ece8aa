// Package matcher is the signature database root. Signatures are compiled
// and added once, the database is built, and from then on it is read-only and
// may be scanned from any number of goroutines, each with its own ScanState.
package matcher

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/sansecio/sigmatch/ahocorasick"
	"github.com/sansecio/sigmatch/bm"
	"github.com/sansecio/sigmatch/offset"
	"github.com/sansecio/sigmatch/tracker"
)

// Signature is a standalone hex signature.
type Signature struct {
	Name   string
	Hex    string
	Offset string
	Flags  Flags
	// Kind is ModeSignature or ModeFingerprint. Zero means ModeSignature.
	Kind Mode
	// FileType restricts the signature to targets of this type. Empty
	// matches every type.
	FileType string
}

// SubSignature is one hex pattern of a logical signature.
type SubSignature struct {
	Hex    string
	Offset string
	Flags  Flags
	// After, when set, only counts matches within a distance of a match of
	// another sub-signature.
	After *tracker.Constraint
}

// LogicalSignature groups sub-signatures whose match counts are combined by
// an external evaluator.
type LogicalSignature struct {
	Name     string
	Kind     Mode
	FileType string
	Subsigs  []SubSignature
}

type logicalEntry struct {
	name    string
	subsigs int
}

type litRef struct {
	sig    int
	length int
}

// Matcher holds compiled signatures.
type Matcher struct {
	opts Options
	log  *slog.Logger

	sigs   []sigEntry
	chains []chain
	parts  []*part
	rings  int

	keys     [][]byte
	keyIndex map[string]int
	entries  [][]int32

	lit     *bm.Matcher
	litRefs []litRef

	logical         []logicalEntry
	distanceSubsigs int

	ac     ahocorasick.AhoCorasick
	hasAC  bool
	built  bool
	closed bool

	warnings []string
	pruned   int

	pool sync.Pool
}

// New returns an empty Matcher.
func New(opts Options) *Matcher {
	opts = opts.withDefaults()
	m := &Matcher{
		opts:     opts,
		log:      opts.Logger,
		keyIndex: make(map[string]int),
		lit:      bm.New(),
	}
	m.pool.New = func() any { return m.newState() }
	return m
}

// AddSignature compiles and adds a standalone signature. A rejected
// signature leaves the Matcher unchanged.
func (m *Matcher) AddSignature(s Signature) error {
	if m.built || m.closed {
		return ErrBuilt
	}
	cs, err := m.compile(s.Hex, s.Offset, s.Flags)
	if err != nil {
		return fmt.Errorf("signature %q: %w", s.Name, err)
	}
	if m.prune(s.Name, cs) {
		return nil
	}
	e := sigEntry{
		name:     s.Name,
		flags:    s.Flags,
		kind:     kindOrDefault(s.Kind),
		fileType: s.FileType,
		off:      cs.off,
		logical:  -1,
	}
	if cs.literal != nil && !m.opts.ForceTrie {
		boundary := bm.BoundaryNone
		if s.Flags&LineEnd != 0 {
			boundary = bm.BoundaryEOL
		}
		if _, err := m.lit.Add(bm.Pattern{Data: cs.literal, Boundary: boundary, Offset: cs.off}); err != nil {
			return fmt.Errorf("signature %q: %w", s.Name, err)
		}
		e.literal = true
		m.sigs = append(m.sigs, e)
		m.litRefs = append(m.litRefs, litRef{sig: len(m.sigs) - 1, length: len(cs.literal)})
		return nil
	}
	m.commit(e, cs)
	return nil
}

// AddLogical compiles and adds all sub-signatures of a logical signature and
// returns its id, which indexes the tracker of every ScanState. Either every
// sub-signature is added or none.
func (m *Matcher) AddLogical(ls LogicalSignature) (int, error) {
	if m.built || m.closed {
		return 0, ErrBuilt
	}
	if len(ls.Subsigs) == 0 {
		return 0, fmt.Errorf("logical %q: %w", ls.Name, ErrEmpty)
	}
	compiled := make([]*compiledSig, len(ls.Subsigs))
	for i, sub := range ls.Subsigs {
		if c := sub.After; c != nil {
			if c.Subsig < 0 || c.Subsig >= len(ls.Subsigs) || c.Subsig == i {
				return 0, fmt.Errorf("logical %q subsig %d: %w: subsig %d", ls.Name, i, ErrUnknownLogical, c.Subsig)
			}
			if c.Min > c.Max {
				return 0, fmt.Errorf("logical %q subsig %d: %w: %s", ls.Name, i, ErrDistance, c)
			}
		}
		cs, err := m.compile(sub.Hex, sub.Offset, sub.Flags)
		if err != nil {
			return 0, fmt.Errorf("logical %q subsig %d: %w", ls.Name, i, err)
		}
		compiled[i] = cs
	}

	id := len(m.logical)
	m.logical = append(m.logical, logicalEntry{name: ls.Name, subsigs: len(ls.Subsigs)})
	for i, sub := range ls.Subsigs {
		name := fmt.Sprintf("%s.%d", ls.Name, i)
		if m.prune(name, compiled[i]) {
			continue
		}
		if sub.After != nil {
			m.distanceSubsigs++
		}
		m.commit(sigEntry{
			name:     name,
			flags:    sub.Flags,
			kind:     kindOrDefault(ls.Kind),
			fileType: ls.FileType,
			off:      compiled[i].off,
			logical:  id,
			subsig:   i,
			after:    sub.After,
		}, compiled[i])
	}
	return id, nil
}

func kindOrDefault(k Mode) Mode {
	if k == 0 {
		return ModeSignature
	}
	return k
}

// prune reports whether a weak signature is dropped.
func (m *Matcher) prune(name string, cs *compiledSig) bool {
	if !cs.weak {
		return false
	}
	msg := fmt.Sprintf("%s: anchor shorter than %d bytes", name, m.opts.MinDepth)
	m.warnings = append(m.warnings, msg)
	if !m.opts.Prune {
		m.log.Debug("weak anchor", "signature", name, "min_depth", m.opts.MinDepth)
		return false
	}
	m.pruned++
	m.log.Warn("signature pruned", "signature", name, "min_depth", m.opts.MinDepth)
	return true
}

// commit registers the chains of a compiled signature with the trie.
func (m *Matcher) commit(e sigEntry, cs *compiledSig) {
	sig := len(m.sigs)
	for _, parts := range cs.chains {
		c := chain{id: len(m.chains), sig: sig, parts: parts}
		for _, p := range parts {
			p.id = len(m.parts)
			p.chain = c.id
			m.parts = append(m.parts, p)
			for _, k := range p.anchor.keys {
				m.addKey(k, p.id)
			}
		}
		e.chains = append(e.chains, c.id)
		m.chains = append(m.chains, c)
	}
	m.sigs = append(m.sigs, e)
}

func (m *Matcher) addKey(key []byte, pid int) {
	k, ok := m.keyIndex[string(key)]
	if !ok {
		k = len(m.keys)
		m.keyIndex[string(key)] = k
		m.keys = append(m.keys, key)
		m.entries = append(m.entries, nil)
	}
	m.entries[k] = append(m.entries[k], int32(pid))
}

// Build freezes the Matcher. It must be called once, after all signatures
// were added and before the first scan.
func (m *Matcher) Build() error {
	if m.built || m.closed {
		return ErrBuilt
	}
	if err := m.lit.Build(); err != nil {
		return fmt.Errorf("literal matcher: %w", err)
	}
	if len(m.keys) > 0 {
		b := ahocorasick.NewAhoCorasickBuilder()
		b.DenseDepth = m.opts.DenseDepth
		b.Prefilter = m.opts.Prefilter
		m.ac = b.BuildByte(m.keys)
		m.hasAC = true
	}
	for i := range m.chains {
		c := &m.chains[i]
		c.ringBase = m.rings
		m.rings += len(c.parts) - 1
	}
	m.keyIndex = nil
	m.built = true

	st := m.Stats()
	m.log.Debug("matcher built",
		"signatures", st.Signatures,
		"logical", st.Logical,
		"literal", st.Literal,
		"parts", st.Parts,
		"keys", st.Keys,
		"states", st.Trie.States,
		"pruned", st.Pruned,
	)
	return nil
}

// Close releases the compiled database. The Matcher cannot be scanned or
// extended afterwards.
func (m *Matcher) Close() {
	m.built = false
	m.closed = true
	m.ac = ahocorasick.AhoCorasick{}
	m.hasAC = false
	m.parts = nil
	m.chains = nil
	m.keys = nil
	m.entries = nil
	m.lit = bm.New()
	m.litRefs = nil
}

// Warnings returns messages produced while compiling signatures.
func (m *Matcher) Warnings() []string {
	return m.warnings
}

// Logical returns the number of logical signatures.
func (m *Matcher) Logical() int {
	return len(m.logical)
}

// LogicalName returns the name of logical signature id.
func (m *Matcher) LogicalName(id int) string {
	if id < 0 || id >= len(m.logical) {
		return ""
	}
	return m.logical[id].name
}

// Stats holds database counters.
type Stats struct {
	// Signatures counts standalone signatures.
	Signatures      int
	Logical         int
	Subsigs         int
	DistanceSubsigs int
	// Literal counts signatures served by the literal matcher.
	Literal int
	Parts   int
	Keys    int
	Pruned  int
	Trie    ahocorasick.Stats
	Shift   bm.Stats
}

// Stats returns database counters.
func (m *Matcher) Stats() Stats {
	st := Stats{
		Logical:         len(m.logical),
		DistanceSubsigs: m.distanceSubsigs,
		Literal:         m.lit.Len(),
		Parts:           len(m.parts),
		Keys:            len(m.keys),
		Pruned:          m.pruned,
		Shift:           m.lit.Stats(),
	}
	for i := range m.sigs {
		if m.sigs[i].standalone() {
			st.Signatures++
		}
	}
	for _, l := range m.logical {
		st.Subsigs += l.subsigs
	}
	if m.hasAC {
		st.Trie = m.ac.Stats()
	}
	return st
}

// layout returns the sub-signature count of every logical signature.
func (m *Matcher) layout() []int {
	out := make([]int, len(m.logical))
	for i, l := range m.logical {
		out[i] = l.subsigs
	}
	return out
}

func (m *Matcher) rangeOf(sig int, t offset.Target) offset.Range {
	return offset.Resolve(m.sigs[sig].off, t)
}
