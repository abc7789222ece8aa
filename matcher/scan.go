package matcher

import (
	"cmp"
	"slices"

	"github.com/sansecio/sigmatch/bm"
	"github.com/sansecio/sigmatch/offset"
	"github.com/sansecio/sigmatch/tracker"
)

// ScanOptions describes one Scan call.
type ScanOptions struct {
	// Offset is the absolute file offset of the first buffer byte.
	Offset uint64
	// Mode selects the signature kinds that may fire. Zero means
	// ModeSignature.
	Mode Mode
	// FileType is the type of the scanned target. Signatures restricted to
	// another type do not fire.
	FileType string
}

// Result is one standalone signature match.
type Result struct {
	Name string
	// Offset is the absolute offset of the first matched byte and End that
	// of the last.
	Offset   uint64
	End      uint64
	Kind     Mode
	FileType string
}

// Callback receives scan results.
type Callback interface {
	SignatureMatching(r *Result) (abort bool, err error)
}

// Results collects every result and implements Callback.
type Results []Result

// SignatureMatching implements Callback, collecting all results.
func (rs *Results) SignatureMatching(r *Result) (abort bool, err error) {
	*rs = append(*rs, *r)
	return false, nil
}

// Scan scans buf and returns the standalone matches: literal matcher results
// first, then trie results, each group in non-decreasing offset order.
// Logical sub-signature matches are recorded in st. A nil st scans with a
// pooled state for an unknown target.
func (m *Matcher) Scan(buf []byte, opts ScanOptions, st *ScanState) ([]Result, error) {
	var rs Results
	if err := m.ScanWith(buf, opts, st, &rs); err != nil {
		return nil, err
	}
	return rs, nil
}

type trieHit struct {
	part       int32
	start, end int
}

// ScanWith is Scan delivering results to cb. Returning abort from cb stops
// delivery; the tracker still holds every logical match of buf.
func (m *Matcher) ScanWith(buf []byte, opts ScanOptions, st *ScanState, cb Callback) error {
	if !m.built {
		return ErrNotBuilt
	}
	if st == nil {
		st = m.AcquireState(offset.Target{})
		defer m.ReleaseState(st)
	}
	if st.m != m || !st.built {
		return ErrState
	}
	mode := opts.Mode
	if mode == 0 {
		mode = ModeSignature
	}
	size := st.sizeFor(opts.Offset, len(buf))

	var lits []Result
	if m.lit.Len() > 0 {
		err := m.lit.Scan(buf, opts.Offset, size, func(lm bm.Match) bool {
			ref := m.litRefs[lm.Pattern]
			s := &m.sigs[ref.sig]
			if !s.eligible(mode, opts.FileType) {
				return true
			}
			if s.flags&Once != 0 && !st.markOnce(ref.sig) {
				return true
			}
			lits = append(lits, s.result(lm.Offset, lm.Offset+uint64(ref.length)))
			return true
		})
		if err != nil {
			return err
		}
	}

	var hits []trieHit
	if m.hasAC {
		m.ac.Scan(buf, func(key, end int) {
			a := end - len(m.keys[key])
			for _, pid := range m.entries[key] {
				p := m.parts[pid]
				s := &m.sigs[m.chains[p.chain].sig]
				if !s.eligible(mode, opts.FileType) {
					continue
				}
				if s.flags&Once != 0 && st.seenOnce(m.chains[p.chain].sig) {
					continue
				}
				verify(buf, p, s.flags, a, func(from, to int) {
					hits = append(hits, trieHit{part: pid, start: from, end: to})
				})
			}
		})
	}

	// Parts of one chain are ordered by end offset, so a part only ever
	// looks back at partial matches that ended before it started.
	slices.SortStableFunc(hits, func(a, b trieHit) int {
		return cmp.Or(cmp.Compare(a.end, b.end), cmp.Compare(a.start, b.start))
	})

	var results []Result
	for _, h := range hits {
		r, ok, err := m.advance(st, m.parts[h.part], opts.Offset+uint64(h.start), opts.Offset+uint64(h.end))
		if err != nil {
			return err
		}
		if ok {
			results = append(results, r)
		}
	}
	slices.SortStableFunc(results, func(a, b Result) int {
		return cmp.Compare(a.Offset, b.Offset)
	})

	for _, group := range [][]Result{lits, results} {
		for i := range group {
			abort, err := cb.SignatureMatching(&group[i])
			if err != nil {
				return err
			}
			if abort {
				return nil
			}
		}
	}
	return nil
}

// advance feeds one verified part match into the chain state. It returns a
// result when a standalone signature completed.
func (m *Matcher) advance(st *ScanState, p *part, start, end uint64) (Result, bool, error) {
	c := &m.chains[p.chain]
	s := &m.sigs[c.sig]

	origin := start
	if p.index == 0 {
		if s.off.Type != offset.None && !st.rangeFor(c.sig).Contains(start) {
			return Result{}, false, nil
		}
	} else {
		prev := &st.rings[c.ringBase+p.index-1]
		found := false
		for i := range prev.n {
			h := prev.hits[(prev.head-i+tracker.RingSize)%tracker.RingSize]
			if h.end > start {
				continue
			}
			gap := start - h.end
			if gap < uint64(p.minDist) || (p.maxDist >= 0 && gap > uint64(p.maxDist)) {
				continue
			}
			origin, found = h.start, true
			break
		}
		if !found {
			return Result{}, false, nil
		}
	}

	if !p.last(c) {
		st.rings[c.ringBase+p.index].push(partHit{start: origin, end: end})
		return Result{}, false, nil
	}
	return m.complete(st, c.sig, origin, end)
}

func (m *Matcher) complete(st *ScanState, sig int, start, end uint64) (Result, bool, error) {
	s := &m.sigs[sig]
	once := s.flags&Once != 0
	if once && st.seenOnce(sig) {
		return Result{}, false, nil
	}
	if s.standalone() {
		if once {
			st.markOnce(sig)
		}
		return s.result(start, end), true, nil
	}

	recorded, err := st.tr.MatchedAt(s.logical, s.subsig, end-1, s.after)
	if err != nil || !recorded {
		return Result{}, false, err
	}
	if once {
		st.markOnce(sig)
	}
	if s.off.Type == offset.Macro {
		if err := st.tr.MacroMatched(s.off.Section, start); err != nil {
			return Result{}, false, err
		}
	}
	return Result{}, false, nil
}

func (s *sigEntry) eligible(mode Mode, fileType string) bool {
	if s.kind&mode == 0 {
		return false
	}
	return s.fileType == "" || s.fileType == fileType
}

// result builds the result for a match covering [start, end).
func (s *sigEntry) result(start, end uint64) Result {
	return Result{
		Name:     s.name,
		Offset:   start,
		End:      end - 1,
		Kind:     s.kind,
		FileType: s.fileType,
	}
}
