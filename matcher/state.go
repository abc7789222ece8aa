package matcher

import (
	"encoding/binary"

	"github.com/spaolacci/murmur3"

	"github.com/sansecio/sigmatch/offset"
	"github.com/sansecio/sigmatch/tracker"
)

// partHit is a partial match of a multi-part signature: start of its first
// part and exclusive end of the latest part matched.
type partHit struct {
	start, end uint64
}

type partRing struct {
	hits [tracker.RingSize]partHit
	head int
	n    int
}

func (r *partRing) push(h partHit) {
	if r.n == 0 {
		r.head = 0
	} else {
		r.head = (r.head + 1) % tracker.RingSize
	}
	r.hits[r.head] = h
	if r.n < tracker.RingSize {
		r.n++
	}
}

// ScanState is the mutable per-scan companion of a Matcher. It may be
// reused for consecutive chunks of one target and reset for the next one,
// but never shared between concurrent scans.
type ScanState struct {
	m *Matcher
	// built is set for states sized against the built database. States
	// made earlier are rejected by Scan.
	built  bool
	target offset.Target
	sized  bool
	ident  uint64

	tr    *tracker.Tracker
	once  []uint64
	rings []partRing

	ranges   []offset.Range
	rangeGen []uint32
	gen      uint32
}

// NewScanState returns a state for scanning target t.
func (m *Matcher) NewScanState(t offset.Target) *ScanState {
	st := m.newState()
	st.Reset(t)
	return st
}

func (m *Matcher) newState() *ScanState {
	return &ScanState{
		m:        m,
		built:    m.built,
		tr:       tracker.New(m.layout()),
		once:     make([]uint64, (len(m.sigs)+63)/64),
		rings:    make([]partRing, m.rings),
		ranges:   make([]offset.Range, len(m.sigs)),
		rangeGen: make([]uint32, len(m.sigs)),
	}
}

// AcquireState takes a state from the Matcher's pool and resets it for t.
func (m *Matcher) AcquireState(t offset.Target) *ScanState {
	st := m.pool.Get().(*ScanState)
	st.Reset(t)
	return st
}

// ReleaseState returns st to the pool. st must not be used afterwards.
func (m *Matcher) ReleaseState(st *ScanState) {
	if st == nil || st.m != m || !st.built {
		return
	}
	m.pool.Put(st)
}

// Reset clears all per-scan data and prepares st for target t. Offset
// ranges resolved for the previous target are kept when t describes the
// same file layout.
func (st *ScanState) Reset(t offset.Target) {
	st.tr.Reset()
	clear(st.once)
	clear(st.rings)
	st.sized = t.Size != 0
	st.setTarget(t)
}

func (st *ScanState) setTarget(t offset.Target) {
	id := targetIdentity(t)
	if id != st.ident || st.gen == 0 {
		st.gen++
	}
	st.ident = id
	st.target = t
}

// Tracker returns the logical signature counters collected so far.
func (st *ScanState) Tracker() *tracker.Tracker {
	return st.tr
}

// Target returns the target metadata ranges are resolved against.
func (st *ScanState) Target() offset.Target {
	return st.target
}

// sizeFor fixes the target size from the first chunk when the target did
// not carry one.
func (st *ScanState) sizeFor(base uint64, n int) uint64 {
	if !st.sized {
		t := st.target
		t.Size = max(t.Size, base+uint64(n))
		st.setTarget(t)
		st.sized = true
	}
	return st.target.Size
}

func (st *ScanState) rangeFor(sig int) offset.Range {
	if st.rangeGen[sig] != st.gen {
		st.ranges[sig] = st.m.rangeOf(sig, st.target)
		st.rangeGen[sig] = st.gen
	}
	return st.ranges[sig]
}

// markOnce reports whether sig had not been marked before.
func (st *ScanState) markOnce(sig int) bool {
	w, bit := sig/64, uint64(1)<<(sig%64)
	if st.once[w]&bit != 0 {
		return false
	}
	st.once[w] |= bit
	return true
}

func (st *ScanState) seenOnce(sig int) bool {
	return st.once[sig/64]&(uint64(1)<<(sig%64)) != 0
}

// targetIdentity hashes every field offsets can be resolved against.
func targetIdentity(t offset.Target) uint64 {
	buf := make([]byte, 0, 8*(10+2*len(t.Sections)))
	flag := func(b bool) uint64 {
		if b {
			return 1
		}
		return 0
	}
	for _, v := range []uint64{
		t.Size,
		t.EntryPoint, flag(t.HasEntryPoint),
		t.Overlay, flag(t.HasOverlay),
		t.VersionInfo, flag(t.HasVersionInfo),
		t.Macros, flag(t.HasMacros),
		uint64(len(t.Sections)),
	} {
		buf = binary.LittleEndian.AppendUint64(buf, v)
	}
	for _, s := range t.Sections {
		buf = binary.LittleEndian.AppendUint64(buf, s.RawOffset)
		buf = binary.LittleEndian.AppendUint64(buf, s.RawSize)
	}
	return murmur3.Sum64(buf)
}
