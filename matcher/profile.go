package matcher

import (
	"encoding/hex"
	"sort"
	"time"
)

// VerifyTiming holds the verification cost of one signature part.
type VerifyTiming struct {
	Signature string
	Part      int
	Anchor    string // hex of the anchor that triggered verification
	Hits      int
	Matches   int
	Duration  time.Duration
}

// VerifyProfile scans buf and returns per-part verification timings,
// sorted slowest first. Offsets, distances and scan state are ignored; it
// measures only the work done around anchor hits.
func (m *Matcher) VerifyProfile(buf []byte) []VerifyTiming {
	if !m.hasAC {
		return nil
	}
	byPart := make(map[int32]*VerifyTiming)

	m.ac.Scan(buf, func(key, end int) {
		a := end - len(m.keys[key])
		for _, pid := range m.entries[key] {
			p := m.parts[pid]
			s := &m.sigs[m.chains[p.chain].sig]
			vt := byPart[pid]
			if vt == nil {
				vt = &VerifyTiming{
					Signature: s.name,
					Part:      p.index + 1,
					Anchor:    hex.EncodeToString(m.keys[key]),
				}
				byPart[pid] = vt
			}
			start := time.Now()
			verify(buf, p, s.flags, a, func(int, int) { vt.Matches++ })
			vt.Duration += time.Since(start)
			vt.Hits++
		}
	})

	timings := make([]VerifyTiming, 0, len(byPart))
	for _, vt := range byPart {
		timings = append(timings, *vt)
	}
	sort.Slice(timings, func(i, j int) bool {
		if timings[i].Duration != timings[j].Duration {
			return timings[i].Duration > timings[j].Duration
		}
		return timings[i].Signature < timings[j].Signature
	})
	return timings
}
