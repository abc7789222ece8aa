package ahocorasick

import "bytes"

// maxStartBytes bounds the number of distinct first bytes for which
// start-byte skipping is still worth doing.
const maxStartBytes = 16

// startSkipper finds the next haystack position holding the first byte of
// some key.
type startSkipper struct {
	first [256]bool
	count int
	only  byte
}

// newStartSkipper returns nil when no key is non-empty or the keys start
// with too many distinct bytes.
func newStartSkipper(keys [][]byte) *startSkipper {
	s := &startSkipper{}
	for _, k := range keys {
		if len(k) == 0 || s.first[k[0]] {
			continue
		}
		s.first[k[0]] = true
		s.only = k[0]
		s.count++
		if s.count > maxStartBytes {
			return nil
		}
	}
	if s.count == 0 {
		return nil
	}
	return s
}

// next returns the first position at or after at whose byte starts a key,
// or -1.
func (s *startSkipper) next(haystack []byte, at int) int {
	if s.count == 1 {
		if i := bytes.IndexByte(haystack[at:], s.only); i >= 0 {
			return at + i
		}
		return -1
	}
	for i := at; i < len(haystack); i++ {
		if s.first[haystack[i]] {
			return i
		}
	}
	return -1
}

const minSkips = 40

// skipStats tracks how far skipping jumps during one scan and switches it
// off once the average jump falls under minAvg bytes.
type skipStats struct {
	jumps   int
	skipped int
	minAvg  int
	off     bool
}

func (s *skipStats) worthwhile() bool {
	if s.off {
		return false
	}
	if s.jumps < minSkips || s.skipped >= s.minAvg*s.jumps {
		return true
	}
	s.off = true
	return false
}

func (s *skipStats) record(n int) {
	s.jumps++
	s.skipped += n
}
