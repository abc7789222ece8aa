// Package ahocorasick implements a multi-key Aho-Corasick automaton over
// bytes. Nodes live in an arena and reference each other by index; fail
// and output links are computed breadth first at build time and the
// automaton is read-only afterwards, so one automaton may be scanned from
// many goroutines at once.
package ahocorasick

// AhoCorasick is a built automaton. The zero value matches nothing.
type AhoCorasick struct {
	t *trie
}

// Scan walks haystack once and calls fn for every key occurrence, in order
// of end offset. end is exclusive. Keys ending at the same offset are
// reported longest first.
func (ac AhoCorasick) Scan(haystack []byte, fn func(key, end int)) {
	t := ac.t
	if t == nil || t.keyCount == 0 {
		return
	}
	var skip skipStats
	skip.minAvg = 2 * t.maxKeyLen
	cur := rootNode
	for at := 0; at < len(haystack); {
		if cur == rootNode && t.skipper != nil && skip.worthwhile() {
			next := t.skipper.next(haystack, at)
			if next < 0 {
				return
			}
			skip.record(next - at)
			at = next
		}
		cur = t.step(cur, haystack[at])
		at++
		for r := t.nodes[cur].report; r != noNode; r = t.nodes[r].out {
			for _, k := range t.nodes[r].keys {
				fn(k, at)
			}
		}
	}
}

// Stats describes the shape of a built automaton.
type Stats struct {
	States    int
	Keys      int
	MaxKeyLen int
	Prefilter bool
}

// Stats returns the automaton's size counters.
func (ac AhoCorasick) Stats() Stats {
	if ac.t == nil {
		return Stats{}
	}
	return Stats{
		// noNode is a placeholder, not a real state.
		States:    len(ac.t.nodes) - 1,
		Keys:      ac.t.keyCount,
		MaxKeyLen: ac.t.maxKeyLen,
		Prefilter: ac.t.skipper != nil,
	}
}

// AhoCorasickBuilder defines a set of options applied before the keys are built.
type AhoCorasickBuilder struct {
	// DenseDepth is the depth below which states use a full 256-entry
	// transition table.
	DenseDepth int
	// Prefilter enables start-byte skipping while the automaton sits in
	// its root state.
	Prefilter bool
}

// NewAhoCorasickBuilder creates a new AhoCorasickBuilder.
func NewAhoCorasickBuilder() AhoCorasickBuilder {
	return AhoCorasickBuilder{
		DenseDepth: 3,
		Prefilter:  true,
	}
}

// BuildByte builds an automaton from keys. Empty keys are ignored but keep
// their index.
func (a *AhoCorasickBuilder) BuildByte(keys [][]byte) AhoCorasick {
	t := newTrie(a.DenseDepth, keys)
	for id, k := range keys {
		t.insert(id, k)
	}
	t.link()
	if a.Prefilter {
		t.skipper = newStartSkipper(keys)
	}
	return AhoCorasick{t}
}
