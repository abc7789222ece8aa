package matcher

import "bytes"

// anchor is the literal a part is inserted into the trie with.
type anchor struct {
	elem   int
	length int
	keys   [][]byte
	// bytes between the part start and the anchor
	prefixMin, prefixMax int
	alt                  bool
	quality              int
}

// selectAnchor picks the most selective literal of at most maxDepth bytes.
// An alternation whose branches all start with exact bytes is used when it
// scores higher than every plain literal window.
func selectAnchor(elems []element, maxDepth int, nocase bool) (anchor, bool) {
	best := anchor{quality: -1}

	for i := 0; i < len(elems); {
		if !exactByte(&elems[i]) {
			i++
			continue
		}
		j := i
		for j < len(elems) && exactByte(&elems[j]) {
			j++
		}
		l := min(j-i, maxDepth)
		for w := i; w+l <= j; w++ {
			key := make([]byte, l)
			for k := range key {
				key[k] = elems[w+k].b.v
			}
			if q := atomQuality(key); q > best.quality {
				best = anchor{elem: w, length: l, keys: [][]byte{key}, quality: q}
			}
		}
		i = j
	}

	for i := range elems {
		e := &elems[i]
		if e.kind != elemAlt || e.alt.negate {
			continue
		}
		keys, l := altKeys(e.alt, maxDepth)
		if l == 0 {
			continue
		}
		q := -1
		for _, k := range keys {
			if kq := atomQuality(k); q < 0 || kq < q {
				q = kq
			}
		}
		if q > best.quality {
			best = anchor{elem: i, length: l, keys: keys, alt: true, quality: q}
		}
	}

	if best.quality < 0 {
		return anchor{}, false
	}
	for _, e := range elems[:best.elem] {
		lo, hi := e.bounds()
		best.prefixMin += lo
		best.prefixMax += hi
	}
	if nocase {
		best.keys = foldKeys(best.keys)
	}
	return best, true
}

func exactByte(e *element) bool {
	return e.kind == elemByte && e.b.m == 0xff
}

// altKeys returns the distinct exact prefixes of the branches of g, cut to
// the shortest exact prefix and maxDepth.
func altKeys(g *altGroup, maxDepth int) ([][]byte, int) {
	l := maxDepth
	for _, br := range g.branches {
		n := 0
		for n < len(br) && br[n].m == 0xff {
			n++
		}
		l = min(l, n)
	}
	if l == 0 {
		return nil, 0
	}
	var keys [][]byte
	seen := make(map[string]bool, len(g.branches))
	for _, br := range g.branches {
		key := make([]byte, l)
		for k := range key {
			key[k] = br[k].v
		}
		if !seen[string(key)] {
			seen[string(key)] = true
			keys = append(keys, key)
		}
	}
	return keys, l
}

// foldKeys expands every key into all of its letter case variants.
func foldKeys(keys [][]byte) [][]byte {
	var out [][]byte
	seen := make(map[string]bool)
	for _, k := range keys {
		variants := [][]byte{bytes.ToLower(k)}
		for i, b := range k {
			if !isLetter(b) {
				continue
			}
			n := len(variants)
			for _, v := range variants[:n] {
				u := bytes.Clone(v)
				u[i] ^= 0x20
				variants = append(variants, u)
			}
		}
		for _, v := range variants {
			if !seen[string(v)] {
				seen[string(v)] = true
				out = append(out, v)
			}
		}
	}
	return out
}

// atomQuality scores how selective a literal is as a trie anchor. Higher
// is better.
func atomQuality(atom []byte) int {
	if len(atom) == 0 {
		return 0
	}

	score := 0
	var unique [256]bool
	distinct := 0
	allSame := true

	for _, b := range atom {
		score += byteQuality(b)
		if !unique[b] {
			unique[b] = true
			distinct++
		}
		if b != atom[0] {
			allSame = false
		}
	}

	score += distinct * 2

	// Runs of padding bytes are everywhere in executables.
	if allSame && isCommonByte(atom[0]) {
		score -= 10 * len(atom)
	}

	return max(score, 0)
}

func byteQuality(b byte) int {
	if isCommonByte(b) {
		return 12
	}
	if isLetter(b) {
		return 18
	}
	return 20
}

// isCommonByte reports bytes that are frequent in both binaries and text.
func isCommonByte(b byte) bool {
	switch b {
	case 0x00, 0xff, 0x20, 0x0a, 0x0d, 0x90, 0xcc:
		return true
	}
	return false
}
