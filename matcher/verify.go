package matcher

// walker re-validates a part around one anchor hit. The trie only proves
// the anchor bytes; everything else, including case folding, is checked
// here.
type walker struct {
	buf       []byte
	p         *part
	flags     Flags
	anchorPos int
	start     int
	emit      func(start, end int)
}

// verify tries every start the anchor hit at a allows and calls emit with
// the start and exclusive end of each accepted match.
func verify(buf []byte, p *part, flags Flags, a int, emit func(start, end int)) {
	lo := max(a-p.anchor.prefixMax, 0)
	hi := a - p.anchor.prefixMin
	w := walker{buf: buf, p: p, flags: flags, anchorPos: a, emit: emit}
	for s := lo; s <= hi; s++ {
		if flags&Fullword != 0 && s > 0 && isAlnum(buf[s-1]) {
			continue
		}
		w.start = s
		w.walk(0, s)
	}
}

// walk matches elems[i:] at pos and reports whether any path was accepted.
func (w *walker) walk(i, pos int) bool {
	elems := w.p.elems
	nocase := w.flags&NoCase != 0
	for i < len(elems) {
		if i == w.p.anchor.elem && pos != w.anchorPos {
			return false
		}
		e := &elems[i]
		switch e.kind {
		case elemByte:
			if pos >= len(w.buf) || !e.b.match(w.buf[pos], nocase) {
				return false
			}
			pos++
			i++
		case elemGap:
			for n := e.min; n <= e.max && pos+n <= len(w.buf); n++ {
				if w.walk(i+1, pos+n) {
					return true
				}
			}
			return false
		case elemAlt:
			return w.alt(e.alt, i, pos, nocase)
		}
	}
	return w.accept(pos)
}

func (w *walker) alt(g *altGroup, i, pos int, nocase bool) bool {
	if g.set != nil {
		if pos >= len(w.buf) || !g.set[w.buf[pos]] {
			return false
		}
		return w.walk(i+1, pos+1)
	}
	if g.negate {
		if pos+g.minLen > len(w.buf) {
			return false
		}
		if g.wide {
			for k := pos + 1; k < pos+g.minLen; k += 2 {
				if w.buf[k] != 0 {
					return false
				}
			}
		}
		for _, br := range g.branches {
			if g.matchBranch(br, w.buf, pos, false) {
				return false
			}
		}
		return w.walk(i+1, pos+g.minLen)
	}
	ok := false
	for _, br := range g.branches {
		if !g.matchBranch(br, w.buf, pos, nocase) {
			continue
		}
		if w.walk(i+1, pos+len(br)) {
			if !g.unique {
				return true
			}
			ok = true
		}
	}
	return ok
}

func (w *walker) accept(end int) bool {
	if w.flags&LineEnd != 0 && end < len(w.buf) && w.buf[end] != '\n' && w.buf[end] != '\r' {
		return false
	}
	if w.flags&Fullword != 0 && end < len(w.buf) && isAlnum(w.buf[end]) {
		return false
	}
	w.emit(w.start, end)
	return true
}
