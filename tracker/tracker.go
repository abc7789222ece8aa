// Package tracker aggregates sub-signature matches of logical signatures
// during one scan. It records how often each sub-signature matched and where
// its most recent matches ended; a separate evaluator turns those counts into
// a verdict.
//
// A Tracker is scan-local and not safe for concurrent use.
package tracker

import (
	"errors"
	"fmt"
)

const (
	// RingSize is the number of most recent end offsets retained per
	// sub-signature.
	RingSize = 16
	// MacroSlots is the size of the last-match array for macro signatures.
	MacroSlots = 32
)

var (
	ErrIndex = errors.New("tracker index out of range")
	ErrMacro = errors.New("macro group out of range")
)

// Constraint bounds the distance between a new match and an earlier match of
// another sub-signature of the same logical signature. The distance is the
// new end offset minus the other end offset; matches of the other
// sub-signature ending after the new one never satisfy it.
type Constraint struct {
	Subsig int
	Min    uint64
	Max    uint64
}

func (c Constraint) String() string {
	return fmt.Sprintf("after %d within [%d,%d]", c.Subsig, c.Min, c.Max)
}

type ring struct {
	offs [RingSize]uint64
	// head is the slot of the most recent entry, n the number retained.
	head  int
	n     int
	count uint32
}

func (r *ring) push(off uint64) {
	if r.n == 0 {
		r.head = 0
	} else {
		r.head = (r.head + 1) % RingSize
	}
	r.offs[r.head] = off
	if r.n < RingSize {
		r.n++
	}
	r.count++
}

func (r *ring) tail() int {
	return (r.head - r.n + 1 + RingSize) % RingSize
}

// each visits retained offsets from newest to oldest until fn returns false.
func (r *ring) each(fn func(uint64) bool) {
	for i := range r.n {
		if !fn(r.offs[(r.head-i+RingSize)%RingSize]) {
			return
		}
	}
}

// Tracker holds the per-scan state of all logical signatures.
type Tracker struct {
	layout []int
	rings  [][]ring
	macro  [MacroSlots]uint64
	mset   uint32
}

// New returns a Tracker for logical signatures whose sub-signature counts
// are given by layout.
func New(layout []int) *Tracker {
	t := &Tracker{layout: append([]int(nil), layout...)}
	t.rings = make([][]ring, len(layout))
	for i, n := range layout {
		t.rings[i] = make([]ring, n)
	}
	return t
}

// Layout returns the number of sub-signatures of every logical signature.
func (t *Tracker) Layout() []int {
	return t.layout
}

func (t *Tracker) ring(lsig, sub int) (*ring, error) {
	if lsig < 0 || lsig >= len(t.rings) || sub < 0 || sub >= len(t.rings[lsig]) {
		return nil, fmt.Errorf("%w: logical %d subsig %d", ErrIndex, lsig, sub)
	}
	return &t.rings[lsig][sub], nil
}

// Matched counts a match of a sub-signature that has no position, such as a
// byte compare or hash check. The ring is left untouched.
func (t *Tracker) Matched(lsig, sub int) error {
	r, err := t.ring(lsig, sub)
	if err != nil {
		return err
	}
	r.count++
	return nil
}

// MatchedAt records a match of a sub-signature ending at end. With a non-nil
// constraint the match is only recorded when at least one retained match of
// c.Subsig lies within the allowed distance. It reports whether the match
// was recorded.
func (t *Tracker) MatchedAt(lsig, sub int, end uint64, c *Constraint) (bool, error) {
	r, err := t.ring(lsig, sub)
	if err != nil {
		return false, err
	}
	if c != nil {
		other, err := t.ring(lsig, c.Subsig)
		if err != nil {
			return false, err
		}
		ok := false
		other.each(func(prev uint64) bool {
			if prev > end {
				return true
			}
			if d := end - prev; d >= c.Min && d <= c.Max {
				ok = true
				return false
			}
			return true
		})
		if !ok {
			return false, nil
		}
	}
	r.push(end)
	return true, nil
}

// Count returns how many times a sub-signature matched.
func (t *Tracker) Count(lsig, sub int) uint32 {
	r, err := t.ring(lsig, sub)
	if err != nil {
		return 0
	}
	return r.count
}

// Counts returns the match count of every sub-signature of lsig, in
// sub-signature order. It returns nil for an unknown logical signature.
func (t *Tracker) Counts(lsig int) []uint32 {
	if lsig < 0 || lsig >= len(t.rings) {
		return nil
	}
	out := make([]uint32, len(t.rings[lsig]))
	for i := range t.rings[lsig] {
		out[i] = t.rings[lsig][i].count
	}
	return out
}

// Offsets returns the retained end offsets of a sub-signature, oldest first.
func (t *Tracker) Offsets(lsig, sub int) []uint64 {
	r, err := t.ring(lsig, sub)
	if err != nil || r.n == 0 {
		return nil
	}
	out := make([]uint64, 0, r.n)
	for i, at := 0, r.tail(); i < r.n; i, at = i+1, (at+1)%RingSize {
		out = append(out, r.offs[at])
	}
	return out
}

// Last returns the most recent end offset of a sub-signature.
func (t *Tracker) Last(lsig, sub int) (uint64, bool) {
	r, err := t.ring(lsig, sub)
	if err != nil || r.n == 0 {
		return 0, false
	}
	return r.offs[r.head], true
}

// MacroMatched records the last match offset of a macro signature group.
func (t *Tracker) MacroMatched(group int, off uint64) error {
	if group < 0 || group >= MacroSlots {
		return fmt.Errorf("%w: %d", ErrMacro, group)
	}
	t.macro[group] = off
	t.mset |= 1 << group
	return nil
}

// MacroLast returns the last match offset recorded for a macro group.
func (t *Tracker) MacroLast(group int) (uint64, bool) {
	if group < 0 || group >= MacroSlots || t.mset&(1<<group) == 0 {
		return 0, false
	}
	return t.macro[group], true
}

// Reset clears all counts and offsets, keeping the layout.
func (t *Tracker) Reset() {
	for i := range t.rings {
		clear(t.rings[i])
	}
	t.macro = [MacroSlots]uint64{}
	t.mset = 0
}
