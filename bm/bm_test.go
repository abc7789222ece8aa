package bm

import (
	"bytes"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sansecio/sigmatch/offset"
)

func build(t *testing.T, pats ...Pattern) *Matcher {
	t.Helper()
	m := New()
	for _, p := range pats {
		_, err := m.Add(p)
		require.NoError(t, err)
	}
	require.NoError(t, m.Build())
	return m
}

func scanAll(t *testing.T, m *Matcher, buf []byte) []Match {
	t.Helper()
	var out []Match
	err := m.Scan(buf, 0, uint64(len(buf)), func(mt Match) bool {
		out = append(out, mt)
		return true
	})
	require.NoError(t, err)
	return out
}

func lit(s string) Pattern {
	return Pattern{Data: []byte(s)}
}

func TestScanFindsAllOccurrences(t *testing.T) {
	m := build(t, lit("abc"), lit("bcd"), lit("abcd"))
	got := scanAll(t, m, []byte("xabcdabc"))
	want := []Match{
		{Pattern: 0, Offset: 1},
		{Pattern: 2, Offset: 1},
		{Pattern: 1, Offset: 2},
		{Pattern: 0, Offset: 5},
	}
	assert.Equal(t, want, got)
}

func TestScanSharedBucket(t *testing.T) {
	// Same tail block "bc", different first bytes.
	m := build(t, lit("abcz"), lit("xbcz"), lit("abcy"))
	got := scanAll(t, m, []byte("xbcz abcy abcz"))
	assert.Equal(t, []Match{
		{Pattern: 1, Offset: 0},
		{Pattern: 2, Offset: 5},
		{Pattern: 0, Offset: 10},
	}, got)
	st := m.Stats()
	assert.Equal(t, 1, st.Buckets)
	assert.Equal(t, 3, st.MaxChain)
}

func TestScanOverlapping(t *testing.T) {
	m := build(t, lit("aaa"))
	got := scanAll(t, m, []byte("aaaaa"))
	assert.Len(t, got, 3)
}

func TestBoundaryEOL(t *testing.T) {
	m := build(t, Pattern{Data: []byte("end"), Boundary: BoundaryEOL})
	got := scanAll(t, m, []byte("end\nendx end\r end"))
	var offs []uint64
	for _, mt := range got {
		offs = append(offs, mt.Offset)
	}
	assert.Equal(t, []uint64{0, 9, 14}, offs)
}

func TestOffsetWindow(t *testing.T) {
	buf := bytes.Repeat([]byte("MZ\x90"), 10)
	m := build(t,
		Pattern{Data: []byte("MZ\x90"), Offset: offset.Descriptor{Type: offset.Absolute, Value: 3, MaxShift: 3}},
		Pattern{Data: []byte("MZ\x90"), Offset: offset.Descriptor{Type: offset.EOFMinus, Value: 3}},
	)
	got := scanAll(t, m, buf)
	assert.Equal(t, []Match{
		{Pattern: 0, Offset: 3},
		{Pattern: 0, Offset: 6},
		{Pattern: 1, Offset: 27},
	}, got)
}

func TestOffsetWindowUsesFileSize(t *testing.T) {
	m := build(t, Pattern{Data: []byte("tail"), Offset: offset.Descriptor{Type: offset.EOFMinus, Value: 4}})
	chunk := []byte("..tail")
	var got []Match
	require.NoError(t, m.Scan(chunk, 100, 106, func(mt Match) bool {
		got = append(got, mt)
		return true
	}))
	assert.Equal(t, []Match{{Pattern: 0, Offset: 102}}, got)

	got = nil
	require.NoError(t, m.Scan(chunk, 100, 200, func(mt Match) bool {
		got = append(got, mt)
		return true
	}))
	assert.Empty(t, got)
}

func TestScanStop(t *testing.T) {
	m := build(t, lit("abc"))
	n := 0
	require.NoError(t, m.Scan([]byte("abcabcabc"), 0, 9, func(Match) bool {
		n++
		return false
	}))
	assert.Equal(t, 1, n)
}

func TestAddErrors(t *testing.T) {
	m := New()
	_, err := m.Add(lit("ab"))
	assert.ErrorIs(t, err, ErrShort)
	_, err = m.Add(Pattern{Data: []byte("abc"), Offset: offset.Descriptor{Type: offset.EPPlus}})
	assert.ErrorIs(t, err, ErrOffsetType)

	assert.ErrorIs(t, m.Scan(nil, 0, 0, func(Match) bool { return true }), ErrNotBuilt)
	require.NoError(t, m.Build())
	assert.ErrorIs(t, m.Build(), ErrBuilt)
	_, err = m.Add(lit("abc"))
	assert.ErrorIs(t, err, ErrBuilt)
}

func TestScanMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	alphabet := []byte("abcd")
	randBytes := func(n int) []byte {
		b := make([]byte, n)
		for i := range b {
			b[i] = alphabet[rng.IntN(len(alphabet))]
		}
		return b
	}

	var pats []Pattern
	for range 40 {
		pats = append(pats, Pattern{Data: randBytes(3 + rng.IntN(5))})
	}
	m := build(t, pats...)
	buf := randBytes(2000)

	got := make(map[Match]bool)
	for _, mt := range scanAll(t, m, buf) {
		got[mt] = true
	}
	want := make(map[Match]bool)
	for pi, p := range pats {
		for i := 0; i+len(p.Data) <= len(buf); i++ {
			if bytes.Equal(buf[i:i+len(p.Data)], p.Data) {
				want[Match{Pattern: pi, Offset: uint64(i)}] = true
			}
		}
	}
	assert.Equal(t, want, got)
}
