package matcher

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/sansecio/sigmatch/offset"
)

func FuzzCompile(f *testing.F) {
	seeds := []string{
		"deadbeef",
		"aa??bb[1-4]cc",
		"(aa|bb(cc|dd))ee",
		"!(aa|bb)cc",
		"a?b?ccdd",
		"aabb{2-}ccdd*eeff",
		"aa{-5}bbcc",
		"((((aa))))bb",
	}
	for _, s := range seeds {
		f.Add(s, uint8(0))
	}

	f.Fuzz(func(t *testing.T, pattern string, flags uint8) {
		m := New(DefaultOptions())
		if err := m.AddSignature(Signature{Name: "f", Hex: pattern, Flags: Flags(flags) & (NoCase | Fullword | Wide | Ascii)}); err != nil {
			return
		}
		if err := m.Build(); err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		// Scanning arbitrary data must never panic.
		m.Scan([]byte(pattern), ScanOptions{}, nil) //nolint:errcheck
	})
}

var fuzzLiterals = [][]byte{
	[]byte("evil"),
	[]byte("abc"),
	{0xde, 0xad, 0xbe, 0xef},
}

func FuzzScan(f *testing.F) {
	f.Add([]byte("an evil abc"))
	f.Add([]byte{0xde, 0xad, 0xbe, 0xef, 'a', 'b', 'c'})
	f.Add([]byte{})

	lit := New(DefaultOptions())
	trie := New(trieOnly())
	for _, m := range []*Matcher{lit, trie} {
		for i, l := range fuzzLiterals {
			if err := m.AddSignature(Signature{Name: string(rune('a' + i)), Hex: hex.EncodeToString(l)}); err != nil {
				f.Fatal(err)
			}
		}
		if err := m.Build(); err != nil {
			f.Fatal(err)
		}
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		for _, m := range []*Matcher{lit, trie} {
			rs, err := m.Scan(data, ScanOptions{}, m.NewScanState(offset.Target{}))
			if err != nil {
				t.Fatalf("Scan() error = %v", err)
			}
			for _, r := range rs {
				want := fuzzLiterals[r.Name[0]-'a']
				if got := data[r.Offset : r.End+1]; !bytes.Equal(got, want) {
					t.Fatalf("result %s at %d covers %x, want %x", r.Name, r.Offset, got, want)
				}
			}
		}
	})
}
