package matcher

import (
	"cmp"
	"encoding/hex"
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	cfac "github.com/cloudflare/ahocorasick"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wasilibs/go-re2/experimental"
)

func randBytes(r *rand.Rand, alphabet string, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[r.IntN(len(alphabet))]
	}
	return b
}

func sortResults(rs []Result) []Result {
	slices.SortFunc(rs, func(a, b Result) int {
		return cmp.Or(cmp.Compare(a.Offset, b.Offset), cmp.Compare(a.Name, b.Name))
	})
	return rs
}

// Literal signatures must give the same results whether they are served by
// the literal matcher or by the trie.
func TestLiteralMatchesTrie(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	var sigs []Signature
	for i := range 200 {
		sigs = append(sigs, Signature{
			Name: fmt.Sprintf("s%d", i),
			Hex:  hex.EncodeToString(randBytes(r, "abcd", 3+r.IntN(4))),
		})
	}
	lit := build(t, DefaultOptions(), sigs...)
	trie := build(t, trieOnly(), sigs...)
	require.Positive(t, lit.Stats().Literal)
	require.Zero(t, trie.Stats().Literal)

	for range 5 {
		buf := randBytes(r, "abcdx", 4096)
		want, err := trie.Scan(buf, ScanOptions{}, nil)
		require.NoError(t, err)
		got, err := lit.Scan(buf, ScanOptions{}, nil)
		require.NoError(t, err)
		require.NotEmpty(t, want)
		assert.Equal(t, sortResults(want), sortResults(got))
	}
}

// The set of signatures that fire must match an independent Aho-Corasick
// implementation.
func TestMatchesCloudflareAhoCorasick(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 5))
	seen := map[string]bool{}
	var dict [][]byte
	var sigs []Signature
	// Keys of one length never contain each other.
	for len(dict) < 300 {
		k := randBytes(r, "abcdefgh", 5)
		if seen[string(k)] {
			continue
		}
		seen[string(k)] = true
		sigs = append(sigs, Signature{Name: fmt.Sprint(len(dict)), Hex: hex.EncodeToString(k)})
		dict = append(dict, k)
	}
	oracle := cfac.NewMatcher(dict)

	for _, opts := range []Options{DefaultOptions(), trieOnly()} {
		m := build(t, opts, sigs...)
		for range 5 {
			buf := randBytes(r, "abcdefgh", 2048)
			want := map[string]bool{}
			for _, i := range oracle.Match(buf) {
				want[fmt.Sprint(i)] = true
			}
			rs, err := m.Scan(buf, ScanOptions{}, nil)
			require.NoError(t, err)
			got := map[string]bool{}
			for _, res := range rs {
				got[res.Name] = true
			}
			assert.Equal(t, want, got)
		}
	}
}

// The leftmost result of a signature must agree with RE2 running over the
// regex rendering of the same pattern.
func TestMatchesRegex(t *testing.T) {
	patterns := []string{
		"61??63",
		"6162[1-3]64",
		"(6162|6364)61",
		"61(62|63)[0-2]64",
		"6?62",
		"!(61|62)6364",
		"6263??[0-3]61",
		"(61|62)(63|64)78",
	}
	r := rand.New(rand.NewPCG(1, 2))
	for _, p := range patterns {
		t.Run(p, func(t *testing.T) {
			m := New(DefaultOptions())
			d, err := m.Describe(Signature{Hex: p})
			require.NoError(t, err)
			require.True(t, d.RegexOK)
			re, err := experimental.CompileLatin1(d.Regex)
			require.NoError(t, err)

			require.NoError(t, m.AddSignature(Signature{Name: p, Hex: p}))
			require.NoError(t, m.Build())
			for range 200 {
				buf := randBytes(r, "abcdx", 12)
				rs, err := m.Scan(buf, ScanOptions{}, nil)
				require.NoError(t, err)
				loc := re.FindIndex(buf)
				if loc == nil {
					assert.Empty(t, rs, "buffer %q", buf)
					continue
				}
				require.NotEmpty(t, rs, "buffer %q", buf)
				first := rs[0].Offset
				for _, res := range rs {
					first = min(first, res.Offset)
				}
				assert.Equal(t, uint64(loc[0]), first, "buffer %q", buf)
			}
		})
	}
}
