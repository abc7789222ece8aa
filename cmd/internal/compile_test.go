package internal

import (
	"bytes"
	"debug/pe"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sansecio/sigmatch/matcher"
	"github.com/sansecio/sigmatch/offset"
)

const rulesYAML = `
signatures:
  - name: php.eval
    hex: "6576616c28{-8}24"
  - name: upx
    hex: "55505821"
    kind: fingerprint
  - name: wide.cmd
    hex: "636d64"
    flags: [wide, ascii, nocase]
logical:
  - name: dropper
    expression: "0&1"
    subsigs:
      - hex: "4d5a"
      - hex: "2e657865"
        after: {subsig: 0, min: 0, max: 100}
`

func TestCompileRules(t *testing.T) {
	rf, err := ParseRules([]byte(rulesYAML))
	require.NoError(t, err)
	require.Len(t, rf.Signatures, 3)
	require.Len(t, rf.Logical, 1)
	assert.Equal(t, []string{"wide", "ascii", "nocase"}, rf.Signatures[2].Flags)
	require.NotNil(t, rf.Logical[0].Subsigs[1].After)
	assert.Equal(t, uint64(100), rf.Logical[0].Subsigs[1].After.Max)

	db, err := Compile(rf, matcher.DefaultOptions(), false)
	require.NoError(t, err)
	require.Len(t, db.Logical, 1)
	assert.Equal(t, "dropper", db.Logical[0].Name)

	data := []byte("MZ..eval($x) C\x00M\x00D\x00 a.exe UPX!")
	st := db.Matcher.NewScanState(offset.Target{Size: uint64(len(data))})
	rs, err := db.Matcher.Scan(data, matcher.ScanOptions{Mode: matcher.ModeSignature | matcher.ModeFingerprint}, st)
	require.NoError(t, err)

	var names []string
	for _, r := range rs {
		names = append(names, r.Name)
	}
	assert.ElementsMatch(t, []string{"php.eval", "wide.cmd", "upx"}, names)
	l := db.Logical[0]
	assert.True(t, l.Expr.Eval(st.Tracker().Counts(l.ID)))
}

func TestCompileRulesErrors(t *testing.T) {
	rf, err := ParseRules([]byte(`
signatures:
  - name: good
    hex: "616263"
  - name: bad.hex
    hex: "zz"
  - name: bad.flag
    hex: "616263"
    flags: [loud]
logical:
  - name: bad.expr
    expression: "0&&1"
    subsigs: [{hex: "616263"}]
  - name: short
    expression: "0&3"
    subsigs: [{hex: "616263"}]
`))
	require.NoError(t, err)

	_, err = Compile(rf, matcher.DefaultOptions(), false)
	require.Error(t, err)
	for _, name := range []string{"bad.hex", "bad.flag", "bad.expr", "short"} {
		assert.Contains(t, err.Error(), name)
	}
	assert.ErrorIs(t, err, matcher.ErrMalformed)
	assert.ErrorIs(t, err, matcher.ErrOptions)

	db, err := Compile(rf, matcher.DefaultOptions(), true)
	require.NoError(t, err)
	assert.Equal(t, 4, db.Skipped)
	assert.Equal(t, 1, db.Matcher.Stats().Signatures)
}

func TestParseRulesErrors(t *testing.T) {
	_, err := ParseRules([]byte("signatures: [}"))
	assert.Error(t, err)

	_, err = ParseRules([]byte("other: 1\n"))
	assert.ErrorContains(t, err, "no signatures")
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("all")
	require.NoError(t, err)
	assert.Equal(t, matcher.ModeSignature|matcher.ModeFingerprint, m)

	_, err = ParseMode("everything")
	assert.Error(t, err)
}

func TestTargetNonPE(t *testing.T) {
	tg, ft := Target([]byte("plain text"))
	assert.Equal(t, "", ft)
	assert.Equal(t, offset.Target{Size: 10}, tg)
}

func TestRVAToOffsetHighSection(t *testing.T) {
	f := &pe.File{Sections: []*pe.Section{
		{SectionHeader: pe.SectionHeader{VirtualAddress: 0x1000, VirtualSize: 0x200, Size: 0x200, Offset: 0x200}},
		{SectionHeader: pe.SectionHeader{VirtualAddress: 0xfffff000, VirtualSize: 0x2000, Size: 0x2000, Offset: 0x400}},
	}}

	off, ok := rvaToOffset(f, 0x1010)
	require.True(t, ok)
	assert.Equal(t, uint64(0x210), off)

	off, ok = rvaToOffset(f, 0xfffff800)
	require.True(t, ok)
	assert.Equal(t, uint64(0xc00), off)

	_, ok = rvaToOffset(f, 0x800)
	assert.False(t, ok)
}

func TestSortByCount(t *testing.T) {
	hits := map[string]int{"b": 2, "a": 2, "c": 5}
	assert.Equal(t, []string{"c", "a", "b"}, SortByCount(hits))
	assert.Equal(t, 9, SumValues(hits))
}

func TestPrinterPlain(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)
	p.Match("f.php", matcher.Result{Name: "php.eval", Offset: 3, End: 9, Kind: matcher.ModeSignature})
	p.Logical("f.php", "dropper", []uint32{1, 2})
	p.Summary(2, 1, map[string]int{"php.eval": 1, "dropper": 1})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "f.php: php.eval @3-9", lines[0])
	assert.Equal(t, "f.php: dropper [1 2]", lines[1])
	assert.Equal(t, "scanned 2 files, 1 matched, 2 hits", lines[2])
	assert.Equal(t, "       1  dropper", lines[3])
}
