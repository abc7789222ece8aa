package offset

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func peTarget() Target {
	return Target{
		Size:          0x1000,
		EntryPoint:    0x400,
		HasEntryPoint: true,
		Sections: []Section{
			{RawOffset: 0x200, RawSize: 0x200},
			{RawOffset: 0x400, RawSize: 0x400},
			{RawOffset: 0x800, RawSize: 0x600},
		},
		Overlay:    0xe00,
		HasOverlay: true,
	}
}

func TestResolveEOF(t *testing.T) {
	d := Descriptor{Type: EOFMinus, Value: 10}

	assert.Equal(t, Range{Min: 90, Max: 90}, Resolve(d, Target{Size: 100}))
	assert.True(t, Resolve(d, Target{Size: 5}).IsImpossible())
	assert.Equal(t, Range{Min: 0, Max: 0}, Resolve(d, Target{Size: 10}))
	assert.True(t, Resolve(Descriptor{Type: EOFMinus}, Target{Size: 10}).IsImpossible())
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		d    Descriptor
		t    Target
		want Range
	}{
		{"none", Any, Target{}, Unconstrained},
		{"absolute", Descriptor{Type: Absolute, Value: 16}, Target{Size: 64}, Range{16, 16}},
		{"absolute shift", Descriptor{Type: Absolute, Value: 16, MaxShift: 8}, Target{Size: 64}, Range{16, 24}},
		{"absolute past end", Descriptor{Type: Absolute, Value: 64}, Target{Size: 64}, Impossible},
		{"eof shift", Descriptor{Type: EOFMinus, Value: 10, MaxShift: 4}, Target{Size: 100}, Range{90, 94}},
		{"ep plus", Descriptor{Type: EPPlus, Value: 0x10}, peTarget(), Range{0x410, 0x410}},
		{"ep minus", Descriptor{Type: EPMinus, Value: 0x10}, peTarget(), Range{0x3f0, 0x3f0}},
		{"ep minus underflow", Descriptor{Type: EPMinus, Value: 0x401}, peTarget(), Impossible},
		{"ep missing", Descriptor{Type: EPPlus}, Target{Size: 100}, Impossible},
		{"section plus", Descriptor{Type: SectionPlus, Section: 1, Value: 4}, peTarget(), Range{0x404, 0x404}},
		{"section beyond raw size", Descriptor{Type: SectionPlus, Section: 0, Value: 0x200}, peTarget(), Impossible},
		{"section missing", Descriptor{Type: SectionPlus, Section: 3}, peTarget(), Impossible},
		{"last section", Descriptor{Type: LastSectionPlus, Value: 2, MaxShift: 2}, peTarget(), Range{0x802, 0x804}},
		{"last section none", Descriptor{Type: LastSectionPlus}, Target{Size: 10}, Impossible},
		{"section entire", Descriptor{Type: SectionEntire, Section: 2}, peTarget(), Range{0x800, 0xdff}},
		{"overlay", Descriptor{Type: Overlay, Value: 1}, peTarget(), Range{0xe01, 0xe01}},
		{"overlay missing", Descriptor{Type: Overlay}, Target{Size: 10}, Impossible},
		{"version missing", Descriptor{Type: Version}, peTarget(), Impossible},
		{"version", Descriptor{Type: Version, Value: 2}, Target{Size: 100, VersionInfo: 40, HasVersionInfo: true}, Range{42, 42}},
		{"macro missing", Descriptor{Type: Macro}, peTarget(), Impossible},
		{"macro", Descriptor{Type: Macro, Value: 4}, Target{Size: 100, Macros: 50, HasMacros: true}, Range{54, 54}},
		{"ep plus overflow", Descriptor{Type: EPPlus, Value: math.MaxUint64}, Target{Size: 100, EntryPoint: 10, HasEntryPoint: true}, Impossible},
		{"section plus overflow", Descriptor{Type: SectionPlus, Value: 1}, Target{Size: 100, Sections: []Section{{RawOffset: math.MaxUint64, RawSize: 2}}}, Impossible},
		{"version overflow", Descriptor{Type: Version, Value: math.MaxUint64 - 5}, Target{Size: 100, VersionInfo: 10, HasVersionInfo: true}, Impossible},
		{"macro overflow", Descriptor{Type: Macro, Value: math.MaxUint64}, Target{Size: 100, Macros: 1, HasMacros: true}, Impossible},
		{"overlay overflow", Descriptor{Type: Overlay, Value: math.MaxUint64 - 1}, Target{Size: 100, Overlay: 3, HasOverlay: true}, Impossible},
		{"shift overflow", Descriptor{Type: Absolute, Value: 1, MaxShift: math.MaxUint64}, Target{Size: 2}, Range{1, math.MaxUint64}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.d, tt.t)
			if tt.want.IsImpossible() {
				assert.True(t, got.IsImpossible(), "got %v", got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveIsPure(t *testing.T) {
	target := peTarget()
	d := Descriptor{Type: SectionPlus, Section: 1, Value: 4}
	first := Resolve(d, target)
	second := Resolve(d, target)
	assert.Equal(t, first, second)
	assert.Equal(t, peTarget(), target)
}

func TestRange(t *testing.T) {
	r := Range{Min: 4, Max: 8}
	assert.True(t, r.Contains(4))
	assert.True(t, r.Contains(8))
	assert.False(t, r.Contains(9))
	assert.False(t, Impossible.Contains(0))
	assert.True(t, Unconstrained.Contains(math.MaxUint64))
	assert.Equal(t, "[4,8]", r.String())
	assert.Equal(t, "impossible", Impossible.String())
	assert.Equal(t, "any", Unconstrained.String())
}

func TestDescriptorString(t *testing.T) {
	tests := []struct {
		d    Descriptor
		want string
	}{
		{Any, "*"},
		{Descriptor{Type: Absolute, Value: 10, MaxShift: 5}, "10,5"},
		{Descriptor{Type: EOFMinus, Value: 10}, "EOF-10"},
		{Descriptor{Type: EPPlus, Value: 3}, "EP+3"},
		{Descriptor{Type: SectionPlus, Section: 2, Value: 3}, "S2+3"},
		{Descriptor{Type: SectionEntire, Section: 1}, "SE1"},
		{Descriptor{Type: Overlay, Value: 7}, "OV+7"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.d.String())
	}
}
