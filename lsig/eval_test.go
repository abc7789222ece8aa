package lsig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sansecio/sigmatch/parser"
)

func TestEval(t *testing.T) {
	tests := []struct {
		name   string
		expr   string
		counts []uint32
		want   bool
	}{
		{"single_matched", "0", []uint32{1}, true},
		{"single_unmatched", "0", []uint32{0}, false},
		{"and_both", "0&1", []uint32{1, 2}, true},
		{"and_one", "0&1", []uint32{1, 0}, false},
		{"or_one", "0|1", []uint32{0, 3}, true},
		{"or_none", "0|1", []uint32{0, 0}, false},
		{"precedence", "0|1&2", []uint32{1, 0, 0}, true},
		{"paren", "(0|1)&2", []uint32{1, 0, 0}, false},
		{"count_gt", "(0|1)>2", []uint32{2, 1}, true},
		{"count_gt_equal", "(0|1)>2", []uint32{1, 1}, false},
		{"count_eq", "0=2", []uint32{2}, true},
		{"count_eq_zero", "0=0", []uint32{0}, true},
		{"count_eq_zero_matched", "0=0", []uint32{1}, false},
		{"count_lt", "1<3", []uint32{0, 2}, true},
		{"count_lt_fail", "1<3", []uint32{0, 3}, false},
		{"distinct_met", "(0|1|2)>1,2", []uint32{1, 4, 0}, true},
		{"distinct_unmet", "(0|1|2)>1,2", []uint32{0, 5, 0}, false},
		{"nested_count", "(0=0)&1", []uint32{0, 1}, true},
		{"missing_counts", "0&3", []uint32{1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := Parse(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.Eval(tt.counts), "Eval(%v)", tt.counts)
		})
	}
}

func TestSubsigs(t *testing.T) {
	e, err := Parse("0&(3|1)>1")
	require.NoError(t, err)
	assert.Equal(t, 4, e.Subsigs())
	assert.Equal(t, "0&(3|1)>1", e.String())
}

func TestParseErrors(t *testing.T) {
	_, err := Parse("0&64")
	assert.ErrorIs(t, err, ErrSubsig)
	_, err = Parse("0&")
	assert.ErrorIs(t, err, parser.ErrSyntax)
}
