package matcher

import (
	"fmt"
	"log/slog"
	"strings"
)

// Options configures a Matcher.
type Options struct {
	// MinDepth is the anchor length below which a pattern counts as weak.
	// Weak patterns are kept unless Prune is set.
	MinDepth int

	// MaxDepth is the longest anchor inserted into the trie.
	MaxDepth int

	// Prune drops weak patterns at compile time instead of keeping them,
	// trading recall of low-value signatures for scan speed.
	Prune bool

	// DenseDepth is the trie depth below which states use full transition
	// tables.
	DenseDepth int

	// Prefilter enables start-byte skipping in the trie.
	Prefilter bool

	// ForceTrie routes literal signatures to the trie instead of the
	// literal matcher.
	ForceTrie bool

	// DistinctAlternatives reports every matching branch of an alternation
	// as its own match. By default identical branches are merged and the
	// first matching branch wins.
	DistinctAlternatives bool

	// Logger receives build statistics and compile warnings. Nil discards.
	Logger *slog.Logger
}

// DefaultOptions returns the recommended options. New fills zero depths
// with these values; boolean fields are taken as given.
func DefaultOptions() Options {
	return Options{
		MinDepth:   2,
		MaxDepth:   3,
		DenseDepth: 3,
		Prefilter:  true,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxDepth <= 0 {
		o.MaxDepth = d.MaxDepth
	}
	if o.MinDepth <= 0 {
		o.MinDepth = d.MinDepth
	}
	o.MinDepth = min(o.MinDepth, o.MaxDepth)
	if o.DenseDepth <= 0 {
		o.DenseDepth = d.DenseDepth
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Flags modify how a signature matches.
type Flags uint8

const (
	// NoCase matches letters case-insensitively.
	NoCase Flags = 1 << iota
	// Fullword requires non-alphanumeric bytes around the match.
	Fullword
	// Wide matches UTF-16LE text: every byte is followed by 0x00.
	Wide
	// Ascii, together with Wide, matches both encodings.
	Ascii
	// Once reports a signature at most once per scan.
	Once
	// LineEnd requires the match to end a line.
	LineEnd
	// Distinct counts every matching branch of this signature's
	// alternations separately, as Options.DistinctAlternatives does for
	// all signatures.
	Distinct
)

var flagNames = []struct {
	f    Flags
	name string
}{
	{NoCase, "nocase"},
	{Fullword, "fullword"},
	{Wide, "wide"},
	{Ascii, "ascii"},
	{Once, "once"},
	{LineEnd, "lineend"},
	{Distinct, "distinct"},
}

func (f Flags) String() string {
	var parts []string
	for _, fn := range flagNames {
		if f&fn.f != 0 {
			parts = append(parts, fn.name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseFlags maps flag names such as "nocase" or "wide" to Flags.
func ParseFlags(names []string) (Flags, error) {
	var f Flags
next:
	for _, n := range names {
		for _, fn := range flagNames {
			if strings.EqualFold(n, fn.name) {
				f |= fn.f
				continue next
			}
		}
		return 0, &FlagError{Name: n}
	}
	return f, nil
}

// FlagError reports an unknown flag name.
type FlagError struct {
	Name string
}

func (e *FlagError) Error() string {
	return fmt.Sprintf("unknown flag %q", e.Name)
}

func (e *FlagError) Unwrap() error {
	return ErrOptions
}

// Mode selects which signature kinds fire during a scan.
type Mode uint8

const (
	ModeSignature Mode = 1 << iota
	ModeFingerprint
)

func (m Mode) String() string {
	switch m {
	case ModeSignature:
		return "signature"
	case ModeFingerprint:
		return "fingerprint"
	case ModeSignature | ModeFingerprint:
		return "all"
	}
	return "none"
}
