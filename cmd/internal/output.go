package internal

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/sansecio/sigmatch/matcher"
)

// Printer writes scan findings. It is safe for concurrent use.
type Printer struct {
	mu sync.Mutex
	w  io.Writer

	path    *color.Color
	name    *color.Color
	logical *color.Color
	offset  *color.Color
	heading *color.Color
}

// NewPrinter returns a Printer writing to w. With colored unset all output is
// plain.
func NewPrinter(w io.Writer, colored bool) *Printer {
	p := &Printer{
		w:       w,
		path:    color.New(color.Bold, color.FgHiWhite),
		name:    color.New(color.Bold, color.FgHiRed),
		logical: color.New(color.Bold, color.FgHiMagenta),
		offset:  color.New(color.FgHiBlue),
		heading: color.New(color.Bold),
	}
	if !colored {
		for _, c := range []*color.Color{p.path, p.name, p.logical, p.offset, p.heading} {
			c.DisableColor()
		}
	}
	return p
}

// Match prints one standalone signature match.
func (p *Printer) Match(path string, r matcher.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.path.Fprint(p.w, path)
	fmt.Fprint(p.w, ": ")
	p.name.Fprint(p.w, r.Name)
	fmt.Fprint(p.w, " ")
	p.offset.Fprintf(p.w, "@%d-%d", r.Offset, r.End)
	if r.Kind == matcher.ModeFingerprint {
		fmt.Fprint(p.w, " (fingerprint)")
	}
	fmt.Fprintln(p.w)
}

// Logical prints a logical signature whose expression held.
func (p *Printer) Logical(path, name string, counts []uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.path.Fprint(p.w, path)
	fmt.Fprint(p.w, ": ")
	p.logical.Fprint(p.w, name)
	fmt.Fprintf(p.w, " %v\n", counts)
}

// Summary prints per-signature hit counts, most frequent first.
func (p *Printer) Summary(scanned, matched int, hits map[string]int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.heading.Fprintf(p.w, "scanned %d files, %d matched, %d hits\n", scanned, matched, SumValues(hits))
	for _, name := range SortByCount(hits) {
		fmt.Fprintf(p.w, "  %6d  %s\n", hits[name], name)
	}
}
