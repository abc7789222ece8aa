// Package parser parses hex signature bodies, offset expressions and
// logical signature expressions using participle.
package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/sansecio/sigmatch/ast"
	"github.com/sansecio/sigmatch/offset"
)

// ErrSyntax is wrapped by every error returned from this package.
var ErrSyntax = errors.New("syntax error")

// MacroGroups is the number of macro groups a MACRO offset can name.
const MacroGroups = 32

var (
	hexLexer = lexer.MustStateful(lexer.Rules{
		"Root": {
			{Name: "Whitespace", Pattern: `[\s]+`},
			{Name: "Any", Pattern: `\?\?`},
			{Name: "Byte", Pattern: `[0-9A-Fa-f]{2}`},
			{Name: "Nibble", Pattern: `(?:[0-9A-Fa-f]\?|\?[0-9A-Fa-f])`},
			{Name: "Jump", Pattern: `\{[^}]*\}`},
			{Name: "Star", Pattern: `\*`},
			{Name: "Range", Pattern: `\[[^\]]*\]`},
			{Name: "NotOpen", Pattern: `!\(`},
			{Name: "LParen", Pattern: `\(`},
			{Name: "Pipe", Pattern: `\|`},
			{Name: "RParen", Pattern: `\)`},
		},
	})

	offsetLexer = lexer.MustStateful(lexer.Rules{
		"Root": {
			{Name: "Whitespace", Pattern: `[\s]+`},
			{Name: "Keyword", Pattern: `(?:EOF|EP|SE|SL|S|VI|MACRO|OV)`},
			{Name: "Int", Pattern: `[0-9]+`},
			{Name: "Sign", Pattern: `[+-]`},
			{Name: "Comma", Pattern: `,`},
			{Name: "Star", Pattern: `\*`},
		},
	})

	lsigLexer = lexer.MustStateful(lexer.Rules{
		"Root": {
			{Name: "Whitespace", Pattern: `[\s]+`},
			{Name: "Int", Pattern: `[0-9]+`},
			{Name: "Op", Pattern: `[=<>]`},
			{Name: "Amp", Pattern: `&`},
			{Name: "Pipe", Pattern: `\|`},
			{Name: "Comma", Pattern: `,`},
			{Name: "LParen", Pattern: `\(`},
			{Name: "RParen", Pattern: `\)`},
		},
	})

	hexParser = participle.MustBuild[hexGrammar](
		participle.Lexer(hexLexer),
		participle.Elide("Whitespace"),
	)

	offsetParser = participle.MustBuild[offsetGrammar](
		participle.Lexer(offsetLexer),
		participle.Elide("Whitespace"),
	)

	lsigParser = participle.MustBuild[lsigOrExpr](
		participle.Lexer(lsigLexer),
		participle.Elide("Whitespace"),
		participle.UseLookahead(2),
	)
)

// ParseHex parses a hex signature body such as "aa??(bb|cc)[2-4]dd{5-}ee".
func ParseHex(input string) (ast.Sig, error) {
	g, err := hexParser.ParseString("", input)
	if err != nil {
		return ast.Sig{}, fmt.Errorf("%w: %w", ErrSyntax, err)
	}
	tokens, err := convertHexItems(g.Items)
	if err != nil {
		return ast.Sig{}, err
	}
	return ast.Sig{Tokens: tokens}, nil
}

func convertHexItems(items []*hexItemGrammar) ([]ast.Token, error) {
	tokens := make([]ast.Token, 0, len(items))
	for _, it := range items {
		switch {
		case it.Any:
			tokens = append(tokens, ast.Byte{})
		case it.Byte != nil:
			b, _ := strconv.ParseUint(*it.Byte, 16, 8)
			tokens = append(tokens, ast.Byte{Value: byte(b), Mask: 0xff})
		case it.Nibble != nil:
			tokens = append(tokens, parseNibble(*it.Nibble))
		case it.Jump != nil:
			j, err := parseJump(*it.Jump)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, j)
		case it.Star:
			tokens = append(tokens, ast.Jump{})
		case it.Range != nil:
			r, err := parseRange(*it.Range)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, r)
		case it.Alt != nil:
			alt := ast.Alt{Negate: it.Alt.Negate}
			for _, br := range it.Alt.Branches {
				bt, err := convertHexItems(br.Items)
				if err != nil {
					return nil, err
				}
				alt.Branches = append(alt.Branches, bt)
			}
			tokens = append(tokens, alt)
		}
	}
	return tokens, nil
}

func parseNibble(s string) ast.Byte {
	if s[0] == '?' {
		v, _ := strconv.ParseUint(s[1:], 16, 8)
		return ast.Byte{Value: byte(v), Mask: 0x0f}
	}
	v, _ := strconv.ParseUint(s[:1], 16, 8)
	return ast.Byte{Value: byte(v) << 4, Mask: 0xf0}
}

func parseJump(s string) (ast.Jump, error) {
	inner := strings.TrimSpace(s[1 : len(s)-1])
	if inner == "*" {
		return ast.Jump{}, nil
	}
	lo, hi, dash, err := splitBounds(inner)
	if err != nil {
		return ast.Jump{}, fmt.Errorf("%w: jump %s: %w", ErrSyntax, s, err)
	}
	if !dash {
		if lo == nil {
			return ast.Jump{}, fmt.Errorf("%w: empty jump %s", ErrSyntax, s)
		}
		return ast.Jump{Min: lo, Max: lo}, nil
	}
	if lo == nil && hi == nil {
		return ast.Jump{}, fmt.Errorf("%w: jump %s needs a bound", ErrSyntax, s)
	}
	return ast.Jump{Min: lo, Max: hi}, nil
}

func parseRange(s string) (ast.Range, error) {
	inner := strings.TrimSpace(s[1 : len(s)-1])
	lo, hi, dash, err := splitBounds(inner)
	if err != nil {
		return ast.Range{}, fmt.Errorf("%w: range %s: %w", ErrSyntax, s, err)
	}
	if lo == nil || (dash && hi == nil) {
		return ast.Range{}, fmt.Errorf("%w: range %s needs both bounds", ErrSyntax, s)
	}
	if !dash {
		return ast.Range{Min: *lo, Max: *lo}, nil
	}
	return ast.Range{Min: *lo, Max: *hi}, nil
}

// splitBounds splits "n", "n-m", "n-" and "-m".
func splitBounds(s string) (lo, hi *int, dash bool, err error) {
	parse := func(v string) (*int, error) {
		v = strings.TrimSpace(v)
		if v == "" {
			return nil, nil
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid bound %q", v)
		}
		return &n, nil
	}
	before, after, dash := strings.Cut(s, "-")
	if lo, err = parse(before); err != nil {
		return nil, nil, false, err
	}
	if hi, err = parse(after); err != nil {
		return nil, nil, false, err
	}
	return lo, hi, dash, nil
}

// ParseOffset parses an offset expression into a descriptor.
func ParseOffset(input string) (offset.Descriptor, error) {
	g, err := offsetParser.ParseString("", input)
	if err != nil {
		return offset.Descriptor{}, fmt.Errorf("%w: offset %q: %w", ErrSyntax, input, err)
	}
	d, err := convertOffset(g)
	if err != nil {
		return offset.Descriptor{}, fmt.Errorf("%w: offset %q: %w", ErrSyntax, input, err)
	}
	return d, nil
}

func convertOffset(g *offsetGrammar) (offset.Descriptor, error) {
	var d offset.Descriptor
	if g.Shift != nil {
		d.MaxShift = *g.Shift
	}

	switch {
	case g.Star:
		if g.Shift != nil {
			return d, errors.New("shift on unconstrained offset")
		}
		return offset.Any, nil
	case g.Absolute != nil:
		d.Type = offset.Absolute
		d.Value = *g.Absolute
		return d, nil
	}

	a := g.Anchor
	value := func() uint64 {
		if a.Value != nil {
			return *a.Value
		}
		return 0
	}
	needSign := func(signs string) error {
		if a.Sign == "" || a.Value == nil {
			return fmt.Errorf("%s needs %s and a value", a.Keyword, signs)
		}
		if !strings.Contains(signs, a.Sign) {
			return fmt.Errorf("%s does not take %q", a.Keyword, a.Sign)
		}
		return nil
	}
	optionalPlus := func() error {
		if a.Sign == "-" {
			return fmt.Errorf("%s does not take \"-\"", a.Keyword)
		}
		return nil
	}
	noIndex := func() error {
		if a.Index != nil {
			return fmt.Errorf("%s does not take an index", a.Keyword)
		}
		return nil
	}

	switch a.Keyword {
	case "EOF":
		if err := errors.Join(noIndex(), needSign("-")); err != nil {
			return d, err
		}
		d.Type = offset.EOFMinus
	case "EP":
		if err := errors.Join(noIndex(), needSign("+-")); err != nil {
			return d, err
		}
		d.Type = offset.EPPlus
		if a.Sign == "-" {
			d.Type = offset.EPMinus
		}
	case "S":
		if a.Index == nil {
			return d, errors.New("S needs a section index")
		}
		if err := needSign("+"); err != nil {
			return d, err
		}
		d.Type = offset.SectionPlus
		d.Section = int(*a.Index)
	case "SL":
		if err := errors.Join(noIndex(), needSign("+")); err != nil {
			return d, err
		}
		d.Type = offset.LastSectionPlus
	case "SE":
		if a.Index == nil || a.Sign != "" {
			return d, errors.New("SE takes a section index only")
		}
		d.Type = offset.SectionEntire
		d.Section = int(*a.Index)
	case "VI", "OV":
		if err := errors.Join(noIndex(), optionalPlus()); err != nil {
			return d, err
		}
		d.Type = offset.Version
		if a.Keyword == "OV" {
			d.Type = offset.Overlay
		}
	case "MACRO":
		if err := optionalPlus(); err != nil {
			return d, err
		}
		d.Type = offset.Macro
		if a.Index != nil {
			if *a.Index >= MacroGroups {
				return d, fmt.Errorf("macro group %d out of range", *a.Index)
			}
			d.Section = int(*a.Index)
		}
	default:
		return d, fmt.Errorf("unknown anchor %q", a.Keyword)
	}
	d.Value = value()
	return d, nil
}

// ParseLogical parses a logical signature expression such as "0&(1|2)>1".
func ParseLogical(input string) (ast.Expr, error) {
	g, err := lsigParser.ParseString("", input)
	if err != nil {
		return nil, fmt.Errorf("%w: logical expression %q: %w", ErrSyntax, input, err)
	}
	return convertOrExpr(g), nil
}

func convertOrExpr(e *lsigOrExpr) ast.Expr {
	left := convertAndExpr(e.Left)
	for _, right := range e.Right {
		left = ast.BinaryExpr{Op: "|", Left: left, Right: convertAndExpr(right)}
	}
	return left
}

func convertAndExpr(e *lsigAndExpr) ast.Expr {
	left := convertCountExpr(e.Left)
	for _, right := range e.Right {
		left = ast.BinaryExpr{Op: "&", Left: left, Right: convertCountExpr(right)}
	}
	return left
}

func convertCountExpr(e *lsigCountExpr) ast.Expr {
	inner := convertPrimary(e.Primary)
	if e.Op == nil || e.Count == nil {
		return inner
	}
	return ast.CountExpr{Inner: inner, Op: *e.Op, Count: *e.Count, Distinct: e.Distinct}
}

func convertPrimary(p *lsigPrimary) ast.Expr {
	if p.Paren != nil {
		return ast.ParenExpr{Inner: convertOrExpr(p.Paren)}
	}
	return ast.SubsigRef{Index: *p.Subsig}
}
