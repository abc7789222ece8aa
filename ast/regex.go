package ast

import (
	"fmt"
	"strings"
)

// Regex renders s as an RE2 pattern over Latin-1 input. It reports false
// when s contains a construct RE2 cannot express, which is a negated
// alternation of multi-byte branches.
func (s Sig) Regex() (string, bool) {
	var sb strings.Builder
	sb.WriteString("(?s)")
	if !writeTokens(&sb, s.Tokens) {
		return "", false
	}
	return sb.String(), true
}

func writeTokens(sb *strings.Builder, tokens []Token) bool {
	// Coalesce consecutive ?? into a single .{n}
	i := 0
	for i < len(tokens) {
		switch t := tokens[i].(type) {
		case Byte:
			if !t.Any() {
				writeByte(sb, t)
				break
			}
			count := 1
			for i+count < len(tokens) {
				if b, ok := tokens[i+count].(Byte); ok && b.Any() {
					count++
				} else {
					break
				}
			}
			if count == 1 {
				sb.WriteByte('.')
			} else {
				fmt.Fprintf(sb, ".{%d}", count)
			}
			i += count - 1
		case Jump:
			writeJump(sb, t)
		case Range:
			fmt.Fprintf(sb, ".{%d,%d}", t.Min, t.Max)
		case Alt:
			if !writeAlt(sb, t) {
				return false
			}
		}
		i++
	}
	return true
}

func writeByte(sb *strings.Builder, b Byte) {
	switch b.Mask {
	case 0xff:
		fmt.Fprintf(sb, "\\x%02x", b.Value)
	case 0xf0:
		hi := b.Value & 0xf0
		fmt.Fprintf(sb, "[\\x%02x-\\x%02x]", hi, hi|0x0f)
	case 0x0f:
		sb.WriteByte('[')
		for hi := 0; hi < 16; hi++ {
			fmt.Fprintf(sb, "\\x%02x", byte(hi<<4)|b.Value&0x0f)
		}
		sb.WriteByte(']')
	default:
		sb.WriteByte('.')
	}
}

func writeJump(sb *strings.Builder, j Jump) {
	switch {
	case j.Min == nil && j.Max == nil:
		sb.WriteString(".*")
	case j.Min != nil && j.Max != nil && *j.Min == *j.Max:
		fmt.Fprintf(sb, ".{%d}", *j.Min)
	case j.Min != nil && j.Max != nil:
		fmt.Fprintf(sb, ".{%d,%d}", *j.Min, *j.Max)
	case j.Min != nil:
		fmt.Fprintf(sb, ".{%d,}", *j.Min)
	case j.Max != nil:
		fmt.Fprintf(sb, ".{0,%d}", *j.Max)
	}
}

func writeAlt(sb *strings.Builder, a Alt) bool {
	if a.Negate {
		sb.WriteString("[^")
		for _, br := range a.Branches {
			if len(br) != 1 {
				return false
			}
			b, ok := br[0].(Byte)
			if !ok || !b.Exact() {
				return false
			}
			fmt.Fprintf(sb, "\\x%02x", b.Value)
		}
		sb.WriteByte(']')
		return true
	}
	sb.WriteString("(?:")
	for i, br := range a.Branches {
		if i > 0 {
			sb.WriteByte('|')
		}
		if !writeTokens(sb, br) {
			return false
		}
	}
	sb.WriteByte(')')
	return true
}
