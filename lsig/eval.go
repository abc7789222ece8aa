// Package lsig evaluates logical signature expressions against the
// sub-signature match counts collected by a tracker.
package lsig

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/sansecio/sigmatch/ast"
	"github.com/sansecio/sigmatch/parser"
)

// MaxSubsig is the number of sub-signatures an expression may reference.
const MaxSubsig = 64

var ErrSubsig = errors.New("sub-signature index out of range")

// Expression is a parsed logical signature expression.
type Expression struct {
	src     string
	root    ast.Expr
	subsigs int
}

// Parse parses and validates a logical expression such as "0&(1|2)>1".
func Parse(expr string) (*Expression, error) {
	root, err := parser.ParseLogical(expr)
	if err != nil {
		return nil, err
	}
	e := &Expression{src: expr, root: root}
	if err := e.walk(root); err != nil {
		return nil, fmt.Errorf("logical expression %q: %w", expr, err)
	}
	return e, nil
}

func (e *Expression) walk(expr ast.Expr) error {
	switch x := expr.(type) {
	case ast.SubsigRef:
		if x.Index >= MaxSubsig {
			return fmt.Errorf("%w: %d", ErrSubsig, x.Index)
		}
		e.subsigs = max(e.subsigs, x.Index+1)
	case ast.BinaryExpr:
		if err := e.walk(x.Left); err != nil {
			return err
		}
		return e.walk(x.Right)
	case ast.ParenExpr:
		return e.walk(x.Inner)
	case ast.CountExpr:
		return e.walk(x.Inner)
	}
	return nil
}

// Subsigs returns one more than the highest referenced sub-signature index.
func (e *Expression) Subsigs() int {
	return e.subsigs
}

func (e *Expression) String() string {
	return e.src
}

// Eval reports whether the expression holds for counts, where counts[i] is
// the number of matches of sub-signature i. Missing entries count as zero.
func (e *Expression) Eval(counts []uint32) bool {
	return eval(e.root, counts).count > 0
}

// value is the result of a subexpression: a match count and the set of
// sub-signatures contributing to it.
type value struct {
	count uint64
	set   uint64
}

func (v value) distinct() int {
	return bits.OnesCount64(v.set)
}

var matched = value{count: 1}

func eval(expr ast.Expr, counts []uint32) value {
	switch e := expr.(type) {
	case ast.SubsigRef:
		if e.Index >= len(counts) || counts[e.Index] == 0 {
			return value{}
		}
		return value{count: uint64(counts[e.Index]), set: 1 << e.Index}

	case ast.ParenExpr:
		return eval(e.Inner, counts)

	case ast.BinaryExpr:
		l, r := eval(e.Left, counts), eval(e.Right, counts)
		switch e.Op {
		case "|":
			return value{count: l.count + r.count, set: l.set | r.set}
		case "&":
			if l.count == 0 || r.count == 0 {
				return value{}
			}
			return value{count: l.count + r.count, set: l.set | r.set}
		}
		return value{}

	case ast.CountExpr:
		if evalCount(e, eval(e.Inner, counts)) {
			return matched
		}
		return value{}

	default:
		return value{}
	}
}

// evalCount applies a count comparison. With a distinct requirement at least
// that many different sub-signatures must have matched.
func evalCount(e ast.CountExpr, v value) bool {
	n := uint64(e.Count)
	var ok bool
	switch e.Op {
	case "=":
		ok = v.count == n
	case ">":
		ok = v.count > n
	case "<":
		ok = v.count < n
	}
	if ok && e.Distinct != nil {
		ok = v.distinct() >= *e.Distinct
	}
	return ok
}
