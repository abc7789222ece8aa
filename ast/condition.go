package ast

// Expr represents a logical signature expression node.
type Expr interface {
	exprNode()
}

// SubsigRef references a sub-signature by index, like 0 or 12.
type SubsigRef struct {
	Index int
}

func (SubsigRef) exprNode() {}

// BinaryExpr represents a binary operation ("&" or "|").
type BinaryExpr struct {
	Op    string
	Left  Expr
	Right Expr
}

func (BinaryExpr) exprNode() {}

// ParenExpr represents a parenthesized expression.
type ParenExpr struct {
	Inner Expr
}

func (ParenExpr) exprNode() {}

// CountExpr represents a match count comparison like (0|1)>2 or 0=1,2.
// Distinct, when set, is the minimum number of different sub-signatures
// that must contribute to the count.
type CountExpr struct {
	Inner    Expr
	Op       string // "=", ">" or "<"
	Count    int
	Distinct *int
}

func (CountExpr) exprNode() {}
