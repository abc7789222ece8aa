package parser

// Grammar structs for participle parser.
// These define the hex body, offset and logical expression grammars using
// struct tags.

type hexGrammar struct {
	Items []*hexItemGrammar `parser:"@@*"`
}

type hexItemGrammar struct {
	Any    bool           `parser:"( @Any"`
	Byte   *string        `parser:"| @Byte"`
	Nibble *string        `parser:"| @Nibble"`
	Jump   *string        `parser:"| @Jump"`
	Star   bool           `parser:"| @Star"`
	Range  *string        `parser:"| @Range"`
	Alt    *hexAltGrammar `parser:"| @@ )"`
}

type hexAltGrammar struct {
	Negate   bool                `parser:"( @NotOpen | LParen )"`
	Branches []*hexBranchGrammar `parser:"@@ ( Pipe @@ )* RParen"`
}

type hexBranchGrammar struct {
	Items []*hexItemGrammar `parser:"@@+"`
}

// Offset expressions: *, n[,s], EOF-n, EP+n, EP-n, Sx+n, SL+n, SEx,
// VI[+n], MACRO[x][+n], OV[+n].

type offsetGrammar struct {
	Star     bool                 `parser:"( @Star"`
	Absolute *uint64              `parser:"| @Int"`
	Anchor   *offsetAnchorGrammar `parser:"| @@ )"`
	Shift    *uint64              `parser:"( Comma @Int )?"`
}

type offsetAnchorGrammar struct {
	Keyword string  `parser:"@Keyword"`
	Index   *uint64 `parser:"@Int?"`
	Sign    string  `parser:"( @Sign"`
	Value   *uint64 `parser:"  @Int )?"`
}

// Logical expressions (operator precedence: | < & < count comparison)

type lsigOrExpr struct {
	Left  *lsigAndExpr   `parser:"@@"`
	Right []*lsigAndExpr `parser:"( Pipe @@ )*"`
}

type lsigAndExpr struct {
	Left  *lsigCountExpr   `parser:"@@"`
	Right []*lsigCountExpr `parser:"( Amp @@ )*"`
}

type lsigCountExpr struct {
	Primary  *lsigPrimary `parser:"@@"`
	Op       *string      `parser:"( @Op"`
	Count    *int         `parser:"  @Int"`
	Distinct *int         `parser:"  ( Comma @Int )? )?"`
}

type lsigPrimary struct {
	Paren  *lsigOrExpr `parser:"( LParen @@ RParen"`
	Subsig *int        `parser:"| @Int )"`
}
