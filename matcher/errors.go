package matcher

import "errors"

// Compile errors reject a single signature; the Matcher stays usable.
var (
	ErrMalformed = errors.New("malformed hex signature")
	ErrNesting   = errors.New("alternation nesting too deep")
	ErrDistance  = errors.New("invalid distance")
	ErrOptions   = errors.New("invalid option combination")
	ErrOffset    = errors.New("invalid offset expression")
	ErrEmpty     = errors.New("empty pattern")
	ErrNoAnchor  = errors.New("no literal bytes to anchor on")
)

// Lifecycle and scan errors.
var (
	ErrUnknownLogical = errors.New("unknown logical signature reference")
	ErrBuilt          = errors.New("matcher already built")
	ErrNotBuilt       = errors.New("matcher not built")
	ErrState          = errors.New("scan state does not belong to this built matcher")
)
