// Package recognition talks to text recognition backends. A backend returns
// an ordered list of blocks, each tagged with a kind and a confidence in
// [0,100].
package recognition

import (
	"context"
	"strings"

	"listcart/pkg/domain"
)

// BlockKind is the granularity of a recognized block.
type BlockKind string

const (
	KindLine BlockKind = "LINE"
	KindWord BlockKind = "WORD"
	KindPage BlockKind = "PAGE"
)

// ParseBlockKind normalizes a backend's block type. Unknown kinds are kept
// verbatim so callers can discard them.
func ParseBlockKind(raw string) BlockKind {
	return BlockKind(strings.ToUpper(strings.TrimSpace(raw)))
}

// Block is one unit of recognized text.
type Block struct {
	Text       string
	Kind       BlockKind
	Confidence float64
}

// Result is the ordered output of one recognition call.
type Result struct {
	Blocks []Block
}

// Recognizer extracts text blocks from a stored object. Implementations read
// the object themselves; callers pass only its identity.
type Recognizer interface {
	Recognize(ctx context.Context, ref domain.ObjectRef) (*Result, error)
}
