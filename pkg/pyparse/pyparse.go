// Package pyparse wraps a full Python grammar behind the narrow interface
// the validator needs: parse the text and report the first error node.
package pyparse

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the grammar engine is not compiled in
// (builds without cgo).
var ErrUnavailable = errors.New("python grammar unavailable in this build")

// Span is a half-open byte range [From, To) into the parsed source.
type Span struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Tree is the part of a parse the validator consumes.
type Tree struct {
	HasError bool `json:"hasError"`
	// Error is the first error node in pre-order. Zero-width for tokens
	// the parser inserted (a missing ")" or ":").
	Error Span `json:"error"`
	// Missing is true when Error is an inserted token rather than
	// unrecognized input.
	Missing bool `json:"missing,omitempty"`
}

// Parser parses Python source.
// Implementations: TreeSitter (cgo), and test fakes.
type Parser interface {
	Parse(ctx context.Context, src []byte) (Tree, error)
}

// ParserFunc adapts a function to the Parser interface.
type ParserFunc func(ctx context.Context, src []byte) (Tree, error)

// Parse calls f.
func (f ParserFunc) Parse(ctx context.Context, src []byte) (Tree, error) {
	return f(ctx, src)
}
