//go:build !cgo

package pyparse

import "context"

// TreeSitter is unavailable without cgo; Parse always fails so the
// validator falls back to accepting the source.
type TreeSitter struct{}

// Available reports whether the tree-sitter grammar is compiled in.
func Available() bool { return false }

// Parse always returns ErrUnavailable.
func (TreeSitter) Parse(ctx context.Context, src []byte) (Tree, error) {
	return Tree{}, ErrUnavailable
}
