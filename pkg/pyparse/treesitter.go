//go:build cgo

package pyparse

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// TreeSitter parses with the tree-sitter Python grammar. The zero value is
// ready to use. A fresh parser is created per call, so one TreeSitter may
// be shared between goroutines.
type TreeSitter struct{}

// Available reports whether the tree-sitter grammar is compiled in.
func Available() bool { return true }

// Parse parses src and locates the first ERROR or MISSING node.
func (TreeSitter) Parse(ctx context.Context, src []byte) (Tree, error) {
	p := sitter.NewParser()
	defer p.Close()
	p.SetLanguage(python.GetLanguage())

	tree, err := p.ParseCtx(ctx, nil, src)
	if err != nil {
		return Tree{}, fmt.Errorf("tree-sitter parse: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return Tree{}, fmt.Errorf("tree-sitter parse: no root node")
	}
	if !root.HasError() {
		return Tree{}, nil
	}

	n := firstErrorNode(root)
	if n != nil {
		n = narrow(n)
	}
	if n == nil {
		// HasError was set but no node is flagged; report the whole
		// document so callers still see a failure.
		return Tree{HasError: true, Error: Span{From: 0, To: len(src)}}, nil
	}
	return Tree{
		HasError: true,
		Error:    Span{From: int(n.StartByte()), To: int(n.EndByte())},
		Missing:  n.IsMissing(),
	}, nil
}

// firstErrorNode walks the tree in pre-order, descending only into
// subtrees that contain an error, and returns the first error node.
func firstErrorNode(n *sitter.Node) *sitter.Node {
	if n.Type() == "ERROR" || n.IsMissing() {
		return n
	}
	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		child := n.Child(i)
		if child == nil || !child.HasError() {
			continue
		}
		if hit := firstErrorNode(child); hit != nil {
			return hit
		}
	}
	return nil
}

// narrow shrinks an ERROR node that spans several lines. Recovery can wrap
// the whole module in one ERROR whose children are the partial parse, so
// the report would otherwise land on the first line of the file. A nested
// error wins; failing that, the last child before any trailing run of
// complete statements is the token the parser gave up on.
func narrow(n *sitter.Node) *sitter.Node {
	for n.Type() == "ERROR" && n.StartPoint().Row != n.EndPoint().Row {
		if inner := nestedError(n); inner != nil {
			n = inner
			continue
		}
		pick := lastUnparsedChild(n)
		if pick == nil {
			break
		}
		n = pick
	}
	return n
}

// nestedError is firstErrorNode over the descendants of n.
func nestedError(n *sitter.Node) *sitter.Node {
	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		child := n.Child(i)
		if child == nil || !child.HasError() {
			continue
		}
		if hit := firstErrorNode(child); hit != nil {
			return hit
		}
	}
	return nil
}

func lastUnparsedChild(n *sitter.Node) *sitter.Node {
	for i := int(n.ChildCount()) - 1; i >= 0; i-- {
		child := n.Child(i)
		if child == nil || child.Type() == "comment" || completeStatement(child.Type()) {
			continue
		}
		return child
	}
	return nil
}

func completeStatement(typ string) bool {
	return strings.HasSuffix(typ, "_statement") ||
		strings.HasSuffix(typ, "_definition") ||
		typ == "block"
}
