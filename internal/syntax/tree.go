// Package syntax turns source text into concrete syntax trees through the
// tree-sitter runtime and exposes them as immutable plain-data snapshots.
package syntax

import (
	sitter "github.com/tree-sitter/go-tree-sitter"

	"arbor/internal/language"
)

// Point is a zero-based row/column position in the source text.
type Point struct {
	Row    uint32 `json:"row"`
	Column uint32 `json:"column"`
}

// Node is one entry in a Tree arena. Children reference other entries by
// index, which keeps shared-subtree reuse cheap and the whole tree free of
// pointer cycles. A Node is never mutated after the Tree is built.
type Node struct {
	Kind string `json:"kind"`
	// Field is the child-slot name assigned by the parent production, or
	// empty when the grammar does not name the slot.
	Field   string `json:"field,omitempty"`
	Named   bool   `json:"named"`
	Error   bool   `json:"error,omitempty"`
	Missing bool   `json:"missing,omitempty"`

	StartByte uint32 `json:"start_byte"`
	EndByte   uint32 `json:"end_byte"`
	Start     Point  `json:"start"`
	End       Point  `json:"end"`

	// Text is set for leaves only.
	Text string `json:"text,omitempty"`

	Children []int32 `json:"children,omitempty"`
}

func (n *Node) IsLeaf() bool { return len(n.Children) == 0 }

// Tree is an immutable snapshot of a concrete syntax tree. Nodes are stored
// in pre-order with the root at index 0. The snapshot is plain data: it can
// be traversed, diffed and serialized without touching the tree-sitter
// runtime and is safe for unsynchronized concurrent readers.
type Tree struct {
	Language language.ID `json:"language"`
	Source   []byte      `json:"-"`
	Nodes    []Node      `json:"nodes"`
}

func (t *Tree) Root() *Node {
	if len(t.Nodes) == 0 {
		return nil
	}
	return &t.Nodes[0]
}

func (t *Tree) Node(i int32) *Node { return &t.Nodes[i] }

func (t *Tree) Len() int { return len(t.Nodes) }

// Walk visits nodes in pre-order. Returning false from visit skips the
// node's subtree.
func (t *Tree) Walk(visit func(idx int32, n *Node, depth int) bool) {
	if len(t.Nodes) == 0 {
		return
	}
	var rec func(idx int32, depth int)
	rec = func(idx int32, depth int) {
		n := &t.Nodes[idx]
		if !visit(idx, n, depth) {
			return
		}
		for _, child := range n.Children {
			rec(child, depth+1)
		}
	}
	rec(0, 0)
}

// ErrorCount returns the number of error or missing nodes in the tree.
func (t *Tree) ErrorCount() int {
	count := 0
	for i := range t.Nodes {
		if t.Nodes[i].Error || t.Nodes[i].Missing {
			count++
		}
	}
	return count
}

// Reconstruct rebuilds the source text from leaf node text plus the
// inter-token gaps (whitespace is not represented as nodes). The result
// must equal Source byte for byte; tests rely on this round-trip.
func (t *Tree) Reconstruct() []byte {
	out := make([]byte, 0, len(t.Source))
	cursor := uint32(0)
	t.Walk(func(_ int32, n *Node, _ int) bool {
		if !n.IsLeaf() {
			return true
		}
		if n.StartByte > cursor {
			out = append(out, t.Source[cursor:n.StartByte]...)
		}
		out = append(out, n.Text...)
		if n.EndByte > cursor {
			cursor = n.EndByte
		}
		return true
	})
	if int(cursor) < len(t.Source) {
		out = append(out, t.Source[cursor:]...)
	}
	return out
}

// Equal reports structural equivalence: same kind-tag shape, child-slot
// names and leaf text. Byte and point spans are deliberately ignored so
// that trees from different source revisions can compare equal.
func Equal(a, b *Tree) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	if a == nil {
		return true
	}
	if len(a.Nodes) == 0 || len(b.Nodes) == 0 {
		return len(a.Nodes) == len(b.Nodes)
	}
	return equalAt(a, 0, b, 0)
}

func equalAt(a *Tree, ai int32, b *Tree, bi int32) bool {
	an, bn := &a.Nodes[ai], &b.Nodes[bi]
	if an.Kind != bn.Kind || an.Field != bn.Field || an.Missing != bn.Missing {
		return false
	}
	if len(an.Children) != len(bn.Children) {
		return false
	}
	if an.IsLeaf() {
		return an.Text == bn.Text
	}
	for i := range an.Children {
		if !equalAt(a, an.Children[i], b, bn.Children[i]) {
			return false
		}
	}
	return true
}

// snapshot converts a live tree-sitter tree into a plain-data Tree.
func snapshot(root *sitter.Node, src []byte, id language.ID) *Tree {
	t := &Tree{Language: id, Source: src}
	if root == nil {
		return t
	}
	t.Nodes = make([]Node, 0, 64)
	addNode(t, root, "", src)
	return t
}

func addNode(t *Tree, n *sitter.Node, field string, src []byte) int32 {
	idx := int32(len(t.Nodes))
	t.Nodes = append(t.Nodes, Node{
		Kind:      n.Kind(),
		Field:     field,
		Named:     n.IsNamed(),
		Error:     n.IsError(),
		Missing:   n.IsMissing(),
		StartByte: uint32(n.StartByte()),
		EndByte:   uint32(n.EndByte()),
		Start:     Point{Row: uint32(n.StartPosition().Row), Column: uint32(n.StartPosition().Column)},
		End:       Point{Row: uint32(n.EndPosition().Row), Column: uint32(n.EndPosition().Column)},
	})

	count := n.ChildCount()
	if count == 0 {
		t.Nodes[idx].Text = string(src[n.StartByte():n.EndByte()])
		return idx
	}

	children := make([]int32, 0, count)
	for i := uint(0); i < count; i++ {
		child := n.Child(i)
		childField := n.FieldNameForChild(uint32(i))
		children = append(children, addNode(t, child, childField, src))
	}
	t.Nodes[idx].Children = children
	return idx
}
