// Package diff computes structural edit scripts between two syntax trees.
// A script is a sequence of insert, delete, move and update operations
// that, applied in order to the first tree, reproduces the second.
package diff

import (
	"fmt"
	"strings"

	"arbor/internal/syntax"
)

// OpKind discriminates the operation variants of an edit script.
type OpKind string

const (
	OpInsert OpKind = "insert"
	OpDelete OpKind = "delete"
	OpMove   OpKind = "move"
	OpUpdate OpKind = "update"
)

// Subtree is a detached plain-data tree fragment, used as the payload of
// insert operations and as the result of Apply. Text is set on leaves only.
type Subtree struct {
	Kind     string    `json:"kind"`
	Field    string    `json:"field,omitempty"`
	Named    bool      `json:"named"`
	Text     string    `json:"text,omitempty"`
	Children []Subtree `json:"children,omitempty"`
}

// Op is a single edit script operation. Path addresses a node by child
// indices from the root, as they stand when the operation is applied;
// earlier operations in the script shift later paths accordingly.
//
// Insert: place Node at Path (Path names the new slot, siblings shift right).
// Delete: remove the subtree at Path.
// Move:   within the child list of the node at Path, remove the child at
//         index From and reinsert it at index To.
// Update: rewrite the node at Path in place (kind and, for leaves, text).
type Op struct {
	Kind OpKind `json:"op"`
	Path []int  `json:"path"`

	Node *Subtree `json:"node,omitempty"`

	From int `json:"from,omitempty"`
	To   int `json:"to,omitempty"`

	OldKind  string `json:"old_kind,omitempty"`
	NewKind  string `json:"new_kind,omitempty"`
	OldField string `json:"old_field,omitempty"`
	NewField string `json:"new_field,omitempty"`
	OldText  string `json:"old_text,omitempty"`
	NewText  string `json:"new_text,omitempty"`
}

// String renders an operation in a compact single-line form for logs.
func (o Op) String() string {
	path := pathString(o.Path)
	switch o.Kind {
	case OpInsert:
		return fmt.Sprintf("insert %s at %s", o.Node.Kind, path)
	case OpDelete:
		return fmt.Sprintf("delete %s", path)
	case OpMove:
		return fmt.Sprintf("move %s[%d] -> [%d]", path, o.From, o.To)
	case OpUpdate:
		if o.OldKind != o.NewKind {
			return fmt.Sprintf("update %s %s -> %s", path, o.OldKind, o.NewKind)
		}
		return fmt.Sprintf("update %s %q -> %q", path, o.OldText, o.NewText)
	}
	return fmt.Sprintf("unknown op at %s", path)
}

func pathString(p []int) string {
	if len(p) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, i := range p {
		fmt.Fprintf(&b, "/%d", i)
	}
	return b.String()
}

// SubtreeOf detaches the snapshot into a Subtree rooted at the tree root.
// Kinds listed in ignore are skipped along with their descendants.
func SubtreeOf(t *syntax.Tree, ignore map[string]bool) *Subtree {
	if t == nil || t.Len() == 0 {
		return nil
	}
	root := t.Root()
	if ignore[root.Kind] {
		return nil
	}
	s := subtreeAt(t, 0, ignore)
	return &s
}

func subtreeAt(t *syntax.Tree, idx int32, ignore map[string]bool) Subtree {
	n := t.Node(idx)
	s := Subtree{
		Kind:  n.Kind,
		Field: n.Field,
		Named: n.Named,
	}
	if n.IsLeaf() {
		s.Text = n.Text
		return s
	}
	for _, ci := range n.Children {
		if ignore[t.Node(ci).Kind] {
			continue
		}
		s.Children = append(s.Children, subtreeAt(t, ci, ignore))
	}
	return s
}

// EqualSubtree reports structural equivalence of two detached fragments.
func EqualSubtree(a, b *Subtree) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	if a == nil {
		return true
	}
	if a.Kind != b.Kind || a.Field != b.Field || a.Text != b.Text {
		return false
	}
	if len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Children {
		if !EqualSubtree(&a.Children[i], &b.Children[i]) {
			return false
		}
	}
	return true
}
