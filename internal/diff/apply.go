package diff

import (
	"arbor/internal/errors"
	"arbor/internal/syntax"
)

// mnode is the mutable tree Apply edits in place. Subtree keeps children
// by value, which is wrong shape for splicing.
type mnode struct {
	kind     string
	field    string
	named    bool
	text     string
	children []*mnode
}

func fromSubtree(s *Subtree) *mnode {
	if s == nil {
		return nil
	}
	n := &mnode{kind: s.Kind, field: s.Field, named: s.Named, text: s.Text}
	for i := range s.Children {
		n.children = append(n.children, fromSubtree(&s.Children[i]))
	}
	return n
}

func toSubtree(n *mnode) *Subtree {
	if n == nil {
		return nil
	}
	s := &Subtree{Kind: n.kind, Field: n.field, Named: n.named, Text: n.text}
	for _, c := range n.children {
		s.Children = append(s.Children, *toSubtree(c))
	}
	return s
}

// Apply runs an edit script against tree a and returns the resulting
// fragment. Scripts address nodes by their position at application time,
// so operations must be applied in script order. Options must match the
// ones the script was computed with, ignored kinds in particular.
func Apply(a *syntax.Tree, ops []Op, opts Options) (*Subtree, error) {
	root := fromSubtree(SubtreeOf(a, opts.ignoreSet()))

	for _, op := range ops {
		var err error
		root, err = applyOne(root, op)
		if err != nil {
			return nil, errors.AddContext(err, errors.CtxOperation, op.String())
		}
	}
	return toSubtree(root), nil
}

func applyOne(root *mnode, op Op) (*mnode, error) {
	switch op.Kind {
	case OpInsert:
		if op.Node == nil {
			return nil, errors.New(errors.CodeValidationError, "insert without payload")
		}
		if len(op.Path) == 0 {
			if root != nil {
				return nil, errors.New(errors.CodeValidationError, "insert at root of non-empty tree")
			}
			return fromSubtree(op.Node), nil
		}
		parent, err := nodeAt(root, op.Path[:len(op.Path)-1])
		if err != nil {
			return nil, err
		}
		idx := op.Path[len(op.Path)-1]
		if idx < 0 || idx > len(parent.children) {
			return nil, errors.Newf(errors.CodeValidationError,
				"insert index %d outside child list of length %d", idx, len(parent.children))
		}
		child := fromSubtree(op.Node)
		parent.children = append(parent.children[:idx],
			append([]*mnode{child}, parent.children[idx:]...)...)
		return root, nil

	case OpDelete:
		if len(op.Path) == 0 {
			if root == nil {
				return nil, errors.New(errors.CodeValidationError, "delete on empty tree")
			}
			return nil, nil
		}
		parent, err := nodeAt(root, op.Path[:len(op.Path)-1])
		if err != nil {
			return nil, err
		}
		idx := op.Path[len(op.Path)-1]
		if idx < 0 || idx >= len(parent.children) {
			return nil, errors.Newf(errors.CodeValidationError,
				"delete index %d outside child list of length %d", idx, len(parent.children))
		}
		parent.children = append(parent.children[:idx], parent.children[idx+1:]...)
		return root, nil

	case OpMove:
		n, err := nodeAt(root, op.Path)
		if err != nil {
			return nil, err
		}
		if op.From < 0 || op.From >= len(n.children) {
			return nil, errors.Newf(errors.CodeValidationError,
				"move source %d outside child list of length %d", op.From, len(n.children))
		}
		child := n.children[op.From]
		n.children = append(n.children[:op.From], n.children[op.From+1:]...)
		if op.To < 0 || op.To > len(n.children) {
			return nil, errors.Newf(errors.CodeValidationError,
				"move target %d outside child list of length %d", op.To, len(n.children))
		}
		n.children = append(n.children[:op.To],
			append([]*mnode{child}, n.children[op.To:]...)...)
		return root, nil

	case OpUpdate:
		n, err := nodeAt(root, op.Path)
		if err != nil {
			return nil, err
		}
		if op.OldKind != "" && n.kind != op.OldKind {
			return nil, errors.Newf(errors.CodeValidationError,
				"update expects kind %s, node is %s", op.OldKind, n.kind)
		}
		n.kind = op.NewKind
		n.field = op.NewField
		if len(n.children) == 0 {
			n.text = op.NewText
		}
		return root, nil
	}
	return nil, errors.Newf(errors.CodeValidationError, "unknown operation %q", op.Kind)
}

func nodeAt(root *mnode, path []int) (*mnode, error) {
	if root == nil {
		return nil, errors.New(errors.CodeValidationError, "path into empty tree")
	}
	n := root
	for _, idx := range path {
		if idx < 0 || idx >= len(n.children) {
			return nil, errors.Newf(errors.CodeValidationError,
				"path step %d outside child list of length %d", idx, len(n.children))
		}
		n = n.children[idx]
	}
	return n, nil
}
