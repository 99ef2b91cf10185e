package diff

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"arbor/internal/errors"
	"arbor/internal/shared/observability"
	"arbor/internal/syntax"
)

// Options controls tree comparison.
type Options struct {
	// IgnoreKinds lists node kinds excluded from comparison entirely,
	// descendants included. Typical use is "comment".
	IgnoreKinds []string

	// AllowCrossLanguage permits diffing trees of different languages.
	// Without it a language mismatch is an error.
	AllowCrossLanguage bool

	// KindEquivalence maps node kinds to a canonical name so that kinds
	// with the same canonical name pair up across the two trees. Paired
	// nodes whose literal kinds differ produce an update operation.
	KindEquivalence map[string]string
}

func (o Options) ignoreSet() map[string]bool {
	if len(o.IgnoreKinds) == 0 {
		return nil
	}
	set := make(map[string]bool, len(o.IgnoreKinds))
	for _, k := range o.IgnoreKinds {
		set[k] = true
	}
	return set
}

func (o Options) canon(kind string) string {
	if c, ok := o.KindEquivalence[kind]; ok {
		return c
	}
	return kind
}

func (o Options) sameKind(a, b string) bool { return o.canon(a) == o.canon(b) }

// Trees computes an edit script turning tree a into tree b. Applying the
// returned operations in order to a reproduces b's structure; see Apply.
func Trees(ctx context.Context, a, b *syntax.Tree, opts Options) ([]Op, error) {
	_, span := observability.Tracer.Start(ctx, "diff.trees")
	defer span.End()
	start := time.Now()
	defer func() { observability.DiffDuration.Observe(time.Since(start).Seconds()) }()

	if a != nil && b != nil && a.Language != b.Language && !opts.AllowCrossLanguage {
		return nil, errors.Newf(errors.CodeIncompatibleLanguages,
			"cannot diff %s against %s", a.Language, b.Language)
	}

	ignore := opts.ignoreSet()
	ra := SubtreeOf(a, ignore)
	rb := SubtreeOf(b, ignore)

	var ops []Op
	switch {
	case ra == nil && rb == nil:
	case ra == nil:
		ops = []Op{{Kind: OpInsert, Path: []int{}, Node: rb}}
	case rb == nil:
		ops = []Op{{Kind: OpDelete, Path: []int{}}}
	default:
		d := differ{opts: opts}
		ops = d.node(annotate(ra), annotate(rb), nil)
	}

	for _, op := range ops {
		observability.DiffOpsTotal.WithLabelValues(string(op.Kind)).Inc()
	}
	span.SetAttributes(
		attribute.Int("diff.ops", len(ops)),
		attribute.String("diff.language", diffLanguage(a, b)),
	)
	return ops, nil
}

func diffLanguage(a, b *syntax.Tree) string {
	if a != nil {
		return string(a.Language)
	}
	if b != nil {
		return string(b.Language)
	}
	return ""
}

type differ struct {
	opts Options
}

// node emits the operations turning fragment a into fragment b. path is
// the address of the node at the moment its first operation applies; all
// ancestor segments are already in b coordinates because ancestors finish
// their structural work before descending.
func (d *differ) node(a, b annotated, path []int) []Op {
	if a.hash == b.hash {
		return nil
	}
	aLeaf := len(a.tree.Children) == 0
	bLeaf := len(b.tree.Children) == 0

	// Unrelated kinds, or a leaf facing an interior node, replace wholesale.
	if !d.opts.sameKind(a.tree.Kind, b.tree.Kind) || aLeaf != bLeaf {
		return []Op{
			{Kind: OpDelete, Path: clonePath(path)},
			{Kind: OpInsert, Path: clonePath(path), Node: b.tree},
		}
	}

	var ops []Op
	if a.tree.Kind != b.tree.Kind || a.tree.Field != b.tree.Field ||
		(aLeaf && a.tree.Text != b.tree.Text) {
		up := Op{
			Kind:     OpUpdate,
			Path:     clonePath(path),
			OldKind:  a.tree.Kind,
			NewKind:  b.tree.Kind,
			OldField: a.tree.Field,
			NewField: b.tree.Field,
		}
		if aLeaf {
			up.OldText = a.tree.Text
			up.NewText = b.tree.Text
		}
		ops = append(ops, up)
	}
	if aLeaf {
		return ops
	}

	A := annotateChildren(a.tree)
	B := annotateChildren(b.tree)
	aTo, bFrom := d.align(A, B)

	// Working list tracks which of a's children currently occupy which
	// slot, mutated exactly the way Apply will mutate the real child list.
	working := make([]int, len(A))
	for i := range working {
		working[i] = i
	}
	find := func(ai int) int {
		for pos, v := range working {
			if v == ai {
				return pos
			}
		}
		return -1
	}

	for i := range A {
		if aTo[i] != -1 {
			continue
		}
		pos := find(i)
		ops = append(ops, Op{Kind: OpDelete, Path: childPath(path, pos)})
		working = append(working[:pos], working[pos+1:]...)
	}

	// Reorder survivors into b's relative order. Slots left of t are
	// already final, so the wanted child can only sit at t or further right.
	targetSeq := make([]int, 0, len(working))
	for j := range B {
		if bFrom[j] != -1 {
			targetSeq = append(targetSeq, bFrom[j])
		}
	}
	for t, ai := range targetSeq {
		cur := find(ai)
		if cur == t {
			continue
		}
		ops = append(ops, Op{Kind: OpMove, Path: clonePath(path), From: cur, To: t})
		working = append(working[:cur], working[cur+1:]...)
		working = append(working[:t], append([]int{ai}, working[t:]...)...)
	}

	for j := range B {
		if bFrom[j] != -1 {
			continue
		}
		ops = append(ops, Op{Kind: OpInsert, Path: childPath(path, j), Node: B[j].tree})
	}

	// With the child list now laid out like b's, paired children are
	// addressed by their b index.
	for j := range B {
		i := bFrom[j]
		if i == -1 || A[i].hash == B[j].hash {
			continue
		}
		ops = append(ops, d.node(A[i], B[j], childPath(path, j))...)
	}
	return ops
}

// align matches a's children to b's children. Identical subtrees pair
// through a size-weighted longest common subsequence; identical subtrees
// outside it pair as reorders; the rest pair greedily by kind. Returns
// aTo[i] = matched b index or -1, and the inverse bFrom.
func (d *differ) align(A, B []annotated) (aTo, bFrom []int) {
	n, m := len(A), len(B)
	aTo = make([]int, n)
	bFrom = make([]int, m)
	for i := range aTo {
		aTo[i] = -1
	}
	for j := range bFrom {
		bFrom[j] = -1
	}

	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			best := dp[i+1][j]
			if dp[i][j+1] > best {
				best = dp[i][j+1]
			}
			if A[i].hash == B[j].hash {
				if v := A[i].size + dp[i+1][j+1]; v > best {
					best = v
				}
			}
			dp[i][j] = best
		}
	}
	for i, j := 0, 0; i < n && j < m; {
		switch {
		case A[i].hash == B[j].hash && dp[i][j] == A[i].size+dp[i+1][j+1]:
			aTo[i] = j
			bFrom[j] = i
			i++
			j++
		case dp[i+1][j] >= dp[i][j+1]:
			i++
		default:
			j++
		}
	}

	// Identical subtrees that fell outside the common subsequence are
	// position changes, not rewrites.
	d.pairRemaining(A, B, aTo, bFrom, func(x, y annotated) bool {
		return x.hash == y.hash
	})
	d.pairRemaining(A, B, aTo, bFrom, func(x, y annotated) bool {
		return d.opts.sameKind(x.tree.Kind, y.tree.Kind) &&
			(len(x.tree.Children) == 0) == (len(y.tree.Children) == 0)
	})
	return aTo, bFrom
}

func (d *differ) pairRemaining(A, B []annotated, aTo, bFrom []int, match func(annotated, annotated) bool) {
	for j := range B {
		if bFrom[j] != -1 {
			continue
		}
		for i := range A {
			if aTo[i] != -1 {
				continue
			}
			if match(A[i], B[j]) {
				aTo[i] = j
				bFrom[j] = i
				break
			}
		}
	}
}

func clonePath(p []int) []int {
	out := make([]int, len(p))
	copy(out, p)
	return out
}

func childPath(p []int, idx int) []int {
	out := make([]int, 0, len(p)+1)
	out = append(out, p...)
	return append(out, idx)
}
