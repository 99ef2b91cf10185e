package diff

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// hashSubtree fingerprints a fragment over kind, field, leaf text and the
// child hashes in order. Equal hashes are treated as equal subtrees; with
// 64-bit xxhash collisions are not a practical concern for edit scripts.
func hashSubtree(s *Subtree) uint64 {
	d := xxhash.New()
	var buf [8]byte

	d.WriteString(s.Kind)
	d.Write([]byte{0})
	d.WriteString(s.Field)
	d.Write([]byte{0})
	if len(s.Children) == 0 {
		d.WriteString(s.Text)
		return d.Sum64()
	}
	for i := range s.Children {
		binary.LittleEndian.PutUint64(buf[:], hashSubtree(&s.Children[i]))
		d.Write(buf[:])
	}
	return d.Sum64()
}

// annotated pairs a fragment with its precomputed hash and node count so
// alignment can weight matches by subtree size without rehashing.
type annotated struct {
	tree *Subtree
	hash uint64
	size int
}

func annotate(s *Subtree) annotated {
	size := 1
	for i := range s.Children {
		size += countNodes(&s.Children[i])
	}
	return annotated{tree: s, hash: hashSubtree(s), size: size}
}

func countNodes(s *Subtree) int {
	n := 1
	for i := range s.Children {
		n += countNodes(&s.Children[i])
	}
	return n
}

func annotateChildren(s *Subtree) []annotated {
	out := make([]annotated, len(s.Children))
	for i := range s.Children {
		out[i] = annotate(&s.Children[i])
	}
	return out
}
