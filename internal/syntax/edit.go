package syntax

import (
	"bytes"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Edit describes a single contiguous byte-range replacement: the bytes
// [StartByte, OldEndByte) of the old source are replaced by NewText, which
// occupies [StartByte, NewEndByte) in the new source. The descriptor must
// be consistent with the edited text; the engine does not validate it
// (caller contract, incremental reparse is undefined otherwise).
type Edit struct {
	StartByte  uint32
	OldEndByte uint32
	NewEndByte uint32

	StartPoint  Point
	OldEndPoint Point
	NewEndPoint Point

	NewText []byte
}

// Apply produces the edited source text.
func (e Edit) Apply(oldSrc []byte) []byte {
	out := make([]byte, 0, len(oldSrc)-int(e.OldEndByte-e.StartByte)+len(e.NewText))
	out = append(out, oldSrc[:e.StartByte]...)
	out = append(out, e.NewText...)
	out = append(out, oldSrc[e.OldEndByte:]...)
	return out
}

func (e Edit) inputEdit() *sitter.InputEdit {
	return &sitter.InputEdit{
		StartByte:      uint(e.StartByte),
		OldEndByte:     uint(e.OldEndByte),
		NewEndByte:     uint(e.NewEndByte),
		StartPosition:  sitter.Point{Row: uint(e.StartPoint.Row), Column: uint(e.StartPoint.Column)},
		OldEndPosition: sitter.Point{Row: uint(e.OldEndPoint.Row), Column: uint(e.OldEndPoint.Column)},
		NewEndPosition: sitter.Point{Row: uint(e.NewEndPoint.Row), Column: uint(e.NewEndPoint.Column)},
	}
}

// ComputeEdit derives the contiguous edit turning oldSrc into newSrc by
// trimming the longest common prefix and suffix. Watch mode uses this to
// drive incremental reparses from full file rewrites.
func ComputeEdit(oldSrc, newSrc []byte) Edit {
	prefix := commonPrefix(oldSrc, newSrc)
	suffix := commonSuffix(oldSrc[prefix:], newSrc[prefix:])

	oldEnd := uint32(len(oldSrc) - suffix)
	newEnd := uint32(len(newSrc) - suffix)
	start := uint32(prefix)

	return Edit{
		StartByte:   start,
		OldEndByte:  oldEnd,
		NewEndByte:  newEnd,
		StartPoint:  PointAt(oldSrc, start),
		OldEndPoint: PointAt(oldSrc, oldEnd),
		NewEndPoint: PointAt(newSrc, newEnd),
		NewText:     append([]byte(nil), newSrc[start:newEnd]...),
	}
}

func commonPrefix(a, b []byte) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

func commonSuffix(a, b []byte) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[len(a)-1-i] != b[len(b)-1-i] {
			return i
		}
	}
	return n
}

// PointAt computes the row/column of a byte offset by scanning for
// newlines. Offsets past the end clamp to the final position.
func PointAt(src []byte, offset uint32) Point {
	if int(offset) > len(src) {
		offset = uint32(len(src))
	}
	head := src[:offset]
	row := uint32(bytes.Count(head, []byte{'\n'}))
	lastNL := bytes.LastIndexByte(head, '\n')
	return Point{Row: row, Column: offset - uint32(lastNL+1)}
}
