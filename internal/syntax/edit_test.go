package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeEditInsert(t *testing.T) {
	oldSrc := []byte("fn a(){}")
	newSrc := []byte("fn a() {}")

	edit := ComputeEdit(oldSrc, newSrc)
	assert.Equal(t, uint32(6), edit.StartByte)
	assert.Equal(t, uint32(6), edit.OldEndByte)
	assert.Equal(t, uint32(7), edit.NewEndByte)
	assert.Equal(t, []byte(" "), edit.NewText)
	assert.Equal(t, newSrc, edit.Apply(oldSrc))
}

func TestComputeEditDelete(t *testing.T) {
	oldSrc := []byte("let x = 100;")
	newSrc := []byte("let x = 1;")

	edit := ComputeEdit(oldSrc, newSrc)
	assert.Equal(t, newSrc, edit.Apply(oldSrc))
	assert.Equal(t, edit.OldEndByte-edit.StartByte, uint32(2))
	assert.Empty(t, edit.NewText)
}

func TestComputeEditReplaceAcrossLines(t *testing.T) {
	oldSrc := []byte("a\nbb\nccc\n")
	newSrc := []byte("a\nZZZZ\nccc\n")

	edit := ComputeEdit(oldSrc, newSrc)
	assert.Equal(t, newSrc, edit.Apply(oldSrc))
	assert.Equal(t, uint32(1), edit.StartPoint.Row)
	assert.Equal(t, uint32(1), edit.OldEndPoint.Row)
	assert.Equal(t, uint32(1), edit.NewEndPoint.Row)
}

func TestComputeEditIdentical(t *testing.T) {
	src := []byte("same")
	edit := ComputeEdit(src, src)
	assert.Equal(t, edit.StartByte, edit.OldEndByte)
	assert.Empty(t, edit.NewText)
	assert.Equal(t, src, edit.Apply(src))
}

func TestPointAt(t *testing.T) {
	src := []byte("ab\ncde\n\nf")

	cases := []struct {
		offset uint32
		want   Point
	}{
		{0, Point{0, 0}},
		{2, Point{0, 2}},
		{3, Point{1, 0}},
		{6, Point{1, 3}},
		{7, Point{2, 0}},
		{9, Point{3, 1}},
		{99, Point{3, 1}}, // clamped
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, PointAt(src, tc.offset), "offset %d", tc.offset)
	}
}
