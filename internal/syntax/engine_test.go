package syntax

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	arberr "arbor/internal/errors"
	"arbor/internal/language"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	reg, err := language.NewRegistry()
	require.NoError(t, err)
	return NewEngine(reg)
}

func TestParseFullCoversInput(t *testing.T) {
	e := newTestEngine(t)
	src := []byte("package main\n\nfunc main() {\n\tprintln(1)\n}\n")

	h, err := e.Parse(context.Background(), src, language.Go)
	require.NoError(t, err)
	defer h.Close()

	tree := h.Snapshot()
	root := tree.Root()
	require.NotNil(t, root)
	assert.Equal(t, "source_file", root.Kind)
	assert.Equal(t, uint32(0), root.StartByte)
	assert.Equal(t, uint32(len(src)), root.EndByte)
	assert.Equal(t, src, tree.Reconstruct())
	assert.Zero(t, tree.ErrorCount())
}

func TestParseUnknownLanguage(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Parse(context.Background(), []byte("x"), language.ID("cobol"))
	require.Error(t, err)
	assert.True(t, arberr.IsCode(err, arberr.CodeNotFound))

	// Known identifier without a grammar is also NOT_FOUND, never a
	// parse failure.
	_, err = e.Parse(context.Background(), []byte("x"), language.Fish)
	require.Error(t, err)
	assert.True(t, arberr.IsCode(err, arberr.CodeNotFound))
}

func TestParseInvalidInputStillYieldsTree(t *testing.T) {
	e := newTestEngine(t)
	src := []byte("func ) broken {{{ ===")

	h, err := e.Parse(context.Background(), src, language.Go)
	require.NoError(t, err, "syntax errors must not surface as parse failures")
	defer h.Close()

	tree := h.Snapshot()
	assert.Greater(t, tree.ErrorCount(), 0)
	assert.Equal(t, uint32(len(src)), tree.Root().EndByte)
	assert.Equal(t, src, tree.Reconstruct())
}

func TestParseCancelledContext(t *testing.T) {
	e := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Parse(ctx, []byte("x = 1"), language.Python)
	require.Error(t, err)
}

func TestReparseMatchesFullParse(t *testing.T) {
	e := newTestEngine(t)

	oldSrc := []byte("fn a(){}")
	newSrc := []byte("fn a() {}")

	h, err := e.Parse(context.Background(), oldSrc, language.Rust)
	require.NoError(t, err)
	defer h.Close()

	before := h.Snapshot()
	require.Equal(t, uint32(len(oldSrc)), before.Root().EndByte)

	edit := ComputeEdit(oldSrc, newSrc)
	require.NoError(t, h.Reparse(context.Background(), edit))

	incremental := h.Snapshot()

	full, err := e.Parse(context.Background(), newSrc, language.Rust)
	require.NoError(t, err)
	defer full.Close()

	assert.True(t, Equal(incremental, full.Snapshot()),
		"incremental reparse must be structurally equivalent to a from-scratch parse")

	// Same shape as before the edit, with the body shifted one byte right.
	assert.True(t, Equal(before, incremental))
	oldBody := findKind(before, "block")
	newBody := findKind(incremental, "block")
	require.NotNil(t, oldBody)
	require.NotNil(t, newBody)
	assert.Equal(t, oldBody.StartByte+1, newBody.StartByte)
}

func TestReparseMultipleEdits(t *testing.T) {
	e := newTestEngine(t)
	src := []byte("{\"a\": 1}")

	h, err := e.Parse(context.Background(), src, language.JSON)
	require.NoError(t, err)
	defer h.Close()

	for _, next := range []string{
		"{\"a\": 12}",
		"{\"a\": 12, \"b\": []}",
		"{\"b\": []}",
	} {
		edit := ComputeEdit(src, []byte(next))
		require.NoError(t, h.Reparse(context.Background(), edit))
		src = []byte(next)

		full, err := e.Parse(context.Background(), src, language.JSON)
		require.NoError(t, err)
		assert.True(t, Equal(h.Snapshot(), full.Snapshot()), "after edit to %q", next)
		full.Close()
	}
}

func TestSnapshotOutlivesHandle(t *testing.T) {
	e := newTestEngine(t)
	src := []byte("a = 1\n")

	h, err := e.Parse(context.Background(), src, language.Python)
	require.NoError(t, err)
	tree := h.Snapshot()
	h.Close()

	// Snapshot is plain data; it stays usable after the live tree is gone.
	assert.Equal(t, "module", tree.Root().Kind)
	assert.Equal(t, src, tree.Reconstruct())
}

func findKind(t *Tree, kind string) *Node {
	var found *Node
	t.Walk(func(_ int32, n *Node, _ int) bool {
		if found != nil {
			return false
		}
		if n.Kind == kind {
			found = n
			return false
		}
		return true
	})
	return found
}
