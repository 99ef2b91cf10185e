package report

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbor/internal/diff"
	"arbor/internal/fallback"
	"arbor/internal/history"
	"arbor/internal/language"
	"arbor/internal/syntax"
)

func sampleTree(t *testing.T, id language.ID, src string) *syntax.Tree {
	t.Helper()
	reg, err := language.NewRegistry()
	require.NoError(t, err)
	engine := syntax.NewEngine(reg)
	h, err := engine.Parse(context.Background(), []byte(src), id)
	require.NoError(t, err)
	defer h.Close()
	return h.Snapshot()
}

func TestRenderTree(t *testing.T) {
	tree := sampleTree(t, language.Go, "package main\n\nfunc f() {}\n")

	out := RenderTree(tree, 0)
	assert.Contains(t, out, "source_file")
	assert.Contains(t, out, "function_declaration")
	assert.Contains(t, out, "name:")

	shallow := RenderTree(tree, 1)
	assert.NotContains(t, shallow, "identifier",
		"depth limit must cut function internals")
}

func TestRenderTreeEmpty(t *testing.T) {
	out := RenderTree(&syntax.Tree{Language: language.Go}, 0)
	assert.Contains(t, out, "empty tree")
}

func TestRenderOps(t *testing.T) {
	a := sampleTree(t, language.JSON, `{"n": 1}`)
	b := sampleTree(t, language.JSON, `{"n": 200}`)

	ops, err := diff.Trees(context.Background(), a, b, diff.Options{})
	require.NoError(t, err)

	out := RenderOps(ops)
	assert.Contains(t, out, "update")
	assert.Contains(t, out, "1")
	assert.Contains(t, out, "200")

	assert.Contains(t, RenderOps(nil), "no changes")
}

func TestRenderSpans(t *testing.T) {
	m := fallback.NewMatcher()
	spans := m.Match([]byte("pub fn main() void {}\n"), language.Zig)

	out := RenderSpans(spans)
	assert.Contains(t, out, "definition")
	assert.Contains(t, out, "main")
	assert.Contains(t, out, "confidence 0.8")
}

func TestRenderRuns(t *testing.T) {
	runs := []history.Run{
		{Kind: history.RunParse, Language: "go", Path: "main.go", Nodes: 12, OK: true,
			Timestamp: time.Date(2026, 8, 1, 9, 30, 0, 0, time.UTC)},
		{Kind: history.RunDiff, Ops: 4, OK: false,
			Timestamp: time.Date(2026, 8, 1, 9, 31, 0, 0, time.UTC)},
	}
	out := RenderRuns(runs)
	assert.Contains(t, out, "parse")
	assert.Contains(t, out, "main.go")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "4 ops")
}

func TestTreeJSON(t *testing.T) {
	tree := sampleTree(t, language.JSON, `{"a": true}`)

	data, err := TreeJSON(tree)
	require.NoError(t, err)

	var doc struct {
		Language string `json:"language"`
		Root     *struct {
			Kind  string `json:"kind"`
			Range struct {
				Start struct {
					Line uint32 `json:"line"`
				} `json:"start"`
			} `json:"range"`
			Children []json.RawMessage `json:"children"`
		} `json:"root"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "json", doc.Language)
	require.NotNil(t, doc.Root)
	assert.Equal(t, "document", doc.Root.Kind)
	assert.NotEmpty(t, doc.Root.Children)
}

func TestSpansJSON(t *testing.T) {
	m := fallback.NewMatcher()
	spans := m.Match([]byte(`import Foundation`+"\n"), language.Swift)

	data, err := SpansJSON(spans)
	require.NoError(t, err)

	var doc struct {
		Count int `json:"count"`
		Spans []struct {
			Kind      string  `json:"kind"`
			Name      string  `json:"name"`
			Heuristic bool    `json:"heuristic"`
			Conf      float64 `json:"confidence"`
		} `json:"spans"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Equal(t, len(spans), doc.Count)
	require.NotEmpty(t, doc.Spans)
	assert.Equal(t, "import", doc.Spans[0].Kind)
	assert.Equal(t, "Foundation", doc.Spans[0].Name)
	assert.True(t, doc.Spans[0].Heuristic)
	assert.Less(t, doc.Spans[0].Conf, 1.0)
}

func TestOpsJSON(t *testing.T) {
	ops := []diff.Op{
		{Kind: diff.OpMove, Path: []int{0}, From: 2, To: 0},
		{Kind: diff.OpDelete, Path: []int{0, 1}},
	}
	data, err := OpsJSON(ops)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"count": 2`))
	assert.True(t, strings.Contains(string(data), `"move"`))
}

func TestRunsJSON(t *testing.T) {
	runs := []history.Run{{
		ID:        "r-1",
		Kind:      history.RunReparse,
		Duration:  1500 * time.Microsecond,
		OK:        true,
		Timestamp: time.Date(2026, 8, 1, 9, 30, 0, 0, time.UTC),
	}}
	data, err := RunsJSON(runs)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"duration_ms": 1.5`)
	assert.Contains(t, string(data), `"reparse"`)
}
