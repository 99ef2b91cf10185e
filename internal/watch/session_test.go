package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbor/internal/diff"
	"arbor/internal/fallback"
	"arbor/internal/history"
	"arbor/internal/language"
	"arbor/internal/syntax"
)

func newSession(t *testing.T, opts SessionOptions) *Session {
	t.Helper()
	reg, err := language.NewRegistry()
	require.NoError(t, err)
	s := NewSession(syntax.NewEngine(reg), reg, fallback.NewMatcher(), opts)
	t.Cleanup(s.Close)
	return s
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestFirstChangeParsesFully(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "data.json", `{"a": 1}`)
	s := newSession(t, SessionOptions{})

	results := s.Process(context.Background(), []string{path})
	require.Len(t, results, 1)
	r := results[0]
	require.NoError(t, r.Err)
	assert.Equal(t, history.RunParse, r.Kind)
	assert.Equal(t, language.JSON, r.Language)
	require.NotNil(t, r.Tree)
	assert.Empty(t, r.Ops)
	assert.Equal(t, []string{path}, s.Tracked())
}

func TestSecondChangeReparsesAndDiffs(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "data.json", `{"a": 1}`)
	s := newSession(t, SessionOptions{})

	first := s.Process(context.Background(), []string{path})
	require.Len(t, first, 1)
	require.NoError(t, first[0].Err)

	writeFile(t, dir, "data.json", `{"a": 2}`)
	second := s.Process(context.Background(), []string{path})
	require.Len(t, second, 1)
	r := second[0]
	require.NoError(t, r.Err)
	assert.Equal(t, history.RunReparse, r.Kind)
	require.NotEmpty(t, r.Ops, "a value change must produce diff operations")

	var sawUpdate bool
	for _, op := range r.Ops {
		if op.Kind == diff.OpUpdate && op.NewText == "2" {
			sawUpdate = true
		}
	}
	assert.True(t, sawUpdate, "ops: %v", r.Ops)
}

func TestGrammarlessFileFallsBack(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "build.zig", "pub fn build(b: *std.Build) void {}\n")
	s := newSession(t, SessionOptions{})

	results := s.Process(context.Background(), []string{path})
	require.Len(t, results, 1)
	r := results[0]
	require.NoError(t, r.Err)
	assert.Equal(t, history.RunFallback, r.Kind)
	assert.Equal(t, language.Zig, r.Language)
	require.NotEmpty(t, r.Spans)
	assert.Nil(t, r.Tree)
	assert.Empty(t, s.Tracked(), "fallback files carry no parse state")
}

func TestRemovedFileDropsState(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "main.go", "package main\n")
	s := newSession(t, SessionOptions{})

	results := s.Process(context.Background(), []string{path})
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	require.NotEmpty(t, s.Tracked())

	require.NoError(t, os.Remove(path))
	results = s.Process(context.Background(), []string{path})
	require.Len(t, results, 1)
	assert.True(t, results[0].Removed)
	assert.Empty(t, s.Tracked())
}

func TestUnclaimedPathErrors(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.unknownext", "hello\n")
	s := newSession(t, SessionOptions{})

	results := s.Process(context.Background(), []string{path})
	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
}

func TestRateLimitSkipsExcessChanges(t *testing.T) {
	dir := t.TempDir()
	paths := make([]string, 0, 6)
	for _, n := range []string{"a", "b", "c", "d", "e", "f"} {
		paths = append(paths, writeFile(t, dir, n+".json", `{}`))
	}
	s := newSession(t, SessionOptions{RateLimit: 0.001, Burst: 2})

	results := s.Process(context.Background(), paths)
	assert.Len(t, results, 2, "only the burst allowance should be processed")
}

func TestSessionRecordsHistory(t *testing.T) {
	dir := t.TempDir()
	store, err := history.Open(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	defer store.Close()

	path := writeFile(t, dir, "data.json", `[1]`)
	s := newSession(t, SessionOptions{Store: store})

	results := s.Process(context.Background(), []string{path})
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)

	runs, err := store.RecentRuns(10, history.RunParse)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, path, runs[0].Path)
	assert.True(t, runs[0].OK)
	assert.Greater(t, runs[0].Nodes, 0)
}
