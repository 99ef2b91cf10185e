package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbor/internal/errors"
	"arbor/internal/language"
	"arbor/internal/syntax"
)

const goSample = `package main

func alpha() int { return 1 }

func beta() int { return 2 }
`

func parseSample(t *testing.T, id language.ID, src string) (*syntax.Engine, *syntax.Handle) {
	t.Helper()
	reg, err := language.NewRegistry()
	require.NoError(t, err)
	engine := syntax.NewEngine(reg)
	h, err := engine.Parse(context.Background(), []byte(src), id)
	require.NoError(t, err)
	t.Cleanup(h.Close)
	return engine, h
}

func compileFor(t *testing.T, id language.ID, pattern string) *Pattern {
	t.Helper()
	reg, err := language.NewRegistry()
	require.NoError(t, err)
	g, err := reg.Resolve(id)
	require.NoError(t, err)
	p, err := Compile(pattern, g)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func TestCollectFunctionNames(t *testing.T) {
	_, h := parseSample(t, language.Go, goSample)
	p := compileFor(t, language.Go,
		`(function_declaration name: (identifier) @fn.name) @fn`)

	matches, err := p.Collect(h)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	var names []string
	for _, m := range matches {
		c, ok := m.Named("fn.name")
		require.True(t, ok)
		assert.Equal(t, "identifier", c.Kind)
		names = append(names, c.Text)
	}
	assert.Equal(t, []string{"alpha", "beta"}, names)

	// Whole-declaration capture spans enclose the name capture.
	for _, m := range matches {
		fn, ok := m.Named("fn")
		require.True(t, ok)
		name, _ := m.Named("fn.name")
		assert.LessOrEqual(t, fn.StartByte, name.StartByte)
		assert.GreaterOrEqual(t, fn.EndByte, name.EndByte)
	}
}

func TestMatchesIsRestartable(t *testing.T) {
	_, h := parseSample(t, language.Go, goSample)
	p := compileFor(t, language.Go, `(function_declaration) @fn`)

	seq, err := p.Matches(h)
	require.NoError(t, err)

	count := func() int {
		n := 0
		for range seq {
			n++
		}
		return n
	}
	first := count()
	second := count()
	assert.Equal(t, 2, first)
	assert.Equal(t, first, second, "second pass must see the same matches")
}

func TestMatchesStopsEarly(t *testing.T) {
	_, h := parseSample(t, language.Go, goSample)
	p := compileFor(t, language.Go, `(function_declaration) @fn`)

	seq, err := p.Matches(h)
	require.NoError(t, err)

	seen := 0
	for range seq {
		seen++
		break
	}
	assert.Equal(t, 1, seen)
}

func TestCompileRejectsMalformedPattern(t *testing.T) {
	reg, err := language.NewRegistry()
	require.NoError(t, err)
	g, err := reg.Resolve(language.Go)
	require.NoError(t, err)

	cases := []string{
		`(function_declaration`,          // unbalanced
		`(no_such_node_kind) @x`,         // unknown node kind
		`(function_declaration) @`,       // dangling capture
	}
	for _, pattern := range cases {
		_, err := Compile(pattern, g)
		require.Error(t, err, "pattern %q must not compile", pattern)
		assert.True(t, errors.IsCode(err, errors.CodePatternError), "got %v", err)
	}
}

func TestMatchesRejectsForeignLanguage(t *testing.T) {
	_, h := parseSample(t, language.JSON, `{"a": 1}`)
	p := compileFor(t, language.Go, `(function_declaration) @fn`)

	_, err := p.Matches(h)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeIncompatibleLanguages))
}

func TestCaptureSurvivesHandleClose(t *testing.T) {
	reg, err := language.NewRegistry()
	require.NoError(t, err)
	engine := syntax.NewEngine(reg)
	h, err := engine.Parse(context.Background(), []byte(goSample), language.Go)
	require.NoError(t, err)

	p := compileFor(t, language.Go, `(function_declaration name: (identifier) @fn.name)`)
	matches, err := p.Collect(h)
	require.NoError(t, err)
	h.Close()

	require.NotEmpty(t, matches)
	c, ok := matches[0].Named("fn.name")
	require.True(t, ok)
	assert.Equal(t, "alpha", c.Text)
}
