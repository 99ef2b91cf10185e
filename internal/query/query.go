// Package query compiles tree-sitter s-expression patterns and runs them
// against parsed syntax trees, exposing matches as lazy capture sets.
package query

import (
	"iter"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"arbor/internal/errors"
	"arbor/internal/language"
	"arbor/internal/shared/observability"
	"arbor/internal/syntax"
)

// Capture is one named node captured by a pattern match. It is plain data
// and stays valid after the handle it came from is closed.
type Capture struct {
	Name      string       `json:"name"`
	Kind      string       `json:"kind"`
	StartByte uint32       `json:"start_byte"`
	EndByte   uint32       `json:"end_byte"`
	Start     syntax.Point `json:"start"`
	End       syntax.Point `json:"end"`
	Text      string       `json:"text"`
}

// Match is the capture set produced by one pattern alternative matching
// at one position in the tree.
type Match struct {
	PatternIndex uint32    `json:"pattern_index"`
	Captures     []Capture `json:"captures"`
}

// Pattern is a compiled query bound to a single grammar. A Pattern may be
// run any number of times, against any handle of the same language.
type Pattern struct {
	lang   language.ID
	source string
	query  *sitter.Query
	names  []string
}

// Compile parses an s-expression pattern against the given grammar. Malformed
// patterns and node kinds the grammar does not define both fail compilation.
func Compile(pattern string, g *language.Grammar) (*Pattern, error) {
	q, qerr := sitter.NewQuery(g.Language(), pattern)
	if qerr != nil {
		err := errors.Newf(errors.CodePatternError,
			"compile pattern for %s: %s at row %d column %d",
			g.ID(), qerr.Message, qerr.Row, qerr.Column)
		err = errors.AddContext(err, errors.CtxLanguage, string(g.ID()))
		return nil, errors.AddContext(err, errors.CtxPattern, pattern)
	}
	return &Pattern{
		lang:   g.ID(),
		source: pattern,
		query:  q,
		names:  q.CaptureNames(),
	}, nil
}

// Language reports the grammar the pattern was compiled for.
func (p *Pattern) Language() language.ID { return p.lang }

// Source returns the pattern text as given to Compile.
func (p *Pattern) Source() string { return p.source }

// CaptureNames lists the capture names in declaration order, without the
// leading @.
func (p *Pattern) CaptureNames() []string {
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}

// Matches runs the pattern over the handle's current tree. The returned
// sequence is lazy: matches are produced as the caller iterates, and the
// sequence can be ranged over more than once, each pass walking the tree
// afresh. The handle must stay open while iterating.
func (p *Pattern) Matches(h *syntax.Handle) (iter.Seq[Match], error) {
	if h.Language() != p.lang {
		err := errors.Newf(errors.CodeIncompatibleLanguages,
			"pattern compiled for %s cannot query a %s tree", p.lang, h.Language())
		return nil, errors.AddContext(err, errors.CtxPattern, p.source)
	}
	return func(yield func(Match) bool) {
		qc := sitter.NewQueryCursor()
		defer qc.Close()
		src := h.Source()
		matches := qc.Matches(p.query, h.RootNode(), src)
		for {
			m := matches.Next()
			if m == nil {
				return
			}
			out := Match{
				PatternIndex: uint32(m.PatternIndex),
				Captures:     make([]Capture, 0, len(m.Captures)),
			}
			for _, c := range m.Captures {
				start := c.Node.StartPosition()
				end := c.Node.EndPosition()
				out.Captures = append(out.Captures, Capture{
					Name:      p.names[c.Index],
					Kind:      c.Node.Kind(),
					StartByte: uint32(c.Node.StartByte()),
					EndByte:   uint32(c.Node.EndByte()),
					Start:     syntax.Point{Row: uint32(start.Row), Column: uint32(start.Column)},
					End:       syntax.Point{Row: uint32(end.Row), Column: uint32(end.Column)},
					Text:      string(src[c.Node.StartByte():c.Node.EndByte()]),
				})
			}
			observability.QueryMatchesTotal.Inc()
			if !yield(out) {
				return
			}
		}
	}, nil
}

// Collect runs the pattern to completion and returns every match in tree
// order. Convenience over Matches for callers that want the whole result.
func (p *Pattern) Collect(h *syntax.Handle) ([]Match, error) {
	seq, err := p.Matches(h)
	if err != nil {
		return nil, err
	}
	var out []Match
	for m := range seq {
		out = append(out, m)
	}
	return out, nil
}

// Named returns the first capture with the given name, if present.
func (m Match) Named(name string) (Capture, bool) {
	for _, c := range m.Captures {
		if c.Name == name {
			return c, true
		}
	}
	return Capture{}, false
}

// Close releases the compiled query. The pattern must not be used after.
func (p *Pattern) Close() {
	if p.query != nil {
		p.query.Close()
		p.query = nil
	}
}
