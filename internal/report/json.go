package report

import (
	"encoding/json"

	"go.lsp.dev/protocol"

	"arbor/internal/diff"
	"arbor/internal/fallback"
	"arbor/internal/history"
	"arbor/internal/syntax"
)

// NodeJSON is the export shape for one tree node. Locations use LSP
// ranges so editor tooling can consume the output directly.
type NodeJSON struct {
	Kind     string         `json:"kind"`
	Field    string         `json:"field,omitempty"`
	Named    bool           `json:"named"`
	Error    bool           `json:"error,omitempty"`
	Missing  bool           `json:"missing,omitempty"`
	Range    protocol.Range `json:"range"`
	Text     string         `json:"text,omitempty"`
	Children []NodeJSON     `json:"children,omitempty"`
}

// TreeJSON serializes a snapshot as a nested node document.
func TreeJSON(t *syntax.Tree) ([]byte, error) {
	doc := struct {
		Language string    `json:"language"`
		Root     *NodeJSON `json:"root"`
	}{Language: string(t.Language)}

	if t.Len() > 0 {
		root := nodeJSON(t, 0)
		doc.Root = &root
	}
	return json.MarshalIndent(doc, "", "  ")
}

func nodeJSON(t *syntax.Tree, idx int32) NodeJSON {
	n := t.Node(idx)
	out := NodeJSON{
		Kind:    n.Kind,
		Field:   n.Field,
		Named:   n.Named,
		Error:   n.Error,
		Missing: n.Missing,
		Range:   rangeOf(n.Start, n.End),
		Text:    n.Text,
	}
	for _, ci := range n.Children {
		out.Children = append(out.Children, nodeJSON(t, ci))
	}
	return out
}

// OpsJSON serializes an edit script.
func OpsJSON(ops []diff.Op) ([]byte, error) {
	doc := struct {
		Count int       `json:"count"`
		Ops   []diff.Op `json:"ops"`
	}{Count: len(ops), Ops: ops}
	return json.MarshalIndent(doc, "", "  ")
}

// SpanJSON is the export shape for one heuristic finding.
type SpanJSON struct {
	Kind       string         `json:"kind"`
	Name       string         `json:"name,omitempty"`
	Text       string         `json:"text"`
	Range      protocol.Range `json:"range"`
	Confidence float64        `json:"confidence"`
	Heuristic  bool           `json:"heuristic"`
}

// SpansJSON serializes fallback matcher output.
func SpansJSON(spans []fallback.Span) ([]byte, error) {
	out := make([]SpanJSON, 0, len(spans))
	for _, s := range spans {
		out = append(out, SpanJSON{
			Kind:       string(s.Kind),
			Name:       s.Name,
			Text:       s.Text,
			Range:      rangeOf(s.Start, s.End),
			Confidence: s.Confidence,
			Heuristic:  s.Heuristic,
		})
	}
	doc := struct {
		Count int        `json:"count"`
		Spans []SpanJSON `json:"spans"`
	}{Count: len(out), Spans: out}
	return json.MarshalIndent(doc, "", "  ")
}

// RunsJSON serializes history entries.
func RunsJSON(runs []history.Run) ([]byte, error) {
	type runJSON struct {
		ID         string  `json:"id"`
		Kind       string  `json:"kind"`
		Language   string  `json:"language,omitempty"`
		Path       string  `json:"path,omitempty"`
		Bytes      int     `json:"bytes"`
		Nodes      int     `json:"nodes"`
		ErrorNodes int     `json:"error_nodes"`
		Ops        int     `json:"ops"`
		DurationMS float64 `json:"duration_ms"`
		OK         bool    `json:"ok"`
		Detail     string  `json:"detail,omitempty"`
		Timestamp  string  `json:"timestamp"`
	}
	out := make([]runJSON, 0, len(runs))
	for _, r := range runs {
		out = append(out, runJSON{
			ID:         r.ID,
			Kind:       string(r.Kind),
			Language:   r.Language,
			Path:       r.Path,
			Bytes:      r.Bytes,
			Nodes:      r.Nodes,
			ErrorNodes: r.ErrorNodes,
			Ops:        r.Ops,
			DurationMS: float64(r.Duration.Microseconds()) / 1000,
			OK:         r.OK,
			Detail:     r.Detail,
			Timestamp:  r.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		})
	}
	return json.MarshalIndent(out, "", "  ")
}

func rangeOf(start, end syntax.Point) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: start.Row, Character: start.Column},
		End:   protocol.Position{Line: end.Row, Character: end.Column},
	}
}
