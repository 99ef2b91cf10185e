// Package fallback provides heuristic, regex-driven structure extraction
// for languages without a compiled grammar. Results carry a confidence
// score strictly below 1.0; only a real parse is certain.
package fallback

import (
	"regexp"
	"sort"
	"strings"

	"arbor/internal/errors"
	"arbor/internal/language"
	"arbor/internal/shared/observability"
	"arbor/internal/syntax"
)

// Kind classifies what a heuristic span most likely is.
type Kind string

const (
	KindDefinition Kind = "definition"
	KindImport     Kind = "import"
	KindCall       Kind = "call"
	KindString     Kind = "string"
	KindComment    Kind = "comment"
	KindSection    Kind = "section"
)

// kindConfidence is the default score per kind. A regex can never prove
// structure, so every score stays below 1.0.
var kindConfidence = map[Kind]float64{
	KindDefinition: 0.8,
	KindImport:     0.7,
	KindSection:    0.7,
	KindComment:    0.6,
	KindCall:       0.5,
	KindString:     0.4,
}

// Rule is one line-oriented pattern. The first capture group, when
// present, names the matched construct.
type Rule struct {
	Kind       Kind
	Pattern    string
	Confidence float64
}

// Span is one heuristic finding. Heuristic is always true; it marks the
// result as regex-derived for consumers that mix parsed and matched data.
type Span struct {
	Kind       Kind         `json:"kind"`
	Name       string       `json:"name,omitempty"`
	Text       string       `json:"text"`
	StartByte  uint32       `json:"start_byte"`
	EndByte    uint32       `json:"end_byte"`
	Start      syntax.Point `json:"start"`
	End        syntax.Point `json:"end"`
	Confidence float64      `json:"confidence"`
	Heuristic  bool         `json:"heuristic"`
}

type compiledRule struct {
	kind       Kind
	re         *regexp.Regexp
	confidence float64
}

// Matcher holds per-language rule sets plus a universal tier applied to
// every language. Ordered first match wins per line segment.
type Matcher struct {
	universal []compiledRule
	byLang    map[language.ID][]compiledRule
}

// NewMatcher builds a matcher with the built-in rule sets.
func NewMatcher() *Matcher {
	m := &Matcher{byLang: make(map[language.ID][]compiledRule)}
	for _, r := range universalRules {
		m.universal = append(m.universal, mustCompileRule(r))
	}
	for id, rules := range languageRules {
		for _, r := range rules {
			m.byLang[id] = append(m.byLang[id], mustCompileRule(r))
		}
	}
	return m
}

// AddRule registers an extra pattern for a language, after the built-ins.
// Confidence must lie in (0, 1); zero picks the kind default.
func (m *Matcher) AddRule(id language.ID, r Rule) error {
	if r.Confidence < 0 || r.Confidence >= 1 {
		return errors.Newf(errors.CodeValidationError,
			"fallback confidence %.2f out of range (0,1)", r.Confidence)
	}
	re, err := regexp.Compile(r.Pattern)
	if err != nil {
		return errors.Wrap(err, errors.CodePatternError, "compile fallback pattern")
	}
	cr := compiledRule{kind: r.Kind, re: re, confidence: r.Confidence}
	if cr.confidence == 0 {
		cr.confidence = kindConfidence[r.Kind]
	}
	m.byLang[id] = append(m.byLang[id], cr)
	return nil
}

// Match scans the source line by line and returns every heuristic span in
// byte order. Unknown languages get the universal tier only.
func (m *Matcher) Match(src []byte, id language.ID) []Span {
	rules := make([]compiledRule, 0, len(m.universal)+len(m.byLang[id]))
	rules = append(rules, m.byLang[id]...)
	rules = append(rules, m.universal...)

	var spans []Span
	offset := 0
	for row, line := range strings.Split(string(src), "\n") {
		for _, rule := range rules {
			for _, loc := range rule.re.FindAllStringSubmatchIndex(line, -1) {
				span := Span{
					Kind:       rule.kind,
					Text:       line[loc[0]:loc[1]],
					StartByte:  uint32(offset + loc[0]),
					EndByte:    uint32(offset + loc[1]),
					Start:      syntax.Point{Row: uint32(row), Column: uint32(loc[0])},
					End:        syntax.Point{Row: uint32(row), Column: uint32(loc[1])},
					Confidence: rule.confidence,
					Heuristic:  true,
				}
				if len(loc) >= 4 && loc[2] >= 0 {
					span.Name = line[loc[2]:loc[3]]
				}
				spans = append(spans, span)
			}
		}
		offset += len(line) + 1
	}

	dedupe(&spans)
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].StartByte != spans[j].StartByte {
			return spans[i].StartByte < spans[j].StartByte
		}
		return spans[i].Confidence > spans[j].Confidence
	})
	observability.FallbackMatchesTotal.WithLabelValues(string(id)).Add(float64(len(spans)))
	return spans
}

// dedupe drops lower-confidence spans that cover byte ranges an earlier
// rule already claimed with the same kind.
func dedupe(spans *[]Span) {
	type key struct {
		kind       Kind
		start, end uint32
	}
	seen := make(map[key]bool, len(*spans))
	out := (*spans)[:0]
	for _, s := range *spans {
		k := key{s.Kind, s.StartByte, s.EndByte}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	*spans = out
}

func mustCompileRule(r Rule) compiledRule {
	cr := compiledRule{
		kind:       r.Kind,
		re:         regexp.MustCompile(r.Pattern),
		confidence: r.Confidence,
	}
	if cr.confidence == 0 {
		cr.confidence = kindConfidence[r.Kind]
	}
	return cr
}

// universalRules apply to every language. Evaluated after the
// language-specific tier; first match wins per segment.
var universalRules = []Rule{
	{Kind: KindString, Pattern: `"(?:[^"\\]|\\.)*"`},
	{Kind: KindComment, Pattern: `(?:^|\s)(?:#|//).*$`},
}

// languageRules cover the identifiers that ship without a grammar.
var languageRules = map[language.ID][]Rule{
	language.Elixir: {
		{Kind: KindDefinition, Pattern: `^\s*defmodule\s+([A-Z][\w.]*)`},
		{Kind: KindDefinition, Pattern: `^\s*defp?\s+([a-z_][\w?!]*)`},
		{Kind: KindImport, Pattern: `^\s*(?:import|alias|use|require)\s+([A-Z][\w.]*)`},
	},
	language.Fish: {
		{Kind: KindDefinition, Pattern: `^\s*function\s+([\w-]+)`},
		{Kind: KindImport, Pattern: `^\s*source\s+(\S+)`},
	},
	language.Gleam: {
		{Kind: KindDefinition, Pattern: `^\s*(?:pub\s+)?fn\s+([a-z_]\w*)`},
		{Kind: KindDefinition, Pattern: `^\s*(?:pub\s+)?type\s+([A-Z]\w*)`},
		{Kind: KindImport, Pattern: `^\s*import\s+([\w/]+)`},
	},
	language.GraphQL: {
		{Kind: KindDefinition, Pattern: `^\s*(?:type|interface|enum|input|union|scalar)\s+(\w+)`},
		{Kind: KindSection, Pattern: `^\s*(?:query|mutation|subscription|fragment)\s+(\w+)`},
	},
	language.Heex: {
		{Kind: KindDefinition, Pattern: `<\.([a-z_]\w*)`},
		{Kind: KindSection, Pattern: `<%=?\s*(\w+)`},
	},
	language.Nix: {
		{Kind: KindDefinition, Pattern: `^\s*([\w-]+)\s*=\s*(?:\{|rec\b|lambda\b|[\w.]+:)`},
		{Kind: KindImport, Pattern: `\bimport\s+(<?[\w./-]+>?)`},
	},
	language.Swift: {
		{Kind: KindDefinition, Pattern: `^\s*(?:public\s+|private\s+|internal\s+|open\s+)?(?:func|class|struct|enum|protocol|extension)\s+(\w+)`},
		{Kind: KindImport, Pattern: `^\s*import\s+(\w+)`},
	},
	language.Zig: {
		{Kind: KindDefinition, Pattern: `^\s*(?:pub\s+)?fn\s+(\w+)`},
		{Kind: KindDefinition, Pattern: `^\s*(?:pub\s+)?const\s+(\w+)\s*=\s*(?:struct|enum|union)\b`},
		{Kind: KindImport, Pattern: `@import\("([^"]+)"\)`},
	},
	language.Diff: {
		{Kind: KindSection, Pattern: `^@@\s*-\d+(?:,\d+)?\s+\+\d+(?:,\d+)?\s*@@`},
		{Kind: KindSection, Pattern: `^(?:---|\+\+\+)\s+(\S+)`},
	},
}
