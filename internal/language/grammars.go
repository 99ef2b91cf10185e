package language

import (
	"fmt"
	"sort"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_lua "github.com/tree-sitter-grammars/tree-sitter-lua/bindings/go"
	tree_sitter_markdown "github.com/tree-sitter-grammars/tree-sitter-markdown/bindings/go"
	tree_sitter_toml "github.com/tree-sitter-grammars/tree-sitter-toml/bindings/go"
	tree_sitter_xml "github.com/tree-sitter-grammars/tree-sitter-xml/bindings/go"
	tree_sitter_yaml "github.com/tree-sitter-grammars/tree-sitter-yaml/bindings/go"
	tree_sitter_bash "github.com/tree-sitter/tree-sitter-bash/bindings/go"
	tree_sitter_c "github.com/tree-sitter/tree-sitter-c/bindings/go"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
	tree_sitter_css "github.com/tree-sitter/tree-sitter-css/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_html "github.com/tree-sitter/tree-sitter-html/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_json "github.com/tree-sitter/tree-sitter-json/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_ruby "github.com/tree-sitter/tree-sitter-ruby/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	arberr "arbor/internal/errors"
)

// Grammar is the compiled, immutable descriptor for one language. It is
// created once during registry construction and shared read-only across any
// number of concurrent parses.
type Grammar struct {
	id   ID
	lang *sitter.Language
}

func (g *Grammar) ID() ID                     { return g.id }
func (g *Grammar) Language() *sitter.Language { return g.lang }

// Registry maps language identifiers to compiled grammars and owns path
// detection. Read-only after construction; safe for unsynchronized
// concurrent reads.
type Registry struct {
	specs    map[ID]Spec
	grammars map[ID]*Grammar
	detector *detector
}

func NewRegistry() (*Registry, error) {
	return NewRegistryWithSpecs(nil)
}

func NewRegistryWithSpecs(specs map[ID]Spec) (*Registry, error) {
	if specs == nil {
		var err error
		specs, err = BuildSpecs(nil)
		if err != nil {
			return nil, err
		}
	}

	r := &Registry{
		specs:    cloneSpecs(specs),
		grammars: make(map[ID]*Grammar),
	}

	for _, id := range sortedIDs(r.specs) {
		spec := r.specs[id]
		if !spec.Enabled || !spec.HasGrammar {
			continue
		}
		lang, err := compileGrammar(id)
		if err != nil {
			return nil, err
		}
		r.grammars[id] = &Grammar{id: id, lang: lang}
	}

	det, err := newDetector(r.specs)
	if err != nil {
		return nil, err
	}
	r.detector = det
	return r, nil
}

func compileGrammar(id ID) (*sitter.Language, error) {
	switch id {
	case Bash:
		return sitter.NewLanguage(tree_sitter_bash.Language()), nil
	case C:
		return sitter.NewLanguage(tree_sitter_c.Language()), nil
	case Cpp:
		return sitter.NewLanguage(tree_sitter_cpp.Language()), nil
	case CSS:
		return sitter.NewLanguage(tree_sitter_css.Language()), nil
	case Go:
		return sitter.NewLanguage(tree_sitter_go.Language()), nil
	case HTML:
		return sitter.NewLanguage(tree_sitter_html.Language()), nil
	case Java:
		return sitter.NewLanguage(tree_sitter_java.Language()), nil
	case JavaScript:
		return sitter.NewLanguage(tree_sitter_javascript.Language()), nil
	case JSON:
		return sitter.NewLanguage(tree_sitter_json.Language()), nil
	case Lua:
		return sitter.NewLanguage(tree_sitter_lua.Language()), nil
	case Markdown:
		return sitter.NewLanguage(tree_sitter_markdown.Language()), nil
	case Python:
		return sitter.NewLanguage(tree_sitter_python.Language()), nil
	case Ruby:
		return sitter.NewLanguage(tree_sitter_ruby.Language()), nil
	case Rust:
		return sitter.NewLanguage(tree_sitter_rust.Language()), nil
	case TOML:
		return sitter.NewLanguage(tree_sitter_toml.Language()), nil
	case TSX:
		return sitter.NewLanguage(tree_sitter_typescript.LanguageTSX()), nil
	case TypeScript:
		return sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()), nil
	case XML:
		return sitter.NewLanguage(tree_sitter_xml.LanguageXML()), nil
	case YAML:
		return sitter.NewLanguage(tree_sitter_yaml.Language()), nil
	default:
		return nil, fmt.Errorf("language %q is marked HasGrammar but no binding is wired", id)
	}
}

// Resolve returns the compiled grammar for id. A NOT_FOUND domain error is
// signaled for known-but-ungrammared or disabled languages so callers can
// route the input to the fallback matcher instead.
func (r *Registry) Resolve(id ID) (*Grammar, error) {
	g, ok := r.grammars[id]
	if !ok {
		if _, known := r.specs[id]; !known {
			return nil, arberr.Newf(arberr.CodeNotFound, "unknown language %q", id)
		}
		return nil, arberr.Newf(arberr.CodeNotFound, "no compiled grammar for language %q", id)
	}
	return g, nil
}

// Known reports whether id belongs to the identifier set, grammar or not.
func (r *Registry) Known(id ID) bool {
	_, ok := r.specs[id]
	return ok
}

func (r *Registry) Spec(id ID) (Spec, bool) {
	spec, ok := r.specs[id]
	return spec, ok
}

// IDs returns all registered identifiers in sorted order.
func (r *Registry) IDs() []ID {
	return sortedIDs(r.specs)
}

// GrammarIDs returns the identifiers that have a compiled grammar, sorted.
func (r *Registry) GrammarIDs() []ID {
	ids := make([]ID, 0, len(r.grammars))
	for id := range r.grammars {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// DetectPath maps a file path to a language identifier using filenames,
// extensions, then glob patterns.
func (r *Registry) DetectPath(path string) (ID, bool) {
	return r.detector.detect(path)
}
