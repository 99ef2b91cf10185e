package language

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

// ID is an interned language identifier. The set is fixed at compile time;
// overrides can enable or disable entries but never add new ones.
type ID string

const (
	Bash       ID = "bash"
	C          ID = "c"
	Cpp        ID = "cpp"
	CSS        ID = "css"
	Diff       ID = "diff"
	Elixir     ID = "elixir"
	Fish       ID = "fish"
	Gleam      ID = "gleam"
	Go         ID = "go"
	GraphQL    ID = "graphql"
	Heex       ID = "heex"
	HTML       ID = "html"
	Java       ID = "java"
	JavaScript ID = "javascript"
	JSON       ID = "json"
	Lua        ID = "lua"
	Markdown   ID = "markdown"
	Nix        ID = "nix"
	Python     ID = "python"
	Ruby       ID = "ruby"
	Rust       ID = "rust"
	Swift      ID = "swift"
	TOML       ID = "toml"
	TSX        ID = "tsx"
	TypeScript ID = "typescript"
	XML        ID = "xml"
	YAML       ID = "yaml"
	Zig        ID = "zig"
)

type Spec struct {
	ID         ID
	Extensions []string
	Filenames  []string
	// Globs are extra path patterns matched with gobwas/glob, e.g.
	// "**/Dockerfile.*".
	Globs   []string
	Enabled bool
	// HasGrammar marks languages with a compiled tree-sitter binding. The
	// rest are known identifiers served by the fallback matcher only.
	HasGrammar bool
}

type Override struct {
	Enabled    *bool
	Extensions []string
	Filenames  []string
	Globs      []string
}

func DefaultSpecs() map[ID]Spec {
	return map[ID]Spec{
		Bash:       {ID: Bash, Extensions: []string{".sh", ".bash"}, Filenames: []string{".bashrc", ".bash_profile"}, Enabled: true, HasGrammar: true},
		C:          {ID: C, Extensions: []string{".c", ".h"}, Enabled: true, HasGrammar: true},
		Cpp:        {ID: Cpp, Extensions: []string{".cc", ".cpp", ".cxx", ".hpp", ".hh"}, Enabled: true, HasGrammar: true},
		CSS:        {ID: CSS, Extensions: []string{".css"}, Enabled: true, HasGrammar: true},
		Diff:       {ID: Diff, Extensions: []string{".diff", ".patch"}, Enabled: true},
		Elixir:     {ID: Elixir, Extensions: []string{".ex", ".exs"}, Enabled: true},
		Fish:       {ID: Fish, Extensions: []string{".fish"}, Enabled: true},
		Gleam:      {ID: Gleam, Extensions: []string{".gleam"}, Enabled: true},
		Go:         {ID: Go, Extensions: []string{".go"}, Enabled: true, HasGrammar: true},
		GraphQL:    {ID: GraphQL, Extensions: []string{".graphql", ".gql"}, Enabled: true},
		Heex:       {ID: Heex, Extensions: []string{".heex"}, Enabled: true},
		HTML:       {ID: HTML, Extensions: []string{".html", ".htm"}, Enabled: true, HasGrammar: true},
		Java:       {ID: Java, Extensions: []string{".java"}, Enabled: true, HasGrammar: true},
		JavaScript: {ID: JavaScript, Extensions: []string{".js", ".cjs", ".mjs"}, Enabled: true, HasGrammar: true},
		JSON:       {ID: JSON, Extensions: []string{".json"}, Enabled: true, HasGrammar: true},
		Lua:        {ID: Lua, Extensions: []string{".lua"}, Enabled: true, HasGrammar: true},
		Markdown:   {ID: Markdown, Extensions: []string{".md", ".markdown"}, Enabled: true, HasGrammar: true},
		Nix:        {ID: Nix, Extensions: []string{".nix"}, Enabled: true},
		Python:     {ID: Python, Extensions: []string{".py"}, Enabled: true, HasGrammar: true},
		Ruby:       {ID: Ruby, Extensions: []string{".rb"}, Filenames: []string{"rakefile", "gemfile"}, Enabled: true, HasGrammar: true},
		Rust:       {ID: Rust, Extensions: []string{".rs"}, Enabled: true, HasGrammar: true},
		Swift:      {ID: Swift, Extensions: []string{".swift"}, Enabled: true},
		TOML:       {ID: TOML, Extensions: []string{".toml"}, Filenames: []string{"cargo.lock"}, Enabled: true, HasGrammar: true},
		TSX:        {ID: TSX, Extensions: []string{".tsx"}, Enabled: true, HasGrammar: true},
		TypeScript: {ID: TypeScript, Extensions: []string{".ts"}, Enabled: true, HasGrammar: true},
		XML:        {ID: XML, Extensions: []string{".xml", ".svg", ".xsd"}, Enabled: true, HasGrammar: true},
		YAML:       {ID: YAML, Extensions: []string{".yaml", ".yml"}, Enabled: true, HasGrammar: true},
		Zig:        {ID: Zig, Extensions: []string{".zig"}, Enabled: true},
	}
}

func BuildSpecs(overrides map[string]Override) (map[ID]Spec, error) {
	specs := cloneSpecs(DefaultSpecs())
	if overrides == nil {
		return specs, nil
	}

	for name, override := range overrides {
		id := ID(strings.ToLower(strings.TrimSpace(name)))
		spec, ok := specs[id]
		if !ok {
			return nil, fmt.Errorf("unknown language override %q", name)
		}
		if override.Enabled != nil {
			spec.Enabled = *override.Enabled
		}
		if len(override.Extensions) > 0 {
			spec.Extensions = normalizeExtensions(override.Extensions)
		}
		if len(override.Filenames) > 0 {
			spec.Filenames = normalizeFilenames(override.Filenames)
		}
		if len(override.Globs) > 0 {
			spec.Globs = append([]string(nil), override.Globs...)
		}
		specs[id] = spec
	}

	if err := validateSpecs(specs); err != nil {
		return nil, err
	}
	return specs, nil
}

func cloneSpecs(in map[ID]Spec) map[ID]Spec {
	out := make(map[ID]Spec, len(in))
	for id, spec := range in {
		copySpec := spec
		copySpec.Extensions = append([]string(nil), spec.Extensions...)
		copySpec.Filenames = append([]string(nil), spec.Filenames...)
		copySpec.Globs = append([]string(nil), spec.Globs...)
		out[id] = copySpec
	}
	return out
}

func validateSpecs(specs map[ID]Spec) error {
	extOwner := make(map[string]ID)
	filenameOwner := make(map[string]ID)

	for _, id := range sortedIDs(specs) {
		spec := specs[id]
		if !spec.Enabled {
			continue
		}
		for _, ext := range normalizeExtensions(spec.Extensions) {
			if existing, ok := extOwner[ext]; ok && existing != id {
				return fmt.Errorf("duplicate extension %q owned by %q and %q", ext, existing, id)
			}
			extOwner[ext] = id
		}
		for _, filename := range normalizeFilenames(spec.Filenames) {
			if existing, ok := filenameOwner[filename]; ok && existing != id {
				return fmt.Errorf("duplicate filename %q owned by %q and %q", filename, existing, id)
			}
			filenameOwner[filename] = id
		}
	}
	return nil
}

func normalizeExtensions(values []string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(values))
	for _, value := range values {
		raw := strings.TrimSpace(strings.ToLower(value))
		if raw == "" {
			continue
		}
		if !strings.HasPrefix(raw, ".") {
			raw = "." + raw
		}
		if seen[raw] {
			continue
		}
		seen[raw] = true
		out = append(out, raw)
	}
	sort.Strings(out)
	return out
}

func normalizeFilenames(values []string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(values))
	for _, value := range values {
		raw := strings.TrimSpace(strings.ToLower(path.Base(value)))
		if raw == "" {
			continue
		}
		if seen[raw] {
			continue
		}
		seen[raw] = true
		out = append(out, raw)
	}
	sort.Strings(out)
	return out
}

func sortedIDs(specs map[ID]Spec) []ID {
	ids := make([]ID, 0, len(specs))
	for id := range specs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
