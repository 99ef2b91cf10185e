package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "arbor.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Version != 1 {
		t.Errorf("version = %d, want 1", cfg.Version)
	}
	if cfg.Watch.Debounce != 200*time.Millisecond {
		t.Errorf("debounce = %v, want 200ms", cfg.Watch.Debounce)
	}
	if len(cfg.Watch.Paths) != 1 || cfg.Watch.Paths[0] != "." {
		t.Errorf("watch paths = %v, want [.]", cfg.Watch.Paths)
	}
	if cfg.History.Path != "arbor.db" {
		t.Errorf("history path = %q", cfg.History.Path)
	}
	if cfg.Observability.Listen == "" {
		t.Error("observability listen must have a default")
	}
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
version = 1

[languages.bash]
globs = ["**/hooks/*"]

[languages.swift]
enabled = false

[diff]
ignore_kinds = ["comment"]
allow_cross_language = true

[diff.kind_equivalence]
"true" = "boolean"
"false" = "boolean"

[[fallback.patterns]]
language = "fish"
kind = "definition"
pattern = '^\s*abbr\s+([\w-]+)'
confidence = 0.6

[watch]
paths = ["src", "docs"]
exclude = ["**/vendor/**"]
debounce = "500ms"
rate_limit = 10.0
burst = 3

[history]
enabled = true
path = "state/runs.db"

[observability]
listen = "127.0.0.1:9999"
otlp_endpoint = "localhost:4317"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Watch.Debounce != 500*time.Millisecond {
		t.Errorf("debounce = %v", cfg.Watch.Debounce)
	}
	if len(cfg.Watch.Paths) != 2 {
		t.Errorf("watch paths = %v", cfg.Watch.Paths)
	}
	if got := cfg.Diff.KindEquivalence["true"]; got != "boolean" {
		t.Errorf("kind_equivalence[true] = %q", got)
	}
	if len(cfg.Fallback.Patterns) != 1 || cfg.Fallback.Patterns[0].Language != "fish" {
		t.Errorf("fallback patterns = %+v", cfg.Fallback.Patterns)
	}
	if cfg.History.Path != "state/runs.db" {
		t.Errorf("history path = %q", cfg.History.Path)
	}

	overrides := cfg.LanguageOverrides()
	sw, ok := overrides["swift"]
	if !ok || sw.Enabled == nil || *sw.Enabled {
		t.Errorf("swift override = %+v", sw)
	}
}

func TestLoadRejectsBadConfig(t *testing.T) {
	cases := map[string]string{
		"bad version":        "version = 7\n",
		"unknown language":   "[languages.cobol]\nenabled = true\n",
		"empty watch path":   `[watch]` + "\n" + `paths = ["", "src"]` + "\n",
		"confidence too big": "[[fallback.patterns]]\nlanguage = \"nix\"\nkind = \"call\"\npattern = \"x\"\nconfidence = 1.5\n",
		"pattern missing":    "[[fallback.patterns]]\nlanguage = \"nix\"\nkind = \"call\"\n",
		"extension clash":    "[languages.ruby]\nextensions = [\".py\"]\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("expected error")
	}
}
