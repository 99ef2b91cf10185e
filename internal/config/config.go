// Package config loads and validates the TOML configuration file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"arbor/internal/language"
)

type Config struct {
	Version       int                 `toml:"version"`
	Languages     map[string]Language `toml:"languages"`
	Fallback      Fallback            `toml:"fallback"`
	Diff          Diff                `toml:"diff"`
	Watch         Watch               `toml:"watch"`
	History       History             `toml:"history"`
	Observability Observability       `toml:"observability"`
}

// Language overrides one registry entry. Nil Enabled keeps the default;
// non-empty slices replace the built-in lists.
type Language struct {
	Enabled    *bool    `toml:"enabled"`
	Extensions []string `toml:"extensions"`
	Filenames  []string `toml:"filenames"`
	Globs      []string `toml:"globs"`
}

type Fallback struct {
	Patterns []FallbackPattern `toml:"patterns"`
}

// FallbackPattern adds one heuristic rule for a language. Confidence zero
// takes the kind default.
type FallbackPattern struct {
	Language   string  `toml:"language"`
	Kind       string  `toml:"kind"`
	Pattern    string  `toml:"pattern"`
	Confidence float64 `toml:"confidence"`
}

type Diff struct {
	IgnoreKinds        []string          `toml:"ignore_kinds"`
	AllowCrossLanguage bool              `toml:"allow_cross_language"`
	KindEquivalence    map[string]string `toml:"kind_equivalence"`
}

type Watch struct {
	Paths    []string      `toml:"paths"`
	Exclude  []string      `toml:"exclude"`
	Debounce time.Duration `toml:"debounce"`
	// RateLimit caps reparses per second across the session; Burst allows
	// short spikes above it.
	RateLimit float64 `toml:"rate_limit"`
	Burst     int     `toml:"burst"`
}

type History struct {
	Enabled     bool          `toml:"enabled"`
	Path        string        `toml:"path"`
	BusyTimeout time.Duration `toml:"busy_timeout"`
	Keep        int           `toml:"keep"`
}

type Observability struct {
	Listen       string `toml:"listen"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := validateVersion(&cfg); err != nil {
		return nil, err
	}
	if err := validateWatch(&cfg); err != nil {
		return nil, err
	}
	if err := validateFallback(&cfg); err != nil {
		return nil, err
	}
	if err := validateLanguages(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 200 * time.Millisecond
	}
	if len(cfg.Watch.Paths) == 0 {
		cfg.Watch.Paths = []string{"."}
	}
	if cfg.Watch.RateLimit <= 0 {
		cfg.Watch.RateLimit = 20
	}
	if cfg.Watch.Burst <= 0 {
		cfg.Watch.Burst = 5
	}

	if strings.TrimSpace(cfg.History.Path) == "" {
		cfg.History.Path = "arbor.db"
	}
	if cfg.History.BusyTimeout <= 0 {
		cfg.History.BusyTimeout = 5 * time.Second
	}
	if cfg.History.Keep <= 0 {
		cfg.History.Keep = 1000
	}

	if strings.TrimSpace(cfg.Observability.Listen) == "" {
		cfg.Observability.Listen = "127.0.0.1:9190"
	}
}

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; only version 1 is supported", cfg.Version)
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	for _, p := range cfg.Watch.Paths {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("watch.paths must not contain empty entries")
		}
	}
	return nil
}

func validateFallback(cfg *Config) error {
	for i, p := range cfg.Fallback.Patterns {
		if strings.TrimSpace(p.Language) == "" {
			return fmt.Errorf("fallback.patterns[%d]: language is required", i)
		}
		if strings.TrimSpace(p.Pattern) == "" {
			return fmt.Errorf("fallback.patterns[%d]: pattern is required", i)
		}
		if p.Confidence < 0 || p.Confidence >= 1 {
			return fmt.Errorf("fallback.patterns[%d]: confidence %.2f out of range (0,1)", i, p.Confidence)
		}
	}
	return nil
}

func validateLanguages(cfg *Config) error {
	// BuildSpecs rejects unknown names and colliding extensions.
	_, err := language.BuildSpecs(cfg.LanguageOverrides())
	return err
}

// LanguageOverrides converts the [languages] section to registry overrides.
func (c *Config) LanguageOverrides() map[string]language.Override {
	if len(c.Languages) == 0 {
		return nil
	}
	out := make(map[string]language.Override, len(c.Languages))
	for name, l := range c.Languages {
		out[name] = language.Override{
			Enabled:    l.Enabled,
			Extensions: l.Extensions,
			Filenames:  l.Filenames,
			Globs:      l.Globs,
		}
	}
	return out
}
