package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"arbor/internal/config"
	"arbor/internal/diff"
	"arbor/internal/errors"
	"arbor/internal/fallback"
	"arbor/internal/history"
	"arbor/internal/language"
	"arbor/internal/query"
	"arbor/internal/syntax"
	"arbor/internal/watch"
)

// App owns the wired subsystems for one CLI invocation.
type App struct {
	cfg      *config.Config
	registry *language.Registry
	engine   *syntax.Engine
	matcher  *fallback.Matcher
	store    *history.Store
}

func NewApp(cfg *config.Config) (*App, error) {
	specs, err := language.BuildSpecs(cfg.LanguageOverrides())
	if err != nil {
		return nil, fmt.Errorf("apply language overrides: %w", err)
	}
	registry, err := language.NewRegistryWithSpecs(specs)
	if err != nil {
		return nil, fmt.Errorf("build language registry: %w", err)
	}

	matcher := fallback.NewMatcher()
	for _, p := range cfg.Fallback.Patterns {
		rule := fallback.Rule{
			Kind:       fallback.Kind(p.Kind),
			Pattern:    p.Pattern,
			Confidence: p.Confidence,
		}
		if err := matcher.AddRule(language.ID(p.Language), rule); err != nil {
			return nil, fmt.Errorf("fallback pattern for %s: %w", p.Language, err)
		}
	}

	app := &App{
		cfg:      cfg,
		registry: registry,
		engine:   syntax.NewEngine(registry),
		matcher:  matcher,
	}

	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, err
		}
		app.store = store
	}
	return app, nil
}

func (a *App) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			slog.Warn("failed to close history store", "error", err)
		}
	}
}

func (a *App) diffOptions() diff.Options {
	return diff.Options{
		IgnoreKinds:        a.cfg.Diff.IgnoreKinds,
		AllowCrossLanguage: a.cfg.Diff.AllowCrossLanguage,
		KindEquivalence:    a.cfg.Diff.KindEquivalence,
	}
}

// ParseOutput carries either a parsed tree or, for grammarless languages,
// heuristic spans.
type ParseOutput struct {
	Path     string
	Language language.ID
	Tree     *syntax.Tree
	Spans    []fallback.Span
}

func (o *ParseOutput) Heuristic() bool { return o.Tree == nil }

// languageFor picks the language: the forced one when given, otherwise
// path detection.
func (a *App) languageFor(path string, force language.ID) (language.ID, error) {
	if force != "" {
		if !a.registry.Known(force) {
			return "", errors.Newf(errors.CodeNotFound, "unknown language %q", force)
		}
		return force, nil
	}
	id, ok := a.registry.DetectPath(path)
	if !ok {
		return "", errors.Newf(errors.CodeNotFound, "cannot detect language of %q; use -language", path)
	}
	return id, nil
}

// ParseFile parses one file, falling back to heuristic matching when the
// language carries no grammar. The run is recorded when history is on.
func (a *App) ParseFile(ctx context.Context, path string, force language.ID) (*ParseOutput, error) {
	id, err := a.languageFor(path, force)
	if err != nil {
		return nil, err
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	h, err := a.engine.Parse(ctx, src, id)
	if err != nil {
		if errors.IsCode(err, errors.CodeNotFound) {
			spans := a.matcher.Match(src, id)
			a.record(history.Run{Kind: history.RunFallback, Language: string(id), Path: path,
				Bytes: len(src), Ops: len(spans), Duration: time.Since(start), OK: true})
			return &ParseOutput{Path: path, Language: id, Spans: spans}, nil
		}
		a.record(history.Run{Kind: history.RunParse, Language: string(id), Path: path,
			Bytes: len(src), Duration: time.Since(start), Detail: err.Error()})
		return nil, err
	}
	defer h.Close()

	tree := h.Snapshot()
	a.record(history.Run{Kind: history.RunParse, Language: string(id), Path: path,
		Bytes: len(src), Nodes: tree.Len(), ErrorNodes: tree.ErrorCount(),
		Duration: time.Since(start), OK: true})
	return &ParseOutput{Path: path, Language: id, Tree: tree}, nil
}

// QueryFile compiles the pattern against the file's language and returns
// every match.
func (a *App) QueryFile(ctx context.Context, path, pattern string, force language.ID) ([]query.Match, error) {
	id, err := a.languageFor(path, force)
	if err != nil {
		return nil, err
	}
	g, err := a.registry.Resolve(id)
	if err != nil {
		return nil, err
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	h, err := a.engine.Parse(ctx, src, id)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	p, err := query.Compile(pattern, g)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	return p.Collect(h)
}

// DiffFiles parses both files and computes the edit script between them.
func (a *App) DiffFiles(ctx context.Context, oldPath, newPath string, force language.ID) ([]diff.Op, error) {
	parseOne := func(path string) (*syntax.Tree, error) {
		id, err := a.languageFor(path, force)
		if err != nil {
			return nil, err
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		h, err := a.engine.Parse(ctx, src, id)
		if err != nil {
			return nil, err
		}
		defer h.Close()
		return h.Snapshot(), nil
	}

	oldTree, err := parseOne(oldPath)
	if err != nil {
		return nil, err
	}
	newTree, err := parseOne(newPath)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	ops, err := diff.Trees(ctx, oldTree, newTree, a.diffOptions())
	if err != nil {
		return nil, err
	}
	a.record(history.Run{Kind: history.RunDiff, Language: string(oldTree.Language),
		Path: newPath, Ops: len(ops), Duration: time.Since(start), OK: true})
	return ops, nil
}

// RecentRuns loads recorded history, newest first.
func (a *App) RecentRuns(limit int) ([]history.Run, error) {
	if a.store == nil {
		return nil, fmt.Errorf("history is disabled; enable [history] in the config")
	}
	return a.store.RecentRuns(limit, "")
}

// Watch runs the change loop until the context is cancelled, invoking
// onResult for every processed change.
func (a *App) Watch(ctx context.Context, paths []string, onResult func(watch.Result)) error {
	session := watch.NewSession(a.engine, a.registry, a.matcher, watch.SessionOptions{
		Store:     a.store,
		RateLimit: a.cfg.Watch.RateLimit,
		Burst:     a.cfg.Watch.Burst,
		DiffOpts:  a.diffOptions(),
	})
	defer session.Close()

	watcher, err := watch.NewWatcher(a.registry, a.cfg.Watch.Debounce, a.cfg.Watch.Exclude,
		func(changed []string) {
			for _, result := range session.Process(ctx, changed) {
				if result.Err != nil {
					slog.Warn("change failed", "path", result.Path, "error", result.Err)
				}
				if onResult != nil {
					onResult(result)
				}
			}
		})
	if err != nil {
		return err
	}
	defer watcher.Close()

	if len(paths) == 0 {
		paths = a.cfg.Watch.Paths
	}
	if err := watcher.Watch(paths); err != nil {
		return err
	}
	slog.Info("watching for changes", "paths", paths)

	<-ctx.Done()
	if err := a.pruneHistory(); err != nil {
		slog.Warn("history prune failed", "error", err)
	}
	return nil
}

func (a *App) pruneHistory() error {
	if a.store == nil {
		return nil
	}
	return a.store.Prune(a.cfg.History.Keep)
}

func (a *App) record(run history.Run) {
	if a.store == nil {
		return
	}
	if _, err := a.store.RecordRun(run); err != nil {
		slog.Warn("failed to record run", "path", run.Path, "error", err)
	}
}
