package watch

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"arbor/internal/diff"
	"arbor/internal/errors"
	"arbor/internal/fallback"
	"arbor/internal/history"
	"arbor/internal/language"
	"arbor/internal/shared/observability"
	"arbor/internal/shared/util"
	"arbor/internal/syntax"
)

// Session keeps one live parse handle per watched file. Each change batch
// becomes an incremental reparse plus a structural diff against the state
// before the change; grammarless files go through the fallback matcher.
type Session struct {
	engine   *syntax.Engine
	registry *language.Registry
	matcher  *fallback.Matcher
	store    *history.Store
	limiter  *util.Limiter
	diffOpts diff.Options

	mu    sync.Mutex
	files map[string]*fileState
}

type fileState struct {
	id     language.ID
	handle *syntax.Handle
}

// Result is the outcome for one changed path.
type Result struct {
	Path     string
	Language language.ID
	Kind     history.RunKind
	Tree     *syntax.Tree
	Ops      []diff.Op
	Spans    []fallback.Span
	Removed  bool
	Err      error
}

// SessionOptions bundles session construction knobs. Store may be nil to
// skip history recording.
type SessionOptions struct {
	Store     *history.Store
	RateLimit float64
	Burst     int
	DiffOpts  diff.Options
}

func NewSession(engine *syntax.Engine, registry *language.Registry, matcher *fallback.Matcher, opts SessionOptions) *Session {
	if opts.RateLimit <= 0 {
		opts.RateLimit = 20
	}
	if opts.Burst <= 0 {
		opts.Burst = 5
	}
	return &Session{
		engine:   engine,
		registry: registry,
		matcher:  matcher,
		store:    opts.Store,
		limiter:  util.NewLimiter(opts.RateLimit, opts.Burst),
		diffOpts: opts.DiffOpts,
		files:    make(map[string]*fileState),
	}
}

// Process handles a change batch in path order and returns one result per
// path that was acted on. Throttled paths are skipped silently; they come
// back with the next change.
func (s *Session) Process(ctx context.Context, paths []string) []Result {
	sort.Strings(paths)

	results := make([]Result, 0, len(paths))
	for _, path := range paths {
		if !s.limiter.Allow(1) {
			observability.WatcherReparseTotal.WithLabelValues("throttled").Inc()
			slog.Debug("reparse throttled", "path", path)
			continue
		}
		results = append(results, s.handleChange(ctx, path))
	}
	return results
}

func (s *Session) handleChange(ctx context.Context, path string) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.dropLocked(path)
			observability.WatcherReparseTotal.WithLabelValues("removed").Inc()
			return Result{Path: path, Removed: true}
		}
		observability.WatcherReparseTotal.WithLabelValues("error").Inc()
		return Result{Path: path, Err: err}
	}

	id, ok := s.registry.DetectPath(path)
	if !ok {
		observability.WatcherReparseTotal.WithLabelValues("error").Inc()
		return Result{Path: path, Err: errors.Newf(errors.CodeNotFound, "no language claims %q", path)}
	}

	start := time.Now()
	state := s.files[path]
	switch {
	case state != nil && state.id == id:
		return s.reparseLocked(ctx, path, state, src, start)
	default:
		s.dropLocked(path)
		return s.firstParseLocked(ctx, path, id, src, start)
	}
}

func (s *Session) firstParseLocked(ctx context.Context, path string, id language.ID, src []byte, start time.Time) Result {
	h, err := s.engine.Parse(ctx, src, id)
	if err != nil {
		if errors.IsCode(err, errors.CodeNotFound) {
			return s.fallbackLocked(path, id, src, start)
		}
		observability.WatcherReparseTotal.WithLabelValues("error").Inc()
		s.record(history.Run{Kind: history.RunParse, Language: string(id), Path: path,
			Bytes: len(src), Duration: time.Since(start), Detail: err.Error()})
		return Result{Path: path, Language: id, Err: err}
	}

	s.files[path] = &fileState{id: id, handle: h}
	tree := h.Snapshot()
	observability.WatcherReparseTotal.WithLabelValues("parse").Inc()
	s.record(history.Run{Kind: history.RunParse, Language: string(id), Path: path,
		Bytes: len(src), Nodes: tree.Len(), ErrorNodes: tree.ErrorCount(),
		Duration: time.Since(start), OK: true})
	slog.Info("parsed file", "path", path, "language", id, "nodes", tree.Len())
	return Result{Path: path, Language: id, Kind: history.RunParse, Tree: tree}
}

func (s *Session) reparseLocked(ctx context.Context, path string, state *fileState, src []byte, start time.Time) Result {
	before := state.handle.Snapshot()
	edit := syntax.ComputeEdit(state.handle.Source(), src)

	if err := state.handle.Reparse(ctx, edit); err != nil {
		observability.WatcherReparseTotal.WithLabelValues("error").Inc()
		s.record(history.Run{Kind: history.RunReparse, Language: string(state.id), Path: path,
			Bytes: len(src), Duration: time.Since(start), Detail: err.Error()})
		return Result{Path: path, Language: state.id, Err: err}
	}

	after := state.handle.Snapshot()
	ops, err := diff.Trees(ctx, before, after, s.diffOpts)
	if err != nil {
		return Result{Path: path, Language: state.id, Kind: history.RunReparse, Tree: after, Err: err}
	}

	observability.WatcherReparseTotal.WithLabelValues("reparse").Inc()
	s.record(history.Run{Kind: history.RunReparse, Language: string(state.id), Path: path,
		Bytes: len(src), Nodes: after.Len(), ErrorNodes: after.ErrorCount(),
		Ops: len(ops), Duration: time.Since(start), OK: true})
	slog.Info("reparsed file", "path", path, "language", state.id, "ops", len(ops))
	return Result{Path: path, Language: state.id, Kind: history.RunReparse, Tree: after, Ops: ops}
}

func (s *Session) fallbackLocked(path string, id language.ID, src []byte, start time.Time) Result {
	spans := s.matcher.Match(src, id)
	observability.WatcherReparseTotal.WithLabelValues("fallback").Inc()
	s.record(history.Run{Kind: history.RunFallback, Language: string(id), Path: path,
		Bytes: len(src), Ops: len(spans), Duration: time.Since(start), OK: true})
	slog.Info("matched file heuristically", "path", path, "language", id, "spans", len(spans))
	return Result{Path: path, Language: id, Kind: history.RunFallback, Spans: spans}
}

func (s *Session) record(run history.Run) {
	if s.store == nil {
		return
	}
	if _, err := s.store.RecordRun(run); err != nil {
		slog.Warn("failed to record run", "path", run.Path, "error", err)
	}
}

func (s *Session) dropLocked(path string) {
	if state, ok := s.files[path]; ok {
		state.handle.Close()
		delete(s.files, path)
	}
}

// Tracked returns the watched paths with live parse state, sorted.
func (s *Session) Tracked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths := make([]string, 0, len(s.files))
	for path := range s.files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for path, state := range s.files {
		state.handle.Close()
		delete(s.files, path)
	}
}
