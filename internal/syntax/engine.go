package syntax

import (
	"sync"
	"time"

	sitter "github.com/tree-sitter/go-tree-sitter"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"context"

	arberr "arbor/internal/errors"
	"arbor/internal/language"
	"arbor/internal/shared/observability"
)

// Engine produces syntax trees for any language the registry can resolve.
// It is stateless apart from per-language parser pools and never retains
// the trees it hands out.
type Engine struct {
	registry *language.Registry

	mu    sync.Mutex
	pools map[language.ID]*Pool
}

func NewEngine(registry *language.Registry) *Engine {
	return &Engine{
		registry: registry,
		pools:    make(map[language.ID]*Pool),
	}
}

func (e *Engine) Registry() *language.Registry { return e.registry }

func (e *Engine) pool(g *language.Grammar) *Pool {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.pools[g.ID()]
	if !ok {
		p = NewPool(g)
		e.pools[g.ID()] = p
	}
	return p
}

// Parse runs a full parse of src. Syntactically invalid input still yields
// a tree (with error/missing nodes); only grammar resolution failure or a
// parser-level failure is reported as an error. The returned Handle is
// owned by the caller, which must Close it.
func (e *Engine) Parse(ctx context.Context, src []byte, id language.ID) (*Handle, error) {
	ctx, span := observability.Tracer.Start(ctx, "syntax.Parse", trace.WithAttributes(
		attribute.String("language", string(id)),
		attribute.Int("bytes", len(src)),
	))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	grammar, err := e.registry.Resolve(id)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	pool := e.pool(grammar)
	parser := pool.Get()
	defer pool.Put(parser)

	tree := parser.Parse(src, nil)
	if tree == nil {
		observability.ParseFailuresTotal.Inc()
		return nil, arberr.Newf(arberr.CodeParseFailure, "parser returned no tree for language %q", id)
	}

	observability.ParseDuration.WithLabelValues(string(id), "full").Observe(time.Since(start).Seconds())
	observability.ParseTotal.WithLabelValues(string(id), "full").Inc()

	return &Handle{engine: e, grammar: grammar, tree: tree, source: src}, nil
}

// Handle pairs a live tree-sitter tree with the source it was parsed from.
// It supports incremental reparsing and query execution. A Handle must not
// be shared across goroutines while Reparse may run; snapshots taken from
// it are immutable and freely shareable.
type Handle struct {
	engine  *Engine
	grammar *language.Grammar
	tree    *sitter.Tree
	source  []byte

	snapshot *Tree
}

func (h *Handle) Language() language.ID { return h.grammar.ID() }

// Source returns the source text backing the current tree. Callers must
// treat it as read-only.
func (h *Handle) Source() []byte { return h.source }

// RootNode exposes the live tree root for query execution.
func (h *Handle) RootNode() *sitter.Node { return h.tree.RootNode() }

// Snapshot returns the plain-data view of the current tree. The snapshot
// is built once per parse and cached; it stays valid (and immutable) even
// after further Reparse calls replace the live tree.
func (h *Handle) Snapshot() *Tree {
	if h.snapshot == nil {
		root := h.tree.RootNode()
		t := snapshot(root, h.source, h.grammar.ID())
		observability.TreeNodes.WithLabelValues(string(h.grammar.ID())).Observe(float64(len(t.Nodes)))
		h.snapshot = t
	}
	return h.snapshot
}

// Reparse applies edit to the retained source and re-parses, reusing every
// subtree the edit did not touch. The result is structurally equivalent to
// a from-scratch parse of the edited text. On error the handle is left in
// an undefined state and must be closed.
func (h *Handle) Reparse(ctx context.Context, edit Edit) error {
	ctx, span := observability.Tracer.Start(ctx, "syntax.Reparse", trace.WithAttributes(
		attribute.String("language", string(h.grammar.ID())),
	))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	newSrc := edit.Apply(h.source)
	h.tree.Edit(edit.inputEdit())

	pool := h.engine.pool(h.grammar)
	parser := pool.Get()
	defer pool.Put(parser)

	newTree := parser.Parse(newSrc, h.tree)
	if newTree == nil {
		observability.ParseFailuresTotal.Inc()
		return arberr.Newf(arberr.CodeParseFailure, "incremental parse returned no tree for language %q", h.grammar.ID())
	}

	h.tree.Close()
	h.tree = newTree
	h.source = newSrc
	h.snapshot = nil

	id := string(h.grammar.ID())
	observability.ParseDuration.WithLabelValues(id, "incremental").Observe(time.Since(start).Seconds())
	observability.ParseTotal.WithLabelValues(id, "incremental").Inc()
	return nil
}

// Close releases the underlying tree-sitter tree. Snapshots remain valid.
func (h *Handle) Close() {
	if h.tree != nil {
		h.tree.Close()
		h.tree = nil
	}
}
