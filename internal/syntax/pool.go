package syntax

import (
	"sync"
	"time"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"arbor/internal/language"
)

// Pool recycles tree-sitter parser instances to avoid the per-call
// allocation overhead of sitter.NewParser() / parser.Close().
//
// Each pool is tied to a single compiled grammar; the engine keeps one pool
// per language.
//
// Concurrency: safe for use by multiple goroutines simultaneously.
type Pool struct {
	grammar *language.Grammar
	pool    sync.Pool

	leases   map[*sitter.Parser]time.Time
	leasesMu sync.Mutex
}

// NewPool creates a pool for the given grammar. The grammar must remain
// valid for the lifetime of the pool (grammars live for the process).
func NewPool(grammar *language.Grammar) *Pool {
	p := &Pool{
		grammar: grammar,
		leases:  make(map[*sitter.Parser]time.Time),
	}
	p.pool = sync.Pool{
		New: func() any {
			sp := sitter.NewParser()
			sp.SetLanguage(grammar.Language())
			return sp
		},
	}
	return p
}

// Get retrieves a parser from the pool, or allocates a new one if the pool
// is empty. The returned parser is already configured for the pool's
// grammar.
func (p *Pool) Get() *sitter.Parser {
	sp := p.pool.Get().(*sitter.Parser)
	// Ensure the language is set in case the parser was Reset() externally.
	sp.SetLanguage(p.grammar.Language())

	p.leasesMu.Lock()
	p.leases[sp] = time.Now()
	p.leasesMu.Unlock()

	return sp
}

// Put returns a parser to the pool for reuse. The parser is reset before
// being stored so that no references to previous parse trees are retained.
// Callers must not use sp after calling Put.
func (p *Pool) Put(sp *sitter.Parser) {
	if sp == nil {
		return
	}

	p.leasesMu.Lock()
	delete(p.leases, sp)
	p.leasesMu.Unlock()

	sp.Reset()
	p.pool.Put(sp)
}

// Stats returns the number of currently leased parsers.
func (p *Pool) Stats() int {
	p.leasesMu.Lock()
	defer p.leasesMu.Unlock()
	return len(p.leases)
}
