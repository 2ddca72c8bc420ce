package orderbook

import (
	"context"
	"sync"

	"github.com/orderbook-engine/service/pkg/observability"
)

// Registry is a per-process, per-symbol owner of *OrderBook values.
// The registry's mutex guards only the symbol map; it is released
// before any book-level operation proceeds.
type Registry struct {
	mu         sync.RWMutex
	books      map[string]*OrderBook
	defaultCfg OrderBookConfig
	logger     *observability.Logger
}

// NewRegistry returns a registry that lazily constructs books from
// defaultCfg on first access to a symbol.
func NewRegistry(defaultCfg OrderBookConfig) *Registry {
	return &Registry{
		books:      make(map[string]*OrderBook),
		defaultCfg: defaultCfg,
	}
}

// SetLogger attaches a logger; every book subsequently created by
// GetOrCreate inherits it, and book-creation events are logged at Info.
func (r *Registry) SetLogger(logger *observability.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// GetOrCreate returns the book for symbol, constructing one from the
// registry's default configuration on first access. Read-lock fast
// path, write-lock slow path with a re-check.
func (r *Registry) GetOrCreate(symbol string) *OrderBook {
	r.mu.RLock()
	book, exists := r.books[symbol]
	r.mu.RUnlock()
	if exists {
		return book
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if book, exists = r.books[symbol]; exists {
		return book
	}
	book = NewWithConfig(r.defaultCfg)
	if r.logger != nil {
		book.SetLogger(r.logger)
		r.logger.Info(context.Background(), "order book created", map[string]interface{}{"symbol": symbol})
	}
	r.books[symbol] = book
	return book
}

// Get returns the existing book for symbol, or ErrUnknownSymbol if the
// registry has never been asked to create one.
func (r *Registry) Get(symbol string) (*OrderBook, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	book, exists := r.books[symbol]
	if !exists {
		return nil, ErrUnknownSymbol
	}
	return book, nil
}

// Symbols returns the set of symbols currently owned by the registry.
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.books))
	for s := range r.books {
		out = append(out, s)
	}
	return out
}
