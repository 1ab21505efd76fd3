package filters

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// TickSource caches a Loader's results per symbol so the calculator's
// per-candle hot path never makes a network call; it refreshes lazily on
// first use per symbol. Implements calc.TickSource.
type TickSource struct {
	loader *Loader

	mu    sync.RWMutex
	cache map[string]decimal.Decimal
}

func NewTickSource(loader *Loader) *TickSource {
	return &TickSource{loader: loader, cache: make(map[string]decimal.Decimal)}
}

func (t *TickSource) TickSize(ctx context.Context, sym string) (decimal.Decimal, error) {
	t.mu.RLock()
	if tick, ok := t.cache[sym]; ok {
		t.mu.RUnlock()
		return tick, nil
	}
	t.mu.RUnlock()

	loaded := t.loader.Load(ctx, []string{sym})
	sf, ok := loaded[sym]
	if !ok {
		sf = t.loader.fallback(sym)
	}

	t.mu.Lock()
	t.cache[sym] = sf.TickSize
	t.mu.Unlock()
	return sf.TickSize, nil
}

// Invalidate drops a symbol's cached tick size so the next TickSize call
// re-fetches it.
func (t *TickSource) Invalidate(sym string) {
	t.mu.Lock()
	delete(t.cache, sym)
	t.mu.Unlock()
}
