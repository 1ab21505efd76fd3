package exchange

import (
	"context"

	"futurespipeline/internal/exchange/filters"
)

// Client is the component B facade every concrete exchange implementation
// (binancefutures, paper) satisfies. Every method is context-aware per
// the teacher's convention of threading ctx through blocking I/O.
type Client interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (Order, error)
	CancelOrder(ctx context.Context, sym, orderID string) error
	GetOpenOrders(ctx context.Context, sym string) ([]Order, error)
	GetPositions(ctx context.Context, sym string) ([]Position, error)
	GetBalance(ctx context.Context, asset string) (Balance, error)
	GetSymbolFilters(ctx context.Context, sym string) (filters.SymbolFilters, error)
}
