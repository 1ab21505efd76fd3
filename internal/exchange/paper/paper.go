// Package paper provides a deterministic in-memory fake of exchange.Client
// for tests and local runs, grounded on the teacher's
// internal/execution.PaperExecutor (immediate synthetic fills, sequential
// order ids, no network).
package paper

import (
	"context"
	"fmt"
	"sync"

	"futurespipeline/internal/exchange"
	"futurespipeline/internal/exchange/filters"

	"github.com/shopspring/decimal"
)

// Client is a paper-trading fake: MARKET orders fill immediately; every
// other order type rests NEW until Fill or CancelOrder is called.
type Client struct {
	mu       sync.Mutex
	seq      int64
	orders   map[string]*exchange.Order
	openBySY map[string][]string
	positions map[string]exchange.Position
	balances  map[string]exchange.Balance
	filters   map[string]filters.SymbolFilters

	defaultFilter filters.SymbolFilters
}

func New(defaultFilter filters.SymbolFilters) *Client {
	return &Client{
		orders:        make(map[string]*exchange.Order),
		openBySY:      make(map[string][]string),
		positions:     make(map[string]exchange.Position),
		balances:      make(map[string]exchange.Balance),
		filters:       make(map[string]filters.SymbolFilters),
		defaultFilter: defaultFilter,
	}
}

// SetBalance seeds the fake account balance, used by plan-builder tests.
func (c *Client) SetBalance(asset string, available decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[asset] = exchange.Balance{Asset: asset, Available: available}
}

// SetFilters seeds per-symbol filters, overriding the default fallback.
func (c *Client) SetFilters(sym string, f filters.SymbolFilters) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filters[sym] = f
}

// SetPosition seeds the fake position for a symbol, used by reconciler tests.
func (c *Client) SetPosition(p exchange.Position) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.positions[p.Sym] = p
}

func (c *Client) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (exchange.Order, error) {
	if err := req.Validate(); err != nil {
		return exchange.Order{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	orderID := fmt.Sprintf("PAPER-%d", c.seq)

	status := "NEW"
	if req.Type == exchange.OrderTypeMarket {
		status = "FILLED"
	}

	order := &exchange.Order{
		OrderID:       orderID,
		ClientOrderID: req.ClientOrderID,
		Sym:           req.Sym,
		Side:          req.Side,
		PositionSide:  req.PositionSide,
		Type:          req.Type,
		Status:        status,
		Price:         req.Price,
		StopPrice:     req.StopPrice,
		OrigQty:       req.Quantity,
		ExecutedQty:   decimal.Zero,
		ReduceOnly:    req.ReduceOnly,
	}
	if status == "FILLED" {
		order.ExecutedQty = req.Quantity
	}
	c.orders[orderID] = order
	c.openBySY[req.Sym] = append(c.openBySY[req.Sym], orderID)
	return *order, nil
}

func (c *Client) CancelOrder(ctx context.Context, sym, orderID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s not found", orderID)
	}
	o.Status = "CANCELED"
	c.removeOpen(sym, orderID)
	return nil
}

func (c *Client) GetOpenOrders(ctx context.Context, sym string) ([]exchange.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []exchange.Order
	for _, id := range c.openBySY[sym] {
		o, ok := c.orders[id]
		if ok && (o.Status == "NEW" || o.Status == "PARTIALLY_FILLED") {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (c *Client) GetPositions(ctx context.Context, sym string) ([]exchange.Position, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.positions[sym]; ok {
		return []exchange.Position{p}, nil
	}
	return nil, nil
}

func (c *Client) GetBalance(ctx context.Context, asset string) (exchange.Balance, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.balances[asset]; ok {
		return b, nil
	}
	return exchange.Balance{Asset: asset, Available: decimal.Zero}, nil
}

func (c *Client) GetSymbolFilters(ctx context.Context, sym string) (filters.SymbolFilters, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.filters[sym]; ok {
		return f, nil
	}
	return c.defaultFilter, nil
}

// Fill marks a resting order filled, used by reconciler/handler tests that
// exercise post-entry bracket placement.
func (c *Client) Fill(orderID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if o, ok := c.orders[orderID]; ok {
		o.Status = "FILLED"
		o.ExecutedQty = o.OrigQty
		c.removeOpen(o.Sym, orderID)
	}
}

func (c *Client) removeOpen(sym, orderID string) {
	ids := c.openBySY[sym]
	for i, id := range ids {
		if id == orderID {
			c.openBySY[sym] = append(ids[:i], ids[i+1:]...)
			return
		}
	}
}
