// Package binancefutures is the concrete REST exchange client for
// component B, built on go-resty/resty (grounded on jax-trading-assistant's
// libs/marketdata HTTP transport) and wrapped in a sony/gobreaker/v2
// circuit breaker so a flapping venue degrades to fast failures instead of
// hanging goroutines (spec §4.B, §9 resilience).
package binancefutures

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"futurespipeline/internal/exchange"
	"futurespipeline/internal/exchange/filters"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
)

// Config configures the concrete client.
type Config struct {
	BaseURL         string
	APIKey          string
	APISecret       string
	ExchangeInfoURL string
	Timeout         time.Duration

	FallbackTick     decimal.Decimal
	FallbackStep     decimal.Decimal
	FallbackMinQty   decimal.Decimal
	FallbackNotional decimal.Decimal
}

// Client implements exchange.Client against a Binance-futures-style REST
// API, gated by a circuit breaker per outbound call.
type Client struct {
	http   *resty.Client
	cb     *gobreaker.CircuitBreaker[*resty.Response]
	loader *filters.Loader
	log    *slog.Logger
}

func New(cfg Config, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	h := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("X-MBX-APIKEY", cfg.APIKey).
		SetRetryCount(2).
		SetRetryWaitTime(250 * time.Millisecond)

	cbSettings := gobreaker.Settings{
		Name:        "exchange-http",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("exchange circuit breaker state change", "name", name, "from", from, "to", to)
		},
	}

	return &Client{
		http:   h,
		cb:     gobreaker.NewCircuitBreaker[*resty.Response](cbSettings),
		loader: filters.NewLoader(cfg.ExchangeInfoURL, cfg.FallbackTick, cfg.FallbackStep, cfg.FallbackMinQty, cfg.FallbackNotional, log),
		log:    log,
	}
}

func (c *Client) do(ctx context.Context, build func() *resty.Request) (*resty.Response, error) {
	return c.cb.Execute(func() (*resty.Response, error) {
		resp, err := build().SetContext(ctx).Send()
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, fmt.Errorf("exchange http %d: %s", resp.StatusCode(), resp.String())
		}
		return resp, nil
	})
}

func (c *Client) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (exchange.Order, error) {
	if err := req.Validate(); err != nil {
		return exchange.Order{}, err
	}
	if req.ClientOrderID == "" {
		req.ClientOrderID = uuid.NewString()
	}

	var out orderDTO
	_, err := c.do(ctx, func() *resty.Request {
		return c.http.R().
			SetQueryParams(toOrderParams(req)).
			SetResult(&out).
			ForceContentType("application/json")
	})
	if err != nil {
		return exchange.Order{}, fmt.Errorf("place order: %w", err)
	}
	return out.toDomain(), nil
}

func (c *Client) CancelOrder(ctx context.Context, sym, orderID string) error {
	_, err := c.do(ctx, func() *resty.Request {
		return c.http.R().SetQueryParams(map[string]string{"symbol": sym, "orderId": orderID})
	})
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	return nil
}

func (c *Client) GetOpenOrders(ctx context.Context, sym string) ([]exchange.Order, error) {
	var out []orderDTO
	_, err := c.do(ctx, func() *resty.Request {
		return c.http.R().SetQueryParam("symbol", sym).SetResult(&out)
	})
	if err != nil {
		return nil, fmt.Errorf("get open orders: %w", err)
	}
	orders := make([]exchange.Order, len(out))
	for i, o := range out {
		orders[i] = o.toDomain()
	}
	return orders, nil
}

func (c *Client) GetPositions(ctx context.Context, sym string) ([]exchange.Position, error) {
	var out []positionDTO
	_, err := c.do(ctx, func() *resty.Request {
		return c.http.R().SetQueryParam("symbol", sym).SetResult(&out)
	})
	if err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}
	positions := make([]exchange.Position, len(out))
	for i, p := range out {
		positions[i] = p.toDomain()
	}
	return positions, nil
}

func (c *Client) GetBalance(ctx context.Context, asset string) (exchange.Balance, error) {
	var out []balanceDTO
	_, err := c.do(ctx, func() *resty.Request {
		return c.http.R().SetResult(&out)
	})
	if err != nil {
		return exchange.Balance{}, fmt.Errorf("get balance: %w", err)
	}
	for _, b := range out {
		if b.Asset == asset {
			avail, _ := decimal.NewFromString(b.AvailableBalance)
			return exchange.Balance{Asset: asset, Available: avail}, nil
		}
	}
	return exchange.Balance{Asset: asset, Available: decimal.Zero}, nil
}

func (c *Client) GetSymbolFilters(ctx context.Context, sym string) (filters.SymbolFilters, error) {
	m := c.loader.Load(ctx, []string{sym})
	return m[sym], nil
}
