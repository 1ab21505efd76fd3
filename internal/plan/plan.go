// Package plan implements component G: a pure function that turns an arm
// signal plus a bot's config into a sized, quantized order plan (spec
// §4.G). It never calls the exchange or the store directly — callers
// (internal/orders) fetch balance/filters and pass them in, keeping
// BuildPlan a pure, table-testable function.
package plan

import (
	"context"
	"fmt"

	"futurespipeline/internal/exchange"
	"futurespipeline/internal/exchange/filters"
	"futurespipeline/internal/model"

	"github.com/shopspring/decimal"
)

// Diagnostics carries the human-readable reasons a plan was rejected.
type Diagnostics struct {
	Notes []string
}

// Plan is build_plan's output: a normalized, sized, quantized intent to
// place an entry and its brackets (spec §4.G, §9 glossary "Plan").
type Plan struct {
	OK  bool
	Sym string
	Side model.Regime

	Qty decimal.Decimal

	EntryType      exchange.OrderType
	EntrySide      exchange.Side
	EntryStopPrice decimal.Decimal

	StopLossPrice   decimal.Decimal
	TakeProfitPrice decimal.Decimal

	PreplaceBrackets bool

	Diagnostics Diagnostics
}

// Inputs bundles everything BuildPlan needs beyond the arm signal and bot
// config: the free balance to size against and the symbol's trading
// filters, both fetched by the caller so this function stays pure.
type Inputs struct {
	FreeBalance decimal.Decimal
	Filters     filters.SymbolFilters
}

func rejected(sym string, side model.Regime, notes ...string) Plan {
	return Plan{OK: false, Sym: sym, Side: side, Diagnostics: Diagnostics{Notes: notes}}
}

// BuildPlan computes the sized/quantized Plan for an arm signal under a
// bot's risk configuration (spec §4.G, numeric semantics verbatim).
func BuildPlan(arm model.Signal, cfg model.BotConfig, in Inputs) Plan {
	if in.FreeBalance.LessThanOrEqual(decimal.Zero) {
		return rejected(arm.Sym, arm.Side, "zero or negative free balance")
	}

	riskUSD := in.FreeBalance.Mul(cfg.RiskPerTrade)
	priceDiff := arm.Trigger.Sub(arm.Stop).Abs()
	if priceDiff.LessThanOrEqual(decimal.Zero) {
		return rejected(arm.Sym, arm.Side, "trigger and stop are equal, cannot size position")
	}

	leverageFactor := decimal.NewFromInt(int64(cfg.Leverage))
	if leverageFactor.LessThanOrEqual(decimal.Zero) {
		leverageFactor = decimal.NewFromInt(1)
	}
	rawQty := riskUSD.Div(priceDiff).Mul(leverageFactor)

	qty := filters.QuantizeFloor(rawQty, in.Filters.StepSize)
	if qty.LessThanOrEqual(decimal.Zero) {
		return rejected(arm.Sym, arm.Side, "quantized quantity is zero")
	}
	if qty.LessThan(in.Filters.MinQty) {
		return rejected(arm.Sym, arm.Side, fmt.Sprintf("qty %s below min_qty %s", qty.String(), in.Filters.MinQty.String()))
	}

	if cfg.MaxQty != nil && rawQty.GreaterThan(*cfg.MaxQty) {
		return rejected(arm.Sym, arm.Side, fmt.Sprintf("qty exceeds max_qty (%s > %s)", rawQty.String(), cfg.MaxQty.String()))
	}

	notional := qty.Mul(arm.Trigger)
	if notional.LessThan(in.Filters.MinNotional) {
		return rejected(arm.Sym, arm.Side, fmt.Sprintf("notional %s below min_notional %s", notional.String(), in.Filters.MinNotional.String()))
	}

	tpRatio := cfg.TPRatio
	var tpPrice decimal.Decimal
	var entrySide exchange.Side
	if arm.Side == model.RegimeLong {
		entrySide = exchange.SideBuy
		tpPrice = arm.Trigger.Add(tpRatio.Mul(arm.Trigger.Sub(arm.Stop)))
	} else {
		entrySide = exchange.SideSell
		tpPrice = arm.Trigger.Sub(tpRatio.Mul(arm.Stop.Sub(arm.Trigger)))
	}
	tpPrice = filters.QuantizeRound(tpPrice, in.Filters.TickSize)

	return Plan{
		OK: true, Sym: arm.Sym, Side: arm.Side, Qty: qty,
		EntryType: exchange.OrderTypeStopMarket, EntrySide: entrySide, EntryStopPrice: arm.Trigger,
		StopLossPrice: arm.Stop, TakeProfitPrice: tpPrice,
		PreplaceBrackets: true, // spec §9 open question: source always sets true
	}
}

// Dependencies is what a caller needs to gather Inputs; kept as an
// interface so internal/orders can pass its real exchange.Client while
// tests pass a fake.
type Dependencies interface {
	GetBalance(ctx context.Context, asset string) (exchange.Balance, error)
	GetSymbolFilters(ctx context.Context, sym string) (filters.SymbolFilters, error)
}

// Gather fetches Inputs for sym and the quoteAsset balance ahead of BuildPlan.
func Gather(ctx context.Context, deps Dependencies, sym, quoteAsset string) (Inputs, error) {
	bal, err := deps.GetBalance(ctx, quoteAsset)
	if err != nil {
		return Inputs{}, fmt.Errorf("get balance: %w", err)
	}
	sf, err := deps.GetSymbolFilters(ctx, sym)
	if err != nil {
		return Inputs{}, fmt.Errorf("get symbol filters: %w", err)
	}
	return Inputs{FreeBalance: bal.Available, Filters: sf}, nil
}
