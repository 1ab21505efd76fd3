// Package exchange defines component B: the typed exchange client facade
// and the order/position wire types every concrete client implements.
package exchange

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

type OrderType string

const (
	OrderTypeLimit             OrderType = "LIMIT"
	OrderTypeMarket            OrderType = "MARKET"
	OrderTypeStopMarket        OrderType = "STOP_MARKET"
	OrderTypeTakeProfitMarket  OrderType = "TAKE_PROFIT_MARKET"
	OrderTypeTakeProfit        OrderType = "TAKE_PROFIT"
	OrderTypeTakeProfitLimit   OrderType = "TAKE_PROFIT_LIMIT"
)

type TimeInForce string

const (
	TIFGTC    TimeInForce = "GTC"
	TIFIOC    TimeInForce = "IOC"
	TIFFOK    TimeInForce = "FOK"
	TIFGTX    TimeInForce = "GTX"
	TIFGTEGTC TimeInForce = "GTE_GTC"
)

type PositionSide string

const (
	PositionSideBoth  PositionSide = "BOTH"
	PositionSideLong  PositionSide = "LONG"
	PositionSideShort PositionSide = "SHORT"
)

type WorkingType string

const (
	WorkingTypeContractPrice WorkingType = "CONTRACT_PRICE"
	WorkingTypeMarkPrice     WorkingType = "MARK_PRICE"
)

// OrderRequest is the payload for PlaceOrder. ClientOrderID makes
// submission idempotent at the exchange (spec §6).
type OrderRequest struct {
	Sym           string
	Side          Side
	PositionSide  PositionSide
	Type          OrderType
	Quantity      decimal.Decimal
	Price         decimal.Decimal // required for LIMIT / TAKE_PROFIT / TAKE_PROFIT_LIMIT
	StopPrice     decimal.Decimal // required for STOP_MARKET / TAKE_PROFIT*
	TimeInForce   TimeInForce     // required for LIMIT / TAKE_PROFIT / TAKE_PROFIT_LIMIT
	WorkingType   WorkingType
	ReduceOnly    bool
	ClosePosition bool
	ClientOrderID string
}

// Validate enforces the required-field combinations per order type (spec
// §6 "Exchange contract").
func (r *OrderRequest) Validate() error {
	if r.Sym == "" {
		return fmt.Errorf("missing field sym")
	}
	if r.Quantity.LessThanOrEqual(decimal.Zero) && !r.ClosePosition {
		return fmt.Errorf("missing field quantity")
	}
	switch r.Type {
	case OrderTypeLimit:
		if r.Price.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("missing field price")
		}
		if r.TimeInForce == "" {
			return fmt.Errorf("missing field time_in_force")
		}
	case OrderTypeTakeProfit, OrderTypeTakeProfitLimit:
		if r.Price.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("missing field price")
		}
		if r.StopPrice.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("missing field stop_price")
		}
		if r.TimeInForce == "" {
			return fmt.Errorf("missing field time_in_force")
		}
	case OrderTypeStopMarket, OrderTypeTakeProfitMarket:
		if r.StopPrice.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("missing field stop_price")
		}
	case OrderTypeMarket:
		// quantity only
	default:
		return fmt.Errorf("unsupported order type %q", r.Type)
	}
	return nil
}

// Order is the exchange's view of a placed order.
type Order struct {
	OrderID       string
	ClientOrderID string
	Sym           string
	Side          Side
	PositionSide  PositionSide
	Type          OrderType
	Status        string // NEW, PARTIALLY_FILLED, FILLED, CANCELED, EXPIRED, REJECTED
	Price         decimal.Decimal
	StopPrice     decimal.Decimal
	OrigQty       decimal.Decimal
	ExecutedQty   decimal.Decimal
	ReduceOnly    bool
}

// Position is the exchange's view of an open position for one symbol.
type Position struct {
	Sym           string
	PositionSide  PositionSide
	PositionAmt   decimal.Decimal // signed: positive long, negative short
	EntryPrice    decimal.Decimal
	UnrealizedPnL decimal.Decimal
}

// Balance is the account's available margin balance for order sizing.
type Balance struct {
	Asset     string
	Available decimal.Decimal
}
