package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStateStatus is the persisted lifecycle status of one (bot,signal)'s
// order handling, per spec §6's order_states schema.
type OrderStateStatus string

const (
	OrderStateArmed             OrderStateStatus = "armed"
	OrderStatePending           OrderStateStatus = "pending"
	OrderStateFilled            OrderStateStatus = "filled"
	OrderStateCancelled         OrderStateStatus = "cancelled"
	OrderStateFailed            OrderStateStatus = "failed"
	OrderStateSkippedLowBalance OrderStateStatus = "skipped_low_balance"
	OrderStateSkippedWhitelist  OrderStateStatus = "skipped_whitelist"
)

// OrderState is one row of the order_states audit table (spec §6),
// unique on (bot_id, signal_id).
type OrderState struct {
	ID                int64
	BotID             string
	SignalID          string
	OrderID           string
	StopOrderID       string
	TakeProfitOrderID string
	Status            OrderStateStatus
	Side              Regime
	Symbol            string
	TriggerPrice      decimal.Decimal
	StopPrice         decimal.Decimal
	Quantity          decimal.Decimal
	FilledQuantity    decimal.Decimal
	AvgFillPrice      decimal.Decimal
	LastFillAt        *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
