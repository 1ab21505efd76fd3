package model

import "github.com/shopspring/decimal"

// BotState is a bot's mutable per-symbol runtime state, held in the bot
// state hash (component D) and healed by the reconciler (component I).
type BotState struct {
	BotID  string
	Sym    string

	// LastSignalID is the SignalID of the most recently processed signal,
	// the idempotency anchor referenced by spec §5.
	LastSignalID string

	// ArmedEntryOrderID is the exchange order id of the pending stop-trigger
	// entry order; cleared by Disarm. The reconciler reports it as an
	// inconsistency when it is missing from the exchange's open orders.
	ArmedEntryOrderID string

	// BracketIDs holds the SL/TP order ids placed together with the entry
	// order; cleared by Disarm.
	BracketIDs []string

	PositionSide       Regime
	PositionQty        decimal.Decimal
	AvgEntryPrice      decimal.Decimal
}

// HasPosition reports whether the bot currently holds exchange exposure.
func (s *BotState) HasPosition() bool {
	return !s.PositionQty.IsZero()
}

// HasArmedEntry reports whether a stop-trigger entry order is outstanding.
func (s *BotState) HasArmedEntry() bool {
	return s.ArmedEntryOrderID != ""
}
