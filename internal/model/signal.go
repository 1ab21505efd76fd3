package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// SignalKind distinguishes the two variants of the Signal tagged union.
type SignalKind string

const (
	SignalArm    SignalKind = "arm"
	SignalDisarm SignalKind = "disarm"
)

// Signal is the event the calculator emits onto the signal stream. It is a
// tagged union rather than a bare map: Kind selects which fields are
// meaningful, matching spec §9 "Dynamic field access" (no map[string]any
// crosses a package boundary).
type Signal struct {
	Kind SignalKind
	Sym  string
	TF   string

	// IndTS is the indicator candle timestamp the signal is keyed on; it is
	// part of the signal's identity (see SignalID).
	IndTS int64

	// Side is the armed/disarmed direction (RegimeLong or RegimeShort).
	Side Regime

	// Arm-only fields.
	Trigger decimal.Decimal
	Stop    decimal.Decimal

	// Disarm-only fields.
	PrevSide Regime
	Reason   string
}

// SignalID returns the dedup key used by the idempotency set and by
// BotState.LastSignalID: "{sym}:{ind_ts}:{side}".
func (s *Signal) SignalID() string {
	return fmt.Sprintf("%s:%d:%s", s.Sym, s.IndTS, s.Side)
}
