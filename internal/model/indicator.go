package model

import "github.com/shopspring/decimal"

// Regime is the directional classification derived from moving-average
// alignment (spec §3 "Regime rule").
type Regime string

const (
	RegimeLong    Regime = "long"
	RegimeShort   Regime = "short"
	RegimeNeutral Regime = "neutral"
)

// RegimeClassifier decides the regime for a closed candle. Production code
// uses DefaultClassifier; tests substitute deterministic fakes (spec §9
// "Regime-rule pluggability").
type RegimeClassifier interface {
	Classify(close, ma20, ma200 decimal.Decimal, ma20Ready, ma200Ready bool) Regime
}

// RegimeClassifierFunc adapts a function to a RegimeClassifier.
type RegimeClassifierFunc func(close, ma20, ma200 decimal.Decimal, ma20Ready, ma200Ready bool) Regime

func (f RegimeClassifierFunc) Classify(close, ma20, ma200 decimal.Decimal, ma20Ready, ma200Ready bool) Regime {
	return f(close, ma20, ma200, ma20Ready, ma200Ready)
}

// DefaultClassifier implements the fixed regime rule from spec §3: regime is
// neutral until both moving averages are ready.
var DefaultClassifier RegimeClassifier = RegimeClassifierFunc(func(close, ma20, ma200 decimal.Decimal, ma20Ready, ma200Ready bool) Regime {
	if !ma20Ready || !ma200Ready {
		return RegimeNeutral
	}
	if close.GreaterThan(ma20) && ma20.GreaterThan(ma200) {
		return RegimeLong
	}
	if close.LessThan(ma20) && ma20.LessThan(ma200) {
		return RegimeShort
	}
	return RegimeNeutral
})

// IndicatorSnapshot is written to the indicator stream and the
// latest-snapshot hash after every processed candle that has both MAs
// defined.
type IndicatorSnapshot struct {
	Sym      string
	TF       string
	TSMillis int64
	Close    decimal.Decimal
	MA20     decimal.Decimal
	MA20OK   bool
	MA200    decimal.Decimal
	MA200OK  bool
	Regime   Regime

	// IndicatorCandle extremes, present only while one is tracked.
	IndHigh   decimal.Decimal
	IndLow    decimal.Decimal
	IndTS     int64
	HasIndCdl bool
}

// IndicatorCandle is the most recent counter-colored candle within the
// active regime (spec §3 "IndicatorCandle").
type IndicatorCandle struct {
	Sym      string
	Side     Regime // long or short; never neutral
	High     decimal.Decimal
	Low      decimal.Decimal
	TSMillis int64
}

// ArmedState is the per-(sym,tf) armed trigger/stop pair (spec §3
// "ArmedState").
type ArmedState struct {
	Side    Regime
	Trigger decimal.Decimal
	Stop    decimal.Decimal
}
