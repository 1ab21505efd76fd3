package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Color is the derived direction of a candle body.
type Color string

const (
	ColorGreen Color = "green"
	ColorRed   Color = "red"
)

// Candle is a single OHLC bar for one (symbol, timeframe) pair.
//
// TSMillis is the candle's bucket-start timestamp. When the upstream
// message omits a ts field, the stream-id-derived timestamp is used as a
// fallback (see streams.decodeMessage).
type Candle struct {
	Sym      string
	TF       string
	TSMillis int64
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
	Color    Color
}

// Key returns "SYM|TF", the grouping key used by the calculator and poller.
func (c *Candle) Key() string {
	return c.Sym + "|" + c.TF
}

// DeriveColor returns green iff close >= open, per spec.
func DeriveColor(open, close decimal.Decimal) Color {
	if close.GreaterThanOrEqual(open) {
		return ColorGreen
	}
	return ColorRed
}

// Time returns the candle timestamp as a UTC time.Time.
func (c *Candle) Time() time.Time {
	return time.UnixMilli(c.TSMillis).UTC()
}

func (c *Candle) String() string {
	return fmt.Sprintf("Candle{%s ts=%d O=%s H=%s L=%s C=%s %s}",
		c.Key(), c.TSMillis, c.Open, c.High, c.Low, c.Close, c.Color)
}
