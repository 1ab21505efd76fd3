// Package filters implements component C: per-symbol exchange trading
// filters (tick size, step size, min notional) and the decimal
// quantization helpers that sit beside them, grounded on the original
// implementation's tick_sizes.py and kasyap1234-delta-go's
// RoundToTickSizeWithDirection.
package filters

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SymbolFilters holds the trading constraints for one symbol.
type SymbolFilters struct {
	Sym         string
	TickSize    decimal.Decimal
	StepSize    decimal.Decimal
	MinQty      decimal.Decimal
	MinNotional decimal.Decimal
}

type exchangeInfoResponse struct {
	Symbols []exchangeInfoSymbol `json:"symbols"`
}

type exchangeInfoSymbol struct {
	Symbol         string           `json:"symbol"`
	PricePrecision int              `json:"pricePrecision"`
	QtyPrecision   int              `json:"quantityPrecision"`
	Filters        []exchangeFilter `json:"filters"`
}

type exchangeFilter struct {
	FilterType  string `json:"filterType"`
	TickSize    string `json:"tickSize"`
	StepSize    string `json:"stepSize"`
	MinQty      string `json:"minQty,omitempty"`
	MinNotional string `json:"minNotional,omitempty"`
	Notional    string `json:"notional,omitempty"`
}

// Loader fetches SymbolFilters from an exchange's exchangeInfo endpoint,
// falling back to a hard default when the fetch fails or a symbol's filter
// is missing or zero — mirroring tick_sizes.load_tick_sizes exactly.
type Loader struct {
	httpClient      *http.Client
	exchangeInfoURL string
	fallbackTick    decimal.Decimal
	fallbackStep    decimal.Decimal
	fallbackMinQty  decimal.Decimal
	fallbackNotion  decimal.Decimal
	log             *slog.Logger
}

func NewLoader(exchangeInfoURL string, fallbackTick, fallbackStep, fallbackMinQty, fallbackNotional decimal.Decimal, log *slog.Logger) *Loader {
	if log == nil {
		log = slog.Default()
	}
	return &Loader{
		httpClient:      &http.Client{Timeout: 10 * time.Second},
		exchangeInfoURL: exchangeInfoURL,
		fallbackTick:    fallbackTick,
		fallbackStep:    fallbackStep,
		fallbackMinQty:  fallbackMinQty,
		fallbackNotion:  fallbackNotional,
		log:             log,
	}
}

// Load fetches filters for the given symbols. On any fetch/parse failure it
// returns fallback filters for every requested symbol rather than erroring,
// exactly as the Python original does.
func (l *Loader) Load(ctx context.Context, symbols []string) map[string]SymbolFilters {
	want := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		want[strings.ToUpper(s)] = true
	}

	out := make(map[string]SymbolFilters, len(symbols))
	fallbackAll := func() map[string]SymbolFilters {
		for sym := range want {
			out[sym] = l.fallback(sym)
		}
		return out
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.exchangeInfoURL, nil)
	if err != nil {
		l.log.Warn("exchangeInfo request build failed, using fallback filters", "err", err)
		return fallbackAll()
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		l.log.Warn("exchangeInfo fetch failed, using fallback filters", "url", l.exchangeInfoURL, "err", err)
		return fallbackAll()
	}
	defer resp.Body.Close()

	var parsed exchangeInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		l.log.Warn("exchangeInfo decode failed, using fallback filters", "err", err)
		return fallbackAll()
	}

	for _, entry := range parsed.Symbols {
		sym := strings.ToUpper(entry.Symbol)
		if !want[sym] {
			continue
		}
		out[sym] = l.resolveOne(sym, entry)
	}
	for sym := range want {
		if _, ok := out[sym]; !ok {
			out[sym] = l.fallback(sym)
		}
	}
	return out
}

func (l *Loader) resolveOne(sym string, entry exchangeInfoSymbol) SymbolFilters {
	sf := SymbolFilters{Sym: sym}

	var tick, step, minQty, notion decimal.Decimal
	for _, f := range entry.Filters {
		switch f.FilterType {
		case "PRICE_FILTER":
			if v, err := decimal.NewFromString(f.TickSize); err == nil && v.GreaterThan(decimal.Zero) {
				tick = v
			}
		case "LOT_SIZE":
			if v, err := decimal.NewFromString(f.StepSize); err == nil && v.GreaterThan(decimal.Zero) {
				step = v
			}
			if v, err := decimal.NewFromString(f.MinQty); err == nil && v.GreaterThan(decimal.Zero) {
				minQty = v
			}
		case "MIN_NOTIONAL", "NOTIONAL":
			raw := f.MinNotional
			if raw == "" {
				raw = f.Notional
			}
			if v, err := decimal.NewFromString(raw); err == nil && v.GreaterThan(decimal.Zero) {
				notion = v
			}
		}
	}

	if tick.IsZero() {
		if entry.PricePrecision > 0 {
			tick = decimal.New(1, int32(-entry.PricePrecision))
		} else {
			tick = l.fallbackTick
		}
	}
	if step.IsZero() {
		if entry.QtyPrecision > 0 {
			step = decimal.New(1, int32(-entry.QtyPrecision))
		} else {
			step = l.fallbackStep
		}
	}
	if notion.IsZero() {
		notion = l.fallbackNotion
	}
	if minQty.IsZero() {
		minQty = l.fallbackMinQty
	}

	sf.TickSize, sf.StepSize, sf.MinQty, sf.MinNotional = tick, step, minQty, notion
	return sf
}

func (l *Loader) fallback(sym string) SymbolFilters {
	return SymbolFilters{Sym: sym, TickSize: l.fallbackTick, StepSize: l.fallbackStep, MinQty: l.fallbackMinQty, MinNotional: l.fallbackNotion}
}

// QuantizeFloor snaps value down to the nearest multiple of tick.
func QuantizeFloor(value, tick decimal.Decimal) decimal.Decimal {
	if tick.IsZero() {
		return value
	}
	return value.Div(tick).Floor().Mul(tick)
}

// QuantizeCeil snaps value up to the nearest multiple of tick.
func QuantizeCeil(value, tick decimal.Decimal) decimal.Decimal {
	if tick.IsZero() {
		return value
	}
	return value.Div(tick).Ceil().Mul(tick)
}

// QuantizeRound snaps value to the nearest multiple of tick (used for
// quantity/step rounding where no directional bias is required).
func QuantizeRound(value, step decimal.Decimal) decimal.Decimal {
	if step.IsZero() {
		return value
	}
	return value.DivRound(step, 0).Mul(step)
}

// Idempotent reports whether quantizing an already-quantized value again
// (at the given tick) is a no-op, the property asserted in spec §8.
func Idempotent(value, tick decimal.Decimal, floor bool) bool {
	q := value
	if floor {
		q = QuantizeFloor(value, tick)
	} else {
		q = QuantizeCeil(value, tick)
	}
	q2 := q
	if floor {
		q2 = QuantizeFloor(q, tick)
	} else {
		q2 = QuantizeCeil(q, tick)
	}
	return q.Equal(q2)
}
