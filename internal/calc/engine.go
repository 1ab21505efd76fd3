// Package calc implements component E: the per-(symbol,timeframe)
// calculator that derives MA20/MA200, classifies regime, tracks the
// indicator candle, and emits Arm/Disarm signals (spec §4.E).
package calc

import (
	"context"
	"fmt"

	"futurespipeline/internal/exchange/filters"
	"futurespipeline/internal/model"

	"github.com/shopspring/decimal"
)

const (
	ma20Period  = 20
	ma200Period = 200
	ringCap     = 200
)

// TickSource resolves the tick size used to quantize a newly armed
// trigger/stop pair, implemented by exchange/filters in production.
type TickSource interface {
	TickSize(ctx context.Context, sym string) (decimal.Decimal, error)
}

// Engine is a single-goroutine, single-(sym,tf) calculator. Callers feed it
// closed candles via Process and read emitted signals/snapshots off the
// returned values — it never blocks and holds no internal goroutines,
// mirroring the teacher's single-goroutine indicator.Engine design.
type Engine struct {
	sym string
	tf  string

	classifier model.RegimeClassifier
	ticks      TickSource

	closes *closeRing
	regime model.Regime

	indCandle  *model.IndicatorCandle
	armed      *model.ArmedState
	pendingArm bool
}

// NewEngine constructs a calculator for one (sym,tf) pair.
func NewEngine(sym, tf string, classifier model.RegimeClassifier, ticks TickSource) *Engine {
	if classifier == nil {
		classifier = model.DefaultClassifier
	}
	return &Engine{
		sym:        sym,
		tf:         tf,
		classifier: classifier,
		ticks:      ticks,
		closes:     newCloseRing(ringCap),
		regime:     model.RegimeNeutral,
	}
}

// Result is everything Process produces for one candle.
type Result struct {
	Snapshot     model.IndicatorSnapshot
	HasSnapshot  bool
	Signals      []model.Signal
}

// Process folds one closed candle into the engine and returns the
// indicator snapshot (if both MAs are ready) plus any Arm/Disarm signals.
func (e *Engine) Process(ctx context.Context, c model.Candle) (Result, error) {
	e.closes.Push(c.Close)
	ma20, ma20OK := e.closes.MA(ma20Period)
	ma200, ma200OK := e.closes.MA(ma200Period)

	newRegime := e.classifier.Classify(c.Close, ma20, ma200, ma20OK, ma200OK)

	var signals []model.Signal
	if newRegime != e.regime {
		if sig, ok := e.disarmOnTransition(newRegime); ok {
			signals = append(signals, sig)
		}
		e.indCandle = nil
		e.regime = newRegime
	}

	if e.regime == model.RegimeLong || e.regime == model.RegimeShort {
		if c.Color == counterColor(e.regime) {
			sig, err := e.updateIndicatorCandle(ctx, c)
			if err != nil {
				return Result{}, err
			}
			signals = append(signals, sig...)
		}
	}

	res := Result{Signals: signals}
	if ma20OK && ma200OK {
		res.HasSnapshot = true
		res.Snapshot = model.IndicatorSnapshot{
			Sym: e.sym, TF: e.tf, TSMillis: c.TSMillis,
			Close: c.Close, MA20: ma20, MA20OK: ma20OK, MA200: ma200, MA200OK: ma200OK,
			Regime: e.regime,
		}
		if e.indCandle != nil {
			res.Snapshot.HasIndCdl = true
			res.Snapshot.IndHigh = e.indCandle.High
			res.Snapshot.IndLow = e.indCandle.Low
			res.Snapshot.IndTS = e.indCandle.TSMillis
		}
	}
	return res, nil
}

// disarmOnTransition emits a Disarm when a regime change cancels an
// outstanding ArmedState. A transition directly between long and short
// (skipping neutral) is a "direct flip": disarm fires immediately with a
// reason containing "(direct-flip)", and the new regime's arm is deferred
// to its next qualifying (counter-colored) candle — see spec §4.E and
// §8 scenario 2.
func (e *Engine) disarmOnTransition(newRegime model.Regime) (model.Signal, bool) {
	if e.armed == nil {
		e.pendingArm = false
		return model.Signal{}, false
	}

	reason := "regime_flip"
	if isDirectFlip(e.regime, newRegime) {
		reason = "regime_flip (direct-flip)"
		e.pendingArm = true
	} else {
		e.pendingArm = false
	}

	sig := model.Signal{
		Kind: model.SignalDisarm, Sym: e.sym, TF: e.tf,
		IndTS: e.indCandle.TSMillis, Side: e.armed.Side, PrevSide: e.regime, Reason: reason,
	}
	e.armed = nil
	return sig, true
}

func isDirectFlip(from, to model.Regime) bool {
	return (from == model.RegimeLong && to == model.RegimeShort) ||
		(from == model.RegimeShort && to == model.RegimeLong)
}

// updateIndicatorCandle re-tracks the indicator candle to c (the most
// recent counter-colored candle in the active regime), per spec step 4.
// An ARM is only emitted for it when the regime side isn't already armed
// ("long→long | new⟂ | ARM(long) only if not already armed" — staying
// armed through a refreshed indicator candle never re-fires a signal).
func (e *Engine) updateIndicatorCandle(ctx context.Context, c model.Candle) ([]model.Signal, error) {
	e.indCandle = &model.IndicatorCandle{Sym: e.sym, Side: e.regime, High: c.High, Low: c.Low, TSMillis: c.TSMillis}
	e.pendingArm = false

	if e.armed != nil {
		return nil, nil
	}

	tick, err := e.ticks.TickSize(ctx, e.sym)
	if err != nil {
		return nil, fmt.Errorf("tick size for %s: %w", e.sym, err)
	}

	trigger, stop := computeTriggerStop(e.regime, c.High, c.Low, tick)
	e.armed = &model.ArmedState{Side: e.regime, Trigger: trigger, Stop: stop}
	return []model.Signal{{
		Kind: model.SignalArm, Sym: e.sym, TF: e.tf,
		IndTS: c.TSMillis, Side: e.regime, Trigger: trigger, Stop: stop,
	}}, nil
}

// computeTriggerStop applies the exact numeric semantics from spec §4.E:
// long armed trigger = ind_high + tick (floored to the tick grid), stop =
// ind_low - tick (ceiled); short is the mirror image.
func computeTriggerStop(side model.Regime, indHigh, indLow, tick decimal.Decimal) (trigger, stop decimal.Decimal) {
	if side == model.RegimeLong {
		trigger = filters.QuantizeFloor(indHigh.Add(tick), tick)
		stop = filters.QuantizeCeil(indLow.Sub(tick), tick)
		return
	}
	trigger = filters.QuantizeCeil(indLow.Sub(tick), tick)
	stop = filters.QuantizeFloor(indHigh.Add(tick), tick)
	return
}

func counterColor(side model.Regime) model.Color {
	if side == model.RegimeLong {
		return model.ColorRed
	}
	return model.ColorGreen
}
