package calc

import (
	"futurespipeline/internal/model"

	"github.com/shopspring/decimal"
)

// EngineSnapshot is the checkpointed state of one Engine, grounded on the
// teacher's indicator.EngineSnapshot (periodic Redis checkpoint, restored
// on restart to avoid recomputing MAs from full history).
type EngineSnapshot struct {
	Sym  string
	TF   string

	RingBuf   []decimal.Decimal
	RingIdx   int
	RingCount int

	Regime     string
	PendingArm bool

	IndCandle *indCandleSnapshot
	Armed     *armedSnapshot
}

type indCandleSnapshot struct {
	Side     string
	High     decimal.Decimal
	Low      decimal.Decimal
	TSMillis int64
}

type armedSnapshot struct {
	Side    string
	Trigger decimal.Decimal
	Stop    decimal.Decimal
}

// Snapshot captures the engine's current state for checkpointing.
func (e *Engine) Snapshot() EngineSnapshot {
	snap := EngineSnapshot{
		Sym: e.sym, TF: e.tf,
		RingBuf: append([]decimal.Decimal(nil), e.closes.buf...), RingIdx: e.closes.idx, RingCount: e.closes.count,
		Regime: string(e.regime), PendingArm: e.pendingArm,
	}
	if e.indCandle != nil {
		snap.IndCandle = &indCandleSnapshot{
			Side: string(e.indCandle.Side), High: e.indCandle.High, Low: e.indCandle.Low, TSMillis: e.indCandle.TSMillis,
		}
	}
	if e.armed != nil {
		snap.Armed = &armedSnapshot{Side: string(e.armed.Side), Trigger: e.armed.Trigger, Stop: e.armed.Stop}
	}
	return snap
}

// Restore reloads state from a checkpoint, tolerant of a ring-capacity
// mismatch (matching the teacher's type+period-matched restore tolerance).
func (e *Engine) Restore(snap EngineSnapshot) {
	if len(snap.RingBuf) == e.closes.cap {
		e.closes.buf = append([]decimal.Decimal(nil), snap.RingBuf...)
		e.closes.idx = snap.RingIdx
		e.closes.count = snap.RingCount
	}
	e.regime = model.Regime(snap.Regime)
	e.pendingArm = snap.PendingArm
	if snap.IndCandle != nil {
		e.indCandle = &model.IndicatorCandle{
			Sym: e.sym, Side: model.Regime(snap.IndCandle.Side),
			High: snap.IndCandle.High, Low: snap.IndCandle.Low, TSMillis: snap.IndCandle.TSMillis,
		}
	}
	if snap.Armed != nil {
		e.armed = &model.ArmedState{Side: model.Regime(snap.Armed.Side), Trigger: snap.Armed.Trigger, Stop: snap.Armed.Stop}
	}
}
