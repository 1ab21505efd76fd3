package calc

import (
	"context"
	"testing"

	"futurespipeline/internal/model"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fixedTickSource struct{ tick decimal.Decimal }

func (f fixedTickSource) TickSize(ctx context.Context, sym string) (decimal.Decimal, error) {
	return f.tick, nil
}

func candle(sym string, o, h, l, c string, ts int64) model.Candle {
	open, high, low, close := dec(o), dec(h), dec(l), dec(c)
	return model.Candle{Sym: sym, TF: "2m", TSMillis: ts, Open: open, High: high, Low: low, Close: close, Color: model.DeriveColor(open, close)}
}

// regimeScript drives the classifier through an explicit regime sequence
// regardless of MA inputs, isolating the arm/disarm state machine from MA
// math for deterministic tests (spec §9 "Regime-rule pluggability").
type regimeScript struct {
	seq []model.Regime
	i   int
}

func (r *regimeScript) Classify(close, ma20, ma200 decimal.Decimal, ma20OK, ma200OK bool) model.Regime {
	if r.i >= len(r.seq) {
		return r.seq[len(r.seq)-1]
	}
	v := r.seq[r.i]
	r.i++
	return v
}

func TestEngineArmsOnFirstQualifyingCandleWithCorrectTriggerStop(t *testing.T) {
	script := &regimeScript{seq: []model.Regime{model.RegimeLong}}
	eng := NewEngine("BTCUSDT", "2m", script, fixedTickSource{tick: dec("0.01")})

	// First candle after entering long regime is red: it both becomes the
	// indicator candle and arms immediately (step 4 precedes step 5).
	res, err := eng.Process(context.Background(), candle("BTCUSDT", "10.0", "10.1", "9.9", "9.85", 0))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(res.Signals) != 1 {
		t.Fatalf("expected exactly one signal on the first qualifying candle, got %d", len(res.Signals))
	}
	arm := res.Signals[0]
	if arm.Kind != model.SignalArm {
		t.Fatalf("expected an Arm signal, got %s", arm.Kind)
	}
	if !arm.Trigger.Equal(dec("10.11")) {
		t.Errorf("trigger = %s, want 10.11 (ind_high 10.1 + tick 0.01)", arm.Trigger)
	}
	if !arm.Stop.Equal(dec("9.89")) {
		t.Errorf("stop = %s, want 9.89 (ind_low 9.9 - tick 0.01)", arm.Stop)
	}
}

// TestEngineDoesNotReArmWhileAlreadyArmed covers the transition table row
// "long→long | new⟂ | ARM(long) only if not already armed": further
// counter-colored candles while the regime stays long and an ArmedState
// already exists update the tracked indicator candle but emit nothing.
func TestEngineDoesNotReArmWhileAlreadyArmed(t *testing.T) {
	script := &regimeScript{seq: []model.Regime{model.RegimeLong, model.RegimeLong, model.RegimeLong}}
	eng := NewEngine("BTCUSDT", "2m", script, fixedTickSource{tick: dec("0.01")})

	res, err := eng.Process(context.Background(), candle("BTCUSDT", "10.0", "10.1", "9.9", "9.85", 0))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(res.Signals) != 1 || res.Signals[0].Kind != model.SignalArm {
		t.Fatalf("expected the first qualifying candle to arm, got %+v", res.Signals)
	}
	firstArm := eng.armed

	for i := 1; i < 3; i++ {
		res, err := eng.Process(context.Background(), candle("BTCUSDT", "10.0", "10.3", "9.8", "9.95", int64(i)))
		if err != nil {
			t.Fatalf("process: %v", err)
		}
		if len(res.Signals) != 0 {
			t.Errorf("candle %d: expected no signal while already armed, got %+v", i, res.Signals)
		}
	}

	if eng.armed == nil || !eng.armed.Trigger.Equal(firstArm.Trigger) || !eng.armed.Stop.Equal(firstArm.Stop) {
		t.Error("expected armed trigger/stop to remain unchanged while no re-arm occurs")
	}
	if eng.indCandle.High.Equal(dec("10.1")) {
		t.Error("expected indicator candle high to track the most recent counter-colored candle even without re-arming")
	}
}

func TestEngineDirectFlipDisarmsWithReason(t *testing.T) {
	script := &regimeScript{seq: []model.Regime{model.RegimeLong, model.RegimeLong, model.RegimeShort}}
	eng := NewEngine("BTCUSDT", "2m", script, fixedTickSource{tick: dec("0.01")})

	if _, err := eng.Process(context.Background(), candle("BTCUSDT", "10", "10.1", "9.9", "9.85", 0)); err != nil {
		t.Fatalf("process: %v", err)
	}
	// Another counter-colored candle while already armed: indicator candle
	// refreshes but the existing ArmedState is left untouched (no re-arm).
	if _, err := eng.Process(context.Background(), candle("BTCUSDT", "10", "10.3", "9.8", "9.95", 1)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if eng.armed == nil {
		t.Fatal("expected engine to be armed before the flip")
	}

	res, err := eng.Process(context.Background(), candle("BTCUSDT", "9.9", "10", "9.7", "9.75", 2))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(res.Signals) == 0 {
		t.Fatal("expected a disarm signal on direct flip")
	}
	disarm := res.Signals[0]
	if disarm.Kind != model.SignalDisarm {
		t.Fatalf("expected Disarm, got %s", disarm.Kind)
	}
	if disarm.Reason != "regime_flip (direct-flip)" {
		t.Errorf("reason = %q, want direct-flip marker", disarm.Reason)
	}
	if eng.armed != nil {
		t.Error("expected armed state cleared after disarm")
	}
}
