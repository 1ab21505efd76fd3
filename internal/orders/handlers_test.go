package orders

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"futurespipeline/internal/exchange"
	"futurespipeline/internal/exchange/filters"
	"futurespipeline/internal/exchange/paper"
	"futurespipeline/internal/metrics"
	"futurespipeline/internal/model"
	"futurespipeline/internal/signalpoller"
	"futurespipeline/internal/state"
	"futurespipeline/internal/streams"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

func defaultFilter() filters.SymbolFilters {
	return filters.SymbolFilters{Sym: "BTCUSDT", TickSize: decimal.NewFromFloat(0.01), StepSize: decimal.NewFromFloat(0.001), MinQty: decimal.NewFromFloat(0.001), MinNotional: decimal.NewFromInt(5)}
}

func newTestStore(t *testing.T) (*state.Store, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := streams.New(streams.Config{Addr: mr.Addr(), ConsumerGroup: "test", ConsumerName: "t1"}, slog.Default())
	if err != nil {
		t.Fatalf("streams.New: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return state.New(client), client.Raw()
}

func activeBotConfig() model.BotConfig {
	return model.BotConfig{
		BotID: "bot1", UserID: "u1", Sym: "BTCUSDT", Status: model.BotStatusActive, SideMode: model.SideModeBoth,
		RiskPerTrade: decimal.NewFromFloat(0.01), Leverage: 1, TPRatio: decimal.NewFromFloat(1.5),
	}
}

func armPayload() signalpoller.ArmPayload {
	return signalpoller.ArmPayload{
		BotID: "bot1", SignalID: "BTCUSDT:100:long", Sym: "BTCUSDT", Side: model.RegimeLong,
		Trigger: "10.31", Stop: "9.79",
	}
}

// writeBotConfig seeds the bot:cfg:{id} hash the same way cmd/botconfig's
// sync path does, since state.Store exposes no write path for bot config in
// production (owned by cmd/botconfig, spec §3 "read-only for the core").
func writeBotConfig(ctx context.Context, rdb *goredis.Client, cfg model.BotConfig) error {
	return rdb.HSet(ctx, "bot:cfg:"+cfg.BotID, map[string]interface{}{
		"user_id": cfg.UserID, "sym": cfg.Sym, "status": string(cfg.Status), "side_mode": string(cfg.SideMode),
		"risk_per_trade": cfg.RiskPerTrade.String(), "leverage": "1", "tp_ratio": cfg.TPRatio.String(),
	}).Err()
}

// failingExchange wraps paper.Client but can be told to fail the Nth
// PlaceOrder call, letting tests exercise partial bracket failure (spec §8
// scenario 5) without a real exchange.
type failingExchange struct {
	*paper.Client
	failOnCall int
	calls      int
}

func (f *failingExchange) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (exchange.Order, error) {
	f.calls++
	if f.calls == f.failOnCall {
		return exchange.Order{}, errors.New("simulated exchange rejection")
	}
	return f.Client.PlaceOrder(ctx, req)
}

func TestOnArmDuplicateSignalIsSkipped(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	ex := paper.New(defaultFilter())
	ex.SetBalance(defaultQuoteAsset, decimal.NewFromInt(1000))

	h := New(ex, store, nil, metrics.New(), slog.Default())
	p := armPayload()

	if _, err := store.MarkProcessed(ctx, p.BotID, p.SignalID); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}

	out := h.onArm(ctx, p)
	if !out.OK || out.Skipped != "duplicate" {
		t.Errorf("expected {ok:true, skipped:duplicate}, got %+v", out)
	}
}

func TestOnArmMissingBotConfigFails(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	ex := paper.New(defaultFilter())
	ex.SetBalance(defaultQuoteAsset, decimal.NewFromInt(1000))

	h := New(ex, store, nil, metrics.New(), slog.Default())
	out := h.onArm(ctx, armPayload())
	if out.OK || out.Error != "bot config not found" {
		t.Errorf("expected bot config not found error, got %+v", out)
	}
}

func TestOnArmPartialBracketFailureLeavesEntryTracked(t *testing.T) {
	ctx := context.Background()
	store, raw := newTestStore(t)
	base := paper.New(defaultFilter())
	base.SetBalance(defaultQuoteAsset, decimal.NewFromInt(1000))
	ex := &failingExchange{Client: base, failOnCall: 2} // entry succeeds, SL bracket fails

	if err := writeBotConfig(ctx, raw, activeBotConfig()); err != nil {
		t.Fatalf("writeBotConfig: %v", err)
	}

	h := New(ex, store, nil, metrics.New(), slog.Default())
	out := h.onArm(ctx, armPayload())

	if out.OK {
		t.Fatal("expected partial bracket failure to report not-ok")
	}
	if out.EntryID == "" {
		t.Error("expected entry id to survive a bracket failure")
	}

	tracked, err := store.TrackedOrders(ctx, "bot1")
	if err != nil {
		t.Fatalf("TrackedOrders: %v", err)
	}
	if len(tracked) != 1 {
		t.Errorf("expected exactly the entry order still tracked, got %v", tracked)
	}

	processed, err := store.IsProcessed(ctx, "bot1", armPayload().SignalID)
	if err != nil {
		t.Fatalf("IsProcessed: %v", err)
	}
	if processed {
		t.Error("expected signal not marked processed when brackets fail")
	}
}

func TestOnArmSignalReturnsErrorOnEntryFailedForRetry(t *testing.T) {
	ctx := context.Background()
	store, raw := newTestStore(t)
	base := paper.New(defaultFilter())
	base.SetBalance(defaultQuoteAsset, decimal.NewFromInt(1000))
	ex := &failingExchange{Client: base, failOnCall: 1} // entry itself fails

	if err := writeBotConfig(ctx, raw, activeBotConfig()); err != nil {
		t.Fatalf("writeBotConfig: %v", err)
	}

	h := New(ex, store, nil, metrics.New(), slog.Default())
	err := h.OnArmSignal(ctx, armPayload())
	if err == nil {
		t.Fatal("expected non-nil error on entry_failed so the task queue retries")
	}
}
