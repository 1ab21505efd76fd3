package signalpoller

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"futurespipeline/internal/model"
	"futurespipeline/internal/state"
	"futurespipeline/internal/streams"
	"futurespipeline/internal/taskqueue"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

// recordingQueue is a taskqueue.Queue fake that records every enqueue call
// instead of dispatching to a real handler, letting tests assert fan-out
// without needing internal/orders.
type recordingQueue struct {
	enqueued []enqueued
	failOn   string // task name to fail enqueuing, empty means never fail
}

type enqueued struct {
	task    string
	payload any
}

func (q *recordingQueue) Register(task string, h taskqueue.Handler) {}

var errQueueFull = errors.New("queue full")

func (q *recordingQueue) Enqueue(ctx context.Context, task string, payload any) error {
	if q.failOn != "" && task == q.failOn {
		return errQueueFull
	}
	q.enqueued = append(q.enqueued, enqueued{task: task, payload: payload})
	return nil
}

func newTestStoreAndRaw(t *testing.T) (*state.Store, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := streams.New(streams.Config{Addr: mr.Addr(), ConsumerGroup: "test", ConsumerName: "t1"}, slog.Default())
	if err != nil {
		t.Fatalf("streams.New: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return state.New(client), client.Raw()
}

func seedBotConfig(t *testing.T, rdb *goredis.Client, cfg model.BotConfig) {
	t.Helper()
	ctx := context.Background()
	if err := rdb.HSet(ctx, "bot:cfg:"+cfg.BotID, map[string]interface{}{
		"user_id": cfg.UserID, "sym": cfg.Sym, "status": string(cfg.Status), "side_mode": string(cfg.SideMode),
		"risk_per_trade": cfg.RiskPerTrade.String(), "leverage": "1", "tp_ratio": cfg.TPRatio.String(),
	}).Err(); err != nil {
		t.Fatalf("seed bot config: %v", err)
	}
	if err := rdb.SAdd(ctx, "sym:bots:"+cfg.Sym, cfg.BotID).Err(); err != nil {
		t.Fatalf("seed sym index: %v", err)
	}
}

func TestHandleEntryFansOutOnlyToEligibleBots(t *testing.T) {
	store, raw := newTestStoreAndRaw(t)
	seedBotConfig(t, raw, model.BotConfig{BotID: "long-bot", Sym: "BTCUSDT", Status: model.BotStatusActive, SideMode: model.SideModeLongOnly, RiskPerTrade: decimal.NewFromFloat(0.01), TPRatio: decimal.NewFromFloat(1.5)})
	seedBotConfig(t, raw, model.BotConfig{BotID: "paused-bot", Sym: "BTCUSDT", Status: model.BotStatusPaused, SideMode: model.SideModeBoth, RiskPerTrade: decimal.NewFromFloat(0.01), TPRatio: decimal.NewFromFloat(1.5)})
	seedBotConfig(t, raw, model.BotConfig{BotID: "short-only-bot", Sym: "BTCUSDT", Status: model.BotStatusActive, SideMode: model.SideModeShortOnly, RiskPerTrade: decimal.NewFromFloat(0.01), TPRatio: decimal.NewFromFloat(1.5)})

	q := &recordingQueue{}
	p := New(nil, store, q, "grp", "c1", slog.Default())

	sig := model.Signal{Kind: model.SignalArm, Sym: "BTCUSDT", TF: "5m", Side: model.RegimeLong, Trigger: decimal.NewFromFloat(10.31), Stop: decimal.NewFromFloat(9.79)}
	if err := p.handleEntry(context.Background(), "1-0", sig); err != nil {
		t.Fatalf("handleEntry: %v", err)
	}

	if len(q.enqueued) != 1 {
		t.Fatalf("expected exactly 1 enqueue (long-bot only), got %d: %+v", len(q.enqueued), q.enqueued)
	}
	payload, ok := q.enqueued[0].payload.(ArmPayload)
	if !ok || payload.BotID != "long-bot" || q.enqueued[0].task != TaskArmSignal {
		t.Errorf("unexpected enqueued entry: %+v", q.enqueued[0])
	}
}

func TestHandleEntryDispatchesDisarmTask(t *testing.T) {
	store, raw := newTestStoreAndRaw(t)
	seedBotConfig(t, raw, model.BotConfig{BotID: "bot1", Sym: "BTCUSDT", Status: model.BotStatusActive, SideMode: model.SideModeBoth, RiskPerTrade: decimal.NewFromFloat(0.01), TPRatio: decimal.NewFromFloat(1.5)})

	q := &recordingQueue{}
	p := New(nil, store, q, "grp", "c1", slog.Default())

	sig := model.Signal{Kind: model.SignalDisarm, Sym: "BTCUSDT", TF: "5m", Side: model.RegimeLong}
	if err := p.handleEntry(context.Background(), "1-0", sig); err != nil {
		t.Fatalf("handleEntry: %v", err)
	}
	if len(q.enqueued) != 1 || q.enqueued[0].task != TaskDisarmSignal {
		t.Fatalf("expected 1 disarm task enqueued, got %+v", q.enqueued)
	}
}

func TestHandleEntryPropagatesEnqueueFailure(t *testing.T) {
	store, raw := newTestStoreAndRaw(t)
	seedBotConfig(t, raw, model.BotConfig{BotID: "bot1", Sym: "BTCUSDT", Status: model.BotStatusActive, SideMode: model.SideModeBoth, RiskPerTrade: decimal.NewFromFloat(0.01), TPRatio: decimal.NewFromFloat(1.5)})

	q := &recordingQueue{failOn: TaskArmSignal}
	p := New(nil, store, q, "grp", "c1", slog.Default())

	sig := model.Signal{Kind: model.SignalArm, Sym: "BTCUSDT", TF: "5m", Side: model.RegimeLong}
	if err := p.handleEntry(context.Background(), "1-0", sig); err == nil {
		t.Fatal("expected handleEntry to propagate a full-queue error so the caller does not ack")
	}
}
