package state

import (
	"context"
	"log/slog"
	"testing"

	"futurespipeline/internal/model"
	"futurespipeline/internal/streams"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := streams.New(streams.Config{Addr: mr.Addr(), ConsumerGroup: "test", ConsumerName: "t1"}, slog.Default())
	if err != nil {
		t.Fatalf("streams.New: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return New(client), mr
}

func TestMarkProcessedIsIdempotent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	first, err := s.MarkProcessed(ctx, "bot1", "BTCUSDT:100:long")
	if err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}
	if !first {
		t.Fatal("expected first MarkProcessed call to report newly added")
	}

	second, err := s.MarkProcessed(ctx, "bot1", "BTCUSDT:100:long")
	if err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}
	if second {
		t.Fatal("expected repeated MarkProcessed to report already processed")
	}

	ok, err := s.IsProcessed(ctx, "bot1", "BTCUSDT:100:long")
	if err != nil {
		t.Fatalf("IsProcessed: %v", err)
	}
	if !ok {
		t.Error("expected signal to be marked processed")
	}
}

func TestBotStateRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	st := &model.BotState{
		BotID: "bot1", Sym: "BTCUSDT", LastSignalID: "BTCUSDT:1:long",
		ArmedEntryOrderID: "E1", BracketIDs: []string{"SL1", "TP1"},
		PositionSide: model.RegimeLong, PositionQty: decimal.NewFromInt(1), AvgEntryPrice: decimal.NewFromInt(100),
	}
	if err := s.SaveBotState(ctx, st); err != nil {
		t.Fatalf("SaveBotState: %v", err)
	}

	got, err := s.LoadBotState(ctx, "bot1")
	if err != nil {
		t.Fatalf("LoadBotState: %v", err)
	}
	if got.ArmedEntryOrderID != "E1" || len(got.BracketIDs) != 2 {
		t.Errorf("unexpected round-tripped state: %+v", got)
	}
	if !got.PositionQty.Equal(decimal.NewFromInt(1)) {
		t.Errorf("position qty = %s, want 1", got.PositionQty)
	}
}

func TestTrackUntrackOrder(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.TrackOrder(ctx, "bot1", "E1", 1); err != nil {
		t.Fatalf("TrackOrder: %v", err)
	}
	ids, err := s.TrackedOrders(ctx, "bot1")
	if err != nil || len(ids) != 1 || ids[0] != "E1" {
		t.Fatalf("TrackedOrders = %v, %v", ids, err)
	}

	if err := s.UntrackOrder(ctx, "bot1", "E1"); err != nil {
		t.Fatalf("UntrackOrder: %v", err)
	}
	ids, err = s.TrackedOrders(ctx, "bot1")
	if err != nil || len(ids) != 0 {
		t.Fatalf("expected no tracked orders after untrack, got %v, %v", ids, err)
	}
}

func TestBotIDsForSymbol(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	mr.SAdd("sym:bots:BTCUSDT", "bot1", "bot2")

	ids, err := s.BotIDsForSymbol(ctx, "BTCUSDT")
	if err != nil {
		t.Fatalf("BotIDsForSymbol: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("expected 2 bot ids, got %v", ids)
	}
}
