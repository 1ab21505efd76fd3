package reconcile

import (
	"context"
	"log/slog"
	"testing"

	"futurespipeline/internal/exchange"
	"futurespipeline/internal/exchange/filters"
	"futurespipeline/internal/exchange/paper"
	"futurespipeline/internal/model"
	"futurespipeline/internal/state"
	"futurespipeline/internal/streams"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
)

func newTestStore(t *testing.T) (*state.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := streams.New(streams.Config{Addr: mr.Addr(), ConsumerGroup: "test", ConsumerName: "t1"}, slog.Default())
	if err != nil {
		t.Fatalf("streams.New: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return state.New(client), mr
}

func defaultFilter() filters.SymbolFilters {
	return filters.SymbolFilters{Sym: "BTCUSDT", TickSize: decimal.NewFromFloat(0.01), StepSize: decimal.NewFromFloat(0.001), MinQty: decimal.NewFromFloat(0.001), MinNotional: decimal.NewFromInt(5)}
}

// TestReconcileBotUntracksFilledOrder covers spec §8 scenario 6: an order
// tracked locally but no longer open on the exchange (filled) is untracked
// without being reported as an inconsistency.
func TestReconcileBotUntracksFilledOrder(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	ex := paper.New(defaultFilter())

	order, err := ex.PlaceOrder(ctx, exchange.OrderRequest{
		Sym: "BTCUSDT", Side: exchange.SideBuy, Type: exchange.OrderTypeStopMarket,
		Quantity: decimal.NewFromInt(1), StopPrice: decimal.NewFromInt(100), ClientOrderID: "c1",
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if err := store.TrackOrder(ctx, "bot1", order.OrderID, 1); err != nil {
		t.Fatalf("TrackOrder: %v", err)
	}
	ex.Fill(order.OrderID) // now terminal, no longer in open orders

	r := New(ex, store, nil, slog.Default())
	res := r.ReconcileBot(ctx, "bot1", "BTCUSDT")
	if !res.OK {
		t.Fatalf("expected ok result, got err=%s", res.Err)
	}
	if len(res.Inconsistencies) != 0 {
		t.Errorf("expected no inconsistencies for a naturally-filled order, got %v", res.Inconsistencies)
	}

	tracked, err := store.TrackedOrders(ctx, "bot1")
	if err != nil {
		t.Fatalf("TrackedOrders: %v", err)
	}
	if len(tracked) != 0 {
		t.Errorf("expected order untracked after fill, still tracked: %v", tracked)
	}
}

func TestReconcileBotReportsMissingArmedEntry(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	ex := paper.New(defaultFilter())

	st := &model.BotState{BotID: "bot1", Sym: "BTCUSDT", ArmedEntryOrderID: "GHOST-1"}
	if err := store.SaveBotState(ctx, st); err != nil {
		t.Fatalf("SaveBotState: %v", err)
	}

	r := New(ex, store, nil, slog.Default())
	res := r.ReconcileBot(ctx, "bot1", "BTCUSDT")
	if !res.OK {
		t.Fatalf("expected ok result, got err=%s", res.Err)
	}
	if len(res.Inconsistencies) != 1 || res.Inconsistencies[0] != "armed_entry_order_id GHOST-1 not in open orders" {
		t.Errorf("unexpected inconsistencies: %v", res.Inconsistencies)
	}
}

func TestReconcileBotUpdatesPositionFromExchange(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	ex := paper.New(defaultFilter())
	ex.SetPosition(exchange.Position{Sym: "BTCUSDT", PositionAmt: decimal.NewFromFloat(-2.5), EntryPrice: decimal.NewFromInt(100)})

	r := New(ex, store, nil, slog.Default())
	res := r.ReconcileBot(ctx, "bot1", "BTCUSDT")
	if !res.OK {
		t.Fatalf("expected ok result, got err=%s", res.Err)
	}

	st, err := store.LoadBotState(ctx, "bot1")
	if err != nil {
		t.Fatalf("LoadBotState: %v", err)
	}
	if st.PositionSide != model.RegimeShort {
		t.Errorf("position side = %s, want short", st.PositionSide)
	}
	if !st.PositionQty.Equal(decimal.NewFromFloat(2.5)) {
		t.Errorf("position qty = %s, want 2.5", st.PositionQty)
	}
}

func TestSweepSymbolContinuesPastPerBotErrors(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)
	ex := paper.New(defaultFilter())
	mr.SAdd("sym:bots:BTCUSDT", "bot1", "bot2")
	// bot2's state key holds a plain string, so loading its state fails.
	mr.Set("bot:state:bot2", "not-a-hash")

	r := New(ex, store, nil, slog.Default())
	res := r.SweepSymbol(ctx, store, "BTCUSDT")
	if !res.OK {
		t.Fatal("expected sweep to report ok even if an individual bot fails")
	}
	if len(res.Results) != 2 {
		t.Errorf("expected 2 results, got %d", len(res.Results))
	}
	failed := 0
	for _, br := range res.Results {
		if !br.OK {
			failed++
		}
	}
	if failed != 1 {
		t.Errorf("expected exactly 1 failed bot result, got %d", failed)
	}
}
