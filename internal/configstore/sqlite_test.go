package configstore

import (
	"context"
	"testing"

	"futurespipeline/internal/model"

	"github.com/shopspring/decimal"
)

func TestSQLiteStoreUpsertIsIdempotentOnBotAndSignal(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	st := model.OrderState{
		BotID: "bot1", SignalID: "BTCUSDT:100:long", OrderID: "E1", Status: model.OrderStateArmed,
		Side: model.RegimeLong, Symbol: "BTCUSDT", TriggerPrice: decimal.NewFromFloat(10.31),
		StopPrice: decimal.NewFromFloat(9.79), Quantity: decimal.NewFromInt(1),
	}
	if err := store.Upsert(ctx, st); err != nil {
		t.Fatalf("Upsert (insert): %v", err)
	}

	st.Status = model.OrderStateFilled
	st.FilledQuantity = decimal.NewFromInt(1)
	if err := store.Upsert(ctx, st); err != nil {
		t.Fatalf("Upsert (update): %v", err)
	}

	var count int
	if err := store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM order_states WHERE bot_id = ? AND signal_id = ?`, st.BotID, st.SignalID).Scan(&count); err != nil {
		t.Fatalf("count query: %v", err)
	}
	if count != 1 {
		t.Errorf("expected exactly one row after two upserts on the same (bot_id, signal_id), got %d", count)
	}

	var status string
	if err := store.db.QueryRowContext(ctx, `SELECT status FROM order_states WHERE bot_id = ? AND signal_id = ?`, st.BotID, st.SignalID).Scan(&status); err != nil {
		t.Fatalf("status query: %v", err)
	}
	if status != string(model.OrderStateFilled) {
		t.Errorf("status = %s, want filled (the update should have overwritten the insert)", status)
	}
}
