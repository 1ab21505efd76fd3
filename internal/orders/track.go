package orders

import (
	"context"
	"fmt"

	"futurespipeline/internal/exchange"
	"futurespipeline/internal/model"
	"futurespipeline/internal/plan"
	"futurespipeline/internal/state"

	"github.com/google/uuid"
)

func oppositeSide(s exchange.Side) exchange.Side {
	if s == exchange.SideBuy {
		return exchange.SideSell
	}
	return exchange.SideBuy
}

// PlaceEntryAndTrack places the stop-triggered entry order and tracks it
// for the bot, step 5 of on_arm_signal (spec §4.H).
func PlaceEntryAndTrack(ctx context.Context, ex exchange.Client, store *state.Store, botID string, pl plan.Plan, now float64) (string, error) {
	req := exchange.OrderRequest{
		Sym: pl.Sym, Side: pl.EntrySide, PositionSide: exchange.PositionSideBoth,
		Type: pl.EntryType, Quantity: pl.Qty, StopPrice: pl.EntryStopPrice,
		WorkingType: exchange.WorkingTypeMarkPrice, ClientOrderID: uuid.NewString(),
	}
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("entry request invalid: %w", err)
	}

	order, err := ex.PlaceOrder(ctx, req)
	if err != nil {
		return "", fmt.Errorf("place entry: %w", err)
	}
	if err := store.TrackOrder(ctx, botID, order.OrderID, now); err != nil {
		return order.OrderID, fmt.Errorf("track entry %s: %w", order.OrderID, err)
	}
	return order.OrderID, nil
}

// PlaceBracketsAndTrack places the SL then TP bracket orders, tracking each
// as soon as it is placed so a later failure still leaves earlier brackets
// tracked (spec §4.H step 6, §8 scenario 5 partial-failure semantics).
func PlaceBracketsAndTrack(ctx context.Context, ex exchange.Client, store *state.Store, botID string, pl plan.Plan, now float64) (placed []string, err error) {
	exitSide := oppositeSide(pl.EntrySide)

	slReq := exchange.OrderRequest{
		Sym: pl.Sym, Side: exitSide, PositionSide: exchange.PositionSideBoth,
		Type: exchange.OrderTypeStopMarket, Quantity: pl.Qty, StopPrice: pl.StopLossPrice,
		ReduceOnly: true, WorkingType: exchange.WorkingTypeMarkPrice, ClientOrderID: uuid.NewString(),
	}
	slOrder, err := ex.PlaceOrder(ctx, slReq)
	if err != nil {
		return placed, fmt.Errorf("place stop loss: %w", err)
	}
	if err := store.TrackOrder(ctx, botID, slOrder.OrderID, now); err != nil {
		return placed, fmt.Errorf("track stop loss %s: %w", slOrder.OrderID, err)
	}
	placed = append(placed, slOrder.OrderID)

	tpReq := exchange.OrderRequest{
		Sym: pl.Sym, Side: exitSide, PositionSide: exchange.PositionSideBoth,
		Type: exchange.OrderTypeTakeProfitMarket, Quantity: pl.Qty, StopPrice: pl.TakeProfitPrice,
		ReduceOnly: true, WorkingType: exchange.WorkingTypeMarkPrice, ClientOrderID: uuid.NewString(),
	}
	tpOrder, err := ex.PlaceOrder(ctx, tpReq)
	if err != nil {
		return placed, fmt.Errorf("place take profit: %w", err)
	}
	if err := store.TrackOrder(ctx, botID, tpOrder.OrderID, now+1); err != nil {
		return placed, fmt.Errorf("track take profit %s: %w", tpOrder.OrderID, err)
	}
	placed = append(placed, tpOrder.OrderID)

	return placed, nil
}

// Disarm cancels the tracked entry (if not yet filled) and both brackets,
// untracks them, and clears the bot's armed fields. Absent ids are treated
// as already-cancelled, making it safe to call repeatedly (spec §4.H
// "on_disarm_signal").
func Disarm(ctx context.Context, ex exchange.Client, store *state.Store, botID, sym string) error {
	st, err := store.LoadBotState(ctx, botID)
	if err != nil {
		return fmt.Errorf("load bot state: %w", err)
	}

	ids := st.BracketIDs
	if st.ArmedEntryOrderID != "" {
		ids = append([]string{st.ArmedEntryOrderID}, ids...)
	}

	for _, id := range ids {
		// Already filled/cancelled on the exchange is not an error here:
		// the goal is "no longer tracked," not "successfully cancelled."
		_ = ex.CancelOrder(ctx, sym, id)
		_ = store.UntrackOrder(ctx, botID, id)
	}

	st.ArmedEntryOrderID = ""
	st.BracketIDs = nil
	return store.SaveBotState(ctx, st)
}
