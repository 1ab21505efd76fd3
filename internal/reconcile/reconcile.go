// Package reconcile implements component I: a periodic control loop that
// compares locally tracked orders/positions against the exchange and heals
// drift without auto-cancelling siblings (spec §4.I).
package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"futurespipeline/internal/exchange"
	"futurespipeline/internal/metrics"
	"futurespipeline/internal/model"
	"futurespipeline/internal/state"

	"github.com/shopspring/decimal"
)

// Result is one bot's reconcile outcome; a failed bot does not abort the
// sweep for its siblings (spec §4.I step 5, §9 supplemented feature).
type Result struct {
	OK              bool
	BotID           string
	Inconsistencies []string
	Err             string
}

// Reconciler heals one bot's tracked state against the exchange.
type Reconciler struct {
	ex      exchange.Client
	store   *state.Store
	metrics *metrics.Registry
	log     *slog.Logger
}

func New(ex exchange.Client, store *state.Store, m *metrics.Registry, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{ex: ex, store: store, metrics: m, log: log}
}

// ReconcileBot implements spec §4.I steps 1-5 for a single bot.
func (r *Reconciler) ReconcileBot(ctx context.Context, botID, sym string) Result {
	if r.metrics != nil {
		r.metrics.ReconcileRunsTotal.Inc()
	}

	openOrders, err := r.ex.GetOpenOrders(ctx, sym)
	if err != nil {
		return r.fail(botID, fmt.Errorf("get open orders: %w", err))
	}
	positions, err := r.ex.GetPositions(ctx, sym)
	if err != nil {
		return r.fail(botID, fmt.Errorf("get positions: %w", err))
	}

	openIDs := make(map[string]bool, len(openOrders))
	for _, o := range openOrders {
		openIDs[o.OrderID] = true
	}

	tracked, err := r.store.TrackedOrders(ctx, botID)
	if err != nil {
		return r.fail(botID, fmt.Errorf("load tracked orders: %w", err))
	}
	for _, id := range tracked {
		if !openIDs[id] {
			// No longer live on the exchange (filled or cancelled
			// externally): untrack, this is terminal, not an inconsistency.
			if err := r.store.UntrackOrder(ctx, botID, id); err != nil {
				r.log.Warn("untrack failed", "bot_id", botID, "order_id", id, "err", err)
			}
		}
	}

	st, err := r.store.LoadBotState(ctx, botID)
	if err != nil {
		return r.fail(botID, fmt.Errorf("load bot state: %w", err))
	}

	var inconsistencies []string
	if st.ArmedEntryOrderID != "" && !openIDs[st.ArmedEntryOrderID] {
		inconsistencies = append(inconsistencies, fmt.Sprintf("armed_entry_order_id %s not in open orders", st.ArmedEntryOrderID))
	}
	for _, id := range st.BracketIDs {
		if !openIDs[id] {
			inconsistencies = append(inconsistencies, fmt.Sprintf("bracket %s not in open orders", id))
		}
	}

	applyPosition(st, positions, sym)
	if err := r.store.SaveBotState(ctx, st); err != nil {
		return r.fail(botID, fmt.Errorf("save bot state: %w", err))
	}

	if len(inconsistencies) > 0 && r.metrics != nil {
		r.metrics.ReconcileInconsistenciesTotal.Add(float64(len(inconsistencies)))
	}

	return Result{OK: true, BotID: botID, Inconsistencies: inconsistencies}
}

func (r *Reconciler) fail(botID string, err error) Result {
	r.log.Error("reconcile bot failed", "bot_id", botID, "err", err)
	if r.metrics != nil {
		r.metrics.ReconcileErrorsTotal.Inc()
	}
	return Result{OK: false, BotID: botID, Err: err.Error()}
}

// applyPosition updates position_side/position_qty/avg_entry_price from the
// exchange's signed positionAmt (spec §4.I step 4).
func applyPosition(st *model.BotState, positions []exchange.Position, sym string) {
	for _, p := range positions {
		if p.Sym != sym {
			continue
		}
		switch {
		case p.PositionAmt.GreaterThan(decimal.Zero):
			st.PositionSide = model.RegimeLong
		case p.PositionAmt.LessThan(decimal.Zero):
			st.PositionSide = model.RegimeShort
		default:
			st.PositionSide = model.RegimeNeutral
		}
		st.PositionQty = p.PositionAmt.Abs()
		st.AvgEntryPrice = p.EntryPrice
		return
	}
	st.PositionSide = model.RegimeNeutral
	st.PositionQty = decimal.Zero
	st.AvgEntryPrice = decimal.Zero
}
