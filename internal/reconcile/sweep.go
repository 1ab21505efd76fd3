package reconcile

import (
	"context"

	"futurespipeline/internal/state"
)

// SweepResult is the periodic driver's fan-out output: one Result per bot
// subscribed to sym, plus an overall ok that is true once every bot has
// been attempted (spec §9 "reconcile_symbol_bots fan-out returns partial
// failures inline").
type SweepResult struct {
	OK      bool
	Sym     string
	Results []Result
}

// SweepSymbol reconciles every bot subscribed to sym. A single bot's error
// is captured in its own Result and never aborts the sweep for siblings.
func (r *Reconciler) SweepSymbol(ctx context.Context, store *state.Store, sym string) SweepResult {
	botIDs, err := store.BotIDsForSymbol(ctx, sym)
	if err != nil {
		r.log.Error("sweep: bot index lookup failed", "sym", sym, "err", err)
		return SweepResult{OK: false, Sym: sym}
	}

	results := make([]Result, 0, len(botIDs))
	for _, botID := range botIDs {
		results = append(results, r.ReconcileBot(ctx, botID, sym))
	}
	return SweepResult{OK: true, Sym: sym, Results: results}
}
