package orders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"futurespipeline/internal/exchange"
	"futurespipeline/internal/metrics"
	"futurespipeline/internal/model"
	"futurespipeline/internal/notification"
	"futurespipeline/internal/plan"
	"futurespipeline/internal/signalpoller"
	"futurespipeline/internal/state"

	"github.com/shopspring/decimal"
)

// defaultQuoteAsset is the balance asset sizing is computed against; the
// venue this pipeline targets is USDT-margined futures.
const defaultQuoteAsset = "USDT"

// Handlers bundles everything on_arm_signal/on_disarm_signal need and is
// registered against the task queue by cmd/signalworker.
type Handlers struct {
	Exchange exchange.Client
	Store    *state.Store
	Record   Recorder
	Metrics  *metrics.Registry
	Log      *slog.Logger
	Notify   notification.Notifier
}

func New(ex exchange.Client, store *state.Store, rec Recorder, m *metrics.Registry, log *slog.Logger) *Handlers {
	if rec == nil {
		rec = noopRecorder{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handlers{Exchange: ex, Store: store, Record: rec, Metrics: m, Log: log, Notify: notification.NewLogNotifier()}
}

// OnArmSignal implements spec §4.H's on_arm_signal, steps 1-7 verbatim.
func (h *Handlers) OnArmSignal(ctx context.Context, payload any) error {
	p, ok := payload.(signalpoller.ArmPayload)
	if !ok {
		h.Log.Error("on_arm_signal: unexpected payload type")
		return nil
	}

	out := h.onArm(ctx, p)
	if !out.OK {
		h.Notify.Send(ctx, notification.Alert{
			Level: notification.AlertWarning, Title: "arm signal not actioned",
			Message: "bot " + p.BotID + " sym " + p.Sym + ": " + out.Error,
		})
	}
	if !out.OK && out.Error == "entry_failed" {
		// Transient infra failure: return an error so the task queue retries.
		return fmt.Errorf("on_arm_signal: %s", out.Error)
	}
	return nil
}

func (h *Handlers) onArm(ctx context.Context, p signalpoller.ArmPayload) Outcome {
	if p.BotID == "" || p.SignalID == "" || p.Sym == "" || p.Side == "" || p.Trigger == "" || p.Stop == "" {
		return Outcome{OK: false, Error: "missing field bot_id, signal_id, sym, side, trigger or stop"}
	}

	already, err := h.Store.IsProcessed(ctx, p.BotID, p.SignalID)
	if err != nil {
		h.Log.Error("idempotency check failed", "bot_id", p.BotID, "signal_id", p.SignalID, "err", err)
		return Outcome{OK: false, Error: "entry_failed"}
	}
	if already {
		if h.Metrics != nil {
			h.Metrics.DuplicateSignalsTotal.Inc()
		}
		return Outcome{OK: true, Skipped: "duplicate"}
	}

	cfg, err := h.Store.LoadBotConfig(ctx, p.BotID)
	if err != nil {
		h.Log.Error("bot config load failed", "bot_id", p.BotID, "err", err)
		return Outcome{OK: false, Error: "entry_failed"}
	}
	if cfg == nil {
		return Outcome{OK: false, Error: "bot config not found"}
	}

	trigger, _ := decimal.NewFromString(p.Trigger)
	stop, _ := decimal.NewFromString(p.Stop)
	arm := model.Signal{Kind: model.SignalArm, Sym: p.Sym, Side: p.Side, Trigger: trigger, Stop: stop}

	inputs, err := plan.Gather(ctx, h.Exchange, p.Sym, defaultQuoteAsset)
	if err != nil {
		h.Log.Error("plan input gather failed", "bot_id", p.BotID, "err", err)
		return Outcome{OK: false, Error: "entry_failed"}
	}

	built := plan.BuildPlan(arm, *cfg, inputs)
	if !built.OK {
		return Outcome{OK: false, Error: "plan_not_ok", Diagnostics: built.Diagnostics.Notes}
	}

	now := float64(time.Now().Unix())
	entryID, err := PlaceEntryAndTrack(ctx, h.Exchange, h.Store, p.BotID, built, now)
	if err != nil {
		h.Log.Error("entry placement failed", "bot_id", p.BotID, "signal_id", p.SignalID, "err", err)
		if h.Metrics != nil {
			h.Metrics.EntryFailedTotal.Inc()
		}
		return Outcome{OK: false, Error: "entry_failed"}
	}
	if h.Metrics != nil {
		h.Metrics.EntryPlacedTotal.Inc()
	}

	st, err := h.Store.LoadBotState(ctx, p.BotID)
	if err != nil {
		st = &model.BotState{BotID: p.BotID, Sym: p.Sym}
	}
	st.ArmedEntryOrderID = entryID

	if built.PreplaceBrackets {
		placed, berr := PlaceBracketsAndTrack(ctx, h.Exchange, h.Store, p.BotID, built, now)
		st.BracketIDs = placed
		_ = h.Store.SaveBotState(ctx, st)
		if berr != nil {
			h.Log.Error("bracket placement failed", "bot_id", p.BotID, "signal_id", p.SignalID, "err", berr)
			if h.Metrics != nil {
				h.Metrics.BracketFailedTotal.Inc()
			}
			// Entry stays tracked; brackets are best-effort and the
			// reconciler heals the rest. Do not mark processed.
			return Outcome{OK: false, EntryID: entryID, Placed: placed}
		}
		if h.Metrics != nil {
			h.Metrics.BracketPlacedTotal.Inc()
		}

		if _, err := h.Store.MarkProcessed(ctx, p.BotID, p.SignalID); err != nil {
			h.Log.Error("mark processed failed", "bot_id", p.BotID, "signal_id", p.SignalID, "err", err)
		}
		st.LastSignalID = p.SignalID
		_ = h.Store.SaveBotState(ctx, st)

		h.recordOutcome(ctx, p, built, model.OrderStateFilled, entryID, placed)
		return Outcome{OK: true, EntryID: entryID, SLID: firstOr(placed, 0), TPID: firstOr(placed, 1)}
	}

	if _, err := h.Store.MarkProcessed(ctx, p.BotID, p.SignalID); err != nil {
		h.Log.Error("mark processed failed", "bot_id", p.BotID, "signal_id", p.SignalID, "err", err)
	}
	st.LastSignalID = p.SignalID
	_ = h.Store.SaveBotState(ctx, st)
	h.recordOutcome(ctx, p, built, model.OrderStatePending, entryID, nil)
	return Outcome{OK: true, EntryID: entryID}
}

func firstOr(s []string, i int) string {
	if i < len(s) {
		return s[i]
	}
	return ""
}

func (h *Handlers) recordOutcome(ctx context.Context, p signalpoller.ArmPayload, pl plan.Plan, status model.OrderStateStatus, entryID string, brackets []string) {
	row := model.OrderState{
		BotID: p.BotID, SignalID: p.SignalID, OrderID: entryID,
		Status: status, Side: p.Side, Symbol: p.Sym,
		TriggerPrice: pl.EntryStopPrice, StopPrice: pl.StopLossPrice, Quantity: pl.Qty,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	if len(brackets) > 0 {
		row.StopOrderID = brackets[0]
	}
	if len(brackets) > 1 {
		row.TakeProfitOrderID = brackets[1]
	}
	if err := h.Record.Upsert(ctx, row); err != nil {
		h.Log.Warn("order_states upsert failed", "bot_id", p.BotID, "signal_id", p.SignalID, "err", err)
	}
}

// OnDisarmSignal implements spec §4.H's on_disarm_signal.
func (h *Handlers) OnDisarmSignal(ctx context.Context, payload any) error {
	p, ok := payload.(signalpoller.DisarmPayload)
	if !ok {
		h.Log.Error("on_disarm_signal: unexpected payload type")
		return nil
	}
	if err := Disarm(ctx, h.Exchange, h.Store, p.BotID, p.Sym); err != nil {
		h.Log.Error("disarm failed", "bot_id", p.BotID, "sym", p.Sym, "err", err)
		return err
	}
	return nil
}
