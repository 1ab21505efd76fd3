// Package signalpoller implements component F: one consumer-group reader
// per (sym,tf) signal stream that fans each signal out to every eligible
// bot subscribed to its symbol (spec §4.F).
package signalpoller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"futurespipeline/internal/model"
	"futurespipeline/internal/state"
	"futurespipeline/internal/streams"
	"futurespipeline/internal/taskqueue"
)

const (
	// TaskArmSignal and TaskDisarmSignal are the task names order handlers
	// register against.
	TaskArmSignal    = "on_arm_signal"
	TaskDisarmSignal = "on_disarm_signal"
)

// ArmPayload and DisarmPayload are the typed task payloads dispatched to
// internal/orders — never a bare map, per spec §9.
type ArmPayload struct {
	BotID    string
	SignalID string
	Sym      string
	Side     model.Regime
	Trigger  string
	Stop     string
}

type DisarmPayload struct {
	BotID string
	Sym   string
	Side  model.Regime
}

// Poller reads one symbol/timeframe's signal stream via a consumer group
// and dispatches tasks to the configured queue.
type Poller struct {
	log    *slog.Logger
	client *streams.Client
	store  *state.Store
	queue  taskqueue.Queue

	group    string
	consumer string
}

func New(client *streams.Client, store *state.Store, queue taskqueue.Queue, group, consumer string, log *slog.Logger) *Poller {
	if log == nil {
		log = slog.Default()
	}
	return &Poller{log: log, client: client, store: store, queue: queue, group: group, consumer: consumer}
}

// Run consumes sym/tf's signal stream until ctx is cancelled. Group
// creation is idempotent (BUSYGROUP tolerated by streams.Client).
func (p *Poller) Run(ctx context.Context, sym, tf string) error {
	key := streams.SignalStreamKey(sym, tf)
	if err := p.client.EnsureGroup(ctx, []string{key}); err != nil {
		return fmt.Errorf("ensure group for %s: %w", key, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		entries, err := p.client.ReadSignalsNoAck(ctx, key, 100, 2*time.Second)
		if err != nil {
			p.log.Warn("signal poll read error", "key", key, "err", err)
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if len(entries) == 0 {
			continue
		}

		for _, e := range entries {
			if err := p.handleEntry(ctx, e.ID, e.Signal); err != nil {
				p.log.Error("signal dispatch failed, not acking", "signal_id", e.Signal.SignalID(), "err", err)
				continue
			}
			p.client.Raw().XAck(ctx, key, p.group, e.ID)
		}
	}
}

func (p *Poller) handleEntry(ctx context.Context, id string, sig model.Signal) error {
	botIDs, err := p.store.BotIDsForSymbol(ctx, sig.Sym)
	if err != nil {
		return fmt.Errorf("bot index lookup: %w", err)
	}

	for _, botID := range botIDs {
		cfg, err := p.store.LoadBotConfig(ctx, botID)
		if err != nil {
			p.log.Warn("bot config load failed", "bot_id", botID, "err", err)
			continue
		}
		if cfg == nil || !cfg.Eligible(sig.Side) {
			continue
		}

		task := TaskArmSignal
		var payload any = ArmPayload{
			BotID: botID, SignalID: sig.SignalID(), Sym: sig.Sym, Side: sig.Side,
			Trigger: sig.Trigger.String(), Stop: sig.Stop.String(),
		}
		if sig.Kind == model.SignalDisarm {
			task = TaskDisarmSignal
			payload = DisarmPayload{BotID: botID, Sym: sig.Sym, Side: sig.Side}
		}

		// Ack only after every eligible bot's task has been accepted by the
		// queue (spec §4.F); a full queue here means the whole entry is
		// retried on next read rather than acked.
		if err := p.queue.Enqueue(ctx, task, payload); err != nil {
			return fmt.Errorf("enqueue %s for bot %s: %w", task, botID, err)
		}
	}
	return nil
}
