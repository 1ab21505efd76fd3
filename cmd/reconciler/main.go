// cmd/reconciler runs component I: a periodic sweep healing drift between
// locally tracked orders/positions and the exchange for every configured
// symbol (spec §4.I).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"futurespipeline/internal/config"
	"futurespipeline/internal/exchange/binancefutures"
	"futurespipeline/internal/exchange/userstream"
	"futurespipeline/internal/logger"
	"futurespipeline/internal/metrics"
	"futurespipeline/internal/notification"
	"futurespipeline/internal/reconcile"
	"futurespipeline/internal/state"
	"futurespipeline/internal/streams"

	"github.com/shopspring/decimal"
)

func main() {
	log := logger.Init("reconciler", slog.LevelInfo)
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	reg := metrics.New()
	health := metrics.NewHealthStatus()
	srv := metrics.NewServer(cfg.MetricsAddr, health, log)
	srv.Start()

	client, err := streams.New(streams.Config{
		Addr: cfg.RedisAddr, Password: cfg.RedisPassword,
		ConsumerGroup: cfg.ConsumerGroup, ConsumerName: cfg.ConsumerName,
	}, log)
	if err != nil {
		log.Error("redis connect failed", "err", err)
		os.Exit(1)
	}
	defer client.Close()
	health.StartLivenessChecker(ctx, client.Raw(), nil, 15*time.Second)

	store := state.New(client)

	fallbackTick, _ := decimal.NewFromString(cfg.FallbackTick)
	fallbackStep, _ := decimal.NewFromString(cfg.FallbackStep)
	fallbackMinQty, _ := decimal.NewFromString(cfg.FallbackMinQty)
	fallbackNotional, _ := decimal.NewFromString(cfg.FallbackNotional)

	exch := binancefutures.New(binancefutures.Config{
		BaseURL: cfg.ExchangeBaseURL, APIKey: cfg.ExchangeAPIKey, APISecret: cfg.ExchangeAPISecret,
		ExchangeInfoURL: cfg.ExchangeInfoURL, Timeout: cfg.ExchangeTimeout,
		FallbackTick: fallbackTick, FallbackStep: fallbackStep, FallbackMinQty: fallbackMinQty, FallbackNotional: fallbackNotional,
	}, log)

	rec := reconcile.New(exch, store, reg, log)

	var notifier notification.Notifier = notification.NewLogNotifier()
	if cfg.AlertWebhookURL != "" {
		notifier = notification.NewWebhookNotifier(cfg.AlertWebhookURL)
	}

	interval := cfg.ReconcileInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}

	log.Info("reconciler running", "symbols", cfg.Symbols, "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// the user stream is informational only: it wakes the sweep loop early
	// on a fill, but REST polling above remains the source of truth.
	var userEvents chan userstream.Event
	if cfg.ExchangeUserStreamURL != "" {
		userEvents = make(chan userstream.Event, 64)
		listener := userstream.New(cfg.ExchangeUserStreamURL, log)
		go func() {
			if err := listener.Run(ctx, userEvents); err != nil && ctx.Err() == nil {
				log.Warn("user stream listener stopped", "err", err)
			}
		}()
	}

	sweepAll := func() {
		for _, sym := range cfg.Symbols {
			res := rec.SweepSymbol(ctx, store, sym)
			if !res.OK {
				log.Warn("sweep failed", "sym", sym)
				continue
			}
			for _, r := range res.Results {
				if len(r.Inconsistencies) > 0 {
					log.Warn("reconcile inconsistencies found", "bot_id", r.BotID, "inconsistencies", r.Inconsistencies)
					notifier.Send(ctx, notification.Alert{
						Level: notification.AlertWarning, Title: "reconcile inconsistency",
						Message: fmt.Sprintf("bot %s: %v", r.BotID, r.Inconsistencies),
					})
				}
				if r.Err != "" {
					log.Error("reconcile bot error", "bot_id", r.BotID, "err", r.Err)
					notifier.Send(ctx, notification.Alert{
						Level: notification.AlertCritical, Title: "reconcile error",
						Message: fmt.Sprintf("bot %s: %s", r.BotID, r.Err),
					})
				}
			}
		}
	}

sweepLoop:
	for {
		select {
		case <-sigCh:
			log.Info("shutdown signal received")
			break sweepLoop
		case <-ctx.Done():
			break sweepLoop
		case ev := <-userEvents:
			log.Info("user stream event, sweeping early", "event_type", ev.EventType, "sym", ev.Symbol, "order_id", ev.OrderID)
			sweepAll()
		case <-ticker.C:
			sweepAll()
		}
	}

	cancel()
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	srv.Stop(shutCtx)
	log.Info("reconciler shutdown complete")
}
