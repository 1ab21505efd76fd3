// cmd/signalworker runs components F and H: one signal poller per
// subscribed (sym,tf) pair fanning Arm/Disarm entries out to the task
// queue, and the order handlers that drain that queue (spec §4.F, §4.H).
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"futurespipeline/internal/config"
	"futurespipeline/internal/configstore"
	"futurespipeline/internal/exchange/binancefutures"
	"futurespipeline/internal/logger"
	"futurespipeline/internal/metrics"
	"futurespipeline/internal/orders"
	"futurespipeline/internal/signalpoller"
	"futurespipeline/internal/state"
	"futurespipeline/internal/streams"
	"futurespipeline/internal/taskqueue"

	"github.com/shopspring/decimal"
)

func main() {
	log := logger.Init("signalworker", slog.LevelInfo)
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

	record, closeStore, err := configstore.Open(ctx, cfg.PostgresDSN, cfg.SQLitePath, log)
	if err != nil {
		log.Error("configstore open failed", "err", err)
		os.Exit(1)
	}
	defer closeStore()

	queue := taskqueue.New(4, 512, 3, log)
	handlers := orders.New(exch, store, record, reg, log)
	queue.Register(signalpoller.TaskArmSignal, handlers.OnArmSignal)
	queue.Register(signalpoller.TaskDisarmSignal, handlers.OnDisarmSignal)
	defer queue.Close()

	pollerErrCh := make(chan error, len(cfg.Symbols)*len(cfg.Timeframes))
	for _, sym := range cfg.Symbols {
		for _, tf := range cfg.Timeframes {
			p := signalpoller.New(client, store, queue, cfg.ConsumerGroup, cfg.ConsumerName, log)
			sym, tf := sym, tf
			go func() {
				if err := p.Run(ctx, sym, tf); err != nil && err != context.Canceled {
					log.Error("signal poller exited", "sym", sym, "tf", tf, "err", err)
					pollerErrCh <- err
				}
			}()
		}
	}

	log.Info("signalworker running", "symbols", cfg.Symbols, "timeframes", cfg.Timeframes)

	select {
	case <-sigCh:
		log.Info("shutdown signal received")
	case err := <-pollerErrCh:
		log.Error("signalworker degraded by poller failure", "err", err)
	}

	cancel()
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	srv.Stop(shutCtx)
	log.Info("signalworker shutdown complete")
}
