// cmd/calculator runs component E: one worker per subscribed (sym,tf) pair,
// deriving regime/indicator state from the candle stream and emitting
// arm/disarm signals (spec §2, §4.E).
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"futurespipeline/internal/calc"
	"futurespipeline/internal/config"
	"futurespipeline/internal/logger"
	"futurespipeline/internal/metrics"
)

func main() {
	log := logger.Init("calculator", slog.LevelInfo)
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	reg := metrics.New()
	health := metrics.NewHealthStatus()
	srv := metrics.NewServer(cfg.MetricsAddr, health, log)
	srv.Start()

	svc, err := calc.New(calc.Config{
		RedisAddr: cfg.RedisAddr, RedisPassword: cfg.RedisPassword,
		ConsumerGroup: "calculator", ConsumerName: cfg.ConsumerName,
		Symbols: cfg.Symbols, Timeframes: cfg.Timeframes,
		ExchangeInfoURL: cfg.ExchangeInfoURL, FallbackTick: cfg.FallbackTick,
		SnapshotInterval: cfg.SnapshotInterval,
	}, log, reg)
	if err != nil {
		log.Error("calculator service init failed", "err", err)
		os.Exit(1)
	}
	defer svc.Close()

	health.StartLivenessChecker(ctx, svc.RedisClient().Raw(), nil, 15*time.Second)

	errCh := make(chan error, 1)
	go func() { errCh <- svc.Run(ctx) }()

	log.Info("calculator running", "symbols", cfg.Symbols, "timeframes", cfg.Timeframes)

	select {
	case <-sigCh:
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			log.Error("calculator service exited", "err", err)
		}
	}

	cancel()
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	srv.Stop(shutCtx)
	log.Info("calculator shutdown complete")
}
