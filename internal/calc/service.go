package calc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"futurespipeline/internal/exchange/filters"
	"futurespipeline/internal/metrics"
	"futurespipeline/internal/model"
	"futurespipeline/internal/streams"

	"github.com/shopspring/decimal"
)

// Config configures the calculator service.
type Config struct {
	RedisAddr     string
	RedisPassword string
	ConsumerGroup string
	ConsumerName  string

	Symbols    []string
	Timeframes []string

	ExchangeInfoURL  string
	FallbackTick     string
	SnapshotInterval time.Duration
}

// Service runs one Engine per subscribed (sym,tf) pair, reading candles off
// the stream consumer group and publishing indicator snapshots and
// arm/disarm signals, mirroring the teacher's indengine.Service
// orchestration (New/Run/restoreEngine/snapshotLoop).
type Service struct {
	cfg Config
	log *slog.Logger

	client   *streams.Client
	consumer *streams.CandleConsumer
	indW     *streams.IndicatorWriter
	sigW     *streams.SignalWriter
	snaps    *streams.SnapshotStore
	ticks    *filters.TickSource
	metrics  *metrics.Registry

	engines map[string]*Engine
	candCh  chan model.Candle
}

// New connects to Redis and constructs one Engine per (sym,tf) pair.
func New(cfg Config, log *slog.Logger, m *metrics.Registry) (*Service, error) {
	if log == nil {
		log = slog.Default()
	}
	client, err := streams.New(streams.Config{
		Addr: cfg.RedisAddr, Password: cfg.RedisPassword,
		ConsumerGroup: cfg.ConsumerGroup, ConsumerName: cfg.ConsumerName,
	}, log)
	if err != nil {
		return nil, err
	}

	fallbackTick, err2 := decimal.NewFromString(cfg.FallbackTick)
	if err2 != nil || fallbackTick.LessThanOrEqual(decimal.Zero) {
		fallbackTick = decimal.New(1, -2) // 0.01
	}
	fallbackStep := decimal.New(1, -3)     // 0.001
	fallbackMinQty := decimal.New(1, -3)   // 0.001
	fallbackNotional := decimal.NewFromInt(5)
	loader := filters.NewLoader(cfg.ExchangeInfoURL, fallbackTick, fallbackStep, fallbackMinQty, fallbackNotional, log)

	svc := &Service{
		cfg:      cfg,
		log:      log,
		client:   client,
		consumer: streams.NewCandleConsumer(client),
		indW:     streams.NewIndicatorWriter(client),
		sigW:     streams.NewSignalWriter(client),
		snaps:    streams.NewSnapshotStore(client),
		ticks:    filters.NewTickSource(loader),
		metrics:  m,
		engines:  make(map[string]*Engine),
		candCh:   make(chan model.Candle, 2000),
	}

	for _, sym := range cfg.Symbols {
		for _, tf := range cfg.Timeframes {
			svc.engines[sym+"|"+tf] = NewEngine(sym, tf, model.DefaultClassifier, svc.ticks)
		}
	}
	return svc, nil
}

func (svc *Service) streamKeys() []string {
	var keys []string
	for _, sym := range svc.cfg.Symbols {
		for _, tf := range svc.cfg.Timeframes {
			keys = append(keys, streams.CandleStreamKey(sym, tf))
		}
	}
	return keys
}

// Run restores each engine's snapshot, re-delivers this consumer's
// unacknowledged candle entries, then consumes new candle stream entries
// until ctx is cancelled. Candles acknowledged after the last snapshot are
// not replayed.
func (svc *Service) Run(ctx context.Context) error {
	if err := svc.restoreAll(ctx); err != nil {
		svc.log.Warn("snapshot restore failed, starting cold", "err", err)
	}

	keys := svc.streamKeys()
	if err := svc.consumer.EnsureGroup(ctx, keys); err != nil {
		return fmt.Errorf("ensure group: %w", err)
	}
	if err := svc.consumer.RecoverPending(ctx, keys, svc.candCh); err != nil {
		svc.log.Warn("recover pending failed", "err", err)
	}

	go svc.consumer.StartPELReclaimer(ctx, keys, svc.cfg.ConsumerGroup, svc.cfg.ConsumerName,
		30*time.Second, 60000, svc.candCh, func(n int) {
			svc.log.Info("reclaimed stale pel entries", "count", n)
		})

	go svc.snapshotLoop(ctx)
	go svc.processLoop(ctx)

	return svc.consumer.Consume(ctx, keys, svc.candCh)
}

func (svc *Service) processLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-svc.candCh:
			if !ok {
				return
			}
			svc.processOne(ctx, c)
		}
	}
}

func (svc *Service) processOne(ctx context.Context, c model.Candle) {
	eng, ok := svc.engines[c.Key()]
	if !ok {
		return
	}
	res, err := eng.Process(ctx, c)
	if err != nil {
		svc.log.Error("engine process failed", "sym", c.Sym, "tf", c.TF, "err", err)
		return
	}
	if res.HasSnapshot {
		if err := svc.indW.WriteBatch(ctx, []model.IndicatorSnapshot{res.Snapshot}); err != nil {
			svc.log.Warn("indicator write failed", "err", err)
		}
	}
	for _, sig := range res.Signals {
		if _, err := svc.sigW.Write(ctx, sig); err != nil {
			svc.log.Warn("signal write failed", "err", err)
			continue
		}
		if svc.metrics != nil {
			if sig.Kind == model.SignalArm {
				svc.metrics.ArmedTotal.Inc()
			} else {
				svc.metrics.DisarmTotal.Inc()
			}
		}
	}
}

func (svc *Service) snapshotLoop(ctx context.Context) {
	interval := svc.cfg.SnapshotInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			svc.saveAll(context.Background())
			return
		case <-ticker.C:
			svc.saveAll(ctx)
		}
	}
}

func (svc *Service) saveAll(ctx context.Context) {
	for key, eng := range svc.engines {
		data, err := json.Marshal(eng.Snapshot())
		if err != nil {
			continue
		}
		if err := svc.snaps.SaveSnapshotJSON(ctx, key, data); err != nil {
			svc.log.Warn("snapshot save failed", "key", key, "err", err)
		}
	}
}

func (svc *Service) restoreAll(ctx context.Context) error {
	for key, eng := range svc.engines {
		data, err := svc.snaps.ReadLatestSnapshotJSON(ctx, key)
		if err != nil || data == nil {
			continue
		}
		var snap EngineSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			continue
		}
		eng.Restore(snap)
	}
	return nil
}

// RedisClient exposes the raw client for liveness probing by cmd/calculator.
func (svc *Service) RedisClient() *streams.Client { return svc.client }

// Close releases the Redis connection.
func (svc *Service) Close() error { return svc.client.Close() }
