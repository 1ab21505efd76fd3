// Package streams implements component A (stream broker client) over Redis
// Streams with consumer groups, grounded on the teacher's
// internal/store/redis.{Reader,Writer} pair.
package streams

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"futurespipeline/internal/model"
	redisbreaker "futurespipeline/internal/store/redis"

	goredis "github.com/go-redis/redis/v8"
)

// Config configures a Client's connection to Redis.
type Config struct {
	Addr          string
	Password      string
	DB            int
	ConsumerGroup string
	ConsumerName  string
}

// Client is the shared Redis Streams handle used by every typed
// reader/writer in this package (candles, indicators, signals).
type Client struct {
	rdb           *goredis.Client
	consumerGroup string
	consumerName  string
	log           *slog.Logger
	breaker       *redisbreaker.CircuitBreaker
}

// New dials Redis and pings it, failing fast on misconfiguration.
func New(cfg Config, log *slog.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	group := cfg.ConsumerGroup
	if group == "" {
		group = "signalworker"
	}
	consumer := cfg.ConsumerName
	if consumer == "" {
		consumer = "worker-1"
	}
	if log == nil {
		log = slog.Default()
	}

	log.Info("connected to redis", "addr", cfg.Addr, "group", group, "consumer", consumer)
	breaker := redisbreaker.NewCircuitBreaker(5, 10*time.Second)
	breaker.OnStateChange = func(from, to redisbreaker.State) {
		log.Warn("redis circuit breaker state change", "from", from, "to", to)
	}
	return &Client{rdb: rdb, consumerGroup: group, consumerName: consumer, log: log, breaker: breaker}, nil
}

// Raw exposes the underlying client for health checks and uses that don't
// warrant their own wrapper method.
func (c *Client) Raw() *goredis.Client { return c.rdb }

// Close closes the Redis connection.
func (c *Client) Close() error { return c.rdb.Close() }

// EnsureGroup creates consumer groups on the given streams, tolerating
// BUSYGROUP so repeated calls are idempotent (spec §9 "Consumer-group
// idempotent creation").
func (c *Client) EnsureGroup(ctx context.Context, streamKeys []string) error {
	for _, s := range streamKeys {
		err := c.rdb.XGroupCreateMkStream(ctx, s, c.consumerGroup, "$").Err()
		if err != nil && !isBusyGroup(err) {
			return fmt.Errorf("xgroup create %s: %w", s, err)
		}
	}
	return nil
}

// EnsureGroupFrom creates (or rewinds) a consumer group to start at a
// specific stream id.
func (c *Client) EnsureGroupFrom(ctx context.Context, stream, startID string) error {
	err := c.rdb.XGroupCreateMkStream(ctx, stream, c.consumerGroup, startID).Err()
	if err != nil {
		if isBusyGroup(err) {
			return c.rdb.XGroupSetID(ctx, stream, c.consumerGroup, startID).Err()
		}
		return fmt.Errorf("xgroup create from %s at %s: %w", stream, startID, err)
	}
	return nil
}

func isBusyGroup(err error) bool {
	return err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists"
}

// xaddJSON marshals v and XADDs it under the "data" field, trimming the
// stream to maxLen entries (approximate, matching the teacher's MAXLEN ~
// convention).
func xaddJSON(ctx context.Context, rdb *goredis.Client, stream string, maxLen int64, v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}
	id, err := rdb.XAdd(ctx, &goredis.XAddArgs{
		Stream: stream,
		MaxLen: maxLen,
		Approx: true,
		Values: map[string]interface{}{"data": string(data)},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", stream, err)
	}
	return id, nil
}

// guardedXAdd wraps xaddJSON with the circuit breaker so a Redis outage
// fails writers fast instead of piling up blocked XADD calls, mirroring the
// teacher's store/redis.CircuitBreaker usage around its own Writer.
func (c *Client) guardedXAdd(ctx context.Context, stream string, maxLen int64, v interface{}) (string, error) {
	var id string
	err := c.breaker.Execute(func() error {
		var innerErr error
		id, innerErr = xaddJSON(ctx, c.rdb, stream, maxLen, v)
		return innerErr
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func decodeMessage[T any](msg goredis.XMessage) (T, bool) {
	var zero T
	raw, ok := msg.Values["data"].(string)
	if !ok {
		return zero, false
	}
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return zero, false
	}
	// A candle without a ts takes its timestamp from the stream id ("ms-seq").
	if c, isCandle := any(&v).(*model.Candle); isCandle && c.TSMillis == 0 {
		if ms, err := strconv.ParseInt(strings.SplitN(msg.ID, "-", 2)[0], 10, 64); err == nil {
			c.TSMillis = ms
		}
	}
	return v, true
}

var errPoisonMessage = errors.New("streams: poison message dropped")
