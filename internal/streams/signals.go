package streams

import (
	"context"
	"fmt"
	"time"

	"futurespipeline/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const signalStreamMaxLen = 5000

// SignalWriter publishes Arm/Disarm signals onto the per-(sym,tf) signal
// stream (component E output). Implements model.SignalWriter.
type SignalWriter struct {
	c *Client
}

func NewSignalWriter(c *Client) *SignalWriter { return &SignalWriter{c: c} }

func (w *SignalWriter) Write(ctx context.Context, sig model.Signal) (string, error) {
	key := SignalStreamKey(sig.Sym, sig.TF)
	id, err := w.c.guardedXAdd(ctx, key, signalStreamMaxLen, sig)
	if err != nil {
		return "", fmt.Errorf("signal xadd: %w", err)
	}
	return id, nil
}

func (w *SignalWriter) Close() error { return nil }

// SignalConsumer is the component F (signal poller) consumer-group reader.
type SignalConsumer = TypedConsumer[model.Signal]

func NewSignalConsumer(c *Client) *SignalConsumer { return NewTypedConsumer[model.Signal](c) }

// CandleConsumer is the component E (calculator) consumer-group reader.
type CandleConsumer = TypedConsumer[model.Candle]

func NewCandleConsumer(c *Client) *CandleConsumer { return NewTypedConsumer[model.Candle](c) }

// SignalEntry pairs a decoded signal with its stream id, for callers (the
// signal poller) that must defer XACK until after dispatch succeeds rather
// than immediately on read.
type SignalEntry struct {
	ID     string
	Signal model.Signal
}

// ReadSignalsNoAck performs one blocking XREADGROUP batch against stream
// without acking; malformed entries are dropped (acked immediately) so they
// never wedge the group, matching the tolerant-decode behavior of
// TypedConsumer.Consume.
func (c *Client) ReadSignalsNoAck(ctx context.Context, stream string, count int64, block time.Duration) ([]SignalEntry, error) {
	results, err := c.rdb.XReadGroup(ctx, &goredis.XReadGroupArgs{
		Group: c.consumerGroup, Consumer: c.consumerName,
		Streams: []string{stream, ">"}, Count: count, Block: block,
	}).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var out []SignalEntry
	for _, s := range results {
		for _, msg := range s.Messages {
			sig, ok := decodeMessage[model.Signal](msg)
			if !ok {
				c.log.Warn("dropping undecodable signal", "stream", stream, "id", msg.ID, "err", errPoisonMessage)
				c.rdb.XAck(ctx, stream, c.consumerGroup, msg.ID)
				continue
			}
			out = append(out, SignalEntry{ID: msg.ID, Signal: sig})
		}
	}
	return out, nil
}
