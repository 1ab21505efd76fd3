package streams

import (
	"context"
	"fmt"

	"futurespipeline/internal/model"
)

// candleStreamMaxLen keeps roughly a day of 1m candles per (sym,tf) stream;
// the same cap applies to every timeframe.
const candleStreamMaxLen = 1500

// CandleWriter publishes closed candles onto their per-(sym,tf) stream.
// Implements model.CandleWriter.
type CandleWriter struct {
	c *Client
}

func NewCandleWriter(c *Client) *CandleWriter { return &CandleWriter{c: c} }

func (w *CandleWriter) Run(ctx context.Context, candleCh <-chan model.Candle) {
	for {
		select {
		case <-ctx.Done():
			return
		case candle, ok := <-candleCh:
			if !ok {
				return
			}
			key := CandleStreamKey(candle.Sym, candle.TF)
			if _, err := w.c.guardedXAdd(ctx, key, candleStreamMaxLen, candle); err != nil {
				w.c.log.Warn("candle xadd failed", "key", key, "err", err)
			}
		}
	}
}

func (w *CandleWriter) Close() error { return nil }

// CandleReader reads historical candles from a candle stream.
// Implements model.CandleReader.
type CandleReader struct {
	c *Client
}

func NewCandleReader(c *Client) *CandleReader { return &CandleReader{c: c} }

func (r *CandleReader) ReadRange(ctx context.Context, sym, tf string, afterTS int64) ([]model.Candle, error) {
	key := CandleStreamKey(sym, tf)
	startID := fmt.Sprintf("(%d-0", afterTS)
	results, err := r.c.rdb.XRange(ctx, key, startID, "+").Result()
	if err != nil {
		return nil, fmt.Errorf("xrange %s: %w", key, err)
	}
	out := make([]model.Candle, 0, len(results))
	for _, msg := range results {
		if c, ok := decodeMessage[model.Candle](msg); ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *CandleReader) Close() error { return nil }
