package streams

import (
	"context"
	"encoding/json"
	"fmt"

	"futurespipeline/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const indicatorStreamMaxLen = 1500

// IndicatorWriter publishes IndicatorSnapshot values onto the indicator
// stream and the latest-snapshot hash, pipelined per batch (grounded on the
// teacher's Writer.WriteIndicatorBatch). Implements model.IndicatorWriter.
type IndicatorWriter struct {
	c *Client
}

func NewIndicatorWriter(c *Client) *IndicatorWriter { return &IndicatorWriter{c: c} }

func (w *IndicatorWriter) WriteBatch(ctx context.Context, snapshots []model.IndicatorSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	pipe := w.c.rdb.Pipeline()
	for i := range snapshots {
		snap := &snapshots[i]
		if !snap.MA20OK || !snap.MA200OK {
			continue
		}
		data, err := json.Marshal(snap)
		if err != nil {
			continue
		}
		streamKey := IndicatorStreamKey(snap.Sym, snap.TF)
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: streamKey,
			MaxLen: indicatorStreamMaxLen,
			Approx: true,
			Values: map[string]interface{}{"data": string(data)},
		})
		latestKey := IndicatorLatestKey(snap.Sym, snap.TF)
		latest := map[string]interface{}{
			"ts": snap.TSMillis, "close": snap.Close.String(), "ma20": snap.MA20.String(),
			"ma200": snap.MA200.String(), "regime": string(snap.Regime),
		}
		if snap.HasIndCdl {
			latest["ind_high"] = snap.IndHigh.String()
			latest["ind_low"] = snap.IndLow.String()
			latest["ind_ts"] = snap.IndTS
		}
		pipe.Del(ctx, latestKey)
		pipe.HSet(ctx, latestKey, latest)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("indicator batch pipeline: %w", err)
	}
	return nil
}

func (w *IndicatorWriter) Close() error { return nil }
