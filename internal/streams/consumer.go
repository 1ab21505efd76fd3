package streams

import (
	"context"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// TypedConsumer reads a single decoded message type T (model.Candle or
// model.Signal) from a set of Redis streams via the client's consumer
// group, implementing model.StreamConsumer[T].
type TypedConsumer[T any] struct {
	c *Client
}

// NewTypedConsumer wraps c for consuming messages of type T.
func NewTypedConsumer[T any](c *Client) *TypedConsumer[T] {
	return &TypedConsumer[T]{c: c}
}

func (tc *TypedConsumer[T]) EnsureGroup(ctx context.Context, streamKeys []string) error {
	return tc.c.EnsureGroup(ctx, streamKeys)
}

// Close is a no-op: the underlying Client owns the connection lifecycle and
// may be shared across multiple typed consumers/writers.
func (tc *TypedConsumer[T]) Close() error { return nil }

// Consume reads new messages ('>') via XREADGROUP, decodes them, forwards
// them to out, and ACKs on successful delivery. Malformed payloads are
// ACKed immediately to avoid a poison-pill blocking the group (mirrors the
// teacher's reader.ConsumeTFCandles).
func (tc *TypedConsumer[T]) Consume(ctx context.Context, streamKeys []string, out chan<- T) error {
	args := make([]string, len(streamKeys)*2)
	for i, s := range streamKeys {
		args[i] = s
		args[len(streamKeys)+i] = ">"
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		results, err := tc.c.rdb.XReadGroup(ctx, &goredis.XReadGroupArgs{
			Group:    tc.c.consumerGroup,
			Consumer: tc.c.consumerName,
			Streams:  args,
			Count:    100,
			Block:    2 * time.Second,
		}).Result()
		if err != nil {
			if err == goredis.Nil || ctx.Err() != nil {
				continue
			}
			tc.c.log.Warn("xreadgroup error", "err", err)
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range results {
			for _, msg := range stream.Messages {
				v, ok := decodeMessage[T](msg)
				if !ok {
					tc.c.log.Warn("dropping undecodable message", "stream", stream.Stream, "id", msg.ID, "err", errPoisonMessage)
					tc.c.rdb.XAck(ctx, stream.Stream, tc.c.consumerGroup, msg.ID)
					continue
				}
				select {
				case out <- v:
				case <-ctx.Done():
					return ctx.Err()
				}
				tc.c.rdb.XAck(ctx, stream.Stream, tc.c.consumerGroup, msg.ID)
			}
		}
	}
}

// RecoverPending claims and replays this consumer's own unACKed PEL entries
// from a previous crash, for at-least-once delivery on restart.
func (tc *TypedConsumer[T]) RecoverPending(ctx context.Context, streamKeys []string, out chan<- T) error {
	for _, stream := range streamKeys {
		for {
			pending, err := tc.c.rdb.XPendingExt(ctx, &goredis.XPendingExtArgs{
				Stream:   stream,
				Group:    tc.c.consumerGroup,
				Start:    "-",
				End:      "+",
				Count:    100,
				Consumer: tc.c.consumerName,
			}).Result()
			if err != nil || len(pending) == 0 {
				break
			}

			ids := make([]string, len(pending))
			for i, p := range pending {
				ids[i] = p.ID
			}

			claimed, err := tc.c.rdb.XClaim(ctx, &goredis.XClaimArgs{
				Stream:   stream,
				Group:    tc.c.consumerGroup,
				Consumer: tc.c.consumerName,
				MinIdle:  0,
				Messages: ids,
			}).Result()
			if err != nil {
				tc.c.log.Warn("xclaim error", "stream", stream, "err", err)
				break
			}

			if err := tc.drain(ctx, stream, claimed, out); err != nil {
				return err
			}
			if len(claimed) < len(ids) {
				break
			}
		}
	}
	return nil
}

// ReplayFromID reads all messages from a stream starting strictly after
// startID and returns the id of the last message read.
func (tc *TypedConsumer[T]) ReplayFromID(ctx context.Context, stream, startID string, out chan<- T) (string, error) {
	lastID := startID
	for {
		results, err := tc.c.rdb.XRange(ctx, stream, "("+lastID, "+").Result()
		if err != nil {
			return lastID, err
		}
		if len(results) == 0 {
			break
		}
		for _, msg := range results {
			v, ok := decodeMessage[T](msg)
			if !ok {
				lastID = msg.ID
				continue
			}
			select {
			case out <- v:
			case <-ctx.Done():
				return lastID, ctx.Err()
			}
			lastID = msg.ID
		}
		if len(results) < 1000 {
			break
		}
	}
	return lastID, nil
}

// StartPELReclaimer periodically steals PEL entries idle longer than
// minIdleMs from dead consumers in the group and replays them, mirroring
// the teacher's reader.StartPELReclaimer loop.
func (tc *TypedConsumer[T]) StartPELReclaimer(ctx context.Context, streamKeys []string, group, consumer string,
	interval time.Duration, minIdleMs int64, outCh chan<- T, onReclaim func(count int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			total := 0
			for _, stream := range streamKeys {
				claimed, err := tc.reclaimStale(ctx, stream, group, consumer, minIdleMs, 50)
				if err != nil {
					tc.c.log.Warn("pel reclaim error", "stream", stream, "err", err)
					continue
				}
				if err := tc.drain(ctx, stream, claimed, outCh); err != nil {
					return
				}
				total += len(claimed)
			}
			if total > 0 && onReclaim != nil {
				onReclaim(total)
			}
		}
	}
}

func (tc *TypedConsumer[T]) reclaimStale(ctx context.Context, stream, group, consumer string, minIdleMs, batchSize int64) ([]goredis.XMessage, error) {
	pending, err := tc.c.rdb.XPendingExt(ctx, &goredis.XPendingExtArgs{
		Stream: stream,
		Group:  group,
		Start:  "-",
		End:    "+",
		Count:  batchSize,
		Idle:   time.Duration(minIdleMs) * time.Millisecond,
	}).Result()
	if err != nil || len(pending) == 0 {
		return nil, err
	}

	var staleIDs []string
	for _, p := range pending {
		if p.Consumer != consumer {
			staleIDs = append(staleIDs, p.ID)
		}
	}
	if len(staleIDs) == 0 {
		return nil, nil
	}

	return tc.c.rdb.XClaim(ctx, &goredis.XClaimArgs{
		Stream:   stream,
		Group:    group,
		Consumer: consumer,
		MinIdle:  time.Duration(minIdleMs) * time.Millisecond,
		Messages: staleIDs,
	}).Result()
}

func (tc *TypedConsumer[T]) drain(ctx context.Context, stream string, msgs []goredis.XMessage, out chan<- T) error {
	for _, msg := range msgs {
		v, ok := decodeMessage[T](msg)
		if !ok {
			tc.c.rdb.XAck(ctx, stream, tc.c.consumerGroup, msg.ID)
			continue
		}
		select {
		case out <- v:
		case <-ctx.Done():
			return ctx.Err()
		}
		tc.c.rdb.XAck(ctx, stream, tc.c.consumerGroup, msg.ID)
	}
	return nil
}
